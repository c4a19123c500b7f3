package flashfs

import "io"

// Open flags, matching the bit-flag shape original_source/LittleFS.h passes
// through to file_open/file_open_async.
const (
	FlagRead   = 1 << 0
	FlagWrite  = 1 << 1
	FlagCreate = 1 << 2
	FlagTrunc  = 1 << 3
	FlagAppend = 1 << 4
)

// File is an open file handle. Only one File per path may be open at a
// time (spec.md §3 invariant, enforced by asyncfs's "already opened" bit;
// flashfs itself does not track open-handle identity beyond the dirent).
type File struct {
	fs    *FS
	path  string
	slot  dirSlot
	entry dirent
	flags int
	pos   uint64
}

func (fs *FS) payloadSize() uint64 { return uint64(fs.cfg.BlockSize - 4) }

// FileOpen resolves or creates path and returns a handle positioned at 0
// (or at EOF, for FlagAppend).
func (fs *FS) FileOpen(path string, flags int) (*File, error) {
	if err := fs.checkMounted(); err != nil {
		return nil, err
	}
	entry, slot, err := fs.lookup(path)
	switch {
	case err == ErrNotFound && flags&FlagCreate != 0:
		parentBlock, name, perr := fs.resolveParent(path)
		if perr != nil {
			return nil, perr
		}
		var d dirent
		d.kind = kindFile
		if err := d.setName(name); err != nil {
			return nil, err
		}
		if err := fs.addEntry(parentBlock, d); err != nil {
			return nil, err
		}
		entry, slot, err = fs.lookup(path)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case entry.kind == kindDir:
		return nil, ErrIsDir
	}

	if flags&FlagTrunc != 0 {
		if err := fs.freeChain(entry.firstBlock); err != nil {
			return nil, err
		}
		entry.firstBlock = 0
		entry.size = 0
		if err := fs.writeEntry(slot, entry); err != nil {
			return nil, err
		}
	}

	f := &File{fs: fs, path: path, slot: slot, entry: entry, flags: flags}
	if flags&FlagAppend != 0 {
		f.pos = uint64(entry.size)
	}
	return f, nil
}

// Read fills buf from the current position, returning io.EOF once the file's
// recorded size is reached (stdlib io.Reader semantics).
func (f *File) Read(buf []byte) (int, error) {
	if f.pos >= uint64(f.entry.size) {
		return 0, io.EOF
	}
	remaining := uint64(f.entry.size) - f.pos
	if uint64(len(buf)) > remaining {
		buf = buf[:remaining]
	}
	n, err := f.readAt(f.pos, buf)
	f.pos += uint64(n)
	return n, err
}

func (f *File) readAt(pos uint64, buf []byte) (int, error) {
	payload := f.fs.payloadSize()
	total := 0
	block := f.entry.firstBlock
	skip := pos
	for block != 0 && skip >= payload {
		next, err := f.fs.readNext(block)
		if err != nil {
			return total, err
		}
		block = next
		skip -= payload
	}
	for block != 0 && total < len(buf) {
		chunk := make([]byte, f.fs.cfg.BlockSize)
		if err := f.fs.io.Read(block, 0, chunk); err != nil {
			return total, err
		}
		avail := chunk[skip:payload]
		n := copy(buf[total:], avail)
		total += n
		skip = 0
		if total >= len(buf) {
			break
		}
		next, err := f.fs.readNext(block)
		if err != nil {
			return total, err
		}
		block = next
	}
	return total, nil
}

// Write stores buf at the current position, extending the file's block
// chain and recorded size as needed.
func (f *File) Write(buf []byte) (int, error) {
	if f.flags&FlagWrite == 0 {
		return 0, ErrNotOpen
	}
	payload := f.fs.payloadSize()
	endPos := f.pos + uint64(len(buf))

	if err := f.ensureCapacity(endPos); err != nil {
		return 0, err
	}

	total := 0
	block := f.entry.firstBlock
	skip := f.pos
	for block != 0 && skip >= payload {
		next, err := f.fs.readNext(block)
		if err != nil {
			return total, err
		}
		block = next
		skip -= payload
	}
	for block != 0 && total < len(buf) {
		n := len(buf) - total
		if uint64(n) > payload-skip {
			n = int(payload - skip)
		}
		if err := f.fs.io.Prog(block, uint32(skip), buf[total:total+n]); err != nil {
			return total, err
		}
		total += n
		skip = 0
		if total >= len(buf) {
			break
		}
		next, err := f.fs.readNext(block)
		if err != nil {
			return total, err
		}
		block = next
	}

	f.pos += uint64(total)
	if f.pos > uint64(f.entry.size) {
		f.entry.size = uint32(f.pos)
	}
	return total, nil
}

// ensureCapacity extends the file's block chain so it can hold endPos bytes.
func (f *File) ensureCapacity(endPos uint64) error {
	payload := f.fs.payloadSize()
	blocksNeeded := uint64(0)
	if endPos > 0 {
		blocksNeeded = (endPos + payload - 1) / payload
	}

	blocks, err := f.fs.chainBlocks(f.entry.firstBlock)
	if err != nil {
		return err
	}
	if uint64(len(blocks)) >= blocksNeeded {
		return nil
	}

	if len(blocks) == 0 {
		b, err := f.fs.allocBlock()
		if err != nil {
			return err
		}
		f.entry.firstBlock = b
		blocks = append(blocks, b)
		if err := f.fs.writeEntry(f.slot, f.entry); err != nil {
			return err
		}
	}
	last := blocks[len(blocks)-1]
	for uint64(len(blocks)) < blocksNeeded {
		next, err := f.fs.appendBlock(last)
		if err != nil {
			return err
		}
		blocks = append(blocks, next)
		last = next
	}
	return nil
}

// Seek implements io.Seeker-equivalent repositioning.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = int64(f.pos)
	case io.SeekEnd:
		base = int64(f.entry.size)
	default:
		return 0, ErrBadPath
	}
	pos := base + offset
	if pos < 0 {
		return 0, ErrBadPath
	}
	f.pos = uint64(pos)
	return pos, nil
}

// Tell returns the current position.
func (f *File) Tell() uint64 { return f.pos }

// Size returns the file's recorded size.
func (f *File) Size() uint64 { return uint64(f.entry.size) }

// Truncate shrinks or grows the file to size, freeing or zero-extending the
// block chain as needed.
func (f *File) Truncate(size uint64) error {
	payload := f.fs.payloadSize()
	blocksNeeded := uint64(0)
	if size > 0 {
		blocksNeeded = (size + payload - 1) / payload
	}

	blocks, err := f.fs.chainBlocks(f.entry.firstBlock)
	if err != nil {
		return err
	}

	if uint64(len(blocks)) > blocksNeeded {
		if blocksNeeded == 0 {
			if err := f.fs.freeChain(f.entry.firstBlock); err != nil {
				return err
			}
			f.entry.firstBlock = 0
		} else {
			keep := blocks[blocksNeeded-1]
			cut := blocks[blocksNeeded]
			if err := f.fs.writeNext(keep, 0); err != nil {
				return err
			}
			if err := f.fs.freeChain(cut); err != nil {
				return err
			}
		}
	} else if uint64(len(blocks)) < blocksNeeded {
		if err := f.ensureCapacity(size); err != nil {
			return err
		}
	}

	if old := uint64(f.entry.size); size > old {
		// Clear [old, size) so the grown range reads back as zeros rather
		// than whatever a reused or previously truncated block still holds.
		pos, flags := f.pos, f.flags
		f.pos, f.flags = old, flags|FlagWrite
		_, err := f.Write(make([]byte, size-old))
		f.pos, f.flags = pos, flags
		if err != nil {
			return err
		}
	}

	f.entry.size = uint32(size)
	if f.pos > size {
		f.pos = size
	}
	return f.fs.writeEntry(f.slot, f.entry)
}

// Sync flushes the directory entry (size, first block) and the underlying
// block device's write cache.
func (f *File) Sync() error {
	if err := f.fs.writeEntry(f.slot, f.entry); err != nil {
		return err
	}
	return f.fs.io.Sync()
}

// Close flushes and releases the handle.
func (f *File) Close() error {
	err := f.Sync()
	f.fs = nil
	return err
}
