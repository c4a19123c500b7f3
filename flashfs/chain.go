package flashfs

import "encoding/binary"

// Every block that belongs to a directory or a file's data uses its last 4
// bytes as a next-block pointer (0 terminates the chain); the remaining
// blockSize-4 bytes are payload. Both directories and file contents are
// built from this one primitive.

func (fs *FS) nextPointerOffset() uint32 { return fs.cfg.BlockSize - 4 }

func (fs *FS) readNext(block uint32) (uint32, error) {
	var buf [4]byte
	if err := fs.io.Read(block, fs.nextPointerOffset(), buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (fs *FS) writeNext(block, next uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], next)
	return fs.io.Prog(block, fs.nextPointerOffset(), buf[:])
}

// allocBlock grabs a free block, zeroes its next pointer, and persists the
// bitmap immediately (simple but correct: every allocation is crash-safe at
// the cost of an extra write per block instead of per Sync).
func (fs *FS) allocBlock() (uint32, error) {
	b, err := fs.bmap.alloc()
	if err != nil {
		return 0, err
	}
	if err := fs.bmap.persist(fs.io, fs.cfg.BlockSize); err != nil {
		return 0, err
	}
	if err := fs.writeNext(b, 0); err != nil {
		return 0, err
	}
	return b, nil
}

// freeChain releases every block in a chain starting at first.
func (fs *FS) freeChain(first uint32) error {
	block := first
	for block != 0 {
		next, err := fs.readNext(block)
		if err != nil {
			return err
		}
		fs.bmap.set(block, false)
		block = next
	}
	return fs.bmap.persist(fs.io, fs.cfg.BlockSize)
}

// appendBlock extends a chain (given its last block) with a freshly
// allocated block, and returns the new block.
func (fs *FS) appendBlock(last uint32) (uint32, error) {
	next, err := fs.allocBlock()
	if err != nil {
		return 0, err
	}
	if err := fs.writeNext(last, next); err != nil {
		return 0, err
	}
	return next, nil
}

// chainBlocks returns every block in a chain, in order.
func (fs *FS) chainBlocks(first uint32) ([]uint32, error) {
	var blocks []uint32
	block := first
	for block != 0 {
		blocks = append(blocks, block)
		next, err := fs.readNext(block)
		if err != nil {
			return nil, err
		}
		block = next
	}
	return blocks, nil
}
