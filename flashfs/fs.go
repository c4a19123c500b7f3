// Package flashfs is a small log-structured-adjacent filesystem library for
// block devices, written against the blockIO shim fsshim provides (spec.md
// §4.F/§4.G). It keeps the original_source/LittleFS.h surface this module
// was distilled from: format/mount/unmount, path operations, and file/dir
// handles. It has no stepping entry points of its own; asyncfs calls these
// synchronous operations one per step.
package flashfs

// FS is both the filesystem's synchronous wrapper and its own mount handle:
// Mount returns one, owning the bitmap cache for the mount's lifetime,
// invalidated by Unmount. It holds no read, program or lookahead buffers.
type FS struct {
	io  blockIO
	cfg Config

	root uint32
	bmap *bitmap
}

// FileInfo is the result of Stat, mirroring original_source/LittleFS.h's
// lfs_info-equivalent fields.
type FileInfo struct {
	Name  string
	Size  uint64
	IsDir bool
}

// StatvfsResult is the result of Statvfs (spec.md §4.F).
type StatvfsResult struct {
	Bsize   uint32
	Frsize  uint32
	Blocks  uint64
	Bfree   uint64
	Bavail  uint64
	Namemax uint32
}

// Format populates the configuration (clamping geometry to the block
// device's reported minimums) and lays down a fresh superblock, bitmap and
// empty root directory through io. It does not initialize or deinitialize
// the block device behind io: blockIO has no Init/Deinit, so the device
// must already be ready when Format is called.
func Format(io blockIO, cfg Config, deviceReadSize, deviceProgSize, blockCount uint32) error {
	cfg.applyDefaults()
	cfg.clampGeometry(deviceReadSize, deviceProgSize)
	cfg.BlockCount = blockCount

	bitmapBlocks := bitmapBlocksNeeded(blockCount, cfg.BlockSize)
	bitmapBlock := uint32(1)
	rootBlock := bitmapBlock + bitmapBlocks

	if rootBlock >= blockCount {
		return ErrNoSpace
	}

	bmap := newBitmap(blockCount, bitmapBlock, bitmapBlocks)
	bmap.set(0, true) // superblock
	for i := uint32(0); i < bitmapBlocks; i++ {
		bmap.set(bitmapBlock+i, true)
	}
	bmap.set(rootBlock, true)

	if err := bmap.persist(io, cfg.BlockSize); err != nil {
		return err
	}

	// Root directory: one empty block, chain terminator in its tail.
	empty := make([]byte, cfg.BlockSize)
	if err := io.Prog(rootBlock, 0, empty); err != nil {
		return err
	}

	sb := superblock{
		Magic:        superblockMagic,
		Version:      superblockVersion,
		BlockSize:    cfg.BlockSize,
		BlockCount:   blockCount,
		RootBlock:    rootBlock,
		BitmapBlock:  bitmapBlock,
		BitmapBlocks: bitmapBlocks,
	}
	sbBuf := make([]byte, cfg.BlockSize)
	sb.marshal(sbBuf)
	if err := io.Prog(0, 0, sbBuf); err != nil {
		return err
	}
	return io.Sync()
}

func bitmapBlocksNeeded(blockCount, blockSize uint32) uint32 {
	bytesNeeded := (blockCount + 7) / 8
	usableBytes := blockSize // the bitmap's own blocks don't reserve a trailer; only data/dir chains do
	return (bytesNeeded + usableBytes - 1) / usableBytes
}

// Mount reads the superblock back and loads the filesystem's in-memory
// bitmap cache, ready for path operations.
func Mount(io blockIO, cfg Config) (*FS, error) {
	cfg.applyDefaults()

	sbBuf := make([]byte, cfg.BlockSize)
	if err := io.Read(0, 0, sbBuf); err != nil {
		return nil, err
	}
	sb, err := unmarshalSuperblock(sbBuf)
	if err != nil {
		return nil, err
	}
	cfg.BlockSize = sb.BlockSize
	cfg.BlockCount = sb.BlockCount

	bmap, err := loadBitmap(io, sb.BlockCount, sb.BitmapBlock, sb.BitmapBlocks, cfg.BlockSize)
	if err != nil {
		return nil, err
	}

	return &FS{
		io:   io,
		cfg:  cfg,
		root: sb.RootBlock,
		bmap: bmap,
	}, nil
}

// Unmount flushes the bitmap and invalidates the handle; any further
// operation on fs returns ErrNotMounted.
func Unmount(fs *FS) error {
	if fs.io == nil {
		return ErrNotMounted
	}
	err := fs.bmap.persist(fs.io, fs.cfg.BlockSize)
	fs.io = nil
	return err
}

func (fs *FS) mounted() bool { return fs.io != nil }

func (fs *FS) checkMounted() error {
	if !fs.mounted() {
		return ErrNotMounted
	}
	return nil
}

// Stat resolves path to a FileInfo.
func (fs *FS) Stat(path string) (FileInfo, error) {
	if err := fs.checkMounted(); err != nil {
		return FileInfo{}, err
	}
	entry, _, err := fs.lookup(path)
	if err != nil {
		return FileInfo{}, err
	}
	name := "/"
	if parts, _ := splitPath(path); len(parts) > 0 {
		name = parts[len(parts)-1]
	}
	return FileInfo{Name: name, Size: uint64(entry.size), IsDir: entry.kind == kindDir}, nil
}

// Mkdir creates an empty directory at path; the parent must already exist.
func (fs *FS) Mkdir(path string) error {
	if err := fs.checkMounted(); err != nil {
		return err
	}
	parentBlock, name, err := fs.resolveParent(path)
	if err != nil {
		return err
	}
	if _, _, ok, err := fs.findInDir(parentBlock, name); err != nil {
		return err
	} else if ok {
		return ErrExist
	}

	block, err := fs.allocBlock()
	if err != nil {
		return err
	}
	empty := make([]byte, fs.cfg.BlockSize)
	if err := fs.io.Prog(block, 0, empty); err != nil {
		return err
	}

	var d dirent
	d.kind = kindDir
	if err := d.setName(name); err != nil {
		return err
	}
	d.firstBlock = block
	return fs.addEntry(parentBlock, d)
}

// Remove deletes a file, or an empty directory, at path.
func (fs *FS) Remove(path string) error {
	if err := fs.checkMounted(); err != nil {
		return err
	}
	entry, slot, err := fs.lookup(path)
	if err != nil {
		return err
	}
	if entry.kind == kindDir {
		children, _, err := fs.listDir(entry.firstBlock)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return ErrNotEmpty
		}
	}
	if err := fs.freeChain(entry.firstBlock); err != nil {
		return err
	}
	return fs.removeEntry(slot)
}

// Rename moves the entry at oldPath to newPath, which must not already
// exist. The parent directories of both paths must already exist.
func (fs *FS) Rename(oldPath, newPath string) error {
	if err := fs.checkMounted(); err != nil {
		return err
	}
	entry, oldSlot, err := fs.lookup(oldPath)
	if err != nil {
		return err
	}
	newParent, newName, err := fs.resolveParent(newPath)
	if err != nil {
		return err
	}
	if _, _, ok, err := fs.findInDir(newParent, newName); err != nil {
		return err
	} else if ok {
		return ErrExist
	}

	if err := entry.setName(newName); err != nil {
		return err
	}
	if err := fs.addEntry(newParent, entry); err != nil {
		return err
	}
	return fs.removeEntry(oldSlot)
}

// Statvfs reports capacity, matching original_source/LittleFS.h's fields:
// f_bsize = f_frsize = block_size, f_blocks = block_count,
// f_bfree = f_bavail = block_count - in_use, f_namemax = LFS_NAME_MAX.
func (fs *FS) Statvfs() (StatvfsResult, error) {
	if err := fs.checkMounted(); err != nil {
		return StatvfsResult{}, err
	}
	free := uint64(fs.cfg.BlockCount) - uint64(fs.bmap.inUse())
	return StatvfsResult{
		Bsize:   fs.cfg.BlockSize,
		Frsize:  fs.cfg.BlockSize,
		Blocks:  uint64(fs.cfg.BlockCount),
		Bfree:   free,
		Bavail:  free,
		Namemax: nameMax,
	}, nil
}
