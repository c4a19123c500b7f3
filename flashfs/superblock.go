package flashfs

import "encoding/binary"

const (
	superblockMagic   = 0x53464C46 // "FLFS" read as a little-endian uint32
	superblockVersion = 1
)

// superblock occupies block 0 and records everything needed to remount:
// geometry, the root directory's first block, and the free-block bitmap's
// location. 28 bytes, zero-padded to fill the block.
type superblock struct {
	Magic        uint32
	Version      uint32
	BlockSize    uint32
	BlockCount   uint32
	RootBlock    uint32
	BitmapBlock  uint32
	BitmapBlocks uint32
}

func (s *superblock) marshal(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], s.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], s.Version)
	binary.LittleEndian.PutUint32(buf[8:12], s.BlockSize)
	binary.LittleEndian.PutUint32(buf[12:16], s.BlockCount)
	binary.LittleEndian.PutUint32(buf[16:20], s.RootBlock)
	binary.LittleEndian.PutUint32(buf[20:24], s.BitmapBlock)
	binary.LittleEndian.PutUint32(buf[24:28], s.BitmapBlocks)
}

func unmarshalSuperblock(buf []byte) (superblock, error) {
	var s superblock
	if len(buf) < 28 {
		return s, ErrCorrupt
	}
	s.Magic = binary.LittleEndian.Uint32(buf[0:4])
	if s.Magic != superblockMagic {
		return s, ErrCorrupt
	}
	s.Version = binary.LittleEndian.Uint32(buf[4:8])
	s.BlockSize = binary.LittleEndian.Uint32(buf[8:12])
	s.BlockCount = binary.LittleEndian.Uint32(buf[12:16])
	s.RootBlock = binary.LittleEndian.Uint32(buf[16:20])
	s.BitmapBlock = binary.LittleEndian.Uint32(buf[20:24])
	s.BitmapBlocks = binary.LittleEndian.Uint32(buf[24:28])
	return s, nil
}
