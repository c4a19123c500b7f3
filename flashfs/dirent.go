package flashfs

import (
	"bytes"
	"encoding/binary"
)

const (
	kindFree = 0
	kindFile = 1
	kindDir  = 2

	direntSize = 48 // 1 kind + 31 name + 4 size + 4 firstBlock + 8 reserved
)

// dirent is one fixed-size directory entry. Directory contents are a chain
// of blocks, each packed with as many dirents as fit in (blockSize-4) bytes;
// the trailing 4 bytes of every directory block are the next-block pointer
// (0 terminates the chain), the same linked-block shape file data uses.
type dirent struct {
	kind       byte
	name       [nameMax]byte
	size       uint32
	firstBlock uint32
}

func (d *dirent) setName(name string) error {
	if len(name) > nameMax {
		return ErrNameTooLong
	}
	var buf [nameMax]byte
	copy(buf[:], name)
	d.name = buf
	return nil
}

func (d *dirent) nameString() string {
	idx := bytes.IndexByte(d.name[:], 0)
	if idx < 0 {
		return string(d.name[:])
	}
	return string(d.name[:idx])
}

func (d *dirent) marshal(buf []byte) {
	buf[0] = d.kind
	copy(buf[1:1+nameMax], d.name[:])
	binary.LittleEndian.PutUint32(buf[32:36], d.size)
	binary.LittleEndian.PutUint32(buf[36:40], d.firstBlock)
}

func unmarshalDirent(buf []byte) dirent {
	var d dirent
	d.kind = buf[0]
	copy(d.name[:], buf[1:1+nameMax])
	d.size = binary.LittleEndian.Uint32(buf[32:36])
	d.firstBlock = binary.LittleEndian.Uint32(buf[36:40])
	return d
}

func entriesPerBlock(blockSize uint32) int {
	return int((blockSize - 4) / direntSize)
}

// dirSlot locates one directory entry's storage: the block holding it and
// its byte offset within that block.
type dirSlot struct {
	block  uint32
	offset uint32
}
