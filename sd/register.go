package sd

import (
	"bytes"
	"encoding/binary"
	"io"
)

// CardType identifies the card family detected during Init, per spec.md §3.
type CardType uint8

const (
	TypeNone    CardType = iota // no card, or not yet initialized
	TypeV1                      // standard-capacity v1.x card
	TypeV2                      // standard-capacity v2.x card
	TypeV2HC                    // high/extended-capacity v2.x card (block-addressed)
	TypeUnknown                 // card responded but failed voltage/echo checks
)

func (t CardType) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeV1:
		return "v1"
	case TypeV2:
		return "v2"
	case TypeV2HC:
		return "v2hc"
	default:
		return "unknown"
	}
}

// CID is the Card Identification register, read via CMD10.
type CID struct {
	ManufacturerID      uint8
	OEMApplicationID    uint16
	prodName            [5]byte
	productRev          byte
	ProductSerialNumber uint32
	date                [2]byte
}

func decodeCID(b []byte) (CID, error) {
	if len(b) < 16 {
		return CID{}, io.ErrShortBuffer
	}
	return CID{
		ManufacturerID:      b[0],
		OEMApplicationID:    binary.BigEndian.Uint16(b[1:3]),
		prodName:            [5]byte{b[3], b[4], b[5], b[6], b[7]},
		productRev:          b[8],
		ProductSerialNumber: binary.BigEndian.Uint32(b[9:13]),
		date:                [2]byte{b[13], b[14]},
	}, nil
}

// ProductName returns the NUL-terminated product name field as a string.
func (c *CID) ProductName() string {
	idx := bytes.IndexByte(c.prodName[:], 0)
	if idx < 0 {
		return string(c.prodName[:])
	}
	return string(c.prodName[:idx])
}

// ProductRevision returns the n.m product revision.
func (c *CID) ProductRevision() (n, m uint8) { return c.productRev >> 4, c.productRev & 0x0F }

// ManufacturingDate returns the year (full, e.g. 2024) and month (1-12)
// decoded from the CID's 12-bit date field.
func (c *CID) ManufacturingDate() (year int, month int) {
	raw := uint16(c.date[0]&0x0F)<<8 | uint16(c.date[1])
	month = int(raw & 0x0F)
	year = 2000 + int(raw>>4)
	return
}

// CSD is the Card Specific Data register, read via CMD9. Layout is shared
// between CSD v1 and v2; the bit ranges that differ are resolved by
// csdVersion in the accessors below, matching spec.md §4.C step 9.
type CSD struct {
	data [16]byte
}

func decodeCSD(b []byte) (CSD, error) {
	if len(b) < 16 {
		return CSD{}, io.ErrShortBuffer
	}
	var csd CSD
	copy(csd.data[:], b)
	return csd, nil
}

// Version returns 1 or 2 for CSD structure version 0 or 1 respectively.
func (c *CSD) Version() int {
	if c.data[0]>>6 == 1 {
		return 2
	}
	return 1
}

func (c *CSD) readBlockLen() uint8 { return c.data[5] & 0x0F }

func (c *CSD) eraseBlockEnabled() bool { return (c.data[10]>>6)&1 != 0 }

// sectorSize is the SECTOR_SIZE field (erase sector size in write blocks - 1).
func (c *CSD) sectorSize() uint8 {
	return ((c.data[10] & 0x3F) << 1) | (c.data[11] >> 7)
}

func (c *CSD) csizeV1() uint16 {
	return uint16(c.data[8]>>6) | uint16(c.data[7])<<2 | uint16(c.data[6]&0x03)<<10
}

func (c *CSD) csizeMultV1() uint8 {
	return (c.data[9]&0x03)<<1 | (c.data[10] >> 7)
}

func (c *CSD) csizeV2() uint32 {
	return uint32(c.data[7]&0x3F)<<16 | uint32(c.data[8])<<8 | uint32(c.data[9])
}

// SectorCount returns the card capacity in 512-byte sectors, computed per
// spec.md §4.C step 9:
//
//	CSD v1: (C_SIZE+1) * 2^(C_SIZE_MULT+2) * 2^READ_BL_LEN / 512
//	CSD v2: (C_SIZE+1) * 1024
func (c *CSD) SectorCount() uint64 {
	if c.Version() == 2 {
		return (uint64(c.csizeV2()) + 1) * 1024
	}
	csize := uint64(c.csizeV1())
	mult := uint64(1) << (uint64(c.csizeMultV1()) + 2)
	blockLen := uint64(1) << uint64(c.readBlockLen())
	return (csize + 1) * mult * blockLen / 512
}

// EraseGroupSize returns the erase group size in bytes, per spec.md §3:
// 512 if ERASE_BLK_EN, else 512*(SECTOR_SIZE+1).
func (c *CSD) EraseGroupSize() uint32 {
	if c.eraseBlockEnabled() {
		return 512
	}
	return 512 * (uint32(c.sectorSize()) + 1)
}
