// Package fsshim adapts a blockdev.Callbacks facade to the block/offset
// callback shape a filesystem library's config table expects (spec.md
// §4.E). Each method here is the Go equivalent of one of the four free
// functions the original cast an opaque context pointer back through: the
// receiver *is* that context.
package fsshim

import "github.com/DelfiSpace/SDCard/blockdev"

// Table implements flashfs.blockIO against one block-device facade. The
// filesystem above it issues reads and programs at arbitrary sub-block
// offsets (a 4-byte chain pointer, a 48-byte directory entry, ...); a real
// block device only ever accepts whole multiples of its own ReadSize/
// ProgramSize at an aligned address (blockdev.Device.isValidRead/
// isValidProgram, grounded in original_source/SDCard.h's is_valid_read/
// is_valid_program). Table is the read-modify-write cache
// original_source/LittleFS.h's configured CacheSize implies: it rounds
// every sub-block request out to the device's own alignment before
// touching bd, so callers above it can keep addressing single bytes.
type Table struct {
	bd        blockdev.Callbacks
	blockSize uint64
	readAlign uint64
	progAlign uint64
}

// New binds a Table to a block device and the geometry the filesystem
// above it was configured with. blockSize must be a multiple of the
// device's own ReadSize/ProgramSize, matching original_source/LittleFS.h's
// clamped geometry, so every Table-emitted access lands on a device block
// boundary once rounded.
func New(bd blockdev.Callbacks, blockSize uint64) *Table {
	return &Table{
		bd:        bd,
		blockSize: blockSize,
		readAlign: bd.ReadSize(),
		progAlign: bd.ProgramSize(),
	}
}

// alignOut rounds [addr, addr+n) out to the nearest enclosing multiple of
// align, the range the device will actually transfer.
func alignOut(addr, n, align uint64) (start, end uint64) {
	start = (addr / align) * align
	end = ((addr + n + align - 1) / align) * align
	return start, end
}

// Read reads block*blockSize+off for len(buf) bytes, buffering through a
// device-aligned read when that range doesn't already fall on a ReadSize
// boundary.
func (t *Table) Read(block uint32, off uint32, buf []byte) error {
	addr := uint64(block)*t.blockSize + uint64(off)
	start, end := alignOut(addr, uint64(len(buf)), t.readAlign)
	if start == addr && end-start == uint64(len(buf)) {
		return t.bd.Read(buf, addr, uint64(len(buf)))
	}
	tmp := make([]byte, end-start)
	if err := t.bd.Read(tmp, start, end-start); err != nil {
		return err
	}
	copy(buf, tmp[addr-start:])
	return nil
}

// Prog writes buf at block*blockSize+off, buffering through a device-
// aligned read-modify-write when that range doesn't already fall on a
// ProgramSize boundary: read the enclosing aligned range, splice buf into
// it, and program the whole range back.
func (t *Table) Prog(block uint32, off uint32, buf []byte) error {
	addr := uint64(block)*t.blockSize + uint64(off)
	start, end := alignOut(addr, uint64(len(buf)), t.progAlign)
	if start == addr && end-start == uint64(len(buf)) {
		return t.bd.Program(buf, addr, uint64(len(buf)))
	}
	// The read-back below assumes readAlign divides progAlign (true for
	// every Callbacks this module wires up, where both equal the card's
	// 512-byte block size); a device with a coarser program granularity
	// than its read granularity would need a second rounding pass here.
	tmp := make([]byte, end-start)
	if err := t.bd.Read(tmp, start, end-start); err != nil {
		return err
	}
	copy(tmp[addr-start:], buf)
	return t.bd.Program(tmp, start, end-start)
}

// Erase forwards the whole block to the block device's no-op erase.
func (t *Table) Erase(block uint32) error {
	return t.bd.Erase(uint64(block)*t.blockSize, t.blockSize)
}

// Sync forwards to the block device.
func (t *Table) Sync() error { return t.bd.Sync() }
