// Package blockdev adapts an sd.Card into the uniform block-device facade
// the filesystem layer is written against: init/deinit/read/program/erase/
// sync plus the geometry accessors a filesystem needs to pick its own block
// size (spec.md §4.D).
package blockdev

import "github.com/DelfiSpace/SDCard/sd"

const blockSize = 512

// Callbacks is the facade fsshim and flashfs depend on, letting tests stand
// in a fake block device without touching sd.Card at all.
type Callbacks interface {
	Init() error
	Deinit() error
	Read(buf []byte, addr, size uint64) error
	Program(buf []byte, addr, size uint64) error
	Erase(addr, size uint64) error
	Sync() error
	Size() uint64
	ReadSize() uint64
	ProgramSize() uint64
	EraseSize() uint64
	Type() string
}

// Device wraps one sd.Card as a Callbacks implementation.
type Device struct {
	card *sd.Card
}

// New binds a Device to an already-constructed Card. Init must still be
// called before any data operation.
func New(card *sd.Card) *Device { return &Device{card: card} }

func (d *Device) Init() error   { return d.card.Init() }
func (d *Device) Deinit() error { return d.card.Deinit() }

// Read enforces is_valid_read (original_source/SDCard.h) before delegating.
func (d *Device) Read(buf []byte, addr, size uint64) error {
	if !d.isValidRead(addr, size) {
		return sd.ErrParameter
	}
	return d.card.Read(buf, addr, size)
}

// Program enforces is_valid_program before delegating.
func (d *Device) Program(buf []byte, addr, size uint64) error {
	if !d.isValidProgram(addr, size) {
		return sd.ErrParameter
	}
	return d.card.Program(buf, addr, size)
}

// Erase is a no-op: the card erases implicitly on write, so there is
// nothing below this layer to pre-erase (spec.md §4.D).
func (d *Device) Erase(addr, size uint64) error {
	if !d.isValidProgram(addr, size) {
		return sd.ErrParameter
	}
	return nil
}

// Sync is a no-op: there is no write cache below this layer.
func (d *Device) Sync() error { return nil }

func (d *Device) Size() uint64        { return d.card.Size() }
func (d *Device) ReadSize() uint64    { return blockSize }
func (d *Device) ProgramSize() uint64 { return blockSize }
func (d *Device) EraseSize() uint64   { return blockSize }
func (d *Device) Type() string        { return "SD" }

func (d *Device) isValidRead(addr, size uint64) bool {
	rs := d.ReadSize()
	return addr%rs == 0 && size%rs == 0 && addr+size <= d.Size()
}

func (d *Device) isValidProgram(addr, size uint64) bool {
	ps := d.ProgramSize()
	return addr%ps == 0 && size%ps == 0 && addr+size <= d.Size()
}
