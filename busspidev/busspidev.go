// Package busspidev adapts a Linux spidev handle (through
// github.com/daedaluz/goserial/spi) and a periph.io GPIO line into
// sd.Bus/sd.ChipSelect, so the driver can be bench-tested against a real SD
// card from a Linux SBC without any hardware fake (spec.md §4.A; the same
// data/chip-select split _examples/other_examples/…gentam-gice__flash.go
// uses for its SPI flash chip).
package busspidev

import (
	"github.com/daedaluz/goserial/spi"
	"periph.io/x/conn/v3/gpio"
)

// Bus wraps a goserial/spi.Device as sd.Bus (drivers.SPI): Tx for buffered
// transfers (the only method sd.Card calls, filler clocking included), and
// Transfer for callers that exchange a single byte.
type Bus struct {
	dev *spi.Device
}

// New binds a Bus to an already-opened spidev device. Open/Close of the
// underlying device is the caller's responsibility (board wiring in
// cmd/sdbench).
func New(dev *spi.Device) *Bus { return &Bus{dev: dev} }

// Tx performs one full-duplex transfer, matching drivers.SPI's Tx contract.
// spidev.Device.Tx allocates and returns its own read buffer; Tx copies it
// into r rather than changing that allocation contract.
func (b *Bus) Tx(w, r []byte) error {
	read, err := b.dev.Tx(w)
	if err != nil {
		return err
	}
	copy(r, read)
	return nil
}

// Transfer clocks out a single byte and returns what came back, matching
// drivers.SPI's Transfer contract.
func (b *Bus) Transfer(w byte) (byte, error) {
	read, err := b.dev.Tx([]byte{w})
	if err != nil {
		return 0, err
	}
	return read[0], nil
}

// ChipSelect builds an sd.ChipSelect from a periph.io GPIO line: assert
// drives it low, deassert drives it high, the active-low convention every
// SD-over-SPI card expects (spec.md §3, "Chip-select is a separate GPIO").
func ChipSelect(pin gpio.PinIO) func(assert bool) {
	return func(assert bool) {
		if assert {
			pin.Out(gpio.Low)
		} else {
			pin.Out(gpio.High)
		}
	}
}
