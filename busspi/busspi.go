// Package busspi wires sd.Card to an on-board SPI peripheral. sd.Bus is
// already a type alias of tinygo.org/x/drivers.SPI (the teacher's own
// dependency), so any configured tinygo SPI machine satisfies it directly —
// this package supplies the ChipSelect half, which spec.md §3 requires to
// be a GPIO line the SPI peripheral never drives itself, plus the
// optional interrupt-driven bus variant spec.md §4.A describes.
package busspi

import "errors"

// ErrInterruptDriven is returned by Bus.Transfer once interrupt callbacks
// are registered: spec.md §4.A requires the synchronous transfer
// primitive to refuse to run while the bus is servicing on_tx/on_rx
// instead.
var ErrInterruptDriven = errors.New("busspi: transfer refused, interrupt callbacks registered")

// OutputPin is the single method tinygo's machine.Pin exposes that this
// package needs, kept as a local interface so this module does not import
// board-specific machine packages.
type OutputPin interface {
	Set(value bool)
}

// ChipSelect builds an sd.ChipSelect from a board GPIO pin: low asserts,
// high deasserts, the active-low convention every SD-over-SPI card expects.
func ChipSelect(pin OutputPin) func(assert bool) {
	return func(assert bool) {
		pin.Set(!assert)
	}
}

// SPI is the subset of tinygo.org/x/drivers.SPI (sd.Bus) a Bus wraps: the
// buffered Tx exchange sd.Card's command/data paths use, and the
// single-byte Transfer the interrupt-driven variant guards.
type SPI interface {
	Tx(w, r []byte) error
	Transfer(w byte) (byte, error)
}

// Bus wraps an on-board SPI peripheral with the optional interrupt-driven
// variant spec.md §4.A describes: once on_tx/on_rx callbacks are
// registered via RegisterInterrupt, the peripheral is presumed to clock
// bytes from its own ISR, and the synchronous Transfer primitive must
// refuse to run rather than race it. Tx is unaffected — spec.md §4.A only
// singles out the single-byte transfer primitive, and sd.Card never calls
// Transfer itself (it drives the bus through Tx alone), so the guard only
// matters to callers that use Bus directly as a single-byte sd.Bus.
type Bus struct {
	spi  SPI
	onTx func() byte
	onRx func(byte)
}

// New wraps spi for synchronous use. The returned *Bus satisfies sd.Bus
// directly.
func New(spi SPI) *Bus { return &Bus{spi: spi} }

// RegisterInterrupt installs the on_tx/on_rx callbacks spec.md §4.A
// describes and switches the bus to the interrupt-driven variant: onTx is
// called to produce each outgoing byte, onRx receives each incoming byte.
// Passing nil for both deregisters and returns the bus to synchronous use.
func (b *Bus) RegisterInterrupt(onTx func() byte, onRx func(byte)) {
	b.onTx = onTx
	b.onRx = onRx
}

// Registered reports whether interrupt callbacks are currently installed.
func (b *Bus) Registered() bool { return b.onTx != nil || b.onRx != nil }

// Tx performs a full-duplex exchange, satisfying sd.Bus.
func (b *Bus) Tx(w, r []byte) error { return b.spi.Tx(w, r) }

// Transfer exchanges one byte synchronously, satisfying sd.Bus — unless
// interrupt callbacks are registered, in which case it refuses to run and
// returns (0, ErrInterruptDriven), exactly as spec.md §4.A requires.
func (b *Bus) Transfer(w byte) (byte, error) {
	if b.Registered() {
		return 0, ErrInterruptDriven
	}
	return b.spi.Transfer(w)
}

// ServiceInterrupt drives one byte through the registered on_tx/on_rx
// callbacks: it asks onTx for the next byte to send, clocks it through the
// underlying peripheral, and hands the received byte to onRx. It stands in
// for the hardware ISR the original peripheral fires on completion; a
// board wiring that uses the interrupt-driven variant calls this from its
// own interrupt handler instead of calling Transfer.
func (b *Bus) ServiceInterrupt() error {
	if !b.Registered() {
		return nil
	}
	var out byte
	if b.onTx != nil {
		out = b.onTx()
	}
	in, err := b.spi.Transfer(out)
	if err != nil {
		return err
	}
	if b.onRx != nil {
		b.onRx(in)
	}
	return nil
}
