// Package sdtest provides a scriptable, in-memory replacement for the sd
// package's Bus interface, used by this module's sd and blockdev tests
// instead of real hardware.
package sdtest

// Bus records every byte written to it and replays a pre-loaded response
// stream for every byte read, satisfying sd.Bus without a real SPI
// peripheral. Zero value is ready to use.
type Bus struct {
	Written  []byte
	CSLog    []bool
	response []byte
	err      error
}

// Queue appends bytes to the response stream consumed by future reads.
func (b *Bus) Queue(bytes ...byte) { b.response = append(b.response, bytes...) }

// QueueIdle appends n bytes of 0xFF, the line's resting level.
func (b *Bus) QueueIdle(n int) {
	for i := 0; i < n; i++ {
		b.response = append(b.response, 0xFF)
	}
}

// QueueBlock appends a data block's bytes verbatim, useful for staging the
// payload a Read call should receive.
func (b *Bus) QueueBlock(block []byte) { b.response = append(b.response, block...) }

// FailWith makes every subsequent Tx return err.
func (b *Bus) FailWith(err error) { b.err = err }

// Tx implements sd.Bus (tinygo.org/x/drivers.SPI). It appends w to Written
// and fills r byte-for-byte from the queued response stream, padding with
// 0xFF once the stream is exhausted.
func (b *Bus) Tx(w, r []byte) error {
	if b.err != nil {
		return b.err
	}
	if len(w) > 0 {
		b.Written = append(b.Written, w...)
	}
	for i := range r {
		if len(b.response) == 0 {
			r[i] = 0xFF
			continue
		}
		r[i] = b.response[0]
		b.response = b.response[1:]
	}
	return nil
}

// Transfer implements sd.Bus's single-byte half of the tinygo SPI interface.
func (b *Bus) Transfer(w byte) (byte, error) {
	r := [1]byte{}
	err := b.Tx([]byte{w}, r[:])
	return r[0], err
}

// CS returns a ChipSelect callback that records every assert/deassert call,
// for tests that need to assert CS framing around a data phase.
func (b *Bus) CS() func(assert bool) {
	return func(assert bool) { b.CSLog = append(b.CSLog, assert) }
}
