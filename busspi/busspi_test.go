package busspi

import "testing"

// fakeSPI is a bare tinygo.org/x/drivers.SPI stand-in, recording what it
// was asked to clock so tests can check Bus's routing and guard behavior.
type fakeSPI struct {
	txCalls       int
	transferCalls int
	transferIn    []byte
}

func (f *fakeSPI) Tx(w, r []byte) error {
	f.txCalls++
	return nil
}

func (f *fakeSPI) Transfer(w byte) (byte, error) {
	f.transferCalls++
	f.transferIn = append(f.transferIn, w)
	return ^w, nil
}

func TestChipSelectActiveLow(t *testing.T) {
	var got bool
	pin := outputPinFunc(func(v bool) { got = v })
	cs := ChipSelect(pin)

	cs(true)
	if got {
		t.Fatal("ChipSelect(true) drove the pin high, want low (active-low assert)")
	}
	cs(false)
	if !got {
		t.Fatal("ChipSelect(false) drove the pin low, want high (deassert)")
	}
}

type outputPinFunc func(bool)

func (f outputPinFunc) Set(v bool) { f(v) }

func TestBusTransferPassesThroughWhenUnregistered(t *testing.T) {
	spi := &fakeSPI{}
	bus := New(spi)

	got, err := bus.Transfer(0x42)
	if err != nil {
		t.Fatalf("Transfer() = (_, %v), want nil", err)
	}
	if got != ^byte(0x42) {
		t.Fatalf("Transfer() = %#x, want %#x", got, ^byte(0x42))
	}
	if spi.transferCalls != 1 {
		t.Fatalf("underlying Transfer called %d times, want 1", spi.transferCalls)
	}
}

func TestBusTransferRefusedOnceInterruptRegistered(t *testing.T) {
	spi := &fakeSPI{}
	bus := New(spi)
	bus.RegisterInterrupt(func() byte { return 0 }, func(byte) {})

	got, err := bus.Transfer(0x42)
	if err != ErrInterruptDriven {
		t.Fatalf("Transfer() err = %v, want ErrInterruptDriven", err)
	}
	if got != 0 {
		t.Fatalf("Transfer() = %#x, want 0", got)
	}
	if spi.transferCalls != 0 {
		t.Fatal("Transfer() reached the underlying bus while interrupt-driven")
	}
}

func TestBusTxUnaffectedByInterruptRegistration(t *testing.T) {
	spi := &fakeSPI{}
	bus := New(spi)
	bus.RegisterInterrupt(func() byte { return 0 }, func(byte) {})

	if err := bus.Tx([]byte{1, 2, 3}, make([]byte, 3)); err != nil {
		t.Fatalf("Tx() = %v, want nil", err)
	}
	if spi.txCalls != 1 {
		t.Fatalf("underlying Tx called %d times, want 1", spi.txCalls)
	}
}

func TestRegisterInterruptNilNilDeregisters(t *testing.T) {
	spi := &fakeSPI{}
	bus := New(spi)
	bus.RegisterInterrupt(func() byte { return 0 }, func(byte) {})
	if !bus.Registered() {
		t.Fatal("Registered() = false after RegisterInterrupt, want true")
	}

	bus.RegisterInterrupt(nil, nil)
	if bus.Registered() {
		t.Fatal("Registered() = true after RegisterInterrupt(nil, nil), want false")
	}
	if _, err := bus.Transfer(0x7); err != nil {
		t.Fatalf("Transfer() after deregister = %v, want nil", err)
	}
}

func TestServiceInterruptRoutesOnTxAndOnRx(t *testing.T) {
	spi := &fakeSPI{}
	bus := New(spi)

	var gotRx byte
	var rxCalled bool
	bus.RegisterInterrupt(
		func() byte { return 0x55 },
		func(b byte) { gotRx = b; rxCalled = true },
	)

	if err := bus.ServiceInterrupt(); err != nil {
		t.Fatalf("ServiceInterrupt() = %v, want nil", err)
	}
	if len(spi.transferIn) != 1 || spi.transferIn[0] != 0x55 {
		t.Fatalf("underlying Transfer saw %v, want [0x55]", spi.transferIn)
	}
	if !rxCalled || gotRx != ^byte(0x55) {
		t.Fatalf("onRx got (%v, %#x), want (true, %#x)", rxCalled, gotRx, ^byte(0x55))
	}
}

func TestServiceInterruptNoOpWhenUnregistered(t *testing.T) {
	spi := &fakeSPI{}
	bus := New(spi)

	if err := bus.ServiceInterrupt(); err != nil {
		t.Fatalf("ServiceInterrupt() = %v, want nil", err)
	}
	if spi.transferCalls != 0 {
		t.Fatal("ServiceInterrupt() clocked a byte while no callbacks were registered")
	}
}
