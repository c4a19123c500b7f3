package blockdev

import (
	"errors"
	"testing"

	"github.com/DelfiSpace/SDCard/internal/sdtest"
	"github.com/DelfiSpace/SDCard/sd"
)

func newTestDevice(t *testing.T) (*Device, *sdtest.Bus) {
	t.Helper()
	bus := &sdtest.Bus{}
	card := sd.NewCard(bus, bus.CS())
	return New(card), bus
}

func TestDeviceGeometry(t *testing.T) {
	d, _ := newTestDevice(t)
	if d.ReadSize() != 512 || d.ProgramSize() != 512 || d.EraseSize() != 512 {
		t.Fatalf("geometry = %d/%d/%d, want 512/512/512", d.ReadSize(), d.ProgramSize(), d.EraseSize())
	}
	if d.Type() != "SD" {
		t.Errorf("Type() = %q, want %q", d.Type(), "SD")
	}
}

func TestDeviceReadRejectsUnaligned(t *testing.T) {
	d, _ := newTestDevice(t)
	buf := make([]byte, 512)
	if err := d.Read(buf, 1, 512); !errors.Is(err, sd.ErrParameter) {
		t.Fatalf("Read() = %v, want ErrParameter", err)
	}
}

func TestDeviceProgramRejectsOutOfRange(t *testing.T) {
	d, _ := newTestDevice(t)
	buf := make([]byte, 512)
	if err := d.Program(buf, 0, 512); !errors.Is(err, sd.ErrParameter) {
		t.Fatalf("Program() = %v, want ErrParameter (card not initialized, size 0)", err)
	}
}

func TestDeviceEraseAndSyncAreNoops(t *testing.T) {
	d, _ := newTestDevice(t)
	if err := d.Sync(); err != nil {
		t.Errorf("Sync() = %v, want nil", err)
	}
	// Erase still validates alignment even though it performs no I/O.
	if err := d.Erase(1, 512); !errors.Is(err, sd.ErrParameter) {
		t.Errorf("Erase() with unaligned addr = %v, want ErrParameter", err)
	}
}
