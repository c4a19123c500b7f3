package fsshim

import (
	"bytes"
	"errors"
	"testing"
)

var errUnaligned = errors.New("fsshim_test: unaligned access")

// fakeDevice is an in-memory blockdev.Callbacks, standing in for the real
// SD-backed facade. It enforces the same addr%align==0 && size%align==0
// contract blockdev.Device.isValidRead/isValidProgram enforce, so a Table
// bug that leaks a sub-block request through to the device fails here
// exactly as it would against real hardware.
type fakeDevice struct {
	data       []byte
	readCalls  []uint64
	progCalls  []uint64
	eraseCalls []uint64
	synced     bool
}

func newFakeDevice(size uint64) *fakeDevice { return &fakeDevice{data: make([]byte, size)} }

func (f *fakeDevice) Init() error   { return nil }
func (f *fakeDevice) Deinit() error { return nil }
func (f *fakeDevice) Read(buf []byte, addr, size uint64) error {
	if addr%f.ReadSize() != 0 || size%f.ReadSize() != 0 {
		return errUnaligned
	}
	f.readCalls = append(f.readCalls, addr)
	copy(buf, f.data[addr:addr+size])
	return nil
}
func (f *fakeDevice) Program(buf []byte, addr, size uint64) error {
	if addr%f.ProgramSize() != 0 || size%f.ProgramSize() != 0 {
		return errUnaligned
	}
	f.progCalls = append(f.progCalls, addr)
	copy(f.data[addr:addr+size], buf)
	return nil
}
func (f *fakeDevice) Erase(addr, size uint64) error {
	if addr%f.EraseSize() != 0 || size%f.EraseSize() != 0 {
		return errUnaligned
	}
	f.eraseCalls = append(f.eraseCalls, addr)
	return nil
}
func (f *fakeDevice) Sync() error         { f.synced = true; return nil }
func (f *fakeDevice) Size() uint64        { return uint64(len(f.data)) }
func (f *fakeDevice) ReadSize() uint64    { return 512 }
func (f *fakeDevice) ProgramSize() uint64 { return 512 }
func (f *fakeDevice) EraseSize() uint64   { return 512 }
func (f *fakeDevice) Type() string        { return "fake" }

func TestTableReadOffsetsIntoBlock(t *testing.T) {
	dev := newFakeDevice(4096)
	copy(dev.data[512+10:], []byte("hello"))
	tbl := New(dev, 512)

	buf := make([]byte, 5)
	if err := tbl.Read(1, 10, buf); err != nil {
		t.Fatalf("Read() = %v, want nil", err)
	}
	if !bytes.Equal(buf, []byte("hello")) {
		t.Fatalf("Read() = %q, want %q", buf, "hello")
	}
	// The sub-block request must have been rounded out to a whole,
	// block-aligned device read, never passed through verbatim.
	if len(dev.readCalls) != 1 || dev.readCalls[0] != 512 {
		t.Fatalf("device saw addr %v, want [512] (block-aligned)", dev.readCalls)
	}
}

func TestTableReadWholeBlockPassesThroughUnbuffered(t *testing.T) {
	dev := newFakeDevice(4096)
	copy(dev.data[512:1024], []byte("0123456789abcdef"))
	tbl := New(dev, 512)

	buf := make([]byte, 512)
	if err := tbl.Read(1, 0, buf); err != nil {
		t.Fatalf("Read() = %v, want nil", err)
	}
	if !bytes.Equal(buf[:16], []byte("0123456789abcdef")) {
		t.Fatalf("Read() = %q, want prefix %q", buf[:16], "0123456789abcdef")
	}
	if len(dev.readCalls) != 1 || dev.readCalls[0] != 512 {
		t.Fatalf("device saw addr %v, want [512]", dev.readCalls)
	}
}

func TestTableProgWritesAtBlockOffset(t *testing.T) {
	dev := newFakeDevice(4096)
	tbl := New(dev, 512)

	if err := tbl.Prog(2, 100, []byte("x")); err != nil {
		t.Fatalf("Prog() = %v, want nil", err)
	}
	if dev.data[2*512+100] != 'x' {
		t.Fatalf("Prog() wrote to wrong offset")
	}
	// The device only ever sees one block-aligned, block-sized program:
	// a read to fetch the block, and a program to write it back.
	if len(dev.progCalls) != 1 || dev.progCalls[0] != 2*512 {
		t.Fatalf("device saw prog addr %v, want [1024] (block-aligned)", dev.progCalls)
	}
}

func TestTableProgPreservesRestOfBlock(t *testing.T) {
	dev := newFakeDevice(4096)
	copy(dev.data[0:512], bytes.Repeat([]byte{0xAA}, 512))
	tbl := New(dev, 512)

	if err := tbl.Prog(0, 48, []byte("dirent!!")); err != nil {
		t.Fatalf("Prog() = %v, want nil", err)
	}
	if !bytes.Equal(dev.data[48:56], []byte("dirent!!")) {
		t.Fatalf("Prog() did not write requested bytes")
	}
	if dev.data[0] != 0xAA || dev.data[511] != 0xAA {
		t.Fatalf("Prog() clobbered bytes outside the requested range")
	}
}

func TestTableEraseWholeBlock(t *testing.T) {
	dev := newFakeDevice(2048)
	tbl := New(dev, 512)

	if err := tbl.Erase(3); err != nil {
		t.Fatalf("Erase() = %v, want nil", err)
	}
	if len(dev.eraseCalls) != 1 || dev.eraseCalls[0] != 3*512 {
		t.Fatalf("device saw erase addr %v, want [1536]", dev.eraseCalls)
	}
}

func TestTableSync(t *testing.T) {
	dev := newFakeDevice(512)
	tbl := New(dev, 512)
	if err := tbl.Sync(); err != nil {
		t.Fatalf("Sync() = %v, want nil", err)
	}
	if !dev.synced {
		t.Fatal("Sync() did not reach the device")
	}
}
