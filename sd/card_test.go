package sd

import (
	"errors"
	"testing"

	"github.com/DelfiSpace/SDCard/internal/sdtest"
)

var errBusGone = errors.New("sdtest: bus gone")

func newTestCard(bus *sdtest.Bus) *Card {
	c := NewCard(bus, bus.CS())
	return c
}

// TestInitV1HappyPath walks a full Init() call through the wire-level byte
// sequence a legacy (pre-v2, no CMD8 support) card would produce, checking
// that the driver latches the detected type and decoded registers.
func TestInitV1HappyPath(t *testing.T) {
	bus := &sdtest.Bus{}
	c := newTestCard(bus)

	// CMD0: waitNotBusy sees idle line, R1 = idle.
	bus.Queue(0xFF, r1IdleState)
	// CMD8: card reports illegal command -> legacy v1 path, no echo read.
	bus.Queue(r1IdleState | r1IllegalCommand)
	// ACMD41: waitNotBusy, CMD55 R1, CMD41 R1 (idle cleared -> init done).
	bus.Queue(0xFF, r1IdleState, 0x00)
	// CMD59 (CRC off): waitNotBusy, R1.
	bus.Queue(0xFF, 0x00)
	// CMD9 (CSD): waitNotBusy, R1, start token, 16 register bytes, 2 CRC bytes.
	bus.Queue(0xFF, 0x00, tokenStartBlock)
	var csdBytes [16]byte
	csdBytes[0] = 0x00
	csdBytes[5] = 0x09
	csdBytes[10] = 0x40
	bus.QueueBlock(csdBytes[:])
	bus.Queue(0x00, 0x00)
	// CMD10 (CID): same shape.
	bus.Queue(0xFF, 0x00, tokenStartBlock)
	var cidBytes [16]byte
	cidBytes[0] = 0x01
	bus.QueueBlock(cidBytes[:])
	bus.Queue(0x00, 0x00)
	// CMD16 (set block length): waitNotBusy, R1.
	bus.Queue(0xFF, 0x00)

	if err := c.Init(); err != nil {
		t.Fatalf("Init() = %v, want nil", err)
	}
	if c.Type() != TypeV1 {
		t.Errorf("Type() = %v, want %v", c.Type(), TypeV1)
	}
	if got, want := c.Size(), uint64(4*blockSize); got != want {
		t.Errorf("Size() = %d, want %d", got, want)
	}
	if !c.initialized {
		t.Error("initialized = false after successful Init")
	}
	// A second Init must be a no-op (spec's idempotence requirement): it
	// must not touch the bus again.
	written := len(bus.Written)
	if err := c.Init(); err != nil {
		t.Fatalf("second Init() = %v, want nil", err)
	}
	if len(bus.Written) != written {
		t.Error("second Init() issued bus traffic, want idempotent no-op")
	}
}

// TestInitCMD8EchoMismatch covers the scenario where a v2 card replies to
// CMD8 but echoes back the wrong check pattern: Init must fail with
// ErrUnusable and latch TypeUnknown.
func TestInitCMD8EchoMismatch(t *testing.T) {
	bus := &sdtest.Bus{}
	c := newTestCard(bus)

	bus.Queue(0xFF, r1IdleState) // CMD0
	bus.Queue(r1IdleState)       // CMD8 R1: valid, not illegal -> echo read follows
	bus.Queue(0x00, 0x00, 0x02, 0xAA) // wrong echo pattern (want 0x1AA)

	err := c.Init()
	if !errors.Is(err, ErrUnusable) {
		t.Fatalf("Init() = %v, want ErrUnusable", err)
	}
	if c.Type() != TypeUnknown {
		t.Errorf("Type() = %v, want %v", c.Type(), TypeUnknown)
	}
}

// TestInitNoCardNoResponse covers CMD0 never getting an R1 back: the line
// stays at the 0xFF idle level for every poll, so pollR1 exhausts its bound
// and goIdle surfaces ErrNoResponse.
func TestInitNoCardNoResponse(t *testing.T) {
	bus := &sdtest.Bus{} // empty response stream: every read defaults to 0xFF
	c := newTestCard(bus)

	err := c.Init()
	if !errors.Is(err, ErrNoResponse) {
		t.Fatalf("Init() = %v, want ErrNoResponse", err)
	}
}

func TestReadSingleBlock(t *testing.T) {
	bus := &sdtest.Bus{}
	c := newTestCard(bus)
	c.initialized = true
	c.kind = TypeV2HC
	c.sectors = 1024

	want := make([]byte, blockSize)
	for i := range want {
		want[i] = byte(i)
	}
	bus.Queue(0xFF, 0x00, tokenStartBlock) // waitNotBusy, CMD17 R1, start token
	bus.QueueBlock(want)
	crc := CRC16(want)
	bus.Queue(byte(crc>>8), byte(crc))

	got := make([]byte, blockSize)
	if err := c.Read(got, 0, blockSize); err != nil {
		t.Fatalf("Read() = %v, want nil", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Read() byte %d = %02X, want %02X", i, got[i], want[i])
		}
	}
}

func TestReadRejectsMisalignedAddress(t *testing.T) {
	bus := &sdtest.Bus{}
	c := newTestCard(bus)
	c.initialized = true
	c.kind = TypeV2HC
	c.sectors = 1024

	buf := make([]byte, blockSize)
	if err := c.Read(buf, 1, blockSize); !errors.Is(err, ErrParameter) {
		t.Fatalf("Read() with misaligned address = %v, want ErrParameter", err)
	}
}

func TestInitBusFailure(t *testing.T) {
	bus := &sdtest.Bus{}
	bus.FailWith(errBusGone)
	c := newTestCard(bus)

	if err := c.Init(); !errors.Is(err, errBusGone) {
		t.Fatalf("Init() = %v, want %v", err, errBusGone)
	}
}

func TestReadBeforeInit(t *testing.T) {
	bus := &sdtest.Bus{}
	c := newTestCard(bus)
	buf := make([]byte, blockSize)
	if err := c.Read(buf, 0, blockSize); !errors.Is(err, ErrNoInit) {
		t.Fatalf("Read() before Init = %v, want ErrNoInit", err)
	}
}

func TestProgramSingleBlockAccepted(t *testing.T) {
	bus := &sdtest.Bus{}
	c := newTestCard(bus)
	c.initialized = true
	c.kind = TypeV2HC
	c.sectors = 1024

	bus.Queue(0xFF, 0x00)           // waitNotBusy, CMD24 R1
	bus.Queue(dataRespAccepted)     // data-response token
	bus.Queue(0xFF)                 // waitNotBusy after program (line released)

	block := make([]byte, blockSize)
	if err := c.Program(block, 0, blockSize); err != nil {
		t.Fatalf("Program() = %v, want nil", err)
	}
}

func TestProgramSingleBlockCRCRejected(t *testing.T) {
	bus := &sdtest.Bus{}
	c := newTestCard(bus)
	c.initialized = true
	c.kind = TypeV2HC
	c.sectors = 1024

	bus.Queue(0xFF, 0x00)
	bus.Queue(dataRespCRCError)

	block := make([]byte, blockSize)
	if err := c.Program(block, 0, blockSize); !errors.Is(err, ErrCRC) {
		t.Fatalf("Program() = %v, want ErrCRC", err)
	}
}

func TestProgramMultiBlockAccepted(t *testing.T) {
	bus := &sdtest.Bus{}
	c := newTestCard(bus)
	c.initialized = true
	c.kind = TypeV2HC
	c.sectors = 1024

	bus.Queue(0xFF, r1IdleState, 0x00) // ACMD23: waitNotBusy, CMD55 R1, CMD23 R1
	bus.Queue(0xFF, 0x00)              // CMD25: waitNotBusy, R1
	bus.Queue(dataRespAccepted, 0xFF)  // block 0: data-response, waitNotBusy
	bus.Queue(dataRespAccepted, 0xFF)  // block 1: data-response, waitNotBusy
	bus.Queue(0xFF)                    // waitNotBusy after stop-tran token
	bus.Queue(0xFF, 0x00)              // CMD12: stuff byte, R1

	block := make([]byte, 2*blockSize)
	if err := c.Program(block, 0, uint64(len(block))); err != nil {
		t.Fatalf("Program() = %v, want nil", err)
	}
}

func TestEraseGroupSizeAndCSDAccessor(t *testing.T) {
	bus := &sdtest.Bus{}
	c := newTestCard(bus)
	var raw [16]byte
	raw[10] = 0x40
	csd, _ := decodeCSD(raw[:])
	c.csd = csd
	c.eraseGroup = csd.EraseGroupSize()
	if c.EraseGroupSize() != 512 {
		t.Errorf("EraseGroupSize() = %d, want 512", c.EraseGroupSize())
	}
	if got := c.CSD(); got != csd {
		t.Errorf("CSD() mismatch")
	}
}

func TestDeinitPreservesFillerAndResetsType(t *testing.T) {
	bus := &sdtest.Bus{}
	c := newTestCard(bus)
	c.initialized = true
	c.kind = TypeV2HC

	if err := c.Deinit(); err != nil {
		t.Fatalf("Deinit() = %v, want nil", err)
	}
	if c.Type() != TypeNone {
		t.Errorf("Type() after Deinit = %v, want %v", c.Type(), TypeNone)
	}
	if c.initialized {
		t.Error("initialized = true after Deinit")
	}
	for i, b := range c.filler {
		if b != 0xFF {
			t.Fatalf("filler[%d] = %02X after Deinit, want 0xFF", i, b)
		}
	}
}
