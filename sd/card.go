// Package sd implements the SD/SDHC/SDXC-over-SPI protocol driver:
// initialization state machine, block read/write with token handshakes,
// and R1/R3/R7 response decoding, against a synchronous full-duplex Bus.
package sd

import (
	"encoding/binary"
	"time"
)

const (
	initFrequency     = 400_000    // spec.md §4.C step 1: configure bus <= 400kHz
	maxTransferHz     = 25_000_000 // spec.md §4.C step 11, §3 invariant
	cmdReadyTimeout   = 300 * time.Millisecond
	tokenWaitPolls    = 50_000 // spec.md §5, "token-wait: 50 000 polls"
	writeBusyTimeout  = 600 * time.Millisecond
	initDeadline      = time.Second // spec.md §4.C step 6, §9 "Infinite ACMD41 loop"
	cmd0MaxAttempts   = 10
	cmdMaxRetries     = 3
	blockSize         = 512
)

// Card represents one attached SD/SDHC/SDXC card (spec.md §3, "Card
// descriptor"). It exclusively owns the chip-select line for its lifetime.
type Card struct {
	bus Bus
	cs  ChipSelect

	kind        CardType
	cid         CID
	csd         CSD
	sectors     uint64
	eraseGroup  uint32
	initHz      uint32
	transferHz  uint32
	crcEnabled  bool
	initialized bool

	cmdBuf [6]byte
	blkBuf [blockSize]byte
	filler [blockSize]byte // all 0xFF, the idle line level a half-duplex SD card expects while being clocked for a read
}

// NewCard binds a Card to a bus handle and chip-select callback. No I/O is
// performed until Init is called.
func NewCard(bus Bus, cs ChipSelect) *Card {
	c := &Card{bus: bus, cs: cs, transferHz: maxTransferHz}
	for i := range c.filler {
		c.filler[i] = 0xFF
	}
	return c
}

// rx clocks out len(buf) bytes of 0xFF while capturing the card's response
// into buf, the SPI-mode-SD idiom for "read without driving MOSI".
func (c *Card) rx(buf []byte) error {
	return c.bus.Tx(c.filler[:len(buf)], buf)
}

// EnableCRC toggles CMD59 CRC checking for subsequent Init calls. Must be
// set before Init; the driver defaults to CRC disabled (spec.md §6,
// "CRC7 table fixed", teacher's SD_CRC_ENABLED = 0 default).
func (c *Card) EnableCRC(on bool) { c.crcEnabled = on }

// Type returns the detected card family (TypeNone before Init succeeds).
func (c *Card) Type() CardType { return c.kind }

// CID returns the last-read Card Identification register.
func (c *Card) CID() CID { return c.cid }

// CSD returns the last-read Card Specific Data register.
func (c *Card) CSD() CSD { return c.csd }

// Size returns the card capacity in bytes.
func (c *Card) Size() uint64 { return c.sectors * blockSize }

// EraseGroupSize returns the erase group size in bytes (spec.md §3).
func (c *Card) EraseGroupSize() uint32 { return c.eraseGroup }

func (c *Card) assertCS()   { c.cs(true) }
func (c *Card) deassertCS() { c.cs(false) }

// Init brings the card from TypeNone to an initialized state. Idempotent:
// calling it again while already initialized returns nil without issuing
// any commands (spec.md §3 invariant, §8 property P2).
func (c *Card) Init() error {
	if c.initialized {
		return nil
	}

	// The Bus interface carries no Configure method (unlike spec.md §4.A's
	// bus primitive); callers reconfigure their SPI peripheral to
	// initFrequency before calling Init and to TransferFrequency after it
	// returns, mirroring the teacher's board-setup pattern.
	c.initHz = initFrequency

	c.deassertCS()
	dummy := c.blkBuf[:20]
	for i := range dummy {
		dummy[i] = 0xFF
	}
	if err := c.bus.Tx(dummy, nil); err != nil {
		return err
	}

	if err := c.goIdle(); err != nil {
		return err
	}

	v2, err := c.sendIfCond()
	if err != nil {
		c.kind = TypeUnknown
		return err
	}
	if v2 {
		c.kind = TypeV2
	} else {
		c.kind = TypeV1
	}

	if err := c.initializeCard(); err != nil {
		c.kind = TypeUnknown
		return err
	}

	if c.kind == TypeV2 {
		hc, err := c.checkCapacity()
		if err != nil {
			c.kind = TypeUnknown
			return err
		}
		if hc {
			c.kind = TypeV2HC
		}
	}

	if err := c.setCRC(c.crcEnabled); err != nil {
		return err
	}

	if err := c.readRegister(cmd9SendCSD, c.blkBuf[:16]); err != nil {
		return err
	}
	csd, err := decodeCSD(c.blkBuf[:16])
	if err != nil {
		return err
	}
	c.csd = csd
	c.sectors = csd.SectorCount()
	c.eraseGroup = csd.EraseGroupSize()

	if err := c.readRegister(cmd10SendCID, c.blkBuf[:16]); err == nil {
		if cid, err := decodeCID(c.blkBuf[:16]); err == nil {
			c.cid = cid
		}
	}

	if _, err := c.cmdEnsureOK(cmd16SetBlockLen, blockSize, false); err != nil {
		return err
	}

	c.transferHz = maxTransferHz
	c.initialized = true
	return nil
}

// Deinit releases the card, resetting its state to TypeNone (spec.md §3).
func (c *Card) Deinit() error {
	c.deassertCS()
	bus, cs, filler := c.bus, c.cs, c.filler
	*c = Card{bus: bus, cs: cs, transferHz: maxTransferHz, filler: filler}
	return nil
}

// goIdle issues CMD0 up to 10 times, requiring R1 == idle (spec.md §4.C step 2).
func (c *Card) goIdle() error {
	deadline := time.Now().Add(initDeadline)
	for attempt := 0; attempt < cmd0MaxAttempts && time.Now().Before(deadline); attempt++ {
		r, err := c.cmd(cmd0GoIdleState, 0, false)
		if err != nil {
			return err
		}
		if r == r1IdleState {
			return nil
		}
	}
	return ErrNoDevice
}

// sendIfCond issues CMD8 (spec.md §4.C step 3). Returns v2=true when the
// card accepted it and echoed the voltage/check pattern.
func (c *Card) sendIfCond() (v2 bool, err error) {
	c.assertCS()
	defer c.deassertCS()

	buf := c.cmdBuf[:6]
	c.buildCmd(buf, cmd8SendIfCond, cmd8Pattern)
	if err := c.bus.Tx(buf, nil); err != nil {
		return false, err
	}

	status, err := c.pollR1()
	if err != nil {
		return false, err
	}
	if status.IllegalCmdError() {
		return false, nil
	}
	if !status.Valid() {
		return false, ErrNoResponse
	}

	trailer := make([]byte, 4)
	if err := c.rx(trailer); err != nil {
		return false, err
	}
	echo := binary.BigEndian.Uint32(trailer) & cmd8EchoMask
	if echo != cmd8Pattern {
		return false, ErrUnusable
	}
	return true, nil
}

// initializeCard repeats ACMD41 until the idle bit clears, bounded by
// initDeadline (spec.md §4.C step 6, §9 "Infinite ACMD41 loop").
func (c *Card) initializeCard() error {
	var arg uint32
	if c.kind == TypeV2 {
		arg = 1 << ocrBitCCS
	}
	deadline := time.Now().Add(initDeadline)
	for time.Now().Before(deadline) {
		r, err := c.cmd(acmd41SDSendOpCond, arg, true)
		if err != nil {
			return err
		}
		if !r.IsIdle() {
			return nil
		}
	}
	return ErrNoResponse
}

// checkCapacity issues CMD58 (spec.md §4.C step 7/5) and reports whether
// the OCR's CCS bit marks the card as block-addressed (V2HC), rejecting
// cards that do not support 3.3V.
func (c *Card) checkCapacity() (hc bool, err error) {
	c.assertCS()
	defer c.deassertCS()

	buf := c.cmdBuf[:6]
	c.buildCmd(buf, cmd58ReadOCR, 0)
	if err := c.bus.Tx(buf, nil); err != nil {
		return false, err
	}
	status, err := c.pollR1()
	if err != nil {
		return false, err
	}
	if !status.Valid() {
		return false, ErrNoResponse
	}

	ocrBytes := make([]byte, 4)
	if err := c.rx(ocrBytes); err != nil {
		return false, err
	}
	ocr := binary.BigEndian.Uint32(ocrBytes)
	if ocr&(1<<ocrBit3V3) == 0 {
		return false, ErrUnusable
	}
	return ocr&(1<<ocrBitCCS) != 0, nil
}

// setCRC issues CMD59 (spec.md §4.C step 4/8).
func (c *Card) setCRC(on bool) error {
	arg := uint32(0)
	if on {
		arg = 1
	}
	_, err := c.cmdEnsureOK(cmd59CRCOnOff, arg, false)
	return err
}

func (c *Card) crcByte(cmd uint8, buf []byte) byte {
	switch {
	case !c.crcEnabled && cmd == cmd0GoIdleState:
		return 0x95
	case !c.crcEnabled && cmd == cmd8SendIfCond:
		return 0x87
	case c.crcEnabled:
		return CRC7(buf[:5])<<1 | 1
	default:
		return 0xFF
	}
}

// buildCmd fills dst (len 6) with the command packet header and computes
// its trailing CRC7 byte (spec.md §3 "Command packet").
func (c *Card) buildCmd(dst []byte, cmd byte, arg uint32) {
	dst[0] = 0x40 | cmd
	binary.BigEndian.PutUint32(dst[1:5], arg)
	dst[5] = c.crcByte(cmd, dst)
}

// pollR1 waits for a byte with bit 7 clear, bounded to tokenWaitPolls
// iterations (spec.md §5 "every busy-wait has a bounded poll count").
func (c *Card) pollR1() (response1, error) {
	buf := make([]byte, 1)
	for i := 0; i < tokenWaitPolls; i++ {
		if err := c.rx(buf); err != nil {
			return 0, err
		}
		r := response1(buf[0])
		if r.Valid() {
			return r, nil
		}
	}
	return response1(r1NoResponse), nil
}

// cmd is the command-issue helper of spec.md §4.C ("_cmd"): asserts CS,
// busy-waits for the card to be ready, prefixes ACMDs with CMD55, retries
// up to 3 times on no-response, and leaves CS asserted when the command
// starts a data phase the caller must finish.
func (c *Card) cmd(cmd byte, arg uint32, isAcmd bool) (response1, error) {
	c.assertCS()

	if cmd != cmd12StopTransmission {
		c.waitNotBusy(cmdReadyTimeout)
	}

	var last response1
	for attempt := 0; attempt < cmdMaxRetries; attempt++ {
		if isAcmd {
			r55, err := c.sendRaw(cmd55AppCmd, 0)
			if err != nil {
				return 0, err
			}
			if !r55.Valid() {
				last = r55
				continue
			}
		}

		r, err := c.sendRaw(cmd, arg)
		if err != nil {
			return 0, err
		}
		if r.Valid() {
			if !startsDataPhase(cmd) {
				c.deassertCS()
			}
			return r, nil
		}
		last = r
	}
	c.deassertCS()
	return last, ErrNoResponse
}

// sendRaw transmits one command packet and waits for its R1 response. It
// assumes CS is already asserted and never touches it — CMD55 prefixes and
// the enclosing cmd retry loop both need that, so CS management lives one
// level up in cmd.
func (c *Card) sendRaw(cmd byte, arg uint32) (response1, error) {
	buf := c.cmdBuf[:6]
	c.buildCmd(buf, cmd, arg)
	if err := c.bus.Tx(buf, nil); err != nil {
		return 0, err
	}
	if cmd == cmd12StopTransmission {
		var skip [1]byte
		c.rx(skip[:])
	}
	return c.pollR1()
}

func startsDataPhase(cmd byte) bool {
	switch cmd {
	case cmd9SendCSD, cmd10SendCID, cmd17ReadSingleBlock, cmd18ReadMultipleBlock,
		cmd24WriteBlock, cmd25WriteMultipleBlock:
		return true
	default:
		return false
	}
}

// cmdEnsureOK issues cmd and requires the resulting R1 to be all-zero
// (idle bit aside, any error bit fails).
func (c *Card) cmdEnsureOK(cmd byte, arg uint32, isAcmd bool) (response1, error) {
	r, err := c.cmd(cmd, arg, isAcmd)
	if err != nil {
		return r, err
	}
	if r&^response1(r1IdleState) != 0 {
		return r, responseError("cmd "+cmdName(cmd), r)
	}
	return r, nil
}

func cmdName(cmd byte) string {
	names := map[byte]string{
		cmd0GoIdleState: "CMD0", cmd8SendIfCond: "CMD8", cmd9SendCSD: "CMD9",
		cmd10SendCID: "CMD10", cmd16SetBlockLen: "CMD16", cmd17ReadSingleBlock: "CMD17",
		cmd18ReadMultipleBlock: "CMD18", cmd24WriteBlock: "CMD24", cmd25WriteMultipleBlock: "CMD25",
		cmd32EraseWrBlkStartAddr: "CMD32", cmd33EraseWrBlkEndAddr: "CMD33", cmd38Erase: "CMD38",
		cmd58ReadOCR: "CMD58", cmd59CRCOnOff: "CMD59",
	}
	if n, ok := names[cmd]; ok {
		return n
	}
	return "CMD?"
}

// waitNotBusy polls the line for 0xFF (card released DO), bounded by timeout.
func (c *Card) waitNotBusy(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 1)
	for time.Now().Before(deadline) {
		if err := c.rx(buf); err != nil {
			return err
		}
		if buf[0] == 0xFF {
			return nil
		}
	}
	return ErrNoResponse
}

// waitStartBlock polls for the 0xFE start token, bounded to cmdReadyTimeout.
func (c *Card) waitStartBlock() error {
	deadline := time.Now().Add(cmdReadyTimeout)
	buf := make([]byte, 1)
	for time.Now().Before(deadline) {
		if err := c.rx(buf); err != nil {
			c.deassertCS()
			return err
		}
		if buf[0] == tokenStartBlock {
			return nil
		}
	}
	c.deassertCS()
	return ErrNoResponse
}

func (c *Card) readRegister(cmd uint8, dst []byte) error {
	if _, err := c.cmdEnsureOK(cmd, 0, false); err != nil {
		return err
	}
	defer c.deassertCS()
	if err := c.waitStartBlock(); err != nil {
		return err
	}
	if err := c.rx(dst); err != nil {
		return err
	}
	var crc [2]byte
	return c.rx(crc[:])
}

func (c *Card) blockAddress(byteAddr uint64) uint32 {
	if c.kind == TypeV2HC {
		return uint32(byteAddr / blockSize)
	}
	return uint32(byteAddr)
}

func isAligned(addr, size, capacity uint64) bool {
	return addr%blockSize == 0 && size%blockSize == 0 && addr+size <= capacity
}

// Read fills buf (len == byteSize) starting at byteAddr, both required to
// be 512-aligned and within capacity (spec.md §4.C "read", §8 property P1).
func (c *Card) Read(buf []byte, byteAddr, byteSize uint64) error {
	if !c.initialized {
		return ErrNoInit
	}
	if uint64(len(buf)) != byteSize || !isAligned(byteAddr, byteSize, c.Size()) {
		return ErrParameter
	}

	nblocks := byteSize / blockSize
	addr := c.blockAddress(byteAddr)

	multi := nblocks > 1
	cmd := uint8(cmd17ReadSingleBlock)
	if multi {
		cmd = cmd18ReadMultipleBlock
	}
	if _, err := c.cmdEnsureOK(cmd, addr, false); err != nil {
		return err
	}
	defer c.deassertCS()

	for i := uint64(0); i < nblocks; i++ {
		if err := c.waitStartBlock(); err != nil {
			return err
		}
		block := buf[i*blockSize : (i+1)*blockSize]
		if err := c.rx(block); err != nil {
			return err
		}
		var crcBytes [2]byte
		if err := c.rx(crcBytes[:]); err != nil {
			return err
		}
		if c.crcEnabled {
			got := uint16(crcBytes[0])<<8 | uint16(crcBytes[1])
			if CRC16(block) != got {
				return ErrCRC
			}
		}
	}

	if multi {
		if _, err := c.cmd(cmd12StopTransmission, 0, false); err != nil {
			return err
		}
	}
	return nil
}

// Program writes buf (len == byteSize) starting at byteAddr, both required
// to be 512-aligned and within capacity (spec.md §4.C "program", §8 P1/P5).
func (c *Card) Program(buf []byte, byteAddr, byteSize uint64) error {
	if !c.initialized {
		return ErrNoInit
	}
	if uint64(len(buf)) != byteSize || !isAligned(byteAddr, byteSize, c.Size()) {
		return ErrParameter
	}

	nblocks := byteSize / blockSize
	addr := c.blockAddress(byteAddr)

	if nblocks > 1 {
		return c.programMulti(buf, addr, nblocks)
	}
	return c.programSingle(buf, addr)
}

func (c *Card) programSingle(buf []byte, addr uint32) error {
	if _, err := c.cmdEnsureOK(cmd24WriteBlock, addr, false); err != nil {
		return err
	}
	defer c.deassertCS()
	return c.writeDataBlock(buf, tokenStartBlock)
}

func (c *Card) programMulti(buf []byte, addr uint32, nblocks uint64) error {
	if _, err := c.cmdEnsureOK(acmd23SetWrBlkEraseCount, uint32(nblocks), true); err != nil {
		return err
	}
	if _, err := c.cmdEnsureOK(cmd25WriteMultipleBlock, addr, false); err != nil {
		return err
	}
	defer c.deassertCS()

	for i := uint64(0); i < nblocks; i++ {
		block := buf[i*blockSize : (i+1)*blockSize]
		if err := c.writeDataBlock(block, tokenStartMulWrite); err != nil {
			return err
		}
	}
	if err := c.bus.Tx([]byte{tokenStopTran}, nil); err != nil {
		return err
	}
	if err := c.waitNotBusy(writeBusyTimeout); err != nil {
		return err
	}
	_, err := c.cmd(cmd12StopTransmission, 0, false)
	return err
}

// writeDataBlock sends one start token + 512 data bytes + CRC16 + waits for
// the write-response token and busy release (spec.md §4.C/§6).
func (c *Card) writeDataBlock(block []byte, token byte) error {
	if err := c.bus.Tx([]byte{token}, nil); err != nil {
		return err
	}
	if err := c.bus.Tx(block, nil); err != nil {
		return err
	}
	crc := CRC16(block)
	crcBytes := []byte{byte(crc >> 8), byte(crc)}
	if err := c.bus.Tx(crcBytes, nil); err != nil {
		return err
	}

	resp := make([]byte, 1)
	if err := c.rx(resp); err != nil {
		return err
	}
	switch resp[0] & dataRespMask {
	case dataRespAccepted:
	case dataRespCRCError:
		return ErrCRC
	case dataRespWriteErr:
		return ErrWrite
	default:
		return ErrWrite
	}
	return c.waitNotBusy(writeBusyTimeout)
}

// Trim erases the block range [byteAddr, byteAddr+byteSize) via
// CMD32/CMD33/CMD38 (spec.md §4.C "trim").
func (c *Card) Trim(byteAddr, byteSize uint64) error {
	if !c.initialized {
		return ErrNoInit
	}
	if !isAligned(byteAddr, byteSize, c.Size()) || byteSize == 0 {
		return ErrParameter
	}
	start := c.blockAddress(byteAddr)
	end := c.blockAddress(byteAddr + byteSize - blockSize)

	if _, err := c.cmdEnsureOK(cmd32EraseWrBlkStartAddr, start, false); err != nil {
		return err
	}
	if _, err := c.cmdEnsureOK(cmd33EraseWrBlkEndAddr, end, false); err != nil {
		return err
	}
	if _, err := c.cmdEnsureOK(cmd38Erase, 0, false); err != nil {
		return ErrErase
	}
	return c.waitNotBusy(writeBusyTimeout)
}

// SetFrequency requests a new transfer clock rate, capped at 25MHz
// (spec.md §4.C "frequency"). clamped reports whether the request exceeded
// the cap. The actual SPI peripheral reconfiguration is the caller's
// responsibility (the Bus interface carries no Configure method); callers
// read TransferFrequency after this returns and apply it to their bus.
func (c *Card) SetFrequency(hz uint32) (clamped bool, err error) {
	if hz > maxTransferHz {
		hz = maxTransferHz
		clamped = true
	}
	c.transferHz = hz
	return clamped, nil
}

// TransferFrequency returns the negotiated post-init clock rate in Hz.
func (c *Card) TransferFrequency() uint32 { return c.transferHz }

// InitFrequency returns the clock rate Init expects the bus configured to.
func (c *Card) InitFrequency() uint32 { return c.initHz }
