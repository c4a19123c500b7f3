package sd

import "testing"

func TestCSDVersion1SectorCount(t *testing.T) {
	var raw [16]byte
	raw[0] = 0x00 // CSD_STRUCTURE = 0 -> version 1
	raw[5] = 0x09 // READ_BL_LEN = 9 (512 bytes)
	raw[10] = 0x40 // ERASE_BLK_EN = 1

	csd, err := decodeCSD(raw[:])
	if err != nil {
		t.Fatalf("decodeCSD: %v", err)
	}
	if v := csd.Version(); v != 1 {
		t.Fatalf("Version() = %d, want 1", v)
	}
	if got, want := csd.SectorCount(), uint64(4); got != want {
		t.Errorf("SectorCount() = %d, want %d", got, want)
	}
	if got, want := csd.EraseGroupSize(), uint32(512); got != want {
		t.Errorf("EraseGroupSize() = %d, want %d", got, want)
	}
}

func TestCSDVersion2SectorCount(t *testing.T) {
	var raw [16]byte
	raw[0] = 0x40 // CSD_STRUCTURE = 1 -> version 2
	// C_SIZE (22 bits) split across bytes 7-9; set to 1000 -> (1000+1)*1024 sectors.
	raw[7] = 0x00
	raw[8] = 0x03
	raw[9] = 0xE8
	raw[10] = 0x00 // ERASE_BLK_EN = 0, SECTOR_SIZE upper bits 0
	raw[11] = 0x00 // SECTOR_SIZE low bit 0 -> sectorSize() == 0 -> group 512 bytes

	csd, err := decodeCSD(raw[:])
	if err != nil {
		t.Fatalf("decodeCSD: %v", err)
	}
	if v := csd.Version(); v != 2 {
		t.Fatalf("Version() = %d, want 2", v)
	}
	want := uint64(1001) * 1024
	if got := csd.SectorCount(); got != want {
		t.Errorf("SectorCount() = %d, want %d", got, want)
	}
}

func TestCIDDecode(t *testing.T) {
	raw := []byte{
		0x03,       // ManufacturerID
		0x12, 0x34, // OEMApplicationID
		'S', 'D', 'T', 'S', 'T', // prodName
		0x10,                   // productRev 1.0
		0xDE, 0xAD, 0xBE, 0xEF, // ProductSerialNumber
		0x01, 0x87, // date: 0x187 -> month 7, year 2024
		0x00, // reserved/CRC, unused by decodeCID
	}
	cid, err := decodeCID(raw)
	if err != nil {
		t.Fatalf("decodeCID: %v", err)
	}
	if cid.ManufacturerID != 0x03 {
		t.Errorf("ManufacturerID = 0x%02X, want 0x03", cid.ManufacturerID)
	}
	if cid.OEMApplicationID != 0x1234 {
		t.Errorf("OEMApplicationID = 0x%04X, want 0x1234", cid.OEMApplicationID)
	}
	if got := cid.ProductName(); got != "SDTST" {
		t.Errorf("ProductName() = %q, want %q", got, "SDTST")
	}
	if n, m := cid.ProductRevision(); n != 1 || m != 0 {
		t.Errorf("ProductRevision() = %d.%d, want 1.0", n, m)
	}
	if cid.ProductSerialNumber != 0xDEADBEEF {
		t.Errorf("ProductSerialNumber = 0x%08X, want 0xDEADBEEF", cid.ProductSerialNumber)
	}
	year, month := cid.ManufacturingDate()
	if year != 2024 || month != 7 {
		t.Errorf("ManufacturingDate() = %d-%d, want 2024-7", year, month)
	}
}

func TestDecodeCSDShortBuffer(t *testing.T) {
	if _, err := decodeCSD(make([]byte, 10)); err == nil {
		t.Fatal("decodeCSD with short buffer: want error, got nil")
	}
}

func TestDecodeCIDShortBuffer(t *testing.T) {
	if _, err := decodeCID(make([]byte, 10)); err == nil {
		t.Fatal("decodeCID with short buffer: want error, got nil")
	}
}

func TestCardTypeString(t *testing.T) {
	cases := map[CardType]string{
		TypeNone: "none", TypeV1: "v1", TypeV2: "v2",
		TypeV2HC: "v2hc", TypeUnknown: "unknown",
	}
	for typ, want := range cases {
		if got := typ.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", typ, got, want)
		}
	}
}
