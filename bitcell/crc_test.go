package bitcell

import "testing"

func TestCRCIBM3740KnownVector(t *testing.T) {
	input := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	got := CRCIBM3740(input)
	if got != 0x3218 {
		t.Fatalf("CRCIBM3740(%v) = %#04x, want 0x3218", input, got)
	}
}

func TestCRCIBM3740ByteByByteMatchesBulk(t *testing.T) {
	input := []byte{0xA1, 0xA1, 0xA1, 0xFE, 0x00, 0x00, 0x01, 0x02}
	bulk := CRCIBM3740(input)

	crc := CRCIBM3740Initial
	for _, b := range input {
		crc = CRC16CCITTByte(crc, b)
	}
	if crc != bulk {
		t.Fatalf("byte-by-byte CRC %#04x != bulk CRC %#04x", crc, bulk)
	}
}

func TestReverseByteInvolution(t *testing.T) {
	for i := 0; i < 256; i++ {
		b := byte(i)
		if ReverseByte(ReverseByte(b)) != b {
			t.Fatalf("ReverseByte is not involutive for %#02x", b)
		}
	}
	if ReverseByte(0x01) != 0x80 {
		t.Fatalf("ReverseByte(0x01) = %#02x, want 0x80", ReverseByte(0x01))
	}
}

func TestBitVecSetGetRoundTrip(t *testing.T) {
	bv := NewBitVecFilled(17, false)
	bv.Set(0, true)
	bv.Set(16, true)
	for i := 0; i < bv.Len(); i++ {
		want := i == 0 || i == 16
		if bv.Get(i) != want {
			t.Fatalf("bit %d = %v, want %v", i, bv.Get(i), want)
		}
	}
}

func TestBitVecPushGrows(t *testing.T) {
	bv := NewBitVec(0)
	for i := 0; i < 20; i++ {
		bv.Push(i%3 == 0)
	}
	if bv.Len() != 20 {
		t.Fatalf("len = %d, want 20", bv.Len())
	}
	for i := 0; i < 20; i++ {
		want := i%3 == 0
		if bv.Get(i) != want {
			t.Fatalf("bit %d = %v, want %v", i, bv.Get(i), want)
		}
	}
}
