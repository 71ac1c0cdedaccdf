package fm

import (
	"testing"

	"github.com/gofloppy/fluxcore/bitcell"
)

func bitcellBitVecFromUint64(v uint64) *bitcell.BitVec {
	bv := bitcell.NewBitVec(64)
	for i := 63; i >= 0; i-- {
		bv.Push((v>>i)&1 != 0)
	}
	return bv
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	src := []byte{0x4E, 0x00, 0xFF, 0xA5, 0x81}
	encoded := Encode(src, VariantData)
	codec := NewCodec(encoded, nil)

	got := make([]byte, len(src))
	if err := codec.ReadDecodedBuf(got, int(codec.InitialPhase)); err != nil {
		t.Fatalf("ReadDecodedBuf: %v", err)
	}
	for i := range src {
		if got[i] != src[i] {
			t.Fatalf("byte %d = %#02x, want %#02x", i, got[i], src[i])
		}
	}
}

func TestInvariantEqualLengths(t *testing.T) {
	encoded := Encode([]byte{0x01, 0x02, 0x03}, VariantData)
	codec := NewCodec(encoded, nil)
	if codec.Data.Len() != codec.ClockMap.Len() || codec.Data.Len() != codec.WeakMask.Len() {
		t.Fatalf("length invariant violated: data=%d clock=%d weak=%d",
			codec.Data.Len(), codec.ClockMap.Len(), codec.WeakMask.Len())
	}
}

func TestClockBitAlwaysSet(t *testing.T) {
	encoded := Encode([]byte{0x00, 0xFF, 0xA5}, VariantData)
	for i := 0; i < encoded.Len(); i += 2 {
		if !encoded.Get(i) {
			t.Fatalf("clock bit at position %d was not set", i)
		}
	}
}

func TestAddressMarkClockDrop(t *testing.T) {
	plain := Encode([]byte{0xA1}, VariantData)
	marked := Encode([]byte{0xA1}, VariantAddressMark)
	if plain.Len() != marked.Len() {
		t.Fatalf("encoded lengths differ: %d vs %d", plain.Len(), marked.Len())
	}
	// Clock bit preceding source bit 4 (position 6) must be forced low.
	if marked.Get(6) {
		t.Fatalf("address-mark clock bit at position 6 was not cleared")
	}
}

func TestFindMarkerLocatesOwnEncoding(t *testing.T) {
	markerBytes := []byte{0xF7, 0xF7, 0xF7, 0xFC}
	marker := EncodeMarker(markerBytes)

	bv := bitcellBitVecFromUint64(marker)
	start, trailing, ok := FindMarker(bv, marker, 0xFFFFFFFFFFFFFFFF, 0, -1)
	if !ok {
		t.Fatalf("FindMarker did not find its own encoding")
	}
	if start != 0 {
		t.Fatalf("match start = %d, want 0", start)
	}
	wantTrailing := uint16(marker & 0xFFFF)
	if trailing != wantTrailing {
		t.Fatalf("trailing = %#04x, want %#04x", trailing, wantTrailing)
	}
}

func TestSeekLandsOnClockBit(t *testing.T) {
	encoded := Encode([]byte{0x00, 0xFF}, VariantData)
	codec := NewCodec(encoded, nil)

	pos, err := codec.Seek(1)
	if err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if !codec.ClockMap.Get(pos) && pos > 0 {
		t.Fatalf("seek landed on a non-clock bit at %d", pos)
	}
}

func TestSeekNegativeIsError(t *testing.T) {
	encoded := Encode([]byte{0x00}, VariantData)
	codec := NewCodec(encoded, nil)
	if _, err := codec.Seek(-1); err == nil {
		t.Fatalf("expected error seeking to a negative position")
	}
}
