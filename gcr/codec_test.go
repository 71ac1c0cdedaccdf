package gcr

import "testing"

func TestNibbleRoundTrip(t *testing.T) {
	for v := byte(0); v < 64; v++ {
		diskByte, err := EncodeNibble(v)
		if err != nil {
			t.Fatalf("EncodeNibble(%d): %v", v, err)
		}
		got, ok := DecodeNibble(diskByte)
		if !ok {
			t.Fatalf("DecodeNibble(%#02x) reported invalid for a table entry", diskByte)
		}
		if got != v {
			t.Fatalf("DecodeNibble(EncodeNibble(%d)) = %d, want %d", v, got, v)
		}
	}
}

func TestEncodeNibbleOutOfRange(t *testing.T) {
	if _, err := EncodeNibble(64); err == nil {
		t.Fatalf("expected error encoding a 7-bit value")
	}
}

func TestDiskBytesHaveHighBitAndAtMostOneZeroPair(t *testing.T) {
	for _, diskByte := range encodeTable6and2 {
		if diskByte&0x80 == 0 {
			t.Fatalf("disk byte %#02x does not have its high bit set", diskByte)
		}
		zeroPairs := 0
		prevZero := false
		for i := 7; i >= 0; i-- {
			bit := (diskByte>>i)&1 != 0
			if !bit && prevZero {
				zeroPairs++
			}
			prevZero = !bit
		}
		if zeroPairs > 1 {
			t.Fatalf("disk byte %#02x has %d pairs of adjacent zero bits, want at most 1", diskByte, zeroPairs)
		}
	}
}

func TestEncodeDecodeBufRoundTrip(t *testing.T) {
	src := []byte{0, 1, 30, 63, 15}
	encoded, err := Encode(src)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	codec := NewCodec(encoded, nil)

	got := make([]byte, len(src))
	if err := codec.ReadDecodedBuf(got, 0); err != nil {
		t.Fatalf("ReadDecodedBuf: %v", err)
	}
	for i := range src {
		if got[i] != src[i] {
			t.Fatalf("value %d = %d, want %d", i, got[i], src[i])
		}
	}
}

func TestInvariantEqualLengths(t *testing.T) {
	encoded, _ := Encode([]byte{1, 2, 3})
	codec := NewCodec(encoded, nil)
	if codec.Data.Len() != codec.ClockMap.Len() || codec.Data.Len() != codec.WeakMask.Len() {
		t.Fatalf("length invariant violated: data=%d clock=%d weak=%d",
			codec.Data.Len(), codec.ClockMap.Len(), codec.WeakMask.Len())
	}
	for i := 0; i < codec.ClockMap.Len(); i++ {
		if codec.ClockMap.Get(i) {
			t.Fatalf("clock map bit %d set, want GCR clock map always false", i)
		}
	}
}

func TestInvalidDiskByteRejected(t *testing.T) {
	if _, ok := DecodeNibble(0x00); ok {
		t.Fatalf("DecodeNibble(0x00) should be invalid (two leading zero bits)")
	}
}

func TestSeekNegativeIsError(t *testing.T) {
	encoded, _ := Encode([]byte{1})
	codec := NewCodec(encoded, nil)
	if _, err := codec.Seek(-1); err == nil {
		t.Fatalf("expected error seeking to a negative position")
	}
}
