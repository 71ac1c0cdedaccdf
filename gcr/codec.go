// Package gcr implements the group-coded-recording bitstream codec
// used by Apple II/Macintosh and Commodore disk formats: a 6-to-8
// nibble translation table chosen so every disk-side byte has its high
// bit set and at most one pair of adjacent zero bits, making the
// stream self-clocking without a separate clock track.
package gcr

import (
	"errors"
	"math/rand/v2"

	"github.com/gofloppy/fluxcore/bitcell"
)

// BitLen is the number of encoded bits per source byte.
const BitLen = 8

// Codec owns the encoded bitstream and weak-bit mask, exposing the
// same byte-oriented shape as mfm.Codec and fm.Codec so
// track.BitStreamTrack can treat all three encodings uniformly.
//
// Invariant: Data.Len() == ClockMap.Len() == WeakMask.Len(). GCR has no
// separate clock bits — self-clocking is structural, a property of the
// translate table, not a parallel bit plane — so ClockMap is always
// all-false and exists only to satisfy the shared invariant.
type Codec struct {
	Data       *bitcell.BitVec
	ClockMap   *bitcell.BitVec
	WeakMask   *bitcell.BitVec
	DataRanges []Range

	cursor int
}

// Range is a half-open bit interval [Start, End).
type Range struct {
	Start int
	End   int
}

// encodeTable6and2 is the classic Apple 6-and-2 GCR nibble translate
// table: 64 six-bit values each mapped to an 8-bit disk byte with the
// high bit set and at most one pair of adjacent zero bits.
var encodeTable6and2 = [64]byte{
	0x96, 0x97, 0x9A, 0x9B, 0x9D, 0x9E, 0x9F, 0xA6,
	0xA7, 0xAB, 0xAC, 0xAD, 0xAE, 0xAF, 0xB2, 0xB3,
	0xB4, 0xB5, 0xB6, 0xB7, 0xB9, 0xBA, 0xBB, 0xBC,
	0xBD, 0xBE, 0xBF, 0xCB, 0xCD, 0xCE, 0xCF, 0xD3,
	0xD6, 0xD7, 0xD9, 0xDA, 0xDB, 0xDC, 0xDD, 0xDE,
	0xDF, 0xE5, 0xE6, 0xE7, 0xE9, 0xEA, 0xEB, 0xEC,
	0xED, 0xEE, 0xEF, 0xF2, 0xF3, 0xF4, 0xF5, 0xF6,
	0xF7, 0xF9, 0xFA, 0xFB, 0xFC, 0xFD, 0xFE, 0xFF,
}

// decodeTable6and2 is the inverse of encodeTable6and2, keyed by disk
// byte, with 0xFF marking an invalid (never-emitted) disk byte.
var decodeTable6and2 [256]byte

func init() {
	for i := range decodeTable6and2 {
		decodeTable6and2[i] = 0xFF
	}
	for nibble, diskByte := range encodeTable6and2 {
		decodeTable6and2[diskByte] = byte(nibble)
	}
}

// EncodeNibble translates a 6-bit value (0..63) to its 8-bit disk byte.
func EncodeNibble(v byte) (byte, error) {
	if v > 63 {
		return 0, errors.New("gcr: nibble value out of range")
	}
	return encodeTable6and2[v], nil
}

// DecodeNibble translates an 8-bit disk byte back to its 6-bit value.
// ok is false if diskByte is not a valid member of the translate table.
func DecodeNibble(diskByte byte) (v byte, ok bool) {
	v = decodeTable6and2[diskByte]
	return v, v != 0xFF
}

// Encode GCR-encodes a byte slice by translating each byte's low 6 bits
// through the nibble table. Source bytes are expected to already be
// 6-bit-clean (callers pack 8-bit user data into 6-bit groups upstream,
// as the Apple disk format's checksum/nibblization pass does); Encode
// itself only performs the table lookup and bit-packing.
func Encode(sixBitValues []byte) (*bitcell.BitVec, error) {
	out := bitcell.NewBitVec(len(sixBitValues) * BitLen)
	for _, v := range sixBitValues {
		diskByte, err := EncodeNibble(v)
		if err != nil {
			return nil, err
		}
		for i := 0; i < 8; i++ {
			out.Push((diskByte>>(7-i))&1 != 0)
		}
	}
	return out, nil
}

// NewCodec wraps an already GCR-encoded bitstream (one disk byte per 8
// bits, no clock plane). If weakMask is nil, an all-clear mask of the
// same length is allocated.
func NewCodec(data *bitcell.BitVec, weakMask *bitcell.BitVec) *Codec {
	clockMap := bitcell.NewBitVecFilled(data.Len(), false)
	if weakMask == nil {
		weakMask = bitcell.NewBitVecFilled(data.Len(), false)
	}
	if weakMask.Len() < data.Len() {
		panic("gcr: weak mask must be the same length as the bit vector")
	}
	return &Codec{
		Data:     data,
		ClockMap: clockMap,
		WeakMask: weakMask,
	}
}

// Len returns the number of encoded bits.
func (c *Codec) Len() int {
	return c.Data.Len()
}

// SetDataRanges records the bit intervals known to hold decoded user
// data.
func (c *Codec) SetDataRanges(ranges []Range) {
	c.DataRanges = ranges
}

// RawData exposes the encoded bit vector, for API parity with
// mfm.Codec/fm.Codec so track.BitStreamTrack can treat all three
// encodings through one interface.
func (c *Codec) RawData() *bitcell.BitVec {
	return c.Data
}

// ClockBits exposes the (always all-false) clock-phase map, for API
// parity with mfm.Codec/fm.Codec.
func (c *Codec) ClockBits() *bitcell.BitVec {
	return c.ClockMap
}

// WeakMaskBits exposes the weak-bit mask. gcr.Codec does not implement
// weakBitDetector, so the mask holds only what was passed to NewCodec
// (all-false when that was nil).
func (c *Codec) WeakMaskBits() *bitcell.BitVec {
	return c.WeakMask
}

// DataCopied returns a byte-packed snapshot of the raw encoded bit
// vector.
func (c *Codec) DataCopied() []byte {
	return c.Data.Bytes()
}

// readDiskByte samples the 8 encoded bits starting at bitIndex,
// consulting WeakMask bit-by-bit.
func (c *Codec) readDiskByte(bitIndex int) (byte, error) {
	if bitIndex+BitLen > c.Data.Len() {
		return 0, errors.New("gcr: read past end of stream")
	}
	var result byte
	for i := 0; i < 8; i++ {
		pos := bitIndex + i
		var bit bool
		if c.WeakMask.Get(pos) {
			bit = rand.IntN(2) == 1
		} else {
			bit = c.Data.Get(pos)
		}
		result <<= 1
		if bit {
			result |= 1
		}
	}
	return result, nil
}

// ReadDecodedU8 decodes the 6-bit nibble value encoded at bitIndex
// (which must be a multiple of BitLen relative to the codec's start).
// It returns an error if the disk byte read is not a valid member of
// the translate table.
func (c *Codec) ReadDecodedU8(bitIndex int) (byte, error) {
	diskByte, err := c.readDiskByte(bitIndex)
	if err != nil {
		return 0, err
	}
	v, ok := DecodeNibble(diskByte)
	if !ok {
		return 0, errors.New("gcr: invalid disk byte in stream")
	}
	return v, nil
}

// ReadDecodedBuf decodes len(buf) six-bit values starting at bitIndex
// into buf.
func (c *Codec) ReadDecodedBuf(buf []byte, bitIndex int) error {
	pos := bitIndex
	for i := range buf {
		v, err := c.ReadDecodedU8(pos)
		if err != nil {
			return err
		}
		buf[i] = v
		pos += BitLen
	}
	return nil
}

// WriteEncodedBuf GCR-encodes buf (six-bit values) and writes it into
// the codec's bit vector starting at bitIndex, overwriting in place.
func (c *Codec) WriteEncodedBuf(buf []byte, bitIndex int) error {
	if bitIndex+len(buf)*BitLen > c.Data.Len() {
		return errors.New("gcr: write past end of stream")
	}
	encoded, err := Encode(buf)
	if err != nil {
		return err
	}
	for i := 0; i < encoded.Len(); i++ {
		c.Data.Set(bitIndex+i, encoded.Get(i))
	}
	return nil
}

// Seek translates a logical decoded-nibble position to an encoded bit
// position. GCR has no clock plane to nudge onto, so this is a direct
// multiply, kept for API parity with mfm.Codec and fm.Codec.
func (c *Codec) Seek(nibbleOffset int) (int, error) {
	if nibbleOffset < 0 {
		return 0, errors.New("gcr: invalid seek to a negative position")
	}
	newCursor := nibbleOffset * BitLen
	if newCursor > c.Data.Len() {
		return 0, errors.New("gcr: invalid seek past end of stream")
	}
	c.cursor = newCursor
	return newCursor, nil
}

// NextBit decodes and returns the next raw encoded bit, advancing the
// cursor by one.
func (c *Codec) NextBit() (bit bool, ok bool) {
	if c.cursor >= c.Data.Len() {
		return false, false
	}
	bit = c.Data.Get(c.cursor)
	c.cursor++
	return bit, true
}
