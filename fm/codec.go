// Package fm implements the FM (single density, "Frequency Modulation")
// bitstream codec. Unlike MFM, every source bit carries its own clock
// bit, so the codec is structurally simpler, but it mirrors mfm.Codec's
// shape so track.BitStreamTrack can treat both encodings uniformly.
package fm

import (
	"errors"
	"math/rand/v2"

	"github.com/gofloppy/fluxcore/bitcell"
)

// Phase identifies which half of the first encoded bit pair carries
// the clock bit. Kept for API parity with mfm.Codec; FM's clock bit is
// always 1, so phase only affects alignment to the track's first byte.
type Phase int

const (
	PhaseEven Phase = iota
	PhaseOdd
)

// Variant selects the clock pattern used by Encode.
type Variant int

const (
	// VariantData encodes a plain data byte: clock is always 1.
	VariantData Variant = iota
	// VariantAddressMark additionally clears the clock bit between
	// source bits 3 and 4 of each encoded byte, forming the FM
	// address-mark sync violation.
	VariantAddressMark
)

// BitLen is the number of encoded bits per source byte (2 bits/bit).
const BitLen = 16

// MarkerLen is the width, in encoded bits, of a 4-byte address mark
// shift-register comparator.
const MarkerLen = 64

// Codec owns the encoded bitstream, its clock-phase map and weak-bit
// mask, and exposes byte-oriented decode/encode over them.
//
// Invariant: Data.Len() == ClockMap.Len() == WeakMask.Len().
type Codec struct {
	Data         *bitcell.BitVec
	ClockMap     *bitcell.BitVec
	WeakMask     *bitcell.BitVec
	DataRanges   []Range
	InitialPhase Phase
	TrackPadding int

	cursor int
}

// Range is a half-open bit interval [Start, End).
type Range struct {
	Start int
	End   int
}

// NewCodec wraps an already-encoded bitstream. If weakMask is nil, an
// all-clear mask of the same length is allocated. FM's clock bit is
// structurally always 1 and every other position, so the initial phase
// always defaults to Even: there is no sync-violation pattern to probe
// for the way MFM's 0xAAAAAAAA idle run gives one.
func NewCodec(data *bitcell.BitVec, weakMask *bitcell.BitVec) *Codec {
	clockMap := bitcell.NewBitVecFilled(data.Len(), false)
	for i := 0; i < clockMap.Len(); i += 2 {
		clockMap.Set(i, true)
	}

	if weakMask == nil {
		weakMask = bitcell.NewBitVecFilled(data.Len(), false)
	}
	if weakMask.Len() < data.Len() {
		panic("fm: weak mask must be the same length as the bit vector")
	}

	return &Codec{
		Data:         data,
		ClockMap:     clockMap,
		WeakMask:     weakMask,
		InitialPhase: PhaseEven,
	}
}

// Len returns the number of encoded bits.
func (c *Codec) Len() int {
	return c.Data.Len()
}

// Encode converts a byte slice into its FM-encoded bit vector. Every
// source bit becomes (1, bit) except where the address-mark variant
// forces the clock bit between source bits 3 and 4 of each byte low.
func Encode(data []byte, variant Variant) *bitcell.BitVec {
	out := bitcell.NewBitVec(len(data) * BitLen)
	for _, b := range data {
		for i := 0; i < 8; i++ {
			bit := (b>>(7-i))&1 != 0
			clock := true
			if variant == VariantAddressMark && i == 3 {
				clock = false
			}
			out.Push(clock)
			out.Push(bit)
		}
	}
	return out
}

// EncodeMarker encodes a 4-byte address mark as a 64-bit comparator
// value suitable for FindMarker.
func EncodeMarker(data4 []byte) uint64 {
	if len(data4) != 4 {
		panic("fm: EncodeMarker requires exactly 4 bytes")
	}
	var accum uint64
	for _, b := range data4 {
		for i := 0; i < 8; i++ {
			bit := (b>>(7-i))&1 != 0
			clock := true
			if i == 3 {
				clock = false
			}
			accum = (accum << 2) | boolBit(clock)<<1 | boolBit(bit)
		}
	}
	return accum
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// FindMarker slides a 64-bit shift register bit-by-bit from startBit,
// stopping at limit (or the end of the stream if limit < 0), looking
// for encodedPattern under mask.
func FindMarker(data *bitcell.BitVec, encodedPattern, mask uint64, startBit, limit int) (matchStart int, trailing uint16, ok bool) {
	end := data.Len()
	if limit >= 0 && limit < end {
		end = limit
	}
	var shiftReg uint64
	var shiftCount int
	for bi := startBit; bi < end; bi++ {
		bit := uint64(0)
		if data.Get(bi) {
			bit = 1
		}
		shiftReg = (shiftReg << 1) | bit
		shiftCount++
		if shiftCount >= MarkerLen && (shiftReg&mask) == encodedPattern {
			start := bi - MarkerLen + 1
			return start, uint16(shiftReg & 0xFFFF), true
		}
	}
	return 0, 0, false
}

// SetDataRanges records the bit intervals known to hold decoded user
// data.
func (c *Codec) SetDataRanges(ranges []Range) {
	c.DataRanges = ranges
}

// RawData exposes the encoded bit vector for schema-level marker scans
// and raw marker patching.
func (c *Codec) RawData() *bitcell.BitVec {
	return c.Data
}

// ClockBits exposes the clock-phase map for schema-level clock map
// construction.
func (c *Codec) ClockBits() *bitcell.BitVec {
	return c.ClockMap
}

// WeakMaskBits exposes the weak-bit mask built by CreateWeakBitMask.
func (c *Codec) WeakMaskBits() *bitcell.BitVec {
	return c.WeakMask
}

// DataCopied returns a byte-packed snapshot of the raw encoded bit
// vector.
func (c *Codec) DataCopied() []byte {
	return c.Data.Bytes()
}

// readDecodedBit returns the decoded value of the data bit paired with
// the clock bit at bitIndex, consulting WeakMask for instability.
func (c *Codec) readDecodedBit(bitIndex int) bool {
	dataPos := bitIndex
	if bitIndex < c.Data.Len() && c.ClockMap.Get(bitIndex) {
		dataPos = bitIndex + 1
	}
	if dataPos >= c.Data.Len() {
		return false
	}
	if c.WeakMask.Get(dataPos) {
		return rand.IntN(2) == 1
	}
	return c.Data.Get(dataPos)
}

// ReadDecodedU8 decodes one byte starting at bitIndex (which should
// point at a clock bit per ClockMap).
func (c *Codec) ReadDecodedU8(bitIndex int) (byte, error) {
	if bitIndex+BitLen > c.Data.Len() {
		return 0, errors.New("fm: read past end of stream")
	}
	var result byte
	pos := bitIndex
	for i := 0; i < 8; i++ {
		bit := c.readDecodedBit(pos)
		result = result << 1
		if bit {
			result |= 1
		}
		pos += 2
	}
	return result, nil
}

// ReadDecodedBuf decodes len(buf) bytes starting at bitIndex into buf.
func (c *Codec) ReadDecodedBuf(buf []byte, bitIndex int) error {
	pos := bitIndex
	for i := range buf {
		b, err := c.ReadDecodedU8(pos)
		if err != nil {
			return err
		}
		buf[i] = b
		pos += BitLen
	}
	return nil
}

// WriteEncodedBuf FM-encodes buf as plain data (VariantData) and writes
// it into the codec's bit vector starting at bitIndex, overwriting in
// place.
func (c *Codec) WriteEncodedBuf(buf []byte, bitIndex int) error {
	if bitIndex+len(buf)*BitLen > c.Data.Len() {
		return errors.New("fm: write past end of stream")
	}
	encoded := Encode(buf, VariantData)
	for i := 0; i < encoded.Len(); i++ {
		c.Data.Set(bitIndex+i, encoded.Get(i))
	}
	return nil
}

// CreateWeakBitMask scans the decoded stream for runs of decoded zero
// bits longer than runLen and flags the corresponding encoded bit
// positions in WeakMask as unstable. Follows the MFM analogue per the
// resolved track-padding/weak-bit Open Question: FM has no
// format-specific rule of its own.
func (c *Codec) CreateWeakBitMask(runLen int) {
	mask := bitcell.NewBitVecFilled(c.Data.Len(), false)
	run := 0
	runStart := 0
	pos := int(c.InitialPhase)
	for pos+1 < c.Data.Len() {
		bit := c.readDecodedBit(pos)
		if !bit {
			if run == 0 {
				runStart = pos
			}
			run++
		} else {
			if run > runLen {
				markWeakRun(mask, runStart, pos)
			}
			run = 0
		}
		pos += 2
	}
	if run > runLen {
		markWeakRun(mask, runStart, pos)
	}
	c.WeakMask = mask
}

func markWeakRun(mask *bitcell.BitVec, start, end int) {
	for i := start; i < end && i < mask.Len(); i++ {
		mask.Set(i, true)
	}
}

// SetTrackPadding inspects the end of the stream for a repeating byte
// pattern indicating the encoder padded to a byte boundary. Follows the
// MFM analogue exactly, per the resolved Open Question.
func (c *Codec) SetTrackPadding() {
	const fillByte = 0xFF
	encodedFill := Encode([]byte{fillByte}, VariantData)
	runBits := encodedFill.Len()
	if runBits == 0 {
		return
	}
	padding := 0
	pos := c.Data.Len()
	for pos-runBits >= 0 {
		match := true
		for i := 0; i < runBits; i++ {
			if c.Data.Get(pos-runBits+i) != encodedFill.Get(i) {
				match = false
				break
			}
		}
		if !match {
			break
		}
		padding += runBits
		pos -= runBits
	}
	c.TrackPadding = padding
}

// Seek translates a logical decoded-bit position (byteOffset counts
// decoded bits, each two encoded bits wide) to an encoded bit
// position. If the destination lands on a data bit instead of a clock
// bit, the cursor is nudged forward one bit.
func (c *Codec) Seek(byteOffset int) (int, error) {
	if byteOffset < 0 {
		return 0, errors.New("fm: invalid seek to a negative position")
	}
	newCursor := byteOffset << 1
	if newCursor > c.Data.Len() {
		return 0, errors.New("fm: invalid seek past end of stream")
	}
	if newCursor < c.ClockMap.Len() && !c.ClockMap.Get(newCursor) {
		newCursor++
	}
	c.cursor = newCursor
	return newCursor, nil
}

// NextBit decodes and returns the next source bit, advancing the
// cursor past its clock bit.
func (c *Codec) NextBit() (bit bool, ok bool) {
	if c.cursor >= c.Data.Len()-1 {
		return false, false
	}
	bit = c.readDecodedBit(c.cursor)
	c.cursor += 2
	return bit, true
}
