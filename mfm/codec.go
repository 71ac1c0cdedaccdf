// Package mfm implements the MFM (Modified Frequency Modulation)
// bitstream codec: a byte-oriented, clock-phase-aware view over a
// self-clocking encoded bit vector.
//
// Every source bit is encoded as two bits on the wire, a clock bit and
// a data bit. The codec exposes random access to the decoded byte
// stream via a parallel clock-phase map, because address marks
// deliberately violate the regular clock pattern and a naive every-
// other-bit sample would misalign after one.
package mfm

import (
	"errors"
	"math/rand/v2"

	"github.com/gofloppy/fluxcore/bitcell"
)

// Phase identifies which half of the first encoded bit pair carries
// the data bit.
type Phase int

const (
	PhaseEven Phase = iota
	PhaseOdd
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
// all-clear mask of the same length is allocated. The initial phase is
// detected from the first A1-style sync run in data, defaulting to
// Even if none is found.
func NewCodec(data *bitcell.BitVec, weakMask *bitcell.BitVec) *Codec {
	phase := detectSyncPhase(data)
	clockMap := bitcell.NewBitVecFilled(data.Len(), false)
	initClockMap(clockMap, phase)

	if weakMask == nil {
		weakMask = bitcell.NewBitVecFilled(data.Len(), false)
	}
	if weakMask.Len() < data.Len() {
		panic("mfm: weak mask must be the same length as the bit vector")
	}

	return &Codec{
		Data:         data,
		ClockMap:     clockMap,
		WeakMask:     weakMask,
		InitialPhase: phase,
		cursor:       int(phase),
	}
}

// initClockMap sets the regular alternating clock/data pattern implied
// by phase across the whole map: clock bits at positions congruent to
// `phase` mod 2.
func initClockMap(clockMap *bitcell.BitVec, phase Phase) {
	start := 0
	if phase == PhaseOdd {
		start = 1
	}
	for i := start; i < clockMap.Len(); i += 2 {
		clockMap.Set(i, true)
	}
}

// detectSyncPhase scans for the MFM all-ones clock run (0xAAAAAAAA over
// 32 bits, the idle/sync pattern) and returns whether it starts on an
// even or odd bit.
func detectSyncPhase(data *bitcell.BitVec) Phase {
	var shiftReg uint32
	for i := 0; i < data.Len(); i++ {
		if data.Get(i) {
			shiftReg = (shiftReg << 1) | 1
		} else {
			shiftReg <<= 1
		}
		if i >= 31 && shiftReg == 0xAAAAAAAA {
			start := i - 31
			if start%2 == 0 {
				return PhaseEven
			}
			return PhaseOdd
		}
	}
	return PhaseEven
}

// Len returns the number of encoded bits.
func (c *Codec) Len() int {
	return c.Data.Len()
}

// Encode converts a byte slice into its MFM-encoded bit vector, using
// the plain data clock rule everywhere: clock = !(prev | bit). prevBit
// is the value of the source bit preceding the first bit of data, used
// to choose the clock bit for a leading zero. Address marks are never
// produced by this function; they are built by EncodeMarker and patched
// into a plain-encoded stream at known offsets (see schema's write
// path), since the marker clock violation only has meaning across a
// fixed 4-byte sync+tag group, not an arbitrary byte run.
func Encode(data []byte, prevBit bool) *bitcell.BitVec {
	out := bitcell.NewBitVec(len(data) * BitLen)
	prev := prevBit
	for _, b := range data {
		for i := 0; i < 8; i++ {
			bit := (b>>(7-i))&1 != 0
			clock := !(prev || bit)
			out.Push(clock)
			out.Push(bit)
			prev = bit
		}
	}
	return out
}

// syncDropIndex returns the loop index (0..7, MSB-first) of the clock
// bit that the floppy controller illegally forces to 0 for a given sync
// byte, producing a bit pattern that cannot occur in ordinary encoded
// data. 0xA1 drops the clock between source bits 4 and 5; 0xC2 drops
// the clock between bits 3 and 4 — the two values differ because each
// sync byte's natural clock pattern differs, and the controller
// hardware picks whichever single omission yields a unique signature
// for that byte. Any other sync byte value falls back to the 0xA1
// position, since spec.md names no others.
func syncDropIndex(syncByte byte) int {
	if syncByte == 0xC2 {
		return 4
	}
	return 5
}

// EncodeMarker encodes a 4-byte address mark (three repeated sync
// bytes plus a tag byte, e.g. 0xA1 0xA1 0xA1 0xFE) as a 64-bit
// comparator value suitable for FindMarker. The first three bytes are
// MFM-encoded assuming a preceding zero bit (always true after a sync
// field of zero bytes) with their designated clock bit forced to 0; the
// tag byte is left at its natural encoding.
func EncodeMarker(data4 []byte) uint64 {
	if len(data4) != 4 {
		panic("mfm: EncodeMarker requires exactly 4 bytes")
	}
	dropIndex := syncDropIndex(data4[0])
	var accum uint64
	prev := false
	for byteIdx, b := range data4 {
		for i := 0; i < 8; i++ {
			bit := (b>>(7-i))&1 != 0
			clock := !(prev || bit)
			if byteIdx < 3 && i == dropIndex {
				clock = false
			}
			accum = (accum << 2) | boolBit(clock)<<1 | boolBit(bit)
			prev = bit
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
// for encodedPattern under mask. It reports a match only once a full
// 64 bits have been shifted in, returning the bit index of the first
// bit of the match and the 16 trailing bits (typically the marker's
// tag byte, MFM-encoded).
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
// data, used for fast-path sampling and visualisation.
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

// readDecodedBit returns the decoded value of the source bit whose
// clock bit (or data bit, if the map nudged the phase) begins at
// bitIndex, consulting WeakMask for instability.
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
// point at a clock bit per ClockMap), sampling 8 consecutive 2-bit
// pairs.
func (c *Codec) ReadDecodedU8(bitIndex int) (byte, error) {
	if bitIndex+BitLen > c.Data.Len() {
		return 0, errors.New("mfm: read past end of stream")
	}
	var result byte
	pos := bitIndex
	for i := 0; i < 8; i++ {
		bit := c.readDecodedBit(pos)
		result = (result << 1)
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

// WriteEncodedBuf MFM-encodes buf using the plain data clock rule and
// writes it into the codec's bit vector starting at bitIndex,
// overwriting in place.
func (c *Codec) WriteEncodedBuf(buf []byte, bitIndex int) error {
	if bitIndex+len(buf)*BitLen > c.Data.Len() {
		return errors.New("mfm: write past end of stream")
	}
	prev := false
	if bitIndex > 0 {
		prev = c.Data.Get(bitIndex - 1)
	}
	encoded := Encode(buf, prev)
	for i := 0; i < encoded.Len(); i++ {
		c.Data.Set(bitIndex+i, encoded.Get(i))
	}
	return nil
}

// CreateWeakBitMask scans the decoded stream for runs of decoded zero
// bits longer than runLen (typically 9 for MFM) and flags the
// corresponding encoded bit positions in WeakMask as unstable.
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
// pattern indicating the encoder padded to a byte boundary, and
// records the padding length so iteration wraps correctly.
func (c *Codec) SetTrackPadding() {
	const fillByte = 0x4E
	encodedFill := Encode([]byte{fillByte}, false)
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
// position, respecting InitialPhase. If the destination lands on a
// data bit instead of a clock bit, the cursor is nudged forward one
// bit so the next decoded bit remains aligned.
func (c *Codec) Seek(byteOffset int) (int, error) {
	if byteOffset < 0 {
		return 0, errors.New("mfm: invalid seek to a negative position")
	}
	newCursor := byteOffset << 1
	if newCursor > c.Data.Len() {
		return 0, errors.New("mfm: invalid seek past end of stream")
	}
	if newCursor < c.ClockMap.Len() && !c.ClockMap.Get(newCursor) {
		newCursor++
	}
	c.cursor = newCursor
	return newCursor, nil
}

// NextBit decodes and returns the next source bit, advancing the
// cursor past its clock bit. It reports io.EOF-like failure via ok=false
// at end of stream.
func (c *Codec) NextBit() (bit bool, ok bool) {
	if c.cursor >= c.Data.Len()-1 {
		return false, false
	}
	bit = c.readDecodedBit(c.cursor)
	c.cursor += 2
	return bit, true
}
