package hfe

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gofloppy/fluxcore/diskimage"
	"github.com/gofloppy/fluxcore/schema"
)

// Save emits di as an HFE v1 image: the layout the teacher's own
// writer defaults to regardless of what version a file was read in
// as, since nothing in that codebase ever exercised its v3 write
// path. A bitstream-resolution track's RawBytes already carries the
// encoded MFM/FM bits HFE wants, and a FluxStream track resolves itself
// into one. A MetaSector track has no raw bitstream (its RawBytes is
// nil), and Save returns an error for an image holding one.
func (Parser) Save(di *diskimage.DiskImage) ([]byte, error) {
	geom := di.Geometry()
	if geom.Cylinder == 0 {
		return nil, fmt.Errorf("hfe: empty image has no tracks to write")
	}

	desc := di.Descriptor()
	bitRateKHz := desc.DataRate.Hz / 1000
	if bitRateKHz <= 0 {
		bitRateKHz = 250
	}
	rpm := uint16(300)
	if desc.Rpm != nil {
		rpm = uint16(*desc.Rpm)
	}

	h := header{
		FormatRevision:      0,
		NumberOfTrack:       uint8(geom.Cylinder),
		NumberOfSide:        geom.Head,
		TrackEncoding:       byteEncodingOf(desc.DataEncoding),
		BitRate:             uint16(bitRateKHz),
		FloppyRPM:           rpm,
		FloppyInterfaceMode: 7, // generic shugart, matches the teacher's own default
		WriteProtected:      0xFF,
		TrackListOffset:     1,
		WriteAllowed:        0xFF,
		SingleStep:          0xFF,
		Track0S0AltEncoding: 0xFF,
		Track0S0Encoding:    0xFF,
		Track0S1AltEncoding: 0xFF,
		Track0S1Encoding:    0xFF,
	}
	copy(h.Signature[:], signatureV1)

	type side struct{ side0, side1 []byte }
	sides := make([]side, geom.Cylinder)
	for cyl := uint16(0); cyl < geom.Cylinder; cyl++ {
		s0, err := trackRawBytes(di, schema.DiskCh{Cylinder: cyl, Head: 0})
		if err != nil {
			return nil, err
		}
		sides[cyl].side0 = s0
		if geom.Head > 1 {
			s1, err := trackRawBytes(di, schema.DiskCh{Cylinder: cyl, Head: 1})
			if err != nil {
				return nil, err
			}
			sides[cyl].side1 = s1
		} else {
			sides[cyl].side1 = s0
		}
	}

	trackHeaders := make([]trackHeader, geom.Cylinder)
	trackPos := uint16(2) // header block 0, track list block 1
	for cyl := range sides {
		maxLen := len(sides[cyl].side0)
		if len(sides[cyl].side1) > maxLen {
			maxLen = len(sides[cyl].side1)
		}
		byteLen := maxLen * 2
		if byteLen%blockSize != 0 {
			byteLen = (byteLen/blockSize + 1) * blockSize
		}
		trackHeaders[cyl] = trackHeader{Offset: trackPos, TrackLen: uint16(byteLen)}
		trackPos += uint16(byteLen / blockSize)
	}

	var buf bytes.Buffer
	writeHeaderBlock(&buf, &h)
	writeTrackListBlock(&buf, trackHeaders)
	for cyl := range sides {
		writeRawTrack(&buf, &trackHeaders[cyl], sides[cyl].side0, sides[cyl].side1, geom.Head)
	}

	return buf.Bytes(), nil
}

func byteEncodingOf(enc schema.Encoding) uint8 {
	if enc == schema.EncodingFM {
		return encISOIBMFM
	}
	return encISOIBMMFM
}

// trackRawBytes fetches ch's raw encoded bitstream. A MetaSectorTrack
// has none (RawBytes returns nil): writing one to HFE is a caller
// error, since a sector-only image was never decoded from real flux
// and has no bit-level representation to serialize.
func trackRawBytes(di *diskimage.DiskImage, ch schema.DiskCh) ([]byte, error) {
	t, err := di.TrackAt(ch)
	if err != nil {
		return nil, fmt.Errorf("hfe: track %+v: %w", ch, err)
	}
	raw := t.RawBytes()
	if raw == nil {
		return nil, fmt.Errorf("hfe: track %+v has no raw bitstream to write", ch)
	}
	return raw, nil
}

func writeHeaderBlock(buf *bytes.Buffer, h *header) {
	block := make([]byte, blockSize)
	for i := range block {
		block[i] = 0xFF
	}
	data := make([]byte, 32)
	copy(data[0:8], h.Signature[:])
	data[8] = h.FormatRevision
	data[9] = h.NumberOfTrack
	data[10] = h.NumberOfSide
	data[11] = h.TrackEncoding
	binary.LittleEndian.PutUint16(data[12:14], h.BitRate)
	binary.LittleEndian.PutUint16(data[14:16], h.FloppyRPM)
	data[16] = h.FloppyInterfaceMode
	data[17] = h.WriteProtected
	binary.LittleEndian.PutUint16(data[18:20], h.TrackListOffset)
	data[20] = h.WriteAllowed
	data[21] = h.SingleStep
	data[22] = h.Track0S0AltEncoding
	data[23] = h.Track0S0Encoding
	data[24] = h.Track0S1AltEncoding
	data[25] = h.Track0S1Encoding
	copy(block, data)
	buf.Write(block)
}

func writeTrackListBlock(buf *bytes.Buffer, headers []trackHeader) {
	block := make([]byte, blockSize)
	for i := range block {
		block[i] = 0xFF
	}
	for i, th := range headers {
		off := i * 4
		if off+4 > len(block) {
			break
		}
		binary.LittleEndian.PutUint16(block[off:off+2], th.Offset)
		binary.LittleEndian.PutUint16(block[off+2:off+4], th.TrackLen)
	}
	buf.Write(block)
}

// writeRawTrack interleaves side0/side1 back into 512-byte blocks (the
// inverse of readTrackSides' demux), padding each side with 0xFF past
// its real data and LSB-reversing every byte on the way out, matching
// how it was reversed on the way in.
func writeRawTrack(buf *bytes.Buffer, th *trackHeader, side0, side1 []byte, numSides uint8) {
	half := int(th.TrackLen) / 2

	s0 := make([]byte, half)
	s1 := make([]byte, half)
	copy(s0, side0)
	for i := len(side0); i < half; i++ {
		s0[i] = 0xFF
	}
	if numSides > 1 {
		copy(s1, side1)
		for i := len(side1); i < half; i++ {
			s1[i] = 0xFF
		}
	} else {
		copy(s1, s0)
	}

	trackBuf := make([]byte, th.TrackLen)
	for k := 0; k*blockSize < int(th.TrackLen); k++ {
		for j := 0; j < 256; j++ {
			trackBuf[k*blockSize+j] = bitReverseTable[s0[k*256+j]]
			trackBuf[k*blockSize+j+256] = bitReverseTable[s1[k*256+j]]
		}
	}
	buf.Write(trackBuf)
}
