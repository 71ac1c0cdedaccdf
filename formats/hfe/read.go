package hfe

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/gofloppy/fluxcore/diskimage"
	"github.com/gofloppy/fluxcore/schema"
	"github.com/gofloppy/fluxcore/track"
)

// Load parses an HFE v1 or v3 image and returns a DiskImage of
// BitStream resolution, one track per (cylinder, head).
func (Parser) Load(data []byte) (*diskimage.DiskImage, error) {
	r := bytes.NewReader(data)

	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("hfe: read header: %w", err)
	}

	sig := string(h.Signature[:])
	isV1 := sig == signatureV1
	isV3 := sig == signatureV3
	if !isV1 && !isV3 {
		return nil, fmt.Errorf("hfe: invalid signature %q", sig)
	}
	if h.FormatRevision != 0 {
		return nil, fmt.Errorf("hfe: unsupported format revision %d", h.FormatRevision)
	}
	if h.BitRate == 0 {
		return nil, errors.New("hfe: invalid bit rate")
	}
	if h.NumberOfTrack == 0 {
		return nil, errors.New("hfe: invalid number of tracks")
	}
	if h.NumberOfSide == 0 {
		return nil, errors.New("hfe: invalid number of sides")
	}

	if _, err := r.Seek(int64(h.TrackListOffset)*blockSize, io.SeekStart); err != nil {
		return nil, fmt.Errorf("hfe: seek to track list: %w", err)
	}
	trackHeaders := make([]trackHeader, h.NumberOfTrack)
	for i := range trackHeaders {
		if err := binary.Read(r, binary.LittleEndian, &trackHeaders[i]); err != nil {
			return nil, fmt.Errorf("hfe: read track header %d: %w", i, err)
		}
	}

	encoding := schemaEncodingOf(h.TrackEncoding)
	dataRate := track.NewDataRate(int(h.BitRate) * 1000)

	di := diskimage.NewDiskImage()
	var rpm *track.Rpm
	if h.FloppyRPM != 0 {
		v := track.Rpm(h.FloppyRPM)
		rpm = &v
	}

	for cyl, th := range trackHeaders {
		side0, side1, err := readTrackSides(r, data, &th, h.NumberOfSide, isV3)
		if err != nil {
			return nil, fmt.Errorf("hfe: track %d: %w", cyl, err)
		}

		if err := di.AddTrackBitstream(track.BitStreamTrackParams{
			Ch:       schema.DiskCh{Cylinder: uint16(cyl), Head: 0},
			Encoding: encoding,
			Data:     side0,
			DataRate: dataRate,
			Rpm:      rpm,
		}); err != nil {
			return nil, fmt.Errorf("hfe: add track %d head 0: %w", cyl, err)
		}

		if h.NumberOfSide > 1 {
			if err := di.AddTrackBitstream(track.BitStreamTrackParams{
				Ch:       schema.DiskCh{Cylinder: uint16(cyl), Head: 1},
				Encoding: encoding,
				Data:     side1,
				DataRate: dataRate,
				Rpm:      rpm,
			}); err != nil {
				return nil, fmt.Errorf("hfe: add track %d head 1: %w", cyl, err)
			}
		}
	}

	di.SetSourceFormat("hfe")
	return di, nil
}

func schemaEncodingOf(enc uint8) schema.Encoding {
	switch enc {
	case encISOIBMFM, encEmuFM:
		return schema.EncodingFM
	default:
		return schema.EncodingMFM
	}
}

// readTrackSides reads one track's data block, demuxes it into its
// two interleaved sides, and (for v3) decodes its opcode stream back
// into a plain bitstream.
func readTrackSides(r *bytes.Reader, data []byte, th *trackHeader, numSides uint8, v3 bool) (side0, side1 []byte, err error) {
	trackLen := int(th.TrackLen)
	if trackLen&0x1FF != 0 {
		trackLen = (trackLen &^ 0x1FF) + 0x200
	}

	start := int(th.Offset) * blockSize
	if start+trackLen > len(data) {
		return nil, nil, fmt.Errorf("track data out of bounds (offset %d len %d, file %d bytes)", start, trackLen, len(data))
	}
	buf := data[start : start+trackLen]

	side0Raw := make([]byte, trackLen/2)
	side1Raw := make([]byte, trackLen/2)
	for j := 0; j < trackLen; j += blockSize {
		for k := 0; k < 256; k++ {
			side0Raw[j/2+k] = bitReverseTable[buf[j+k]]
			if numSides > 1 {
				side1Raw[j/2+k] = bitReverseTable[buf[j+256+k]]
			}
		}
	}

	if !v3 {
		return side0Raw, side1Raw, nil
	}

	side0, err = decodeOpcodes(side0Raw)
	if err != nil {
		return nil, nil, fmt.Errorf("side 0 opcodes: %w", err)
	}
	if numSides > 1 {
		side1, err = decodeOpcodes(side1Raw)
		if err != nil {
			return nil, nil, fmt.Errorf("side 1 opcodes: %w", err)
		}
	}
	return side0, side1, nil
}

// decodeOpcodes strips a v3 track's opcode stream down to its raw MFM
// bits, rotating the result so the index pulse (if marked) lands at
// bit 0.
func decodeOpcodes(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	inBit, outBit, indexBit := 0, 0, 0

	for inBit/8 < len(data) {
		if inBit&7 != 0 {
			return nil, errors.New("opcode stream not byte-aligned")
		}
		opc := data[inBit/8]

		if opc&opcodeMask == opcodeMask {
			switch opc {
			case nopOpcode:
				inBit += 8
			case setIndexOpcode:
				inBit += 8
				indexBit = outBit
			case setBitRateOpcode:
				if inBit/8+1 >= len(data) {
					return nil, errors.New("SETBITRATE: insufficient data")
				}
				inBit += 16
			case skipBitsOpcode:
				if inBit/8+1 >= len(data) {
					return nil, errors.New("SKIPBITS: insufficient data")
				}
				skip := int(data[inBit/8+1])
				if skip > 8 {
					return nil, fmt.Errorf("SKIPBITS: skip value %d > 8", skip)
				}
				inBit += 16 + skip
				bitCopy(out, outBit, data, inBit, 8-skip)
				inBit += 8 - skip
				outBit += 8 - skip
			case randOpcode:
				inBit += 8
				outBit += 8
			default:
				return nil, fmt.Errorf("unknown opcode 0x%02X", opc)
			}
			continue
		}

		b := data[inBit/8]
		if b >= 0x60 && b <= 0x6F {
			b ^= 0x90
		}
		bitCopy(out, outBit, []byte{b}, 0, 8)
		inBit += 8
		outBit += 8
	}

	lenBits := outBit
	result := make([]byte, (lenBits+7)/8)
	if indexBit > 0 && indexBit < lenBits {
		bitCopy(result, 0, out, indexBit, lenBits-indexBit)
		bitCopy(result, lenBits-indexBit, out, 0, indexBit)
	} else {
		copy(result, out[:lenBits/8])
	}
	return result, nil
}

// bitCopy copies size bits from src (starting at srcOff) into dst
// (starting at dstOff), both MSB-first within each byte.
func bitCopy(dst []byte, dstOff int, src []byte, srcOff, size int) {
	for i := 0; i < size; i++ {
		if srcOff >= len(src)*8 || dstOff >= len(dst)*8 {
			return
		}
		bit := (src[srcOff/8] >> (7 - uint(srcOff&7))) & 1
		if bit != 0 {
			dst[dstOff/8] |= 1 << (7 - uint(dstOff&7))
		} else {
			dst[dstOff/8] &^= 1 << (7 - uint(dstOff&7))
		}
		srcOff++
		dstOff++
	}
}
