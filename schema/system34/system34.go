// Package system34 implements the IBM System 34 track schema: the
// marker vocabulary, gap geometry, and the two-pass scan (marker scan,
// then clock-map-assisted metadata extraction) that turns a raw MFM or
// FM bitstream into a schema.Metadata element stream, plus the
// matching write path that formats a blank track from a sector list.
//
// Used by IBM PC/compatible and Macintosh 1.44MB HD floppies. Supports
// both the MFM and FM encodings; GCR tracks use no System 34 schema.
package system34

import (
	"errors"

	"github.com/gofloppy/fluxcore/bitcell"
	"github.com/gofloppy/fluxcore/fm"
	"github.com/gofloppy/fluxcore/mfm"
	"github.com/gofloppy/fluxcore/schema"
)

// Gap and sync geometry, in bytes, shared by the scan and format paths.
const (
	GapByte = 0x4E
	SyncByte = 0x00

	SyncLen = 12

	IBMGap4A       = 80
	IBMGap1        = 50
	IBMGap2        = 22
	IBMGap3Default = 22

	ISOGap1 = 32
	ISOGap2 = 22

	PerpendicularGap1 = 50
	PerpendicularGap2 = 41

	DefaultTrackSizeBytes = 6250
)

// bitLen is the number of encoded bits per source byte. MFM and FM
// both encode 2 bits per source bit, so both codecs' BitLen constants
// equal this value; system34 only needs one shared constant since it
// drives both through the same Decoder interface.
const bitLen = 16

// markerLenBits is the width, in encoded bits, of a 4-byte address
// mark.
const markerLenBits = 4 * bitLen

// Marker identifies one of the four System 34 address marks.
type Marker int

const (
	MarkerIAM Marker = iota
	MarkerIDAM
	MarkerDAM
	MarkerDDAM
)

func (m Marker) String() string {
	switch m {
	case MarkerIAM:
		return "IAM"
	case MarkerIDAM:
		return "IDAM"
	case MarkerDAM:
		return "DAM"
	case MarkerDDAM:
		return "DDAM"
	default:
		return "Unknown"
	}
}

var (
	iamBytes  = []byte{0xC2, 0xC2, 0xC2, 0xFC}
	idamBytes = []byte{0xA1, 0xA1, 0xA1, 0xFE}
	damBytes  = []byte{0xA1, 0xA1, 0xA1, 0xFB}
	ddamBytes = []byte{0xA1, 0xA1, 0xA1, 0xF8}
)

func markerBytes(m Marker) []byte {
	switch m {
	case MarkerIAM:
		return iamBytes
	case MarkerIDAM:
		return idamBytes
	case MarkerDAM:
		return damBytes
	case MarkerDDAM:
		return ddamBytes
	default:
		return nil
	}
}

// Standard selects the gap layout format_track_as_bytes writes.
type Standard int

const (
	StandardIBM Standard = iota
	StandardPerpendicular
	StandardISO
)

// Gap2 returns the standard's GAP2 length in bytes.
func (s Standard) Gap2() int {
	switch s {
	case StandardPerpendicular:
		return PerpendicularGap2
	case StandardISO:
		return ISOGap2
	default:
		return IBMGap2
	}
}

type markerFinder func(data *bitcell.BitVec, pattern, mask uint64, startBit, limit int) (int, uint16, bool)
type markerEncoder func(data4 []byte) uint64

// finderFor resolves the marker-scan primitives for enc. System 34
// only supports Mfm and Fm; a Gcr (or other) encoding is a caller
// error.
func finderFor(enc schema.Encoding) (markerFinder, markerEncoder, error) {
	switch enc {
	case schema.EncodingMFM:
		return mfm.FindMarker, mfm.EncodeMarker, nil
	case schema.EncodingFM:
		return fm.FindMarker, fm.EncodeMarker, nil
	default:
		return nil, nil, errors.New("system34: unsupported encoding " + enc.String())
	}
}

// trailingMap builds the trailing-16-bit -> Marker lookup for the
// sync-byte family shared by IDAM/DAM/DDAM (0xA1 0xA1 0xA1 xx), keyed
// off encoder itself rather than hand-copied constants, so the map is
// correct by construction against whichever codec produced it.
func trailingMap(encoder markerEncoder) map[uint16]Marker {
	return map[uint16]Marker{
		uint16(encoder(idamBytes)): MarkerIDAM,
		uint16(encoder(damBytes)):  MarkerDAM,
		uint16(encoder(ddamBytes)): MarkerDDAM,
	}
}

// CRC16 performs a CRC-16/IBM-3740 check over the decoded bytes in
// [bitIndex, end), where the final two decoded bytes are the recorded
// CRC and the rest is the data the CRC was computed over.
func CRC16(dec Decoder, bitIndex, end int) (recorded, calculated uint16) {
	bytesRequested := (end - bitIndex) / bitLen
	data := make([]byte, bytesRequested+2)
	for i := range data {
		b, _ := dec.ReadDecodedU8(bitIndex + i*bitLen)
		data[i] = b
	}
	recorded = uint16(data[bytesRequested])<<8 | uint16(data[bytesRequested+1])
	calculated = bitcell.CRCIBM3740(data[:bytesRequested])
	return recorded, calculated
}

// CRC16Bytes is CRC16's already-decoded-buffer counterpart: the last
// two bytes of data are the recorded CRC, the rest is the data it
// covers.
func CRC16Bytes(data []byte) (recorded, calculated uint16) {
	n := len(data)
	if n < 2 {
		return 0, bitcell.CRCIBM3740(data)
	}
	recorded = uint16(data[n-2])<<8 | uint16(data[n-1])
	calculated = bitcell.CRCIBM3740(data[:n-2])
	return recorded, calculated
}
