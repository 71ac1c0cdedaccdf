// Package hfe implements the HxC Floppy Emulator image format, both
// the original v1 layout (raw MFM/FM bitstream per track, no opcodes)
// and the v3 layout (a small opcode stream describing bitrate changes,
// index position, and random/weak bytes interleaved with the raw
// bits). It adapts the teacher's hfe package, which parsed into its
// own Disk/TrackData structs, onto format.Parser and
// diskimage.DiskImage instead.
package hfe

import "github.com/gofloppy/fluxcore/format"

func init() {
	format.Register(Parser{})
}

// Version selects which HFE layout Save emits. Load auto-detects the
// version from the file's signature.
type Version int

const (
	Version1 Version = 1
	Version3 Version = 3
)

const (
	signatureV1 = "HXCPICFE"
	signatureV3 = "HXCHFEV3"

	opcodeMask       = 0xF0
	nopOpcode        = 0xF0
	setIndexOpcode   = 0xF1
	setBitRateOpcode = 0xF2
	skipBitsOpcode   = 0xF3
	randOpcode       = 0xF4

	blockSize = 512
)

// Track encoding byte values, as stored in header.TrackEncoding.
const (
	encISOIBMMFM = iota
	encAmigaMFM
	encISOIBMFM
	encEmuFM
	encUnknown = 0xff
)

// header is the on-disk HFE file header, v1 and v3 share the same
// layout; only the signature and FormatRevision=0 check differ.
type header struct {
	Signature           [8]byte
	FormatRevision      uint8
	NumberOfTrack       uint8
	NumberOfSide        uint8
	TrackEncoding       uint8
	BitRate             uint16 // kbit/s
	FloppyRPM           uint16
	FloppyInterfaceMode uint8
	WriteProtected      uint8
	TrackListOffset     uint16 // in 512-byte blocks
	WriteAllowed        uint8
	SingleStep          uint8
	Track0S0AltEncoding uint8
	Track0S0Encoding    uint8
	Track0S1AltEncoding uint8
	Track0S1Encoding    uint8
}

// trackHeader is one entry of the track offset table.
type trackHeader struct {
	Offset   uint16 // in 512-byte blocks
	TrackLen uint16 // bytes, both sides combined
}

// bitReverseTable inverts bit order within a byte (HFE stores tracks
// LSB-first, to match the PIC UART that originally wrote them; every
// other consumer in this module works MSB-first).
var bitReverseTable [256]byte

func init() {
	for i := 0; i < 256; i++ {
		var rev byte
		for b := 0; b < 8; b++ {
			if i&(1<<b) != 0 {
				rev |= 1 << (7 - b)
			}
		}
		bitReverseTable[i] = rev
	}
}

// Parser implements format.Parser for HFE v1 and v3 images.
type Parser struct{}

func (Parser) Name() string         { return "hfe" }
func (Parser) Extensions() []string { return []string{"hfe"} }
func (Parser) Capabilities() format.Caps {
	return format.CapsReadable | format.CapsWritable
}
