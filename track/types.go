// Package track implements the three track representations a floppy
// image can hold data at — bitstream, flux stream, and meta-sector —
// behind one Track interface, plus the shared codec-and-schema wiring
// BitStreamTrack uses to go from raw encoded bits to a sector index.
package track

import (
	"errors"

	"github.com/gofloppy/fluxcore/schema"
)

// Sentinel errors returned by Track implementations. diskimage wraps
// these into its own DiskImageError where a caller-facing variant is
// warranted; track itself stays with plain errors, following the
// teacher's fmt.Errorf("...: %w", err) wrapping convention rather than
// inventing a structured error type at this layer.
var (
	ErrUnsupportedFormat = errors.New("track: unsupported format")
	ErrNoSchema          = errors.New("track: no track schema detected")
	ErrParameter         = errors.New("track: invalid parameter")
	ErrSeek              = errors.New("track: seek out of range")
	ErrBitstream         = errors.New("track: bitstream read error")
	ErrDeletedMismatch   = errors.New("track: deleted-mark mismatch; changing sector data type is not supported")
)

// DataResolution is the representational depth at which a track stores
// its data.
type DataResolution int

const (
	ResolutionFluxStream DataResolution = iota
	ResolutionBitStream
	ResolutionMetaSector
)

func (r DataResolution) String() string {
	switch r {
	case ResolutionFluxStream:
		return "FluxStream"
	case ResolutionBitStream:
		return "BitStream"
	case ResolutionMetaSector:
		return "MetaSector"
	default:
		return "Unknown"
	}
}

// Density classifies the physical recording density of a track.
type Density int

const (
	DensityStandard Density = iota
	DensityDouble
	DensityHigh
	DensityExtended
)

func (d Density) String() string {
	switch d {
	case DensityStandard:
		return "Standard"
	case DensityDouble:
		return "Double"
	case DensityHigh:
		return "High"
	case DensityExtended:
		return "Extended"
	default:
		return "Unknown"
	}
}

// DataRate carries a track's bit rate in Hz plus the density it
// implies, mirroring the original's pairing of a raw rate with a
// density scale factor used to size default gaps.
type DataRate struct {
	Hz      int
	Density Density
}

// NewDataRate classifies hz into a DataRate/Density pair by rate band:
// up to 125 kHz (and any non-positive rate) is Standard, up to 300 kHz
// Double, up to 500 kHz High, and anything faster Extended. These bands
// are separate from flux.Histogram.DetectDensity's clock-period
// thresholds.
func NewDataRate(hz int) DataRate {
	switch {
	case hz <= 0:
		return DataRate{Hz: hz, Density: DensityStandard}
	case hz <= 125_000:
		return DataRate{Hz: hz, Density: DensityStandard}
	case hz <= 300_000:
		return DataRate{Hz: hz, Density: DensityDouble}
	case hz <= 500_000:
		return DataRate{Hz: hz, Density: DensityHigh}
	default:
		return DataRate{Hz: hz, Density: DensityExtended}
	}
}

// Rpm is a disk's nominal rotation speed.
type Rpm int

const (
	Rpm300 Rpm = 300
	Rpm360 Rpm = 360
)

// IndexTimeMs returns the nominal index-to-index time in milliseconds.
func (r Rpm) IndexTimeMs() float64 {
	if r == Rpm360 {
		return 200.0 * 300.0 / 360.0
	}
	return 200.0
}

// Info summarizes a track's representation, encoding, and schema for
// presentation and diagnostics.
type Info struct {
	Resolution DataResolution
	Encoding   schema.Encoding
	SchemaName string // "system34", or "" if no schema was detected
	DataRate   DataRate
	Density    Density
	Rpm        *Rpm
	BitLength  int
	SectorCt   int
}

// SectorAttributes reports integrity flags for one sector, independent
// of how the track stores its data.
type SectorAttributes struct {
	AddressCRCValid bool
	DataCRCValid    bool
	DeletedMark     bool
	NoDAM           bool
}

// SectorMapEntry pairs a sector's identity with its integrity summary.
type SectorMapEntry struct {
	Chsn       schema.DiskChsn
	Attributes SectorAttributes
}

// SectorDescriptor describes one sector to add to a MetaSectorTrack via
// Track.AddSector. WeakMask and HoleMask are optional, byte-length
// masks the same length as Data: a set bit means the corresponding bit
// position is unstable (weak) or physically absent (a hole punched
// through the media), and reads substitute a random bit for it.
type SectorDescriptor struct {
	IDChsn     schema.DiskChsn
	Data       []byte
	WeakMask   []byte
	HoleMask   []byte
	Attributes SectorAttributes
}

// ScanSectorResult is the outcome of locating a sector by query,
// without reading its data. It is schema.SectorScanResult directly: a
// bitstream track's scan and a generic metadata search are the same
// operation once the schema has produced an element stream.
type ScanSectorResult = schema.SectorScanResult

// ReadSectorResult is returned by Track.ReadSector.
type ReadSectorResult struct {
	IDChsn       *schema.DiskChsn
	ReadBuf      []byte
	DataStart    int
	DataEnd      int
	DeletedMark  bool
	NotFound     bool
	NoDAM        bool
	AddressError bool
	DataError    bool
	DataCRC      *schema.CRCResult

	WrongCylinder bool
	BadCylinder   bool
	WrongHead     bool
}

// WriteSectorResult is returned by Track.WriteSector.
type WriteSectorResult struct {
	NotFound     bool
	NoDAM        bool
	AddressError bool

	WrongCylinder bool
	BadCylinder   bool
	WrongHead     bool
}

// ReadTrackResult is returned by Track.ReadAllSectors and Track.Read.
type ReadTrackResult struct {
	NotFound     bool
	SectorsRead  uint16
	ReadBuf      []byte
	DeletedMark  bool
	AddressError bool
	DataError    bool
	ReadLenBits  int
	ReadLenBytes int
}
