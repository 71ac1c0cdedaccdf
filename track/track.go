package track

import (
	"github.com/gofloppy/fluxcore/bitcell"
	"github.com/gofloppy/fluxcore/schema"
	"github.com/gofloppy/fluxcore/schema/system34"
)

// Codec is the common surface mfm.Codec, fm.Codec, and gcr.Codec all
// implement, letting BitStreamTrack treat any of the three encodings
// uniformly. Each codec satisfies it structurally; none needs to import
// track to do so.
type Codec interface {
	Len() int
	ReadDecodedU8(bitIndex int) (byte, error)
	ReadDecodedBuf(buf []byte, bitIndex int) error
	WriteEncodedBuf(buf []byte, bitIndex int) error
	Seek(offset int) (int, error)
	NextBit() (bit bool, ok bool)
	RawData() *bitcell.BitVec
	ClockBits() *bitcell.BitVec
	WeakMaskBits() *bitcell.BitVec
	DataCopied() []byte
}

// weakBitDetector is implemented by mfm.Codec and fm.Codec, whose
// regular clock/data alternation gives "a decoded zero ran on too long"
// a clear meaning. gcr.Codec does not implement it: every GCR disk byte
// has its high bit set and at most one pair of adjacent zero bits, so
// a long zero run cannot occur in valid GCR data.
type weakBitDetector interface {
	CreateWeakBitMask(runLen int)
}

// trackPadder is implemented by mfm.Codec and fm.Codec. gcr.Codec does
// not implement it: GCR formats have no standard System-34-style 0x4E
// gap-fill byte convention to detect padding against.
type trackPadder interface {
	SetTrackPadding()
}

// Track is the common interface all three track representations
// implement: BitStreamTrack, FluxStreamTrack (by resolving itself into
// a BitStreamTrack on first use), and MetaSectorTrack.
type Track interface {
	Resolution() DataResolution
	Ch() schema.DiskCh
	SetCh(ch schema.DiskCh)
	Encoding() schema.Encoding
	Info() Info
	Metadata() *schema.Metadata
	// RawBytes returns the track's raw encoded bitstream, for formats
	// (HFE) that store a track's bits directly rather than its decoded
	// sector contents. A MetaSectorTrack has no such representation and
	// returns nil.
	RawBytes() []byte
	SectorCount() int
	HasSectorID(id uint8) bool
	SectorList() []SectorMapEntry
	HasWeakBits() bool

	AddSector(sd SectorDescriptor, alternate bool) error
	ReadSector(id schema.SectorIdQuery, overrideN *uint8, offset int, scope schema.RwScope, debug bool) (ReadSectorResult, error)
	ScanSector(id schema.SectorIdQuery, offset int) (ScanSectorResult, error)
	WriteSector(id schema.SectorIdQuery, offset int, data []byte, scope schema.RwScope, writeDeleted, debug bool) (WriteSectorResult, error)
	RecalculateSectorCRC(id schema.SectorIdQuery, offset int) error
	ReadAllSectors(n, eot uint8) (ReadTrackResult, error)
	Read(overdump int) (ReadTrackResult, error)
	Format(standard system34.Standard, sectors []schema.DiskChsn, fillPattern []byte, gap3 int) error
	Analysis() (schema.Analysis, error)
	Hash() [20]byte
}
