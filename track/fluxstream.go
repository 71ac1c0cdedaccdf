package track

import (
	"fmt"

	"github.com/gofloppy/fluxcore/flux"
	"github.com/gofloppy/fluxcore/schema"
	"github.com/gofloppy/fluxcore/schema/system34"
)

// FluxStreamTrackParams configures NewFluxStreamTrack. Revolutions
// holds one slice of flux interval lengths per captured revolution, in
// seconds, matching the unit a capture device timestamps transitions
// in before any PLL processing.
type FluxStreamTrackParams struct {
	Ch          schema.DiskCh
	Encoding    schema.Encoding
	Revolutions [][]float64
	DataRate    DataRate
	Rpm         *Rpm
}

// FluxStreamTrack is a track stored as the raw flux transition capture
// it was read from, one or more full revolutions deep, with no
// decoding performed yet. It resolves itself into a BitStreamTrack on
// first use of any sector-level operation, caching the result so the
// (relatively expensive) PLL decode only runs once per track.
type FluxStreamTrack struct {
	ch          schema.DiskCh
	encoding    schema.Encoding
	dataRate    DataRate
	rpm         *Rpm
	revolutions [][]float64

	resolved *BitStreamTrack
}

var _ Track = (*FluxStreamTrack)(nil)

// NewFluxStreamTrack wraps a set of captured revolutions. Resolution
// into a bitstream is deferred until first needed.
func NewFluxStreamTrack(params FluxStreamTrackParams) (*FluxStreamTrack, error) {
	if len(params.Revolutions) == 0 {
		return nil, fmt.Errorf("%w: at least one revolution is required", ErrParameter)
	}
	return &FluxStreamTrack{
		ch:          params.Ch,
		encoding:    params.Encoding,
		dataRate:    params.DataRate,
		rpm:         params.Rpm,
		revolutions: params.Revolutions,
	}, nil
}

// AddRevolution appends another captured revolution (e.g. a retry read
// of the same track), invalidating any cached resolution so the next
// sector operation picks among all revolutions again.
func (t *FluxStreamTrack) AddRevolution(intervals []float64) {
	t.revolutions = append(t.revolutions, intervals)
	t.resolved = nil
}

// RevolutionCount reports how many revolutions have been captured.
func (t *FluxStreamTrack) RevolutionCount() int {
	return len(t.revolutions)
}

// longestRevolution returns the index of the revolution with the most
// flux transitions, used as the default "longest clean revolution"
// materialisation policy: a short revolution is more likely to be one
// where the drive lost the index pulse or the capture was truncated.
func (t *FluxStreamTrack) longestRevolution() int {
	best := 0
	for i, rev := range t.revolutions {
		if len(rev) > len(t.revolutions[best]) {
			best = i
		}
	}
	return best
}

// resolve decodes the longest captured revolution through the flux PLL
// into a BitStreamTrack, caching the result.
func (t *FluxStreamTrack) resolve() (*BitStreamTrack, error) {
	if t.resolved != nil {
		return t.resolved, nil
	}

	rev := t.revolutions[t.longestRevolution()]
	intervals := make([]uint64, len(rev))
	for i, seconds := range rev {
		intervals[i] = uint64(seconds * 1e9)
	}

	bitRateKHz := float64(t.dataRate.Hz) / 1000
	if bitRateKHz <= 0 {
		bitRateKHz = 250
	}
	bits, _ := flux.DecodeRevolution(intervals, bitRateKHz)

	bst, err := NewBitStreamTrack(BitStreamTrackParams{
		Ch:         t.ch,
		Encoding:   t.encoding,
		Data:       bits,
		DetectWeak: false,
		DataRate:   t.dataRate,
		Rpm:        t.rpm,
	})
	if err != nil {
		return nil, err
	}

	t.resolved = bst
	return bst, nil
}

func (t *FluxStreamTrack) Resolution() DataResolution { return ResolutionFluxStream }
func (t *FluxStreamTrack) Ch() schema.DiskCh           { return t.ch }
func (t *FluxStreamTrack) SetCh(ch schema.DiskCh)      { t.ch = ch }
func (t *FluxStreamTrack) Encoding() schema.Encoding   { return t.encoding }

func (t *FluxStreamTrack) Info() Info {
	info := Info{
		Resolution: ResolutionFluxStream,
		Encoding:   t.encoding,
		DataRate:   t.dataRate,
		Density:    t.dataRate.Density,
		Rpm:        t.rpm,
	}
	if bst, err := t.resolve(); err == nil {
		resolvedInfo := bst.Info()
		info.SchemaName = resolvedInfo.SchemaName
		info.BitLength = resolvedInfo.BitLength
		info.SectorCt = resolvedInfo.SectorCt
	}
	return info
}

func (t *FluxStreamTrack) Metadata() *schema.Metadata {
	bst, err := t.resolve()
	if err != nil {
		return &schema.Metadata{}
	}
	return bst.Metadata()
}

func (t *FluxStreamTrack) RawBytes() []byte {
	bst, err := t.resolve()
	if err != nil {
		return nil
	}
	return bst.RawBytes()
}

func (t *FluxStreamTrack) SectorCount() int {
	bst, err := t.resolve()
	if err != nil {
		return 0
	}
	return bst.SectorCount()
}

func (t *FluxStreamTrack) HasSectorID(id uint8) bool {
	bst, err := t.resolve()
	if err != nil {
		return false
	}
	return bst.HasSectorID(id)
}

func (t *FluxStreamTrack) SectorList() []SectorMapEntry {
	bst, err := t.resolve()
	if err != nil {
		return nil
	}
	return bst.SectorList()
}

func (t *FluxStreamTrack) HasWeakBits() bool {
	bst, err := t.resolve()
	if err != nil {
		return false
	}
	return bst.HasWeakBits()
}

// AddSector is not supported on a flux-stream track, for the same
// reason it isn't on a BitStreamTrack: its sectors come from decoding
// captured flux, not from an appended sector list.
func (t *FluxStreamTrack) AddSector(sd SectorDescriptor, alternate bool) error {
	return ErrUnsupportedFormat
}

func (t *FluxStreamTrack) ReadSector(id schema.SectorIdQuery, overrideN *uint8, offset int, scope schema.RwScope, debug bool) (ReadSectorResult, error) {
	bst, err := t.resolve()
	if err != nil {
		return ReadSectorResult{}, err
	}
	return bst.ReadSector(id, overrideN, offset, scope, debug)
}

func (t *FluxStreamTrack) ScanSector(id schema.SectorIdQuery, offset int) (ScanSectorResult, error) {
	bst, err := t.resolve()
	if err != nil {
		return ScanSectorResult{}, err
	}
	return bst.ScanSector(id, offset)
}

func (t *FluxStreamTrack) WriteSector(id schema.SectorIdQuery, offset int, data []byte, scope schema.RwScope, writeDeleted, debug bool) (WriteSectorResult, error) {
	bst, err := t.resolve()
	if err != nil {
		return WriteSectorResult{}, err
	}
	return bst.WriteSector(id, offset, data, scope, writeDeleted, debug)
}

func (t *FluxStreamTrack) RecalculateSectorCRC(id schema.SectorIdQuery, offset int) error {
	bst, err := t.resolve()
	if err != nil {
		return err
	}
	return bst.RecalculateSectorCRC(id, offset)
}

func (t *FluxStreamTrack) ReadAllSectors(n, eot uint8) (ReadTrackResult, error) {
	bst, err := t.resolve()
	if err != nil {
		return ReadTrackResult{}, err
	}
	return bst.ReadAllSectors(n, eot)
}

func (t *FluxStreamTrack) Read(overdump int) (ReadTrackResult, error) {
	bst, err := t.resolve()
	if err != nil {
		return ReadTrackResult{}, err
	}
	return bst.Read(overdump)
}

// Format resolves the track first (so the resulting BitStreamTrack has
// a codec to write into), then formats that resolved track. The flux
// capture itself is not retained afterward: once a track has been
// formatted, it behaves as an ordinary bitstream track from then on.
func (t *FluxStreamTrack) Format(standard system34.Standard, sectors []schema.DiskChsn, fillPattern []byte, gap3 int) error {
	bst, err := t.resolve()
	if err != nil {
		return err
	}
	return bst.Format(standard, sectors, fillPattern, gap3)
}

func (t *FluxStreamTrack) Analysis() (schema.Analysis, error) {
	bst, err := t.resolve()
	if err != nil {
		return schema.Analysis{}, err
	}
	return bst.Analysis()
}

func (t *FluxStreamTrack) Hash() [20]byte {
	bst, err := t.resolve()
	if err != nil {
		return [20]byte{}
	}
	return bst.Hash()
}
