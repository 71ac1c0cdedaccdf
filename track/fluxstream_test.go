package track

import (
	"testing"

	"github.com/gofloppy/fluxcore/bitcell"
	"github.com/gofloppy/fluxcore/schema"
	"github.com/gofloppy/fluxcore/schema/system34"
)

// rawBitsToFluxIntervals turns an encoded bitstream's raw bit vector
// back into the flux-transition interval sequence a drive would have
// produced recording it: one interval per run of cells up to and
// including the next set ("1") bit, in seconds, at periodSeconds per
// cell. This is the inverse of what flux.PLL.NextBit decodes, letting
// a test build a synthetic capture from a known-good bitstream track.
func rawBitsToFluxIntervals(raw *bitcell.BitVec, periodSeconds float64) []float64 {
	var out []float64
	cells := 0
	for i := 0; i < raw.Len(); i++ {
		cells++
		if raw.Get(i) {
			out = append(out, float64(cells)*periodSeconds)
			cells = 0
		}
	}
	if cells > 0 {
		out = append(out, float64(cells)*periodSeconds)
	}
	return out
}

func TestFluxStreamTrackResolvesKnownGoodCapture(t *testing.T) {
	dataRate := NewDataRate(250_000)

	bst := formattedMFMTrack(t, 2)
	intervals := rawBitsToFluxIntervals(bst.codec.RawData(), 2000e-9)

	fst, err := NewFluxStreamTrack(FluxStreamTrackParams{
		Ch:          schema.DiskCh{Cylinder: 0, Head: 0},
		Encoding:    schema.EncodingMFM,
		Revolutions: [][]float64{intervals},
		DataRate:    dataRate,
	})
	if err != nil {
		t.Fatalf("NewFluxStreamTrack: %v", err)
	}

	if fst.Resolution() != ResolutionFluxStream {
		t.Fatalf("Resolution = %v, want ResolutionFluxStream", fst.Resolution())
	}
	if fst.RevolutionCount() != 1 {
		t.Fatalf("RevolutionCount = %d, want 1", fst.RevolutionCount())
	}

	if fst.SectorCount() != 2 {
		t.Fatalf("SectorCount = %d, want 2 (schema: %q)", fst.SectorCount(), fst.Info().SchemaName)
	}

	rr, err := fst.ReadSector(schema.NewSectorIdQuery(1), nil, 0, schema.ScopeDataOnly, false)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if rr.NotFound {
		t.Fatalf("sector 1 not found in resolved flux track")
	}
}

func TestFluxStreamTrackAddRevolutionInvalidatesCache(t *testing.T) {
	dataRate := NewDataRate(250_000)
	bst := formattedMFMTrack(t, 2)
	intervals := rawBitsToFluxIntervals(bst.codec.RawData(), 2000e-9)

	fst, err := NewFluxStreamTrack(FluxStreamTrackParams{
		Ch:          schema.DiskCh{Cylinder: 0, Head: 0},
		Encoding:    schema.EncodingMFM,
		Revolutions: [][]float64{intervals},
		DataRate:    dataRate,
	})
	if err != nil {
		t.Fatalf("NewFluxStreamTrack: %v", err)
	}

	if _, err := fst.resolve(); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if fst.resolved == nil {
		t.Fatalf("expected resolved cache to be populated")
	}

	fst.AddRevolution(intervals)
	if fst.resolved != nil {
		t.Fatalf("AddRevolution did not invalidate the resolved cache")
	}
	if fst.RevolutionCount() != 2 {
		t.Fatalf("RevolutionCount = %d, want 2", fst.RevolutionCount())
	}
}

func TestNewFluxStreamTrackRequiresRevolution(t *testing.T) {
	_, err := NewFluxStreamTrack(FluxStreamTrackParams{
		Ch:       schema.DiskCh{Cylinder: 0, Head: 0},
		Encoding: schema.EncodingMFM,
		DataRate: NewDataRate(250_000),
	})
	if err == nil {
		t.Fatalf("expected an error with no revolutions supplied")
	}
}

func TestFluxStreamTrackFormatUnsupportedOpsDelegate(t *testing.T) {
	dataRate := NewDataRate(250_000)
	bst := formattedMFMTrack(t, 2)
	intervals := rawBitsToFluxIntervals(bst.codec.RawData(), 2000e-9)

	fst, err := NewFluxStreamTrack(FluxStreamTrackParams{
		Ch:          schema.DiskCh{Cylinder: 0, Head: 0},
		Encoding:    schema.EncodingMFM,
		Revolutions: [][]float64{intervals},
		DataRate:    dataRate,
	})
	if err != nil {
		t.Fatalf("NewFluxStreamTrack: %v", err)
	}

	if err := fst.AddSector(SectorDescriptor{}, false); err != ErrUnsupportedFormat {
		t.Fatalf("AddSector err = %v, want ErrUnsupportedFormat", err)
	}

	sectors := []schema.DiskChsn{schema.NewDiskChsn(0, 0, 1, 2), schema.NewDiskChsn(0, 0, 2, 2)}
	if err := fst.Format(system34.StandardIBM, sectors, []byte{0xF6}, system34.IBMGap3Default); err != nil {
		t.Fatalf("Format (delegates to resolved BitStreamTrack): %v", err)
	}
}
