package track

import (
	"bytes"
	"testing"

	"github.com/gofloppy/fluxcore/schema"
	"github.com/gofloppy/fluxcore/schema/system34"
)

const testBitcellCt = 100_000

func formattedMFMTrack(t *testing.T, n uint8) *BitStreamTrack {
	t.Helper()

	track, err := NewBitStreamTrack(BitStreamTrackParams{
		Ch:        schema.DiskCh{Cylinder: 0, Head: 0},
		Encoding:  schema.EncodingMFM,
		BitcellCt: testBitcellCt,
		DataRate:  NewDataRate(250_000),
	})
	if err != nil {
		t.Fatalf("NewBitStreamTrack: %v", err)
	}

	sectors := []schema.DiskChsn{
		schema.NewDiskChsn(0, 0, 1, n),
		schema.NewDiskChsn(0, 0, 2, n),
	}
	if err := track.Format(system34.StandardIBM, sectors, []byte{0xF6}, system34.IBMGap3Default); err != nil {
		t.Fatalf("Format: %v", err)
	}
	return track
}

func TestBitStreamTrackFormatScansSchema(t *testing.T) {
	track := formattedMFMTrack(t, 2)

	if track.Info().SchemaName != "system34" {
		t.Fatalf("SchemaName = %q, want system34", track.Info().SchemaName)
	}
	if track.SectorCount() != 2 {
		t.Fatalf("SectorCount = %d, want 2", track.SectorCount())
	}
	if !track.HasSectorID(1) || !track.HasSectorID(2) {
		t.Fatalf("expected sectors 1 and 2 to be present")
	}
}

func TestBitStreamTrackReadSector(t *testing.T) {
	track := formattedMFMTrack(t, 2)

	rr, err := track.ReadSector(schema.NewSectorIdQuery(1), nil, 0, schema.ScopeDataOnly, false)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if rr.NotFound {
		t.Fatalf("sector 1 not found")
	}
	want := bytes.Repeat([]byte{0xF6}, schema.NSize(2))
	if !bytes.Equal(rr.ReadBuf, want) {
		t.Fatalf("ReadBuf = %x, want %x", rr.ReadBuf, want)
	}
	if rr.DataCRC == nil || rr.DataCRC.IsError() {
		t.Fatalf("expected a valid data CRC, got %+v", rr.DataCRC)
	}
}

func TestBitStreamTrackWriteSectorRoundTrip(t *testing.T) {
	track := formattedMFMTrack(t, 2)

	payload := make([]byte, schema.NSize(2))
	for i := range payload {
		payload[i] = byte(i)
	}

	if _, err := track.WriteSector(schema.NewSectorIdQuery(1), 0, payload, schema.ScopeDataOnly, false, false); err != nil {
		t.Fatalf("WriteSector: %v", err)
	}

	rr, err := track.ReadSector(schema.NewSectorIdQuery(1), nil, 0, schema.ScopeDataOnly, false)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if !bytes.Equal(rr.ReadBuf, payload) {
		t.Fatalf("ReadBuf = %x, want %x", rr.ReadBuf, payload)
	}
	if rr.DataCRC == nil || rr.DataCRC.IsError() {
		t.Fatalf("write did not leave a valid CRC behind: %+v", rr.DataCRC)
	}

	// Sector 2 must be untouched.
	rr2, err := track.ReadSector(schema.NewSectorIdQuery(2), nil, 0, schema.ScopeDataOnly, false)
	if err != nil {
		t.Fatalf("ReadSector(2): %v", err)
	}
	want2 := bytes.Repeat([]byte{0xF6}, schema.NSize(2))
	if !bytes.Equal(rr2.ReadBuf, want2) {
		t.Fatalf("sector 2 ReadBuf = %x, want %x", rr2.ReadBuf, want2)
	}
}

func TestBitStreamTrackReadSectorNotFound(t *testing.T) {
	track := formattedMFMTrack(t, 2)

	rr, err := track.ReadSector(schema.NewSectorIdQuery(9), nil, 0, schema.ScopeDataOnly, false)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if !rr.NotFound {
		t.Fatalf("expected sector 9 to be not found")
	}
}

func TestBitStreamTrackReadAllSectors(t *testing.T) {
	track := formattedMFMTrack(t, 2)

	rtr, err := track.ReadAllSectors(2, 2)
	if err != nil {
		t.Fatalf("ReadAllSectors: %v", err)
	}
	if rtr.SectorsRead != 2 {
		t.Fatalf("SectorsRead = %d, want 2", rtr.SectorsRead)
	}
	if rtr.ReadLenBytes != 2*schema.NSize(2) {
		t.Fatalf("ReadLenBytes = %d, want %d", rtr.ReadLenBytes, 2*schema.NSize(2))
	}
}

func TestBitStreamTrackAddSectorUnsupported(t *testing.T) {
	track := formattedMFMTrack(t, 2)
	err := track.AddSector(SectorDescriptor{}, false)
	if err != ErrUnsupportedFormat {
		t.Fatalf("AddSector err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestBitStreamTrackHashStable(t *testing.T) {
	track := formattedMFMTrack(t, 2)
	h1 := track.Hash()
	h2 := track.Hash()
	if h1 != h2 {
		t.Fatalf("Hash not stable across calls: %x vs %x", h1, h2)
	}

	payload := make([]byte, schema.NSize(2))
	if _, err := track.WriteSector(schema.NewSectorIdQuery(1), 0, payload, schema.ScopeDataOnly, false, false); err != nil {
		t.Fatalf("WriteSector: %v", err)
	}
	if track.Hash() == h1 {
		t.Fatalf("Hash did not change after a sector write")
	}
}

func TestBitStreamTrackAnalysis(t *testing.T) {
	track := formattedMFMTrack(t, 2)
	a, err := track.Analysis()
	if err != nil {
		t.Fatalf("Analysis: %v", err)
	}
	if a.SectorCount != 2 {
		t.Fatalf("SectorCount = %d, want 2", a.SectorCount)
	}
	if a.NonconsecutiveSectors {
		t.Fatalf("expected consecutive sector numbering")
	}
	if a.ConsistentSectorSize == nil || *a.ConsistentSectorSize != 2 {
		t.Fatalf("ConsistentSectorSize = %v, want 2", a.ConsistentSectorSize)
	}
}
