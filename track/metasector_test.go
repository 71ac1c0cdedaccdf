package track

import (
	"bytes"
	"testing"

	"github.com/gofloppy/fluxcore/schema"
)

func sectorData(n uint8, fill byte) []byte {
	return bytes.Repeat([]byte{fill}, schema.NSize(n))
}

// validAttrs is what a loader reading an intact sector from a source
// with no CRC tracking of its own (a raw sector image, for instance)
// supplies: there is no recorded CRC error to report.
var validAttrs = SectorAttributes{AddressCRCValid: true, DataCRCValid: true}

func TestMetaSectorTrackAddAndReadSector(t *testing.T) {
	mst := NewMetaSectorTrack(schema.DiskCh{Cylinder: 0, Head: 0}, schema.EncodingMFM, NewDataRate(250_000))

	if err := mst.AddSector(SectorDescriptor{
		IDChsn: schema.NewDiskChsn(0, 0, 1, 2),
		Data:   sectorData(2, 0xAA),
	}, false); err != nil {
		t.Fatalf("AddSector: %v", err)
	}

	if mst.SectorCount() != 1 {
		t.Fatalf("SectorCount = %d, want 1", mst.SectorCount())
	}
	if !mst.HasSectorID(1) {
		t.Fatalf("expected sector 1 to be present")
	}

	rr, err := mst.ReadSector(schema.NewSectorIdQuery(1), nil, 0, schema.ScopeDataOnly, false)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if rr.NotFound {
		t.Fatalf("sector 1 not found")
	}
	if !bytes.Equal(rr.ReadBuf, sectorData(2, 0xAA)) {
		t.Fatalf("ReadBuf = %x, want %x", rr.ReadBuf, sectorData(2, 0xAA))
	}
}

func TestMetaSectorTrackReadSectorRejectsNonDataScope(t *testing.T) {
	mst := NewMetaSectorTrack(schema.DiskCh{Cylinder: 0, Head: 0}, schema.EncodingMFM, NewDataRate(250_000))
	_, err := mst.ReadSector(schema.NewSectorIdQuery(1), nil, 0, schema.ScopeCrcOnly, false)
	if err != ErrParameter {
		t.Fatalf("err = %v, want ErrParameter", err)
	}
}

func TestMetaSectorTrackWriteSectorRoundTrip(t *testing.T) {
	mst := NewMetaSectorTrack(schema.DiskCh{Cylinder: 0, Head: 0}, schema.EncodingMFM, NewDataRate(250_000))
	if err := mst.AddSector(SectorDescriptor{
		IDChsn:     schema.NewDiskChsn(0, 0, 1, 2),
		Data:       sectorData(2, 0x00),
		Attributes: validAttrs,
	}, false); err != nil {
		t.Fatalf("AddSector: %v", err)
	}

	payload := make([]byte, schema.NSize(2))
	for i := range payload {
		payload[i] = byte(i)
	}
	if _, err := mst.WriteSector(schema.NewSectorIdQuery(1), 0, payload, schema.ScopeDataOnly, false, false); err != nil {
		t.Fatalf("WriteSector: %v", err)
	}

	rr, err := mst.ReadSector(schema.NewSectorIdQuery(1), nil, 0, schema.ScopeDataOnly, false)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if !bytes.Equal(rr.ReadBuf, payload) {
		t.Fatalf("ReadBuf = %x, want %x", rr.ReadBuf, payload)
	}
}

func TestMetaSectorTrackWriteSectorAmbiguousMatchRejected(t *testing.T) {
	mst := NewMetaSectorTrack(schema.DiskCh{Cylinder: 0, Head: 0}, schema.EncodingMFM, NewDataRate(250_000))
	for i := 0; i < 2; i++ {
		if err := mst.AddSector(SectorDescriptor{
			IDChsn: schema.NewDiskChsn(0, 0, 1, 2),
			Data:   sectorData(2, byte(i)),
		}, false); err != nil {
			t.Fatalf("AddSector %d: %v", i, err)
		}
	}

	_, err := mst.WriteSector(schema.NewSectorIdQuery(1), 0, sectorData(2, 0xFF), schema.ScopeDataOnly, false, false)
	if err != ErrParameter {
		t.Fatalf("err = %v, want ErrParameter for an ambiguous duplicate-CHSN match", err)
	}
}

func TestMetaSectorTrackAlternateInfersWeakMask(t *testing.T) {
	mst := NewMetaSectorTrack(schema.DiskCh{Cylinder: 0, Head: 0}, schema.EncodingMFM, NewDataRate(250_000))

	data1 := sectorData(2, 0x00)
	if err := mst.AddSector(SectorDescriptor{
		IDChsn: schema.NewDiskChsn(0, 0, 1, 2),
		Data:   data1,
	}, false); err != nil {
		t.Fatalf("AddSector: %v", err)
	}

	data2 := sectorData(2, 0x00)
	data2[0] = 0xFF // differs from data1's first byte, inferred weak
	if err := mst.AddSector(SectorDescriptor{
		IDChsn: schema.NewDiskChsn(0, 0, 1, 2),
		Data:   data2,
	}, true); err != nil {
		t.Fatalf("AddSector (alternate): %v", err)
	}

	if mst.SectorCount() != 1 {
		t.Fatalf("SectorCount = %d, want 1 (alternate folds into the existing sector)", mst.SectorCount())
	}
	if !mst.HasWeakBits() {
		t.Fatalf("expected a weak-bit mask to be inferred from the alternate read")
	}
}

func TestMetaSectorTrackReadAllSectors(t *testing.T) {
	mst := NewMetaSectorTrack(schema.DiskCh{Cylinder: 0, Head: 0}, schema.EncodingMFM, NewDataRate(250_000))
	for i := uint8(1); i <= 3; i++ {
		if err := mst.AddSector(SectorDescriptor{
			IDChsn: schema.NewDiskChsn(0, 0, i, 2),
			Data:   sectorData(2, i),
		}, false); err != nil {
			t.Fatalf("AddSector %d: %v", i, err)
		}
	}

	rtr, err := mst.ReadAllSectors(2, 2)
	if err != nil {
		t.Fatalf("ReadAllSectors: %v", err)
	}
	if rtr.SectorsRead != 2 {
		t.Fatalf("SectorsRead = %d, want 2 (eot is a sector count limit here)", rtr.SectorsRead)
	}
	if rtr.ReadLenBytes != 2*schema.NSize(2) {
		t.Fatalf("ReadLenBytes = %d, want %d", rtr.ReadLenBytes, 2*schema.NSize(2))
	}
}

func TestMetaSectorTrackReadUnsupported(t *testing.T) {
	mst := NewMetaSectorTrack(schema.DiskCh{Cylinder: 0, Head: 0}, schema.EncodingMFM, NewDataRate(250_000))
	_, err := mst.Read(0)
	if err != ErrUnsupportedFormat {
		t.Fatalf("Read err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestMetaSectorTrackHashChangesWithData(t *testing.T) {
	mst := NewMetaSectorTrack(schema.DiskCh{Cylinder: 0, Head: 0}, schema.EncodingMFM, NewDataRate(250_000))
	if err := mst.AddSector(SectorDescriptor{
		IDChsn:     schema.NewDiskChsn(0, 0, 1, 2),
		Data:       sectorData(2, 0x00),
		Attributes: validAttrs,
	}, false); err != nil {
		t.Fatalf("AddSector: %v", err)
	}
	h1 := mst.Hash()

	if _, err := mst.WriteSector(schema.NewSectorIdQuery(1), 0, sectorData(2, 0xFF), schema.ScopeDataOnly, false, false); err != nil {
		t.Fatalf("WriteSector: %v", err)
	}
	if mst.Hash() == h1 {
		t.Fatalf("Hash did not change after a sector write")
	}
}

func TestMetaSectorTrackAnalysis(t *testing.T) {
	mst := NewMetaSectorTrack(schema.DiskCh{Cylinder: 0, Head: 0}, schema.EncodingMFM, NewDataRate(250_000))
	for i := uint8(1); i <= 2; i++ {
		if err := mst.AddSector(SectorDescriptor{
			IDChsn: schema.NewDiskChsn(0, 0, i, 2),
			Data:   sectorData(2, i),
		}, false); err != nil {
			t.Fatalf("AddSector %d: %v", i, err)
		}
	}

	a, err := mst.Analysis()
	if err != nil {
		t.Fatalf("Analysis: %v", err)
	}
	if a.SectorCount != 2 {
		t.Fatalf("SectorCount = %d, want 2", a.SectorCount)
	}
	if a.NonconsecutiveSectors {
		t.Fatalf("expected consecutive sector numbering")
	}
}
