package raw

import (
	"bytes"
	"testing"

	"github.com/gofloppy/fluxcore/format"
	"github.com/gofloppy/fluxcore/schema"
)

func TestRawLoadSaveRoundTrip(t *testing.T) {
	const size = 720 * 1024 // Format720K
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}

	p := Parser{}
	di, err := p.Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	geom := di.Geometry()
	if geom.Cylinder != 80 || geom.Head != 2 {
		t.Fatalf("Geometry = %+v, want 80/2", geom)
	}

	rsr, err := di.ReadSector(schema.DiskCh{Cylinder: 0, Head: 0}, schema.NewSectorIdQuery(1), nil, schema.ScopeDataOnly, false)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if !bytes.Equal(rsr.ReadBuf, data[:512]) {
		t.Fatalf("first sector mismatch")
	}

	out, err := p.Save(di)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(out), len(data))
	}
}

func TestRawLoadUnknownSize(t *testing.T) {
	_, err := (Parser{}).Load(make([]byte, 12345))
	if err == nil {
		t.Fatalf("expected error for unrecognized size")
	}
}

func TestRawParserMetadata(t *testing.T) {
	p := Parser{}
	if p.Name() != "raw" {
		t.Fatalf("Name = %q", p.Name())
	}
	if !p.Capabilities().Has(format.CapsReadable | format.CapsWritable) {
		t.Fatalf("expected readable+writable capabilities")
	}
}
