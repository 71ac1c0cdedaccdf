package hfe

import (
	"bytes"
	"testing"

	"github.com/gofloppy/fluxcore/diskimage"
	"github.com/gofloppy/fluxcore/schema"
)

func TestHFEv1LoadSaveRoundTrip(t *testing.T) {
	src := diskimage.Create(diskimage.Format720K)
	if err := src.Format(diskimage.Format720K); err != nil {
		t.Fatalf("Format: %v", err)
	}
	payload := bytes.Repeat([]byte{0xA5}, schema.NSize(2))
	ch := schema.DiskCh{Cylinder: 5, Head: 1}
	if _, err := src.WriteSector(ch, schema.NewSectorIdQuery(3), payload, schema.ScopeDataOnly, false, false); err != nil {
		t.Fatalf("WriteSector: %v", err)
	}

	p := Parser{}
	raw, err := p.Save(src)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(raw) == 0 {
		t.Fatalf("Save produced empty image")
	}

	di, err := p.Load(raw)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	geom := di.Geometry()
	if geom.Cylinder != 80 || geom.Head != 2 {
		t.Fatalf("Geometry = %+v, want 80/2", geom)
	}

	rsr, err := di.ReadSector(ch, schema.NewSectorIdQuery(3), nil, schema.ScopeDataOnly, false)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if !bytes.Equal(rsr.ReadBuf, payload) {
		t.Fatalf("ReadBuf = %x, want %x", rsr.ReadBuf, payload)
	}
}

func TestHFELoadRejectsBadSignature(t *testing.T) {
	data := make([]byte, 1024)
	copy(data, "NOTAREALHFE")
	if _, err := (Parser{}).Load(data); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestHFEParserMetadata(t *testing.T) {
	p := Parser{}
	if p.Name() != "hfe" {
		t.Fatalf("Name = %q", p.Name())
	}
	if len(p.Extensions()) != 1 || p.Extensions()[0] != "hfe" {
		t.Fatalf("Extensions = %v", p.Extensions())
	}
}

func TestBitReverseTableIsInvolution(t *testing.T) {
	for i := 0; i < 256; i++ {
		if bitReverseTable[bitReverseTable[byte(i)]] != byte(i) {
			t.Fatalf("bitReverseTable not involutive at %d", i)
		}
	}
}
