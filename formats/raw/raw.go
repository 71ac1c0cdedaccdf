// Package raw implements the simplest floppy image format there is: a
// flat, sector-by-sector binary copy of the entire disk with no
// header, no CRCs, and no weak-bit information, commonly carrying an
// .img or .ima extension. It replaces the teacher's stubbed
// hfe.ReadIMG/WriteIMG, which report "not yet implemented" for every
// call.
package raw

import (
	"fmt"

	"github.com/gofloppy/fluxcore/diskimage"
	"github.com/gofloppy/fluxcore/format"
	"github.com/gofloppy/fluxcore/schema"
	"github.com/gofloppy/fluxcore/track"
)

func init() {
	format.Register(Parser{})
}

// Parser implements format.Parser for raw sector images.
type Parser struct{}

func (Parser) Name() string         { return "raw" }
func (Parser) Extensions() []string { return []string{"img", "ima", "dsk"} }
func (Parser) Capabilities() format.Caps {
	return format.CapsReadable | format.CapsWritable
}

// Load builds a DiskImage by matching data's length against a known
// StandardFormat and slicing it into MetaSectorTrack sectors in CHS
// order: cylinder varies slowest, then head, then sector, mirroring
// how a drive controller lays out a raw dump on linear media.
func (Parser) Load(data []byte) (*diskimage.DiskImage, error) {
	sf := diskimage.StandardFormatFromSize(len(data))
	if sf == diskimage.FormatInvalid {
		return nil, fmt.Errorf("raw: %w (%d bytes)", diskimage.ErrUnknownSize, len(data))
	}

	chsn := sf.Chsn()
	sectorSize := schema.NSize(chsn.N)
	di := diskimage.Create(sf)

	offset := 0
	for cyl := uint16(0); cyl < chsn.C(); cyl++ {
		for head := uint8(0); head < chsn.H(); head++ {
			ch := schema.DiskCh{Cylinder: cyl, Head: head}
			if err := di.AddTrackMetaSector(ch, sf.Encoding(), sf.DataRate()); err != nil {
				return nil, fmt.Errorf("raw: add track %d/%d: %w", cyl, head, err)
			}

			for s := uint8(1); s <= chsn.S(); s++ {
				if offset+sectorSize > len(data) {
					return nil, fmt.Errorf("raw: truncated image at cylinder %d head %d sector %d", cyl, head, s)
				}
				sd := track.SectorDescriptor{
					IDChsn: schema.NewDiskChsn(cyl, head, s, chsn.N),
					Data:   data[offset : offset+sectorSize],
					Attributes: track.SectorAttributes{
						AddressCRCValid: true,
						DataCRCValid:    true,
					},
				}
				if err := di.MasterSector(ch, sd, false); err != nil {
					return nil, fmt.Errorf("raw: master sector %d/%d/%d: %w", cyl, head, s, err)
				}
				offset += sectorSize
			}
		}
	}

	di.SetSourceFormat("raw")
	return di, nil
}

// Save flattens di back into a raw sector dump by reading every
// sector in CHS order. di must be of MetaSector or BitStream
// resolution; a FluxStream-resolution image resolves itself on first
// ReadAllSectors call.
func (Parser) Save(di *diskimage.DiskImage) ([]byte, error) {
	geom := di.Geometry()
	var out []byte

	for cyl := uint16(0); cyl < geom.Cylinder; cyl++ {
		for head := uint8(0); head < geom.Head; head++ {
			ch := schema.DiskCh{Cylinder: cyl, Head: head}
			rtr, err := di.ReadAllSectors(ch, 1, 0xFF)
			if err != nil {
				return nil, fmt.Errorf("raw: read track %d/%d: %w", cyl, head, err)
			}
			out = append(out, rtr.ReadBuf...)
		}
	}

	return out, nil
}
