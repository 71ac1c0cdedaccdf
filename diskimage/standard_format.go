// Package diskimage implements the DiskImage aggregator: the pool of
// per-cylinder/head tracks a parsed or synthesized floppy image is
// made of, the geometry/consistency bookkeeping around that pool, and
// the sector-level read/write/format operations that route a request
// to the right track. Concrete format parsers (formats/raw,
// formats/hfe) build a DiskImage; the format package's FormatParser
// interface is what exposes that to callers generically.
package diskimage

import (
	"fmt"

	"github.com/gofloppy/fluxcore/schema"
	"github.com/gofloppy/fluxcore/track"
)

// DefaultSectorSize is the sector size (in bytes) every standard PC
// floppy format uses.
const DefaultSectorSize = 512

// StandardFormat identifies one of the well-known, non-copy-protected
// PC floppy geometries: formats regular enough that every other
// parameter (encoding, rate, RPM, gap sizes, bitcell count) can be
// derived from the format alone.
type StandardFormat int

const (
	FormatInvalid StandardFormat = iota
	Format160K
	Format180K
	Format320K
	Format360K
	Format720K
	Format1200K
	Format1440K
	Format2880K
)

func (f StandardFormat) String() string {
	switch f {
	case Format160K:
		return `160K 5.25" DD`
	case Format180K:
		return `180K 5.25" DD`
	case Format320K:
		return `320K 5.25" DD`
	case Format360K:
		return `360K 5.25" DD`
	case Format720K:
		return `720K 3.5" DD`
	case Format1200K:
		return `1.2M 5.25" HD`
	case Format1440K:
		return `1.44M 3.5" HD`
	case Format2880K:
		return `2.88M 3.5" ED`
	default:
		return "Invalid"
	}
}

// Chsn returns the format's nominal cylinder/head/sector-count/size-code
// geometry: the layout format_track uses to lay out every track.
func (f StandardFormat) Chsn() schema.DiskChsn {
	switch f {
	case Format160K:
		return schema.NewDiskChsn(40, 1, 8, 2)
	case Format180K:
		return schema.NewDiskChsn(40, 1, 9, 2)
	case Format320K:
		return schema.NewDiskChsn(40, 2, 8, 2)
	case Format360K:
		return schema.NewDiskChsn(40, 2, 9, 2)
	case Format720K:
		return schema.NewDiskChsn(80, 2, 9, 2)
	case Format1200K:
		return schema.NewDiskChsn(80, 2, 15, 2)
	case Format1440K:
		return schema.NewDiskChsn(80, 2, 18, 2)
	case Format2880K:
		return schema.NewDiskChsn(80, 2, 36, 2)
	default:
		return schema.NewDiskChsn(1, 1, 1, 2)
	}
}

// Ch projects Chsn down to the format's disk geometry (cylinder count,
// head count).
func (f StandardFormat) Ch() schema.DiskCh {
	chsn := f.Chsn()
	return schema.DiskCh{Cylinder: chsn.Cylinder, Head: chsn.Head}
}

// Encoding is MFM for every standard format: none of the well-known PC
// floppy geometries use FM or GCR.
func (f StandardFormat) Encoding() schema.Encoding {
	return schema.EncodingMFM
}

// DataRate returns the format's nominal bitstream data rate in Hz.
func (f StandardFormat) DataRate() track.DataRate {
	switch f {
	case Format1200K:
		return track.NewDataRate(500_000)
	case Format1440K:
		return track.NewDataRate(500_000)
	case Format2880K:
		return track.NewDataRate(1_000_000)
	default:
		return track.NewDataRate(250_000)
	}
}

// Density returns the format's recording density, derived the same
// way DataRate's threshold table does.
func (f StandardFormat) Density() track.Density {
	return f.DataRate().Density
}

// Rpm returns the format's nominal rotation speed. Only the 1.2M 5.25"
// HD format spins at 360 RPM; every other standard format is 300 RPM.
func (f StandardFormat) Rpm() track.Rpm {
	if f == Format1200K {
		return track.Rpm360
	}
	return track.Rpm300
}

// BitcellCount returns the nominal number of bitcells in one
// revolution of a track of this format, used to size a blank track
// before formatting it.
func (f StandardFormat) BitcellCount() int {
	switch f {
	case Format1200K:
		return 166_666
	case Format1440K:
		return 200_000
	case Format2880K:
		return 400_000
	default:
		return 100_000
	}
}

// Gap3 returns the format's standard GAP3 (inter-sector gap) length in
// bytes.
func (f StandardFormat) Gap3() int {
	switch f {
	case Format1200K:
		return 0x54
	case Format1440K:
		return 0x6C
	case Format2880K:
		return 0x53
	default:
		return 0x50
	}
}

// Descriptor returns the DiskDescriptor summarizing this format.
func (f StandardFormat) Descriptor() DiskDescriptor {
	rpm := f.Rpm()
	return DiskDescriptor{
		Geometry:          f.Ch(),
		DefaultSectorSize: DefaultSectorSize,
		DataEncoding:      f.Encoding(),
		Density:           f.Density(),
		DataRate:          f.DataRate(),
		Rpm:               &rpm,
	}
}

// Size returns the format's total image size in bytes (cylinders *
// heads * sectors-per-track * sector size).
func (f StandardFormat) Size() int {
	switch f {
	case Format160K:
		return 163_840
	case Format180K:
		return 184_320
	case Format320K:
		return 327_680
	case Format360K:
		return 368_640
	case Format720K:
		return 737_280
	case Format1200K:
		return 1_228_800
	case Format1440K:
		return 1_474_560
	case Format2880K:
		return 2_949_120
	default:
		return 0
	}
}

// StandardFormatFromSize maps a raw image's byte size back onto the
// StandardFormat it matches, or FormatInvalid if no standard format is
// that size.
func StandardFormatFromSize(size int) StandardFormat {
	switch size {
	case 163_840:
		return Format160K
	case 184_320:
		return Format180K
	case 327_680:
		return Format320K
	case 368_640:
		return Format360K
	case 737_280:
		return Format720K
	case 1_228_800:
		return Format1200K
	case 1_474_560:
		return Format1440K
	case 2_949_120:
		return Format2880K
	default:
		return FormatInvalid
	}
}

// ErrUnknownSize reports that a raw image's size does not match any
// known StandardFormat.
var ErrUnknownSize = fmt.Errorf("diskimage: size does not match a known standard format")

// ErrUnknownFormatName reports that a config-file format name does not
// match any known StandardFormat.
var ErrUnknownFormatName = fmt.Errorf("diskimage: unrecognized standard format name")

// StandardFormatFromName maps a short config-file name ("160K",
// "1440K", ...) onto the StandardFormat it names, for the config
// package's per-drive default format field.
func StandardFormatFromName(name string) (StandardFormat, error) {
	switch name {
	case "160K":
		return Format160K, nil
	case "180K":
		return Format180K, nil
	case "320K":
		return Format320K, nil
	case "360K":
		return Format360K, nil
	case "720K":
		return Format720K, nil
	case "1200K":
		return Format1200K, nil
	case "1440K":
		return Format1440K, nil
	case "2880K":
		return Format2880K, nil
	default:
		return FormatInvalid, fmt.Errorf("%w: %q", ErrUnknownFormatName, name)
	}
}
