// Package images supplies the blank disk images the config package's
// default drive profiles reference by name. The teacher embedded a
// fixed set of pre-made .img.gz files (gzip, via compress/gzip) for
// this; none of those binaries ship with this module, so blank images
// are synthesized on demand from the matching StandardFormat instead
// of being decompressed from an embedded blob. GetImage keeps the
// teacher's signature; no gzip data is embedded or decompressed.
package images

import (
	"fmt"
	"strings"

	"github.com/gofloppy/fluxcore/diskimage"
)

// blankNames maps a config-file image filename onto the
// StandardFormat it names. The naming convention (blank_<size>.img)
// is new, and the lookup is this map alone; it does not go through
// diskimage.StandardFormatFromName.
var blankNames = map[string]diskimage.StandardFormat{
	"blank_160k.img":  diskimage.Format160K,
	"blank_180k.img":  diskimage.Format180K,
	"blank_320k.img":  diskimage.Format320K,
	"blank_360k.img":  diskimage.Format360K,
	"blank_720k.img":  diskimage.Format720K,
	"blank_1200k.img": diskimage.Format1200K,
	"blank_1440k.img": diskimage.Format1440K,
	"blank_2880k.img": diskimage.Format2880K,
}

// GetImage returns a blank, zero-filled image of the size the named
// format uses. The filename parameter is the base filename as
// referenced in config (e.g. "blank_1440k.img").
func GetImage(filename string) ([]byte, error) {
	format, ok := blankNames[strings.ToLower(filename)]
	if !ok {
		return nil, fmt.Errorf("embedded image not found: %s", filename)
	}
	return make([]byte, format.Size()), nil
}
