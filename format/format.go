// Package format defines the contract a concrete floppy image format
// (raw sector dumps, HFE, and so on) implements to load and save a
// diskimage.DiskImage, plus the extension-keyed registry that lets a
// caller pick a parser without naming one explicitly. The pattern
// mirrors adapter.RegisterAdapter's VID/PID registration, generalized
// from USB device identity to file-extension identity.
package format

import "github.com/gofloppy/fluxcore/diskimage"

// Caps is a bitset of capabilities a format's parser supports, used by
// callers deciding whether a requested operation (writing, preserving
// weak bits, and so on) is even possible against the chosen format.
type Caps uint32

const (
	CapsReadable Caps = 1 << iota
	CapsWritable
	CapsWeakBits
	CapsDeletedData
	CapsCommentField
)

// Has reports whether every bit set in want is also set in c.
func (c Caps) Has(want Caps) bool { return c&want == want }

// Platform names the floppy platform family a format's contents imply,
// used by higher-level tooling (e.g. a default StandardFormat guess)
// rather than by the parser itself.
type Platform int

const (
	PlatformUnknown Platform = iota
	PlatformPC
	PlatformAmiga
	PlatformAtariST
	PlatformMac
)

// Parser is the interface a concrete format package (formats/raw,
// formats/hfe) implements. Load and Save operate on in-memory byte
// slices rather than a filename, so callers can parse a generated
// buffer (such as one from images.GetImage) as readily as a file's
// contents.
type Parser interface {
	// Name is the format's short identifier, e.g. "raw" or "hfe".
	Name() string
	// Extensions lists the filename extensions (lowercase, no leading
	// dot) this parser claims, used by DetectByExtension.
	Extensions() []string
	// Capabilities reports what this parser supports.
	Capabilities() Caps
	// Load parses data into a new DiskImage.
	Load(data []byte) (*diskimage.DiskImage, error)
	// Save serializes di into this format's byte representation.
	Save(di *diskimage.DiskImage) ([]byte, error)
}
