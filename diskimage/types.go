package diskimage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gofloppy/fluxcore/schema"
	"github.com/gofloppy/fluxcore/track"
)

// Sentinel errors returned by DiskImage operations. Errors surfaced by
// the underlying Track implementations are wrapped with %w rather than
// re-declared here, following the teacher's fmt.Errorf("...: %w", err)
// convention (see track/types.go for the same choice at the layer
// below).
var (
	ErrSeek              = errors.New("diskimage: cylinder/head out of range")
	ErrParameter         = errors.New("diskimage: invalid parameter")
	ErrIncompatibleImage = errors.New("diskimage: incompatible with this image's resolution")
	ErrUnsupportedFormat = track.ErrUnsupportedFormat
)

// DiskDescriptor summarizes a disk's nominal geometry and physical
// parameters. Individual tracks may still deviate (a copy-protected
// disk commonly has a handful of non-conforming tracks), so this is a
// default, not a guarantee.
type DiskDescriptor struct {
	Geometry          schema.DiskCh
	DefaultSectorSize int
	DataEncoding      schema.Encoding
	Density           track.Density
	DataRate          track.DataRate
	Rpm               *track.Rpm
	WriteProtect      *bool
}

// Consistency aggregates cross-track facts about a disk image: whether
// every track shares a sector size, whether any sector anywhere has a
// CRC or deleted-mark anomaly, and whether the image carries weak
// bits. Computed on demand by DiskImage.Analyze, not maintained
// incrementally.
type Consistency struct {
	Weak                  bool
	Deleted               bool
	BadAddressCRC         bool
	BadDataCRC            bool
	ConsistentSectorSize  *uint8
	ConsistentTrackLength *int
}

// DiskImageError is diskimage's structured error type: an operation
// name plus the underlying cause, implementing the standard error
// interface with Unwrap support. It composes with the
// fmt.Errorf("...: %w", err) wrapping used throughout this package and
// the layers below rather than replacing it; operations that return
// one of the sentinel errors above directly (for errors.Is-style
// equality checks callers may rely on) keep doing so unwrapped.
type DiskImageError struct {
	Op  string
	Err error
}

func (e *DiskImageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("diskimage: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("diskimage: %s", e.Op)
}

func (e *DiskImageError) Unwrap() error { return e.Err }

// SharedDiskContext holds state that needs to be visible across every
// track in a DiskImage's pool without each track holding a reference
// back to the image itself: currently just the running write counter,
// mirroring the original's Arc<Mutex<SharedDiskContext>>.
type SharedDiskContext struct {
	mu     sync.Mutex
	writes uint64
}

// RecordWrite increments the write counter and returns its new value.
func (c *SharedDiskContext) RecordWrite() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	return c.writes
}

// Writes returns the current write counter.
func (c *SharedDiskContext) Writes() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}
