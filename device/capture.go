package device

import (
	"fmt"
	"log/slog"

	"github.com/gofloppy/fluxcore/diskimage"
	"github.com/gofloppy/fluxcore/schema"
	"github.com/gofloppy/fluxcore/track"
)

// CaptureOptions configures CaptureDisk.
type CaptureOptions struct {
	Cylinders    int
	Heads        int
	Encoding     schema.Encoding
	DataRate     track.DataRate
	Revolutions  int // flux revolutions to capture per track, minimum 1
	OnTrackStart func(cylinder, head int)
}

// CaptureDisk reads every track of a disk through adapter and returns
// a FluxStream-resolution DiskImage, one FluxStreamTrack per
// cylinder/head, each carrying opts.Revolutions captured revolutions
// ready to resolve into a bitstream on first sector access. This
// mirrors the teacher's SuperCard Pro Client.Read loop (select drive,
// seek each track, read flux, store per side), but hands raw flux
// intervals to the image instead of decoding to MFM bytes itself.
func CaptureDisk(adapter Adapter, opts CaptureOptions) (*diskimage.DiskImage, error) {
	if opts.Revolutions < 1 {
		opts.Revolutions = 1
	}

	slog.Debug("device: capture starting", "cylinders", opts.Cylinders, "heads", opts.Heads, "revolutions", opts.Revolutions)

	if err := adapter.SelectDrive(0); err != nil {
		return nil, &DeviceError{Op: "select drive", Err: err}
	}
	defer adapter.DeselectDrive(0)

	di := diskimage.NewDiskImage()

	for cyl := 0; cyl < opts.Cylinders; cyl++ {
		for head := 0; head < opts.Heads; head++ {
			if opts.OnTrackStart != nil {
				opts.OnTrackStart(cyl, head)
			}

			trackNum := cyl*opts.Heads + head
			if err := adapter.Seek(trackNum); err != nil {
				return nil, &DeviceError{Op: fmt.Sprintf("seek track %d", trackNum), Err: err}
			}

			revolutions := make([][]float64, 0, opts.Revolutions)
			for i := 0; i < opts.Revolutions; i++ {
				intervals, err := adapter.ReadRevolution()
				if err != nil {
					return nil, &DeviceError{Op: fmt.Sprintf("read cyl %d head %d", cyl, head), Err: err}
				}
				revolutions = append(revolutions, intervals)
			}

			ch := schema.DiskCh{Cylinder: uint16(cyl), Head: uint8(head)}
			err := di.AddTrackFluxstream(track.FluxStreamTrackParams{
				Ch:          ch,
				Encoding:    opts.Encoding,
				Revolutions: revolutions,
				DataRate:    opts.DataRate,
			})
			if err != nil {
				return nil, fmt.Errorf("device: add track cyl %d head %d: %w", cyl, head, err)
			}
		}
	}

	di.SetSourceFormat("device-capture")
	slog.Debug("device: capture complete", "cylinders", opts.Cylinders, "heads", opts.Heads)
	return di, nil
}
