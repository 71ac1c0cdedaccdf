// Package device adapts the teacher's serial/USB hardware-adapter
// pattern to the flux-capture path: an Adapter reads one revolution of
// a track as raw flux transition intervals and hands them to
// track.NewFluxStreamTrack / diskimage.DiskImage.AddTrackFluxstream,
// rather than assembling a whole-disk file itself the way the
// teacher's adapters do.
package device

import (
	"errors"
	"fmt"
	"log/slog"

	"go.bug.st/serial/enumerator"
)

// DeviceError reports a failure talking to capture hardware, as
// distinct from an error decoding what the hardware returned.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string { return fmt.Sprintf("device: %s: %v", e.Op, e.Err) }
func (e *DeviceError) Unwrap() error { return e.Err }

// ErrNotImplemented is returned by ReadRevolution on an adapter whose
// capture protocol is registered but not wired up yet.
var ErrNotImplemented = errors.New("device: not implemented")

// Adapter is the capture-hardware interface every concrete device
// (SuperCardPro, Greaseweazle, KryoFlux) implements.
type Adapter interface {
	// PrintStatus reports firmware/connection information to stdout,
	// matching the teacher's adapter.FloppyAdapter.PrintStatus.
	PrintStatus()

	// SelectDrive selects and spins up drive (0 or 1).
	SelectDrive(drive int) error
	// DeselectDrive stops the motor and deselects drive.
	DeselectDrive(drive int) error
	// Seek moves the head to the given track number (cylinder*2+head
	// for a double-sided drive, matching the teacher's single-track-
	// number addressing).
	Seek(track int) error

	// ReadRevolution captures one full revolution of flux as transition
	// intervals, in seconds, ready for track.FluxStreamTrackParams.
	ReadRevolution() ([]float64, error)

	// Close releases the underlying port.
	Close() error
}

// AdapterFactory constructs an Adapter from an enumerated serial port.
type AdapterFactory func(portDetails *enumerator.PortDetails) (Adapter, error)

// adapterInfo pairs a USB vendor/product ID with the factory that
// builds a client for it, mirroring the teacher's adapter.AdapterInfo.
type adapterInfo struct {
	VendorID  uint16
	ProductID uint16
	Factory   AdapterFactory
}

var registered []adapterInfo

// Register adds a serial-port adapter factory keyed by VID/PID.
func Register(vendorID, productID uint16, factory AdapterFactory) {
	registered = append(registered, adapterInfo{VendorID: vendorID, ProductID: productID, Factory: factory})
}

// Probe enumerates serial ports and returns an Adapter for the first
// one whose USB VID/PID matches a registered factory, or nil if none
// of the attached ports match anything registered.
func Probe() (Adapter, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, &DeviceError{Op: "enumerate ports", Err: err}
	}

	for _, port := range ports {
		if !port.IsUSB {
			continue
		}
		vid, err := parseHex16(port.VID)
		if err != nil {
			continue
		}
		pid, err := parseHex16(port.PID)
		if err != nil {
			continue
		}
		for _, info := range registered {
			if info.VendorID == vid && info.ProductID == pid {
				slog.Debug("device: matched adapter", "port", port.Name, "vid", port.VID, "pid", port.PID)
				return info.Factory(port)
			}
		}
	}

	slog.Debug("device: no registered adapter found", "ports_scanned", len(ports))
	return nil, nil
}

func parseHex16(s string) (uint16, error) {
	var v uint16
	_, err := fmt.Sscanf(s, "%x", &v)
	return v, err
}
