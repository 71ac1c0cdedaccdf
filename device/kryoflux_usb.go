package device

import (
	"fmt"

	"github.com/google/gousb"
)

// OpenKryoFluxBulkStream opens the KryoFlux board's raw USB bulk-in
// endpoint directly (bypassing the CDC-ACM control port kfClient
// talks over), the transport its stream-capture protocol actually
// rides on. It is a stub: the board responds to its control port with
// commands this client never got to validate against hardware, so
// rather than guess at endpoint numbers, this returns an error naming
// what's missing. A real implementation would open the device by
// kfVendorID/kfProductID, claim the bulk interface, and stream 0x0d
// OOB-delimited sample packets into a []byte buffer for
// decodeKryoFluxStream-style parsing.
func OpenKryoFluxBulkStream() error {
	ctx := gousb.NewContext()
	defer ctx.Close()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(kfVendorID), gousb.ID(kfProductID))
	if err != nil {
		return &DeviceError{Op: "open KryoFlux USB device", Err: err}
	}
	if dev == nil {
		return &DeviceError{Op: "open KryoFlux USB device", Err: fmt.Errorf("no matching device found")}
	}
	defer dev.Close()

	return &DeviceError{Op: "KryoFlux bulk stream", Err: ErrNotImplemented}
}
