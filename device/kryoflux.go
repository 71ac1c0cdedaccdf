package device

import (
	"fmt"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// KryoFlux VID/PID, as the teacher's kryoflux package registered it.
const (
	kfVendorID  = 0x03eb
	kfProductID = 0x6124
)

func init() {
	Register(kfVendorID, kfProductID, newKryoFluxClient)
}

// kfClient opens the KryoFlux's CDC-ACM control port. The board's
// actual stream-capture transfer rides over a separate USB bulk
// endpoint (see kryoflux_usb.go), which this client does not drive:
// full protocol implementation pending, as the teacher's own client
// leaves it.
type kfClient struct {
	port         serial.Port
	serialNumber string
}

func newKryoFluxClient(portDetails *enumerator.PortDetails) (Adapter, error) {
	port, err := serial.Open(portDetails.Name, &serial.Mode{BaudRate: 115200})
	if err != nil {
		return nil, &DeviceError{Op: "open port " + portDetails.Name, Err: err}
	}
	return &kfClient{port: port, serialNumber: portDetails.SerialNumber}, nil
}

func (c *kfClient) PrintStatus() {
	fmt.Printf("KryoFlux Adapter\n")
	fmt.Printf("Serial Number: %s\n", c.serialNumber)
	fmt.Printf("Status: connected\n")
	fmt.Printf("Note: full protocol implementation pending\n")
}

func (c *kfClient) SelectDrive(drive int) error   { return ErrNotImplemented }
func (c *kfClient) DeselectDrive(drive int) error { return ErrNotImplemented }
func (c *kfClient) Seek(track int) error          { return ErrNotImplemented }

func (c *kfClient) ReadRevolution() ([]float64, error) {
	return nil, &DeviceError{Op: "read revolution", Err: ErrNotImplemented}
}

func (c *kfClient) Close() error {
	if c.port == nil {
		return nil
	}
	return c.port.Close()
}
