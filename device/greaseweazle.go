package device

import (
	"fmt"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// Greaseweazle VID/PID, as the teacher's greaseweazle package
// registered it.
const (
	gwVendorID  = 0x1209
	gwProductID = 0x4d69
)

func init() {
	Register(gwVendorID, gwProductID, newGreaseweazleClient)
}

// gwClient opens the Greaseweazle's serial port and reports its
// identity, but does not implement its command protocol: unlike SCP's
// fixed-size packet/checksum scheme, Greaseweazle's GET_INFO/SEEK/
// READ_FLUX exchange uses a denser binary command set this port was
// never brought up against real hardware to validate, so ReadRevolution
// is left honestly unimplemented rather than guessed at.
type gwClient struct {
	port         serial.Port
	serialNumber string
}

func newGreaseweazleClient(portDetails *enumerator.PortDetails) (Adapter, error) {
	port, err := serial.Open(portDetails.Name, &serial.Mode{BaudRate: 115200})
	if err != nil {
		return nil, &DeviceError{Op: "open port " + portDetails.Name, Err: err}
	}
	return &gwClient{port: port, serialNumber: portDetails.SerialNumber}, nil
}

func (c *gwClient) PrintStatus() {
	fmt.Printf("Greaseweazle Adapter\n")
	fmt.Printf("Serial Number: %s\n", c.serialNumber)
	fmt.Printf("Status: connected, flux protocol not implemented\n")
}

func (c *gwClient) SelectDrive(drive int) error   { return ErrNotImplemented }
func (c *gwClient) DeselectDrive(drive int) error { return ErrNotImplemented }
func (c *gwClient) Seek(track int) error          { return ErrNotImplemented }

func (c *gwClient) ReadRevolution() ([]float64, error) {
	return nil, &DeviceError{Op: "read revolution", Err: ErrNotImplemented}
}

func (c *gwClient) Close() error {
	if c.port == nil {
		return nil
	}
	return c.port.Close()
}
