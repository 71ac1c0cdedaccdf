package device

import (
	"errors"
	"testing"

	"go.bug.st/serial/enumerator"
)

func TestParseHex16(t *testing.T) {
	v, err := parseHex16("0403")
	if err != nil {
		t.Fatalf("parseHex16: %v", err)
	}
	if v != 0x0403 {
		t.Fatalf("parseHex16 = 0x%x, want 0x0403", v)
	}
}

func TestRegisterMatchesByVIDPID(t *testing.T) {
	const vid, pid = 0x1234, 0x5678
	var called *enumerator.PortDetails
	Register(vid, pid, func(p *enumerator.PortDetails) (Adapter, error) {
		called = p
		return nil, errors.New("stub factory")
	})

	var match *adapterInfo
	for i := range registered {
		if registered[i].VendorID == vid && registered[i].ProductID == pid {
			match = &registered[i]
		}
	}
	if match == nil {
		t.Fatalf("Register did not add an entry for VID %x PID %x", vid, pid)
	}

	_, err := match.Factory(&enumerator.PortDetails{Name: "COM-test"})
	if err == nil || err.Error() != "stub factory" {
		t.Fatalf("factory call returned %v, want stub factory error", err)
	}
	if called == nil || called.Name != "COM-test" {
		t.Fatalf("factory did not receive the expected port details")
	}
}

func TestDeviceErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &DeviceError{Op: "test", Err: inner}
	if !errors.Is(err, inner) {
		t.Fatalf("errors.Is did not find wrapped inner error")
	}
}
