package device

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gofloppy/fluxcore/diskimage"
	"github.com/gofloppy/fluxcore/track"
)

// CaptureProfile is the on-disk, YAML-encoded counterpart of
// CaptureOptions: a named, reusable capture session description (one
// drive/format pairing an operator can select by name) rather than a
// set of flags assembled fresh on every run. This is a parallel
// surface to the config package's TOML drive profiles, not a
// replacement for them: config describes the drives and blank images
// fluxcore knows about, a CaptureProfile describes one flux-capture
// run against a physical drive through an Adapter.
type CaptureProfile struct {
	Name        string `yaml:"name"`
	Format      string `yaml:"format"` // StandardFormat name, e.g. "1440K"
	Revolutions int    `yaml:"revolutions"`
	DataRateHz  int    `yaml:"data_rate_hz,omitempty"` // overrides the format's nominal rate if set
}

// LoadProfile reads and parses a CaptureProfile from path.
func LoadProfile(path string) (*CaptureProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DeviceError{Op: "read capture profile", Err: err}
	}

	var p CaptureProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, &DeviceError{Op: "parse capture profile", Err: err}
	}
	if p.Name == "" {
		return nil, &DeviceError{Op: "parse capture profile", Err: fmt.Errorf("profile has no name")}
	}
	if p.Revolutions < 1 {
		p.Revolutions = 1
	}
	return &p, nil
}

// SaveProfile writes p to path as YAML.
func SaveProfile(path string, p *CaptureProfile) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return &DeviceError{Op: "marshal capture profile", Err: err}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &DeviceError{Op: "write capture profile", Err: err}
	}
	return nil
}

// ToCaptureOptions resolves p's named StandardFormat into the
// Cylinders/Heads/Encoding/DataRate CaptureDisk needs, optionally
// overridden by p.DataRateHz.
func (p *CaptureProfile) ToCaptureOptions() (CaptureOptions, error) {
	format, err := diskimage.StandardFormatFromName(strings.ToUpper(p.Format))
	if err != nil {
		return CaptureOptions{}, &DeviceError{Op: "resolve capture profile format", Err: err}
	}

	ch := format.Ch()
	dataRate := format.DataRate()
	if p.DataRateHz > 0 {
		dataRate = track.NewDataRate(p.DataRateHz)
	}

	return CaptureOptions{
		Cylinders:   int(ch.Cylinder),
		Heads:       int(ch.Head),
		Encoding:    format.Encoding(),
		DataRate:    dataRate,
		Revolutions: p.Revolutions,
	}, nil
}
