package device

import (
	"path/filepath"
	"testing"
)

func TestProfileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")

	p := &CaptureProfile{Name: "test-1440", Format: "1440K", Revolutions: 3}
	if err := SaveProfile(path, p); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}

	loaded, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if loaded.Name != p.Name || loaded.Format != p.Format || loaded.Revolutions != p.Revolutions {
		t.Fatalf("round trip mismatch: got %+v, want %+v", loaded, p)
	}

	opts, err := loaded.ToCaptureOptions()
	if err != nil {
		t.Fatalf("ToCaptureOptions: %v", err)
	}
	if opts.Cylinders != 80 || opts.Heads != 2 || opts.Revolutions != 3 {
		t.Fatalf("unexpected options: %+v", opts)
	}
}

func TestProfileDefaultsRevolutions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := SaveProfile(path, &CaptureProfile{Name: "bare", Format: "720K"}); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if p.Revolutions != 1 {
		t.Fatalf("Revolutions = %d, want 1", p.Revolutions)
	}
}

func TestLoadProfileRejectsUnnamed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := SaveProfile(path, &CaptureProfile{Format: "720K"}); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	if _, err := LoadProfile(path); err == nil {
		t.Fatalf("expected error for unnamed profile")
	}
}
