package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/BurntSushi/toml"

	"github.com/gofloppy/fluxcore/diskimage"
)

func TestEmbeddedDefaultConfigParses(t *testing.T) {
	var conf Config
	if _, err := toml.Decode(string(defaultConfigData), &conf); err != nil {
		t.Fatalf("embedded floppy.toml does not parse: %v", err)
	}
	if conf.Default == "" {
		t.Fatalf("embedded floppy.toml has no default drive")
	}

	var found bool
	for _, d := range conf.Drive {
		if d.Name != conf.Default {
			continue
		}
		found = true
		if _, err := diskimage.StandardFormatFromName(d.Format); err != nil {
			t.Fatalf("default drive %q has unrecognized format %q: %v", d.Name, d.Format, err)
		}
		for _, imgName := range d.Images {
			if !imageListed(conf.Image, imgName) {
				t.Fatalf("drive %q references unknown image %q", d.Name, imgName)
			}
		}
	}
	if !found {
		t.Fatalf("default drive %q not present in drive array", conf.Default)
	}
}

func TestInitializeFromTempConfig(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("configPath resolution differs on windows")
	}

	home := t.TempDir()
	t.Setenv("HOME", home)

	contents := `
default = "test35"

[[drive]]
name = "test35"
cyls = 80
heads = 2
rpm = 300
maxkbps = 500
format = "1440K"
images = ["blank"]

[[image]]
name = "blank"
file = "blank_1440k.img"
`
	if err := os.WriteFile(filepath.Join(home, ".floppy"), []byte(contents), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if DriveName != "test35" || Cyls != 80 || Heads != 2 || RPM != 300 || MaxKBps != 500 {
		t.Fatalf("unexpected drive globals: name=%s cyls=%d heads=%d rpm=%d maxkbps=%d",
			DriveName, Cyls, Heads, RPM, MaxKBps)
	}
	if Format.String() == "" {
		t.Fatalf("Format was not populated")
	}

	file, err := GetImageFilename("blank")
	if err != nil || file != "blank_1440k.img" {
		t.Fatalf("GetImageFilename(blank) = %q, %v", file, err)
	}

	if _, err := GetImageFilename("does-not-exist"); err == nil {
		t.Fatalf("expected error for unknown image name")
	}
}

func imageListed(images []Image, name string) bool {
	for _, img := range images {
		if img.Name == name {
			return true
		}
	}
	return false
}
