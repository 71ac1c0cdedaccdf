// fluxcore's cmd/fluxcore binary is a thin cobra shell over the
// device, format, config, and images packages. It owns nothing but
// argument parsing and terminal output; every operation it offers is a
// handful of calls into those packages.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gofloppy/fluxcore/config"
	"github.com/gofloppy/fluxcore/device"

	_ "github.com/gofloppy/fluxcore/formats/hfe"
	_ "github.com/gofloppy/fluxcore/formats/raw"
)

var floppyAdapter device.Adapter

var rootCmd = &cobra.Command{
	Use:   "fluxcore",
	Short: "A CLI program which works with floppy disk images and USB flux-capture adapters",
	Long: `fluxcore reads and writes floppy disk images in several formats and,
when a supported USB adapter is attached, captures raw flux from a
physical diskette.`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}

		switch cmd.Name() {
		case "status", "capture":
			adapter, err := device.Probe()
			if err != nil {
				return fmt.Errorf("probe USB adapter: %w", err)
			}
			if adapter == nil {
				return fmt.Errorf("no supported USB adapter found")
			}
			floppyAdapter = adapter
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called by main.main.
func Execute() error {
	return rootCmd.Execute()
}
