package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gofloppy/fluxcore/config"
	"github.com/gofloppy/fluxcore/device"
	"github.com/gofloppy/fluxcore/format"
)

var captureRevolutions int

var captureCmd = &cobra.Command{
	Use:   "capture [DEST.EXT]",
	Short: "Capture a floppy disk's flux and save it as an image",
	Long: `Capture the floppy disk connected via USB adapter and save the
resulting image to file DEST.EXT. The format is chosen by extension;
by default the image is saved in HFE format as 'image.hfe'.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		filename := "image.hfe"
		if len(args) > 0 {
			filename = args[0]
		}

		parser := format.DetectByExtension(filename)
		if parser == nil {
			cobra.CheckErr(fmt.Errorf("unrecognized image format: %s", filename))
		}
		if !parser.Capabilities().Has(format.CapsWritable) {
			cobra.CheckErr(fmt.Errorf("format %q does not support writing", parser.Name()))
		}

		fmt.Printf("Capturing %d tracks, %d side(s), %d revolution(s)\n", config.Cyls, config.Heads, captureRevolutions)
		fmt.Print("Insert SOURCE diskette in drive\nand press Enter when ready...")
		reader := bufio.NewReader(os.Stdin)
		_, _ = reader.ReadString('\n')
		fmt.Printf("\n")

		opts := device.CaptureOptions{
			Cylinders:   config.Cyls,
			Heads:       config.Heads,
			Encoding:    config.Format.Encoding(),
			DataRate:    config.Format.DataRate(),
			Revolutions: captureRevolutions,
			OnTrackStart: func(cylinder, head int) {
				fmt.Printf("\rTrack %d, side %d ", cylinder, head)
			},
		}

		di, err := device.CaptureDisk(floppyAdapter, opts)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to capture floppy disk: %w", err))
		}
		fmt.Printf("\n")

		data, err := parser.Save(di)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to encode image: %w", err))
		}
		if err := os.WriteFile(filename, data, 0644); err != nil {
			cobra.CheckErr(fmt.Errorf("failed to write file: %w", err))
		}

		fmt.Printf("Image from diskette saved to file '%s'.\n", filename)
	},
}

func init() {
	captureCmd.Flags().IntVar(&captureRevolutions, "revolutions", 1, "flux revolutions to capture per track")
	rootCmd.AddCommand(captureCmd)
}
