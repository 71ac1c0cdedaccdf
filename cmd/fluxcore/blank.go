package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gofloppy/fluxcore/config"
	"github.com/gofloppy/fluxcore/images"
)

// blankCmd writes one of the current drive profile's blank images to
// a file, the file-only counterpart of the teacher's interactive
// "format" command. The teacher's version wrote the selected blank
// image straight to the physical diskette through its adapter's Write
// method; device.Adapter has no such write path (see DESIGN.md), so
// this produces the file a caller would then handle with whatever
// tool owns their write path.
var blankCmd = &cobra.Command{
	Use:   "blank DEST.EXT",
	Short: "Write a blank image for the current drive to a file",
	Long:  "Select one of the current drive profile's blank images and write it to DEST.EXT.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		destFilename := args[0]

		imageNames := config.Images
		if len(imageNames) == 0 {
			cobra.CheckErr(fmt.Errorf("no images available for current drive"))
		}

		fmt.Printf("Available blank images for floppy drive %s:\n", config.DriveName)
		for i, name := range imageNames {
			fmt.Printf("  %d. %s\n", i+1, name)
		}
		fmt.Print("\nSelect image (default 1): ")

		reader := bufio.NewReader(os.Stdin)
		selection, _ := reader.ReadString('\n')
		selection = strings.TrimSpace(selection)

		selectedIndex := 0
		if selection != "" {
			n, err := strconv.Atoi(selection)
			if err != nil || n < 1 || n > len(imageNames) {
				cobra.CheckErr(fmt.Errorf("invalid selection: %q", selection))
			}
			selectedIndex = n - 1
		}

		selectedImageName := imageNames[selectedIndex]
		filename, err := config.GetImageFilename(selectedImageName)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to get filename for image %q: %w", selectedImageName, err))
		}

		data, err := images.GetImage(filename)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to get blank image %q: %w", filename, err))
		}

		if err := os.WriteFile(destFilename, data, 0644); err != nil {
			cobra.CheckErr(fmt.Errorf("failed to write file %s: %w", destFilename, err))
		}

		fmt.Printf("\nWrote blank image '%s' to '%s'.\n", selectedImageName, destFilename)
	},
}

func init() {
	rootCmd.AddCommand(blankCmd)
}
