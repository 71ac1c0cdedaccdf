package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gofloppy/fluxcore/format"
)

var convertCmd = &cobra.Command{
	Use:   "convert SRC.EXT DEST.EXT",
	Short: "Convert between image formats",
	Long: `Convert between image formats.
Reads the contents of SRC.EXT and writes them to DEST.EXT.
The format of each file is chosen by its extension.
No USB adapter is used.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		srcFilename := args[0]
		destFilename := args[1]

		srcParser := format.DetectByExtension(srcFilename)
		if srcParser == nil {
			cobra.CheckErr(fmt.Errorf("unrecognized image format: %s", srcFilename))
		}
		destParser := format.DetectByExtension(destFilename)
		if destParser == nil {
			cobra.CheckErr(fmt.Errorf("unrecognized image format: %s", destFilename))
		}
		if !destParser.Capabilities().Has(format.CapsWritable) {
			cobra.CheckErr(fmt.Errorf("format %q does not support writing", destParser.Name()))
		}

		data, err := os.ReadFile(srcFilename)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to read file %s: %w", srcFilename, err))
		}

		disk, err := srcParser.Load(data)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to parse %s: %w", srcFilename, err))
		}

		out, err := destParser.Save(disk)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to encode %s: %w", destFilename, err))
		}

		if err := os.WriteFile(destFilename, out, 0644); err != nil {
			cobra.CheckErr(fmt.Errorf("failed to write file %s: %w", destFilename, err))
		}

		fmt.Printf("Successfully converted %s to %s\n", srcFilename, destFilename)
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
}
