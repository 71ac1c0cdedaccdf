package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gofloppy/fluxcore/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the status of the attached USB flux-capture adapter",
	Long:  "Check the status of the attached USB flux-capture adapter and print the active drive profile.",
	Run: func(cmd *cobra.Command, args []string) {
		floppyAdapter.PrintStatus()

		fmt.Printf("\nConfiguration script: ~/.floppy\n")
		fmt.Printf("Floppy Drive: %s\n", config.DriveName)
		fmt.Printf("Default format: %s\n", config.Format)
		fmt.Printf("Geometry: %d tracks, %d side(s)\n", config.Cyls, config.Heads)
		fmt.Printf("Speed: %d RPM, max %d kbps\n", config.RPM, config.MaxKBps)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
