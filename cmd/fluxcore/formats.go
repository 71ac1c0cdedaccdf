package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gofloppy/fluxcore/format"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List the registered image formats",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Listing formats needs neither a config file nor a USB adapter.
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range format.Registered() {
			p := format.ByName(name)
			fmt.Printf("%-6s extensions=%v capabilities=%#x\n", p.Name(), p.Extensions(), p.Capabilities())
		}
	},
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}
