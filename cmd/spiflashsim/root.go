package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "spiflashsim",
	Short: "spiflashsim emulates an SPI NOR flash chip at the bit level",
	Long: `spiflashsim emulates an SPI NOR flash chip at the bit level. A ` +
		`scripted SPI master drives the wire, the chip serves streaming ` +
		`reads out of a shared backing store, and a best-effort maintenance ` +
		`channel reports transaction telemetry on the side.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
