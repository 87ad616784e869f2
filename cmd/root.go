package cmd

import (
	"os"

	"github.com/BioHazard786/Wavecall/internal/ui"
	"github.com/BioHazard786/Wavecall/internal/version"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "wavecall",
	Short:   "Terminal group calls over WebRTC",
	Long:    `Wavecall is a command-line tool for small group calls directly between devices using WebRTC technology. Every participant connects to every other in a mesh, so media never passes through a central server; a lightweight signaling server only brokers the introductions. Wavecall includes screen sharing, in-call chat over data channels, and a self-hostable signaling server.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
