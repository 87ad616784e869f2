package cmd

import (
	"github.com/spf13/cobra"

	"github.com/BioHazard786/Wavecall/internal/server"
)

var (
	flagAddr     string
	flagMaxPeers int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a self-hosted signaling server",
	Long: `Run the Wavecall signaling server. Clients point at it with
--domain; media still flows peer to peer, the server only relays
signaling events.

Examples:
  wavecall serve
  wavecall serve --addr :9000 --max-peers 4`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Serve(flagAddr, flagMaxPeers)
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().IntVar(&flagMaxPeers, "max-peers", 8, "maximum participants per room (0 for unlimited)")

	rootCmd.AddCommand(serveCmd)
}
