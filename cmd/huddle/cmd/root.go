package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/huddlewire/huddle/internal/config"
	"github.com/huddlewire/huddle/internal/logging"
	"github.com/huddlewire/huddle/internal/ui"
	"github.com/huddlewire/huddle/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "huddle",
	Short:   "Real-time peer-to-peer sessions over WebRTC, coordinated through a lightweight relay",
	Long: `Huddle connects peers directly using WebRTC. A small coordinator relays
only the signaling needed to negotiate connections; chat, audio and
collaboration data flow peer to peer afterwards.

Join a named room to mesh with everyone in it, or host a private
two-person room with a shareable code.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	logging.Init()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

// connection flags shared by the session commands
type connFlags struct {
	server   string
	name     string
	stun     string
	turn     string
	turnUser string
	turnPass string
}

func (f *connFlags) register(c *cobra.Command) {
	c.Flags().StringVar(&f.server, "server", "", "Coordinator URL")
	c.Flags().StringVarP(&f.name, "name", "n", "", "Display name shown to peers")
	c.Flags().StringVarP(&f.stun, "stun", "s", "", "Custom STUN server")
	c.Flags().StringVarP(&f.turn, "turn", "t", "", "Custom TURN server")
	c.Flags().StringVar(&f.turnUser, "turn-user", "", "TURN username")
	c.Flags().StringVar(&f.turnPass, "turn-pass", "", "TURN password")
}

func (f *connFlags) load() (*config.ClientConfig, error) {
	return config.LoadClient(config.Options{
		ServerURL:   f.server,
		DisplayName: f.name,
		STUNServer:  f.stun,
		TURNServer:  f.turn,
		TURNUser:    f.turnUser,
		TURNPass:    f.turnPass,
	})
}
