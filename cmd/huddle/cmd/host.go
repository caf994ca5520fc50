package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huddlewire/huddle/internal/pairwise"
	"github.com/huddlewire/huddle/internal/ui"
)

var hostFlags connFlags

var hostCmd = &cobra.Command{
	Use:     "host",
	Aliases: []string{"h"},
	Short:   "Host a private two-person room with a shareable code",
	Long: `Create a pairwise room on the coordinator and wait for one peer to
connect with the code. Once both sides are in, a direct data channel
carries collaboration events between them.

Examples:
  huddle host
  huddle host --name zoe`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return hostRoom()
	},
}

func hostRoom() error {
	cfg, err := hostFlags.load()
	if err != nil {
		return err
	}

	fmt.Println()
	stopSpinner := ui.RunConnectionSpinner("Creating room...")
	session, events := newPairEvents(cfg.DisplayName)
	s, err := pairwise.NewHostSession(cfg, events)
	stopSpinner()
	if err != nil {
		return err
	}
	defer s.Close()
	session.s = s

	fmt.Println(ui.RoomCodeView(s.RoomID(), cfg.ServerURL))
	fmt.Println()

	return runPairSession(context.Background(), session, "Waiting for a peer to connect...")
}

func init() {
	rootCmd.AddCommand(hostCmd)
	hostFlags.register(hostCmd)
}
