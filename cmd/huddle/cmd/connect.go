package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huddlewire/huddle/internal/pairwise"
	"github.com/huddlewire/huddle/internal/ui"
)

var connectFlags connFlags

var connectCmd = &cobra.Command{
	Use:     "connect <code>",
	Aliases: []string{"c"},
	Short:   "Connect to a hosted room by code",
	Long: `Join a pairwise room created with "huddle host".

Examples:
  huddle connect brave-otter-42
  huddle connect brave-otter-42 --name max`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return connectRoom(args[0])
	},
}

func connectRoom(code string) error {
	cfg, err := connectFlags.load()
	if err != nil {
		return err
	}

	fmt.Println()
	stopSpinner := ui.RunConnectionSpinner("Joining room...")
	session, events := newPairEvents(cfg.DisplayName)
	s, err := pairwise.NewJoinSession(cfg, code, events)
	stopSpinner()
	if err != nil {
		return err
	}
	defer s.Close()
	session.s = s

	ui.PrintSuccessf("Joined room %s", s.RoomID())

	return runPairSession(context.Background(), session, "Negotiating direct connection...")
}

func init() {
	rootCmd.AddCommand(connectCmd)
	connectFlags.register(connectCmd)
}
