package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/huddlewire/huddle/internal/agent"
	"github.com/huddlewire/huddle/internal/diag"
	"github.com/huddlewire/huddle/internal/ui"
)

var (
	joinFlags    connFlags
	flagAudioIn  string
	flagAudioOut string
)

var joinCmd = &cobra.Command{
	Use:     "join <room>",
	Aliases: []string{"j"},
	Short:   "Join a named room and mesh with everyone in it",
	Long: `Join a room on the coordinator. Every participant already in the room
gets a direct WebRTC connection; chat and audio flow peer to peer.

Examples:
  huddle join standup
  huddle join standup --name zoe
  huddle join standup --audio-in /tmp/mic.pcm --audio-out /tmp/speaker.pcm`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return joinRoom(args[0])
	},
}

func joinRoom(room string) error {
	cfg, err := joinFlags.load()
	if err != nil {
		return err
	}

	fmt.Println()
	stopSpinner := ui.RunConnectionSpinner("Connecting to coordinator...")
	client := agent.NewSignalClient(cfg.MeshURL())
	if err := client.Connect(); err != nil {
		stopSpinner()
		return agent.NewError("connect to coordinator", err)
	}
	defer client.Close()
	stopSpinner()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sess *agent.Agent
	view := ui.NewSessionUI(ui.SessionUIOptions{
		Room:        room,
		DisplayName: cfg.DisplayName,
		OnQuit:      cancel,
		OnChat: func(text string) {
			if sess != nil {
				sess.SendChat(text)
			}
		},
	})

	rec := diag.NewRecorder()

	var receiver *agent.Receiver
	if flagAudioOut != "" {
		sink, err := os.OpenFile(flagAudioOut, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return agent.NewError("open audio sink", err)
		}
		defer sink.Close()
		receiver = agent.NewReceiver(sink, rec)
		go receiver.Run(ctx)
	}

	sess = agent.New(agent.Options{
		Room:        room,
		DisplayName: cfg.DisplayName,
		Transport:   client,
		NewConn:     agent.NewPionFactory(cfg, nil, nil),
		Presenter:   view,
		Diagnostics: rec,
		Audio:       receiver,
	})

	if flagAudioIn != "" {
		src, err := os.Open(flagAudioIn)
		if err != nil {
			return agent.NewError("open audio source", err)
		}
		defer src.Close()
		streamer := agent.NewStreamer(client, src, 0, 0, 0, rec)
		go streamer.Run(ctx)
	}

	view.Start()
	errCh := make(chan error, 1)
	go func() {
		errCh <- sess.Run(ctx)
		view.Stop()
	}()

	view.SetStatus(fmt.Sprintf("in room as %s", cfg.DisplayName))

	// The view exits on esc/ctrl+c; the agent exits on disconnect.
	view.Wait()
	cancel()

	err = <-errCh
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	ui.PrintSuccess("Left the room.")
	return nil
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinFlags.register(joinCmd)
	joinCmd.Flags().StringVar(&flagAudioIn, "audio-in", "", "PCM source streamed to the room (16-bit mono 16kHz)")
	joinCmd.Flags().StringVar(&flagAudioOut, "audio-out", "", "File or pipe receiving peer audio")
}
