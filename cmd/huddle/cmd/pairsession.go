package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/huddlewire/huddle/internal/agent"
	"github.com/huddlewire/huddle/internal/pairwise"
	"github.com/huddlewire/huddle/internal/ui"
	"github.com/huddlewire/huddle/internal/version"
)

// The pairwise commands share a minimal line console: every line typed
// goes to the peer as a note event, every received event is printed.
const noteEventKind = "note"

type pairConsole struct {
	s    *pairwise.Session
	name string
}

func newPairEvents(name string) (*pairConsole, pairwise.Events) {
	c := &pairConsole{name: name}
	events := pairwise.Events{
		Open: func() {
			c.s.SendHello(c.name, version.Version)
		},
		Hello: func(peer string) {
			fmt.Printf("\r\033[K%s %s is here\n> ", ui.IconPeer, ui.PeerStyle.Render(peer))
		},
		Event: func(ev pairwise.EventPayload) {
			switch ev.Kind {
			case noteEventKind:
				fmt.Printf("\r\033[K%s %s\n> ", ui.IconChat, string(ev.Body))
			default:
				fmt.Printf("\r\033[K%s %s (%d bytes)\n> ", ui.IconChat, ev.Kind, len(ev.Body))
			}
		},
		PeerLeft: func() {
			fmt.Printf("\r\033[K%s peer left\n", ui.IconLeave)
		},
		Notice: func(text string) {
			ui.PrintWarning(text)
		},
	}
	return c, events
}

func runPairSession(parent context.Context, console *pairConsole, waitMsg string) error {
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- console.s.Run(ctx)
	}()

	sp := ui.NewWaitingSpinner(waitMsg)
	sp.Start()
	if err := console.s.WaitOpen(ctx); err != nil {
		sp.Stop()
		select {
		case runErr := <-errCh:
			return pairExitError(runErr)
		default:
		}
		return err
	}
	sp.Success("Direct channel open. Type to send; /quit to leave.")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Print("> ")
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			console.s.SendBye()
			return nil

		case err := <-errCh:
			return pairExitError(err)

		case line, ok := <-lines:
			if !ok {
				console.s.SendBye()
				return nil
			}
			text := strings.TrimSpace(line)
			switch {
			case text == "/quit":
				console.s.SendBye()
				ui.PrintSuccess("Left the room.")
				return nil
			case text != "":
				if err := console.s.SendEvent(noteEventKind, []byte(text)); err != nil {
					ui.PrintWarning(err.Error())
				}
			}
			fmt.Print("> ")
		}
	}
}

func pairExitError(err error) error {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, agent.ErrPeerGone):
		ui.PrintInfo("Session over.")
		return nil
	}
	return err
}
