package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/huddlewire/huddle/internal/agent"
	"github.com/huddlewire/huddle/internal/ui"
)

var statusFlags connFlags

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List active rooms on the coordinator",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

type roomStatus struct {
	Room    string `json:"room"`
	Members int    `json:"members"`
}

func showStatus() error {
	cfg, err := statusFlags.load()
	if err != nil {
		return err
	}

	url := httpBaseURL(cfg.ServerURL) + "/debug/rooms"

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return agent.NewError("query coordinator", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("coordinator returned %s", resp.Status)
	}

	var rooms []roomStatus
	if err := json.NewDecoder(resp.Body).Decode(&rooms); err != nil {
		return agent.NewError("decode room listing", err)
	}

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Room < rooms[j].Room })

	rows := make([]ui.RoomRow, len(rooms))
	for i, r := range rooms {
		rows[i] = ui.RoomRow{Room: r.Room, Members: r.Members}
	}

	fmt.Println()
	ui.RenderRoomsTable(rows)
	return nil
}

// httpBaseURL maps the websocket server URL onto its HTTP surface.
func httpBaseURL(serverURL string) string {
	switch {
	case strings.HasPrefix(serverURL, "wss://"):
		return "https://" + strings.TrimPrefix(serverURL, "wss://")
	case strings.HasPrefix(serverURL, "ws://"):
		return "http://" + strings.TrimPrefix(serverURL, "ws://")
	}
	return serverURL
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusFlags.register(statusCmd)
}
