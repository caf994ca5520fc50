package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RoomRow is one coordinator room in the status listing.
type RoomRow struct {
	Room    string
	Members int
}

// RenderRoomsTable prints the coordinator's active rooms.
func RenderRoomsTable(rows []RoomRow) {
	if len(rows) == 0 {
		fmt.Println(MutedStyle.Render("no active rooms"))
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.Style().Title.Align = text.AlignCenter
	t.SetTitle("%s Active Rooms", IconRoom)
	t.AppendHeader(table.Row{"Room", "Members"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.Room, r.Members})
	}
	t.Render()
}

// RoomCodeView renders the shareable code box a host shows while waiting.
func RoomCodeView(code, serverURL string) string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Success).
		Padding(1, 2)

	content := fmt.Sprintf("%s Room Ready!\n\n%s Code:    %s\n%s Server:  %s\n\nShare the code; your peer runs:\n  %s",
		IconSuccess,
		IconCopy, BoldStyle.Foreground(Primary).Render(code),
		IconConnect, MutedStyle.Render(serverURL),
		BoldStyle.Render("huddle connect "+code),
	)

	return boxStyle.Render(content)
}

// PeerList formats a roster on one line.
func PeerList(names []string) string {
	if len(names) == 0 {
		return MutedStyle.Render("(empty)")
	}
	styled := make([]string, len(names))
	for i, n := range names {
		styled[i] = PeerStyle.Render(n)
	}
	return strings.Join(styled, ", ")
}
