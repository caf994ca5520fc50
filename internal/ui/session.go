package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Number of chat lines retained in the view.
const chatBacklog = 200

// SessionUI is the live terminal view of a mesh session: the roster of
// connected participants, the chat log, and a text input for sending.
// It implements the presenter callbacks the session agent expects, so
// signaling events can be pushed at it from another goroutine.
type SessionUI struct {
	program *tea.Program
	model   *sessionModel
	updates chan sessionUpdate
	wg      sync.WaitGroup
}

type updateKind int

const (
	updJoin updateKind = iota
	updLeave
	updChat
	updNotice
	updStatus
)

type sessionUpdate struct {
	kind   updateKind
	id     string
	name   string
	sender string
	text   string
	at     time.Time
}

type rosterEntry struct {
	id   string
	name string
}

// SessionUIOptions configure the view and its callbacks.
type SessionUIOptions struct {
	Room        string
	DisplayName string

	// OnChat is invoked with the text the user submitted.
	OnChat func(text string)

	// OnQuit is invoked once when the user asks to leave.
	OnQuit func()
}

// NewSessionUI builds the view. Start runs it.
func NewSessionUI(opts SessionUIOptions) *SessionUI {
	updates := make(chan sessionUpdate, 100)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	input := textinput.New()
	input.Placeholder = "type a message and press enter"
	input.CharLimit = 512
	input.Focus()

	model := &sessionModel{
		room:    opts.Room,
		self:    opts.DisplayName,
		status:  "connecting...",
		spinner: s,
		input:   input,
		updates: updates,
		onChat:  opts.OnChat,
		onQuit:  opts.OnQuit,
	}

	return &SessionUI{model: model, updates: updates}
}

// Start runs the UI in a goroutine. Wait blocks until it exits.
func (ui *SessionUI) Start() {
	ui.wg.Add(1)
	go func() {
		defer ui.wg.Done()
		// Inline mode, no alt screen, so prior terminal output stays visible
		ui.program = tea.NewProgram(ui.model)
		if _, err := ui.program.Run(); err != nil {
			fmt.Printf("UI error: %v\n", err)
		}
	}()
}

// Wait blocks until the user quits the view.
func (ui *SessionUI) Wait() {
	ui.wg.Wait()
}

// Stop tears the view down.
func (ui *SessionUI) Stop() {
	if ui.program != nil {
		ui.program.Quit()
	}
	ui.wg.Wait()
}

func (ui *SessionUI) push(u sessionUpdate) {
	select {
	case ui.updates <- u:
	default:
	}
}

// ShowParticipant adds or refreshes a roster entry.
func (ui *SessionUI) ShowParticipant(id, name string) {
	ui.push(sessionUpdate{kind: updJoin, id: id, name: name})
}

// RemoveParticipant drops a roster entry.
func (ui *SessionUI) RemoveParticipant(id string) {
	ui.push(sessionUpdate{kind: updLeave, id: id})
}

// ShowChat appends a chat line.
func (ui *SessionUI) ShowChat(sender, name, text string, at time.Time) {
	ui.push(sessionUpdate{kind: updChat, sender: sender, name: name, text: text, at: at})
}

// Notice appends a one-off status line to the chat log.
func (ui *SessionUI) Notice(text string) {
	ui.push(sessionUpdate{kind: updNotice, text: text})
}

// SetStatus replaces the status line.
func (ui *SessionUI) SetStatus(text string) {
	ui.push(sessionUpdate{kind: updStatus, text: text})
}

// sessionModel is the bubbletea model behind SessionUI.
type sessionModel struct {
	room   string
	self   string
	status string

	roster []rosterEntry
	chat   []string

	spinner spinner.Model
	input   textinput.Model

	updates chan sessionUpdate
	onChat  func(string)
	onQuit  func()

	quitting bool
}

func (m *sessionModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink, m.listenForUpdates())
}

func (m *sessionModel) listenForUpdates() tea.Cmd {
	return func() tea.Msg {
		return <-m.updates
	}
}

func (m *sessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			if m.onQuit != nil {
				m.onQuit()
			}
			return m, tea.Quit
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if text != "" {
				// Local echo; the coordinator does not loop chat back
				m.appendChat(m.self+" (you)", text, time.Now())
				if m.onChat != nil {
					m.onChat(text)
				}
			}
			return m, nil
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case sessionUpdate:
		m.apply(msg)
		cmds = append(cmds, m.listenForUpdates())
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *sessionModel) apply(u sessionUpdate) {
	switch u.kind {
	case updJoin:
		for i := range m.roster {
			if m.roster[i].id == u.id {
				m.roster[i].name = u.name
				return
			}
		}
		m.roster = append(m.roster, rosterEntry{id: u.id, name: u.name})
		m.appendNotice(fmt.Sprintf("%s %s joined", IconPeer, displayName(u.name, u.id)))

	case updLeave:
		for i := range m.roster {
			if m.roster[i].id == u.id {
				m.appendNotice(fmt.Sprintf("%s %s left", IconLeave, displayName(m.roster[i].name, u.id)))
				m.roster = append(m.roster[:i], m.roster[i+1:]...)
				return
			}
		}

	case updChat:
		m.appendChat(displayName(u.name, u.sender), u.text, u.at)

	case updNotice:
		m.appendNotice(fmt.Sprintf("%s %s", IconInfo, u.text))

	case updStatus:
		m.status = u.text
	}
}

func displayName(name, id string) string {
	if name != "" {
		return name
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (m *sessionModel) appendChat(name, text string, at time.Time) {
	line := fmt.Sprintf("%s %s: %s",
		MutedStyle.Render(at.Format("15:04")),
		ChatNameStyle.Render(name),
		text,
	)
	m.appendLine(line)
}

func (m *sessionModel) appendNotice(text string) {
	m.appendLine(MutedStyle.Render(text))
}

func (m *sessionModel) appendLine(line string) {
	m.chat = append(m.chat, line)
	if len(m.chat) > chatBacklog {
		m.chat = m.chat[len(m.chat)-chatBacklog:]
	}
}

func (m *sessionModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(fmt.Sprintf("\n%s %s\n", IconRoom, TitleStyle.Render("room "+m.room)))
	b.WriteString(fmt.Sprintf("%s %s\n\n", m.spinner.View(), m.status))

	if len(m.roster) == 0 {
		b.WriteString(MutedStyle.Render("nobody else here yet") + "\n")
	} else {
		names := make([]string, len(m.roster))
		for i, p := range m.roster {
			names[i] = PeerStyle.Render(displayName(p.name, p.id))
		}
		b.WriteString(fmt.Sprintf("%s %s\n", IconPeer, strings.Join(names, ", ")))
	}
	b.WriteString("\n")

	// Last screenful of chat
	lines := m.chat
	if len(lines) > 15 {
		lines = lines[len(lines)-15:]
	}
	for _, line := range lines {
		b.WriteString(line + "\n")
	}

	b.WriteString("\n" + m.input.View() + "\n")
	b.WriteString(MutedStyle.Render("esc to leave"))

	return b.String()
}
