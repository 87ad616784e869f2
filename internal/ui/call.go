package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/BioHazard786/Wavecall/internal/call"
	"github.com/BioHazard786/Wavecall/internal/chat"
	"github.com/BioHazard786/Wavecall/internal/utils"
)

const chatLogLines = 12

// Messages sent into the call view from session callbacks.
type (
	// RosterMsg carries a fresh roster snapshot.
	RosterMsg []call.Participant

	// ChatMsg carries one chat message, local or remote.
	ChatMsg chat.Message

	// TypingMsg names a participant who is typing.
	TypingMsg string

	// SessionEndedMsg tells the view the call is over.
	SessionEndedMsg struct{}

	// SignalingErrMsg carries a server-reported error.
	SignalingErrMsg string

	tickMsg time.Time
)

// CallController is the slice of session behavior the view drives.
type CallController interface {
	SetAudioEnabled(bool) error
	SetVideoEnabled(bool) error
	StartScreenShare() error
	StopScreenShare() error
	SendChat(string) error
	SendTyping() error
	Close()
}

// CallModel is the Bubble Tea model for an in-progress call: roster on top,
// chat log below, a text input for messages, and single-key controls.
type CallModel struct {
	controller CallController
	room       string
	localName  string

	roster  []call.Participant
	chatLog []chat.Message

	input       textinput.Model
	inputActive bool

	micOn     bool
	camOn     bool
	sharing   bool
	typing    string
	typingAt  time.Time
	startTime time.Time

	statusMsg string
	width     int
	quitting  bool
}

// NewCallModel builds the view for a joined session.
func NewCallModel(controller CallController, room, localName string) *CallModel {
	input := textinput.New()
	input.Placeholder = "Type a message, Enter to send, Esc for controls"
	input.CharLimit = 500
	input.Prompt = IconChat + " "

	return &CallModel{
		controller: controller,
		room:       room,
		localName:  localName,
		input:      input,
		micOn:      true,
		camOn:      true,
		startTime:  time.Now(),
		width:      80,
	}
}

// Summary reports the call stats for the exit view.
func (m *CallModel) Summary() CallSummary {
	peers := 0
	for _, p := range m.roster {
		if !p.Local {
			peers++
		}
	}
	return CallSummary{
		Room:         m.room,
		Duration:     utils.FormatCallDuration(time.Since(m.startTime)),
		Peers:        peers,
		ChatMessages: len(m.chatLog),
	}
}

func (m *CallModel) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *CallModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = msg.Width - 6
		return m, nil

	case tickMsg:
		// Clears stale typing indicators and refreshes the duration.
		if m.typing != "" && time.Since(m.typingAt) > 3*time.Second {
			m.typing = ""
		}
		return m, tick()

	case RosterMsg:
		m.roster = msg
		return m, nil

	case ChatMsg:
		m.chatLog = append(m.chatLog, chat.Message(msg))
		if chat.Message(msg).Sender == m.typing {
			m.typing = ""
		}
		return m, nil

	case TypingMsg:
		if string(msg) != m.localName {
			m.typing = string(msg)
			m.typingAt = time.Now()
		}
		return m, nil

	case SignalingErrMsg:
		m.statusMsg = ErrorStyle.Render(string(msg))
		return m, nil

	case SessionEndedMsg:
		m.quitting = true
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *CallModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m.hangUp()
	}

	if m.inputActive {
		switch msg.Type {
		case tea.KeyEsc:
			m.inputActive = false
			m.input.Blur()
			return m, nil
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if text != "" {
				if err := m.controller.SendChat(text); err != nil {
					m.statusMsg = ErrorStyle.Render(err.Error())
				}
			}
			return m, nil
		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			m.controller.SendTyping()
			return m, cmd
		}
	}

	switch msg.String() {
	case "q":
		return m.hangUp()
	case "m":
		m.micOn = !m.micOn
		if err := m.controller.SetAudioEnabled(m.micOn); err != nil {
			m.statusMsg = ErrorStyle.Render(err.Error())
		}
	case "v":
		m.camOn = !m.camOn
		if err := m.controller.SetVideoEnabled(m.camOn); err != nil {
			m.statusMsg = ErrorStyle.Render(err.Error())
		}
	case "s":
		var err error
		if m.sharing {
			err = m.controller.StopScreenShare()
		} else {
			err = m.controller.StartScreenShare()
		}
		if err != nil {
			m.statusMsg = ErrorStyle.Render(err.Error())
		} else {
			m.sharing = !m.sharing
			m.statusMsg = ""
		}
	case "enter", "c":
		m.inputActive = true
		m.statusMsg = ""
		return m, m.input.Focus()
	}
	return m, nil
}

func (m *CallModel) hangUp() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.controller.Close()
	return m, tea.Quit
}

func (m *CallModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	header := fmt.Sprintf("%s %s  %s  %s",
		IconCall, BoldStyle.Render(m.room),
		MutedStyle.Render(utils.FormatCallDuration(time.Since(m.startTime))),
		m.mediaBadge())
	b.WriteString(HeaderStyle.Render(header))
	b.WriteString("\n")

	b.WriteString(NewParticipantTable(m.roster).View())
	b.WriteString("\n\n")

	b.WriteString(m.chatView())
	b.WriteString("\n")

	if m.typing != "" {
		b.WriteString(MutedStyle.Render(fmt.Sprintf("%s is typing…", m.typing)))
		b.WriteString("\n")
	}
	if m.statusMsg != "" {
		b.WriteString(m.statusMsg)
		b.WriteString("\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(FooterStyle.Render(m.helpLine()))

	return ContainerStyle.Render(b.String())
}

func (m *CallModel) mediaBadge() string {
	mic := IconMic
	if !m.micOn {
		mic = IconMicOff
	}
	badge := mic
	if m.camOn {
		badge += " " + IconCamera
	}
	if m.sharing {
		badge += " " + IconScreen
	}
	return badge
}

func (m *CallModel) chatView() string {
	if len(m.chatLog) == 0 {
		return MutedStyle.Render("No messages yet")
	}

	start := 0
	if len(m.chatLog) > chatLogLines {
		start = len(m.chatLog) - chatLogLines
	}

	var lines []string
	for _, msg := range m.chatLog[start:] {
		sender := msg.Sender
		style := SubtitleStyle
		if sender == m.localName {
			sender = "you"
			style = BoldStyle.Foreground(Primary)
		}
		lines = append(lines, fmt.Sprintf("%s %s %s",
			MutedStyle.Render(msg.SentAt.Format("15:04")),
			style.Render(sender+":"),
			msg.Text))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m *CallModel) helpLine() string {
	if m.inputActive {
		return "enter send · esc controls · ctrl+c hang up"
	}
	return "m mic · v camera · s screen · c chat · q hang up"
}
