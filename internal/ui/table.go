package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/BioHazard786/Wavecall/internal/call"
	"github.com/BioHazard786/Wavecall/internal/utils"
)

// ParticipantTable renders the roster as a styled table for the call view.
type ParticipantTable struct {
	participants []call.Participant
}

// NewParticipantTable creates a roster table from a snapshot.
func NewParticipantTable(participants []call.Participant) *ParticipantTable {
	return &ParticipantTable{participants: participants}
}

// View renders the table as a string.
func (t *ParticipantTable) View() string {
	if len(t.participants) == 0 {
		return MutedStyle.Render("Nobody here yet")
	}

	headers := []string{"Name", "Mic", "Cam", "Status"}

	var rows [][]string
	for _, p := range t.participants {
		name := utils.TruncateString(p.Name, 24)
		if p.Local {
			name += " (you)"
		}
		if p.SharingScreen {
			name += " " + IconScreen
		}
		rows = append(rows, []string{name, onOff(p.AudioEnabled), onOff(p.VideoEnabled), status(p)})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

// Render outputs the table directly to stdout.
func (t *ParticipantTable) Render() {
	fmt.Println(t.View())
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}

func status(p call.Participant) string {
	switch {
	case p.Local:
		return "—"
	case p.Connected:
		return "connected"
	default:
		return "connecting"
	}
}

// RenderPlainRoster prints the roster without ANSI styling, for --plain mode
// and non-TTY output.
func RenderPlainRoster(participants []call.Participant) {
	w := prettytable.NewWriter()
	w.SetOutputMirror(os.Stdout)
	w.AppendHeader(prettytable.Row{"Name", "Mic", "Cam", "Screen", "Status"})
	for _, p := range participants {
		name := p.Name
		if p.Local {
			name += " (you)"
		}
		w.AppendRow(prettytable.Row{
			name, onOff(p.AudioEnabled), onOff(p.VideoEnabled), onOff(p.SharingScreen), status(p),
		})
	}
	w.SetStyle(prettytable.StyleLight)
	w.Style().Format.Header = text.FormatTitle
	w.Render()
}

// CallSummary describes a finished call for the exit report.
type CallSummary struct {
	Room         string
	Duration     string
	Peers        int
	ChatMessages int
}

// RenderCallSummary prints the end-of-call report.
func RenderCallSummary(summary CallSummary) {
	w := prettytable.NewWriter()
	w.SetOutputMirror(os.Stdout)
	w.SetTitle("Call Summary")
	w.AppendRows([]prettytable.Row{
		{"Room", summary.Room},
		{"Duration", summary.Duration},
		{"Peers", summary.Peers},
		{"Chat messages", summary.ChatMessages},
	})
	w.SetStyle(prettytable.StyleLight)
	w.Render()
}

// RoomInfo is the invite box shown when a fresh room was created.
type RoomInfo struct {
	RoomID  string
	Command string
}

// NewRoomInfo builds the invite box for a room.
func NewRoomInfo(roomID string) *RoomInfo {
	return &RoomInfo{
		RoomID:  roomID,
		Command: fmt.Sprintf("wavecall join %s", roomID),
	}
}

func (r *RoomInfo) View() string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Success).
		Padding(1, 2)

	var b strings.Builder
	fmt.Fprintf(&b, "%s Room ready!\n\n", IconSuccess)
	fmt.Fprintf(&b, "%s Room ID:  %s\n", IconCopy, BoldStyle.Foreground(Primary).Render(r.RoomID))
	fmt.Fprintf(&b, "%s Invite:   %s", IconLink, MutedStyle.Render(r.Command))

	return boxStyle.Render(b.String())
}
