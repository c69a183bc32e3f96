// Package display draws the performer's view of the status board. It never
// writes audio state; keys are turned into control events and posted.
package display

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/satindergrewal/backline/internal/control"
	"github.com/satindergrewal/backline/internal/status"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	trackStyle   = lipgloss.NewStyle().Bold(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const barWidth = 30

// SnapshotMsg carries a fresh copy of the board.
type SnapshotMsg status.Snapshot

type Model struct {
	board    *status.Board
	updates  <-chan struct{}
	poster   control.Poster
	snap     status.Snapshot
	dropped  int
	quitting bool
}

// NewModel draws board and posts key events to p. updates is a subscription
// on board.
func NewModel(board *status.Board, updates <-chan struct{}, p control.Poster) Model {
	return Model{
		board:   board,
		updates: updates,
		poster:  p,
		snap:    board.Snapshot(),
	}
}

// WaitForUpdate blocks until the board changes, then returns its snapshot.
func WaitForUpdate(board *status.Board, updates <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-updates
		return SnapshotMsg(board.Snapshot())
	}
}

func (m Model) Init() tea.Cmd {
	return WaitForUpdate(m.board, m.updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		if ev, ok := control.KeyEvent(msg.String()); ok {
			if !m.poster.Post(ev) {
				m.dropped++
			}
		}

	case SnapshotMsg:
		m.snap = status.Snapshot(msg)
		return m, WaitForUpdate(m.board, m.updates)
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	s := m.snap
	var b strings.Builder

	click := "off"
	if s.Metronome {
		click = "on"
	}
	b.WriteString(headerStyle.Render(fmt.Sprintf("backline  %3d bpm  %s  click:%s", s.BPM, s.Meter, click)))
	b.WriteString("\n\n")

	b.WriteString(dimStyle.Render("playing  "))
	b.WriteString(trackStyle.Render(fmt.Sprintf("%d/%d %s", s.Committed+1, s.Tracks, s.CommittedLabel)))
	b.WriteString("\n")

	b.WriteString(dimStyle.Render("next     "))
	if s.Pending {
		label := fmt.Sprintf("%d/%d %s", s.Candidate+1, s.Tracks, s.CandidateLabel)
		if !s.BlinkVisible {
			label = strings.Repeat(" ", lipgloss.Width(label))
		}
		b.WriteString(pendingStyle.Render(label))
	}
	b.WriteString("\n\n")

	b.WriteString(BeatDots(s.Beat, s.BeatsPerBar))
	b.WriteString("\n")
	if s.Crossfading {
		b.WriteString(dimStyle.Render("fade     "))
		b.WriteString(Bar(s.Progress, barWidth))
		b.WriteString(fmt.Sprintf(" %3.0f%%", s.Progress*100))
	}
	b.WriteString("\n\n")

	help := "n/→ next  p/← prev  m click  +/- tempo  t meter  q quit"
	if m.dropped > 0 {
		help += fmt.Sprintf("  (%d keys dropped)", m.dropped)
	}
	b.WriteString(dimStyle.Render(help))
	b.WriteString("\n")
	return b.String()
}

// BeatDots shows the bar with the current beat lit; the downbeat is accented.
func BeatDots(beat, perBar int) string {
	if perBar <= 0 {
		return ""
	}
	dots := make([]string, perBar)
	for i := range dots {
		switch {
		case i+1 == beat && i == 0:
			dots[i] = accentStyle.Render("●")
		case i+1 == beat:
			dots[i] = "●"
		default:
			dots[i] = dimStyle.Render("○")
		}
	}
	return strings.Join(dots, " ")
}

// Bar renders progress in [0,1] as a fixed-width bar.
func Bar(progress float64, width int) string {
	progress = min(max(progress, 0), 1)
	filled := int(progress*float64(width) + 0.5)
	return strings.Repeat("█", filled) + dimStyle.Render(strings.Repeat("░", width-filled))
}
