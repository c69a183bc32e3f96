package display

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/satindergrewal/backline/internal/control"
	"github.com/satindergrewal/backline/internal/status"
)

type posted struct {
	events []control.Event
	full   bool
}

func (p *posted) Post(ev control.Event) bool {
	if p.full {
		return false
	}
	p.events = append(p.events, ev)
	return true
}

func key(s string) tea.KeyMsg {
	switch s {
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestKeysPostEvents(t *testing.T) {
	board := status.NewBoard()
	updates, cancel := board.Subscribe()
	defer cancel()
	p := &posted{}
	var m tea.Model = NewModel(board, updates, p)

	for _, k := range []string{"n", "right", "m", "+", "t", "x"} {
		m, _ = m.Update(key(k))
	}
	want := []control.Kind{control.Next, control.Next, control.ToggleMetronome, control.Tempo, control.CycleMeter}
	if len(p.events) != len(want) {
		t.Fatalf("posted %v, want kinds %v", p.events, want)
	}
	for i, k := range want {
		if p.events[i].Kind != k {
			t.Errorf("event %d = %v, want %v", i, p.events[i].Kind, k)
		}
	}

	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestDroppedKeysShown(t *testing.T) {
	board := status.NewBoard()
	p := &posted{full: true}
	var m tea.Model = NewModel(board, nil, p)
	m, _ = m.Update(key("n"))
	if !strings.Contains(m.View(), "1 keys dropped") {
		t.Errorf("View does not report the dropped key:\n%s", m.View())
	}
}

func TestViewBlinksPendingCandidate(t *testing.T) {
	board := status.NewBoard()
	var m tea.Model = NewModel(board, nil, &posted{})

	snap := status.Snapshot{
		Tracks: 3, Committed: 0, CommittedLabel: "intro",
		Candidate: 2, CandidateLabel: "bridge", Pending: true, BlinkVisible: true,
		BPM: 120, Meter: "4/4", Beat: 1, BeatsPerBar: 4, Metronome: true,
	}
	m, _ = m.Update(SnapshotMsg(snap))
	view := m.View()
	if !strings.Contains(view, "intro") || !strings.Contains(view, "bridge") {
		t.Errorf("visible phase missing labels:\n%s", view)
	}
	if !strings.Contains(view, "120 bpm") || !strings.Contains(view, "click:on") {
		t.Errorf("header missing tempo:\n%s", view)
	}

	snap.BlinkVisible = false
	m, _ = m.Update(SnapshotMsg(snap))
	if strings.Contains(m.View(), "bridge") {
		t.Errorf("hidden phase still shows candidate:\n%s", m.View())
	}
}

func TestViewCrossfadeBar(t *testing.T) {
	board := status.NewBoard()
	var m tea.Model = NewModel(board, nil, &posted{})
	m, _ = m.Update(SnapshotMsg(status.Snapshot{Crossfading: true, Progress: 0.5, BeatsPerBar: 4}))
	if !strings.Contains(m.View(), " 50%") {
		t.Errorf("View missing progress:\n%s", m.View())
	}
}

func TestSnapshotMsgResubscribes(t *testing.T) {
	board := status.NewBoard()
	updates, cancel := board.Subscribe()
	defer cancel()
	var m tea.Model = NewModel(board, updates, &posted{})

	board.Publish(status.Snapshot{BPM: 99})
	msg := m.Init()()
	snap, ok := msg.(SnapshotMsg)
	if !ok || snap.BPM != 99 {
		t.Fatalf("Init cmd = %#v, want snapshot with bpm 99", msg)
	}
	_, cmd := m.Update(snap)
	if cmd == nil {
		t.Error("SnapshotMsg did not wait for the next update")
	}
}

func TestBar(t *testing.T) {
	tests := []struct {
		progress float64
		filled   int
	}{
		{-1, 0},
		{0, 0},
		{0.5, 5},
		{1, 10},
		{2, 10},
	}
	for _, tt := range tests {
		got := strings.Count(Bar(tt.progress, 10), "█")
		if got != tt.filled {
			t.Errorf("Bar(%v) filled = %d, want %d", tt.progress, got, tt.filled)
		}
	}
}

func TestBeatDots(t *testing.T) {
	if got := strings.Count(BeatDots(2, 7), "○"); got != 6 {
		t.Errorf("BeatDots(2, 7) empty dots = %d, want 6", got)
	}
	if BeatDots(1, 0) != "" {
		t.Error("BeatDots with no meter should be empty")
	}
}

func TestLogChanges(t *testing.T) {
	board := status.NewBoard()
	var buf syncBuffer
	logger := zerolog.New(&buf)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		LogChanges(ctx, board, logger)
		close(done)
	}()

	// Wait for the watcher to subscribe before publishing.
	for board.Subscribers() == 0 {
		time.Sleep(time.Millisecond)
	}
	board.Publish(status.Snapshot{Committed: 1, CommittedLabel: "verse", BPM: 100})

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(buf.String(), "now playing") && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	out := buf.String()
	if !strings.Contains(out, `"track":"verse"`) || !strings.Contains(out, `"bpm":100`) {
		t.Errorf("log output = %s", out)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
