package stream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/satindergrewal/backline/internal/control"
	"github.com/satindergrewal/backline/internal/status"
)

type queue struct {
	mu     sync.Mutex
	events []control.Event
	full   bool
}

func (q *queue) Post(ev control.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.events = append(q.events, ev)
	return true
}

func (q *queue) posted() []control.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]control.Event(nil), q.events...)
}

func newTestServer(q *queue, b *status.Board) *httptest.Server {
	mux := http.NewServeMux()
	NewAPI(q, b, zerolog.Nop()).Register(mux)
	mux.Handle("/ws/status", NewStatusSocket(b, zerolog.Nop()))
	return httptest.NewServer(mux)
}

func TestAPIPostsEvents(t *testing.T) {
	q := &queue{}
	srv := newTestServer(q, status.NewBoard())
	defer srv.Close()

	tests := []struct {
		path string
		body string
		want control.Event
	}{
		{"/api/next", "", control.Event{Kind: control.Next}},
		{"/api/previous", "", control.Event{Kind: control.Previous}},
		{"/api/metronome", "", control.Event{Kind: control.ToggleMetronome}},
		{"/api/meter", "", control.Event{Kind: control.CycleMeter}},
		{"/api/tempo", `{"delta":-4}`, control.Event{Kind: control.Tempo, Delta: -4}},
	}
	for _, tt := range tests {
		resp, err := http.Post(srv.URL+tt.path, "application/json", strings.NewReader(tt.body))
		if err != nil {
			t.Fatalf("POST %s: %v", tt.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Errorf("POST %s status = %d, want 202", tt.path, resp.StatusCode)
		}
	}

	got := q.posted()
	if len(got) != len(tests) {
		t.Fatalf("posted %d events, want %d", len(got), len(tests))
	}
	for i, tt := range tests {
		if got[i] != tt.want {
			t.Errorf("event %d = %v, want %v", i, got[i], tt.want)
		}
	}
}

func TestAPIRejects(t *testing.T) {
	q := &queue{}
	srv := newTestServer(q, status.NewBoard())
	defer srv.Close()

	resp, _ := http.Get(srv.URL + "/api/next")
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/next = %d, want 405", resp.StatusCode)
	}

	resp, _ = http.Post(srv.URL+"/api/tempo", "application/json", strings.NewReader(`{"delta":0}`))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("zero delta = %d, want 400", resp.StatusCode)
	}

	q.mu.Lock()
	q.full = true
	q.mu.Unlock()
	resp, _ = http.Post(srv.URL+"/api/next", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("full queue = %d, want 503", resp.StatusCode)
	}
	if got := q.posted(); len(got) != 0 {
		t.Errorf("events = %v, want none", got)
	}
}

func TestAPIStatus(t *testing.T) {
	b := status.NewBoard()
	b.Publish(status.Snapshot{BPM: 96, Meter: "6/8", CommittedLabel: "groove"})
	srv := newTestServer(&queue{}, b)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var got status.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.BPM != 96 || got.Meter != "6/8" || got.CommittedLabel != "groove" {
		t.Errorf("status = %+v", got)
	}
}

func TestStatusSocketPushes(t *testing.T) {
	b := status.NewBoard()
	b.Publish(status.Snapshot{BPM: 120})
	srv := newTestServer(&queue{}, b)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/status"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first status.Snapshot
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("first snapshot: %v", err)
	}
	if first.BPM != 120 {
		t.Errorf("first BPM = %d, want 120", first.BPM)
	}

	// The server subscribes before the first push, so this change is seen.
	b.Publish(status.Snapshot{BPM: 121})
	var next status.Snapshot
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("pushed snapshot: %v", err)
	}
	if next.BPM != 121 {
		t.Errorf("pushed BPM = %d, want 121", next.BPM)
	}
}

func TestOpusRate(t *testing.T) {
	if !OpusRate(48000) || OpusRate(44100) {
		t.Error("OpusRate wrong for 48000/44100")
	}
	if _, err := NewWebRTCHandler(NewBroadcaster(), 44100, zerolog.Nop()); err == nil {
		t.Error("NewWebRTCHandler accepted 44100 Hz")
	}
}

func TestChunker(t *testing.T) {
	c := NewChunker(6)
	var frames [][]int16
	emit := func(f []int16) { frames = append(frames, append([]int16(nil), f...)) }

	c.Push([]int16{1, 2, 3, 4}, emit)
	if len(frames) != 0 {
		t.Fatalf("emitted %d frames early", len(frames))
	}
	c.Push([]int16{5, 6, 7, 8, 9, 10, 11, 12, 13}, emit)
	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(frames))
	}
	if frames[0][0] != 1 || frames[0][5] != 6 || frames[1][0] != 7 || frames[1][5] != 12 {
		t.Errorf("frames = %v", frames)
	}
}

func TestFFmpegArgsUseRate(t *testing.T) {
	args := strings.Join(ffmpegArgs(44100), " ")
	if !strings.Contains(args, "-ar 44100") || !strings.Contains(args, "-ac 2") {
		t.Errorf("ffmpeg args = %s", args)
	}
}
