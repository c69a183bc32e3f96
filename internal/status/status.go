// Package status is the one piece of state shared between the engine and the
// displays. The engine publishes a small copyable snapshot; readers take a
// copy and may wait on a coalesced change notification.
package status

import (
	"sync"
	"time"
)

// Snapshot is everything a display needs to draw one frame.
type Snapshot struct {
	Tracks         int           `json:"tracks"`
	Committed      int           `json:"committed"`
	CommittedLabel string        `json:"committed_label"`
	Candidate      int           `json:"candidate"`
	CandidateLabel string        `json:"candidate_label"`
	Pending        bool          `json:"pending"`
	BlinkVisible   bool          `json:"blink_visible"`
	BPM            int           `json:"bpm"`
	Meter          string        `json:"meter"`
	Beat           int           `json:"beat"`
	BeatsPerBar    int           `json:"beats_per_bar"`
	Metronome      bool          `json:"metronome"`
	Crossfading    bool          `json:"crossfading"`
	Progress       float64       `json:"progress"`
	OpenSources    int           `json:"open_sources"`
	Sink           string        `json:"sink"`
	Elapsed        time.Duration `json:"elapsed_ns"`
}

// Board holds the latest snapshot.
type Board struct {
	mu   sync.Mutex
	cur  Snapshot
	subs map[chan struct{}]struct{}
}

func NewBoard() *Board {
	return &Board{subs: make(map[chan struct{}]struct{})}
}

// Publish stores s. Subscribers are only notified when something other than
// the elapsed clock changed, and never block the publisher.
func (b *Board) Publish(s Snapshot) {
	b.mu.Lock()
	prev := b.cur
	b.cur = s
	prev.Elapsed, s.Elapsed = 0, 0
	if prev == s {
		b.mu.Unlock()
		return
	}
	for ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	b.mu.Unlock()
}

// Snapshot returns a copy of the latest published state.
func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cur
}

// Subscribe returns a channel that receives a token after each change. Several
// changes between reads collapse into one token. Call cancel to stop.
func (b *Board) Subscribe() (updates <-chan struct{}, cancel func()) {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
		})
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Board) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
