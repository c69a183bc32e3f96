// Package selection turns next/previous navigation into committed track
// changes after a settle delay.
package selection

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmpty is returned by New when there is nothing to select.
var ErrEmpty = errors.New("selection needs at least one track")

// Transitioner starts playback of a committed track index.
type Transitioner interface {
	StartTransition(index int) error
}

// TransitionFunc adapts a function to Transitioner.
type TransitionFunc func(index int) error

func (f TransitionFunc) StartTransition(index int) error { return f(index) }

// Phase is Committed or Pending.
type Phase int

const (
	Committed Phase = iota
	Pending
)

func (p Phase) String() string {
	if p == Pending {
		return "pending"
	}
	return "committed"
}

// PendingSelection is a candidate waiting for its commit deadline.
type PendingSelection struct {
	Target     int
	ArmedAt    time.Duration
	BlinkPhase int
}

// State is a copyable view of the machine.
type State struct {
	Phase     Phase
	Committed int
	Candidate int
	Pending   PendingSelection
}

// Machine is the Committed/Pending state machine. Time is whatever monotonic
// clock the caller passes in; the deadline is only ever checked by Poll.
type Machine struct {
	count         int
	commitDelay   time.Duration
	blinkInterval time.Duration
	t             Transitioner

	committed int
	pending   *PendingSelection
}

// New creates a machine over count tracks with track 0 committed.
func New(count int, commitDelay, blinkInterval time.Duration, t Transitioner) (*Machine, error) {
	if count < 1 {
		return nil, ErrEmpty
	}
	if blinkInterval <= 0 {
		blinkInterval = 250 * time.Millisecond
	}
	return &Machine{
		count:         count,
		commitDelay:   commitDelay,
		blinkInterval: blinkInterval,
		t:             t,
	}, nil
}

// Next moves the candidate forward one track and restarts the commit timer.
func (m *Machine) Next(now time.Duration) { m.navigate(1, now) }

// Previous moves the candidate back one track and restarts the commit timer.
func (m *Machine) Previous(now time.Duration) { m.navigate(-1, now) }

func (m *Machine) navigate(delta int, now time.Duration) {
	target := (m.Candidate() + delta + m.count) % m.count
	m.pending = &PendingSelection{Target: target, ArmedAt: now}
}

// Poll checks the commit deadline. When it has passed, the transition for the
// candidate is started exactly once. On failure the candidate is dropped, the
// previous track stays committed and the error is returned.
func (m *Machine) Poll(now time.Duration) (bool, error) {
	if m.pending == nil {
		return false, nil
	}
	elapsed := now - m.pending.ArmedAt
	m.pending.BlinkPhase = int(elapsed / m.blinkInterval)
	if elapsed < m.commitDelay {
		return false, nil
	}

	target := m.pending.Target
	m.pending = nil
	if err := m.t.StartTransition(target); err != nil {
		return false, fmt.Errorf("commit track %d: %w", target, err)
	}
	m.committed = target
	return true, nil
}

// Committed returns the authoritative track index.
func (m *Machine) Committed() int { return m.committed }

// Candidate returns the pending target, or the committed index when idle.
func (m *Machine) Candidate() int {
	if m.pending != nil {
		return m.pending.Target
	}
	return m.committed
}

// IsPending reports whether a commit timer is armed.
func (m *Machine) IsPending() bool { return m.pending != nil }

// BlinkVisible reports whether the candidate should be drawn at now. It is
// always visible when committed and alternates every blink interval while
// pending, starting visible.
func (m *Machine) BlinkVisible(now time.Duration) bool {
	if m.pending == nil {
		return true
	}
	return int((now-m.pending.ArmedAt)/m.blinkInterval)%2 == 0
}

// State returns a copy of the machine's state.
func (m *Machine) State() State {
	s := State{Phase: Committed, Committed: m.committed, Candidate: m.Candidate()}
	if m.pending != nil {
		s.Phase = Pending
		s.Pending = *m.pending
	}
	return s
}
