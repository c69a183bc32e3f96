// Package control decodes user input into engine events. Producers here never
// touch audio state; they only post events.
package control

import "fmt"

// Kind identifies a control action.
type Kind int

const (
	Next Kind = iota + 1
	Previous
	ToggleMetronome
	Tempo // Delta bpm steps
	CycleMeter
)

func (k Kind) String() string {
	switch k {
	case Next:
		return "next"
	case Previous:
		return "previous"
	case ToggleMetronome:
		return "metronome"
	case Tempo:
		return "tempo"
	case CycleMeter:
		return "meter"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is one decoded control action.
type Event struct {
	Kind  Kind
	Delta int
}

func (e Event) String() string {
	if e.Kind == Tempo {
		return fmt.Sprintf("tempo%+d", e.Delta)
	}
	return e.Kind.String()
}

// Poster accepts events without blocking. It reports false when the event was
// dropped.
type Poster interface {
	Post(Event) bool
}

// PosterFunc adapts a function to Poster.
type PosterFunc func(Event) bool

func (f PosterFunc) Post(e Event) bool { return f(e) }

// KeyEvent maps a terminal key name, as reported by bubbletea, to an event.
func KeyEvent(key string) (Event, bool) {
	switch key {
	case "n", "right":
		return Event{Kind: Next}, true
	case "p", "left":
		return Event{Kind: Previous}, true
	case "m":
		return Event{Kind: ToggleMetronome}, true
	case "+", "=", "up":
		return Event{Kind: Tempo, Delta: 1}, true
	case "-", "_", "down":
		return Event{Kind: Tempo, Delta: -1}, true
	case "t":
		return Event{Kind: CycleMeter}, true
	}
	return Event{}, false
}
