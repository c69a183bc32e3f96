package control

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// ErrNoMIDIPort is returned when no input port matches the requested name.
var ErrNoMIDIPort = errors.New("midi input port not found")

// AnyChannel matches messages on every MIDI channel.
const AnyChannel = -1

// MIDIMapping assigns notes and a relative encoder CC to control events.
type MIDIMapping struct {
	Channel       int // 0-15 or AnyChannel
	NextNote      uint8
	PreviousNote  uint8
	MetronomeNote uint8
	MeterNote     uint8
	TempoCC       uint8
}

// DefaultMIDIMapping uses C4..D#4 and CC 16, which most pad controllers send
// out of the box.
func DefaultMIDIMapping() MIDIMapping {
	return MIDIMapping{
		Channel:       AnyChannel,
		NextNote:      61,
		PreviousNote:  60,
		MetronomeNote: 62,
		MeterNote:     63,
		TempoCC:       16,
	}
}

// Translate decodes one MIDI message. Note-on with non-zero velocity maps to
// navigation and toggles; the tempo CC is a relative encoder where 1..63
// means +n and 65..127 means -(128-n).
func (m MIDIMapping) Translate(msg gomidi.Message) (Event, bool) {
	var channel, key, velocity uint8
	if msg.GetNoteOn(&channel, &key, &velocity) {
		if velocity == 0 || !m.matches(channel) {
			return Event{}, false
		}
		switch key {
		case m.NextNote:
			return Event{Kind: Next}, true
		case m.PreviousNote:
			return Event{Kind: Previous}, true
		case m.MetronomeNote:
			return Event{Kind: ToggleMetronome}, true
		case m.MeterNote:
			return Event{Kind: CycleMeter}, true
		}
		return Event{}, false
	}

	var cc, value uint8
	if msg.GetControlChange(&channel, &cc, &value) {
		if cc != m.TempoCC || !m.matches(channel) {
			return Event{}, false
		}
		if d := RelativeDelta(value); d != 0 {
			return Event{Kind: Tempo, Delta: d}, true
		}
	}
	return Event{}, false
}

func (m MIDIMapping) matches(channel uint8) bool {
	return m.Channel == AnyChannel || int(channel) == m.Channel
}

// RelativeDelta decodes a two's complement relative encoder value.
func RelativeDelta(value uint8) int {
	switch {
	case value >= 1 && value <= 63:
		return int(value)
	case value >= 65 && value <= 127:
		return int(value) - 128
	}
	return 0
}

// MIDIInput listens on one input port and posts translated events.
type MIDIInput struct {
	port   drivers.In
	stop   func()
	logger zerolog.Logger
}

// OpenMIDI opens the first input port whose name contains name and starts
// listening. The callback runs on the driver's goroutine and only posts.
func OpenMIDI(name string, mapping MIDIMapping, p Poster, logger zerolog.Logger) (*MIDIInput, error) {
	port, err := gomidi.FindInPort(name)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", name, ErrNoMIDIPort)
	}
	in := &MIDIInput{
		port:   port,
		logger: logger.With().Str("component", "midi").Str("port", port.String()).Logger(),
	}

	stop, err := gomidi.ListenTo(port, func(msg gomidi.Message, timestampms int32) {
		ev, ok := mapping.Translate(msg)
		if !ok {
			return
		}
		if !p.Post(ev) {
			in.logger.Warn().Stringer("event", ev).Msg("event queue full, dropped")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", port, err)
	}
	in.stop = stop
	in.logger.Info().Msg("midi input open")
	return in, nil
}

// Port returns the name of the open port.
func (in *MIDIInput) Port() string { return in.port.String() }

// Close stops listening.
func (in *MIDIInput) Close() error {
	if in.stop != nil {
		in.stop()
		in.stop = nil
	}
	return nil
}

// InPorts lists the names of the available MIDI input ports.
func InPorts() []string {
	var names []string
	for _, p := range gomidi.GetInPorts() {
		names = append(names, p.String())
	}
	return names
}
