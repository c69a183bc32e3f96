// Package tempo holds the metronome's tempo and meter.
package tempo

import (
	"errors"
	"fmt"
	"time"
)

const (
	MinBPM     = 30
	MaxBPM     = 240
	DefaultBPM = 120
)

// ErrUnsupportedMeter is returned by SetMeter for meters outside Meters.
var ErrUnsupportedMeter = errors.New("unsupported meter")

// Meter is a time signature.
type Meter struct {
	Numerator   int `json:"numerator"`
	Denominator int `json:"denominator"`
}

func (m Meter) String() string {
	return fmt.Sprintf("%d/%d", m.Numerator, m.Denominator)
}

// Meters is the fixed order CycleMeter walks through.
var Meters = []Meter{
	{2, 4},
	{3, 4},
	{4, 4},
	{5, 4},
	{6, 8},
	{7, 8},
}

const defaultMeter = 2 // 4/4

// State is a copy of the controller's values.
type State struct {
	BPM   int   `json:"bpm"`
	Meter Meter `json:"meter"`
	Beat  int   `json:"beat"`
}

// Controller owns tempo and meter. Control events change bpm and meter; the
// click advances the beat. Not safe for concurrent use.
type Controller struct {
	bpm      int
	meterIdx int
	beat     int
}

// New returns a controller at bpm (clamped) in 4/4. The beat starts on the
// last beat of the bar so the first Advance lands on the downbeat.
func New(bpm int) *Controller {
	c := &Controller{bpm: Clamp(bpm), meterIdx: defaultMeter}
	c.beat = c.Meter().Numerator
	return c
}

// Clamp limits bpm to [MinBPM, MaxBPM].
func Clamp(bpm int) int {
	if bpm < MinBPM {
		return MinBPM
	}
	if bpm > MaxBPM {
		return MaxBPM
	}
	return bpm
}

func (c *Controller) BPM() int     { return c.bpm }
func (c *Controller) Meter() Meter { return Meters[c.meterIdx] }

// Beat returns the 1-based beat within the measure.
func (c *Controller) Beat() int { return c.beat }

// SetBPM sets the tempo, clamped, and returns the value applied.
func (c *Controller) SetBPM(bpm int) int {
	c.bpm = Clamp(bpm)
	return c.bpm
}

// Nudge moves the tempo by delta steps, clamped. Any delta is safe; it is
// limited to the width of the tempo range before it is applied.
func (c *Controller) Nudge(delta int) int {
	const span = MaxBPM - MinBPM
	delta = max(-span, min(span, delta))
	return c.SetBPM(c.bpm + delta)
}

// CycleMeter moves to the next meter in Meters, wrapping. The beat is rebased
// so the next beat is a downbeat.
func (c *Controller) CycleMeter() Meter {
	c.meterIdx = (c.meterIdx + 1) % len(Meters)
	c.beat = c.Meter().Numerator
	return c.Meter()
}

// SetMeter selects m if it is one of Meters.
func (c *Controller) SetMeter(m Meter) error {
	for i, candidate := range Meters {
		if candidate == m {
			c.meterIdx = i
			c.beat = m.Numerator
			return nil
		}
	}
	return fmt.Errorf("%s: %w", m, ErrUnsupportedMeter)
}

// Advance moves to the next beat, wrapping to 1 after the numerator.
func (c *Controller) Advance() int {
	c.beat++
	if c.beat > c.Meter().Numerator || c.beat < 1 {
		c.beat = 1
	}
	return c.beat
}

// BeatInterval is the length of one beat at the current tempo (60000/bpm ms).
func (c *Controller) BeatInterval() time.Duration {
	return time.Minute / time.Duration(c.bpm)
}

// State returns a copy of the current values.
func (c *Controller) State() State {
	return State{BPM: c.bpm, Meter: c.Meter(), Beat: c.beat}
}
