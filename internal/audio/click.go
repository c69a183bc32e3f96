package audio

import (
	"math"
	"time"
)

// Click voice shape. Accented beats are higher and louder.
const (
	ClickDuration  = 30 * time.Millisecond
	ClickDecay     = 90.0 // 1/s
	AccentFreq     = 1760.0
	AccentAmp      = 0.9
	NormalFreq     = 880.0
	NormalAmp      = 0.55
	fullScaleFloat = 32767.0
)

// BeatSource supplies the tempo the click follows. Advance is called once per
// beat boundary and returns the new 1-based beat within the measure.
type BeatSource interface {
	BPM() int
	Advance() int
}

// ClickVoice is one decaying tone burst.
type ClickVoice struct {
	Active         bool
	StartedAtFrame int64
	Accented       bool
}

// Click is a free-running metronome clocked purely by the frames it renders.
// It never looks at file I/O, crossfade or display state; bpm and meter are
// read only at beat boundaries, so a tempo change lands on the next beat.
type Click struct {
	sampleRate     float64
	durationFrames int64
	tempo          BeatSource

	frame      int64   // frames rendered so far
	sinceBeat  float64 // frames since the last beat boundary
	beatFrames float64 // length of the current beat
	started    bool
	enabled    bool
	voice      ClickVoice
}

// NewClick creates an enabled click at sampleRate following tempo.
func NewClick(sampleRate int, tempo BeatSource) *Click {
	return &Click{
		sampleRate:     float64(sampleRate),
		durationFrames: int64(FramesFor(ClickDuration, sampleRate)),
		tempo:          tempo,
		enabled:        true,
	}
}

// SetEnabled mutes or unmutes the click. The beat clock keeps running either
// way so the click comes back on the grid.
func (c *Click) SetEnabled(on bool) { c.enabled = on }

// Enabled reports whether the click is audible.
func (c *Click) Enabled() bool { return c.enabled }

// Sounding reports whether a voice is currently decaying.
func (c *Click) Sounding() bool { return c.voice.Active }

// Voice returns the current (or most recent) voice.
func (c *Click) Voice() ClickVoice { return c.voice }

// Frame returns how many frames the click has rendered.
func (c *Click) Frame() int64 { return c.frame }

// NextSample renders one click sample and advances the clock by one frame.
func (c *Click) NextSample() int16 {
	if !c.started || c.sinceBeat >= c.beatFrames {
		c.beat()
	}
	s := c.sample()
	c.frame++
	c.sinceBeat++
	return s
}

// Render fills dst with consecutive click samples.
func (c *Click) Render(dst []int16) {
	for i := range dst {
		dst[i] = c.NextSample()
	}
}

func (c *Click) beat() {
	if c.started {
		c.sinceBeat -= c.beatFrames // keep the fractional remainder
	} else {
		c.started = true
		c.sinceBeat = 0
	}
	c.beatFrames = c.sampleRate * 60 / float64(c.tempo.BPM())
	beat := c.tempo.Advance()
	c.voice = ClickVoice{
		Active:         true,
		StartedAtFrame: c.frame,
		Accented:       beat == 1,
	}
}

func (c *Click) sample() int16 {
	if !c.voice.Active {
		return 0
	}
	elapsed := c.frame - c.voice.StartedAtFrame
	if elapsed >= c.durationFrames {
		c.voice.Active = false
		return 0
	}
	if !c.enabled {
		return 0
	}
	amp, freq := NormalAmp, NormalFreq
	if c.voice.Accented {
		amp, freq = AccentAmp, AccentFreq
	}
	t := float64(elapsed) / c.sampleRate
	return Saturate(amp * fullScaleFloat * math.Sin(2*math.Pi*freq*t) * math.Exp(-ClickDecay*t))
}
