package audio

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DefaultMinGain is the floor an outgoing track is attenuated to before it is
// dropped. It must stay above zero.
const DefaultMinGain = 0.1

// Curve shapes the crossfade ratio before gains are derived from it.
type Curve string

const (
	CurveLinear Curve = "linear"
	CurveSmooth Curve = "smooth"
)

// Smoothstep returns the smoothstep interpolation for t in [0,1].
// Formula: 3t^2 - 2t^3.
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// CrossfadeGains returns the outgoing and incoming gains for a ratio in [0,1].
// The outgoing side ramps from 1 down to minGain, the incoming side from 0 to 1.
func CrossfadeGains(ratio, minGain float64) (outgoing, incoming float64) {
	ratio = clamp01(ratio)
	return 1 - ratio*(1-minGain), ratio
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Transition is one crossfade in progress. FramesElapsed only grows.
type Transition struct {
	Outgoing      *SampleSource
	Incoming      *SampleSource
	TotalFrames   int
	FramesElapsed int
}

// Ratio is FramesElapsed/TotalFrames clamped to [0,1].
func (t *Transition) Ratio() float64 {
	return clamp01(float64(t.FramesElapsed) / float64(t.TotalFrames))
}

// Done reports whether the ramp has reached the end.
func (t *Transition) Done() bool { return t.FramesElapsed >= t.TotalFrames }

// PlaybackState is one of Silent, SingleSource or Transitioning.
type PlaybackState interface {
	playbackState()
}

// Silent means nothing has been opened yet.
type Silent struct{}

// SingleSource plays one source at full gain.
type SingleSource struct {
	Source *SampleSource
}

// Transitioning blends an outgoing and an incoming source.
type Transitioning struct {
	*Transition
}

func (Silent) playbackState()        {}
func (SingleSource) playbackState()  {}
func (Transitioning) playbackState() {}

// MixerConfig fixes the asset format and the ramp shape.
type MixerConfig struct {
	SampleRate    int
	HeaderSize    int64
	AssetChannels int
	MinGain       float64
	Curve         Curve
}

// Mixer owns at most two open sources and produces the left channel.
// It is not safe for concurrent use; the engine goroutine owns it.
type Mixer struct {
	opener Opener
	cfg    MixerConfig
	state  PlaybackState

	outBuf []int16
	inBuf  []int16

	logger  zerolog.Logger
	readLog zerolog.Logger
}

// NewMixer creates an idle mixer that opens assets through o.
func NewMixer(o Opener, cfg MixerConfig, logger zerolog.Logger) *Mixer {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.AssetChannels == 0 {
		cfg.AssetChannels = 1
	}
	if cfg.Curve == "" {
		cfg.Curve = CurveLinear
	}
	if cfg.MinGain <= 0 || cfg.MinGain >= 1 {
		cfg.MinGain = DefaultMinGain
	}
	logger = logger.With().Str("component", "mixer").Logger()
	return &Mixer{
		opener:  o,
		cfg:     cfg,
		state:   Silent{},
		outBuf:  make([]int16, BlockFrames),
		inBuf:   make([]int16, BlockFrames),
		logger:  logger,
		readLog: logger.Sample(&zerolog.BurstSampler{Burst: 1, Period: time.Second}),
	}
}

// State returns the current playback state.
func (m *Mixer) State() PlaybackState { return m.state }

// InTransition reports whether a crossfade is active.
func (m *Mixer) InTransition() bool {
	_, ok := m.state.(Transitioning)
	return ok
}

// Progress returns the current ramp ratio, or 0 when no crossfade is active.
func (m *Mixer) Progress() float64 {
	if st, ok := m.state.(Transitioning); ok {
		return st.Ratio()
	}
	return 0
}

// Current returns the asset id that is (or is becoming) the sole source.
func (m *Mixer) Current() string {
	switch st := m.state.(type) {
	case SingleSource:
		return st.Source.ID()
	case Transitioning:
		return st.Incoming.ID()
	}
	return ""
}

// OpenSources returns how many sources currently hold a handle.
func (m *Mixer) OpenSources() int {
	switch st := m.state.(type) {
	case SingleSource:
		return 1
	case Transitioning:
		if st.Outgoing != nil {
			return 2
		}
		return 1
	}
	return 0
}

// StartTransition fades to assetID over d. With nothing playing the asset
// starts immediately. A request during an active crossfade drops the outgoing
// side first, so no more than two sources are ever open. On an open error the
// current playback is left running.
func (m *Mixer) StartTransition(assetID string, d time.Duration) error {
	var current *SampleSource

	switch st := m.state.(type) {
	case Silent:
		src, err := m.open(assetID)
		if err != nil {
			return err
		}
		m.state = SingleSource{Source: src}
		m.logger.Info().Str("asset", assetID).Msg("playback started")
		return nil
	case SingleSource:
		current = st.Source
	case Transitioning:
		if st.Outgoing != nil {
			m.retire(st.Outgoing)
		}
		current = st.Incoming
		m.state = SingleSource{Source: current}
		m.logger.Debug().Str("asset", current.ID()).Msg("crossfade interrupted, outgoing dropped")
	}

	incoming, err := m.open(assetID)
	if err != nil {
		return err
	}

	total := FramesFor(d, m.cfg.SampleRate)
	if total < 1 {
		total = 1
	}
	m.state = Transitioning{&Transition{
		Outgoing:    current,
		Incoming:    incoming,
		TotalFrames: total,
	}}
	m.logger.Info().
		Str("from", current.ID()).
		Str("to", assetID).
		Int("frames", total).
		Msg("crossfade started")
	return nil
}

func (m *Mixer) open(assetID string) (*SampleSource, error) {
	src, err := OpenSource(m.opener, assetID, m.cfg.HeaderSize, m.cfg.AssetChannels)
	if err != nil {
		return nil, fmt.Errorf("start transition: %w", err)
	}
	return src, nil
}

func (m *Mixer) retire(src *SampleSource) {
	if err := src.Close(); err != nil {
		m.logger.Warn().Err(err).Str("asset", src.ID()).Msg("close source")
	}
}

// Mix fills dst with the next len(dst) music frames and advances any active
// crossfade by that many frames.
func (m *Mixer) Mix(dst []int16) {
	switch st := m.state.(type) {
	case Silent:
		clear(dst)
	case SingleSource:
		m.fill(st.Source, dst)
	case Transitioning:
		m.mixTransition(st.Transition, dst)
	}
}

func (m *Mixer) mixTransition(t *Transition, dst []int16) {
	out := grow(&m.outBuf, len(dst))
	in := grow(&m.inBuf, len(dst))
	if t.Outgoing != nil {
		m.fill(t.Outgoing, out)
	} else {
		clear(out)
	}
	m.fill(t.Incoming, in)

	total := float64(t.TotalFrames)
	for i := range dst {
		ratio := float64(t.FramesElapsed+i+1) / total
		if m.cfg.Curve == CurveSmooth {
			ratio = Smoothstep(ratio)
		}
		og, ig := CrossfadeGains(ratio, m.cfg.MinGain)
		dst[i] = Saturate(float64(out[i])*og + float64(in[i])*ig)
	}

	t.FramesElapsed = min(t.FramesElapsed+len(dst), t.TotalFrames)
	if t.Done() {
		if t.Outgoing != nil {
			m.retire(t.Outgoing)
		}
		m.state = SingleSource{Source: t.Incoming}
		m.logger.Info().Str("asset", t.Incoming.ID()).Msg("crossfade complete")
	}
}

// fill reads one block from src. A shortfall caused by a loop restart is
// re-read once; whatever is still missing is silence.
func (m *Mixer) fill(src *SampleSource, dst []int16) {
	n, err := src.ReadFrames(dst)
	if err == nil && n < len(dst) {
		m.logger.Debug().Str("asset", src.ID()).Int("loops", src.Loops()).Msg("loop restart")
		var more int
		more, err = src.ReadFrames(dst[n:])
		n += more
	}
	if err != nil {
		m.readLog.Warn().Err(err).Str("asset", src.ID()).Msg("source read failed")
	}
	clear(dst[n:])
}

// Close releases every open source and returns the mixer to Silent.
func (m *Mixer) Close() {
	switch st := m.state.(type) {
	case SingleSource:
		m.retire(st.Source)
	case Transitioning:
		if st.Outgoing != nil {
			m.retire(st.Outgoing)
		}
		m.retire(st.Incoming)
	}
	m.state = Silent{}
}

func grow(buf *[]int16, n int) []int16 {
	if cap(*buf) < n {
		*buf = make([]int16, n)
	}
	return (*buf)[:n]
}
