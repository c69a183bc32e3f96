// Package engine runs the real-time audio loop. One goroutine owns the mixer,
// click, tempo, selection and the sink write; everything else talks to it
// through Post and reads back through the status board.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/backline/internal/audio"
	"github.com/satindergrewal/backline/internal/catalog"
	"github.com/satindergrewal/backline/internal/control"
	"github.com/satindergrewal/backline/internal/selection"
	"github.com/satindergrewal/backline/internal/sink"
	"github.com/satindergrewal/backline/internal/status"
	"github.com/satindergrewal/backline/internal/tempo"
)

// Config fixes the engine's format and timings.
type Config struct {
	SampleRate    int
	HeaderSize    int64
	AssetChannels int
	Crossfade     time.Duration
	CommitDelay   time.Duration
	BlinkInterval time.Duration
	MinGain       float64
	Curve         audio.Curve
	BPM           int
	QueueSize     int
	// Duration stops Run after this much audio. Zero runs until cancelled.
	Duration time.Duration
}

// Engine is the single owner of all audio state.
type Engine struct {
	cfg    Config
	lib    catalog.Library
	out    sink.Sink
	board  *status.Board
	logger zerolog.Logger

	events  chan control.Event
	dropped atomic.Int64

	mixer *audio.Mixer
	click *audio.Click
	tempo *tempo.Controller
	sel   *selection.Machine

	left, right, stereo []int16
	frames              int64
	stopAt              int64
}

// New builds the engine and starts the first track. Failing to open it is
// fatal; the caller should exit rather than run a silent loop.
func New(cfg Config, lib catalog.Library, out sink.Sink, board *status.Board, logger zerolog.Logger) (*Engine, error) {
	if lib.Len() == 0 {
		return nil, catalog.ErrNoAssets
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}

	e := &Engine{
		cfg:    cfg,
		lib:    lib,
		out:    out,
		board:  board,
		logger: logger.With().Str("component", "engine").Logger(),
		events: make(chan control.Event, cfg.QueueSize),
		tempo:  tempo.New(cfg.BPM),
		left:   make([]int16, audio.BlockFrames),
		right:  make([]int16, audio.BlockFrames),
		stereo: make([]int16, audio.BlockSamples),
	}
	if cfg.Duration > 0 {
		e.stopAt = int64(audio.FramesFor(cfg.Duration, cfg.SampleRate))
	}

	e.mixer = audio.NewMixer(lib, audio.MixerConfig{
		SampleRate:    cfg.SampleRate,
		HeaderSize:    cfg.HeaderSize,
		AssetChannels: cfg.AssetChannels,
		MinGain:       cfg.MinGain,
		Curve:         cfg.Curve,
	}, logger)
	e.click = audio.NewClick(cfg.SampleRate, e.tempo)

	sel, err := selection.New(lib.Len(), cfg.CommitDelay, cfg.BlinkInterval, selection.TransitionFunc(e.transitionTo))
	if err != nil {
		return nil, err
	}
	e.sel = sel

	if err := e.mixer.StartTransition(lib.ID(0), cfg.Crossfade); err != nil {
		return nil, fmt.Errorf("first track: %w", err)
	}
	e.publish()
	return e, nil
}

func (e *Engine) transitionTo(index int) error {
	return e.mixer.StartTransition(e.lib.ID(index), e.cfg.Crossfade)
}

// Post queues a control event without blocking. It reports false, and counts
// the drop, when the queue is full.
func (e *Engine) Post(ev control.Event) bool {
	select {
	case e.events <- ev:
		return true
	default:
		e.dropped.Add(1)
		return false
	}
}

// Dropped returns how many posted events were discarded.
func (e *Engine) Dropped() int64 { return e.dropped.Load() }

// Run cycles until ctx is cancelled, the configured duration has been
// rendered, or the sink fails. Cancelling ctx closes the sink so a blocked
// write returns. Run closes the sink and every open source before returning.
func (e *Engine) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { e.out.Close() })
	defer stop()
	defer e.shutdown()

	e.logger.Info().
		Int("tracks", e.lib.Len()).
		Str("track", e.lib.Label(0)).
		Int("bpm", e.tempo.BPM()).
		Str("sink", e.out.Name()).
		Msg("engine running")

	for {
		if ctx.Err() != nil {
			return nil
		}
		if e.stopAt > 0 && e.frames >= e.stopAt {
			e.logger.Info().Dur("rendered", e.Elapsed()).Msg("duration reached")
			return nil
		}
		if err := e.Cycle(); err != nil {
			if ctx.Err() != nil && errors.Is(err, sink.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

func (e *Engine) shutdown() {
	e.mixer.Close()
	if err := e.out.Close(); err != nil {
		e.logger.Warn().Err(err).Msg("close sink")
	}
	e.logger.Info().Dur("elapsed", e.Elapsed()).Int64("dropped_events", e.Dropped()).Msg("engine stopped")
}

// Cycle renders and delivers one block: drain events, poll the selection
// deadline, mix, click, interleave, publish, write.
func (e *Engine) Cycle() error {
	now := e.Elapsed()
	e.drain(now)

	committed, err := e.sel.Poll(now)
	switch {
	case err != nil:
		e.logger.Warn().Err(err).Str("track", e.lib.Label(e.sel.Committed())).Msg("transition failed, keeping current track")
	case committed:
		e.logger.Info().
			Int("index", e.sel.Committed()).
			Str("track", e.lib.Label(e.sel.Committed())).
			Msg("track committed")
	}

	e.mixer.Mix(e.left)
	e.click.Render(e.right)
	e.stereo = audio.Interleave(e.stereo, e.left, e.right)
	e.publish()

	if err := e.out.Write(e.stereo); err != nil {
		return fmt.Errorf("sink write: %w", err)
	}
	e.frames += audio.BlockFrames
	return nil
}

func (e *Engine) drain(now time.Duration) {
	for {
		select {
		case ev := <-e.events:
			e.apply(ev, now)
		default:
			return
		}
	}
}

func (e *Engine) apply(ev control.Event, now time.Duration) {
	switch ev.Kind {
	case control.Next:
		e.sel.Next(now)
	case control.Previous:
		e.sel.Previous(now)
	case control.ToggleMetronome:
		e.click.SetEnabled(!e.click.Enabled())
	case control.Tempo:
		e.tempo.Nudge(ev.Delta)
	case control.CycleMeter:
		e.tempo.CycleMeter()
	default:
		e.logger.Warn().Int("kind", int(ev.Kind)).Msg("unknown control event")
		return
	}
	e.logger.Debug().Stringer("event", ev).Int("candidate", e.sel.Candidate()).Int("bpm", e.tempo.BPM()).Msg("control")
}

func (e *Engine) publish() {
	now := e.Elapsed()
	ts := e.tempo.State()
	committed, candidate := e.sel.Committed(), e.sel.Candidate()
	e.board.Publish(status.Snapshot{
		Tracks:         e.lib.Len(),
		Committed:      committed,
		CommittedLabel: e.lib.Label(committed),
		Candidate:      candidate,
		CandidateLabel: e.lib.Label(candidate),
		Pending:        e.sel.IsPending(),
		BlinkVisible:   e.sel.BlinkVisible(now),
		BPM:            ts.BPM,
		Meter:          ts.Meter.String(),
		Beat:           ts.Beat,
		BeatsPerBar:    ts.Meter.Numerator,
		Metronome:      e.click.Enabled(),
		Crossfading:    e.mixer.InTransition(),
		Progress:       e.mixer.Progress(),
		OpenSources:    e.mixer.OpenSources(),
		Sink:           e.out.Name(),
		Elapsed:        now,
	})
}

// Elapsed is the engine's frame clock: audio delivered so far.
func (e *Engine) Elapsed() time.Duration {
	rate := int64(e.cfg.SampleRate)
	secs, rem := e.frames/rate, e.frames%rate
	return time.Duration(secs)*time.Second + time.Duration(rem)*time.Second/time.Duration(rate)
}

// Frames returns how many frames have been written to the sink.
func (e *Engine) Frames() int64 { return e.frames }

// The accessors below are for the engine goroutine and tests only.

func (e *Engine) Mixer() *audio.Mixer           { return e.mixer }
func (e *Engine) Tempo() *tempo.Controller      { return e.tempo }
func (e *Engine) Selection() *selection.Machine { return e.sel }
func (e *Engine) Click() *audio.Click           { return e.click }
