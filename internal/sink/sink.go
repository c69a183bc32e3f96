// Package sink delivers interleaved stereo blocks to an output. Write is the
// engine's pacing point: it blocks until the output can take the block.
package sink

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/backline/internal/audio"
)

var (
	// ErrClosed is returned by writes after Close.
	ErrClosed = errors.New("sink closed")

	// ErrUnknownBackend is returned by New for an unrecognised backend name.
	ErrUnknownBackend = errors.New("unknown sink backend")
)

// Sink accepts interleaved int16 stereo blocks.
type Sink interface {
	Write(block []int16) error
	Name() string
	Close() error
}

// Backend names an output implementation.
type Backend string

const (
	BackendOto  Backend = "oto"
	BackendWAV  Backend = "wav"
	BackendNull Backend = "null"
)

// ParseBackend accepts a backend name case-insensitively.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendOto, BackendWAV, BackendNull:
		return b, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownBackend)
}

// Config selects and sizes the output.
type Config struct {
	Backend    Backend
	SampleRate int
	Path       string // wav only
	// Realtime paces file and null outputs to the wall clock. The device
	// backend is always paced by the hardware.
	Realtime bool
}

// New opens the configured backend, wrapped so its throughput can be read
// back with Stats.
func New(cfg Config, logger zerolog.Logger) (*Counted, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	logger = logger.With().Str("component", "sink").Str("backend", string(cfg.Backend)).Logger()

	var (
		s   Sink
		err error
	)
	switch cfg.Backend {
	case BackendOto:
		s, err = NewOto(cfg.SampleRate, logger)
	case BackendWAV:
		s, err = NewWAV(cfg.Path, cfg.SampleRate)
	case BackendNull:
		s = NewNull()
	default:
		err = fmt.Errorf("%q: %w", cfg.Backend, ErrUnknownBackend)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Realtime && cfg.Backend != BackendOto {
		s = NewPaced(s, audio.BlockDuration(cfg.SampleRate))
	}
	logger.Info().Str("sink", s.Name()).Int("sample_rate", cfg.SampleRate).Msg("audio output open")
	return NewCounted(s), nil
}

// Stats summarises what has been written.
type Stats struct {
	Blocks      int64
	Samples     int64
	Errors      int64
	SlowestSink time.Duration
}

// Counted wraps a Sink and records throughput.
type Counted struct {
	Sink
	blocks  atomic.Int64
	samples atomic.Int64
	errs    atomic.Int64
	slowest atomic.Int64
}

func NewCounted(s Sink) *Counted { return &Counted{Sink: s} }

func (c *Counted) Write(block []int16) error {
	start := time.Now()
	err := c.Sink.Write(block)
	if d := int64(time.Since(start)); d > c.slowest.Load() {
		c.slowest.Store(d)
	}
	if err != nil {
		c.errs.Add(1)
		return err
	}
	c.blocks.Add(1)
	c.samples.Add(int64(len(block)))
	return nil
}

// Stats may be called from any goroutine.
func (c *Counted) Stats() Stats {
	return Stats{
		Blocks:      c.blocks.Load(),
		Samples:     c.samples.Load(),
		Errors:      c.errs.Load(),
		SlowestSink: time.Duration(c.slowest.Load()),
	}
}
