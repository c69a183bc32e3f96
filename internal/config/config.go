package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Library
	TrackDir      string
	TrackExt      string
	HeaderSize    int64 // bytes skipped at the start of every asset
	AssetChannels int   // 1 or 2; stereo assets are folded to mono

	// Engine
	SampleRate    int
	Crossfade     time.Duration
	CommitDelay   time.Duration // settle time before a selection is committed
	BlinkInterval time.Duration
	MinGain       float64 // outgoing floor at the end of a crossfade
	Curve         string  // linear or smooth
	BPM           int
	QueueSize     int // control events buffered for the engine

	// Output
	Sink     string // oto, wav, null
	WAVOut   string
	Realtime bool          // pace wav/null outputs to the wall clock
	Duration time.Duration // stop after this much audio, 0 runs until interrupted

	// Control and display
	MIDIIn      string // input port name substring, empty disables MIDI
	MIDIChannel int    // -1 for any
	HTTPAddr    string // empty disables the HTTP server
	TUI         bool

	// Logging
	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		TrackDir:      envStr("BACKLINE_TRACK_DIR", "./tracks"),
		TrackExt:      envStr("BACKLINE_TRACK_EXT", ".wav"),
		HeaderSize:    int64(envInt("BACKLINE_HEADER_SIZE", 44)),
		AssetChannels: envInt("BACKLINE_ASSET_CHANNELS", 1),

		SampleRate:    envInt("BACKLINE_SAMPLE_RATE", 44100),
		Crossfade:     envMillis("BACKLINE_CROSSFADE_MS", 3000),
		CommitDelay:   envMillis("BACKLINE_COMMIT_MS", 2000),
		BlinkInterval: envMillis("BACKLINE_BLINK_MS", 250),
		MinGain:       envFloat("BACKLINE_MIN_GAIN", 0.1),
		Curve:         envStr("BACKLINE_CURVE", "linear"),
		BPM:           envInt("BACKLINE_BPM", 120),
		QueueSize:     envInt("BACKLINE_QUEUE_SIZE", 64),

		Sink:     envStr("BACKLINE_SINK", "oto"),
		WAVOut:   envStr("BACKLINE_WAV_OUT", "backline.wav"),
		Realtime: envBool("BACKLINE_REALTIME", true),
		Duration: envMillis("BACKLINE_DURATION_MS", 0),

		MIDIIn:      envStr("BACKLINE_MIDI_IN", ""),
		MIDIChannel: envInt("BACKLINE_MIDI_CHANNEL", -1),
		HTTPAddr:    envStr("BACKLINE_HTTP_ADDR", ""),
		TUI:         envBool("BACKLINE_TUI", true),

		LogLevel: envStr("BACKLINE_LOG_LEVEL", "info"),
		LogFile:  envStr("BACKLINE_LOG_FILE", "backline.log"),
	}
}

// Validate reports every out-of-range value at once.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.TrackDir != "", "track dir must be set")
	check(c.HeaderSize >= 0, "header size %d must not be negative", c.HeaderSize)
	check(c.AssetChannels == 1 || c.AssetChannels == 2, "asset channels %d must be 1 or 2", c.AssetChannels)
	check(c.SampleRate >= 8000 && c.SampleRate <= 192000, "sample rate %d out of range 8000-192000", c.SampleRate)
	check(c.Crossfade > 0, "crossfade %v must be positive", c.Crossfade)
	check(c.CommitDelay >= 0, "commit delay %v must not be negative", c.CommitDelay)
	check(c.BlinkInterval > 0, "blink interval %v must be positive", c.BlinkInterval)
	check(c.MinGain > 0 && c.MinGain < 1, "min gain %v must be between 0 and 1", c.MinGain)
	check(c.Curve == "linear" || c.Curve == "smooth", "curve %q must be linear or smooth", c.Curve)
	check(c.BPM >= 30 && c.BPM <= 240, "bpm %d out of range 30-240", c.BPM)
	check(c.QueueSize > 0, "queue size %d must be positive", c.QueueSize)
	check(c.Duration >= 0, "duration %v must not be negative", c.Duration)
	check(c.MIDIChannel >= -1 && c.MIDIChannel <= 15, "midi channel %d out of range -1..15", c.MIDIChannel)
	if strings.EqualFold(c.Sink, "wav") {
		check(c.WAVOut != "", "wav sink needs an output path")
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envMillis reads an integer number of milliseconds.
func envMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}
