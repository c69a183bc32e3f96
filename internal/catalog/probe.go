package catalog

import (
	"fmt"
	"time"

	"github.com/go-audio/wav"
)

// Format describes what a WAV asset's header claims.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}

// Matches reports whether f agrees with the configured playback format.
func (f Format) Matches(sampleRate, channels int) bool {
	return f.SampleRate == sampleRate && f.Channels == channels && f.BitDepth == 16
}

// Probe reads the RIFF header of a WAV asset. Playback never parses headers;
// this exists so boot can warn about material that disagrees with the
// configured format.
func (c *Catalog) Probe(id string) (Format, error) {
	h, err := c.Open(id)
	if err != nil {
		return Format{}, err
	}
	defer h.Close()

	d := wav.NewDecoder(h)
	if !d.IsValidFile() {
		return Format{}, fmt.Errorf("%s: %w", id, ErrNotWAV)
	}
	dur, err := d.Duration()
	if err != nil {
		return Format{}, fmt.Errorf("probe %s: %w", id, err)
	}
	return Format{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
		Duration:   dur,
	}, nil
}
