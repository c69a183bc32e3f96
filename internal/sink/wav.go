package sink

import (
	"fmt"
	"os"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/satindergrewal/backline/internal/audio"
)

// WAV records the session to a 16-bit stereo PCM file. Write and Close may
// be called from different goroutines.
type WAV struct {
	path string

	mu     sync.Mutex
	f      *os.File
	enc    *wav.Encoder
	buf    *goaudio.IntBuffer
	closed bool
}

func NewWAV(path string, sampleRate int) (*WAV, error) {
	if path == "" {
		return nil, fmt.Errorf("wav sink: no output path")
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("wav sink: %w", err)
	}
	return &WAV{
		path: path,
		f:    f,
		enc:  wav.NewEncoder(f, sampleRate, audio.BitDepth, audio.Channels, 1),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: audio.Channels, SampleRate: sampleRate},
			Data:           make([]int, audio.BlockSamples),
			SourceBitDepth: audio.BitDepth,
		},
	}, nil
}

func (w *WAV) Name() string { return "wav:" + w.path }

func (w *WAV) Write(block []int16) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if cap(w.buf.Data) < len(block) {
		w.buf.Data = make([]int, len(block))
	}
	w.buf.Data = w.buf.Data[:len(block)]
	for i, s := range block {
		w.buf.Data[i] = int(s)
	}
	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("wav sink: %w", err)
	}
	return nil
}

// Close finalises the RIFF header and closes the file.
func (w *WAV) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.enc.Close(); err != nil {
		w.f.Close()
		return fmt.Errorf("wav sink: %w", err)
	}
	return w.f.Close()
}
