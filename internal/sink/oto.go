package sink

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hajimehoshi/oto/v2"
	"github.com/rs/zerolog"

	"github.com/satindergrewal/backline/internal/audio"
)

// deviceBufferBlocks is how many engine blocks the device player may hold.
// Four blocks at 44.1 kHz is about 23 ms.
const deviceBufferBlocks = 4

// Oto plays blocks on the default audio device. The player pulls from a pipe,
// so Write returns only once the device has taken the bytes.
type Oto struct {
	ctx    *oto.Context
	player oto.Player
	pr     *io.PipeReader
	pw     *io.PipeWriter
	buf    []byte

	closeOnce sync.Once
	logger    zerolog.Logger
}

// NewOto opens the device at sampleRate, 16-bit stereo. Only one device
// context can exist per process.
func NewOto(sampleRate int, logger zerolog.Logger) (*Oto, error) {
	ctx, ready, err := oto.NewContext(sampleRate, audio.Channels, oto.FormatSignedInt16LE)
	if err != nil {
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("open audio device: not ready after 5s")
	}

	pr, pw := io.Pipe()
	player := ctx.NewPlayer(pr)
	player.SetBufferSize(deviceBufferBlocks * audio.BlockBytes)
	player.Play()

	return &Oto{
		ctx:    ctx,
		player: player,
		pr:     pr,
		pw:     pw,
		buf:    make([]byte, audio.BlockBytes),
		logger: logger,
	}, nil
}

func (o *Oto) Name() string { return "oto" }

func (o *Oto) Write(block []int16) error {
	if err := o.player.Err(); err != nil {
		return fmt.Errorf("audio device: %w", err)
	}
	n := len(block) * 2
	if cap(o.buf) < n {
		o.buf = make([]byte, n)
	}
	o.buf = o.buf[:n]
	audio.PutSamples(o.buf, block)
	if _, err := o.pw.Write(o.buf); err != nil {
		if err == io.ErrClosedPipe {
			return ErrClosed
		}
		return err
	}
	return nil
}

// Close stops playback. A Write blocked on the device returns ErrClosed.
func (o *Oto) Close() error {
	var err error
	o.closeOnce.Do(func() {
		o.pr.CloseWithError(io.ErrClosedPipe)
		o.pw.Close()
		err = o.player.Close()
		o.logger.Debug().Msg("audio device closed")
	})
	return err
}
