package stream

import (
	"context"
	"io"
	"net/http"
	"os/exec"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/backline/internal/audio"
)

// HTTPHandler serves the monitor mix as a chunked MP3 stream.
// Each connection spawns an FFmpeg process to encode PCM -> MP3 in real time.
type HTTPHandler struct {
	broadcaster *Broadcaster
	sampleRate  int
	logger      zerolog.Logger
}

func NewHTTPHandler(b *Broadcaster, sampleRate int, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		broadcaster: b,
		sampleRate:  sampleRate,
		logger:      logger.With().Str("component", "mp3").Logger(),
	}
}

// ffmpegArgs reads s16le stereo from stdin and writes MP3 to stdout.
func ffmpegArgs(sampleRate int) []string {
	return []string{
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(audio.Channels),
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", "192k",
		"-f", "mp3",
		"-fflags", "nobuffer",
		"-flush_packets", "1",
		"-loglevel", "error",
		"pipe:1",
	}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffmpeg", ffmpegArgs(h.sampleRate)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		h.logger.Error().Err(err).Msg("stdin pipe")
		http.Error(w, "encoder unavailable", http.StatusServiceUnavailable)
		return
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		h.logger.Error().Err(err).Msg("stdout pipe")
		http.Error(w, "encoder unavailable", http.StatusServiceUnavailable)
		return
	}
	if err := cmd.Start(); err != nil {
		h.logger.Error().Err(err).Msg("ffmpeg start")
		http.Error(w, "encoder unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("ICY-Name", "backline monitor")

	listener := h.broadcaster.Subscribe("http")
	defer h.broadcaster.Unsubscribe(listener)

	log := h.logger.With().Stringer("listener", listener.ID).Logger()
	log.Info().Int("listeners", h.broadcaster.ListenerCount()).Msg("listener connected")
	defer func() {
		log.Info().Int64("dropped", listener.Dropped()).Msg("listener disconnected")
	}()

	go func() {
		defer stdin.Close()
		buf := make([]byte, audio.BlockBytes)
		for {
			select {
			case <-ctx.Done():
				return
			case <-listener.Done():
				return
			case block := <-listener.C:
				if n := len(block) * 2; cap(buf) < n {
					buf = make([]byte, n)
				}
				buf = buf[:len(block)*2]
				audio.PutSamples(buf, block)
				if _, err := stdin.Write(buf); err != nil {
					return
				}
			}
		}
	}()

	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				break
			}
			flusher.Flush()
		}
		if err != nil {
			if err != io.EOF {
				log.Warn().Err(err).Msg("ffmpeg read")
			}
			break
		}
	}

	cancel()
	cmd.Wait()
}
