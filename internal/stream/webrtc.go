package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog"
	"gopkg.in/hraban/opus.v2"

	"github.com/satindergrewal/backline/internal/audio"
)

// ErrOpusRate is returned when the engine rate cannot be carried by Opus.
var ErrOpusRate = errors.New("sample rate not supported by opus (8000, 12000, 16000, 24000, 48000)")

// OpusFrame is the packet duration sent to peers.
const OpusFrame = 20 * time.Millisecond

// OpusRate reports whether Opus can encode at sampleRate.
func OpusRate(sampleRate int) bool {
	switch sampleRate {
	case 8000, 12000, 16000, 24000, 48000:
		return true
	}
	return false
}

// WebRTCHandler serves WebRTC SDP negotiation for a low-latency Opus monitor.
type WebRTCHandler struct {
	broadcaster *Broadcaster
	sampleRate  int
	logger      zerolog.Logger

	mu    sync.Mutex
	peers []*webrtc.PeerConnection
}

func NewWebRTCHandler(b *Broadcaster, sampleRate int, logger zerolog.Logger) (*WebRTCHandler, error) {
	if !OpusRate(sampleRate) {
		return nil, fmt.Errorf("%d Hz: %w", sampleRate, ErrOpusRate)
	}
	return &WebRTCHandler{
		broadcaster: b,
		sampleRate:  sampleRate,
		logger:      logger.With().Str("component", "webrtc").Logger(),
	}, nil
}

// PeerCount returns the number of active WebRTC peers.
func (h *WebRTCHandler) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

func (h *WebRTCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		http.Error(w, "invalid SDP offer", http.StatusBadRequest)
		return
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		http.Error(w, "create peer connection failed", http.StatusInternalServerError)
		return
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio",
		"backline-monitor",
	)
	if err != nil {
		pc.Close()
		http.Error(w, "create audio track failed", http.StatusInternalServerError)
		return
	}
	if _, err := pc.AddTrack(track); err != nil {
		pc.Close()
		http.Error(w, "add track failed", http.StatusInternalServerError)
		return
	}
	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		http.Error(w, "set remote description failed", http.StatusBadRequest)
		return
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		http.Error(w, "create answer failed", http.StatusInternalServerError)
		return
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		http.Error(w, "set local description failed", http.StatusInternalServerError)
		return
	}

	<-webrtc.GatheringCompletePromise(pc)

	h.mu.Lock()
	h.peers = append(h.peers, pc)
	h.mu.Unlock()
	h.logger.Info().Int("peers", h.PeerCount()).Msg("peer connected")

	listener := h.broadcaster.Subscribe("webrtc")
	go h.streamToPeer(listener, track)

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		if s == webrtc.PeerConnectionStateFailed ||
			s == webrtc.PeerConnectionStateClosed ||
			s == webrtc.PeerConnectionStateDisconnected {
			if h.removePeer(pc) {
				h.broadcaster.Unsubscribe(listener)
				pc.Close()
				h.logger.Info().Int("peers", h.PeerCount()).Msg("peer disconnected")
			}
		}
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(pc.LocalDescription())
}

// Chunker regroups interleaved blocks into fixed-size frames.
type Chunker struct {
	frame []int16
	n     int
}

// NewChunker returns a chunker emitting frames of frameSamples interleaved
// samples.
func NewChunker(frameSamples int) *Chunker {
	return &Chunker{frame: make([]int16, frameSamples)}
}

// Push appends block and calls emit for each completed frame. The slice
// passed to emit is reused on the next call.
func (c *Chunker) Push(block []int16, emit func([]int16)) {
	for len(block) > 0 {
		k := copy(c.frame[c.n:], block)
		c.n += k
		block = block[k:]
		if c.n == len(c.frame) {
			emit(c.frame)
			c.n = 0
		}
	}
}

func (h *WebRTCHandler) streamToPeer(listener *Listener, track *webrtc.TrackLocalStaticSample) {
	defer h.broadcaster.Unsubscribe(listener)
	log := h.logger.With().Stringer("listener", listener.ID).Logger()

	enc, err := opus.NewEncoder(h.sampleRate, audio.Channels, opus.AppAudio)
	if err != nil {
		log.Error().Err(err).Msg("opus encoder")
		return
	}
	enc.SetBitrate(128000)

	frameSamples := audio.FramesFor(OpusFrame, h.sampleRate) * audio.Channels
	chunker := NewChunker(frameSamples)
	opusBuf := make([]byte, 4000)

	var writeErr error
	emit := func(frame []int16) {
		n, err := enc.Encode(frame, opusBuf)
		if err != nil {
			log.Warn().Err(err).Msg("opus encode")
			return
		}
		writeErr = track.WriteSample(media.Sample{Data: opusBuf[:n], Duration: OpusFrame})
	}

	for {
		select {
		case <-listener.Done():
			return
		case block := <-listener.C:
			chunker.Push(block, emit)
			if writeErr != nil {
				return
			}
		}
	}
}

func (h *WebRTCHandler) removePeer(pc *webrtc.PeerConnection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, p := range h.peers {
		if p == pc {
			h.peers = append(h.peers[:i], h.peers[i+1:]...)
			return true
		}
	}
	return false
}
