package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Opener opens a named asset as an independent handle. Each call must return a
// new handle, even for the same id.
type Opener interface {
	Open(id string) (io.ReadSeekCloser, error)
}

// SampleSource streams one asset as mono int16 frames. It skips a fixed-size
// header and loops back to just past it at end-of-stream.
type SampleSource struct {
	id         string
	h          io.ReadSeekCloser
	headerSize int64
	channels   int
	buf        []byte
	loops      int
	closed     bool
}

// OpenSource opens id through o and positions the cursor at headerSize.
// Errors from the opener are wrapped, so errors.Is still sees catalog.ErrNotFound.
func OpenSource(o Opener, id string, headerSize int64, channels int) (*SampleSource, error) {
	if channels != 1 && channels != 2 {
		return nil, ErrUnsupportedChannels
	}
	h, err := o.Open(id)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", id, err)
	}
	if _, err := h.Seek(headerSize, io.SeekStart); err != nil {
		h.Close()
		return nil, fmt.Errorf("skip header %s: %w", id, err)
	}
	return &SampleSource{
		id:         id,
		h:          h,
		headerSize: headerSize,
		channels:   channels,
		buf:        make([]byte, BlockFrames*2*channels),
	}, nil
}

// ID returns the asset id this source streams.
func (s *SampleSource) ID() string { return s.id }

// Loops returns how many times the source has restarted from the header.
func (s *SampleSource) Loops() int { return s.loops }

// Closed reports whether the handle has been released.
func (s *SampleSource) Closed() bool { return s.closed }

// ReadFrames fills dst with up to len(dst) mono frames and returns how many
// were written. Reaching end-of-stream rewinds to the header offset; if the
// read produced nothing at all, this call returns 0 and the next call resumes
// from the top.
func (s *SampleSource) ReadFrames(dst []int16) (int, error) {
	if s.closed {
		return 0, ErrSourceClosed
	}
	if len(dst) == 0 {
		return 0, nil
	}

	frameBytes := 2 * s.channels
	need := len(dst) * frameBytes
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	s.buf = s.buf[:need]

	n, err := io.ReadFull(s.h, s.buf)
	frames := n / frameBytes // odd trailing bytes are dropped
	s.decode(dst[:frames])

	switch {
	case err == nil:
		return frames, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		if rerr := s.rewind(); rerr != nil {
			return frames, rerr
		}
		return frames, nil
	default:
		return frames, fmt.Errorf("read %s: %w", s.id, err)
	}
}

func (s *SampleSource) decode(dst []int16) {
	if s.channels == 1 {
		for i := range dst {
			dst[i] = int16(binary.LittleEndian.Uint16(s.buf[i*2:]))
		}
		return
	}
	// Stereo assets are folded down by averaging L and R.
	for i := range dst {
		l := int32(int16(binary.LittleEndian.Uint16(s.buf[i*4:])))
		r := int32(int16(binary.LittleEndian.Uint16(s.buf[i*4+2:])))
		dst[i] = int16((l + r) / 2)
	}
}

func (s *SampleSource) rewind() error {
	if _, err := s.h.Seek(s.headerSize, io.SeekStart); err != nil {
		return fmt.Errorf("loop %s: %w", s.id, err)
	}
	s.loops++
	return nil
}

// Close releases the underlying handle. Calling it again is a no-op.
func (s *SampleSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.h.Close(); err != nil {
		return fmt.Errorf("close %s: %w", s.id, err)
	}
	return nil
}
