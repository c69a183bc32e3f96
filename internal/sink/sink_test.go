package sink

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/rs/zerolog"

	"github.com/satindergrewal/backline/internal/audio"
)

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{"oto", BackendOto, false},
		{"WAV", BackendWAV, false},
		{" null ", BackendNull, false},
		{"pulse", "", true},
	}
	for _, tt := range tests {
		got, err := ParseBackend(tt.in)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("ParseBackend(%q) = %q, %v", tt.in, got, err)
		}
		if tt.wantErr && !errors.Is(err, ErrUnknownBackend) {
			t.Errorf("ParseBackend(%q) error = %v, want ErrUnknownBackend", tt.in, err)
		}
	}
}

func TestWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	s, err := New(Config{Backend: BackendWAV, SampleRate: 22050, Path: path}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	block := make([]int16, audio.BlockSamples)
	for i := range block {
		block[i] = int16(i - 100)
	}
	for range 3 {
		if err := s.Write(block); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Write(block); !errors.Is(err, ErrClosed) {
		t.Errorf("Write after Close = %v, want ErrClosed", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	d := wav.NewDecoder(f)
	buf, err := d.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.SampleRate != 22050 || d.NumChans != 2 || d.BitDepth != 16 {
		t.Errorf("format = %d Hz %d ch %d bit", d.SampleRate, d.NumChans, d.BitDepth)
	}
	if len(buf.Data) != 3*audio.BlockSamples {
		t.Fatalf("samples = %d, want %d", len(buf.Data), 3*audio.BlockSamples)
	}
	if buf.Data[0] != -100 || buf.Data[audio.BlockSamples+5] != -95 {
		t.Errorf("data = %d, %d", buf.Data[0], buf.Data[audio.BlockSamples+5])
	}

	st := s.Stats()
	if st.Blocks != 3 || st.Samples != 3*audio.BlockSamples || st.Errors != 1 {
		t.Errorf("Stats = %+v", st)
	}
}

func TestWAVCloseDuringWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	w, err := NewWAV(path, 44100)
	if err != nil {
		t.Fatal(err)
	}

	block := make([]int16, audio.BlockSamples)
	written := make(chan int, 1)
	go func() {
		n := 0
		for w.Write(block) == nil {
			n++
		}
		written <- n
	}()

	time.Sleep(5 * time.Millisecond)
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	n := <-written

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	buf, err := wav.NewDecoder(f).FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(buf.Data) != n*audio.BlockSamples {
		t.Errorf("samples = %d, want %d from %d writes", len(buf.Data), n*audio.BlockSamples, n)
	}
}

func TestWAVNeedsPath(t *testing.T) {
	if _, err := NewWAV("", 44100); err == nil {
		t.Error("NewWAV with empty path succeeded")
	}
}

func TestNull(t *testing.T) {
	n := NewNull()
	if err := n.Write(make([]int16, 4)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	n.Close()
	if err := n.Write(nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Write after Close = %v, want ErrClosed", err)
	}
}

func TestPacedHoldsWrites(t *testing.T) {
	interval := 5 * time.Millisecond
	p := NewPaced(NewNull(), interval)
	defer p.Close()

	start := time.Now()
	for range 10 {
		if err := p.Write(nil); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 8*interval {
		t.Errorf("10 paced writes took %v, want at least %v", elapsed, 8*interval)
	}
}

func TestPacedCloseUnblocks(t *testing.T) {
	p := NewPaced(NewNull(), time.Hour)
	errc := make(chan error, 1)
	go func() { errc <- p.Write(nil) }()

	time.Sleep(10 * time.Millisecond)
	p.Close()
	select {
	case err := <-errc:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("blocked Write = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock Write")
	}
}

type recordingMonitor struct {
	blocks [][]int16
}

func (m *recordingMonitor) Send(b []int16) { m.blocks = append(m.blocks, b) }

func TestTeeCopies(t *testing.T) {
	mon := &recordingMonitor{}
	tee := NewTee(NewNull(), mon)

	block := []int16{1, 2, 3, 4}
	tee.Write(block)
	block[0] = 99

	if len(mon.blocks) != 1 {
		t.Fatalf("monitor got %d blocks, want 1", len(mon.blocks))
	}
	if mon.blocks[0][0] != 1 {
		t.Errorf("monitor block shares the engine buffer")
	}

	tee.Close()
	if err := tee.Write(block); !errors.Is(err, ErrClosed) {
		t.Errorf("Write after Close = %v, want ErrClosed", err)
	}
	if len(mon.blocks) != 1 {
		t.Error("monitor received a block that failed to write")
	}
}
