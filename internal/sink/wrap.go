package sink

import (
	"sync"
	"sync/atomic"
	"time"
)

// Null discards everything.
type Null struct {
	closed atomic.Bool
}

func NewNull() *Null { return &Null{} }

func (n *Null) Name() string { return "null" }

func (n *Null) Write([]int16) error {
	if n.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (n *Null) Close() error {
	n.closed.Store(true)
	return nil
}

// Paced holds each Write until the next tick, so an output with no clock of
// its own runs at the audio rate.
type Paced struct {
	next   Sink
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func NewPaced(next Sink, interval time.Duration) *Paced {
	return &Paced{
		next:   next,
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}
}

func (p *Paced) Name() string { return p.next.Name() }

func (p *Paced) Write(block []int16) error {
	select {
	case <-p.ticker.C:
	case <-p.done:
		return ErrClosed
	}
	return p.next.Write(block)
}

func (p *Paced) Close() error {
	p.once.Do(func() {
		p.ticker.Stop()
		close(p.done)
	})
	return p.next.Close()
}

// Monitor receives a copy of every block. Send must not block.
type Monitor interface {
	Send(block []int16)
}

// Tee writes to next and hands each block to a monitor. The monitor gets its
// own copy, because the engine reuses its buffers.
type Tee struct {
	next Sink
	mon  Monitor
}

func NewTee(next Sink, mon Monitor) *Tee {
	return &Tee{next: next, mon: mon}
}

func (t *Tee) Name() string { return t.next.Name() }

func (t *Tee) Write(block []int16) error {
	if err := t.next.Write(block); err != nil {
		return err
	}
	t.mon.Send(append([]int16(nil), block...))
	return nil
}

func (t *Tee) Close() error { return t.next.Close() }
