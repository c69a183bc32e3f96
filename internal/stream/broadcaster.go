package stream

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// listenerBuffer holds about three seconds of 256-frame blocks at 44.1 kHz.
const listenerBuffer = 512

// Broadcaster fans out monitor blocks from the engine to N listeners.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
}

// Listener receives copies of the interleaved stereo output.
type Listener struct {
	ID      uuid.UUID
	Kind    string
	C       chan []int16
	done    chan struct{}
	dropped atomic.Int64
}

// Done is closed when the listener is unsubscribed.
func (l *Listener) Done() <-chan struct{} { return l.done }

// Dropped returns how many blocks were skipped because the listener was slow.
func (l *Listener) Dropped() int64 { return l.dropped.Load() }

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		listeners: make(map[*Listener]struct{}),
	}
}

// Subscribe registers a new listener of the given kind ("http", "webrtc").
func (b *Broadcaster) Subscribe(kind string) *Listener {
	l := &Listener{
		ID:   uuid.New(),
		Kind: kind,
		C:    make(chan []int16, listenerBuffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe removes a listener and signals it to stop. Calling it twice is
// harmless.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	_, ok := b.listeners[l]
	delete(b.listeners, l)
	b.mu.Unlock()
	if ok {
		close(l.done)
	}
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Send hands block to every listener. Slow listeners get the block dropped
// rather than holding up the audio goroutine. Listeners share block and must
// not modify it.
func (b *Broadcaster) Send(block []int16) {
	b.mu.RLock()
	for l := range b.listeners {
		select {
		case l.C <- block:
		default:
			l.dropped.Add(1)
		}
	}
	b.mu.RUnlock()
}
