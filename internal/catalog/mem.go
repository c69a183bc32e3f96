package catalog

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// MemCatalog is an in-memory Library. It counts handles so callers can check
// how many are open at any moment.
type MemCatalog struct {
	mu     sync.Mutex
	names  []string
	data   map[string][]byte
	open   int
	peak   int
	opened int
}

// NewMem returns an empty in-memory catalogue.
func NewMem() *MemCatalog {
	return &MemCatalog{data: make(map[string][]byte)}
}

// Add appends an asset. Re-adding an id replaces its data but keeps its position.
func (m *MemCatalog) Add(id string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[id]; !ok {
		m.names = append(m.names, id)
	}
	m.data[id] = data
}

func (m *MemCatalog) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.names)
}

func (m *MemCatalog) ID(i int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.names[i]
}

func (m *MemCatalog) Label(i int) string { return m.ID(i) }

// Open hands out a new independent reader over the asset bytes.
func (m *MemCatalog) Open(id string) (io.ReadSeekCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	m.open++
	m.opened++
	m.peak = max(m.peak, m.open)
	return &memHandle{Reader: bytes.NewReader(data), owner: m}, nil
}

// OpenHandles returns how many handles are open right now.
func (m *MemCatalog) OpenHandles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// PeakHandles returns the most handles that were ever open at once.
func (m *MemCatalog) PeakHandles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak
}

// Opened returns how many handles have been handed out in total.
func (m *MemCatalog) Opened() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}

type memHandle struct {
	*bytes.Reader
	owner  *MemCatalog
	closed bool
}

func (h *memHandle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.owner.mu.Lock()
	h.owner.open--
	h.owner.mu.Unlock()
	return nil
}

var _ Library = (*MemCatalog)(nil)
