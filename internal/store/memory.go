package store

import (
	"context"
	"slices"
	"sync"
)

// Memory is the ephemeral backend. Everything is lost when the process exits.
type Memory struct {
	mu        sync.RWMutex
	events    map[string][][]byte
	ids       map[string]map[string]bool
	snapshots map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{
		events:    make(map[string][][]byte),
		ids:       make(map[string]map[string]bool),
		snapshots: make(map[string][]byte),
	}
}

func (m *Memory) Append(_ context.Context, stream, eventID string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := m.ids[stream]
	if seen == nil {
		seen = make(map[string]bool)
		m.ids[stream] = seen
	}
	if eventID != "" {
		if seen[eventID] {
			return ErrDuplicateEvent
		}
		seen[eventID] = true
	}
	m.events[stream] = append(m.events[stream], slices.Clone(payload))
	return nil
}

func (m *Memory) Events(_ context.Context, stream string) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([][]byte, len(m.events[stream]))
	for i, p := range m.events[stream] {
		out[i] = slices.Clone(p)
	}
	return out, nil
}

func (m *Memory) PutSnapshot(_ context.Context, stream string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[stream] = slices.Clone(payload)
	return nil
}

func (m *Memory) Snapshot(_ context.Context, stream string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.snapshots[stream]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(p), nil
}

func (m *Memory) Clear(_ context.Context, stream string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.events, stream)
	delete(m.ids, stream)
	delete(m.snapshots, stream)
	return nil
}

func (m *Memory) Close() error { return nil }
