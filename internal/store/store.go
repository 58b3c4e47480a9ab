package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")
var ErrDuplicateEvent = errors.New("duplicate event")
var ErrUnknownBackend = errors.New("unknown store backend")

// Backend stores opaque event payloads per stream, in append order, plus one
// snapshot per stream.
type Backend interface {
	Append(ctx context.Context, stream, eventID string, payload []byte) error
	Events(ctx context.Context, stream string) ([][]byte, error)
	PutSnapshot(ctx context.Context, stream string, payload []byte) error
	// Snapshot returns ErrNotFound when the stream has none.
	Snapshot(ctx context.Context, stream string) ([]byte, error)
	Clear(ctx context.Context, stream string) error
	Close() error
}

// EventLog is the durable log contract the scoring engines rely on.
type EventLog[E any, S any] interface {
	AppendEvent(ctx context.Context, id string, evt E) error
	LoadEvents(ctx context.Context, id string) ([]E, error)
	SaveState(ctx context.Context, id string, state S) error
	// LoadState returns nil when nothing was saved.
	LoadState(ctx context.Context, id string) (*S, error)
	Clear(ctx context.Context, id string) error
}

// Log is a JSON-encoding EventLog over a Backend. Streams are namespaced so
// matches and games can share one backend.
type Log[E any, S any] struct {
	backend   Backend
	namespace string
	idOf      func(E) string
}

func NewLog[E any, S any](b Backend, namespace string, idOf func(E) string) *Log[E, S] {
	return &Log[E, S]{backend: b, namespace: namespace, idOf: idOf}
}

func (l *Log[E, S]) stream(id string) string {
	return l.namespace + ":" + id
}

func (l *Log[E, S]) AppendEvent(ctx context.Context, id string, evt E) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := l.backend.Append(ctx, l.stream(id), l.idOf(evt), payload); err != nil {
		return fmt.Errorf("append %s: %w", l.stream(id), err)
	}
	return nil
}

func (l *Log[E, S]) LoadEvents(ctx context.Context, id string) ([]E, error) {
	raw, err := l.backend.Events(ctx, l.stream(id))
	if err != nil {
		return nil, fmt.Errorf("load events %s: %w", l.stream(id), err)
	}
	out := make([]E, 0, len(raw))
	for i, payload := range raw {
		var evt E
		if err := json.Unmarshal(payload, &evt); err != nil {
			return nil, fmt.Errorf("decode event %d of %s: %w", i, l.stream(id), err)
		}
		out = append(out, evt)
	}
	return out, nil
}

func (l *Log[E, S]) SaveState(ctx context.Context, id string, state S) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := l.backend.PutSnapshot(ctx, l.stream(id), payload); err != nil {
		return fmt.Errorf("save state %s: %w", l.stream(id), err)
	}
	return nil
}

func (l *Log[E, S]) LoadState(ctx context.Context, id string) (*S, error) {
	payload, err := l.backend.Snapshot(ctx, l.stream(id))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state %s: %w", l.stream(id), err)
	}
	var s S
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", l.stream(id), err)
	}
	return &s, nil
}

func (l *Log[E, S]) Clear(ctx context.Context, id string) error {
	return l.backend.Clear(ctx, l.stream(id))
}
