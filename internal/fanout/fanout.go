package fanout

import (
	"context"
	"sync"

	"github.com/DoyleJ11/scorebook-backend/internal/engine"
	"github.com/DoyleJ11/scorebook-backend/internal/store"
)

// Update is one published change to a match.
type Update struct {
	MatchID    string            `json:"matchId"`
	Kind       engine.UpdateKind `json:"kind"`
	Version    uint64            `json:"version"`
	Match      engine.Match      `json:"match"`
	SyncStatus store.SyncStatus  `json:"syncStatus"`
}

type Handler func(Update)

// Bus delivers match updates to subscribers. Ordering across subscribers is
// not guaranteed. Handlers run on the bus's goroutine and must not block.
type Bus interface {
	Publish(ctx context.Context, u Update) error
	SubscribeToMatch(ctx context.Context, matchID string, fn Handler) (unsubscribe func(), err error)
	Close() error
}

// Local is an in-process Bus.
type Local struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]Handler
}

func NewLocal() *Local {
	return &Local{subs: make(map[string]map[int]Handler)}
}

func (l *Local) Publish(_ context.Context, u Update) error {
	l.mu.RLock()
	handlers := make([]Handler, 0, len(l.subs[u.MatchID]))
	for _, fn := range l.subs[u.MatchID] {
		handlers = append(handlers, fn)
	}
	l.mu.RUnlock()

	for _, fn := range handlers {
		fn(u)
	}
	return nil
}

func (l *Local) SubscribeToMatch(_ context.Context, matchID string, fn Handler) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	id := l.nextID
	if l.subs[matchID] == nil {
		l.subs[matchID] = make(map[int]Handler)
	}
	l.subs[matchID][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.subs[matchID], id)
			if len(l.subs[matchID]) == 0 {
				delete(l.subs, matchID)
			}
		})
	}, nil
}

// Subscribers reports how many handlers are registered for matchID.
func (l *Local) Subscribers(matchID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.subs[matchID])
}

func (l *Local) Close() error { return nil }
