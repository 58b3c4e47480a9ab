package hub

import (
	"context"

	"github.com/DoyleJ11/scorebook-backend/internal/engine"
	"github.com/DoyleJ11/scorebook-backend/internal/session"
	"github.com/DoyleJ11/scorebook-backend/internal/table"
)

func ask[R any](ctx context.Context, h *Hub, msg HubMsg, reply chan R) (R, error) {
	var zero R
	select {
	case h.inbox <- msg:
	case <-h.done:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case r := <-reply:
		return r, nil
	case <-h.done:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (h *Hub) CreateMatch(ctx context.Context, m engine.Match) (*session.Session, error) {
	reply := make(chan MatchReply, 1)
	r, err := ask(ctx, h, CreateMatch{Match: m, Reply: reply}, reply)
	if err != nil {
		return nil, err
	}
	return r.Session, r.Err
}

// Match returns the session for id, loading it from the store when needed.
func (h *Hub) Match(ctx context.Context, id string) (*session.Session, error) {
	reply := make(chan MatchReply, 1)
	r, err := ask(ctx, h, EnsureMatch{ID: id, Reply: reply}, reply)
	if err != nil {
		return nil, err
	}
	return r.Session, r.Err
}

func (h *Hub) CreateGame(ctx context.Context, id, rulesName string, players []string) (*table.Table, error) {
	reply := make(chan GameReply, 1)
	r, err := ask(ctx, h, CreateGame{ID: id, Rules: rulesName, Players: players, Reply: reply}, reply)
	if err != nil {
		return nil, err
	}
	return r.Table, r.Err
}

// Game returns the table for id, rebuilding it from the store when needed.
func (h *Hub) Game(ctx context.Context, id string) (*table.Table, error) {
	reply := make(chan GameReply, 1)
	r, err := ask(ctx, h, EnsureGame{ID: id, Reply: reply}, reply)
	if err != nil {
		return nil, err
	}
	return r.Table, r.Err
}

// Shutdown stops the hub and waits until every actor has flushed.
func (h *Hub) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case h.inbox <- ShutdownHub{Done: done}:
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
