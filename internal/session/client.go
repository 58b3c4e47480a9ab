package session

import (
	"context"

	"github.com/DoyleJ11/scorebook-backend/internal/engine"
)

// request sends one message and waits for its reply.
func (s *Session) request(ctx context.Context, build func(reply chan Result) Msg) (View, error) {
	reply := make(chan Result, 1)
	select {
	case s.inbox <- build(reply):
	case <-s.done:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
	select {
	case res := <-reply:
		return res.View, res.Err
	case <-s.done:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

func (s *Session) SubmitEvent(ctx context.Context, evt engine.ScoreEvent) (View, error) {
	return s.request(ctx, func(reply chan Result) Msg { return Submit{Event: evt, Reply: reply} })
}

func (s *Session) StartMatch(ctx context.Context) (View, error) {
	return s.request(ctx, func(reply chan Result) Msg { return Start{Reply: reply} })
}

func (s *Session) EndMatch(ctx context.Context) (View, error) {
	return s.request(ctx, func(reply chan Result) Msg { return End{Reply: reply} })
}

func (s *Session) UndoLast(ctx context.Context) (View, error) {
	return s.request(ctx, func(reply chan Result) Msg { return Undo{Reply: reply} })
}

func (s *Session) Recompute(ctx context.Context) (View, error) {
	return s.request(ctx, func(reply chan Result) Msg { return Recalculate{Reply: reply} })
}

func (s *Session) Snapshot(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	select {
	case s.inbox <- GetState{Reply: reply}:
	case <-s.done:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-s.done:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}
