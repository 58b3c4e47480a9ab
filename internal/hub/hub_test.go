package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/scorebook-backend/internal/engine"
	"github.com/DoyleJ11/scorebook-backend/internal/fanout"
	"github.com/DoyleJ11/scorebook-backend/internal/rules"
	"github.com/DoyleJ11/scorebook-backend/internal/session"
	"github.com/DoyleJ11/scorebook-backend/internal/store"
	"github.com/DoyleJ11/scorebook-backend/internal/table"
)

func newDeps(backend store.Backend) Deps {
	return Deps{
		Matches: store.NewLog[engine.ScoreEvent, engine.Match](backend, "match", func(e engine.ScoreEvent) string { return e.ID }),
		Games:   store.NewLog[rules.Event, table.Record](backend, "game", func(e rules.Event) string { return e.ID }),
		Bus:     fanout.NewLocal(),
		Rules:   rules.Presets(),
		Logger:  zap.NewNop(),
	}
}

func newMatch(t *testing.T, id string) engine.Match {
	t.Helper()
	m, err := engine.NewMatch(id, engine.SportBasketball, engine.Participant{ID: "h"}, engine.Participant{ID: "a"}, "")
	require.NoError(t, err)
	return m
}

func shutdown(t *testing.T, h *Hub) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, h.Shutdown(ctx))
}

func TestHub_Create_Get_SamePointer(t *testing.T) {
	ctx := context.Background()
	h := NewHub(ctx, newDeps(store.NewMemory()))
	defer shutdown(t, h)

	s1, err := h.CreateMatch(ctx, newMatch(t, "m1"))
	require.NoError(t, err)

	reply := make(chan *session.Session, 1)
	h.Inbox() <- GetMatch{ID: "m1", Reply: reply}
	s2 := <-reply

	s3, err := h.Match(ctx, "m1")
	require.NoError(t, err)

	require.NotNil(t, s1)
	assert.Same(t, s1, s2)
	assert.Same(t, s1, s3)
}

func TestHub_CreateTwiceFails(t *testing.T) {
	ctx := context.Background()
	h := NewHub(ctx, newDeps(store.NewMemory()))
	defer shutdown(t, h)

	_, err := h.CreateMatch(ctx, newMatch(t, "m1"))
	require.NoError(t, err)
	_, err = h.CreateMatch(ctx, newMatch(t, "m1"))
	assert.ErrorIs(t, err, ErrExists)
}

func TestHub_UnknownMatch(t *testing.T) {
	ctx := context.Background()
	h := NewHub(ctx, newDeps(store.NewMemory()))
	defer shutdown(t, h)

	_, err := h.Match(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	reply := make(chan *session.Session, 1)
	h.Inbox() <- GetMatch{ID: "nope", Reply: reply}
	assert.Nil(t, <-reply)
}

func TestHub_HydratesMatchAfterRestart(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemory()

	h1 := NewHub(ctx, newDeps(backend))
	s, err := h1.CreateMatch(ctx, newMatch(t, "m1"))
	require.NoError(t, err)
	_, err = s.StartMatch(ctx)
	require.NoError(t, err)
	for i, pts := range []int{2, 3, 2} {
		_, err := s.SubmitEvent(ctx, engine.ScoreEvent{
			ID:        string(rune('a' + i)),
			Timestamp: time.Date(2026, 5, 1, 19, 0, i, 0, time.UTC),
			Type:      engine.EvtBasket,
			TeamID:    "a",
			PlayerID:  "p1",
			Payload:   engine.Basket{Points: pts},
		})
		require.NoError(t, err)
	}
	shutdown(t, h1)

	h2 := NewHub(ctx, newDeps(backend))
	defer shutdown(t, h2)
	s2, err := h2.Match(ctx, "m1")
	require.NoError(t, err)
	v, err := s2.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, v.Match.Away.Score)
	assert.Equal(t, engine.StatusLive, v.Match.Status)
	assert.Len(t, v.Match.Events, 3)
	assert.Equal(t, uint64(0), v.Version, "versions restart with the process")
}

func TestHub_RemoveMatchStopsSession(t *testing.T) {
	ctx := context.Background()
	h := NewHub(ctx, newDeps(store.NewMemory()))
	defer shutdown(t, h)

	s, err := h.CreateMatch(ctx, newMatch(t, "m1"))
	require.NoError(t, err)
	h.Inbox() <- RemoveMatch{ID: "m1"}

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session still running")
	}

	// Still in the store, so the next lookup hydrates a fresh session.
	s2, err := h.Match(ctx, "m1")
	require.NoError(t, err)
	assert.NotSame(t, s, s2)
}

func TestHub_Games(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemory()
	h1 := NewHub(ctx, newDeps(backend))

	_, err := h1.CreateGame(ctx, "g1", "bridge", []string{"ann"})
	assert.ErrorIs(t, err, ErrUnknownRules)

	tb, err := h1.CreateGame(ctx, "g1", "tally", []string{"ann", "bob"})
	require.NoError(t, err)
	v := 6
	res, err := tb.SubmitEvent(ctx, rules.Event{Type: rules.EvtScore, PlayerID: "bob", Value: &v})
	require.NoError(t, err)
	require.True(t, res.Accepted)

	_, err = h1.CreateGame(ctx, "g1", "tally", []string{"ann", "bob"})
	assert.ErrorIs(t, err, ErrExists)
	shutdown(t, h1)

	h2 := NewHub(ctx, newDeps(backend))
	defer shutdown(t, h2)
	tb2, err := h2.Game(ctx, "g1")
	require.NoError(t, err)
	view, err := tb2.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tally", view.Rules)
	bob, _ := view.State.Current().Score("bob")
	assert.Equal(t, 6, bob.Points)

	_, err = h2.Game(ctx, "g2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHub_RuleNames(t *testing.T) {
	h := NewHub(context.Background(), newDeps(store.NewMemory()))
	defer shutdown(t, h)
	assert.Equal(t, []string{"tally"}, h.RuleNames())
}
