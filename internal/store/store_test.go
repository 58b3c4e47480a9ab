package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	ID    string `json:"id"`
	Runs  int    `json:"runs"`
	Label string `json:"label,omitempty"`
}

type testState struct {
	Score int `json:"score"`
}

func newTestLog(b Backend) *Log[testEvent, testState] {
	return NewLog[testEvent, testState](b, "match", func(e testEvent) string { return e.ID })
}

// exerciseBackend runs the shared contract against any backend.
func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()
	log := newTestLog(b)
	id := uuid.NewString()
	t.Cleanup(func() { _ = log.Clear(ctx, id) })

	state, err := log.LoadState(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, state, "no snapshot yet")

	events, err := log.LoadEvents(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, events)

	require.NoError(t, log.AppendEvent(ctx, id, testEvent{ID: "e1", Runs: 4}))
	require.NoError(t, log.AppendEvent(ctx, id, testEvent{ID: "e2", Runs: 6, Label: "six"}))
	assert.ErrorIs(t, log.AppendEvent(ctx, id, testEvent{ID: "e1", Runs: 4}), ErrDuplicateEvent)

	events, err = log.LoadEvents(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []testEvent{{ID: "e1", Runs: 4}, {ID: "e2", Runs: 6, Label: "six"}}, events)

	require.NoError(t, log.SaveState(ctx, id, testState{Score: 10}))
	require.NoError(t, log.SaveState(ctx, id, testState{Score: 11}))
	state, err = log.LoadState(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, 11, state.Score)

	require.NoError(t, log.Clear(ctx, id))
	events, err = log.LoadEvents(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, events)
	state, err = log.LoadState(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, state)

	// A cleared stream accepts the same ids again.
	require.NoError(t, log.AppendEvent(ctx, id, testEvent{ID: "e1", Runs: 1}))
}

func TestMemory_Contract(t *testing.T) {
	exerciseBackend(t, NewMemory())
}

func TestRedis_Contract(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	client, err := DialRedis(context.Background(), url)
	require.NoError(t, err)
	defer client.Close()
	exerciseBackend(t, NewRedis(client, time.Minute))
}

func TestRedis_FailedPushDoesNotClaimID(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := DialRedis(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	r := NewRedis(client, time.Minute)
	stream := "match:" + uuid.NewString()
	t.Cleanup(func() { _ = r.Clear(ctx, stream) })

	// A string under the list key makes RPUSH fail with WRONGTYPE.
	require.NoError(t, client.Set(ctx, r.key(stream, "events"), "not a list", time.Minute).Err())
	err = r.Append(ctx, stream, "e1", []byte(`{"id":"e1"}`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateEvent)

	require.NoError(t, client.Del(ctx, r.key(stream, "events")).Err())
	require.NoError(t, r.Append(ctx, stream, "e1", []byte(`{"id":"e1"}`)))
	events, err := r.Events(ctx, stream)
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.ErrorIs(t, r.Append(ctx, stream, "e1", []byte(`{"id":"e1"}`)), ErrDuplicateEvent)
}

func TestPostgres_Contract(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	pg, err := OpenPostgres(dsn)
	require.NoError(t, err)
	defer pg.Close()
	exerciseBackend(t, pg)
}

func TestLog_NamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	b := NewMemory()
	matches := NewLog[testEvent, testState](b, "match", func(e testEvent) string { return e.ID })
	games := NewLog[testEvent, testState](b, "game", func(e testEvent) string { return e.ID })

	require.NoError(t, matches.AppendEvent(ctx, "x", testEvent{ID: "e1"}))
	require.NoError(t, games.AppendEvent(ctx, "x", testEvent{ID: "e1"}), "same id in another namespace is not a duplicate")

	got, err := games.LoadEvents(ctx, "x")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	payload := []byte(`{"id":"a"}`)
	require.NoError(t, m.Append(ctx, "s", "a", payload))
	payload[2] = 'X'

	got, err := m.Events(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"a"}`, string(got[0]))

	got[0][2] = 'Y'
	again, err := m.Events(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"a"}`, string(again[0]))
}

func TestOpen(t *testing.T) {
	b, err := Open(Options{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, b)

	_, err = Open(Options{Kind: "redis"})
	assert.Error(t, err)

	_, err = Open(Options{Kind: "etcd"})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
