package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/scorebook-backend/internal/engine"
	"github.com/DoyleJ11/scorebook-backend/internal/fanout"
	"github.com/DoyleJ11/scorebook-backend/internal/hub"
	"github.com/DoyleJ11/scorebook-backend/internal/rules"
	"github.com/DoyleJ11/scorebook-backend/internal/session"
	"github.com/DoyleJ11/scorebook-backend/internal/store"
	"github.com/DoyleJ11/scorebook-backend/internal/table"
)

func newServer(t *testing.T) http.Handler {
	t.Helper()
	backend := store.NewMemory()
	bus := fanout.NewLocal()
	h := hub.NewHub(context.Background(), hub.Deps{
		Matches: store.NewLog[engine.ScoreEvent, engine.Match](backend, "match", func(e engine.ScoreEvent) string { return e.ID }),
		Games:   store.NewLog[rules.Event, table.Record](backend, "game", func(e rules.Event) string { return e.ID }),
		Bus:     bus,
		Rules:   rules.Presets(),
		Logger:  zap.NewNop(),
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = h.Shutdown(ctx)
	})
	return SetupRoutes(h, bus, zap.NewNop(), Options{CORSOrigins: []string{"http://localhost:3000"}})
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) session.View {
	t.Helper()
	var v session.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const footballMatch = `{"id":"m1","sportId":"football","home":{"id":"h","name":"Home"},"away":{"id":"a","name":"Away"}}`

func TestHealthz(t *testing.T) {
	rec := do(t, newServer(t), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMatchLifecycle(t *testing.T) {
	srv := newServer(t)

	rec := do(t, srv, http.MethodPost, "/matches", footballMatch)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, engine.StatusDraft, decodeView(t, rec).Match.Status)

	rec = do(t, srv, http.MethodPost, "/matches", footballMatch)
	assert.Equal(t, http.StatusConflict, rec.Code)

	goal := `{"id":"g1","timestamp":"2026-05-01T14:05:00Z","type":"goal","teamId":"h","payload":{"scorerId":"p9"}}`
	rec = do(t, srv, http.MethodPost, "/matches/m1/events", goal)
	assert.Equal(t, http.StatusConflict, rec.Code, "not live yet")

	rec = do(t, srv, http.MethodPost, "/matches/m1/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, engine.StatusLive, decodeView(t, rec).Match.Status)

	rec = do(t, srv, http.MethodPost, "/matches/m1/events", goal)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	v := decodeView(t, rec)
	assert.Equal(t, 1, v.Match.Home.Score)
	assert.Equal(t, 1, v.Match.Home.Players["p9"].Goals)

	rec = do(t, srv, http.MethodPost, "/matches/m1/events", goal)
	assert.Equal(t, http.StatusConflict, rec.Code, "duplicate id")

	second := `{"id":"g2","timestamp":"2026-05-01T14:10:00Z","type":"goal","teamId":"a","payload":{"scorerId":"p7"}}`
	rec = do(t, srv, http.MethodPost, "/matches/m1/events", second)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodPost, "/matches/m1/undo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decodeView(t, rec).Match.Away.Score)

	rec = do(t, srv, http.MethodPost, "/matches/m1/recalculate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeView(t, rec).Match.Home.Score)

	rec = do(t, srv, http.MethodPost, "/matches/m1/end", "")
	require.Equal(t, http.StatusOK, rec.Code)
	v = decodeView(t, rec)
	assert.Equal(t, engine.StatusCompleted, v.Match.Status)
	assert.Equal(t, "h", v.Match.WinnerID)

	rec = do(t, srv, http.MethodGet, "/matches/m1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, engine.StatusCompleted, decodeView(t, rec).Match.Status)
}

func TestMatchErrors(t *testing.T) {
	srv := newServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown match", http.MethodGet, "/matches/nope", "", http.StatusNotFound},
		{"bad json", http.MethodPost, "/matches", "{", http.StatusBadRequest},
		{"unknown sport", http.MethodPost, "/matches", `{"sportId":"curling","home":{"id":"h"},"away":{"id":"a"}}`, http.StatusUnprocessableEntity},
		{"same sides", http.MethodPost, "/matches", `{"sportId":"cricket","home":{"id":"h"},"away":{"id":"h"}}`, http.StatusUnprocessableEntity},
		{"unknown event type", http.MethodPost, "/matches/nope/events", `{"id":"x","type":"own_goal"}`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, srv, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestCreateMatch_AssignsID(t *testing.T) {
	srv := newServer(t)
	rec := do(t, srv, http.MethodPost, "/matches", `{"sportId":"basketball","home":{"id":"h"},"away":{"id":"a"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, decodeView(t, rec).Match.ID)
}

func TestGames(t *testing.T) {
	srv := newServer(t)

	rec := do(t, srv, http.MethodGet, "/rules", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["tally"]`, rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/games", `{"id":"g1","rules":"bridge","players":["ann"]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, srv, http.MethodPost, "/games", `{"id":"g1","rules":"tally","players":["ann","ann"]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, srv, http.MethodPost, "/games", `{"id":"g1","rules":"tally","players":["ann","bob"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/games/g1/events", `{"type":"score","playerId":"bob","value":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res table.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Accepted)
	bob, _ := res.View.State.Current().Score("bob")
	assert.Equal(t, 3, bob.Points)

	rec = do(t, srv, http.MethodPost, "/games/g1/events", `{"type":"score","playerId":"zed","value":3}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.Accepted)
	assert.Equal(t, "player zed is not in this game", res.Reason)

	rec = do(t, srv, http.MethodGet, "/games/g1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var v table.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, "tally", v.Rules)
	assert.Equal(t, uint64(1), v.Version)

	rec = do(t, srv, http.MethodGet, "/games/none", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv := newServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/matches", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestOriginHosts(t *testing.T) {
	got := originHosts([]string{"http://localhost:3000", "https://score.example.com", "*.example.org"})
	assert.Equal(t, []string{"localhost:3000", "score.example.com", "*.example.org"}, got)
}
