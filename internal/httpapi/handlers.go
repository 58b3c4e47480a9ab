package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/scorebook-backend/internal/engine"
	"github.com/DoyleJ11/scorebook-backend/internal/hub"
	"github.com/DoyleJ11/scorebook-backend/internal/rules"
	"github.com/DoyleJ11/scorebook-backend/internal/session"
)

type api struct {
	hub *hub.Hub
	log *zap.Logger
}

type createMatchRequest struct {
	ID                 string             `json:"id"`
	SportID            engine.Sport       `json:"sportId"`
	Home               engine.Participant `json:"home"`
	Away               engine.Participant `json:"away"`
	FirstBattingTeamID string             `json:"firstBattingTeamId"`
}

type createGameRequest struct {
	ID      string   `json:"id"`
	Rules   string   `json:"rules"`
	Players []string `json:"players"`
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: msg})
}

// fail maps domain errors onto status codes.
func (a *api) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hub.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, hub.ErrExists),
		errors.Is(err, session.ErrNotLive),
		errors.Is(err, session.ErrDuplicateEvent),
		errors.Is(err, engine.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrInvalidEvent),
		errors.Is(err, engine.ErrUnknownEventType),
		errors.Is(err, engine.ErrUnknownSport),
		errors.Is(err, hub.ErrUnknownRules),
		errors.Is(err, rules.ErrNoPlayers),
		errors.Is(err, rules.ErrDuplicatePlayer):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		a.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return false
	}
	return true
}

func (a *api) ListRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.hub.RuleNames())
}

func (a *api) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	m, err := engine.NewMatch(req.ID, req.SportID, req.Home, req.Away, req.FirstBattingTeamID)
	if err != nil {
		if errors.Is(err, engine.ErrUnknownSport) {
			a.fail(w, err)
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s, err := a.hub.CreateMatch(r.Context(), m)
	if err != nil {
		a.fail(w, err)
		return
	}
	v, err := s.Snapshot(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// withSession resolves {id} and runs fn against the match's session.
func (a *api) withSession(fn func(r *http.Request, s *session.Session) (session.View, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := a.hub.Match(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			a.fail(w, err)
			return
		}
		v, err := fn(r, s)
		if err != nil {
			a.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func (a *api) GetMatch(w http.ResponseWriter, r *http.Request) {
	a.withSession(func(r *http.Request, s *session.Session) (session.View, error) {
		return s.Snapshot(r.Context())
	})(w, r)
}

func (a *api) StartMatch(w http.ResponseWriter, r *http.Request) {
	a.withSession(func(r *http.Request, s *session.Session) (session.View, error) {
		return s.StartMatch(r.Context())
	})(w, r)
}

func (a *api) EndMatch(w http.ResponseWriter, r *http.Request) {
	a.withSession(func(r *http.Request, s *session.Session) (session.View, error) {
		return s.EndMatch(r.Context())
	})(w, r)
}

func (a *api) UndoMatch(w http.ResponseWriter, r *http.Request) {
	a.withSession(func(r *http.Request, s *session.Session) (session.View, error) {
		return s.UndoLast(r.Context())
	})(w, r)
}

func (a *api) RecalculateMatch(w http.ResponseWriter, r *http.Request) {
	a.withSession(func(r *http.Request, s *session.Session) (session.View, error) {
		return s.Recompute(r.Context())
	})(w, r)
}

func (a *api) SubmitMatchEvent(w http.ResponseWriter, r *http.Request) {
	var evt engine.ScoreEvent
	if !decode(w, r, &evt) {
		return
	}
	a.withSession(func(r *http.Request, s *session.Session) (session.View, error) {
		return s.SubmitEvent(r.Context(), evt)
	})(w, r)
}

func (a *api) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	tb, err := a.hub.CreateGame(r.Context(), req.ID, req.Rules, req.Players)
	if err != nil {
		a.fail(w, err)
		return
	}
	v, err := tb.State(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (a *api) GetGame(w http.ResponseWriter, r *http.Request) {
	tb, err := a.hub.Game(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	v, err := tb.State(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// SubmitGameEvent answers 200 when accepted and 422 with the reason when not.
func (a *api) SubmitGameEvent(w http.ResponseWriter, r *http.Request) {
	var evt rules.Event
	if !decode(w, r, &evt) {
		return
	}
	tb, err := a.hub.Game(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	res, err := tb.SubmitEvent(r.Context(), evt)
	if err != nil {
		a.fail(w, err)
		return
	}
	status := http.StatusOK
	if !res.Accepted {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}
