package rules

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var ErrGameIDRequired = errors.New("game id is required")
var ErrNoPlayers = errors.New("at least one player is required")
var ErrDuplicatePlayer = errors.New("duplicate player id")
var ErrGameIDMismatch = errors.New("game id mismatch")
var ErrRejectedOnRebuild = errors.New("persisted event rejected on rebuild")

// Journal receives every accepted event before it is scored.
type Journal interface {
	Append(gameID string, evt Event)
}

type Listener func(state MatchState, evt Event)

type Option func(*Engine)

func WithJournal(j Journal) Option {
	return func(e *Engine) { e.journal = j }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

type subscription struct {
	id int
	fn Listener
}

// Engine runs one game. It is not safe for concurrent use: a single writer
// submits events serially.
type Engine struct {
	cfg       ScoringConfig
	state     MatchState
	journal   Journal
	now       func() time.Time
	listeners []subscription
	nextSubID int

	// seen holds the ids of every event in the state.
	seen map[string]bool
}

func New(cfg ScoringConfig, gameID string, players []string, opts ...Option) (*Engine, error) {
	if gameID == "" {
		return nil, ErrGameIDRequired
	}
	if len(players) == 0 {
		return nil, ErrNoPlayers
	}
	seen := make(map[string]bool, len(players))
	for _, p := range players {
		if p == "" || seen[p] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicatePlayer, p)
		}
		seen[p] = true
	}

	e := &Engine{
		cfg:  cfg,
		now:  func() time.Time { return time.Now().UTC() },
		seen: map[string]bool{},
	}
	for _, opt := range opts {
		opt(e)
	}

	ids := slices.Clone(players)
	e.state = MatchState{
		GameID:       gameID,
		PlayerIDs:    ids,
		Rounds:       []RoundState{newRound(1, ids, nil)},
		CurrentRound: 1,
		StartedAt:    e.now(),
	}
	return e, nil
}

// Rebuild replays a persisted log through a fresh engine. The journal, if
// any, is attached only after the replay.
func Rebuild(cfg ScoringConfig, gameID string, players []string, events []Event, opts ...Option) (*Engine, error) {
	e, err := New(cfg, gameID, players, opts...)
	if err != nil {
		return nil, err
	}
	if len(events) > 0 && !events[0].Timestamp.IsZero() {
		e.state.StartedAt = events[0].Timestamp
	}

	journal := e.journal
	e.journal = nil
	for _, evt := range events {
		if res := e.SubmitEvent(evt); !res.Accepted {
			return nil, fmt.Errorf("%w: %s: %s", ErrRejectedOnRebuild, evt.ID, res.Reason)
		}
	}
	e.journal = journal
	return e, nil
}

// State returns a copy of the current game state.
func (e *Engine) State() MatchState {
	return e.state.clone()
}

func (e *Engine) Config() ScoringConfig {
	return e.cfg
}

// Subscribe registers a listener and returns its unsubscribe handle.
func (e *Engine) Subscribe(fn Listener) func() {
	e.nextSubID++
	id := e.nextSubID
	e.listeners = append(e.listeners, subscription{id: id, fn: fn})
	return func() {
		e.listeners = slices.DeleteFunc(e.listeners, func(s subscription) bool { return s.id == id })
	}
}

// Hydrate replaces the state with a loaded snapshot and rebroadcasts it.
func (e *Engine) Hydrate(state MatchState) error {
	if state.GameID != e.state.GameID {
		return fmt.Errorf("%w: have %q, got %q", ErrGameIDMismatch, e.state.GameID, state.GameID)
	}
	if state.CurrentRound < 1 || state.CurrentRound > len(state.Rounds) {
		return fmt.Errorf("snapshot for %s has no current round", state.GameID)
	}
	e.state = state.clone()
	e.seen = map[string]bool{}
	for _, r := range e.state.Rounds {
		for _, evt := range r.Events {
			if evt.ID != "" {
				e.seen[evt.ID] = true
			}
		}
	}
	e.notify(Event{Type: EvtHydrate, Timestamp: e.now()})
	return nil
}

// SubmitEvent validates, records and scores one event. Rejected events leave
// the state untouched and are not recorded. An id already in the state is
// rejected so a retried event is never scored twice.
func (e *Engine) SubmitEvent(evt Event) SubmitResult {
	if e.state.EndedAt != nil {
		return reject("match already ended")
	}
	if evt.ID != "" && e.seen[evt.ID] {
		return reject("event already applied")
	}
	if reason, ok := validateStructure(e.state, evt); !ok {
		return reject(reason)
	}
	if v := e.cfg.PreEventValidate; v != nil {
		if reason, ok := v.Validate(e.State(), evt); !ok {
			return reject(reason)
		}
	}

	if evt.Timestamp.IsZero() {
		evt.Timestamp = e.now()
	}
	round := e.current()
	round.Events = append(round.Events, evt)
	if evt.ID != "" {
		e.seen[evt.ID] = true
	}
	if e.journal != nil {
		e.journal.Append(e.state.GameID, evt)
	}

	e.score(evt)

	switch evt.Type {
	case EvtRoundEnd:
		e.endRound(evt)
	case EvtMatchEnd:
		e.endMatch(evt)
	}

	e.notify(evt)
	return SubmitResult{Accepted: true}
}

func reject(reason string) SubmitResult {
	return SubmitResult{Accepted: false, Reason: reason}
}

func (e *Engine) current() *RoundState {
	return &e.state.Rounds[e.state.CurrentRound-1]
}

func (e *Engine) score(evt Event) {
	round := e.current()
	ctx := RuleContext{State: e.state, Round: *round, Event: evt}

	for _, r := range e.cfg.Scoring {
		if r.On != evt.Type || r.Formula == nil {
			continue
		}
		d := r.Formula.Delta(ctx)
		for _, id := range e.targets(r.AppliesTo, r.Players, evt) {
			ps := round.score(id)
			ps.Points += d
			e.floor(ps)
		}
	}

	for _, r := range e.cfg.Bonuses {
		if !matches(r, evt, ctx) {
			continue
		}
		d := r.Formula.Delta(ctx)
		for _, id := range e.targets(r.AppliesTo, r.Players, evt) {
			ps := round.score(id)
			ps.Points += d
			ps.Bonuses += d
			e.floor(ps)
		}
	}

	for _, r := range e.cfg.Penalties {
		if !matches(BonusRule(r), evt, ctx) {
			continue
		}
		d := r.Formula.Delta(ctx)
		for _, id := range e.targets(r.AppliesTo, r.Players, evt) {
			ps := round.score(id)
			ps.Points -= d
			ps.Penalties += d
			e.floor(ps)
		}
	}
}

func matches(r BonusRule, evt Event, ctx RuleContext) bool {
	if r.Formula == nil {
		return false
	}
	if r.On != "" && r.On != evt.Type {
		return false
	}
	return r.When == nil || r.When.Holds(ctx)
}

func (e *Engine) floor(ps *PlayerScore) {
	if !e.cfg.AllowNegative && ps.Points < 0 {
		ps.Points = 0
	}
}

// targets resolves the players a rule applies to, in game order.
func (e *Engine) targets(t Target, players []string, evt Event) []string {
	if len(players) > 0 {
		out := make([]string, 0, len(players))
		for _, id := range e.state.PlayerIDs {
			if slices.Contains(players, id) {
				out = append(out, id)
			}
		}
		return out
	}

	switch t {
	case TargetAll:
		return e.state.PlayerIDs
	case TargetOthers:
		out := make([]string, 0, len(e.state.PlayerIDs))
		for _, id := range e.state.PlayerIDs {
			if id != evt.PlayerID {
				out = append(out, id)
			}
		}
		return out
	default:
		if evt.PlayerID == "" {
			return nil
		}
		return []string{evt.PlayerID}
	}
}

func (e *Engine) endRound(evt Event) {
	round := e.current()
	if adj := e.cfg.RoundEndAdjust; adj != nil {
		adj.AdjustRoundEnd(round, e.state)
	}

	// First player with the highest points wins; later players only take
	// the round with strictly more.
	winner := 0
	for i := range round.Scores {
		if round.Scores[i].Points > round.Scores[winner].Points {
			winner = i
		}
	}
	round.Scores[winner].RoundsWon++
	ended := evt.Timestamp
	round.EndedAt = &ended

	won := make(map[string]int, len(round.Scores))
	for _, ps := range round.Scores {
		won[ps.PlayerID] = ps.RoundsWon
	}
	next := newRound(round.RoundNumber+1, e.state.PlayerIDs, func(id string) int { return won[id] })
	e.state.Rounds = append(e.state.Rounds, next)
	e.state.CurrentRound++
}

func (e *Engine) endMatch(evt Event) {
	eval := e.cfg.WinEvaluator
	if eval == nil {
		eval = HighestTotal()
	}
	res := eval.Evaluate(e.State())
	if !res.Done {
		return
	}
	ended := evt.Timestamp
	e.state.EndedAt = &ended
	e.state.WinnerIDs = slices.Clone(res.Winners)
}

func (e *Engine) notify(evt Event) {
	if len(e.listeners) == 0 {
		return
	}
	snapshot := e.State()
	for _, l := range slices.Clone(e.listeners) {
		l.fn(snapshot, evt)
	}
}
