package hub

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/scorebook-backend/internal/engine"
	"github.com/DoyleJ11/scorebook-backend/internal/fanout"
	"github.com/DoyleJ11/scorebook-backend/internal/rules"
	"github.com/DoyleJ11/scorebook-backend/internal/session"
	"github.com/DoyleJ11/scorebook-backend/internal/table"
)

var ErrNotFound = errors.New("not found")
var ErrExists = errors.New("already exists")
var ErrUnknownRules = errors.New("unknown rules")
var ErrClosed = errors.New("hub closed")

const storeTimeout = 5 * time.Second

type HubMsg interface{ isHubMsg() }

type MatchReply struct {
	Session *session.Session
	Err     error
}

type GameReply struct {
	Table *table.Table
	Err   error
}

type CreateMatch struct {
	Match engine.Match
	Reply chan MatchReply
}

// EnsureMatch returns the live session, hydrating it from the store if it
// is not loaded yet.
type EnsureMatch struct {
	ID    string
	Reply chan MatchReply
}

type GetMatch struct {
	ID    string
	Reply chan *session.Session // May be nil
}

type RemoveMatch struct {
	ID string
}

type CreateGame struct {
	ID      string
	Rules   string
	Players []string
	Reply   chan GameReply
}

type EnsureGame struct {
	ID    string
	Reply chan GameReply
}

type RemoveGame struct {
	ID string
}

// ShutdownHub stops every session and table and closes Done once their
// pending writes are flushed.
type ShutdownHub struct {
	Done chan struct{}
}

func (CreateMatch) isHubMsg() {}
func (EnsureMatch) isHubMsg() {}
func (GetMatch) isHubMsg()    {}
func (RemoveMatch) isHubMsg() {}
func (CreateGame) isHubMsg()  {}
func (EnsureGame) isHubMsg()  {}
func (RemoveGame) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

type Deps struct {
	Matches session.MatchLog
	Games   table.GameLog
	Bus     fanout.Bus
	Rules   map[string]rules.ScoringConfig
	Logger  *zap.Logger
	Now     func() time.Time
}

type Hub struct {
	inbox    chan HubMsg
	sessions map[string]*session.Session
	tables   map[string]*table.Table
	deps     Deps
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewHub(parent context.Context, deps Deps) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		sessions: make(map[string]*session.Session),
		tables:   make(map[string]*table.Table),
		deps:     deps,
		log:      deps.Logger,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// RuleNames lists the scoring configs games can be created with.
func (h *Hub) RuleNames() []string {
	return slices.Sorted(maps.Keys(h.deps.Rules))
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateMatch:
				s, err := h.createMatch(msg.Match)
				msg.Reply <- MatchReply{Session: s, Err: err}

			case EnsureMatch:
				s, err := h.ensureMatch(msg.ID)
				msg.Reply <- MatchReply{Session: s, Err: err}

			case GetMatch:
				msg.Reply <- h.sessions[msg.ID]

			case RemoveMatch:
				if s := h.sessions[msg.ID]; s != nil {
					s.Inbox() <- session.Shutdown{}
					delete(h.sessions, msg.ID)
				}

			case CreateGame:
				tb, err := h.createGame(msg)
				msg.Reply <- GameReply{Table: tb, Err: err}

			case EnsureGame:
				tb, err := h.ensureGame(msg.ID)
				msg.Reply <- GameReply{Table: tb, Err: err}

			case RemoveGame:
				if tb := h.tables[msg.ID]; tb != nil {
					tb.Inbox() <- table.Shutdown{}
					delete(h.tables, msg.ID)
				}

			case ShutdownHub:
				h.shutdown()
				close(msg.Done)
				return
			}
		}
	}
}

func (h *Hub) storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(h.ctx, storeTimeout)
}

func (h *Hub) sessionDeps() session.Deps {
	return session.Deps{Log: h.deps.Matches, Bus: h.deps.Bus, Logger: h.log, Now: h.deps.Now}
}

func (h *Hub) tableDeps() table.Deps {
	return table.Deps{Log: h.deps.Games, Logger: h.log, Now: h.deps.Now}
}

func (h *Hub) createMatch(m engine.Match) (*session.Session, error) {
	if h.sessions[m.ID] != nil {
		return nil, fmt.Errorf("match %s: %w", m.ID, ErrExists)
	}
	ctx, cancel := h.storeCtx()
	defer cancel()

	existing, err := h.deps.Matches.LoadState(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("match %s: %w", m.ID, ErrExists)
	}
	if err := h.deps.Matches.SaveState(ctx, m.ID, m); err != nil {
		return nil, err
	}

	s := session.New(h.ctx, m, h.sessionDeps())
	h.sessions[m.ID] = s
	h.log.Info("match created", zap.String("match_id", m.ID), zap.String("sport", string(m.SportID)))
	return s, nil
}

func (h *Hub) ensureMatch(id string) (*session.Session, error) {
	if s := h.sessions[id]; s != nil {
		return s, nil
	}
	ctx, cancel := h.storeCtx()
	defer cancel()

	m, ok, err := session.Hydrate(ctx, h.deps.Matches, id)
	if err != nil {
		return nil, fmt.Errorf("hydrate match %s: %w", id, err)
	}
	if !ok {
		return nil, fmt.Errorf("match %s: %w", id, ErrNotFound)
	}
	s := session.New(h.ctx, m, h.sessionDeps())
	h.sessions[id] = s
	h.log.Info("match hydrated", zap.String("match_id", id), zap.Int("events", len(m.Events)))
	return s, nil
}

func (h *Hub) createGame(msg CreateGame) (*table.Table, error) {
	if h.tables[msg.ID] != nil {
		return nil, fmt.Errorf("game %s: %w", msg.ID, ErrExists)
	}
	cfg, ok := h.deps.Rules[msg.Rules]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRules, msg.Rules)
	}
	ctx, cancel := h.storeCtx()
	defer cancel()

	existing, err := h.deps.Games.LoadState(ctx, msg.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("game %s: %w", msg.ID, ErrExists)
	}

	game := table.Game{ID: msg.ID, Rules: msg.Rules, Config: cfg, Players: msg.Players}
	tb, err := table.Open(h.ctx, game, nil, nil, h.tableDeps())
	if err != nil {
		return nil, err
	}
	h.tables[msg.ID] = tb
	h.log.Info("game created", zap.String("game_id", msg.ID), zap.String("rules", msg.Rules))
	return tb, nil
}

func (h *Hub) ensureGame(id string) (*table.Table, error) {
	if tb := h.tables[id]; tb != nil {
		return tb, nil
	}
	ctx, cancel := h.storeCtx()
	defer cancel()

	rec, events, ok, err := table.Load(ctx, h.deps.Games, id)
	if err != nil {
		return nil, fmt.Errorf("load game %s: %w", id, err)
	}
	if !ok {
		return nil, fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	cfg, ok := h.deps.Rules[rec.Rules]
	if !ok {
		return nil, fmt.Errorf("game %s: %w: %q", id, ErrUnknownRules, rec.Rules)
	}

	game := table.Game{ID: id, Rules: rec.Rules, Config: cfg, Players: rec.State.PlayerIDs}
	tb, err := table.Open(h.ctx, game, events, &rec.State, h.tableDeps())
	if err != nil {
		return nil, fmt.Errorf("rebuild game %s: %w", id, err)
	}
	h.tables[id] = tb
	h.log.Info("game hydrated", zap.String("game_id", id), zap.Int("events", len(events)))
	return tb, nil
}

// shutdown stops every actor and waits for each to flush.
func (h *Hub) shutdown() {
	for _, s := range h.sessions {
		s.Inbox() <- session.Shutdown{}
	}
	for _, tb := range h.tables {
		tb.Inbox() <- table.Shutdown{}
	}
	for _, s := range h.sessions {
		<-s.Done()
	}
	for _, tb := range h.tables {
		<-tb.Done()
	}
	clear(h.sessions)
	clear(h.tables)
	h.cancel()
}
