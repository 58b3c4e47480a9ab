package table

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/scorebook-backend/internal/rules"
	"github.com/DoyleJ11/scorebook-backend/internal/store"
)

var ErrClosed = errors.New("table closed")

// Record is what gets stored as a game's snapshot. Rules names the scoring
// config so the game can be rebuilt after a restart.
type Record struct {
	Rules string           `json:"rules"`
	State rules.MatchState `json:"state"`
}

type GameLog = store.EventLog[rules.Event, Record]

// Game describes a table to open.
type Game struct {
	ID      string
	Rules   string
	Config  rules.ScoringConfig
	Players []string
}

type Msg interface{ isTableMsg() }

type Submit struct {
	Event rules.Event
	Reply chan Result
}

type Join struct {
	ClientID string
	Outbox   chan Snapshot // where this client wants to receive snapshots
}

type Leave struct{ ClientID string }

type GetState struct{ Reply chan View }

type Shutdown struct{}

type syncChanged struct{ Status store.SyncStatus }

func (Submit) isTableMsg()      {}
func (Join) isTableMsg()        {}
func (Leave) isTableMsg()       {}
func (GetState) isTableMsg()    {}
func (Shutdown) isTableMsg()    {}
func (syncChanged) isTableMsg() {}

type Snapshot struct {
	Version    uint64           `json:"version"`
	SyncStatus store.SyncStatus `json:"syncStatus"`
	State      rules.MatchState `json:"state"`
}

type View struct {
	Version    uint64           `json:"version"`
	NumClients int              `json:"numClients"`
	SyncStatus store.SyncStatus `json:"syncStatus"`
	Rules      string           `json:"rules"`
	State      rules.MatchState `json:"state"`
}

type Result struct {
	rules.SubmitResult
	View View `json:"view"`
}

type Deps struct {
	Log    GameLog
	Logger *zap.Logger
	Now    func() time.Time
}

// Table is the single writer for one rule-engine game.
type Table struct {
	id      string
	inbox   chan Msg
	engine  *rules.Engine
	rules   string
	version uint64
	clients map[string]chan Snapshot

	log    GameLog
	writer *store.Writer
	logger *zap.Logger
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Open starts a table. events, when given, are replayed to rebuild the game;
// snapshot, when given and no events are, is loaded as is.
func Open(parent context.Context, game Game, events []rules.Event, snapshot *rules.MatchState, deps Deps) (*Table, error) {
	ctx, cancel := context.WithCancel(parent)
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	t := &Table{
		id:      game.ID,
		inbox:   make(chan Msg, 64),
		rules:   game.Rules,
		clients: make(map[string]chan Snapshot),
		log:     deps.Log,
		logger:  logger.With(zap.String("game_id", game.ID), zap.String("rules", game.Rules)),
		now:     now,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	t.writer = store.NewWriter(ctx, t.logger, func(status store.SyncStatus) {
		select {
		case t.inbox <- syncChanged{Status: status}:
		default:
		}
	})

	eng, err := rules.Rebuild(game.Config, game.ID, game.Players, events,
		rules.WithJournal(t),
		rules.WithClock(now))
	if err != nil {
		t.writer.Close()
		cancel()
		return nil, err
	}
	t.engine = eng
	eng.Subscribe(t.changed)
	if len(events) == 0 && snapshot != nil {
		if err := eng.Hydrate(*snapshot); err != nil {
			t.writer.Close()
			cancel()
			return nil, err
		}
	} else {
		t.persist(eng.State())
	}

	go t.loop()
	return t, nil
}

func (t *Table) Inbox() chan<- Msg { return t.inbox }

func (t *Table) ID() string { return t.id }

func (t *Table) Done() <-chan struct{} { return t.done }

// Append implements rules.Journal.
func (t *Table) Append(gameID string, evt rules.Event) {
	if err := t.writer.Enqueue("append_event", func(ctx context.Context) error {
		return t.log.AppendEvent(ctx, gameID, evt)
	}); err != nil {
		t.logger.Warn("append not queued", zap.String("event_id", evt.ID), zap.Error(err))
	}
}

// changed is the engine listener: persist and fan out every new state.
func (t *Table) changed(state rules.MatchState, evt rules.Event) {
	t.version++
	t.persist(state)
	t.broadcast(Snapshot{Version: t.version, SyncStatus: t.writer.Status(), State: state})
	if evt.Type == rules.EvtMatchEnd && state.EndedAt != nil {
		t.logger.Info("game finished", zap.Strings("winners", state.WinnerIDs))
	}
}

func (t *Table) persist(state rules.MatchState) {
	rec := Record{Rules: t.rules, State: state}
	if err := t.writer.Enqueue("save_state", func(ctx context.Context) error {
		return t.log.SaveState(ctx, state.GameID, rec)
	}); err != nil {
		t.logger.Warn("snapshot not queued", zap.Error(err))
	}
}

func (t *Table) loop() {
	defer close(t.done)
	for {
		select {
		case <-t.ctx.Done():
			t.shutdown()
			return

		case m := <-t.inbox:
			switch msg := m.(type) {
			case Join:
				// Register client + send current snapshot immediately
				t.clients[msg.ClientID] = msg.Outbox
				msg.Outbox <- t.snapshot()

			case Leave:
				delete(t.clients, msg.ClientID)

			case Submit:
				evt := msg.Event
				if evt.ID == "" {
					evt.ID = uuid.NewString()
				}
				res := t.engine.SubmitEvent(evt)
				if !res.Accepted {
					t.logger.Debug("event rejected", zap.String("type", string(evt.Type)), zap.String("reason", res.Reason))
				}
				msg.Reply <- Result{SubmitResult: res, View: t.view()}

			case GetState:
				msg.Reply <- t.view()

			case syncChanged:
				if msg.Status == store.SyncError {
					t.broadcast(t.snapshot())
				}

			case Shutdown:
				t.shutdown()
				return
			}
		}
	}
}

func (t *Table) snapshot() Snapshot {
	return Snapshot{Version: t.version, SyncStatus: t.writer.Status(), State: t.engine.State()}
}

func (t *Table) view() View {
	return View{
		Version:    t.version,
		NumClients: len(t.clients),
		SyncStatus: t.writer.Status(),
		Rules:      t.rules,
		State:      t.engine.State(),
	}
}

func (t *Table) broadcast(snap Snapshot) {
	for id, ch := range t.clients {
		select {
		case ch <- snap:
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(t.clients, id)
		}
	}
}

func (t *Table) shutdown() {
	for id, ch := range t.clients {
		close(ch) // Tell client no more snapshots
		delete(t.clients, id)
	}
	if err := t.writer.Close(); err != nil {
		t.logger.Error("writes lost on shutdown", zap.Error(err))
	}
	t.cancel()
}

// SubmitEvent sends evt and waits for the engine's verdict.
func (t *Table) SubmitEvent(ctx context.Context, evt rules.Event) (Result, error) {
	reply := make(chan Result, 1)
	select {
	case t.inbox <- Submit{Event: evt, Reply: reply}:
	case <-t.done:
		return Result{}, ErrClosed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	select {
	case res := <-reply:
		return res, nil
	case <-t.done:
		return Result{}, ErrClosed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (t *Table) State(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	select {
	case t.inbox <- GetState{Reply: reply}:
	case <-t.done:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-t.done:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Load reads a stored game. ok is false when nothing is stored for id.
func Load(ctx context.Context, log GameLog, id string) (rec Record, events []rules.Event, ok bool, err error) {
	stored, err := log.LoadState(ctx, id)
	if err != nil || stored == nil {
		return Record{}, nil, false, err
	}
	events, err = log.LoadEvents(ctx, id)
	if err != nil {
		return Record{}, nil, false, err
	}
	return *stored, events, true, nil
}
