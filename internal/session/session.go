package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/scorebook-backend/internal/engine"
	"github.com/DoyleJ11/scorebook-backend/internal/fanout"
	"github.com/DoyleJ11/scorebook-backend/internal/store"
)

var ErrNotLive = errors.New("match is not live")
var ErrDuplicateEvent = errors.New("event already applied")
var ErrClosed = errors.New("session closed")

// MatchLog is the durable log for matches.
type MatchLog = store.EventLog[engine.ScoreEvent, engine.Match]

type Msg interface{ isSessionMsg() }

type Submit struct {
	Event engine.ScoreEvent
	Reply chan Result
}

type Start struct{ Reply chan Result }

type Undo struct{ Reply chan Result }

type Recalculate struct{ Reply chan Result }

type End struct{ Reply chan Result }

type GetState struct{ Reply chan View }

type Shutdown struct{}

type syncChanged struct{ Status store.SyncStatus }

func (Submit) isSessionMsg()      {}
func (Start) isSessionMsg()       {}
func (Undo) isSessionMsg()        {}
func (Recalculate) isSessionMsg() {}
func (End) isSessionMsg()         {}
func (GetState) isSessionMsg()    {}
func (Shutdown) isSessionMsg()    {}
func (syncChanged) isSessionMsg() {}

type View struct {
	Version    uint64           `json:"version"`
	SyncStatus store.SyncStatus `json:"syncStatus"`
	Match      engine.Match     `json:"match"`
}

type Result struct {
	View View
	Err  error
}

type Deps struct {
	Log    MatchLog
	Bus    fanout.Bus
	Logger *zap.Logger
	Now    func() time.Time
}

// Session is the single writer for one match. Every mutation goes through
// its inbox, is persisted through an async writer and published on the bus.
type Session struct {
	inbox   chan Msg
	match   engine.Match
	version uint64
	seen    map[string]bool

	// syncFailed is the last error state pushed to subscribers.
	syncFailed bool

	log    MatchLog
	bus    fanout.Bus
	writer *store.Writer
	logger *zap.Logger
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func New(parent context.Context, initial engine.Match, deps Deps) *Session {
	ctx, cancel := context.WithCancel(parent)
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	s := &Session{
		inbox:  make(chan Msg, 64),
		match:  initial,
		log:    deps.Log,
		bus:    deps.Bus,
		logger: logger.With(zap.String("match_id", initial.ID)),
		now:    now,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.indexEvents()
	s.writer = store.NewWriter(ctx, s.logger, func(status store.SyncStatus) {
		select {
		case s.inbox <- syncChanged{Status: status}:
		default:
		}
	})

	go s.loop()
	return s
}

func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) ID() string { return s.match.ID }

// Done is closed once the session has stopped and flushed its writes.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Submit:
				msg.Reply <- s.submit(msg.Event)

			case Start:
				msg.Reply <- s.transition(engine.Start)

			case End:
				msg.Reply <- s.transition(func(m engine.Match) (engine.Match, error) {
					return engine.End(m, s.now())
				})

			case Undo:
				msg.Reply <- s.undo()

			case Recalculate:
				s.match = engine.Recalculate(s.match)
				s.version++
				s.persistState()
				s.publish(engine.UpdateScore)
				msg.Reply <- Result{View: s.view()}

			case GetState:
				msg.Reply <- s.view()

			case syncChanged:
				// Only entering or leaving the error state is published; the
				// version does not move.
				failed := msg.Status == store.SyncError
				if failed != s.syncFailed {
					s.syncFailed = failed
					s.publish(engine.UpdateGeneral)
				}

			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) submit(evt engine.ScoreEvent) Result {
	if s.match.Status != engine.StatusLive {
		return Result{View: s.view(), Err: fmt.Errorf("%w: status is %s", ErrNotLive, s.match.Status)}
	}
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = s.now()
	}
	if err := engine.ValidateEvent(evt); err != nil {
		return Result{View: s.view(), Err: err}
	}
	if s.seen[evt.ID] {
		return Result{View: s.view(), Err: fmt.Errorf("%w: %s", ErrDuplicateEvent, evt.ID)}
	}

	s.match = engine.Apply(s.match, evt)
	s.seen[evt.ID] = true
	s.version++

	id := s.match.ID
	if err := s.writer.Enqueue("append_event", func(ctx context.Context) error {
		return s.log.AppendEvent(ctx, id, evt)
	}); err != nil {
		s.logger.Warn("append not queued", zap.String("event_id", evt.ID), zap.Error(err))
	}
	s.persistState()
	s.publish(engine.KindOf(evt))
	return Result{View: s.view()}
}

func (s *Session) transition(fn func(engine.Match) (engine.Match, error)) Result {
	next, err := fn(s.match)
	if err != nil {
		return Result{View: s.view(), Err: err}
	}
	s.match = next
	s.version++
	s.persistState()
	s.publish(engine.UpdateStatus)
	return Result{View: s.view()}
}

// undo drops the newest event and rewrites the stored log to match.
func (s *Session) undo() Result {
	if len(s.match.Events) == 0 {
		return Result{View: s.view()}
	}
	s.match = engine.Undo(s.match)
	s.indexEvents()
	s.version++

	id := s.match.ID
	oldestFirst := slices.Clone(s.match.Events)
	slices.Reverse(oldestFirst)
	if err := s.writer.Enqueue("rewrite_log", func(ctx context.Context) error {
		if err := s.log.Clear(ctx, id); err != nil {
			return err
		}
		for _, evt := range oldestFirst {
			if err := s.log.AppendEvent(ctx, id, evt); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		s.logger.Warn("log rewrite not queued", zap.Error(err))
	}
	s.persistState()
	s.publish(engine.UpdateScore)
	return Result{View: s.view()}
}

func (s *Session) persistState() {
	id, snapshot := s.match.ID, s.match
	if err := s.writer.Enqueue("save_state", func(ctx context.Context) error {
		return s.log.SaveState(ctx, id, snapshot)
	}); err != nil {
		s.logger.Warn("snapshot not queued", zap.Error(err))
	}
}

func (s *Session) publish(kind engine.UpdateKind) {
	if s.bus == nil {
		return
	}
	u := fanout.Update{
		MatchID:    s.match.ID,
		Kind:       kind,
		Version:    s.version,
		Match:      s.match,
		SyncStatus: s.writer.Status(),
	}
	if err := s.bus.Publish(s.ctx, u); err != nil {
		s.logger.Warn("publish failed", zap.String("kind", string(kind)), zap.Error(err))
	}
}

func (s *Session) view() View {
	return View{Version: s.version, SyncStatus: s.writer.Status(), Match: s.match}
}

func (s *Session) indexEvents() {
	s.seen = make(map[string]bool, len(s.match.Events))
	for _, e := range s.match.Events {
		s.seen[e.ID] = true
	}
}

func (s *Session) shutdown() {
	if err := s.writer.Close(); err != nil {
		s.logger.Error("writes lost on shutdown", zap.Error(err))
	}
	s.cancel()
}

// Hydrate loads a match from the log. Stored events are authoritative: when
// any exist the snapshot is recomputed from them. ok is false when nothing
// is stored for id.
func Hydrate(ctx context.Context, log MatchLog, id string) (m engine.Match, ok bool, err error) {
	state, err := log.LoadState(ctx, id)
	if err != nil {
		return engine.Match{}, false, err
	}
	if state == nil {
		return engine.Match{}, false, nil
	}
	events, err := log.LoadEvents(ctx, id)
	if err != nil {
		return engine.Match{}, false, err
	}
	m = *state
	if len(events) > 0 {
		slices.Reverse(events)
		m.Events = events
		m = engine.Recalculate(m)
	}
	return m, true, nil
}
