package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/scorebook-backend/internal/engine"
	"github.com/DoyleJ11/scorebook-backend/internal/fanout"
	"github.com/DoyleJ11/scorebook-backend/internal/hub"
	"github.com/DoyleJ11/scorebook-backend/internal/rules"
	"github.com/DoyleJ11/scorebook-backend/internal/session"
	"github.com/DoyleJ11/scorebook-backend/internal/table"
	"github.com/DoyleJ11/scorebook-backend/pkg/types"
)

const (
	writeTimeout = 3 * time.Second
	pingInterval = 30 * time.Second
	outboxSize   = 16
)

type Options struct {
	// OriginPatterns is passed to websocket.Accept; empty means same origin only.
	OriginPatterns []string
}

// Handler serves GET /ws?match={id} and GET /ws?game={id}.
func Handler(h *hub.Hub, bus fanout.Bus, log *zap.Logger, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matchID := r.URL.Query().Get("match")
		gameID := r.URL.Query().Get("game")

		switch {
		case matchID != "":
			s, err := h.Match(r.Context(), matchID)
			if err != nil {
				lookupError(w, err)
				return
			}
			conn, ok := accept(w, r, opts, log)
			if !ok {
				return
			}
			defer conn.Close(websocket.StatusNormalClosure, "bye")
			serveMatch(r.Context(), conn, s, bus, log.With(zap.String("match_id", matchID)))

		case gameID != "":
			tb, err := h.Game(r.Context(), gameID)
			if err != nil {
				lookupError(w, err)
				return
			}
			conn, ok := accept(w, r, opts, log)
			if !ok {
				return
			}
			defer conn.Close(websocket.StatusNormalClosure, "bye")
			serveGame(r.Context(), conn, tb, log.With(zap.String("game_id", gameID)))

		default:
			http.Error(w, "missing match or game", http.StatusBadRequest)
		}
	}
}

func lookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, hub.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.Error(w, "unavailable", http.StatusServiceUnavailable)
}

func accept(w http.ResponseWriter, r *http.Request, opts Options, log *zap.Logger) (*websocket.Conn, bool) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: opts.OriginPatterns})
	if err != nil {
		log.Debug("websocket accept failed", zap.Error(err))
		return nil, false
	}
	return conn, true
}

func write(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}

// keepAlive pings until ctx ends; a failed ping cancels the connection.
func keepAlive(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc) {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, pcancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			pcancel()
			if err != nil {
				cancel()
				return
			}
		}
	}
}

func readLoop(ctx context.Context, conn *websocket.Conn, handle func(types.ClientMessage)) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			// Clean close, going away or a dead peer all end the stream.
			return
		}
		var cm types.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			_ = write(ctx, conn, types.NewError("bad json"))
			continue
		}
		handle(cm)
	}
}

func serveMatch(parent context.Context, conn *websocket.Conn, s *session.Session, bus fanout.Bus, log *zap.Logger) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	out := make(chan types.ServerMessage, outboxSize)
	var drop sync.Once
	push := func(msg types.ServerMessage) {
		select {
		case out <- msg:
		default:
			// Client is slow/full - drop them.
			drop.Do(func() {
				log.Info("dropping slow client")
				cancel()
			})
		}
	}
	snapshot := func(version uint64, kind engine.UpdateKind, status string, m engine.Match) {
		msg, err := types.NewMatchSnapshot(version, string(kind), status, m)
		if err != nil {
			log.Error("encode snapshot", zap.Error(err))
			return
		}
		push(msg)
	}

	unsubscribe, err := bus.SubscribeToMatch(ctx, s.ID(), func(u fanout.Update) {
		snapshot(u.Version, u.Kind, string(u.SyncStatus), u.Match)
	})
	if err != nil {
		log.Warn("subscribe failed", zap.Error(err))
		_ = write(ctx, conn, types.NewError("subscribe failed"))
		return
	}
	defer unsubscribe()

	current, err := s.Snapshot(ctx)
	if err != nil {
		return
	}
	snapshot(current.Version, engine.UpdateGeneral, string(current.SyncStatus), current.Match)

	// Writer goroutine
	go func() {
		var last uint64
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-out:
				if msg.Type == types.MsgStateSnapshot {
					// Updates published before the initial snapshot are stale.
					if msg.Version < last {
						continue
					}
					last = msg.Version
				}
				if err := write(ctx, conn, msg); err != nil {
					cancel()
					return
				}
			}
		}
	}()
	go keepAlive(ctx, conn, cancel)

	readLoop(ctx, conn, func(cm types.ClientMessage) {
		var err error
		switch cm.Type {
		case types.MsgSubmit:
			var evt engine.ScoreEvent
			if err = json.Unmarshal(cm.Event, &evt); err == nil {
				_, err = s.SubmitEvent(ctx, evt)
			}
		case types.MsgUndo:
			_, err = s.UndoLast(ctx)
		default:
			err = errors.New("unknown type")
		}
		if err != nil {
			push(types.NewError(err.Error()))
		}
	})
}

// join registers out with the table; false when the table is gone or ctx ends.
func join(ctx context.Context, tb *table.Table, clientID string, out chan table.Snapshot) bool {
	select {
	case tb.Inbox() <- table.Join{ClientID: clientID, Outbox: out}:
		return true
	case <-tb.Done():
		return false
	case <-ctx.Done():
		return false
	}
}

func serveGame(parent context.Context, conn *websocket.Conn, tb *table.Table, log *zap.Logger) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	out := make(chan table.Snapshot, outboxSize)
	clientID := uuid.NewString()

	if !join(ctx, tb, clientID, out) {
		_ = write(ctx, conn, types.NewError("game closed"))
		return
	}
	defer func() {
		select {
		case tb.Inbox() <- table.Leave{ClientID: clientID}:
		case <-tb.Done():
		}
	}()

	// Writer goroutine
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-out:
				if !ok {
					// The table dropped us or shut down.
					return
				}
				msg, err := types.NewGameSnapshot(snap.Version, string(snap.SyncStatus), snap.State)
				if err != nil {
					log.Error("encode snapshot", zap.Error(err))
					continue
				}
				if err := write(ctx, conn, msg); err != nil {
					return
				}
			}
		}
	}()
	go keepAlive(ctx, conn, cancel)

	readLoop(ctx, conn, func(cm types.ClientMessage) {
		if cm.Type != types.MsgSubmit {
			_ = write(ctx, conn, types.NewError("unknown type"))
			return
		}
		var evt rules.Event
		if err := json.Unmarshal(cm.Event, &evt); err != nil {
			_ = write(ctx, conn, types.NewError("bad event"))
			return
		}
		res, err := tb.SubmitEvent(ctx, evt)
		if err != nil {
			_ = write(ctx, conn, types.NewError(err.Error()))
			return
		}
		_ = write(ctx, conn, types.NewSubmitResult(res.Accepted, res.Reason))
	})
}
