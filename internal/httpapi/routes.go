package httpapi

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/DoyleJ11/scorebook-backend/internal/fanout"
	"github.com/DoyleJ11/scorebook-backend/internal/hub"
	"github.com/DoyleJ11/scorebook-backend/internal/ws"
)

type Options struct {
	CORSOrigins []string
}

func SetupRoutes(h *hub.Hub, bus fanout.Bus, log *zap.Logger, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	a := &api{hub: h, log: log}

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, bus, log, ws.Options{OriginPatterns: originHosts(opts.CORSOrigins)}))

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(15 * time.Second))

		r.Get("/rules", a.ListRules)

		r.Post("/matches", a.CreateMatch)
		r.Route("/matches/{id}", func(r chi.Router) {
			r.Get("/", a.GetMatch)
			r.Post("/start", a.StartMatch)
			r.Post("/events", a.SubmitMatchEvent)
			r.Post("/undo", a.UndoMatch)
			r.Post("/recalculate", a.RecalculateMatch)
			r.Post("/end", a.EndMatch)
		})

		r.Post("/games", a.CreateGame)
		r.Route("/games/{id}", func(r chi.Router) {
			r.Get("/", a.GetGame)
			r.Post("/events", a.SubmitGameEvent)
		})
	})
	return r
}

// requestLogger logs one line per request with zap.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", chimiddleware.GetReqID(r.Context())))
		})
	}
}

// originHosts turns CORS origins into the host patterns websocket.Accept
// matches against.
func originHosts(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}
