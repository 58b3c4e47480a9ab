package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/scorebook-backend/internal/config"
	"github.com/DoyleJ11/scorebook-backend/internal/engine"
	"github.com/DoyleJ11/scorebook-backend/internal/fanout"
	"github.com/DoyleJ11/scorebook-backend/internal/httpapi"
	"github.com/DoyleJ11/scorebook-backend/internal/hub"
	"github.com/DoyleJ11/scorebook-backend/internal/logging"
	"github.com/DoyleJ11/scorebook-backend/internal/rules"
	"github.com/DoyleJ11/scorebook-backend/internal/store"
	"github.com/DoyleJ11/scorebook-backend/internal/table"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if cfg.NeedsRedis() {
		var err error
		rdb, err = store.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		log.Info("connected to redis")
	}

	backend, err := store.Open(store.Options{
		Kind:        cfg.StoreBackend,
		DatabaseURL: cfg.DatabaseURL,
		Redis:       rdb,
		RedisTTL:    cfg.RedisTTL,
	})
	if err != nil {
		return err
	}
	defer backend.Close()
	log.Info("store ready", zap.String("backend", cfg.StoreBackend))

	var bus fanout.Bus = fanout.NewLocal()
	if cfg.FanoutBackend == "redis" {
		bus = fanout.NewRedis(rdb, log)
	}
	defer bus.Close()

	ruleSet := rules.Presets()
	if cfg.RulesDir != "" {
		loaded, err := rules.LoadDir(cfg.RulesDir)
		if err != nil {
			return fmt.Errorf("rules: %w", err)
		}
		maps.Copy(ruleSet, loaded)
		log.Info("rules loaded", zap.String("dir", cfg.RulesDir), zap.Int("count", len(loaded)))
	}

	h := hub.NewHub(ctx, hub.Deps{
		Matches: store.NewLog[engine.ScoreEvent, engine.Match](backend, "match", func(e engine.ScoreEvent) string { return e.ID }),
		Games:   store.NewLog[rules.Event, table.Record](backend, "game", func(e rules.Event) string { return e.ID }),
		Bus:     bus,
		Rules:   ruleSet,
		Logger:  log,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.SetupRoutes(h, bus, log, httpapi.Options{CORSOrigins: cfg.CORSOrigins}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		// Sessions flush their pending writes before the store closes.
		if herr := h.Shutdown(shutdownCtx); herr != nil {
			err = multierr.Append(err, herr)
		}
		return err
	})
	return g.Wait()
}
