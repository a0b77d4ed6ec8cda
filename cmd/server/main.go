package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/Messzola/internal/adapters/auth"
	router "github.com/dkeye/Messzola/internal/adapters/http"
	"github.com/dkeye/Messzola/internal/adapters/store"
	"github.com/dkeye/Messzola/internal/app"
	"github.com/dkeye/Messzola/internal/app/orch"
	"github.com/dkeye/Messzola/internal/config"
	"github.com/dkeye/Messzola/internal/core"
	"github.com/dkeye/Messzola/internal/metrics"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("Server exited gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	events := app.NewEventQueue(cfg.EventBuffer, m)
	st, err := store.Open(cfg.DatabasePath, events)
	if err != nil {
		return err
	}
	defer st.Close()

	tokens, err := auth.NewTokenService(cfg.Secret, cfg.TokenTTL)
	if err != nil {
		return err
	}

	var members core.Membership = st
	var cache *app.MembershipCache
	if cfg.MembershipCache.TTL > 0 {
		cache = app.NewMembershipCache(st, cfg.MembershipCache.Size, cfg.MembershipCache.TTL)
		members = cache
	}

	o := &orch.Orchestrator{
		Registry:          app.NewRegistry(tokens, app.SimplePolicy{}, m),
		Presence:          app.NewPresence(),
		Members:           members,
		Chat:              st,
		Limiter:           app.NewRateLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Interval),
		Cache:             cache,
		Metrics:           m,
		DefaultCallerName: cfg.DefaultCallerName,
	}
	o.Init()

	r := router.SetupRouter(ctx, cfg, router.Deps{Orch: o, Store: st, Tokens: tokens, Gatherer: reg})
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Str("ws", cfg.WSPath).Msg("Messzola server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return o.Registry.RunHeartbeat(gctx, cfg.PingPeriod)
	})
	g.Go(func() error {
		return o.RunEvents(gctx, events.Events())
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	return g.Wait()
}
