package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dkeye/Relay/internal/adapters/auth"
	router "github.com/dkeye/Relay/internal/adapters/http"
	wssignal "github.com/dkeye/Relay/internal/adapters/signal"
	"github.com/dkeye/Relay/internal/adapters/store/memory"
	"github.com/dkeye/Relay/internal/adapters/store/sqlite"
	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/config"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/observability"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the relay server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

type stores struct {
	users       core.UserStore
	memberships core.MembershipStore
	messages    core.MessageStore
	health      func(context.Context) error
	close       func() error
}

func openStores(ctx context.Context, cfg config.StoreConfig) (stores, error) {
	if cfg.Driver == "sqlite" {
		s, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return stores{}, err
		}
		return stores{users: s, memberships: s, messages: s.Messages(), health: s.Ping, close: s.Close}, nil
	}
	m := memory.New()
	return stores{users: m, memberships: m, messages: m.Messages(), close: func() error { return nil }}, nil
}

func serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	setupLogging(cfg.Mode, cfg.LogLevel)

	st, err := openStores(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := st.close(); err != nil {
			log.Error().Err(err).Msg("store close")
		}
	}()

	metrics := observability.NewMetrics()
	reg := app.NewRegistry()
	rooms := app.NewRoomRegistry()
	fanout := app.NewFanout(reg, rooms, app.SimplePolicy{})
	fanout.Metrics = metrics

	o := &orch.Orchestrator{
		Registry:    reg,
		Rooms:       rooms,
		Emit:        fanout,
		Typing:      app.NewTypingTracker(fanout, cfg.Typing.TTL),
		Calls:       app.NewCallManager(fanout, st.memberships),
		Peers:       app.NewPeerDirectory(fanout),
		Users:       st.users,
		Messages:    st.messages,
		Memberships: st.memberships,
		Metrics:     metrics,
	}

	gate := app.NewGate(auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry))
	ctl := wssignal.NewSignalWSController(o, gate,
		wssignal.NewRateLimiter(cfg.RateLimit.Events, cfg.RateLimit.Interval),
		wssignal.Options{ReadLimit: cfg.ReadLimit, PingPeriod: cfg.PingPeriod, SendBuffer: cfg.SendBuffer})
	ctl.Metrics = metrics

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Orch: o, Gate: gate, Signal: ctl, Metrics: metrics, Health: st.health,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("store", cfg.Store.Driver).Msg("Relay server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		return fmt.Errorf("server error: %w", err)
	}
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
	return nil
}
