package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tanner-Eischen/Socrates-sub000/config"
	"github.com/Tanner-Eischen/Socrates-sub000/internal/observability"
	"github.com/Tanner-Eischen/Socrates-sub000/internal/postgres"
	"github.com/Tanner-Eischen/Socrates-sub000/internal/presence"
	"github.com/Tanner-Eischen/Socrates-sub000/internal/registry"
	"github.com/Tanner-Eischen/Socrates-sub000/internal/security"
	"github.com/Tanner-Eischen/Socrates-sub000/internal/store"
	httpx "github.com/Tanner-Eischen/Socrates-sub000/internal/transport/http"
	"github.com/Tanner-Eischen/Socrates-sub000/internal/transport/ws"
	"github.com/Tanner-Eischen/Socrates-sub000/internal/voice"
	"github.com/Tanner-Eischen/Socrates-sub000/pkg/logger"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting collab-core",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics("collab")

	// --- durable store with in-memory failover ---
	// A postgres that is down at boot is the same condition as one that
	// fails later: the service comes up degraded and the probe re-attaches
	// it once it answers.
	primary := durableStore(ctx, cfg)
	fallback := store.NewMemory()
	st := store.NewFailover(primary, fallback, cfg.ProbeInterval(), func(degraded bool) {
		if degraded {
			metrics.StoreFallback.Inc()
			slog.Warn("durable store unavailable, serving from memory")
		} else {
			slog.Info("durable store recovered")
		}
	})
	st.StartProbe(ctx)
	defer st.Close()

	// --- core ---
	tracker := presence.NewTracker()
	reg := registry.New(st, tracker,
		registry.WithMaxMessageChars(cfg.Limits.MaxMessageChars),
	)

	// --- auth ---
	pub, err := security.LoadRSAPublicKeyFromPEM(cfg.Auth.PublicKeyPath)
	if err != nil {
		log.Fatalf("load public key: %v", err)
	}
	verifier := security.NewJWTVerifier(pub, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.ClockSkew())

	// --- WS hub & gateway ---
	hub := ws.NewHub()
	wsServer := ws.NewServer(hub, reg, verifier,
		ws.WithPingInterval(cfg.PingInterval()),
		ws.WithMetrics(metrics),
		ws.WithTranscriber(&voice.MockTranscriber{}),
	)

	// --- HTTP ---
	handler := httpx.NewHandler(reg)
	router := httpx.NewRouter(handler, verifier, wsServer, observability.MetricsHandler())
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	_ = httpSrv.Shutdown(ctxShutdown)
	slog.Info("stopped")
}

// durableStore connects to postgres and prepares the schema. On failure it
// returns the store anyway; the failover layer treats it as down until the
// probe sees it answer.
func durableStore(ctx context.Context, cfg *config.Config) *postgres.Store {
	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:             cfg.Postgres.DSN,
		ApplicationName: cfg.Logging.Service,
	})
	if err != nil {
		slog.Warn("postgres unavailable at boot", "err", err)
		// a pool is still constructable without a live server; parse-only
		// failures are fatal because the DSN itself is wrong
		pc, perr := postgres.NewLazyPool(cfg.Postgres.DSN)
		if perr != nil {
			log.Fatalf("postgres dsn: %v", perr)
		}
		return postgres.NewStore(pc)
	}

	pg := postgres.NewStore(pool)
	if err := pg.InitSchema(ctx); err != nil {
		slog.Warn("init schema", "err", err)
	}
	return pg
}
