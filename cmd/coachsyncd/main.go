// Command coachsyncd runs the local synchronization daemon: a SQLite-backed
// key-value cache, the routine reconciler, the adaptive chat poller, and a
// loopback HTTP gateway that the app frontend drives.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-coach-sync/internal/api"
	"github.com/tbourn/go-coach-sync/internal/chat"
	"github.com/tbourn/go-coach-sync/internal/config"
	httpapi "github.com/tbourn/go-coach-sync/internal/http"
	"github.com/tbourn/go-coach-sync/internal/observability"
	"github.com/tbourn/go-coach-sync/internal/store"
	"github.com/tbourn/go-coach-sync/internal/sync"
	"github.com/tbourn/go-coach-sync/internal/sysutil"
)

const version = "1.0.0"

func main() {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("local store open failed")
	}
	kv := store.New(db)

	client := api.New(cfg.Remote.BaseURL, cfg.Remote.Token,
		api.WithHTTPClient(&http.Client{Timeout: cfg.Remote.Timeout}),
		api.WithRateLimit(cfg.Remote.RateRPS, cfg.Remote.RateBurst),
		api.WithLogger(log.Logger),
	)

	reconciler := sync.NewReconciler(kv, client)
	local := sync.NewLocal(kv)
	chatSvc := chat.NewService(client, chat.Intervals{
		Active:     cfg.Poll.Active,
		IdleSlow:   cfg.Poll.IdleSlow,
		Background: cfg.Poll.Background,
		IdleAfter:  cfg.Poll.IdleAfter,
	}, cfg.Poll.WindowCap)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(ctx, r, httpapi.Services{
		Chat:     chatSvc,
		ChatApp:  chatSvc,
		Syncer:   reconciler,
		Routines: local,
		Store:    kv,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("gateway listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("gateway serve failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	// Stop poll loops before the server so no new fetch lands mid-shutdown.
	chatSvc.StopAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("gateway shutdown failed")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("bye")
}
