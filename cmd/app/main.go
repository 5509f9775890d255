package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"sports-tips-subscription/internal/app"
	"sports-tips-subscription/internal/config"
	"sports-tips-subscription/internal/domain/model"
	"sports-tips-subscription/internal/infra/api"
	"sports-tips-subscription/internal/infra/logging"
	"sports-tips-subscription/internal/infra/metrics"
	"sports-tips-subscription/internal/infra/sched"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	mintRole := flag.String("mint-token", "", "print an admin API token for the given role (admin|staff) and exit")
	subject := flag.String("subject", "operator", "token subject used with -mint-token")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if *mintRole != "" {
		tok, err := api.NewAuthManager(cfg.HTTP.JWTSecret, cfg.HTTP.TokenTTL).Mint(*subject, model.UserRole(*mintRole))
		if err != nil {
			log.Fatalf("mint token: %v", err)
		}
		fmt.Println(tok)
		return
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit, cfg.Database.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	// the pool outlives ctx so queued notices drain on shutdown
	poolCtx, poolCancel := context.WithCancel(context.Background())
	defer poolCancel()
	a.Pool.Start(poolCtx)

	go a.ReportPoolStats(ctx)

	// ---- HTTP ----
	server := a.Server().HTTPServer()
	go func() {
		logger.Info().Str("addr", server.Addr).Str("version", version).Msg("admin API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	// ---- Workers ----
	if err := sched.RunAll(ctx, logger, a.Workers()...); err != nil {
		logger.Error().Err(err).Msg("worker stopped")
	}
	stop()

	// ---- Graceful shutdown ----
	logger.Info().Msg("shutdown requested")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	a.Pool.Stop()
	logger.Info().Msg("bye")
}
