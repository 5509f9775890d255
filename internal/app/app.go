// Package app assembles the service from config: storage, cache, rates,
// engines, use cases and background workers.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sports-tips-subscription/internal/config"
	"sports-tips-subscription/internal/domain/lifecycle"
	"sports-tips-subscription/internal/domain/model"
	"sports-tips-subscription/internal/domain/ports/adapter"
	"sports-tips-subscription/internal/domain/ports/repository"
	"sports-tips-subscription/internal/domain/pricing"
	"sports-tips-subscription/internal/infra/api"
	"sports-tips-subscription/internal/infra/db"
	"sports-tips-subscription/internal/infra/db/document"
	"sports-tips-subscription/internal/infra/db/postgres"
	"sports-tips-subscription/internal/infra/email"
	"sports-tips-subscription/internal/infra/rates"
	red "sports-tips-subscription/internal/infra/redis"
	"sports-tips-subscription/internal/infra/sched"
	"sports-tips-subscription/internal/infra/worker"
	"sports-tips-subscription/internal/usecase"
)

type App struct {
	Cfg     *config.Config
	Backend *db.Backend
	Rates   *rates.Cache
	Pool    *worker.Pool

	Subscriptions usecase.SubscriptionUseCase
	Users         usecase.UserUseCase
	Pricing       usecase.PricingUseCase
	Stats         usecase.StatsUseCase
	Notifications usecase.NotificationUseCase

	Auth    *api.AuthManager
	limiter api.Limiter
	redis   red.RedisClient
	log     *zerolog.Logger
}

// Tables overlays the configured pricing on the defaults. Empty sections
// keep the default table.
func Tables(cfg *config.Config) pricing.Tables {
	t := pricing.DefaultTables()
	if cfg.Pricing.BasePriceUSD > 0 {
		t.BasePriceUSD = cfg.Pricing.BasePriceUSD
	}
	if len(cfg.Pricing.PlanMultipliers) > 0 {
		t.PlanMultipliers = make(map[model.PlanToken]float64, len(cfg.Pricing.PlanMultipliers))
		for k, v := range cfg.Pricing.PlanMultipliers {
			t.PlanMultipliers[model.PlanToken(strings.ToLower(strings.TrimSpace(k)))] = v
		}
	}
	if len(cfg.Pricing.DurationMultipliers) > 0 {
		t.DurationMultipliers = cfg.Pricing.DurationMultipliers
	}
	for country, c := range cfg.Countries {
		key := strings.ToLower(strings.TrimSpace(country))
		if c.Currency != "" {
			t.CountryCurrencies[key] = strings.ToUpper(c.Currency)
		}
		if c.Discount > 0 {
			t.CountryDiscounts[key] = c.Discount
		}
	}
	return t
}

// Build opens every dependency named in cfg. Redis is optional: without it
// the sweep lock is process-local, users are not cached, rates are not
// snapshotted and failed admin auth is not throttled.
func Build(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	a := &App{Cfg: cfg, log: logger}

	backend, err := db.Open(ctx, *cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Backend = backend

	subs := document.NewSubscriptionRepo(backend.Store)
	notifLogs := document.NewNotificationLogRepo(backend.Store)
	var users repository.UserRepository = document.NewUserRepo(backend.Store)

	var locker adapter.Locker = red.NewLocalLocker()
	var cacheOpts []rates.Option
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.redis = rc
		locker = red.NewLocker(rc)
		a.limiter = red.NewRateLimiter(rc)
		users = red.NewUserRepoCacheDecorator(users, rc, cfg.Redis.TTL)
		cacheOpts = append(cacheOpts, rates.WithSnapshot(red.NewRateSnapshotStore(rc)))
		logger.Info().Msg("redis connected")
	} else {
		logger.Warn().Msg("redis not configured; using process-local sweep lock")
	}

	pe, err := pricing.NewEngine(Tables(cfg))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("pricing: %w", err)
	}
	le := lifecycle.NewEngine(cfg.Pricing.WarningDays)

	a.Rates = rates.NewCache(rates.NewHTTPFetcher(cfg.Rates.URL, cfg.Rates.APIKey, cfg.Rates.Timeout), cfg.Rates.TTL, logger, cacheOpts...)
	if err := a.Rates.Warm(ctx); err != nil {
		logger.Warn().Err(err).Msg("rate snapshot not loaded")
	}

	var sender adapter.EmailSender
	if cfg.Email.Enabled {
		sender = email.NewSMTPSender(cfg.Email)
	} else {
		sender = email.NewLogSender(logger, cfg.Runtime.Dev)
	}

	a.Pool = worker.NewPool(cfg.Scheduler.Workers, logger)
	notifier := usecase.NewNotifier(users, sender, a.Pool, le, logger)

	a.Subscriptions = usecase.NewSubscriptionUseCase(subs, users, backend.Tx, le, pe.Durations(), locker, notifier, logger)
	a.Users = usecase.NewUserUseCase(users, logger)
	a.Pricing = usecase.NewPricingUseCase(pe, a.Rates, users, logger)
	a.Stats = usecase.NewStatsUseCase(subs, users, pe, le, a.Rates, logger)
	a.Notifications = usecase.NewNotificationUseCase(subs, notifLogs, users, le, notifier, cfg.Scheduler.NotifyThresholds, cfg.Scheduler.Workers, logger)
	a.Auth = api.NewAuthManager(cfg.HTTP.JWTSecret, cfg.HTTP.TokenTTL)
	return a, nil
}

// Server returns the admin API bound to the configured port.
func (a *App) Server() *api.Server {
	return api.NewServer(a.Cfg.HTTP, a.Subscriptions, a.Users, a.Pricing, a.Stats, a.Auth, a.limiter, a.log)
}

// Workers lists the background jobs in start order.
func (a *App) Workers() []sched.Worker {
	return []sched.Worker{
		sched.NewRateRefreshWorker(a.Cfg.Rates.RefreshInterval, a.Rates, a.log),
		sched.NewExpiryWorker(a.Cfg.Scheduler.ExpiryInterval, a.Subscriptions, a.log),
		sched.NewNotificationWorker(a.Cfg.Scheduler.NotificationInterval, a.Notifications, a.log),
	}
}

// ReportPoolStats blocks publishing connection pool gauges; it returns at
// once for backends without a pool.
func (a *App) ReportPoolStats(ctx context.Context) {
	if a.Backend == nil || a.Backend.Pool == nil {
		return
	}
	postgres.ReportPoolStats(ctx, a.Backend.Pool, 15*time.Second, a.log)
}

func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("redis close")
		}
	}
	if a.Backend != nil {
		a.Backend.Close()
	}
}
