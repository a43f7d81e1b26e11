package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/tradebot/internal/cache/redis"
	"github.com/alanyoungcy/tradebot/internal/config"
	"github.com/alanyoungcy/tradebot/internal/crypto"
	"github.com/alanyoungcy/tradebot/internal/domain"
	"github.com/alanyoungcy/tradebot/internal/orchestrator"
	"github.com/alanyoungcy/tradebot/internal/platform/pionex"
	"github.com/alanyoungcy/tradebot/internal/store"
	"github.com/alanyoungcy/tradebot/internal/store/postgres"
	"github.com/alanyoungcy/tradebot/internal/store/snapshot"
	"github.com/alanyoungcy/tradebot/internal/strategy"
)

// Dependencies bundles everything the application needs to serve. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Store        domain.BotStore
	Registry     *strategy.Registry
	Exchange     *pionex.Client
	LiveClient   *pionex.Client // non-nil only with credentials configured
	Prices       domain.PriceCache
	Orchestrator *orchestrator.Orchestrator
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
//
// An unreachable database degrades to snapshot-only persistence with a
// warning rather than failing startup; disabled Redis leaves the price cache
// nil.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	var durable domain.BotStore
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		logger.WarnContext(ctx, "database unavailable, running on snapshot store only",
			slog.String("error", err.Error()),
		)
	} else {
		closers = append(closers, pgClient.Close)

		if cfg.Database.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		durable = postgres.NewBotStore(pgClient.Pool())
	}

	snap := snapshot.New(cfg.Snapshot.Path)
	deps.Store = store.NewFallback(durable, snap, logger)

	// --- Redis (optional price cache) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.Prices = redis.NewPriceCache(redisClient)
	}

	// --- Exchange clients ---
	// Market data (klines) is public and needs no credentials.
	deps.Exchange = pionex.NewClient(cfg.Exchange.BaseURL, nil)

	creds, err := crypto.LoadCredentials(crypto.CredentialConfig{
		APIKey:        cfg.Exchange.ApiKey,
		APISecret:     cfg.Exchange.ApiSecret,
		EncryptedPath: cfg.Exchange.EncryptedCredentialsPath,
		Password:      cfg.Exchange.CredentialsPassword,
	})
	if err != nil {
		logger.InfoContext(ctx, "no exchange credentials configured, live trading disabled")
	} else {
		auth := &crypto.HMACAuth{Key: creds.APIKey, Secret: creds.APISecret}
		deps.LiveClient = pionex.NewClient(cfg.Exchange.BaseURL, auth)
	}

	// --- Strategies and orchestrator ---
	deps.Registry = strategy.NewRegistry()

	deps.Orchestrator = orchestrator.New(orchestrator.Config{
		Store:      deps.Store,
		Registry:   deps.Registry,
		Klines:     deps.Exchange,
		NewStream:  func() domain.MarketStream { return pionex.NewWSClient(cfg.Exchange.WsURL) },
		LiveClient: deps.LiveClient,
		Prices:     deps.Prices,

		Lookback:     cfg.Engine.Lookback,
		PollInterval: cfg.Engine.PollInterval.Duration,

		Logger: logger,
	})

	return deps, cleanup, nil
}
