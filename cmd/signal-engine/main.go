package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"trading-signal-engine/config"
	"trading-signal-engine/internal/api"
	"trading-signal-engine/internal/cache"
	"trading-signal-engine/internal/confidence"
	"trading-signal-engine/internal/database"
	"trading-signal-engine/internal/engine"
	"trading-signal-engine/internal/entry"
	"trading-signal-engine/internal/evaluator"
	"trading-signal-engine/internal/market"
	"trading-signal-engine/internal/notification"
	"trading-signal-engine/internal/regime"
	"trading-signal-engine/internal/risk"
	signalpkg "trading-signal-engine/internal/signal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr).With().Timestamp().Logger()
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := newLogger(cfg.LoggingConfig)
	logger.Info().Msg("Trading signal engine starting")

	var source market.CandleSource
	if cfg.ExchangeConfig.MockMode {
		logger.Warn().Msg("Mock mode enabled, using synthetic market data")
		source = market.NewMockClient()
	} else {
		source = market.NewClient(cfg.ExchangeConfig.BaseURL, logger)
	}

	var cacheService *cache.CacheService
	if cfg.RedisConfig.Enabled {
		cacheService, err = cache.NewCacheService(cache.Config{
			Enabled:  cfg.RedisConfig.Enabled,
			Address:  cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
			PoolSize: cfg.RedisConfig.PoolSize,
		}, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, continuing without cache")
			cacheService = nil
		} else {
			defer cacheService.Close()
		}
	}
	cachedSource := engine.NewCachingSource(source, cacheService)

	var repo *database.Repository
	if cfg.DatabaseConfig.Enabled {
		db, err := database.NewDB(database.Config{
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			User:     cfg.DatabaseConfig.User,
			Password: cfg.DatabaseConfig.Password,
			Database: cfg.DatabaseConfig.Database,
			SSLMode:  cfg.DatabaseConfig.SSLMode,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()

		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.RunMigrations(migrateCtx); err != nil {
			cancel()
			logger.Fatal().Err(err).Msg("Database migrations failed")
		}
		cancel()
		repo = database.NewRepository(db)
	}

	var notifier *notification.Manager
	if cfg.NotificationConfig.Enabled {
		notifier = notification.NewManager(logger)
		notifier.AddNotifier(notification.NewTelegramNotifier(notification.TelegramConfig{
			BotToken: cfg.NotificationConfig.Telegram.BotToken,
			ChatID:   cfg.NotificationConfig.Telegram.ChatID,
			Enabled:  cfg.NotificationConfig.Telegram.Enabled,
		}))
		notifier.AddNotifier(notification.NewDiscordNotifier(notification.DiscordConfig{
			WebhookURL: cfg.NotificationConfig.Discord.WebhookURL,
			Enabled:    cfg.NotificationConfig.Discord.Enabled,
		}))
	}

	classifier := regime.NewClassifier(regime.Config{
		ADXThreshold:    cfg.PipelineConfig.ADXThreshold,
		RangeThreshold:  cfg.PipelineConfig.RangeThreshold,
		LookbackPeriods: cfg.PipelineConfig.LookbackPeriods,
	}, logger)

	finder := entry.NewFinder(entry.Config{
		Lookback:             cfg.PipelineConfig.LookbackPeriods,
		PivotWindow:          5,
		ClusterTolerance:     cfg.PipelineConfig.SupportResistanceTol * 100,
		LevelTolerance:       cfg.PipelineConfig.SupportResistanceTol * 100,
		BreakoutConfirmation: cfg.PipelineConfig.BreakoutConfirmation,
	}, logger)

	gate := confidence.NewGate(confidence.NewNetScorer(), cfg.PipelineConfig.ScorerThreshold)

	sizer := risk.NewSizer(risk.Config{
		MaxRiskPerTrade:    cfg.RiskConfig.MaxRiskPerTrade,
		MaxPositionPercent: cfg.RiskConfig.MaxPositionPercent,
		MaxStopLossPercent: cfg.RiskConfig.MaxStopLossPercent,
		MaxLeverage:        cfg.RiskConfig.MaxLeverage,
	}, logger)

	balance := func() float64 { return cfg.RiskConfig.InitialBalance }

	generator := signalpkg.NewGenerator(
		cachedSource, classifier, finder, gate, sizer, balance,
		signalpkg.Config{
			Interval:      cfg.EngineConfig.Interval,
			CandleLimit:   cfg.EngineConfig.CandleLimit,
			MinConfidence: cfg.PipelineConfig.MinConfidence,
		},
		logger,
	)

	eng := engine.New(
		engine.Config{
			Symbols:      cfg.EngineConfig.Symbols,
			Interval:     cfg.EngineConfig.Interval,
			CandleLimit:  cfg.EngineConfig.CandleLimit,
			ScanInterval: time.Duration(cfg.EngineConfig.ScanIntervalSecs) * time.Second,
		},
		cachedSource, generator, evaluator.New(logger), repo, notifier, logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.EngineConfig.StreamEnabled && !cfg.ExchangeConfig.MockMode {
		stream := market.NewStreamSubscriber(
			cfg.ExchangeConfig.WSBaseURL,
			cfg.EngineConfig.Symbols,
			cfg.EngineConfig.Interval,
			func(symbol string, candle market.Candle) {
				logger.Debug().
					Str("symbol", symbol).
					Float64("close", candle.Close).
					Msg("Candle closed")
				if _, err := eng.ScanSymbol(ctx, symbol); err != nil {
					logger.Error().Err(err).Str("symbol", symbol).Msg("Stream-triggered scan failed")
				}
			},
			logger,
		)
		go stream.Run(ctx)
		defer stream.Close()
	}

	var server *api.Server
	if cfg.ServerConfig.Enabled {
		server = api.NewServer(api.Config{
			Host:           cfg.ServerConfig.Host,
			Port:           cfg.ServerConfig.Port,
			AllowedOrigins: cfg.ServerConfig.AllowedOrigins,
			Debug:          cfg.LoggingConfig.Level == "debug",
		}, eng, apiStore(repo), logger)

		go func() {
			if err := server.Start(); err != nil {
				logger.Error().Err(err).Msg("API server stopped")
			}
		}()
	}

	eng.Run(ctx)

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("API server shutdown failed")
		}
	}

	logger.Info().Msg("Trading signal engine stopped")
}

// apiStore keeps a typed nil repository from reaching the API as a
// non-nil interface.
func apiStore(repo *database.Repository) api.SignalStore {
	if repo == nil {
		return nil
	}
	return repo
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}

	return logger.Level(level).With().Timestamp().Logger()
}
