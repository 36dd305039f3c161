package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ziedsayadi/Cvmodel/internal/cache"
	"github.com/ziedsayadi/Cvmodel/internal/cli"
	"github.com/ziedsayadi/Cvmodel/internal/config"
	"github.com/ziedsayadi/Cvmodel/internal/llm"
	"github.com/ziedsayadi/Cvmodel/internal/logging"
	"github.com/ziedsayadi/Cvmodel/internal/translate"
)

// components is the shared wiring every command builds on.
type components struct {
	cfg      *config.Config
	logger   zerolog.Logger
	client   *llm.OpenAIClient
	cache    *cache.Cache
	store    cache.Store
	pipeline *translate.Pipeline
}

// buildComponents loads the environment and configuration and assembles the
// pipeline. withStore controls whether the durable cache store is opened.
func buildComponents(ctx context.Context, envLoader *cli.EnvLoader, withStore bool) (*components, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	client := llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.UpstreamTimeout())

	var store cache.Store
	if withStore && cfg.HasDurableCache() {
		gormStore, err := cache.NewGormStore(ctx, cache.GormStoreConfig{
			DatabaseURL: cfg.DatabaseURL,
			MaxConns:    cfg.DBMaxConns,
			LogLevel:    cfg.LogLevel,
			Environment: cfg.Environment,
		})
		if err != nil {
			return nil, fmt.Errorf("open cache store: %w", err)
		}
		store = gormStore
	}

	resultCache := cache.New(cfg.CacheTTL(), store, logger)
	if store != nil {
		if err := resultCache.Warm(ctx); err != nil {
			logger.Warn().Err(err).Msg("cache warm-up failed, starting cold")
		}
	}

	// A configured pause of zero disables stream pacing entirely.
	streamPause := cfg.StreamPause()
	if cfg.StreamPauseMS == 0 {
		streamPause = -1
	}

	invoker := translate.NewInvoker(client, cfg.PrimaryModel, cfg.FallbackModel, logger)
	pipeline := translate.New(invoker, resultCache, logger, translate.Options{
		MaxChunkLen:     cfg.MaxChunkLen,
		Workers:         cfg.Workers,
		MaxAttempts:     cfg.MaxAttempts,
		FallbackAttempt: cfg.FallbackAttempt,
		BackoffSeed:     cfg.BackoffSeed(),
		StreamPause:     streamPause,
	})

	return &components{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		cache:    resultCache,
		store:    store,
		pipeline: pipeline,
	}, nil
}

func (c *components) close() {
	if c == nil || c.store == nil {
		return
	}
	if err := c.store.Close(); err != nil {
		c.logger.Error().Err(err).Msg("close cache store failed")
	}
}
