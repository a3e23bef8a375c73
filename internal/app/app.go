// Package app is the composition root shared by the server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/noa10/mataresit-sub011/internal/config"
	"github.com/noa10/mataresit-sub011/internal/db"
	dbBadger "github.com/noa10/mataresit-sub011/internal/db/badger"
	dbRedis "github.com/noa10/mataresit-sub011/internal/db/redis"
	"github.com/noa10/mataresit-sub011/internal/domain"
	"github.com/noa10/mataresit-sub011/internal/domain/search/ranking"
	"github.com/noa10/mataresit-sub011/internal/metrics"
	"github.com/noa10/mataresit-sub011/internal/repository/cache"
	"github.com/noa10/mataresit-sub011/internal/repository/embcache"
	"github.com/noa10/mataresit-sub011/internal/repository/popularity"
	"github.com/noa10/mataresit-sub011/internal/repository/schema"
	searchrepo "github.com/noa10/mataresit-sub011/internal/repository/search"
	chiTransport "github.com/noa10/mataresit-sub011/internal/transport/chi"
	lcllm "github.com/noa10/mataresit-sub011/internal/transport/langchain"
	openaiTransport "github.com/noa10/mataresit-sub011/internal/transport/openai"
	embeddinguc "github.com/noa10/mataresit-sub011/internal/usecase/embedding"
	healthuc "github.com/noa10/mataresit-sub011/internal/usecase/health"
	llmuc "github.com/noa10/mataresit-sub011/internal/usecase/llm"
	"github.com/noa10/mataresit-sub011/internal/usecase/orchestrator"
	"github.com/noa10/mataresit-sub011/internal/usecase/preprocessor"
	"github.com/noa10/mataresit-sub011/internal/usecase/ranker"
	"github.com/noa10/mataresit-sub011/internal/usecase/reranker"
	"github.com/noa10/mataresit-sub011/internal/usecase/router"
	searchuc "github.com/noa10/mataresit-sub011/internal/usecase/search"
)

// App holds the wired pipeline and the resources it owns.
type App struct {
	Orchestrator *orchestrator.Orchestrator
	Health       *healthuc.Service
	Store        db.Store

	closers []func()
}

// Close releases every owned resource in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Connect opens the datastore and waits until it answers.
func Connect(ctx context.Context, cfg *config.Config) (*dbRedis.Store, error) {
	domain.KeyPrefix = cfg.Database.KeyPrefix

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:      cfg.Database.Addrs,
		Username:   cfg.Database.Username,
		Password:   cfg.Database.Password,
		ClientName: "mataresit-search",
	})
	if err != nil {
		return nil, fmt.Errorf("create database store: %w", err)
	}
	if err := store.WaitForReady(ctx, config.Timeout(cfg.Database.ReadinessTimeout)); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	return store, nil
}

// EnsureIndex creates the search index when it is missing. Reports whether it was created.
func EnsureIndex(ctx context.Context, store db.IndexManager, cfg *config.Config) (bool, error) {
	created, err := schema.EnsureIndex(ctx, store, cfg.Database.IndexName, cfg.Embedding.Dimensions)
	if err != nil {
		return false, fmt.Errorf("ensure index %s: %w", cfg.Database.IndexName, err)
	}
	return created, nil
}

// Build wires the six-stage pipeline from cfg.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	metrics.Register()

	store, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &App{Store: store}
	a.closers = append(a.closers, store.Close)

	if cfg.Database.EnsureIndex {
		created, err := EnsureIndex(ctx, store, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		logger.Info("Search index ready",
			zap.String("index", cfg.Database.IndexName), zap.Bool("created", created))
	}

	kv, cacheCheck, err := a.openCache(cfg, store, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	// Pass nil interfaces (not typed nil pointers) when a collaborator is disabled.
	var resultCache searchuc.ResultCache
	var cacheChecker healthuc.Checker
	if kv != nil {
		resultCache = cache.New(kv, metrics.CacheTotal, logger)
		cacheChecker = cacheCheck
	}

	embedder := buildEmbedder(cfg, kv, logger)

	completer, err := buildLLM(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	var llm domain.LLM
	var llmChecker healthuc.Checker
	if completer != nil {
		llm = completer
		llmChecker = completer
	}

	pool, err := ants.NewPool(cfg.Pipeline.WorkerPoolSize)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	a.closers = append(a.closers, pool.Release)

	p := cfg.Pipeline
	search := searchrepo.New(store, cfg.Database.IndexName)
	pop := ranker.NewPopularity(popularity.New(store, cfg.Database.IndexName), pool, p.UnknownPopularity, logger)

	orch := orchestrator.New(orchestrator.Deps{
		Preprocessor: preprocessor.New(llm, resultCache, preprocessor.Config{
			CacheTTL:        config.Timeout(cfg.Cache.PreprocessTTLSec),
			DefaultCurrency: p.DefaultCurrency,
		}, logger),
		Embedder: embedder,
		Executor: searchuc.NewExecutor(search, resultCache, searchuc.Config{
			OverFetchMin:     p.OverFetchMin,
			TierTimeout:      config.Millis(p.Timeouts.SearchTierMs),
			AggregateTTL:     config.Timeout(cfg.Cache.AggregationTTLSec),
			AggregateGroupBy: p.AggregateGroupBy,
		}, logger),
		Ranker: ranker.New(pop, ranker.Config{
			RecencyLambda:     p.RecencyLambda,
			RecencyFloor:      p.RecencyFloor,
			ExactBoost:        p.ExactMatchBoost,
			DefaultPopularity: p.UnknownPopularity,
		}, logger),
		ReRanker: reranker.New(llm, reranker.Config{
			Enabled:       *p.RerankEnabled,
			MaxCandidates: p.RerankMaxCandidates,
		}, logger),
	}, orchestrator.Config{
		Router: router.Config{
			MonetaryBypass:   *p.MonetaryBypass,
			TrigramThreshold: p.TrigramThreshold,
		},
		Timeouts: orchestrator.Timeouts{
			Preprocessing: config.Millis(p.Timeouts.PreprocessingMs),
			Embedding:     config.Millis(p.Timeouts.EmbeddingMs),
			Search:        config.Millis(p.Timeouts.SearchMs),
			Ranking:       config.Millis(p.Timeouts.RankingMs),
			ReRanking:     config.Millis(p.Timeouts.ReRankingMs),
		},
	}, logger)

	a.Orchestrator = orch
	a.Health = healthuc.New(healthuc.Components{
		Database: healthuc.Pinger(store),
		Index: healthuc.CheckerFunc(func(ctx context.Context) error {
			return schema.CheckIndex(ctx, store, cfg.Database.IndexName, cfg.Embedding.Dimensions)
		}),
		Embedding: embedder,
		LLM:       llmChecker,
		Cache:     cacheChecker,
	}, 0, logger)
	return a, nil
}

// QueryDefaults returns the configured values for request fields a caller omits.
func QueryDefaults(cfg *config.Config) chiTransport.Defaults {
	w := cfg.Pipeline.Weights
	threshold := cfg.Pipeline.SimilarityThreshold
	return chiTransport.Defaults{
		Weights:       ranking.Weights{Vector: w.Vector, FullText: w.FullText, Recency: w.Recency, Popularity: w.Popularity},
		DiversityMode: ranking.DiversityMode(cfg.Pipeline.DiversityMode),
		Threshold:     &threshold,
	}
}

// openCache selects the cache backend. A nil store means caching is off.
func (a *App) openCache(
	cfg *config.Config, store *dbRedis.Store, logger *zap.Logger,
) (db.KVStore, healthuc.Checker, error) {
	switch cfg.Cache.Driver {
	case config.CacheDriverRedis:
		return store, nil, nil
	case config.CacheDriverBadger:
		bs, err := dbBadger.Open(dbBadger.Config{Path: cfg.Cache.BadgerPath}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger cache: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := bs.Close(); err != nil {
				logger.Warn("Closing badger cache failed", zap.Error(err))
			}
		})
		return bs, healthuc.CheckerFunc(bs.Ping), nil
	case config.CacheDriverNone:
		return nil, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown cache driver %q", cfg.Cache.Driver)
}

// checkedEmbedder is an embedder that can report provider health.
type checkedEmbedder interface {
	domain.Embedder
	domain.HealthChecker
}

// buildEmbedder assembles the decorator chain: OpenAI -> Instrumented -> Cached -> Instruction.
// The cache sits above normalization so it stores padded vectors with their flag.
func buildEmbedder(cfg *config.Config, kv db.KVStore, logger *zap.Logger) checkedEmbedder {
	ec := cfg.Embedding
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     ec.APIKey,
		BaseURL:    ec.BaseURL,
		Model:      ec.Model,
		Dimensions: ec.Dimensions,
		Provider:   ec.Provider,
		Logger:     logger,
	})

	var embedder checkedEmbedder = embeddinguc.NewInstrumentedEmbedder(
		base, ec.Provider, ec.Model, ec.Dimensions, config.Timeout(ec.TimeoutSec), logger,
	)
	if kv != nil {
		embedder = embcache.New(embedder, kv, embcache.Config{
			Model:      ec.Model,
			Dimensions: ec.Dimensions,
			TTL:        config.Timeout(cfg.Cache.EmbeddingTTLSec),
		}, metrics.CacheTotal, logger)
	}

	// Outermost so the cache key includes the instruction.
	if ec.QueryInstruction != "" {
		return domain.NewInstructionEmbedder(embedder, ec.QueryInstruction)
	}
	return embedder
}

// buildLLM returns nil when no provider is configured.
func buildLLM(cfg *config.Config, logger *zap.Logger) (*llmuc.InstrumentedLLM, error) {
	lc := cfg.LLM
	var inner domain.LLM
	switch lc.Provider {
	case config.LLMProviderNone:
		return nil, nil
	case config.LLMProviderOpenAI:
		inner = openaiTransport.NewLLM(&openaiTransport.Config{
			APIKey:   lc.APIKey,
			BaseURL:  lc.BaseURL,
			Model:    lc.Model,
			Provider: lc.Provider,
			Logger:   logger,
		})
	case config.LLMProviderOllama:
		l, err := lcllm.NewOpenAICompatible(lc.BaseURL, lc.APIKey, lc.Model)
		if err != nil {
			return nil, fmt.Errorf("create %s llm: %w", lc.Provider, err)
		}
		inner = l
	default:
		return nil, errors.New("unknown llm provider " + lc.Provider)
	}
	return llmuc.NewInstrumentedLLM(
		inner, lc.Provider, lc.RequestsPerSecond, lc.Burst, time.Duration(lc.TimeoutSec)*time.Second, logger,
	), nil
}
