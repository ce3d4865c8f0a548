package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/discovery-engine/internal/classifier"
	"github.com/sells-group/discovery-engine/internal/config"
	"github.com/sells-group/discovery-engine/internal/db"
	"github.com/sells-group/discovery-engine/internal/engine"
	"github.com/sells-group/discovery-engine/internal/interview"
	"github.com/sells-group/discovery-engine/internal/metrics"
	"github.com/sells-group/discovery-engine/internal/recommend"
	"github.com/sells-group/discovery-engine/internal/resilience"
	"github.com/sells-group/discovery-engine/internal/store"
	"github.com/sells-group/discovery-engine/internal/taxonomy"
	"github.com/sells-group/discovery-engine/pkg/anthropic"
)

const defaultSQLitePath = "discovery.db"

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = defaultSQLitePath
		}
		return store.NewSQLite(dsn)
	case config.DriverPostgres:
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &db.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case config.DriverMemory:
		return store.NewMemory(cfg.Store.MemorySize)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens the configured store and applies migrations.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func initCatalog() (*taxonomy.Catalog, error) {
	cat, err := taxonomy.LoadOrDefault(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("catalog loaded",
		zap.Int("version", cat.Version()),
		zap.Int("categories", len(cat.ListCategories())),
		zap.Int("recipes", len(cat.ListRecipes())),
	)
	return cat, nil
}

// initClassifier builds the configured classifier wrapped in its guard.
func initClassifier(cat *taxonomy.Catalog, m *metrics.Metrics) (*classifier.Guarded, error) {
	var inner classifier.Classifier
	switch cfg.Classifier.Provider {
	case config.ProviderKeyword:
		inner = classifier.NewKeyword(cat)
	case config.ProviderAnthropic:
		if cfg.Anthropic.Key == "" {
			return nil, eris.New("anthropic API key is required (DISCOVERY_ANTHROPIC_KEY)")
		}
		inner = classifier.NewAnthropic(anthropic.NewClient(cfg.Anthropic.Key), cat, classifier.AnthropicConfig{
			Model:     cfg.Anthropic.HaikuModel,
			MaxTokens: cfg.Classifier.MaxTokens,
		})
	default:
		return nil, eris.Errorf("unsupported classifier provider: %s", cfg.Classifier.Provider)
	}

	guard := classifier.DefaultGuardConfig()
	guard.Timeout = cfg.Classifier.Timeout()
	guard.RatePerSec = cfg.Classifier.RatePerSec
	guard.Burst = cfg.Classifier.Burst
	guard.Retry.MaxAttempts = cfg.Classifier.MaxAttempts
	guard.Breaker = resilience.BreakerConfig{
		FailureThreshold: cfg.Classifier.FailureThreshold,
		CoolDown:         cfg.Classifier.ResetTimeout(),
		Probes:           1,
	}
	return classifier.NewGuarded(inner, guard, m), nil
}

func engineSettings() engine.Settings {
	return engine.Settings{
		Interview: interview.Settings{
			MaxQuestions:        cfg.Engine.MaxQuestions,
			MinQuestions:        cfg.Engine.MinQuestions,
			ConfidenceThreshold: cfg.Engine.ConfidenceThreshold,
		},
		Ranking: recommend.Settings{
			RelevanceThreshold: cfg.Engine.RelevanceThreshold,
			MaxResults:         cfg.Engine.MaxRecommendations,
		},
		Alpha:         cfg.Engine.Alpha,
		CommitRetries: cfg.Engine.CommitRetries,
	}
}

// appEnv bundles the collaborators a command needs.
type appEnv struct {
	Store      store.Store
	Catalog    *taxonomy.Catalog
	Classifier *classifier.Guarded
	Engine     *engine.Engine
	Metrics    *metrics.Metrics
}

// Close waits for background turns and releases the store.
func (a *appEnv) Close() {
	if a.Engine != nil {
		_ = a.Engine.Close()
	}
	if a.Store != nil {
		_ = a.Store.Close()
	}
}

func initEngine(ctx context.Context, m *metrics.Metrics) (*appEnv, error) {
	cat, err := initCatalog()
	if err != nil {
		return nil, err
	}
	cls, err := initClassifier(cat, m)
	if err != nil {
		return nil, err
	}
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(engine.Deps{
		Store:      st,
		Catalog:    cat,
		Classifier: cls,
		Metrics:    m,
	}, engine.WithSettings(engineSettings()))
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return &appEnv{Store: st, Catalog: cat, Classifier: cls, Engine: eng, Metrics: m}, nil
}
