package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Classifier providers.
const (
	ProviderKeyword   = "keyword"
	ProviderAnthropic = "anthropic"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds the full application configuration.
type Config struct {
	Engine     EngineConfig     `yaml:"engine" mapstructure:"engine"`
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`
	Catalog    CatalogConfig    `yaml:"catalog" mapstructure:"catalog"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Replay     ReplayConfig     `yaml:"replay" mapstructure:"replay"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// EngineConfig holds the interview and ranking tuning values.
type EngineConfig struct {
	MaxQuestions        int     `yaml:"max_questions" mapstructure:"max_questions"`
	MinQuestions        int     `yaml:"min_questions" mapstructure:"min_questions"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	RelevanceThreshold  float64 `yaml:"relevance_threshold" mapstructure:"relevance_threshold"`
	Alpha               float64 `yaml:"alpha" mapstructure:"alpha"`
	MaxRecommendations  int     `yaml:"max_recommendations" mapstructure:"max_recommendations"`
	CommitRetries       int     `yaml:"commit_retries" mapstructure:"commit_retries"`
}

// ClassifierConfig selects and bounds the answer classifier.
type ClassifierConfig struct {
	Provider         string  `yaml:"provider" mapstructure:"provider"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec       float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst            int     `yaml:"burst" mapstructure:"burst"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
	MaxTokens        int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// Timeout returns the per-call classifier timeout.
func (c ClassifierConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// ResetTimeout returns how long the breaker stays open.
func (c ClassifierConfig) ResetTimeout() time.Duration {
	return time.Duration(c.ResetTimeoutSecs) * time.Second
}

// CatalogConfig points at an optional taxonomy override file.
type CatalogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
	MemorySize    int    `yaml:"memory_size" mapstructure:"memory_size"`
	RetentionDays int    `yaml:"retention_days" mapstructure:"retention_days"`
	MaxConns      int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns      int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	HaikuModel string `yaml:"haiku_model" mapstructure:"haiku_model"`
}

// ReplayConfig configures transcript replays.
type ReplayConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	CORSOrigins        []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	ShutdownTimeoutSec int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DISCOVERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("engine.max_questions", 6)
	v.SetDefault("engine.min_questions", 3)
	v.SetDefault("engine.confidence_threshold", 8.0)
	v.SetDefault("engine.relevance_threshold", 4.0)
	v.SetDefault("engine.alpha", 0.5)
	v.SetDefault("engine.max_recommendations", 5)
	v.SetDefault("engine.commit_retries", 2)
	v.SetDefault("classifier.provider", ProviderKeyword)
	v.SetDefault("classifier.timeout_secs", 10)
	v.SetDefault("classifier.rate_per_sec", 5.0)
	v.SetDefault("classifier.burst", 10)
	v.SetDefault("classifier.max_attempts", 3)
	v.SetDefault("classifier.failure_threshold", 5)
	v.SetDefault("classifier.reset_timeout_secs", 30)
	v.SetDefault("classifier.max_tokens", 256)
	v.SetDefault("catalog.path", "")
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.memory_size", 10000)
	v.SetDefault("store.retention_days", 90)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("replay.concurrency", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout_secs", 15)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for the given command mode
// ("serve", "interview", "replay", "sessions", "migrate"). All problems are
// reported together.
func (c *Config) Validate(mode string) error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			add("server.port must be > 0 and <= 65535")
		}
		c.validateEngine(add)
		c.validateClassifier(add)
	case "interview", "replay":
		c.validateEngine(add)
		c.validateClassifier(add)
		if mode == "replay" && (c.Replay.Concurrency < 1 || c.Replay.Concurrency > 64) {
			add("replay.concurrency must be between 1 and 64")
		}
	case "sessions", "migrate":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
	c.validateStore(add)

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateEngine(add func(string, ...any)) {
	e := c.Engine
	if e.MaxQuestions < 1 {
		add("engine.max_questions must be >= 1")
	}
	if e.MinQuestions < 0 || e.MinQuestions > e.MaxQuestions {
		add("engine.min_questions must be between 0 and engine.max_questions")
	}
	if e.ConfidenceThreshold < 0 || e.ConfidenceThreshold > 10 {
		add("engine.confidence_threshold must be between 0 and 10")
	}
	if e.RelevanceThreshold < 0 || e.RelevanceThreshold > 10 {
		add("engine.relevance_threshold must be between 0 and 10")
	}
	if e.Alpha < 0 || e.Alpha >= 1 {
		add("engine.alpha must be in [0, 1)")
	}
	if e.MaxRecommendations < 1 {
		add("engine.max_recommendations must be >= 1")
	}
	if e.CommitRetries < 0 {
		add("engine.commit_retries must be >= 0")
	}
}

func (c *Config) validateClassifier(add func(string, ...any)) {
	cl := c.Classifier
	switch cl.Provider {
	case ProviderKeyword:
	case ProviderAnthropic:
		if c.Anthropic.Key == "" {
			add("anthropic.key is required for the anthropic classifier")
		}
	default:
		add("classifier.provider must be %q or %q", ProviderKeyword, ProviderAnthropic)
	}
	if cl.TimeoutSecs <= 0 {
		add("classifier.timeout_secs must be > 0")
	}
	if cl.RatePerSec < 0 {
		add("classifier.rate_per_sec must be >= 0")
	}
	if cl.MaxAttempts < 1 {
		add("classifier.max_attempts must be >= 1")
	}
	if cl.FailureThreshold < 1 {
		add("classifier.failure_threshold must be >= 1")
	}
}

func (c *Config) validateStore(add func(string, ...any)) {
	switch c.Store.Driver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			add("store.database_url is required for postgres")
		}
	default:
		add("store.driver must be one of sqlite, postgres, memory")
	}
	if c.Store.RetentionDays < 0 {
		add("store.retention_days must be >= 0")
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
