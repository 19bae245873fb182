// Package config loads application configuration from file and
// environment and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Worker    WorkerConfig    `yaml:"worker" mapstructure:"worker"`
	Dedup     DedupConfig     `yaml:"dedup" mapstructure:"dedup"`
	Trust     TrustConfig     `yaml:"trust" mapstructure:"trust"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Probe     ProbeConfig     `yaml:"probe" mapstructure:"probe"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// WorkerConfig configures queue worker loops.
type WorkerConfig struct {
	BatchSize      int `yaml:"batch_size" mapstructure:"batch_size"`
	PollIntervalMs int `yaml:"poll_interval_ms" mapstructure:"poll_interval_ms"`
}

// DedupConfig configures the deduplication sweep.
type DedupConfig struct {
	WindowHours       int     `yaml:"window_hours" mapstructure:"window_hours"`
	JaccardThreshold  float64 `yaml:"jaccard_threshold" mapstructure:"jaccard_threshold"`
	MaxParallelGroups int     `yaml:"max_parallel_groups" mapstructure:"max_parallel_groups"`
}

// TrustConfig configures the trust score engine.
type TrustConfig struct {
	Scheme      string `yaml:"scheme" mapstructure:"scheme"` // "signal" or "completeness"
	WeightsFile string `yaml:"weights_file" mapstructure:"weights_file"`
}

// AnthropicConfig holds Anthropic API settings for the quality analyzer.
// The client is only constructed when Key is present.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ProbeConfig configures the website prober.
type ProbeConfig struct {
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// ServerConfig configures the HTTP status server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("TRUSTPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every key needs one registered, even if empty, or
	// AutomaticEnv overrides never reach Unmarshal.
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("worker.batch_size", 10)
	v.SetDefault("worker.poll_interval_ms", 5000)
	v.SetDefault("dedup.window_hours", 24)
	v.SetDefault("dedup.jaccard_threshold", 0.66)
	v.SetDefault("dedup.max_parallel_groups", 4)
	v.SetDefault("trust.scheme", "signal")
	v.SetDefault("trust.weights_file", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("probe.timeout_secs", 15)
	v.SetDefault("probe.requests_per_second", 2)
	v.SetDefault("server.port", 8080)
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
