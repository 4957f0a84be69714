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
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Evidence  EvidenceConfig  `yaml:"evidence" mapstructure:"evidence"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // postgres | sqlite
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key             string  `yaml:"key" mapstructure:"key"`
	ExtractionModel string  `yaml:"extraction_model" mapstructure:"extraction_model"`
	EvaluationModel string  `yaml:"evaluation_model" mapstructure:"evaluation_model"`
	MaxRetries      int     `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerMin  float64 `yaml:"requests_per_min" mapstructure:"requests_per_min"`
}

// ScoringConfig configures the scoring pipeline.
type ScoringConfig struct {
	TenantID           string `yaml:"tenant_id" mapstructure:"tenant_id"`
	ChecklistPath      string `yaml:"checklist_path" mapstructure:"checklist_path"`
	PillarConcurrency  int    `yaml:"pillar_concurrency" mapstructure:"pillar_concurrency"`
}

// EvidenceConfig configures evidence selection thresholds.
type EvidenceConfig struct {
	HighConfidence float64 `yaml:"high_confidence" mapstructure:"high_confidence"`
	LowConfidence  float64 `yaml:"low_confidence" mapstructure:"low_confidence"`
	MinChunks      int     `yaml:"min_chunks" mapstructure:"min_chunks"`
}

// ServerConfig configures the progress/score server.
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
	v.SetEnvPrefix("DILIGENCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.extraction_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.evaluation_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_retries", 3)
	v.SetDefault("anthropic.requests_per_min", 50)
	v.SetDefault("scoring.tenant_id", "default")
	v.SetDefault("scoring.pillar_concurrency", 1)
	v.SetDefault("evidence.high_confidence", 0.7)
	v.SetDefault("evidence.low_confidence", 0.4)
	v.SetDefault("evidence.min_chunks", 30)

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
