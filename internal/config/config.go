package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is constructed once at
// process start and passed by reference; no component reads process
// environment state directly.
type Config struct {
	Intake    IntakeConfig    `yaml:"intake" mapstructure:"intake"`
	DocAI     DocAIConfig     `yaml:"docai" mapstructure:"docai"`
	Vision    VisionConfig    `yaml:"vision" mapstructure:"vision"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// IntakeConfig bounds document intake.
type IntakeConfig struct {
	MaxSizeBytes int64    `yaml:"max_size_bytes" mapstructure:"max_size_bytes"`
	AllowedTypes []string `yaml:"allowed_types" mapstructure:"allowed_types"`
}

// DocAIConfig holds the tier-1 structured document extractor settings.
type DocAIConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	ProcessorID string `yaml:"processor_id" mapstructure:"processor_id"`
	ProjectID   string `yaml:"project_id" mapstructure:"project_id"`
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	RatePerSec  int    `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// VisionConfig holds the tier-2 OCR provider settings.
type VisionConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	RatePerSec int    `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// AnthropicConfig holds the tier-3 generative interpreter settings.
type AnthropicConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	Model      string `yaml:"model" mapstructure:"model"`
	MaxTokens  int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	RatePerSec int    `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// PipelineConfig configures run-level behavior. Thresholds and weights are
// policy values, tunable without touching orchestration logic.
type PipelineConfig struct {
	DeadlineSecs       int                `yaml:"deadline_secs" mapstructure:"deadline_secs"`
	PolicyPath         string             `yaml:"policy_path" mapstructure:"policy_path"`
	RaceAdjacentTiers  bool               `yaml:"race_adjacent_tiers" mapstructure:"race_adjacent_tiers"`
	LowConfidenceFloor float64            `yaml:"low_confidence_floor" mapstructure:"low_confidence_floor"`
	SectionWeights     map[string]float64 `yaml:"section_weights" mapstructure:"section_weights"`
}

// ServerConfig configures the upload ingress.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("CREDITPARSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("intake.max_size_bytes", int64(20*1024*1024))
	v.SetDefault("intake.allowed_types", []string{
		"application/pdf", "image/png", "image/jpeg", "image/tiff", "text/plain",
	})
	v.SetDefault("docai.base_url", "https://documentai.googleapis.com/v1")
	v.SetDefault("docai.enabled", true)
	v.SetDefault("docai.rate_per_sec", 5)
	v.SetDefault("vision.base_url", "https://vision.googleapis.com/v1")
	v.SetDefault("vision.enabled", true)
	v.SetDefault("vision.rate_per_sec", 10)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.enabled", true)
	v.SetDefault("anthropic.rate_per_sec", 2)
	v.SetDefault("pipeline.deadline_secs", 90)
	v.SetDefault("pipeline.policy_path", "")
	v.SetDefault("pipeline.race_adjacent_tiers", false)
	v.SetDefault("pipeline.low_confidence_floor", 40.0)
	v.SetDefault("pipeline.section_weights", map[string]float64{
		"personal_info":  3.0,
		"credit_scores":  3.0,
		"accounts":       2.0,
		"negative_items": 2.0,
		"inquiries":      1.0,
		"public_records": 1.0,
	})

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
