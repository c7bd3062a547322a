// Package config loads the scanner settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/bdougie/framematch/internal/histogram"
	"github.com/bdougie/framematch/internal/storage"
)

// ErrInvalid marks a configuration that cannot be used to start a scan
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	ExamplesDir  string  `env:"FRAMEMATCH_EXAMPLES"      envDefault:"/examples"`
	OutputDir    string  `env:"FRAMEMATCH_OUTPUT"        envDefault:"/output"`
	Method       string  `env:"FRAMEMATCH_METHOD"        envDefault:"chi-squared"`
	Cutoff       float64 `env:"FRAMEMATCH_CUTOFF"        envDefault:"2.0"`
	OutputFormat string  `env:"FRAMEMATCH_OUTPUT_FORMAT" envDefault:"png"`

	Width          int   `env:"FRAMEMATCH_WIDTH"           envDefault:"640"`
	Height         int   `env:"FRAMEMATCH_HEIGHT"          envDefault:"480"`
	ConfirmFrames  int   `env:"FRAMEMATCH_CONFIRM_FRAMES"  envDefault:"5"`
	CooldownFrames int   `env:"FRAMEMATCH_COOLDOWN_FRAMES" envDefault:"8"`
	SampleEvery    int64 `env:"FRAMEMATCH_SAMPLE_EVERY"    envDefault:"1000"`

	FFmpegBinary string `env:"FFMPEG_BINARY" envDefault:"ffmpeg"`

	DatabaseURL string `env:"DATABASE_URL"`
	InitSchema  bool   `env:"DATABASE_INIT_SCHEMA" envDefault:"true"`

	MinIOEndpoint  string `env:"MINIO_ENDPOINT"`
	MinIOAccessKey string `env:"MINIO_ACCESS_KEY" envDefault:"minioadmin"`
	MinIOSecretKey string `env:"MINIO_SECRET_KEY" envDefault:"minioadmin"`
	MinIOUseSSL    bool   `env:"MINIO_USE_SSL"    envDefault:"false"`
	MinIOBucket    string `env:"MINIO_BUCKET"     envDefault:"framematch"`

	RabbitMQURL      string `env:"RABBITMQ_URL"`
	RabbitMQExchange string `env:"RABBITMQ_EXCHANGE" envDefault:"framematch.events"`

	Describe    bool   `env:"FRAMEMATCH_DESCRIBE" envDefault:"false"`
	OllamaURL   string `env:"OLLAMA_URL"          envDefault:"http://localhost"`
	OllamaPort  int    `env:"OLLAMA_PORT"         envDefault:"11434"`
	OllamaModel string `env:"OLLAMA_MODEL"        envDefault:"llama3.2-vision:11b"`

	MetricsAddr string `env:"METRICS_ADDR"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads the configuration from the environment, applying defaults
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every value the scan depends on
func (c *Config) Validate() error {
	var errs []error
	if _, err := histogram.ParseMethod(c.Method); err != nil {
		errs = append(errs, err)
	}
	if c.ExamplesDir == "" {
		errs = append(errs, errors.New("examples directory is required"))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("frame size %dx%d must be positive", c.Width, c.Height))
	}
	if c.ConfirmFrames <= 0 {
		errs = append(errs, fmt.Errorf("confirm frames %d must be positive", c.ConfirmFrames))
	}
	if c.CooldownFrames < 0 {
		errs = append(errs, fmt.Errorf("cooldown frames %d must not be negative", c.CooldownFrames))
	}
	if c.SampleEvery < 0 {
		errs = append(errs, fmt.Errorf("sample interval %d must not be negative", c.SampleEvery))
	}
	if !storage.ValidFormat(c.OutputFormat) {
		errs = append(errs, fmt.Errorf("unsupported output format '%s'", c.OutputFormat))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// ParseLevel maps a level name to its slog level
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level '%s'", name)
}
