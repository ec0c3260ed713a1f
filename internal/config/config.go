package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/CollComm/werewolf-sign/internal/analyzer"
	"github.com/CollComm/werewolf-sign/internal/classifier"
	"github.com/CollComm/werewolf-sign/internal/extractor"
	"github.com/CollComm/werewolf-sign/internal/logging"
	"github.com/CollComm/werewolf-sign/internal/taxonomy"
)

// Config is read once at process start and never changes afterwards
type Config struct {
	Port            int           `env:"PORT"             envDefault:"3001"`
	FrontendURLs    []string      `env:"FRONTEND_URL"     envDefault:"http://localhost:3000" envSeparator:","`
	UploadDir       string        `env:"TEMP_UPLOAD_DIR"  envDefault:"uploads"`
	MaxUploadBytes  int64         `env:"MAX_UPLOAD_BYTES" envDefault:"209715200"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	FrameInterval float64       `env:"FRAME_INTERVAL"        envDefault:"1"`
	MaxFrames     int           `env:"MAX_FRAMES_TO_PROCESS" envDefault:"30"`
	FFmpegPath    string        `env:"FFMPEG_PATH"           envDefault:"ffmpeg"`
	ProbeTimeout  time.Duration `env:"FFPROBE_TIMEOUT"       envDefault:"10s"`

	ClassifierBackend string        `env:"CLASSIFIER_BACKEND"         envDefault:"anthropic"`
	AnthropicAPIKey   string        `env:"ANTHROPIC_API_KEY"`
	AnthropicModel    string        `env:"ANTHROPIC_MODEL"            envDefault:"claude-3-5-sonnet-20240620"`
	OllamaModel       string        `env:"OLLAMA_MODEL"               envDefault:"llama3.2-vision:11b"`
	MaxTokens         int           `env:"CLASSIFIER_MAX_TOKENS"      envDefault:"1000"`
	ClassifierTimeout time.Duration `env:"CLASSIFIER_TIMEOUT"         envDefault:"60s"`
	MaxRetries        int           `env:"CLASSIFIER_MAX_RETRIES"     envDefault:"0"`
	MaxConcurrent     int64         `env:"CLASSIFIER_MAX_CONCURRENCY" envDefault:"4"`
	RatePerSecond     float64       `env:"CLASSIFIER_RPS"             envDefault:"0"`
	RateBurst         int           `env:"CLASSIFIER_BURST"           envDefault:"1"`
	StrictLabels      bool          `env:"STRICT_LABELS"              envDefault:"true"`

	Workers           int           `env:"CLASSIFY_WORKERS"              envDefault:"1"`
	FailurePolicy     string        `env:"CLASSIFICATION_FAILURE_POLICY" envDefault:"isolate"`
	DedupFrames       bool          `env:"DEDUP_FRAMES"                  envDefault:"true"`
	InvocationTimeout time.Duration `env:"INVOCATION_TIMEOUT"            envDefault:"10m"`

	TaxonomyFile        string `env:"TAXONOMY_FILE"`
	TaxonomyDatabaseURL string `env:"TAXONOMY_DATABASE_URL"`
	TaxonomyVersion     string `env:"TAXONOMY_VERSION"`

	AWSRegion      string `env:"AWS_REGION"`
	S3UsePathStyle bool   `env:"S3_USE_PATH_STYLE" envDefault:"false"`

	LogLevel        string `env:"LOG_LEVEL"        envDefault:"info"`
	LogFile         string `env:"LOG_FILE"`
	TracingEndpoint string `env:"TRACING_ENDPOINT"`
}

// Load reads an optional .env file and then the environment, and validates the result
func Load() (*Config, error) {
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse is Load without validation, for callers that override fields first
func Parse() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidatePublish checks only what publishing a taxonomy needs
func (c *Config) ValidatePublish() error {
	var errs []error
	if c.TaxonomyDatabaseURL == "" {
		errs = append(errs, errors.New("TAXONOMY_DATABASE_URL is required to publish"))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	return errors.Join(errs...)
}

// Validate rejects settings the pipeline cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.FrameInterval <= 0 {
		errs = append(errs, fmt.Errorf("FRAME_INTERVAL must be positive, got %v", c.FrameInterval))
	}
	if c.MaxFrames < 1 || c.MaxFrames > 9999 {
		errs = append(errs, fmt.Errorf("MAX_FRAMES_TO_PROCESS must be between 1 and 9999, got %d", c.MaxFrames))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("CLASSIFY_WORKERS must be at least 1, got %d", c.Workers))
	}
	if c.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("CLASSIFIER_MAX_CONCURRENCY must be at least 1, got %d", c.MaxConcurrent))
	}
	if c.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("CLASSIFIER_MAX_TOKENS must be at least 1, got %d", c.MaxTokens))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("CLASSIFIER_MAX_RETRIES must not be negative, got %d", c.MaxRetries))
	}
	if c.UploadDir == "" {
		errs = append(errs, errors.New("TEMP_UPLOAD_DIR is required"))
	}
	if _, err := analyzer.ParseFailurePolicy(c.FailurePolicy); err != nil {
		errs = append(errs, fmt.Errorf("CLASSIFICATION_FAILURE_POLICY: %w", err))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	switch c.ClassifierBackend {
	case classifier.BackendAnthropic:
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required for the anthropic backend"))
		}
	case classifier.BackendOllama:
	default:
		errs = append(errs, fmt.Errorf("CLASSIFIER_BACKEND must be %q or %q, got %q",
			classifier.BackendAnthropic, classifier.BackendOllama, c.ClassifierBackend))
	}

	return errors.Join(errs...)
}

// ExtractorOptions returns the frame sampling settings
func (c *Config) ExtractorOptions() extractor.Options {
	return extractor.Options{
		FFmpegPath:   c.FFmpegPath,
		Interval:     c.FrameInterval,
		MaxFrames:    c.MaxFrames,
		ProbeTimeout: c.ProbeTimeout,
	}
}

// ClassifierConfig returns the classifier backend and limit settings
func (c *Config) ClassifierConfig() classifier.Config {
	return classifier.Config{
		Backend:         c.ClassifierBackend,
		AnthropicAPIKey: c.AnthropicAPIKey,
		AnthropicModel:  c.AnthropicModel,
		OllamaModel:     c.OllamaModel,
		MaxTokens:       c.MaxTokens,
		Timeout:         c.ClassifierTimeout,
		StrictLabels:    c.StrictLabels,
		Limits: classifier.LimitOptions{
			MaxConcurrent: c.MaxConcurrent,
			RatePerSecond: c.RatePerSecond,
			Burst:         c.RateBurst,
			Timeout:       c.ClassifierTimeout,
			MaxRetries:    c.MaxRetries,
		},
	}
}

// ProcessorOptions returns the orchestrator settings
func (c *Config) ProcessorOptions() analyzer.Options {
	policy, _ := analyzer.ParseFailurePolicy(c.FailurePolicy)
	return analyzer.Options{
		Workers:           c.Workers,
		FailurePolicy:     policy,
		DedupFrames:       c.DedupFrames,
		InvocationTimeout: c.InvocationTimeout,
	}
}

// TaxonomySource returns where the gesture taxonomy is loaded from
func (c *Config) TaxonomySource() taxonomy.Source {
	return taxonomy.Source{
		DatabaseURL: c.TaxonomyDatabaseURL,
		Version:     c.TaxonomyVersion,
		File:        c.TaxonomyFile,
	}
}

// LoggingOptions returns the logger settings
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{Level: c.LogLevel, File: c.LogFile}
}
