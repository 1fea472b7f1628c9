// Package config loads the process-level configuration surface (§6.5):
// signal-conditioning defaults, detector tuning, ingest limits, and
// external-service endpoints. Layering follows the teacher's unified-config
// approach: built-in defaults, then a YAML file, then environment
// overrides (via godotenv for local .env loading).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the process-level configuration surface (§6.5 table).
type Config struct {
	// Signal conditioning / detection constants.
	DefaultSamplingRateHz      float64 `yaml:"default_sampling_rate_hz"`
	DefaultThresholdFactor     float64 `yaml:"default_threshold_factor"`
	ActivatedThresholdFactor   float64 `yaml:"activated_threshold_factor"`
	DefaultMinDurationMS       float64 `yaml:"default_min_duration_ms"`
	DefaultSmoothingWindowMS   float64 `yaml:"default_smoothing_window_ms"`
	DefaultMVCThresholdPct     float64 `yaml:"default_mvc_threshold_pct"`
	DefaultDurationThresholdMS float64 `yaml:"default_duration_threshold_ms"`
	HighPassCutoffHz           float64 `yaml:"high_pass_cutoff_hz"`
	LowPassCutoffHz            float64 `yaml:"low_pass_cutoff_hz"`
	FilterOrder                int     `yaml:"filter_order"`
	MergeThresholdMS           float64 `yaml:"merge_threshold_ms"`
	RefractoryPeriodMS         float64 `yaml:"refractory_period_ms"`

	// Ingest surface.
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	IngestBucket   string `yaml:"ingest_bucket"`
	WebhookHMACKey string `yaml:"webhook_hmac_key"`

	// Worker pool / concurrency.
	WorkerCount int `yaml:"worker_count"`

	// External services.
	DatabaseURL          string `yaml:"database_url"`
	RedisURL             string `yaml:"redis_url"`
	ObjectStorageBaseURL string `yaml:"object_storage_base_url"`

	// Ambient stack.
	LogLevel       string `yaml:"log_level"`
	MetricsBackend string `yaml:"metrics_backend"` // prom | otel | noop
	TracingEnabled bool   `yaml:"tracing_enabled"`

	// Version bumps on every successful reload (§5 "shared resource policy").
	Version uint64 `yaml:"-"`
}

// Defaults returns the built-in process-level defaults (§6.5).
func Defaults() Config {
	return Config{
		DefaultSamplingRateHz:      1000,
		DefaultThresholdFactor:     0.10,
		ActivatedThresholdFactor:   0.05,
		DefaultMinDurationMS:       100,
		DefaultSmoothingWindowMS:   50,
		DefaultMVCThresholdPct:     75,
		DefaultDurationThresholdMS: 2000,
		HighPassCutoffHz:           20,
		LowPassCutoffHz:            500,
		FilterOrder:                4,
		MergeThresholdMS:           200,
		RefractoryPeriodMS:         50,

		MaxUploadBytes: 50 * 1024 * 1024,
		IngestBucket:   "emg-uploads",

		WorkerCount: 4,

		LogLevel:       "info",
		MetricsBackend: "noop",
		TracingEnabled: false,
	}
}

// Load layers a YAML file over the built-in defaults, then applies
// environment-variable overrides (loading a local .env file first if one
// is present, mirroring the teacher's local-dev workflow).
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// no file yet: defaults stand.
		default:
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	_ = godotenv.Load() // best-effort local .env overlay; absence is not an error

	applyEnvOverrides(&cfg)
	cfg.Version = 1
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("EMG_DATABASE_URL"); ok {
		cfg.DatabaseURL = v
	}
	if v, ok := os.LookupEnv("EMG_REDIS_URL"); ok {
		cfg.RedisURL = v
	}
	if v, ok := os.LookupEnv("EMG_OBJECT_STORAGE_BASE_URL"); ok {
		cfg.ObjectStorageBaseURL = v
	}
	if v, ok := os.LookupEnv("EMG_WEBHOOK_HMAC_KEY"); ok {
		cfg.WebhookHMACKey = v
	}
	if v, ok := os.LookupEnv("EMG_INGEST_BUCKET"); ok {
		cfg.IngestBucket = v
	}
	if v, ok := os.LookupEnv("EMG_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("EMG_METRICS_BACKEND"); ok {
		cfg.MetricsBackend = v
	}
	if v, ok := os.LookupEnv("EMG_WORKER_COUNT"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WorkerCount = n
		}
	}
	if v, ok := os.LookupEnv("EMG_MAX_UPLOAD_BYTES"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxUploadBytes = n
		}
	}
}

// Validate enforces the invariants that keep downstream components from
// receiving a nonsensical configuration snapshot.
func (c Config) Validate() error {
	if c.FilterOrder <= 0 {
		return fmt.Errorf("config: filter order must be positive, got %d", c.FilterOrder)
	}
	if c.HighPassCutoffHz <= 0 || c.LowPassCutoffHz <= c.HighPassCutoffHz {
		return fmt.Errorf("config: low-pass cutoff (%.1f) must exceed high-pass cutoff (%.1f)", c.LowPassCutoffHz, c.HighPassCutoffHz)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("config: max upload bytes must be positive, got %d", c.MaxUploadBytes)
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("config: worker count must be positive, got %d", c.WorkerCount)
	}
	return nil
}

// ReloadInterval is a poll interval for reloading when filesystem events
// are unavailable. Watcher does not use it: it reloads only on fsnotify
// events.
const ReloadInterval = 2 * time.Second
