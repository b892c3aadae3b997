// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes pipeline settings
// such as worker sizing, retry and sweep policy, database paths, logging,
// and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-order-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// CORSConfig defines Cross-Origin Resource Sharing settings for the
// summary read endpoints (the operator dashboard is a browser client).
type CORSConfig struct {
	AllowedOrigins []string // CORS_ALLOWED_ORIGINS, comma-separated; empty = allow all
}

// WorkerConfig defines task pool sizing and retry policy.
type WorkerConfig struct {
	Workers      int           // goroutines per queue
	QueueSize    int           // buffered slots per queue
	TaskTimeout  time.Duration // budget for a single execution attempt
	MaxAttempts  int           // executions per task, first try included
	RetryBackoff time.Duration // base delay between retries
	RateRPS      float64       // dispatch throttle, tokens per second (0 disables)
	RateBurst    int           // throttle bucket size
}

// SweepConfig defines the periodic sweep cadence and policy knobs.
type SweepConfig struct {
	Interval           time.Duration // time between sweep rounds
	JobTimeout         time.Duration // budget per sweep job
	MergeWindow        time.Duration // pending orders within this window merge
	AutoConfirmTimeout time.Duration // pending longer than this auto-confirms
	ReprocessLookback  time.Duration // how far back to look for stuck messages
	MessageRetention   time.Duration // processed non-order chatter kept this long
	DailySummaries     bool          // persist a daily summary snapshot
}

// Config holds all configuration values for the application.
type Config struct {
	// Ops HTTP server (health, metrics, task status)
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// App
	DBPath string // SQLite path

	// HTTP posture
	CORS CORSConfig

	// Pipeline
	Worker WorkerConfig
	Sweep  SweepConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Ops server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// App
		DBPath: getenv("DB_PATH", "orders.db"),

		// HTTP posture
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},

		// Pipeline
		Worker: WorkerConfig{
			Workers:      getint("POOL_WORKERS", 4),
			QueueSize:    getint("POOL_QUEUE_SIZE", 256),
			TaskTimeout:  getdur("TASK_TIMEOUT", 30*time.Second),
			MaxAttempts:  getint("TASK_MAX_ATTEMPTS", 3),
			RetryBackoff: getdur("TASK_RETRY_BACKOFF", 500*time.Millisecond),
			RateRPS:      getfloat("TASK_RATE_RPS", 0),
			RateBurst:    getint("TASK_RATE_BURST", 1),
		},
		Sweep: SweepConfig{
			Interval:           getdur("SWEEP_INTERVAL", time.Minute),
			JobTimeout:         getdur("SWEEP_JOB_TIMEOUT", 30*time.Second),
			MergeWindow:        getdur("MERGE_WINDOW", 5*time.Minute),
			AutoConfirmTimeout: getdur("AUTO_CONFIRM_TIMEOUT", 24*time.Hour),
			ReprocessLookback:  getdur("REPROCESS_LOOKBACK", 24*time.Hour),
			MessageRetention:   getdur("MESSAGE_RETENTION", 30*24*time.Hour),
			DailySummaries:     getbool("DAILY_SUMMARIES", true),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-order-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.Worker.Workers < 1 {
		return cfg, errors.New("POOL_WORKERS must be >= 1")
	}
	if cfg.Worker.QueueSize < 1 {
		return cfg, errors.New("POOL_QUEUE_SIZE must be >= 1")
	}
	if cfg.Worker.TaskTimeout <= 0 {
		return cfg, errors.New("TASK_TIMEOUT must be > 0")
	}
	if cfg.Worker.MaxAttempts < 1 {
		return cfg, errors.New("TASK_MAX_ATTEMPTS must be >= 1")
	}
	if cfg.Worker.RetryBackoff <= 0 {
		return cfg, errors.New("TASK_RETRY_BACKOFF must be > 0")
	}
	if cfg.Worker.RateRPS < 0 {
		return cfg, errors.New("TASK_RATE_RPS must be >= 0")
	}
	if cfg.Worker.RateBurst < 1 {
		return cfg, errors.New("TASK_RATE_BURST must be >= 1")
	}
	if cfg.Sweep.Interval <= 0 || cfg.Sweep.JobTimeout <= 0 {
		return cfg, errors.New("sweep interval and job timeout must be > 0")
	}
	if cfg.Sweep.MergeWindow <= 0 {
		return cfg, errors.New("MERGE_WINDOW must be > 0")
	}
	if cfg.Sweep.AutoConfirmTimeout <= 0 {
		return cfg, errors.New("AUTO_CONFIRM_TIMEOUT must be > 0")
	}
	if cfg.Sweep.ReprocessLookback <= 0 {
		return cfg, errors.New("REPROCESS_LOOKBACK must be > 0")
	}
	if cfg.Sweep.MessageRetention <= 0 {
		return cfg, errors.New("MESSAGE_RETENTION must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
