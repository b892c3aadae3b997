package config

import (
	"testing"
	"time"
)

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	// Server timeouts / sizes (valid)
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"

	// Logging
	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")

	// App
	t.Setenv("DB_PATH", "db.sqlite")

	// Pipeline (use invalids for parse to fall back to defaults)
	t.Setenv("POOL_WORKERS", "8")
	t.Setenv("POOL_QUEUE_SIZE", "nope") // -> default 256
	t.Setenv("TASK_TIMEOUT", "45s")
	t.Setenv("TASK_MAX_ATTEMPTS", "5")
	t.Setenv("TASK_RETRY_BACKOFF", "1s")
	t.Setenv("TASK_RATE_RPS", "2.5")
	t.Setenv("TASK_RATE_BURST", "4")

	// Sweeps
	t.Setenv("SWEEP_INTERVAL", "30s")
	t.Setenv("MERGE_WINDOW", "10m")
	t.Setenv("AUTO_CONFIRM_TIMEOUT", "12h")
	t.Setenv("REPROCESS_LOOKBACK", "6h")
	t.Setenv("MESSAGE_RETENTION", "168h")
	t.Setenv("DAILY_SUMMARIES", "off")

	// OTEL
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Server
	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}

	// Logging
	if cfg.LogLevel != "warn" || !cfg.LogPretty {
		t.Fatalf("logging unexpected: %+v", cfg)
	}

	// App
	if cfg.DBPath != "db.sqlite" {
		t.Fatalf("app fields unexpected: %+v", cfg)
	}

	// Pipeline
	if cfg.Worker.Workers != 8 ||
		cfg.Worker.QueueSize != 256 ||
		cfg.Worker.TaskTimeout != 45*time.Second ||
		cfg.Worker.MaxAttempts != 5 ||
		cfg.Worker.RetryBackoff != time.Second ||
		cfg.Worker.RateRPS != 2.5 ||
		cfg.Worker.RateBurst != 4 {
		t.Fatalf("worker fields unexpected: %+v", cfg.Worker)
	}
	if cfg.Sweep.Interval != 30*time.Second ||
		cfg.Sweep.MergeWindow != 10*time.Minute ||
		cfg.Sweep.AutoConfirmTimeout != 12*time.Hour ||
		cfg.Sweep.ReprocessLookback != 6*time.Hour ||
		cfg.Sweep.MessageRetention != 168*time.Hour ||
		cfg.Sweep.DailySummaries {
		t.Fatalf("sweep fields unexpected: %+v", cfg.Sweep)
	}

	// OTEL
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure ||
		cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel fields unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DBPath != "orders.db" {
		t.Fatalf("DBPath default = %q", cfg.DBPath)
	}
	if cfg.Sweep.MergeWindow != 5*time.Minute {
		t.Fatalf("MergeWindow default = %v", cfg.Sweep.MergeWindow)
	}
	if cfg.Sweep.AutoConfirmTimeout != 24*time.Hour {
		t.Fatalf("AutoConfirmTimeout default = %v", cfg.Sweep.AutoConfirmTimeout)
	}
	if cfg.Sweep.MessageRetention != 30*24*time.Hour {
		t.Fatalf("MessageRetention default = %v", cfg.Sweep.MessageRetention)
	}
	if !cfg.Sweep.DailySummaries {
		t.Fatal("DailySummaries should default on")
	}
	if cfg.Worker.Workers != 4 || cfg.Worker.MaxAttempts != 3 {
		t.Fatalf("worker defaults unexpected: %+v", cfg.Worker)
	}
}

// --- validation failures ---

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  string
	}{
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"zero read timeout", "READ_TIMEOUT", "0s"},
		{"zero header bytes", "MAX_HEADER_BYTES", "0"},
		{"zero workers", "POOL_WORKERS", "0"},
		{"zero queue", "POOL_QUEUE_SIZE", "0"},
		{"zero task timeout", "TASK_TIMEOUT", "0s"},
		{"zero attempts", "TASK_MAX_ATTEMPTS", "0"},
		{"zero backoff", "TASK_RETRY_BACKOFF", "0s"},
		{"negative rps", "TASK_RATE_RPS", "-1"},
		{"zero burst", "TASK_RATE_BURST", "0"},
		{"zero sweep interval", "SWEEP_INTERVAL", "0s"},
		{"zero merge window", "MERGE_WINDOW", "0s"},
		{"zero auto confirm", "AUTO_CONFIRM_TIMEOUT", "0s"},
		{"zero lookback", "REPROCESS_LOOKBACK", "0s"},
		{"zero retention", "MESSAGE_RETENTION", "0s"},
		{"bad sample ratio", "OTEL_TRACES_SAMPLER_ARG", "1.5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() should fail with %s=%s", tc.key, tc.val)
			}
		})
	}
}

// --- helper parsing ---

func TestHelpers(t *testing.T) {
	t.Setenv("X_STR", "v")
	if getenv("X_STR", "d") != "v" || getenv("X_MISSING", "d") != "d" {
		t.Fatal("getenv")
	}

	t.Setenv("X_INT", "7")
	if getint("X_INT", 1) != 7 || getint("X_MISSING", 1) != 1 {
		t.Fatal("getint")
	}
	t.Setenv("X_INT_BAD", "seven")
	if getint("X_INT_BAD", 1) != 1 {
		t.Fatal("getint fallback")
	}

	t.Setenv("X_FLOAT", "2.5")
	if getfloat("X_FLOAT", 1) != 2.5 || getfloat("X_MISSING", 1) != 1 {
		t.Fatal("getfloat")
	}

	t.Setenv("X_DUR", "90s")
	if getdur("X_DUR", time.Second) != 90*time.Second || getdur("X_MISSING", time.Second) != time.Second {
		t.Fatal("getdur")
	}
	t.Setenv("X_DUR_BAD", "soon")
	if getdur("X_DUR_BAD", time.Second) != time.Second {
		t.Fatal("getdur fallback")
	}

	for v, want := range map[string]bool{"1": true, "on": true, "Yes": true, "0": false, "off": false, "maybe": true} {
		t.Setenv("X_BOOL", v)
		if getbool("X_BOOL", true) != want {
			t.Fatalf("getbool(%q) != %v", v, want)
		}
	}

	if got := splitCSV(" a, ,b ,"); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("splitCSV = %v", got)
	}
	if splitCSV("") != nil {
		t.Fatal("splitCSV empty")
	}
}
