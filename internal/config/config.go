// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes daemon settings
// such as gateway timeouts, logging, the remote API endpoint, the local
// database path, poll cadence, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings for the local
// gateway (the RN dev server and webview origins).
type CORSConfig struct {
	AllowedOrigins []string
}

// RemoteConfig defines how to reach the coaching backend.
type RemoteConfig struct {
	BaseURL   string        // API_BASE_URL (e.g. "https://api.example.com")
	Token     string        // API_TOKEN (bearer)
	Timeout   time.Duration // API_TIMEOUT per request
	RateRPS   float64       // API_RATE_RPS client-side tokens per second
	RateBurst int           // API_RATE_BURST bucket size
}

// PollConfig defines the adaptive poll cadence.
type PollConfig struct {
	Active     time.Duration // POLL_ACTIVE    (recently active)
	IdleSlow   time.Duration // POLL_IDLE      (idle past IdleAfter)
	Background time.Duration // POLL_BACKGROUND
	IdleAfter  time.Duration // POLL_IDLE_AFTER
	WindowCap  int           // CHAT_WINDOW_CAP messages kept per conversation
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "coach-sync")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the daemon.
type Config struct {
	// Gateway server
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
	DBPath string // SQLite path for the local cache

	Remote RemoteConfig
	Poll   PollConfig
	CORS   CORSConfig
	OTEL   OTELConfig
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
		// Gateway server
		Port:              getenv("PORT", "8787"),
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
		DBPath: getenv("DB_PATH", "coach-sync.db"),

		Remote: RemoteConfig{
			BaseURL:   strings.TrimRight(getenv("API_BASE_URL", ""), "/"),
			Token:     getenv("API_TOKEN", ""),
			Timeout:   getdur("API_TIMEOUT", 15*time.Second),
			RateRPS:   getfloat("API_RATE_RPS", 10.0),
			RateBurst: getint("API_RATE_BURST", 20),
		},

		Poll: PollConfig{
			Active:     getdur("POLL_ACTIVE", 2*time.Second),
			IdleSlow:   getdur("POLL_IDLE", 10*time.Second),
			Background: getdur("POLL_BACKGROUND", 60*time.Second),
			IdleAfter:  getdur("POLL_IDLE_AFTER", 60*time.Second),
			WindowCap:  getint("CHAT_WINDOW_CAP", 100),
		},

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "coach-sync"),
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
	if strings.TrimSpace(cfg.Remote.BaseURL) == "" {
		return cfg, errors.New("API_BASE_URL must not be empty")
	}
	if cfg.Remote.Timeout <= 0 {
		return cfg, errors.New("API_TIMEOUT must be > 0")
	}
	if cfg.Remote.RateRPS < 0 {
		return cfg, errors.New("API_RATE_RPS must be >= 0")
	}
	if cfg.Remote.RateBurst < 1 {
		return cfg, errors.New("API_RATE_BURST must be >= 1")
	}
	if cfg.Poll.Active <= 0 || cfg.Poll.IdleSlow <= 0 || cfg.Poll.Background <= 0 || cfg.Poll.IdleAfter <= 0 {
		return cfg, errors.New("poll intervals must be positive durations")
	}
	if cfg.Poll.Active > cfg.Poll.IdleSlow || cfg.Poll.IdleSlow > cfg.Poll.Background {
		return cfg, errors.New("poll intervals must satisfy POLL_ACTIVE <= POLL_IDLE <= POLL_BACKGROUND")
	}
	if cfg.Poll.WindowCap < 1 {
		return cfg, errors.New("CHAT_WINDOW_CAP must be >= 1")
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
