package config

import "time"

// Config is the complete tutorflow service configuration.
type Config struct {
	// Server holds HTTP server settings.
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Redis backs checkpoints and rate-limit records in distributed deployments.
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Store selects the checkpoint store backend.
	Store StoreConfig `yaml:"store" env:"STORE"`

	// Routing holds the confidence thresholds for branch selection.
	Routing RoutingConfig `yaml:"routing" env:"ROUTING"`

	// RateLimit holds the per-identity token bucket settings.
	RateLimit RateLimitConfig `yaml:"rate_limit" env:"RATE_LIMIT"`

	// Collaborator holds retry policy for external classification/generation.
	Collaborator CollaboratorConfig `yaml:"collaborator" env:"COLLABORATOR"`

	// Model configures the OpenAI-compatible backend the collaborators call.
	Model ModelConfig `yaml:"model" env:"MODEL"`

	// Log configures zap.
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry configures OpenTelemetry tracing.
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort     int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// RequestsPerSecond and Burst gate the HTTP surface per client IP.
	// This is transport protection, independent of the identity token bucket.
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	Burst             int     `yaml:"burst" env:"BURST"`
	// CORSAllowedOrigins is empty by default, which disables cross-origin
	// access entirely.
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	KeyPrefix    string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// StoreConfig selects the checkpoint store backend.
type StoreConfig struct {
	// Backend is one of: memory, redis, sqlite.
	Backend string `yaml:"backend" env:"BACKEND"`
	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH"`
	// CheckpointTTL bounds how long a suspended session stays resumable
	// on the redis backend. Zero keeps checkpoints forever.
	CheckpointTTL time.Duration `yaml:"checkpoint_ttl" env:"CHECKPOINT_TTL"`
}

// RoutingConfig holds confidence thresholds for the branch decision.
type RoutingConfig struct {
	// ConfidenceLow: below this the session halts for clarification.
	ConfidenceLow float64 `yaml:"confidence_low" env:"CONFIDENCE_LOW"`
	// ConfidenceHigh: at or above this (and unambiguous) teaching proceeds.
	ConfidenceHigh float64 `yaml:"confidence_high" env:"CONFIDENCE_HIGH"`
}

// RateLimitConfig holds per-identity token bucket settings.
type RateLimitConfig struct {
	FreeLimit int           `yaml:"free_limit" env:"FREE_LIMIT"`
	ProLimit  int           `yaml:"pro_limit" env:"PRO_LIMIT"`
	Window    time.Duration `yaml:"window" env:"WINDOW"`
	// FailOpen admits requests when the limiter store is unreachable.
	FailOpen bool `yaml:"fail_open" env:"FAIL_OPEN"`
}

// CollaboratorConfig holds retry policy for external model calls.
type CollaboratorConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
	InitialDelay time.Duration `yaml:"initial_delay" env:"INITIAL_DELAY"`
	MaxDelay     time.Duration `yaml:"max_delay" env:"MAX_DELAY"`
	Multiplier   float64       `yaml:"multiplier" env:"MULTIPLIER"`
}

// ModelConfig points the collaborators at an OpenAI-compatible API.
type ModelConfig struct {
	APIKey  string        `yaml:"api_key" env:"API_KEY"`
	BaseURL string        `yaml:"base_url" env:"BASE_URL"`
	Name    string        `yaml:"name" env:"NAME"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// LogConfig configures zap.
type LogConfig struct {
	// Level is one of: debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format is one of: json, console.
	Format string `yaml:"format" env:"FORMAT"`
	// OutputPaths defaults to stdout.
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// DefaultConfig returns the baseline configuration. YAML and environment
// overrides are layered on top by the Loader.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:          8080,
			MetricsPort:       9090,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      120 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			DB:           0,
			PoolSize:     10,
			MinIdleConns: 2,
			KeyPrefix:    "tutorflow:",
		},
		Store: StoreConfig{
			Backend:    "redis",
			SQLitePath: "tutorflow.db",
		},
		Routing: RoutingConfig{
			ConfidenceLow:  0.4,
			ConfidenceHigh: 0.75,
		},
		RateLimit: RateLimitConfig{
			FreeLimit: 5,
			ProLimit:  50,
			Window:    time.Minute,
			FailOpen:  true,
		},
		Collaborator: CollaboratorConfig{
			MaxAttempts:  3,
			InitialDelay: 2 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
		Model: ModelConfig{
			BaseURL: "https://api.openai.com",
			Name:    "gpt-4o-mini",
			Timeout: 60 * time.Second,
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "json",
			OutputPaths: []string{"stdout"},
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "tutorflow",
			SampleRate:  1.0,
		},
	}
}
