package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"pulseanalytics/internal/analytics"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "PULSE"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Engine    EngineConfig    `yaml:"engine" envconfig:"ENGINE"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration.
// Port also reads the bare PORT variable when PULSE_SERVER_PORT is unset.
type ServerConfig struct {
	Port            int           `yaml:"port" split_words:"true"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" split_words:"true"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" split_words:"true"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" split_words:"true"`
	RequestTimeout  time.Duration `yaml:"request_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" split_words:"true"`
	EnableCORS     bool            `yaml:"enable_cors" split_words:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig allows Requests per Window for each client address.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled" split_words:"true"`
	Requests int           `yaml:"requests" split_words:"true"`
	Window   time.Duration `yaml:"window" split_words:"true"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" split_words:"true"`
	Output   string `yaml:"output" split_words:"true"`
	FilePath string `yaml:"file_path" split_words:"true"`
}

// EngineConfig mirrors analytics.Config with environment bindings.
type EngineConfig struct {
	Capacity           int     `yaml:"capacity" split_words:"true"`
	ReadyThreshold     int     `yaml:"ready_threshold" split_words:"true"`
	MinAnomalyBatch    int     `yaml:"min_anomaly_batch" split_words:"true"`
	ZThreshold         float64 `yaml:"z_threshold" split_words:"true"`
	AverageConfidence  float64 `yaml:"average_confidence" split_words:"true"`
	FallbackConfidence float64 `yaml:"fallback_confidence" split_words:"true"`
	FallbackMin        float64 `yaml:"fallback_min" split_words:"true"`
	FallbackMax        float64 `yaml:"fallback_max" split_words:"true"`
	AverageJitter      float64 `yaml:"average_jitter" split_words:"true"`
	ConfidenceDamping  float64 `yaml:"confidence_damping" split_words:"true"`
	Seed               uint64  `yaml:"seed" split_words:"true"`

	OutlierTrees         int     `yaml:"outlier_trees" split_words:"true"`
	OutlierSampleSize    int     `yaml:"outlier_sample_size" split_words:"true"`
	OutlierContamination float64 `yaml:"outlier_contamination" split_words:"true"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	Enabled           bool          `yaml:"enabled" split_words:"true"`
	ReadBufferSize    int           `yaml:"read_buffer_size" split_words:"true"`
	WriteBufferSize   int           `yaml:"write_buffer_size" split_words:"true"`
	PingPeriod        time.Duration `yaml:"ping_period" split_words:"true"`
	PongWait          time.Duration `yaml:"pong_wait" split_words:"true"`
	BroadcastInterval time.Duration `yaml:"broadcast_interval" split_words:"true"`
}

// TelemetryConfig selects the OpenTelemetry exporters.
type TelemetryConfig struct {
	Environment    string  `yaml:"environment" split_words:"true"`
	TraceExporter  string  `yaml:"trace_exporter" split_words:"true"`
	MetricExporter string  `yaml:"metric_exporter" split_words:"true"`
	SampleRatio    float64 `yaml:"sample_ratio" split_words:"true"`
}

// Load layers configuration: defaults, then the optional YAML file, then
// environment variables. Only variables that are actually set override
// earlier layers.
func Load() (*Config, error) {
	cfg := Default()

	if configFile := getConfigFilePath(); configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", configFile, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := applyBarePort(cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// applyBarePort honours the PORT variable set by container platforms.
// PULSE_SERVER_PORT takes precedence when both are set.
func applyBarePort(cfg *Config) error {
	if _, ok := os.LookupEnv(EnvPrefix + "_SERVER_PORT"); ok {
		return nil
	}
	value, ok := os.LookupEnv("PORT")
	if !ok || value == "" {
		return nil
	}
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("failed to parse PORT %q: %w", value, err)
	}
	cfg.Server.Port = port
	return nil
}

// loadFromFile overlays the YAML file at filePath onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// getConfigFilePath returns PULSE_CONFIG_FILE when set, otherwise the
// first config file found in the usual locations
func getConfigFilePath() string {
	if path := os.Getenv(EnvPrefix + "_CONFIG_FILE"); path != "" {
		return path
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return errors.New("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return errors.New("server write timeout must be positive")
	}

	if c.Server.MaxBodyBytes <= 0 {
		return errors.New("server max body bytes must be positive")
	}

	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return errors.New("at least one allowed origin must be specified")
	}

	if c.Security.RateLimit.Enabled {
		if c.Security.RateLimit.Requests <= 0 || c.Security.RateLimit.Window <= 0 {
			return fmt.Errorf("invalid rate limit: %d requests per %s",
				c.Security.RateLimit.Requests, c.Security.RateLimit.Window)
		}
	}

	if c.WebSocket.Enabled && c.WebSocket.BroadcastInterval <= 0 {
		return errors.New("websocket broadcast interval must be positive")
	}

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		return fmt.Errorf("invalid logging output: %q", c.Logging.Output)
	}

	return c.Engine.Analytics().Validate()
}

// Analytics converts the engine section into the analytics engine config.
func (e EngineConfig) Analytics() analytics.Config {
	return analytics.Config{
		Capacity:           e.Capacity,
		ReadyThreshold:     e.ReadyThreshold,
		MinAnomalyBatch:    e.MinAnomalyBatch,
		ZThreshold:         e.ZThreshold,
		AverageConfidence:  e.AverageConfidence,
		FallbackConfidence: e.FallbackConfidence,
		FallbackMin:        e.FallbackMin,
		FallbackMax:        e.FallbackMax,
		AverageJitter:      e.AverageJitter,
		ConfidenceDamping:  e.ConfidenceDamping,
		Seed:               e.Seed,
		Outlier: analytics.OutlierConfig{
			NumTrees:      e.OutlierTrees,
			SampleSize:    e.OutlierSampleSize,
			Contamination: e.OutlierContamination,
			Seed:          e.Seed,
		},
	}
}

// Default returns default configuration
func Default() *Config {
	engine := analytics.DefaultConfig()

	return &Config{
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			MaxBodyBytes:    1 << 20,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"*"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled:  true,
				Requests: 100,
				Window:   15 * time.Minute,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/app.log",
		},
		Engine: EngineConfig{
			Capacity:             engine.Capacity,
			ReadyThreshold:       engine.ReadyThreshold,
			MinAnomalyBatch:      engine.MinAnomalyBatch,
			ZThreshold:           engine.ZThreshold,
			AverageConfidence:    engine.AverageConfidence,
			FallbackConfidence:   engine.FallbackConfidence,
			FallbackMin:          engine.FallbackMin,
			FallbackMax:          engine.FallbackMax,
			AverageJitter:        engine.AverageJitter,
			ConfidenceDamping:    engine.ConfidenceDamping,
			Seed:                 engine.Seed,
			OutlierTrees:         engine.Outlier.NumTrees,
			OutlierSampleSize:    engine.Outlier.SampleSize,
			OutlierContamination: engine.Outlier.Contamination,
		},
		WebSocket: WebSocketConfig{
			Enabled:           true,
			ReadBufferSize:    1024,
			WriteBufferSize:   1024,
			PingPeriod:        30 * time.Second,
			PongWait:          60 * time.Second,
			BroadcastInterval: 3 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
	}
}
