// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Node      NodeConfig      `mapstructure:"node"`
	Explorer  ExplorerConfig  `mapstructure:"explorer"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Health    HealthConfig    `mapstructure:"health"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// NodeConfig holds the Substrate node session settings.
type NodeConfig struct {
	Endpoint           string        `mapstructure:"endpoint"`
	DialTimeout        time.Duration `mapstructure:"dial_timeout"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	PingInterval       time.Duration `mapstructure:"ping_interval"`
	MaxMessageSize     int64         `mapstructure:"max_message_size"`
	RequestsPerSecond  float64       `mapstructure:"requests_per_second"`
	Burst              int           `mapstructure:"burst"`
	SubscriptionBuffer int           `mapstructure:"subscription_buffer"`
	MaxReconnects      int           `mapstructure:"max_reconnects"` // 0 = retry forever
	InitialBackoff     time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff         time.Duration `mapstructure:"max_backoff"`
}

// ExplorerConfig holds explorer behaviour settings.
type ExplorerConfig struct {
	RecentHeads int  `mapstructure:"recent_heads"`
	TUIMode     bool `mapstructure:"-"` // Set at runtime, not from config file
}

// HTTPConfig holds the explorer API server settings.
type HTTPConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// HealthConfig holds the health server settings.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	ServiceName     string  `mapstructure:"service_name"`
	TraceExporter   string  `mapstructure:"trace_exporter"` // zipkin, otlp-grpc, otlp-http, console, none
	SampleRatio     float64 `mapstructure:"sample_ratio"`
	MetricsExporter string  `mapstructure:"metrics_exporter"` // prometheus, otlp
	OTLPEndpoint    string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders     string  `mapstructure:"otlp_headers"` // k=v,k2=v2
	OTLPInsecure    bool    `mapstructure:"otlp_insecure"`
	PrometheusPort  int     `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("EXPLORER")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "EXPLORER_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "EXPLORER_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "EXPLORER_LOG_LEVEL", "LOG_LEVEL")

	// Node
	v.BindEnv("node.endpoint", "EXPLORER_NODE_ENDPOINT", "SUBSTRATE_WS_URL")
	v.BindEnv("node.request_timeout", "EXPLORER_NODE_REQUEST_TIMEOUT")
	v.BindEnv("node.requests_per_second", "EXPLORER_NODE_RPS")
	v.BindEnv("node.max_reconnects", "EXPLORER_NODE_MAX_RECONNECTS")

	// HTTP
	v.BindEnv("http.enabled", "EXPLORER_HTTP_ENABLED")
	v.BindEnv("http.addr", "EXPLORER_HTTP_ADDR")

	// Health
	v.BindEnv("health.port", "EXPLORER_HEALTH_PORT")

	// Telemetry
	v.BindEnv("telemetry.enabled", "EXPLORER_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "EXPLORER_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "EXPLORER_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.otlp_headers", "EXPLORER_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
	v.BindEnv("telemetry.trace_exporter", "EXPLORER_OTEL_TRACE_EXPORTER")
	v.BindEnv("telemetry.metrics_exporter", "EXPLORER_OTEL_METRICS_EXPORTER")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "substrate-explorer")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Node defaults
	v.SetDefault("node.endpoint", "ws://127.0.0.1:9944")
	v.SetDefault("node.dial_timeout", "10s")
	v.SetDefault("node.request_timeout", "30s")
	v.SetDefault("node.ping_interval", "30s")
	v.SetDefault("node.max_message_size", 32<<20)
	v.SetDefault("node.requests_per_second", 0) // unlimited
	v.SetDefault("node.burst", 10)
	v.SetDefault("node.subscription_buffer", 20000)
	v.SetDefault("node.max_reconnects", 0)
	v.SetDefault("node.initial_backoff", "1s")
	v.SetDefault("node.max_backoff", "30s")

	// Explorer defaults
	v.SetDefault("explorer.recent_heads", 10)

	// HTTP defaults
	v.SetDefault("http.enabled", true)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "30s")

	// Health defaults
	v.SetDefault("health.enabled", true)
	v.SetDefault("health.port", 8081)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "substrate-explorer")
	v.SetDefault("telemetry.trace_exporter", "zipkin")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.metrics_exporter", "prometheus")
	v.SetDefault("telemetry.otlp_endpoint", "http://localhost:9411/api/v2/spans")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	ep := c.Node.Endpoint
	if ep == "" {
		return fmt.Errorf("node.endpoint is required")
	}
	if !strings.HasPrefix(ep, "ws://") && !strings.HasPrefix(ep, "wss://") {
		return fmt.Errorf("node.endpoint must be a ws:// or wss:// URL: %s", ep)
	}
	if c.Node.MaxReconnects < 0 {
		return fmt.Errorf("node.max_reconnects cannot be negative")
	}
	if c.Node.InitialBackoff <= 0 || c.Node.MaxBackoff < c.Node.InitialBackoff {
		return fmt.Errorf("invalid node backoff: initial %s, max %s", c.Node.InitialBackoff, c.Node.MaxBackoff)
	}
	if c.Node.SubscriptionBuffer < 1 {
		return fmt.Errorf("node.subscription_buffer must be positive")
	}
	if c.Explorer.RecentHeads < 1 {
		return fmt.Errorf("explorer.recent_heads must be positive")
	}
	if c.HTTP.Enabled && c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required when the API is enabled")
	}
	return nil
}
