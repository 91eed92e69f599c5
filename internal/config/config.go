// Package config provides configuration management for the scholar tools service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/helixir/scholar-tools-service/internal/domain"
)

// EnvPrefix is the prefix for every environment variable the service reads.
const EnvPrefix = "SCHOLARTOOLS"

// Timeout bounds enforced for outbound provider calls.
const (
	MinSourceTimeout = time.Second
	MaxSourceTimeout = 60 * time.Second
)

// Config holds all configuration for the scholar tools service.
type Config struct {
	// Server contains HTTP/gRPC server settings.
	Server ServerConfig `mapstructure:"server"`

	// Logging contains logging configuration.
	Logging LoggingConfig `mapstructure:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// API contains request defaults for the HTTP surface.
	API APIConfig `mapstructure:"api"`

	// PaperSources contains configuration for the upstream providers.
	PaperSources PaperSourcesConfig `mapstructure:"paper_sources"`
}

// ServerConfig holds HTTP and gRPC server configuration.
type ServerConfig struct {
	// Host is the server bind address.
	Host string `mapstructure:"host"`

	// HTTPPort is the HTTP API port.
	HTTPPort int `mapstructure:"http_port"`

	// GRPCPort is the gRPC health port.
	GRPCPort int `mapstructure:"grpc_port"`

	// GRPCEnabled starts the gRPC health server when true.
	GRPCEnabled bool `mapstructure:"grpc_enabled"`

	// MetricsPort is the Prometheus metrics port.
	MetricsPort int `mapstructure:"metrics_port"`

	// ReadTimeout is the HTTP read timeout.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the HTTP write timeout.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// ShutdownTimeout is the graceful shutdown timeout.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`

	// Format is the log output format (json, console).
	Format string `mapstructure:"format"`

	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`

	// AddSource adds caller information to log entries.
	AddSource bool `mapstructure:"add_source"`

	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection.
	Enabled bool `mapstructure:"enabled"`

	// Path is the metrics endpoint path.
	Path string `mapstructure:"path"`
}

// APIConfig holds defaults applied to incoming requests.
type APIConfig struct {
	// DefaultSearchSource is used by /api/search when no source is given.
	DefaultSearchSource string `mapstructure:"default_search_source"`

	// DefaultLookupSource is used by /api/paper/{id} when no source is given.
	DefaultLookupSource string `mapstructure:"default_lookup_source"`
}

// PaperSourcesConfig holds configuration for each provider.
type PaperSourcesConfig struct {
	SemanticScholar SemanticScholarConfig `mapstructure:"semantic_scholar"`
	ArXiv           ArXivConfig           `mapstructure:"arxiv"`
	Core            CoreConfig            `mapstructure:"core"`
}

// PaperSourceConfig holds the settings shared by every provider.
type PaperSourceConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	BurstSize int           `mapstructure:"burst_size"`
}

// SemanticScholarConfig holds Semantic Scholar settings.
type SemanticScholarConfig struct {
	PaperSourceConfig `mapstructure:",squash"`

	APIKey       string        `mapstructure:"-"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// ArXivConfig holds arXiv settings.
type ArXivConfig struct {
	PaperSourceConfig `mapstructure:",squash"`

	// GateInterval is the minimum spacing between consecutive arXiv calls.
	GateInterval time.Duration `mapstructure:"gate_interval"`
}

// CoreConfig holds CORE settings.
type CoreConfig struct {
	PaperSourceConfig `mapstructure:",squash"`

	APIKey       string        `mapstructure:"-"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// GRPCAddress returns the gRPC server address.
func (c *ServerConfig) GRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GRPCPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load reads configuration from defaults, an optional config file and the
// environment, in increasing order of precedence.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/scholar-tools-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets reads API keys from the environment. The prefixed variable wins;
// the bare provider variable is accepted as a fallback.
func loadSecrets(cfg *Config) {
	cfg.PaperSources.SemanticScholar.APIKey = firstEnv(
		EnvPrefix+"_PAPER_SOURCES_SEMANTIC_SCHOLAR_API_KEY",
		"SEMANTIC_SCHOLAR_API_KEY",
	)
	cfg.PaperSources.Core.APIKey = firstEnv(
		EnvPrefix+"_PAPER_SOURCES_CORE_API_KEY",
		"CORE_API_KEY",
	)
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8000)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("server.grpc_enabled", true)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("api.default_search_source", string(domain.SourceTypeSemanticScholar))
	v.SetDefault("api.default_lookup_source", string(domain.SourceTypeArXiv))

	v.SetDefault("paper_sources.semantic_scholar.enabled", true)
	v.SetDefault("paper_sources.semantic_scholar.base_url", "https://api.semanticscholar.org/graph/v1")
	v.SetDefault("paper_sources.semantic_scholar.timeout", "30s")
	v.SetDefault("paper_sources.semantic_scholar.rate_limit", 0.0) // keyed/unkeyed default chosen by the client
	v.SetDefault("paper_sources.semantic_scholar.burst_size", 1)
	v.SetDefault("paper_sources.semantic_scholar.max_retries", 3)
	v.SetDefault("paper_sources.semantic_scholar.retry_delay", "1s")
	v.SetDefault("paper_sources.semantic_scholar.retry_backoff", "2s")

	v.SetDefault("paper_sources.arxiv.enabled", true)
	v.SetDefault("paper_sources.arxiv.base_url", "https://export.arxiv.org/api")
	v.SetDefault("paper_sources.arxiv.timeout", "30s")
	v.SetDefault("paper_sources.arxiv.rate_limit", 1.0)
	v.SetDefault("paper_sources.arxiv.burst_size", 1)
	v.SetDefault("paper_sources.arxiv.gate_interval", "1s")

	v.SetDefault("paper_sources.core.enabled", true)
	v.SetDefault("paper_sources.core.base_url", "https://api.core.ac.uk/v3")
	v.SetDefault("paper_sources.core.timeout", "30s")
	v.SetDefault("paper_sources.core.rate_limit", 10.0)
	v.SetDefault("paper_sources.core.burst_size", 10)
	v.SetDefault("paper_sources.core.retry_backoff", "2s")
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.GRPCEnabled && (c.Server.GRPCPort <= 0 || c.Server.GRPCPort > 65535) {
		return fmt.Errorf("invalid gRPC port: %d", c.Server.GRPCPort)
	}
	if c.Metrics.Enabled && (c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535) {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if !domain.IsValidSourceType(domain.SourceType(c.API.DefaultSearchSource)) {
		return fmt.Errorf("invalid default search source: %q", c.API.DefaultSearchSource)
	}
	if !domain.IsValidSourceType(domain.SourceType(c.API.DefaultLookupSource)) {
		return fmt.Errorf("invalid default lookup source: %q", c.API.DefaultLookupSource)
	}

	sources := map[domain.SourceType]PaperSourceConfig{
		domain.SourceTypeSemanticScholar: c.PaperSources.SemanticScholar.PaperSourceConfig,
		domain.SourceTypeArXiv:           c.PaperSources.ArXiv.PaperSourceConfig,
		domain.SourceTypeCore:            c.PaperSources.Core.PaperSourceConfig,
	}
	for _, st := range domain.AllSourceTypes {
		src := sources[st]
		if src.Timeout < MinSourceTimeout || src.Timeout > MaxSourceTimeout {
			return fmt.Errorf("%s timeout must be between %s and %s, got %s",
				st, MinSourceTimeout, MaxSourceTimeout, src.Timeout)
		}
		if src.RateLimit < 0 {
			return fmt.Errorf("%s rate_limit must not be negative", st)
		}
		if src.BurstSize < 0 {
			return fmt.Errorf("%s burst_size must not be negative", st)
		}
	}

	if c.PaperSources.ArXiv.GateInterval <= 0 {
		return fmt.Errorf("arxiv gate_interval must be positive")
	}
	if c.PaperSources.SemanticScholar.RetryBackoff <= 0 {
		return fmt.Errorf("semantic_scholar retry_backoff must be positive")
	}
	if c.PaperSources.SemanticScholar.MaxRetries < 0 {
		return fmt.Errorf("semantic_scholar max_retries must not be negative")
	}
	if c.PaperSources.Core.RetryBackoff <= 0 {
		return fmt.Errorf("core retry_backoff must be positive")
	}

	return nil
}
