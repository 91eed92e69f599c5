package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Server defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.HTTPPort)
	assert.Equal(t, 9090, cfg.Server.GRPCPort)
	assert.True(t, cfg.Server.GRPCEnabled)
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)

	// Logging defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)

	// Metrics defaults
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)

	// API defaults
	assert.Equal(t, "semantic_scholar", cfg.API.DefaultSearchSource)
	assert.Equal(t, "arxiv", cfg.API.DefaultLookupSource)

	// Paper sources defaults
	s2 := cfg.PaperSources.SemanticScholar
	assert.True(t, s2.Enabled)
	assert.Equal(t, "https://api.semanticscholar.org/graph/v1", s2.BaseURL)
	assert.Equal(t, 30*time.Second, s2.Timeout)
	assert.Equal(t, 3, s2.MaxRetries)
	assert.Equal(t, time.Second, s2.RetryDelay)
	assert.Equal(t, 2*time.Second, s2.RetryBackoff)

	arxiv := cfg.PaperSources.ArXiv
	assert.True(t, arxiv.Enabled)
	assert.Equal(t, "https://export.arxiv.org/api", arxiv.BaseURL)
	assert.Equal(t, time.Second, arxiv.GateInterval)
	assert.Equal(t, 1.0, arxiv.RateLimit)

	core := cfg.PaperSources.Core
	assert.True(t, core.Enabled)
	assert.Equal(t, "https://api.core.ac.uk/v3", core.BaseURL)
	assert.Equal(t, 2*time.Second, core.RetryBackoff)
	assert.Equal(t, 10, core.BurstSize)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("SCHOLARTOOLS_SERVER_HTTP_PORT", "8888")
	t.Setenv("SCHOLARTOOLS_SERVER_GRPC_ENABLED", "false")
	t.Setenv("SCHOLARTOOLS_LOGGING_LEVEL", "debug")
	t.Setenv("SCHOLARTOOLS_API_DEFAULT_SEARCH_SOURCE", "core")
	t.Setenv("SCHOLARTOOLS_PAPER_SOURCES_ARXIV_GATE_INTERVAL", "3s")
	t.Setenv("SCHOLARTOOLS_PAPER_SOURCES_CORE_ENABLED", "false")
	t.Setenv("SCHOLARTOOLS_PAPER_SOURCES_SEMANTIC_SCHOLAR_TIMEOUT", "10s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.False(t, cfg.Server.GRPCEnabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "core", cfg.API.DefaultSearchSource)
	assert.Equal(t, 3*time.Second, cfg.PaperSources.ArXiv.GateInterval)
	assert.False(t, cfg.PaperSources.Core.Enabled)
	assert.Equal(t, 10*time.Second, cfg.PaperSources.SemanticScholar.Timeout)
}

func TestLoad_InvalidEnvironmentFailsValidation(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("SCHOLARTOOLS_PAPER_SOURCES_CORE_TIMEOUT", "5m")

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config validation failed")
	assert.Contains(t, err.Error(), "core timeout")
}

func TestLoad_APIKeysFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		wantS2   string
		wantCore string
	}{
		{
			name:     "no keys",
			env:      map[string]string{},
			wantS2:   "",
			wantCore: "",
		},
		{
			name: "prefixed keys",
			env: map[string]string{
				"SCHOLARTOOLS_PAPER_SOURCES_SEMANTIC_SCHOLAR_API_KEY": "s2-prefixed",
				"SCHOLARTOOLS_PAPER_SOURCES_CORE_API_KEY":             "core-prefixed",
			},
			wantS2:   "s2-prefixed",
			wantCore: "core-prefixed",
		},
		{
			name: "bare fallback keys",
			env: map[string]string{
				"SEMANTIC_SCHOLAR_API_KEY": "s2-bare",
				"CORE_API_KEY":             "core-bare",
			},
			wantS2:   "s2-bare",
			wantCore: "core-bare",
		},
		{
			name: "prefixed key wins over fallback",
			env: map[string]string{
				"SCHOLARTOOLS_PAPER_SOURCES_SEMANTIC_SCHOLAR_API_KEY": "s2-prefixed",
				"SEMANTIC_SCHOLAR_API_KEY":                            "s2-bare",
			},
			wantS2:   "s2-prefixed",
			wantCore: "",
		},
		{
			name: "blank value is ignored",
			env: map[string]string{
				"SCHOLARTOOLS_PAPER_SOURCES_CORE_API_KEY": "   ",
				"CORE_API_KEY":                            "core-bare",
			},
			wantS2:   "",
			wantCore: "core-bare",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, tt.wantS2, cfg.PaperSources.SemanticScholar.APIKey)
			assert.Equal(t, tt.wantCore, cfg.PaperSources.Core.APIKey)
		})
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	tests := []struct {
		name        string
		modifyFunc  func(*Config)
		expectedErr string
	}{
		{
			name:        "HTTP port zero",
			modifyFunc:  func(c *Config) { c.Server.HTTPPort = 0 },
			expectedErr: "invalid HTTP port: 0",
		},
		{
			name:        "HTTP port too high",
			modifyFunc:  func(c *Config) { c.Server.HTTPPort = 70000 },
			expectedErr: "invalid HTTP port: 70000",
		},
		{
			name:        "gRPC port negative",
			modifyFunc:  func(c *Config) { c.Server.GRPCPort = -1 },
			expectedErr: "invalid gRPC port: -1",
		},
		{
			name:        "metrics port too high",
			modifyFunc:  func(c *Config) { c.Server.MetricsPort = 65536 },
			expectedErr: "invalid metrics port: 65536",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modifyFunc(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErr)
		})
	}
}

func TestValidate_DisabledListenersSkipPortChecks(t *testing.T) {
	cfg := validConfig()
	cfg.Server.GRPCEnabled = false
	cfg.Server.GRPCPort = 0
	cfg.Metrics.Enabled = false
	cfg.Server.MetricsPort = 0

	assert.NoError(t, cfg.Validate())
}

func TestValidate_LogLevel(t *testing.T) {
	for _, level := range []string{"trace", "debug", "info", "warn", "error", "fatal", "panic", "INFO"} {
		t.Run(level, func(t *testing.T) {
			cfg := validConfig()
			cfg.Logging.Level = level
			assert.NoError(t, cfg.Validate())
		})
	}

	cfg := validConfig()
	cfg.Logging.Level = "verbose"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level: verbose")
}

func TestValidate_DefaultSources(t *testing.T) {
	cfg := validConfig()
	cfg.API.DefaultSearchSource = "pubmed"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid default search source")

	cfg = validConfig()
	cfg.API.DefaultLookupSource = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid default lookup source")
}

func TestValidate_PaperSources(t *testing.T) {
	tests := []struct {
		name        string
		modifyFunc  func(*Config)
		expectedErr string
	}{
		{
			name:        "timeout below minimum",
			modifyFunc:  func(c *Config) { c.PaperSources.ArXiv.Timeout = 500 * time.Millisecond },
			expectedErr: "arxiv timeout must be between",
		},
		{
			name:        "timeout above maximum",
			modifyFunc:  func(c *Config) { c.PaperSources.SemanticScholar.Timeout = 2 * time.Minute },
			expectedErr: "semantic_scholar timeout must be between",
		},
		{
			name:        "negative rate limit",
			modifyFunc:  func(c *Config) { c.PaperSources.Core.RateLimit = -1 },
			expectedErr: "core rate_limit must not be negative",
		},
		{
			name:        "zero gate interval",
			modifyFunc:  func(c *Config) { c.PaperSources.ArXiv.GateInterval = 0 },
			expectedErr: "arxiv gate_interval must be positive",
		},
		{
			name:        "zero semantic scholar backoff",
			modifyFunc:  func(c *Config) { c.PaperSources.SemanticScholar.RetryBackoff = 0 },
			expectedErr: "semantic_scholar retry_backoff must be positive",
		},
		{
			name:        "negative max retries",
			modifyFunc:  func(c *Config) { c.PaperSources.SemanticScholar.MaxRetries = -1 },
			expectedErr: "semantic_scholar max_retries must not be negative",
		},
		{
			name:        "zero core backoff",
			modifyFunc:  func(c *Config) { c.PaperSources.Core.RetryBackoff = 0 },
			expectedErr: "core retry_backoff must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modifyFunc(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErr)
		})
	}
}

func TestServerConfig_Addresses(t *testing.T) {
	cfg := ServerConfig{Host: "localhost", HTTPPort: 8000, GRPCPort: 9090, MetricsPort: 9091}
	assert.Equal(t, "localhost:8000", cfg.HTTPAddress())
	assert.Equal(t, "localhost:9090", cfg.GRPCAddress())
	assert.Equal(t, "localhost:9091", cfg.MetricsAddress())
}

// clearEnvVars unsets every variable Load reads, restoring them after the test.
func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, env := range os.Environ() {
		key, _, _ := strings.Cut(env, "=")
		if strings.HasPrefix(key, EnvPrefix+"_") || key == "SEMANTIC_SCHOLAR_API_KEY" || key == "CORE_API_KEY" {
			t.Setenv(key, "")
			require.NoError(t, os.Unsetenv(key))
		}
	}
}

// validConfig returns a valid configuration for testing
func validConfig() *Config {
	source := func(timeout time.Duration) PaperSourceConfig {
		return PaperSourceConfig{Enabled: true, Timeout: timeout, RateLimit: 1, BurstSize: 1}
	}
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			HTTPPort:    8000,
			GRPCPort:    9090,
			GRPCEnabled: true,
			MetricsPort: 9091,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
		API: APIConfig{
			DefaultSearchSource: "semantic_scholar",
			DefaultLookupSource: "arxiv",
		},
		PaperSources: PaperSourcesConfig{
			SemanticScholar: SemanticScholarConfig{
				PaperSourceConfig: source(30 * time.Second),
				MaxRetries:        3,
				RetryDelay:        time.Second,
				RetryBackoff:      2 * time.Second,
			},
			ArXiv: ArXivConfig{
				PaperSourceConfig: source(30 * time.Second),
				GateInterval:      time.Second,
			},
			Core: CoreConfig{
				PaperSourceConfig: source(30 * time.Second),
				RetryBackoff:      2 * time.Second,
			},
		},
	}
}
