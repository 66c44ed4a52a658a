package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

// TestNewConfig verifies that NewConfig returns the documented defaults.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default sink is sqlite in the XDG data dir", func(t *testing.T) {
		t.Parallel()
		if cfg.Sink != SinkSQLite {
			t.Errorf("expected sink %q, got %q", SinkSQLite, cfg.Sink)
		}
		if cfg.DBDir != XDGDataDir() {
			t.Errorf("expected DBDir %q, got %q", XDGDataDir(), cfg.DBDir)
		}
	})

	t.Run("default frontier is memory and renderer is rod", func(t *testing.T) {
		t.Parallel()
		if cfg.Frontier != FrontierMemory {
			t.Errorf("expected frontier %q, got %q", FrontierMemory, cfg.Frontier)
		}
		if cfg.Renderer != RendererRod {
			t.Errorf("expected renderer %q, got %q", RendererRod, cfg.Renderer)
		}
	})

	t.Run("default credentials are read from the standard variable names", func(t *testing.T) {
		t.Parallel()
		if cfg.ElasticPasswordEnv != "ELASTIC_PASSWORD" {
			t.Errorf("expected ELASTIC_PASSWORD, got %q", cfg.ElasticPasswordEnv)
		}
		if cfg.ElasticAPIKeyEnv != "ELASTIC_API_KEY" {
			t.Errorf("expected ELASTIC_API_KEY, got %q", cfg.ElasticAPIKeyEnv)
		}
		if cfg.ElasticCloudIDEnv != "ELASTIC_CLOUD_ID" {
			t.Errorf("expected ELASTIC_CLOUD_ID, got %q", cfg.ElasticCloudIDEnv)
		}
	})

	t.Run("default render retry policy", func(t *testing.T) {
		t.Parallel()
		if cfg.RenderAttempts != 3 {
			t.Errorf("expected 3 attempts, got %d", cfg.RenderAttempts)
		}
		if cfg.RenderBackoff != 2*time.Second {
			t.Errorf("expected 2s backoff, got %v", cfg.RenderBackoff)
		}
	})

	t.Run("defaults are valid", func(t *testing.T) {
		t.Parallel()
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected valid defaults, got %v", err)
		}
	})
}

// TestConfigValidate tests each validation rule.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{name: "unknown sink", modify: func(c *Config) { c.Sink = "mongodb" }, wantErr: ErrInvalidSink},
		{name: "sqlite without dir", modify: func(c *Config) { c.DBDir = "" }, wantErr: ErrNoDBDir},
		{
			name: "elasticsearch without address",
			modify: func(c *Config) {
				c.Sink = SinkElasticsearch
				c.ElasticAddresses = nil
			},
			wantErr: ErrNoElasticAddress,
		},
		{
			name: "elasticsearch with cloud id only",
			modify: func(c *Config) {
				c.Sink = SinkElasticsearch
				c.ElasticAddresses = nil
				c.ElasticCloudID = "deployment:abc"
			},
			wantErr: nil,
		},
		{name: "empty collection", modify: func(c *Config) { c.ArticlesCollection = "" }, wantErr: ErrEmptyCollection},
		{name: "unknown frontier", modify: func(c *Config) { c.Frontier = "kafka" }, wantErr: ErrInvalidFrontier},
		{
			name: "redis without address",
			modify: func(c *Config) {
				c.Frontier = FrontierRedis
				c.RedisAddress = ""
			},
			wantErr: ErrNoRedisAddress,
		},
		{name: "unknown renderer", modify: func(c *Config) { c.Renderer = "selenium" }, wantErr: ErrInvalidRenderer},
		{name: "zero render attempts", modify: func(c *Config) { c.RenderAttempts = 0 }, wantErr: ErrInvalidRenderAttempts},
		{name: "negative backoff", modify: func(c *Config) { c.RenderBackoff = -time.Second }, wantErr: ErrInvalidRenderBackoff},
		{name: "negative body size", modify: func(c *Config) { c.MaxBodySize = -1 }, wantErr: ErrInvalidMaxBodySize},
		{name: "negative rate", modify: func(c *Config) { c.RequestsPerSecond = -1 }, wantErr: ErrInvalidRequestRate},
		{name: "negative concurrency", modify: func(c *Config) { c.Concurrency = -1 }, wantErr: ErrInvalidConcurrency},
		{name: "unknown log format", modify: func(c *Config) { c.LogFormat = "xml" }, wantErr: ErrInvalidLogFormat},
		{name: "unknown report format", modify: func(c *Config) { c.ReportFormat = "html" }, wantErr: ErrInvalidReportFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestResolveCredentials tests that credentials are looked up by name.
func TestResolveCredentials(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"ELASTIC_PASSWORD": "changeme",
		"MY_API_KEY":       "key-123",
		"REDIS_PASSWORD":   "redis-secret",
	}
	lookup := func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}

	cfg := NewConfig()
	cfg.ElasticAPIKeyEnv = "MY_API_KEY"
	cfg.ElasticCloudIDEnv = ""
	cfg.ResolveCredentials(lookup)

	if cfg.ElasticPassword != "changeme" {
		t.Errorf("expected password from ELASTIC_PASSWORD, got %q", cfg.ElasticPassword)
	}
	if cfg.ElasticAPIKey != "key-123" {
		t.Errorf("expected api key from MY_API_KEY, got %q", cfg.ElasticAPIKey)
	}
	if cfg.ElasticCloudID != "" {
		t.Errorf("expected empty cloud id for unnamed variable, got %q", cfg.ElasticCloudID)
	}
	if cfg.RedisPassword != "redis-secret" {
		t.Errorf("expected redis password, got %q", cfg.RedisPassword)
	}
}

// TestLoad tests building a Config from flags through viper.
func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("unset flags keep defaults", func(t *testing.T) {
		t.Parallel()

		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.String("sink", SinkSQLite, "")
		flags.Int("concurrency", 0, "")

		v, err := NewViper(flags, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		cfg, err := Load(v)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Sink != SinkSQLite {
			t.Errorf("expected default sink, got %q", cfg.Sink)
		}
		if cfg.PagesCollection != DefaultPagesCollection {
			t.Errorf("expected default pages collection, got %q", cfg.PagesCollection)
		}
	})

	t.Run("changed flags override defaults", func(t *testing.T) {
		t.Parallel()

		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.String("sink", SinkSQLite, "")
		flags.StringSlice("elastic-address", nil, "")
		flags.Int("concurrency", 0, "")
		flags.Duration("render-backoff", DefaultRenderBackoff, "")
		if err := flags.Parse([]string{
			"--sink", "Elasticsearch",
			"--elastic-address", "http://es1:9200,http://es2:9200",
			"--concurrency", "2",
			"--render-backoff", "500ms",
		}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		v, err := NewViper(flags, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		cfg, err := Load(v)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Sink != SinkElasticsearch {
			t.Errorf("expected lowercased sink %q, got %q", SinkElasticsearch, cfg.Sink)
		}
		if len(cfg.ElasticAddresses) != 2 {
			t.Errorf("expected 2 addresses, got %v", cfg.ElasticAddresses)
		}
		if cfg.Concurrency != 2 {
			t.Errorf("expected concurrency 2, got %d", cfg.Concurrency)
		}
		if cfg.RenderBackoff != 500*time.Millisecond {
			t.Errorf("expected 500ms, got %v", cfg.RenderBackoff)
		}
	})

	t.Run("reads an application config file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "app.yaml")
		content := "frontier: redis\nredis-address: cache:6379\nformat: markdown\n"
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		v, err := NewViper(nil, path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		cfg, err := Load(v)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Frontier != FrontierRedis {
			t.Errorf("expected redis frontier, got %q", cfg.Frontier)
		}
		if cfg.RedisAddress != "cache:6379" {
			t.Errorf("expected cache:6379, got %q", cfg.RedisAddress)
		}
		if cfg.ReportFormat != ReportMarkdown {
			t.Errorf("expected markdown report, got %q", cfg.ReportFormat)
		}
	})

	t.Run("missing application config file is an error", func(t *testing.T) {
		t.Parallel()

		_, err := NewViper(nil, filepath.Join(t.TempDir(), "missing.yaml"))
		if err == nil {
			t.Fatal("expected error for missing config file")
		}
	})
}

// TestXDGDirs tests XDG directory helpers.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if !strings.HasSuffix(XDGDataDir(), AppName) {
		t.Errorf("expected data dir to end with %q, got %q", AppName, XDGDataDir())
	}
	if !strings.HasSuffix(XDGConfigDir(), AppName) {
		t.Errorf("expected config dir to end with %q, got %q", AppName, XDGConfigDir())
	}
}
