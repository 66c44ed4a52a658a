package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultSitesFile is the sites file name searched in the current directory.
const DefaultSitesFile = "scrollcrawl.yaml"

// EnvPrefix prefixes environment variables that override flags,
// e.g. SCROLLCRAWL_SINK=elasticsearch.
const EnvPrefix = "SCROLLCRAWL"

// LoadSitesFile loads site configurations from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound.
// The returned file is not resolved; call Resolve to apply defaults and validate.
func LoadSitesFile(path string) (*SitesFile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var sf SitesFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse sites file: %w", err)
	}

	return &sf, nil
}

// FindSitesFile searches for the sites file in the following order:
// 1. If sitesPath is specified, use it directly
// 2. scrollcrawl.yaml in the current directory
// 3. sites.yaml in the XDG config directory
//
// Returns the path to the file if found, or empty string if not found.
func FindSitesFile(sitesPath string) string {
	if sitesPath != "" {
		if _, err := os.Stat(sitesPath); err == nil {
			return sitesPath
		}
		return ""
	}

	candidates := make([]string, 0, 2)
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultSitesFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "sites.yaml"))

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}

	return ""
}

// NewViper creates a viper instance bound to the given flags and to
// SCROLLCRAWL_* environment variables. Flag "db-dir" maps to SCROLLCRAWL_DB_DIR.
// When configFile is not empty it is read as an additional source of values.
func NewViper(flags *pflag.FlagSet, configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	return v, nil
}

// Load builds a Config from the defaults overlaid with every key that was
// explicitly set through flags, environment or config file. Credentials are
// resolved from the process environment afterwards.
func Load(v *viper.Viper) (*Config, error) {
	cfg := NewConfig()

	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	str("sites", &cfg.SitesFile)
	str("sink", &cfg.Sink)
	str("db-dir", &cfg.DBDir)
	str("pages-collection", &cfg.PagesCollection)
	str("articles-collection", &cfg.ArticlesCollection)
	str("runs-collection", &cfg.RunsCollection)
	str("elastic-username", &cfg.ElasticUsername)
	str("elastic-password-env", &cfg.ElasticPasswordEnv)
	str("elastic-api-key-env", &cfg.ElasticAPIKeyEnv)
	str("elastic-cloud-id-env", &cfg.ElasticCloudIDEnv)
	str("frontier", &cfg.Frontier)
	str("redis-address", &cfg.RedisAddress)
	str("redis-password-env", &cfg.RedisPasswordEnv)
	str("renderer", &cfg.Renderer)
	str("browser-bin", &cfg.BrowserBin)
	str("browser-control-url", &cfg.BrowserControlURL)
	str("proxy", &cfg.ProxyURL)
	str("user-agent", &cfg.UserAgent)
	str("log-format", &cfg.LogFormat)
	str("format", &cfg.ReportFormat)
	str("output", &cfg.ReportFile)

	if v.IsSet("elastic-address") {
		cfg.ElasticAddresses = v.GetStringSlice("elastic-address")
	}
	if v.IsSet("redis-db") {
		cfg.RedisDB = v.GetInt("redis-db")
	}
	if v.IsSet("headless") {
		cfg.Headless = v.GetBool("headless")
	}
	if v.IsSet("max-body-size") {
		cfg.MaxBodySize = v.GetInt64("max-body-size")
	}
	if v.IsSet("rps") {
		cfg.RequestsPerSecond = v.GetFloat64("rps")
	}
	if v.IsSet("render-attempts") {
		cfg.RenderAttempts = v.GetInt("render-attempts")
	}
	if v.IsSet("render-backoff") {
		cfg.RenderBackoff = v.GetDuration("render-backoff")
	}
	if v.IsSet("concurrency") {
		cfg.Concurrency = v.GetInt("concurrency")
	}
	if v.IsSet("verbose") {
		cfg.Verbose = v.GetBool("verbose")
	}

	cfg.Sink = strings.ToLower(cfg.Sink)
	cfg.Frontier = strings.ToLower(cfg.Frontier)
	cfg.Renderer = strings.ToLower(cfg.Renderer)
	cfg.ReportFormat = strings.ToLower(cfg.ReportFormat)

	cfg.ResolveCredentials(os.LookupEnv)

	return cfg, nil
}

// LoadSites finds, loads and resolves the sites file named by cfg.SitesFile.
// An explicitly named file that does not exist is reported with its path.
func LoadSites(cfg *Config) ([]Site, error) {
	path := FindSitesFile(cfg.SitesFile)
	if path == "" {
		if cfg.SitesFile != "" {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, cfg.SitesFile)
		}
		return nil, fmt.Errorf("%w: run 'scrollcrawl init' to create %s", ErrConfigNotFound, DefaultSitesFile)
	}

	sf, err := LoadSitesFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load sites file %s: %w", path, err)
	}

	sites, err := sf.Resolve()
	if err != nil {
		return nil, fmt.Errorf("invalid sites file %s: %w", path, err)
	}

	return sites, nil
}
