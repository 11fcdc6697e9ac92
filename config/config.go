package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override, e.g. DASHBOARD_BACKEND_URL
const EnvPrefix = "DASHBOARD_"

type Config struct {
	// Server configuration
	Port           string `koanf:"port"`
	AllowedOrigins string `koanf:"allowed_origins"`
	CookieSecure   bool   `koanf:"cookie_secure"`
	LogLevel       string `koanf:"log_level"`

	// Backend proxy in front of the Graph APIs
	BackendURL        string        `koanf:"backend_url"`
	BackendHealthPath string        `koanf:"backend_health_path"`
	RequestTimeout    time.Duration `koanf:"request_timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	ReadyMaxRetries   int           `koanf:"ready_max_retries"`

	// Credential storage; an empty MongoURI keeps credentials in memory
	MongoURI         string `koanf:"mongo_uri"`
	DatabaseName     string `koanf:"mongo_db_name"`
	CredentialSecret string `koanf:"credential_secret"`

	// Dashboards idle longer than this are dropped
	SessionIdleTTL       time.Duration `koanf:"session_idle_ttl"`
	SessionSweepInterval time.Duration `koanf:"session_sweep_interval"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"port":                   "8080",
		"allowed_origins":        "http://localhost:5173, http://localhost:3000",
		"cookie_secure":          false,
		"log_level":              "info",
		"backend_url":            "http://localhost:8000",
		"backend_health_path":    "/health",
		"request_timeout":        "20s",
		"requests_per_second":    10.0,
		"ready_max_retries":      5,
		"mongo_uri":              "",
		"mongo_db_name":          "social_dashboard",
		"credential_secret":      "",
		"session_idle_ttl":       "2h",
		"session_sweep_interval": "10m",
	}
}

// LoadConfig loads defaults, then the TOML file, then DASHBOARD_ variables.
// An empty configPath tries ./dashboard.toml and $HOME/.dashboard.toml.
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		for _, path := range []string{"./dashboard.toml", "$HOME/.dashboard.toml"} {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
					return nil, fmt.Errorf("error loading config %s: %w", path, err)
				}
				break
			}
		}
	}

	// keys are flat, so underscores stay as they are
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	return &cfg, nil
}

// Validate validates the configuration
func Validate(cfg *Config) error {
	if cfg.BackendURL == "" {
		return fmt.Errorf("backend_url is required")
	}
	u, err := url.Parse(cfg.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend_url %q is not an absolute url", cfg.BackendURL)
	}
	if cfg.Port == "" {
		return fmt.Errorf("port is required")
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if cfg.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}
	if cfg.ReadyMaxRetries < 0 {
		return fmt.Errorf("ready_max_retries must not be negative")
	}
	if cfg.SessionIdleTTL <= 0 || cfg.SessionSweepInterval <= 0 {
		return fmt.Errorf("session_idle_ttl and session_sweep_interval must be positive")
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q must be one of debug, info, warn, error", cfg.LogLevel)
	}
	return nil
}

// Origins splits AllowedOrigins into trimmed entries
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
