package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"promptlab/models"
)

// Config represents the complete configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Provider  ProviderConfig  `yaml:"provider"`
	Settings  SettingsConfig  `yaml:"settings"`
	Audit     AuditConfig     `yaml:"audit"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig from YAML. A zero port takes the HIGH_PORT_MODE default, a
// negative port disables that server.
type ServerConfig struct {
	HTTPPort   int    `yaml:"http_port"`
	HTTPSPort  int    `yaml:"https_port"`
	DNSPort    int    `yaml:"dns_port"`
	DNSZone    string `yaml:"dns_zone"`
	BaseDomain string `yaml:"base_domain"`
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`

	// TrustedProxies are peer IPs allowed to set X-Forwarded-For
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// ProviderConfig holds the server-side defaults. APIKey is only used by the
// DNS and terminal surfaces; web users bring their own.
type ProviderConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	APIKey      string  `yaml:"api_key"`
}

// SettingsConfig selects where user settings are persisted
type SettingsConfig struct {
	Backend string `yaml:"backend"` // memory or sqlite
	Path    string `yaml:"path"`
	Secret  string `yaml:"secret"`
}

// AuditConfig from YAML
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// RateLimitConfig is a per-client token bucket. Zero rps disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			DNSZone:    "${DNS_ZONE:-lab.local}",
			BaseDomain: "${BASE_DOMAIN:-}",
		},
		Provider: ProviderConfig{
			Endpoint:    "${PROMPTLAB_ENDPOINT:-" + models.DefaultEndpoint + "}",
			Model:       "${PROMPTLAB_MODEL:-" + models.DefaultModel + "}",
			Temperature: models.DefaultTemperature,
			APIKey:      "${PROMPTLAB_API_KEY:-}",
		},
		Settings: SettingsConfig{
			Backend: "${SETTINGS_BACKEND:-memory}",
			Path:    "promptlab_settings.db",
			Secret:  "${SETTINGS_SECRET:-}",
		},
		Audit: AuditConfig{
			Enabled: true,
			Path:    "promptlab_audit.db",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 2,
			Burst:             5,
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file is not an
// error. Environment references like ${VAR:-default} are expanded afterwards.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadYAMLFile(path, cfg); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to load %s: %w", path, err)
			}
		}
	}

	expandEnvVars(cfg)

	if os.Getenv("ENABLE_AUDIT") == "false" {
		cfg.Audit.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the servers cannot start with
func (c *Config) Validate() error {
	switch c.Settings.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("settings.backend must be memory or sqlite, got %q", c.Settings.Backend)
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rate_limit.requests_per_second must not be negative")
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst < 1 {
		return fmt.Errorf("rate_limit.burst must be at least 1")
	}
	if (c.Server.CertFile == "") != (c.Server.KeyFile == "") {
		return fmt.Errorf("server.cert_file and server.key_file must be set together")
	}
	return nil
}

// ProviderSettings returns the server-side connection settings
func (c *Config) ProviderSettings() models.ConnectionSettings {
	return models.ConnectionSettings{
		Endpoint:    c.Provider.Endpoint,
		Model:       c.Provider.Model,
		Temperature: c.Provider.Temperature,
		APIKey:      c.Provider.APIKey,
	}.Resolved()
}

// loadYAMLFile loads a YAML file into a structure
func loadYAMLFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, v)
}

// expandEnvVars expands environment variables in configuration
func expandEnvVars(c *Config) {
	c.Server.DNSZone = expandEnv(c.Server.DNSZone)
	c.Server.BaseDomain = expandEnv(c.Server.BaseDomain)
	c.Server.CertFile = expandEnv(c.Server.CertFile)
	c.Server.KeyFile = expandEnv(c.Server.KeyFile)
	c.Provider.Endpoint = expandEnv(c.Provider.Endpoint)
	c.Provider.Model = expandEnv(c.Provider.Model)
	c.Provider.APIKey = expandEnv(c.Provider.APIKey)
	c.Settings.Backend = strings.ToLower(expandEnv(c.Settings.Backend))
	c.Settings.Path = expandEnv(c.Settings.Path)
	c.Settings.Secret = expandEnv(c.Settings.Secret)
	c.Audit.Path = expandEnv(c.Audit.Path)
}

// expandEnv expands environment variables in a string
func expandEnv(s string) string {
	if strings.Contains(s, "${") {
		return os.Expand(s, func(key string) string {
			// Handle default values like ${VAR:-default}
			parts := strings.SplitN(key, ":-", 2)
			value := os.Getenv(parts[0])
			if value == "" && len(parts) > 1 {
				return parts[1]
			}
			return value
		})
	}
	return s
}
