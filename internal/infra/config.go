package infra

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application settings. LoadConfig reads it from YAML and
// then applies environment overrides for the sensitive fields.
type Config struct {
	Server struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		WSAddr   string `yaml:"ws_addr"`   // optional WebSocket gateway listen address
		WSOrigin string `yaml:"ws_origin"` // allowed Origin for WS upgrades, empty allows all
	} `yaml:"server"`

	Database struct {
		Driver string `yaml:"driver"` // "sqlite" or "postgres"
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`

	Provider struct {
		URL          string `yaml:"url"`
		BaseCurrency string `yaml:"base_currency"`
		TimeoutSec   int    `yaml:"timeout_sec"`
	} `yaml:"provider"`

	EventLog struct {
		Path string `yaml:"path"`
	} `yaml:"event_log"`

	Metrics struct {
		Addr string `yaml:"addr"` // optional /metrics listen address
	} `yaml:"metrics"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return fmt.Errorf("server host is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}

	if !strings.HasPrefix(c.Provider.URL, "http://") && !strings.HasPrefix(c.Provider.URL, "https://") {
		return fmt.Errorf("invalid provider URL: %s", c.Provider.URL)
	}
	if c.Provider.BaseCurrency == "" {
		c.Provider.BaseCurrency = "USD"
	}

	if c.EventLog.Path == "" {
		return fmt.Errorf("event log path is required")
	}

	return nil
}

// overrideWithEnv replaces config values when the environment provides them.
func overrideWithEnv(cfg *Config) {
	if dsn := os.Getenv("RATES_DB_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if driver := os.Getenv("RATES_DB_DRIVER"); driver != "" {
		cfg.Database.Driver = driver
	}
	if url := os.Getenv("RATES_PROVIDER_URL"); url != "" {
		cfg.Provider.URL = url
	}
}
