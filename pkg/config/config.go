package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Provider struct {
		Kind           string        `yaml:"kind"` // yahoo or alphavantage
		Timeout        time.Duration `yaml:"timeout"`
		MaxRetries     int           `yaml:"max_retries"`
		RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
		Yahoo          struct {
			BaseURL   string            `yaml:"base_url"`
			SymbolMap map[string]string `yaml:"symbol_map"`
			RateLimit RateLimit         `yaml:"rate_limit"`
		} `yaml:"yahoo"`
		AlphaVantage struct {
			APIKey    string    `yaml:"api_key"`
			BaseURL   string    `yaml:"base_url"`
			RateLimit RateLimit `yaml:"rate_limit"`
		} `yaml:"alpha_vantage"`
	} `yaml:"provider"`
	Sync struct {
		FreshnessWindow time.Duration `yaml:"freshness_window"`
		Workers         int           `yaml:"workers"`
		RetentionDays   int           `yaml:"retention_days"`
	} `yaml:"sync"`
	Storage struct {
		Type   string `yaml:"type"` // sqlite or clickhouse
		SQLite struct {
			Path string `yaml:"path"`
		} `yaml:"sqlite"`
		ClickHouse struct {
			Host             string        `yaml:"host"`
			Port             int           `yaml:"port"`
			Database         string        `yaml:"database"`
			User             string        `yaml:"user"`
			Password         string        `yaml:"password"`
			DialTimeout      time.Duration `yaml:"dial_timeout"`
			ReadTimeout      time.Duration `yaml:"read_timeout"`
			MaxExecutionTime time.Duration `yaml:"max_execution_time"`
		} `yaml:"clickhouse"`
	} `yaml:"storage"`
	Cache struct {
		Enabled       bool          `yaml:"enabled"`
		SeriesTTL     time.Duration `yaml:"series_ttl"`
		NormalizedTTL time.Duration `yaml:"normalized_ttl"`
		MemoryMaxSize int           `yaml:"memory_max_size"`
		Redis         struct {
			Enabled  bool   `yaml:"enabled"`
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Events struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
	} `yaml:"events"`
	Normalize struct {
		Scale float64 `yaml:"scale"`
	} `yaml:"normalize"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
}

// RateLimit expresses an upstream quota as calls per period.
type RateLimit struct {
	Calls  int           `yaml:"calls"`
	Period time.Duration `yaml:"period"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment
// variables. Overrides are applied before validation, so a provider key
// supplied only via the environment is enough to start, and a provider
// switched via the environment still fails fast when its key is missing.
func LoadWithEnv(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("ALPHA_VANTAGE_API_KEY"); v != "" {
		c.Provider.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("PROVIDER"); v != "" {
		c.Provider.Kind = v
	}
	if v := os.Getenv("STORAGE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Events.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Storage.SQLite.Path = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = 10 * time.Second
	}
	if c.Provider.MaxRetries == 0 {
		c.Provider.MaxRetries = 3
	}
	if c.Provider.RetryBaseDelay == 0 {
		c.Provider.RetryBaseDelay = 2 * time.Second
	}
	if c.Sync.FreshnessWindow == 0 {
		c.Sync.FreshnessWindow = time.Hour
	}
	if c.Sync.Workers == 0 {
		c.Sync.Workers = 4
	}
	if c.Normalize.Scale == 0 {
		c.Normalize.Scale = 1.0
	}
	if c.Provider.Yahoo.RateLimit.Calls == 0 {
		c.Provider.Yahoo.RateLimit = RateLimit{Calls: 120, Period: time.Minute}
	}
	if c.Provider.AlphaVantage.RateLimit.Calls == 0 {
		c.Provider.AlphaVantage.RateLimit = RateLimit{Calls: 5, Period: time.Minute}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Provider.Kind {
	case "yahoo":
	case "alphavantage":
		if c.Provider.AlphaVantage.APIKey == "" {
			return fmt.Errorf("provider.alpha_vantage.api_key is required")
		}
	default:
		return fmt.Errorf("provider.kind must be 'yahoo' or 'alphavantage', got '%s'", c.Provider.Kind)
	}
	switch c.Storage.Type {
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required")
		}
	case "clickhouse":
		if c.Storage.ClickHouse.Host == "" {
			return fmt.Errorf("storage.clickhouse.host is required")
		}
	default:
		return fmt.Errorf("storage.type must be 'sqlite' or 'clickhouse', got '%s'", c.Storage.Type)
	}
	if c.Events.Enabled && len(c.Events.Brokers) == 0 {
		return fmt.Errorf("events.brokers cannot be empty when events are enabled")
	}
	return nil
}
