package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
environment: test
provider:
  kind: yahoo
storage:
  type: sqlite
  sqlite:
    path: test.db
`

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Provider.Timeout != 10*time.Second {
		t.Fatalf("provider timeout default = %v", c.Provider.Timeout)
	}
	if c.Provider.MaxRetries != 3 {
		t.Fatalf("max retries default = %d", c.Provider.MaxRetries)
	}
	if c.Sync.FreshnessWindow != time.Hour {
		t.Fatalf("freshness window default = %v", c.Sync.FreshnessWindow)
	}
	if c.Sync.Workers != 4 {
		t.Fatalf("workers default = %d", c.Sync.Workers)
	}
	if c.Normalize.Scale != 1.0 {
		t.Fatalf("scale default = %v", c.Normalize.Scale)
	}
	if c.Provider.Yahoo.RateLimit.Calls != 120 || c.Provider.Yahoo.RateLimit.Period != time.Minute {
		t.Fatalf("yahoo rate limit default = %+v", c.Provider.Yahoo.RateLimit)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	body := `
environment: test
provider:
  kind: bloomberg
storage:
  type: sqlite
  sqlite:
    path: test.db
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatalf("unknown provider must fail validation")
	}
}

func TestLoadRequiresAlphaVantageKey(t *testing.T) {
	body := `
environment: test
provider:
  kind: alphavantage
storage:
  type: sqlite
  sqlite:
    path: test.db
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatalf("alphavantage without api key must fail validation")
	}
}

func TestLoadRequiresBrokersWhenEventsEnabled(t *testing.T) {
	body := minimalConfig + `
events:
  enabled: true
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatalf("enabled events without brokers must fail validation")
	}
}

func TestLoadWithEnvKeyOnlyInEnv(t *testing.T) {
	body := `
environment: test
provider:
  kind: alphavantage
storage:
  type: sqlite
  sqlite:
    path: test.db
`
	t.Setenv("ALPHA_VANTAGE_API_KEY", "from-env")

	c, err := LoadWithEnv(writeConfig(t, body))
	if err != nil {
		t.Fatalf("key from environment must satisfy validation: %v", err)
	}
	if c.Provider.AlphaVantage.APIKey != "from-env" {
		t.Fatalf("api key = %q", c.Provider.AlphaVantage.APIKey)
	}
}

func TestLoadWithEnvProviderSwitchStillValidated(t *testing.T) {
	t.Setenv("PROVIDER", "alphavantage")
	t.Setenv("ALPHA_VANTAGE_API_KEY", "")

	if _, err := LoadWithEnv(writeConfig(t, minimalConfig)); err == nil {
		t.Fatalf("switching to alphavantage via env without a key must fail fast")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("PROVIDER", "alphavantage")
	t.Setenv("ALPHA_VANTAGE_API_KEY", "demo")
	t.Setenv("SQLITE_PATH", "/tmp/override.db")

	c, err := LoadWithEnv(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Provider.Kind != "alphavantage" {
		t.Fatalf("provider kind = %s", c.Provider.Kind)
	}
	if c.Provider.AlphaVantage.APIKey != "demo" {
		t.Fatalf("api key not overridden")
	}
	if c.Storage.SQLite.Path != "/tmp/override.db" {
		t.Fatalf("sqlite path not overridden, got %s", c.Storage.SQLite.Path)
	}
}
