package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5*time.Second, cfg.Storage.Timeout)
	assert.Equal(t, 3, cfg.Storage.MaxRetries)
	assert.Equal(t, "sql", cfg.Profiles.Source)
	assert.Equal(t, "matches.mutual", cfg.Notify.Topic)
	assert.False(t, cfg.IsProduction())
}

func TestLoadLayers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
  cors_origins:
    - https://a.example
database:
  driver: sqlite3
  url: /tmp/roommates.db
storage:
  timeout: 2s
log:
  format: console
`), 0o600))

	t.Setenv("PORT", "9100")
	t.Setenv("STORAGE_MAX_RETRIES", "5")
	t.Setenv("CORS_ORIGINS", "https://b.example, https://c.example,")
	t.Setenv("UNRELATED_VAR", "ignored")

	cfg, err := load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port, "env beats file")
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "/tmp/roommates.db", cfg.Database.URL)
	assert.Equal(t, 2*time.Second, cfg.Storage.Timeout)
	assert.Equal(t, 5, cfg.Storage.MaxRetries)
	assert.Equal(t, []string{"https://b.example", "https://c.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "PORT"},
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }, "DATABASE_DRIVER"},
		{"missing url", func(c *Config) { c.Database.URL = " " }, "DATABASE_URL"},
		{"zero timeout", func(c *Config) { c.Storage.Timeout = 0 }, "STORAGE_TIMEOUT"},
		{"too many retries", func(c *Config) { c.Storage.MaxRetries = 11 }, "STORAGE_MAX_RETRIES"},
		{"default secret in production", func(c *Config) { c.Server.Environment = "production" }, "changed in production"},
		{"short secret in production", func(c *Config) {
			c.Server.Environment = "production"
			c.Auth.JWTSecret = "short"
		}, "at least 32"},
		{"dynamodb without table", func(c *Config) {
			c.Profiles.Source = "dynamodb"
			c.Profiles.DynamoDBTable = ""
		}, "DYNAMODB_TABLE"},
		{"unknown profile source", func(c *Config) { c.Profiles.Source = "ldap" }, "PROFILE_SOURCE"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "LOG_LEVEL"},
		{"rate limit without window", func(c *Config) { c.Server.RateWindow = 0 }, "RATE_WINDOW"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
