package config

import (
	"fmt"
	"strings"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateAuth(); err != nil {
		return err
	}
	if err := c.validateProfiles(); err != nil {
		return err
	}
	if c.Notify.DedupeSize < 0 {
		return fmt.Errorf("NOTIFY_DEDUPE_SIZE must not be negative")
	}
	return c.validateLog()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("RATE_LIMIT must not be negative")
	}
	if c.Server.RateLimit > 0 && c.Server.RateWindow <= 0 {
		return fmt.Errorf("RATE_WINDOW must be positive when RATE_LIMIT is set")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite3, got %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.URL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.Timeout <= 0 {
		return fmt.Errorf("STORAGE_TIMEOUT must be positive")
	}
	if c.Storage.MaxRetries < 0 || c.Storage.MaxRetries > 10 {
		return fmt.Errorf("STORAGE_MAX_RETRIES must be between 0 and 10, got %d", c.Storage.MaxRetries)
	}
	return nil
}

func (c *Config) validateAuth() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.IsProduction() {
		if c.Auth.JWTSecret == DefaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be changed in production")
		}
		if len(c.Auth.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}
	}
	return nil
}

func (c *Config) validateProfiles() error {
	switch c.Profiles.Source {
	case "sql":
	case "dynamodb":
		if c.Profiles.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required when PROFILE_SOURCE=dynamodb")
		}
	default:
		return fmt.Errorf("PROFILE_SOURCE must be sql or dynamodb, got %q", c.Profiles.Source)
	}
	return nil
}

func (c *Config) validateLog() error {
	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, disabled")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}
	return nil
}
