package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigCreatesDefault(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	path := filepath.Join(t.TempDir(), "conf", "config.toml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Expected default config file to be written: %v", err)
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Errorf("Expected JWT secret from environment, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Server.Port != "5000" || cfg.Database.Driver != "sqlite" {
		t.Errorf("Expected defaults, got port %s driver %s", cfg.Server.Port, cfg.Database.Driver)
	}

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "from-env") {
		t.Error("Environment secrets must not be written to the config file")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
port = "8080"

[auth]
jwt_secret = "file-secret"
token_duration = "1h"

[cache]
ttl = "30s"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	t.Setenv("REDIS_ADDR", "redis.internal:6379")
	t.Setenv("MONGO_URI", "mongodb://db.internal:27017")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected port from file, got %s", cfg.Server.Port)
	}
	if cfg.TokenTTL() != time.Hour || cfg.CacheTTL() != 30*time.Second {
		t.Errorf("Unexpected durations: token %s cache %s", cfg.TokenTTL(), cfg.CacheTTL())
	}
	if cfg.OTPTTL() != 10*time.Minute {
		t.Errorf("Expected default OTP ttl, got %s", cfg.OTPTTL())
	}
	if cfg.Cache.Driver != "redis" || cfg.Cache.RedisAddr != "redis.internal:6379" {
		t.Errorf("Expected REDIS_ADDR to select redis, got %s %s", cfg.Cache.Driver, cfg.Cache.RedisAddr)
	}
	if cfg.Database.Driver != "mongo" {
		t.Errorf("Expected MONGO_URI to select mongo, got %s", cfg.Database.Driver)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing secret", func(c *Config) { c.Auth.JWTSecret = "" }, "jwt_secret"},
		{"bad driver", func(c *Config) { c.Database.Driver = "postgres" }, "invalid database driver"},
		{"mongo without uri", func(c *Config) { c.Database.Driver = "mongo"; c.Database.URI = "" }, "requires database uri"},
		{"bad otp duration", func(c *Config) { c.Auth.OTPDuration = "ten minutes" }, "invalid otp duration"},
		{"bcrypt cost too low", func(c *Config) { c.Auth.BcryptCost = 2 }, "bcrypt cost"},
		{"mail without host", func(c *Config) { c.Mail.Enabled = true; c.Mail.Host = "" }, "mail host"},
		{"minio without bucket", func(c *Config) { c.Storage.Driver = "minio"; c.Storage.MinioBucket = "" }, "minio storage"},
		{"zero upload size", func(c *Config) { c.Storage.MaxUploadSize = 0 }, "max upload size"},
		{"bad cache driver", func(c *Config) { c.Cache.Driver = "memcached" }, "invalid cache driver"},
		{"inbox without formats", func(c *Config) { c.Inbox.Enabled = true; c.Inbox.SupportedFormats = nil }, "inbox audio format"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Auth.JWTSecret = "secret"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestHelpers(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.MaxUploadBytes(); got != 50*1024*1024 {
		t.Errorf("MaxUploadBytes() = %d", got)
	}
	if got := cfg.GetAddress(); got != "0.0.0.0:5000" {
		t.Errorf("GetAddress() = %s", got)
	}
	if cfg.GoogleEnabled() {
		t.Error("Google should be disabled without credentials")
	}
	cfg.OAuth.GoogleClientID = "id"
	cfg.OAuth.GoogleClientSecret = "secret"
	if !cfg.GoogleEnabled() {
		t.Error("Google should be enabled with credentials")
	}
}
