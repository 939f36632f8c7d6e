package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:4000", cfg.Server.Addr())
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "data/free-api.db", cfg.Database.DSN)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.JWTExpires)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Equal(t, 100, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, "ratelimit:", cfg.RateLimit.Prefix)
	assert.Empty(t, cfg.RateLimit.RedisURL)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORS.Origins)
	assert.Zero(t, cfg.Cache.KeyTTL)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9000")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("RATE_LIMIT_REQUESTS", "5")
	t.Setenv("RATE_LIMIT_WINDOW", "10s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("KEY_CACHE_TTL", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, 5, cfg.RateLimit.Requests)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.Origins)
	assert.Equal(t, 30*time.Second, cfg.Cache.KeyTTL)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RATE_LIMIT_WINDOW", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Env:       "development",
			Server:    ServerConfig{Host: "0.0.0.0", Port: 4000},
			Database:  DatabaseConfig{Driver: DriverSQLite, DSN: "data/free-api.db"},
			Auth:      AuthConfig{JWTSecret: DefaultJWTSecret, JWTExpires: time.Hour, BcryptCost: 10},
			RateLimit: RateLimitConfig{Requests: 100, Window: time.Minute},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"memory driver", func(c *Config) { c.Database.Driver = DriverMemory }, false},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mongo" }, true},
		{"firestore without project", func(c *Config) { c.Database.Driver = DriverFirestore }, true},
		{"firestore with project", func(c *Config) {
			c.Database.Driver = DriverFirestore
			c.Firebase.ProjectID = "demo"
		}, false},
		{"default secret in production", func(c *Config) { c.Env = "production" }, true},
		{"custom secret in production", func(c *Config) {
			c.Env = "production"
			c.Auth.JWTSecret = "a-real-secret"
		}, false},
		{"zero requests", func(c *Config) { c.RateLimit.Requests = 0 }, true},
		{"negative window", func(c *Config) { c.RateLimit.Window = -time.Second }, true},
		{"bcrypt cost too low", func(c *Config) { c.Auth.BcryptCost = 2 }, true},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"negative cache ttl", func(c *Config) { c.Cache.KeyTTL = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
