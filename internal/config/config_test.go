package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/onramp/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func envFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "onramp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load("", noEnv)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	// Defaults alone lack a salt.
	err = cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	assert.Contains(t, err.Error(), "salt is required")
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
salt: file-salt
algorithm: blake3
risk_threshold: 30
http:
  addr: ":9090"
  rate_limit: 2.5
storage:
  driver: redis
  lock_ttl: 2s
  redis:
    addr: redis:6379
    db: 3
    ttl: 24h
encryption:
  secret: 0123456789abcdef
  fallback_secrets: [fedcba9876543210]
inbox:
  path: inbox.csv
  keywords: [help, bug]
`)
	cfg, err := load(path, noEnv)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "file-salt", cfg.Salt)
	assert.Equal(t, "blake3", cfg.Algorithm)
	assert.Equal(t, 30.0, cfg.RiskThreshold)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 2.5, cfg.HTTP.RateLimit)
	assert.Equal(t, 10, cfg.HTTP.RateBurst, "unset keys keep their default")
	assert.Equal(t, DriverRedis, cfg.Storage.Driver)
	assert.Equal(t, 2*time.Second, cfg.Storage.LockTTL)
	assert.Equal(t, 3, cfg.Storage.Redis.DB)
	assert.Equal(t, 24*time.Hour, cfg.Storage.Redis.TTL)
	assert.Equal(t, "onramp:session:", cfg.Storage.Redis.Prefix)
	assert.True(t, cfg.Encryption.Enabled())
	assert.Len(t, cfg.Encryption.Middleware().FallbackSecrets, 1)
	assert.Equal(t, []string{"help", "bug"}, cfg.Inbox.Keywords)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "salt: file-salt\nstorage:\n  driver: file\n")
	cfg, err := load(path, envFrom(map[string]string{
		"ONRAMP_SALT":           "env-salt",
		"ONRAMP_STORAGE_DRIVER": "sqlite",
		"ONRAMP_STORAGE_PATH":   "onramp.db",
		"ONRAMP_REDIS_DB":       "7",
		"ONRAMP_LOCK_TTL":       "750ms",
		"ONRAMP_INBOX_KEYWORDS": "help,stuck",
	}))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "env-salt", cfg.Salt)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "onramp.db", cfg.Storage.Path)
	assert.Equal(t, 7, cfg.Storage.Redis.DB)
	assert.Equal(t, 750*time.Millisecond, cfg.Storage.LockTTL)
	assert.Equal(t, []string{"help", "stuck"}, cfg.Inbox.Keywords)
}

func TestLoad_Errors(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "missing.yaml"), noEnv)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))

	_, err = load(writeConfig(t, "salt: [unclosed"), noEnv)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))

	_, err = load(writeConfig(t, "sallt: typo\n"), noEnv)
	assert.True(t, errors.Is(err, domain.ErrConfiguration), "unknown keys are rejected")

	_, err = load("", envFrom(map[string]string{"ONRAMP_LOCK_TTL": "soon"}))
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Default()
		cfg.Salt = "s"
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		msg    string
	}{
		{"Unknown Algorithm", func(c *Config) { c.Algorithm = "md5" }, "unknown algorithm"},
		{"Unknown Driver", func(c *Config) { c.Storage.Driver = "etcd" }, "unknown storage driver"},
		{"File Without Path", func(c *Config) { c.Storage.Driver = DriverFile; c.Storage.Path = "" }, "storage.path"},
		{"Redis Without Addr", func(c *Config) { c.Storage.Driver = DriverRedis; c.Storage.Redis.Addr = "" }, "storage.redis.addr"},
		{"Short Secret", func(c *Config) { c.Encryption.Secret = "short" }, "encryption.secret"},
		{"Short Fallback", func(c *Config) {
			c.Encryption.Secret = "0123456789abcdef"
			c.Encryption.FallbackSecrets = []string{"x"}
		}, "fallback_secrets[0]"},
		{"Threshold Range", func(c *Config) { c.RiskThreshold = 120 }, "risk_threshold"},
		{"Burst Missing", func(c *Config) { c.HTTP.RateBurst = 0 }, "rate_burst"},
		{"Unknown Transport", func(c *Config) { c.MCP.Transport = "ws" }, "mcp transport"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrConfiguration))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
