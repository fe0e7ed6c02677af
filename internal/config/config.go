// Package config loads the onramp configuration from an optional YAML file
// overlaid with ONRAMP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aretw0/onramp/pkg/domain"
	"github.com/aretw0/onramp/pkg/identity"
	"github.com/aretw0/onramp/pkg/persistence/middleware"
	"github.com/aretw0/onramp/pkg/risk"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

// Config is the full process configuration.
type Config struct {
	Salt          string  `mapstructure:"salt"`
	Algorithm     string  `mapstructure:"algorithm"`
	RiskThreshold float64 `mapstructure:"risk_threshold"`
	ProtocolFile  string  `mapstructure:"protocol_file"`
	LogLevel      string  `mapstructure:"log_level"`

	HTTP       HTTPConfig       `mapstructure:"http"`
	MCP        MCPConfig        `mapstructure:"mcp"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Encryption EncryptionConfig `mapstructure:"encryption"`
	Inbox      InboxConfig      `mapstructure:"inbox"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
	// RateLimit is the sustained advance rate per user, in requests per second.
	// Zero disables rate limiting.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

type MCPConfig struct {
	Transport string `mapstructure:"transport"`
	Port      int    `mapstructure:"port"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	// Path is the session directory for the file driver and the database file for sqlite.
	Path    string        `mapstructure:"path"`
	LockTTL time.Duration `mapstructure:"lock_ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type EncryptionConfig struct {
	Secret          string   `mapstructure:"secret"`
	FallbackSecrets []string `mapstructure:"fallback_secrets"`
}

// Enabled reports whether sessions are sealed at rest.
func (c EncryptionConfig) Enabled() bool {
	return c.Secret != ""
}

// Middleware converts the section into the store middleware configuration.
func (c EncryptionConfig) Middleware() middleware.EncryptionConfig {
	cfg := middleware.EncryptionConfig{Secret: []byte(c.Secret)}
	for _, s := range c.FallbackSecrets {
		cfg.FallbackSecrets = append(cfg.FallbackSecrets, []byte(s))
	}
	return cfg
}

type InboxConfig struct {
	// Path is the CSV journal. Empty disables the inbox.
	Path     string   `mapstructure:"path"`
	Keywords []string `mapstructure:"keywords"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Algorithm:     string(identity.AlgorithmSHA256),
		RiskThreshold: risk.DefaultThreshold,
		LogLevel:      "info",
		HTTP: HTTPConfig{
			Addr:      ":8080",
			RateLimit: 5,
			RateBurst: 10,
		},
		MCP: MCPConfig{
			Transport: "stdio",
			Port:      8081,
		},
		Storage: StorageConfig{
			Driver:  DriverMemory,
			Path:    ".onramp",
			LockTTL: 5 * time.Second,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "onramp:session:",
			},
		},
	}
}

// envKeys maps environment variables to configuration keys.
var envKeys = map[string]string{
	"ONRAMP_SALT":                "salt",
	"ONRAMP_ALGORITHM":           "algorithm",
	"ONRAMP_RISK_THRESHOLD":      "risk_threshold",
	"ONRAMP_PROTOCOL_FILE":       "protocol_file",
	"ONRAMP_LOG_LEVEL":           "log_level",
	"ONRAMP_HTTP_ADDR":           "http.addr",
	"ONRAMP_HTTP_RATE_LIMIT":     "http.rate_limit",
	"ONRAMP_HTTP_RATE_BURST":     "http.rate_burst",
	"ONRAMP_MCP_TRANSPORT":       "mcp.transport",
	"ONRAMP_MCP_PORT":            "mcp.port",
	"ONRAMP_STORAGE_DRIVER":      "storage.driver",
	"ONRAMP_STORAGE_PATH":        "storage.path",
	"ONRAMP_LOCK_TTL":            "storage.lock_ttl",
	"ONRAMP_REDIS_ADDR":          "storage.redis.addr",
	"ONRAMP_REDIS_PASSWORD":      "storage.redis.password",
	"ONRAMP_REDIS_DB":            "storage.redis.db",
	"ONRAMP_REDIS_PREFIX":        "storage.redis.prefix",
	"ONRAMP_REDIS_TTL":           "storage.redis.ttl",
	"ONRAMP_ENCRYPTION_SECRET":   "encryption.secret",
	"ONRAMP_ENCRYPTION_FALLBACK": "encryption.fallback_secrets",
	"ONRAMP_INBOX_PATH":          "inbox.path",
	"ONRAMP_INBOX_KEYWORDS":      "inbox.keywords",
}

// Load reads the YAML file at path (skipped when path is empty) and applies
// the environment overlay. The result is not validated.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	raw := map[string]any{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: failed to read config file: %v", domain.ErrConfiguration, err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("%w: invalid config file %s: %v", domain.ErrConfiguration, path, err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
	}

	for env, key := range envKeys {
		if val, ok := lookup(env); ok {
			setPath(raw, strings.Split(key, "."), val)
		}
	}

	cfg := Default()
	if err := decode(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	return cfg, nil
}

func decode(input map[string]any, out *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// setPath assigns val at the nested key path, creating sections as needed.
func setPath(m map[string]any, path []string, val string) {
	for _, key := range path[:len(path)-1] {
		next, ok := m[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[key] = next
		}
		m = next
	}
	m[path[len(path)-1]] = val
}

// Validate reports every invalid setting, wrapped in domain.ErrConfiguration.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Salt) == "" {
		errs = append(errs, errors.New("salt is required"))
	}
	switch identity.Algorithm(c.Algorithm) {
	case identity.AlgorithmSHA256, identity.AlgorithmBLAKE3:
	default:
		errs = append(errs, fmt.Errorf("unknown algorithm %q", c.Algorithm))
	}
	if c.RiskThreshold < 0 || c.RiskThreshold > 100 {
		errs = append(errs, fmt.Errorf("risk_threshold %.1f out of range [0,100]", c.RiskThreshold))
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverFile, DriverSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, fmt.Errorf("storage.path is required for the %s driver", c.Storage.Driver))
		}
	case DriverRedis:
		if c.Storage.Redis.Addr == "" {
			errs = append(errs, errors.New("storage.redis.addr is required for the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	if c.Storage.LockTTL < 0 {
		errs = append(errs, errors.New("storage.lock_ttl must not be negative"))
	}

	if c.Encryption.Enabled() {
		if len(c.Encryption.Secret) < middleware.MinSecretSize {
			errs = append(errs, fmt.Errorf("encryption.secret must be at least %d bytes", middleware.MinSecretSize))
		}
		for i, s := range c.Encryption.FallbackSecrets {
			if len(s) < middleware.MinSecretSize {
				errs = append(errs, fmt.Errorf("encryption.fallback_secrets[%d] must be at least %d bytes", i, middleware.MinSecretSize))
			}
		}
	}

	if c.HTTP.RateLimit < 0 || c.HTTP.RateBurst < 0 {
		errs = append(errs, errors.New("http rate limits must not be negative"))
	}
	if c.HTTP.RateLimit > 0 && c.HTTP.RateBurst == 0 {
		errs = append(errs, errors.New("http.rate_burst must be positive when rate_limit is set"))
	}

	switch c.MCP.Transport {
	case "stdio", "sse":
	default:
		errs = append(errs, fmt.Errorf("unknown mcp transport %q", c.MCP.Transport))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrConfiguration, errors.Join(errs...))
}
