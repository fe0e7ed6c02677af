package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/onramp/internal/config"
	"github.com/aretw0/onramp/internal/inbox"
	"github.com/aretw0/onramp/internal/logging"
	"github.com/aretw0/onramp/pkg/adapters/file"
	redisadapter "github.com/aretw0/onramp/pkg/adapters/redis"
	"github.com/aretw0/onramp/pkg/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() config.Config {
	cfg := config.Default()
	cfg.Salt = "factory-salt"
	return cfg
}

func build(t *testing.T, cfg config.Config) *Runtime {
	t.Helper()
	rt, err := Build(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func TestBuild_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	_, err := Build(context.Background(), cfg, logging.NewNop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestBuild_Drivers(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name   string
		mutate func(*config.Config, string)
	}{
		{"Memory", func(c *config.Config, _ string) {}},
		{"File", func(c *config.Config, dir string) {
			c.Storage.Driver = config.DriverFile
			c.Storage.Path = dir
		}},
		{"SQLite", func(c *config.Config, dir string) {
			c.Storage.Driver = config.DriverSQLite
			c.Storage.Path = filepath.Join(dir, "onramp.db")
		}},
		{"Redis", func(c *config.Config, _ string) {
			c.Storage.Driver = config.DriverRedis
			c.Storage.Redis.Addr = mr.Addr()
		}},
		{"Encrypted SQLite", func(c *config.Config, dir string) {
			c.Storage.Driver = config.DriverSQLite
			c.Storage.Path = filepath.Join(dir, "sealed.db")
			c.Encryption.Secret = "0123456789abcdef"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(&cfg, t.TempDir())
			rt := build(t, cfg)
			ctx := context.Background()

			payload, err := rt.Engine.Advance(ctx, "u1", "next")
			require.NoError(t, err)
			assert.Equal(t, "step1", payload.StepID)

			s, err := rt.Engine.Session(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, []string{"step1"}, s.CompletedSteps)

			ids, err := rt.Engine.Sessions(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"u1"}, ids)

			n, err := testutil.GatherAndCount(rt.Metrics.Registry(), "onramp_identity_issued_total")
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestBuild_EncryptionSealsAtRest(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig()
	cfg.Storage.Driver = config.DriverFile
	cfg.Storage.Path = dir
	cfg.Encryption.Secret = "0123456789abcdef"

	rt := build(t, cfg)
	_, err := rt.Engine.Advance(context.Background(), "u1", "next")
	require.NoError(t, err)

	raw, err := file.New(dir).Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, raw.Sealed)
	assert.Empty(t, raw.SecureID)
	assert.Empty(t, raw.CompletedSteps)
}

func TestBuild_RedisUsesLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := baseConfig()
	cfg.Storage.Driver = config.DriverRedis
	cfg.Storage.Redis.Addr = mr.Addr()

	_, locker, closeStore, err := OpenStore(context.Background(), cfg.Storage, logging.NewNop())
	require.NoError(t, err)
	defer closeStore()
	assert.IsType(t, &redisadapter.Locker{}, locker)

	build(t, cfg)
	mr.Close()

	_, err = Build(context.Background(), cfg, logging.NewNop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStorageUnavailable))
}

func TestBuild_ProtocolFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protocol.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
steps:
  - id: hello
    narrative: "Hi {{ .UserID }}"
`), 0644))

	cfg := baseConfig()
	cfg.ProtocolFile = path
	rt := build(t, cfg)

	steps := rt.Engine.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, "hello", steps[0].ID)

	payload, err := rt.Engine.Advance(context.Background(), "u1", "next")
	require.NoError(t, err)
	assert.Equal(t, "Hi u1", payload.Narrative)
	assert.True(t, payload.Terminal)

	cfg.ProtocolFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = Build(context.Background(), cfg, logging.NewNop())
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestBuild_Inbox(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inbox.csv")
	cfg := baseConfig()
	cfg.Inbox.Path = path
	cfg.Inbox.Keywords = []string{"urgent"}

	rt := build(t, cfg)
	require.NotNil(t, rt.Inbox)

	receipt, err := rt.Inbox.Submit(context.Background(), inboxMessage("u1", "this is urgent"))
	require.NoError(t, err)
	assert.True(t, receipt.Escalated)
	require.NoError(t, rt.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "this is urgent")
}

func inboxMessage(userID, text string) inbox.Message {
	return inbox.Message{UserID: userID, Text: text}
}
