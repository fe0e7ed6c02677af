package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/onramp"
	"github.com/aretw0/onramp/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func fileConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "onramp.yaml")
	content := "salt: cmd-test-salt\nlog_level: error\nstorage:\n  driver: file\n  path: " + filepath.Join(dir, "sessions") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "onramp version "+onramp.Version+"\n", out)
}

func TestValidate(t *testing.T) {
	out, err := run(t, "", "validate", "--config", fileConfig(t))
	require.NoError(t, err)
	assert.Contains(t, out, "3 steps, file storage")

	t.Setenv("ONRAMP_STORAGE_DRIVER", "etcd")
	_, err = run(t, "", "validate", "--config", fileConfig(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage driver")
}

func TestSteps(t *testing.T) {
	cfg := fileConfig(t)

	out, err := run(t, "", "steps", "--config", cfg, "--json")
	require.NoError(t, err)
	var steps []domain.StepDefinition
	require.NoError(t, json.Unmarshal([]byte(out), &steps))
	assert.Len(t, steps, 3)
}

func TestPlayAndSessions(t *testing.T) {
	cfg := fileConfig(t)

	out, err := run(t, "next\nnext\nexit\n", "play", "alice", "--config", cfg, "--plain")
	require.NoError(t, err)
	assert.Contains(t, out, "USR-")

	out, err = run(t, "", "session", "ls", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "- alice")

	out, err = run(t, "", "session", "inspect", "alice", "--config", cfg)
	require.NoError(t, err)
	var s domain.Session
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, []string{"step1", "step2"}, s.CompletedSteps)

	out, err = run(t, "", "session", "rm", "alice", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed session 'alice'")

	out, err = run(t, "", "session", "ls", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "No active sessions found.")
}
