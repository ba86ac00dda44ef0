// Package commands_test provides tests for CLI command creation.
package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapci/internal/cli/config"
	"github.com/leapstack-labs/leapci/internal/testutil"
)

func TestNewServeCommand(t *testing.T) {
	cmd := NewServeCommand()

	assert.Equal(t, "serve", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")

	// Verify flags exist (output is a global flag on root, not local)
	flags := []string{"port", "no-browser"}
	for _, flag := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewLogsCommand(t *testing.T) {
	cmd := NewLogsCommand()

	assert.Equal(t, "logs [build]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotNil(t, cmd.Flags().Lookup("job"), "flag \"job\" should exist")
}

func TestGetConfigFallback(t *testing.T) {
	t.Setenv("LEAPCI_PIPELINE_FILE", "ci/alt.yml")
	t.Setenv("LEAPCI_OUTPUT", "json")

	cfg := getConfig()

	cwd, err := os.Getwd()
	require.NoError(t, err)

	assert.Equal(t, "ci/alt.yml", cfg.PipelineFile)
	assert.Equal(t, "json", cfg.OutputFormat)
	assert.Equal(t, filepath.Base(cwd), cfg.Project)
	assert.Equal(t, cwd, cfg.ProjectRoot)
	assert.NotZero(t, cfg.Serve.Port)
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("LEAPCI_TEST_KEY", "set")

	assert.Equal(t, "set", getEnvOrDefault("LEAPCI_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", getEnvOrDefault("LEAPCI_TEST_KEY_UNSET", "fallback"))
}

func TestOpenStoreMemory(t *testing.T) {
	cfg := &config.Config{StatePath: ":memory:"}

	store, err := openStore(cfg, testutil.NewTestLogger(t))
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestOpenStoreCreatesStateDir(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{StatePath: filepath.Join(dir, "nested", "state.db")}

	store, err := openStore(cfg, testutil.NewTestLogger(t))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	assert.DirExists(t, filepath.Join(dir, "nested"))
}

func TestNewCommandContextWithoutStore(t *testing.T) {
	cmd := NewVersionCommand("test")
	cmd.SetContext(context.Background())

	cmdCtx := NewCommandContextWithoutStore(cmd)

	assert.NotNil(t, cmdCtx.Cfg)
	assert.NotNil(t, cmdCtx.Logger)
	assert.NotNil(t, cmdCtx.Renderer)
	assert.Nil(t, cmdCtx.Store)
}
