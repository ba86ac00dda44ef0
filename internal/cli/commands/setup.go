package commands

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/leapci/internal/cli/config"
	"github.com/leapstack-labs/leapci/internal/cli/output"
	intconfig "github.com/leapstack-labs/leapci/internal/config"
	"github.com/leapstack-labs/leapci/internal/state"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Store    state.Store
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with an open state store and
// renderer. Returns the context and a cleanup function that must be called
// (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	cleanup := func() {
		_ = store.Close()
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Store:    store,
		Renderer: r,
	}, cleanup, nil
}

// NewCommandContextWithoutStore creates a CommandContext without a state
// store. Useful for commands that don't need build history.
func NewCommandContextWithoutStore(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// Helper functions shared across commands

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to
// environment variables.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	// Fallback: read from environment with defaults
	pipelineFile := getEnvOrDefault("LEAPCI_PIPELINE_FILE", config.DefaultPipelineFile)
	statePath := getEnvOrDefault("LEAPCI_STATE_PATH", config.DefaultStateFile)
	logsDir := getEnvOrDefault("LEAPCI_LOGS_DIR", config.DefaultLogsDir)
	artifactsDir := getEnvOrDefault("LEAPCI_ARTIFACTS_DIR", config.DefaultArtifactsDir)
	verbose := os.Getenv("LEAPCI_VERBOSE") == "true"
	outputFormat := os.Getenv("LEAPCI_OUTPUT")

	root, err := os.Getwd()
	if err != nil {
		root = "."
	}

	return &config.Config{
		Project:      filepath.Base(root),
		PipelineFile: pipelineFile,
		StatePath:    statePath,
		LogsDir:      logsDir,
		ArtifactsDir: artifactsDir,
		Verbose:      verbose,
		OutputFormat: outputFormat,
		ProjectRoot:  root,
		Serve:        config.ServeConfig{Port: intconfig.DefaultServePort},
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// openStore opens the SQLite state store, creating its directory and
// running pending migrations.
func openStore(cfg *config.Config, logger *slog.Logger) (state.Store, error) {
	if cfg.StatePath != ":memory:" {
		stateDir := filepath.Dir(cfg.StatePath)
		if stateDir != "." && stateDir != "" {
			if err := os.MkdirAll(stateDir, 0750); err != nil {
				return nil, err
			}
		}
	}

	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}
