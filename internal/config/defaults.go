// Package config holds the configuration defaults shared between the CLI
// and the packages that run builds.
package config

// Default configuration values.
const (
	DefaultPipelineFile = ".leapci.yml"
	DefaultStateFile    = ".leapci/state.db"
	DefaultLogsDir      = ".leapci/logs"
	DefaultArtifactsDir = ".leapci/artifacts"
	DefaultServePort    = 8780
)

// EnvPrefix is the prefix for configuration environment variables.
const EnvPrefix = "LEAPCI_"
