// Package config provides configuration management for the LeapCI CLI.
//
// Tool configuration (leapci.yaml) is separate from the pipeline
// descriptor (.leapci.yml): the descriptor says what a build does, the
// tool config says where LeapCI keeps its state and how it talks to the
// outside world.
package config

import intconfig "github.com/leapstack-labs/leapci/internal/config"

// Config holds all CLI configuration options.
type Config struct {
	Project      string      `koanf:"project"`
	PipelineFile string      `koanf:"pipeline_file"`
	StatePath    string      `koanf:"state_path"`
	LogsDir      string      `koanf:"logs_dir"`
	ArtifactsDir string      `koanf:"artifacts_dir"`
	Verbose      bool        `koanf:"verbose"`
	OutputFormat string      `koanf:"output"`
	SMTP         SMTPConfig  `koanf:"smtp"`
	Serve        ServeConfig `koanf:"serve"`

	// ProjectRoot is inferred at load time, not read from the file.
	ProjectRoot string `koanf:"-"`
}

// SMTPConfig holds the mail transport settings for notifications.
// Sensitive fields support ${VAR} expansion from the environment.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
	StartTLS bool   `koanf:"starttls"`
}

// ServeConfig holds settings for the local dashboard server.
type ServeConfig struct {
	Port int `koanf:"port"`
}

// Default configuration values - uses shared defaults from internal/config
const (
	DefaultPipelineFile = intconfig.DefaultPipelineFile
	DefaultStateFile    = intconfig.DefaultStateFile
	DefaultLogsDir      = intconfig.DefaultLogsDir
	DefaultArtifactsDir = intconfig.DefaultArtifactsDir
	DefaultServePort    = intconfig.DefaultServePort
	DefaultOutput       = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)
