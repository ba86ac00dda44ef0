package config

import (
	"fmt"
	"os"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.PipelineFile == "" {
		return fmt.Errorf("pipeline_file is required")
	}

	// Only validate file existence if we're running a command that needs it
	// This allows help commands to work without a descriptor
	return nil
}

// ValidatePipelineFile checks if the pipeline descriptor exists.
func (c *Config) ValidatePipelineFile() error {
	if _, err := os.Stat(c.PipelineFile); os.IsNotExist(err) {
		return fmt.Errorf("pipeline file does not exist: %s\nHint: run 'leapci init' to scaffold a project or use --file to point at a descriptor", c.PipelineFile)
	}
	return nil
}
