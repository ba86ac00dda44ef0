package commands

import (
	"fmt"
	"os"

	"github.com/leapstack-labs/leapci/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new LeapCI project",
		Long: `Initialize a new LeapCI project with a pipeline descriptor and configuration.

This creates:
  - .leapci.yml pipeline descriptor
  - leapci.yaml tool configuration file
  - .gitignore ignoring build state and logs

Use --example to also scaffold a small Python package with tests, a
version matrix and artifact collection demonstrating the descriptor
format.`,
		Example: `  # Initialize in current directory
  leapci init

  # Initialize with a full working example
  leapci init --example

  # Initialize in a new directory
  leapci init my-project --example

  # Force overwrite existing config
  leapci init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			// Create renderer
			cfg := getConfig()
			mode := output.Mode(cfg.OutputFormat)
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

			if example {
				return runInitExample(r, dir, force)
			}
			return runInit(r, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().BoolVar(&example, "example", false, "Create a full example project with source and tests")

	return cmd
}

func runInit(r *output.Renderer, dir string, force bool) error {
	// Create directory if specified and doesn't exist
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	// Check if config already exists
	configPath := dir + "/leapci.yaml"
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("leapci.yaml already exists. Use --force to overwrite")
	}

	// Copy minimal template
	if err := copyTemplate("minimal", dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	// List created files
	files, _ := listTemplateFiles("minimal")
	for _, f := range files {
		r.StatusLine(f, "success", "")
	}

	r.Println("")
	r.Success("LeapCI project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Edit .leapci.yml to describe your build")
	r.Println("  2. Run 'leapci lint' to validate the descriptor")
	r.Println("  3. Run 'leapci run' to execute the pipeline")
	r.Println("  4. Run 'leapci history' to see past builds")

	return nil
}

func runInitExample(r *output.Renderer, dir string, force bool) error {
	// Create directory if specified and doesn't exist
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	// Check if config already exists
	configPath := dir + "/leapci.yaml"
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("leapci.yaml already exists. Use --force to overwrite")
	}

	// Copy example template
	if err := copyTemplate("example", dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	// List created files by category
	files, _ := listTemplateFiles("example")
	groups := groupTemplateFiles(files)

	// Display files by category
	r.Header(2, "Configuration")
	for _, f := range groups["config"] {
		r.StatusLine(f, "success", "")
	}

	r.Println("")
	r.Header(2, "Source")
	for _, f := range groups["src"] {
		r.StatusLine(f, "success", "")
	}

	r.Println("")
	r.Header(2, "Tests")
	for _, f := range groups["tests"] {
		r.StatusLine(f, "success", "")
	}

	r.Println("")
	r.Success("LeapCI project initialized with example pipeline!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  leapci matrix    Preview the expanded job matrix")
	r.Println("  leapci run       Execute the pipeline")
	r.Println("  leapci history   View past builds")
	r.Println("  leapci serve     Open the build dashboard")

	return nil
}
