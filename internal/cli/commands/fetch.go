package commands

import (
	"fmt"

	"github.com/leapstack-labs/leapci/internal/cli/output"
	"github.com/leapstack-labs/leapci/internal/runner"
	"github.com/leapstack-labs/leapci/internal/source"
	"github.com/spf13/cobra"
)

// NewFetchCommand creates the fetch command.
func NewFetchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the pipeline's source checkout",
		Long: `Run only the source stage of the pipeline: clone or update the configured
repository, check out the pinned version and apply any patches. Build jobs
are not executed.`,
		Example: `  # Materialize the source checkout
  leapci fetch

  # Machine-readable output
  leapci fetch -o json`,
		RunE: runFetch,
	}

	return cmd
}

func runFetch(cmd *cobra.Command, _ []string) error {
	cmdCtx := NewCommandContextWithoutStore(cmd)
	r := cmdCtx.Renderer

	d, err := loadDescriptor(cmdCtx)
	if err != nil {
		return err
	}
	if !d.HasSource() {
		return fmt.Errorf("descriptor %s has no source section", cmdCtx.Cfg.PipelineFile)
	}

	srcCfg := runner.SourceConfig(d.Source, cmdCtx.Cfg.ProjectRoot)
	head, err := source.New(cmdCtx.Logger).Fetch(cmd.Context(), srcCfg)
	if err != nil {
		return fmt.Errorf("fetching source: %w", err)
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]string{
			"url":    srcCfg.URL,
			"dir":    srcCfg.Dir,
			"commit": head,
		})
	}

	r.Success(fmt.Sprintf("Checked out %s at %s", srcCfg.URL, shortCommit(head)))
	r.Printf("  %s\n", srcCfg.Dir)

	return nil
}

// shortCommit abbreviates a full git hash for display.
func shortCommit(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}
