package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/leapci/internal/cli/output"
	"github.com/leapstack-labs/leapci/internal/pipeline"
	"github.com/leapstack-labs/leapci/internal/runner"
	"github.com/spf13/cobra"
)

// MatrixOptions holds options for the matrix command.
type MatrixOptions struct {
	Select []string
}

// NewMatrixCommand creates the matrix command.
func NewMatrixCommand() *cobra.Command {
	opts := &MatrixOptions{}

	cmd := &cobra.Command{
		Use:   "matrix",
		Short: "Show the expanded job matrix",
		Long: `Expand the descriptor's version and env matrices into the jobs a build
would run, without executing anything.`,
		Example: `  # Show all matrix jobs
  leapci matrix

  # Show the jobs a selector would keep
  leapci matrix --select 3.12

  # Machine-readable output
  leapci matrix -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContextWithoutStore(cmd)
			d, err := loadDescriptor(cmdCtx)
			if err != nil {
				return err
			}
			return renderMatrix(cmdCtx.Renderer, d, opts.Select)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Select, "select", "s", nil, "Show only jobs matching a version or key substring")

	return cmd
}

// matrixJob is the JSON shape of one expanded job.
type matrixJob struct {
	Index   int      `json:"index"`
	Key     string   `json:"key"`
	Version string   `json:"version,omitempty"`
	EnvRow  string   `json:"env_row,omitempty"`
	Env     []string `json:"env,omitempty"`
}

// renderMatrix prints the expanded matrix. The run command's --dry-run
// shares this output.
func renderMatrix(r *output.Renderer, d *pipeline.Descriptor, selected []string) error {
	jobs := runner.FilterJobs(d.Jobs(), selected)

	if r.EffectiveMode() == output.ModeJSON {
		out := make([]matrixJob, 0, len(jobs))
		for _, job := range jobs {
			out = append(out, matrixJob{
				Index:   job.Index,
				Key:     job.Key,
				Version: job.Version,
				EnvRow:  job.EnvRow,
				Env:     job.Env,
			})
		}
		return r.JSON(out)
	}

	if len(jobs) == 0 {
		r.Warning("no jobs match the selection")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.Out())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Job", "Version", "Env"})
	for _, job := range jobs {
		t.AppendRow(table.Row{job.Index + 1, job.Key, job.Version, job.EnvRow})
	}
	t.Render()
	r.Printf("(%d jobs)\n", len(jobs))

	return nil
}
