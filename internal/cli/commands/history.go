package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/leapci/internal/cli/output"
	"github.com/leapstack-labs/leapci/internal/state"
	"github.com/spf13/cobra"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent builds",
		Long:  `List recent builds of this project from the local state database, newest first.`,
		Example: `  # Show the last 20 builds
  leapci history

  # Show the last 5 builds
  leapci history --limit 5

  # Machine-readable output
  leapci history -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Maximum number of builds to show")

	return cmd
}

// historyEntry is the JSON shape of one listed build.
type historyEntry struct {
	Number    int64  `json:"number"`
	Status    string `json:"status"`
	Commit    string `json:"commit,omitempty"`
	StartedAt string `json:"started_at"`
	Duration  string `json:"duration,omitempty"`
	Jobs      string `json:"jobs,omitempty"`
	Error     string `json:"error,omitempty"`
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	r := cmdCtx.Renderer

	builds, err := cmdCtx.Store.ListBuilds(cmdCtx.Cfg.Project, opts.Limit)
	if err != nil {
		return fmt.Errorf("listing builds: %w", err)
	}

	if r.EffectiveMode() == output.ModeJSON {
		out := make([]historyEntry, 0, len(builds))
		for _, b := range builds {
			out = append(out, historyEntry{
				Number:    b.Number,
				Status:    string(b.Status),
				Commit:    shortCommit(b.Commit),
				StartedAt: b.StartedAt.UTC().Format(time.RFC3339),
				Duration:  buildDuration(b),
				Jobs:      jobSummary(cmdCtx, b),
				Error:     b.Error,
			})
		}
		return r.JSON(out)
	}

	if len(builds) == 0 {
		r.Warning(fmt.Sprintf("no builds recorded for %s yet", cmdCtx.Cfg.Project))
		r.Println("Run 'leapci run' to start one.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.Out())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Status", "Commit", "Started", "Duration", "Jobs"})
	for _, b := range builds {
		t.AppendRow(table.Row{
			b.Number,
			string(b.Status),
			shortCommit(b.Commit),
			b.StartedAt.Local().Format("2006-01-02 15:04:05"),
			buildDuration(b),
			jobSummary(cmdCtx, b),
		})
	}
	t.Render()
	r.Printf("(%d builds)\n", len(builds))

	return nil
}

// buildDuration formats the wall time of a completed build.
func buildDuration(b *state.Build) string {
	if b.CompletedAt == nil {
		return ""
	}
	return b.CompletedAt.Sub(b.StartedAt).Round(time.Millisecond).String()
}

// jobSummary reports "passed/total" for the build's matrix jobs.
func jobSummary(cmdCtx *CommandContext, b *state.Build) string {
	jobs, err := cmdCtx.Store.GetJobsForBuild(b.ID)
	if err != nil || len(jobs) == 0 {
		return ""
	}
	passed := 0
	for _, j := range jobs {
		if j.Status == state.JobStatusPassed {
			passed++
		}
	}
	return fmt.Sprintf("%d/%d", passed, len(jobs))
}
