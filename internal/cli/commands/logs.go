package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapci/internal/state"
	"github.com/spf13/cobra"
)

// LogsOptions holds options for the logs command.
type LogsOptions struct {
	Job string
}

// NewLogsCommand creates the logs command.
func NewLogsCommand() *cobra.Command {
	opts := &LogsOptions{}

	cmd := &cobra.Command{
		Use:   "logs [build]",
		Short: "Show captured job logs",
		Long: `Print the captured logs of a build's jobs. With no argument the latest
completed build is shown; pass a build number to pick an older one.`,
		Example: `  # Logs of the latest completed build
  leapci logs

  # Logs of build #12
  leapci logs 12

  # Only the job matching "3.12"
  leapci logs --job 3.12`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogs(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Job, "job", "j", "", "Show only jobs whose key contains this string")

	return cmd
}

func runLogs(cmd *cobra.Command, args []string, opts *LogsOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	r := cmdCtx.Renderer

	build, err := resolveBuild(cmdCtx, args)
	if err != nil {
		return err
	}

	jobs, err := cmdCtx.Store.GetJobsForBuild(build.ID)
	if err != nil {
		return fmt.Errorf("loading jobs for build #%d: %w", build.Number, err)
	}
	if opts.Job != "" {
		jobs = filterJobsByKey(jobs, opts.Job)
		if len(jobs) == 0 {
			return fmt.Errorf("build #%d has no job matching %q", build.Number, opts.Job)
		}
	}
	if len(jobs) == 0 {
		r.Warning(fmt.Sprintf("build #%d recorded no jobs", build.Number))
		return nil
	}

	for i, job := range jobs {
		if len(jobs) > 1 {
			if i > 0 {
				r.Println()
			}
			r.Header(2, fmt.Sprintf("%s (%s)", job.Key, job.Status))
		}
		if err := printJobLog(cmdCtx, job); err != nil {
			return err
		}
	}

	return nil
}

// resolveBuild picks the build named by args, or the latest completed one.
func resolveBuild(cmdCtx *CommandContext, args []string) (*state.Build, error) {
	project := cmdCtx.Cfg.Project

	if len(args) == 0 {
		build, err := cmdCtx.Store.GetLatestCompletedBuild(project)
		if err != nil {
			return nil, fmt.Errorf("loading latest build: %w", err)
		}
		if build == nil {
			return nil, fmt.Errorf("no completed builds recorded for %s yet", project)
		}
		return build, nil
	}

	number, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid build number %q", args[0])
	}
	build, err := cmdCtx.Store.GetBuildByNumber(project, number)
	if err != nil {
		return nil, fmt.Errorf("build #%d not found for %s", number, project)
	}
	return build, nil
}

// filterJobsByKey keeps jobs whose key contains the selector.
func filterJobsByKey(jobs []*state.Job, selector string) []*state.Job {
	var kept []*state.Job
	for _, job := range jobs {
		if strings.Contains(job.Key, selector) {
			kept = append(kept, job)
		}
	}
	return kept
}

// printJobLog streams one job's captured log to the output.
func printJobLog(cmdCtx *CommandContext, job *state.Job) error {
	if job.LogPath == "" {
		cmdCtx.Renderer.Warning(fmt.Sprintf("job %s has no log file", job.Key))
		return nil
	}
	data, err := os.ReadFile(job.LogPath)
	if err != nil {
		if os.IsNotExist(err) {
			cmdCtx.Renderer.Warning(fmt.Sprintf("log file %s is gone", job.LogPath))
			return nil
		}
		return fmt.Errorf("reading log %s: %w", job.LogPath, err)
	}
	_, err = cmdCtx.Renderer.Out().Write(data)
	return err
}
