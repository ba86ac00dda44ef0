package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/leapci/internal/cli/config"
	"github.com/leapstack-labs/leapci/internal/cli/output"
	"github.com/leapstack-labs/leapci/internal/notify"
	"github.com/leapstack-labs/leapci/internal/pipeline"
	"github.com/leapstack-labs/leapci/internal/runner"
	"github.com/leapstack-labs/leapci/internal/state"
	"github.com/spf13/cobra"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Select     []string
	DryRun     bool
	Watch      bool
	JSONOutput bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the build pipeline",
		Long: `Execute the build pipeline described by the project descriptor.

The version and env matrices expand into jobs. Each job runs the lifecycle
stages in order, streaming output to the console and a per-job log file,
and the outcome is recorded in build history.`,
		Example: `  # Run every matrix job
  leapci run

  # Run only the 3.12 jobs
  leapci run --select 3.12

  # Show the expanded matrix without executing anything
  leapci run --dry-run

  # Re-run the pipeline whenever project files change
  leapci run --watch

  # Emit JSON progress events for CI/CD integration
  leapci run --json`,
		Aliases: []string{"build"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Select, "select", "s", nil, "Run only jobs matching a version or key substring")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Expand the matrix and exit without running jobs")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-run the pipeline when project files change")
	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "Output as JSON lines for progress tracking")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	d, err := loadDescriptor(cmdCtx)
	if err != nil {
		return err
	}

	if opts.DryRun {
		return renderMatrix(cmdCtx.Renderer, d, opts.Select)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Cancel on interrupt so running steps are killed and the build is
	// recorded as cancelled.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		cancel()
	}()

	if opts.Watch {
		return watchAndRun(ctx, cmdCtx, d, opts)
	}

	result, err := executeBuild(ctx, cmdCtx, d, opts)
	if err != nil {
		return err
	}
	return buildOutcome(result)
}

// loadDescriptor parses and validates the project descriptor, rendering
// any validation findings. Warnings do not block the build.
func loadDescriptor(cmdCtx *CommandContext) (*pipeline.Descriptor, error) {
	cfg := cmdCtx.Cfg
	if err := cfg.ValidatePipelineFile(); err != nil {
		return nil, err
	}

	d, err := pipeline.Load(cfg.PipelineFile)
	if err != nil {
		return nil, err
	}

	issues := d.Validate(cfg.ProjectRoot)
	for _, issue := range issues {
		if issue.Severity == pipeline.SeverityError {
			cmdCtx.Renderer.Error(issue.String())
		} else {
			cmdCtx.Renderer.Warning(issue.String())
		}
	}
	if pipeline.HasErrors(issues) {
		return nil, fmt.Errorf("descriptor %s has errors", cfg.PipelineFile)
	}
	return d, nil
}

// executeBuild runs one build end to end: execute the matrix, deliver
// notifications, render the outcome.
func executeBuild(ctx context.Context, cmdCtx *CommandContext, d *pipeline.Descriptor, opts *RunOptions) (*runner.BuildResult, error) {
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	// The previous completed build decides the "change" notification
	// policy, so capture it before this build lands in the store.
	prev, err := cmdCtx.Store.GetLatestCompletedBuild(cfg.Project)
	if err != nil {
		return nil, err
	}

	// In JSON mode the raw step stream would corrupt the event lines;
	// it still reaches the per-job log files.
	stream := r.Out()
	if opts.JSONOutput {
		stream = io.Discard
	}

	if opts.JSONOutput {
		planned := runner.FilterJobs(d.Jobs(), opts.Select)
		emitBuildEvent(r.Out(), output.BuildEvent{
			Event:     "build_start",
			Pipeline:  cfg.Project,
			TotalJobs: len(planned),
		})
	}

	start := time.Now()
	run := runner.New(cmdCtx.Logger, cmdCtx.Store, stream)
	result, runErr := run.Run(ctx, runner.Options{
		Descriptor:   d,
		Pipeline:     cfg.Project,
		ProjectRoot:  cfg.ProjectRoot,
		LogsDir:      cfg.LogsDir,
		ArtifactsDir: cfg.ArtifactsDir,
		Selected:     opts.Select,
	})
	if result == nil {
		return nil, runErr
	}

	notifyBuild(ctx, cmdCtx, d, result.Build, prev)

	if opts.JSONOutput {
		emitJobEvents(r.Out(), cfg.Project, result)
		emitBuildComplete(r.Out(), cfg.Project, result, time.Since(start))
	} else {
		renderBuildResult(r, result)
	}

	if runErr != nil {
		return result, runErr
	}
	return result, nil
}

// buildOutcome converts a completed build into the command's exit status.
func buildOutcome(result *runner.BuildResult) error {
	if result.Build.Status == state.BuildStatusPassed {
		return nil
	}
	return fmt.Errorf("build #%d %s", result.Build.Number, result.Build.Status)
}

// notifyBuild evaluates the descriptor's notification policy and delivers
// email if due. Delivery failures are logged, never fatal.
func notifyBuild(ctx context.Context, cmdCtx *CommandContext, d *pipeline.Descriptor, build, prev *state.Build) {
	var email *pipeline.EmailConfig
	if d.Notifications != nil {
		email = d.Notifications.Email
	}
	if email == nil {
		return
	}

	var sender notify.Sender
	if smtp := smtpConfig(cmdCtx.Cfg); smtp.Configured() {
		sender = notify.NewSMTPSender(smtp)
	}

	notifier := notify.New(cmdCtx.Logger, cmdCtx.Store, sender)
	if err := notifier.BuildCompleted(ctx, email, build, prev); err != nil {
		cmdCtx.Logger.Warn("notification delivery failed", "error", err)
	}
}

// smtpConfig maps the tool config's mail settings onto the notifier.
func smtpConfig(cfg *config.Config) notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		StartTLS: cfg.SMTP.StartTLS,
	}
}

// renderBuildResult prints the per-job outcome summary.
func renderBuildResult(r *output.Renderer, result *runner.BuildResult) {
	build := result.Build
	styles := r.Styles()

	r.Println("")
	r.Header(1, fmt.Sprintf("Build #%d: %s", build.Number, build.Status))
	if build.Commit != "" {
		r.Println(styles.Muted.Render("commit " + build.Commit))
	}
	r.Println("")

	for _, job := range result.Jobs {
		detail := job.Duration.Round(time.Millisecond).String()
		if job.Err != nil {
			detail += "  " + job.Err.Error()
		}
		r.StatusLine(job.Key, string(job.Status), detail)
	}
	if len(result.Jobs) > 0 {
		r.Println("")
	}

	if build.Error != "" && len(result.Jobs) == 0 {
		r.Error(build.Error)
	}
}

// emitJobEvents emits post-hoc start/complete event pairs for each job.
func emitJobEvents(w io.Writer, pipelineName string, result *runner.BuildResult) {
	for _, job := range result.Jobs {
		emitBuildEvent(w, output.BuildEvent{
			Event:    "job_start",
			Pipeline: pipelineName,
			Build:    result.Build.Number,
			Job:      job.Key,
		})

		event := output.BuildEvent{
			Event:      "job_complete",
			Pipeline:   pipelineName,
			Build:      result.Build.Number,
			Job:        job.Key,
			Status:     string(job.Status),
			DurationMS: job.Duration.Milliseconds(),
		}
		if job.Err != nil {
			event.Error = job.Err.Error()
		}
		emitBuildEvent(w, event)
	}
}

// emitBuildComplete emits the final summary event.
func emitBuildComplete(w io.Writer, pipelineName string, result *runner.BuildResult, elapsed time.Duration) {
	var passed, failed int
	for _, job := range result.Jobs {
		if job.Status == state.JobStatusPassed {
			passed++
		} else {
			failed++
		}
	}

	event := output.BuildEvent{
		Event:      "build_complete",
		Pipeline:   pipelineName,
		Build:      result.Build.Number,
		Status:     string(result.Build.Status),
		TotalJobs:  len(result.Jobs),
		Passed:     passed,
		Failed:     failed,
		DurationMS: elapsed.Milliseconds(),
	}
	if result.Build.Error != "" {
		event.Error = result.Build.Error
	}
	emitBuildEvent(w, event)
}

// emitBuildEvent outputs a build event as a JSON line.
func emitBuildEvent(w io.Writer, event output.BuildEvent) {
	event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	data, _ := json.Marshal(event)
	_, _ = fmt.Fprintln(w, string(data))
}

// watchAndRun runs the pipeline once, then re-runs it whenever the
// descriptor or project files change. Build failures keep the watch alive.
func watchAndRun(ctx context.Context, cmdCtx *CommandContext, d *pipeline.Descriptor, opts *RunOptions) error {
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	ignore := buildWatchFilter(cfg, d)
	if err := watchProjectDirs(watcher, cfg.ProjectRoot, ignore); err != nil {
		return fmt.Errorf("failed to watch project: %w", err)
	}

	runOnce := func() {
		// Reload so descriptor edits take effect between runs
		fresh, err := loadDescriptor(cmdCtx)
		if err != nil {
			r.Error(err.Error())
			return
		}
		result, err := executeBuild(ctx, cmdCtx, fresh, opts)
		if err != nil {
			r.Error(err.Error())
			return
		}
		if outcome := buildOutcome(result); outcome != nil {
			cmdCtx.Logger.Debug("build did not pass", "status", result.Build.Status)
		}
		r.Println("")
		r.Println("Watching for changes. Press Ctrl+C to stop.")
	}

	// Coalesce bursts of events into a single re-run
	trigger := make(chan struct{}, 1)
	kick := func() {
		select {
		case trigger <- struct{}{}:
		default:
		}
	}
	kick()

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-trigger:
			runOnce()

		case event := <-watcher.Events:
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if ignore(event.Name) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(300*time.Millisecond, kick)

		case err := <-watcher.Errors:
			cmdCtx.Logger.Error("watcher error", "error", err)
		}
	}
}

// buildWatchFilter decides which paths must not trigger a re-run: the
// runner's own output directories, the source checkout it rewrites each
// build, and hidden files other than the descriptor itself.
func buildWatchFilter(cfg *config.Config, d *pipeline.Descriptor) func(string) bool {
	excluded := []string{cfg.LogsDir, cfg.ArtifactsDir}
	if cfg.StatePath != ":memory:" {
		excluded = append(excluded, filepath.Dir(cfg.StatePath))
	}
	if d.HasSource() {
		excluded = append(excluded, runner.SourceConfig(d.Source, cfg.ProjectRoot).Dir)
	}

	return func(name string) bool {
		if name == cfg.PipelineFile {
			return false
		}
		for _, dir := range excluded {
			if dir == "" {
				continue
			}
			if name == dir || strings.HasPrefix(name, dir+string(filepath.Separator)) {
				return true
			}
		}
		rel, err := filepath.Rel(cfg.ProjectRoot, name)
		if err != nil {
			return false
		}
		for _, part := range strings.Split(rel, string(filepath.Separator)) {
			if part != "." && part != ".." && strings.HasPrefix(part, ".") {
				return true
			}
		}
		return false
	}
}

// watchProjectDirs adds the project directory tree to the watcher,
// skipping ignored subtrees.
func watchProjectDirs(watcher *fsnotify.Watcher, root string, ignore func(string) bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && ignore(path) {
			return fs.SkipDir
		}
		return watcher.Add(path)
	})
}
