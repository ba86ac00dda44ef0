// Package runner executes pipeline builds: it acquires the work tree,
// expands the descriptor matrix into jobs, runs each job's lifecycle stages
// as shell steps, and records everything in the state store. Step output is
// streamed to the console and tee'd to a per-job log file.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/leapstack-labs/leapci/internal/pipeline"
	"github.com/leapstack-labs/leapci/internal/source"
	"github.com/leapstack-labs/leapci/internal/state"
)

// Runner executes builds against a state store.
type Runner struct {
	logger  *slog.Logger
	store   state.Store
	fetcher *source.Fetcher
	stdout  io.Writer
}

// New creates a Runner. A nil logger discards all log output; a nil stdout
// suppresses the console stream (output still reaches the job logs).
func New(logger *slog.Logger, store state.Store, stdout io.Writer) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if stdout == nil {
		stdout = io.Discard
	}
	return &Runner{
		logger:  logger,
		store:   store,
		fetcher: source.New(logger),
		stdout:  stdout,
	}
}

// Options configures one build execution. Paths must be absolute.
type Options struct {
	Descriptor   *pipeline.Descriptor
	Pipeline     string
	ProjectRoot  string
	LogsDir      string
	ArtifactsDir string

	// Selected filters matrix jobs: a job runs when any selector is a
	// substring of its key or equals its version. Empty runs everything.
	Selected []string
}

// BuildResult is the in-memory outcome of a build, for rendering.
type BuildResult struct {
	Build *state.Build
	Jobs  []*JobResult
}

// JobResult is the outcome of one matrix job.
type JobResult struct {
	Key      string
	Status   state.JobStatus
	LogPath  string
	Duration time.Duration
	Steps    []*state.Step
	Err      error
}

// Run executes a build. The returned error reports infrastructure failures
// only; script and setup failures are reported through the build status.
func (r *Runner) Run(ctx context.Context, opts Options) (*BuildResult, error) {
	d := opts.Descriptor

	build, err := r.store.CreateBuild(opts.Pipeline, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create build: %w", err)
	}
	r.logger.Info("starting build", "pipeline", opts.Pipeline, "number", build.Number)

	result := &BuildResult{Build: build}

	// The work tree is acquired once; every matrix job shares it.
	workDir := opts.ProjectRoot
	if d.HasSource() {
		cfg := SourceConfig(d.Source, opts.ProjectRoot)
		r.banner(r.stdout, "source: "+cfg.Dir)

		head, err := r.fetcher.Fetch(ctx, cfg)
		if err != nil {
			status := state.BuildStatusErrored
			if ctx.Err() != nil {
				status = state.BuildStatusCancelled
			}
			r.logger.Error("source stage failed", "error", err)
			_ = r.store.CompleteBuild(build.ID, status, err.Error())
			result.Build, _ = r.store.GetBuild(build.ID)
			return result, nil
		}
		workDir = cfg.Dir
		_ = r.store.SetBuildCommit(build.ID, head)
		build.Commit = head
		r.logger.Info("source ready", "commit", head)
	}

	jobs := FilterJobs(d.Jobs(), opts.Selected)
	if len(jobs) == 0 {
		err := fmt.Errorf("no jobs match selection %v", opts.Selected)
		_ = r.store.CompleteBuild(build.ID, state.BuildStatusErrored, err.Error())
		result.Build, _ = r.store.GetBuild(build.ID)
		return result, err
	}

	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		result.Jobs = append(result.Jobs, r.runJob(ctx, build, d, job, workDir, opts))
	}

	status := overallStatus(ctx, result.Jobs)
	_ = r.store.CompleteBuild(build.ID, status, buildError(result.Jobs))
	result.Build, _ = r.store.GetBuild(build.ID)

	r.logger.Info("build finished", "number", build.Number, "status", status)
	return result, nil
}

// runJob executes one matrix job through all lifecycle stages.
func (r *Runner) runJob(ctx context.Context, build *state.Build, d *pipeline.Descriptor, job pipeline.Job, workDir string, opts Options) *JobResult {
	started := time.Now()
	result := &JobResult{Key: job.Key, Status: state.JobStatusErrored}

	logPath := filepath.Join(opts.LogsDir, fmt.Sprintf("%d", build.Number), sanitizeKey(job.Key)+".log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		result.Err = fmt.Errorf("failed to create log dir: %w", err)
		return result
	}
	logFile, err := os.Create(logPath)
	if err != nil {
		result.Err = fmt.Errorf("failed to create job log: %w", err)
		return result
	}
	defer logFile.Close()
	result.LogPath = logPath

	stored, err := r.store.CreateJob(build.ID, job.Key, job.Version, job.EnvRow, logPath)
	if err != nil {
		result.Err = fmt.Errorf("failed to record job: %w", err)
		return result
	}

	jc := &jobContext{
		job: stored,
		dir: workDir,
		env: buildJobEnv(os.Environ(), d.Language, job, build.Number),
		out: io.MultiWriter(r.stdout, logFile),
	}
	r.banner(jc.out, "job: "+job.Key)
	r.logger.Info("starting job", "job", job.Key)

	status, jobErr := r.runStages(ctx, jc, d)

	// The after_* stages observe the result but never change it.
	switch status {
	case state.JobStatusPassed:
		r.runNonFatalStage(ctx, jc, "after_success", d.AfterSuccess)
	case state.JobStatusFailed, state.JobStatusErrored:
		r.runNonFatalStage(ctx, jc, "after_failure", d.AfterFailure)
	}
	if status != state.JobStatusCancelled {
		r.runNonFatalStage(ctx, jc, "after_script", d.AfterScript)
	}

	if status == state.JobStatusPassed && d.Artifacts != nil && len(d.Artifacts.Paths) > 0 {
		destDir := filepath.Join(opts.ArtifactsDir, fmt.Sprintf("%d", build.Number), sanitizeKey(job.Key))
		count, err := collectArtifacts(d.Artifacts.Paths, jc.dir, destDir)
		if err != nil {
			status = state.JobStatusErrored
			jobErr = fmt.Errorf("artifact staging: %w", err)
		} else if count > 0 {
			fmt.Fprintf(jc.out, "staged %d artifact(s) to %s\n", count, destDir)
			r.logger.Debug("artifacts staged", "job", job.Key, "count", count)
		}
	}

	errMsg := ""
	if jobErr != nil {
		errMsg = jobErr.Error()
	}
	_ = r.store.CompleteJob(stored.ID, status, errMsg)

	result.Status = status
	result.Err = jobErr
	result.Steps = jc.steps
	result.Duration = time.Since(started)

	r.logger.Info("job finished", "job", job.Key, "status", status, "duration_ms", result.Duration.Milliseconds())
	fmt.Fprintf(jc.out, "job %s: %s\n", job.Key, status)
	return result
}

// runStages executes the fatal stages in order and classifies the first
// failure: setup stages error the job, script failures fail it.
func (r *Runner) runStages(ctx context.Context, jc *jobContext, d *pipeline.Descriptor) (state.JobStatus, error) {
	stages := []struct {
		name   string
		cmds   []string
		onFail state.JobStatus
		abort  bool
	}{
		{"addons", aptCommands(d), state.JobStatusErrored, true},
		{"before_install", d.BeforeInstall, state.JobStatusErrored, true},
		{"install", d.Install, state.JobStatusErrored, true},
		{"before_script", d.BeforeScript, state.JobStatusErrored, true},
		{"script", d.Script, state.JobStatusFailed, false},
	}

	for _, stage := range stages {
		if len(stage.cmds) == 0 {
			continue
		}
		command, code, err := r.runStage(ctx, jc, stage.name, stage.cmds, stage.abort)
		if err != nil {
			if ctx.Err() != nil {
				return state.JobStatusCancelled, err
			}
			return state.JobStatusErrored, fmt.Errorf("%s: %w", stage.name, err)
		}
		if code != 0 {
			return stage.onFail, fmt.Errorf("%s: %q exited with %d", stage.name, command, code)
		}
	}

	return state.JobStatusPassed, nil
}

// runNonFatalStage runs a stage whose failures are logged but ignored.
func (r *Runner) runNonFatalStage(ctx context.Context, jc *jobContext, name string, cmds []string) {
	if len(cmds) == 0 || ctx.Err() != nil {
		return
	}
	command, code, err := r.runStage(ctx, jc, name, cmds, false)
	if err != nil {
		r.logger.Warn("stage interrupted", "stage", name, "error", err)
		return
	}
	if code != 0 {
		r.logger.Warn("stage failed", "stage", name, "command", command, "exit_code", code)
	}
}

// banner writes a stage separator to the output stream.
func (r *Runner) banner(w io.Writer, msg string) {
	line := strings.Repeat("-", 48)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, ">>> "+msg)
	fmt.Fprintln(w, line)
}

// aptCommands translates the apt addon into shell commands.
func aptCommands(d *pipeline.Descriptor) []string {
	if d.Addons == nil || d.Addons.Apt == nil {
		return nil
	}
	apt := d.Addons.Apt
	var cmds []string
	if apt.Update {
		cmds = append(cmds, "apt-get update -qq")
	}
	if len(apt.Packages) > 0 {
		cmds = append(cmds, "apt-get install -y --no-install-recommends "+strings.Join(apt.Packages, " "))
	}
	return cmds
}

// SourceConfig resolves descriptor source paths against the project root.
func SourceConfig(s *pipeline.Source, root string) source.Config {
	cfg := source.Config{
		URL:     s.URL,
		Dir:     s.Dir,
		Version: s.Version,
	}
	if !filepath.IsAbs(cfg.Dir) {
		cfg.Dir = filepath.Join(root, cfg.Dir)
	}
	for _, patch := range s.Patches {
		if !filepath.IsAbs(patch) {
			patch = filepath.Join(root, patch)
		}
		cfg.Patches = append(cfg.Patches, patch)
	}
	return cfg
}

// FilterJobs applies --select style filters to the expanded matrix.
func FilterJobs(jobs []pipeline.Job, selected []string) []pipeline.Job {
	if len(selected) == 0 {
		return jobs
	}
	var kept []pipeline.Job
	for _, job := range jobs {
		for _, sel := range selected {
			if sel == job.Version || strings.Contains(job.Key, sel) {
				kept = append(kept, job)
				break
			}
		}
	}
	return kept
}

// overallStatus aggregates job results, worst first: cancelled beats
// errored beats failed beats passed.
func overallStatus(ctx context.Context, jobs []*JobResult) state.BuildStatus {
	if ctx.Err() != nil {
		return state.BuildStatusCancelled
	}
	status := state.BuildStatusPassed
	for _, job := range jobs {
		switch job.Status {
		case state.JobStatusCancelled:
			return state.BuildStatusCancelled
		case state.JobStatusErrored:
			status = state.BuildStatusErrored
		case state.JobStatusFailed:
			if status != state.BuildStatusErrored {
				status = state.BuildStatusFailed
			}
		}
	}
	return status
}

// buildError returns the first failing job's message for the build record.
func buildError(jobs []*JobResult) string {
	for _, job := range jobs {
		if job.Err != nil {
			return fmt.Sprintf("job %s: %v", job.Key, job.Err)
		}
	}
	return ""
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9.=_-]+`)

// sanitizeKey turns a job key into a file name fragment.
func sanitizeKey(key string) string {
	return strings.Trim(unsafeKeyChars.ReplaceAllString(key, "-"), "-")
}
