package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"
	"time"

	"github.com/leapstack-labs/leapci/internal/state"
)

// jobContext carries the per-job execution state through the stages.
type jobContext struct {
	job   *state.Job
	dir   string
	env   []string
	out   io.Writer
	steps []*state.Step
	seq   int
}

// runStage executes the stage's commands in order and records a step for
// each. With abort set, the stage stops at the first non-zero exit;
// otherwise every command runs and the first failure is reported. Returns
// the first failing command and its exit code, or "" and 0 when the stage
// passed. The error return is reserved for execution problems such as
// cancellation or an unlaunchable shell.
func (r *Runner) runStage(ctx context.Context, jc *jobContext, name string, cmds []string, abort bool) (string, int, error) {
	failedCmd := ""
	failedCode := 0

	for _, cmd := range cmds {
		if err := ctx.Err(); err != nil {
			return failedCmd, failedCode, err
		}
		fmt.Fprintf(jc.out, "$ %s\n", cmd)

		started := time.Now()
		code, err := r.execStep(ctx, jc, cmd)
		duration := time.Since(started)

		step := &state.Step{
			JobID:      jc.job.ID,
			Stage:      name,
			Sequence:   jc.seq,
			Command:    cmd,
			ExitCode:   code,
			DurationMS: duration.Milliseconds(),
		}
		jc.seq++
		jc.steps = append(jc.steps, step)
		_ = r.store.RecordStep(step)

		if err != nil {
			return failedCmd, failedCode, err
		}
		if code != 0 {
			r.logger.Debug("command failed", "stage", name, "command", cmd, "exit_code", code)
			if failedCmd == "" {
				failedCmd = cmd
				failedCode = code
			}
			if abort {
				break
			}
		}
	}

	return failedCmd, failedCode, nil
}

// execStep runs a single command through the shell with output tee'd to the
// job stream. The command gets its own process group so that cancellation
// can kill the whole tree, not just the shell.
func (r *Runner) execStep(ctx context.Context, jc *jobContext, command string) (int, error) {
	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = jc.dir
	cmd.Env = jc.env
	cmd.Stdout = jc.out
	cmd.Stderr = jc.out
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("failed to start %q: %w", command, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		<-done
		return -1, ctx.Err()
	case err := <-done:
		if err == nil {
			return 0, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("command %q: %w", command, err)
	}
}
