package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapci/internal/cli/config"
	"github.com/leapstack-labs/leapci/internal/cli/output"
	clitest "github.com/leapstack-labs/leapci/internal/cli/testutil"
	"github.com/leapstack-labs/leapci/internal/notify"
	"github.com/leapstack-labs/leapci/internal/pipeline"
	"github.com/leapstack-labs/leapci/internal/runner"
	"github.com/leapstack-labs/leapci/internal/state"
	"github.com/leapstack-labs/leapci/internal/testutil"
)

// newRunContext builds a CommandContext around an in-memory store and a
// project rooted in a temp directory.
func newRunContext(t *testing.T, mode output.Mode) (*CommandContext, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		Project:      "demo",
		ProjectRoot:  dir,
		PipelineFile: filepath.Join(dir, ".leapci.yml"),
		StatePath:    ":memory:",
		LogsDir:      filepath.Join(dir, ".leapci", "logs"),
		ArtifactsDir: filepath.Join(dir, ".leapci", "artifacts"),
	}

	logger := testutil.NewTestLogger(t)
	store, err := openStore(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	tr := clitest.NewTestRenderer(mode, false)
	cmdCtx := &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Store:    store,
		Renderer: tr.Renderer,
	}
	return cmdCtx, tr.Out, tr.ErrOut
}

func TestExecuteBuildPassed(t *testing.T) {
	cmdCtx, out, _ := newRunContext(t, output.ModeText)
	d := &pipeline.Descriptor{Script: []string{"echo building"}}

	result, err := executeBuild(context.Background(), cmdCtx, d, &RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, state.BuildStatusPassed, result.Build.Status)
	require.Len(t, result.Jobs, 1)
	assert.Equal(t, state.JobStatusPassed, result.Jobs[0].Status)
	assert.Contains(t, out.String(), "Build #1: passed")
	assert.NoError(t, buildOutcome(result))
}

func TestExecuteBuildFailedScript(t *testing.T) {
	cmdCtx, out, _ := newRunContext(t, output.ModeText)
	d := &pipeline.Descriptor{Script: []string{"exit 3"}}

	result, err := executeBuild(context.Background(), cmdCtx, d, &RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, state.BuildStatusFailed, result.Build.Status)
	assert.Contains(t, out.String(), "Build #1: failed")

	outcome := buildOutcome(result)
	require.Error(t, outcome)
	assert.Contains(t, outcome.Error(), "build #1 failed")
}

func TestExecuteBuildSelector(t *testing.T) {
	cmdCtx, _, _ := newRunContext(t, output.ModeText)
	d := &pipeline.Descriptor{
		Language: "python",
		Versions: []string{"3.11", "3.12"},
		Script:   []string{"echo ok"},
	}

	result, err := executeBuild(context.Background(), cmdCtx, d, &RunOptions{Select: []string{"3.12"}})
	require.NoError(t, err)

	require.Len(t, result.Jobs, 1)
	assert.Equal(t, "python 3.12", result.Jobs[0].Key)
}

func TestExecuteBuildNoMatchingJobs(t *testing.T) {
	cmdCtx, _, _ := newRunContext(t, output.ModeText)
	d := &pipeline.Descriptor{Script: []string{"echo ok"}}

	result, err := executeBuild(context.Background(), cmdCtx, d, &RunOptions{Select: []string{"9.9"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no jobs match")

	require.NotNil(t, result)
	assert.Equal(t, state.BuildStatusErrored, result.Build.Status)
}

func TestExecuteBuildJSONEvents(t *testing.T) {
	cmdCtx, out, _ := newRunContext(t, output.ModeJSON)
	d := &pipeline.Descriptor{Script: []string{"echo building"}}

	result, err := executeBuild(context.Background(), cmdCtx, d, &RunOptions{JSONOutput: true})
	require.NoError(t, err)
	assert.Equal(t, state.BuildStatusPassed, result.Build.Status)

	var events []output.BuildEvent
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		var event output.BuildEvent
		require.NoError(t, json.Unmarshal([]byte(line), &event), "line: %s", line)
		events = append(events, event)
	}

	require.Len(t, events, 4)
	assert.Equal(t, "build_start", events[0].Event)
	assert.Equal(t, 1, events[0].TotalJobs)
	assert.Equal(t, "job_start", events[1].Event)
	assert.Equal(t, "job_complete", events[2].Event)
	assert.Equal(t, "passed", events[2].Status)
	assert.Equal(t, "build_complete", events[3].Event)
	assert.Equal(t, 1, events[3].Passed)
	assert.NotEmpty(t, events[3].Timestamp)
}

func TestBuildOutcome(t *testing.T) {
	tests := []struct {
		status  state.BuildStatus
		wantErr string
	}{
		{state.BuildStatusPassed, ""},
		{state.BuildStatusFailed, "build #3 failed"},
		{state.BuildStatusErrored, "build #3 errored"},
		{state.BuildStatusCancelled, "build #3 cancelled"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			result := &runner.BuildResult{Build: &state.Build{Number: 3, Status: tt.status}}
			err := buildOutcome(result)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestSmtpConfig(t *testing.T) {
	cfg := &config.Config{
		SMTP: config.SMTPConfig{
			Host:     "mail.example.com",
			Port:     587,
			Username: "ci",
			Password: "secret",
			From:     "ci@example.com",
			StartTLS: true,
		},
	}

	got := smtpConfig(cfg)

	assert.Equal(t, notify.SMTPConfig{
		Host:     "mail.example.com",
		Port:     587,
		Username: "ci",
		Password: "secret",
		From:     "ci@example.com",
		StartTLS: true,
	}, got)
	assert.True(t, got.Configured())
}

func TestEmitBuildEvent(t *testing.T) {
	buf := new(bytes.Buffer)

	emitBuildEvent(buf, output.BuildEvent{Event: "build_start", Pipeline: "demo", TotalJobs: 2})

	var event output.BuildEvent
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "build_start", event.Event)
	assert.Equal(t, "demo", event.Pipeline)
	assert.Equal(t, 2, event.TotalJobs)
	assert.NotEmpty(t, event.Timestamp)
}

func TestBuildWatchFilter(t *testing.T) {
	root := t.TempDir()
	cfg := &config.Config{
		ProjectRoot:  root,
		PipelineFile: filepath.Join(root, ".leapci.yml"),
		StatePath:    filepath.Join(root, ".leapci", "state.db"),
		LogsDir:      filepath.Join(root, ".leapci", "logs"),
		ArtifactsDir: filepath.Join(root, ".leapci", "artifacts"),
	}
	d := &pipeline.Descriptor{
		Script: []string{"echo ok"},
		Source: &pipeline.Source{URL: "https://example.com/app.git", Dir: "checkout"},
	}

	ignore := buildWatchFilter(cfg, d)

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"descriptor itself", filepath.Join(root, ".leapci.yml"), false},
		{"project source file", filepath.Join(root, "app", "main.py"), false},
		{"log output", filepath.Join(root, ".leapci", "logs", "1", "job.log"), true},
		{"artifact output", filepath.Join(root, ".leapci", "artifacts", "1", "report.xml"), true},
		{"state database", filepath.Join(root, ".leapci", "state.db"), true},
		{"source checkout", filepath.Join(root, "checkout", "main.py"), true},
		{"hidden directory", filepath.Join(root, ".git", "HEAD"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ignore(tt.path), "path %s", tt.path)
		})
	}
}

func TestRunCommandMetadata(t *testing.T) {
	cmd := NewRunCommand()

	assert.Equal(t, "run", cmd.Use)
	assert.Contains(t, cmd.Aliases, "build")
	for _, flag := range []string{"select", "dry-run", "watch", "json"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}
