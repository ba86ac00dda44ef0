package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapci/internal/cli/config"
	"github.com/leapstack-labs/leapci/internal/testutil"
)

func TestCalculateHealthScore(t *testing.T) {
	tests := []struct {
		name   string
		checks []HealthCheck
		want   int
	}{
		{
			name:   "no checks returns 100",
			checks: nil,
			want:   100,
		},
		{
			name: "all passing returns 100",
			checks: []HealthCheck{
				{RuleID: "CI01", Status: "pass", IssueCount: 0},
				{RuleID: "CI02", Status: "pass", IssueCount: 0},
			},
			want: 100,
		},
		{
			name: "warnings reduce score",
			checks: []HealthCheck{
				{RuleID: "CI01", Status: "pass", IssueCount: 0},
				{RuleID: "EN04", Status: "warn", IssueCount: 2},
			},
			want: 80,
		},
		{
			name: "errors count double",
			checks: []HealthCheck{
				{RuleID: "CI02", Status: "error", IssueCount: 1},
			},
			want: 80,
		},
		{
			name: "many issues clamp to 0",
			checks: []HealthCheck{
				{RuleID: "CI03", Status: "error", IssueCount: 20},
				{RuleID: "EN04", Status: "warn", IssueCount: 20},
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, calculateHealthScore(tt.checks))
		})
	}
}

func TestGetRecommendation(t *testing.T) {
	tests := []struct {
		ruleID   string
		expected bool // whether a recommendation is returned
	}{
		{"CI01", true},
		{"CI02", true},
		{"CI03", true},
		{"EN01", true},
		{"EN02", true},
		{"EN03", true},
		{"EN04", true},
		{"ST01", true},
		{"NT01", true},
		{"UNKNOWN", false},
	}

	for _, tt := range tests {
		t.Run(tt.ruleID, func(t *testing.T) {
			rec := getRecommendation(tt.ruleID)
			if tt.expected {
				assert.NotEmpty(t, rec, "expected recommendation for %s", tt.ruleID)
			} else {
				assert.Empty(t, rec, "expected no recommendation for %s", tt.ruleID)
			}
		})
	}
}

func TestGenerateRecommendations(t *testing.T) {
	checks := []HealthCheck{
		{RuleID: "CI01", Status: "error", IssueCount: 1},
		{RuleID: "EN02", Status: "warn", IssueCount: 1},
		{RuleID: "CI02", Status: "pass", IssueCount: 0},
	}

	recommendations := generateRecommendations(checks)

	require.Len(t, recommendations, 2)
	assert.Contains(t, recommendations[0], "leapci init")
	assert.Contains(t, recommendations[1], "git")
}

func TestGenerateRecommendationsLimitTo5(t *testing.T) {
	ruleIDs := []string{"CI01", "CI02", "CI03", "EN01", "EN02", "EN03", "EN04", "ST01", "NT01"}
	checks := make([]HealthCheck, len(ruleIDs))
	for i, ruleID := range ruleIDs {
		checks[i] = HealthCheck{RuleID: ruleID, Status: "warn", IssueCount: 1}
	}

	recommendations := generateRecommendations(checks)

	assert.LessOrEqual(t, len(recommendations), 5)
}

func TestInterpreterName(t *testing.T) {
	tests := []struct {
		language string
		version  string
		want     string
	}{
		{"python", "3.12", "python3.12"},
		{"python", "", "python"},
		{"", "3.12", ""},
		{"", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.language+"/"+tt.version, func(t *testing.T) {
			assert.Equal(t, tt.want, interpreterName(tt.language, tt.version))
		})
	}
}

func TestCheckDescriptor(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		cfg := &config.Config{PipelineFile: "/nonexistent/.leapci.yml"}

		d, checks := checkDescriptor(cfg)

		assert.Nil(t, d)
		require.Len(t, checks, 1)
		assert.Equal(t, "CI01", checks[0].RuleID)
		assert.Equal(t, "error", checks[0].Status)
	})

	t.Run("parse failure", func(t *testing.T) {
		dir := t.TempDir()
		path := writeTestDescriptor(t, dir, "language: [unclosed\n")
		cfg := &config.Config{PipelineFile: path, ProjectRoot: dir}

		d, checks := checkDescriptor(cfg)

		assert.Nil(t, d)
		require.Len(t, checks, 2)
		assert.Equal(t, "CI02", checks[1].RuleID)
		assert.Equal(t, "error", checks[1].Status)
	})

	t.Run("valid descriptor", func(t *testing.T) {
		dir := t.TempDir()
		path := writeTestDescriptor(t, dir, "language: python\nscript:\n  - python3 --version\n")
		cfg := &config.Config{PipelineFile: path, ProjectRoot: dir}

		d, checks := checkDescriptor(cfg)

		require.NotNil(t, d)
		require.Len(t, checks, 3)
		for _, check := range checks {
			assert.Equal(t, "pass", check.Status, "check %s should pass", check.RuleID)
		}
	})

	t.Run("validation warnings", func(t *testing.T) {
		dir := t.TempDir()
		path := writeTestDescriptor(t, dir, `language: python
script:
  - python3 --version
source:
  url: https://example.com/app.git
  version: main
`)
		cfg := &config.Config{PipelineFile: path, ProjectRoot: dir}

		d, checks := checkDescriptor(cfg)

		require.NotNil(t, d)
		require.Len(t, checks, 3)
		assert.Equal(t, "CI03", checks[2].RuleID)
		assert.Equal(t, "warn", checks[2].Status)
		assert.Equal(t, 1, checks[2].IssueCount)
	})
}

func TestBuildDoctorOutput(t *testing.T) {
	dir := t.TempDir()
	path := writeTestDescriptor(t, dir, `language: python
versions:
  - "3.11"
  - "3.12"
script:
  - python3 --version
`)
	cfg := &config.Config{
		PipelineFile: path,
		StatePath:    ":memory:",
		ProjectRoot:  dir,
	}
	cmdCtx := &CommandContext{Cfg: cfg, Logger: testutil.NewTestLogger(t)}

	out := buildDoctorOutput(cmdCtx, cfg)

	assert.Equal(t, path, out.Summary.Descriptor)
	assert.Equal(t, "python", out.Summary.Language)
	assert.Equal(t, 2, out.Summary.Jobs)
	assert.Equal(t, 2, out.Summary.Versions)
	assert.Equal(t, 1, out.Summary.Steps)
	assert.False(t, out.Summary.HasSource)
	assert.False(t, out.Summary.Email)

	// Checks come back grouped and ordered
	sorted := sort.SliceIsSorted(out.HealthChecks, func(i, j int) bool {
		a, b := out.HealthChecks[i], out.HealthChecks[j]
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.RuleID < b.RuleID
	})
	assert.True(t, sorted, "health checks should be sorted by group then rule ID")

	byID := make(map[string]HealthCheck)
	for _, check := range out.HealthChecks {
		byID[check.RuleID] = check
	}
	for _, ruleID := range []string{"CI01", "CI02", "CI03", "ST01", "NT01"} {
		check, ok := byID[ruleID]
		require.True(t, ok, "check %s should be present", ruleID)
		assert.Equal(t, "pass", check.Status, "check %s should pass", ruleID)
	}
}

func TestDoctorCommandJSON(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldWd) }()
	t.Setenv("LEAPCI_STATE_PATH", ":memory:")

	writeTestDescriptor(t, tmpDir, "language: python\nscript:\n  - python3 --version\n")

	cmd := NewDoctorCommand()
	outBuf := new(bytes.Buffer)
	cmd.SetOut(outBuf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"--format", "json"})

	require.NoError(t, cmd.Execute())

	var out DoctorOutput
	require.NoError(t, json.Unmarshal(outBuf.Bytes(), &out))
	assert.Positive(t, out.Score)
	assert.Equal(t, 1, out.Summary.Jobs)
	assert.GreaterOrEqual(t, len(out.HealthChecks), 5)
}

func TestDoctorCommandMarkdown(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldWd) }()
	t.Setenv("LEAPCI_STATE_PATH", ":memory:")

	writeTestDescriptor(t, tmpDir, "language: python\nscript:\n  - python3 --version\n")

	cmd := NewDoctorCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	require.NoError(t, cmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "# LeapCI Environment Health Report")
	assert.Contains(t, out, "## Health Checks")
	assert.Contains(t, out, "## Health Score")
}
