package commands

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchCommandMetadata(t *testing.T) {
	cmd := NewFetchCommand()

	assert.Equal(t, "fetch", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")
}

func TestFetchCommandNoSource(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldWd) }()

	writeTestDescriptor(t, tmpDir, "language: python\nscript:\n  - python3 --version\n")

	cmd := NewFetchCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no source section")
}

func TestFetchCommandMissingDescriptor(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldWd) }()

	cmd := NewFetchCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline file does not exist")
}

func TestFetchCommandLocalRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not in PATH")
	}

	origin := initFetchOrigin(t)

	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldWd) }()

	writeTestDescriptor(t, tmpDir, `language: python
script:
  - python3 --version
source:
  url: `+origin+`
  dir: checkout
`)

	cmd := NewFetchCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	require.NoError(t, cmd.Execute())

	assert.Contains(t, buf.String(), "Checked out")
	assert.FileExists(t, filepath.Join(tmpDir, "checkout", "README.md"))
}

// initFetchOrigin creates a local git repository with one commit.
func initFetchOrigin(t *testing.T) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "origin")
	require.NoError(t, os.MkdirAll(dir, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0600))

	for _, args := range [][]string{
		{"init"},
		{"add", "."},
		{"commit", "-m", "first"},
	} {
		base := []string{
			"-c", "user.email=ci@example.com",
			"-c", "user.name=ci",
			"-c", "init.defaultBranch=main",
		}
		gitCmd := exec.Command("git", append(base, args...)...)
		gitCmd.Dir = dir
		out, err := gitCmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}
	return dir
}

func TestShortCommit(t *testing.T) {
	tests := []struct {
		commit string
		want   string
	}{
		{"0123456789abcdef0123456789abcdef01234567", "0123456789ab"},
		{"abc123", "abc123"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, shortCommit(tt.commit))
	}
}
