package source

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not in PATH")
	}
}

func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	base := []string{
		"-c", "user.email=ci@example.com",
		"-c", "user.name=ci",
		"-c", "init.defaultBranch=main",
	}
	cmd := exec.Command("git", append(base, args...)...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

// initOriginRepo builds a local repository with two commits and returns its
// path plus the commit hashes in order.
func initOriginRepo(t *testing.T) (string, []string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "origin")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	gitCmd(t, dir, "init")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	gitCmd(t, dir, "add", ".")
	gitCmd(t, dir, "commit", "-m", "first")
	first := gitCmd(t, dir, "rev-parse", "HEAD")

	if err := os.WriteFile(filepath.Join(dir, "main.py"), []byte("print('hi')\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	gitCmd(t, dir, "add", ".")
	gitCmd(t, dir, "commit", "-m", "second")
	second := gitCmd(t, dir, "rev-parse", "HEAD")

	return dir, []string{first, second}
}

func TestFetch_ClonesWhenMissing(t *testing.T) {
	requireGit(t)
	origin, commits := initOriginRepo(t)
	target := filepath.Join(t.TempDir(), "work", "src")

	fetcher := New(nil)
	head, err := fetcher.Fetch(context.Background(), Config{URL: origin, Dir: target})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if head != commits[1] {
		t.Errorf("expected head %s, got %s", commits[1], head)
	}
	if _, err := os.Stat(filepath.Join(target, "README.md")); err != nil {
		t.Errorf("expected cloned file: %v", err)
	}
}

func TestFetch_RejectsForeignOrigin(t *testing.T) {
	requireGit(t)
	origin, _ := initOriginRepo(t)
	target := filepath.Join(t.TempDir(), "src")
	gitCmd(t, "", "clone", origin, target)

	fetcher := New(nil)
	_, err := fetcher.Fetch(context.Background(), Config{
		URL: "https://github.com/example/other",
		Dir: target,
	})
	if err == nil {
		t.Fatal("expected error for mismatched origin, got nil")
	}

	var repoErr *RepoError
	if !errors.As(err, &repoErr) {
		t.Fatalf("expected RepoError, got %T: %v", err, err)
	}
}

func TestFetch_ChecksOutPinnedVersion(t *testing.T) {
	requireGit(t)
	origin, commits := initOriginRepo(t)
	target := filepath.Join(t.TempDir(), "src")
	gitCmd(t, "", "clone", origin, target)

	fetcher := New(nil)
	head, err := fetcher.Fetch(context.Background(), Config{
		URL:     origin,
		Dir:     target,
		Version: commits[0],
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if head != commits[0] {
		t.Errorf("expected pinned head %s, got %s", commits[0], head)
	}
	if _, err := os.Stat(filepath.Join(target, "main.py")); !os.IsNotExist(err) {
		t.Error("expected main.py to be absent at the first commit")
	}
}

func TestFetch_CleansDirtyTree(t *testing.T) {
	requireGit(t)
	origin, commits := initOriginRepo(t)
	target := filepath.Join(t.TempDir(), "src")
	gitCmd(t, "", "clone", origin, target)

	readme := filepath.Join(target, "README.md")
	if err := os.WriteFile(readme, []byte("dirty\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	untracked := filepath.Join(target, "scratch.txt")
	if err := os.WriteFile(untracked, []byte("junk\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	fetcher := New(nil)
	_, err := fetcher.Fetch(context.Background(), Config{
		URL:     origin,
		Dir:     target,
		Version: commits[1],
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	content, err := os.ReadFile(readme)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "hello\n" {
		t.Errorf("expected tracked file restored, got %q", content)
	}
	if _, err := os.Stat(untracked); !os.IsNotExist(err) {
		t.Error("expected untracked file to be removed")
	}
}

func TestFetch_AppliesPatches(t *testing.T) {
	requireGit(t)
	origin, commits := initOriginRepo(t)
	target := filepath.Join(t.TempDir(), "src")
	gitCmd(t, "", "clone", origin, target)

	// Generate a patch from a scratch edit, then restore the tree.
	if err := os.WriteFile(filepath.Join(target, "README.md"), []byte("hello\npatched\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	patchText := gitCmd(t, target, "diff")
	gitCmd(t, target, "checkout", "--", ".")

	patchFile := filepath.Join(t.TempDir(), "change.patch")
	if err := os.WriteFile(patchFile, []byte(patchText+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	fetcher := New(nil)
	_, err := fetcher.Fetch(context.Background(), Config{
		URL:     origin,
		Dir:     target,
		Version: commits[1],
		Patches: []string{patchFile},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(target, "README.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), "patched") {
		t.Errorf("expected patched content, got %q", content)
	}
}

func TestFetch_BadPatchIsPatchError(t *testing.T) {
	requireGit(t)
	origin, _ := initOriginRepo(t)
	target := filepath.Join(t.TempDir(), "src")
	gitCmd(t, "", "clone", origin, target)

	patchFile := filepath.Join(t.TempDir(), "broken.patch")
	if err := os.WriteFile(patchFile, []byte("not a patch\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	fetcher := New(nil)
	_, err := fetcher.Fetch(context.Background(), Config{
		URL:     origin,
		Dir:     target,
		Patches: []string{patchFile},
	})
	if err == nil {
		t.Fatal("expected error for broken patch, got nil")
	}

	var patchErr *PatchError
	if !errors.As(err, &patchErr) {
		t.Fatalf("expected PatchError, got %T: %v", err, err)
	}
	if patchErr.Patch != patchFile {
		t.Errorf("expected patch path in error, got %q", patchErr.Patch)
	}
}

func TestFetch_MissingDirWithoutURL(t *testing.T) {
	fetcher := New(nil)
	_, err := fetcher.Fetch(context.Background(), Config{
		Dir: filepath.Join(t.TempDir(), "nope"),
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var repoErr *RepoError
	if !errors.As(err, &repoErr) {
		t.Fatalf("expected RepoError, got %T: %v", err, err)
	}
}

func TestNormalizeRemote(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		same bool
	}{
		{"https vs ssh", "https://bitbucket.org/example/proj", "git@bitbucket.org:example/proj", true},
		{"git suffix", "https://github.com/example/proj.git", "https://github.com/example/proj", true},
		{"ssh with suffix", "git@github.com:example/proj.git", "https://github.com/example/proj", true},
		{"different repos", "https://github.com/example/proj", "https://github.com/example/other", false},
		{"plain paths", "/tmp/origin", "/tmp/origin", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sameRemote(tt.a, tt.b); got != tt.same {
				t.Errorf("sameRemote(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.same)
			}
		})
	}
}
