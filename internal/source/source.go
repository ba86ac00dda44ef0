// Package source acquires a project's work tree from git: clone or verify
// the checkout directory, pin it to a required commit, and apply patches on
// top. All git interaction shells out to the git binary.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Config describes the work tree to acquire. Dir and patch paths must be
// absolute; the caller resolves them against the project root.
type Config struct {
	URL     string
	Dir     string
	Version string
	Patches []string
}

// Fetcher acquires and pins work trees.
type Fetcher struct {
	logger *slog.Logger
}

// New creates a Fetcher. A nil logger discards all log output.
func New(logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Fetcher{logger: logger}
}

// Fetch ensures the work tree matches the config: clone or verify the
// checkout, pin the version, apply patches. Returns the resolved HEAD
// commit after all steps.
func (f *Fetcher) Fetch(ctx context.Context, cfg Config) (string, error) {
	if err := f.cloneOrVerify(ctx, cfg); err != nil {
		return "", err
	}
	if cfg.Version != "" {
		if err := f.checkoutVersion(ctx, cfg); err != nil {
			return "", err
		}
	}
	if err := f.applyPatches(ctx, cfg); err != nil {
		return "", err
	}

	head, err := f.git(ctx, cfg.Dir, "rev-parse", "HEAD")
	if err != nil {
		return "", &RepoError{Dir: cfg.Dir, Msg: "failed to resolve HEAD", Err: err}
	}
	return head, nil
}

// cloneOrVerify clones the remote when the checkout is absent, otherwise
// verifies the existing checkout points at the declared remote.
func (f *Fetcher) cloneOrVerify(ctx context.Context, cfg Config) error {
	if _, err := os.Stat(cfg.Dir); os.IsNotExist(err) {
		if cfg.URL == "" {
			return &RepoError{Dir: cfg.Dir, Msg: "source dir does not exist and no url is configured"}
		}
		f.logger.Info("cloning source",
			slog.String("url", cfg.URL),
			slog.String("dir", cfg.Dir))

		if err := os.MkdirAll(filepath.Dir(cfg.Dir), 0o755); err != nil {
			return &RepoError{Dir: cfg.Dir, Msg: "failed to create parent dir", Err: err}
		}
		if _, err := f.git(ctx, "", "clone", cfg.URL, cfg.Dir); err != nil {
			return &RepoError{Dir: cfg.Dir, Msg: "failed to clone repo", Err: err}
		}
		return nil
	}

	if cfg.URL == "" {
		return nil
	}

	origin, err := f.git(ctx, cfg.Dir, "config", "--local", "--get", "remote.origin.url")
	if err != nil {
		return &RepoError{Dir: cfg.Dir, Msg: "checkout dir is not a git repository", Err: err}
	}
	if !sameRemote(origin, cfg.URL) {
		return &RepoError{Dir: cfg.Dir, Msg: fmt.Sprintf("checkout origin %q does not match configured url %q", origin, cfg.URL)}
	}

	f.logger.Debug("source already cloned", slog.String("dir", cfg.Dir))
	return nil
}

// checkoutVersion pins the work tree to the required commit and restores a
// clean tree afterwards.
func (f *Fetcher) checkoutVersion(ctx context.Context, cfg Config) error {
	required, err := f.git(ctx, cfg.Dir, "rev-parse", "--verify", cfg.Version+"^{commit}")
	if err != nil {
		return &RepoError{Dir: cfg.Dir, Msg: fmt.Sprintf("unknown version %q", cfg.Version), Err: err}
	}

	head, err := f.git(ctx, cfg.Dir, "rev-parse", "HEAD")
	if err != nil {
		return &RepoError{Dir: cfg.Dir, Msg: "failed to resolve HEAD", Err: err}
	}

	if head != required {
		f.logger.Info("checking out version",
			slog.String("version", cfg.Version),
			slog.String("dir", cfg.Dir))
		if _, err := f.git(ctx, cfg.Dir, "checkout", required); err != nil {
			return &RepoError{Dir: cfg.Dir, Msg: fmt.Sprintf("failed to check out version %q", cfg.Version), Err: err}
		}
	} else {
		f.logger.Debug("version already checked out", slog.String("version", cfg.Version))
	}

	status, err := f.git(ctx, cfg.Dir, "status", "--porcelain")
	if err != nil {
		return &RepoError{Dir: cfg.Dir, Msg: "failed to get work tree status", Err: err}
	}
	if status != "" {
		f.logger.Info("cleaning dirty work tree", slog.String("dir", cfg.Dir))
		for _, args := range [][]string{
			{"reset", "HEAD"},
			{"clean", "--force"},
			{"checkout", "--", "."},
		} {
			if _, err := f.git(ctx, cfg.Dir, args...); err != nil {
				return &RepoError{Dir: cfg.Dir, Msg: "failed to clean work tree", Err: err}
			}
		}
	}

	return nil
}

// applyPatches applies each patch in order with git apply.
func (f *Fetcher) applyPatches(ctx context.Context, cfg Config) error {
	for _, patch := range cfg.Patches {
		f.logger.Info("applying patch", slog.String("patch", patch))
		if _, err := f.git(ctx, cfg.Dir, "apply", patch); err != nil {
			return &PatchError{Patch: patch, Err: err}
		}
	}
	return nil
}
