package runner

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// collectArtifacts copies files matching the descriptor's artifact globs
// from the work tree into destDir, preserving their relative layout.
// Patterns that match nothing are skipped; directories are copied
// recursively. Returns the number of files staged.
func collectArtifacts(patterns []string, workDir, destDir string) (int, error) {
	count := 0
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(workDir, pattern))
		if err != nil {
			return count, fmt.Errorf("bad artifact pattern %q: %w", pattern, err)
		}
		for _, match := range matches {
			rel, err := filepath.Rel(workDir, match)
			if err != nil {
				return count, err
			}
			n, err := copyTree(match, filepath.Join(destDir, rel))
			if err != nil {
				return count, fmt.Errorf("failed to stage %s: %w", rel, err)
			}
			count += n
		}
	}
	return count, nil
}

// copyTree copies a file or directory tree and returns the file count.
func copyTree(src, dest string) (int, error) {
	info, err := os.Stat(src)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return 1, copyFile(src, dest, info.Mode())
	}

	count := 0
	err = filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if err := copyFile(path, filepath.Join(dest, rel), info.Mode()); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}

func copyFile(src, dest string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
