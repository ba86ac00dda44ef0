package source

import "fmt"

// RepoError indicates the work tree could not be acquired or verified.
type RepoError struct {
	Dir string
	Msg string
	Err error
}

func (e *RepoError) Error() string {
	if e.Dir != "" {
		return fmt.Sprintf("%s: %s", e.Dir, e.Msg)
	}
	return e.Msg
}

func (e *RepoError) Unwrap() error {
	return e.Err
}

// PatchError indicates a patch failed to apply.
type PatchError struct {
	Patch string
	Err   error
}

func (e *PatchError) Error() string {
	return fmt.Sprintf("failed to apply patch %s", e.Patch)
}

func (e *PatchError) Unwrap() error {
	return e.Err
}
