package gitlab

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoFiles is returned when the upload root contains no regular files.
var ErrNoFiles = errors.New("no files found to upload")

// ConfigurationError lists the target fields that were left empty.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Missing, ", "))
}

// ProjectResolutionError means the remote rejected the project lookup.
// It ends the session before any file is read.
type ProjectResolutionError struct {
	ProjectID string
	Err       error
}

func (e *ProjectResolutionError) Error() string {
	return fmt.Sprintf("project %q is invalid or inaccessible: %v", e.ProjectID, e.Err)
}

func (e *ProjectResolutionError) Unwrap() error { return e.Err }

// EnumerationError means the upload root could not be walked.
type EnumerationError struct {
	Root string
	Err  error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("failed to list files in %s: %v", e.Root, e.Err)
}

func (e *EnumerationError) Unwrap() error { return e.Err }

// FileReadError is reported per file; the session continues.
type FileReadError struct {
	Path string
	Err  error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("failed to read %s: %v", e.Path, e.Err)
}

func (e *FileReadError) Unwrap() error { return e.Err }

// RemoteCreateError is a rejected create-file request, e.g. a path that
// already exists on the branch.
type RemoteCreateError struct {
	Path       string
	StatusCode int
	Message    string
}

func (e *RemoteCreateError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("failed to create %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("failed to create %s: %d %s", e.Path, e.StatusCode, e.Message)
}

// UnclassifiedError wraps anything else. Inside the per-file loop it only
// fails the current file.
type UnclassifiedError struct {
	Err error
}

func (e *UnclassifiedError) Error() string {
	return fmt.Sprintf("unexpected error: %v", e.Err)
}

func (e *UnclassifiedError) Unwrap() error { return e.Err }
