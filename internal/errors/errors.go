// internal/errors/errors.go
package errors

import "fmt"

// ErrInvalidRepoFormat is returned when a repository key is not in 'owner/name' format.
type ErrInvalidRepoFormat struct {
	Repo string
}

func (e *ErrInvalidRepoFormat) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected 'owner/name'", e.Repo)
}

// ErrUnknownJob is returned when the worker is asked to run a job it does not know.
type ErrUnknownJob struct {
	Job string
}

func (e *ErrUnknownJob) Error() string {
	return fmt.Sprintf("unknown job: %q, expected one of import, update, clean", e.Job)
}

// ErrMissingConfig is returned when a required configuration field is empty.
type ErrMissingConfig struct {
	Key string
}

func (e *ErrMissingConfig) Error() string {
	return fmt.Sprintf("%s is a required configuration field", e.Key)
}
