package jobs

import (
	"errors"
	"fmt"
)

// Sentinel errors for job processing.
// These can be checked with errors.Is().
var (
	ErrAlreadyExists  = errors.New("output path already exists")
	ErrOutputConflict = errors.New("output path appeared during encode")
	ErrInputTooSmall  = errors.New("input too small to encode")
	ErrZeroJobs       = errors.New("cannot run with 0 jobs")
)

// alreadyExistsError returns a wrapped error naming the existing path.
func alreadyExistsError(path string) error {
	return fmt.Errorf("%w: %s", ErrAlreadyExists, path)
}

// outputConflictError returns a wrapped error for an output that appeared
// between the pre-check and the commit.
func outputConflictError(path string) error {
	return fmt.Errorf("%w: %s", ErrOutputConflict, path)
}
