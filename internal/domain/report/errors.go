package report

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested aggregate row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict marks a lost race on an aggregate upsert. The caller
// retries once after the winner's row is visible; a second conflict is
// reported as transient.
var ErrConflict = errors.New("concurrent aggregate write")

// ConflictError carries the contended key. Unwraps to ErrConflict.
type ConflictError struct {
	Key string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrent aggregate write on %s", e.Key)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// ErrOrderingViolation is returned when an HOD sign-off is attempted
// before the doctor sign-off. The report is left unchanged.
var ErrOrderingViolation = errors.New("hod review requires a prior doctor review")
