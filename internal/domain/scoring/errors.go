package scoring

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrPrecondition marks operations rejected before any work was done,
// e.g. scoring a session that is not completed. Match with errors.Is.
var ErrPrecondition = errors.New("precondition failed")

// PreconditionError carries the rejected operation and the reason.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *PreconditionError) Unwrap() error { return ErrPrecondition }

// ErrMissingQuestion marks an answer whose question no longer exists.
// The calculator cannot produce an authoritative score without the
// question's scoring rule, so this is fatal for the item.
var ErrMissingQuestion = errors.New("missing question")

// MissingQuestionError identifies which question reference is broken.
type MissingQuestionError struct {
	QuestionID uuid.UUID
}

func (e *MissingQuestionError) Error() string {
	return fmt.Sprintf("missing question %s", e.QuestionID)
}

func (e *MissingQuestionError) Unwrap() error { return ErrMissingQuestion }

// GapKind classifies a rule coverage gap.
type GapKind string

const (
	// GapNoBracket means no age bracket covers the child's age.
	GapNoBracket GapKind = "no_bracket"
	// GapNoBucket means the resolved protocol has no entry for the
	// answer's bucket.
	GapNoBucket GapKind = "no_bucket"
	// GapNoRule means a scorable question carries no scoring rule at all.
	GapNoRule GapKind = "no_rule"
)

// Gap records a non-fatal rule coverage hole. The affected question
// contributes zero; callers audit gaps from the result.
type Gap struct {
	QuestionID uuid.UUID `json:"question_id"`
	Kind       GapKind   `json:"kind"`
	Bucket     string    `json:"bucket,omitempty"`
}
