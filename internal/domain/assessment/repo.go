package assessment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

type ResponseRepository interface {
	Create(ctx context.Context, r *Response) error
	GetByID(ctx context.Context, id uuid.UUID) (*Response, error)
	GetByChildSection(ctx context.Context, childID, sectionID uuid.UUID) (*Response, error)
	// MarkCompleted transitions the response to COMPLETED and stamps
	// completed_at.
	MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) error
	// UpdateScores stamps the authoritative score pair.
	UpdateScores(ctx context.Context, id uuid.UUID, total, max int) error
	// ListBackfillCandidates returns the ids of COMPLETED responses whose
	// total_score is NULL, the set the recalculation run heals.
	ListBackfillCandidates(ctx context.Context) ([]uuid.UUID, error)
}

type AnswerRepository interface {
	// Upsert inserts the answer or overwrites the existing row for the
	// same (response, question) pair.
	Upsert(ctx context.Context, a *Answer) error
	ListByResponse(ctx context.Context, responseID uuid.UUID) ([]*Answer, error)
}

type QuestionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Question, error)
	ListBySection(ctx context.Context, sectionID uuid.UUID) ([]*Question, error)
}

type SectionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Section, error)
	ListByPool(ctx context.Context, poolID uuid.UUID) ([]*Section, error)
	CountActiveByPool(ctx context.Context, poolID uuid.UUID) (int, error)
}

type PoolRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Pool, error)
	ListActive(ctx context.Context) ([]*Pool, error)
}

// ChildRepository resolves the child's age at assessment time, the input
// age-dependent scoring rules key on.
type ChildRepository interface {
	AgeMonths(ctx context.Context, childID uuid.UUID, at time.Time) (int, error)
}
