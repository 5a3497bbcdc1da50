package report

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type PoolSummaryRepository interface {
	// Upsert writes or replaces the single row for (child_id, pool_id)
	// and fills in generated ids and timestamps.
	Upsert(ctx context.Context, s *PoolSummary) error
	GetByChildPool(ctx context.Context, childID, poolID uuid.UUID) (*PoolSummary, error)
	ListByChild(ctx context.Context, childID uuid.UUID) ([]*PoolSummary, error)
	// ListByChildPage returns one page of the child's summaries plus the
	// total row count.
	ListByChildPage(ctx context.Context, childID uuid.UUID, limit, offset int) ([]*PoolSummary, int, error)
}

type FinalReportRepository interface {
	// Upsert writes or replaces the single row for the child, preserving
	// any existing review timestamps.
	Upsert(ctx context.Context, r *FinalReport) error
	GetByChild(ctx context.Context, childID uuid.UUID) (*FinalReport, error)
	// SetDoctorReviewed stamps the doctor sign-off if it is not already
	// set. Returns ErrNotFound when the child has no report.
	SetDoctorReviewed(ctx context.Context, childID uuid.UUID, at time.Time) error
	// SetHODReviewed stamps the HOD sign-off if it is not already set.
	SetHODReviewed(ctx context.Context, childID uuid.UUID, at time.Time) error
}

// Locker serializes aggregate generation per key. The postgres
// implementation takes transaction-scoped advisory locks, so callers must
// hold a transaction for the lock to outlive the call.
type Locker interface {
	LockChildPool(ctx context.Context, childID, poolID uuid.UUID) error
	LockChild(ctx context.Context, childID uuid.UUID) error
}
