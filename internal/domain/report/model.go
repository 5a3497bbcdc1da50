package report

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PoolSummary aggregates every section response under one (child, pool)
// pair. Derived artifact: it may be deleted and regenerated at any time;
// the responses stay the source of truth. Unique per (child_id, pool_id).
type PoolSummary struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	ChildID           uuid.UUID       `db:"child_id" json:"child_id"`
	PoolID            uuid.UUID       `db:"pool_id" json:"pool_id"`
	PoolTitle         string          `db:"pool_title" json:"pool_title"`
	SummaryContent    json.RawMessage `db:"summary_content" json:"summary_content,omitempty"`
	TotalSections     int             `db:"total_sections" json:"total_sections"`
	CompletedSections int             `db:"completed_sections" json:"completed_sections"`
	TotalScore        *int            `db:"total_score" json:"total_score,omitempty"`
	MaxPossibleScore  *int            `db:"max_possible_score" json:"max_possible_score,omitempty"`
	GeneratedAt       time.Time       `db:"generated_at" json:"generated_at"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// FinalReport aggregates all of a child's pool summaries. Unique per
// child. Regeneration never touches the review timestamps; only the
// review workflow advances them.
type FinalReport struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	ChildID          uuid.UUID       `db:"child_id" json:"child_id"`
	OverallSummary   json.RawMessage `db:"overall_summary" json:"overall_summary,omitempty"`
	TotalPools       int             `db:"total_pools" json:"total_pools"`
	CompletedPools   int             `db:"completed_pools" json:"completed_pools"`
	OverallScore     *int            `db:"overall_score" json:"overall_score,omitempty"`
	OverallMaxScore  *int            `db:"overall_max_score" json:"overall_max_score,omitempty"`
	DoctorReviewedAt *time.Time      `db:"doctor_reviewed_at" json:"doctor_reviewed_at,omitempty"`
	HODReviewedAt    *time.Time      `db:"hod_reviewed_at" json:"hod_reviewed_at,omitempty"`
	GeneratedAt      time.Time       `db:"generated_at" json:"generated_at"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// ReviewState is the derived sign-off state. It is never stored; every
// transition decision derives it from the two timestamps so the rules
// live in one place.
type ReviewState string

const (
	StateUnreviewed     ReviewState = "UNREVIEWED"
	StateDoctorReviewed ReviewState = "DOCTOR_REVIEWED"
	StateHODReviewed    ReviewState = "HOD_REVIEWED"
)

// ReviewState derives the sign-off state from the timestamp pair.
func (r *FinalReport) ReviewState() ReviewState {
	switch {
	case r.HODReviewedAt != nil:
		return StateHODReviewed
	case r.DoctorReviewedAt != nil:
		return StateDoctorReviewed
	default:
		return StateUnreviewed
	}
}

// ReviewStage identifies which sign-off an advance request targets.
type ReviewStage string

const (
	StageDoctor ReviewStage = "DOCTOR"
	StageHOD    ReviewStage = "HOD"
)
