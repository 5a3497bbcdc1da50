package assessment

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brightsteps/assess/internal/domain/scoring"
)

// Session status. Only COMPLETED sessions carry authoritative scores.
const (
	StatusNotStarted = "NOT_STARTED"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
)

var validStatuses = map[string]bool{
	StatusNotStarted: true,
	StatusInProgress: true,
	StatusCompleted:  true,
}

// Pool groups assessment sections that are aggregated together into one
// summary.
type Pool struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description,omitempty"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	OrderNumber int       `db:"order_number" json:"order_number"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Section is one assessment form. A child answers each section in one
// Response session.
type Section struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PoolID      uuid.UUID `db:"pool_id" json:"pool_id"`
	Title       string    `db:"title" json:"title"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	OrderNumber int       `db:"order_number" json:"order_number"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Question belongs to a section. ScoringLogic is nil for non-scorable or
// unscored questions; when present it is validated at load time.
type Question struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	SectionID    uuid.UUID      `db:"section_id" json:"section_id"`
	Text         string         `db:"text" json:"text"`
	IsScorable   bool           `db:"is_scorable" json:"is_scorable"`
	ScoringLogic *scoring.Logic `db:"scoring_logic" json:"scoring_logic,omitempty"`
	MinAgeMonths *int           `db:"min_age_months" json:"min_age_months,omitempty"`
	MaxAgeMonths *int           `db:"max_age_months" json:"max_age_months,omitempty"`
	OrderNumber  int            `db:"order_number" json:"order_number"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// Answer is one child's answer to one question within a session.
// Unique per (response_id, question_id); overwritten freely while the
// session is in progress.
type Answer struct {
	ID               uuid.UUID `db:"id" json:"id"`
	ResponseID       uuid.UUID `db:"response_id" json:"response_id"`
	QuestionID       uuid.UUID `db:"question_id" json:"question_id"`
	RawAnswer        string    `db:"raw_answer" json:"raw_answer"`
	TranslatedAnswer *string   `db:"translated_answer" json:"translated_answer,omitempty"`
	AnswerBucket     string    `db:"answer_bucket" json:"answer_bucket"`
	Score            *int      `db:"score" json:"score,omitempty"`
	AnsweredAt       time.Time `db:"answered_at" json:"answered_at"`
}

// Response is one assessment session: one child answering one section.
// Unique per (child_id, section_id). TotalScore and MaxPossibleScore stay
// NULL until the calculator stamps them; a response with NULL scores is
// never counted in any aggregate.
type Response struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	ChildID          uuid.UUID  `db:"child_id" json:"child_id"`
	SectionID        uuid.UUID  `db:"section_id" json:"section_id"`
	Status           string     `db:"status" json:"status"`
	TotalScore       *int       `db:"total_score" json:"total_score,omitempty"`
	MaxPossibleScore *int       `db:"max_possible_score" json:"max_possible_score,omitempty"`
	CompletedAt      *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// Scored reports whether the response carries authoritative scores.
func (r *Response) Scored() bool {
	return r.TotalScore != nil && r.MaxPossibleScore != nil
}

func (r *Response) Validate() error {
	if r.ChildID == uuid.Nil {
		return fmt.Errorf("child_id is required")
	}
	if r.SectionID == uuid.Nil {
		return fmt.Errorf("section_id is required")
	}
	if !validStatuses[r.Status] {
		return fmt.Errorf("invalid status: %s", r.Status)
	}
	return nil
}
