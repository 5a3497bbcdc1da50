package assessment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/brightsteps/assess/internal/domain/scoring"
)

// CompletionHook is notified after a session is completed and scored, so
// the report pipeline can regenerate the affected aggregates. Hook failure
// does not undo the completion; aggregates can always be regenerated later.
type CompletionHook interface {
	ResponseCompleted(ctx context.Context, childID, sectionID uuid.UUID) error
}

type Service struct {
	responses ResponseRepository
	answers   AnswerRepository
	questions QuestionRepository
	sections  SectionRepository
	children  ChildRepository
	calc      scoring.Calculator
	hook      CompletionHook
	logger    zerolog.Logger
}

func NewService(
	responses ResponseRepository,
	answers AnswerRepository,
	questions QuestionRepository,
	sections SectionRepository,
	children ChildRepository,
	logger zerolog.Logger,
) *Service {
	return &Service{
		responses: responses,
		answers:   answers,
		questions: questions,
		sections:  sections,
		children:  children,
		logger:    logger,
	}
}

// SetCompletionHook wires the report pipeline trigger. Set once at startup.
func (s *Service) SetCompletionHook(hook CompletionHook) { s.hook = hook }

// StartSession opens an assessment session for a child on a section.
// Sessions are unique per (child, section); starting an existing session
// returns the existing row.
func (s *Service) StartSession(ctx context.Context, childID, sectionID uuid.UUID) (*Response, error) {
	if childID == uuid.Nil {
		return nil, fmt.Errorf("child_id is required")
	}
	if sectionID == uuid.Nil {
		return nil, fmt.Errorf("section_id is required")
	}

	if _, err := s.sections.GetByID(ctx, sectionID); err != nil {
		return nil, fmt.Errorf("section %s: %w", sectionID, err)
	}

	existing, err := s.responses.GetByChildSection(ctx, childID, sectionID)
	if err == nil {
		return existing, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	resp := &Response{ChildID: childID, SectionID: sectionID, Status: StatusInProgress}
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	if err := s.responses.Create(ctx, resp); err != nil {
		return nil, err
	}
	return s.responses.GetByID(ctx, resp.ID)
}

type SubmitAnswerInput struct {
	QuestionID       uuid.UUID `json:"question_id"`
	RawAnswer        string    `json:"raw_answer"`
	TranslatedAnswer *string   `json:"translated_answer,omitempty"`
	AnswerBucket     string    `json:"answer_bucket"`
}

// SubmitAnswer records or overwrites the child's answer to a question while
// the session is in progress. The numeric score is resolved eagerly when
// the question's rule covers the child's age and bucket; otherwise it stays
// unresolved until calculation.
func (s *Service) SubmitAnswer(ctx context.Context, responseID uuid.UUID, in SubmitAnswerInput) (*Answer, error) {
	if in.QuestionID == uuid.Nil {
		return nil, fmt.Errorf("question_id is required")
	}
	if in.AnswerBucket == "" {
		return nil, fmt.Errorf("answer_bucket is required")
	}

	resp, err := s.responses.GetByID(ctx, responseID)
	if err != nil {
		return nil, err
	}
	if resp.Status == StatusCompleted {
		return nil, &scoring.PreconditionError{Op: "submit answer", Reason: "session already completed"}
	}

	q, err := s.questions.GetByID(ctx, in.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("question %s: %w", in.QuestionID, err)
	}
	if q.SectionID != resp.SectionID {
		return nil, fmt.Errorf("question %s does not belong to section %s", q.ID, resp.SectionID)
	}

	a := &Answer{
		ResponseID:       responseID,
		QuestionID:       in.QuestionID,
		RawAnswer:        in.RawAnswer,
		TranslatedAnswer: in.TranslatedAnswer,
		AnswerBucket:     in.AnswerBucket,
		AnsweredAt:       time.Now().UTC(),
	}

	if q.IsScorable && q.ScoringLogic != nil {
		age, err := s.children.AgeMonths(ctx, resp.ChildID, a.AnsweredAt)
		if err != nil {
			return nil, fmt.Errorf("child %s: %w", resp.ChildID, err)
		}
		if score, ok := scoring.ResolveScore(q.ScoringLogic, age, in.AnswerBucket); ok {
			a.Score = &score
		}
	}

	if err := s.answers.Upsert(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Complete transitions the session to COMPLETED, stamps authoritative
// scores, and triggers report aggregation for the child.
func (s *Service) Complete(ctx context.Context, responseID uuid.UUID) (*Response, *scoring.Result, error) {
	resp, err := s.responses.GetByID(ctx, responseID)
	if err != nil {
		return nil, nil, err
	}
	if resp.Status == StatusCompleted {
		return nil, nil, &scoring.PreconditionError{Op: "complete", Reason: "session already completed"}
	}

	now := time.Now().UTC()
	if err := s.responses.MarkCompleted(ctx, responseID, now); err != nil {
		return nil, nil, err
	}
	resp.Status = StatusCompleted
	resp.CompletedAt = &now

	result, err := s.score(ctx, resp)
	if err != nil {
		return nil, nil, err
	}
	if err := s.responses.UpdateScores(ctx, responseID, result.TotalScore, result.MaxPossibleScore); err != nil {
		return nil, nil, err
	}

	if s.hook != nil {
		if err := s.hook.ResponseCompleted(ctx, resp.ChildID, resp.SectionID); err != nil {
			// Aggregates are regenerable on demand; completion stands.
			s.logger.Warn().Err(err).
				Str("response_id", responseID.String()).
				Str("child_id", resp.ChildID.String()).
				Msg("report generation after completion failed")
		}
	}

	updated, err := s.responses.GetByID(ctx, responseID)
	if err != nil {
		return nil, nil, err
	}
	return updated, result, nil
}

// Recalculate recomputes and re-stamps the score pair of one completed
// session. Deliberate and explicit: answer edits after completion never
// recompute automatically.
func (s *Service) Recalculate(ctx context.Context, responseID uuid.UUID) (*Response, *scoring.Result, error) {
	result, err := s.ComputeScores(ctx, responseID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.responses.UpdateScores(ctx, responseID, result.TotalScore, result.MaxPossibleScore); err != nil {
		return nil, nil, err
	}
	updated, err := s.responses.GetByID(ctx, responseID)
	if err != nil {
		return nil, nil, err
	}
	return updated, result, nil
}

// ComputeScores scores a session without persisting anything. The batch
// runner uses it to stage updates and commit them in bounded batches.
func (s *Service) ComputeScores(ctx context.Context, responseID uuid.UUID) (*scoring.Result, error) {
	resp, err := s.responses.GetByID(ctx, responseID)
	if err != nil {
		return nil, err
	}
	return s.score(ctx, resp)
}

func (s *Service) score(ctx context.Context, resp *Response) (*scoring.Result, error) {
	answers, err := s.answers.ListByResponse(ctx, resp.ID)
	if err != nil {
		return nil, err
	}
	questions, err := s.questions.ListBySection(ctx, resp.SectionID)
	if err != nil {
		return nil, err
	}

	// Age at assessment time, not at calculation time, so backfill runs
	// score against the protocol that applied when the child answered.
	at := time.Now().UTC()
	if resp.CompletedAt != nil {
		at = *resp.CompletedAt
	}
	age, err := s.children.AgeMonths(ctx, resp.ChildID, at)
	if err != nil {
		return nil, fmt.Errorf("child %s: %w", resp.ChildID, err)
	}

	in := scoring.Input{
		Completed: resp.Status == StatusCompleted,
		AgeMonths: age,
	}
	for _, a := range answers {
		in.Answers = append(in.Answers, scoring.AnswerInput{
			QuestionID: a.QuestionID,
			Bucket:     a.AnswerBucket,
			Score:      a.Score,
		})
	}
	for _, q := range questions {
		in.Questions = append(in.Questions, scoring.QuestionInput{
			ID:         q.ID,
			IsScorable: q.IsScorable,
			Logic:      q.ScoringLogic,
		})
	}

	result, err := s.calc.Score(in)
	if err != nil {
		return nil, err
	}
	for _, g := range result.Gaps {
		s.logger.Warn().
			Str("response_id", resp.ID.String()).
			Str("question_id", g.QuestionID.String()).
			Str("kind", string(g.Kind)).
			Msg("scoring rule coverage gap")
	}
	return result, nil
}
