package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/brightsteps/assess/internal/domain/assessment"
	"github.com/brightsteps/assess/internal/platform/db"
)

// Service runs the aggregation pipeline: responses roll up into pool
// summaries, pool summaries roll up into the child's final report, and
// sign-off advances through the review workflow. Every aggregate write
// happens inside a transaction holding the key's advisory lock.
type Service struct {
	pools     assessment.PoolRepository
	sections  assessment.SectionRepository
	responses assessment.ResponseRepository
	summaries PoolSummaryRepository
	reports   FinalReportRepository
	locks     Locker
	gen       SummaryGenerator
	tx        db.TxRunner
	logger    zerolog.Logger
}

func NewService(
	pools assessment.PoolRepository,
	sections assessment.SectionRepository,
	responses assessment.ResponseRepository,
	summaries PoolSummaryRepository,
	reports FinalReportRepository,
	locks Locker,
	gen SummaryGenerator,
	tx db.TxRunner,
	logger zerolog.Logger,
) *Service {
	return &Service{
		pools:     pools,
		sections:  sections,
		responses: responses,
		summaries: summaries,
		reports:   reports,
		locks:     locks,
		gen:       gen,
		tx:        tx,
		logger:    logger,
	}
}

// GeneratePoolSummary recomputes and upserts the single summary row for
// (child, pool). Safe to call any number of times; concurrent callers on
// the same pair are serialized by the advisory lock, and a loser that
// still hits the unique index retries once against the winner's row.
func (s *Service) GeneratePoolSummary(ctx context.Context, childID, poolID uuid.UUID) (*PoolSummary, error) {
	var out *PoolSummary
	attempt := func() error {
		return s.tx.WithTx(ctx, func(ctx context.Context) error {
			if err := s.locks.LockChildPool(ctx, childID, poolID); err != nil {
				return err
			}
			sum, err := s.buildPoolSummary(ctx, childID, poolID)
			if err != nil {
				return err
			}
			if err := s.summaries.Upsert(ctx, sum); err != nil {
				return err
			}
			out = sum
			return nil
		})
	}

	err := attempt()
	if errors.Is(err, ErrConflict) {
		s.logger.Warn().
			Str("child_id", childID.String()).
			Str("pool_id", poolID.String()).
			Msg("pool summary upsert lost a race, retrying")
		err = attempt()
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("child_id", childID.String()).
		Str("pool_id", poolID.String()).
		Int("completed_sections", out.CompletedSections).
		Msg("pool_summary_generated")
	return out, nil
}

func (s *Service) buildPoolSummary(ctx context.Context, childID, poolID uuid.UUID) (*PoolSummary, error) {
	sum := &PoolSummary{
		ChildID:     childID,
		PoolID:      poolID,
		GeneratedAt: time.Now().UTC(),
	}

	// pool_id is a soft reference; a pool that no longer resolves is a
	// reportable gap, not a failure.
	pool, err := s.pools.GetByID(ctx, poolID)
	switch {
	case err == nil:
		sum.PoolTitle = pool.Title
	case errors.Is(err, assessment.ErrNotFound):
		s.logger.Warn().
			Str("child_id", childID.String()).
			Str("pool_id", poolID.String()).
			Msg("pool reference does not resolve")
	default:
		return nil, err
	}

	total, err := s.sections.CountActiveByPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	sum.TotalSections = total

	sections, err := s.sections.ListByPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	var totalScore, maxScore int
	for _, sec := range sections {
		resp, err := s.responses.GetByChildSection(ctx, childID, sec.ID)
		if errors.Is(err, assessment.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		// Unscored responses never count toward an aggregate.
		if resp.Status != assessment.StatusCompleted || !resp.Scored() {
			continue
		}
		sum.CompletedSections++
		totalScore += *resp.TotalScore
		maxScore += *resp.MaxPossibleScore
	}
	if sum.CompletedSections > 0 {
		sum.TotalScore = &totalScore
		sum.MaxPossibleScore = &maxScore
	}

	content, err := s.gen.PoolSummary(ctx, sum)
	if err != nil {
		// Content is an opaque collaborator product; the aggregate is
		// still valid without it.
		s.logger.Warn().Err(err).
			Str("child_id", childID.String()).
			Str("pool_id", poolID.String()).
			Msg("pool summary content generation failed")
	} else {
		sum.SummaryContent = content
	}
	return sum, nil
}

// GenerateFinalReport recomputes and upserts the child's single final
// report row from the child's pool summaries. Review timestamps on an
// existing row are preserved.
func (s *Service) GenerateFinalReport(ctx context.Context, childID uuid.UUID) (*FinalReport, error) {
	var out *FinalReport
	attempt := func() error {
		return s.tx.WithTx(ctx, func(ctx context.Context) error {
			if err := s.locks.LockChild(ctx, childID); err != nil {
				return err
			}
			fr, err := s.buildFinalReport(ctx, childID)
			if err != nil {
				return err
			}
			if err := s.reports.Upsert(ctx, fr); err != nil {
				return err
			}
			out = fr
			return nil
		})
	}

	err := attempt()
	if errors.Is(err, ErrConflict) {
		s.logger.Warn().
			Str("child_id", childID.String()).
			Msg("final report upsert lost a race, retrying")
		err = attempt()
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("child_id", childID.String()).
		Int("completed_pools", out.CompletedPools).
		Msg("final_report_generated")
	return out, nil
}

func (s *Service) buildFinalReport(ctx context.Context, childID uuid.UUID) (*FinalReport, error) {
	pools, err := s.summaries.ListByChild(ctx, childID)
	if err != nil {
		return nil, err
	}

	fr := &FinalReport{
		ChildID:     childID,
		TotalPools:  len(pools),
		GeneratedAt: time.Now().UTC(),
	}
	var overall, overallMax int
	for _, p := range pools {
		if p.TotalScore == nil || p.MaxPossibleScore == nil {
			continue
		}
		fr.CompletedPools++
		overall += *p.TotalScore
		overallMax += *p.MaxPossibleScore
	}
	if fr.CompletedPools > 0 {
		fr.OverallScore = &overall
		fr.OverallMaxScore = &overallMax
	}

	content, err := s.gen.OverallSummary(ctx, fr, pools)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("child_id", childID.String()).
			Msg("final report content generation failed")
	} else {
		fr.OverallSummary = content
	}
	return fr, nil
}

// GenerateMissing regenerates every active pool's summary for the child,
// then the final report. Used to repair a child whose aggregates drifted
// or were deleted.
func (s *Service) GenerateMissing(ctx context.Context, childID uuid.UUID) (*FinalReport, error) {
	pools, err := s.pools.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range pools {
		if _, err := s.GeneratePoolSummary(ctx, childID, p.ID); err != nil {
			return nil, fmt.Errorf("pool %s: %w", p.ID, err)
		}
	}
	return s.GenerateFinalReport(ctx, childID)
}

// ResponseCompleted is the completion trigger: when the completed session
// fills in the last section of its pool, the pool summary and the final
// report are regenerated. An incomplete pool generates nothing.
func (s *Service) ResponseCompleted(ctx context.Context, childID, sectionID uuid.UUID) error {
	sec, err := s.sections.GetByID(ctx, sectionID)
	if err != nil {
		return fmt.Errorf("section %s: %w", sectionID, err)
	}

	complete, err := s.poolComplete(ctx, childID, sec.PoolID)
	if err != nil {
		return err
	}
	if !complete {
		s.logger.Debug().
			Str("child_id", childID.String()).
			Str("pool_id", sec.PoolID.String()).
			Msg("pool not yet complete, skipping aggregation")
		return nil
	}

	if _, err := s.GeneratePoolSummary(ctx, childID, sec.PoolID); err != nil {
		return err
	}
	_, err = s.GenerateFinalReport(ctx, childID)
	return err
}

func (s *Service) poolComplete(ctx context.Context, childID, poolID uuid.UUID) (bool, error) {
	sections, err := s.sections.ListByPool(ctx, poolID)
	if err != nil {
		return false, err
	}
	if len(sections) == 0 {
		return false, nil
	}
	for _, sec := range sections {
		resp, err := s.responses.GetByChildSection(ctx, childID, sec.ID)
		if errors.Is(err, assessment.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if resp.Status != assessment.StatusCompleted || !resp.Scored() {
			return false, nil
		}
	}
	return true, nil
}

// AdvanceReview applies one sign-off stage to the child's final report.
// Re-applying a stage that is already stamped is a no-op; HOD before
// doctor is an ordering violation and writes nothing. The check and the
// write run under the child's advisory lock so racing transitions cannot
// interleave.
func (s *Service) AdvanceReview(ctx context.Context, childID uuid.UUID, stage ReviewStage, at time.Time) (*FinalReport, error) {
	var out *FinalReport
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.locks.LockChild(ctx, childID); err != nil {
			return err
		}
		fr, err := s.reports.GetByChild(ctx, childID)
		if err != nil {
			return err
		}

		switch stage {
		case StageDoctor:
			if fr.DoctorReviewedAt != nil {
				out = fr
				return nil
			}
			if err := s.reports.SetDoctorReviewed(ctx, childID, at); err != nil {
				return err
			}
		case StageHOD:
			switch fr.ReviewState() {
			case StateHODReviewed:
				out = fr
				return nil
			case StateUnreviewed:
				return ErrOrderingViolation
			}
			if at.Before(*fr.DoctorReviewedAt) {
				at = *fr.DoctorReviewedAt
			}
			if err := s.reports.SetHODReviewed(ctx, childID, at); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown review stage %q", stage)
		}

		out, err = s.reports.GetByChild(ctx, childID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("child_id", childID.String()).
		Str("stage", string(stage)).
		Str("state", string(out.ReviewState())).
		Msg("review_advanced")
	return out, nil
}

func (s *Service) ListPoolSummaries(ctx context.Context, childID uuid.UUID, limit, offset int) ([]*PoolSummary, int, error) {
	return s.summaries.ListByChildPage(ctx, childID, limit, offset)
}

func (s *Service) GetPoolSummary(ctx context.Context, childID, poolID uuid.UUID) (*PoolSummary, error) {
	return s.summaries.GetByChildPool(ctx, childID, poolID)
}

func (s *Service) GetFinalReport(ctx context.Context, childID uuid.UUID) (*FinalReport, error) {
	return s.reports.GetByChild(ctx, childID)
}
