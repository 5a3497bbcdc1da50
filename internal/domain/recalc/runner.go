package recalc

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/brightsteps/assess/internal/domain/scoring"
	"github.com/brightsteps/assess/internal/platform/db"
)

// DefaultBatchSize bounds a commit when no batch size is configured.
const DefaultBatchSize = 10

// CandidateSource lists the responses the run should heal: COMPLETED with
// a NULL total_score. The list is a snapshot taken at run start.
type CandidateSource interface {
	ListBackfillCandidates(ctx context.Context) ([]uuid.UUID, error)
}

// Scorer computes the score pair for one response without persisting it.
type Scorer interface {
	ComputeScores(ctx context.Context, responseID uuid.UUID) (*scoring.Result, error)
}

// ScoreWriter stamps a computed score pair onto a response.
type ScoreWriter interface {
	UpdateScores(ctx context.Context, responseID uuid.UUID, total, max int) error
}

type ItemFailure struct {
	ID     uuid.UUID `json:"id"`
	Reason string    `json:"reason"`
}

// RunSummary is the authoritative record of one backfill run.
type RunSummary struct {
	Total    int           `json:"total"`
	Updated  int           `json:"updated"`
	Failed   int           `json:"failed"`
	Failures []ItemFailure `json:"failures,omitempty"`
}

// Runner drives a score backfill over historical responses. Each full
// batch commits in its own transaction; one item's failure never aborts
// the rest, and a re-run after partial failure only sees the rows still
// missing scores.
type Runner struct {
	source CandidateSource
	scorer Scorer
	writer ScoreWriter
	tx     db.TxRunner
	logger zerolog.Logger
}

func NewRunner(source CandidateSource, scorer Scorer, writer ScoreWriter, tx db.TxRunner, logger zerolog.Logger) *Runner {
	return &Runner{source: source, scorer: scorer, writer: writer, tx: tx, logger: logger}
}

type stagedUpdate struct {
	id         uuid.UUID
	total, max int
}

// runContext holds one invocation's counters and staged work. Built
// fresh per run; nothing survives between runs.
type runContext struct {
	staged  []stagedUpdate
	summary RunSummary
}

// Run executes one backfill pass and reports what happened.
func (r *Runner) Run(ctx context.Context, batchSize int) (*RunSummary, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	candidates, err := r.source.ListBackfillCandidates(ctx)
	if err != nil {
		return nil, err
	}

	rc := &runContext{summary: RunSummary{Total: len(candidates)}}
	r.logger.Info().Int("candidates", rc.summary.Total).Int("batch_size", batchSize).
		Msg("backfill run started")

	for _, id := range candidates {
		result, err := r.scorer.ComputeScores(ctx, id)
		if err != nil {
			r.fail(rc, id, err)
			continue
		}
		rc.staged = append(rc.staged, stagedUpdate{id: id, total: result.TotalScore, max: result.MaxPossibleScore})
		if len(rc.staged) == batchSize {
			r.commit(ctx, rc)
		}
	}
	r.commit(ctx, rc)

	r.logger.Info().
		Int("total", rc.summary.Total).
		Int("updated", rc.summary.Updated).
		Int("failed", rc.summary.Failed).
		Msg("backfill run finished")
	return &rc.summary, nil
}

// commit writes the staged batch in one transaction. A failed commit
// marks every item in the batch failed and lets later batches proceed.
func (r *Runner) commit(ctx context.Context, rc *runContext) {
	if len(rc.staged) == 0 {
		return
	}
	batch := rc.staged
	rc.staged = nil

	err := r.tx.WithTx(ctx, func(ctx context.Context) error {
		for _, u := range batch {
			if err := r.writer.UpdateScores(ctx, u.id, u.total, u.max); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		for _, u := range batch {
			r.fail(rc, u.id, err)
		}
		return
	}
	rc.summary.Updated += len(batch)
}

func (r *Runner) fail(rc *runContext, id uuid.UUID, err error) {
	rc.summary.Failed++
	rc.summary.Failures = append(rc.summary.Failures, ItemFailure{ID: id, Reason: err.Error()})
	r.logger.Warn().Err(err).Str("response_id", id.String()).Msg("backfill_item_failed")
}
