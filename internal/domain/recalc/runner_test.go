package recalc

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/brightsteps/assess/internal/domain/scoring"
)

// backfillStore plays candidate source and score writer over one shared
// map, so a second run naturally sees only the rows the first one left
// unhealed.
type backfillStore struct {
	order    []uuid.UUID
	scored   map[uuid.UUID]bool
	writeErr map[uuid.UUID]error
}

func newBackfillStore(n int) *backfillStore {
	s := &backfillStore{
		scored:   make(map[uuid.UUID]bool),
		writeErr: make(map[uuid.UUID]error),
	}
	for i := 0; i < n; i++ {
		s.order = append(s.order, uuid.New())
	}
	return s
}

func (s *backfillStore) ListBackfillCandidates(_ context.Context) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, id := range s.order {
		if !s.scored[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *backfillStore) UpdateScores(_ context.Context, id uuid.UUID, _, _ int) error {
	if err := s.writeErr[id]; err != nil {
		return err
	}
	s.scored[id] = true
	return nil
}

type mockScorer struct {
	errs map[uuid.UUID]error
}

func (m *mockScorer) ComputeScores(_ context.Context, id uuid.UUID) (*scoring.Result, error) {
	if err := m.errs[id]; err != nil {
		return nil, err
	}
	return &scoring.Result{TotalScore: 15, MaxPossibleScore: 32}, nil
}

type countingTx struct {
	commits int
}

func (t *countingTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err == nil {
		t.commits++
	}
	return err
}

func newRunner(store *backfillStore, scorer *mockScorer, tx *countingTx) *Runner {
	return NewRunner(store, scorer, store, tx, zerolog.Nop())
}

func TestRun_AllSucceed(t *testing.T) {
	store := newBackfillStore(25)
	tx := &countingTx{}
	runner := newRunner(store, &mockScorer{}, tx)

	summary, err := runner.Run(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Total != 25 || summary.Updated != 25 || summary.Failed != 0 {
		t.Errorf("expected 25/25/0, got %d/%d/%d", summary.Total, summary.Updated, summary.Failed)
	}
	// 10 + 10 + 5
	if tx.commits != 3 {
		t.Errorf("expected 3 batch commits, got %d", tx.commits)
	}
}

func TestRun_IsolatesItemFailure(t *testing.T) {
	store := newBackfillStore(25)
	bad := store.order[7]
	scorer := &mockScorer{errs: map[uuid.UUID]error{
		bad: &scoring.MissingQuestionError{QuestionID: uuid.New()},
	}}
	runner := newRunner(store, scorer, &countingTx{})

	summary, err := runner.Run(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Total != 25 || summary.Updated != 24 || summary.Failed != 1 {
		t.Errorf("expected 25/24/1, got %d/%d/%d", summary.Total, summary.Updated, summary.Failed)
	}
	if len(summary.Failures) != 1 {
		t.Fatalf("expected 1 recorded failure, got %d", len(summary.Failures))
	}
	f := summary.Failures[0]
	if f.ID != bad {
		t.Errorf("expected failure for %s, got %s", bad, f.ID)
	}
	if !strings.Contains(f.Reason, "missing question") {
		t.Errorf("expected missing question reason, got %q", f.Reason)
	}
}

func TestRun_RerunRetriesOnlyFailures(t *testing.T) {
	store := newBackfillStore(25)
	bad := store.order[3]
	scorer := &mockScorer{errs: map[uuid.UUID]error{
		bad: &scoring.MissingQuestionError{QuestionID: uuid.New()},
	}}
	runner := newRunner(store, scorer, &countingTx{})

	if _, err := runner.Run(context.Background(), 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The defect is repaired between runs.
	delete(scorer.errs, bad)

	summary, err := runner.Run(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Total != 1 || summary.Updated != 1 {
		t.Errorf("expected re-run over the 1 failed row, got total=%d updated=%d", summary.Total, summary.Updated)
	}
}

func TestRun_FailedBatchDoesNotBlockLater(t *testing.T) {
	store := newBackfillStore(25)
	store.writeErr[store.order[2]] = errors.New("connection reset")
	tx := &countingTx{}
	runner := newRunner(store, &mockScorer{}, tx)

	summary, err := runner.Run(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The first batch of 10 fails as a unit; the remaining 15 commit.
	if summary.Updated != 15 || summary.Failed != 10 {
		t.Errorf("expected 15 updated / 10 failed, got %d/%d", summary.Updated, summary.Failed)
	}
	if tx.commits != 2 {
		t.Errorf("expected 2 successful commits, got %d", tx.commits)
	}
}

func TestRun_EmptyCandidateSet(t *testing.T) {
	store := newBackfillStore(0)
	tx := &countingTx{}
	runner := newRunner(store, &mockScorer{}, tx)

	summary, err := runner.Run(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Total != 0 || tx.commits != 0 {
		t.Errorf("expected nothing to do, got total=%d commits=%d", summary.Total, tx.commits)
	}
}

func TestRun_DefaultsBatchSize(t *testing.T) {
	store := newBackfillStore(12)
	tx := &countingTx{}
	runner := newRunner(store, &mockScorer{}, tx)

	summary, err := runner.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Updated != 12 {
		t.Errorf("expected 12 updated, got %d", summary.Updated)
	}
	// 10 + 2 under the default batch size.
	if tx.commits != 2 {
		t.Errorf("expected 2 commits, got %d", tx.commits)
	}
}
