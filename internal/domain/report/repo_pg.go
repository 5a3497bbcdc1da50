package report

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightsteps/assess/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

func mapUniqueViolation(err error, key string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return &ConflictError{Key: key}
	}
	return err
}

// =========== Pool Summary Repository ===========

type poolSummaryRepoPG struct{ pool *pgxpool.Pool }

func NewPoolSummaryRepoPG(pool *pgxpool.Pool) PoolSummaryRepository {
	return &poolSummaryRepoPG{pool: pool}
}

const poolSummaryCols = `id, child_id, pool_id, pool_title, summary_content,
	total_sections, completed_sections, total_score, max_possible_score,
	generated_at, created_at, updated_at`

func scanPoolSummary(row pgx.Row) (*PoolSummary, error) {
	var s PoolSummary
	err := row.Scan(&s.ID, &s.ChildID, &s.PoolID, &s.PoolTitle, &s.SummaryContent,
		&s.TotalSections, &s.CompletedSections, &s.TotalScore, &s.MaxPossibleScore,
		&s.GeneratedAt, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &s, err
}

func (r *poolSummaryRepoPG) Upsert(ctx context.Context, s *PoolSummary) error {
	row := connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO pool_summaries (id, child_id, pool_id, pool_title, summary_content,
			total_sections, completed_sections, total_score, max_possible_score, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (child_id, pool_id) DO UPDATE SET
			pool_title = EXCLUDED.pool_title,
			summary_content = EXCLUDED.summary_content,
			total_sections = EXCLUDED.total_sections,
			completed_sections = EXCLUDED.completed_sections,
			total_score = EXCLUDED.total_score,
			max_possible_score = EXCLUDED.max_possible_score,
			generated_at = EXCLUDED.generated_at,
			updated_at = NOW()
		RETURNING `+poolSummaryCols,
		uuid.New(), s.ChildID, s.PoolID, s.PoolTitle, s.SummaryContent,
		s.TotalSections, s.CompletedSections, s.TotalScore, s.MaxPossibleScore,
		s.GeneratedAt)
	saved, err := scanPoolSummary(row)
	if err != nil {
		return mapUniqueViolation(err, "pool_summary "+s.ChildID.String()+"/"+s.PoolID.String())
	}
	*s = *saved
	return nil
}

func (r *poolSummaryRepoPG) GetByChildPool(ctx context.Context, childID, poolID uuid.UUID) (*PoolSummary, error) {
	return scanPoolSummary(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+poolSummaryCols+` FROM pool_summaries WHERE child_id = $1 AND pool_id = $2`,
		childID, poolID))
}

func (r *poolSummaryRepoPG) ListByChild(ctx context.Context, childID uuid.UUID) ([]*PoolSummary, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT `+poolSummaryCols+` FROM pool_summaries WHERE child_id = $1 ORDER BY pool_title`,
		childID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*PoolSummary
	for rows.Next() {
		s, err := scanPoolSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *poolSummaryRepoPG) ListByChildPage(ctx context.Context, childID uuid.UUID, limit, offset int) ([]*PoolSummary, int, error) {
	var total int
	err := connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM pool_summaries WHERE child_id = $1`, childID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT `+poolSummaryCols+` FROM pool_summaries
		WHERE child_id = $1 ORDER BY pool_title LIMIT $2 OFFSET $3`,
		childID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*PoolSummary
	for rows.Next() {
		s, err := scanPoolSummary(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// =========== Final Report Repository ===========

type finalReportRepoPG struct{ pool *pgxpool.Pool }

func NewFinalReportRepoPG(pool *pgxpool.Pool) FinalReportRepository {
	return &finalReportRepoPG{pool: pool}
}

const finalReportCols = `id, child_id, overall_summary, total_pools, completed_pools,
	overall_score, overall_max_score, doctor_reviewed_at, hod_reviewed_at,
	generated_at, created_at, updated_at`

func scanFinalReport(row pgx.Row) (*FinalReport, error) {
	var fr FinalReport
	err := row.Scan(&fr.ID, &fr.ChildID, &fr.OverallSummary, &fr.TotalPools,
		&fr.CompletedPools, &fr.OverallScore, &fr.OverallMaxScore,
		&fr.DoctorReviewedAt, &fr.HODReviewedAt, &fr.GeneratedAt,
		&fr.CreatedAt, &fr.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &fr, err
}

// Upsert deliberately leaves doctor_reviewed_at and hod_reviewed_at out of
// the DO UPDATE set: regeneration never resets review state.
func (r *finalReportRepoPG) Upsert(ctx context.Context, fr *FinalReport) error {
	row := connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO final_reports (id, child_id, overall_summary, total_pools,
			completed_pools, overall_score, overall_max_score, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (child_id) DO UPDATE SET
			overall_summary = EXCLUDED.overall_summary,
			total_pools = EXCLUDED.total_pools,
			completed_pools = EXCLUDED.completed_pools,
			overall_score = EXCLUDED.overall_score,
			overall_max_score = EXCLUDED.overall_max_score,
			generated_at = EXCLUDED.generated_at,
			updated_at = NOW()
		RETURNING `+finalReportCols,
		uuid.New(), fr.ChildID, fr.OverallSummary, fr.TotalPools,
		fr.CompletedPools, fr.OverallScore, fr.OverallMaxScore, fr.GeneratedAt)
	saved, err := scanFinalReport(row)
	if err != nil {
		return mapUniqueViolation(err, "final_report "+fr.ChildID.String())
	}
	*fr = *saved
	return nil
}

func (r *finalReportRepoPG) GetByChild(ctx context.Context, childID uuid.UUID) (*FinalReport, error) {
	return scanFinalReport(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+finalReportCols+` FROM final_reports WHERE child_id = $1`, childID))
}

func (r *finalReportRepoPG) SetDoctorReviewed(ctx context.Context, childID uuid.UUID, at time.Time) error {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `
		UPDATE final_reports SET doctor_reviewed_at = $2, updated_at = NOW()
		WHERE child_id = $1 AND doctor_reviewed_at IS NULL`,
		childID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either the report is missing or the stamp is already set; the
		// service distinguishes the two before calling.
		if _, err := r.GetByChild(ctx, childID); err != nil {
			return err
		}
	}
	return nil
}

func (r *finalReportRepoPG) SetHODReviewed(ctx context.Context, childID uuid.UUID, at time.Time) error {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `
		UPDATE final_reports SET hod_reviewed_at = $2, updated_at = NOW()
		WHERE child_id = $1 AND hod_reviewed_at IS NULL`,
		childID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByChild(ctx, childID); err != nil {
			return err
		}
	}
	return nil
}

// =========== Advisory Locker ===========

type pgLocker struct{ pool *pgxpool.Pool }

// NewPGLocker serializes aggregate writers with transaction-scoped
// advisory locks. Each lock is released when the surrounding transaction
// commits or rolls back.
func NewPGLocker(pool *pgxpool.Pool) Locker {
	return &pgLocker{pool: pool}
}

func (l *pgLocker) LockChildPool(ctx context.Context, childID, poolID uuid.UUID) error {
	return db.AcquireTxLock(ctx, connFor(ctx, l.pool), db.LockKey("pool", childID, poolID))
}

func (l *pgLocker) LockChild(ctx context.Context, childID uuid.UUID) error {
	return db.AcquireTxLock(ctx, connFor(ctx, l.pool), db.LockKey("report", childID))
}
