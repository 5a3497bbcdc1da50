package assessment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightsteps/assess/internal/domain/scoring"
	"github.com/brightsteps/assess/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Response Repository ===========

type responseRepoPG struct{ pool *pgxpool.Pool }

func NewResponseRepoPG(pool *pgxpool.Pool) ResponseRepository {
	return &responseRepoPG{pool: pool}
}

func (r *responseRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const responseCols = `id, child_id, section_id, status, total_score, max_possible_score,
	completed_at, created_at, updated_at`

func scanResponse(row pgx.Row) (*Response, error) {
	var resp Response
	err := row.Scan(&resp.ID, &resp.ChildID, &resp.SectionID, &resp.Status,
		&resp.TotalScore, &resp.MaxPossibleScore, &resp.CompletedAt,
		&resp.CreatedAt, &resp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &resp, err
}

func (r *responseRepoPG) Create(ctx context.Context, resp *Response) error {
	resp.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO responses (id, child_id, section_id, status)
		VALUES ($1, $2, $3, $4)`,
		resp.ID, resp.ChildID, resp.SectionID, resp.Status)
	return err
}

func (r *responseRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Response, error) {
	return scanResponse(r.conn(ctx).QueryRow(ctx,
		`SELECT `+responseCols+` FROM responses WHERE id = $1`, id))
}

func (r *responseRepoPG) GetByChildSection(ctx context.Context, childID, sectionID uuid.UUID) (*Response, error) {
	return scanResponse(r.conn(ctx).QueryRow(ctx,
		`SELECT `+responseCols+` FROM responses WHERE child_id = $1 AND section_id = $2`,
		childID, sectionID))
}

func (r *responseRepoPG) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE responses SET status = $2, completed_at = $3, updated_at = NOW()
		WHERE id = $1`,
		id, StatusCompleted, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *responseRepoPG) UpdateScores(ctx context.Context, id uuid.UUID, total, max int) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE responses SET total_score = $2, max_possible_score = $3, updated_at = NOW()
		WHERE id = $1`,
		id, total, max)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *responseRepoPG) ListBackfillCandidates(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id FROM responses
		WHERE status = $1 AND total_score IS NULL
		ORDER BY completed_at`,
		StatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// =========== Answer Repository ===========

type answerRepoPG struct{ pool *pgxpool.Pool }

func NewAnswerRepoPG(pool *pgxpool.Pool) AnswerRepository {
	return &answerRepoPG{pool: pool}
}

func (r *answerRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const answerCols = `id, response_id, question_id, raw_answer, translated_answer,
	answer_bucket, score, answered_at`

func scanAnswer(row pgx.Row) (*Answer, error) {
	var a Answer
	err := row.Scan(&a.ID, &a.ResponseID, &a.QuestionID, &a.RawAnswer,
		&a.TranslatedAnswer, &a.AnswerBucket, &a.Score, &a.AnsweredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &a, err
}

func (r *answerRepoPG) Upsert(ctx context.Context, a *Answer) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO answers (id, response_id, question_id, raw_answer, translated_answer,
			answer_bucket, score, answered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (response_id, question_id) DO UPDATE SET
			raw_answer = EXCLUDED.raw_answer,
			translated_answer = EXCLUDED.translated_answer,
			answer_bucket = EXCLUDED.answer_bucket,
			score = EXCLUDED.score,
			answered_at = EXCLUDED.answered_at`,
		a.ID, a.ResponseID, a.QuestionID, a.RawAnswer, a.TranslatedAnswer,
		a.AnswerBucket, a.Score, a.AnsweredAt)
	return err
}

func (r *answerRepoPG) ListByResponse(ctx context.Context, responseID uuid.UUID) ([]*Answer, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+answerCols+` FROM answers WHERE response_id = $1 ORDER BY answered_at`,
		responseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Answer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// =========== Question Repository ===========

type questionRepoPG struct{ pool *pgxpool.Pool }

func NewQuestionRepoPG(pool *pgxpool.Pool) QuestionRepository {
	return &questionRepoPG{pool: pool}
}

func (r *questionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const questionCols = `id, section_id, text, is_scorable, scoring_logic,
	min_age_months, max_age_months, order_number, created_at, updated_at`

func scanQuestion(row pgx.Row) (*Question, error) {
	var q Question
	var rawLogic []byte
	err := row.Scan(&q.ID, &q.SectionID, &q.Text, &q.IsScorable, &rawLogic,
		&q.MinAgeMonths, &q.MaxAgeMonths, &q.OrderNumber, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(rawLogic) > 0 {
		logic, perr := scoring.ParseLogic(rawLogic)
		if perr != nil {
			return nil, fmt.Errorf("question %s: %w", q.ID, perr)
		}
		q.ScoringLogic = logic
	}
	return &q, nil
}

func (r *questionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Question, error) {
	return scanQuestion(r.conn(ctx).QueryRow(ctx,
		`SELECT `+questionCols+` FROM questions WHERE id = $1`, id))
}

func (r *questionRepoPG) ListBySection(ctx context.Context, sectionID uuid.UUID) ([]*Question, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+questionCols+` FROM questions WHERE section_id = $1 ORDER BY order_number`,
		sectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, q)
	}
	return items, rows.Err()
}

// =========== Section Repository ===========

type sectionRepoPG struct{ pool *pgxpool.Pool }

func NewSectionRepoPG(pool *pgxpool.Pool) SectionRepository {
	return &sectionRepoPG{pool: pool}
}

func (r *sectionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const sectionCols = `id, pool_id, title, is_active, order_number, created_at, updated_at`

func scanSection(row pgx.Row) (*Section, error) {
	var s Section
	err := row.Scan(&s.ID, &s.PoolID, &s.Title, &s.IsActive, &s.OrderNumber,
		&s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &s, err
}

func (r *sectionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Section, error) {
	return scanSection(r.conn(ctx).QueryRow(ctx,
		`SELECT `+sectionCols+` FROM sections WHERE id = $1`, id))
}

func (r *sectionRepoPG) ListByPool(ctx context.Context, poolID uuid.UUID) ([]*Section, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+sectionCols+` FROM sections WHERE pool_id = $1 AND is_active ORDER BY order_number`,
		poolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Section
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *sectionRepoPG) CountActiveByPool(ctx context.Context, poolID uuid.UUID) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM sections WHERE pool_id = $1 AND is_active`, poolID).Scan(&count)
	return count, err
}

// =========== Pool Repository ===========

type poolRepoPG struct{ pool *pgxpool.Pool }

func NewPoolRepoPG(pool *pgxpool.Pool) PoolRepository {
	return &poolRepoPG{pool: pool}
}

func (r *poolRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const poolCols = `id, title, description, is_active, order_number, created_at, updated_at`

func scanPool(row pgx.Row) (*Pool, error) {
	var p Pool
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.IsActive, &p.OrderNumber,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *poolRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Pool, error) {
	return scanPool(r.conn(ctx).QueryRow(ctx,
		`SELECT `+poolCols+` FROM pools WHERE id = $1`, id))
}

func (r *poolRepoPG) ListActive(ctx context.Context) ([]*Pool, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+poolCols+` FROM pools WHERE is_active ORDER BY order_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// =========== Child Repository ===========

type childRepoPG struct{ pool *pgxpool.Pool }

func NewChildRepoPG(pool *pgxpool.Pool) ChildRepository {
	return &childRepoPG{pool: pool}
}

func (r *childRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *childRepoPG) AgeMonths(ctx context.Context, childID uuid.UUID, at time.Time) (int, error) {
	var dob time.Time
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT date_of_birth FROM children WHERE id = $1`, childID).Scan(&dob)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return monthsBetween(dob, at), nil
}

// monthsBetween counts whole calendar months from dob to at.
func monthsBetween(dob, at time.Time) int {
	if at.Before(dob) {
		return 0
	}
	months := (at.Year()-dob.Year())*12 + int(at.Month()) - int(dob.Month())
	if at.Day() < dob.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
