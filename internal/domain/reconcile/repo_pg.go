package reconcile

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trialscore/trialscore/internal/domain/trial"
	"github.com/trialscore/trialscore/internal/platform/apperr"
	"github.com/trialscore/trialscore/internal/platform/db"
)

const (
	DetailScoreExists        = "Score already submitted for this test"
	DetailValidationExists   = "Validation record already exists"
	DetailValidationNotFound = "Validation record not found"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

// =========== Scores ===========

func (r *repoPG) CreateScore(ctx context.Context, s *Score) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO scores (test_id, reader_id, score, reader_review, status)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		RETURNING id, created_at`,
		s.TestID, s.ReaderID, s.Score, s.ReaderReview, string(s.Status),
	).Scan(&s.ID, &s.CreatedAt)
	return apperr.FromDB(err, trial.DetailTestNotFound, DetailScoreExists)
}

func (r *repoPG) ListScores(ctx context.Context, testID int64) ([]*Score, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, test_id, reader_id, score, COALESCE(reader_review, ''), status, created_at
		FROM scores WHERE test_id = $1 ORDER BY id`, testID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	defer rows.Close()
	var items []*Score
	for rows.Next() {
		var s Score
		var status string
		if err := rows.Scan(&s.ID, &s.TestID, &s.ReaderID, &s.Score, &s.ReaderReview, &status, &s.CreatedAt); err != nil {
			return nil, apperr.Internal(err)
		}
		s.Status = ScoreStatus(status)
		items = append(items, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(err)
	}
	return items, nil
}

func (r *repoPG) ConfirmScores(ctx context.Context, testID int64) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE scores SET status = 'confirmed' WHERE test_id = $1 AND status = 'pending'`, testID)
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// =========== Validation ===========

const validationCols = `id, test_id, agent_score, reader1_id, reader1_score,
	reader2_id, reader2_score, final_score, status`

func (r *repoPG) FindValidation(ctx context.Context, testID int64) (*Validation, error) {
	var v Validation
	var status string
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+validationCols+` FROM score_validation WHERE test_id = $1`, testID,
	).Scan(&v.ID, &v.TestID, &v.AgentScore, &v.Reader1ID, &v.Reader1Score,
		&v.Reader2ID, &v.Reader2Score, &v.FinalScore, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	v.Status = trial.Status(status)
	return &v, nil
}

func (r *repoPG) CreateValidation(ctx context.Context, v *Validation) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO score_validation (test_id, agent_score, reader1_id, reader1_score,
			reader2_id, reader2_score, final_score, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		v.TestID, v.AgentScore, v.Reader1ID, v.Reader1Score,
		v.Reader2ID, v.Reader2Score, v.FinalScore, string(v.Status),
	).Scan(&v.ID)
	return apperr.FromDB(err, trial.DetailTestNotFound, DetailValidationExists)
}

func (r *repoPG) UpdateValidation(ctx context.Context, v *Validation) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE score_validation
		SET reader2_id = $2, reader2_score = $3, final_score = $4, status = $5
		WHERE id = $1`,
		v.ID, v.Reader2ID, v.Reader2Score, v.FinalScore, string(v.Status))
	if err != nil {
		return apperr.FromDB(err, DetailValidationNotFound, DetailValidationExists)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(DetailValidationNotFound)
	}
	return nil
}

// =========== Reader queue ===========

const pendingWhere = `
	WHERE status = 'pending' AND agent_id <> $1
	  AND NOT EXISTS (SELECT 1 FROM score_validation v WHERE v.test_id = tests.id AND v.reader2_id IS NOT NULL)
	  AND NOT EXISTS (SELECT 1 FROM scores s WHERE s.test_id = tests.id AND s.reader_id = $1)`

func (r *repoPG) PendingForReader(ctx context.Context, readerID int64, limit, offset int) ([]*trial.Test, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM tests`+pendingWhere, readerID).Scan(&total); err != nil {
		return nil, 0, apperr.Internal(err)
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+trial.Columns+` FROM tests`+pendingWhere+` ORDER BY submission_time, id LIMIT $2 OFFSET $3`,
		readerID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	defer rows.Close()
	var items []*trial.Test
	for rows.Next() {
		t, err := trial.ScanTest(rows)
		if err != nil {
			return nil, 0, apperr.Internal(err)
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Internal(err)
	}
	return items, total, nil
}
