package trial

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trialscore/trialscore/internal/platform/apperr"
	"github.com/trialscore/trialscore/internal/platform/db"
)

const (
	DetailTestNotFound     = "Test not found"
	DetailDuplicateTest    = "Test with this test_id or patient_mask_id already exists"
	DetailAlreadyFinalized = "Test already finalized"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

// Columns lists the tests columns in the order ScanTest expects. Other
// packages querying tests select these.
const Columns = `id, patient_mask_id, gender, trial_id, center_code, agent_id,
	submission_time, test_id, agent_score, final_score, status, COALESCE(agent_review, '')`

// ScanTest reads one row selected with Columns.
func ScanTest(row pgx.Row) (*Test, error) {
	var t Test
	var gender, trialID, status string
	err := row.Scan(&t.ID, &t.PatientMaskID, &gender, &trialID, &t.CenterCode, &t.AgentID,
		&t.SubmissionTime, &t.TestID, &t.AgentScore, &t.FinalScore, &status, &t.AgentReview)
	if err != nil {
		return nil, err
	}
	t.Gender = Gender(gender)
	t.TrialID = TrialID(trialID)
	t.Status = Status(status)
	return &t, nil
}

func (r *repoPG) Create(ctx context.Context, t *Test) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO tests (patient_mask_id, gender, trial_id, center_code, agent_id,
			submission_time, test_id, agent_score, status, agent_review)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''))
		RETURNING id`,
		t.PatientMaskID, string(t.Gender), string(t.TrialID), t.CenterCode, t.AgentID,
		t.SubmissionTime, t.TestID, t.AgentScore, string(t.Status), t.AgentReview,
	).Scan(&t.ID)
	return apperr.FromDB(err, DetailTestNotFound, DetailDuplicateTest)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Test, error) {
	t, err := ScanTest(r.conn(ctx).QueryRow(ctx, `SELECT `+Columns+` FROM tests WHERE id = $1`, id))
	return t, apperr.FromDB(err, DetailTestNotFound, DetailDuplicateTest)
}

func (r *repoPG) LockByID(ctx context.Context, id int64) (*Test, error) {
	t, err := ScanTest(r.conn(ctx).QueryRow(ctx, `SELECT `+Columns+` FROM tests WHERE id = $1 FOR UPDATE`, id))
	return t, apperr.FromDB(err, DetailTestNotFound, DetailDuplicateTest)
}

func (r *repoPG) LockByTestID(ctx context.Context, testID string) (*Test, error) {
	t, err := ScanTest(r.conn(ctx).QueryRow(ctx, `SELECT `+Columns+` FROM tests WHERE test_id = $1 FOR UPDATE`, testID))
	return t, apperr.FromDB(err, DetailTestNotFound, DetailDuplicateTest)
}

func (r *repoPG) SetFinalScore(ctx context.Context, id int64, score float64) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE tests SET final_score = $2, status = 'finalized'
		WHERE id = $1 AND status = 'pending'`, id, score)
	if err != nil {
		return apperr.FromDB(err, DetailTestNotFound, DetailDuplicateTest)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return apperr.Conflict(DetailAlreadyFinalized)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Test, int, error) {
	var where []string
	var args []interface{}
	idx := 1

	if f.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, string(f.Status))
		idx++
	}
	if f.AgentID != 0 {
		where = append(where, fmt.Sprintf("agent_id = $%d", idx))
		args = append(args, f.AgentID)
		idx++
	}
	if f.CenterCode != "" {
		where = append(where, fmt.Sprintf("center_code = $%d", idx))
		args = append(args, f.CenterCode)
		idx++
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM tests`+clause, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Internal(err)
	}

	query := fmt.Sprintf(`SELECT %s FROM tests%s ORDER BY submission_time DESC, id DESC LIMIT $%d OFFSET $%d`,
		Columns, clause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	defer rows.Close()
	var items []*Test
	for rows.Next() {
		t, err := ScanTest(rows)
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
