package trial

import (
	"context"
)

// Repository persists tests. Lock methods must be called inside a
// transaction; they hold a row lock on the test until it ends.
type Repository interface {
	Create(ctx context.Context, t *Test) error
	GetByID(ctx context.Context, id int64) (*Test, error)
	LockByID(ctx context.Context, id int64) (*Test, error)
	LockByTestID(ctx context.Context, testID string) (*Test, error)
	// SetFinalScore sets final_score and status=finalized on a pending test.
	// It returns a Conflict error if the test is already finalized.
	SetFinalScore(ctx context.Context, id int64, score float64) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Test, int, error)
}
