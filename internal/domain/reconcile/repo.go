package reconcile

import (
	"context"

	"github.com/trialscore/trialscore/internal/domain/trial"
)

// Repository persists scores and validation records. Mutating calls are
// made inside the transaction that holds the test's row lock.
type Repository interface {
	CreateScore(ctx context.Context, s *Score) error
	ListScores(ctx context.Context, testID int64) ([]*Score, error)
	ConfirmScores(ctx context.Context, testID int64) error
	// FindValidation returns nil, nil when the test has no validation yet.
	FindValidation(ctx context.Context, testID int64) (*Validation, error)
	CreateValidation(ctx context.Context, v *Validation) error
	UpdateValidation(ctx context.Context, v *Validation) error
	// PendingForReader lists pending tests readerID has not scored and that
	// still accept a reader score.
	PendingForReader(ctx context.Context, readerID int64, limit, offset int) ([]*trial.Test, int, error)
}
