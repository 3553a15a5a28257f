package reconcile

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/trialscore/trialscore/internal/domain/trial"
	"github.com/trialscore/trialscore/internal/platform/apperr"
	"github.com/trialscore/trialscore/internal/platform/auth"
	"github.com/trialscore/trialscore/internal/platform/db"
)

const (
	DetailAwaitingArbitration = "Test is awaiting arbitration"
	DetailOwnTest             = "Readers cannot score a test they submitted"
)

// Engine reconciles reader scores into a final score. Every mutation for a
// test runs in one transaction that first locks the test row, so concurrent
// submissions for the same test are applied one after the other.
type Engine struct {
	tx     db.Transactor
	tests  trial.Repository
	repo   Repository
	policy Policy
	logger zerolog.Logger
}

func NewEngine(tx db.Transactor, tests trial.Repository, repo Repository, policy Policy, logger zerolog.Logger) *Engine {
	return &Engine{tx: tx, tests: tests, repo: repo, policy: policy, logger: logger}
}

// Policy returns the active reconciliation policy.
func (e *Engine) Policy() Policy { return e.policy }

// SubmitScore records a reader's score and advances the test's state.
func (e *Engine) SubmitScore(ctx context.Context, id auth.Identity, in SubmitScoreInput) (*Outcome, error) {
	if err := auth.CheckRole(id, auth.RoleCentralReader); err != nil {
		return nil, err
	}
	if in.TestID == "" {
		return nil, apperr.Validation("test_id is required")
	}
	if in.Score == nil {
		return nil, apperr.Validation("score is required")
	}
	if !trial.ValidScore(*in.Score) {
		return nil, apperr.Validation("score must be between %g and %g", trial.MinScore, trial.MaxScore)
	}
	score := *in.Score

	var out *Outcome
	err := e.tx.WithTx(ctx, func(ctx context.Context) error {
		t, err := e.tests.LockByTestID(ctx, in.TestID)
		if err != nil {
			return err
		}
		if t.AgentID == id.UserID {
			return apperr.Forbidden(DetailOwnTest)
		}
		if t.IsFinalized() {
			return apperr.Conflict(trial.DetailAlreadyFinalized)
		}

		v, err := e.repo.FindValidation(ctx, t.ID)
		if err != nil {
			return err
		}
		state := DeriveState(t, v)
		if state == StateAwaitingArbitration {
			return apperr.Conflict(DetailAwaitingArbitration)
		}
		if v != nil && v.Reader1ID == id.UserID {
			return apperr.Conflict(DetailScoreExists)
		}

		s := &Score{
			TestID:       t.ID,
			ReaderID:     id.UserID,
			Score:        score,
			ReaderReview: in.ReaderReview,
			Status:       ScorePending,
		}
		if err := e.repo.CreateScore(ctx, s); err != nil {
			return err
		}

		switch state {
		case StateAwaitingFirstReader:
			v, err = e.firstReader(ctx, t, s)
		case StateAwaitingSecondReader:
			err = e.secondReader(ctx, t, v, s)
		}
		if err != nil {
			return err
		}

		out = &Outcome{
			ID:         t.ID,
			TestID:     t.TestID,
			State:      DeriveState(t, v),
			FinalScore: t.FinalScore,
			Validation: v,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("test_id", out.TestID).
		Int64("reader_id", id.UserID).
		Str("state", string(out.State)).
		Msg("reader score recorded")
	return out, nil
}

// firstReader applies the agreement check against the agent score.
func (e *Engine) firstReader(ctx context.Context, t *trial.Test, s *Score) (*Validation, error) {
	v := &Validation{
		TestID:       t.ID,
		AgentScore:   t.AgentScore,
		Reader1ID:    s.ReaderID,
		Reader1Score: s.Score,
		Status:       trial.StatusPending,
	}
	if !e.policy.Agrees(t.AgentScore, s.Score) {
		return v, e.repo.CreateValidation(ctx, v)
	}

	final := e.policy.AgreedScore(t.AgentScore, s.Score)
	v.FinalScore = &final
	v.Status = trial.StatusFinalized
	if err := e.repo.CreateValidation(ctx, v); err != nil {
		return nil, err
	}
	return v, e.finalize(ctx, t, final, true)
}

// secondReader records reader2 and resolves the disagreement by policy.
func (e *Engine) secondReader(ctx context.Context, t *trial.Test, v *Validation, s *Score) error {
	readerID, score := s.ReaderID, s.Score
	v.Reader2ID = &readerID
	v.Reader2Score = &score

	final, ok := e.policy.ResolveDisagreement(v.AgentScore, v.Reader1Score, score)
	if ok {
		v.FinalScore = &final
		v.Status = trial.StatusFinalized
	}
	if err := e.repo.UpdateValidation(ctx, v); err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return e.finalize(ctx, t, final, true)
}

// finalize sets the test's final score. confirm marks the reader scores as
// accepted by reconciliation.
func (e *Engine) finalize(ctx context.Context, t *trial.Test, final float64, confirm bool) error {
	if confirm {
		if err := e.repo.ConfirmScores(ctx, t.ID); err != nil {
			return err
		}
	}
	if err := e.tests.SetFinalScore(ctx, t.ID, final); err != nil {
		return err
	}
	t.FinalScore = &final
	t.Status = trial.StatusFinalized
	return nil
}

// Finalize is the super_admin override. It applies from any non-final state
// and finalizes the validation record, if any, in the same transaction.
func (e *Engine) Finalize(ctx context.Context, id auth.Identity, testID int64, finalScore float64) (*Outcome, error) {
	if err := auth.CheckRole(id, auth.RoleSuperAdmin); err != nil {
		return nil, err
	}
	if !trial.ValidScore(finalScore) {
		return nil, apperr.Validation("final_score must be between %g and %g", trial.MinScore, trial.MaxScore)
	}

	var out *Outcome
	err := e.tx.WithTx(ctx, func(ctx context.Context) error {
		t, err := e.tests.LockByID(ctx, testID)
		if err != nil {
			return err
		}
		if t.IsFinalized() {
			return apperr.Conflict(trial.DetailAlreadyFinalized)
		}

		v, err := e.repo.FindValidation(ctx, t.ID)
		if err != nil {
			return err
		}
		if v != nil {
			v.FinalScore = &finalScore
			v.Status = trial.StatusFinalized
			if err := e.repo.UpdateValidation(ctx, v); err != nil {
				return err
			}
		}
		if err := e.finalize(ctx, t, finalScore, false); err != nil {
			return err
		}

		out = &Outcome{
			ID:         t.ID,
			TestID:     t.TestID,
			State:      StateFinalized,
			FinalScore: t.FinalScore,
			Validation: v,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("test_id", out.TestID).
		Int64("admin_id", id.UserID).
		Float64("final_score", finalScore).
		Msg("test finalized by override")
	return out, nil
}

// Detail returns a test with its scores and validation record. While a test
// is pending, callers other than super_admin only see their own scores so
// readers stay independent.
func (e *Engine) Detail(ctx context.Context, id auth.Identity, testID int64) (*Detail, error) {
	t, err := e.tests.GetByID(ctx, testID)
	if err != nil {
		return nil, err
	}
	if err := trial.CanRead(id, t); err != nil {
		return nil, err
	}

	scores, err := e.repo.ListScores(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	v, err := e.repo.FindValidation(ctx, t.ID)
	if err != nil {
		return nil, err
	}

	d := &Detail{Test: t, State: DeriveState(t, v), Scores: scores, Validation: v}
	if id.Role != auth.RoleSuperAdmin && !t.IsFinalized() {
		own := make([]*Score, 0, 1)
		for _, s := range scores {
			if s.ReaderID == id.UserID {
				own = append(own, s)
			}
		}
		d.Scores = own
		d.Validation = nil
	}
	if d.Scores == nil {
		d.Scores = []*Score{}
	}
	return d, nil
}

// PendingForReader lists tests the calling reader can still score.
func (e *Engine) PendingForReader(ctx context.Context, id auth.Identity, limit, offset int) ([]*trial.Test, int, error) {
	if err := auth.CheckRole(id, auth.RoleCentralReader); err != nil {
		return nil, 0, err
	}
	return e.repo.PendingForReader(ctx, id.UserID, limit, offset)
}
