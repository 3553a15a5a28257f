package reconcile

import (
	"time"

	"github.com/trialscore/trialscore/internal/domain/trial"
)

type ScoreStatus string

const (
	ScorePending   ScoreStatus = "pending"
	ScoreConfirmed ScoreStatus = "confirmed"
)

// Score is one reader's independent score for a test.
type Score struct {
	ID           int64       `json:"id"`
	TestID       int64       `json:"test_id"`
	ReaderID     int64       `json:"reader_id"`
	Score        float64     `json:"score"`
	ReaderReview string      `json:"reader_review,omitempty"`
	Status       ScoreStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Validation is the reconciliation record of a test. It exists once the
// first reader has scored. Reader2 is set only after a disagreement.
type Validation struct {
	ID           int64        `json:"id"`
	TestID       int64        `json:"test_id"`
	AgentScore   float64      `json:"agent_score"`
	Reader1ID    int64        `json:"reader1_id"`
	Reader1Score float64      `json:"reader1_score"`
	Reader2ID    *int64       `json:"reader2_id"`
	Reader2Score *float64     `json:"reader2_score"`
	FinalScore   *float64     `json:"final_score"`
	Status       trial.Status `json:"status"`
}

// State is the reconciliation state of a test, derived from the test and
// its validation record.
type State string

const (
	StateAwaitingFirstReader  State = "awaiting_first_reader"
	StateAwaitingSecondReader State = "awaiting_second_reader"
	StateAwaitingArbitration  State = "awaiting_arbitration"
	StateFinalized            State = "finalized"
)

// DeriveState computes the state. v may be nil.
func DeriveState(t *trial.Test, v *Validation) State {
	switch {
	case t.IsFinalized():
		return StateFinalized
	case v == nil:
		return StateAwaitingFirstReader
	case v.Reader2ID == nil:
		return StateAwaitingSecondReader
	default:
		return StateAwaitingArbitration
	}
}

// SubmitScoreInput is the body of POST /readers/submit-score. TestID is the
// external test identifier.
type SubmitScoreInput struct {
	TestID       string   `json:"test_id" validate:"required,max=64"`
	Score        *float64 `json:"score" validate:"required"`
	ReaderReview string   `json:"reader_review"`
}

// FinalizeInput is the body of POST /admin/finalize/:id.
type FinalizeInput struct {
	FinalScore *float64 `json:"final_score" validate:"required"`
}

// Outcome reports the state of a test after a reconciliation step.
type Outcome struct {
	ID         int64       `json:"id"`
	TestID     string      `json:"test_id"`
	State      State       `json:"state"`
	FinalScore *float64    `json:"final_score"`
	Validation *Validation `json:"validation,omitempty"`
}

// Detail is the full view of a test and its reconciliation.
type Detail struct {
	Test       *trial.Test `json:"test"`
	State      State       `json:"state"`
	Scores     []*Score    `json:"scores"`
	Validation *Validation `json:"validation"`
}
