package trial

import (
	"time"
)

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// TrialID is the code of the trial arm a test belongs to.
type TrialID string

const (
	TrialAlterUC TrialID = "ALTER_UC"
	TrialAlterCD TrialID = "ALTER_CD"
	TrialBoostUC TrialID = "BOOST_UC"
	TrialBoostCD TrialID = "BOOST_CD"
)

func (t TrialID) Valid() bool {
	switch t {
	case TrialAlterUC, TrialAlterCD, TrialBoostUC, TrialBoostCD:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusFinalized Status = "finalized"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusFinalized
}

// Score bounds accepted for agent and reader scores.
const (
	MinScore = 0.0
	MaxScore = 100.0
)

// Test is one agent submission. AgentScore never changes after creation;
// FinalScore and Status change once, together, when the test is finalized.
type Test struct {
	ID             int64     `json:"id"`
	PatientMaskID  string    `json:"patient_mask_id"`
	Gender         Gender    `json:"gender"`
	TrialID        TrialID   `json:"trial_id"`
	CenterCode     string    `json:"center_code"`
	AgentID        int64     `json:"agent_id"`
	SubmissionTime time.Time `json:"submission_time"`
	TestID         string    `json:"test_id"`
	AgentScore     float64   `json:"agent_score"`
	FinalScore     *float64  `json:"final_score"`
	Status         Status    `json:"status"`
	AgentReview    string    `json:"agent_review,omitempty"`
}

func (t *Test) IsFinalized() bool {
	return t.Status == StatusFinalized
}

// SubmitTestInput is the body of POST /agents/submit-test.
type SubmitTestInput struct {
	PatientMaskID string   `json:"patient_mask_id" validate:"required,max=64"`
	Gender        string   `json:"gender" validate:"required,oneof=Male Female Other"`
	TrialID       string   `json:"trial_id" validate:"required,oneof=ALTER_UC ALTER_CD BOOST_UC BOOST_CD"`
	CenterCode    string   `json:"center_code" validate:"required,max=32"`
	TestID        string   `json:"test_id" validate:"required,max=64"`
	AgentScore    *float64 `json:"agent_score" validate:"required"`
	AgentReview   string   `json:"agent_review"`
}

// Filter narrows ListTests. Zero values match everything.
type Filter struct {
	Status     Status
	AgentID    int64
	CenterCode string
}
