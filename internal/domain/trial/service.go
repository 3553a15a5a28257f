package trial

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/trialscore/trialscore/internal/platform/apperr"
	"github.com/trialscore/trialscore/internal/platform/auth"
)

const maxIdentifierLen = 64

// Service is the test submission ledger.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// ValidScore reports whether s is a finite score within [MinScore, MaxScore].
func ValidScore(s float64) bool {
	return !math.IsNaN(s) && !math.IsInf(s, 0) && s >= MinScore && s <= MaxScore
}

// SubmitTest records a new pending test owned by the calling agent. The agent
// score is stored as given.
func (s *Service) SubmitTest(ctx context.Context, id auth.Identity, in SubmitTestInput) (*Test, error) {
	if err := auth.CheckRole(id, auth.RoleAgent); err != nil {
		return nil, err
	}

	t := &Test{
		PatientMaskID:  strings.TrimSpace(in.PatientMaskID),
		Gender:         Gender(in.Gender),
		TrialID:        TrialID(in.TrialID),
		CenterCode:     strings.TrimSpace(in.CenterCode),
		AgentID:        id.UserID,
		SubmissionTime: s.now().UTC(),
		TestID:         strings.TrimSpace(in.TestID),
		Status:         StatusPending,
		AgentReview:    in.AgentReview,
	}
	if in.AgentScore != nil {
		t.AgentScore = *in.AgentScore
	}
	if err := validate(t, in.AgentScore != nil); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func validate(t *Test, hasScore bool) error {
	if t.PatientMaskID == "" {
		return apperr.Validation("patient_mask_id is required")
	}
	if len(t.PatientMaskID) > maxIdentifierLen {
		return apperr.Validation("patient_mask_id must be at most %d characters", maxIdentifierLen)
	}
	if t.TestID == "" {
		return apperr.Validation("test_id is required")
	}
	if len(t.TestID) > maxIdentifierLen {
		return apperr.Validation("test_id must be at most %d characters", maxIdentifierLen)
	}
	if t.CenterCode == "" {
		return apperr.Validation("center_code is required")
	}
	if !t.Gender.Valid() {
		return apperr.Validation("gender must be one of Male, Female, Other")
	}
	if !t.TrialID.Valid() {
		return apperr.Validation("trial_id must be one of ALTER_UC, ALTER_CD, BOOST_UC, BOOST_CD")
	}
	if !hasScore {
		return apperr.Validation("agent_score is required")
	}
	if !ValidScore(t.AgentScore) {
		return apperr.Validation("agent_score must be between %g and %g", MinScore, MaxScore)
	}
	return nil
}

// CanRead reports whether id may see t. Agents only see their own tests.
func CanRead(id auth.Identity, t *Test) error {
	switch id.Role {
	case auth.RoleCentralReader, auth.RoleSuperAdmin:
		return nil
	case auth.RoleAgent:
		if t.AgentID == id.UserID {
			return nil
		}
	}
	return apperr.Forbidden(auth.NotAuthorizedDetail)
}

func (s *Service) GetTest(ctx context.Context, id auth.Identity, testID int64) (*Test, error) {
	t, err := s.repo.GetByID(ctx, testID)
	if err != nil {
		return nil, err
	}
	if err := CanRead(id, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ListTests returns a page of tests. Agents are restricted to their own.
func (s *Service) ListTests(ctx context.Context, id auth.Identity, f Filter, limit, offset int) ([]*Test, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, apperr.Validation("status must be pending or finalized")
	}
	switch id.Role {
	case auth.RoleAgent:
		f.AgentID = id.UserID
	case auth.RoleCentralReader, auth.RoleSuperAdmin:
	default:
		return nil, 0, apperr.Forbidden(auth.NotAuthorizedDetail)
	}
	return s.repo.List(ctx, f, limit, offset)
}
