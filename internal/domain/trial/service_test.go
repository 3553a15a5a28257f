package trial

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialscore/trialscore/internal/platform/apperr"
	"github.com/trialscore/trialscore/internal/platform/auth"
)

var (
	alice  = auth.Identity{UserID: 1, Username: "alice", Role: auth.RoleAgent, CenterCode: "C01"}
	bob    = auth.Identity{UserID: 2, Username: "bob", Role: auth.RoleAgent, CenterCode: "C01"}
	reader = auth.Identity{UserID: 3, Username: "rita", Role: auth.RoleCentralReader, CenterCode: "C01"}
	admin  = auth.Identity{UserID: 4, Username: "root", Role: auth.RoleSuperAdmin, CenterCode: "C01"}
)

func score(v float64) *float64 { return &v }

func validInput(testID string) SubmitTestInput {
	return SubmitTestInput{
		PatientMaskID: "PM-" + testID,
		Gender:        "Female",
		TrialID:       "ALTER_UC",
		CenterCode:    "C01",
		TestID:        testID,
		AgentScore:    score(5.0),
		AgentReview:   "mild inflammation",
	}
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	svc := NewService(repo)
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600)) }
	return svc, repo
}

func TestSubmitTest(t *testing.T) {
	svc, _ := newTestService()

	got, err := svc.SubmitTest(context.Background(), alice, validInput("T100"))
	require.NoError(t, err)

	assert.NotZero(t, got.ID)
	assert.Equal(t, alice.UserID, got.AgentID)
	assert.Equal(t, StatusPending, got.Status)
	assert.Nil(t, got.FinalScore)
	assert.Equal(t, 5.0, got.AgentScore)
	assert.Equal(t, time.UTC, got.SubmissionTime.Location())
	assert.Equal(t, 11, got.SubmissionTime.Hour())
}

func TestSubmitTest_RequiresAgent(t *testing.T) {
	svc, _ := newTestService()

	for _, id := range []auth.Identity{reader, admin} {
		_, err := svc.SubmitTest(context.Background(), id, validInput("T1"))
		assert.True(t, apperr.Is(err, apperr.KindForbidden), "role %s", id.Role)
	}
}

func TestSubmitTest_Duplicates(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.SubmitTest(ctx, alice, validInput("T100"))
	require.NoError(t, err)

	_, err = svc.SubmitTest(ctx, alice, validInput("T100"))
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	samePatient := validInput("T101")
	samePatient.PatientMaskID = "PM-T100"
	_, err = svc.SubmitTest(ctx, bob, samePatient)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestSubmitTest_Validation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(in *SubmitTestInput)
		wantKind apperr.Kind
	}{
		{"bad gender", func(in *SubmitTestInput) { in.Gender = "male" }, apperr.KindValidation},
		{"bad trial", func(in *SubmitTestInput) { in.TrialID = "ALTER_XX" }, apperr.KindValidation},
		{"missing test id", func(in *SubmitTestInput) { in.TestID = "  " }, apperr.KindValidation},
		{"long test id", func(in *SubmitTestInput) { in.TestID = strings.Repeat("t", 65) }, apperr.KindValidation},
		{"missing mask", func(in *SubmitTestInput) { in.PatientMaskID = "" }, apperr.KindValidation},
		{"missing center", func(in *SubmitTestInput) { in.CenterCode = "" }, apperr.KindValidation},
		{"missing score", func(in *SubmitTestInput) { in.AgentScore = nil }, apperr.KindValidation},
		{"negative score", func(in *SubmitTestInput) { in.AgentScore = score(-0.1) }, apperr.KindValidation},
		{"score above max", func(in *SubmitTestInput) { in.AgentScore = score(100.5) }, apperr.KindValidation},
		{"nan score", func(in *SubmitTestInput) { in.AgentScore = score(math.NaN()) }, apperr.KindValidation},
		{"unknown center", func(in *SubmitTestInput) { in.CenterCode = "ZZ" }, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService()
			in := validInput("T1")
			tt.mutate(&in)
			_, err := svc.SubmitTest(context.Background(), alice, in)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))
		})
	}
}

func TestSubmitTest_ScoreBoundsInclusive(t *testing.T) {
	svc, _ := newTestService()
	for i, v := range []float64{MinScore, MaxScore} {
		in := validInput("B" + string(rune('0'+i)))
		in.AgentScore = score(v)
		_, err := svc.SubmitTest(context.Background(), alice, in)
		assert.NoError(t, err, "score %v", v)
	}
}

func TestGetTest_AgentsSeeOnlyOwn(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	created, err := svc.SubmitTest(ctx, alice, validInput("T100"))
	require.NoError(t, err)

	_, err = svc.GetTest(ctx, alice, created.ID)
	assert.NoError(t, err)
	_, err = svc.GetTest(ctx, reader, created.ID)
	assert.NoError(t, err)
	_, err = svc.GetTest(ctx, admin, created.ID)
	assert.NoError(t, err)

	_, err = svc.GetTest(ctx, bob, created.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = svc.GetTest(ctx, alice, 999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestListTests(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	for _, tc := range []struct {
		who auth.Identity
		id  string
	}{{alice, "A1"}, {alice, "A2"}, {bob, "B1"}} {
		_, err := svc.SubmitTest(ctx, tc.who, validInput(tc.id))
		require.NoError(t, err)
	}
	require.NoError(t, repo.SetFinalScore(ctx, 1, 5.0))

	items, total, err := svc.ListTests(ctx, alice, Filter{AgentID: bob.UserID}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total, "agent filter is forced to the caller")
	for _, it := range items {
		assert.Equal(t, alice.UserID, it.AgentID)
	}

	_, total, err = svc.ListTests(ctx, reader, Filter{}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	_, total, err = svc.ListTests(ctx, admin, Filter{Status: StatusPending}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	_, _, err = svc.ListTests(ctx, admin, Filter{Status: "done"}, 10, 0)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
