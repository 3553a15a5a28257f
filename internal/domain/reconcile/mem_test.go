package reconcile

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/trialscore/trialscore/internal/domain/trial"
	"github.com/trialscore/trialscore/internal/platform/apperr"
)

var errInjected = errors.New("injected failure")

// memStore backs both trial.Repository and Repository. WithTx holds txMu for
// the whole function, which stands in for the row lock, and restores a
// snapshot when the function fails.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	tests       map[int64]trial.Test
	scores      []Score
	validations map[int64]Validation
	nextTestID  int64
	nextScoreID int64
	nextValID   int64

	failConfirm bool
}

func newMemStore() *memStore {
	return &memStore{tests: make(map[int64]trial.Test), validations: make(map[int64]Validation)}
}

type memSnapshot struct {
	tests       map[int64]trial.Test
	scores      []Score
	validations map[int64]Validation
}

func (m *memStore) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := memSnapshot{
		tests:       make(map[int64]trial.Test, len(m.tests)),
		scores:      append([]Score(nil), m.scores...),
		validations: make(map[int64]Validation, len(m.validations)),
	}
	for k, v := range m.tests {
		s.tests[k] = v
	}
	for k, v := range m.validations {
		s.validations[k] = v
	}
	return s
}

func (m *memStore) restore(s memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tests, m.scores, m.validations = s.tests, s.scores, s.validations
}

func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	snap := m.snapshot()
	if err := fn(ctx); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memStore) addTest(testID string, agentID int64, agentScore float64) *trial.Test {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTestID++
	t := trial.Test{
		ID:            m.nextTestID,
		PatientMaskID: "PM-" + testID,
		Gender:        trial.GenderFemale,
		TrialID:       trial.TrialAlterUC,
		CenterCode:    "C01",
		AgentID:       agentID,
		TestID:        testID,
		AgentScore:    agentScore,
		Status:        trial.StatusPending,
	}
	m.tests[t.ID] = t
	return &t
}

// ── trial.Repository ──

func (m *memStore) Create(_ context.Context, t *trial.Test) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTestID++
	t.ID = m.nextTestID
	m.tests[t.ID] = *t
	return nil
}

func (m *memStore) GetByID(_ context.Context, id int64) (*trial.Test, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tests[id]; ok {
		return &t, nil
	}
	return nil, apperr.NotFound(trial.DetailTestNotFound)
}

func (m *memStore) findByTestID(_ context.Context, testID string) (*trial.Test, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tests {
		if t.TestID == testID {
			t := t
			return &t, nil
		}
	}
	return nil, apperr.NotFound(trial.DetailTestNotFound)
}

func (m *memStore) LockByID(ctx context.Context, id int64) (*trial.Test, error) {
	return m.GetByID(ctx, id)
}

func (m *memStore) LockByTestID(ctx context.Context, testID string) (*trial.Test, error) {
	return m.findByTestID(ctx, testID)
}

func (m *memStore) SetFinalScore(_ context.Context, id int64, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tests[id]
	if !ok {
		return apperr.NotFound(trial.DetailTestNotFound)
	}
	if t.IsFinalized() {
		return apperr.Conflict(trial.DetailAlreadyFinalized)
	}
	t.FinalScore = &score
	t.Status = trial.StatusFinalized
	m.tests[id] = t
	return nil
}

func (m *memStore) List(_ context.Context, f trial.Filter, limit, offset int) ([]*trial.Test, int, error) {
	return nil, 0, errors.New("not used")
}

// ── Repository ──

func (m *memStore) CreateScore(_ context.Context, s *Score) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.scores {
		if existing.TestID == s.TestID && existing.ReaderID == s.ReaderID {
			return apperr.Conflict(DetailScoreExists)
		}
	}
	m.nextScoreID++
	s.ID = m.nextScoreID
	m.scores = append(m.scores, *s)
	return nil
}

func (m *memStore) ListScores(_ context.Context, testID int64) ([]*Score, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Score
	for _, s := range m.scores {
		if s.TestID == testID {
			s := s
			out = append(out, &s)
		}
	}
	return out, nil
}

func (m *memStore) ConfirmScores(_ context.Context, testID int64) error {
	if m.failConfirm {
		return errInjected
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.scores {
		if m.scores[i].TestID == testID {
			m.scores[i].Status = ScoreConfirmed
		}
	}
	return nil
}

func (m *memStore) FindValidation(_ context.Context, testID int64) (*Validation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.validations[testID]; ok {
		return &v, nil
	}
	return nil, nil
}

func (m *memStore) CreateValidation(_ context.Context, v *Validation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.validations[v.TestID]; ok {
		return apperr.Conflict(DetailValidationExists)
	}
	m.nextValID++
	v.ID = m.nextValID
	m.validations[v.TestID] = *v
	return nil
}

func (m *memStore) UpdateValidation(_ context.Context, v *Validation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.validations[v.TestID]; !ok {
		return apperr.NotFound(DetailValidationNotFound)
	}
	m.validations[v.TestID] = *v
	return nil
}

func (m *memStore) PendingForReader(_ context.Context, readerID int64, limit, offset int) ([]*trial.Test, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*trial.Test
	for _, t := range m.tests {
		if t.IsFinalized() || t.AgentID == readerID {
			continue
		}
		if v, ok := m.validations[t.ID]; ok && v.Reader2ID != nil {
			continue
		}
		scored := false
		for _, s := range m.scores {
			if s.TestID == t.ID && s.ReaderID == readerID {
				scored = true
				break
			}
		}
		if scored {
			continue
		}
		t := t
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}
