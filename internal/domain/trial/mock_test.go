package trial

import (
	"context"
	"sort"
	"sync"

	"github.com/trialscore/trialscore/internal/platform/apperr"
)

type mockRepo struct {
	mu      sync.Mutex
	data    map[int64]*Test
	centers map[string]bool
	nextID  int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{data: make(map[int64]*Test), centers: map[string]bool{"C01": true, "C02": true}}
}

func (m *mockRepo) Create(_ context.Context, t *Test) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.centers[t.CenterCode] {
		return apperr.NotFound("Center not found")
	}
	for _, existing := range m.data {
		if existing.TestID == t.TestID || existing.PatientMaskID == t.PatientMaskID {
			return apperr.Conflict(DetailDuplicateTest)
		}
	}
	m.nextID++
	t.ID = m.nextID
	cp := *t
	m.data[t.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id int64) (*Test, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.data[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, apperr.NotFound(DetailTestNotFound)
}

func (m *mockRepo) findByTestID(_ context.Context, testID string) (*Test, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.data {
		if t.TestID == testID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, apperr.NotFound(DetailTestNotFound)
}

func (m *mockRepo) LockByID(ctx context.Context, id int64) (*Test, error) {
	return m.GetByID(ctx, id)
}

func (m *mockRepo) LockByTestID(ctx context.Context, testID string) (*Test, error) {
	return m.findByTestID(ctx, testID)
}

func (m *mockRepo) SetFinalScore(_ context.Context, id int64, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.data[id]
	if !ok {
		return apperr.NotFound(DetailTestNotFound)
	}
	if t.IsFinalized() {
		return apperr.Conflict(DetailAlreadyFinalized)
	}
	t.FinalScore = &score
	t.Status = StatusFinalized
	return nil
}

func (m *mockRepo) List(_ context.Context, f Filter, limit, offset int) ([]*Test, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Test
	for _, t := range m.data {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.AgentID != 0 && t.AgentID != f.AgentID {
			continue
		}
		if f.CenterCode != "" && t.CenterCode != f.CenterCode {
			continue
		}
		cp := *t
		out = append(out, &cp)
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
