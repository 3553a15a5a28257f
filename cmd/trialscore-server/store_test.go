package main

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/trialscore/trialscore/internal/domain/identity"
	"github.com/trialscore/trialscore/internal/domain/reconcile"
	"github.com/trialscore/trialscore/internal/domain/trial"
	"github.com/trialscore/trialscore/internal/platform/apperr"
	"github.com/trialscore/trialscore/internal/platform/auth"
	"github.com/trialscore/trialscore/internal/platform/middleware"
)

// memDB is a single-mutex in-memory backend for every repository the server
// uses. WithTx serializes transactions; it does not roll back.
type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users       map[int64]*identity.User
	centers     map[string]*identity.Center
	tests       map[int64]*trial.Test
	scores      []reconcile.Score
	validations map[int64]*reconcile.Validation
	audit       []middleware.AuditEntry
	nextID      int64
}

func newMemDB(centers ...string) *memDB {
	m := &memDB{
		users:       make(map[int64]*identity.User),
		centers:     make(map[string]*identity.Center),
		tests:       make(map[int64]*trial.Test),
		validations: make(map[int64]*reconcile.Validation),
	}
	for _, code := range centers {
		m.centers[code] = &identity.Center{Code: code, Name: code}
	}
	return m
}

func (m *memDB) stores() stores {
	return stores{
		users:   memUsers{m},
		centers: memCenters{m},
		tests:   memTests{m},
		scores:  memScores{m},
		tx:      m,
		audit:   memAudit{m},
	}
}

func (m *memDB) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(ctx)
}

func (m *memDB) id() int64 {
	m.nextID++
	return m.nextID
}

func page[T any](items []T, limit, offset int) ([]T, int) {
	total := len(items)
	if offset >= total {
		return nil, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return items[offset:end], total
}

type memAudit struct{ m *memDB }

func (r memAudit) RecordAccess(_ context.Context, entry middleware.AuditEntry) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.audit = append(r.m.audit, entry)
	return nil
}

func (m *memDB) auditTrail() []middleware.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]middleware.AuditEntry(nil), m.audit...)
}

type memUsers struct{ m *memDB }

func (r memUsers) FindByUsername(_ context.Context, username string) (*identity.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("User not found")
}

func (r memUsers) FindByID(_ context.Context, id int64) (*identity.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if u, ok := r.m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, apperr.NotFound("User not found")
}

func (r memUsers) Create(_ context.Context, u *identity.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.users {
		if existing.Username == u.Username {
			return apperr.Conflict("Username already exists")
		}
	}
	u.ID = r.m.id()
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	r.m.users[u.ID] = &cp
	return nil
}

func (r memUsers) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return apperr.NotFound("User not found")
	}
	u.PasswordHash = hash
	return nil
}

func (r memUsers) UpdateRole(_ context.Context, id int64, role auth.Role) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return apperr.NotFound("User not found")
	}
	u.Role = role
	return nil
}

func (r memUsers) List(_ context.Context, limit, offset int) ([]*identity.User, int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*identity.User
	for _, u := range r.m.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	items, total := page(out, limit, offset)
	return items, total, nil
}

type memCenters struct{ m *memDB }

func (r memCenters) Create(_ context.Context, c *identity.Center) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.centers[c.Code]; ok {
		return apperr.Conflict("Center already exists")
	}
	c.CreatedAt = time.Now().UTC()
	cp := *c
	r.m.centers[c.Code] = &cp
	return nil
}

func (r memCenters) Get(_ context.Context, code string) (*identity.Center, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if c, ok := r.m.centers[code]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, apperr.NotFound("Center not found")
}

func (r memCenters) List(_ context.Context) ([]*identity.Center, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*identity.Center
	for _, c := range r.m.centers {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

type memTests struct{ m *memDB }

func (r memTests) Create(_ context.Context, t *trial.Test) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.centers[t.CenterCode]; !ok {
		return apperr.NotFound("Center not found")
	}
	for _, existing := range r.m.tests {
		if existing.TestID == t.TestID || existing.PatientMaskID == t.PatientMaskID {
			return apperr.Conflict(trial.DetailDuplicateTest)
		}
	}
	t.ID = r.m.id()
	cp := *t
	r.m.tests[t.ID] = &cp
	return nil
}

func (r memTests) GetByID(_ context.Context, id int64) (*trial.Test, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if t, ok := r.m.tests[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, apperr.NotFound(trial.DetailTestNotFound)
}

func (r memTests) findByTestID(_ context.Context, testID string) (*trial.Test, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, t := range r.m.tests {
		if t.TestID == testID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, apperr.NotFound(trial.DetailTestNotFound)
}

func (r memTests) LockByID(ctx context.Context, id int64) (*trial.Test, error) {
	return r.GetByID(ctx, id)
}

func (r memTests) LockByTestID(ctx context.Context, testID string) (*trial.Test, error) {
	return r.findByTestID(ctx, testID)
}

func (r memTests) SetFinalScore(_ context.Context, id int64, score float64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.tests[id]
	if !ok {
		return apperr.NotFound(trial.DetailTestNotFound)
	}
	if t.IsFinalized() {
		return apperr.Conflict(trial.DetailAlreadyFinalized)
	}
	t.FinalScore = &score
	t.Status = trial.StatusFinalized
	return nil
}

func (r memTests) List(_ context.Context, f trial.Filter, limit, offset int) ([]*trial.Test, int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*trial.Test
	for _, t := range r.m.tests {
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
	items, total := page(out, limit, offset)
	return items, total, nil
}

type memScores struct{ m *memDB }

func (r memScores) CreateScore(_ context.Context, s *reconcile.Score) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.scores {
		if existing.TestID == s.TestID && existing.ReaderID == s.ReaderID {
			return apperr.Conflict(reconcile.DetailScoreExists)
		}
	}
	s.ID = r.m.id()
	r.m.scores = append(r.m.scores, *s)
	return nil
}

func (r memScores) ListScores(_ context.Context, testID int64) ([]*reconcile.Score, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*reconcile.Score
	for _, s := range r.m.scores {
		if s.TestID == testID {
			s := s
			out = append(out, &s)
		}
	}
	return out, nil
}

func (r memScores) ConfirmScores(_ context.Context, testID int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for i := range r.m.scores {
		if r.m.scores[i].TestID == testID {
			r.m.scores[i].Status = reconcile.ScoreConfirmed
		}
	}
	return nil
}

func (r memScores) FindValidation(_ context.Context, testID int64) (*reconcile.Validation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if v, ok := r.m.validations[testID]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, nil
}

func (r memScores) CreateValidation(_ context.Context, v *reconcile.Validation) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.validations[v.TestID]; ok {
		return apperr.Conflict(reconcile.DetailValidationExists)
	}
	v.ID = r.m.id()
	cp := *v
	r.m.validations[v.TestID] = &cp
	return nil
}

func (r memScores) UpdateValidation(_ context.Context, v *reconcile.Validation) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.validations[v.TestID]; !ok {
		return apperr.NotFound(reconcile.DetailValidationNotFound)
	}
	cp := *v
	r.m.validations[v.TestID] = &cp
	return nil
}

func (r memScores) PendingForReader(_ context.Context, readerID int64, limit, offset int) ([]*trial.Test, int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*trial.Test
	for _, t := range r.m.tests {
		if t.IsFinalized() || t.AgentID == readerID {
			continue
		}
		if v, ok := r.m.validations[t.ID]; ok && v.Reader2ID != nil {
			continue
		}
		scored := false
		for _, s := range r.m.scores {
			if s.TestID == t.ID && s.ReaderID == readerID {
				scored = true
			}
		}
		if !scored {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	items, total := page(out, limit, offset)
	return items, total, nil
}
