package identity

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/trialscore/trialscore/internal/platform/apperr"
	"github.com/trialscore/trialscore/internal/platform/auth"
)

// ── Mock Repositories ──

type mockUserRepo struct {
	mu     sync.Mutex
	data   map[int64]*User
	nextID int64
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{data: make(map[int64]*User)}
}

func (m *mockUserRepo) FindByUsername(_ context.Context, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.data {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.NotFound(detailUserNotFound)
}

func (m *mockUserRepo) FindByID(_ context.Context, id int64) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.data[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, apperr.NotFound(detailUserNotFound)
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.data {
		if existing.Username == u.Username {
			return apperr.Conflict(detailUsernameTaken)
		}
	}
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	m.data[u.ID] = &cp
	return nil
}

func (m *mockUserRepo) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.data[id]
	if !ok {
		return apperr.NotFound(detailUserNotFound)
	}
	u.PasswordHash = hash
	return nil
}

func (m *mockUserRepo) UpdateRole(_ context.Context, id int64, role auth.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.data[id]
	if !ok {
		return apperr.NotFound(detailUserNotFound)
	}
	u.Role = role
	return nil
}

func (m *mockUserRepo) List(_ context.Context, limit, offset int) ([]*User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*User
	for _, u := range m.data {
		cp := *u
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

type mockCenterRepo struct {
	data map[string]*Center
}

func newMockCenterRepo(codes ...string) *mockCenterRepo {
	m := &mockCenterRepo{data: make(map[string]*Center)}
	for _, code := range codes {
		m.data[code] = &Center{Code: code, Name: code + " site"}
	}
	return m
}

func (m *mockCenterRepo) Create(_ context.Context, c *Center) error {
	if _, ok := m.data[c.Code]; ok {
		return apperr.Conflict(detailCenterExists)
	}
	c.CreatedAt = time.Now().UTC()
	m.data[c.Code] = c
	return nil
}

func (m *mockCenterRepo) Get(_ context.Context, code string) (*Center, error) {
	if c, ok := m.data[code]; ok {
		return c, nil
	}
	return nil, apperr.NotFound(detailCenterNotFound)
}

func (m *mockCenterRepo) List(_ context.Context) ([]*Center, error) {
	var out []*Center
	for _, c := range m.data {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// testFixture wires the service and authenticator over in-memory repos with
// the cheapest bcrypt cost.
type testFixture struct {
	users   *mockUserRepo
	centers *mockCenterRepo
	hasher  *auth.PasswordHasher
	tokens  *auth.TokenService
	svc     *Service
	authn   *Authenticator
}

func newFixture() *testFixture {
	f := &testFixture{
		users:   newMockUserRepo(),
		centers: newMockCenterRepo("C01"),
		hasher:  auth.NewPasswordHasher(4),
		tokens:  auth.NewTokenService([]byte("test-secret-key-of-reasonable-length"), time.Hour),
	}
	f.svc = NewService(f.users, f.centers, f.hasher)
	f.authn = NewAuthenticator(f.users, f.hasher, f.tokens)
	return f
}

func (f *testFixture) mustCreateUser(username, password string, role auth.Role) *User {
	u, err := f.svc.CreateUser(context.Background(), CreateUserInput{
		Username: username, Password: password, Role: string(role), CenterCode: "C01",
	})
	if err != nil {
		panic(err)
	}
	return u
}
