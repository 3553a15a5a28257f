package identity

import (
	"context"
	"strings"

	"github.com/trialscore/trialscore/internal/platform/apperr"
	"github.com/trialscore/trialscore/internal/platform/auth"
)

const (
	maxUsernameLen   = 150
	maxCenterCodeLen = 32
)

// Service is the administrative path: the only code that creates accounts or
// changes a password hash or role.
type Service struct {
	users   UserRepository
	centers CenterRepository
	hasher  *auth.PasswordHasher
}

func NewService(users UserRepository, centers CenterRepository, hasher *auth.PasswordHasher) *Service {
	return &Service{users: users, centers: centers, hasher: hasher}
}

// -- Centers --

func (s *Service) CreateCenter(ctx context.Context, in CreateCenterInput) (*Center, error) {
	code := strings.TrimSpace(in.Code)
	name := strings.TrimSpace(in.Name)
	if code == "" {
		return nil, apperr.Validation("center_code is required")
	}
	if len(code) > maxCenterCodeLen {
		return nil, apperr.Validation("center_code must be at most %d characters", maxCenterCodeLen)
	}
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	c := &Center{Code: code, Name: name}
	if err := s.centers.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) GetCenter(ctx context.Context, code string) (*Center, error) {
	return s.centers.Get(ctx, code)
}

func (s *Service) ListCenters(ctx context.Context) ([]*Center, error) {
	return s.centers.List(ctx)
}

// -- Users --

func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, apperr.Validation("username is required")
	}
	if len(username) > maxUsernameLen {
		return nil, apperr.Validation("username must be at most %d characters", maxUsernameLen)
	}
	role, err := auth.ParseRole(in.Role)
	if err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	if in.CenterCode == "" {
		return nil, apperr.Validation("center_code is required")
	}
	if _, err := s.centers.Get(ctx, in.CenterCode); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, passwordError(err)
	}

	u := &User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		CenterCode:   in.CenterCode,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.users.FindByID(ctx, id)
}

// GetUserByUsername is used by the CLI, which addresses users by name.
func (s *Service) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.users.FindByUsername(ctx, username)
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, limit, offset)
}

// SetPassword replaces the stored hash. Existing tokens stay valid until they
// expire.
func (s *Service) SetPassword(ctx context.Context, id int64, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return passwordError(err)
	}
	return s.users.UpdatePasswordHash(ctx, id, hash)
}

// SetRole changes a user's role. The session validator reads the role from
// the store on every request, so the change applies immediately.
func (s *Service) SetRole(ctx context.Context, id int64, role string) error {
	r, err := auth.ParseRole(role)
	if err != nil {
		return apperr.Validation("%s", err.Error())
	}
	return s.users.UpdateRole(ctx, id, r)
}
