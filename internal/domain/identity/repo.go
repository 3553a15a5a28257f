package identity

import (
	"context"

	"github.com/trialscore/trialscore/internal/platform/auth"
)

// UserRepository persists users. Lookups of missing rows return an
// apperr NotFound error.
type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, u *User) error
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	UpdateRole(ctx context.Context, id int64, role auth.Role) error
	List(ctx context.Context, limit, offset int) ([]*User, int, error)
}

type CenterRepository interface {
	Create(ctx context.Context, c *Center) error
	Get(ctx context.Context, code string) (*Center, error)
	List(ctx context.Context) ([]*Center, error)
}
