package auth

import (
	"context"
	"fmt"
)

// Role is a user's authorization role.
type Role string

const (
	RoleAgent         Role = "agent"
	RoleCentralReader Role = "central_reader"
	RoleSuperAdmin    Role = "super_admin"
)

// Roles lists every valid role.
var Roles = []Role{RoleAgent, RoleCentralReader, RoleSuperAdmin}

func (r Role) Valid() bool {
	switch r {
	case RoleAgent, RoleCentralReader, RoleSuperAdmin:
		return true
	}
	return false
}

// ParseRole converts s into a Role, rejecting unknown values.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Identity is the authenticated caller resolved from a session token.
type Identity struct {
	UserID     int64  `json:"user_id"`
	Username   string `json:"username"`
	Role       Role   `json:"role"`
	CenterCode string `json:"center_code"`
}

type identityKey struct{}

// WithIdentity stores id on ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity placed on ctx by RequireSession.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
