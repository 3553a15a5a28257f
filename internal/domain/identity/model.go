package identity

import (
	"time"

	"github.com/trialscore/trialscore/internal/platform/auth"
)

// Center is a trial site. Users and tests belong to exactly one center.
type Center struct {
	Code      string    `json:"center_code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// User is a stored account. PasswordHash never leaves the package in
// responses; handlers render UserView instead.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         auth.Role `json:"role"`
	CenterCode   string    `json:"center_code"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Identity projects the user onto what the session layer needs.
func (u *User) Identity() auth.Identity {
	return auth.Identity{
		UserID:     u.ID,
		Username:   u.Username,
		Role:       u.Role,
		CenterCode: u.CenterCode,
	}
}

// UserView is the public representation of a user.
type UserView struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Role       auth.Role `json:"role"`
	CenterCode string    `json:"center_code"`
	CreatedAt  time.Time `json:"created_at"`
}

func (u *User) View() UserView {
	return UserView{
		ID:         u.ID,
		Username:   u.Username,
		Role:       u.Role,
		CenterCode: u.CenterCode,
		CreatedAt:  u.CreatedAt,
	}
}

// CreateUserInput carries the fields of a new account.
type CreateUserInput struct {
	Username   string `json:"username" validate:"required,max=150"`
	Password   string `json:"password" validate:"required"`
	Role       string `json:"role" validate:"required,oneof=agent central_reader super_admin"`
	CenterCode string `json:"center_code" validate:"required,max=32"`
}

// CreateCenterInput carries the fields of a new center.
type CreateCenterInput struct {
	Code string `json:"center_code" validate:"required,max=32"`
	Name string `json:"name" validate:"required,max=255"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is returned on successful authentication.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}
