package identity

import (
	"context"
	"errors"

	"github.com/trialscore/trialscore/internal/platform/apperr"
	"github.com/trialscore/trialscore/internal/platform/auth"
)

// IncorrectCredentialsDetail is returned for both unknown users and wrong
// passwords.
const IncorrectCredentialsDetail = "Incorrect username or password"

// Authenticator checks credentials against the user store and issues access
// tokens. It also resolves token subjects back to identities for the session
// validator.
type Authenticator struct {
	users  UserRepository
	hasher *auth.PasswordHasher
	tokens *auth.TokenService
}

func NewAuthenticator(users UserRepository, hasher *auth.PasswordHasher, tokens *auth.TokenService) *Authenticator {
	return &Authenticator{users: users, hasher: hasher, tokens: tokens}
}

// Authenticate returns the user whose credentials match. Unknown users and
// wrong passwords are indistinguishable to the caller.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := a.users.FindByUsername(ctx, username)
	if err != nil {
		if !apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
		a.hasher.VerifyDummy(password)
		return nil, apperr.Authentication(IncorrectCredentialsDetail)
	}
	if !a.hasher.Verify(password, u.PasswordHash) {
		return nil, apperr.Authentication(IncorrectCredentialsDetail)
	}
	return u, nil
}

// Login authenticates and issues a bearer token.
func (a *Authenticator) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	u, err := a.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	token, _, err := a.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(a.tokens.TTL().Seconds()),
	}, nil
}

// LookupIdentity implements auth.UserLookup.
func (a *Authenticator) LookupIdentity(ctx context.Context, userID int64) (auth.Identity, error) {
	u, err := a.users.FindByID(ctx, userID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return auth.Identity{}, auth.ErrUserNotFound
		}
		return auth.Identity{}, err
	}
	return u.Identity(), nil
}

// passwordError classifies hasher input errors as validation failures.
func passwordError(err error) error {
	if errors.Is(err, auth.ErrEmptyPassword) || errors.Is(err, auth.ErrPasswordTooLong) {
		return apperr.Validation("%s", err.Error())
	}
	return apperr.Internal(err)
}
