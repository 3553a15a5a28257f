package auth

import (
	"context"
	"errors"
	"strconv"
)

// SessionErrorKind enumerates why a token could not be resolved.
type SessionErrorKind int

const (
	SessionInvalidToken SessionErrorKind = iota + 1
	SessionTokenExpired
	SessionInvalidPayload
	SessionUserNotFound
)

// SessionError is returned by SessionValidator.Resolve. Its message is the
// client-facing detail.
type SessionError struct {
	Kind SessionErrorKind
}

func (e *SessionError) Error() string {
	switch e.Kind {
	case SessionTokenExpired:
		return "Token expired"
	case SessionInvalidPayload:
		return "Invalid token payload"
	case SessionUserNotFound:
		return "User not found"
	default:
		return "Invalid token"
	}
}

// Is matches on Kind so errors.Is works against the sentinels below.
func (e *SessionError) Is(target error) bool {
	t, ok := target.(*SessionError)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidToken   = &SessionError{Kind: SessionInvalidToken}
	ErrTokenExpired   = &SessionError{Kind: SessionTokenExpired}
	ErrInvalidPayload = &SessionError{Kind: SessionInvalidPayload}
	ErrUserNotFound   = &SessionError{Kind: SessionUserNotFound}
)

// UserLookup resolves a user id to its current identity. Implementations
// return ErrUserNotFound when the user does not exist.
type UserLookup interface {
	LookupIdentity(ctx context.Context, userID int64) (Identity, error)
}

// SessionValidator turns a bearer token into the caller's identity.
type SessionValidator struct {
	tokens *TokenService
	users  UserLookup
}

func NewSessionValidator(tokens *TokenService, users UserLookup) *SessionValidator {
	return &SessionValidator{tokens: tokens, users: users}
}

// Resolve checks, in order, the signature, the expiry and the subject claim,
// then loads the user. The returned role is the user's current role, not the
// one recorded at issuance. Errors other than *SessionError come from the
// user store.
func (v *SessionValidator) Resolve(ctx context.Context, token string) (Identity, error) {
	claims, err := v.tokens.Parse(token)
	if err != nil {
		return Identity{}, err
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if claims.Subject == "" || err != nil || userID <= 0 {
		return Identity{}, ErrInvalidPayload
	}

	id, err := v.users.LookupIdentity(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Identity{}, ErrUserNotFound
		}
		return Identity{}, err
	}
	return id, nil
}
