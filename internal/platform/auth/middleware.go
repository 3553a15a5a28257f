package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trialscore/trialscore/internal/platform/apperr"
)

// Resolver resolves bearer tokens; *SessionValidator implements it.
type Resolver interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. The scheme is case-insensitive.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireSession authenticates every request not matched by skipper and
// stores the resolved Identity on the request context. Failures surface as
// 401 with the session error's detail.
func RequireSession(r Resolver, skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}

			token, ok := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return apperr.Unauthorized(ErrInvalidToken.Error())
			}

			id, err := r.Resolve(c.Request().Context(), token)
			if err != nil {
				var se *SessionError
				if errors.As(err, &se) {
					return apperr.Wrap(apperr.KindUnauthorized, se.Error(), err)
				}
				return apperr.Internal(err)
			}

			c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
			c.Set("user_id", id.UserID)
			return next(c)
		}
	}
}

// CurrentIdentity returns the identity of an authenticated request or a 401.
func CurrentIdentity(c echo.Context) (Identity, error) {
	id, ok := IdentityFromContext(c.Request().Context())
	if !ok {
		return Identity{}, apperr.Unauthorized(ErrInvalidToken.Error())
	}
	return id, nil
}
