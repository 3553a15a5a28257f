package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/trialscore/trialscore/internal/platform/apperr"
)

// NotAuthorizedDetail is the client-facing message for role failures.
const NotAuthorizedDetail = "Not authorized"

// CheckRole returns nil if id holds one of the allowed roles and a Forbidden
// error otherwise. No role is implicitly allowed.
func CheckRole(id Identity, allowed ...Role) error {
	for _, r := range allowed {
		if id.Role == r {
			return nil
		}
	}
	return apperr.Forbidden(NotAuthorizedDetail)
}

// RequireRole returns middleware that admits only the given roles. It must run
// after RequireSession.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, err := CurrentIdentity(c)
			if err != nil {
				return err
			}
			if err := CheckRole(id, roles...); err != nil {
				return err
			}
			return next(c)
		}
	}
}
