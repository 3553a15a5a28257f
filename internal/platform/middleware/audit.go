package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/trialscore/trialscore/internal/platform/auth"
)

// AuditEntry records one state-changing request made by an authenticated user.
type AuditEntry struct {
	UserID     int64
	Username   string
	Role       auth.Role
	Action     string
	Method     string
	Path       string
	IPAddress  string
	RequestID  string
	StatusCode int
	Timestamp  time.Time
}

// AuditRecorder persists audit entries. The zerolog trail is always written;
// a recorder is optional.
type AuditRecorder interface {
	RecordAccess(ctx context.Context, entry AuditEntry) error
}

// Audit logs every mutating request (test submission, score submission,
// finalization, admin changes) together with the acting identity. Reads and
// unauthenticated requests pass through untouched.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !isMutation(req.Method) {
				return next(c)
			}

			err := next(c)

			id, ok := auth.IdentityFromContext(c.Request().Context())
			if !ok {
				return err
			}

			status := c.Response().Status
			if err != nil && !c.Response().Committed {
				status = statusOf(err)
			}
			entry := AuditEntry{
				UserID:     id.UserID,
				Username:   id.Username,
				Role:       id.Role,
				Action:     actionFor(c.Path()),
				Method:     req.Method,
				Path:       req.URL.Path,
				IPAddress:  c.RealIP(),
				StatusCode: status,
				Timestamp:  time.Now().UTC(),
			}
			entry.RequestID, _ = c.Get("request_id").(string)

			for _, r := range recorders {
				if r == nil {
					continue
				}
				// the entry outlives a request cancelled after the handler ran
				ctx := context.WithoutCancel(req.Context())
				if recErr := r.RecordAccess(ctx, entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Int64("user_id", entry.UserID).
				Str("username", entry.Username).
				Str("role", string(entry.Role)).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("mutation")

			return err
		}
	}
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// actionFor names the operation behind a route template.
func actionFor(route string) string {
	switch route {
	case "/agents/submit-test":
		return "submit_test"
	case "/readers/submit-score":
		return "submit_score"
	case "/admin/finalize/:id":
		return "finalize"
	case "/admin/users":
		return "create_user"
	case "/admin/users/:id/password":
		return "set_password"
	case "/admin/users/:id/role":
		return "set_role"
	case "/admin/centers":
		return "create_center"
	default:
		return "other"
	}
}
