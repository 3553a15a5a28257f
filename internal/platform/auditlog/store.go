// Package auditlog persists the audit trail of state-changing requests.
package auditlog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trialscore/trialscore/internal/platform/db"
	"github.com/trialscore/trialscore/internal/platform/middleware"
)

var _ middleware.AuditRecorder = (*Store)(nil)

// Store writes audit entries to the audit_log table.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// RecordAccess inserts one entry. It joins the transaction on ctx when there
// is one.
func (s *Store) RecordAccess(ctx context.Context, entry middleware.AuditEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	const query = `
		INSERT INTO audit_log (
			user_id, username, role, action, method, path,
			ip_address, request_id, status_code, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10)`

	_, err := db.Conn(ctx, s.pool).Exec(ctx, query,
		entry.UserID, entry.Username, string(entry.Role), entry.Action, entry.Method, entry.Path,
		entry.IPAddress, entry.RequestID, entry.StatusCode, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("audit log: insert: %w", err)
	}
	return nil
}
