package identity

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trialscore/trialscore/internal/platform/apperr"
	"github.com/trialscore/trialscore/internal/platform/auth"
	"github.com/trialscore/trialscore/internal/platform/db"
)

const (
	detailUserNotFound   = "User not found"
	detailUsernameTaken  = "Username already exists"
	detailCenterNotFound = "Center not found"
	detailCenterExists   = "Center already exists"
)

// =========== User Repository ===========

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const userCols = `id, username, password_hash, role, center_code, created_at, updated_at`

func (r *userRepoPG) scanUser(row pgx.Row) (*User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.CenterCode, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = auth.Role(role)
	return &u, nil
}

func (r *userRepoPG) FindByUsername(ctx context.Context, username string) (*User, error) {
	u, err := r.scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE username = $1`, username))
	return u, apperr.FromDB(err, detailUserNotFound, detailUsernameTaken)
}

func (r *userRepoPG) FindByID(ctx context.Context, id int64) (*User, error) {
	u, err := r.scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
	return u, apperr.FromDB(err, detailUserNotFound, detailUsernameTaken)
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (username, password_hash, role, center_code)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		u.Username, u.PasswordHash, string(u.Role), u.CenterCode,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	return apperr.FromDB(err, detailUserNotFound, detailUsernameTaken)
}

func (r *userRepoPG) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return apperr.FromDB(err, detailUserNotFound, detailUsernameTaken)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(detailUserNotFound)
	}
	return nil
}

func (r *userRepoPG) UpdateRole(ctx context.Context, id int64, role auth.Role) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`, id, string(role))
	if err != nil {
		return apperr.FromDB(err, detailUserNotFound, detailUsernameTaken)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(detailUserNotFound)
	}
	return nil
}

func (r *userRepoPG) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, apperr.Internal(err)
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+userCols+` FROM users ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	defer rows.Close()
	var items []*User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, 0, apperr.Internal(err)
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Internal(err)
	}
	return items, total, nil
}

// =========== Center Repository ===========

type centerRepoPG struct{ pool *pgxpool.Pool }

func NewCenterRepoPG(pool *pgxpool.Pool) CenterRepository {
	return &centerRepoPG{pool: pool}
}

func (r *centerRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

func (r *centerRepoPG) Create(ctx context.Context, c *Center) error {
	err := r.conn(ctx).QueryRow(ctx,
		`INSERT INTO centers (center_code, name) VALUES ($1, $2) RETURNING created_at`,
		c.Code, c.Name,
	).Scan(&c.CreatedAt)
	return apperr.FromDB(err, detailCenterNotFound, detailCenterExists)
}

func (r *centerRepoPG) Get(ctx context.Context, code string) (*Center, error) {
	var c Center
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT center_code, name, created_at FROM centers WHERE center_code = $1`, code,
	).Scan(&c.Code, &c.Name, &c.CreatedAt)
	if err != nil {
		return nil, apperr.FromDB(err, detailCenterNotFound, detailCenterExists)
	}
	return &c, nil
}

func (r *centerRepoPG) List(ctx context.Context) ([]*Center, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT center_code, name, created_at FROM centers ORDER BY center_code`)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	defer rows.Close()
	var items []*Center
	for rows.Next() {
		var c Center
		if err := rows.Scan(&c.Code, &c.Name, &c.CreatedAt); err != nil {
			return nil, apperr.Internal(err)
		}
		items = append(items, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(err)
	}
	return items, nil
}
