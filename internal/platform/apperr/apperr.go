// Package apperr defines the error taxonomy shared by services and the HTTP
// layer. Services return *Error values (possibly wrapped); the HTTP error
// handler maps the Kind to a status code and renders Detail to the client.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindAuthentication
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindValidation
)

// Postgres SQLSTATE codes the repositories translate.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	default:
		return "internal"
	}
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindAuthentication:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified application error. Detail is safe to show to clients.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func Wrap(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

func Authentication(detail string) *Error { return New(KindAuthentication, detail) }
func Unauthorized(detail string) *Error   { return New(KindUnauthorized, detail) }
func Forbidden(detail string) *Error      { return New(KindForbidden, detail) }
func NotFound(detail string) *Error       { return New(KindNotFound, detail) }
func Conflict(detail string) *Error       { return New(KindConflict, detail) }

func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

func Internal(err error) *Error {
	return Wrap(KindInternal, "internal server error", err)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}

// FromDB translates storage errors into classified errors. notFound is the
// detail used when the row does not exist; conflict is used for uniqueness
// violations. Other errors become Internal.
func FromDB(err error, notFound, conflict string) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return Wrap(KindNotFound, notFound, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return Wrap(KindConflict, conflict, err)
		case pgForeignKeyViolation:
			return Wrap(KindNotFound, foreignKeyDetail(pgErr), err)
		case pgCheckViolation:
			return Wrap(KindValidation, "value violates constraint "+pgErr.ConstraintName, err)
		}
	}
	return Internal(err)
}

func foreignKeyDetail(pgErr *pgconn.PgError) string {
	switch pgErr.ConstraintName {
	case "users_center_code_fkey", "tests_center_code_fkey":
		return "Center not found"
	case "tests_agent_id_fkey", "scores_reader_id_fkey":
		return "User not found"
	case "scores_test_id_fkey", "score_validation_test_id_fkey":
		return "Test not found"
	}
	return "Referenced record not found"
}
