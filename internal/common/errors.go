package common

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrNotFound       = errors.New("requested resource not found")
	ErrUnauthorized   = errors.New("unauthorized access")
	ErrForbidden      = errors.New("forbidden access")
	ErrConflict       = errors.New("resource conflict")
	ErrValidation     = errors.New("validation failed")
	ErrIntegrity      = errors.New("data integrity fault")
	ErrInternalServer = errors.New("internal server error")
)

// Error is a domain error with a client-facing message. Kind is one of the
// sentinel categories above and is what errors.Is matches against.
type Error struct {
	Kind    error
	Message string
	Details map[string]string
	extra   []error
}

func NewError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Also returns a copy of e that additionally matches kinds.
func (e *Error) Also(kinds ...error) *Error {
	cp := *e
	cp.extra = append(append([]error(nil), e.extra...), kinds...)
	return &cp
}

// WithDetails returns a copy of e carrying per-field details.
func (e *Error) WithDetails(details map[string]string) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() []error {
	return append([]error{e.Kind}, e.extra...)
}

// Is lets a freshly built *Error match a package-level one by kind and message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Message == e.Message
}

// HTTPStatusFromError maps domain errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, ErrValidation) {
		return http.StatusUnprocessableEntity
	}
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	if errors.Is(err, ErrForbidden) {
		return http.StatusForbidden
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrConflict) || IsUniqueViolation(err) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// PublicMessage is the text safe to send to a client for err. Anything that is
// not a domain error collapses to a generic message.
func PublicMessage(err error) string {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	if HTTPStatusFromError(err) == http.StatusConflict {
		return ErrConflict.Error()
	}
	return ErrInternalServer.Error()
}

// IsUniqueViolation reports whether err is a unique constraint violation from
// either supported driver.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
