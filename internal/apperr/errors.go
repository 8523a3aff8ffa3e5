// Package apperr provides the error taxonomy shared by every transport.
package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Kind classifies a failure independently of the transport that reports it.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindInvalidInput
	KindInvalidRelation
)

// String returns the kind name used in response bodies.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindInvalidInput:
		return "InvalidInput"
	case KindInvalidRelation:
		return "InvalidRelation"
	default:
		return "Internal"
	}
}

// Code returns the GraphQL extension code for the kind.
func (k Kind) Code() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	case KindInvalidInput:
		return "INVALID_INPUT"
	case KindInvalidRelation:
		return "INVALID_RELATION"
	default:
		return "INTERNAL"
	}
}

// HTTPStatus returns the HTTP status code for a kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindInvalidInput, KindInvalidRelation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is the structured error surfaced by services.
type Error struct {
	Kind    Kind   `json:"-"`
	Entity  string `json:"entity,omitempty"`
	Op      string `json:"op,omitempty"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// Error implements the error interface. Only the message is exposed; the
// cause stays available through Unwrap for logging.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Extensions implements gqlerrors.ExtendedError.
func (e *Error) Extensions() map[string]interface{} {
	return map[string]interface{}{
		"code":       e.Kind.Code(),
		"statusCode": e.Kind.HTTPStatus(),
	}
}

// HTTPStatus returns the HTTP status for this error.
func (e *Error) HTTPStatus() int {
	return e.Kind.HTTPStatus()
}

// With returns a copy annotated with entity, operation and id.
func (e *Error) With(entity, op, id string) *Error {
	out := *e
	if out.Entity == "" {
		out.Entity = entity
	}
	if out.Op == "" {
		out.Op = op
	}
	if out.ID == "" {
		out.ID = id
	}
	return &out
}

// Sentinels usable with errors.Is.
var (
	ErrNotFound        = &Error{Kind: KindNotFound, Message: "Record not found"}
	ErrConflict        = &Error{Kind: KindConflict, Message: "Duplicate entry"}
	ErrInvalidInput    = &Error{Kind: KindInvalidInput, Message: "Invalid input"}
	ErrInvalidRelation = &Error{Kind: KindInvalidRelation, Message: "Foreign key constraint failed"}
	ErrInternal        = &Error{Kind: KindInternal, Message: "Internal server error"}
)

// NotFound returns a NotFound error for a single entity.
func NotFound(entity, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Entity:  entity,
		ID:      id,
		Message: fmt.Sprintf("%s with ID %s not found", titleCase(entity), id),
	}
}

// InvalidInput returns an InvalidInput error with a formatted message.
func InvalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// Conflict returns a Conflict error wrapping cause.
func Conflict(cause error) *Error {
	return &Error{Kind: KindConflict, Message: ErrConflict.Message, Cause: cause}
}

// InvalidRelation returns an InvalidRelation error wrapping cause.
func InvalidRelation(cause error) *Error {
	return &Error{Kind: KindInvalidRelation, Message: ErrInvalidRelation.Message, Cause: cause}
}

// Internal returns an Internal error wrapping cause.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: ErrInternal.Message, Cause: cause}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal when err is not classified.
func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return KindInternal
}

// Classify translates storage and validation failures into the taxonomy.
// Errors that are already classified are returned unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	if ae, ok := As(err); ok {
		return ae
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		return &Error{Kind: KindNotFound, Message: ErrNotFound.Message, Cause: err}
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return &Error{Kind: KindInvalidInput, Message: describeValidation(verrs), Cause: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return Conflict(err)
		case "23503":
			return InvalidRelation(err)
		case "23514", "23502", "22P02", "22001":
			return &Error{Kind: KindInvalidInput, Message: "Constraint failed", Cause: err}
		}
		return Internal(err)
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return Conflict(err)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return InvalidRelation(err)
		case sqlite3.SQLITE_CONSTRAINT_CHECK, sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return &Error{Kind: KindInvalidInput, Message: "Constraint failed", Cause: err}
		}
		return Internal(err)
	}

	return Internal(err)
}

func describeValidation(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeField(fe))
	}
	return strings.Join(msgs, "; ")
}

func describeField(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "email":
		return field + " must be a valid email"
	case "uuid", "uuid4":
		return field + " must be a UUID"
	case "hexcolor6":
		return field + " must be a hex color like #FF0000"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
