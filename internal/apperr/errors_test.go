package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"sql no rows", sql.ErrNoRows, KindNotFound},
		{"pgx no rows", fmt.Errorf("get: %w", pgx.ErrNoRows), KindNotFound},
		{"unique", &pgconn.PgError{Code: "23505"}, KindConflict},
		{"foreign key", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503"}), KindInvalidRelation},
		{"check", &pgconn.PgError{Code: "23514"}, KindInvalidInput},
		{"bad uuid text", &pgconn.PgError{Code: "22P02"}, KindInvalidInput},
		{"other pg", &pgconn.PgError{Code: "57014"}, KindInternal},
		{"unknown", errors.New("boom"), KindInternal},
		{"already classified", fmt.Errorf("wrap: %w", NotFound("tag", "1")), KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Kind)
			assert.Equal(t, tt.want, KindOf(got))
		})
	}
	assert.Nil(t, Classify(nil))
}

func TestClassify_KeepsCause(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", Detail: "Key (name)=(Work) already exists."}
	got := Classify(pgErr)
	assert.Equal(t, "Duplicate entry", got.Error())
	assert.ErrorIs(t, got, ErrConflict)

	var cause *pgconn.PgError
	require.ErrorAs(t, got, &cause)
	assert.Equal(t, pgErr.Detail, cause.Detail)
}

func TestClassify_Validation(t *testing.T) {
	type input struct {
		Title string `validate:"required,max=5"`
		Email string `validate:"omitempty,email"`
		Color string `validate:"omitempty,oneof=red blue"`
	}
	v := validator.New()

	got := Classify(v.Struct(input{Email: "nope", Color: "green"}))
	assert.Equal(t, KindInvalidInput, got.Kind)
	assert.Equal(t,
		"Title is required; Email must be a valid email; Color must be one of red blue",
		got.Message)

	got = Classify(v.Struct(input{Title: "too long"}))
	assert.Equal(t, "Title must be at most 5 characters", got.Message)
}

func TestKind(t *testing.T) {
	tests := []struct {
		kind   Kind
		name   string
		code   string
		status int
	}{
		{KindNotFound, "NotFound", "NOT_FOUND", http.StatusNotFound},
		{KindConflict, "Conflict", "CONFLICT", http.StatusConflict},
		{KindInvalidInput, "InvalidInput", "INVALID_INPUT", http.StatusBadRequest},
		{KindInvalidRelation, "InvalidRelation", "INVALID_RELATION", http.StatusBadRequest},
		{KindInternal, "Internal", "INTERNAL", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.kind.String())
		assert.Equal(t, tt.code, tt.kind.Code())
		assert.Equal(t, tt.status, tt.kind.HTTPStatus())
	}
}

func TestError(t *testing.T) {
	err := NotFound("todo", "42")
	assert.Equal(t, "Todo with ID 42 not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.Equal(t, map[string]interface{}{"code": "NOT_FOUND", "statusCode": 404}, err.Extensions())

	annotated := InvalidInput("Invalid %s id: %s", "tag", "x").With("tag", "update", "x")
	assert.Equal(t, "Invalid tag id: x", annotated.Message)
	assert.Equal(t, "tag", annotated.Entity)
	assert.Equal(t, "update", annotated.Op)
	assert.Equal(t, "x", annotated.ID)

	// With never overwrites fields that are already set.
	again := annotated.With("todo", "create", "y")
	assert.Equal(t, "tag", again.Entity)
	assert.Equal(t, "update", again.Op)

	internal := Internal(errors.New("disk full"))
	assert.Equal(t, "Internal server error", internal.Error())
	assert.EqualError(t, errors.Unwrap(internal), "disk full")

	ae, ok := As(fmt.Errorf("outer: %w", internal))
	require.True(t, ok)
	assert.Same(t, internal, ae)
	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}
