package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birlikkoshan/todohub/internal/apperr"
	dom "github.com/birlikkoshan/todohub/internal/domain"
	"github.com/birlikkoshan/todohub/internal/eventbus"
)

func TestUserService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withCache())
	added := f.subscribe(t, eventbus.UsersAdded)
	updated := f.subscribe(t, eventbus.UsersUpdated)
	deleted := f.subscribe(t, eventbus.UsersDeleted)

	u, err := f.users.Create(ctx, CreateUserInput{Email: " ann@example.com ", Name: ptr("Ann")})
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", u.Email)
	assert.Equal(t, u, receive(t, added).Payload)

	all, err := f.users.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	renamed, err := f.users.Update(ctx, u.ID, UpdateUserInput{Name: ptr("Annie")})
	require.NoError(t, err)
	assert.Equal(t, "Annie", *renamed.Name)
	assert.Equal(t, renamed, receive(t, updated).Payload)

	all, err = f.users.FindAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Annie", *all[0].Name)

	removed, err := f.users.Remove(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, renamed, removed)
	assert.Equal(t, renamed, receive(t, deleted).Payload)

	_, err = f.users.FindOne(ctx, u.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUserService_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.users.Create(ctx, CreateUserInput{Email: "not-an-email"})
	require.Error(t, err)
	assert.Equal(t, "email must be a valid email", err.Error())

	_, err = f.users.Create(ctx, CreateUserInput{Email: "a@example.com", Name: ptr("  ")})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestUserService_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "ann@example.com")

	_, err := f.users.Create(ctx, CreateUserInput{Email: "ann@example.com"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestUserService_RemoveOwnerWithTodos(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.user(t, "ann@example.com")
	todo, err := f.todos.Create(ctx, CreateTodoInput{Title: "x", UserID: owner.ID})
	require.NoError(t, err)
	usersDeleted := f.subscribe(t, eventbus.UsersDeleted)
	todosDeleted := f.subscribe(t, eventbus.TodosDeleted)

	_, err = f.users.Remove(ctx, owner.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInvalidRelation)
	assert.Equal(t, "Foreign key constraint failed", err.Error())
	assertNoEvent(t, usersDeleted)
	assertNoEvent(t, todosDeleted)

	got, err := f.todos.FindOne(ctx, todo.ID)
	require.NoError(t, err)
	assert.Equal(t, todo, got)

	_, err = f.todos.Remove(ctx, todo.ID)
	require.NoError(t, err)
	assert.Equal(t, todo.ID, receive(t, todosDeleted).Payload.(dom.Todo).ID)

	removed, err := f.users.Remove(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, owner, removed)
	assert.Equal(t, owner, receive(t, usersDeleted).Payload)
}
