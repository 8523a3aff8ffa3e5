package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/birlikkoshan/todohub/internal/apperr"
	"github.com/birlikkoshan/todohub/internal/cache"
	dom "github.com/birlikkoshan/todohub/internal/domain"
	"github.com/birlikkoshan/todohub/internal/eventbus"
	"github.com/birlikkoshan/todohub/internal/logging"
	"github.com/birlikkoshan/todohub/internal/repo"
)

// CreateTodoInput holds the fields accepted when creating a todo.
type CreateTodoInput struct {
	Title       string        `json:"title" validate:"required,max=100"`
	Description *string       `json:"description" validate:"omitnil,max=500"`
	Completed   *bool         `json:"completed"`
	Priority    *dom.Priority `json:"priority" validate:"omitnil,oneof=LOW MEDIUM HIGH"`
	StartDate   *time.Time    `json:"startDate"`
	DueDate     *time.Time    `json:"dueDate"`
	UserID      string        `json:"userId" validate:"required,uuid"`
	TagIDs      []string      `json:"tagIds" validate:"omitempty,dive,uuid"`
}

// UpdateTodoInput is a partial patch: nil fields are left unchanged. A non-nil
// TagIDs replaces the whole tag set.
type UpdateTodoInput struct {
	Title       *string       `json:"title" validate:"omitnil,min=1,max=100"`
	Description *string       `json:"description" validate:"omitnil,max=500"`
	Completed   *bool         `json:"completed"`
	Priority    *dom.Priority `json:"priority" validate:"omitnil,oneof=LOW MEDIUM HIGH"`
	StartDate   *time.Time    `json:"startDate"`
	DueDate     *time.Time    `json:"dueDate"`
	UserID      *string       `json:"userId" validate:"omitnil,uuid"`
	TagIDs      []string      `json:"tagIds" validate:"omitempty,dive,uuid"`
}

type TodoService struct {
	base[dom.Todo]
	repo repo.TodoRepo
}

// NewTodoService creates a TodoService. If c is nil, caching is disabled.
func NewTodoService(r repo.TodoRepo, bus eventbus.Publisher, log *logging.Logger, c *cache.ListCache[dom.Todo]) *TodoService {
	return &TodoService{base: newBase(eventbus.EntityTodo, bus, log, c, nil), repo: r}
}

func (s *TodoService) Create(ctx context.Context, in CreateTodoInput) (dom.Todo, error) {
	const op = "create"
	in.Title = strings.TrimSpace(in.Title)
	if err := validate.Struct(in); err != nil {
		return dom.Todo{}, s.fail(op, "", err)
	}
	if err := checkDates(in.StartDate, in.DueDate); err != nil {
		return dom.Todo{}, s.fail(op, "", err)
	}

	now := repo.Now()
	t := dom.Todo{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: trimPtr(in.Description),
		Priority:    dom.PriorityMedium,
		StartDate:   in.StartDate,
		DueDate:     in.DueDate,
		UserID:      in.UserID,
		TagIDs:      dedupe(in.TagIDs),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Completed != nil {
		t.Completed = *in.Completed
	}
	if in.Priority != nil {
		t.Priority = *in.Priority
	}

	s.log.Info("Creating new todo", slog.String("title", t.Title))
	ctx = context.WithoutCancel(ctx)
	created, err := s.repo.Create(ctx, t)
	if err != nil {
		return dom.Todo{}, s.fail(op, "", err)
	}
	s.log.Info("Successfully created todo", slog.String("id", created.ID))
	s.committed(ctx, eventbus.KindAdded, created)
	return created, nil
}

func (s *TodoService) FindOne(ctx context.Context, id string) (dom.Todo, error) {
	const op = "findOne"
	if err := s.checkID(op, id); err != nil {
		return dom.Todo{}, err
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dom.Todo{}, s.fail(op, id, err)
	}
	return t, nil
}

func (s *TodoService) FindAll(ctx context.Context) ([]dom.Todo, error) {
	list, err := s.list(ctx, s.repo.List)
	if err != nil {
		return nil, s.fail("findAll", "", err)
	}
	return list, nil
}

// FindByUser returns the todos owned by userID.
func (s *TodoService) FindByUser(ctx context.Context, userID string) ([]dom.Todo, error) {
	const op = "findByUser"
	if err := s.checkID(op, userID); err != nil {
		return nil, err
	}
	list, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.fail(op, userID, err)
	}
	return list, nil
}

// FindByTag returns the todos carrying tagID.
func (s *TodoService) FindByTag(ctx context.Context, tagID string) ([]dom.Todo, error) {
	const op = "findByTag"
	if err := s.checkID(op, tagID); err != nil {
		return nil, err
	}
	list, err := s.repo.ListByTag(ctx, tagID)
	if err != nil {
		return nil, s.fail(op, tagID, err)
	}
	return list, nil
}

func (s *TodoService) Update(ctx context.Context, id string, in UpdateTodoInput) (dom.Todo, error) {
	const op = "update"
	if err := s.checkID(op, id); err != nil {
		return dom.Todo{}, err
	}
	in.Title = trimPtr(in.Title)
	if err := validate.Struct(in); err != nil {
		return dom.Todo{}, s.fail(op, id, err)
	}

	ctx = context.WithoutCancel(ctx)
	patch, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dom.Todo{}, s.fail(op, id, err)
	}
	if in.Title != nil {
		patch.Title = *in.Title
	}
	if in.Description != nil {
		patch.Description = trimPtr(in.Description)
	}
	if in.Completed != nil {
		patch.Completed = *in.Completed
	}
	if in.Priority != nil {
		patch.Priority = *in.Priority
	}
	if in.StartDate != nil {
		patch.StartDate = in.StartDate
	}
	if in.DueDate != nil {
		patch.DueDate = in.DueDate
	}
	if in.UserID != nil {
		patch.UserID = *in.UserID
	}
	if in.TagIDs != nil {
		patch.TagIDs = dedupe(in.TagIDs)
	}
	if err := checkDates(patch.StartDate, patch.DueDate); err != nil {
		return dom.Todo{}, s.fail(op, id, err)
	}
	patch.UpdatedAt = repo.Now()

	updated, err := s.repo.Update(ctx, patch, in.TagIDs != nil)
	if err != nil {
		return dom.Todo{}, s.fail(op, id, err)
	}
	s.log.Info("Successfully updated todo", slog.String("id", id))
	s.committed(ctx, eventbus.KindUpdated, updated)
	return updated, nil
}

// Remove deletes the todo and returns its last snapshot.
func (s *TodoService) Remove(ctx context.Context, id string) (dom.Todo, error) {
	const op = "remove"
	if err := s.checkID(op, id); err != nil {
		return dom.Todo{}, err
	}
	ctx = context.WithoutCancel(ctx)
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return dom.Todo{}, s.fail(op, id, err)
	}
	s.log.Info("Successfully deleted todo", slog.String("id", id))
	s.committed(ctx, eventbus.KindDeleted, deleted)
	return deleted, nil
}

func checkDates(start, due *time.Time) error {
	if start != nil && due != nil && due.Before(*start) {
		return apperr.InvalidInput("Due date must be after start date")
	}
	return nil
}
