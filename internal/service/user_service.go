package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/birlikkoshan/todohub/internal/cache"
	dom "github.com/birlikkoshan/todohub/internal/domain"
	"github.com/birlikkoshan/todohub/internal/eventbus"
	"github.com/birlikkoshan/todohub/internal/logging"
	"github.com/birlikkoshan/todohub/internal/repo"
)

type CreateUserInput struct {
	Email string  `json:"email" validate:"required,email"`
	Name  *string `json:"name" validate:"omitnil,min=1,max=100"`
}

type UpdateUserInput struct {
	Email *string `json:"email" validate:"omitnil,email"`
	Name  *string `json:"name" validate:"omitnil,min=1,max=100"`
}

// UserService manages users.
type UserService struct {
	base[dom.User]
	repo repo.UserRepo
}

// NewUserService creates a UserService. If c is nil, caching is disabled.
func NewUserService(r repo.UserRepo, bus eventbus.Publisher, log *logging.Logger, c *cache.ListCache[dom.User]) *UserService {
	return &UserService{base: newBase(eventbus.EntityUser, bus, log, c, nil), repo: r}
}

func (s *UserService) Create(ctx context.Context, in CreateUserInput) (dom.User, error) {
	const op = "create"
	in.Email = strings.TrimSpace(in.Email)
	in.Name = trimPtr(in.Name)
	if err := validate.Struct(in); err != nil {
		return dom.User{}, s.fail(op, "", err)
	}

	now := repo.Now()
	s.log.Info("Creating new user", slog.String("email", in.Email))
	ctx = context.WithoutCancel(ctx)
	created, err := s.repo.Create(ctx, dom.User{
		ID:        uuid.NewString(),
		Email:     in.Email,
		Name:      in.Name,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return dom.User{}, s.fail(op, "", err)
	}
	s.log.Info("Successfully created user", slog.String("id", created.ID))
	s.committed(ctx, eventbus.KindAdded, created)
	return created, nil
}

func (s *UserService) FindOne(ctx context.Context, id string) (dom.User, error) {
	const op = "findOne"
	if err := s.checkID(op, id); err != nil {
		return dom.User{}, err
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dom.User{}, s.fail(op, id, err)
	}
	return u, nil
}

func (s *UserService) FindAll(ctx context.Context) ([]dom.User, error) {
	list, err := s.list(ctx, s.repo.List)
	if err != nil {
		return nil, s.fail("findAll", "", err)
	}
	return list, nil
}

func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (dom.User, error) {
	const op = "update"
	if err := s.checkID(op, id); err != nil {
		return dom.User{}, err
	}
	in.Email = trimPtr(in.Email)
	in.Name = trimPtr(in.Name)
	if err := validate.Struct(in); err != nil {
		return dom.User{}, s.fail(op, id, err)
	}

	ctx = context.WithoutCancel(ctx)
	patch, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dom.User{}, s.fail(op, id, err)
	}
	if in.Email != nil {
		patch.Email = *in.Email
	}
	if in.Name != nil {
		patch.Name = in.Name
	}
	patch.UpdatedAt = repo.Now()

	updated, err := s.repo.Update(ctx, patch)
	if err != nil {
		return dom.User{}, s.fail(op, id, err)
	}
	s.log.Info("Successfully updated user", slog.String("id", id))
	s.committed(ctx, eventbus.KindUpdated, updated)
	return updated, nil
}

// Remove deletes the user and returns their last snapshot. Users who still
// own todos cannot be removed.
func (s *UserService) Remove(ctx context.Context, id string) (dom.User, error) {
	const op = "remove"
	if err := s.checkID(op, id); err != nil {
		return dom.User{}, err
	}
	ctx = context.WithoutCancel(ctx)
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return dom.User{}, s.fail(op, id, err)
	}
	s.log.Info("Successfully deleted user", slog.String("id", id))
	s.committed(ctx, eventbus.KindDeleted, deleted)
	return deleted, nil
}
