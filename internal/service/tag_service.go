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

type CreateTagInput struct {
	Name  string  `json:"name" validate:"required,max=50"`
	Color *string `json:"color" validate:"omitnil,hexcolor6"`
}

type UpdateTagInput struct {
	Name  *string `json:"name" validate:"omitnil,min=1,max=50"`
	Color *string `json:"color" validate:"omitnil,hexcolor6"`
}

type TagService struct {
	base[dom.Tag]
	repo repo.TagRepo
}

// NewTagService creates a TagService. If c is nil, caching is disabled.
// dependents are invalidated on every tag mutation, since removing a tag
// changes the tag ids of the todos that carried it.
func NewTagService(r repo.TagRepo, bus eventbus.Publisher, log *logging.Logger, c *cache.ListCache[dom.Tag], dependents ...Invalidator) *TagService {
	return &TagService{base: newBase(eventbus.EntityTag, bus, log, c, dependents), repo: r}
}

func (s *TagService) Create(ctx context.Context, in CreateTagInput) (dom.Tag, error) {
	const op = "create"
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return dom.Tag{}, s.fail(op, "", err)
	}

	now := repo.Now()
	s.log.Info("Creating new tag", slog.String("name", in.Name))
	ctx = context.WithoutCancel(ctx)
	created, err := s.repo.Create(ctx, dom.Tag{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Color:     in.Color,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return dom.Tag{}, s.fail(op, "", err)
	}
	s.log.Info("Successfully created tag", slog.String("id", created.ID))
	s.committed(ctx, eventbus.KindAdded, created)
	return created, nil
}

func (s *TagService) FindOne(ctx context.Context, id string) (dom.Tag, error) {
	const op = "findOne"
	if err := s.checkID(op, id); err != nil {
		return dom.Tag{}, err
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dom.Tag{}, s.fail(op, id, err)
	}
	return t, nil
}

func (s *TagService) FindAll(ctx context.Context) ([]dom.Tag, error) {
	list, err := s.list(ctx, s.repo.List)
	if err != nil {
		return nil, s.fail("findAll", "", err)
	}
	return list, nil
}

// FindByTodo returns the tags attached to todoID.
func (s *TagService) FindByTodo(ctx context.Context, todoID string) ([]dom.Tag, error) {
	const op = "findByTodo"
	if err := s.checkID(op, todoID); err != nil {
		return nil, err
	}
	list, err := s.repo.ListByTodo(ctx, todoID)
	if err != nil {
		return nil, s.fail(op, todoID, err)
	}
	return list, nil
}

func (s *TagService) Update(ctx context.Context, id string, in UpdateTagInput) (dom.Tag, error) {
	const op = "update"
	if err := s.checkID(op, id); err != nil {
		return dom.Tag{}, err
	}
	in.Name = trimPtr(in.Name)
	if err := validate.Struct(in); err != nil {
		return dom.Tag{}, s.fail(op, id, err)
	}

	ctx = context.WithoutCancel(ctx)
	patch, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dom.Tag{}, s.fail(op, id, err)
	}
	if in.Name != nil {
		patch.Name = *in.Name
	}
	if in.Color != nil {
		patch.Color = in.Color
	}
	patch.UpdatedAt = repo.Now()

	updated, err := s.repo.Update(ctx, patch)
	if err != nil {
		return dom.Tag{}, s.fail(op, id, err)
	}
	s.log.Info("Successfully updated tag", slog.String("id", id))
	s.committed(ctx, eventbus.KindUpdated, updated)
	return updated, nil
}

// Remove deletes the tag and returns its last snapshot. Every todo that
// carried the tag is published as updated.
func (s *TagService) Remove(ctx context.Context, id string) (dom.Tag, error) {
	const op = "remove"
	if err := s.checkID(op, id); err != nil {
		return dom.Tag{}, err
	}
	ctx = context.WithoutCancel(ctx)
	deleted, detached, err := s.repo.Delete(ctx, id)
	if err != nil {
		return dom.Tag{}, s.fail(op, id, err)
	}
	s.log.Info("Successfully deleted tag", slog.String("id", id), slog.Int("detached", len(detached)))
	s.committed(ctx, eventbus.KindDeleted, deleted)
	for _, t := range detached {
		s.publish(eventbus.TodosUpdated, t)
	}
	return deleted, nil
}
