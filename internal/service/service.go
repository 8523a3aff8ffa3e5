// Package service holds the entity services. Every successful mutation is
// persisted first and then published on the event bus with the resulting
// snapshot.
package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/birlikkoshan/todohub/internal/apperr"
	"github.com/birlikkoshan/todohub/internal/cache"
	"github.com/birlikkoshan/todohub/internal/eventbus"
	"github.com/birlikkoshan/todohub/internal/logging"
)

// Invalidator drops a cached view that a mutation made stale.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// base carries what every entity service shares: event publishing, the
// optional list cache and error reporting.
type base[T any] struct {
	entity     string
	bus        eventbus.Publisher
	log        *logging.Logger
	cache      *cache.ListCache[T]
	dependents []Invalidator
	sf         singleflight.Group
}

func newBase[T any](entity string, bus eventbus.Publisher, log *logging.Logger, c *cache.ListCache[T], dependents []Invalidator) base[T] {
	if log == nil {
		log = logging.Discard()
	}
	return base[T]{
		entity:     entity,
		bus:        bus,
		log:        log.WithComponent("service").WithEntity(entity),
		cache:      c,
		dependents: dependents,
	}
}

// list serves FindAll through the cache when one is configured. Concurrent
// misses share a single load.
func (b *base[T]) list(ctx context.Context, load func(context.Context) ([]T, error)) ([]T, error) {
	if b.cache == nil {
		return load(ctx)
	}
	v, err, _ := b.sf.Do(b.entity, func() (interface{}, error) {
		list, ok, err := b.cache.Get(ctx)
		if err != nil {
			b.log.Debug("cache read failed", slog.Any("error", err))
		}
		if ok {
			return list, nil
		}
		list, err = load(ctx)
		if err != nil {
			return nil, err
		}
		if err := b.cache.Set(ctx, list); err != nil {
			b.log.Debug("cache write failed", slog.Any("error", err))
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]T), nil
}

// committed runs after a mutation has been persisted: it drops stale cache
// entries and publishes the snapshot.
func (b *base[T]) committed(ctx context.Context, kind eventbus.Kind, snapshot T) {
	for _, inv := range append([]Invalidator{b.cache}, b.dependents...) {
		if err := inv.Invalidate(ctx); err != nil {
			b.log.Warn("cache invalidation failed", slog.Any("error", err))
		}
	}
	b.publish(eventbus.Name(b.entity, kind), snapshot)
}

func (b *base[T]) publish(name string, payload any) {
	if b.bus == nil {
		return
	}
	b.bus.Publish(name, payload)
	b.log.Debug("Published " + name + " event")
}

// fail classifies err, annotates it with the operation and logs it.
func (b *base[T]) fail(op, id string, err error) error {
	ae := apperr.Classify(err)
	if ae.Kind == apperr.KindNotFound && id != "" {
		ae = apperr.NotFound(b.entity, id)
	}
	ae = ae.With(b.entity, op, id)

	attrs := []any{slog.String("op", op), slog.String("kind", ae.Kind.String())}
	if id != "" {
		attrs = append(attrs, slog.String("id", id))
	}
	if ae.Cause != nil {
		attrs = append(attrs, slog.Any("cause", ae.Cause))
	}
	if ae.Kind == apperr.KindInternal {
		b.log.Error(ae.Message, attrs...)
	} else {
		b.log.Warn(ae.Message, attrs...)
	}
	return ae
}

// checkID rejects ids that are not UUIDs before they reach the database.
func (b *base[T]) checkID(op, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return b.fail(op, id, apperr.InvalidInput("Invalid %s id: %s", b.entity, id))
	}
	return nil
}
