// Package eventbus provides the in-process publish/subscribe bus that carries
// post-mutation entity snapshots to subscribers.
package eventbus

import (
	"context"
	"time"
)

// Kind is the mutation that produced an event.
type Kind string

const (
	KindAdded   Kind = "Added"
	KindUpdated Kind = "Updated"
	KindDeleted Kind = "Deleted"
)

// Entity types carried on the bus.
const (
	EntityTodo = "todo"
	EntityTag  = "tag"
	EntityUser = "user"
)

// Event names, one per entity type and kind.
const (
	TodosAdded   = "todosAdded"
	TodosUpdated = "todosUpdated"
	TodosDeleted = "todosDeleted"
	TagsAdded    = "tagsAdded"
	TagsUpdated  = "tagsUpdated"
	TagsDeleted  = "tagsDeleted"
	UsersAdded   = "usersAdded"
	UsersUpdated = "usersUpdated"
	UsersDeleted = "usersDeleted"
)

// Name returns the event name for an entity type and kind, e.g. "todosAdded".
func Name(entity string, kind Kind) string {
	return entity + "s" + string(kind)
}

// Event is a single notification delivered to subscribers.
type Event struct {
	Name      string
	Kind      Kind
	Entity    string
	Payload   any
	Timestamp time.Time
}

// Publisher is the interface services use to emit events.
type Publisher interface {
	Publish(name string, payload any)
}

// Subscriber is the interface subscription adapters use to observe events.
type Subscriber interface {
	Subscribe(ctx context.Context, name string) <-chan Event
}

// PubSub combines Publisher and Subscriber.
type PubSub interface {
	Publisher
	Subscriber
}
