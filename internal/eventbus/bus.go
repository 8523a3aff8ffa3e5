package eventbus

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBufferSize is the default channel buffer for subscribers.
const DefaultBufferSize = 64

// Option configures a Bus.
type Option func(*Bus)

// WithBufferSize sets the subscriber channel buffer size.
func WithBufferSize(size int) Option {
	return func(b *Bus) {
		if size > 0 {
			b.bufferSize = size
		}
	}
}

type subscription struct {
	id uint64
	ch chan Event
}

// Bus maps event names to the ordered list of subscribers registered under
// them. Publish never blocks on a slow subscriber: when a subscriber buffer is
// full the event is dropped for that subscriber and counted.
type Bus struct { //nolint:govet // fieldalignment: preserving logical field order
	subs       map[string][]*subscription
	mu         sync.RWMutex
	done       chan struct{}
	bufferSize int
	nextID     uint64

	publishCount   atomic.Int64
	deliverCount   atomic.Int64
	dropCount      atomic.Int64
	subscriberPeak atomic.Int32
	subscriberCurr atomic.Int32
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		subs:       make(map[string][]*subscription),
		done:       make(chan struct{}),
		bufferSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a new channel under name. The channel receives events
// published after this call returns and is closed when ctx is done or the bus
// shuts down.
func (b *Bus) Subscribe(ctx context.Context, name string) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		ch := make(chan Event)
		close(ch)
		return ch
	default:
	}

	b.nextID++
	sub := &subscription{id: b.nextID, ch: make(chan Event, b.bufferSize)}
	b.subs[name] = append(b.subs[name], sub)

	curr := b.subscriberCurr.Add(1)
	for {
		peak := b.subscriberPeak.Load()
		if curr <= peak || b.subscriberPeak.CompareAndSwap(peak, curr) {
			break
		}
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
		}
		b.unsubscribe(name, sub.id)
	}()

	return sub.ch
}

func (b *Bus) unsubscribe(name string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[name]
	for i, sub := range list {
		if sub.id != id {
			continue
		}
		// Copy so snapshots taken by in-flight publishes stay intact.
		next := make([]*subscription, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if len(next) == 0 {
			delete(b.subs, name)
		} else {
			b.subs[name] = next
		}
		close(sub.ch)
		b.subscriberCurr.Add(-1)
		return
	}
}

// Publish delivers payload to every subscriber of name in registration order.
func (b *Bus) Publish(name string, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	select {
	case <-b.done:
		return
	default:
	}

	b.publishCount.Add(1)
	subscribers := b.subs[name]
	if len(subscribers) == 0 {
		return
	}

	event := Event{
		Name:      name,
		Kind:      kindOf(name),
		Entity:    entityOf(name),
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	// Sends happen under the read lock so unsubscribe cannot close a channel
	// mid-send. They never block.
	for _, sub := range subscribers {
		select {
		case sub.ch <- event:
			b.deliverCount.Add(1)
		default:
			b.dropCount.Add(1)
		}
	}
}

// Shutdown closes every subscriber channel. Later publishes are ignored and
// later subscriptions receive an already closed channel.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		return
	default:
		close(b.done)
	}

	for name, list := range b.subs {
		for _, sub := range list {
			close(sub.ch)
		}
		delete(b.subs, name)
	}
	b.subscriberCurr.Store(0)
}

// IsShutdown returns true if the bus has been shut down.
func (b *Bus) IsShutdown() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// SubscriberCount returns the number of active subscribers for name.
func (b *Bus) SubscriberCount(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name])
}

// Metrics returns counters for debugging.
func (b *Bus) Metrics() Metrics {
	b.mu.RLock()
	perEvent := make(map[string]int, len(b.subs))
	for name, list := range b.subs {
		perEvent[name] = len(list)
	}
	b.mu.RUnlock()

	return Metrics{
		PublishCount:    b.publishCount.Load(),
		DeliverCount:    b.deliverCount.Load(),
		DropCount:       b.dropCount.Load(),
		SubscriberCount: int(b.subscriberCurr.Load()),
		SubscriberPeak:  int(b.subscriberPeak.Load()),
		Subscribers:     perEvent,
	}
}

// Metrics contains bus statistics.
type Metrics struct {
	PublishCount    int64          `json:"publishCount"`
	DeliverCount    int64          `json:"deliverCount"`
	DropCount       int64          `json:"dropCount"`
	SubscriberCount int            `json:"subscriberCount"`
	SubscriberPeak  int            `json:"subscriberPeak"`
	Subscribers     map[string]int `json:"subscribers"`
}

func kindOf(name string) Kind {
	for _, k := range []Kind{KindAdded, KindUpdated, KindDeleted} {
		if strings.HasSuffix(name, string(k)) {
			return k
		}
	}
	return ""
}

func entityOf(name string) string {
	k := kindOf(name)
	if k == "" {
		return ""
	}
	return strings.TrimSuffix(strings.TrimSuffix(name, string(k)), "s")
}
