package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/birlikkoshan/todohub/internal/cache"
	"github.com/birlikkoshan/todohub/internal/db/dbtest"
	dom "github.com/birlikkoshan/todohub/internal/domain"
	"github.com/birlikkoshan/todohub/internal/eventbus"
	"github.com/birlikkoshan/todohub/internal/logging"
	"github.com/birlikkoshan/todohub/internal/repo"
)

type fixture struct {
	bus   *eventbus.Bus
	todos *TodoService
	tags  *TagService
	users *UserService
	redis *miniredis.Miniredis
}

type fixtureOpt func(*fixtureConfig)

type fixtureConfig struct{ cached bool }

func withCache() fixtureOpt { return func(c *fixtureConfig) { c.cached = true } }

func newFixture(t *testing.T, opts ...fixtureOpt) *fixture {
	t.Helper()
	var cfg fixtureConfig
	for _, o := range opts {
		o(&cfg)
	}

	conn := dbtest.Open(t)
	bus := eventbus.New()
	t.Cleanup(bus.Shutdown)
	log := logging.Discard()

	f := &fixture{bus: bus}
	var (
		todoCache *cache.ListCache[dom.Todo]
		tagCache  *cache.ListCache[dom.Tag]
		userCache *cache.ListCache[dom.User]
	)
	if cfg.cached {
		f.redis = miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: f.redis.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		todoCache = cache.NewListCache[dom.Todo](rdb, "todo", time.Minute)
		tagCache = cache.NewListCache[dom.Tag](rdb, "tag", time.Minute)
		userCache = cache.NewListCache[dom.User](rdb, "user", time.Minute)
	}

	f.todos = NewTodoService(repo.NewSQLTodoRepo(conn.DB), bus, log, todoCache)
	f.tags = NewTagService(repo.NewSQLTagRepo(conn.DB), bus, log, tagCache, todoCache)
	f.users = NewUserService(repo.NewSQLUserRepo(conn.DB), bus, log, userCache)
	return f
}

// subscribe registers on the bus for the lifetime of the test.
func (f *fixture) subscribe(t *testing.T, name string) <-chan eventbus.Event {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return f.bus.Subscribe(ctx, name)
}

func (f *fixture) user(t *testing.T, email string) dom.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), CreateUserInput{Email: email})
	require.NoError(t, err)
	return u
}

func (f *fixture) tag(t *testing.T, name string) dom.Tag {
	t.Helper()
	tag, err := f.tags.Create(context.Background(), CreateTagInput{Name: name})
	require.NoError(t, err)
	return tag
}

func receive(t *testing.T, ch <-chan eventbus.Event) eventbus.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return eventbus.Event{}
	}
}

func assertNoEvent(t *testing.T, ch <-chan eventbus.Event) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %q", ev.Name)
	case <-time.After(50 * time.Millisecond):
	}
}

func ptr[T any](v T) *T { return &v }
