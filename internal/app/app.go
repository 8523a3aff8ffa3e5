// Package app assembles storage, the event bus, services and every transport
// into one HTTP handler.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/birlikkoshan/todohub/internal/cache"
	"github.com/birlikkoshan/todohub/internal/config"
	"github.com/birlikkoshan/todohub/internal/db"
	dom "github.com/birlikkoshan/todohub/internal/domain"
	"github.com/birlikkoshan/todohub/internal/eventbus"
	"github.com/birlikkoshan/todohub/internal/graph"
	"github.com/birlikkoshan/todohub/internal/logging"
	"github.com/birlikkoshan/todohub/internal/mcpserver"
	"github.com/birlikkoshan/todohub/internal/repo"
	"github.com/birlikkoshan/todohub/internal/service"
)

type App struct {
	cfg    config.Config
	log    *logging.Logger
	db     *db.DB
	redis  *redis.Client
	bus    *eventbus.Bus
	todos  *service.TodoService
	tags   *service.TagService
	users  *service.UserService
	graph  *graph.Handler
	mcp    *mcpserver.Server
	router *gin.Engine
}

// New connects to the database and Redis, applies migrations and wires the
// application.
func New(ctx context.Context, cfg config.Config, log *logging.Logger) (*App, error) {
	conn, err := OpenDB(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := conn.Migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb, err = newRedis(ctx, cfg.Redis)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
	} else {
		log.Info("Redis not configured, list cache disabled")
	}

	return Assemble(cfg, log, conn, rdb)
}

// OpenDB opens the configured database without migrating it.
func OpenDB(ctx context.Context, cfg config.DBConfig) (*db.DB, error) {
	dialect, err := db.ParseDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	conn, err := db.Open(ctx, db.Options{
		Dialect:  dialect,
		DSN:      cfg.DSN,
		MaxConns: cfg.MaxConns,
		MinConns: cfg.MinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	return conn, nil
}

// Assemble wires services and transports on top of an open database. rdb may
// be nil, in which case list caching is disabled.
func Assemble(cfg config.Config, log *logging.Logger, conn *db.DB, rdb *redis.Client) (*App, error) {
	a := &App{
		cfg:   cfg,
		log:   log,
		db:    conn,
		redis: rdb,
		bus:   eventbus.New(eventbus.WithBufferSize(cfg.Events.BufferSize)),
	}

	var (
		todoCache *cache.ListCache[dom.Todo]
		tagCache  *cache.ListCache[dom.Tag]
		userCache *cache.ListCache[dom.User]
	)
	if rdb != nil {
		ttl := cfg.Redis.DefaultTTL.Duration()
		todoCache = cache.NewListCache[dom.Todo](rdb, eventbus.EntityTodo, ttl)
		tagCache = cache.NewListCache[dom.Tag](rdb, eventbus.EntityTag, ttl)
		userCache = cache.NewListCache[dom.User](rdb, eventbus.EntityUser, ttl)
	}

	svcLog := log.WithComponent("service")
	a.todos = service.NewTodoService(repo.NewSQLTodoRepo(conn.DB), a.bus, svcLog, todoCache)
	// Tag deletes detach todos, so they also drop the todo list.
	a.tags = service.NewTagService(repo.NewSQLTagRepo(conn.DB), a.bus, svcLog, tagCache, todoCache)
	a.users = service.NewUserService(repo.NewSQLUserRepo(conn.DB), a.bus, svcLog, userCache)

	schema, err := graph.NewSchema(&graph.Resolver{
		Todos:  a.todos,
		Tags:   a.tags,
		Users:  a.users,
		Events: a.bus,
	})
	if err != nil {
		return nil, fmt.Errorf("graphql schema: %w", err)
	}
	a.graph = graph.NewHandler(schema, log)

	a.mcp = mcpserver.New(mcpserver.Services{
		Todos: a.todos,
		Tags:  a.tags,
		Users: a.users,
	}, mcpserver.Options{Version: cfg.App.Version, Logger: log})

	a.router = newRouter(a)
	return a, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// MCP returns the MCP server, used directly by the stdio transport.
func (a *App) MCP() *mcpserver.Server {
	return a.mcp
}

// Bus returns the event bus.
func (a *App) Bus() *eventbus.Bus {
	return a.bus
}

// CloseStreams ends every websocket connection and GraphQL subscription.
// It is safe to call more than once.
func (a *App) CloseStreams() {
	a.graph.WS().Close()
	a.bus.Shutdown()
}

// Close ends open subscriptions and releases Redis and the database. The
// database pool waits for acquired connections, so ctx bounds how long Close
// blocks; the release keeps running in the background after ctx is done.
func (a *App) Close(ctx context.Context) error {
	a.CloseStreams()

	done := make(chan error, 1)
	go func() {
		var errs []error
		if a.redis != nil {
			errs = append(errs, a.redis.Close())
		}
		if a.db != nil {
			errs = append(errs, a.db.Close())
		}
		done <- errors.Join(errs...)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("close: %w", ctx.Err())
	}
}

func newRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return rdb, nil
}

func newRouter(a *App) *gin.Engine {
	r := gin.New()
	if gin.Mode() != gin.TestMode {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			"Mcp-Session-Id", "Mcp-Protocol-Version", "Last-Event-ID",
		},
		ExposeHeaders: []string{"Content-Length", "Content-Type", "Mcp-Session-Id"},
		MaxAge:        12 * time.Hour,
	}))

	Setup(r, a)
	a.log.Debug("Routes registered", slog.Int("count", len(r.Routes())))
	return r
}
