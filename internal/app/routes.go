package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/swag"

	"github.com/birlikkoshan/todohub/internal/config"
	"github.com/birlikkoshan/todohub/internal/handlers"
	"github.com/birlikkoshan/todohub/internal/logging"
)

// Setup registers all routes on the given engine.
func Setup(r *gin.Engine, a *App) {
	r.GET("/", rootHandler(a.cfg))
	r.GET("/health", healthHandler(a))
	r.GET("/version", versionHandler(a.cfg))
	r.GET("/swagger-doc.json", swaggerDocHandler())
	r.GET("/swagger", func(c *gin.Context) { c.Redirect(http.StatusFound, "/swagger/index.html") })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(
		swaggerFiles.Handler,
		ginSwagger.URL("/swagger-doc.json"),
		ginSwagger.DefaultModelsExpandDepth(-1),
	))

	api := r.Group("/api")
	handlers.NewTodoHandler(a.todos).Register(api)
	handlers.NewTagHandler(a.tags).Register(api)
	handlers.NewUserHandler(a.users).Register(api)

	graphql := gin.WrapH(a.graph)
	r.GET("/graphql", graphql)
	r.POST("/graphql", graphql)

	mcp := gin.WrapH(a.mcp.HTTPHandler())
	stream := noWriteDeadline(a.log)
	r.GET("/mcp", stream, mcp)
	r.POST("/mcp", stream, mcp)
	r.DELETE("/mcp", stream, mcp)

	r.GET("/debug/events", eventsHandler(a))
}

func rootHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "Todohub",
			"version": cfg.App.Version,
			"env":     cfg.App.Env,
			"docs":    "/swagger/index.html",
			"spec":    "/swagger-doc.json",
			"health":  "/health",
			"api":     "/api",
			"graphql": "/graphql",
			"mcp":     "/mcp",
		})
	}
}

func healthHandler(a *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := gin.H{"ok": true, "env": a.cfg.App.Env, "db": "up"}
		if err := a.db.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["ok"] = false
			body["db"] = err.Error()
		}
		if a.redis != nil {
			body["redis"] = "up"
			if err := a.redis.Ping(ctx).Err(); err != nil {
				// The cache is optional; requests fall back to the database.
				body["redis"] = err.Error()
			}
		}
		c.JSON(status, body)
	}
}

func versionHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": cfg.App.Version})
	}
}

func swaggerDocHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := swag.ReadDoc("swagger")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
	}
}

func eventsHandler(a *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"bus":        a.bus.Metrics(),
			"websockets": a.graph.WS().ConnectionCount(),
		})
	}
}

// noWriteDeadline lifts the server write timeout for the request, so SSE
// streams outlive HTTP_WRITE_TIMEOUT.
func noWriteDeadline(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err != nil {
			log.Debug("write deadline not cleared", slog.Any("error", err))
		}
		c.Next()
	}
}
