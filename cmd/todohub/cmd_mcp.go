package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/birlikkoshan/todohub/internal/app"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tools and resources over stdio",
	Long: `Serve the MCP tools and resources over stdin/stdout for clients that spawn
the server as a subprocess. Logs are written to stderr.`,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("app init: %w", err)
	}
	defer func() {
		if err := application.Close(context.Background()); err != nil {
			logger.Error("Close failed", slog.Any("error", err))
		}
	}()

	logger.Info("MCP server starting on stdio",
		slog.String("version", cfg.App.Version),
		slog.Int("tools", len(application.MCP().ToolNames())),
	)
	return application.MCP().ServeStdio(ctx)
}
