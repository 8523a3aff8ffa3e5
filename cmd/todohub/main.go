// @title           Todohub API
// @version         1.0
// @description     Todo, tag and user CRUD. GraphQL is served at /graphql and MCP at /mcp.
// @host            localhost:8000
// @BasePath        /api

// Package main implements the todohub executable.
package main

import (
	"os"

	"github.com/spf13/cobra"

	_ "github.com/birlikkoshan/todohub/docs"
	"github.com/birlikkoshan/todohub/internal/config"
	"github.com/birlikkoshan/todohub/internal/logging"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "todohub",
	Short: "Todo, tag and user service over REST, GraphQL and MCP",
	Long: `todohub serves todos, tags and users over REST, GraphQL (with websocket
subscriptions) and the Model Context Protocol. Every mutation is published on an
in-process event bus that feeds the GraphQL subscriptions.

Configuration is read from the environment:

` + config.Usage(),
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(migrateCmd)
}

// loadConfig reads the environment and builds the logger for a command.
func loadConfig() (config.Config, *logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.NewLogger(cfg.App.LogLevel), nil
}
