package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luminote/luminote/bootstrap"
	"github.com/luminote/luminote/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the luminote HTTP server",
	Long: `Start the luminote server.

The server will:
  - Load configuration from luminote.yaml (or --config)
  - Or load configuration from LUMINOTE_* environment variables
  - Connect to the database and run migrations
  - Serve the SSE generation endpoints
  - Schedule the daily learner-portrait job when enabled

Environment variables (for Docker deployments):
  LUMINOTE_CHAT_API_KEY   - Chat provider API key (required)
  LUMINOTE_MATH_API_KEY   - Math provider API key
  LUMINOTE_DATABASE_PATH  - SQLite path (default: luminote.db)
  LUMINOTE_SERVER_PORT    - Server port (default: 8080)
  LUMINOTE_REDIS_ADDR     - Redis address; enables Redis when set
  LUMINOTE_LOG_LEVEL      - Log level: debug, info, warn, error

Examples:
  luminote serve
  luminote serve --config /etc/luminote/config.yaml

  # Docker (env vars only):
  LUMINOTE_CHAT_API_KEY=sk-... luminote serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	// No configuration at all
	if !hasConfigFile && !config.HasEnvConfig() {
		fmt.Println("No configuration found.")
		fmt.Println()
		fmt.Printf("Option 1: Create %s\n", cfgFile)
		fmt.Println("Option 2: Set LUMINOTE_CHAT_API_KEY environment variable")
		fmt.Println()
		fmt.Println("Example (env vars):")
		fmt.Println("  LUMINOTE_CHAT_API_KEY=sk-... luminote serve")
		return nil
	}

	if !hasConfigFile {
		fmt.Println("Running with environment variables (no config file)")
	}

	app, err := bootstrap.New(bootstrap.Options{ConfigPath: cfgFile})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
