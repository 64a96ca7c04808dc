package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/olushako/vaulty/internal/config"
	"github.com/olushako/vaulty/internal/mcp"
	"github.com/olushako/vaulty/internal/services"
	"github.com/olushako/vaulty/internal/store"
)

var mcpServerCmd = &cobra.Command{
	Use:   "mcp-server",
	Short: "Start Vaulty as an MCP server (stdio)",
	Long: `Start Vaulty as a Model Context Protocol server for AI agent integration.
Communicates over stdin/stdout using JSON-RPC.

The server opens the vault database directly, so it must run on the
machine that holds it, configured with the same environment variables
as the HTTP server. Tool access is scoped by the logged-in token, or by
MASTER_TOKEN when no login is stored.

Configure in .claude/settings.local.json:
  {
    "mcpServers": {
      "vaulty": {
        "command": "vaulty",
        "args": ["mcp-server"]
      }
    }
  }`,
	Hidden: true,
	RunE:   runMCPServer,
}

func init() {
	rootCmd.AddCommand(mcpServerCmd)
}

func runMCPServer(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	boltStore, err := store.NewBoltStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer boltStore.Close()

	tokens := services.NewTokenService(boltStore)
	if err := tokens.Bootstrap(cmd.Context(), cfg.Security.MasterToken); err != nil {
		return fmt.Errorf("failed to bootstrap master token: %w", err)
	}

	deps := mcp.Services{
		Auth:     services.NewAuthService(boltStore),
		Projects: services.NewProjectService(boltStore),
		Secrets:  services.NewSecretService(boltStore, cfg.Security.KeyMaterial),
		Devices:  services.NewDeviceService(boltStore, cfg.Security.KeyMaterial),
		Activity: services.NewActivityService(boltStore, cfg.Security.ActivityRetention),
	}

	token := getToken()
	if token == "" {
		token = cfg.Security.MasterToken
	}

	srv, err := mcp.NewServer(cmd.Context(), deps, token)
	if err != nil {
		return fmt.Errorf("failed to start MCP server: %w", err)
	}
	return srv.Run(cmd.Context())
}
