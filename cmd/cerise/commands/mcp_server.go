package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/vmoranv/cerise/internal/app"
	"github.com/vmoranv/cerise/internal/config"
	"github.com/vmoranv/cerise/internal/mcp"
)

var mcpServerCmd = &cobra.Command{
	Use:   "mcp-server",
	Short: "Expose the ability registry as an MCP server over stdio",
	Long: `Serve every registered ability's schema as an MCP tool over framed
stdio, the same round-trip opencode's calculator-mcp demo exercises,
grounded on the Capability Scheduler instead of a single demo tool.`,
	RunE: runMCPServer,
}

func runMCPServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(dataDir())
	if err != nil {
		return err
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	a.DiscoverPlugins(context.Background())

	srv := mcp.NewStdioAbilityServer(a.Scheduler, mcp.ServerConfig{
		DefaultUserID:    "cli",
		DefaultSessionID: "mcp-server",
	})
	return srv.Serve(context.Background(), os.Stdin, os.Stdout)
}
