package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/armavita/meta-ads-mcp/internal/logger"
	"github.com/armavita/meta-ads-mcp/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

By default, the server communicates over stdio using JSON-RPC and can be
used with Claude Desktop and other MCP-compatible AI assistants.

Use --port to start a streamable HTTP server instead.

Examples:
  # Stdio mode (default, for Claude Desktop)
  meta-ads-mcp mcp serve

  # HTTP mode
  meta-ads-mcp mcp serve --port 8765

Claude Desktop configuration (claude_desktop_config.json):
  {
    "mcpServers": {
      "meta-ads": {
        "command": "/path/to/meta-ads-mcp",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	// Adopt tokens written by a concurrent login process.
	stopWatch, err := manager.WatchCache()
	if err != nil {
		logger.Warnf("token cache watcher unavailable: %v", err)
	} else {
		defer stopWatch()
	}

	server := mcp.NewServer(cfg, manager)

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}
	return server.Run(cmd.Context())
}
