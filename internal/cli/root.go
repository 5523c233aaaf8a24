// Package cli wires the cobra command tree for the meta-ads-mcp binary.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/armavita/meta-ads-mcp/internal/auth"
	"github.com/armavita/meta-ads-mcp/internal/config"
	"github.com/armavita/meta-ads-mcp/internal/logger"
)

const version = "1.0.0"

// Shared across commands; initialized by the persistent pre-run.
var (
	cfg     *config.Config
	manager *auth.Manager
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "meta-ads-mcp",
	Short: "MCP server for the Meta Ads Graph API",
	Long: `meta-ads-mcp exposes Meta (Facebook/Instagram) Ads management as MCP tools.

It handles OAuth login against the Meta Graph API, caches the access token
per user, and serves campaign, ad set, ad, creative, insight, and page
tools to MCP-compatible AI assistants.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load("")
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		if err := logger.Init(cfg.LogFilePath(), verbose); err != nil {
			// A broken log destination should not block the tool.
			fmt.Fprintf(os.Stderr, "warning: could not open log file: %v\n", err)
		}
		manager = auth.NewManager(cfg)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "mirror logs to stderr at debug level")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
