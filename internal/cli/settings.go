package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/armavita/meta-ads-mcp/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage persisted settings",
}

var configSetAppIDCmd = &cobra.Command{
	Use:   "set-app-id <app-id>",
	Short: "Persist the Meta app id in the settings file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.LoadSettings(cfg.SettingsPath())
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		settings.AppID = args[0]
		if err := settings.Save(cfg.SettingsPath()); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		cmd.Printf("App id saved to %s\n", cfg.SettingsPath())
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.Printf("Config directory:  %s\n", cfg.Dir())
		cmd.Printf("Graph version:     %s\n", cfg.GraphVersion)
		cmd.Printf("App id configured: %t\n", cfg.AppID != "")
		cmd.Printf("Secret configured: %t\n", cfg.AppSecret != "")
		cmd.Printf("Auth scope:        %s\n", cfg.AuthScope)
		if cfg.LoginConfigID != "" {
			cmd.Printf("Login config id:   %s\n", cfg.LoginConfigID)
		}
		cmd.Printf("Token cache:       %s\n", cfg.TokenCachePath())
		cmd.Printf("Log file:          %s\n", cfg.LogFilePath())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configSetAppIDCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
