package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/armavita/meta-ads-mcp/internal/oauth"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with Meta via the browser OAuth flow",
	Long: `Open the Meta authorization dialog in your browser and cache the
resulting access token for MCP tool calls.

Requires META_APP_ID and META_APP_SECRET. The app id can also be persisted
with 'meta-ads-mcp config set-app-id'; the secret is prompted for when not
set in the environment.`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Delete the cached access token",
	RunE: func(cmd *cobra.Command, _ []string) error {
		manager.Invalidate()
		cmd.Println("Logged out. Cached token deleted.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

func runLogin(cmd *cobra.Command, _ []string) error {
	if cfg.AppSecret == "" {
		secret, err := promptSecret(cmd)
		if err != nil {
			return err
		}
		cfg.AppSecret = secret
	}
	return oauth.Login(cmd.Context(), cfg, manager, cmd.OutOrStdout())
}

// promptSecret reads the app secret without echo when attached to a
// terminal. Non-interactive invocations must set META_APP_SECRET.
func promptSecret(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("META_APP_SECRET is not set and stdin is not a terminal")
	}

	cmd.Print("Meta app secret: ")
	secret, err := term.ReadPassword(fd)
	cmd.Println()
	if err != nil {
		return "", fmt.Errorf("reading app secret: %w", err)
	}
	if len(secret) == 0 {
		return "", fmt.Errorf("no app secret provided")
	}
	return string(secret), nil
}
