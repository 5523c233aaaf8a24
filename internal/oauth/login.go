package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/armavita/meta-ads-mcp/internal/auth"
	"github.com/armavita/meta-ads-mcp/internal/config"
	"github.com/armavita/meta-ads-mcp/internal/logger"
)

// LoginTimeout bounds the total wait for the browser flow to complete.
const LoginTimeout = 300 * time.Second

// ErrLoginTimeout is returned when the user never completes the browser
// flow within LoginTimeout.
var ErrLoginTimeout = errors.New("timed out waiting for authentication, please try again")

// loginTimeout is overridable in tests.
var loginTimeout = LoginTimeout

var (
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")).Bold(true)
	urlStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Underline(true)
)

// Login runs the interactive browser OAuth flow: start the callback server,
// open the authorization URL, wait for the callback handler to finish the
// exchange. Progress is written to out. The callback server is always torn
// down before returning.
func Login(ctx context.Context, cfg *config.Config, manager *auth.Manager, out io.Writer) error {
	if !cfg.IsConfigured() {
		fmt.Fprintln(out, errorStyle.Render("Meta app credentials are not configured."))
		fmt.Fprintln(out, "Set META_APP_ID and META_APP_SECRET, or run: meta-ads-mcp config set-app-id <id>")
		return errors.New("app credentials not configured")
	}

	server := NewCallbackServer(cfg, manager)
	if _, err := server.Start(); err != nil {
		return fmt.Errorf("starting callback server: %w", err)
	}
	defer server.Stop()

	state, err := newStateNonce()
	if err != nil {
		return fmt.Errorf("generating state nonce: %w", err)
	}
	server.Reset(state)

	authURL := manager.AuthURL(server.RedirectURI(), state)
	logger.Infof("login started, callback on port %d", server.Port())

	fmt.Fprintln(out, infoStyle.Render("Opening your browser to authenticate with Meta..."))
	fmt.Fprintln(out, "If the browser does not open, visit:")
	fmt.Fprintln(out, "  "+urlStyle.Render(authURL))
	fmt.Fprintln(out)

	if err := OpenBrowser(authURL); err != nil {
		logger.Warnf("opening browser: %v", err)
		fmt.Fprintln(out, "Could not open a browser automatically, use the URL above.")
	}

	select {
	case result := <-server.Results():
		if result.Err != nil {
			fmt.Fprintln(out, errorStyle.Render("Authentication failed: ")+result.Err.Error())
			return result.Err
		}
		fmt.Fprintln(out, successStyle.Render("Authentication successful."))
		if result.Token.UserID != "" {
			fmt.Fprintf(out, "Logged in as user %s.\n", result.Token.UserID)
		}
		fmt.Fprintln(out, "Token cached at "+manager.Cache().Path())
		return nil
	case <-time.After(loginTimeout):
		fmt.Fprintln(out, errorStyle.Render(ErrLoginTimeout.Error()))
		return ErrLoginTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// newStateNonce produces the random state parameter carried through the
// OAuth redirect.
func newStateNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
