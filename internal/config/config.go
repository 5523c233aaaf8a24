// Package config holds runtime configuration for the Meta Ads MCP server.
// Configuration is resolved from environment variables first, with a
// per-user settings file providing fallbacks for values set via the CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v11"
)

// DefaultGraphVersion is used when META_GRAPH_API_VERSION is unset or malformed.
const DefaultGraphVersion = "v25.0"

// DefaultAuthScope is the comma-joined OAuth scope list sent when no
// login-flow config id is configured.
const DefaultAuthScope = "business_management,public_profile,pages_show_list,pages_read_engagement"

// appDirName is the per-user directory holding the token cache, settings
// file and log file.
const appDirName = "meta-ads-mcp"

var versionPattern = regexp.MustCompile(`^v\d+\.\d+$`)

// Config is the explicit configuration object passed to the components that
// need it. It replaces process-wide singletons: construct once at startup,
// then treat as read-only.
type Config struct {
	AppID                 string `env:"META_APP_ID"`
	AppSecret             string `env:"META_APP_SECRET"`
	AccessToken           string `env:"META_ACCESS_TOKEN"`
	GraphVersion          string `env:"META_GRAPH_API_VERSION"`
	AuthScope             string `env:"META_AUTH_SCOPE"`
	LoginConfigID         string `env:"META_LOGIN_CONFIG_ID"`
	DisableCallbackServer bool   `env:"META_ADS_DISABLE_CALLBACK_SERVER"`

	dir string
}

// Load parses the environment and resolves the per-user config directory.
// If configDir is empty the OS-appropriate user config directory is used.
// An app id stored in the settings file is used when META_APP_ID is unset.
func Load(configDir string) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	cfg.GraphVersion = NormalizeGraphVersion(cfg.GraphVersion)
	if cfg.AuthScope == "" {
		cfg.AuthScope = DefaultAuthScope
	}
	cfg.LoginConfigID = strings.TrimSpace(cfg.LoginConfigID)

	if configDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolving user config dir: %w", err)
		}
		configDir = filepath.Join(base, appDirName)
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("creating config dir: %w", err)
	}
	cfg.dir = configDir

	if cfg.AppID == "" {
		settings, err := LoadSettings(cfg.SettingsPath())
		if err == nil && settings.AppID != "" {
			cfg.AppID = settings.AppID
		}
	}

	return cfg, nil
}

// NormalizeGraphVersion coerces a version string to vNN.N form, falling back
// to DefaultGraphVersion when the input cannot be salvaged.
func NormalizeGraphVersion(raw string) string {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return DefaultGraphVersion
	}
	if !strings.HasPrefix(candidate, "v") {
		candidate = "v" + candidate
	}
	if !versionPattern.MatchString(candidate) {
		return DefaultGraphVersion
	}
	return candidate
}

// IsConfigured reports whether an app id is available for the OAuth flow.
func (c *Config) IsConfigured() bool {
	return c.AppID != ""
}

// Scopes returns the OAuth scope list as a slice.
func (c *Config) Scopes() []string {
	parts := strings.Split(c.AuthScope, ",")
	scopes := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			scopes = append(scopes, p)
		}
	}
	return scopes
}

// GraphBaseURL returns the versioned Graph API base URL.
func (c *Config) GraphBaseURL() string {
	return "https://graph.facebook.com/" + c.GraphVersion
}

// OAuthDialogURL returns the versioned OAuth dialog endpoint.
func (c *Config) OAuthDialogURL() string {
	return "https://www.facebook.com/" + c.GraphVersion + "/dialog/oauth"
}

// OAuthTokenURL returns the versioned OAuth token endpoint.
func (c *Config) OAuthTokenURL() string {
	return "https://graph.facebook.com/" + c.GraphVersion + "/oauth/access_token"
}

// Dir returns the per-user config directory.
func (c *Config) Dir() string {
	return c.dir
}

// TokenCachePath returns the token cache file location.
func (c *Config) TokenCachePath() string {
	return filepath.Join(c.dir, "token_cache.json")
}

// SettingsPath returns the settings file location.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.dir, "settings.toml")
}

// LogFilePath returns the append-only log file location.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.dir, "server.log")
}
