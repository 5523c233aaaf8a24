package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/armavita/meta-ads-mcp/internal/config"
	"github.com/armavita/meta-ads-mcp/internal/logger"
)

// ErrNotConfigured is returned when app credentials are missing.
var ErrNotConfigured = errors.New("auth: META_APP_ID and META_APP_SECRET must be configured")

// exchangeTimeout bounds the OAuth token endpoint requests.
const exchangeTimeout = 20 * time.Second

// CompletionResult reports the outcome of a full code-to-token completion.
type CompletionResult struct {
	Success       bool       `json:"success"`
	ErrorCode     string     `json:"error,omitempty"`
	Token         *TokenInfo `json:"token_info,omitempty"`
	UsedLongLived bool       `json:"used_long_lived_token"`
}

// Manager owns the in-process token and drives the OAuth exchanges.
// There is exactly one Manager per process; it is safe for concurrent use.
type Manager struct {
	mu        sync.Mutex
	cfg       *config.Config
	cache     *Cache
	client    *http.Client
	token     *TokenInfo
	needsAuth bool

	// tokenURL is overridable in tests; defaults to the configured
	// versioned OAuth token endpoint.
	tokenURL string
}

// NewManager creates a Manager and loads any cached token from disk.
func NewManager(cfg *config.Config) *Manager {
	m := &Manager{
		cfg:      cfg,
		cache:    NewCache(cfg.TokenCachePath()),
		client:   &http.Client{Timeout: exchangeTimeout},
		tokenURL: cfg.OAuthTokenURL(),
	}
	if token, err := m.cache.Load(); err == nil && token != nil {
		m.token = token
	}
	return m
}

// SetTokenEndpoint overrides the OAuth token endpoint. Useful for tests.
func (m *Manager) SetTokenEndpoint(url string) {
	m.tokenURL = url
}

// Cache exposes the underlying token cache (for the CLI and the watcher).
func (m *Manager) Cache() *Cache {
	return m.cache
}

// AuthURL builds the OAuth dialog URL for the given redirect URI and state
// nonce. When a login-flow config id is configured the scope list is
// omitted; Meta resolves the permission set from the config.
func (m *Manager) AuthURL(redirectURI, state string) string {
	conf := &oauth2.Config{
		ClientID:    m.cfg.AppID,
		RedirectURL: redirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:  m.cfg.OAuthDialogURL(),
			TokenURL: m.tokenURL,
		},
	}

	var opts []oauth2.AuthCodeOption
	if m.cfg.LoginConfigID != "" {
		opts = append(opts, oauth2.SetAuthURLParam("config_id", m.cfg.LoginConfigID))
	} else {
		conf.Scopes = m.cfg.Scopes()
	}
	return conf.AuthCodeURL(state, opts...)
}

// ExchangeCode trades an authorization code for a short-lived token.
func (m *Manager) ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenInfo, error) {
	if m.cfg.AppID == "" || m.cfg.AppSecret == "" {
		return nil, ErrNotConfigured
	}

	params := url.Values{}
	params.Set("client_id", m.cfg.AppID)
	params.Set("client_secret", m.cfg.AppSecret)
	params.Set("redirect_uri", redirectURI)
	params.Set("code", code)

	return m.requestToken(ctx, params)
}

// ExchangeLongLived trades a short-lived token for a long-lived one.
func (m *Manager) ExchangeLongLived(ctx context.Context, shortLived string) (*TokenInfo, error) {
	if m.cfg.AppID == "" || m.cfg.AppSecret == "" {
		return nil, ErrNotConfigured
	}

	params := url.Values{}
	params.Set("grant_type", "fb_exchange_token")
	params.Set("client_id", m.cfg.AppID)
	params.Set("client_secret", m.cfg.AppSecret)
	params.Set("fb_exchange_token", shortLived)

	return m.requestToken(ctx, params)
}

// requestToken issues the GET-with-query-params request the Meta token
// endpoint expects and decodes the token payload.
func (m *Manager) requestToken(ctx context.Context, params url.Values) (*TokenInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.tokenURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error struct {
				Message string `json:"message"`
				Code    int    `json:"code"`
			} `json:"error"`
		}
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("token endpoint rejected request (code %d): %s",
				errResp.Error.Code, errResp.Error.Message)
		}
		return nil, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	decoded, err := decodeTokenInfo(body)
	if err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	if decoded.AccessToken == "" {
		return nil, errors.New("token response missing access_token")
	}
	decoded.CreatedAt = time.Now().Unix()
	return decoded, nil
}

// CompleteOAuth runs both exchanges. A short-lived exchange failure aborts
// the flow; a long-lived exchange failure degrades gracefully to keeping
// the short-lived token. On success the token is adopted (and persisted
// when persist is true) and the needs-authentication flag is cleared.
func (m *Manager) CompleteOAuth(ctx context.Context, code, redirectURI string, persist bool) CompletionResult {
	shortLived, err := m.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		logger.Errorf("authorization code exchange failed: %v", err)
		return CompletionResult{
			Success:   false,
			ErrorCode: "authorization_code_exchange_failed",
		}
	}

	final := shortLived
	usedLongLived := false
	if longLived, err := m.ExchangeLongLived(ctx, shortLived.AccessToken); err != nil {
		logger.Warnf("long-lived token exchange failed, keeping short-lived token: %v", err)
	} else {
		// The long-lived response omits the user id; carry it over.
		if longLived.UserID == "" {
			longLived.UserID = shortLived.UserID
		}
		final = longLived
		usedLongLived = true
	}

	m.adoptToken(final, persist)

	return CompletionResult{
		Success:       true,
		Token:         final,
		UsedLongLived: usedLongLived,
	}
}

func (m *Manager) adoptToken(token *TokenInfo, persist bool) {
	m.mu.Lock()
	m.token = token
	m.needsAuth = false
	m.mu.Unlock()

	if persist {
		if err := m.cache.Save(token); err != nil {
			logger.Errorf("persisting token: %v", err)
		}
	}
}

// SetToken replaces the in-memory token without persisting. Used by the
// cache watcher when another process completes a login.
func (m *Manager) SetToken(token *TokenInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	if token != nil {
		m.needsAuth = false
	}
}

// WatchCache adopts tokens written to the cache file by other processes.
// Returns a stop function.
func (m *Manager) WatchCache() (func(), error) {
	return m.cache.Watch(func(token *TokenInfo) {
		if token != nil {
			logger.Infof("adopted token from updated cache file")
		}
		m.SetToken(token)
	})
}

// CurrentToken resolves the access token for a Graph call: the
// META_ACCESS_TOKEN environment override first, then the managed token.
// It returns "" (never an error) when no usable token exists.
func (m *Manager) CurrentToken() string {
	if env := m.cfg.AccessToken; env != "" {
		if len(env) < minTokenLength {
			logger.Errorf("META_ACCESS_TOKEN appears malformed")
			return ""
		}
		return env
	}

	m.mu.Lock()
	token := m.token
	m.mu.Unlock()

	if token == nil || token.IsExpired() {
		return ""
	}
	if !token.looksValid() {
		m.Invalidate()
		return ""
	}
	return token.AccessToken
}

// NeedsAuth reports whether a previous call invalidated the token.
func (m *Manager) NeedsAuth() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.needsAuth
}

// Invalidate clears the in-memory token, flags that re-authentication is
// required, and deletes the cache file. Safe to call repeatedly.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.token = nil
	m.needsAuth = true
	m.mu.Unlock()

	if err := m.cache.Delete(); err != nil {
		logger.Warnf("deleting token cache: %v", err)
	}
}
