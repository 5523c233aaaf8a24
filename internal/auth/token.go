// Package auth owns the Meta access token lifecycle: the on-disk token
// cache, the OAuth code and long-lived exchanges, and invalidation when the
// Graph API rejects a token.
package auth

import (
	"encoding/json"
	"strconv"
	"time"
)

// minTokenLength guards against obviously truncated tokens; real Meta
// tokens are far longer.
const minTokenLength = 20

// TokenInfo is the cached access token and its lifetime metadata.
// ExpiresIn of zero means the token is treated as non-expiring (the
// long-lived case, where Meta omits the field).
type TokenInfo struct {
	AccessToken string `json:"meta_access_token"`
	ExpiresIn   int    `json:"expires_in,omitempty"`
	UserID      string `json:"meta_user_id,omitempty"`
	CreatedAt   int64  `json:"created_at"`
}

// NewTokenInfo stamps a freshly issued token with the current time.
func NewTokenInfo(accessToken string, expiresIn int, userID string) *TokenInfo {
	if expiresIn < 0 {
		expiresIn = 0
	}
	return &TokenInfo{
		AccessToken: accessToken,
		ExpiresIn:   expiresIn,
		UserID:      userID,
		CreatedAt:   time.Now().Unix(),
	}
}

// IsExpired reports whether the token's lifetime has elapsed. Tokens
// without an expiry never expire.
func (t *TokenInfo) IsExpired() bool {
	if t.ExpiresIn <= 0 {
		return false
	}
	return time.Now().Unix() > t.CreatedAt+int64(t.ExpiresIn)
}

// looksValid reports whether the token passes basic shape checks.
func (t *TokenInfo) looksValid() bool {
	return t != nil && len(t.AccessToken) >= minTokenLength
}

// decodeTokenInfo parses a cached or exchanged token payload. It tolerates
// both the cache's field names and the raw OAuth response names, and
// coerces expires_in values that arrive as strings.
func decodeTokenInfo(data []byte) (*TokenInfo, error) {
	var raw struct {
		MetaAccessToken string          `json:"meta_access_token"`
		AccessToken     string          `json:"access_token"`
		ExpiresIn       json.RawMessage `json:"expires_in"`
		MetaUserID      string          `json:"meta_user_id"`
		UserID          string          `json:"user_id"`
		CreatedAt       int64           `json:"created_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	token := raw.MetaAccessToken
	if token == "" {
		token = raw.AccessToken
	}
	userID := raw.MetaUserID
	if userID == "" {
		userID = raw.UserID
	}
	createdAt := raw.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().Unix()
	}

	return &TokenInfo{
		AccessToken: token,
		ExpiresIn:   coerceExpiresIn(raw.ExpiresIn),
		UserID:      userID,
		CreatedAt:   createdAt,
	}, nil
}

// coerceExpiresIn accepts numeric or string expires_in values; anything
// non-positive or unparseable means "no expiry".
func coerceExpiresIn(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		if n > 0 {
			return n
		}
		return 0
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 0
}
