// Package graph provides the Meta Graph API client shared by every tool.
// It normalizes request parameters onto Graph field names, strips access
// tokens from anything that could leave the process, and decodes Meta's
// error payloads into a single typed error at the API boundary.
package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoToken is returned when a request is attempted without an access token.
var ErrNoToken = errors.New("graph: access token is required")

// Auth error codes that invalidate the cached token. Code 190 is an invalid
// or expired token, 102 a session error, 10 a permission error.
var authErrorCodes = map[int]bool{190: true, 102: true, 10: true}

// Rate limit error codes documented for the Marketing API.
var rateLimitCodes = map[int]bool{4: true, 17: true, 32: true, 613: true}

// Error is a decoded Graph API error response.
type Error struct {
	HTTPStatus int
	Code       int
	Subcode    int
	Type       string
	Message    string
	UserTitle  string
	FBTraceID  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("graph: API error %d (code %d, subcode %d): %s",
		e.HTTPStatus, e.Code, e.Subcode, e.Message)
}

// IsAuthError reports whether err is a Graph auth failure that should force
// re-authentication.
func IsAuthError(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return authErrorCodes[apiErr.Code]
	}
	return false
}

// IsRateLimited reports whether err is a Graph rate limit rejection.
func IsRateLimited(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return rateLimitCodes[apiErr.Code]
	}
	return false
}

// IsAppConfigError reports whether err indicates misconfigured app
// credentials rather than a bad user token.
func IsAppConfigError(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 200 && strings.Contains(apiErr.Message, "Provide valid app ID")
	}
	return false
}
