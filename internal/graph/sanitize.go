package graph

import (
	"net/url"
	"strings"
)

// SanitizeURL removes any access_token query parameter from a URL string.
// Malformed input is returned unchanged rather than erroring: the value is
// only ever used for logging and user-facing payloads.
func SanitizeURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	query := parsed.Query()
	changed := false
	for key := range query {
		if strings.EqualFold(key, "access_token") {
			query.Del(key)
			changed = true
		}
	}
	if !changed {
		return raw
	}
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

// sanitizePayload recursively strips access tokens from URL-like string
// values anywhere in a decoded response.
func sanitizePayload(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = sanitizePayload(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = sanitizePayload(item)
		}
		return out
	case string:
		if strings.Contains(strings.ToLower(v), "access_token=") {
			return SanitizeURL(v)
		}
		return v
	default:
		return value
	}
}
