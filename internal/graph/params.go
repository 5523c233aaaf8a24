package graph

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// Params holds request parameters using the caller-facing names exposed by
// the tools. Encode remaps them onto the Graph API's own field names.
type Params map[string]any

// keyAliases maps tool-facing parameter names to Graph API field names.
var keyAliases = map[string]string{
	"meta_access_token":    "access_token",
	"page_size":            "limit",
	"page_cursor":          "after",
	"date_range":           "time_range",
	"ad_set_id":            "adset_id",
	"ad_creative_id":       "creative_id",
	"facebook_page_id":     "page_id",
	"ad_image_hash":        "image_hash",
	"ad_image_hashes":      "image_hashes",
	"ad_video_id":          "video_id",
	"lead_form_id":         "lead_gen_form_id",
	"primary_text":         "message",
	"description_text":     "description",
	"description_variants": "descriptions",
	"image_source_url":     "image_url",
	"meta_user_id":         "user_id",
}

// remapKeys renames aliased keys recursively through nested maps and slices.
func remapKeys(value any) any {
	switch v := value.(type) {
	case map[string]any:
		remapped := make(map[string]any, len(v))
		for key, item := range v {
			if alias, ok := keyAliases[key]; ok {
				key = alias
			}
			remapped[key] = remapKeys(item)
		}
		return remapped
	case Params:
		return remapKeys(map[string]any(v))
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = remapKeys(item)
		}
		return out
	default:
		return value
	}
}

// Encode produces url.Values for the wire: keys remapped, the access token
// set, and nested maps/slices JSON-encoded the way the Graph API expects.
func (p Params) Encode(accessToken string) (url.Values, error) {
	remapped, ok := remapKeys(p).(map[string]any)
	if !ok {
		remapped = map[string]any{}
	}
	remapped["access_token"] = accessToken

	values := url.Values{}
	for key, value := range remapped {
		switch v := value.(type) {
		case nil:
			continue
		case string:
			values.Set(key, v)
		case bool:
			values.Set(key, fmt.Sprintf("%t", v))
		case int:
			values.Set(key, fmt.Sprintf("%d", v))
		case int64:
			values.Set(key, fmt.Sprintf("%d", v))
		case float64:
			// JSON round-trips land here; keep integral values unadorned.
			if v == float64(int64(v)) {
				values.Set(key, fmt.Sprintf("%d", int64(v)))
			} else {
				values.Set(key, fmt.Sprintf("%v", v))
			}
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("encoding parameter %q: %w", key, err)
			}
			values.Set(key, string(encoded))
		}
	}
	return values, nil
}

// Redacted returns a copy safe for logging, with the token masked.
func (p Params) Redacted() map[string]any {
	out := make(map[string]any, len(p))
	for key, value := range p {
		if key == "access_token" || key == "meta_access_token" {
			out[key] = "***TOKEN***"
			continue
		}
		out[key] = value
	}
	return out
}
