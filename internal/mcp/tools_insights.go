package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/armavita/meta-ads-mcp/internal/graph"
)

const insightFields = "account_id,account_name,campaign_id,campaign_name,adset_id,adset_name," +
	"ad_id,ad_name,impressions,clicks,spend,cpc,cpm,ctr,reach,frequency," +
	"actions,action_values,conversions,unique_clicks,cost_per_action_type"

var supportedDatePresets = map[string]bool{
	"today": true, "yesterday": true, "this_month": true, "last_month": true,
	"this_quarter": true, "last_quarter": true, "this_year": true, "last_year": true,
	"last_3d": true, "last_7d": true, "last_14d": true, "last_28d": true,
	"last_30d": true, "last_90d": true, "maximum": true, "data_maximum": true,
	"this_week_mon_today": true, "this_week_sun_today": true,
	"last_week_mon_sun": true, "last_week_sun_sat": true,
}

var datePresetAliases = map[string]string{
	"previous_3d":  "last_3d",
	"previous_7d":  "last_7d",
	"previous_14d": "last_14d",
	"previous_28d": "last_28d",
	"previous_30d": "last_30d",
	"previous_90d": "last_90d",
}

var actionBreakdownKeys = map[string]bool{
	"action_type": true, "action_target_id": true, "action_destination": true,
	"action_device": true, "action_canvas_component_name": true,
	"action_carousel_card_id": true, "action_carousel_card_name": true,
	"action_reaction": true, "action_video_sound": true,
}

var supportedInsightLevels = map[string]bool{
	"account": true, "campaign": true, "adset": true, "ad": true,
}

var deprecatedAttributionWindows = map[string]bool{
	"7d_view":  true,
	"28d_view": true,
}

// Aggregated action rollups Meta duplicates into every row; dropped in
// compact mode.
var redundantActionPrefixes = []string{
	"omni_", "onsite_web_app_", "onsite_web_", "onsite_app_",
	"web_app_in_store_", "offsite_conversion.fb_pixel_",
}

// DateRange is either a supported preset name or a custom since/until pair.
type DateRange struct {
	Preset string `json:"preset,omitempty" jsonschema:"a supported Meta date preset, e.g. last_30d or maximum"`
	Since  string `json:"since,omitempty" jsonschema:"custom range start, YYYY-MM-DD"`
	Until  string `json:"until,omitempty" jsonschema:"custom range end, YYYY-MM-DD"`
}

// ListInsightsInput is the input schema for the list_insights tool.
type ListInsightsInput struct {
	ObjectID                 string     `json:"object_id" jsonschema:"account, campaign, ad set, or ad id to query insights for"`
	AccessToken              string     `json:"meta_access_token,omitempty" jsonschema:"Meta access token; omit to use the cached login"`
	DateRange                *DateRange `json:"date_range,omitempty" jsonschema:"date preset or custom since/until range (default maximum)"`
	Breakdown                string     `json:"breakdown,omitempty" jsonschema:"comma-separated breakdown keys"`
	Breakdowns               []string   `json:"breakdowns,omitempty" jsonschema:"breakdown keys as a list"`
	ActionBreakdowns         []string   `json:"action_breakdowns,omitempty" jsonschema:"action breakdown keys"`
	SummaryActionBreakdowns  []string   `json:"summary_action_breakdowns,omitempty" jsonschema:"summary action breakdown keys"`
	Level                    string     `json:"level,omitempty" jsonschema:"aggregation level: account, campaign, adset, or ad (default ad)"`
	PageSize                 int        `json:"page_size,omitempty" jsonschema:"rows per page (default 25)"`
	PageCursor               string     `json:"page_cursor,omitempty" jsonschema:"pagination cursor from a previous response"`
	ActionAttributionWindows []string   `json:"action_attribution_windows,omitempty" jsonschema:"attribution windows, e.g. 7d_click"`
	Compact                  bool       `json:"compact,omitempty" jsonschema:"strip redundant aggregated action rollups from rows"`
}

func (s *Server) registerInsightTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_insights",
		Description: "Fetch performance insights for an account, campaign, ad set, or ad",
	}, s.handleListInsights)
}

func (s *Server) handleListInsights(ctx context.Context, _ *mcp.CallToolRequest, in ListInsightsInput) (*mcp.CallToolResult, Output, error) {
	objectID := strings.TrimSpace(in.ObjectID)
	if objectID == "" {
		return errOut("No object ID provided")
	}

	level := strings.ToLower(strings.TrimSpace(in.Level))
	if level == "" {
		level = "ad"
	}
	if !supportedInsightLevels[level] {
		return result(Output{
			"error":            "invalid_level",
			"message":          fmt.Sprintf("Unsupported level '%s'.", in.Level),
			"supported_levels": []string{"account", "campaign", "adset", "ad"},
		})
	}

	params := graph.Params{
		"fields":    insightFields,
		"level":     level,
		"page_size": defaultPageSize(in.PageSize, 25),
	}

	warnings := []Output{}

	timeParams, timeErr, timeWarnings := normalizeTimeInput(in.DateRange)
	if timeErr != nil {
		return result(timeErr)
	}
	for k, v := range timeParams {
		params[k] = v
	}
	warnings = append(warnings, timeWarnings...)

	breakdownParams, breakdownWarnings := normalizeBreakdownInputs(in.Breakdown, in.Breakdowns, in.ActionBreakdowns, in.SummaryActionBreakdowns)
	for k, v := range breakdownParams {
		params[k] = v
	}
	warnings = append(warnings, breakdownWarnings...)

	setStringField(params, "page_cursor", in.PageCursor)
	if len(in.ActionAttributionWindows) > 0 {
		params["action_attribution_windows"] = in.ActionAttributionWindows
	}

	payload, err := s.client.Get(ctx, objectID+"/insights", s.resolveToken(in.AccessToken), params)
	if err != nil {
		return s.graphResult(nil, err)
	}

	if deprecated := deprecatedWindows(in.ActionAttributionWindows); len(deprecated) > 0 {
		warnings = append(warnings, Output{
			"code":                "deprecated_attribution_windows",
			"message":             "One or more requested attribution windows are deprecated and may return empty data.",
			"deprecated_windows":  deprecated,
			"recommended_windows": []string{"1d_click", "7d_click", "1d_view"},
		})
	}
	if len(warnings) > 0 {
		payload["warnings"] = warnings
	}

	if in.Compact {
		if data, ok := payload["data"].([]any); ok {
			for _, raw := range data {
				if row, ok := raw.(map[string]any); ok {
					stripRedundantActions(row)
				}
			}
		}
	}
	return result(payload)
}

// normalizeTimeInput maps a date range to Graph query parameters: custom
// since/until become time_range, preset names are validated with legacy
// aliases remapped.
func normalizeTimeInput(dateRange *DateRange) (graph.Params, Output, []Output) {
	warnings := []Output{}

	if dateRange != nil && (dateRange.Since != "" || dateRange.Until != "") {
		since := strings.TrimSpace(dateRange.Since)
		until := strings.TrimSpace(dateRange.Until)
		if since == "" || until == "" {
			return nil, Output{
				"error":   "invalid_date_range",
				"message": "Custom date_range must contain both 'since' and 'until' in YYYY-MM-DD format.",
			}, warnings
		}
		return graph.Params{
			"date_range": map[string]any{"since": since, "until": until},
		}, nil, warnings
	}

	raw := "maximum"
	if dateRange != nil && dateRange.Preset != "" {
		raw = strings.ToLower(strings.TrimSpace(dateRange.Preset))
	}

	canonical := raw
	if alias, ok := datePresetAliases[raw]; ok {
		canonical = alias
		warnings = append(warnings, Output{
			"code":     "date_preset_alias_applied",
			"message":  fmt.Sprintf("Mapped unsupported date preset alias '%s' to '%s'.", raw, canonical),
			"provided": raw,
			"applied":  canonical,
		})
	}

	if !supportedDatePresets[canonical] {
		return nil, Output{
			"error":             "invalid_date_preset",
			"message":           fmt.Sprintf("Unsupported date_preset '%s'.", raw),
			"supported_presets": sortedPresets(),
			"known_aliases":     datePresetAliases,
		}, warnings
	}
	return graph.Params{"date_preset": canonical}, nil, warnings
}

// normalizeBreakdownInputs routes action_* keys supplied as plain
// breakdowns into action_breakdowns, since Meta rejects the combination.
func normalizeBreakdownInputs(breakdown string, breakdowns, actionBreakdowns, summaryActionBreakdowns []string) (graph.Params, []Output) {
	warnings := []Output{}

	inferred := normalizeTokens(append(splitCSV(breakdown), breakdowns...))
	routed := []string{}
	moved := []string{}
	for _, token := range inferred {
		if actionBreakdownKeys[strings.ToLower(token)] || strings.HasPrefix(strings.ToLower(token), "action_") {
			moved = append(moved, token)
		} else {
			routed = append(routed, token)
		}
	}

	combined := normalizeTokens(append(moved, actionBreakdowns...))
	summary := normalizeTokens(summaryActionBreakdowns)

	if len(moved) > 0 {
		warnings = append(warnings, Output{
			"code":       "breakdown_autorouted",
			"message":    "Moved action breakdown keys from breakdowns to action_breakdowns to avoid invalid Meta combinations.",
			"moved_keys": moved,
		})
	}

	params := graph.Params{}
	if len(routed) > 0 {
		params["breakdowns"] = strings.Join(routed, ",")
	}
	if len(combined) > 0 {
		params["action_breakdowns"] = strings.Join(combined, ",")
	}
	if len(summary) > 0 {
		params["summary_action_breakdowns"] = strings.Join(summary, ",")
	}
	return params, warnings
}

func deprecatedWindows(windows []string) []string {
	found := map[string]bool{}
	for _, raw := range windows {
		window := strings.ToLower(strings.TrimSpace(raw))
		if deprecatedAttributionWindows[window] {
			found[window] = true
		}
	}
	out := make([]string, 0, len(found))
	for window := range found {
		out = append(out, window)
	}
	sort.Strings(out)
	return out
}

func stripRedundantActions(row map[string]any) {
	for _, containerKey := range []string{"actions", "action_values", "cost_per_action_type"} {
		values, ok := row[containerKey].([]any)
		if !ok {
			continue
		}
		filtered := []any{}
		for _, raw := range values {
			entry, ok := raw.(map[string]any)
			actionType := ""
			if ok {
				actionType, _ = entry["action_type"].(string)
			}
			if hasRedundantPrefix(actionType) {
				continue
			}
			filtered = append(filtered, raw)
		}
		row[containerKey] = filtered
	}
}

func hasRedundantPrefix(actionType string) bool {
	for _, prefix := range redundantActionPrefixes {
		if strings.HasPrefix(actionType, prefix) {
			return true
		}
	}
	return false
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	return strings.Split(value, ",")
}

func sortedPresets() []string {
	presets := make([]string, 0, len(supportedDatePresets))
	for preset := range supportedDatePresets {
		presets = append(presets, preset)
	}
	sort.Strings(presets)
	return presets
}
