package mcp

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTimeInput(t *testing.T) {
	t.Run("nil range defaults to maximum", func(t *testing.T) {
		params, errOut, warnings := normalizeTimeInput(nil)
		require.Nil(t, errOut)
		assert.Equal(t, "maximum", params["date_preset"])
		assert.Empty(t, warnings)
	})

	t.Run("valid preset passes through", func(t *testing.T) {
		params, errOut, warnings := normalizeTimeInput(&DateRange{Preset: " Last_30d "})
		require.Nil(t, errOut)
		assert.Equal(t, "last_30d", params["date_preset"])
		assert.Empty(t, warnings)
	})

	t.Run("legacy alias is remapped with a warning", func(t *testing.T) {
		params, errOut, warnings := normalizeTimeInput(&DateRange{Preset: "previous_7d"})
		require.Nil(t, errOut)
		assert.Equal(t, "last_7d", params["date_preset"])

		require.Len(t, warnings, 1)
		assert.Equal(t, "date_preset_alias_applied", warnings[0]["code"])
		assert.Equal(t, "previous_7d", warnings[0]["provided"])
		assert.Equal(t, "last_7d", warnings[0]["applied"])
	})

	t.Run("unknown preset lists the supported set", func(t *testing.T) {
		_, errOut, _ := normalizeTimeInput(&DateRange{Preset: "last_fortnight"})
		require.NotNil(t, errOut)
		assert.Equal(t, "invalid_date_preset", errOut["error"])
		assert.Contains(t, errOut["supported_presets"], "last_30d")
	})

	t.Run("custom range wins over preset", func(t *testing.T) {
		params, errOut, _ := normalizeTimeInput(&DateRange{
			Preset: "last_30d",
			Since:  "2026-01-01",
			Until:  "2026-01-31",
		})
		require.Nil(t, errOut)
		assert.Equal(t, map[string]any{"since": "2026-01-01", "until": "2026-01-31"}, params["date_range"])
		assert.Nil(t, params["date_preset"])
	})

	t.Run("half a custom range is rejected", func(t *testing.T) {
		_, errOut, _ := normalizeTimeInput(&DateRange{Since: "2026-01-01"})
		require.NotNil(t, errOut)
		assert.Equal(t, "invalid_date_range", errOut["error"])
	})
}

func TestNormalizeBreakdownInputs(t *testing.T) {
	t.Run("plain breakdowns are joined", func(t *testing.T) {
		params, warnings := normalizeBreakdownInputs("age,gender", nil, nil, nil)
		assert.Equal(t, "age,gender", params["breakdowns"])
		assert.Empty(t, warnings)
	})

	t.Run("action keys are routed to action_breakdowns", func(t *testing.T) {
		params, warnings := normalizeBreakdownInputs("age,action_type", []string{"action_device"}, nil, nil)

		assert.Equal(t, "age", params["breakdowns"])
		assert.Equal(t, "action_type,action_device", params["action_breakdowns"])

		require.Len(t, warnings, 1)
		assert.Equal(t, "breakdown_autorouted", warnings[0]["code"])
		assert.Equal(t, []string{"action_type", "action_device"}, warnings[0]["moved_keys"])
	})

	t.Run("routed keys merge with explicit action breakdowns", func(t *testing.T) {
		params, _ := normalizeBreakdownInputs("action_type", nil, []string{"action_type", "action_reaction"}, nil)
		assert.Equal(t, "action_type,action_reaction", params["action_breakdowns"])
	})

	t.Run("summary breakdowns pass through", func(t *testing.T) {
		params, warnings := normalizeBreakdownInputs("", nil, nil, []string{"action_type"})
		assert.Equal(t, "action_type", params["summary_action_breakdowns"])
		assert.Empty(t, warnings)
	})

	t.Run("no input yields no parameters", func(t *testing.T) {
		params, warnings := normalizeBreakdownInputs("", nil, nil, nil)
		assert.Empty(t, params)
		assert.Empty(t, warnings)
	})
}

func TestDeprecatedWindows(t *testing.T) {
	assert.Empty(t, deprecatedWindows(nil))
	assert.Empty(t, deprecatedWindows([]string{"1d_click", "7d_click"}))
	assert.Equal(t, []string{"28d_view", "7d_view"},
		deprecatedWindows([]string{"7D_VIEW", "28d_view", "7d_view", "1d_click"}))
}

func TestStripRedundantActions(t *testing.T) {
	row := map[string]any{
		"actions": []any{
			map[string]any{"action_type": "link_click", "value": "10"},
			map[string]any{"action_type": "omni_purchase", "value": "3"},
			map[string]any{"action_type": "offsite_conversion.fb_pixel_purchase", "value": "3"},
		},
		"cost_per_action_type": []any{
			map[string]any{"action_type": "onsite_web_purchase", "value": "1.50"},
		},
		"spend": "12.34",
	}

	stripRedundantActions(row)

	actions := row["actions"].([]any)
	require.Len(t, actions, 1)
	assert.Equal(t, "link_click", actions[0].(map[string]any)["action_type"])
	assert.Empty(t, row["cost_per_action_type"])
	assert.Equal(t, "12.34", row["spend"])
}

func TestHandleListInsights(t *testing.T) {
	t.Run("missing object id", func(t *testing.T) {
		s := testMCPServer(t, nil)
		_, out, err := s.handleListInsights(context.Background(), nil, ListInsightsInput{})
		require.NoError(t, err)
		assert.Equal(t, "No object ID provided", out["error"])
	})

	t.Run("defaults and warnings are attached", func(t *testing.T) {
		s := testMCPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/act_1/insights", r.URL.Path)
			query := r.URL.Query()
			assert.Equal(t, "ad", query.Get("level"))
			assert.Equal(t, "25", query.Get("limit"))
			assert.Equal(t, "last_7d", query.Get("date_preset"))
			fmt.Fprint(w, `{"data": []}`)
		}))

		_, out, err := s.handleListInsights(context.Background(), nil, ListInsightsInput{
			ObjectID:                 "act_1",
			DateRange:                &DateRange{Preset: "previous_7d"},
			ActionAttributionWindows: []string{"7d_view", "1d_click"},
		})
		require.NoError(t, err)

		warnings := out["warnings"].([]Output)
		require.Len(t, warnings, 2)
		assert.Equal(t, "date_preset_alias_applied", warnings[0]["code"])
		assert.Equal(t, "deprecated_attribution_windows", warnings[1]["code"])
		assert.Equal(t, []string{"7d_view"}, warnings[1]["deprecated_windows"])
	})

	t.Run("invalid level short-circuits", func(t *testing.T) {
		s := testMCPServer(t, nil)
		_, out, err := s.handleListInsights(context.Background(), nil, ListInsightsInput{
			ObjectID: "act_1",
			Level:    "creative",
		})
		require.NoError(t, err)
		assert.Equal(t, "invalid_level", out["error"])
		assert.Contains(t, out["supported_levels"], "adset")
	})

	t.Run("invalid preset short-circuits", func(t *testing.T) {
		s := testMCPServer(t, nil)
		_, out, err := s.handleListInsights(context.Background(), nil, ListInsightsInput{
			ObjectID:  "act_1",
			DateRange: &DateRange{Preset: "bogus"},
		})
		require.NoError(t, err)
		assert.Equal(t, "invalid_date_preset", out["error"])
	})

	t.Run("compact mode strips rollup rows", func(t *testing.T) {
		s := testMCPServer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"data": [{"actions": [
				{"action_type": "link_click", "value": "10"},
				{"action_type": "omni_purchase", "value": "3"}
			]}]}`)
		}))

		_, out, err := s.handleListInsights(context.Background(), nil, ListInsightsInput{
			ObjectID: "act_1",
			Compact:  true,
		})
		require.NoError(t, err)

		row := out["data"].([]any)[0].(map[string]any)
		require.Len(t, row["actions"], 1)
	})
}
