package mcp

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSpecialAdCategories(t *testing.T) {
	t.Run("uppercases and dedupes", func(t *testing.T) {
		out, err := normalizeSpecialAdCategories([]string{"housing", " HOUSING ", "EMPLOYMENT"})
		require.NoError(t, err)
		assert.Equal(t, []string{"HOUSING", "EMPLOYMENT"}, out)
	})

	t.Run("none alone maps to an empty list", func(t *testing.T) {
		out, err := normalizeSpecialAdCategories([]string{"NONE"})
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("none mixed with others is rejected", func(t *testing.T) {
		_, err := normalizeSpecialAdCategories([]string{"NONE", "HOUSING"})
		assert.ErrorContains(t, err, "cannot mix")
	})

	t.Run("deprecated credit names its replacement", func(t *testing.T) {
		_, err := normalizeSpecialAdCategories([]string{"credit"})
		require.Error(t, err)
		assert.ErrorContains(t, err, "CREDIT")
		assert.ErrorContains(t, err, "FINANCIAL_PRODUCTS_SERVICES")
	})

	t.Run("empty input stays empty", func(t *testing.T) {
		out, err := normalizeSpecialAdCategories(nil)
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}

func TestValidateCampaignBidStrategy(t *testing.T) {
	assert.Nil(t, validateCampaignBidStrategy(""))
	assert.Nil(t, validateCampaignBidStrategy("LOWEST_COST_WITHOUT_CAP"))

	out := validateCampaignBidStrategy(" target_cost ")
	require.NotNil(t, out)
	assert.Contains(t, out["error"], "TARGET_COST")
	assert.NotEmpty(t, out["replacement_examples"])
}

func TestNormalizeTokens(t *testing.T) {
	out := normalizeTokens([]string{" OUTCOME_TRAFFIC ", "", "OUTCOME_TRAFFIC", "OUTCOME_SALES"})
	assert.Equal(t, []string{"OUTCOME_TRAFFIC", "OUTCOME_SALES"}, out)
	assert.Empty(t, normalizeTokens(nil))
}

func TestHandleCreateCampaign(t *testing.T) {
	t.Run("missing required fields fail fast", func(t *testing.T) {
		s := testMCPServer(t, nil)

		_, out, err := s.handleCreateCampaign(context.Background(), nil, CreateCampaignInput{})
		require.NoError(t, err)
		assert.Equal(t, "No account ID provided", out["error"])

		_, out, err = s.handleCreateCampaign(context.Background(), nil, CreateCampaignInput{AdAccountID: "act_1"})
		require.NoError(t, err)
		assert.Equal(t, "No campaign name provided", out["error"])

		_, out, err = s.handleCreateCampaign(context.Background(), nil, CreateCampaignInput{AdAccountID: "act_1", Name: "Launch"})
		require.NoError(t, err)
		assert.Equal(t, "No campaign objective provided", out["error"])
	})

	t.Run("default daily budget is applied and surfaced", func(t *testing.T) {
		s := testMCPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/act_1/campaigns", r.URL.Path)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "1000", r.PostForm.Get("daily_budget"))
			assert.Equal(t, "PAUSED", r.PostForm.Get("status"))
			fmt.Fprint(w, `{"id": "120210000000"}`)
		}))

		_, out, err := s.handleCreateCampaign(context.Background(), nil, CreateCampaignInput{
			AdAccountID: "1",
			Name:        "Launch",
			Objective:   "OUTCOME_TRAFFIC",
		})
		require.NoError(t, err)

		assert.Equal(t, "120210000000", out["id"])
		assert.Equal(t, "daily_budget=1000", out["budget_default_applied"])
		assert.Contains(t, out["note"], "daily_budget=1000")
	})

	t.Run("ad set level budgets skip campaign budgets", func(t *testing.T) {
		s := testMCPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Empty(t, r.PostForm.Get("daily_budget"))
			assert.Equal(t, "false", r.PostForm.Get("is_adset_budget_sharing_enabled"))
			fmt.Fprint(w, `{"id": "120210000001"}`)
		}))

		_, out, err := s.handleCreateCampaign(context.Background(), nil, CreateCampaignInput{
			AdAccountID:          "act_1",
			Name:                 "Launch",
			Objective:            "OUTCOME_TRAFFIC",
			UseAdSetLevelBudgets: true,
		})
		require.NoError(t, err)
		assert.Equal(t, "ad_set_level", out["budget_strategy"])
	})

	t.Run("explicit budget suppresses the default", func(t *testing.T) {
		budget := 5000
		s := testMCPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "5000", r.PostForm.Get("daily_budget"))
			fmt.Fprint(w, `{"id": "120210000002"}`)
		}))

		_, out, err := s.handleCreateCampaign(context.Background(), nil, CreateCampaignInput{
			AdAccountID: "act_1",
			Name:        "Launch",
			Objective:   "OUTCOME_TRAFFIC",
			DailyBudget: &budget,
		})
		require.NoError(t, err)
		assert.Nil(t, out["budget_default_applied"])
	})

	t.Run("target cost strategy is rejected before the wire", func(t *testing.T) {
		s := testMCPServer(t, nil)

		_, out, err := s.handleCreateCampaign(context.Background(), nil, CreateCampaignInput{
			AdAccountID: "act_1",
			Name:        "Launch",
			Objective:   "OUTCOME_TRAFFIC",
			BidStrategy: "TARGET_COST",
		})
		require.NoError(t, err)
		assert.Contains(t, out["error"], "TARGET_COST")
	})
}

func TestHandleUpdateCampaign(t *testing.T) {
	t.Run("no parameters is rejected", func(t *testing.T) {
		s := testMCPServer(t, nil)

		_, out, err := s.handleUpdateCampaign(context.Background(), nil, UpdateCampaignInput{CampaignID: "123"})
		require.NoError(t, err)
		assert.Equal(t, "No update parameters provided", out["error"])
	})

	t.Run("moving budgets to ad sets clears campaign budgets", func(t *testing.T) {
		s := testMCPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/123", r.URL.Path)
			require.NoError(t, r.ParseForm())
			assert.True(t, r.PostForm.Has("daily_budget"))
			assert.Empty(t, r.PostForm.Get("daily_budget"))
			assert.True(t, r.PostForm.Has("lifetime_budget"))
			fmt.Fprint(w, `{"success": true}`)
		}))

		adSetLevel := true
		_, out, err := s.handleUpdateCampaign(context.Background(), nil, UpdateCampaignInput{
			CampaignID:           "123",
			UseAdSetLevelBudgets: &adSetLevel,
		})
		require.NoError(t, err)
		assert.Equal(t, "ad_set_level", out["budget_strategy"])
	})
}
