package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/armavita/meta-ads-mcp/internal/graph"
)

const (
	campaignListFields = "id,name,objective,status,effective_status,daily_budget,lifetime_budget,buying_type," +
		"start_time,stop_time,created_time,updated_time,bid_strategy,advantage_state_info"
	campaignReadFields = campaignListFields + ",special_ad_categories," +
		"special_ad_category_country,budget_remaining,configured_status"

	// Applied when a campaign is created with no budget at all and ad-set
	// level budgets were not requested. Cents.
	defaultCampaignDailyBudget = 1000
)

var deprecatedSpecialAdCategories = map[string]string{
	"CREDIT": "FINANCIAL_PRODUCTS_SERVICES",
}

// ListCampaignsInput is the input schema for the list_campaigns tool.
type ListCampaignsInput struct {
	AdAccountID     string   `json:"ad_account_id" jsonschema:"ad account id, with or without the act_ prefix"`
	AccessToken     string   `json:"meta_access_token,omitempty" jsonschema:"Meta access token; omit to use the cached login"`
	PageSize        int      `json:"page_size,omitempty" jsonschema:"number of campaigns per page (default 10)"`
	StatusFilter    string   `json:"status_filter,omitempty" jsonschema:"filter by effective status, e.g. ACTIVE or PAUSED"`
	ObjectiveFilter []string `json:"objective_filter,omitempty" jsonschema:"filter by campaign objective values"`
	PageCursor      string   `json:"page_cursor,omitempty" jsonschema:"pagination cursor from a previous response"`
}

// ReadCampaignInput is the input schema for the read_campaign tool.
type ReadCampaignInput struct {
	CampaignID  string `json:"campaign_id" jsonschema:"campaign id"`
	AccessToken string `json:"meta_access_token,omitempty" jsonschema:"Meta access token; omit to use the cached login"`
}

// CreateCampaignInput is the input schema for the create_campaign tool.
type CreateCampaignInput struct {
	AdAccountID                string           `json:"ad_account_id" jsonschema:"ad account id, with or without the act_ prefix"`
	Name                       string           `json:"name" jsonschema:"campaign name"`
	Objective                  string           `json:"objective" jsonschema:"campaign objective, e.g. OUTCOME_TRAFFIC"`
	AccessToken                string           `json:"meta_access_token,omitempty" jsonschema:"Meta access token; omit to use the cached login"`
	Status                     string           `json:"status,omitempty" jsonschema:"initial status (default PAUSED)"`
	SpecialAdCategories        []string         `json:"special_ad_categories,omitempty" jsonschema:"special ad categories, or NONE"`
	DailyBudget                *int             `json:"daily_budget,omitempty" jsonschema:"daily budget in account minor units (cents)"`
	LifetimeBudget             *int             `json:"lifetime_budget,omitempty" jsonschema:"lifetime budget in account minor units (cents)"`
	BuyingType                 string           `json:"buying_type,omitempty" jsonschema:"buying type, e.g. AUCTION"`
	BidStrategy                string           `json:"bid_strategy,omitempty" jsonschema:"campaign bid strategy"`
	BidCap                     *int             `json:"bid_cap,omitempty" jsonschema:"bid cap in cents"`
	SpendCap                   *int             `json:"spend_cap,omitempty" jsonschema:"spend cap in cents"`
	CampaignBudgetOptimization *bool            `json:"campaign_budget_optimization,omitempty" jsonschema:"enable campaign budget optimization"`
	ABTestControlSetups        []map[string]any `json:"ab_test_control_setups,omitempty" jsonschema:"A/B test control setups"`
	UseAdSetLevelBudgets       bool             `json:"use_ad_set_level_budgets,omitempty" jsonschema:"set budgets on child ad sets instead of the campaign"`
}

// UpdateCampaignInput is the input schema for the update_campaign tool.
type UpdateCampaignInput struct {
	CampaignID                 string   `json:"campaign_id" jsonschema:"campaign id"`
	AccessToken                string   `json:"meta_access_token,omitempty" jsonschema:"Meta access token; omit to use the cached login"`
	Name                       string   `json:"name,omitempty" jsonschema:"new campaign name"`
	Status                     string   `json:"status,omitempty" jsonschema:"new status"`
	SpecialAdCategories        []string `json:"special_ad_categories,omitempty" jsonschema:"replacement special ad categories"`
	DailyBudget                *int     `json:"daily_budget,omitempty" jsonschema:"daily budget in cents"`
	LifetimeBudget             *int     `json:"lifetime_budget,omitempty" jsonschema:"lifetime budget in cents"`
	BidStrategy                string   `json:"bid_strategy,omitempty" jsonschema:"campaign bid strategy"`
	BidCap                     *int     `json:"bid_cap,omitempty" jsonschema:"bid cap in cents"`
	SpendCap                   *int     `json:"spend_cap,omitempty" jsonschema:"spend cap in cents"`
	CampaignBudgetOptimization *bool    `json:"campaign_budget_optimization,omitempty" jsonschema:"enable campaign budget optimization"`
	Objective                  string   `json:"objective,omitempty" jsonschema:"new campaign objective"`
	UseAdSetLevelBudgets       *bool    `json:"use_ad_set_level_budgets,omitempty" jsonschema:"move budgets to child ad sets"`
}

func (s *Server) registerCampaignTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_campaigns",
		Description: "List campaigns for an ad account with optional status and objective filters",
	}, s.handleListCampaigns)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "read_campaign",
		Description: "Fetch detailed metadata for one campaign",
	}, s.handleReadCampaign)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "create_campaign",
		Description: "Create a campaign with optional budgeting and bid controls",
	}, s.handleCreateCampaign)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "update_campaign",
		Description: "Update settings of an existing campaign",
	}, s.handleUpdateCampaign)
}

func (s *Server) handleListCampaigns(ctx context.Context, _ *mcp.CallToolRequest, in ListCampaignsInput) (*mcp.CallToolResult, Output, error) {
	if in.AdAccountID == "" {
		return errOut("No account ID specified")
	}

	params := graph.Params{
		"fields":    campaignListFields,
		"page_size": defaultPageSize(in.PageSize, 10),
	}
	if in.StatusFilter != "" {
		params["effective_status"] = []string{in.StatusFilter}
	}
	if objectives := normalizeTokens(in.ObjectiveFilter); len(objectives) > 0 {
		params["filtering"] = []map[string]any{
			{"field": "objective", "operator": "IN", "value": objectives},
		}
	}
	setStringField(params, "page_cursor", in.PageCursor)

	payload, err := s.client.Get(ctx, normalizeAccountID(in.AdAccountID)+"/campaigns", s.resolveToken(in.AccessToken), params)
	return s.graphResult(payload, err)
}

func (s *Server) handleReadCampaign(ctx context.Context, _ *mcp.CallToolRequest, in ReadCampaignInput) (*mcp.CallToolResult, Output, error) {
	if in.CampaignID == "" {
		return errOut("No campaign ID provided")
	}
	payload, err := s.client.Get(ctx, in.CampaignID, s.resolveToken(in.AccessToken), graph.Params{
		"fields": campaignReadFields,
	})
	return s.graphResult(payload, err)
}

func (s *Server) handleCreateCampaign(ctx context.Context, _ *mcp.CallToolRequest, in CreateCampaignInput) (*mcp.CallToolResult, Output, error) {
	if in.AdAccountID == "" {
		return errOut("No account ID provided")
	}
	if in.Name == "" {
		return errOut("No campaign name provided")
	}
	if in.Objective == "" {
		return errOut("No campaign objective provided")
	}

	categories, err := normalizeSpecialAdCategories(in.SpecialAdCategories)
	if err != nil {
		return errOut(err.Error())
	}
	if bidErr := validateCampaignBidStrategy(in.BidStrategy); bidErr != nil {
		return result(bidErr)
	}

	dailyBudget := in.DailyBudget
	autoBudgetApplied := false
	if !in.UseAdSetLevelBudgets && dailyBudget == nil && in.LifetimeBudget == nil {
		fallback := defaultCampaignDailyBudget
		dailyBudget = &fallback
		autoBudgetApplied = true
	}

	status := in.Status
	if status == "" {
		status = "PAUSED"
	}

	params := graph.Params{
		"name":                  in.Name,
		"objective":             in.Objective,
		"status":                status,
		"special_ad_categories": categories,
	}
	if in.UseAdSetLevelBudgets {
		params["is_adset_budget_sharing_enabled"] = "false"
	} else {
		setIntField(params, "daily_budget", dailyBudget)
		setIntField(params, "lifetime_budget", in.LifetimeBudget)
		setBoolField(params, "campaign_budget_optimization", in.CampaignBudgetOptimization)
	}
	setStringField(params, "buying_type", in.BuyingType)
	if in.BidStrategy != "" {
		params["bid_strategy"] = strings.ToUpper(strings.TrimSpace(in.BidStrategy))
	}
	setIntField(params, "bid_cap", in.BidCap)
	setIntField(params, "spend_cap", in.SpendCap)
	if len(in.ABTestControlSetups) > 0 {
		params["ab_test_control_setups"] = in.ABTestControlSetups
	}

	payload, callErr := s.client.Post(ctx, normalizeAccountID(in.AdAccountID)+"/campaigns", s.resolveToken(in.AccessToken), params)
	if callErr != nil {
		return s.graphResult(nil, callErr)
	}

	if in.UseAdSetLevelBudgets {
		payload["budget_strategy"] = "ad_set_level"
		payload["note"] = "Campaign created with ad set level budgets. Set budgets on child ad sets."
	} else if autoBudgetApplied {
		payload["budget_default_applied"] = fmt.Sprintf("daily_budget=%d", defaultCampaignDailyBudget)
		payload["note"] = fmt.Sprintf("No campaign budget provided, so MCP applied daily_budget=%d.", defaultCampaignDailyBudget)
	}
	return result(payload)
}

func (s *Server) handleUpdateCampaign(ctx context.Context, _ *mcp.CallToolRequest, in UpdateCampaignInput) (*mcp.CallToolResult, Output, error) {
	if in.CampaignID == "" {
		return errOut("No campaign ID provided")
	}
	if bidErr := validateCampaignBidStrategy(in.BidStrategy); bidErr != nil {
		return result(bidErr)
	}

	params := graph.Params{}
	setStringField(params, "name", in.Name)
	setStringField(params, "status", in.Status)

	if in.SpecialAdCategories != nil {
		categories, err := normalizeSpecialAdCategories(in.SpecialAdCategories)
		if err != nil {
			return errOut(err.Error())
		}
		params["special_ad_categories"] = categories
	}

	adSetLevel := in.UseAdSetLevelBudgets != nil && *in.UseAdSetLevelBudgets
	if adSetLevel {
		// Clearing campaign budgets moves budgeting to the child ad sets.
		params["daily_budget"] = ""
		params["lifetime_budget"] = ""
		if in.CampaignBudgetOptimization != nil {
			params["campaign_budget_optimization"] = "false"
		}
	} else {
		setIntField(params, "daily_budget", in.DailyBudget)
		setIntField(params, "lifetime_budget", in.LifetimeBudget)
		setBoolField(params, "campaign_budget_optimization", in.CampaignBudgetOptimization)
	}

	if in.BidStrategy != "" {
		params["bid_strategy"] = strings.ToUpper(strings.TrimSpace(in.BidStrategy))
	}
	setIntField(params, "bid_cap", in.BidCap)
	setIntField(params, "spend_cap", in.SpendCap)
	setStringField(params, "objective", in.Objective)

	if len(params) == 0 {
		return errOut("No update parameters provided")
	}

	payload, err := s.client.Post(ctx, in.CampaignID, s.resolveToken(in.AccessToken), params)
	if err != nil {
		return s.graphResult(nil, err)
	}
	if adSetLevel {
		payload["budget_strategy"] = "ad_set_level"
		payload["note"] = "Campaign updated to use ad set level budgets."
	}
	return result(payload)
}

// normalizeSpecialAdCategories upper-cases and dedupes the category list.
// NONE is exclusive and maps to an empty list; the deprecated CREDIT value
// is rejected with its replacement named.
func normalizeSpecialAdCategories(values []string) ([]string, error) {
	normalized := []string{}
	seen := map[string]bool{}
	for _, raw := range values {
		value := strings.ToUpper(strings.TrimSpace(raw))
		if value == "" || seen[value] {
			continue
		}
		if replacement, deprecated := deprecatedSpecialAdCategories[value]; deprecated {
			return nil, fmt.Errorf("special_ad_categories value '%s' is deprecated and rejected. Use '%s' instead.", value, replacement)
		}
		seen[value] = true
		normalized = append(normalized, value)
	}

	if seen["NONE"] {
		if len(normalized) > 1 {
			return nil, fmt.Errorf("special_ad_categories cannot mix 'NONE' with other categories")
		}
		return []string{}, nil
	}
	return normalized, nil
}

func validateCampaignBidStrategy(bidStrategy string) Output {
	if strings.ToUpper(strings.TrimSpace(bidStrategy)) != "TARGET_COST" {
		return nil
	}
	return Output{
		"error":   "bid_strategy 'TARGET_COST' is deprecated and not supported",
		"details": "Use one of: LOWEST_COST_WITHOUT_CAP, LOWEST_COST_WITH_BID_CAP, COST_CAP, LOWEST_COST_WITH_MIN_ROAS",
		"replacement_examples": []Output{
			{"bid_strategy": "LOWEST_COST_WITHOUT_CAP"},
			{"bid_strategy": "LOWEST_COST_WITH_BID_CAP", "bid_cap": 500},
			{"bid_strategy": "COST_CAP", "bid_cap": 500},
			{"bid_strategy": "LOWEST_COST_WITH_MIN_ROAS", "bid_constraints": Output{"roas_average_floor": 20000}},
		},
	}
}

func normalizeTokens(values []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, raw := range values {
		token := strings.TrimSpace(raw)
		if token == "" || seen[token] {
			continue
		}
		seen[token] = true
		out = append(out, token)
	}
	return out
}
