package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/armavita/meta-ads-mcp/internal/graph"
)

const (
	adSetListFields = "id,name,campaign_id,status,daily_budget,lifetime_budget,targeting,bid_amount,bid_strategy," +
		"bid_constraints,optimization_goal,billing_event,start_time,end_time,created_time,updated_time," +
		"is_dynamic_creative,frequency_control_specs{event,interval_days,max_frequency}"
	adSetReadFields = "id,name,campaign_id,status,frequency_control_specs{event,interval_days,max_frequency}," +
		"daily_budget,lifetime_budget,targeting,bid_amount,bid_strategy,bid_constraints," +
		"optimization_goal,billing_event,start_time,end_time,created_time,updated_time," +
		"attribution_spec,destination_type,promoted_object,pacing_type,budget_remaining," +
		"dsa_beneficiary,is_dynamic_creative"
)

var (
	appStoreHosts             = []string{"apps.apple.com", "itunes.apple.com", "play.google.com"}
	bidStrategiesRequiringCap = map[string]bool{
		"LOWEST_COST_WITH_BID_CAP": true,
		"COST_CAP":                 true,
	}
)

// ListAdSetsInput is the input schema for the list_ad_sets tool.
type ListAdSetsInput struct {
	AdAccountID string `json:"ad_account_id" jsonschema:"ad account id, with or without the act_ prefix"`
	AccessToken string `json:"meta_access_token,omitempty" jsonschema:"Meta access token; omit to use the cached login"`
	PageSize    int    `json:"page_size,omitempty" jsonschema:"number of ad sets per page (default 10)"`
	CampaignID  string `json:"campaign_id,omitempty" jsonschema:"restrict to ad sets under this campaign"`
	PageCursor  string `json:"page_cursor,omitempty" jsonschema:"pagination cursor from a previous response"`
}

// ReadAdSetInput is the input schema for the read_ad_set tool.
type ReadAdSetInput struct {
	AdSetID     string `json:"ad_set_id" jsonschema:"ad set id"`
	AccessToken string `json:"meta_access_token,omitempty" jsonschema:"Meta access token; omit to use the cached login"`
}

// CreateAdSetInput is the input schema for the create_ad_set tool.
type CreateAdSetInput struct {
	AdAccountID       string         `json:"ad_account_id" jsonschema:"ad account id, with or without the act_ prefix"`
	CampaignID        string         `json:"campaign_id" jsonschema:"parent campaign id"`
	Name              string         `json:"name" jsonschema:"ad set name"`
	OptimizationGoal  string         `json:"optimization_goal" jsonschema:"optimization goal, e.g. LINK_CLICKS"`
	BillingEvent      string         `json:"billing_event" jsonschema:"billing event, e.g. IMPRESSIONS"`
	Status            string         `json:"status,omitempty" jsonschema:"initial status (default PAUSED)"`
	DailyBudget       *int           `json:"daily_budget,omitempty" jsonschema:"daily budget in cents"`
	LifetimeBudget    *int           `json:"lifetime_budget,omitempty" jsonschema:"lifetime budget in cents"`
	Targeting         map[string]any `json:"targeting,omitempty" jsonschema:"targeting spec; defaults to 18-65 in US with Advantage audience"`
	BidAmount         *int           `json:"bid_amount,omitempty" jsonschema:"bid amount in cents"`
	BidStrategy       string         `json:"bid_strategy,omitempty" jsonschema:"bid strategy"`
	BidConstraints    map[string]any `json:"bid_constraints,omitempty" jsonschema:"bid constraints for ROAS strategies"`
	StartTime         string         `json:"start_time,omitempty" jsonschema:"ISO 8601 start time"`
	EndTime           string         `json:"end_time,omitempty" jsonschema:"ISO 8601 end time"`
	DSABeneficiary    string         `json:"dsa_beneficiary,omitempty" jsonschema:"DSA beneficiary for EU compliance"`
	PromotedObject    map[string]any `json:"promoted_object,omitempty" jsonschema:"promoted object; required for APP_INSTALLS"`
	DestinationType   string         `json:"destination_type,omitempty" jsonschema:"destination type"`
	IsDynamicCreative *bool          `json:"is_dynamic_creative,omitempty" jsonschema:"enable dynamic creative"`
	AccessToken       string         `json:"meta_access_token,omitempty" jsonschema:"Meta access token; omit to use the cached login"`
}

// UpdateAdSetInput is the input schema for the update_ad_set tool.
type UpdateAdSetInput struct {
	AdSetID               string           `json:"ad_set_id" jsonschema:"ad set id"`
	FrequencyControlSpecs []map[string]any `json:"frequency_control_specs,omitempty" jsonschema:"frequency control specs"`
	BidStrategy           string           `json:"bid_strategy,omitempty" jsonschema:"bid strategy"`
	BidAmount             *int             `json:"bid_amount,omitempty" jsonschema:"bid amount in cents"`
	BidConstraints        map[string]any   `json:"bid_constraints,omitempty" jsonschema:"bid constraints for ROAS strategies"`
	Status                string           `json:"status,omitempty" jsonschema:"new status"`
	Targeting             map[string]any   `json:"targeting,omitempty" jsonschema:"replacement targeting spec"`
	OptimizationGoal      string           `json:"optimization_goal,omitempty" jsonschema:"new optimization goal"`
	DailyBudget           *int             `json:"daily_budget,omitempty" jsonschema:"daily budget in cents"`
	LifetimeBudget        *int             `json:"lifetime_budget,omitempty" jsonschema:"lifetime budget in cents"`
	IsDynamicCreative     *bool            `json:"is_dynamic_creative,omitempty" jsonschema:"enable dynamic creative"`
	AccessToken           string           `json:"meta_access_token,omitempty" jsonschema:"Meta access token; omit to use the cached login"`
}

func (s *Server) registerAdSetTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_ad_sets",
		Description: "List ad sets under an account or campaign",
	}, s.handleListAdSets)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "read_ad_set",
		Description: "Fetch full details for one ad set",
	}, s.handleReadAdSet)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "create_ad_set",
		Description: "Create an ad set under a campaign",
	}, s.handleCreateAdSet)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "update_ad_set",
		Description: "Update an ad set's delivery, budgeting, and targeting configuration",
	}, s.handleUpdateAdSet)
}

func (s *Server) handleListAdSets(ctx context.Context, _ *mcp.CallToolRequest, in ListAdSetsInput) (*mcp.CallToolResult, Output, error) {
	if in.AdAccountID == "" {
		return errOut("No account ID specified")
	}

	target := in.CampaignID
	if target == "" {
		target = normalizeAccountID(in.AdAccountID)
	}

	params := graph.Params{
		"fields":    adSetListFields,
		"page_size": defaultPageSize(in.PageSize, 10),
	}
	setStringField(params, "page_cursor", in.PageCursor)

	payload, err := s.client.Get(ctx, target+"/adsets", s.resolveToken(in.AccessToken), params)
	return s.graphResult(payload, err)
}

func (s *Server) handleReadAdSet(ctx context.Context, _ *mcp.CallToolRequest, in ReadAdSetInput) (*mcp.CallToolResult, Output, error) {
	if in.AdSetID == "" {
		return errOut("No ad set ID provided")
	}

	payload, err := s.client.Get(ctx, in.AdSetID, s.resolveToken(in.AccessToken), graph.Params{
		"fields": adSetReadFields,
	})
	if err != nil {
		return s.graphResult(nil, err)
	}
	if _, ok := payload["frequency_control_specs"]; !ok {
		payload["_meta"] = Output{
			"note": "No frequency_control_specs were returned. Either none are set or the API omitted the field.",
		}
	}
	return result(payload)
}

func (s *Server) handleCreateAdSet(ctx context.Context, _ *mcp.CallToolRequest, in CreateAdSetInput) (*mcp.CallToolResult, Output, error) {
	switch {
	case in.AdAccountID == "":
		return errOut("No account ID provided")
	case in.CampaignID == "":
		return errOut("No campaign ID provided")
	case in.Name == "":
		return errOut("No ad set name provided")
	case in.OptimizationGoal == "":
		return errOut("No optimization goal provided")
	case in.BillingEvent == "":
		return errOut("No billing event provided")
	}

	if appErr := validatePromotedObjectForAppInstalls(in.OptimizationGoal, in.PromotedObject); appErr != nil {
		return result(appErr)
	}
	if bidErr := s.validateBidControls(in.BidStrategy, in.BidAmount, in.BidConstraints); bidErr != nil {
		return result(bidErr)
	}

	token := s.resolveToken(in.AccessToken)

	// Cap-style strategies on the parent campaign also require a bid amount
	// on each ad set; catch that before the API rejects the create.
	if in.BidAmount == nil {
		if parentStrategy := s.parentCampaignBidStrategy(ctx, in.CampaignID, token); parentStrategy != "" {
			if bidStrategiesRequiringCap[parentStrategy] || parentStrategy == "TARGET_COST" {
				return result(Output{
					"error":                   fmt.Sprintf("bid_amount is required because the parent campaign uses bid_strategy '%s'", parentStrategy),
					"details":                 "Provide bid_amount in cents or update parent campaign strategy.",
					"example_with_bid_amount": Output{"bid_amount": 500},
				})
			}
		}
	}

	status := in.Status
	if status == "" {
		status = "PAUSED"
	}

	params := graph.Params{
		"name":              in.Name,
		"campaign_id":       in.CampaignID,
		"status":            status,
		"optimization_goal": in.OptimizationGoal,
		"billing_event":     in.BillingEvent,
		"targeting":         normalizeTargeting(in.Targeting),
	}
	setIntField(params, "daily_budget", in.DailyBudget)
	setIntField(params, "lifetime_budget", in.LifetimeBudget)
	setIntField(params, "bid_amount", in.BidAmount)
	if in.BidStrategy != "" {
		params["bid_strategy"] = strings.ToUpper(strings.TrimSpace(in.BidStrategy))
	}
	if in.BidConstraints != nil {
		params["bid_constraints"] = in.BidConstraints
	}
	setStringField(params, "start_time", in.StartTime)
	setStringField(params, "end_time", in.EndTime)
	setStringField(params, "dsa_beneficiary", in.DSABeneficiary)
	if in.PromotedObject != nil {
		params["promoted_object"] = in.PromotedObject
	}
	setStringField(params, "destination_type", in.DestinationType)
	setBoolField(params, "is_dynamic_creative", in.IsDynamicCreative)

	payload, err := s.client.Post(ctx, normalizeAccountID(in.AdAccountID)+"/adsets", token, params)
	if err != nil {
		if dsaErr := classifyDSAError(err); dsaErr != nil {
			return result(dsaErr)
		}
		return s.graphResult(nil, err)
	}
	return result(payload)
}

func (s *Server) handleUpdateAdSet(ctx context.Context, _ *mcp.CallToolRequest, in UpdateAdSetInput) (*mcp.CallToolResult, Output, error) {
	if in.AdSetID == "" {
		return errOut("No ad set ID provided")
	}
	if bidErr := s.validateBidControls(in.BidStrategy, in.BidAmount, in.BidConstraints); bidErr != nil {
		return result(bidErr)
	}

	params := graph.Params{}
	if in.FrequencyControlSpecs != nil {
		params["frequency_control_specs"] = in.FrequencyControlSpecs
	}
	if in.BidStrategy != "" {
		params["bid_strategy"] = strings.ToUpper(strings.TrimSpace(in.BidStrategy))
	}
	setIntField(params, "bid_amount", in.BidAmount)
	if in.BidConstraints != nil {
		params["bid_constraints"] = in.BidConstraints
	}
	setStringField(params, "status", in.Status)
	if in.Targeting != nil {
		params["targeting"] = in.Targeting
	}
	setStringField(params, "optimization_goal", in.OptimizationGoal)
	setIntField(params, "daily_budget", in.DailyBudget)
	setIntField(params, "lifetime_budget", in.LifetimeBudget)
	setBoolField(params, "is_dynamic_creative", in.IsDynamicCreative)

	if len(params) == 0 {
		return errOut("No update parameters provided")
	}

	payload, err := s.client.Post(ctx, in.AdSetID, s.resolveToken(in.AccessToken), params)
	return s.graphResult(payload, err)
}

// parentCampaignBidStrategy reads the parent campaign's bid strategy;
// failures are swallowed since this is advisory validation only.
func (s *Server) parentCampaignBidStrategy(ctx context.Context, campaignID, token string) string {
	payload, err := s.client.Get(ctx, campaignID, token, graph.Params{"fields": "bid_strategy"})
	if err != nil {
		return ""
	}
	strategy, _ := payload["bid_strategy"].(string)
	return strategy
}

func (s *Server) validateBidControls(bidStrategy string, bidAmount *int, bidConstraints map[string]any) Output {
	normalized := strings.ToUpper(strings.TrimSpace(bidStrategy))
	if normalized == "" {
		return nil
	}

	switch normalized {
	case "TARGET_COST":
		return Output{
			"error":   "bid_strategy 'TARGET_COST' is deprecated and not supported",
			"details": "Use one of: LOWEST_COST_WITHOUT_CAP, LOWEST_COST_WITH_BID_CAP, COST_CAP, LOWEST_COST_WITH_MIN_ROAS",
		}
	case "LOWEST_COST":
		return Output{
			"error":      "'LOWEST_COST' is not a valid bid_strategy value",
			"details":    fmt.Sprintf("The 'LOWEST_COST' bid strategy is not valid in Meta Ads API %s", s.cfg.GraphVersion),
			"workaround": "Use 'LOWEST_COST_WITHOUT_CAP' instead (no bid_amount required)",
			"valid_values": []string{
				"LOWEST_COST_WITHOUT_CAP", "LOWEST_COST_WITH_BID_CAP", "COST_CAP", "LOWEST_COST_WITH_MIN_ROAS",
			},
		}
	}

	if bidStrategiesRequiringCap[normalized] && bidAmount == nil {
		return Output{
			"error":                      fmt.Sprintf("bid_amount is required when using bid_strategy '%s'", normalized),
			"details":                    fmt.Sprintf("The '%s' bid strategy requires you to specify a bid amount in cents", normalized),
			"workaround":                 "Either provide bid_amount or use LOWEST_COST_WITHOUT_CAP",
			"example_with_bid_amount":    Output{"bid_strategy": normalized, "bid_amount": 500},
			"example_without_bid_amount": Output{"bid_strategy": "LOWEST_COST_WITHOUT_CAP"},
		}
	}
	if normalized == "LOWEST_COST_WITH_MIN_ROAS" && len(bidConstraints) == 0 {
		return Output{
			"error":   "bid_constraints is required when using bid_strategy 'LOWEST_COST_WITH_MIN_ROAS'",
			"details": "Provide bid_constraints with roas_average_floor (target ROAS * 10000)",
			"example": Output{
				"bid_strategy":      "LOWEST_COST_WITH_MIN_ROAS",
				"bid_constraints":   Output{"roas_average_floor": 20000},
				"optimization_goal": "VALUE",
			},
		}
	}
	return nil
}

func validatePromotedObjectForAppInstalls(optimizationGoal string, promotedObject map[string]any) Output {
	if optimizationGoal != "APP_INSTALLS" {
		return nil
	}
	if len(promotedObject) == 0 {
		return Output{
			"error":           "promoted_object is required for APP_INSTALLS optimization goal",
			"details":         "Mobile app campaigns must specify which app is being promoted",
			"required_fields": []string{"application_id", "object_store_url"},
		}
	}
	if appID := fmt.Sprint(promotedObject["application_id"]); appID == "" || appID == "<nil>" {
		return Output{
			"error":   "promoted_object missing required field: application_id",
			"details": "application_id is the Facebook app ID for your mobile app",
		}
	}

	storeURL, _ := promotedObject["object_store_url"].(string)
	if storeURL == "" {
		return Output{
			"error":   "promoted_object missing required field: object_store_url",
			"details": "object_store_url should be the App Store or Google Play URL for your app",
		}
	}
	for _, host := range appStoreHosts {
		if strings.Contains(storeURL, host) {
			return nil
		}
	}
	return Output{
		"error":        "Invalid object_store_url format",
		"details":      "URL must be from App Store (apps.apple.com) or Google Play (play.google.com)",
		"provided_url": storeURL,
	}
}

// normalizeTargeting fills the default audience when the caller supplied
// none, and marks Advantage audience as explicitly off when the caller
// supplied targeting without a targeting_automation block.
func normalizeTargeting(targeting map[string]any) map[string]any {
	if len(targeting) == 0 {
		return map[string]any{
			"age_min":              18,
			"age_max":              65,
			"geo_locations":        map[string]any{"countries": []string{"US"}},
			"targeting_automation": map[string]any{"advantage_audience": 1},
		}
	}

	normalized := map[string]any{}
	for k, v := range targeting {
		normalized[k] = v
	}
	if _, ok := normalized["targeting_automation"]; !ok {
		normalized["targeting_automation"] = map[string]any{"advantage_audience": 0}
	}
	return normalized
}

// classifyDSAError maps the EU DSA beneficiary failure modes onto stable
// error payloads with remediation hints.
func classifyDSAError(err error) Output {
	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "permission") || strings.Contains(text, "insufficient"):
		return Output{
			"error":               "Insufficient permissions to set DSA beneficiary. Please ensure business_management permissions.",
			"details":             err.Error(),
			"permission_required": true,
		}
	case strings.Contains(text, "dsa_beneficiary") && (strings.Contains(text, "not supported") || strings.Contains(text, "parameter")):
		return Output{
			"error":                 "DSA beneficiary parameter not supported in this API version.",
			"details":               err.Error(),
			"manual_setup_required": true,
		}
	case strings.Contains(text, "benefits from ads") || strings.Contains(text, "dsa beneficiary"):
		return Output{
			"error":        "DSA beneficiary required for European compliance.",
			"details":      err.Error(),
			"dsa_required": true,
		}
	}
	return nil
}
