package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/armavita/meta-ads-mcp/internal/graph"
)

const adFields = "id,name,adset_id,campaign_id,status,creative,created_time,updated_time," +
	"bid_amount,conversion_domain,tracking_specs"

// ListAdsInput is the input schema for the list_ads tool.
type ListAdsInput struct {
	AdAccountID string `json:"ad_account_id" jsonschema:"ad account id, with or without the act_ prefix"`
	AccessToken string `json:"meta_access_token,omitempty" jsonschema:"Meta access token; omit to use the cached login"`
	PageSize    int    `json:"page_size,omitempty" jsonschema:"number of ads per page (default 10)"`
	CampaignID  string `json:"campaign_id,omitempty" jsonschema:"restrict to ads under this campaign"`
	AdSetID     string `json:"ad_set_id,omitempty" jsonschema:"restrict to ads under this ad set"`
	PageCursor  string `json:"page_cursor,omitempty" jsonschema:"pagination cursor from a previous response"`
}

// ReadAdInput is the input schema for the read_ad tool.
type ReadAdInput struct {
	AdID        string `json:"ad_id" jsonschema:"ad id"`
	AccessToken string `json:"meta_access_token,omitempty" jsonschema:"Meta access token; omit to use the cached login"`
}

// CreateAdInput is the input schema for the create_ad tool.
type CreateAdInput struct {
	AdAccountID   string           `json:"ad_account_id" jsonschema:"ad account id, with or without the act_ prefix"`
	Name          string           `json:"name" jsonschema:"ad name"`
	AdSetID       string           `json:"ad_set_id" jsonschema:"parent ad set id"`
	AdCreativeID  string           `json:"ad_creative_id" jsonschema:"creative id to attach"`
	Status        string           `json:"status,omitempty" jsonschema:"initial status (default PAUSED)"`
	BidAmount     *int             `json:"bid_amount,omitempty" jsonschema:"bid amount in cents"`
	TrackingSpecs []map[string]any `json:"tracking_specs,omitempty" jsonschema:"tracking specs"`
	AccessToken   string           `json:"meta_access_token,omitempty" jsonschema:"Meta access token; omit to use the cached login"`
}

// UpdateAdInput is the input schema for the update_ad tool.
type UpdateAdInput struct {
	AdID          string           `json:"ad_id" jsonschema:"ad id"`
	Status        string           `json:"status,omitempty" jsonschema:"new status"`
	BidAmount     *int             `json:"bid_amount,omitempty" jsonschema:"bid amount in cents"`
	TrackingSpecs []map[string]any `json:"tracking_specs,omitempty" jsonschema:"replacement tracking specs"`
	AdCreativeID  string           `json:"ad_creative_id,omitempty" jsonschema:"swap in a different creative"`
	AccessToken   string           `json:"meta_access_token,omitempty" jsonschema:"Meta access token; omit to use the cached login"`
}

func (s *Server) registerAdTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_ads",
		Description: "List ads under an account, campaign, or ad set",
	}, s.handleListAds)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "read_ad",
		Description: "Fetch details for one ad, including its shareable preview link",
	}, s.handleReadAd)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "create_ad",
		Description: "Create an ad from an existing creative under an ad set",
	}, s.handleCreateAd)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "update_ad",
		Description: "Update an ad's status, bid, creative, or tracking specs",
	}, s.handleUpdateAd)
}

func (s *Server) handleListAds(ctx context.Context, _ *mcp.CallToolRequest, in ListAdsInput) (*mcp.CallToolResult, Output, error) {
	if in.AdAccountID == "" {
		return errOut("No account ID specified")
	}

	// The narrowest provided scope wins.
	target := in.AdSetID
	if target == "" {
		target = in.CampaignID
	}
	if target == "" {
		target = normalizeAccountID(in.AdAccountID)
	}

	params := graph.Params{
		"fields":    adFields,
		"page_size": defaultPageSize(in.PageSize, 10),
	}
	setStringField(params, "page_cursor", in.PageCursor)

	payload, err := s.client.Get(ctx, target+"/ads", s.resolveToken(in.AccessToken), params)
	return s.graphResult(payload, err)
}

func (s *Server) handleReadAd(ctx context.Context, _ *mcp.CallToolRequest, in ReadAdInput) (*mcp.CallToolResult, Output, error) {
	if in.AdID == "" {
		return errOut("No ad ID provided")
	}
	payload, err := s.client.Get(ctx, in.AdID, s.resolveToken(in.AccessToken), graph.Params{
		"fields": adFields + ",preview_shareable_link",
	})
	return s.graphResult(payload, err)
}

func (s *Server) handleCreateAd(ctx context.Context, _ *mcp.CallToolRequest, in CreateAdInput) (*mcp.CallToolResult, Output, error) {
	switch {
	case in.AdAccountID == "":
		return errOut("No account ID provided")
	case in.Name == "":
		return errOut("No ad name provided")
	case in.AdSetID == "":
		return errOut("No ad set ID provided")
	case in.AdCreativeID == "":
		return errOut("No creative ID provided")
	}

	status := in.Status
	if status == "" {
		status = "PAUSED"
	}

	params := graph.Params{
		"name":     in.Name,
		"adset_id": in.AdSetID,
		"creative": map[string]any{"creative_id": in.AdCreativeID},
		"status":   status,
	}
	setIntField(params, "bid_amount", in.BidAmount)
	if in.TrackingSpecs != nil {
		params["tracking_specs"] = in.TrackingSpecs
	}

	payload, err := s.client.Post(ctx, normalizeAccountID(in.AdAccountID)+"/ads", s.resolveToken(in.AccessToken), params)
	return s.graphResult(payload, err)
}

func (s *Server) handleUpdateAd(ctx context.Context, _ *mcp.CallToolRequest, in UpdateAdInput) (*mcp.CallToolResult, Output, error) {
	if in.AdID == "" {
		return errOut("Ad ID is required")
	}

	params := graph.Params{}
	setStringField(params, "status", in.Status)
	setIntField(params, "bid_amount", in.BidAmount)
	if in.TrackingSpecs != nil {
		params["tracking_specs"] = in.TrackingSpecs
	}
	if in.AdCreativeID != "" {
		params["creative"] = map[string]any{"creative_id": in.AdCreativeID}
	}

	if len(params) == 0 {
		return errOut("No update parameters provided (status, bid_amount, tracking_specs, or ad_creative_id)")
	}

	payload, err := s.client.Post(ctx, in.AdID, s.resolveToken(in.AccessToken), params)
	return s.graphResult(payload, err)
}
