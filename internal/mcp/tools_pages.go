package mcp

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/armavita/meta-ads-mcp/internal/graph"
	"github.com/armavita/meta-ads-mcp/internal/pages"
)

// SearchPagesInput is the input schema for the search_pages tool.
type SearchPagesInput struct {
	AdAccountID string `json:"ad_account_id" jsonschema:"ad account id whose pages to search"`
	AccessToken string `json:"meta_access_token,omitempty" jsonschema:"Meta access token; omit to use the cached login"`
	Query       string `json:"query,omitempty" jsonschema:"case-insensitive page name filter"`
}

// ListAccountPagesInput is the input schema for the list_account_pages tool.
type ListAccountPagesInput struct {
	AdAccountID string `json:"ad_account_id" jsonschema:"ad account id, or 'me' for pages the user manages directly"`
	AccessToken string `json:"meta_access_token,omitempty" jsonschema:"Meta access token; omit to use the cached login"`
}

func (s *Server) registerPageTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_pages",
		Description: "Search the Facebook pages associated with an ad account by name",
	}, s.handleSearchPages)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_account_pages",
		Description: "List all Facebook pages discoverable for an ad account, with source diagnostics",
	}, s.handleListAccountPages)
}

func (s *Server) handleSearchPages(ctx context.Context, _ *mcp.CallToolRequest, in SearchPagesInput) (*mcp.CallToolResult, Output, error) {
	if in.AdAccountID == "" {
		return errOut("No account ID provided")
	}

	token := s.resolveToken(in.AccessToken)
	if token == "" {
		return result(s.authRequired())
	}

	discovery := s.resolver.Discover(ctx, in.AdAccountID, token)
	if len(discovery.Candidates) == 0 {
		return result(Output{
			"data":           []Output{},
			"message":        "No pages found for this account",
			"failed_sources": discovery.Failures,
		})
	}

	if strings.TrimSpace(in.Query) != "" {
		filtered := pages.FilterByName(discovery.Candidates, in.Query)
		return result(Output{
			"data":            candidatePayloads(filtered),
			"query":           in.Query,
			"total_found":     len(filtered),
			"total_available": len(discovery.Candidates),
		})
	}

	return result(Output{
		"data":            candidatePayloads(discovery.Candidates),
		"total_available": len(discovery.Candidates),
		"source_counts":   discovery.SourceCounts(),
		"note":            "Use query to filter pages by name.",
	})
}

func (s *Server) handleListAccountPages(ctx context.Context, _ *mcp.CallToolRequest, in ListAccountPagesInput) (*mcp.CallToolResult, Output, error) {
	if in.AdAccountID == "" {
		return errOut("No account ID provided")
	}

	token := s.resolveToken(in.AccessToken)
	if token == "" {
		return result(s.authRequired())
	}

	// "me" bypasses discovery: just the pages the user manages directly.
	if in.AdAccountID == "me" {
		payload, err := s.client.Get(ctx, "me/accounts", token, graph.Params{
			"fields":    pages.PageFields,
			"page_size": 200,
		})
		if err != nil {
			return s.graphResult(nil, err)
		}
		if data, ok := payload["data"].([]any); ok {
			for _, raw := range data {
				if row, ok := raw.(map[string]any); ok {
					row["source"] = "me/accounts"
					row["confidence"] = pages.ConfidencePrimary
				}
			}
		}
		return result(payload)
	}

	discovery := s.resolver.Discover(ctx, in.AdAccountID, token)
	if len(discovery.Candidates) > 0 {
		return result(Output{
			"data":              candidatePayloads(discovery.Candidates),
			"total_pages_found": len(discovery.Candidates),
			"source_counts":     discovery.SourceCounts(),
			"failed_sources":    discovery.Failures,
		})
	}

	return result(Output{
		"data":           []Output{},
		"message":        "No pages found associated with this account",
		"source_counts":  discovery.SourceCounts(),
		"failed_sources": discovery.Failures,
		"suggestion": "Connect a Facebook page to this ad account or provide facebook_page_id manually. " +
			"Primary documented edges were checked before fallbacks.",
	})
}

func candidatePayloads(candidates []pages.Candidate) []map[string]any {
	out := make([]map[string]any, len(candidates))
	for i, c := range candidates {
		out[i] = c.Payload()
	}
	return out
}
