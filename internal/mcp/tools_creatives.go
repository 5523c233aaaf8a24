package mcp

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/armavita/meta-ads-mcp/internal/graph"
)

const creativeFields = "id,name,status,thumbnail_url,image_url,image_hash,object_story_spec," +
	"asset_feed_spec,image_urls_for_viewing,url_tags,link_url"

// ListAdCreativesInput is the input schema for the list_ad_creatives tool.
type ListAdCreativesInput struct {
	AdID        string `json:"ad_id" jsonschema:"ad id whose creatives to list"`
	AccessToken string `json:"meta_access_token,omitempty" jsonschema:"Meta access token; omit to use the cached login"`
	PageCursor  string `json:"page_cursor,omitempty" jsonschema:"pagination cursor from a previous response"`
}

// ReadAdCreativeInput is the input schema for the read_ad_creative tool.
type ReadAdCreativeInput struct {
	AdCreativeID string `json:"ad_creative_id" jsonschema:"creative id"`
	AccessToken  string `json:"meta_access_token,omitempty" jsonschema:"Meta access token; omit to use the cached login"`
}

func (s *Server) registerCreativeTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_ad_creatives",
		Description: "List the creatives attached to an ad, with viewable image URLs",
	}, s.handleListAdCreatives)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "read_ad_creative",
		Description: "Fetch details for one ad creative",
	}, s.handleReadAdCreative)
}

func (s *Server) handleListAdCreatives(ctx context.Context, _ *mcp.CallToolRequest, in ListAdCreativesInput) (*mcp.CallToolResult, Output, error) {
	if in.AdID == "" {
		return errOut("No ad ID provided")
	}

	params := graph.Params{"fields": creativeFields}
	setStringField(params, "page_cursor", in.PageCursor)

	payload, err := s.client.Get(ctx, in.AdID+"/adcreatives", s.resolveToken(in.AccessToken), params)
	if err != nil {
		return s.graphResult(nil, err)
	}

	if data, ok := payload["data"].([]any); ok {
		for _, raw := range data {
			if row, ok := raw.(map[string]any); ok {
				row["image_urls_for_viewing"] = extractCreativeImageURLs(row)
			}
		}
	}
	return result(payload)
}

func (s *Server) handleReadAdCreative(ctx context.Context, _ *mcp.CallToolRequest, in ReadAdCreativeInput) (*mcp.CallToolResult, Output, error) {
	if in.AdCreativeID == "" {
		return errOut("No creative ID provided")
	}

	// image_urls_for_viewing is a synthesized field; the node read uses the
	// raw field list.
	fields := strings.Replace(creativeFields, ",image_urls_for_viewing", "", 1)
	token := s.resolveToken(in.AccessToken)

	payload, err := s.client.Get(ctx, in.AdCreativeID, token, graph.Params{"fields": fields})
	if err != nil {
		return s.graphResult(nil, err)
	}

	if payload["id"] != nil {
		// dynamic_creative_spec is only returned on a dedicated read and is
		// optional, so its failure does not fail the tool.
		dynamic, dynErr := s.client.Get(ctx, in.AdCreativeID, token, graph.Params{"fields": "dynamic_creative_spec"})
		if dynErr == nil {
			if spec, ok := dynamic["dynamic_creative_spec"]; ok {
				payload["dynamic_creative_spec"] = spec
			}
		}
	}
	return result(payload)
}

// extractCreativeImageURLs collects the distinct image URLs present in a
// creative payload, preferring full-size URLs over thumbnails.
func extractCreativeImageURLs(creative map[string]any) []string {
	urls := []string{}
	seen := map[string]bool{}
	add := func(value any) {
		url, ok := value.(string)
		if ok && url != "" && !seen[url] {
			seen[url] = true
			urls = append(urls, url)
		}
	}

	add(creative["image_url"])
	if story, ok := creative["object_story_spec"].(map[string]any); ok {
		if link, ok := story["link_data"].(map[string]any); ok {
			add(link["picture"])
		}
		if video, ok := story["video_data"].(map[string]any); ok {
			add(video["image_url"])
		}
	}
	if feed, ok := creative["asset_feed_spec"].(map[string]any); ok {
		if images, ok := feed["images"].([]any); ok {
			for _, raw := range images {
				if image, ok := raw.(map[string]any); ok {
					add(image["url"])
				}
			}
		}
	}
	add(creative["thumbnail_url"])
	return urls
}
