package mcp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/armavita/meta-ads-mcp/internal/graph"
	"github.com/armavita/meta-ads-mcp/internal/oauth"
)

// Output is the dynamic JSON payload every tool returns. Graph responses
// pass through mostly unshaped; errors are reported inside the payload with
// an "error" key rather than as protocol errors, so the calling model can
// read and act on them.
type Output = map[string]any

func result(out Output) (*mcp.CallToolResult, Output, error) {
	return nil, out, nil
}

func errOut(message string) (*mcp.CallToolResult, Output, error) {
	return result(Output{"error": message})
}

// resolveToken picks the access token for one tool call: the explicit
// argument wins, then the environment override, then the managed token.
func (s *Server) resolveToken(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return s.manager.CurrentToken()
}

// authRequired is the stable envelope returned when no token is available.
// It carries the OAuth URL so the user can be pointed at the login flow.
func (s *Server) authRequired() Output {
	redirectURI := fmt.Sprintf("http://localhost:%d/callback", oauth.BasePort)
	authURL := s.manager.AuthURL(redirectURI, "")
	return Output{
		"error": Output{
			"message": "Authentication Required",
			"details": Output{
				"description":     "You need to authenticate with the Meta API before using this tool",
				"action_required": "Please authenticate first",
				"auth_url":        authURL,
				"configuration_status": Output{
					"app_id_configured": s.cfg.AppID != "",
				},
				"troubleshooting": "Set META_ACCESS_TOKEN or complete OAuth login with META_APP_ID and META_APP_SECRET.",
				"markdown_link":   fmt.Sprintf("[Click here to authenticate with Meta Ads API](%s)", authURL),
			},
		},
	}
}

// graphResult folds a Graph call outcome into a tool payload. Missing
// tokens become the auth envelope; typed Graph errors are rendered with
// their code and message, plus the auth hint when the token was rejected.
func (s *Server) graphResult(payload Output, err error) (*mcp.CallToolResult, Output, error) {
	if err == nil {
		return result(payload)
	}
	if errors.Is(err, graph.ErrNoToken) {
		return result(s.authRequired())
	}

	var apiErr *graph.Error
	if errors.As(err, &apiErr) {
		if graph.IsAppConfigError(apiErr) {
			return result(Output{
				"error": Output{
					"message":        "Meta API authentication configuration issue. Please check your app credentials.",
					"original_error": apiErr.Message,
					"code":           apiErr.Code,
				},
			})
		}

		out := Output{
			"error": Output{
				"message":       apiErr.Message,
				"type":          apiErr.Type,
				"code":          apiErr.Code,
				"error_subcode": apiErr.Subcode,
				"http_status":   apiErr.HTTPStatus,
				"fbtrace_id":    apiErr.FBTraceID,
			},
		}
		if graph.IsAuthError(apiErr) {
			out["auth_required"] = true
			out["auth_hint"] = s.authRequired()["error"]
		}
		if graph.IsRateLimited(apiErr) {
			out["rate_limited"] = true
			out["retry_hint"] = "Meta API rate limit reached. Wait before retrying; the client already spaces calls when usage headers cross the threshold."
		}
		return result(out)
	}
	return result(Output{"error": err.Error()})
}

func normalizeAccountID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.HasPrefix(id, "act_") {
		return id
	}
	return "act_" + id
}

func defaultPageSize(requested, fallback int) int {
	if requested <= 0 {
		return fallback
	}
	return requested
}

// The marketing write endpoints expect numeric and boolean fields as
// strings; these helpers add them only when the caller supplied a value.
func setIntField(p graph.Params, key string, value *int) {
	if value != nil {
		p[key] = fmt.Sprintf("%d", *value)
	}
}

func setStringField(p graph.Params, key string, value string) {
	if value != "" {
		p[key] = value
	}
}

func setBoolField(p graph.Params, key string, value *bool) {
	if value != nil {
		if *value {
			p[key] = "true"
		} else {
			p[key] = "false"
		}
	}
}
