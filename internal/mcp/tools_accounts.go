package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/armavita/meta-ads-mcp/internal/graph"
)

const accountFields = "id,name,account_id,account_status,amount_spent,balance,currency," +
	"age,business_city,business_country_code"

// Currencies whose minor unit equals the major unit; everything else is
// reported by Meta in cents.
var zeroDecimalCurrencies = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true,
	"KMF": true, "KRW": true, "MGA": true, "PYG": true, "RWF": true,
	"UGX": true, "VND": true, "VUV": true, "XAF": true, "XOF": true,
	"XPF": true,
}

var euDSACountries = map[string]bool{
	"AT": true, "BE": true, "DE": true, "DK": true, "ES": true, "FI": true,
	"FR": true, "IE": true, "IT": true, "NL": true, "NO": true, "SE": true,
}

// ListAdAccountsInput is the input schema for the list_ad_accounts tool.
type ListAdAccountsInput struct {
	AccessToken string `json:"meta_access_token,omitempty" jsonschema:"Meta access token; omit to use the cached login"`
	UserID      string `json:"meta_user_id,omitempty" jsonschema:"user node to list accounts for (default me)"`
	PageSize    int    `json:"page_size,omitempty" jsonschema:"number of accounts per page (default 200)"`
	PageCursor  string `json:"page_cursor,omitempty" jsonschema:"pagination cursor from a previous response"`
}

// ReadAdAccountInput is the input schema for the read_ad_account tool.
type ReadAdAccountInput struct {
	AdAccountID string `json:"ad_account_id" jsonschema:"ad account id, with or without the act_ prefix"`
	AccessToken string `json:"meta_access_token,omitempty" jsonschema:"Meta access token; omit to use the cached login"`
}

func (s *Server) registerAccountTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_ad_accounts",
		Description: "List the Meta ad accounts visible to a user context",
	}, s.handleListAdAccounts)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "read_ad_account",
		Description: "Read metadata for a single Meta ad account",
	}, s.handleReadAdAccount)
}

func (s *Server) handleListAdAccounts(ctx context.Context, _ *mcp.CallToolRequest, in ListAdAccountsInput) (*mcp.CallToolResult, Output, error) {
	userID := in.UserID
	if userID == "" {
		userID = "me"
	}

	params := graph.Params{
		"fields":    accountFields,
		"page_size": defaultPageSize(in.PageSize, 200),
	}
	setStringField(params, "page_cursor", in.PageCursor)

	payload, err := s.client.Get(ctx, userID+"/adaccounts", s.resolveToken(in.AccessToken), params)
	if err != nil {
		return s.graphResult(nil, err)
	}

	if data, ok := payload["data"].([]any); ok {
		for _, raw := range data {
			if row, ok := raw.(map[string]any); ok {
				normalizeMoneyFields(row)
			}
		}
	}
	return result(payload)
}

func (s *Server) handleReadAdAccount(ctx context.Context, _ *mcp.CallToolRequest, in ReadAdAccountInput) (*mcp.CallToolResult, Output, error) {
	account := normalizeAccountID(in.AdAccountID)
	if account == "" {
		return result(Output{"error": Output{
			"message": "Account ID is required",
			"details": "Please specify an ad_account_id parameter",
			"example": "Use ad_account_id='act_123456789' or ad_account_id='123456789'",
		}})
	}

	token := s.resolveToken(in.AccessToken)
	payload, err := s.client.Get(ctx, account, token, graph.Params{
		"fields": accountFields + ",timezone_name",
	})
	if err != nil {
		if suggestion := s.accessibleAccountsSuggestion(ctx, account, token, err); suggestion != nil {
			return result(suggestion)
		}
		return s.graphResult(nil, err)
	}

	normalizeMoneyFields(payload)
	country := strings.ToUpper(fmt.Sprint(payload["business_country_code"]))
	payload["dsa_required"] = euDSACountries[country]
	if euDSACountries[country] {
		payload["dsa_compliance_note"] = "This account is subject to European DSA (Digital Services Act) requirements"
	} else {
		payload["dsa_compliance_note"] = "This account is not subject to European DSA requirements"
	}
	return result(payload)
}

// accessibleAccountsSuggestion enriches a permission failure on a specific
// account with the accounts the token can actually see.
func (s *Server) accessibleAccountsSuggestion(ctx context.Context, account, token string, cause error) Output {
	if !looksLikeAccessError(cause) {
		return nil
	}

	accounts, err := s.client.Get(ctx, "me/adaccounts", token, graph.Params{
		"fields":    accountFields,
		"page_size": 50,
	})
	if err != nil {
		return nil
	}
	data, ok := accounts["data"].([]any)
	if !ok {
		return nil
	}

	visible := []Output{}
	for _, raw := range data {
		if row, ok := raw.(map[string]any); ok {
			visible = append(visible, Output{"id": row["id"], "name": row["name"]})
		}
	}
	shown := visible
	if len(shown) > 10 {
		shown = shown[:10]
	}
	return Output{"error": Output{
		"message":                   fmt.Sprintf("Account %s is not accessible to your user account", account),
		"details":                   "This account either doesn't exist or you don't have permission to access it",
		"accessible_accounts":       shown,
		"total_accessible_accounts": len(visible),
		"suggestion":                "Try using one of the accessible account IDs listed above",
	}}
}

func looksLikeAccessError(err error) bool {
	text := strings.ToLower(err.Error())
	return strings.Contains(text, "permission") || strings.Contains(text, "access")
}

// normalizeMoneyFields converts the minor-unit amount fields to a decimal
// string in the account's currency.
func normalizeMoneyFields(record map[string]any) {
	currency, _ := record["currency"].(string)
	if currency == "" {
		currency = "USD"
	}
	for _, field := range []string{"amount_spent", "balance"} {
		value, ok := record[field]
		if !ok {
			continue
		}
		record[field] = convertMinorUnits(value, currency)
	}
}

func convertMinorUnits(value any, currency string) string {
	var amount int64
	switch v := value.(type) {
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return v
		}
		amount = parsed
	case float64:
		amount = int64(v)
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			return v.String()
		}
		amount = parsed
	default:
		return fmt.Sprint(value)
	}

	if zeroDecimalCurrencies[strings.ToUpper(currency)] {
		return strconv.FormatInt(amount, 10)
	}
	return fmt.Sprintf("%.2f", float64(amount)/100)
}
