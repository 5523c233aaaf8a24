package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertMinorUnits(t *testing.T) {
	assert.Equal(t, "12.34", convertMinorUnits("1234", "USD"))
	assert.Equal(t, "12.34", convertMinorUnits(float64(1234), "EUR"))
	assert.Equal(t, "12.34", convertMinorUnits(json.Number("1234"), "GBP"))

	// Zero-decimal currencies are already in major units.
	assert.Equal(t, "1234", convertMinorUnits("1234", "JPY"))
	assert.Equal(t, "1234", convertMinorUnits("1234", "krw"))

	// Unparseable values pass through untouched.
	assert.Equal(t, "n/a", convertMinorUnits("n/a", "USD"))
}

func TestNormalizeMoneyFields(t *testing.T) {
	t.Run("converts spend and balance in the row currency", func(t *testing.T) {
		row := map[string]any{
			"currency":     "EUR",
			"amount_spent": "15000",
			"balance":      "250",
		}
		normalizeMoneyFields(row)

		assert.Equal(t, "150.00", row["amount_spent"])
		assert.Equal(t, "2.50", row["balance"])
	})

	t.Run("missing currency defaults to USD", func(t *testing.T) {
		row := map[string]any{"amount_spent": "100"}
		normalizeMoneyFields(row)
		assert.Equal(t, "1.00", row["amount_spent"])
	})

	t.Run("absent fields are left alone", func(t *testing.T) {
		row := map[string]any{"currency": "USD", "name": "Account"}
		normalizeMoneyFields(row)
		assert.Equal(t, "Account", row["name"])
	})
}

func TestLooksLikeAccessError(t *testing.T) {
	assert.True(t, looksLikeAccessError(errors.New("Missing Permission on node")))
	assert.True(t, looksLikeAccessError(errors.New("cannot access this object")))
	assert.False(t, looksLikeAccessError(errors.New("Invalid parameter")))
}

func TestHandleReadAdAccount(t *testing.T) {
	t.Run("missing id is a structured error", func(t *testing.T) {
		s := testMCPServer(t, nil)

		_, out, err := s.handleReadAdAccount(context.Background(), nil, ReadAdAccountInput{})
		require.NoError(t, err)
		assert.Equal(t, "Account ID is required", out["error"].(Output)["message"])
	})

	t.Run("eu account is flagged for dsa", func(t *testing.T) {
		s := testMCPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/act_42", r.URL.Path)
			fmt.Fprint(w, `{"id": "act_42", "currency": "EUR", "amount_spent": "1000", "business_country_code": "DE"}`)
		}))

		_, out, err := s.handleReadAdAccount(context.Background(), nil, ReadAdAccountInput{AdAccountID: "42"})
		require.NoError(t, err)

		assert.Equal(t, true, out["dsa_required"])
		assert.Contains(t, out["dsa_compliance_note"], "subject to European DSA")
		assert.Equal(t, "10.00", out["amount_spent"])
	})

	t.Run("non-eu account is not flagged", func(t *testing.T) {
		s := testMCPServer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"id": "act_42", "currency": "USD", "business_country_code": "US"}`)
		}))

		_, out, err := s.handleReadAdAccount(context.Background(), nil, ReadAdAccountInput{AdAccountID: "act_42"})
		require.NoError(t, err)
		assert.Equal(t, false, out["dsa_required"])
	})

	t.Run("permission failure lists accessible accounts", func(t *testing.T) {
		s := testMCPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/me/adaccounts" {
				fmt.Fprint(w, `{"data": [{"id": "act_1", "name": "Mine"}, {"id": "act_2", "name": "Also mine"}]}`)
				return
			}
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"error": {"message": "Missing permission to access this object", "code": 200}}`)
		}))

		_, out, err := s.handleReadAdAccount(context.Background(), nil, ReadAdAccountInput{AdAccountID: "act_999"})
		require.NoError(t, err)

		inner := out["error"].(Output)
		assert.Contains(t, inner["message"], "act_999")
		assert.Equal(t, 2, inner["total_accessible_accounts"])
		assert.Len(t, inner["accessible_accounts"], 2)
	})
}

func TestHandleListAdAccounts(t *testing.T) {
	s := testMCPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/adaccounts", r.URL.Path)
		assert.Equal(t, "200", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `{"data": [{"id": "act_1", "currency": "USD", "amount_spent": "500"}]}`)
	}))

	_, out, err := s.handleListAdAccounts(context.Background(), nil, ListAdAccountsInput{})
	require.NoError(t, err)

	rows := out["data"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "5.00", rows[0].(map[string]any)["amount_spent"])
}
