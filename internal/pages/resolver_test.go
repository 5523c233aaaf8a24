package pages

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armavita/meta-ads-mcp/internal/graph"
)

const testToken = "EAAtest1234567890abcdefghij"

// fakeGraph serves canned responses per path; unlisted paths return a Graph
// error payload.
func fakeGraph(t *testing.T, responses map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/")
		if body, ok := responses[path]; ok {
			fmt.Fprint(w, body)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, `{"error": {"message": "Unsupported get request on %s", "code": 100}}`, path)
	}))
}

func TestNormalizeAccountID(t *testing.T) {
	assert.Equal(t, "act_123", NormalizeAccountID("123"))
	assert.Equal(t, "act_123", NormalizeAccountID("act_123"))
	assert.Equal(t, "act_123", NormalizeAccountID("  123  "))
	assert.Equal(t, "", NormalizeAccountID(""))
}

func TestDiscoverDeduplication(t *testing.T) {
	// P1 appears on both the documented edge and a fallback edge; the
	// documented edge saw it first so its source and tier stick.
	server := fakeGraph(t, map[string]string{
		"me/accounts":           `{"data": [{"id": "111", "name": "Main Page"}]}`,
		"act_42":                `{"id": "act_42"}`,
		"act_42/client_pages":   `{"data": [{"id": "111", "name": "Main Page"}, {"id": "222", "name": "Client Page"}]}`,
		"act_42/assigned_pages": `{"data": []}`,
		"act_42/ads":            `{"data": []}`,
		"act_42/adcreatives":    `{"data": []}`,
	})
	defer server.Close()

	resolver := NewResolver(graph.NewClient(server.URL, nil))
	discovery := resolver.Discover(context.Background(), "42", testToken)

	require.Len(t, discovery.Candidates, 2)

	first := discovery.Candidates[0]
	assert.Equal(t, "111", first.ID)
	assert.Equal(t, "me/accounts", first.Source)
	assert.Equal(t, ConfidencePrimary, first.Confidence)

	second := discovery.Candidates[1]
	assert.Equal(t, "222", second.ID)
	assert.Equal(t, "ad_account/client_pages", second.Source)
	assert.Equal(t, ConfidenceFallback, second.Confidence)

	// The account has no linked business; that edge records a failure.
	sources := make([]string, len(discovery.Failures))
	for i, f := range discovery.Failures {
		sources[i] = f.Source
	}
	assert.Contains(t, sources, "business/owned_pages")
}

func TestDiscoverAllEdgesFailing(t *testing.T) {
	server := fakeGraph(t, nil)
	defer server.Close()

	resolver := NewResolver(graph.NewClient(server.URL, nil))
	discovery := resolver.Discover(context.Background(), "act_42", testToken)

	assert.Empty(t, discovery.Candidates)
	require.Len(t, discovery.Failures, 6)

	sources := make([]string, len(discovery.Failures))
	for i, f := range discovery.Failures {
		sources[i] = f.Source
	}
	assert.Equal(t, []string{
		"me/accounts",
		"business/owned_pages",
		"ad_account/client_pages",
		"ad_account/assigned_pages",
		"ads/tracking_specs",
		"adcreatives/object_story_spec",
	}, sources)
}

func TestDiscoverBusinessOwnedPages(t *testing.T) {
	server := fakeGraph(t, map[string]string{
		"me/accounts":           `{"data": []}`,
		"act_42":                `{"id": "act_42", "business": {"id": "900", "name": "Biz"}}`,
		"900/owned_pages":       `{"data": [{"id": "333", "name": "Biz Page"}]}`,
		"act_42/client_pages":   `{"data": []}`,
		"act_42/assigned_pages": `{"data": []}`,
		"act_42/ads":            `{"data": []}`,
		"act_42/adcreatives":    `{"data": []}`,
	})
	defer server.Close()

	resolver := NewResolver(graph.NewClient(server.URL, nil))
	discovery := resolver.Discover(context.Background(), "act_42", testToken)

	require.Len(t, discovery.Candidates, 1)
	assert.Equal(t, "333", discovery.Candidates[0].ID)
	assert.Equal(t, "business/owned_pages", discovery.Candidates[0].Source)
	assert.Equal(t, ConfidencePrimary, discovery.Candidates[0].Confidence)
	assert.Empty(t, discovery.Failures)
}

func TestDiscoverInferredPages(t *testing.T) {
	server := fakeGraph(t, map[string]string{
		"me/accounts":           `{"data": []}`,
		"act_42":                `{"id": "act_42"}`,
		"act_42/client_pages":   `{"data": []}`,
		"act_42/assigned_pages": `{"data": []}`,
		"act_42/ads": `{"data": [
			{"id": "a1", "tracking_specs": [{"page": ["444", "not-a-number"]}]}
		]}`,
		"act_42/adcreatives": `{"data": [
			{"id": "c1", "object_story_spec": {"page_id": "555"}}
		]}`,
		"444": `{"id": "444", "name": "Tracked Page"}`,
	})
	defer server.Close()

	resolver := NewResolver(graph.NewClient(server.URL, nil))
	discovery := resolver.Discover(context.Background(), "42", testToken)

	require.Len(t, discovery.Candidates, 2)

	assert.Equal(t, "444", discovery.Candidates[0].ID)
	assert.Equal(t, "Tracked Page", discovery.Candidates[0].Name)
	assert.Equal(t, "ads/tracking_specs", discovery.Candidates[0].Source)

	// Page 555 details are not readable; it is still reported.
	assert.Equal(t, "555", discovery.Candidates[1].ID)
	assert.Equal(t, "Unknown", discovery.Candidates[1].Name)
	assert.Equal(t, "adcreatives/object_story_spec", discovery.Candidates[1].Source)
	assert.Equal(t, "page details not accessible", discovery.Candidates[1].Fields["error"])
}

func TestDiscoverForAccount(t *testing.T) {
	t.Run("prefers primary tier candidates", func(t *testing.T) {
		server := fakeGraph(t, map[string]string{
			"me/accounts":           `{"data": []}`,
			"act_42":                `{"id": "act_42", "business": {"id": "900"}}`,
			"900/owned_pages":       `{"data": [{"id": "333", "name": "Biz Page"}]}`,
			"act_42/client_pages":   `{"data": [{"id": "222", "name": "Client Page"}]}`,
			"act_42/assigned_pages": `{"data": []}`,
			"act_42/ads":            `{"data": []}`,
			"act_42/adcreatives":    `{"data": []}`,
		})
		defer server.Close()

		resolver := NewResolver(graph.NewClient(server.URL, nil))
		selection := resolver.DiscoverForAccount(context.Background(), "act_42", testToken)

		require.True(t, selection.Success)
		assert.Equal(t, "333", selection.PageID)
		assert.Equal(t, ConfidencePrimary, selection.Confidence)
		assert.Equal(t, 2, selection.TotalCandidates)
	})

	t.Run("falls back to first candidate of any tier", func(t *testing.T) {
		server := fakeGraph(t, map[string]string{
			"me/accounts":           `{"data": []}`,
			"act_42":                `{"id": "act_42"}`,
			"act_42/client_pages":   `{"data": [{"id": "222", "name": "Client Page"}]}`,
			"act_42/assigned_pages": `{"data": []}`,
			"act_42/ads":            `{"data": []}`,
			"act_42/adcreatives":    `{"data": []}`,
		})
		defer server.Close()

		resolver := NewResolver(graph.NewClient(server.URL, nil))
		selection := resolver.DiscoverForAccount(context.Background(), "act_42", testToken)

		require.True(t, selection.Success)
		assert.Equal(t, "222", selection.PageID)
		assert.Equal(t, ConfidenceFallback, selection.Confidence)
		assert.Contains(t, selection.Note, "secondary fallback")
	})

	t.Run("no candidates reports failure with diagnostics", func(t *testing.T) {
		server := fakeGraph(t, nil)
		defer server.Close()

		resolver := NewResolver(graph.NewClient(server.URL, nil))
		selection := resolver.DiscoverForAccount(context.Background(), "act_42", testToken)

		assert.False(t, selection.Success)
		assert.Len(t, selection.FailedSources, 6)
		assert.Empty(t, selection.PageID)
	})
}

func TestFilterByName(t *testing.T) {
	candidates := []Candidate{
		{ID: "1", Name: "Armavita Shop"},
		{ID: "2", Name: "Test Page"},
		{ID: "3", Name: "armavita studio"},
	}

	filtered := FilterByName(candidates, "ARMAVITA")
	require.Len(t, filtered, 2)
	assert.Equal(t, "1", filtered[0].ID)
	assert.Equal(t, "3", filtered[1].ID)

	assert.Len(t, FilterByName(candidates, ""), 3)
	assert.Empty(t, FilterByName(candidates, "missing"))
}
