// Package pages discovers the Facebook pages usable with an ad account.
// Meta exposes no single authoritative edge for this, so the resolver walks
// a fixed priority list of documented and fallback edges and merges the
// results.
package pages

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/armavita/meta-ads-mcp/internal/graph"
	"github.com/armavita/meta-ads-mcp/internal/logger"
)

// PageFields is the field list requested for every page lookup.
const PageFields = "id,name,username,category,fan_count,link,verification_status,picture"

// Candidate confidence tiers. Documented edges outrank ids inferred from
// ad payloads.
const (
	ConfidencePrimary  = "primary_documented"
	ConfidenceFallback = "secondary_fallback"
)

// Candidate is one discovered page plus where it came from. Fields holds
// the raw page payload from the Graph response.
type Candidate struct {
	ID         string
	Name       string
	Source     string
	Confidence string
	Fields     map[string]any
}

// Failure records one discovery edge that could not be queried.
type Failure struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// Discovery is the merged result of all edges.
type Discovery struct {
	Candidates []Candidate
	Failures   []Failure
}

// SourceCounts tallies candidates per confidence tier.
func (d *Discovery) SourceCounts() map[string]int {
	counts := map[string]int{ConfidencePrimary: 0, ConfidenceFallback: 0}
	for _, c := range d.Candidates {
		counts[c.Confidence]++
	}
	return counts
}

// Selection is the outcome of picking one page for an account.
type Selection struct {
	Success         bool      `json:"success"`
	PageID          string    `json:"facebook_page_id,omitempty"`
	PageName        string    `json:"page_name,omitempty"`
	Source          string    `json:"source,omitempty"`
	Confidence      string    `json:"confidence,omitempty"`
	TotalCandidates int       `json:"total_candidates,omitempty"`
	Message         string    `json:"message,omitempty"`
	Note            string    `json:"note,omitempty"`
	FailedSources   []Failure `json:"failed_sources,omitempty"`
}

// Resolver runs page discovery against the Graph API.
type Resolver struct {
	client *graph.Client
}

// NewResolver creates a resolver on top of the given Graph client.
func NewResolver(client *graph.Client) *Resolver {
	return &Resolver{client: client}
}

// NormalizeAccountID ensures the act_ prefix Meta requires on ad account
// node paths.
func NormalizeAccountID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.HasPrefix(id, "act_") {
		return id
	}
	return "act_" + id
}

// Discover walks all six edges in priority order. A failing edge is
// recorded and never aborts the others; ids are deduplicated with the first
// occurrence winning, so an id surfaced by a documented edge keeps that
// edge's source and tier.
func (r *Resolver) Discover(ctx context.Context, accountID, accessToken string) *Discovery {
	account := NormalizeAccountID(accountID)
	d := &Discovery{}
	seen := map[string]bool{}

	add := func(page map[string]any, source, confidence string) {
		id := strings.TrimSpace(fmt.Sprint(page["id"]))
		if id == "" || id == "<nil>" || seen[id] {
			return
		}
		seen[id] = true
		name, _ := page["name"].(string)
		d.Candidates = append(d.Candidates, Candidate{
			ID:         id,
			Name:       name,
			Source:     source,
			Confidence: confidence,
			Fields:     page,
		})
	}

	fail := func(source string, err error) {
		logger.Debugf("page discovery edge %s failed: %v", source, err)
		d.Failures = append(d.Failures, Failure{Source: source, Reason: err.Error()})
	}

	addEdge := func(source, path string, confidence string) {
		payload, err := r.client.Get(ctx, path, accessToken, graph.Params{
			"fields": PageFields,
			"limit":  200,
		})
		if err != nil {
			fail(source, err)
			return
		}
		for _, row := range rows(payload) {
			add(row, source, confidence)
		}
	}

	// 1. Pages the user manages directly.
	addEdge("me/accounts", "me/accounts", ConfidencePrimary)

	// 2. Pages owned by the account's linked business, if any.
	r.discoverBusinessPages(ctx, account, accessToken, add, fail)

	// 3-4. Ad-account page edges.
	addEdge("ad_account/client_pages", account+"/client_pages", ConfidenceFallback)
	addEdge("ad_account/assigned_pages", account+"/assigned_pages", ConfidenceFallback)

	// 5. Page ids referenced by existing ads' tracking specs.
	r.discoverFromTrackingSpecs(ctx, account, accessToken, seen, add, fail)

	// 6. Page ids referenced by creatives' story specs.
	r.discoverFromStorySpecs(ctx, account, accessToken, seen, add, fail)

	return d
}

func (r *Resolver) discoverBusinessPages(ctx context.Context, account, accessToken string, add func(map[string]any, string, string), fail func(string, error)) {
	const source = "business/owned_pages"

	payload, err := r.client.Get(ctx, account, accessToken, graph.Params{"fields": "business{id,name}"})
	if err != nil {
		fail(source, err)
		return
	}

	var businessID string
	switch business := payload["business"].(type) {
	case map[string]any:
		businessID = strings.TrimSpace(fmt.Sprint(business["id"]))
	case string:
		businessID = strings.TrimSpace(business)
	}
	if businessID == "" || businessID == "<nil>" {
		fail(source, fmt.Errorf("ad account is not linked to a business"))
		return
	}

	owned, err := r.client.Get(ctx, businessID+"/owned_pages", accessToken, graph.Params{
		"fields": PageFields,
		"limit":  200,
	})
	if err != nil {
		fail(source, err)
		return
	}
	for _, row := range rows(owned) {
		add(row, source, ConfidencePrimary)
	}
}

func (r *Resolver) discoverFromTrackingSpecs(ctx context.Context, account, accessToken string, seen map[string]bool, add func(map[string]any, string, string), fail func(string, error)) {
	const source = "ads/tracking_specs"

	payload, err := r.client.Get(ctx, account+"/ads", accessToken, graph.Params{
		"fields": "id,tracking_specs",
		"limit":  100,
	})
	if err != nil {
		fail(source, err)
		return
	}

	ids := map[string]bool{}
	for _, ad := range rows(payload) {
		specs, _ := ad["tracking_specs"].([]any)
		for _, raw := range specs {
			spec, _ := raw.(map[string]any)
			values, _ := spec["page"].([]any)
			for _, value := range values {
				id := strings.TrimSpace(fmt.Sprint(value))
				if isDigits(id) {
					ids[id] = true
				}
			}
		}
	}

	for _, id := range sortedKeys(ids) {
		r.addPageByID(ctx, id, accessToken, source, seen, add)
	}
}

func (r *Resolver) discoverFromStorySpecs(ctx context.Context, account, accessToken string, seen map[string]bool, add func(map[string]any, string, string), fail func(string, error)) {
	const source = "adcreatives/object_story_spec"

	payload, err := r.client.Get(ctx, account+"/adcreatives", accessToken, graph.Params{
		"fields": "id,object_story_spec",
		"limit":  100,
	})
	if err != nil {
		fail(source, err)
		return
	}

	ids := map[string]bool{}
	for _, creative := range rows(payload) {
		story, _ := creative["object_story_spec"].(map[string]any)
		if story == nil {
			continue
		}
		id := strings.TrimSpace(fmt.Sprint(story["page_id"]))
		if isDigits(id) {
			ids[id] = true
		}
	}

	for _, id := range sortedKeys(ids) {
		r.addPageByID(ctx, id, accessToken, source, seen, add)
	}
}

// addPageByID fetches details for an inferred page id. Unreadable pages are
// still reported as candidates, with a placeholder name.
func (r *Resolver) addPageByID(ctx context.Context, id, accessToken, source string, seen map[string]bool, add func(map[string]any, string, string)) {
	if seen[id] {
		return
	}
	payload, err := r.client.Get(ctx, id, accessToken, graph.Params{"fields": PageFields})
	if err != nil || payload["id"] == nil {
		add(map[string]any{
			"id":    id,
			"name":  "Unknown",
			"error": "page details not accessible",
		}, source, ConfidenceFallback)
		return
	}
	add(payload, source, ConfidenceFallback)
}

// DiscoverForAccount runs discovery and applies the selection policy: the
// first primary-tier candidate, else the first candidate of any tier, else
// an unsuccessful result carrying the per-source failures.
func (r *Resolver) DiscoverForAccount(ctx context.Context, accountID, accessToken string) Selection {
	d := r.Discover(ctx, accountID, accessToken)
	if len(d.Candidates) == 0 {
		return Selection{
			Success:       false,
			Message:       "No suitable pages found for this account",
			FailedSources: d.Failures,
			Note:          "Use list_account_pages for full diagnostics or provide facebook_page_id manually.",
		}
	}

	selected := d.Candidates[0]
	for _, c := range d.Candidates {
		if c.Confidence == ConfidencePrimary {
			selected = c
			break
		}
	}

	note := "Selected from documented primary page edges."
	if selected.Confidence != ConfidencePrimary {
		note = "Primary documented edges returned no pages; using secondary fallback edge."
	}
	return Selection{
		Success:         true,
		PageID:          selected.ID,
		PageName:        selected.Name,
		Source:          selected.Source,
		Confidence:      selected.Confidence,
		TotalCandidates: len(d.Candidates),
		Note:            note,
	}
}

// FilterByName returns the candidates whose name contains the query,
// case-insensitively.
func FilterByName(candidates []Candidate, query string) []Candidate {
	token := strings.ToLower(strings.TrimSpace(query))
	filtered := []Candidate{}
	for _, c := range candidates {
		if strings.Contains(strings.ToLower(c.Name), token) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// Payload renders a candidate as the page object returned to tool callers.
func (c Candidate) Payload() map[string]any {
	out := map[string]any{}
	for k, v := range c.Fields {
		out[k] = v
	}
	out["id"] = c.ID
	out["source"] = c.Source
	out["confidence"] = c.Confidence
	return out
}

func rows(payload map[string]any) []map[string]any {
	data, _ := payload["data"].([]any)
	out := make([]map[string]any, 0, len(data))
	for _, raw := range data {
		if row, ok := raw.(map[string]any); ok {
			out = append(out, row)
		}
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
