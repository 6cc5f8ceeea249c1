package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/Veraticus/vendor-lens/internal/model"
	"github.com/Veraticus/vendor-lens/internal/service"

	customsearch "google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// googleSearchClient implements the Client interface using Google
// Programmable Search. Results double as grounding evidence.
type googleSearchClient struct {
	svc            *customsearch.Service
	searchEngineID string
}

// newGoogleSearchClient creates a new search grounding client.
func newGoogleSearchClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("google search API key is required")
	}
	if cfg.SearchEngineID == "" {
		return nil, fmt.Errorf("google search engine ID is required")
	}

	svc, err := customsearch.NewService(context.Background(), option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create search service: %w", err)
	}

	return &googleSearchClient{
		svc:            svc,
		searchEngineID: cfg.SearchEngineID,
	}, nil
}

// Lookup searches for the vendor text and derives a candidate name from
// the top results.
func (c *googleSearchClient) Lookup(ctx context.Context, req service.OracleRequest) (service.OracleResponse, error) {
	query := req.NormalizedText + " merchant"
	if bank := bankHint(req); bank != "" {
		query = req.NormalizedText + " " + bank + " charge"
	}

	resp, err := c.svc.Cse.List().
		Cx(c.searchEngineID).
		Q(query).
		Num(5).
		Context(ctx).
		Do()
	if err != nil {
		return service.OracleResponse{}, fmt.Errorf("search request failed: %w", err)
	}

	if len(resp.Items) == 0 {
		return service.OracleResponse{}, fmt.Errorf("no search results for %q", req.NormalizedText)
	}

	name, confidence := candidateFromResults(req.NormalizedText, resp.Items)
	if name == "" {
		return service.OracleResponse{}, fmt.Errorf("no usable candidate in search results")
	}

	sources := make([]model.GroundingSource, 0, len(resp.Items))
	for _, item := range resp.Items {
		sources = append(sources, model.GroundingSource{
			Title:   item.Title,
			Snippet: item.Snippet,
			URL:     item.Link,
		})
	}

	return service.OracleResponse{
		Name:       name,
		Confidence: confidence,
		Source:     model.SourceGoogle,
		Sources:    sources,
		Reasoning:  fmt.Sprintf("derived from %d search results", len(resp.Items)),
	}, nil
}

func bankHint(req service.OracleRequest) string {
	if req.Context == nil {
		return ""
	}
	return req.Context.BankName
}

// candidateFromResults derives a display name from search result titles.
// The leading segment of each title (before the first separator) votes;
// the most common segment that shares a token with the query wins, and
// agreement across results drives confidence.
func candidateFromResults(normalizedText string, items []*customsearch.Result) (string, float64) {
	queryTokens := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(normalizedText)) {
		queryTokens[tok] = true
	}

	votes := make(map[string]int)
	order := make([]string, 0, len(items))
	for _, item := range items {
		segment := titleSegment(item.Title)
		if segment == "" || len(segment) > model.MaxMappedNameLength {
			continue
		}
		key := strings.ToLower(segment)
		if _, seen := votes[key]; !seen {
			order = append(order, segment)
		}
		votes[key]++
	}

	best := ""
	bestVotes := 0
	for _, segment := range order {
		n := votes[strings.ToLower(segment)]
		if n > bestVotes && overlapsQuery(segment, queryTokens) {
			best = segment
			bestVotes = n
		}
	}

	// Fall back to the top result when nothing overlaps the query
	if best == "" {
		best = titleSegment(items[0].Title)
		bestVotes = 1
	}
	if best == "" {
		return "", 0
	}

	confidence := 0.40 + 0.10*float64(bestVotes)
	if confidence > 0.90 {
		confidence = 0.90
	}
	return best, confidence
}

// titleSegment takes the part of a result title before the first
// separator and trims boilerplate.
func titleSegment(title string) string {
	for _, sep := range []string{" - ", " | ", " – ", ": ", " · "} {
		if idx := strings.Index(title, sep); idx > 0 {
			title = title[:idx]
			break
		}
	}
	title = strings.TrimSpace(title)
	for _, suffix := range []string{"Official Site", "Official Website", "Home"} {
		title = strings.TrimSpace(strings.TrimSuffix(title, suffix))
	}
	return title
}

// overlapsQuery reports whether any token of the candidate appears in
// the query, ignoring very short tokens.
func overlapsQuery(candidate string, queryTokens map[string]bool) bool {
	for _, tok := range strings.Fields(strings.ToLower(candidate)) {
		if len(tok) < 3 {
			continue
		}
		for qt := range queryTokens {
			if strings.Contains(qt, tok) || strings.Contains(tok, qt) {
				return true
			}
		}
	}
	return false
}
