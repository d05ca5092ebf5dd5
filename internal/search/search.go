package search

import "context"

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultKeyword     ResultType = "keyword"
	ResultNegotiation ResultType = "negotiation"
)

// ValidType reports whether t is empty (all types) or a known result type.
func ValidType(t string) bool {
	switch ResultType(t) {
	case "", ResultKeyword, ResultNegotiation:
		return true
	}
	return false
}

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	Status  string     `json:"status,omitempty"`
}

// Query describes a search request. OrganizationID is mandatory; results
// never cross organizations.
type Query struct {
	OrganizationID string
	Text           string
	FilterType     ResultType // empty = all types
	Limit          int
	Offset         int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// KeywordRecord is the data we index for a monitored keyword.
type KeywordRecord struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organizationId"`
	Keyword        string `json:"keyword"`
	Description    string `json:"description"`
	Category       string `json:"category"`
}

// NegotiationRecord is the data we index for a negotiation.
type NegotiationRecord struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organizationId"`
	Subject        string `json:"subject"`
	Content        string `json:"content"`
	Status         string `json:"status"`
}

func normalizeLimit(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
