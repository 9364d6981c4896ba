package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Status  string `json:"status"`
	Snippet string `json:"snippet"`
	TeamID  *int64 `json:"teamId,omitempty"`
}

// Query describes a search request. A nil TeamID searches personal and team
// documents alike.
type Query struct {
	Text   string
	TeamID *int64
	Status string
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// DocumentRecord is the data we index for a document.
type DocumentRecord struct {
	ID         int64    `json:"id"`
	Title      string   `json:"title"`
	Status     string   `json:"status"`
	TeamID     *int64   `json:"teamId,omitempty"`
	Subject    string   `json:"subject"`
	Recipients []string `json:"recipients"`
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}
