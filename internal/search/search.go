package search

// Result is a single tab hit returned to the caller.
type Result struct {
	TabID     string `json:"tabId"`
	TagID     string `json:"tagId"`
	TagName   string `json:"tagName"`
	GroupID   string `json:"groupId"`
	GroupName string `json:"groupName"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	// Snippet is the title with the match wrapped in <mark> when the
	// backend highlights.
	Snippet string `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text        string
	FilterTagID string
	Limit       int
	Offset      int
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

// Indexer replaces the indexed tab set.
type Indexer interface {
	IndexTabs(records []TabRecord) error
}

// TabRecord is the data we index for one saved tab.
type TabRecord struct {
	ID        string `json:"id"`
	TagID     string `json:"tagId"`
	TagName   string `json:"tagName"`
	GroupID   string `json:"groupId"`
	GroupName string `json:"groupName"`
	Title     string `json:"title"`
	URL       string `json:"url"`
}

func (r TabRecord) result() Result {
	return Result{
		TabID:     r.ID,
		TagID:     r.TagID,
		TagName:   r.TagName,
		GroupID:   r.GroupID,
		GroupName: r.GroupName,
		Title:     r.Title,
		URL:       r.URL,
		Snippet:   r.Title,
	}
}
