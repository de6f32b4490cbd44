package search

import (
	"sync"

	"golang.org/x/text/language"
	textsearch "golang.org/x/text/search"
)

const defaultLimit = 20

// Memory is the in-process index used when Meilisearch is not configured
// or not reachable. Matching ignores case and diacritics.
type Memory struct {
	mu      sync.Mutex
	records []TabRecord
	matcher *textsearch.Matcher
}

func NewMemory() *Memory {
	return &Memory{matcher: textsearch.New(language.Und, textsearch.IgnoreCase, textsearch.IgnoreDiacritics)}
}

func (m *Memory) Healthy() bool { return true }

func (m *Memory) IndexTabs(records []TabRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append([]TabRecord(nil), records...)
	return nil
}

func (m *Memory) Search(q Query) ([]Result, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	var hits []Result
	for _, r := range m.records {
		if q.FilterTagID != "" && r.TagID != q.FilterTagID {
			continue
		}
		if q.Text != "" && !m.matches(r, q.Text) {
			continue
		}
		hits = append(hits, r.result())
	}
	total := len(hits)
	if q.Offset >= total {
		return []Result{}, total, nil
	}
	hits = hits[q.Offset:]
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, total, nil
}

func (m *Memory) matches(r TabRecord, text string) bool {
	for _, field := range []string{r.Title, r.URL, r.GroupName, r.TagName} {
		if start, _ := m.matcher.IndexString(field, text); start >= 0 {
			return true
		}
	}
	return false
}
