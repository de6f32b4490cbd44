package search

import (
	"sync"

	"github.com/rs/zerolog"

	"nicetab/api/internal/model"
)

// Service is the facade that tries Meilisearch first and falls back to the
// in-memory index, which is always kept current.
type Service struct {
	meili  *Meili
	memory *Memory
	logger zerolog.Logger

	mu      sync.Mutex
	latest  []TabRecord
	dirty   bool
	running bool
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, logger zerolog.Logger) *Service {
	return &Service{
		meili:  meili,
		memory: NewMemory(),
		logger: logger.With().Str("component", "search").Logger(),
	}
}

func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warn().Err(err).Msg("meilisearch error, falling back to memory index")
	}

	results, total, err := s.memory.Search(q)
	if err != nil {
		s.logger.Error().Err(err).Msg("memory search")
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// Reindex replaces the indexed tabs with the ones in tags. Meilisearch is
// updated in the background; bursts collapse into the latest tree.
func (s *Service) Reindex(tags []model.Tag) {
	records := Records(tags)
	_ = s.memory.IndexTabs(records)
	if s.meili == nil || !s.meili.Healthy() {
		return
	}

	s.mu.Lock()
	s.latest = records
	s.dirty = true
	running := s.running
	s.running = true
	s.mu.Unlock()
	if !running {
		go s.flush()
	}
}

func (s *Service) flush() {
	for {
		s.mu.Lock()
		if !s.dirty {
			s.running = false
			s.mu.Unlock()
			return
		}
		records := s.latest
		s.dirty = false
		s.mu.Unlock()

		if err := s.meili.IndexTabs(records); err != nil {
			s.logger.Error().Err(err).Int("tabs", len(records)).Msg("reindex tabs")
		}
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
