package syncer

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var ErrUnknownBackend = errors.New("unknown sync backend")

// Registry holds one coordinator per backend target id.
type Registry struct {
	mu           sync.RWMutex
	coordinators map[string]*Coordinator
}

func NewRegistry() *Registry {
	return &Registry{coordinators: make(map[string]*Coordinator)}
}

// Register adds c, replacing any coordinator with the same id.
func (r *Registry) Register(c *Coordinator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coordinators[c.ID()] = c
}

func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.coordinators, id)
}

func (r *Registry) Get(id string) (*Coordinator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.coordinators[id]
	return c, ok
}

func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.coordinators))
	for id := range r.coordinators {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Start runs a sync on backend id. started is false when one is already in
// flight.
func (r *Registry) Start(ctx context.Context, id string, syncType SyncType) (result Result, started bool, err error) {
	c, ok := r.Get(id)
	if !ok {
		return Result{}, false, ErrUnknownBackend
	}
	result, started = c.Start(ctx, syncType)
	return result, started, nil
}

// StartAll runs syncType on every target flagged for auto sync. Targets run
// concurrently.
func (r *Registry) StartAll(ctx context.Context, syncType SyncType) map[string]Result {
	r.mu.RLock()
	targets := make([]*Coordinator, 0, len(r.coordinators))
	for _, c := range r.coordinators {
		if c.AutoSync() {
			targets = append(targets, c)
		}
	}
	r.mu.RUnlock()

	var mu sync.Mutex
	var wg sync.WaitGroup
	results := make(map[string]Result, len(targets))
	for _, c := range targets {
		wg.Add(1)
		go func(c *Coordinator) {
			defer wg.Done()
			if result, ok := c.Start(ctx, syncType); ok {
				mu.Lock()
				results[c.ID()] = result
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()
	return results
}
