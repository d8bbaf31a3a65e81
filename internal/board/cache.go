package board

import (
	"context"
	"sync"
	"time"

	"github.com/jlucaspains/roadmapboard/internal/aggregate"
)

type cachedRoot struct {
	tree    *aggregate.ProjectTree
	set     *aggregate.VersionSet
	fetched time.Time
}

// SharedSource lets every board reuse one upstream aggregate per root
// project for ttl. Boards only read the returned tree and set. Issue
// requests pass straight through.
type SharedSource struct {
	Source

	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]cachedRoot
}

// NewSharedSource wraps source; a ttl of 0 disables caching
func NewSharedSource(source Source, ttl time.Duration) *SharedSource {
	return &SharedSource{
		Source:  source,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cachedRoot),
	}
}

func (s *SharedSource) RootVersions(ctx context.Context, root string) (*aggregate.ProjectTree, *aggregate.VersionSet, error) {
	if s.ttl <= 0 {
		return s.Source.RootVersions(ctx, root)
	}

	s.mu.Lock()
	entry, ok := s.entries[root]
	s.mu.Unlock()
	if ok && s.now().Sub(entry.fetched) < s.ttl {
		return entry.tree, entry.set, nil
	}

	tree, set, err := s.Source.RootVersions(ctx, root)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	s.entries[root] = cachedRoot{tree: tree, set: set, fetched: s.now()}
	s.mu.Unlock()
	return tree, set, nil
}

// Invalidate drops the cached aggregate for root
func (s *SharedSource) Invalidate(root string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, root)
}

// invalidator is implemented by sources that cache the root aggregate
type invalidator interface {
	Invalidate(root string)
}
