package datasource

import (
	"context"

	"github.com/vanderheijden86/depcity/pkg/debug"
	"github.com/vanderheijden86/depcity/pkg/model"
	"github.com/vanderheijden86/depcity/pkg/provider"
)

// CachingAnalyzer stores every successful analysis in a SnapshotStore so
// the next launch can open the repository without the backend.
type CachingAnalyzer struct {
	upstream provider.AnalysisProvider
	store    *SnapshotStore
}

// NewCachingAnalyzer wraps upstream. A nil store disables caching.
func NewCachingAnalyzer(upstream provider.AnalysisProvider, store *SnapshotStore) *CachingAnalyzer {
	return &CachingAnalyzer{upstream: upstream, store: store}
}

// Analyze runs the upstream analysis and caches the result. A cache write
// failure is logged, not returned.
func (c *CachingAnalyzer) Analyze(ctx context.Context, repoURL string) (model.Snapshot, error) {
	snap, err := c.upstream.Analyze(ctx, repoURL)
	if err != nil {
		return model.Snapshot{}, err
	}
	if c.store != nil {
		if err := c.store.Put(ctx, snap); err != nil {
			debug.Log("datasource: caching %s: %v", repoURL, err)
		}
	}
	return snap, nil
}

// Cached returns the last stored analysis of repoURL.
func (c *CachingAnalyzer) Cached(ctx context.Context, repoURL string) (model.Snapshot, error) {
	if c.store == nil {
		return model.Snapshot{}, ErrSnapshotNotFound
	}
	snap, _, err := c.store.Get(ctx, repoURL)
	return snap, err
}
