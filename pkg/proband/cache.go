package proband

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/aretw0/pedigree/pkg/core"
)

// DefaultCacheTTL bounds how stale a cached patient record may be.
const DefaultCacheTTL = 5 * time.Minute

// CachedSource memoizes a remote SubjectSource per record key. Failed
// fetches are not cached.
type CachedSource struct {
	Source core.SubjectSource
	Key    string

	cache *expirable.LRU[string, core.ProbandData]
}

// NewCachedSource wraps source. key identifies the record (the patient id).
func NewCachedSource(source core.SubjectSource, key string, ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedSource{
		Source: source,
		Key:    key,
		cache:  expirable.NewLRU[string, core.ProbandData](16, nil, ttl),
	}
}

// FetchSubjectMetadata implements core.SubjectSource.
func (c *CachedSource) FetchSubjectMetadata(ctx context.Context) (core.ProbandData, error) {
	if p, ok := c.cache.Get(c.Key); ok {
		return p, nil
	}
	p, err := c.Source.FetchSubjectMetadata(ctx)
	if err != nil {
		return core.ProbandData{}, err
	}
	c.cache.Add(c.Key, p)
	return p, nil
}

// Invalidate drops the cached record.
func (c *CachedSource) Invalidate() {
	c.cache.Remove(c.Key)
}

var _ core.SubjectSource = (*CachedSource)(nil)
