package cache

import (
	"context"

	"github.com/mbbsolutions/com.shovibam-sub000/internal/history"
)

// CachingSource decorates a history.Source, writing every successful feed
// through to the cache. Fetch failures and rejected envelopes pass through
// untouched.
type CachingSource struct {
	source history.Source
	cache  *Cache
}

// NewCachingSource wraps source so successful fetches are cached
func NewCachingSource(source history.Source, cache *Cache) *CachingSource {
	return &CachingSource{source: source, cache: cache}
}

// FetchHistory implements history.Source
func (s *CachingSource) FetchHistory(ctx context.Context, req history.Request) (*history.Response, error) {
	resp, err := s.source.FetchHistory(ctx, req)
	if err != nil || !resp.Success {
		return resp, err
	}

	if putErr := s.cache.Put(ctx, req.CustomerID, req.AccountNo, resp.Transactions); putErr != nil {
		s.cache.logger.Warn("Failed to cache history feed",
			"customer_id", req.CustomerID,
			"account_no", req.AccountNo,
			"error", putErr)
	}

	return resp, nil
}

// Ensure CachingSource implements the Source interface
var _ history.Source = (*CachingSource)(nil)
