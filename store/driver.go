package store

import (
	"context"
)

// Driver is an interface for the memory store driver.
// It contains all methods a backing document store should implement.
type Driver interface {
	Close() error

	// EnsureSchema creates the backing collection if it does not already
	// exist. It must be safe under concurrent callers: an "already exists"
	// failure on creation is success, not an error.
	EnsureSchema(ctx context.Context) error

	// UpsertMemory writes one memory chunk and returns its store-assigned id.
	UpsertMemory(ctx context.Context, create *MemoryChunk) (string, error)

	// VectorSearch returns up to k hits filtered to projectID, ranked by
	// vector similarity descending. Ties are broken by store-native order,
	// which is non-deterministic.
	VectorSearch(ctx context.Context, projectID string, queryVector []float32, k int) ([]SearchHit, error)

	// HybridSearch combines lexical and vector relevance into one ranked
	// list of at most max(3k, 15) hits, all filtered to projectID. Drivers
	// with a native rank-fusion mode use it and fall back to the store's
	// default relevance combination when fusion is unsupported; drivers
	// without one fuse client-side. A failed fusion attempt never surfaces
	// to the caller.
	HybridSearch(ctx context.Context, projectID, queryText string, queryVector []float32, k int) ([]SearchHit, error)
}

// FusionFallbackNotifier is implemented by drivers that can report when a
// hybrid search degrades from native rank fusion to a fallback query.
type FusionFallbackNotifier interface {
	OnFusionFallback(fn func())
}

// PoolSize is the recall-amplified candidate pool size for a requested k.
// The diversity reranker needs a wider pool than the final answer size.
func PoolSize(k int) int {
	if n := 3 * k; n > 15 {
		return n
	}
	return 15
}
