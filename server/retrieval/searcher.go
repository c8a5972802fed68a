// Package retrieval implements the query-side candidate pipeline: fusion
// search over the memory store and diversity reranking of the result pool.
package retrieval

import (
	"context"
	"log/slog"
	"time"

	"github.com/memoraai/memora/server/internal/observability"
	"github.com/memoraai/memora/store"
)

// previewLimit bounds diagnostic hit previews, in runes.
const previewLimit = 100

// Searcher produces ranked candidate pools from the memory store.
type Searcher struct {
	store   *store.Store
	metrics *observability.Metrics
}

// NewSearcher creates a searcher over the given store.
func NewSearcher(st *store.Store) *Searcher {
	return &Searcher{
		store:   st,
		metrics: observability.GlobalMetrics(),
	}
}

// Search returns a fused lexical+vector candidate pool for the query,
// at most max(3k, 15) hits, all scoped to projectID. The wider-than-k pool
// is deliberate: the diversity reranker downstream needs more material than
// the final answer size.
func (s *Searcher) Search(ctx context.Context, projectID, queryText string, queryVector []float32, k int) ([]store.SearchHit, error) {
	start := time.Now()
	hits, err := s.store.HybridSearch(ctx, projectID, queryText, queryVector, k)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordSearch(time.Since(start), len(hits))

	s.logSummary(ctx, projectID, hits)
	return hits, nil
}

// logSummary emits the diagnostic view of a pool. It runs off the scoring
// path and can be disabled via log level without touching ranking logic.
func (s *Searcher) logSummary(ctx context.Context, projectID string, hits []store.SearchHit) {
	reqCtx := observability.FromContext(ctx)
	if !reqCtx.Logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	reqCtx.Debug("hybrid search returned candidates",
		slog.Int("count", len(hits)))
	for i, hit := range hits {
		if i >= 5 {
			break
		}
		reqCtx.Debug("candidate",
			slog.Int("rank", i+1),
			slog.Float64("score", hit.Score),
			slog.String("preview", preview(hit.Text)))
	}
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLimit {
		return text
	}
	return string(runes[:previewLimit]) + "..."
}
