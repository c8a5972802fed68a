package elastic

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/memoraai/memora/store"
)

// rrfRankConstant is the smoothing constant for the store-native
// reciprocal-rank fusion stage.
const rrfRankConstant = 20

type esHit struct {
	ID     string  `json:"_id"`
	Score  float64 `json:"_score"`
	Source struct {
		Text      string   `json:"text"`
		ProjectID string   `json:"project_id"`
		Tags      []string `json:"tags"`
	} `json:"_source"`
}

type esSearchResponse struct {
	Hits struct {
		Hits []esHit `json:"hits"`
	} `json:"hits"`
}

// UpsertMemory indexes one memory chunk and returns the store-assigned id.
// refresh=wait_for makes the chunk visible to the next search.
func (d *DB) UpsertMemory(ctx context.Context, create *store.MemoryChunk) (string, error) {
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	tags := create.Tags
	if tags == nil {
		tags = []string{}
	}
	doc := map[string]any{
		"project_id": create.ProjectID,
		"text":       create.Text,
		"chunk_id":   shortuuid.New(),
		"tags":       tags,
		"embedding":  create.Embedding,
		"created_at": time.Unix(create.CreatedTs, 0).UTC().Format(time.RFC3339),
	}

	resp, err := d.do(ctx, http.MethodPost, doc, "_doc")
	if err != nil {
		return "", errors.Wrap(err, "failed to index memory chunk")
	}
	var indexed struct {
		ID string `json:"_id"`
	}
	if err := resp.decode(&indexed); err != nil {
		return "", errors.Wrap(err, "failed to decode index response")
	}
	create.ID = indexed.ID
	return indexed.ID, nil
}

// VectorSearch returns up to k project-scoped hits ranked by cosine
// similarity. Equal-score ordering follows the store's native tie-breaking,
// which is not deterministic across calls.
func (d *DB) VectorSearch(ctx context.Context, projectID string, queryVector []float32, k int) ([]store.SearchHit, error) {
	numCandidates := 5 * k
	if numCandidates < 20 {
		numCandidates = 20
	}
	body := map[string]any{
		"size": k,
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{
					map[string]any{"term": map[string]any{"project_id": projectID}},
				},
				"must": []any{
					map[string]any{
						"knn": map[string]any{
							"field":          "embedding",
							"query_vector":   queryVector,
							"k":              k,
							"num_candidates": numCandidates,
						},
					},
				},
			},
		},
	}

	resp, err := d.do(ctx, http.MethodPost, body, "_search")
	if err != nil {
		return nil, errors.Wrap(err, "vector search failed")
	}
	return decodeHits(resp)
}

// HybridSearch combines lexical and vector relevance into one ranked pool of
// at most max(3k, 15) hits. The primary request asks the store for native
// reciprocal-rank fusion; if the store rejects it, the same query is reissued
// without the fusion stage and the default should-clause union stands in.
// The failed primary attempt never surfaces to the caller.
func (d *DB) HybridSearch(ctx context.Context, projectID, queryText string, queryVector []float32, k int) ([]store.SearchHit, error) {
	poolSize := store.PoolSize(k)

	if !d.fusionUnsupported.Load() {
		resp, err := d.do(ctx, http.MethodPost, d.fusedQuery(projectID, queryText, queryVector, k, poolSize), "_search")
		if err == nil {
			return decodeHits(resp)
		}
		slog.Warn("store-native rank fusion unavailable, falling back to should-clause union",
			"index", d.index, "error", err.Error())
		d.fusionUnsupported.Store(true)
		if d.onFusionFallback != nil {
			d.onFusionFallback()
		}
	}

	resp, err := d.do(ctx, http.MethodPost, d.unionQuery(projectID, queryText, queryVector, k, poolSize), "_search")
	if err != nil {
		return nil, errors.Wrap(err, "hybrid search failed")
	}
	return decodeHits(resp)
}

// fusedQuery expresses the filtered lexical + kNN search with a native
// reciprocal-rank fusion stage over the full recall pool.
func (d *DB) fusedQuery(projectID, queryText string, queryVector []float32, k, poolSize int) map[string]any {
	body := d.unionQuery(projectID, queryText, queryVector, k, poolSize)
	body["rank"] = map[string]any{
		"rrf": map[string]any{
			"rank_window_size": poolSize,
			"rank_constant":    rrfRankConstant,
		},
	}
	// Fuzzy lexical matching only on the fused path; the fallback keeps the
	// plain match so a degraded store sees the simplest possible query.
	boolQuery := body["query"].(map[string]any)["bool"].(map[string]any)
	boolQuery["should"].([]any)[0].(map[string]any)["match"].(map[string]any)["text"].(map[string]any)["fuzziness"] = "AUTO"
	return body
}

// unionQuery is the fusion-free request: the store's default should-clause
// relevance combination ranks the pool.
func (d *DB) unionQuery(projectID, queryText string, queryVector []float32, k, poolSize int) map[string]any {
	numCandidates := 10 * k
	if numCandidates < 60 {
		numCandidates = 60
	}
	return map[string]any{
		"size":    poolSize,
		"_source": []string{"text", "tags", "project_id"},
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{
					map[string]any{"term": map[string]any{"project_id": projectID}},
				},
				"should": []any{
					map[string]any{
						"match": map[string]any{
							"text": map[string]any{
								"query": queryText,
								"boost": 2.0,
							},
						},
					},
					map[string]any{
						"knn": map[string]any{
							"field":          "embedding",
							"query_vector":   queryVector,
							"k":              poolSize,
							"num_candidates": numCandidates,
							"boost":          1.0,
						},
					},
				},
				"minimum_should_match": 1,
			},
		},
	}
}

func decodeHits(resp *esResponse) ([]store.SearchHit, error) {
	var esr esSearchResponse
	if err := resp.decode(&esr); err != nil {
		return nil, errors.Wrap(err, "failed to decode search response")
	}
	hits := make([]store.SearchHit, 0, len(esr.Hits.Hits))
	for _, h := range esr.Hits.Hits {
		hits = append(hits, store.SearchHit{Text: h.Source.Text, Score: h.Score})
	}
	return hits, nil
}
