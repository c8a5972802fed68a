package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoraai/memora/internal/profile"
	"github.com/memoraai/memora/store"
)

type fakeES struct {
	// createCalls counts index creation attempts.
	createCalls int
	// indexExists controls the HEAD reply.
	indexExists bool
	// conflictOnCreate simulates a concurrent writer winning index creation
	// between our existence check and our PUT.
	conflictOnCreate bool
	// rejectFusion makes any body carrying a rank stage fail with 400.
	rejectFusion bool
	// searchBodies records every body sent to _search.
	searchBodies []map[string]any
	// hits is the canned search reply.
	hits []map[string]any
}

func (f *fakeES) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodHead:
			if f.indexExists {
				w.WriteHeader(http.StatusOK)
			} else {
				w.WriteHeader(http.StatusNotFound)
			}
		case r.Method == http.MethodPut:
			f.createCalls++
			if f.indexExists || f.conflictOnCreate {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":{"type":"resource_already_exists_exception"}}`)
				return
			}
			f.indexExists = true
			fmt.Fprint(w, `{"acknowledged":true}`)
		case r.Method == http.MethodPost && r.URL.Path == "/memories/_doc":
			fmt.Fprint(w, `{"_id":"chunk-1"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/memories/_search":
			raw, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			var body map[string]any
			require.NoError(t, json.Unmarshal(raw, &body))
			f.searchBodies = append(f.searchBodies, body)

			if _, fused := body["rank"]; fused && f.rejectFusion {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":{"type":"parsing_exception","reason":"unknown field [rank]"}}`)
				return
			}
			reply := map[string]any{"hits": map[string]any{"hits": f.hits}}
			require.NoError(t, json.NewEncoder(w).Encode(reply))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
}

func newTestDriver(t *testing.T, f *fakeES) *DB {
	ts := httptest.NewServer(f.handler(t))
	t.Cleanup(ts.Close)

	driver, err := NewDB(&profile.Profile{
		ElasticURL:   ts.URL,
		ElasticIndex: "memories",
		EmbedDims:    4,
	})
	require.NoError(t, err)
	return driver.(*DB)
}

func esHitJSON(text string, score float64) map[string]any {
	return map[string]any{
		"_id":     "id-" + text,
		"_score":  score,
		"_source": map[string]any{"text": text, "project_id": "u1"},
	}
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	f := &fakeES{}
	d := newTestDriver(t, f)
	ctx := context.Background()

	require.NoError(t, d.EnsureSchema(ctx))
	require.NoError(t, d.EnsureSchema(ctx))
	assert.Equal(t, 1, f.createCalls, "second call should see the existing index")
}

func TestEnsureSchemaSwallowsCreationConflict(t *testing.T) {
	// A concurrent writer creates the index between our existence check and
	// our creation request; losing that race is success, not an error.
	f := &fakeES{conflictOnCreate: true}
	d := newTestDriver(t, f)

	require.NoError(t, d.EnsureSchema(context.Background()))
	assert.Equal(t, 1, f.createCalls)
}

func TestUpsertMemoryReturnsStoreID(t *testing.T) {
	f := &fakeES{indexExists: true}
	d := newTestDriver(t, f)

	chunk := &store.MemoryChunk{
		ProjectID: "u1",
		Text:      "Alice lives in Paris.",
		Embedding: []float32{0.1, 0.2, 0.3, 0.4},
	}
	id, err := d.UpsertMemory(context.Background(), chunk)
	require.NoError(t, err)
	assert.Equal(t, "chunk-1", id)
	assert.Equal(t, "chunk-1", chunk.ID)
}

func TestHybridSearchNativeFusion(t *testing.T) {
	f := &fakeES{
		indexExists: true,
		hits: []map[string]any{
			esHitJSON("first", 0.9),
			esHitJSON("second", 0.5),
		},
	}
	d := newTestDriver(t, f)

	hits, err := d.HybridSearch(context.Background(), "u1", "where is alice", []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "first", hits[0].Text)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)

	require.Len(t, f.searchBodies, 1)
	body := f.searchBodies[0]

	// The primary request carries the fusion stage and the recall pool size.
	rank, ok := body["rank"].(map[string]any)
	require.True(t, ok, "primary request must ask for native rank fusion")
	rrf := rank["rrf"].(map[string]any)
	assert.EqualValues(t, 15, rrf["rank_window_size"], "pool is max(3k, 15)")
	assert.EqualValues(t, 20, rrf["rank_constant"])
	assert.EqualValues(t, 15, body["size"])

	// Tenant isolation is enforced by the filter clause, not post-filtering.
	boolQuery := body["query"].(map[string]any)["bool"].(map[string]any)
	filter := boolQuery["filter"].([]any)[0].(map[string]any)
	term := filter["term"].(map[string]any)
	assert.Equal(t, "u1", term["project_id"])
}

func TestHybridSearchFallsBackWhenFusionRejected(t *testing.T) {
	f := &fakeES{
		indexExists:  true,
		rejectFusion: true,
		hits:         []map[string]any{esHitJSON("only", 1.2)},
	}
	d := newTestDriver(t, f)
	ctx := context.Background()

	hits, err := d.HybridSearch(ctx, "u1", "alice", []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err, "fusion rejection must not surface to the caller")
	require.Len(t, hits, 1)
	assert.Equal(t, "only", hits[0].Text)

	require.Len(t, f.searchBodies, 2)
	_, fused := f.searchBodies[0]["rank"]
	assert.True(t, fused)
	_, fallbackFused := f.searchBodies[1]["rank"]
	assert.False(t, fallbackFused, "fallback body must drop the fusion stage")

	// The capability flag sticks: later searches skip the fused attempt.
	_, err = d.HybridSearch(ctx, "u1", "alice", []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, f.searchBodies, 3)
	_, thirdFused := f.searchBodies[2]["rank"]
	assert.False(t, thirdFused)
}

func TestHybridSearchPoolSizeScalesWithK(t *testing.T) {
	f := &fakeES{indexExists: true}
	d := newTestDriver(t, f)

	_, err := d.HybridSearch(context.Background(), "u1", "q", []float32{1, 0, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, f.searchBodies, 1)
	assert.EqualValues(t, 30, f.searchBodies[0]["size"])

	// kNN widens with k as well.
	boolQuery := f.searchBodies[0]["query"].(map[string]any)["bool"].(map[string]any)
	knn := boolQuery["should"].([]any)[1].(map[string]any)["knn"].(map[string]any)
	assert.EqualValues(t, 100, knn["num_candidates"])
	assert.EqualValues(t, 30, knn["k"])
}

func TestVectorSearchBody(t *testing.T) {
	f := &fakeES{
		indexExists: true,
		hits:        []map[string]any{esHitJSON("v", 0.8)},
	}
	d := newTestDriver(t, f)

	hits, err := d.VectorSearch(context.Background(), "u2", []float32{0, 1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	body := f.searchBodies[0]
	assert.EqualValues(t, 3, body["size"])
	boolQuery := body["query"].(map[string]any)["bool"].(map[string]any)
	term := boolQuery["filter"].([]any)[0].(map[string]any)["term"].(map[string]any)
	assert.Equal(t, "u2", term["project_id"])
	knn := boolQuery["must"].([]any)[0].(map[string]any)["knn"].(map[string]any)
	assert.EqualValues(t, 20, knn["num_candidates"], "num_candidates floor is 20")
}
