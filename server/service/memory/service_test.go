package memory

import (
	"context"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoraai/memora/internal/profile"
	"github.com/memoraai/memora/server/retrieval"
	"github.com/memoraai/memora/store"
)

// fakeDriver keeps chunks in memory and ranks by embedding similarity.
type fakeDriver struct {
	mu        sync.Mutex
	chunks    []store.MemoryChunk
	lastK     int
	searchErr error
}

func (d *fakeDriver) Close() error                         { return nil }
func (d *fakeDriver) EnsureSchema(_ context.Context) error { return nil }

func (d *fakeDriver) UpsertMemory(_ context.Context, create *store.MemoryChunk) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.chunks = append(d.chunks, *create)
	return "fake-id", nil
}

func (d *fakeDriver) VectorSearch(ctx context.Context, projectID string, queryVector []float32, k int) ([]store.SearchHit, error) {
	return d.HybridSearch(ctx, projectID, "", queryVector, k)
}

func (d *fakeDriver) HybridSearch(_ context.Context, projectID, _ string, queryVector []float32, k int) ([]store.SearchHit, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.searchErr != nil {
		return nil, d.searchErr
	}
	d.lastK = k

	var hits []store.SearchHit
	for _, chunk := range d.chunks {
		if chunk.ProjectID != projectID {
			continue
		}
		hits = append(hits, store.SearchHit{
			Text:  chunk.Text,
			Score: retrieval.CosineSimilarity(queryVector, chunk.Embedding),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if pool := store.PoolSize(k); len(hits) > pool {
		hits = hits[:pool]
	}
	return hits, nil
}

// fakeEmbedder maps texts to bag-of-words vectors so related texts get a
// positive similarity without any network calls.
type fakeEmbedder struct {
	err error
}

func (e *fakeEmbedder) Embedding(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	vec := make([]float32, 32)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,?!")
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%32]++
	}
	return vec, nil
}

type fakeGenerator struct {
	prompts []string
	err     error
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return "canned answer", nil
}

func newTestService(driver store.Driver, generator Generator) *Service {
	p := &profile.Profile{TokenBudget: 500, SystemPreamble: "You recall stored facts."}
	return NewService(p, store.New(driver, p), &fakeEmbedder{}, generator)
}

func TestIngestAndAsk(t *testing.T) {
	ctx := context.Background()
	driver := &fakeDriver{}
	generator := &fakeGenerator{}
	svc := newTestService(driver, generator)

	count, err := svc.Ingest(ctx, "p1", "Alice lives in Paris.", []string{"people"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	result, err := svc.Ask(ctx, "p1", "Where does Alice live?", 5)
	require.NoError(t, err)
	assert.Equal(t, "canned answer", result.Response)
	assert.Equal(t, 1, result.UsedSnippets)
	assert.Positive(t, result.TokensEstimate)

	require.Len(t, generator.prompts, 1)
	assert.Contains(t, generator.prompts[0], "Alice lives in Paris.")
	assert.Contains(t, generator.prompts[0], "Where does Alice live?")
	assert.Contains(t, generator.prompts[0], "You recall stored facts.")
}

func TestAskProjectIsolation(t *testing.T) {
	ctx := context.Background()
	driver := &fakeDriver{}
	generator := &fakeGenerator{}
	svc := newTestService(driver, generator)

	_, err := svc.Ingest(ctx, "p1", "Alice lives in Paris.", nil)
	require.NoError(t, err)

	result, err := svc.Ask(ctx, "p2", "Where does Alice live?", 5)
	require.NoError(t, err)
	assert.Zero(t, result.UsedSnippets)

	require.Len(t, generator.prompts, 1)
	assert.NotContains(t, generator.prompts[0], "Alice lives in Paris.")
	assert.Contains(t, generator.prompts[0], "[No prior memory found yet]")
}

func TestAskSearchFanOutFloor(t *testing.T) {
	ctx := context.Background()
	driver := &fakeDriver{}
	svc := newTestService(driver, &fakeGenerator{})

	_, err := svc.Ask(ctx, "p1", "anything", 1)
	require.NoError(t, err)
	assert.Equal(t, 15, driver.lastK)

	_, err = svc.Ask(ctx, "p1", "anything", 40)
	require.NoError(t, err)
	assert.Equal(t, 40, driver.lastK)
}

func TestAskRetrievalFailureDegradesToEmptyContext(t *testing.T) {
	ctx := context.Background()
	driver := &fakeDriver{searchErr: errors.New("search exploded")}
	generator := &fakeGenerator{}
	svc := newTestService(driver, generator)

	result, err := svc.Ask(ctx, "p1", "Where does Alice live?", 5)
	require.NoError(t, err)
	assert.Equal(t, "canned answer", result.Response)
	assert.Zero(t, result.UsedSnippets)
}

func TestAskGenerationFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&fakeDriver{}, &fakeGenerator{err: errors.New("model unavailable")})

	_, err := svc.Ask(ctx, "p1", "anything", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to generate answer")
}

func TestAskEmbeddingFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	p := &profile.Profile{TokenBudget: 500}
	svc := NewService(p, store.New(&fakeDriver{}, p), &fakeEmbedder{err: errors.New("quota")}, &fakeGenerator{})

	_, err := svc.Ask(ctx, "p1", "anything", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to embed query")
}

func TestIngestEmptyText(t *testing.T) {
	driver := &fakeDriver{}
	svc := newTestService(driver, &fakeGenerator{})

	count, err := svc.Ingest(context.Background(), "p1", "   ", nil)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, driver.chunks)
}

func TestIngestMultiChunkDocument(t *testing.T) {
	ctx := context.Background()
	driver := &fakeDriver{}
	svc := newTestService(driver, &fakeGenerator{})

	doc := strings.Repeat("Alice met Bob at the library on Tuesday. ", 40)
	count, err := svc.Ingest(ctx, "p1", doc, nil)
	require.NoError(t, err)
	assert.Greater(t, count, 1)
	assert.Len(t, driver.chunks, count)
	for _, chunk := range driver.chunks {
		assert.Equal(t, "p1", chunk.ProjectID)
		assert.NotEmpty(t, chunk.Embedding)
	}
}
