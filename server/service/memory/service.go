// Package memory orchestrates the two memory flows: ingesting documents as
// embedded chunks, and answering questions from retrieved memories.
package memory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/memoraai/memora/internal/profile"
	"github.com/memoraai/memora/server/ai"
	"github.com/memoraai/memora/server/contextwindow"
	"github.com/memoraai/memora/server/internal/observability"
	"github.com/memoraai/memora/server/retrieval"
	"github.com/memoraai/memora/store"
)

const (
	// minSearchK floors the retrieval fan-out so even small asks get a rich
	// candidate pool.
	minSearchK = 15
	// maxDiverseSnippets caps how many snippets the diversity reranker keeps.
	maxDiverseSnippets = 10
	// embedConcurrency bounds parallel embedding calls during ingest.
	embedConcurrency = 3
)

// Embedder produces a fixed-length embedding for one text.
type Embedder interface {
	Embedding(ctx context.Context, text string) ([]float32, error)
}

// Generator produces a text completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Service implements the ingest and ask flows.
type Service struct {
	profile   *profile.Profile
	store     *store.Store
	searcher  *retrieval.Searcher
	embedder  Embedder
	generator Generator
	metrics   *observability.Metrics
}

// NewService creates a memory service.
func NewService(p *profile.Profile, st *store.Store, embedder Embedder, generator Generator) *Service {
	return &Service{
		profile:   p,
		store:     st,
		searcher:  retrieval.NewSearcher(st),
		embedder:  embedder,
		generator: generator,
		metrics:   observability.GlobalMetrics(),
	}
}

// Ingest chunks the document, embeds each chunk, and stores every chunk under
// projectID. Chunks are independent writes with no cross-chunk coordination;
// embedding calls run concurrently with a bounded fan-out. Returns the number
// of chunks written.
func (s *Service) Ingest(ctx context.Context, projectID, text string, tags []string) (int, error) {
	chunks := ai.ChunkDocument(text)
	if len(chunks) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for _, chunk := range chunks {
		chunk := chunk
		g.Go(func() error {
			embedding, err := s.embedder.Embedding(gctx, chunk)
			if err != nil {
				return errors.Wrap(err, "failed to embed chunk")
			}
			_, err = s.store.UpsertMemory(gctx, &store.MemoryChunk{
				ProjectID: projectID,
				Text:      chunk,
				Tags:      tags,
				Embedding: embedding,
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.metrics.RecordIngest(true)
		return 0, err
	}
	s.metrics.RecordIngest(false)
	return len(chunks), nil
}

// AskResult is the outcome of one ask flow.
type AskResult struct {
	Response string
	// UsedSnippets is the number of memory snippets in the final context.
	UsedSnippets int
	// TokensEstimate is the approximate token count of the full prompt,
	// measured with the same heuristic used for context budgeting.
	TokensEstimate int
}

// Ask answers a question from memories stored under projectID: it retrieves
// a fused candidate pool, selects a diverse subset, packs it into a bounded
// context, and feeds the result to the generation model.
//
// A retrieval failure degrades to an empty context rather than failing the
// request: the model then answers from general knowledge. Embedding or
// generation failures surface as request-level errors.
func (s *Service) Ask(ctx context.Context, projectID, query string, k int) (*AskResult, error) {
	reqCtx := observability.FromContext(ctx)

	queryVec, err := s.embedder.Embedding(ctx, query)
	if err != nil {
		s.metrics.RecordAsk(true)
		return nil, errors.Wrap(err, "failed to embed query")
	}

	if k < minSearchK {
		k = minSearchK
	}
	hits, err := s.searcher.Search(ctx, projectID, query, queryVec, k)
	if err != nil {
		reqCtx.Warn("retrieval failed, answering without memory context",
			slog.String("error", err.Error()))
		hits = nil
	}

	selected, err := s.selectDiverse(ctx, queryVec, hits)
	if err != nil {
		s.metrics.RecordAsk(true)
		return nil, err
	}
	memoryContext, used := contextwindow.Assemble(selected, s.profile.TokenBudget)

	prompt := s.buildPrompt(memoryContext, query)
	response, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.metrics.RecordAsk(true)
		return nil, errors.Wrap(err, "failed to generate answer")
	}

	s.metrics.RecordAsk(false)
	reqCtx.Info("ask completed",
		slog.Int("pool", len(hits)),
		slog.Int("used_snippets", used),
		slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))

	return &AskResult{
		Response:       response,
		UsedSnippets:   used,
		TokensEstimate: contextwindow.ApproxTokens(prompt),
	}, nil
}

// selectDiverse embeds every pool candidate and applies MMR selection.
// The per-candidate embedding calls are an accepted quality cost. An empty
// pool yields an empty selection without error.
func (s *Service) selectDiverse(ctx context.Context, queryVec []float32, hits []store.SearchHit) ([]string, error) {
	if len(hits) == 0 {
		return nil, nil
	}

	docVecs := make([][]float32, len(hits))
	for i, hit := range hits {
		vec, err := s.embedder.Embedding(ctx, hit.Text)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to embed candidate %d", i)
		}
		docVecs[i] = vec
	}

	k := maxDiverseSnippets
	if len(hits) < k {
		k = len(hits)
	}
	selected := make([]string, 0, k)
	for _, idx := range retrieval.MMR(queryVec, docVecs, k, retrieval.MMRLambda) {
		selected = append(selected, hits[idx].Text)
	}
	return selected, nil
}

func (s *Service) buildPrompt(memoryContext, query string) string {
	if memoryContext == "" {
		memoryContext = "[No prior memory found yet]"
	}
	return fmt.Sprintf(`%s

You are Memora, an assistant that remembers user facts across sessions.
Below are pieces of information you've previously stored in your memory.
Use all relevant ones to answer the question.

Stored memory snippets:
%s

User question: %s

If multiple memories are relevant, combine them naturally.
If something seems unrelated, ignore it politely.`, s.profile.SystemPreamble, memoryContext, query)
}
