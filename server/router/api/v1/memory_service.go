package v1

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/memoraai/memora/server/internal/observability"
)

// IngestMemoryRequest is the body of POST /api/v1/memory/ingest.
type IngestMemoryRequest struct {
	ProjectID string   `json:"project_id"`
	Text      string   `json:"text"`
	Tags      []string `json:"tags"`
}

// IngestMemoryResponse reports how many chunks the document produced.
type IngestMemoryResponse struct {
	IngestedChunks int `json:"ingested_chunks"`
}

// IngestMemory stores a document as embedded memory chunks.
// POST /api/v1/memory/ingest
func (s *APIV1Service) IngestMemory(c echo.Context) error {
	request := &IngestMemoryRequest{}
	if err := c.Bind(request); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}
	if strings.TrimSpace(request.ProjectID) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "project_id is required"})
	}
	if strings.TrimSpace(request.Text) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "text is required"})
	}
	if !s.rateLimiter.Allow(request.ProjectID) {
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
	}

	ctx := c.Request().Context()
	reqCtx := observability.NewRequestContext(slog.Default(), request.ProjectID)
	ctx = observability.WithRequestContext(ctx, reqCtx)

	count, err := s.MemoryService.Ingest(ctx, request.ProjectID, request.Text, request.Tags)
	if err != nil {
		reqCtx.Error("ingest failed", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to ingest memory"})
	}

	reqCtx.Info("memory ingested",
		slog.Int("chunks", count),
		slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))
	return c.JSON(http.StatusOK, IngestMemoryResponse{IngestedChunks: count})
}

// AskMemoryRequest is the body of POST /api/v1/memory/ask.
type AskMemoryRequest struct {
	ProjectID string `json:"project_id"`
	Query     string `json:"query"`
	// K is the requested result depth; the retrieval pipeline widens small
	// values to keep the candidate pool useful.
	K int `json:"k"`
}

// AskMemoryResponse carries the generated answer and context statistics.
type AskMemoryResponse struct {
	Response       string `json:"response"`
	UsedSnippets   int    `json:"used_snippets"`
	TokensEstimate int    `json:"tokens_estimate"`
}

// AskMemory answers a question from the project's stored memories.
// POST /api/v1/memory/ask
func (s *APIV1Service) AskMemory(c echo.Context) error {
	request := &AskMemoryRequest{}
	if err := c.Bind(request); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}
	if strings.TrimSpace(request.ProjectID) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "project_id is required"})
	}
	if strings.TrimSpace(request.Query) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "query is required"})
	}
	if !s.rateLimiter.Allow(request.ProjectID) {
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
	}

	ctx := c.Request().Context()
	reqCtx := observability.NewRequestContext(slog.Default(), request.ProjectID)
	ctx = observability.WithRequestContext(ctx, reqCtx)

	result, err := s.MemoryService.Ask(ctx, request.ProjectID, request.Query, request.K)
	if err != nil {
		reqCtx.Error("ask failed", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to answer question"})
	}

	return c.JSON(http.StatusOK, AskMemoryResponse{
		Response:       result.Response,
		UsedSnippets:   result.UsedSnippets,
		TokensEstimate: result.TokensEstimate,
	})
}
