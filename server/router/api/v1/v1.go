// Package v1 exposes the HTTP API: memory ingestion, question answering,
// and system introspection.
package v1

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/memoraai/memora/internal/profile"
	"github.com/memoraai/memora/server/middleware"
	"github.com/memoraai/memora/server/service/memory"
	"github.com/memoraai/memora/store"
)

// MemoryService is the orchestration surface the handlers call into.
type MemoryService interface {
	Ingest(ctx context.Context, projectID, text string, tags []string) (int, error)
	Ask(ctx context.Context, projectID, query string, k int) (*memory.AskResult, error)
}

type APIV1Service struct {
	Profile       *profile.Profile
	Store         *store.Store
	MemoryService MemoryService

	rateLimiter *middleware.ProjectRateLimiter
}

// NewAPIV1Service creates the API service over a store and memory service.
func NewAPIV1Service(profile *profile.Profile, store *store.Store, memoryService MemoryService) *APIV1Service {
	return &APIV1Service{
		Profile:       profile,
		Store:         store,
		MemoryService: memoryService,
		// 10 rps per project with a small burst, enough for interactive use.
		rateLimiter: middleware.NewProjectRateLimiter(10, 20),
	}
}

// Register registers all API routes with the Echo instance.
func (s *APIV1Service) Register(echoServer *echo.Echo) {
	echoServer.GET("/healthz", s.GetHealthz)

	apiV1 := echoServer.Group("/api/v1")
	apiV1.POST("/memory/ingest", s.IngestMemory)
	apiV1.POST("/memory/ask", s.AskMemory)
	apiV1.GET("/system/metrics", s.GetSystemMetrics)
}
