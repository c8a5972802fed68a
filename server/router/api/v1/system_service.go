package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memoraai/memora/server/internal/observability"
)

// HealthzResponse reports basic process identity and wiring.
type HealthzResponse struct {
	Status  string `json:"status"`
	App     string `json:"app"`
	Version string `json:"version"`
	Driver  string `json:"driver"`
	Index   string `json:"index,omitempty"`
}

// GetHealthz reports liveness.
// GET /healthz
func (s *APIV1Service) GetHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthzResponse{
		Status:  "ok",
		App:     "memora",
		Version: s.Profile.Version,
		Driver:  s.Profile.Driver,
		Index:   s.Profile.ElasticIndex,
	})
}

// GetSystemMetrics returns the retrieval pipeline counters.
// GET /api/v1/system/metrics
func (s *APIV1Service) GetSystemMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, observability.GlobalMetrics().Snapshot())
}
