// Package server wires the HTTP surface over the memory pipeline.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/memoraai/memora/internal/profile"
	"github.com/memoraai/memora/server/internal/observability"
	apiv1 "github.com/memoraai/memora/server/router/api/v1"
	"github.com/memoraai/memora/server/service/memory"
	"github.com/memoraai/memora/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
}

// NewServer builds the Echo server and registers all routes.
func NewServer(ctx context.Context, profile *profile.Profile, memoryStore *store.Store, memoryService *memory.Service) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("http request",
				slog.String("uri", v.URI),
				slog.Int("status", v.Status))
			return nil
		},
	}))

	s := &Server{
		Profile:    profile,
		Store:      memoryStore,
		echoServer: e,
	}
	apiv1.NewAPIV1Service(profile, memoryStore, memoryService).Register(e)

	if notifier, ok := memoryStore.GetDriver().(store.FusionFallbackNotifier); ok {
		notifier.OnFusionFallback(observability.GlobalMetrics().RecordFusionFallback)
	}

	// Provision the store schema up front so the first request does not pay
	// for it. Failure here is not fatal: the store retries lazily.
	if err := memoryStore.EnsureSchema(ctx); err != nil {
		slog.Warn("failed to provision store schema at startup", "error", err)
	}

	return s, nil
}

// Start begins serving and blocks until the listener fails or ctx is done.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	slog.Info("server started", "address", address, "driver", s.Profile.Driver)

	if err := s.echoServer.Start(address); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "failed to start server")
	}
	return nil
}

// Shutdown gracefully stops the server and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shut down server", "error", err)
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}
	slog.Info("server stopped")
}
