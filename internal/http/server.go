// Package http serves the optional ops endpoints of the MCP server: health,
// Prometheus metrics and a small tool management API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/cunzhi/internal/capability"
	"github.com/fyrsmithlabs/cunzhi/internal/theme"
)

// ToolManager is the subset of capability.Store the API needs.
type ToolManager interface {
	Theme() *theme.Theme
	Status() map[string]bool
	Tools() []capability.ToolConfig
	SetEnabled(id string, enabled bool) error
	ResetToDefaults() error
}

// Server provides the ops HTTP endpoints.
type Server struct {
	echo     *echo.Echo
	tools    ToolManager
	logger   *zap.Logger
	config   *Config
	onChange func()
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// Gatherer backs /metrics. Defaults to the Prometheus default registry.
	Gatherer prometheus.Gatherer

	// Meter records request metrics. Defaults to the global provider.
	Meter metric.Meter

	// OnChange runs after a successful enablement change.
	OnChange func()
}

// NewServer creates a new HTTP server.
func NewServer(tools ToolManager, logger *zap.Logger, cfg *Config) (*Server, error) {
	if tools == nil {
		return nil, fmt.Errorf("tool manager cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "127.0.0.1",
			Port: 9464,
		}
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(cfg.Meter, logger).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Debug("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:     e,
		tools:    tools,
		logger:   logger,
		config:   cfg,
		onChange: cfg.OnChange,
	}

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := e.Group("/api/v1")
	v1.GET("/tools", s.handleListTools)
	v1.PUT("/tools/:id", s.handleSetEnabled)
	v1.POST("/tools/reset", s.handleReset)

	return s, nil
}

func (s *Server) handleHealth(c echo.Context) error {
	th := s.tools.Theme()
	return c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
		Theme:  th.Name,
		Server: th.Messages.ServerName,
		Tools:  s.tools.Status(),
	})
}

func (s *Server) handleListTools(c echo.Context) error {
	return c.JSON(http.StatusOK, ToolsResponse{
		Theme: s.tools.Theme().Name,
		Tools: s.tools.Tools(),
	})
}

func (s *Server) handleSetEnabled(c echo.Context) error {
	id := c.Param("id")
	th := s.tools.Theme()
	if _, ok := th.RoleOf(id); !ok {
		return echo.NewHTTPError(http.StatusNotFound, th.UnknownToolMessage(id))
	}

	var req SetEnabledRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid enablement request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Enabled == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "enabled field is required")
	}

	if err := s.tools.SetEnabled(id, *req.Enabled); err != nil {
		if errors.Is(err, capability.ErrLeaderImmutable) {
			return echo.NewHTTPError(http.StatusConflict, th.LeaderCannotDisableMessage())
		}
		s.logger.Error("persisting enablement failed", zap.String("tool", id), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save configuration")
	}
	s.changed()
	return c.JSON(http.StatusOK, ToolResponse{ID: id, Enabled: *req.Enabled})
}

func (s *Server) handleReset(c echo.Context) error {
	if err := s.tools.ResetToDefaults(); err != nil {
		s.logger.Error("resetting enablement failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save configuration")
	}
	s.changed()
	return s.handleListTools(c)
}

func (s *Server) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.Addr()))
	if err := s.echo.Start(s.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
