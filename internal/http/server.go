package http

import (
	"context"
	"net/http"

	"github.com/jmehdipour/mail-gateway/internal/http/middleware"
	"github.com/jmehdipour/mail-gateway/internal/repository"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server is the worker's operations endpoint: health, metrics and delivery lookups.
type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

type Deps struct {
	Emails   repository.EmailQueueRepository
	Events   repository.DeliveryEventsRepository // nil when ClickHouse is disabled
	Gatherer prometheus.Gatherer
	Ready    func(ctx context.Context) error
	APIKey   string // guards /v1 when set
}

func NewServer(d Deps, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(log.WARN)
	e.Use(echoMid.Recover(), requestLogger(logger))

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/readyz", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			}
		}
		return c.String(http.StatusOK, "ready")
	})

	v1 := e.Group("/v1")
	if d.APIKey != "" {
		v1.Use(middleware.APIKeyMiddleware(d.APIKey))
	}
	v1.GET("/deliveries/:id", getDeliveryHandler(d.Emails, logger))
	v1.GET("/deliveries/:id/events", listEventsHandler(d.Events, logger))

	return &Server{e: e, log: logger}
}

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.e }

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return echoMid.RequestLoggerWithConfig(echoMid.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echoMid.RequestLoggerValues) error {
			logger.Debug("http request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
			)
			return nil
		},
	})
}
