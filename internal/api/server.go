package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pondwatch/pondwatch-go/internal/conf"
	"github.com/pondwatch/pondwatch-go/internal/datastore"
	"github.com/pondwatch/pondwatch-go/internal/logging"
)

// Server owns the echo instance and its lifecycle.
type Server struct {
	Echo       *echo.Echo
	Controller *Controller
	settings   *conf.Settings
}

// NewServer builds the echo server with middleware, the API controller and
// the optional metrics route.
func NewServer(settings *conf.Settings, ds datastore.Interface, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	log := logging.ForService("http")

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"ip", c.RealIP(),
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
				log.Error("request", attrs...)
			} else {
				log.Info("request", attrs...)
			}
			return nil
		},
	}))

	if settings.Server.MaxUploadSizeMB > 0 {
		e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", settings.Server.MaxUploadSizeMB+1)))
	}
	if settings.Server.RequestTimeoutSecs > 0 {
		e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
			Timeout: time.Duration(settings.Server.RequestTimeoutSecs) * time.Second,
			Skipper: func(c echo.Context) bool {
				// Analysis uploads run longer than interactive requests.
				return c.Path() == "/api/v1/analyses" && c.Request().Method == http.MethodPost
			},
		}))
	}

	controller := New(e, ds, settings, opts...)

	if settings.Server.EnableMetricsRoute {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	return &Server{Echo: e, Controller: controller, settings: settings}
}

// Start serves until the listener fails. Blocks.
func (s *Server) Start() error {
	addr := s.settings.Server.Host + ":" + s.settings.Server.Port
	return s.Echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}
