// Package api exposes the monitoring pipeline over HTTP as a JSON API.
package api

import (
	"crypto/rand"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/pondwatch/pondwatch-go/internal/analysis"
	"github.com/pondwatch/pondwatch-go/internal/assistant"
	"github.com/pondwatch/pondwatch-go/internal/audio"
	"github.com/pondwatch/pondwatch-go/internal/buildinfo"
	"github.com/pondwatch/pondwatch-go/internal/conf"
	"github.com/pondwatch/pondwatch-go/internal/datastore"
	"github.com/pondwatch/pondwatch-go/internal/denoise"
	"github.com/pondwatch/pondwatch-go/internal/logging"
	"github.com/pondwatch/pondwatch-go/internal/notification"
)

// Controller wires the pipeline services into echo routes under /api/v1.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Settings *conf.Settings

	preprocessor *audio.Preprocessor
	denoiser     *denoise.Denoiser
	orchestrator *analysis.Orchestrator
	assistant    *assistant.Assistant
	dispatcher   *notification.Dispatcher

	// analysisSem bounds concurrently running analyses; excess requests
	// get 503 rather than piling onto the DSP stage.
	analysisSem *semaphore.Weighted

	// assistantLimiter throttles language-service queries.
	assistantLimiter *rate.Limiter

	log       *slog.Logger
	startTime time.Time
}

// Option adjusts a Controller before routes are registered.
type Option func(*Controller)

// WithOrchestrator substitutes the analysis orchestrator. Used in tests.
func WithOrchestrator(o *analysis.Orchestrator) Option {
	return func(c *Controller) { c.orchestrator = o }
}

// WithAssistant substitutes the assistant.
func WithAssistant(a *assistant.Assistant) Option {
	return func(c *Controller) { c.assistant = a }
}

// New builds the controller and registers all routes on e.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings, opts ...Option) *Controller {
	maxRuns := settings.Server.MaxConcurrentRuns
	if maxRuns <= 0 {
		maxRuns = 4
	}
	rps := settings.Server.RateLimitPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := settings.Server.RateLimitBurst
	if burst <= 0 {
		burst = 5
	}

	c := &Controller{
		Echo:             e,
		DS:               ds,
		Settings:         settings,
		preprocessor:     audio.NewPreprocessor(settings),
		denoiser:         denoise.New(settings),
		orchestrator:     analysis.NewOrchestrator(settings, ds),
		assistant:        assistant.New(settings, ds),
		dispatcher:       notification.NewDispatcher(ds, settings),
		analysisSem:      semaphore.NewWeighted(maxRuns),
		assistantLimiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:              logging.ForService("api"),
		startTime:        time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Group = e.Group("/api/v1")
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	g := c.Group

	g.GET("/health", c.HealthCheck)

	g.POST("/analyses", c.CreateAnalysis)
	g.GET("/analyses", c.ListAnalyses)
	g.GET("/analyses/stats", c.AnalysisStats)
	g.GET("/analyses/:id", c.GetAnalysis)

	g.POST("/assistant/query", c.AssistantQuery)

	g.GET("/alerts", c.ListAlerts)
	g.POST("/alerts/:id/read", c.MarkAlertRead)
	g.POST("/alerts/:id/dismiss", c.DismissAlert)

	g.GET("/notifications", c.ListNotifications)
	g.GET("/notifications/preferences", c.GetPreferences)
	g.PUT("/notifications/preferences", c.UpdatePreferences)
	g.POST("/notifications/test", c.TestNotification)

	g.GET("/fields", c.ListFields)
	g.POST("/fields", c.CreateField)
	g.DELETE("/fields/:id", c.DeleteField)
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

const correlationCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func generateCorrelationID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = correlationCharset[int(b[i])%len(correlationCharset)]
	}
	return string(b)
}

// HandleError logs err with a correlation ID and writes the JSON error
// envelope with the given status code.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := &ErrorResponse{
		Error:         message,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
	if err != nil {
		resp.Error = err.Error()
	}

	c.log.Error("request failed",
		"correlation_id", resp.CorrelationID,
		"message", message,
		"error", resp.Error,
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"ip", ctx.RealIP())

	return ctx.JSON(code, resp)
}

// HealthCheck reports service liveness, database connectivity, uptime and
// host resource usage.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	response := map[string]any{
		"status":     "healthy",
		"version":    buildinfo.Version,
		"build_date": buildinfo.BuildDate,
		"timestamp":  time.Now().Format(time.RFC3339),
		"uptime":     time.Since(c.startTime).String(),
	}

	dbStatus := "connected"
	if err := c.DS.Ping(); err != nil {
		dbStatus = "disconnected"
		response["status"] = "degraded"
		response["database_error"] = err.Error()
	}
	response["database_status"] = dbStatus
	response["assistant_configured"] = c.assistant.HasCredentials()
	response["notification_providers"] = c.dispatcher.Providers()
	response["system"] = systemMetrics()

	code := http.StatusOK
	if dbStatus != "connected" {
		code = http.StatusServiceUnavailable
	}
	return ctx.JSON(code, response)
}
