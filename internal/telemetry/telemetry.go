// Package telemetry reports enhanced errors to Sentry. Reporting is opt-in
// and disabled by default; without a DSN the package is inert.
package telemetry

import (
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/pondwatch/pondwatch-go/internal/buildinfo"
	"github.com/pondwatch/pondwatch-go/internal/conf"
	"github.com/pondwatch/pondwatch-go/internal/errors"
	"github.com/pondwatch/pondwatch-go/internal/logging"
)

var (
	log     *slog.Logger
	enabled bool
)

// Init configures Sentry and hooks it into the error builder. A disabled
// config or empty DSN leaves telemetry off.
func Init(settings *conf.Settings) error {
	log = logging.ForService("telemetry")

	if !settings.Sentry.Enabled || settings.Sentry.DSN == "" {
		log.Debug("error telemetry disabled")
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.Sentry.DSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		ServerName:       "",
		Environment:      "production",
		Release:          "pondwatch-go@" + buildinfo.Version,
	})
	if err != nil {
		return errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	enabled = true
	errors.SetErrorHook(captureError)
	log.Info("error telemetry enabled")
	return nil
}

// captureError forwards one enhanced error to Sentry. Errors are tagged by
// component and category so the dashboard can group them.
func captureError(ee *errors.EnhancedError) {
	if !enabled || ee == nil || ee.IsReported() {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.GetComponent())
		scope.SetTag("category", ee.GetCategory())
		if p := ee.GetPriority(); p != "" {
			scope.SetTag("priority", p)
		}
		if ctx := ee.GetContext(); len(ctx) > 0 {
			scope.SetContext("error_context", sentry.Context(ctx))
		}
		sentry.CaptureException(ee)
	})
	ee.MarkReported()
}

// Flush drains pending events before shutdown.
func Flush(timeout time.Duration) {
	if enabled {
		sentry.Flush(timeout)
	}
}
