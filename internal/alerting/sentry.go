// Package alerting wraps Sentry error tracking for the retry daemon
// (spec ambient stack: error tracking, generalized from the teacher's
// per-request services/api/internal/sentry.Init/CaptureError into a
// free-standing package usable by a background daemon that has no HTTP
// request to attach context to).
package alerting

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/gamenight/scheduler/internal/config"
)

// Init starts the Sentry client. A missing DSN disables reporting
// entirely rather than failing startup — the teacher's
// "graceful degradation" (services/api/internal/sentry.Init).
func Init(cfg config.Config) error {
	if !cfg.EnableSentry || cfg.SentryDSN == "" {
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
	})
	if err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	return nil
}

// Flush blocks until buffered events are sent or timeout elapses —
// call before a daemon exits.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}

// CaptureError reports an error with free-form tags, mirroring the
// teacher's CaptureError (services/api/internal/sentry.CaptureError).
// A no-op when Sentry was never initialized.
func CaptureError(err error, tags map[string]string) {
	if err == nil {
		return
	}
	hub := sentry.CurrentHub().Clone()
	scope := hub.Scope()
	for k, v := range tags {
		scope.SetTag(k, v)
	}
	hub.CaptureException(err)
}

// CaptureDLQAlert reports a dead-letter queue crossing its size
// threshold, generalized from the teacher's notification DLQ-alerting
// path (services/api/internal/notification, grpc_service.go's
// GetDLQStats/ReplayDLQ surface that a human operator acts on) into a
// single alert fired by the retry daemon itself rather than requiring
// an operator to poll stats.
func CaptureDLQAlert(queue string, count, threshold int) {
	if count < threshold {
		return
	}
	hub := sentry.CurrentHub().Clone()
	scope := hub.Scope()
	scope.SetTag("dlq", queue)
	scope.SetExtra("count", count)
	scope.SetExtra("threshold", threshold)
	hub.CaptureMessage(fmt.Sprintf("dead-letter queue %q has %d messages (threshold %d)", queue, count, threshold))
}
