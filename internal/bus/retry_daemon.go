package bus

import (
	"context"
	"time"

	"github.com/gamenight/scheduler/internal/alerting"
	"github.com/gamenight/scheduler/internal/telemetry"
)

// RetryTick is the default DLQ-drain interval (spec §4.4).
const RetryTick = 15 * time.Minute

// DefaultDLQAlertThreshold is used when the caller doesn't set one
// explicitly (spec ambient stack: "alert when this system's DLQs cross
// a size/age threshold", generalized from the teacher's notification
// DLQ-alerting path).
const DefaultDLQAlertThreshold = 50

// RetryDaemon is component C6, the sole owner of DLQ processing (spec
// §4.4 "This daemon is the sole owner of DLQ processing"). It runs once
// immediately when Run starts and then on every tick.
type RetryDaemon struct {
	client        *AMQPClient
	queues        []string
	tick          time.Duration
	alertThreshold int
}

// NewRetryDaemon builds a daemon that drains every DLQ named in queues
// (one per primary queue declared in Declarations()).
func NewRetryDaemon(client *AMQPClient, queues []string) *RetryDaemon {
	return &RetryDaemon{client: client, queues: queues, tick: RetryTick, alertThreshold: DefaultDLQAlertThreshold}
}

// WithAlertThreshold overrides the per-pass republish count that
// triggers a Sentry alert (config.Config.DLQAlertThreshold).
func (d *RetryDaemon) WithAlertThreshold(n int) *RetryDaemon {
	d.alertThreshold = n
	return d
}

// Run blocks until ctx is cancelled, draining all configured DLQs on
// startup and on every tick thereafter.
func (d *RetryDaemon) Run(ctx context.Context) error {
	logger := telemetry.GetContextualLogger(ctx).WithField("component", "retry_daemon")

	d.drainAll(ctx, logger)

	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.drainAll(ctx, logger)
		}
	}
}

func (d *RetryDaemon) drainAll(ctx context.Context, logger *telemetry.ContextualLogger) {
	for _, q := range d.queues {
		n, err := d.client.DrainDLQOnce(ctx, q)
		if err != nil {
			logger.WithError(err).WithField("dlq", q).Error("dlq drain pass failed")
			alerting.CaptureError(err, map[string]string{"dlq": q, "component": "retry_daemon"})
			continue
		}
		if n > 0 {
			logger.WithField("dlq", q).WithField("count", n).Info("republished dlq messages")
			alerting.CaptureDLQAlert(q, n, d.alertThreshold)
		}
	}
}
