// Command retryd runs the retry daemon (component C6, spec §2/§4.4):
// the sole consumer of every dead-letter queue, republishing messages
// to their original exchange/routing key on a periodic tick.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gamenight/scheduler/internal/alerting"
	"github.com/gamenight/scheduler/internal/bus"
	"github.com/gamenight/scheduler/internal/config"
	"github.com/gamenight/scheduler/internal/healthsrv"
	"github.com/gamenight/scheduler/internal/telemetry"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if err := alerting.Init(cfg); err != nil {
		log.Fatalf("failed to init error tracking: %v", err)
	}
	defer alerting.Flush(2 * time.Second)

	telCfg := telemetry.LoadConfigFromEnv("retryd")
	shutdownTel, err := telemetry.InitializeOpenTelemetry(context.Background(), telCfg)
	if err != nil {
		log.Fatalf("failed to init telemetry: %v", err)
	}
	defer shutdownTel()

	client, err := bus.Dial(cfg.BrokerURL)
	if err != nil {
		log.Fatalf("failed to connect to broker: %v", err)
	}
	defer client.Close()

	var dlqs []string
	for _, spec := range bus.Declarations() {
		dlqs = append(dlqs, spec.DLQName)
	}
	daemon := bus.NewRetryDaemon(client, dlqs).WithAlertThreshold(cfg.DLQAlertThreshold)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthy := true
	healthServer := healthsrv.Start(cfg.HealthAddr, func() bool { return healthy })
	defer healthsrv.Shutdown(healthServer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return daemon.Run(gctx) })

	<-ctx.Done()
	healthy = false
	log.Println("retryd: shutting down, finishing in-flight drain pass")
	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Printf("retryd: stopped with error: %v", err)
	}
}
