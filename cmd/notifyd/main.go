// Command notifyd runs the notification daemon (component C4, spec
// §2/§4.3): fires due notification_schedule rows and publishes
// NOTIFICATION_DUE events.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/gamenight/scheduler/internal/bus"
	"github.com/gamenight/scheduler/internal/config"
	"github.com/gamenight/scheduler/internal/healthsrv"
	"github.com/gamenight/scheduler/internal/scheduler"
	"github.com/gamenight/scheduler/internal/store"
	"github.com/gamenight/scheduler/internal/telemetry"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	telCfg := telemetry.LoadConfigFromEnv("notifyd")
	shutdownTel, err := telemetry.InitializeOpenTelemetry(context.Background(), telCfg)
	if err != nil {
		log.Fatalf("failed to init telemetry: %v", err)
	}
	defer shutdownTel()

	db, err := store.NewInstrumentedConnection(store.Config{
		Host: cfg.DatabaseHost, Port: cfg.DatabasePort, User: cfg.DatabaseUser,
		Password: cfg.DatabasePassword, DBName: cfg.DatabaseName, SSLMode: cfg.DatabaseSSLMode,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	client, err := bus.Dial(cfg.BrokerURL)
	if err != nil {
		log.Fatalf("failed to connect to broker: %v", err)
	}
	defer client.Close()

	listener, err := scheduler.NewListener(cfg.DatabaseDSN(), "notification_schedule_changed")
	if err != nil {
		log.Fatalf("failed to start listener: %v", err)
	}
	defer listener.Close()

	daemon := scheduler.NewNotificationDaemon(store.NewScheduleRepository(db), client, listener)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthy := true
	healthServer := healthsrv.Start(cfg.HealthAddr, func() bool { return healthy })
	defer healthsrv.Shutdown(healthServer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return daemon.Run(gctx) })

	<-ctx.Done()
	healthy = false
	log.Println("notifyd: shutting down, finishing in-flight fire")
	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Printf("notifyd: stopped with error: %v", err)
	}
}
