// Command gatewayd runs the Chat Gateway Service (component C7, spec
// §2/§4.5): the long-lived chat-platform session, the bot_events bus
// consumer, and the webhook endpoint for chat-platform-initiated slash
// commands and button interactions.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"github.com/gamenight/scheduler/internal/bus"
	"github.com/gamenight/scheduler/internal/cache"
	"github.com/gamenight/scheduler/internal/chatapi"
	"github.com/gamenight/scheduler/internal/config"
	"github.com/gamenight/scheduler/internal/gateway"
	"github.com/gamenight/scheduler/internal/healthsrv"
	"github.com/gamenight/scheduler/internal/store"
	"github.com/gamenight/scheduler/internal/telemetry"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if cfg.ChatBotToken == "" {
		log.Fatal("CHAT_BOT_TOKEN is required")
	}

	telCfg := telemetry.LoadConfigFromEnv("gatewayd")
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

	cacheSvc, err := cache.NewService(cache.ConfigFromEnv())
	if err != nil {
		log.Fatalf("failed to connect to cache: %v", err)
	}
	defer cacheSvc.Close()

	client, err := bus.Dial(cfg.BrokerURL)
	if err != nil {
		log.Fatalf("failed to connect to broker: %v", err)
	}
	defer client.Close()

	chatClient := chatapi.New(cfg.ChatAPIBaseURL, chatapi.BotToken(cfg.ChatBotToken), cacheSvc)
	games := store.NewGameRepository(db)
	participants := store.NewParticipantRepository(db)

	gw := gateway.New(chatClient, games, participants, cacheSvc, client, cfg.FrontendBaseURL)

	router := gin.Default()
	router.Use(otelgin.Middleware("gatewayd"))
	router.POST("/interactions", gw.HandleInteraction)

	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthy := true
	healthServer := healthsrv.Start(cfg.HealthAddr, func() bool { return healthy })
	defer healthsrv.Shutdown(healthServer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return gw.Run(gctx) })
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	<-ctx.Done()
	healthy = false
	log.Println("gatewayd: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Printf("gatewayd: stopped with error: %v", err)
	}
}
