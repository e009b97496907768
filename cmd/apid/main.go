// Command apid runs the API Service (component C8, spec §2/§4.6/§6):
// the tenant-scoped REST surface that the frontend and OAuth login flow
// talk to, serving each request on its own task against shared
// database/cache connection pools (spec §5).
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gamenight/scheduler/internal/api"
	"github.com/gamenight/scheduler/internal/bus"
	"github.com/gamenight/scheduler/internal/cache"
	"github.com/gamenight/scheduler/internal/chatapi"
	"github.com/gamenight/scheduler/internal/config"
	"github.com/gamenight/scheduler/internal/healthsrv"
	"github.com/gamenight/scheduler/internal/store"
	"github.com/gamenight/scheduler/internal/telemetry"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if cfg.ChatOAuthClientID == "" || cfg.ChatOAuthSecret == "" {
		log.Fatal("CHAT_OAUTH_CLIENT_ID and CHAT_OAUTH_CLIENT_SECRET are required")
	}

	telCfg := telemetry.LoadConfigFromEnv("apid")
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

	busClient, err := bus.Dial(cfg.BrokerURL)
	if err != nil {
		log.Fatalf("failed to connect to broker: %v", err)
	}
	defer busClient.Close()

	chatClient := chatapi.New(cfg.ChatAPIBaseURL, chatapi.BotToken(cfg.ChatBotToken), cacheSvc)

	deps := &api.Deps{
		DB:           db,
		Guilds:       store.NewGuildRepository(db),
		Templates:    store.NewTemplateRepository(db),
		Games:        store.NewGameRepository(db),
		Participants: store.NewParticipantRepository(db),
		Users:        store.NewUserRepository(db),
		Schedules:    store.NewScheduleRepository(db),
		Chat:         chatClient,
		Cache:        cacheSvc,
		Publisher:    busClient,

		FrontendBaseURL:   cfg.FrontendBaseURL,
		ChatOAuthClientID: cfg.ChatOAuthClientID,
		ChatOAuthSecret:   cfg.ChatOAuthSecret,
		ChatAPIBaseURL:    cfg.ChatAPIBaseURL,
	}
	router := api.NewRouter(deps)
	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthy := true
	healthServer := healthsrv.Start(cfg.HealthAddr, func() bool { return healthy })
	defer healthsrv.Shutdown(healthServer)

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("apid: server error: %v", err)
		}
	}()

	<-ctx.Done()
	healthy = false
	log.Println("apid: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}
