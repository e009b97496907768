// Package api is the API Service (component C8, spec §4.6/§6): gin
// router, middleware chain, and the full tenant-scoped HTTP surface for
// guild config, templates, games, participants, and exports. Grounded
// on internal/bothandler/handler.go's gin usage
// (HandleWebhook/router.POST in cmd/bot/main.go) generalized from one
// webhook route to a full REST surface.
package api

import (
	"github.com/gamenight/scheduler/internal/bus"
	"github.com/gamenight/scheduler/internal/cache"
	"github.com/gamenight/scheduler/internal/chatapi"
	"github.com/gamenight/scheduler/internal/store"
)

// Deps bundles every dependency a handler needs. A single struct
// embedded into each handler group mirrors the teacher's Handler struct
// in internal/bothandler/handler.go, which holds its services the same
// way.
type Deps struct {
	DB           *store.DB
	Guilds       *store.GuildRepository
	Templates    *store.TemplateRepository
	Games        *store.GameRepository
	Participants *store.ParticipantRepository
	Users        *store.UserRepository
	Schedules    *store.ScheduleRepository
	Chat         chatapi.Client
	Cache        *cache.Service
	Publisher    bus.Publisher

	FrontendBaseURL   string
	ChatOAuthClientID string
	ChatOAuthSecret   string
	ChatAPIBaseURL    string
}
