package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, opts Options) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Escape Room API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(opts.Logger, opts.DB))

	// Platform gateway callbacks.
	r.Route("/platform", func(r chi.Router) {
		r.Use(platformAuthMiddleware(opts.PlatformToken))
		r.Post("/interactions", handleInteraction(opts.Room, opts.Broker))
		r.Post("/members", handleMemberEvent(opts.Room))
	})

	// Public badge reads.
	r.Get("/api/badges/events", handleListEvents(opts.Badges))
	r.Get("/api/badges/users/{userID}", handleUserBadges(opts.Badges))

	// Operator surface.
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(adminAuthMiddleware(opts.AdminTokenHash))

		r.Post("/activate", handleActivate(opts.Room, true))
		r.Post("/deactivate", handleActivate(opts.Room, false))
		r.Get("/progress", handleProgress(opts.Room))
		r.Get("/events", handleEvents(opts.Broker))

		r.Put("/config/winners", handleSetWinners(opts.Room))
		r.Put("/config/channels", handleSetChannels(opts.Room))

		r.Post("/users/{userID}/stage", handleSetStage(opts.Room))
		r.Post("/users/{userID}/clear-error", handleClearError(opts.Room))
		r.Delete("/users/{userID}/cooldowns", handleClearCooldowns(opts.Room))
		r.Delete("/cooldowns", handleClearAllCooldowns(opts.Room))

		r.Post("/badges/events", handleCreateEvent(opts.Badges))
		r.Post("/badges/users/{userID}", handleAwardBadge(opts.Badges))
		r.Delete("/badges/users/{userID}/{event}", handleRevokeBadge(opts.Badges))
		r.Post("/badges/invalidate", handleInvalidateBadges(opts.Badges))
	})

	// Live progression feed for operator dashboards.
	r.Get("/ws/progress", handleWSProgress(opts.Logger, opts.Broker, opts.AdminTokenHash))
}
