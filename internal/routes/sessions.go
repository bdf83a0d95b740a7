package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/thevault/vault/internal/middleware"
	"github.com/thevault/vault/internal/session"
)

// RegisterSessionRoutes wires session creation and the per-session endpoints.
// Creation is rate limited per client and replayable by Idempotency-Key;
// everything under a session requires its bearer token.
func RegisterSessionRoutes(r fiber.Router, d Deps, h *session.Handler) {
	r.Post("/sessions",
		middleware.RateLimit(d.Cache, "sessions", d.Cfg.SessionRate),
		middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger),
		h.Create,
	)

	s := r.Group("/sessions/:sessionId", middleware.SessionAuth(d.Issuer))
	s.Get("", h.Get)
	s.Delete("", h.Delete)
	s.Post("/identity", h.SubmitIdentity)
	s.Post("/engine", h.Engine)
	s.Post("/frames", h.Frames)
	s.Post("/start", h.Start)
	s.Post("/reset", h.Reset)
	s.Post("/retry", h.Retry)
	s.Get("/feed", h.Feed)
	s.Get("/events", h.Events)
}
