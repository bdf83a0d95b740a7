package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/thevault/vault/internal/attempt"
)

// RegisterAttemptRoutes exposes the attempt audit trail.
func RegisterAttemptRoutes(r fiber.Router, h *attempt.Handler) {
	r.Get("/attempts", h.List)
	r.Get("/attempts/:attemptId", h.Get)
}
