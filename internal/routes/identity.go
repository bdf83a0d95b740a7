package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/thevault/vault/internal/identity"
)

// RegisterIdentityRoutes wires the stateless identity form helpers.
func RegisterIdentityRoutes(r fiber.Router, h *identity.Handler) {
	r.Get("/identity/demo-wallet", h.DemoWallet)
	r.Post("/identity/validate", h.Validate)
}
