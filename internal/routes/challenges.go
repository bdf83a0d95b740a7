package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/thevault/vault/internal/challenge"
)

// RegisterChallengeRoutes exposes the static challenge bank.
func RegisterChallengeRoutes(r fiber.Router) {
	r.Get("/challenges", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"challenges":      challenge.Catalog(),
			"sequence_length": challenge.SequenceLength,
		})
	})
}
