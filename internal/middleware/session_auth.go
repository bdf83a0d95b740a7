package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/thevault/vault/internal/auth"
)

// SessionIDLocal is the fiber.Ctx local holding the authenticated session id.
const SessionIDLocal = "session_id"

// SessionAuth validates the bearer token and checks that it is bound to the
// :sessionId route parameter. EventSource clients cannot set headers, so a
// token query parameter is accepted as a fallback.
func SessionAuth(issuer *auth.TokenIssuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := ""
		authz := c.Get(fiber.HeaderAuthorization)
		if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			token = strings.TrimSpace(authz[len("Bearer "):])
		} else {
			token = c.Query("token")
		}
		if token == "" {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		sid, err := issuer.Verify(token)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		if param := c.Params("sessionId"); param != "" && param != sid {
			return fiber.NewError(http.StatusForbidden, "token not valid for this session")
		}
		c.Locals(SessionIDLocal, sid)
		return c.Next()
	}
}
