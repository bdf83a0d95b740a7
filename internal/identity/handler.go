package identity

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the stateless identity helpers used by the capture form.
type Handler struct{}

// NewHandler constructs an identity HTTP handler.
func NewHandler() *Handler {
	return &Handler{}
}

type identityRequest struct {
	DisplayName   string `json:"display_name"`
	WalletAddress string `json:"wallet_address"`
}

type validateResponse struct {
	CanSubmit bool              `json:"can_submit"`
	Errors    map[string]string `json:"errors"`
}

// Validate reports whether the form may be submitted, with per-field messages.
func (h *Handler) Validate(c *fiber.Ctx) error {
	var req identityRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	u := UserIdentity{DisplayName: req.DisplayName, WalletAddress: req.WalletAddress}
	return c.Status(http.StatusOK).JSON(validateResponse{
		CanSubmit: CanSubmit(u),
		Errors:    FieldErrors(u),
	})
}

// DemoWallet returns a freshly generated demo wallet.
func (h *Handler) DemoWallet(c *fiber.Ctx) error {
	addr, err := GenerateDemoWallet()
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet_address": addr,
		"checksum":       ChecksumAddress(addr),
	})
}
