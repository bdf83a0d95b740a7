package attempt

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/thevault/vault/internal/identity"
)

// Handler exposes attempt audit endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds an attempt HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type attemptResponse struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	DisplayName   string    `json:"display_name,omitempty"`
	WalletAddress string    `json:"wallet_address"`
	Challenges    []string  `json:"challenges"`
	Status        string    `json:"status"`
	IsReal        bool      `json:"is_real"`
	Confidence    float64   `json:"confidence"`
	Sentiment     string    `json:"sentiment"`
	Reasoning     string    `json:"reasoning"`
	ReceiptHash   string    `json:"receipt_hash,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
}

func toResponse(rec Record) attemptResponse {
	return attemptResponse{
		ID:            rec.ID,
		SessionID:     rec.SessionID,
		DisplayName:   rec.DisplayName,
		WalletAddress: rec.WalletAddress,
		Challenges:    rec.Challenges,
		Status:        rec.Status,
		IsReal:        rec.IsReal,
		Confidence:    rec.Confidence,
		Sentiment:     rec.Sentiment,
		Reasoning:     rec.Reasoning,
		ReceiptHash:   rec.ReceiptHash,
		StartedAt:     rec.StartedAt,
		CompletedAt:   rec.CompletedAt,
	}
}

// Get returns a single attempt.
func (h *Handler) Get(c *fiber.Ctx) error {
	rec, err := h.service.Get(c.UserContext(), c.Params("attemptId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toResponse(rec))
}

// List returns recent attempts for the wallet query parameter. The route is
// public, so display names are left out; an attempt id is needed to see one.
func (h *Handler) List(c *fiber.Ctx) error {
	wallet := c.Query("wallet")
	if !identity.IsValidWallet(wallet) {
		return fiber.NewError(http.StatusBadRequest, identity.ErrInvalidWallet.Error())
	}
	recs, err := h.service.ForWallet(c.UserContext(), wallet, c.QueryInt("limit", defaultListLimit))
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]attemptResponse, 0, len(recs))
	for _, rec := range recs {
		resp := toResponse(rec)
		resp.DisplayName = ""
		out = append(out, resp)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"wallet_address": wallet, "attempts": out})
}
