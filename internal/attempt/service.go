package attempt

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/thevault/vault/internal/verification"
)

const defaultListLimit = 20

// Service records finished attempts.
type Service struct {
	repo Repository
}

// NewService creates an attempt service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record stores the outcome of an attempt. Successful attempts get a
// decorative receipt hash shown as the "mint" transaction.
func (s *Service) Record(ctx context.Context, sessionID string, out verification.Outcome) (Record, error) {
	types := make([]string, 0, len(out.Challenges))
	for _, c := range out.Challenges {
		types = append(types, string(c.Type))
	}
	rec := Record{
		ID:            out.AttemptID,
		SessionID:     sessionID,
		DisplayName:   out.Identity.DisplayName,
		WalletAddress: out.Identity.WalletAddress,
		Challenges:    types,
		Status:        string(out.Status),
		IsReal:        out.Verdict.IsReal,
		Confidence:    out.Verdict.Confidence,
		Sentiment:     out.Verdict.Sentiment,
		Reasoning:     out.Verdict.Reasoning,
		StartedAt:     out.StartedAt,
		CompletedAt:   out.CompletedAt,
	}
	if out.Status == verification.StatusSuccess {
		rec.ReceiptHash = ReceiptHash(out.AttemptID, out.Identity.WalletAddress)
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("store attempt: %w", err)
	}
	return rec, nil
}

// Get returns one attempt.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	return s.repo.Get(ctx, id)
}

// ForWallet lists recent attempts for a wallet.
func (s *Service) ForWallet(ctx context.Context, wallet string, limit int) ([]Record, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultListLimit
	}
	return s.repo.ListByWallet(ctx, wallet, limit)
}

// ReceiptHash is Keccak-256 over the attempt id and lowercased wallet.
func ReceiptHash(attemptID, wallet string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(attemptID))
	h.Write([]byte{':'})
	h.Write([]byte(strings.ToLower(wallet)))
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
