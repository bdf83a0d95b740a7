package attempt

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no attempt matches.
var ErrNotFound = errors.New("attempt not found")

// Record is the audit entry for one finished verification attempt.
type Record struct {
	ID            string
	SessionID     string
	DisplayName   string
	WalletAddress string
	Challenges    []string
	Status        string
	IsReal        bool
	Confidence    float64
	Sentiment     string
	Reasoning     string
	ReceiptHash   string
	StartedAt     time.Time
	CompletedAt   time.Time
}
