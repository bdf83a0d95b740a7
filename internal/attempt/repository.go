package attempt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists attempt records.
type Repository interface {
	Create(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	ListByWallet(ctx context.Context, wallet string, limit int) ([]Record, error)
}

const schema = `CREATE TABLE IF NOT EXISTS verification_attempts (
    id UUID PRIMARY KEY,
    session_id UUID NOT NULL,
    display_name TEXT NOT NULL,
    wallet_address TEXT NOT NULL,
    challenges TEXT[] NOT NULL,
    status TEXT NOT NULL,
    is_real BOOLEAN NOT NULL,
    confidence DOUBLE PRECISION NOT NULL,
    sentiment TEXT NOT NULL,
    reasoning TEXT NOT NULL,
    receipt_hash TEXT NOT NULL DEFAULT '',
    started_at TIMESTAMPTZ NOT NULL,
    completed_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS verification_attempts_wallet_idx
    ON verification_attempts (lower(wallet_address), completed_at DESC);`

// PostgresRepository stores attempts in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed attempt repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the attempts table when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure attempt schema: %w", err)
	}
	return nil
}

// Create inserts an attempt record.
func (r *PostgresRepository) Create(ctx context.Context, rec Record) error {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return err
	}
	sessionID, err := uuid.Parse(rec.SessionID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO verification_attempts
        (id, session_id, display_name, wallet_address, challenges, status, is_real, confidence, sentiment, reasoning, receipt_hash, started_at, completed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		id, sessionID, rec.DisplayName, rec.WalletAddress, rec.Challenges, rec.Status, rec.IsReal,
		rec.Confidence, rec.Sentiment, rec.Reasoning, rec.ReceiptHash, rec.StartedAt.UTC(), rec.CompletedAt.UTC())
	return err
}

const selectColumns = `SELECT id, session_id, display_name, wallet_address, challenges, status, is_real,
        confidence, sentiment, reasoning, receipt_hash, started_at, completed_at FROM verification_attempts`

// Get fetches an attempt by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Record, error) {
	attemptID, err := uuid.Parse(id)
	if err != nil {
		return Record{}, ErrNotFound
	}
	rec, err := scanRecord(r.db.QueryRow(ctx, selectColumns+` WHERE id = $1`, attemptID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// ListByWallet returns the most recent attempts for a wallet, newest first.
func (r *PostgresRepository) ListByWallet(ctx context.Context, wallet string, limit int) ([]Record, error) {
	rows, err := r.db.Query(ctx, selectColumns+` WHERE lower(wallet_address) = lower($1)
        ORDER BY completed_at DESC LIMIT $2`, wallet, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec       Record
		id        uuid.UUID
		sessionID uuid.UUID
		startedAt time.Time
		doneAt    time.Time
	)
	if err := row.Scan(&id, &sessionID, &rec.DisplayName, &rec.WalletAddress, &rec.Challenges, &rec.Status,
		&rec.IsReal, &rec.Confidence, &rec.Sentiment, &rec.Reasoning, &rec.ReceiptHash, &startedAt, &doneAt); err != nil {
		return Record{}, err
	}
	rec.ID = id.String()
	rec.SessionID = sessionID.String()
	rec.StartedAt = startedAt.UTC()
	rec.CompletedAt = doneAt.UTC()
	return rec, nil
}
