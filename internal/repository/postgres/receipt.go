package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"hail/internal/domain"
	"hail/internal/repository"
)

// ReceiptRepository is a PostgreSQL implementation of
// repository.ReceiptRepository.
type ReceiptRepository struct {
	q Querier
}

// NewReceiptRepository creates a new PostgreSQL receipt repository.
func NewReceiptRepository(db *sql.DB) *ReceiptRepository {
	return &ReceiptRepository{q: db}
}

// NewReceiptRepositoryWithTx creates a receipt repository using a transaction.
func NewReceiptRepositoryWithTx(tx *sql.Tx) *ReceiptRepository {
	return &ReceiptRepository{q: tx}
}

// Create persists an immutable receipt.
func (r *ReceiptRepository) Create(ctx context.Context, rec *domain.Receipt) error {
	query := `
		INSERT INTO receipts (id, booking_id, user_id, driver_id, pickup, dropoff, breakdown, started_at, completed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	pickup, err := json.Marshal(rec.Pickup)
	if err != nil {
		return fmt.Errorf("marshal pickup: %w", err)
	}
	dropoff, err := json.Marshal(rec.Dropoff)
	if err != nil {
		return fmt.Errorf("marshal dropoff: %w", err)
	}
	breakdown, err := json.Marshal(rec.Breakdown)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}

	_, err = r.q.ExecContext(ctx, query,
		rec.ID,
		rec.BookingID,
		rec.UserID,
		rec.DriverID,
		pickup,
		dropoff,
		breakdown,
		rec.StartedAt,
		rec.CompletedAt,
		rec.CreatedAt,
	)

	return err
}

// GetByBookingID retrieves the receipt for a booking.
func (r *ReceiptRepository) GetByBookingID(ctx context.Context, bookingID string) (*domain.Receipt, error) {
	query := `
		SELECT id, booking_id, user_id, driver_id, pickup, dropoff, breakdown, started_at, completed_at, created_at
		FROM receipts WHERE booking_id = $1
	`

	var rec domain.Receipt
	var pickup, dropoff, breakdown []byte

	err := r.q.QueryRowContext(ctx, query, bookingID).Scan(
		&rec.ID,
		&rec.BookingID,
		&rec.UserID,
		&rec.DriverID,
		&pickup,
		&dropoff,
		&breakdown,
		&rec.StartedAt,
		&rec.CompletedAt,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(pickup, &rec.Pickup); err != nil {
		return nil, fmt.Errorf("unmarshal pickup: %w", err)
	}
	if err := json.Unmarshal(dropoff, &rec.Dropoff); err != nil {
		return nil, fmt.Errorf("unmarshal dropoff: %w", err)
	}
	if err := json.Unmarshal(breakdown, &rec.Breakdown); err != nil {
		return nil, fmt.Errorf("unmarshal breakdown: %w", err)
	}

	return &rec, nil
}
