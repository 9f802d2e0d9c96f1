package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hail/internal/domain"
	"hail/internal/repository"
)

// BookingRepository is a PostgreSQL implementation of
// repository.BookingRepository. The append-only collections on the
// aggregate (rejections, offers, ledger, raises) are stored as jsonb
// arrays and grown with the || operator; lifecycle transitions are
// conditional UPDATEs guarded on the current status so concurrent callers
// race safely inside one statement.
type BookingRepository struct {
	q Querier
}

// NewBookingRepository creates a new PostgreSQL booking repository.
func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{q: db}
}

// NewBookingRepositoryWithTx creates a booking repository using a transaction.
func NewBookingRepositoryWithTx(tx *sql.Tx) *BookingRepository {
	return &BookingRepository{q: tx}
}

const bookingColumns = `id, user_id, driver_id, pickup, dropoff, service_type, vehicle_type, service_category, route_type, preference, pink_captain, pinned_driver_id, offered_fare, raised_fare, fare, distance_km, status, rejected_drivers, driver_offers, negotiation_ledger, fare_raises, resend_attempts, max_resend_attempts, cancelled_by, cancel_reason, created_at, accepted_at, started_at, completed_at, cancelled_at`

// Create persists a new booking.
func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30)
	`

	pickup, err := json.Marshal(b.Pickup)
	if err != nil {
		return fmt.Errorf("marshal pickup: %w", err)
	}
	dropoff, err := json.Marshal(b.Dropoff)
	if err != nil {
		return fmt.Errorf("marshal dropoff: %w", err)
	}
	pinkCaptain, err := json.Marshal(b.PinkCaptain)
	if err != nil {
		return fmt.Errorf("marshal pink captain options: %w", err)
	}
	rejections, err := marshalArray(b.RejectedDrivers)
	if err != nil {
		return err
	}
	offers, err := marshalArray(b.DriverOffers)
	if err != nil {
		return err
	}
	ledger, err := marshalArray(b.NegotiationLedger)
	if err != nil {
		return err
	}
	raises, err := marshalArray(b.FareRaises)
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, query,
		b.ID,
		b.UserID,
		nullString(b.DriverID),
		pickup,
		dropoff,
		b.ServiceType,
		b.VehicleType,
		nullString(string(b.ServiceCategory)),
		b.RouteType,
		b.Preference,
		pinkCaptain,
		nullString(b.PinnedDriverID),
		b.OfferedFare,
		b.RaisedFare,
		b.Fare,
		b.DistanceKm,
		b.Status,
		rejections,
		offers,
		ledger,
		raises,
		b.ResendAttempts,
		b.MaxResendAttempts,
		nullString(b.CancelledBy),
		nullString(b.CancelReason),
		b.CreatedAt,
		nullTime(b.AcceptedAt),
		nullTime(b.StartedAt),
		nullTime(b.CompletedAt),
		nullTime(b.CancelledAt),
	)

	return err
}

// GetByID retrieves a booking by ID.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	b, err := scanBooking(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// ListPending returns pending bookings, newest first.
func (r *BookingRepository) ListPending(ctx context.Context) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status = 'pending' ORDER BY created_at DESC LIMIT 500`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// Accept atomically assigns the driver and fixes the fare. The status
// guard in the WHERE clause is the whole concurrency story: exactly one
// concurrent caller sees rowsAffected == 1.
func (r *BookingRepository) Accept(ctx context.Context, bookingID, driverID string, fare float64, at time.Time) (bool, error) {
	query := `
		UPDATE bookings
		SET driver_id = $1, fare = $2, status = 'accepted', accepted_at = $3
		WHERE id = $4 AND status = 'pending'
	`
	return r.guarded(ctx, query, driverID, fare, at, bookingID)
}

// AppendRejection appends to the rejected-drivers list. The containment
// check makes a repeated rejection by the same driver a no-op.
func (r *BookingRepository) AppendRejection(ctx context.Context, bookingID string, rej domain.DriverRejection) error {
	query := `
		UPDATE bookings
		SET rejected_drivers = rejected_drivers || $1::jsonb
		WHERE id = $2 AND NOT rejected_drivers @> $3::jsonb
	`

	entry, err := marshalArray([]domain.DriverRejection{rej})
	if err != nil {
		return err
	}
	probe, err := json.Marshal([]map[string]string{{"driver_id": rej.DriverID}})
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, query, entry, bookingID, probe)
	return err
}

// AppendOffer appends a driver fare offer, guarded on status = pending.
func (r *BookingRepository) AppendOffer(ctx context.Context, bookingID string, o domain.DriverOffer) (bool, error) {
	query := `
		UPDATE bookings
		SET driver_offers = driver_offers || $1::jsonb
		WHERE id = $2 AND status = 'pending'
	`

	entry, err := marshalArray([]domain.DriverOffer{o})
	if err != nil {
		return false, err
	}
	return r.guarded(ctx, query, entry, bookingID)
}

// AppendLedgerEntry appends one negotiation ledger entry.
func (r *BookingRepository) AppendLedgerEntry(ctx context.Context, bookingID string, e domain.NegotiationEntry) error {
	query := `
		UPDATE bookings
		SET negotiation_ledger = negotiation_ledger || $1::jsonb
		WHERE id = $2
	`

	entry, err := marshalArray([]domain.NegotiationEntry{e})
	if err != nil {
		return err
	}

	result, err := r.q.ExecContext(ctx, query, entry, bookingID)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetFare records a negotiated fare agreement.
func (r *BookingRepository) SetFare(ctx context.Context, bookingID string, fare float64) error {
	query := `UPDATE bookings SET fare = $1 WHERE id = $2`

	result, err := r.q.ExecContext(ctx, query, fare, bookingID)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RecordFareRaise atomically appends the raise, bumps the raised fare and
// the resend counter, guarded on status = pending and the attempt cap.
func (r *BookingRepository) RecordFareRaise(ctx context.Context, bookingID string, raise domain.FareRaise, maxAttempts int) (bool, error) {
	query := `
		UPDATE bookings
		SET fare_raises = fare_raises || $1::jsonb,
		    raised_fare = $2,
		    resend_attempts = resend_attempts + 1
		WHERE id = $3 AND status = 'pending' AND resend_attempts < $4
	`

	entry, err := marshalArray([]domain.FareRaise{raise})
	if err != nil {
		return false, err
	}
	return r.guarded(ctx, query, entry, raise.Amount, bookingID, maxAttempts)
}

// Cancel moves the booking to cancelled from pending or accepted.
func (r *BookingRepository) Cancel(ctx context.Context, bookingID, cancelledBy, reason string, at time.Time) (bool, error) {
	query := `
		UPDATE bookings
		SET status = 'cancelled', cancelled_by = $1, cancel_reason = $2, cancelled_at = $3
		WHERE id = $4 AND status IN ('pending', 'accepted')
	`
	return r.guarded(ctx, query, cancelledBy, nullString(reason), at, bookingID)
}

// Start moves the booking from accepted to started, guarded on the
// assigned driver.
func (r *BookingRepository) Start(ctx context.Context, bookingID, driverID string, at time.Time) (bool, error) {
	query := `
		UPDATE bookings
		SET status = 'started', started_at = $1
		WHERE id = $2 AND driver_id = $3 AND status = 'accepted'
	`
	return r.guarded(ctx, query, at, bookingID, driverID)
}

// Complete moves the booking from started/in_progress to completed,
// guarded on the assigned driver.
func (r *BookingRepository) Complete(ctx context.Context, bookingID, driverID string, at time.Time) (bool, error) {
	query := `
		UPDATE bookings
		SET status = 'completed', completed_at = $1
		WHERE id = $2 AND driver_id = $3 AND status IN ('started', 'in_progress')
	`
	return r.guarded(ctx, query, at, bookingID, driverID)
}

func (r *BookingRepository) guarded(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

// marshalArray encodes a slice as a jsonb array, mapping nil to [] so the
// || append operator always has an array to grow.
func marshalArray(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb array: %w", err)
	}
	if string(data) == "null" {
		return []byte("[]"), nil
	}
	return data, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var b domain.Booking
	var driverID, serviceCategory, pinnedDriverID, cancelledBy, cancelReason sql.NullString
	var pickup, dropoff, pinkCaptain, rejections, offers, ledger, raises []byte
	var acceptedAt, startedAt, completedAt, cancelledAt sql.NullTime

	if err := row.Scan(
		&b.ID,
		&b.UserID,
		&driverID,
		&pickup,
		&dropoff,
		&b.ServiceType,
		&b.VehicleType,
		&serviceCategory,
		&b.RouteType,
		&b.Preference,
		&pinkCaptain,
		&pinnedDriverID,
		&b.OfferedFare,
		&b.RaisedFare,
		&b.Fare,
		&b.DistanceKm,
		&b.Status,
		&rejections,
		&offers,
		&ledger,
		&raises,
		&b.ResendAttempts,
		&b.MaxResendAttempts,
		&cancelledBy,
		&cancelReason,
		&b.CreatedAt,
		&acceptedAt,
		&startedAt,
		&completedAt,
		&cancelledAt,
	); err != nil {
		return nil, err
	}

	if driverID.Valid {
		b.DriverID = driverID.String
	}
	if serviceCategory.Valid {
		b.ServiceCategory = domain.ServiceCategory(serviceCategory.String)
	}
	if pinnedDriverID.Valid {
		b.PinnedDriverID = pinnedDriverID.String
	}
	if cancelledBy.Valid {
		b.CancelledBy = cancelledBy.String
	}
	if cancelReason.Valid {
		b.CancelReason = cancelReason.String
	}
	if acceptedAt.Valid {
		b.AcceptedAt = acceptedAt.Time
	}
	if startedAt.Valid {
		b.StartedAt = startedAt.Time
	}
	if completedAt.Valid {
		b.CompletedAt = completedAt.Time
	}
	if cancelledAt.Valid {
		b.CancelledAt = cancelledAt.Time
	}

	if err := json.Unmarshal(pickup, &b.Pickup); err != nil {
		return nil, fmt.Errorf("unmarshal pickup: %w", err)
	}
	if err := json.Unmarshal(dropoff, &b.Dropoff); err != nil {
		return nil, fmt.Errorf("unmarshal dropoff: %w", err)
	}
	if err := json.Unmarshal(pinkCaptain, &b.PinkCaptain); err != nil {
		return nil, fmt.Errorf("unmarshal pink captain options: %w", err)
	}
	if err := json.Unmarshal(rejections, &b.RejectedDrivers); err != nil {
		return nil, fmt.Errorf("unmarshal rejected drivers: %w", err)
	}
	if err := json.Unmarshal(offers, &b.DriverOffers); err != nil {
		return nil, fmt.Errorf("unmarshal driver offers: %w", err)
	}
	if err := json.Unmarshal(ledger, &b.NegotiationLedger); err != nil {
		return nil, fmt.Errorf("unmarshal negotiation ledger: %w", err)
	}
	if err := json.Unmarshal(raises, &b.FareRaises); err != nil {
		return nil, fmt.Errorf("unmarshal fare raises: %w", err)
	}

	return &b, nil
}
