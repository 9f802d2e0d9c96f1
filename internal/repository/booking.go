package repository

import (
	"context"
	"time"

	"hail/internal/domain"
)

// BookingRepository defines persistence for the booking aggregate. The
// append and transition methods are atomic conditional writes: each guards
// on the current status (and actor where relevant) inside the statement
// itself, and reports via its boolean return whether the guard matched.
// rowsAffected==0 means the caller lost a race and must re-read.
type BookingRepository interface {
	// Create persists a new booking.
	Create(ctx context.Context, b *domain.Booking) error

	// GetByID retrieves a booking by ID.
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// ListPending returns pending bookings, newest first.
	ListPending(ctx context.Context) ([]*domain.Booking, error)

	// Accept atomically assigns the driver and moves the booking from
	// pending to accepted, fixing the fare. Exactly one concurrent caller
	// can win; the rest observe false.
	Accept(ctx context.Context, bookingID, driverID string, fare float64, at time.Time) (bool, error)

	// AppendRejection appends to the rejected-drivers list. Idempotent: a
	// driver already on the list is not duplicated.
	AppendRejection(ctx context.Context, bookingID string, r domain.DriverRejection) error

	// AppendOffer appends a driver fare offer, guarded on status=pending.
	AppendOffer(ctx context.Context, bookingID string, o domain.DriverOffer) (bool, error)

	// AppendLedgerEntry appends one negotiation ledger entry. Entries are
	// never updated in place.
	AppendLedgerEntry(ctx context.Context, bookingID string, e domain.NegotiationEntry) error

	// SetFare records a negotiated fare agreement.
	SetFare(ctx context.Context, bookingID string, fare float64) error

	// RecordFareRaise atomically appends the raise, updates the raised
	// fare and increments the resend counter, guarded on status=pending
	// and the attempt cap.
	RecordFareRaise(ctx context.Context, bookingID string, raise domain.FareRaise, maxAttempts int) (bool, error)

	// Cancel moves the booking to cancelled from pending or accepted.
	Cancel(ctx context.Context, bookingID, cancelledBy, reason string, at time.Time) (bool, error)

	// Start moves the booking from accepted to started, guarded on the
	// assigned driver.
	Start(ctx context.Context, bookingID, driverID string, at time.Time) (bool, error)

	// Complete moves the booking from started/in_progress to completed,
	// guarded on the assigned driver.
	Complete(ctx context.Context, bookingID, driverID string, at time.Time) (bool, error)
}
