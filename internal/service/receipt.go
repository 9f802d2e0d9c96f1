package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hail/internal/domain"
	"hail/internal/pricing"
	"hail/internal/realtime"
	"hail/internal/repository"
)

// ReceiptService generates and serves the durable itemized receipts for
// completed bookings.
type ReceiptService struct {
	receipts repository.ReceiptRepository
	pricer   *pricing.Service
	notifier *realtime.Notifier
	log      *zap.Logger
}

// NewReceiptService creates a new ReceiptService.
func NewReceiptService(receipts repository.ReceiptRepository, pricer *pricing.Service, notifier *realtime.Notifier, log *zap.Logger) *ReceiptService {
	return &ReceiptService{receipts: receipts, pricer: pricer, notifier: notifier, log: log}
}

// Generate builds the receipt for a completed booking, persists it and
// tells the requester it is ready. The breakdown is recomputed from the
// booking's inputs with night derived from the actual start time; a
// negotiated fare supersedes the computed total.
func (s *ReceiptService) Generate(ctx context.Context, b *domain.Booking) (*domain.Receipt, error) {
	isNight, err := s.pricer.IsNightAt(ctx, b.StartedAt)
	if err != nil {
		return nil, err
	}

	waiting := 0.0
	if !b.StartedAt.IsZero() && b.StartedAt.After(b.AcceptedAt) {
		waiting = b.StartedAt.Sub(b.AcceptedAt).Minutes()
	}

	bd, err := s.pricer.Quote(ctx, pricing.Input{
		ServiceType:     b.ServiceType,
		VehicleType:     b.VehicleType,
		ServiceCategory: b.ServiceCategory,
		DistanceKm:      b.DistanceKm,
		RouteType:       b.RouteType,
		Modifiers: domain.FareModifiers{
			IsNight:        isNight,
			WaitingMinutes: waiting,
		},
	})
	if err != nil {
		return nil, err
	}
	if b.Fare > 0 {
		bd.Total = b.Fare
	}

	r := &domain.Receipt{
		ID:          uuid.New().String(),
		BookingID:   b.ID,
		UserID:      b.UserID,
		DriverID:    b.DriverID,
		Pickup:      b.Pickup,
		Dropoff:     b.Dropoff,
		Breakdown:   *bd,
		StartedAt:   b.StartedAt,
		CompletedAt: b.CompletedAt,
		CreatedAt:   b.CompletedAt,
	}
	if err := s.receipts.Create(ctx, r); err != nil {
		return nil, err
	}

	s.notifier.ReceiptReady(ctx, r)
	s.log.Info("receipt generated",
		zap.String("booking_id", b.ID),
		zap.String("receipt_id", r.ID),
		zap.Float64("total", r.Breakdown.Total))
	return r, nil
}

// ForBooking returns the receipt for a completed booking, restricted to
// its parties.
func (s *ReceiptService) ForBooking(ctx context.Context, bookingID, actorID string) (*domain.Receipt, error) {
	r, err := s.receipts.GetByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if r.UserID != actorID && r.DriverID != actorID {
		return nil, ErrNotBookingOwner
	}
	return r, nil
}
