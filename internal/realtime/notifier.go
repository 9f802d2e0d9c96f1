package realtime

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hail/internal/domain"
)

// Notifier builds and publishes the typed events for each party. Delivery
// is fire-and-forget: publish failures are logged, never propagated into
// booking state transitions.
type Notifier struct {
	pub Publisher
	log *zap.Logger
}

// NewNotifier creates a new Notifier.
func NewNotifier(pub Publisher, log *zap.Logger) *Notifier {
	return &Notifier{pub: pub, log: log}
}

func (n *Notifier) publish(ctx context.Context, room string, event EventName, payload any) {
	if err := n.pub.Publish(ctx, room, event, payload); err != nil {
		n.log.Warn("publish failed",
			zap.String("room", room),
			zap.String("event", string(event)),
			zap.Error(err))
	}
}

// BookingRequested fans the request out to every candidate driver.
func (n *Notifier) BookingRequested(ctx context.Context, b *domain.Booking, driverID string, driverDistanceKm float64, expiresAt time.Time) {
	n.publish(ctx, DriverRoom(driverID), EventNewBookingRequest, NewBookingRequest{
		BookingID:       b.ID,
		UserID:          b.UserID,
		ServiceType:     string(b.ServiceType),
		VehicleType:     string(b.VehicleType),
		ServiceCategory: string(b.ServiceCategory),
		RouteType:       string(b.RouteType),
		Pickup:          b.Pickup,
		Dropoff:         b.Dropoff,
		Fare:            b.CurrentFare(),
		DistanceKm:      b.DistanceKm,
		DriverDistance:  driverDistanceKm,
		ExpiresAt:       expiresAt,
	})
}

// BookingAccepted tells the requester who won.
func (n *Notifier) BookingAccepted(ctx context.Context, b *domain.Booking, driverName string) {
	n.publish(ctx, UserRoom(b.UserID), EventBookingAccepted, BookingAccepted{
		BookingID:  b.ID,
		DriverID:   b.DriverID,
		DriverName: driverName,
		Fare:       b.Fare,
		AcceptedAt: b.AcceptedAt,
	})
}

// BookingCancelled notifies the party who did not cancel.
func (n *Notifier) BookingCancelled(ctx context.Context, b *domain.Booking, charge float64) {
	var room string
	if b.CancelledBy == b.UserID {
		if b.DriverID == "" {
			return
		}
		room = DriverRoom(b.DriverID)
	} else {
		room = UserRoom(b.UserID)
	}
	n.publish(ctx, room, EventBookingCancelled, BookingCancelled{
		BookingID:          b.ID,
		CancelledBy:        b.CancelledBy,
		Reason:             b.CancelReason,
		CancellationCharge: charge,
	})
}

// BookingStarted notifies the requester.
func (n *Notifier) BookingStarted(ctx context.Context, b *domain.Booking) {
	n.publish(ctx, UserRoom(b.UserID), EventBookingStarted, BookingStarted{
		BookingID: b.ID,
		DriverID:  b.DriverID,
		StartedAt: b.StartedAt,
	})
}

// BookingCompleted notifies the requester.
func (n *Notifier) BookingCompleted(ctx context.Context, b *domain.Booking) {
	n.publish(ctx, UserRoom(b.UserID), EventBookingCompleted, BookingCompleted{
		BookingID:   b.ID,
		DriverID:    b.DriverID,
		Fare:        b.CurrentFare(),
		CompletedAt: b.CompletedAt,
	})
}

// OffersUpdated sends the requester the full set of live offers.
func (n *Notifier) OffersUpdated(ctx context.Context, b *domain.Booking) {
	offers := b.PendingOffers()
	if offers == nil {
		offers = []domain.DriverOffer{}
	}
	n.publish(ctx, UserRoom(b.UserID), EventDriverOffersUpdate, DriverOffersUpdated{
		BookingID: b.ID,
		Offers:    offers,
	})
}

// NegotiationEvent routes a ledger entry to the counterparty of its actor.
func (n *Notifier) NegotiationEvent(ctx context.Context, b *domain.Booking, e domain.NegotiationEntry) {
	var room string
	if e.Actor == domain.ActorUser {
		if b.DriverID == "" {
			return
		}
		room = DriverRoom(b.DriverID)
	} else {
		room = UserRoom(b.UserID)
	}

	event := EventNegotiationProposed
	payload := NegotiationEvent{
		BookingID: b.ID,
		EntryID:   e.ID,
		Actor:     string(e.Actor),
		Amount:    e.Amount,
	}
	switch e.Kind {
	case domain.NegotiationAccept:
		event = EventNegotiationAccepted
		payload.Fare = e.Amount
	case domain.NegotiationReject:
		event = EventNegotiationRejected
	case domain.NegotiationCounter:
		event = EventNegotiationCounter
	}
	if !e.ExpiresAt.IsZero() {
		payload.ExpiresAt = e.ExpiresAt.Format(time.RFC3339)
	}
	n.publish(ctx, room, event, payload)
}

// NoDrivers reports an empty matching window to the requester.
func (n *Notifier) NoDrivers(ctx context.Context, b *domain.Booking) {
	n.publish(ctx, UserRoom(b.UserID), EventNoDriversAvailable, NoDriversAvailable{
		BookingID:         b.ID,
		ResendAttempts:    b.ResendAttempts,
		MaxResendAttempts: b.MaxResendAttempts,
		CanRaiseFare:      b.ResendAttempts < b.MaxResendAttempts,
	})
}

// ReceiptReady tells the requester the itemized receipt is available.
func (n *Notifier) ReceiptReady(ctx context.Context, r *domain.Receipt) {
	n.publish(ctx, UserRoom(r.UserID), EventReceiptReady, ReceiptReady{
		BookingID: r.BookingID,
		ReceiptID: r.ID,
		Breakdown: r.Breakdown,
	})
}

// SurveyReminder prompts the requester for the post-service survey.
func (n *Notifier) SurveyReminder(ctx context.Context, userID, bookingID string) {
	n.publish(ctx, UserRoom(userID), EventSurveyReminder, SurveyReminder{BookingID: bookingID})
}
