package realtime

import (
	"time"

	"hail/internal/domain"
)

// EventName is a named real-time message. Event names and payload field
// names are the wire protocol between this core and the mobile clients and
// must not change.
type EventName string

const (
	EventNewBookingRequest  EventName = "new_booking_request"
	EventBookingAccepted    EventName = "booking_accepted"
	EventBookingCancelled   EventName = "booking_cancelled"
	EventBookingStarted     EventName = "booking_started"
	EventBookingCompleted   EventName = "booking_completed"
	EventDriverOffersUpdate EventName = "driver_offers_updated"

	EventNegotiationProposed EventName = "fare_negotiation_proposed"
	EventNegotiationAccepted EventName = "fare_negotiation_accepted"
	EventNegotiationRejected EventName = "fare_negotiation_rejected"
	EventNegotiationCounter  EventName = "fare_negotiation_countered"

	EventNoDriversAvailable EventName = "no_drivers_available"
	EventReceiptReady       EventName = "receipt_ready"
	EventSurveyReminder     EventName = "survey_reminder"
)

// One payload type per event name, validated at the boundary. Loose bags
// are never threaded through.

// NewBookingRequest is sent to each candidate driver when a matching
// window opens or re-opens after a fare raise.
type NewBookingRequest struct {
	BookingID       string          `json:"booking_id"`
	UserID          string          `json:"user_id"`
	ServiceType     string          `json:"service_type"`
	VehicleType     string          `json:"vehicle_type"`
	ServiceCategory string          `json:"service_category,omitempty"`
	RouteType       string          `json:"route_type"`
	Pickup          domain.Location `json:"pickup"`
	Dropoff         domain.Location `json:"dropoff"`
	Fare            float64         `json:"fare"`
	DistanceKm      float64         `json:"distance_km"`
	DriverDistance  float64         `json:"driver_distance_km"`
	ExpiresAt       time.Time       `json:"expires_at"`
}

// BookingAccepted tells the requester which driver won the booking.
type BookingAccepted struct {
	BookingID  string    `json:"booking_id"`
	DriverID   string    `json:"driver_id"`
	DriverName string    `json:"driver_name,omitempty"`
	Fare       float64   `json:"fare"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// BookingCancelled tells the opposite party a booking was cancelled.
type BookingCancelled struct {
	BookingID          string  `json:"booking_id"`
	CancelledBy        string  `json:"cancelled_by"`
	Reason             string  `json:"reason,omitempty"`
	CancellationCharge float64 `json:"cancellation_charge"`
}

// BookingStarted tells the requester the ride has begun.
type BookingStarted struct {
	BookingID string    `json:"booking_id"`
	DriverID  string    `json:"driver_id"`
	StartedAt time.Time `json:"started_at"`
}

// BookingCompleted tells the requester the ride has finished.
type BookingCompleted struct {
	BookingID   string    `json:"booking_id"`
	DriverID    string    `json:"driver_id"`
	Fare        float64   `json:"fare"`
	CompletedAt time.Time `json:"completed_at"`
}

// DriverOffersUpdated carries the full current set of pending offers, not
// just the newest one, so the requester always sees every live competing
// offer together.
type DriverOffersUpdated struct {
	BookingID string               `json:"booking_id"`
	Offers    []domain.DriverOffer `json:"offers"`
}

// NegotiationEvent reports a ledger entry to the counterparty.
type NegotiationEvent struct {
	BookingID string  `json:"booking_id"`
	EntryID   string  `json:"entry_id"`
	Actor     string  `json:"actor"`
	Amount    float64 `json:"amount,omitempty"`
	Fare      float64 `json:"fare,omitempty"` // agreed fare, on accept
	ExpiresAt string  `json:"expires_at,omitempty"`
}

// NoDriversAvailable reports a matching window that found zero candidates.
// The requester may escalate the fare while attempts remain.
type NoDriversAvailable struct {
	BookingID         string `json:"booking_id"`
	ResendAttempts    int    `json:"resend_attempts"`
	MaxResendAttempts int    `json:"max_resend_attempts"`
	CanRaiseFare      bool   `json:"can_raise_fare"`
}

// ReceiptReady tells the requester the itemized receipt is available.
type ReceiptReady struct {
	BookingID string               `json:"booking_id"`
	ReceiptID string               `json:"receipt_id"`
	Breakdown domain.FareBreakdown `json:"breakdown"`
}

// SurveyReminder is the deferred post-service confirmation prompt.
type SurveyReminder struct {
	BookingID string `json:"booking_id"`
}
