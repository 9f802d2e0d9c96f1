package domain

import "time"

// BookingStatus represents the current status of a booking.
type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusAccepted   BookingStatus = "accepted"
	BookingStatusStarted    BookingStatus = "started"
	BookingStatusInProgress BookingStatus = "in_progress"
	BookingStatusCompleted  BookingStatus = "completed"
	BookingStatusCancelled  BookingStatus = "cancelled"
)

// DriverPreference selects how candidate drivers are discovered.
type DriverPreference string

const (
	PreferenceNearby      DriverPreference = "nearby"
	PreferencePinned      DriverPreference = "pinned"
	PreferenceFavorite    DriverPreference = "favorite"
	PreferencePinkCaptain DriverPreference = "pink_captain"
)

// ActorRole identifies which side of a booking performed an action.
type ActorRole string

const (
	ActorUser   ActorRole = "user"
	ActorDriver ActorRole = "driver"
)

// Location is a point with its human-readable address and zone.
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
	Zone    string  `json:"zone,omitempty"`
}

// PinkCaptainOptions are the requester's Pink Captain sub-preferences. A
// candidate driver qualifies only if her own opt-in flags cover every
// requested option.
type PinkCaptainOptions struct {
	FemalePassengersOnly bool `json:"female_passengers_only"`
	FamilyRides          bool `json:"family_rides"`
	NoMaleCompanion      bool `json:"no_male_companion"`
}

// DriverRejection records a driver declining a booking. The list is
// append-only and drivers on it are never offered the booking again.
type DriverRejection struct {
	DriverID   string    `json:"driver_id"`
	Reason     string    `json:"reason,omitempty"`
	RejectedAt time.Time `json:"rejected_at"`
}

// OfferStatus is the lifecycle of a driver fare offer.
type OfferStatus string

const (
	OfferPending  OfferStatus = "pending"
	OfferAccepted OfferStatus = "accepted"
	OfferDeclined OfferStatus = "declined"
	OfferExpired  OfferStatus = "expired"
)

// DriverOffer is a driver-proposed fare for a pending booking.
type DriverOffer struct {
	ID        string      `json:"id"`
	DriverID  string      `json:"driver_id"`
	Amount    float64     `json:"amount"`
	Status    OfferStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// NegotiationKind is the kind of a negotiation ledger entry.
type NegotiationKind string

const (
	NegotiationPropose NegotiationKind = "propose"
	NegotiationAccept  NegotiationKind = "accept"
	NegotiationReject  NegotiationKind = "reject"
	NegotiationCounter NegotiationKind = "counter"
)

// NegotiationEntry is one event in the fare-negotiation ledger. Entries are
// immutable once appended; whether a proposal is still open is derived from
// the entries that follow it, never by rewriting it.
type NegotiationEntry struct {
	ID        string          `json:"id"`
	Actor     ActorRole       `json:"actor"`
	ActorID   string          `json:"actor_id"`
	Kind      NegotiationKind `json:"kind"`
	Amount    float64         `json:"amount,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at,omitempty"`
}

// FareRaise records one user-initiated fare escalation.
type FareRaise struct {
	Amount   float64   `json:"amount"`
	RaisedAt time.Time `json:"raised_at"`
}

// Booking is the aggregate root for the matching and negotiation process.
type Booking struct {
	ID     string
	UserID string

	// DriverID is empty until a driver accepts.
	DriverID string

	Pickup  Location
	Dropoff Location

	ServiceType     ServiceType
	VehicleType     VehicleType
	ServiceCategory ServiceCategory // car recovery only
	RouteType       RouteType

	Preference     DriverPreference
	PinkCaptain    PinkCaptainOptions
	PinnedDriverID string

	// OfferedFare is the system-computed baseline; RaisedFare is the
	// user-escalated value after failed matching rounds; Fare is the final
	// agreed amount, set on acceptance or on a negotiation accept.
	OfferedFare float64
	RaisedFare  float64
	Fare        float64

	DistanceKm float64
	Status     BookingStatus

	RejectedDrivers   []DriverRejection
	DriverOffers      []DriverOffer
	NegotiationLedger []NegotiationEntry
	FareRaises        []FareRaise

	ResendAttempts    int
	MaxResendAttempts int

	CancelledBy  string
	CancelReason string

	CreatedAt   time.Time
	AcceptedAt  time.Time
	StartedAt   time.Time
	CompletedAt time.Time
	CancelledAt time.Time
}

// CurrentFare is the amount negotiation bands and acceptance settle against:
// the agreed fare if one exists, else the latest raise, else the baseline.
func (b *Booking) CurrentFare() float64 {
	if b.Fare > 0 {
		return b.Fare
	}
	if b.RaisedFare > 0 {
		return b.RaisedFare
	}
	return b.OfferedFare
}

// HasRejected reports whether the driver already declined this booking.
func (b *Booking) HasRejected(driverID string) bool {
	for _, r := range b.RejectedDrivers {
		if r.DriverID == driverID {
			return true
		}
	}
	return false
}

// RejectedDriverIDs returns the ids of every driver who declined.
func (b *Booking) RejectedDriverIDs() []string {
	ids := make([]string, 0, len(b.RejectedDrivers))
	for _, r := range b.RejectedDrivers {
		ids = append(ids, r.DriverID)
	}
	return ids
}

// PendingOfferBy returns the driver's open fare offer, if any.
func (b *Booking) PendingOfferBy(driverID string) *DriverOffer {
	for i := range b.DriverOffers {
		o := &b.DriverOffers[i]
		if o.DriverID == driverID && o.Status == OfferPending {
			return o
		}
	}
	return nil
}

// PendingOffers returns every open fare offer on the booking.
func (b *Booking) PendingOffers() []DriverOffer {
	var out []DriverOffer
	for _, o := range b.DriverOffers {
		if o.Status == OfferPending {
			out = append(out, o)
		}
	}
	return out
}

// OpenProposal returns the negotiation proposal currently awaiting a
// response. A proposal is open when it is the last ledger entry and is a
// propose or counter; accept and reject entries close the window.
func (b *Booking) OpenProposal() *NegotiationEntry {
	if len(b.NegotiationLedger) == 0 {
		return nil
	}
	last := &b.NegotiationLedger[len(b.NegotiationLedger)-1]
	if last.Kind == NegotiationPropose || last.Kind == NegotiationCounter {
		return last
	}
	return nil
}

// IsParty reports whether the actor belongs to this booking.
func (b *Booking) IsParty(role ActorRole, actorID string) bool {
	switch role {
	case ActorUser:
		return actorID == b.UserID
	case ActorDriver:
		return actorID == b.DriverID
	}
	return false
}
