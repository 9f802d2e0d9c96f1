package domain

import "time"

// FareModifiers is the bag of situational inputs to a fare computation.
// The engine never reads the clock or does I/O; callers derive IsNight from
// the trip's scheduled start time and the configured night window.
type FareModifiers struct {
	IsNight         bool
	DemandRatio     float64
	WaitingMinutes  float64
	HelperRequested bool

	// StayMinutes is the on-site stay for car-recovery round trips; overtime
	// beyond the free allowance is charged instead of the round-trip
	// multiplier.
	StayMinutes float64

	// Shifting & movers per-item counts.
	StairsFloors int
	LiftItems    int
	PackingItems int
	FixingItems  int

	// Cancellation is set only when the fare is computed for a booking
	// being cancelled.
	Cancellation *CancellationContext
}

// CancellationContext describes who cancelled and how far the trip had
// progressed.
type CancellationContext struct {
	ByDriver  bool
	Milestone TripMilestone
}

// FareBreakdown is the fully itemized result of a fare computation. Every
// line item is exposed separately: negotiation sends it to drivers and
// receipts persist it verbatim.
type FareBreakdown struct {
	ServiceType     ServiceType     `json:"service_type"`
	VehicleType     VehicleType     `json:"vehicle_type"`
	ServiceCategory ServiceCategory `json:"service_category,omitempty"`
	RouteType       RouteType       `json:"route_type"`
	DistanceKm      float64         `json:"distance_km"`

	BaseFare         float64 `json:"base_fare"`
	DistanceFare     float64 `json:"distance_fare"`
	RoundTripApplied bool    `json:"round_trip_applied"`
	OvertimeCharge   float64 `json:"overtime_charge,omitempty"`
	MinimumApplied   bool    `json:"minimum_applied"`
	Subtotal         float64 `json:"subtotal"`

	NightCharge     float64 `json:"night_charge"`
	SurgeMultiplier float64 `json:"surge_multiplier"`
	SurgeCharge     float64 `json:"surge_charge"`
	WaitingCharge   float64 `json:"waiting_charge"`
	HelperCharge    float64 `json:"helper_charge"`
	ItemCharges     float64 `json:"item_charges,omitempty"`
	ConvenienceFee  float64 `json:"convenience_fee"`

	CancellationCharge float64 `json:"cancellation_charge"`

	// Platform fee is settled out-of-band between platform and driver and
	// is excluded from Total.
	PlatformFee         float64 `json:"platform_fee"`
	PlatformFeeDriver   float64 `json:"platform_fee_driver"`
	PlatformFeeCustomer float64 `json:"platform_fee_customer"`

	VAT   float64 `json:"vat"`
	Total float64 `json:"total"`
}

// Receipt is the durable itemized record generated when a booking
// completes. Terminal bookings are retained, but consumers read receipts.
type Receipt struct {
	ID        string
	BookingID string
	UserID    string
	DriverID  string

	Pickup  Location
	Dropoff Location

	Breakdown FareBreakdown

	StartedAt   time.Time
	CompletedAt time.Time
	CreatedAt   time.Time
}

// TaskKind identifies a persisted deferred task.
type TaskKind string

const (
	TaskSurveyReminder TaskKind = "survey_reminder"
)

// ScheduledTask is a persisted, time-indexed deferred effect. Tasks are
// swept by the scheduler so a process restart does not lose them.
type ScheduledTask struct {
	ID        string
	Kind      TaskKind
	RefID     string // booking id the task refers to
	UserID    string
	RunAt     time.Time
	Done      bool
	CreatedAt time.Time
}
