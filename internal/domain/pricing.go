package domain

// PricingConfig is the active pricing configuration document. It is
// read-mostly reference data owned by config management; the pricing engine
// computes over a loaded snapshot and never mutates it.
type PricingConfig struct {
	ID     string
	Active bool

	Global   GlobalPricing
	Services map[ServiceType]ServicePricing
}

// GlobalPricing holds deployment-wide defaults. Service- and vehicle-level
// entries override these; the most specific entry wins.
type GlobalPricing struct {
	PerKmRate   float64
	MinimumFare float64

	// PlatformFeePercent of the fare is settled between platform and driver;
	// DriverSharePercent of that fee is carried by the driver, the rest by
	// the customer. The fee never enters the customer-facing total.
	PlatformFeePercent       float64
	PlatformFeeDriverPercent float64

	VATPercent float64

	Night        NightPricing
	SurgeTiers   []SurgeTier
	Waiting      WaitingPricing
	Cancellation CancellationPricing

	RoundTripMultiplier float64

	CityWise CityWiseAdjustment
}

// NightPricing configures the night surcharge: the larger of the fixed
// amount and subtotal*(multiplier-1) is applied.
type NightPricing struct {
	StartHour   int // inclusive, 0-23
	EndHour     int // exclusive, 0-23
	FixedAmount float64
	Multiplier  float64
}

// InWindow reports whether the hour falls inside the night window,
// handling windows that wrap midnight.
func (n NightPricing) InWindow(hour int) bool {
	if n.StartHour == n.EndHour {
		return false
	}
	if n.StartHour < n.EndHour {
		return hour >= n.StartHour && hour < n.EndHour
	}
	return hour >= n.StartHour || hour < n.EndHour
}

// SurgeTier maps a demand-ratio threshold to a fare multiplier.
type SurgeTier struct {
	Threshold  float64
	Multiplier float64
}

// WaitingPricing is the waiting-charge schedule.
type WaitingPricing struct {
	FreeMinutes   float64
	PerMinuteRate float64
	MaxCharge     float64
}

// CancellationPricing is the charge schedule keyed by trip-progress
// milestone. Driver-initiated cancellations are always free.
type CancellationPricing struct {
	BeforeArrival   float64
	QuarterDistance float64
	HalfDistance    float64
	AfterArrival    float64
}

// TripMilestone is how far the assigned driver had progressed when a
// requester cancelled.
type TripMilestone string

const (
	MilestoneBeforeArrival   TripMilestone = "before_arrival"
	MilestoneQuarterDistance TripMilestone = "quarter_distance"
	MilestoneHalfDistance    TripMilestone = "half_distance"
	MilestoneAfterArrival    TripMilestone = "after_arrival"
)

// ChargeFor returns the cancellation charge for the milestone.
func (c CancellationPricing) ChargeFor(m TripMilestone) float64 {
	switch m {
	case MilestoneQuarterDistance:
		return c.QuarterDistance
	case MilestoneHalfDistance:
		return c.HalfDistance
	case MilestoneAfterArrival:
		return c.AfterArrival
	default:
		return c.BeforeArrival
	}
}

// CityWiseAdjustment charges distance beyond ThresholdKm at a separate,
// lower marginal rate. It is a two-tier marginal schedule, not a flat
// switch: only the portion beyond the threshold gets the adjusted rate.
type CityWiseAdjustment struct {
	Enabled      bool
	ThresholdKm  float64
	AdjustedRate float64
}

// VehicleRate overrides base fare and per-km rate at the vehicle or
// category level. Zero fields mean "no override at this level".
type VehicleRate struct {
	BaseFare  float64
	PerKmRate float64
}

// ServicePricing is the per-service-family pricing table.
type ServicePricing struct {
	BaseFare    float64
	CoverageKm  float64
	PerKmRate   float64
	MinimumFare float64

	// HelperCharge is the flat helper add-on for this family. For car
	// recovery the category-keyed table below takes precedence.
	HelperCharge float64

	VehicleRates  map[VehicleType]VehicleRate
	CategoryRates map[ServiceCategory]VehicleRate

	Recovery *RecoveryPricing
	Shifting *ShiftingPricing
}

// RecoveryPricing holds the car-recovery-specific sub-tables: convenience
// fees (most specific sub-service entry wins, category entry is the
// fallback), category helper charges, and the round-trip stay/overtime
// schedule that replaces the round-trip multiplier for this family.
type RecoveryPricing struct {
	SubServiceFees map[VehicleType]float64
	CategoryFees   map[ServiceCategory]float64
	HelperCharges  map[ServiceCategory]float64

	FreeStayMinutes   float64
	OvertimePerMinute float64
}

// ConvenienceFee resolves the fee for a sub-service, falling back to its
// category entry when no sub-service entry exists.
func (r *RecoveryPricing) ConvenienceFee(vt VehicleType, sc ServiceCategory) float64 {
	if r == nil {
		return 0
	}
	if fee, ok := r.SubServiceFees[vt]; ok {
		return fee
	}
	return r.CategoryFees[sc]
}

// HelperCharge resolves the helper add-on for a category.
func (r *RecoveryPricing) HelperCharge(sc ServiceCategory) (float64, bool) {
	if r == nil {
		return 0, false
	}
	c, ok := r.HelperCharges[sc]
	return c, ok
}

// ShiftingPricing holds per-item rates for shifting & movers.
type ShiftingPricing struct {
	StairsPerFloor float64
	LiftPerItem    float64
	PackingPerItem float64
	FixingPerItem  float64
}
