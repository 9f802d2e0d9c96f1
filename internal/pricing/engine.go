package pricing

import (
	"math"
	"sort"

	"hail/internal/domain"
)

// Input describes one fare computation.
type Input struct {
	ServiceType     domain.ServiceType
	VehicleType     domain.VehicleType
	ServiceCategory domain.ServiceCategory
	DistanceKm      float64
	RouteType       domain.RouteType
	Modifiers       domain.FareModifiers
}

// Engine computes itemized fares over a pricing configuration snapshot.
// It is pure: no I/O, no clock reads, no mutation of the snapshot.
type Engine struct {
	cfg *domain.PricingConfig
}

// NewEngine creates an engine over the given configuration snapshot.
func NewEngine(cfg *domain.PricingConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Compute produces the full fare breakdown for the input. It returns
// ErrConfigurationMissing when the snapshot has no table for the requested
// service family; no partial result is ever returned.
func (e *Engine) Compute(in Input) (*domain.FareBreakdown, error) {
	if e.cfg == nil || !e.cfg.Active {
		return nil, ErrConfigurationMissing
	}
	svc, ok := e.cfg.Services[in.ServiceType]
	if !ok {
		return nil, ErrConfigurationMissing
	}
	g := e.cfg.Global

	bd := &domain.FareBreakdown{
		ServiceType:     in.ServiceType,
		VehicleType:     in.VehicleType,
		ServiceCategory: in.ServiceCategory,
		RouteType:       in.RouteType,
		DistanceKm:      in.DistanceKm,
		SurgeMultiplier: 1.0,
	}

	// Resolve base fare and per-km rate, most specific wins:
	// sub-service > category > service family > global default.
	base, perKm := resolveRates(g, svc, in.VehicleType, in.ServiceCategory)
	bd.BaseFare = base

	// Distance fare beyond the coverage allowance; distance past the
	// city-wise threshold is charged at the adjusted marginal rate.
	bd.DistanceFare = distanceFare(in.DistanceKm, svc.CoverageKm, perKm, g.CityWise)

	// Subtotal, with the round-trip multiplier. Car recovery round trips
	// use the stay/overtime schedule instead; the two policies are
	// mutually exclusive.
	subtotal := base + bd.DistanceFare
	if in.RouteType == domain.RouteRoundTrip {
		if in.ServiceType == domain.ServiceCarRecovery {
			bd.OvertimeCharge = overtimeCharge(svc.Recovery, in.Modifiers.StayMinutes)
			subtotal += bd.OvertimeCharge
		} else {
			mult := g.RoundTripMultiplier
			if mult <= 0 {
				mult = 1.8
			}
			subtotal *= mult
			bd.RoundTripApplied = true
		}
	}

	// Minimum-fare floor, service floor over global floor.
	floor := svc.MinimumFare
	if floor <= 0 {
		floor = g.MinimumFare
	}
	if subtotal < floor {
		subtotal = floor
		bd.MinimumApplied = true
	}
	bd.Subtotal = subtotal

	// Night surcharge, the larger of the flat add-on and the percentage
	// add-on. Applied only on the caller's explicit flag; the service
	// layer derives it from the trip's start time.
	if in.Modifiers.IsNight {
		fixed := g.Night.FixedAmount
		pct := 0.0
		if g.Night.Multiplier > 1 {
			pct = subtotal * (g.Night.Multiplier - 1)
		}
		bd.NightCharge = math.Max(fixed, pct)
	}

	// Surge: the steepest qualifying tier wins.
	if in.Modifiers.DemandRatio > 1 {
		if tier, ok := matchSurgeTier(g.SurgeTiers, in.Modifiers.DemandRatio); ok {
			bd.SurgeMultiplier = tier.Multiplier
			bd.SurgeCharge = subtotal * (tier.Multiplier - 1)
		}
	}

	// Waiting charge past the free minutes, capped.
	if w := in.Modifiers.WaitingMinutes; w > g.Waiting.FreeMinutes {
		charge := (w - g.Waiting.FreeMinutes) * g.Waiting.PerMinuteRate
		bd.WaitingCharge = math.Min(charge, g.Waiting.MaxCharge)
	}

	// Helper charge; car recovery resolves it per category.
	if in.Modifiers.HelperRequested {
		bd.HelperCharge = svc.HelperCharge
		if in.ServiceType == domain.ServiceCarRecovery {
			if c, ok := svc.Recovery.HelperCharge(in.ServiceCategory); ok {
				bd.HelperCharge = c
			}
		}
	}

	// Shifting & movers per-item charges (stairs, lift, packing, fixing).
	if in.ServiceType == domain.ServiceShiftingMovers && svc.Shifting != nil {
		m := in.Modifiers
		bd.ItemCharges = float64(m.StairsFloors)*svc.Shifting.StairsPerFloor +
			float64(m.LiftItems)*svc.Shifting.LiftPerItem +
			float64(m.PackingItems)*svc.Shifting.PackingPerItem +
			float64(m.FixingItems)*svc.Shifting.FixingPerItem
	}

	// Car-recovery convenience fee, most specific entry first.
	if in.ServiceType == domain.ServiceCarRecovery {
		bd.ConvenienceFee = svc.Recovery.ConvenienceFee(in.VehicleType, in.ServiceCategory)
	}

	// Cancellation charge, tiered by milestone; free for driver-initiated
	// cancellations.
	if c := in.Modifiers.Cancellation; c != nil && !c.ByDriver {
		bd.CancellationCharge = g.Cancellation.ChargeFor(c.Milestone)
	}

	// Platform fee, split per configured ratio. Excluded from the
	// customer-facing total; settled out-of-band with the driver.
	feeBase := subtotal + bd.NightCharge + bd.SurgeCharge + bd.WaitingCharge + bd.HelperCharge + bd.ItemCharges
	bd.PlatformFee = feeBase * g.PlatformFeePercent / 100
	bd.PlatformFeeDriver = bd.PlatformFee * g.PlatformFeeDriverPercent / 100
	bd.PlatformFeeCustomer = bd.PlatformFee - bd.PlatformFeeDriver

	// The VAT base includes the convenience fee but never the platform
	// fee.
	vatBase := feeBase + bd.ConvenienceFee
	bd.VAT = vatBase * g.VATPercent / 100

	bd.Total = vatBase + bd.VAT + bd.CancellationCharge

	// Round every monetary line once, at the end.
	roundBreakdown(bd)
	return bd, nil
}

func resolveRates(g domain.GlobalPricing, svc domain.ServicePricing, vt domain.VehicleType, sc domain.ServiceCategory) (base, perKm float64) {
	base = svc.BaseFare
	perKm = svc.PerKmRate
	if perKm <= 0 {
		perKm = g.PerKmRate
	}
	if r, ok := svc.CategoryRates[sc]; ok {
		if r.BaseFare > 0 {
			base = r.BaseFare
		}
		if r.PerKmRate > 0 {
			perKm = r.PerKmRate
		}
	}
	if r, ok := svc.VehicleRates[vt]; ok {
		if r.BaseFare > 0 {
			base = r.BaseFare
		}
		if r.PerKmRate > 0 {
			perKm = r.PerKmRate
		}
	}
	return base, perKm
}

func distanceFare(distance, coverage, perKm float64, cw domain.CityWiseAdjustment) float64 {
	if distance <= coverage {
		return 0
	}
	if !cw.Enabled || distance <= cw.ThresholdKm {
		return (distance - coverage) * perKm
	}
	// Two-tier marginal schedule: covered portion free, standard rate up to
	// the threshold, adjusted rate beyond it.
	nearKm := cw.ThresholdKm - coverage
	if nearKm < 0 {
		nearKm = 0
	}
	farKm := distance - math.Max(cw.ThresholdKm, coverage)
	return nearKm*perKm + farKm*cw.AdjustedRate
}

func overtimeCharge(r *domain.RecoveryPricing, stayMinutes float64) float64 {
	if r == nil || stayMinutes <= r.FreeStayMinutes {
		return 0
	}
	return (stayMinutes - r.FreeStayMinutes) * r.OvertimePerMinute
}

func matchSurgeTier(tiers []domain.SurgeTier, ratio float64) (domain.SurgeTier, bool) {
	sorted := make([]domain.SurgeTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Threshold > sorted[j].Threshold })
	for _, t := range sorted {
		if t.Threshold <= ratio {
			return t, true
		}
	}
	return domain.SurgeTier{}, false
}

func roundBreakdown(bd *domain.FareBreakdown) {
	bd.BaseFare = round2(bd.BaseFare)
	bd.DistanceFare = round2(bd.DistanceFare)
	bd.OvertimeCharge = round2(bd.OvertimeCharge)
	bd.Subtotal = round2(bd.Subtotal)
	bd.NightCharge = round2(bd.NightCharge)
	bd.SurgeCharge = round2(bd.SurgeCharge)
	bd.WaitingCharge = round2(bd.WaitingCharge)
	bd.HelperCharge = round2(bd.HelperCharge)
	bd.ItemCharges = round2(bd.ItemCharges)
	bd.ConvenienceFee = round2(bd.ConvenienceFee)
	bd.CancellationCharge = round2(bd.CancellationCharge)
	bd.PlatformFee = round2(bd.PlatformFee)
	bd.PlatformFeeDriver = round2(bd.PlatformFeeDriver)
	bd.PlatformFeeCustomer = round2(bd.PlatformFeeCustomer)
	bd.VAT = round2(bd.VAT)
	bd.Total = round2(bd.Total)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
