package pricing

import (
	"math"
	"testing"

	"hail/internal/domain"
)

func testConfig() *domain.PricingConfig {
	return &domain.PricingConfig{
		ID:     "cfg-1",
		Active: true,
		Global: domain.GlobalPricing{
			PerKmRate:                7.5,
			MinimumFare:              50,
			PlatformFeePercent:       15,
			PlatformFeeDriverPercent: 60,
			VATPercent:               5,
			Night: domain.NightPricing{
				StartHour:   22,
				EndHour:     6,
				FixedAmount: 10,
				Multiplier:  1.25,
			},
			SurgeTiers: []domain.SurgeTier{
				{Threshold: 1.2, Multiplier: 1.25},
				{Threshold: 1.5, Multiplier: 1.5},
				{Threshold: 2.0, Multiplier: 2.0},
			},
			Waiting: domain.WaitingPricing{
				FreeMinutes:   5,
				PerMinuteRate: 2,
				MaxCharge:     40,
			},
			Cancellation: domain.CancellationPricing{
				BeforeArrival:   5,
				QuarterDistance: 10,
				HalfDistance:    20,
				AfterArrival:    30,
			},
			RoundTripMultiplier: 1.8,
			CityWise: domain.CityWiseAdjustment{
				Enabled:      true,
				ThresholdKm:  10,
				AdjustedRate: 5,
			},
		},
		Services: map[domain.ServiceType]domain.ServicePricing{
			domain.ServiceCarCab: {
				BaseFare:     50,
				CoverageKm:   6,
				PerKmRate:    7.5,
				MinimumFare:  50,
				HelperCharge: 0,
				VehicleRates: map[domain.VehicleType]domain.VehicleRate{
					domain.VehiclePremium: {BaseFare: 80, PerKmRate: 10},
				},
			},
			domain.ServiceBike: {
				BaseFare:    20,
				CoverageKm:  3,
				PerKmRate:   3,
				MinimumFare: 20,
			},
			domain.ServiceCarRecovery: {
				BaseFare:    100,
				CoverageKm:  5,
				PerKmRate:   12,
				MinimumFare: 120,
				Recovery: &domain.RecoveryPricing{
					SubServiceFees: map[domain.VehicleType]float64{
						domain.VehicleFlatbedTowing: 25,
					},
					CategoryFees: map[domain.ServiceCategory]float64{
						domain.CategoryTowing:   15,
						domain.CategoryWinching: 12,
					},
					HelperCharges: map[domain.ServiceCategory]float64{
						domain.CategoryTowing: 30,
					},
					FreeStayMinutes:   30,
					OvertimePerMinute: 2,
				},
			},
			domain.ServiceShiftingMovers: {
				BaseFare:     150,
				CoverageKm:   10,
				PerKmRate:    9,
				MinimumFare:  150,
				HelperCharge: 50,
				Shifting: &domain.ShiftingPricing{
					StairsPerFloor: 15,
					LiftPerItem:    5,
					PackingPerItem: 8,
					FixingPerItem:  12,
				},
			},
		},
	}
}

func carCab(distance float64, m domain.FareModifiers) Input {
	return Input{
		ServiceType: domain.ServiceCarCab,
		VehicleType: domain.VehicleEconomy,
		DistanceKm:  distance,
		RouteType:   domain.RouteOneWay,
		Modifiers:   m,
	}
}

func TestCompute_ScenarioA_MinimumFareShortTrip(t *testing.T) {
	e := NewEngine(testConfig())

	bd, err := e.Compute(carCab(4, domain.FareModifiers{}))
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	if bd.DistanceFare != 0 {
		t.Errorf("distance fare = %v, want 0 (below coverage)", bd.DistanceFare)
	}
	if bd.Subtotal != 50 {
		t.Errorf("subtotal = %v, want 50", bd.Subtotal)
	}
	if bd.VAT != 2.5 {
		t.Errorf("VAT = %v, want 2.5", bd.VAT)
	}
	if bd.Total != 52.5 {
		t.Errorf("total = %v, want 52.5 (platform fee excluded)", bd.Total)
	}
	if bd.PlatformFee == 0 {
		t.Error("platform fee should still be itemized even though excluded from total")
	}
}

func TestCompute_ScenarioB_CityWiseTwoTierRate(t *testing.T) {
	e := NewEngine(testConfig())

	bd, err := e.Compute(carCab(12, domain.FareModifiers{}))
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	// (10-6)*7.5 + (12-10)*5 = 30 + 10 = 40
	if bd.DistanceFare != 40 {
		t.Errorf("distance fare = %v, want 40", bd.DistanceFare)
	}
	if bd.Subtotal != 90 {
		t.Errorf("subtotal = %v, want 90", bd.Subtotal)
	}
}

func TestCompute_FareMonotonicInDistance(t *testing.T) {
	e := NewEngine(testConfig())

	prev := -1.0
	for d := 0.0; d <= 40; d += 0.5 {
		bd, err := e.Compute(carCab(d, domain.FareModifiers{}))
		if err != nil {
			t.Fatalf("Compute(%v) error = %v", d, err)
		}
		if bd.Total < prev {
			t.Fatalf("total decreased: %v km -> %v, previous %v", d, bd.Total, prev)
		}
		prev = bd.Total
	}
}

func TestCompute_MinimumFareFloor(t *testing.T) {
	e := NewEngine(testConfig())

	for _, d := range []float64{0, 1, 3, 5.9} {
		bd, err := e.Compute(carCab(d, domain.FareModifiers{}))
		if err != nil {
			t.Fatalf("Compute(%v) error = %v", d, err)
		}
		if bd.Subtotal < 50 {
			t.Errorf("distance %v: subtotal %v below minimum 50", d, bd.Subtotal)
		}
		if !bd.MinimumApplied && bd.Subtotal == 50 && d < 6 {
			t.Errorf("distance %v: minimum floor should be flagged", d)
		}
	}
}

func TestCompute_NightChargePicksLargerOption(t *testing.T) {
	// Fixed amount dominates on a small subtotal, the percentage add-on on
	// a large one.
	cfg := testConfig()
	cfg.Global.Night = domain.NightPricing{FixedAmount: 10, Multiplier: 1.25}
	e := NewEngine(cfg)

	short, err := e.Compute(carCab(2, domain.FareModifiers{IsNight: true}))
	if err != nil {
		t.Fatal(err)
	}
	// subtotal 50: 50*0.25=12.5 > 10
	if short.NightCharge != 12.5 {
		t.Errorf("night charge = %v, want 12.5", short.NightCharge)
	}

	cfg.Global.Night.FixedAmount = 20
	e = NewEngine(cfg)
	short, err = e.Compute(carCab(2, domain.FareModifiers{IsNight: true}))
	if err != nil {
		t.Fatal(err)
	}
	// fixed 20 > 12.5
	if short.NightCharge != 20 {
		t.Errorf("night charge = %v, want 20 (fixed dominates)", short.NightCharge)
	}
}

func TestCompute_RoundTripCarRecoveryMutualExclusion(t *testing.T) {
	e := NewEngine(testConfig())

	recovery, err := e.Compute(Input{
		ServiceType:     domain.ServiceCarRecovery,
		VehicleType:     domain.VehicleFlatbedTowing,
		ServiceCategory: domain.CategoryTowing,
		DistanceKm:      10,
		RouteType:       domain.RouteRoundTrip,
		Modifiers:       domain.FareModifiers{StayMinutes: 45},
	})
	if err != nil {
		t.Fatal(err)
	}
	if recovery.RoundTripApplied {
		t.Error("round-trip multiplier must never apply to car recovery")
	}
	// (45-30)*2 = 30 overtime instead
	if recovery.OvertimeCharge != 30 {
		t.Errorf("overtime charge = %v, want 30", recovery.OvertimeCharge)
	}

	cab, err := e.Compute(Input{
		ServiceType: domain.ServiceCarCab,
		VehicleType: domain.VehicleEconomy,
		DistanceKm:  10,
		RouteType:   domain.RouteRoundTrip,
		Modifiers:   domain.FareModifiers{StayMinutes: 45},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !cab.RoundTripApplied {
		t.Error("round-trip multiplier must apply to non-recovery services")
	}
	if cab.OvertimeCharge != 0 {
		t.Errorf("overtime charge = %v, want 0 for car cab", cab.OvertimeCharge)
	}
	// (50 + 4*7.5) * 1.8 = 144
	if cab.Subtotal != 144 {
		t.Errorf("round-trip subtotal = %v, want 144", cab.Subtotal)
	}
}

func TestCompute_VATIndependentOfPlatformFee(t *testing.T) {
	in := carCab(15, domain.FareModifiers{IsNight: true, WaitingMinutes: 12})

	cfgZero := testConfig()
	cfgZero.Global.PlatformFeePercent = 0
	cfgHalf := testConfig()
	cfgHalf.Global.PlatformFeePercent = 50

	zero, err := NewEngine(cfgZero).Compute(in)
	if err != nil {
		t.Fatal(err)
	}
	half, err := NewEngine(cfgHalf).Compute(in)
	if err != nil {
		t.Fatal(err)
	}

	if zero.VAT != half.VAT {
		t.Errorf("VAT depends on platform fee: %v vs %v", zero.VAT, half.VAT)
	}
	if zero.Total != half.Total {
		t.Errorf("total depends on platform fee: %v vs %v", zero.Total, half.Total)
	}
}

func TestCompute_SurgeSteepestQualifyingTier(t *testing.T) {
	e := NewEngine(testConfig())

	tests := []struct {
		ratio    float64
		wantMult float64
	}{
		{1.0, 1.0},
		{1.1, 1.0},
		{1.3, 1.25},
		{1.7, 1.5},
		{2.5, 2.0},
	}
	for _, tt := range tests {
		bd, err := e.Compute(carCab(12, domain.FareModifiers{DemandRatio: tt.ratio}))
		if err != nil {
			t.Fatal(err)
		}
		if bd.SurgeMultiplier != tt.wantMult {
			t.Errorf("ratio %v: multiplier = %v, want %v", tt.ratio, bd.SurgeMultiplier, tt.wantMult)
		}
		wantCharge := round2(bd.Subtotal * (tt.wantMult - 1))
		if bd.SurgeCharge != wantCharge {
			t.Errorf("ratio %v: surge charge = %v, want %v", tt.ratio, bd.SurgeCharge, wantCharge)
		}
	}
}

func TestCompute_WaitingChargeCapped(t *testing.T) {
	e := NewEngine(testConfig())

	none, _ := e.Compute(carCab(8, domain.FareModifiers{WaitingMinutes: 5}))
	if none.WaitingCharge != 0 {
		t.Errorf("waiting within free minutes should be 0, got %v", none.WaitingCharge)
	}

	some, _ := e.Compute(carCab(8, domain.FareModifiers{WaitingMinutes: 15}))
	if some.WaitingCharge != 20 {
		t.Errorf("waiting charge = %v, want (15-5)*2 = 20", some.WaitingCharge)
	}

	capped, _ := e.Compute(carCab(8, domain.FareModifiers{WaitingMinutes: 500}))
	if capped.WaitingCharge != 40 {
		t.Errorf("waiting charge = %v, want cap 40", capped.WaitingCharge)
	}
}

func TestCompute_ConvenienceFeeMostSpecificWins(t *testing.T) {
	e := NewEngine(testConfig())

	flatbed, _ := e.Compute(Input{
		ServiceType:     domain.ServiceCarRecovery,
		VehicleType:     domain.VehicleFlatbedTowing,
		ServiceCategory: domain.CategoryTowing,
		DistanceKm:      8,
		RouteType:       domain.RouteOneWay,
	})
	if flatbed.ConvenienceFee != 25 {
		t.Errorf("convenience fee = %v, want sub-service entry 25", flatbed.ConvenienceFee)
	}

	wheelLift, _ := e.Compute(Input{
		ServiceType:     domain.ServiceCarRecovery,
		VehicleType:     domain.VehicleWheelLiftTowing,
		ServiceCategory: domain.CategoryTowing,
		DistanceKm:      8,
		RouteType:       domain.RouteOneWay,
	})
	if wheelLift.ConvenienceFee != 15 {
		t.Errorf("convenience fee = %v, want category fallback 15", wheelLift.ConvenienceFee)
	}
}

func TestCompute_CancellationTiersAndDriverFree(t *testing.T) {
	e := NewEngine(testConfig())

	tiers := []struct {
		milestone domain.TripMilestone
		want      float64
	}{
		{domain.MilestoneBeforeArrival, 5},
		{domain.MilestoneQuarterDistance, 10},
		{domain.MilestoneHalfDistance, 20},
		{domain.MilestoneAfterArrival, 30},
	}
	for _, tt := range tiers {
		bd, _ := e.Compute(carCab(8, domain.FareModifiers{
			Cancellation: &domain.CancellationContext{Milestone: tt.milestone},
		}))
		if bd.CancellationCharge != tt.want {
			t.Errorf("%s: charge = %v, want %v", tt.milestone, bd.CancellationCharge, tt.want)
		}
	}

	byDriver, _ := e.Compute(carCab(8, domain.FareModifiers{
		Cancellation: &domain.CancellationContext{ByDriver: true, Milestone: domain.MilestoneAfterArrival},
	}))
	if byDriver.CancellationCharge != 0 {
		t.Errorf("driver-initiated cancellation must be free, got %v", byDriver.CancellationCharge)
	}
}

func TestCompute_VehicleRateOverride(t *testing.T) {
	e := NewEngine(testConfig())

	bd, _ := e.Compute(Input{
		ServiceType: domain.ServiceCarCab,
		VehicleType: domain.VehiclePremium,
		DistanceKm:  8,
		RouteType:   domain.RouteOneWay,
	})
	if bd.BaseFare != 80 {
		t.Errorf("base fare = %v, want vehicle override 80", bd.BaseFare)
	}
	// (8-6)*10 = 20 at the vehicle per-km rate
	if bd.DistanceFare != 20 {
		t.Errorf("distance fare = %v, want 20", bd.DistanceFare)
	}
}

func TestCompute_ShiftingItemCharges(t *testing.T) {
	e := NewEngine(testConfig())

	bd, _ := e.Compute(Input{
		ServiceType: domain.ServiceShiftingMovers,
		VehicleType: domain.VehicleMediumMover,
		DistanceKm:  5,
		RouteType:   domain.RouteOneWay,
		Modifiers: domain.FareModifiers{
			HelperRequested: true,
			StairsFloors:    2,
			LiftItems:       3,
			PackingItems:    4,
			FixingItems:     1,
		},
	})
	// 2*15 + 3*5 + 4*8 + 1*12 = 89
	if bd.ItemCharges != 89 {
		t.Errorf("item charges = %v, want 89", bd.ItemCharges)
	}
	if bd.HelperCharge != 50 {
		t.Errorf("helper charge = %v, want 50", bd.HelperCharge)
	}
}

func TestCompute_RecoveryHelperByCategory(t *testing.T) {
	e := NewEngine(testConfig())

	bd, _ := e.Compute(Input{
		ServiceType:     domain.ServiceCarRecovery,
		VehicleType:     domain.VehicleFlatbedTowing,
		ServiceCategory: domain.CategoryTowing,
		DistanceKm:      8,
		RouteType:       domain.RouteOneWay,
		Modifiers:       domain.FareModifiers{HelperRequested: true},
	})
	if bd.HelperCharge != 30 {
		t.Errorf("helper charge = %v, want category entry 30", bd.HelperCharge)
	}
}

func TestCompute_ConfigurationMissing(t *testing.T) {
	if _, err := NewEngine(nil).Compute(carCab(5, domain.FareModifiers{})); err != ErrConfigurationMissing {
		t.Errorf("nil config: err = %v, want ErrConfigurationMissing", err)
	}

	inactive := testConfig()
	inactive.Active = false
	if _, err := NewEngine(inactive).Compute(carCab(5, domain.FareModifiers{})); err != ErrConfigurationMissing {
		t.Errorf("inactive config: err = %v, want ErrConfigurationMissing", err)
	}

	noService := testConfig()
	delete(noService.Services, domain.ServiceBike)
	_, err := NewEngine(noService).Compute(Input{
		ServiceType: domain.ServiceBike,
		VehicleType: domain.VehicleBikeStandard,
		DistanceKm:  5,
		RouteType:   domain.RouteOneWay,
	})
	if err != ErrConfigurationMissing {
		t.Errorf("missing service table: err = %v, want ErrConfigurationMissing", err)
	}
}

func TestCompute_RoundingOnlyAtTheEnd(t *testing.T) {
	cfg := testConfig()
	cfg.Global.VATPercent = 3.33
	e := NewEngine(cfg)

	bd, err := e.Compute(carCab(7.77, domain.FareModifiers{}))
	if err != nil {
		t.Fatal(err)
	}
	for name, v := range map[string]float64{
		"subtotal": bd.Subtotal,
		"vat":      bd.VAT,
		"total":    bd.Total,
	} {
		if math.Round(v*100)/100 != v {
			t.Errorf("%s = %v not rounded to 2 decimals", name, v)
		}
	}
}

func TestNightWindow_WrapsMidnight(t *testing.T) {
	n := domain.NightPricing{StartHour: 22, EndHour: 6}
	for hour, want := range map[int]bool{21: false, 22: true, 23: true, 0: true, 5: true, 6: false, 12: false} {
		if got := n.InWindow(hour); got != want {
			t.Errorf("InWindow(%d) = %v, want %v", hour, got, want)
		}
	}
}
