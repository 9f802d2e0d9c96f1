package tests

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hail/internal/directory"
	"hail/internal/domain"
	"hail/internal/negotiation"
	"hail/internal/pricing"
	"hail/internal/realtime"
)

// fixture bundles a fully wired negotiation machine over mocks.
type fixture struct {
	bookings  *MockBookingRepository
	drivers   *MockDriverRepository
	vehicles  *MockVehicleRepository
	locations *MockLocationStore
	sessions  *MockSessionRegistry
	locks     *MockLockStore
	receipts  *MockReceiptRepository
	tasks     *MockTaskRepository
	publisher *MockPublisher

	pricer  *pricing.Service
	query   *directory.Query
	machine *negotiation.Machine
}

func newFixture(cfg negotiation.Config) *fixture {
	log := zap.NewNop()

	f := &fixture{
		bookings:  NewMockBookingRepository(),
		drivers:   NewMockDriverRepository(),
		vehicles:  NewMockVehicleRepository(),
		locations: NewMockLocationStore(),
		sessions:  NewMockSessionRegistry(),
		locks:     NewMockLockStore(),
		receipts:  NewMockReceiptRepository(),
		tasks:     NewMockTaskRepository(),
		publisher: NewMockPublisher(),
	}

	notifier := realtime.NewNotifier(f.publisher, log)
	f.pricer = pricing.NewService(NewMockPricingConfigRepository(testPricingConfig()))
	f.query = directory.NewQuery(f.drivers, f.vehicles, f.locations, f.sessions, log)

	receiptSvc := &recordingReceipts{repo: f.receipts}
	surveySvc := &recordingSurveys{repo: f.tasks}

	f.machine = negotiation.NewMachine(
		f.bookings, f.drivers, f.query, f.pricer, notifier, f.locks,
		receiptSvc, surveySvc, log, cfg,
	)
	return f
}

func defaultFixture() *fixture {
	return newFixture(negotiation.DefaultConfig())
}

// recordingReceipts is a minimal ReceiptGenerator writing straight to the
// mock repository.
type recordingReceipts struct {
	repo *MockReceiptRepository
}

func (r *recordingReceipts) Generate(ctx context.Context, b *domain.Booking) (*domain.Receipt, error) {
	receipt := &domain.Receipt{
		ID:          "receipt-" + b.ID,
		BookingID:   b.ID,
		UserID:      b.UserID,
		DriverID:    b.DriverID,
		Pickup:      b.Pickup,
		Dropoff:     b.Dropoff,
		StartedAt:   b.StartedAt,
		CompletedAt: b.CompletedAt,
		CreatedAt:   b.CompletedAt,
	}
	receipt.Breakdown.Total = b.CurrentFare()
	if err := r.repo.Create(ctx, receipt); err != nil {
		return nil, err
	}
	return receipt, nil
}

// recordingSurveys schedules survey tasks into the mock repository.
type recordingSurveys struct {
	repo *MockTaskRepository
}

func (s *recordingSurveys) ScheduleSurvey(ctx context.Context, b *domain.Booking) error {
	return s.repo.Create(ctx, &domain.ScheduledTask{
		ID:        "task-" + b.ID,
		Kind:      domain.TaskSurveyReminder,
		RefID:     b.ID,
		UserID:    b.UserID,
		RunAt:     time.Now().Add(time.Minute),
		CreatedAt: time.Now(),
	})
}

// pendingBooking builds a pending car cab booking with a 100.00 baseline
// fare, the reference most band tests assert against.
func pendingBooking(id string) *domain.Booking {
	return &domain.Booking{
		ID:                id,
		UserID:            "user-1",
		Pickup:            domain.Location{Lat: 25.20, Lng: 55.27},
		Dropoff:           domain.Location{Lat: 25.25, Lng: 55.30},
		ServiceType:       domain.ServiceCarCab,
		VehicleType:       domain.VehicleEconomy,
		RouteType:         domain.RouteOneWay,
		Preference:        domain.PreferenceNearby,
		OfferedFare:       100,
		DistanceKm:        8,
		Status:            domain.BookingStatusPending,
		MaxResendAttempts: 3,
		CreatedAt:         time.Now(),
	}
}

// onlineDriver builds an eligible driver with a live session and a cab at
// the pickup point.
func (f *fixture) onlineDriver(id string, lat, lng float64) *domain.Driver {
	d := &domain.Driver{
		ID:     id,
		Name:   "Driver " + id,
		Status: domain.DriverStatusOnline,
		KYC:    domain.KYCApproved,
		Active: true,
	}
	f.drivers.AddDriver(d)
	f.vehicles.AddVehicle(&domain.Vehicle{
		ID:          "veh-" + id,
		DriverID:    id,
		ServiceType: domain.ServiceCarCab,
		VehicleType: domain.VehicleEconomy,
		Active:      true,
	})
	f.locations.SetLocation(id, lat, lng)
	f.sessions.Connect(realtime.DriverRoom(id))
	return d
}

func testPricingConfig() *domain.PricingConfig {
	return &domain.PricingConfig{
		ID:     "cfg-test",
		Active: true,
		Global: domain.GlobalPricing{
			PerKmRate:                5,
			MinimumFare:              10,
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
				BaseFare:    50,
				CoverageKm:  6,
				PerKmRate:   7.5,
				MinimumFare: 25,
			},
		},
	}
}
