package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hail/internal/domain"
	"hail/internal/geo"
	"hail/internal/negotiation"
	"hail/internal/pricing"
	"hail/internal/repository"
)

// BookingConfig tunes booking creation.
type BookingConfig struct {
	// MaxResendAttempts caps user-initiated fare raises per booking.
	MaxResendAttempts int
}

// BookingService orchestrates booking creation: taxonomy and coordinate
// validation, fare quoting with server-derived modifiers, persistence and
// the first matching window.
type BookingService struct {
	bookings repository.BookingRepository
	pricer   *pricing.Service
	demand   *DemandService
	machine  *negotiation.Machine
	tasks    repository.TaskRepository
	log      *zap.Logger
	cfg      BookingConfig

	now func() time.Time
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	bookings repository.BookingRepository,
	pricer *pricing.Service,
	demand *DemandService,
	machine *negotiation.Machine,
	tasks repository.TaskRepository,
	log *zap.Logger,
	cfg BookingConfig,
) *BookingService {
	return &BookingService{
		bookings: bookings,
		pricer:   pricer,
		demand:   demand,
		machine:  machine,
		tasks:    tasks,
		log:      log,
		cfg:      cfg,
		now:      time.Now,
	}
}

// CreateBookingRequest carries everything the requester supplies.
type CreateBookingRequest struct {
	UserID string

	Pickup  domain.Location
	Dropoff domain.Location

	ServiceType     domain.ServiceType
	VehicleType     domain.VehicleType
	ServiceCategory domain.ServiceCategory
	RouteType       domain.RouteType

	Preference     domain.DriverPreference
	PinkCaptain    domain.PinkCaptainOptions
	PinnedDriverID string

	// Situational fare inputs the requester declares up front. Night and
	// demand are derived server-side and never accepted from the client.
	HelperRequested bool
	StayMinutes     float64
	StairsFloors    int
	LiftItems       int
	PackingItems    int
	FixingItems     int
}

// CreateBookingResult is the booking plus its quoted breakdown and how
// many drivers the opening window reached.
type CreateBookingResult struct {
	Booking    *domain.Booking
	Breakdown  *domain.FareBreakdown
	Candidates int
}

// CreateBooking validates, quotes, persists and broadcasts a new booking.
// A window that reaches no drivers is not an error: the booking stays
// pending and the requester is told nobody was available.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*CreateBookingResult, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}

	now := s.now()
	distance := geo.DistanceKm(req.Pickup.Lat, req.Pickup.Lng, req.Dropoff.Lat, req.Dropoff.Lng)

	isNight, err := s.pricer.IsNightAt(ctx, now)
	if err != nil {
		return nil, err
	}

	bd, err := s.pricer.Quote(ctx, pricing.Input{
		ServiceType:     req.ServiceType,
		VehicleType:     req.VehicleType,
		ServiceCategory: req.ServiceCategory,
		DistanceKm:      distance,
		RouteType:       req.RouteType,
		Modifiers: domain.FareModifiers{
			IsNight:         isNight,
			DemandRatio:     s.demand.RatioAt(ctx, req.Pickup),
			HelperRequested: req.HelperRequested,
			StayMinutes:     req.StayMinutes,
			StairsFloors:    req.StairsFloors,
			LiftItems:       req.LiftItems,
			PackingItems:    req.PackingItems,
			FixingItems:     req.FixingItems,
		},
	})
	if err != nil {
		return nil, err
	}

	b := &domain.Booking{
		ID:                uuid.New().String(),
		UserID:            req.UserID,
		Pickup:            req.Pickup,
		Dropoff:           req.Dropoff,
		ServiceType:       req.ServiceType,
		VehicleType:       req.VehicleType,
		ServiceCategory:   req.ServiceCategory,
		RouteType:         req.RouteType,
		Preference:        req.Preference,
		PinkCaptain:       req.PinkCaptain,
		PinnedDriverID:    req.PinnedDriverID,
		OfferedFare:       bd.Total,
		DistanceKm:        distance,
		Status:            domain.BookingStatusPending,
		MaxResendAttempts: s.cfg.MaxResendAttempts,
		CreatedAt:         now,
	}
	if err := s.bookings.Create(ctx, b); err != nil {
		return nil, err
	}

	s.log.Info("booking created",
		zap.String("booking_id", b.ID),
		zap.String("user_id", b.UserID),
		zap.String("service_type", string(b.ServiceType)),
		zap.Float64("offered_fare", b.OfferedFare))

	count, err := s.machine.OpenWindow(ctx, b)
	if err != nil && !errors.Is(err, negotiation.ErrNoCandidates) {
		return nil, err
	}
	return &CreateBookingResult{Booking: b, Breakdown: bd, Candidates: count}, nil
}

func (s *BookingService) validate(req *CreateBookingRequest) error {
	if !domain.ValidServiceType(req.ServiceType) {
		return ErrInvalidServiceType
	}
	if !domain.ValidVehicleForService(req.ServiceType, req.VehicleType) {
		return ErrInvalidVehicleType
	}
	if req.ServiceType == domain.ServiceCarRecovery {
		derived, _ := domain.CategoryForVehicle(req.VehicleType)
		if req.ServiceCategory == "" {
			req.ServiceCategory = derived
		} else if !domain.ValidCategoryForVehicle(req.VehicleType, req.ServiceCategory) {
			return ErrInvalidCategory
		}
	} else {
		req.ServiceCategory = ""
	}
	if req.RouteType == "" {
		req.RouteType = domain.RouteOneWay
	}
	if req.RouteType != domain.RouteOneWay && req.RouteType != domain.RouteRoundTrip {
		return ErrInvalidRouteType
	}
	if !geo.ValidLatitude(req.Pickup.Lat) || !geo.ValidLongitude(req.Pickup.Lng) ||
		!geo.ValidLatitude(req.Dropoff.Lat) || !geo.ValidLongitude(req.Dropoff.Lng) {
		return ErrInvalidCoordinates
	}
	if req.Preference == "" {
		req.Preference = domain.PreferenceNearby
	}
	if req.Preference == domain.PreferencePinned && req.PinnedDriverID == "" {
		return ErrPinnedDriverID
	}
	return nil
}

// GetBooking loads a booking for one of its parties.
func (s *BookingService) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	return s.bookings.GetByID(ctx, id)
}

// ConfirmSurvey acknowledges the post-service survey and cancels any
// pending reminder for the booking.
func (s *BookingService) ConfirmSurvey(ctx context.Context, userID, bookingID string) error {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.UserID != userID {
		return ErrNotBookingOwner
	}
	if b.Status != domain.BookingStatusCompleted {
		return ErrBookingNotComplete
	}
	return s.tasks.CancelByRef(ctx, domain.TaskSurveyReminder, bookingID)
}
