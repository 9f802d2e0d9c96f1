package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hail/internal/domain"
	"hail/internal/geo"
	"hail/internal/redis"
	"hail/internal/repository"
)

// DriverService manages driver registration and presence. The geo index
// and session registry in Redis carry live state; the directory rows in
// Postgres carry the durable profile.
type DriverService struct {
	drivers   repository.DriverRepository
	vehicles  repository.VehicleRepository
	locations redis.LocationStoreInterface
	log       *zap.Logger
}

// NewDriverService creates a new DriverService.
func NewDriverService(drivers repository.DriverRepository, vehicles repository.VehicleRepository, locations redis.LocationStoreInterface, log *zap.Logger) *DriverService {
	return &DriverService{drivers: drivers, vehicles: vehicles, locations: locations, log: log}
}

// RegisterDriverRequest carries a new driver profile.
type RegisterDriverRequest struct {
	Name        string
	Phone       string
	Gender      domain.Gender
	Preferences domain.RidePreferences
}

// RegisterDriver creates a driver in pending KYC, offline.
func (s *DriverService) RegisterDriver(ctx context.Context, req RegisterDriverRequest) (*domain.Driver, error) {
	d := &domain.Driver{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Phone:       req.Phone,
		Gender:      req.Gender,
		Status:      domain.DriverStatusOffline,
		KYC:         domain.KYCPending,
		Active:      true,
		Preferences: req.Preferences,
	}
	if err := s.drivers.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// RegisterVehicle adds a vehicle to a driver after validating it against
// the service taxonomy.
func (s *DriverService) RegisterVehicle(ctx context.Context, driverID string, st domain.ServiceType, vt domain.VehicleType) (*domain.Vehicle, error) {
	if !domain.ValidServiceType(st) {
		return nil, ErrInvalidServiceType
	}
	if !domain.ValidVehicleForService(st, vt) {
		return nil, ErrInvalidVehicleType
	}
	if _, err := s.drivers.GetByID(ctx, driverID); err != nil {
		return nil, err
	}

	v := &domain.Vehicle{
		ID:          uuid.New().String(),
		DriverID:    driverID,
		ServiceType: st,
		VehicleType: vt,
		Active:      true,
	}
	if err := s.vehicles.Create(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// UpdateLocation records a driver heartbeat position in the geo index.
func (s *DriverService) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	if !geo.ValidLatitude(lat) || !geo.ValidLongitude(lng) {
		return ErrInvalidCoordinates
	}
	return s.locations.UpdateLocation(ctx, driverID, lat, lng)
}

// GoOnline marks the driver available and seeds the geo index.
func (s *DriverService) GoOnline(ctx context.Context, driverID string, lat, lng float64) error {
	if !geo.ValidLatitude(lat) || !geo.ValidLongitude(lng) {
		return ErrInvalidCoordinates
	}
	if err := s.drivers.UpdateStatus(ctx, driverID, domain.DriverStatusOnline); err != nil {
		return err
	}
	if err := s.locations.UpdateLocation(ctx, driverID, lat, lng); err != nil {
		s.log.Warn("geo index seed failed", zap.String("driver_id", driverID), zap.Error(err))
	}
	return nil
}

// GoOffline marks the driver unavailable and drops them from the geo
// index so stale positions cannot match.
func (s *DriverService) GoOffline(ctx context.Context, driverID string) error {
	if err := s.drivers.UpdateStatus(ctx, driverID, domain.DriverStatusOffline); err != nil {
		return err
	}
	if err := s.locations.RemoveLocation(ctx, driverID); err != nil {
		s.log.Warn("geo index removal failed", zap.String("driver_id", driverID), zap.Error(err))
	}
	return nil
}
