package repository

import (
	"context"

	"hail/internal/domain"
)

// EligibilityFilter narrows the driver directory to matching candidates.
type EligibilityFilter struct {
	// OnlyFemale restricts to female drivers (Pink Captain mode).
	OnlyFemale bool

	// ExcludeIDs removes specific drivers (e.g. rejectors of a booking).
	ExcludeIDs []string
}

// DriverRepository defines the persistence operations for drivers.
type DriverRepository interface {
	// Create adds a new driver.
	Create(ctx context.Context, d *domain.Driver) error

	// GetByID retrieves a driver by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// ListEligible returns active, KYC-approved, online drivers matching
	// the filter.
	ListEligible(ctx context.Context, f EligibilityFilter) ([]*domain.Driver, error)

	// UpdateStatus sets a driver's availability status.
	UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error
}

// VehicleRepository is the vehicle registry joining drivers to the service
// taxonomy.
type VehicleRepository interface {
	// Create registers a vehicle.
	Create(ctx context.Context, v *domain.Vehicle) error

	// HasActiveVehicle reports whether the driver has an active vehicle for
	// the service type, and the vehicle type when one is specified.
	HasActiveVehicle(ctx context.Context, driverID string, st domain.ServiceType, vt domain.VehicleType) (bool, error)
}
