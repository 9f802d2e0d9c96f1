package postgres

import (
	"context"
	"database/sql"

	"hail/internal/domain"
)

// VehicleRepository is a PostgreSQL implementation of
// repository.VehicleRepository.
type VehicleRepository struct {
	q Querier
}

// NewVehicleRepository creates a new PostgreSQL vehicle repository.
func NewVehicleRepository(db *sql.DB) *VehicleRepository {
	return &VehicleRepository{q: db}
}

// NewVehicleRepositoryWithTx creates a vehicle repository using a transaction.
func NewVehicleRepositoryWithTx(tx *sql.Tx) *VehicleRepository {
	return &VehicleRepository{q: tx}
}

// Create registers a vehicle.
func (r *VehicleRepository) Create(ctx context.Context, v *domain.Vehicle) error {
	query := `
		INSERT INTO vehicles (id, driver_id, service_type, vehicle_type, active)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.q.ExecContext(ctx, query,
		v.ID,
		v.DriverID,
		v.ServiceType,
		v.VehicleType,
		v.Active,
	)

	return err
}

// HasActiveVehicle reports whether the driver has an active vehicle for
// the service type, and the vehicle type when one is specified.
func (r *VehicleRepository) HasActiveVehicle(ctx context.Context, driverID string, st domain.ServiceType, vt domain.VehicleType) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM vehicles
			WHERE driver_id = $1 AND service_type = $2 AND active = TRUE
			  AND ($3 = '' OR vehicle_type = $3)
		)
	`

	var exists bool
	if err := r.q.QueryRowContext(ctx, query, driverID, st, string(vt)).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
