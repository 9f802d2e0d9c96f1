package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"hail/internal/domain"
	"hail/internal/repository"
)

// DriverRepository is a PostgreSQL implementation of
// repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

// NewDriverRepositoryWithTx creates a driver repository using a transaction.
func NewDriverRepositoryWithTx(tx *sql.Tx) *DriverRepository {
	return &DriverRepository{q: tx}
}

// Create adds a new driver.
func (r *DriverRepository) Create(ctx context.Context, d *domain.Driver) error {
	query := `
		INSERT INTO drivers (id, name, phone, gender, status, kyc_status, active, preferences)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	prefs, err := json.Marshal(d.Preferences)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}

	_, err = r.q.ExecContext(ctx, query,
		d.ID,
		d.Name,
		d.Phone,
		d.Gender,
		d.Status,
		d.KYC,
		d.Active,
		prefs,
	)

	return err
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	query := `
		SELECT id, name, phone, gender, status, kyc_status, active, preferences
		FROM drivers WHERE id = $1
	`

	d, err := scanDriver(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// ListEligible returns active, KYC-approved, online drivers matching the
// filter.
func (r *DriverRepository) ListEligible(ctx context.Context, f repository.EligibilityFilter) ([]*domain.Driver, error) {
	query := `
		SELECT id, name, phone, gender, status, kyc_status, active, preferences
		FROM drivers
		WHERE active = TRUE AND kyc_status = 'approved' AND status = 'online'
		  AND ($1 = FALSE OR gender = 'female')
		  AND NOT (id = ANY($2))
	`

	excluded := f.ExcludeIDs
	if excluded == nil {
		excluded = []string{}
	}

	rows, err := r.q.QueryContext(ctx, query, f.OnlyFemale, pq.Array(excluded))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []*domain.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}

// UpdateStatus sets a driver's availability status.
func (r *DriverRepository) UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error {
	query := `UPDATE drivers SET status = $1 WHERE id = $2`

	result, err := r.q.ExecContext(ctx, query, status, id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanDriver(row rowScanner) (*domain.Driver, error) {
	var d domain.Driver
	var prefs []byte

	if err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Phone,
		&d.Gender,
		&d.Status,
		&d.KYC,
		&d.Active,
		&prefs,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(prefs, &d.Preferences); err != nil {
		return nil, fmt.Errorf("unmarshal preferences: %w", err)
	}

	return &d, nil
}
