package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"hail/internal/domain"
	"hail/internal/repository"
)

// PricingConfigRepository is a PostgreSQL implementation of
// repository.PricingConfigRepository. The configuration document is
// admin-authored and stored whole as jsonb; this side only ever reads the
// single active row.
type PricingConfigRepository struct {
	q Querier
}

// NewPricingConfigRepository creates a new PostgreSQL pricing config
// repository.
func NewPricingConfigRepository(db *sql.DB) *PricingConfigRepository {
	return &PricingConfigRepository{q: db}
}

// GetActive returns the active pricing configuration.
func (r *PricingConfigRepository) GetActive(ctx context.Context) (*domain.PricingConfig, error) {
	query := `
		SELECT id, document FROM pricing_configs
		WHERE active = TRUE
		ORDER BY created_at DESC LIMIT 1
	`

	var id string
	var doc []byte
	if err := r.q.QueryRowContext(ctx, query).Scan(&id, &doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	var cfg domain.PricingConfig
	if err := json.Unmarshal(doc, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal pricing config: %w", err)
	}
	cfg.ID = id
	cfg.Active = true

	return &cfg, nil
}
