package pricing

import (
	"context"
	"errors"
	"time"

	"hail/internal/domain"
	"hail/internal/repository"
)

// ErrConfigurationMissing is returned when no active pricing configuration
// exists. It is an operational error, not a user-facing one.
var ErrConfigurationMissing = errors.New("no active pricing configuration")

// Service loads the active pricing configuration and computes fares over
// it. The engine itself stays pure; this is the only place configuration
// I/O happens.
type Service struct {
	configRepo repository.PricingConfigRepository
}

// NewService creates a new pricing Service.
func NewService(configRepo repository.PricingConfigRepository) *Service {
	return &Service{configRepo: configRepo}
}

// Quote computes the fare for the input against the currently active
// configuration snapshot.
func (s *Service) Quote(ctx context.Context, in Input) (*domain.FareBreakdown, error) {
	cfg, err := s.configRepo.GetActive(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrConfigurationMissing
		}
		return nil, err
	}
	return NewEngine(cfg).Compute(in)
}

// IsNightAt reports whether t falls inside the configured night window.
// Night charging is derived server-side from the trip's start time; client
// flags are never trusted.
func (s *Service) IsNightAt(ctx context.Context, t time.Time) (bool, error) {
	cfg, err := s.configRepo.GetActive(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrConfigurationMissing
		}
		return false, err
	}
	return cfg.Global.Night.InWindow(t.Hour()), nil
}
