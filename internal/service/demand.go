package service

import (
	"context"

	"go.uber.org/zap"

	"hail/internal/domain"
	"hail/internal/geo"
	"hail/internal/redis"
	"hail/internal/repository"
)

// demandRadiusKm is the circle demand and supply are counted in when
// computing the surge ratio for a pickup point.
const demandRadiusKm = 10

// DemandService measures local demand pressure. The ratio of open
// bookings to available drivers around a pickup point feeds the surge
// tiers of the pricing engine.
type DemandService struct {
	bookings  repository.BookingRepository
	locations redis.LocationStoreInterface
	log       *zap.Logger
}

// NewDemandService creates a new DemandService.
func NewDemandService(bookings repository.BookingRepository, locations redis.LocationStoreInterface, log *zap.Logger) *DemandService {
	return &DemandService{bookings: bookings, locations: locations, log: log}
}

// RatioAt returns the demand/supply ratio around the point. Measurement
// failures degrade to a ratio of zero: a booking is never blocked because
// surge input was unavailable.
func (s *DemandService) RatioAt(ctx context.Context, loc domain.Location) float64 {
	drivers, err := s.locations.FindNearbyDrivers(ctx, loc.Lat, loc.Lng, demandRadiusKm)
	if err != nil {
		s.log.Warn("supply lookup failed", zap.Error(err))
		return 0
	}

	pending, err := s.bookings.ListPending(ctx)
	if err != nil {
		s.log.Warn("demand lookup failed", zap.Error(err))
		return 0
	}
	demand := 0
	for _, b := range pending {
		if geo.DistanceKm(loc.Lat, loc.Lng, b.Pickup.Lat, b.Pickup.Lng) <= demandRadiusKm {
			demand++
		}
	}

	supply := len(drivers)
	if supply == 0 {
		// No supply at all: treat each open booking as a full unit of
		// pressure so the steepest tier can still trigger.
		return float64(demand)
	}
	return float64(demand) / float64(supply)
}
