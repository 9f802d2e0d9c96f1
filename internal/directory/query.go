package directory

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"hail/internal/domain"
	"hail/internal/geo"
	"hail/internal/realtime"
	"hail/internal/redis"
	"hail/internal/repository"
)

const (
	// defaultRadiusKm bounds plain nearby searches; Pink Captain widens it.
	defaultRadiusKm     = 10.0
	pinkCaptainRadiusKm = 50.0

	defaultLimit = 10
	maxLimit     = 20
)

// Request describes one candidate search.
type Request struct {
	Pickup          domain.Location
	ServiceType     domain.ServiceType
	VehicleType     domain.VehicleType
	Preference      domain.DriverPreference
	PinkCaptain     domain.PinkCaptainOptions
	PinnedDriverID  string
	ExcludedDrivers []string // drivers who already rejected the booking
	Limit           int      // 0 uses the default; capped at maxLimit
}

// Candidate is one eligible, reachable, currently connected driver.
// Ephemeral: query result only, never persisted.
type Candidate struct {
	Driver     *domain.Driver
	DistanceKm float64
}

// Query finds eligible drivers for a pending booking. Eligibility combines
// directory state (role, KYC, active, online), the vehicle registry, the
// geographic radius, and transport liveness; the session registry is
// authoritative, so a directory-online driver without a live socket is
// never returned.
type Query struct {
	driverRepo  repository.DriverRepository
	vehicleRepo repository.VehicleRepository
	locations   redis.LocationStoreInterface
	sessions    realtime.SessionRegistry
	log         *zap.Logger
}

// NewQuery creates a new directory Query.
func NewQuery(
	driverRepo repository.DriverRepository,
	vehicleRepo repository.VehicleRepository,
	locations redis.LocationStoreInterface,
	sessions realtime.SessionRegistry,
	log *zap.Logger,
) *Query {
	return &Query{
		driverRepo:  driverRepo,
		vehicleRepo: vehicleRepo,
		locations:   locations,
		sessions:    sessions,
		log:         log,
	}
}

// FindCandidates returns the ranked candidate list for the request. Any
// step yielding zero candidates short-circuits to an empty result.
func (q *Query) FindCandidates(ctx context.Context, req Request) ([]Candidate, error) {
	if req.Preference == domain.PreferencePinned {
		return q.pinnedCandidate(ctx, req)
	}

	filter := repository.EligibilityFilter{ExcludeIDs: req.ExcludedDrivers}
	radius := defaultRadiusKm
	if req.Preference == domain.PreferencePinkCaptain {
		filter.OnlyFemale = true
		radius = pinkCaptainRadiusKm
	}

	drivers, err := q.driverRepo.ListEligible(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(drivers) == 0 {
		return nil, nil
	}

	eligible := make(map[string]*domain.Driver, len(drivers))
	for _, d := range drivers {
		if req.Preference == domain.PreferencePinkCaptain && !d.Preferences.Covers(req.PinkCaptain) {
			continue
		}
		eligible[d.ID] = d
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	nearby, err := q.locations.FindNearbyDrivers(ctx, req.Pickup.Lat, req.Pickup.Lng, radius)
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	for _, loc := range nearby {
		driver, ok := eligible[loc.DriverID]
		if !ok {
			continue
		}

		hasVehicle, err := q.vehicleRepo.HasActiveVehicle(ctx, driver.ID, req.ServiceType, req.VehicleType)
		if err != nil {
			return nil, err
		}
		if !hasVehicle {
			continue
		}

		connected, err := q.sessions.IsConnected(ctx, realtime.DriverRoom(driver.ID))
		if err != nil {
			return nil, err
		}
		if !connected {
			// Stale directory status: online in the DB, no live socket.
			q.log.Debug("skipping ghost-online driver", zap.String("driver_id", driver.ID))
			continue
		}

		dist := geo.DistanceKm(req.Pickup.Lat, req.Pickup.Lng, loc.Lat, loc.Lng)
		if dist > radius {
			continue
		}

		candidates = append(candidates, Candidate{Driver: driver, DistanceKm: dist})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].DistanceKm < candidates[j].DistanceKm
	})

	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// pinnedCandidate resolves exactly the pinned driver. Capability, radius
// and directory-status checks are deliberately skipped for a pinned driver;
// only the active flag, prior rejection and transport liveness apply.
func (q *Query) pinnedCandidate(ctx context.Context, req Request) ([]Candidate, error) {
	if req.PinnedDriverID == "" {
		return nil, nil
	}
	for _, id := range req.ExcludedDrivers {
		if id == req.PinnedDriverID {
			return nil, nil
		}
	}

	driver, err := q.driverRepo.GetByID(ctx, req.PinnedDriverID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	if !driver.Active {
		return nil, nil
	}

	connected, err := q.sessions.IsConnected(ctx, realtime.DriverRoom(driver.ID))
	if err != nil {
		return nil, err
	}
	if !connected {
		return nil, nil
	}

	dist := 0.0
	if loc, err := q.locations.GetLocation(ctx, driver.ID); err == nil && loc != nil {
		dist = geo.DistanceKm(req.Pickup.Lat, req.Pickup.Lng, loc.Lat, loc.Lng)
	}
	return []Candidate{{Driver: driver, DistanceKm: dist}}, nil
}
