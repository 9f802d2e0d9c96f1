package tests

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"hail/internal/domain"
	"hail/internal/geo"
	"hail/internal/realtime"
	"hail/internal/redis"
	"hail/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK BOOKING REPOSITORY
// ──────────────────────────────────────────────

// MockBookingRepository is an in-memory implementation of
// repository.BookingRepository with the same conditional-write semantics
// as the Postgres one: every transition checks its guard under the lock,
// so concurrent accept attempts race exactly like rows do.
type MockBookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]*domain.Booking

	// Counters for verification
	CreateCallCount int32
	AcceptCallCount int32

	// Error injection
	CreateError error
	AcceptError error
}

// NewMockBookingRepository creates a new mock booking repository.
func NewMockBookingRepository() *MockBookingRepository {
	return &MockBookingRepository{
		bookings: make(map[string]*domain.Booking),
	}
}

// AddBooking adds a booking to the mock repository.
func (m *MockBookingRepository) AddBooking(b *domain.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = b
}

func (m *MockBookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	cp := *b
	return &cp, nil
}

func (m *MockBookingRepository) ListPending(ctx context.Context) ([]*domain.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Booking
	for _, b := range m.bookings {
		if b.Status == domain.BookingStatusPending {
			cp := *b
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *MockBookingRepository) Accept(ctx context.Context, bookingID, driverID string, fare float64, at time.Time) (bool, error) {
	atomic.AddInt32(&m.AcceptCallCount, 1)
	if m.AcceptError != nil {
		return false, m.AcceptError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok || b.Status != domain.BookingStatusPending {
		return false, nil
	}
	b.Status = domain.BookingStatusAccepted
	b.DriverID = driverID
	b.Fare = fare
	b.AcceptedAt = at
	return true, nil
}

func (m *MockBookingRepository) AppendRejection(ctx context.Context, bookingID string, r domain.DriverRejection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return repository.ErrNotFound
	}
	for _, existing := range b.RejectedDrivers {
		if existing.DriverID == r.DriverID {
			return nil
		}
	}
	b.RejectedDrivers = append(b.RejectedDrivers, r)
	return nil
}

func (m *MockBookingRepository) AppendOffer(ctx context.Context, bookingID string, o domain.DriverOffer) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok || b.Status != domain.BookingStatusPending {
		return false, nil
	}
	b.DriverOffers = append(b.DriverOffers, o)
	return true, nil
}

func (m *MockBookingRepository) AppendLedgerEntry(ctx context.Context, bookingID string, e domain.NegotiationEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return repository.ErrNotFound
	}
	b.NegotiationLedger = append(b.NegotiationLedger, e)
	return nil
}

func (m *MockBookingRepository) SetFare(ctx context.Context, bookingID string, fare float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return repository.ErrNotFound
	}
	b.Fare = fare
	return nil
}

func (m *MockBookingRepository) RecordFareRaise(ctx context.Context, bookingID string, raise domain.FareRaise, maxAttempts int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok || b.Status != domain.BookingStatusPending || b.ResendAttempts >= maxAttempts {
		return false, nil
	}
	b.FareRaises = append(b.FareRaises, raise)
	b.RaisedFare = raise.Amount
	b.ResendAttempts++
	return true, nil
}

func (m *MockBookingRepository) Cancel(ctx context.Context, bookingID, cancelledBy, reason string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok || (b.Status != domain.BookingStatusPending && b.Status != domain.BookingStatusAccepted) {
		return false, nil
	}
	b.Status = domain.BookingStatusCancelled
	b.CancelledBy = cancelledBy
	b.CancelReason = reason
	b.CancelledAt = at
	return true, nil
}

func (m *MockBookingRepository) Start(ctx context.Context, bookingID, driverID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok || b.DriverID != driverID || b.Status != domain.BookingStatusAccepted {
		return false, nil
	}
	b.Status = domain.BookingStatusStarted
	b.StartedAt = at
	return true, nil
}

func (m *MockBookingRepository) Complete(ctx context.Context, bookingID, driverID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok || b.DriverID != driverID || (b.Status != domain.BookingStatusStarted && b.Status != domain.BookingStatusInProgress) {
		return false, nil
	}
	b.Status = domain.BookingStatusCompleted
	b.CompletedAt = at
	return true, nil
}

// GetBooking returns the booking for test assertions.
func (m *MockBookingRepository) GetBooking(id string) *domain.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bookings[id]
}

// ──────────────────────────────────────────────
// MOCK DRIVER REPOSITORY
// ──────────────────────────────────────────────

// MockDriverRepository is a mock implementation of DriverRepository.
type MockDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver

	// Counters for verification
	CreateCallCount       int32
	UpdateStatusCallCount int32

	// Error injection
	CreateError       error
	UpdateStatusError error
}

// NewMockDriverRepository creates a new mock driver repository.
func NewMockDriverRepository() *MockDriverRepository {
	return &MockDriverRepository{
		drivers: make(map[string]*domain.Driver),
	}
}

// AddDriver adds a driver to the mock repository.
func (m *MockDriverRepository) AddDriver(d *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[d.ID] = d
}

func (m *MockDriverRepository) Create(ctx context.Context, d *domain.Driver) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[d.ID] = d
	return nil
}

func (m *MockDriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MockDriverRepository) ListEligible(ctx context.Context, f repository.EligibilityFilter) ([]*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	excluded := make(map[string]bool, len(f.ExcludeIDs))
	for _, id := range f.ExcludeIDs {
		excluded[id] = true
	}
	var result []*domain.Driver
	for _, d := range m.drivers {
		if !d.Active || d.KYC != domain.KYCApproved || d.Status != domain.DriverStatusOnline {
			continue
		}
		if f.OnlyFemale && d.Gender != domain.GenderFemale {
			continue
		}
		if excluded[d.ID] {
			continue
		}
		cp := *d
		result = append(result, &cp)
	}
	return result, nil
}

func (m *MockDriverRepository) UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error {
	atomic.AddInt32(&m.UpdateStatusCallCount, 1)
	if m.UpdateStatusError != nil {
		return m.UpdateStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	d.Status = status
	return nil
}

// GetDriver returns a driver for test assertions.
func (m *MockDriverRepository) GetDriver(id string) *domain.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.drivers[id]
}

// ──────────────────────────────────────────────
// MOCK VEHICLE REPOSITORY
// ──────────────────────────────────────────────

// MockVehicleRepository is a mock implementation of VehicleRepository.
type MockVehicleRepository struct {
	mu       sync.RWMutex
	vehicles []*domain.Vehicle
}

// NewMockVehicleRepository creates a new mock vehicle repository.
func NewMockVehicleRepository() *MockVehicleRepository {
	return &MockVehicleRepository{}
}

// AddVehicle adds a vehicle to the mock repository.
func (m *MockVehicleRepository) AddVehicle(v *domain.Vehicle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles = append(m.vehicles, v)
}

func (m *MockVehicleRepository) Create(ctx context.Context, v *domain.Vehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles = append(m.vehicles, v)
	return nil
}

func (m *MockVehicleRepository) HasActiveVehicle(ctx context.Context, driverID string, st domain.ServiceType, vt domain.VehicleType) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.vehicles {
		if v.DriverID != driverID || !v.Active || v.ServiceType != st {
			continue
		}
		if vt == "" || v.VehicleType == vt {
			return true, nil
		}
	}
	return false, nil
}

// ──────────────────────────────────────────────
// MOCK LOCATION STORE
// ──────────────────────────────────────────────

// MockLocationStore is a mock implementation of LocationStoreInterface.
type MockLocationStore struct {
	mu        sync.RWMutex
	locations map[string]redis.DriverLocation

	// Error injection
	FindError error
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{
		locations: make(map[string]redis.DriverLocation),
	}
}

// SetLocation places a driver at the coordinates.
func (m *MockLocationStore) SetLocation(driverID string, lat, lng float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[driverID] = redis.DriverLocation{DriverID: driverID, Lat: lat, Lng: lng}
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	m.SetLocation(driverID, lat, lng)
	return nil
}

func (m *MockLocationStore) FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]redis.DriverLocation, error) {
	if m.FindError != nil {
		return nil, m.FindError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []redis.DriverLocation
	for _, loc := range m.locations {
		if geo.DistanceKm(lat, lng, loc.Lat, loc.Lng) <= radiusKm {
			result = append(result, loc)
		}
	}
	return result, nil
}

func (m *MockLocationStore) GetLocation(ctx context.Context, driverID string) (*redis.DriverLocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.locations[driverID]
	if !ok {
		return nil, nil
	}
	cp := loc
	return &cp, nil
}

func (m *MockLocationStore) RemoveLocation(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locations, driverID)
	return nil
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStoreInterface.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]bool

	// Error injection
	AcquireError error
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{locks: make(map[string]bool)}
}

func (m *MockLockStore) AcquireBookingLock(ctx context.Context, bookingID string, ttl time.Duration) (bool, error) {
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[bookingID] {
		return false, nil
	}
	m.locks[bookingID] = true
	return true, nil
}

func (m *MockLockStore) ReleaseBookingLock(ctx context.Context, bookingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, bookingID)
	return nil
}

// ──────────────────────────────────────────────
// MOCK SESSION REGISTRY
// ──────────────────────────────────────────────

// MockSessionRegistry is a mock implementation of realtime.SessionRegistry.
// Rooms are connected only when explicitly marked so.
type MockSessionRegistry struct {
	mu        sync.RWMutex
	connected map[string]bool
}

// NewMockSessionRegistry creates a new mock session registry.
func NewMockSessionRegistry() *MockSessionRegistry {
	return &MockSessionRegistry{connected: make(map[string]bool)}
}

// Connect marks a room as having a live session.
func (m *MockSessionRegistry) Connect(room string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected[room] = true
}

// Disconnect clears a room.
func (m *MockSessionRegistry) Disconnect(room string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.connected, room)
}

func (m *MockSessionRegistry) Register(ctx context.Context, room, sessionID string) error {
	m.Connect(room)
	return nil
}

func (m *MockSessionRegistry) Deregister(ctx context.Context, room, sessionID string) error {
	m.Disconnect(room)
	return nil
}

func (m *MockSessionRegistry) IsConnected(ctx context.Context, room string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected[room], nil
}

// ──────────────────────────────────────────────
// MOCK PUBLISHER
// ──────────────────────────────────────────────

// PublishedEvent records one room-addressed emit.
type PublishedEvent struct {
	Room    string
	Event   string
	Payload any
}

// MockPublisher records every published event for assertions.
type MockPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent

	// Error injection
	PublishError error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, room string, event realtime.EventName, payload any) error {
	if m.PublishError != nil {
		return m.PublishError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, PublishedEvent{Room: room, Event: string(event), Payload: payload})
	return nil
}

// Events returns a snapshot of everything published.
func (m *MockPublisher) Events() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PublishedEvent, len(m.events))
	copy(out, m.events)
	return out
}

// EventsNamed returns published events matching the name.
func (m *MockPublisher) EventsNamed(name string) []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PublishedEvent
	for _, e := range m.events {
		if e.Event == name {
			out = append(out, e)
		}
	}
	return out
}

// ──────────────────────────────────────────────
// MOCK PRICING CONFIG REPOSITORY
// ──────────────────────────────────────────────

// MockPricingConfigRepository serves a fixed configuration.
type MockPricingConfigRepository struct {
	Config *domain.PricingConfig

	// Error injection
	GetError error
}

// NewMockPricingConfigRepository creates a mock serving cfg.
func NewMockPricingConfigRepository(cfg *domain.PricingConfig) *MockPricingConfigRepository {
	return &MockPricingConfigRepository{Config: cfg}
}

func (m *MockPricingConfigRepository) GetActive(ctx context.Context) (*domain.PricingConfig, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	if m.Config == nil {
		return nil, repository.ErrNotFound
	}
	return m.Config, nil
}

// ──────────────────────────────────────────────
// MOCK RECEIPT REPOSITORY
// ──────────────────────────────────────────────

// MockReceiptRepository is a mock implementation of ReceiptRepository.
type MockReceiptRepository struct {
	mu       sync.RWMutex
	receipts map[string]*domain.Receipt // keyed by booking id

	// Counters
	CreateCallCount int32
}

// NewMockReceiptRepository creates a new mock receipt repository.
func NewMockReceiptRepository() *MockReceiptRepository {
	return &MockReceiptRepository{receipts: make(map[string]*domain.Receipt)}
}

func (m *MockReceiptRepository) Create(ctx context.Context, r *domain.Receipt) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts[r.BookingID] = r
	return nil
}

func (m *MockReceiptRepository) GetByBookingID(ctx context.Context, bookingID string) (*domain.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.receipts[bookingID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// ──────────────────────────────────────────────
// MOCK TASK REPOSITORY
// ──────────────────────────────────────────────

// MockTaskRepository is a mock implementation of TaskRepository.
type MockTaskRepository struct {
	mu    sync.RWMutex
	tasks map[string]*domain.ScheduledTask

	// Counters
	CreateCallCount int32
}

// NewMockTaskRepository creates a new mock task repository.
func NewMockTaskRepository() *MockTaskRepository {
	return &MockTaskRepository{tasks: make(map[string]*domain.ScheduledTask)}
}

func (m *MockTaskRepository) Create(ctx context.Context, t *domain.ScheduledTask) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[t.ID] = t
	return nil
}

func (m *MockTaskRepository) Due(ctx context.Context, now time.Time, limit int) ([]*domain.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.ScheduledTask
	for _, t := range m.tasks {
		if !t.Done && !t.RunAt.After(now) {
			cp := *t
			result = append(result, &cp)
			if len(result) == limit {
				break
			}
		}
	}
	return result, nil
}

func (m *MockTaskRepository) MarkDone(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.Done = true
	return nil
}

func (m *MockTaskRepository) CancelByRef(ctx context.Context, kind domain.TaskKind, refID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.Kind == kind && t.RefID == refID && !t.Done {
			t.Done = true
		}
	}
	return nil
}

// Tasks returns a snapshot of every stored task for assertions.
func (m *MockTaskRepository) Tasks() []*domain.ScheduledTask {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.ScheduledTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		cp := *t
		out = append(out, &cp)
	}
	return out
}

// CountPending returns the number of undone tasks for assertions.
func (m *MockTaskRepository) CountPending() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, t := range m.tasks {
		if !t.Done {
			n++
		}
	}
	return n
}
