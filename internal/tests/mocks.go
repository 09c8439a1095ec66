package tests

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/events"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK DRIVER REPOSITORY
// ──────────────────────────────────────────────

// MockDriverRepository is a mock implementation of DriverRepository.
type MockDriverRepository struct {
	mu       sync.RWMutex
	drivers  map[string]*domain.Driver
	vehicles map[string]*domain.Vehicle // keyed by driver id

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
		drivers:  make(map[string]*domain.Driver),
		vehicles: make(map[string]*domain.Vehicle),
	}
}

// AddDriver adds a driver to the mock repository.
func (m *MockDriverRepository) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
}

// AddVehicle registers a vehicle as the driver's active vehicle.
func (m *MockDriverRepository) AddVehicle(vehicle *domain.Vehicle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[vehicle.DriverID] = vehicle
}

func (m *MockDriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
	return nil
}

func (m *MockDriverRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	driver, ok := m.drivers[id]
	if !ok || driver.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *driver
	return &copy, nil
}

func (m *MockDriverRepository) UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error {
	atomic.AddInt32(&m.UpdateStatusCallCount, 1)
	if m.UpdateStatusError != nil {
		return m.UpdateStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	driver.Status = status
	return nil
}

func (m *MockDriverRepository) CreateVehicle(ctx context.Context, vehicle *domain.Vehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[vehicle.DriverID] = vehicle
	return nil
}

func (m *MockDriverRepository) GetActiveVehicle(ctx context.Context, driverID string) (*domain.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vehicle, ok := m.vehicles[driverID]
	if !ok || !vehicle.Active {
		return nil, repository.ErrNotFound
	}
	copy := *vehicle
	return &copy, nil
}

// GetDriver returns driver for test assertions.
func (m *MockDriverRepository) GetDriver(id string) *domain.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.drivers[id]
}

// ──────────────────────────────────────────────
// MOCK RIDE REPOSITORY
// ──────────────────────────────────────────────

// MockRideRepository is a mock implementation of RideRepository.
type MockRideRepository struct {
	mu    sync.RWMutex
	rides map[string]*domain.Ride

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32

	// Error injection
	CreateError error
	UpdateError error
	GetError    error
}

// NewMockRideRepository creates a new mock ride repository.
func NewMockRideRepository() *MockRideRepository {
	return &MockRideRepository{
		rides: make(map[string]*domain.Ride),
	}
}

// AddRide adds a ride to the mock repository.
func (m *MockRideRepository) AddRide(ride *domain.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[ride.ID] = ride
}

func (m *MockRideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[ride.ID] = ride
	return nil
}

func (m *MockRideRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Ride, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok || ride.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *ride
	return &copy, nil
}

func (m *MockRideRepository) GetOpenByTenant(ctx context.Context, tenantID string) ([]*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Ride, 0)
	for _, r := range m.rides {
		if r.TenantID != tenantID {
			continue
		}
		if r.Status == domain.RideStatusRequested || r.Status == domain.RideStatusSearching {
			copy := *r
			result = append(result, &copy)
		}
	}
	return result, nil
}

func (m *MockRideRepository) Update(ctx context.Context, ride *domain.Ride, fromStatus domain.RideStatus) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.rides[ride.ID]
	if !ok || existing.TenantID != ride.TenantID || existing.Status != fromStatus {
		return repository.ErrConflict
	}
	copy := *ride
	m.rides[ride.ID] = &copy
	return nil
}

func (m *MockRideRepository) UpdateStatusFrom(ctx context.Context, tenantID, id string, from, to domain.RideStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[id]
	if !ok || ride.TenantID != tenantID || ride.Status != from {
		return repository.ErrConflict
	}
	ride.Status = to
	return nil
}

// GetRide returns the ride by ID (for test assertions).
func (m *MockRideRepository) GetRide(id string) *domain.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rides[id]
}

// RideStatus returns the current status for assertions.
func (m *MockRideRepository) RideStatus(id string) domain.RideStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ride, ok := m.rides[id]; ok {
		return ride.Status
	}
	return ""
}

// ──────────────────────────────────────────────
// MOCK TENANT REPOSITORY
// ──────────────────────────────────────────────

// MockTenantRepository is a mock implementation of TenantRepository.
type MockTenantRepository struct {
	mu      sync.RWMutex
	pricing map[string]*domain.PricingConfig

	// Error injection
	GetError error
}

// NewMockTenantRepository creates a new mock tenant repository.
func NewMockTenantRepository() *MockTenantRepository {
	return &MockTenantRepository{
		pricing: make(map[string]*domain.PricingConfig),
	}
}

// SetPricing seeds a tenant's pricing configuration.
func (m *MockTenantRepository) SetPricing(cfg *domain.PricingConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pricing[cfg.TenantID] = cfg
}

func (m *MockTenantRepository) GetPricing(ctx context.Context, tenantID string) (*domain.PricingConfig, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.pricing[tenantID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *cfg
	return &copy, nil
}

func (m *MockTenantRepository) UpsertPricing(ctx context.Context, cfg *domain.PricingConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *cfg
	m.pricing[cfg.TenantID] = &copy
	return nil
}

// ──────────────────────────────────────────────
// MOCK ASSIGNMENT STORE
// ──────────────────────────────────────────────

// MockAssignmentStore emulates the transactional conditional assignment over
// the mock ride and driver repositories. One mutex serializes all attempts,
// which gives the same at-most-once guarantee as the database transaction.
type MockAssignmentStore struct {
	mu         sync.Mutex
	rideRepo   *MockRideRepository
	driverRepo *MockDriverRepository

	// Counters for verification
	AssignCallCount int32
	SuccessCount    int32

	// Error injection
	AssignError error
}

// NewMockAssignmentStore creates a mock assignment store backed by the given
// mock repositories.
func NewMockAssignmentStore(rideRepo *MockRideRepository, driverRepo *MockDriverRepository) *MockAssignmentStore {
	return &MockAssignmentStore{
		rideRepo:   rideRepo,
		driverRepo: driverRepo,
	}
}

func (m *MockAssignmentStore) AssignIfSearching(ctx context.Context, tenantID, rideID, driverID string) (string, error) {
	atomic.AddInt32(&m.AssignCallCount, 1)
	if m.AssignError != nil {
		return "", m.AssignError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	driver, err := m.driverRepo.GetByID(ctx, tenantID, driverID)
	if err != nil {
		return "", repository.ErrConflict
	}
	if driver.Status != domain.DriverStatusOnline {
		return "", repository.ErrConflict
	}

	vehicle, err := m.driverRepo.GetActiveVehicle(ctx, driverID)
	if err != nil {
		return "", repository.ErrConflict
	}

	if err := m.rideRepo.UpdateStatusFrom(ctx, tenantID, rideID,
		domain.RideStatusSearching, domain.RideStatusDriverAssigned); err != nil {
		return "", repository.ErrConflict
	}

	_ = m.driverRepo.UpdateStatus(ctx, driverID, domain.DriverStatusOnTrip)

	m.rideRepo.mu.Lock()
	if ride, ok := m.rideRepo.rides[rideID]; ok {
		ride.DriverID = driverID
		ride.VehicleID = vehicle.ID
	}
	m.rideRepo.mu.Unlock()

	atomic.AddInt32(&m.SuccessCount, 1)
	return vehicle.ID, nil
}

// ──────────────────────────────────────────────
// MOCK LOCATION STORE
// ──────────────────────────────────────────────

// MockLocationStore is a mock implementation of the driver geo index.
type MockLocationStore struct {
	mu        sync.RWMutex
	locations map[string][]redis.DriverLocation // keyed by tenant

	// Counters
	UpdateLocationCallCount int32

	// Error injection
	UpdateLocationError    error
	FindNearbyDriversError error
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{
		locations: make(map[string][]redis.DriverLocation),
	}
}

// AddDriverLocation adds a driver location to the mock store.
func (m *MockLocationStore) AddDriverLocation(tenantID string, loc redis.DriverLocation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[tenantID] = append(m.locations[tenantID], loc)
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, tenantID, driverID string, lat, lng float64) error {
	atomic.AddInt32(&m.UpdateLocationCallCount, 1)
	if m.UpdateLocationError != nil {
		return m.UpdateLocationError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	locs := m.locations[tenantID]
	for i, loc := range locs {
		if loc.DriverID == driverID {
			locs[i].Lat = lat
			locs[i].Lng = lng
			return nil
		}
	}
	m.locations[tenantID] = append(locs, redis.DriverLocation{
		DriverID: driverID,
		Lat:      lat,
		Lng:      lng,
	})
	return nil
}

func (m *MockLocationStore) FindNearbyDrivers(ctx context.Context, tenantID string, lat, lng, radiusKm float64, limit int) ([]redis.DriverLocation, error) {
	if m.FindNearbyDriversError != nil {
		return nil, m.FindNearbyDriversError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	// The mock returns the tenant's locations as seeded, no geo filtering.
	locs := m.locations[tenantID]
	if limit > 0 && len(locs) > limit {
		locs = locs[:limit]
	}
	result := make([]redis.DriverLocation, len(locs))
	copy(result, locs)
	return result, nil
}

func (m *MockLocationStore) RemoveLocation(ctx context.Context, tenantID, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	locs := m.locations[tenantID]
	for i, loc := range locs {
		if loc.DriverID == driverID {
			m.locations[tenantID] = append(locs[:i], locs[i+1:]...)
			return nil
		}
	}
	return nil
}

// HasLocation checks if a driver location exists.
func (m *MockLocationStore) HasLocation(tenantID, driverID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, loc := range m.locations[tenantID] {
		if loc.DriverID == driverID {
			return true
		}
	}
	return false
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of distributed locking.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]time.Time

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error

	// Force driver lock failure
	ForceAcquireFailure bool

	// AllowAllRideLocks makes every ride lock acquisition succeed, so tests
	// can race multiple dispatch passes into the assignment itself.
	AllowAllRideLocks bool
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]time.Time),
	}
}

func (m *MockLockStore) acquire(key string, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if expiry, exists := m.locks[key]; exists && time.Now().Before(expiry) {
		return false
	}
	m.locks[key] = time.Now().Add(ttl)
	return true
}

func (m *MockLockStore) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, key)
}

func (m *MockLockStore) AcquireDriverLock(ctx context.Context, driverID string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	if m.ForceAcquireFailure {
		return false, nil
	}
	return m.acquire("lock:driver:"+driverID, ttl), nil
}

func (m *MockLockStore) ReleaseDriverLock(ctx context.Context, driverID string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.release("lock:driver:" + driverID)
	return nil
}

func (m *MockLockStore) AcquireRideLock(ctx context.Context, rideID string, ttl time.Duration) (bool, error) {
	if m.AllowAllRideLocks {
		return true, nil
	}
	return m.acquire("lock:ride:"+rideID, ttl), nil
}

func (m *MockLockStore) ReleaseRideLock(ctx context.Context, rideID string) error {
	m.release("lock:ride:" + rideID)
	return nil
}

// IsDriverLocked checks if a driver is locked (for test assertions).
func (m *MockLockStore) IsDriverLocked(driverID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, exists := m.locks["lock:driver:"+driverID]
	return exists && time.Now().Before(expiry)
}

// ──────────────────────────────────────────────
// MOCK EVENT PUBLISHER
// ──────────────────────────────────────────────

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []publishedEvent

	// Error injection
	PublishError error
}

type publishedEvent struct {
	kind string
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, ev events.Event) error {
	if m.PublishError != nil {
		return m.PublishError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, publishedEvent{kind: ev.Kind()})
	return nil
}

// Kinds returns the kinds of all published events in order.
func (m *MockPublisher) Kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	kinds := make([]string, len(m.events))
	for i, ev := range m.events {
		kinds[i] = ev.kind
	}
	return kinds
}

// WaitForKind polls until an event of the kind was published or the timeout
// elapses. Publication is fire-and-forget, so assertions need to wait.
func (m *MockPublisher) WaitForKind(kind string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, k := range m.Kinds() {
			if k == kind {
				return true
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

// ──────────────────────────────────────────────
// MOCK DRIVER SEARCHER
// ──────────────────────────────────────────────

// MockSearcher returns a fixed candidate list.
type MockSearcher struct {
	mu         sync.Mutex
	Candidates []domain.CandidateDriver

	// Error injection
	SearchError error

	// Counters
	SearchCallCount int32
}

func (m *MockSearcher) FindNearby(ctx context.Context, tenantID string, lat, lng float64, vehicleType domain.VehicleType) ([]domain.CandidateDriver, error) {
	atomic.AddInt32(&m.SearchCallCount, 1)
	if m.SearchError != nil {
		return nil, m.SearchError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]domain.CandidateDriver, len(m.Candidates))
	copy(result, m.Candidates)
	return result, nil
}

// ──────────────────────────────────────────────
// HELPER ERRORS
// ──────────────────────────────────────────────

var (
	ErrMockDBConstraint = errors.New("mock: unique constraint violation")
	ErrMockTimeout      = errors.New("mock: operation timeout")
)

// Compile-time interface checks.
var (
	_ repository.DriverRepository  = (*MockDriverRepository)(nil)
	_ repository.RideRepository    = (*MockRideRepository)(nil)
	_ repository.TenantRepository  = (*MockTenantRepository)(nil)
	_ repository.AssignmentStore   = (*MockAssignmentStore)(nil)
	_ redis.LocationStoreInterface = (*MockLocationStore)(nil)
	_ redis.LockStoreInterface     = (*MockLockStore)(nil)
	_ events.Publisher             = (*MockPublisher)(nil)
)
