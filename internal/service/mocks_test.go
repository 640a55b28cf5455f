package service

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/profilesync/internal/model"
)

// MockProfileStore mocks the ProfileStore interface
type MockProfileStore struct {
	mock.Mock
}

func (m *MockProfileStore) CreateProfile(ctx context.Context, params model.CreateProfileParams) (model.Profile, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(model.Profile), args.Error(1)
}

func (m *MockProfileStore) UpdateProfile(ctx context.Context, ownerID string, fields map[string]any) error {
	args := m.Called(ctx, ownerID, fields)
	return args.Error(0)
}

func (m *MockProfileStore) GetProfile(ctx context.Context, ownerID string) (model.Profile, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).(model.Profile), args.Error(1)
}

func (m *MockProfileStore) CreateTrialRecord(ctx context.Context, record model.TrialRecord) (model.TrialRecord, error) {
	args := m.Called(ctx, record)
	return args.Get(0).(model.TrialRecord), args.Error(1)
}

// MockEntitlementService mocks the EntitlementService interface
type MockEntitlementService struct {
	mock.Mock
}

func (m *MockEntitlementService) GetStatus(ctx context.Context, ownerID string) (model.EntitlementStatus, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).(model.EntitlementStatus), args.Error(1)
}

func (m *MockEntitlementService) CreateTrialPurchase(ctx context.Context, ownerID string) error {
	args := m.Called(ctx, ownerID)
	return args.Error(0)
}

// fakeMonitor is a ConnectivityMonitor with a settable state.
type fakeMonitor struct {
	mu        sync.Mutex
	online    bool
	callbacks map[int]func()
	nextID    int
}

func newFakeMonitor(online bool) *fakeMonitor {
	return &fakeMonitor{online: online, callbacks: make(map[int]func())}
}

func (m *fakeMonitor) IsOnline(context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *fakeMonitor) OnBecameOnline(callback func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.callbacks[id] = callback

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.callbacks, id)
	}
}

func (m *fakeMonitor) setOnline(online bool) {
	m.mu.Lock()
	wasOnline := m.online
	m.online = online
	var callbacks []func()
	if online && !wasOnline {
		for _, cb := range m.callbacks {
			callbacks = append(callbacks, cb)
		}
	}
	m.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

func (m *fakeMonitor) subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.callbacks)
}

// fakeExecutor records the operations it runs and answers with fn.
type fakeExecutor struct {
	mu    sync.Mutex
	calls []model.QueuedOperation
	fn    func(op model.QueuedOperation) error
}

func (e *fakeExecutor) Execute(ctx context.Context, op model.QueuedOperation) model.ExecutionResult {
	if err := e.Run(ctx, op); err != nil {
		return model.ExecutionResult{Err: err}
	}
	return model.ExecutionResult{Success: true}
}

func (e *fakeExecutor) Run(_ context.Context, op model.QueuedOperation) error {
	e.mu.Lock()
	e.calls = append(e.calls, op)
	fn := e.fn
	e.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(op)
}

func (e *fakeExecutor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

// failingStore is a KeyValueStore whose every call fails.
type failingStore struct {
	err error
}

func (s failingStore) Get(context.Context, string) (string, bool, error) { return "", false, s.err }
func (s failingStore) Set(context.Context, string, string) error          { return s.err }
func (s failingStore) Delete(context.Context, string) error               { return s.err }
