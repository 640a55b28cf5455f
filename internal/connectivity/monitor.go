// Package connectivity reports whether the remote systems of record can be reached.
package connectivity

import (
	"context"
	"sync"

	"github.com/dtroode/profilesync/internal/logger"
	"github.com/dtroode/profilesync/internal/model"
)

// Monitor turns a platform network signal into an online flag and an
// offline-to-online notification.
type Monitor struct {
	signal model.NetworkSignal
	logger *logger.Logger

	mu          sync.Mutex
	online      bool
	nextID      int
	listeners   map[int]func()
	unsubscribe func()
}

// NewMonitor creates a new Monitor. The initial state is offline until Start
// or a signal event says otherwise.
func NewMonitor(signal model.NetworkSignal, logger *logger.Logger) *Monitor {
	return &Monitor{
		signal:    signal,
		logger:    logger,
		listeners: make(map[int]func()),
	}
}

// IsOnline asks the signal for the current state. Errors count as offline.
func (m *Monitor) IsOnline(ctx context.Context) bool {
	connected, err := m.signal.IsConnected(ctx)
	if err != nil {
		m.logger.Warn("Monitor: connectivity check failed", "error", err)
		return false
	}
	if !connected {
		return false
	}

	reachable, err := m.signal.IsInternetReachable(ctx)
	if err != nil {
		m.logger.Warn("Monitor: reachability check failed", "error", err)
		return false
	}

	return reachable == nil || *reachable
}

// OnBecameOnline registers callback for offline-to-online transitions.
func (m *Monitor) OnBecameOnline(callback func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.listeners[id] = callback

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.listeners, id)
		})
	}
}

// Start seeds the current state and subscribes to signal changes.
func (m *Monitor) Start(ctx context.Context) {
	online := m.IsOnline(ctx)

	m.mu.Lock()
	if m.unsubscribe != nil {
		m.mu.Unlock()
		return
	}
	m.online = online
	m.mu.Unlock()

	unsubscribe := m.signal.Subscribe(m.handleState)

	m.mu.Lock()
	m.unsubscribe = unsubscribe
	m.mu.Unlock()

	m.logger.Info("Monitor: started", "online", online)
}

// Stop unsubscribes from the signal.
func (m *Monitor) Stop() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (m *Monitor) handleState(state model.NetworkState) {
	online := state.Connected && (state.Reachable == nil || *state.Reachable)

	m.mu.Lock()
	wasOnline := m.online
	m.online = online
	var callbacks []func()
	if online && !wasOnline {
		for _, cb := range m.listeners {
			callbacks = append(callbacks, cb)
		}
	}
	m.mu.Unlock()

	if online == wasOnline {
		return
	}

	m.logger.Info("Monitor: connectivity changed", "online", online)
	for _, cb := range callbacks {
		cb()
	}
}
