package connectivity

import (
	"context"
	"sync"

	"github.com/dtroode/profilesync/internal/model"
)

var _ model.NetworkSignal = (*StaticSignal)(nil)

// StaticSignal is a NetworkSignal whose state is set by the caller.
type StaticSignal struct {
	mu        sync.Mutex
	state     model.NetworkState
	err       error
	nextID    int
	listeners map[int]func(model.NetworkState)
}

// NewStaticSignal creates a StaticSignal with the given initial state.
func NewStaticSignal(connected bool) *StaticSignal {
	return &StaticSignal{
		state:     model.NetworkState{Connected: connected},
		listeners: make(map[int]func(model.NetworkState)),
	}
}

func (s *StaticSignal) IsConnected(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return false, s.err
	}
	return s.state.Connected, nil
}

func (s *StaticSignal) IsInternetReachable(context.Context) (*bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	if s.state.Reachable == nil {
		return nil, nil
	}
	reachable := *s.state.Reachable
	return &reachable, nil
}

func (s *StaticSignal) Subscribe(listener func(model.NetworkState)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = listener

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Set changes the state and notifies subscribers synchronously.
func (s *StaticSignal) Set(state model.NetworkState) {
	s.mu.Lock()
	s.state = state
	s.err = nil
	listeners := make([]func(model.NetworkState), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(state)
	}
}

// SetError makes every query fail with err until the next Set.
func (s *StaticSignal) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.err = err
}
