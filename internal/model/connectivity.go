package model

import "context"

// NetworkState is a platform network status change.
type NetworkState struct {
	Connected bool
	// Reachable is nil when internet reachability is unknown.
	Reachable *bool
}

// NetworkSignal is the platform's network status source.
type NetworkSignal interface {
	IsConnected(ctx context.Context) (bool, error)
	IsInternetReachable(ctx context.Context) (*bool, error)
	Subscribe(listener func(NetworkState)) (unsubscribe func())
}
