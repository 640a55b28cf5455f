package context

import (
	"context"

	"google.golang.org/grpc/metadata"
)

// ownerIDKey is the metadata key used to store and retrieve the owner id in gRPC context.
const (
	ownerIDKey string = "owner_id"
)

// Manager carries the authenticated owner id in incoming gRPC metadata.
type Manager struct{}

// NewManager creates a new gRPC context manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// SetOwnerIDToContext returns a context whose incoming metadata carries ownerID.
// Existing metadata is preserved.
func (m *Manager) SetOwnerIDToContext(ctx context.Context, ownerID string) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		md = metadata.New(map[string]string{ownerIDKey: ownerID})
	} else {
		md = md.Copy()
		md.Set(ownerIDKey, ownerID)
	}

	return metadata.NewIncomingContext(ctx, md)
}

// GetOwnerIDFromContext returns the owner id set by SetOwnerIDToContext.
func (m *Manager) GetOwnerIDFromContext(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}

	ownerIDs := md.Get(ownerIDKey)
	if len(ownerIDs) == 0 || ownerIDs[0] == "" {
		return "", false
	}

	return ownerIDs[0], true
}
