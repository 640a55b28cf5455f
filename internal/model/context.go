package model

import "context"

// ContextManager carries the authenticated owner id through request contexts.
type ContextManager interface {
	SetOwnerIDToContext(ctx context.Context, ownerID string) context.Context
	GetOwnerIDFromContext(ctx context.Context) (string, bool)
}
