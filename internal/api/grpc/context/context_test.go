package context

import (
	stdctx "context"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/metadata"
)

func TestManager_SetAndGetOwnerID(t *testing.T) {
	m := NewManager()
	ctx := m.SetOwnerIDToContext(stdctx.Background(), "user-1")

	got, ok := m.GetOwnerIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "user-1", got)
}

func TestManager_GetOwnerID_NotFound(t *testing.T) {
	m := NewManager()
	_, ok := m.GetOwnerIDFromContext(stdctx.Background())
	assert.False(t, ok)

	ctx := metadata.NewIncomingContext(stdctx.Background(), metadata.New(map[string]string{ownerIDKey: ""}))
	_, ok = m.GetOwnerIDFromContext(ctx)
	assert.False(t, ok)
}

func TestManager_SetOwnerID_WithExistingMetadata(t *testing.T) {
	m := NewManager()
	baseMD := metadata.New(map[string]string{"x-trace-id": "t", ownerIDKey: "spoofed"})
	base := metadata.NewIncomingContext(stdctx.Background(), baseMD)

	ctx := m.SetOwnerIDToContext(base, "user-1")

	got, ok := m.GetOwnerIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "user-1", got)

	md, _ := metadata.FromIncomingContext(ctx)
	assert.Equal(t, []string{"t"}, md.Get("x-trace-id"))

	// The caller's metadata is left untouched.
	assert.Equal(t, []string{"spoofed"}, baseMD.Get(ownerIDKey))
}
