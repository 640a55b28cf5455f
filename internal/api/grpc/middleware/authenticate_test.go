package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dtroode/profilesync/internal/mocks"
	"github.com/dtroode/profilesync/internal/testutil"
)

type ctxKey struct{}

func TestAuthenticate_AuthFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		mdAuthHeader string
		parsedOwner  string
		parseErr     error
		wantErr      bool
		expectParse  bool
	}{
		{
			name:         "missing authorization header",
			mdAuthHeader: "",
			wantErr:      true,
		},
		{
			name:         "empty bearer token",
			mdAuthHeader: "Bearer ",
			wantErr:      true,
		},
		{
			name:         "invalid token",
			mdAuthHeader: "Bearer invalid",
			parseErr:     errors.New("signature is invalid"),
			wantErr:      true,
			expectParse:  true,
		},
		{
			name:         "empty owner from token",
			mdAuthHeader: "Bearer token",
			parsedOwner:  "",
			wantErr:      true,
			expectParse:  true,
		},
		{
			name:         "valid token",
			mdAuthHeader: "Bearer token",
			parsedOwner:  "user-1",
			wantErr:      false,
			expectParse:  true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			lg := testutil.MakeNoopLogger()
			cm := mocks.NewContextManager(t)
			tokens := mocks.NewTokenManager(t)

			authed := context.WithValue(context.Background(), ctxKey{}, "authed")
			if !tt.wantErr {
				cm.On("SetOwnerIDToContext", mock.Anything, tt.parsedOwner).Return(authed)
			}
			if tt.expectParse {
				tokens.On("ParseAccessToken", mock.AnythingOfType("string")).Return(tt.parsedOwner, tt.parseErr)
			}

			m := NewAuthenticate(tokens, cm, lg)

			ctx := context.Background()
			if tt.mdAuthHeader != "" {
				ctx = metadata.NewIncomingContext(ctx, metadata.Pairs("authorization", tt.mdAuthHeader))
			}

			newCtx, err := m.AuthFunc(ctx)

			if tt.wantErr {
				assert.Error(t, err)
				st, ok := status.FromError(err)
				assert.True(t, ok)
				assert.Equal(t, codes.Unauthenticated, st.Code())
				assert.Nil(t, newCtx)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, "authed", newCtx.Value(ctxKey{}))
		})
	}
}
