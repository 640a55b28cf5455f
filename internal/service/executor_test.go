package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/profilesync/internal/model"
	"github.com/dtroode/profilesync/internal/testutil"
)

func newTestExecutor(profiles *MockProfileStore, entitlements *MockEntitlementService, now time.Time) *Executor {
	e := NewExecutor(profiles, entitlements, testutil.MakeNoopLogger())
	e.now = func() time.Time { return now }
	return e
}

func TestExecutor_CreateProfile(t *testing.T) {
	ctx := context.Background()
	requestID := uuid.New()
	snapshot := model.ProfileSnapshot{DisplayName: "Ann", Locale: "en"}

	t.Run("success", func(t *testing.T) {
		profiles := &MockProfileStore{}
		profiles.On("CreateProfile", ctx, model.CreateProfileParams{
			OwnerID:   "user-1",
			Email:     "ann@example.com",
			Snapshot:  snapshot,
			RequestID: requestID,
		}).Return(model.Profile{OwnerID: "user-1"}, nil)

		e := newTestExecutor(profiles, &MockEntitlementService{}, time.Now())
		res := e.Execute(ctx, model.QueuedOperation{
			ID:             "op",
			Type:           model.OperationCreateProfile,
			Payload:        snapshot,
			OwnerID:        "user-1",
			AuxiliaryEmail: "ann@example.com",
			RequestID:      requestID,
		})

		assert.True(t, res.Success)
		assert.NoError(t, res.Err)
		profiles.AssertExpectations(t)
	})

	t.Run("missing email", func(t *testing.T) {
		profiles := &MockProfileStore{}
		e := newTestExecutor(profiles, &MockEntitlementService{}, time.Now())

		res := e.Execute(ctx, model.QueuedOperation{Type: model.OperationCreateProfile, Payload: snapshot, OwnerID: "user-1"})

		assert.False(t, res.Success)
		var validationErr *model.ValidationError
		require.ErrorAs(t, res.Err, &validationErr)
		assert.Equal(t, "email", validationErr.Field)
		profiles.AssertNotCalled(t, "CreateProfile", mock.Anything, mock.Anything)
	})

	t.Run("remote failure keeps code", func(t *testing.T) {
		profiles := &MockProfileStore{}
		profiles.On("CreateProfile", ctx, mock.Anything).
			Return(model.Profile{}, model.NewRemoteError(model.CodeUnavailable, "create_profile", errors.New("down")))

		e := newTestExecutor(profiles, &MockEntitlementService{}, time.Now())
		res := e.Execute(ctx, model.QueuedOperation{Type: model.OperationCreateProfile, Payload: snapshot, OwnerID: "user-1", AuxiliaryEmail: "a@b.c"})

		assert.False(t, res.Success)
		code, ok := ErrorCodeOf(res.Err)
		require.True(t, ok)
		assert.Equal(t, model.CodeUnavailable, code)
	})
}

func TestExecutor_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	fields := map[string]any{"displayName": "Bo"}

	profiles := &MockProfileStore{}
	profiles.On("UpdateProfile", ctx, "user-1", fields).Return(nil).Once()

	e := newTestExecutor(profiles, &MockEntitlementService{}, time.Now())

	require.NoError(t, e.Run(ctx, model.QueuedOperation{Type: model.OperationUpdateProfile, Payload: model.ProfileUpdate{Fields: fields}, OwnerID: "user-1"}))

	err := e.Run(ctx, model.QueuedOperation{Type: model.OperationUpdateProfile, Payload: model.ProfileUpdate{}, OwnerID: "user-1"})
	var validationErr *model.ValidationError
	assert.ErrorAs(t, err, &validationErr)

	profiles.AssertExpectations(t)
}

func TestExecutor_CreateTrialRecord(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	requestID := uuid.New()

	tests := []struct {
		name     string
		params   model.TrialParams
		wantDays int
		grant    bool
	}{
		{name: "default duration", params: model.TrialParams{}, wantDays: 7},
		{name: "custom duration", params: model.TrialParams{DurationDays: 14}, wantDays: 14},
		{name: "with entitlement grant", params: model.TrialParams{DurationDays: 3, GrantEntitlement: true}, wantDays: 3, grant: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profiles := &MockProfileStore{}
			entitlements := &MockEntitlementService{}

			record := model.TrialRecord{
				OwnerID:      "user-1",
				Status:       model.TrialRecordActive,
				StartDate:    now,
				EndDate:      now.AddDate(0, 0, tt.wantDays),
				DurationDays: tt.wantDays,
				RequestID:    requestID,
			}
			profiles.On("CreateTrialRecord", ctx, record).Return(record, nil)
			if tt.grant {
				entitlements.On("CreateTrialPurchase", ctx, "user-1").Return(nil)
			}

			e := newTestExecutor(profiles, entitlements, now)
			err := e.Run(ctx, model.QueuedOperation{
				Type:      model.OperationCreateTrialRecord,
				Payload:   tt.params,
				OwnerID:   "user-1",
				RequestID: requestID,
			})

			require.NoError(t, err)
			profiles.AssertExpectations(t)
			entitlements.AssertExpectations(t)
		})
	}
}

func TestExecutor_Run_InvalidOperations(t *testing.T) {
	e := newTestExecutor(&MockProfileStore{}, &MockEntitlementService{}, time.Now())
	ctx := context.Background()

	err := e.Run(ctx, model.QueuedOperation{Type: model.OperationUpdateProfile, Payload: model.ProfileUpdate{Fields: map[string]any{"a": 1}}})
	var validationErr *model.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "owner_id", validationErr.Field)

	err = e.Run(ctx, model.QueuedOperation{Type: model.OperationUpdateProfile, OwnerID: "user-1"})
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "payload", validationErr.Field)
}

func TestExecutor_Run_RecoversPanic(t *testing.T) {
	profiles := &MockProfileStore{}
	profiles.On("UpdateProfile", mock.Anything, "user-1", mock.Anything).Panic("driver exploded")

	e := newTestExecutor(profiles, &MockEntitlementService{}, time.Now())
	res := e.Execute(context.Background(), model.QueuedOperation{
		Type:    model.OperationUpdateProfile,
		Payload: model.ProfileUpdate{Fields: map[string]any{"a": 1}},
		OwnerID: "user-1",
	})

	assert.False(t, res.Success)
	code, ok := ErrorCodeOf(res.Err)
	require.True(t, ok)
	assert.Equal(t, model.CodeInternal, code)
}
