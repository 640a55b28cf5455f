package handler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dtroode/profilesync/internal/api/grpc/syncapi"
	"github.com/dtroode/profilesync/internal/mocks"
	"github.com/dtroode/profilesync/internal/model"
	"github.com/dtroode/profilesync/internal/service"
	"github.com/dtroode/profilesync/internal/structcodec"
	"github.com/dtroode/profilesync/internal/testutil"
)

// stubService records the arguments of the last call.
type stubService struct {
	result  model.MutationResult
	trial   model.TrialStatus
	queue   model.QueueStatus
	sync    model.SyncResult
	owner   string
	email   string
	profile model.ProfileSnapshot
	fields  map[string]any
	opts    service.MutationOptions
	calls   []string
}

func (s *stubService) record(name, owner string, opts []service.MutationOption) {
	s.calls = append(s.calls, name)
	s.owner = owner
	s.opts = service.MutationOptions{}
	for _, opt := range opts {
		opt(&s.opts)
	}
}

func (s *stubService) CreateProfile(_ context.Context, ownerID, email string, profile model.ProfileSnapshot, opts ...service.MutationOption) model.MutationResult {
	s.record("CreateProfile", ownerID, opts)
	s.email, s.profile = email, profile
	return s.result
}

func (s *stubService) CreateProfileWithTrial(_ context.Context, ownerID, email string, profile model.ProfileSnapshot, opts ...service.MutationOption) model.MutationResult {
	s.record("CreateProfileWithTrial", ownerID, opts)
	s.email, s.profile = email, profile
	return s.result
}

func (s *stubService) UpdateProfile(_ context.Context, ownerID string, fields map[string]any, opts ...service.MutationOption) model.MutationResult {
	s.record("UpdateProfile", ownerID, opts)
	s.fields = fields
	return s.result
}

func (s *stubService) GetTrialStatus(_ context.Context, ownerID string) model.TrialStatus {
	s.record("GetTrialStatus", ownerID, nil)
	return s.trial
}

func (s *stubService) GetQueueStatus(context.Context) model.QueueStatus {
	s.record("GetQueueStatus", "", nil)
	return s.queue
}

func (s *stubService) ForceSyncNow(context.Context) model.SyncResult {
	s.record("ForceSyncNow", "", nil)
	return s.sync
}

func newTestHandler(t *testing.T, svc *stubService) *ProfileSync {
	t.Helper()
	cm := mocks.NewContextManager(t)
	cm.On("GetOwnerIDFromContext", mock.Anything).Return("user-1", true)
	return NewProfileSync(svc, cm, testutil.MakeNoopLogger())
}

func mustEncode(t *testing.T, v any) *structpb.Struct {
	t.Helper()
	s, err := structcodec.Encode(v)
	require.NoError(t, err)
	return s
}

func decodeMutation(t *testing.T, s *structpb.Struct) syncapi.MutationResponse {
	t.Helper()
	var resp syncapi.MutationResponse
	require.NoError(t, structcodec.Decode(s, &resp))
	return resp
}

func TestProfileSync_CreateProfile(t *testing.T) {
	t.Parallel()

	svc := &stubService{result: model.MutationResult{Success: true, Queued: true, OperationID: "op-1", OperationIDs: []string{"op-1"}}}
	h := newTestHandler(t, svc)

	queue := false
	in := mustEncode(t, syncapi.CreateProfileRequest{
		Email:              "ann@example.com",
		Profile:            model.ProfileSnapshot{DisplayName: "Ann", Locale: "en"},
		EnableOfflineQueue: &queue,
	})

	out, err := h.CreateProfile(context.Background(), in)
	require.NoError(t, err)

	resp := decodeMutation(t, out)
	assert.True(t, resp.Success)
	assert.True(t, resp.Queued)
	assert.Equal(t, "op-1", resp.OperationID)
	assert.Empty(t, resp.Error)

	assert.Equal(t, []string{"CreateProfile"}, svc.calls)
	assert.Equal(t, "user-1", svc.owner)
	assert.Equal(t, "ann@example.com", svc.email)
	assert.Equal(t, "Ann", svc.profile.DisplayName)
	assert.False(t, svc.opts.EnableOfflineQueue)
}

func TestProfileSync_CreateProfileWithTrial_Options(t *testing.T) {
	t.Parallel()

	svc := &stubService{result: model.MutationResult{Success: true, OperationIDs: []string{"a", "b"}, OperationID: "a"}}
	h := newTestHandler(t, svc)

	queue, grant := true, true
	in := mustEncode(t, syncapi.CreateProfileRequest{
		Email:              "ann@example.com",
		EnableOfflineQueue: &queue,
		TrialDurationDays:  14,
		GrantEntitlement:   &grant,
	})

	out, err := h.CreateProfileWithTrial(context.Background(), in)
	require.NoError(t, err)

	resp := decodeMutation(t, out)
	assert.Equal(t, []string{"a", "b"}, resp.OperationIDs)
	assert.Equal(t, service.MutationOptions{EnableOfflineQueue: true, TrialDurationDays: 14, GrantEntitlement: true}, svc.opts)
}

func TestProfileSync_Mutation_Errors(t *testing.T) {
	t.Parallel()

	t.Run("validation error becomes InvalidArgument", func(t *testing.T) {
		t.Parallel()

		svc := &stubService{result: model.MutationResult{Err: model.NewValidationError("email", "required to create a profile")}}
		h := newTestHandler(t, svc)

		_, err := h.CreateProfile(context.Background(), mustEncode(t, syncapi.CreateProfileRequest{}))
		st, ok := status.FromError(err)
		require.True(t, ok)
		assert.Equal(t, codes.InvalidArgument, st.Code())
	})

	t.Run("remote error is reported in the body", func(t *testing.T) {
		t.Parallel()

		remote := model.NewRemoteError(model.CodeUnavailable, "update_profile", errors.New("connection refused"))
		svc := &stubService{result: model.MutationResult{Queued: true, OperationID: "op-9", Err: remote}}
		h := newTestHandler(t, svc)

		out, err := h.UpdateProfile(context.Background(), mustEncode(t, syncapi.UpdateProfileRequest{Fields: map[string]any{"locale": "fr"}}))
		require.NoError(t, err)

		resp := decodeMutation(t, out)
		assert.False(t, resp.Success)
		assert.True(t, resp.Queued)
		assert.Equal(t, "op-9", resp.OperationID)
		assert.Equal(t, string(model.CodeUnavailable), resp.ErrorCode)
		assert.Contains(t, resp.Error, "connection refused")
		assert.Equal(t, map[string]any{"locale": "fr"}, svc.fields)
	})

	t.Run("malformed request", func(t *testing.T) {
		t.Parallel()

		svc := &stubService{}
		h := newTestHandler(t, svc)

		in, err := structpb.NewStruct(map[string]any{"fields": "not-a-map"})
		require.NoError(t, err)

		_, err = h.UpdateProfile(context.Background(), in)
		st, _ := status.FromError(err)
		assert.Equal(t, codes.InvalidArgument, st.Code())
		assert.Empty(t, svc.calls)
	})
}

func TestProfileSync_Unauthenticated(t *testing.T) {
	t.Parallel()

	cm := mocks.NewContextManager(t)
	cm.On("GetOwnerIDFromContext", mock.Anything).Return("", false)
	svc := &stubService{}
	h := NewProfileSync(svc, cm, testutil.MakeNoopLogger())

	calls := []func(context.Context, *structpb.Struct) (*structpb.Struct, error){
		h.CreateProfile, h.CreateProfileWithTrial, h.UpdateProfile, h.GetTrialStatus, h.GetQueueStatus, h.ForceSync,
	}
	for _, call := range calls {
		_, err := call(context.Background(), &structpb.Struct{})
		st, ok := status.FromError(err)
		require.True(t, ok)
		assert.Equal(t, codes.Unauthenticated, st.Code())
	}
	assert.Empty(t, svc.calls)
}

func TestProfileSync_GetTrialStatus(t *testing.T) {
	t.Parallel()

	end := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	svc := &stubService{trial: model.TrialStatus{
		IsActive:      true,
		EndDate:       &end,
		DaysRemaining: 5,
		Source:        model.TrialSourceBoth,
		Usage:         model.UsageCounters{GamesLogged: 2},
	}}
	h := newTestHandler(t, svc)

	out, err := h.GetTrialStatus(context.Background(), &structpb.Struct{})
	require.NoError(t, err)

	var resp syncapi.TrialStatusResponse
	require.NoError(t, structcodec.Decode(out, &resp))
	assert.True(t, resp.IsActive)
	require.NotNil(t, resp.EndDate)
	assert.True(t, end.Equal(*resp.EndDate))
	assert.Equal(t, 5, resp.DaysRemaining)
	assert.Equal(t, "both", resp.Source)
	assert.Equal(t, 2, resp.Usage.GamesLogged)
	assert.Equal(t, "user-1", svc.owner)
}

func TestProfileSync_GetQueueStatus(t *testing.T) {
	t.Parallel()

	attempt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &stubService{queue: model.QueueStatus{QueueLength: 3, IsOnline: false, LastSyncAttempt: &attempt}}
	h := newTestHandler(t, svc)

	out, err := h.GetQueueStatus(context.Background(), &structpb.Struct{})
	require.NoError(t, err)

	var resp syncapi.QueueStatusResponse
	require.NoError(t, structcodec.Decode(out, &resp))
	assert.Equal(t, 3, resp.QueueLength)
	assert.False(t, resp.IsOnline)
	require.NotNil(t, resp.LastSyncAttempt)
	assert.True(t, attempt.Equal(*resp.LastSyncAttempt))
	assert.Nil(t, resp.LastSuccessfulSync)
}

func TestProfileSync_ForceSync(t *testing.T) {
	t.Parallel()

	svc := &stubService{sync: model.SyncResult{SuccessCount: 2, FailedCount: 1, Errors: []error{errors.New("boom")}}}
	h := newTestHandler(t, svc)

	out, err := h.ForceSync(context.Background(), &structpb.Struct{})
	require.NoError(t, err)

	var resp syncapi.SyncResponse
	require.NoError(t, structcodec.Decode(out, &resp))
	assert.Equal(t, syncapi.SyncResponse{SuccessCount: 2, FailedCount: 1, Errors: []string{"boom"}}, resp)
	assert.Equal(t, []string{"ForceSyncNow"}, svc.calls)
}
