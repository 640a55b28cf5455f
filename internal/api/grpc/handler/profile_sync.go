package handler

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dtroode/profilesync/internal/api/grpc/syncapi"
	"github.com/dtroode/profilesync/internal/logger"
	"github.com/dtroode/profilesync/internal/model"
	"github.com/dtroode/profilesync/internal/service"
	"github.com/dtroode/profilesync/internal/structcodec"
)

// ProfileSyncService defines the sync engine operations exposed over gRPC.
type ProfileSyncService interface {
	CreateProfile(ctx context.Context, ownerID, email string, profile model.ProfileSnapshot, opts ...service.MutationOption) model.MutationResult
	CreateProfileWithTrial(ctx context.Context, ownerID, email string, profile model.ProfileSnapshot, opts ...service.MutationOption) model.MutationResult
	UpdateProfile(ctx context.Context, ownerID string, fields map[string]any, opts ...service.MutationOption) model.MutationResult
	GetTrialStatus(ctx context.Context, ownerID string) model.TrialStatus
	GetQueueStatus(ctx context.Context) model.QueueStatus
	ForceSyncNow(ctx context.Context) model.SyncResult
}

var _ syncapi.ProfileSyncServer = (*ProfileSync)(nil)

// ProfileSync handles gRPC endpoints of the ProfileSync service.
type ProfileSync struct {
	service        ProfileSyncService
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewProfileSync creates a new ProfileSync handler.
func NewProfileSync(service ProfileSyncService, contextManager model.ContextManager, logger *logger.Logger) *ProfileSync {
	return &ProfileSync{
		service:        service,
		contextManager: contextManager,
		logger:         logger,
	}
}

// CreateProfile creates the caller's profile.
func (h *ProfileSync) CreateProfile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ownerID, err := h.extractOwnerIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var req syncapi.CreateProfileRequest
	if err := structcodec.Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	h.logger.Debug("ProfileSync handler: processing create profile request", "owner_id", ownerID)

	res := h.service.CreateProfile(ctx, ownerID, req.Email, req.Profile, createOptions(req)...)
	return h.mutationResponse(ownerID, "create_profile", res)
}

// CreateProfileWithTrial creates the caller's profile and trial.
func (h *ProfileSync) CreateProfileWithTrial(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ownerID, err := h.extractOwnerIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var req syncapi.CreateProfileRequest
	if err := structcodec.Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	h.logger.Debug("ProfileSync handler: processing create profile with trial request",
		"owner_id", ownerID,
		"trial_duration_days", req.TrialDurationDays)

	res := h.service.CreateProfileWithTrial(ctx, ownerID, req.Email, req.Profile, createOptions(req)...)
	return h.mutationResponse(ownerID, "create_profile_with_trial", res)
}

// UpdateProfile merges fields into the caller's profile.
func (h *ProfileSync) UpdateProfile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ownerID, err := h.extractOwnerIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var req syncapi.UpdateProfileRequest
	if err := structcodec.Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	var opts []service.MutationOption
	if req.EnableOfflineQueue != nil {
		opts = append(opts, service.WithOfflineQueue(*req.EnableOfflineQueue))
	}

	res := h.service.UpdateProfile(ctx, ownerID, req.Fields, opts...)
	return h.mutationResponse(ownerID, "update_profile", res)
}

// GetTrialStatus returns the caller's reconciled trial status.
func (h *ProfileSync) GetTrialStatus(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	ownerID, err := h.extractOwnerIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	st := h.service.GetTrialStatus(ctx, ownerID)
	return encode(syncapi.TrialStatusResponse{
		IsActive:      st.IsActive,
		EndDate:       st.EndDate,
		DaysRemaining: st.DaysRemaining,
		Source:        string(st.Source),
		Usage:         st.Usage,
	})
}

// GetQueueStatus returns the sync queue diagnostics.
func (h *ProfileSync) GetQueueStatus(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if _, err := h.extractOwnerIDFromContext(ctx); err != nil {
		return nil, err
	}

	st := h.service.GetQueueStatus(ctx)
	return encode(syncapi.QueueStatusResponse{
		QueueLength:        st.QueueLength,
		IsOnline:           st.IsOnline,
		SyncInProgress:     st.SyncInProgress,
		LastSyncAttempt:    st.LastSyncAttempt,
		LastSuccessfulSync: st.LastSuccessfulSync,
	})
}

// ForceSync drains the sync queue now.
func (h *ProfileSync) ForceSync(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	ownerID, err := h.extractOwnerIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	h.logger.Info("ProfileSync handler: forced sync requested", "owner_id", ownerID)

	res := h.service.ForceSyncNow(ctx)
	resp := syncapi.SyncResponse{
		SuccessCount: res.SuccessCount,
		FailedCount:  res.FailedCount,
		DeadLettered: res.DeadLettered,
		Skipped:      res.Skipped,
	}
	for _, e := range res.Errors {
		resp.Errors = append(resp.Errors, e.Error())
	}
	return encode(resp)
}

// mutationResponse converts res. Validation failures become gRPC errors;
// remote failures are reported in the body so queued ids are not lost.
func (h *ProfileSync) mutationResponse(ownerID, op string, res model.MutationResult) (*structpb.Struct, error) {
	var validationErr *model.ValidationError
	if errors.As(res.Err, &validationErr) {
		return nil, handleError(res.Err)
	}

	resp := syncapi.MutationResponse{
		Success:      res.Success,
		Queued:       res.Queued,
		OperationID:  res.OperationID,
		OperationIDs: res.OperationIDs,
	}
	if res.Err != nil {
		h.logger.Error("ProfileSync handler: mutation failed",
			"op", op,
			"owner_id", ownerID,
			"queued", res.Queued,
			"error", res.Err.Error())
		resp.Error = res.Err.Error()
		if code, ok := service.ErrorCodeOf(res.Err); ok {
			resp.ErrorCode = string(code)
		}
	}

	return encode(resp)
}

func (h *ProfileSync) extractOwnerIDFromContext(ctx context.Context) (string, error) {
	ownerID, ok := h.contextManager.GetOwnerIDFromContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "owner id not found in context")
	}
	return ownerID, nil
}

func createOptions(req syncapi.CreateProfileRequest) []service.MutationOption {
	var opts []service.MutationOption
	if req.EnableOfflineQueue != nil {
		opts = append(opts, service.WithOfflineQueue(*req.EnableOfflineQueue))
	}
	if req.TrialDurationDays > 0 {
		opts = append(opts, service.WithTrialDuration(req.TrialDurationDays))
	}
	if req.GrantEntitlement != nil {
		opts = append(opts, service.WithEntitlementGrant(*req.GrantEntitlement))
	}
	return opts
}

func encode(v any) (*structpb.Struct, error) {
	s, err := structcodec.Encode(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return s, nil
}
