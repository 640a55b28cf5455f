package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/profilesync/internal/logger"
	"github.com/dtroode/profilesync/internal/model"
)

// OperationRunner applies one operation to the remotes and returns its error.
type OperationRunner interface {
	Run(ctx context.Context, op model.QueuedOperation) error
}

// TrialStatusProvider reconciles a user's trial status.
type TrialStatusProvider interface {
	GetTrialStatus(ctx context.Context, ownerID string) model.TrialStatus
}

// MutationOptions controls the offline behavior of one facade call.
type MutationOptions struct {
	EnableOfflineQueue bool
	TrialDurationDays  int
	GrantEntitlement   bool
}

// MutationOption configures MutationOptions.
type MutationOption func(*MutationOptions)

// WithOfflineQueue enables or disables queuing when offline or on retryable failure.
func WithOfflineQueue(enabled bool) MutationOption {
	return func(o *MutationOptions) { o.EnableOfflineQueue = enabled }
}

// WithTrialDuration sets the trial length for CreateProfileWithTrial.
func WithTrialDuration(days int) MutationOption {
	return func(o *MutationOptions) { o.TrialDurationDays = days }
}

// WithEntitlementGrant also requests a trial purchase from the entitlement service.
func WithEntitlementGrant(grant bool) MutationOption {
	return func(o *MutationOptions) { o.GrantEntitlement = grant }
}

// ProfileSync is the public API of the sync engine. Every mutation resolves
// to a MutationResult; remote failures are never returned as Go errors.
type ProfileSync struct {
	runner    OperationRunner
	queue     *Queue
	scheduler *Scheduler
	monitor   ConnectivityMonitor
	trials    TrialStatusProvider
	defaults  MutationOptions
	logger    *logger.Logger
	now       func() time.Time
}

// NewProfileSync creates the facade. defaults apply to every call before the
// per-call options.
func NewProfileSync(
	runner OperationRunner,
	queue *Queue,
	scheduler *Scheduler,
	monitor ConnectivityMonitor,
	trials TrialStatusProvider,
	logger *logger.Logger,
	defaults ...MutationOption,
) *ProfileSync {
	opts := MutationOptions{
		EnableOfflineQueue: true,
		TrialDurationDays:  model.DefaultTrialDurationDays,
	}
	for _, opt := range defaults {
		opt(&opts)
	}

	return &ProfileSync{
		runner:    runner,
		queue:     queue,
		scheduler: scheduler,
		monitor:   monitor,
		trials:    trials,
		defaults:  opts,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *ProfileSync) options(opts []MutationOption) MutationOptions {
	o := s.defaults
	for _, opt := range opts {
		opt(&o)
	}
	if o.TrialDurationDays <= 0 {
		o.TrialDurationDays = model.DefaultTrialDurationDays
	}
	return o
}

// CreateProfile creates the user's profile, or queues it when offline.
func (s *ProfileSync) CreateProfile(ctx context.Context, ownerID, email string, profile model.ProfileSnapshot, opts ...MutationOption) model.MutationResult {
	if err := validateCreate(ownerID, email); err != nil {
		return model.MutationResult{Err: err}
	}
	return s.mutate(ctx, ownerID, profile, email, s.options(opts))
}

// UpdateProfile merges fields into the user's profile, or queues the update when offline.
func (s *ProfileSync) UpdateProfile(ctx context.Context, ownerID string, fields map[string]any, opts ...MutationOption) model.MutationResult {
	if ownerID == "" {
		return model.MutationResult{Err: model.NewValidationError("owner_id", model.ErrOwnerRequired.Error())}
	}
	if len(fields) == 0 {
		return model.MutationResult{Err: model.NewValidationError("fields", "update has no fields")}
	}
	return s.mutate(ctx, ownerID, model.ProfileUpdate{Fields: fields}, "", s.options(opts))
}

// CreateProfileWithTrial creates the profile and the trial record as two
// independent operations. Either may succeed, fail or be queued on its own.
func (s *ProfileSync) CreateProfileWithTrial(ctx context.Context, ownerID, email string, profile model.ProfileSnapshot, opts ...MutationOption) model.MutationResult {
	if err := validateCreate(ownerID, email); err != nil {
		return model.MutationResult{Err: err}
	}

	o := s.options(opts)
	trial := model.TrialParams{DurationDays: o.TrialDurationDays, GrantEntitlement: o.GrantEntitlement}

	profileRes := s.mutate(ctx, ownerID, profile, email, o)
	if !profileRes.Success && !profileRes.Queued {
		return profileRes
	}

	trialRes := s.mutate(ctx, ownerID, trial, "", o)

	result := model.MutationResult{
		Success: profileRes.Success && trialRes.Success,
		Queued:  profileRes.Queued || trialRes.Queued,
		Err:     errors.Join(profileRes.Err, trialRes.Err),
	}
	for _, id := range []string{profileRes.OperationID, trialRes.OperationID} {
		if id != "" {
			result.OperationIDs = append(result.OperationIDs, id)
		}
	}
	if len(result.OperationIDs) > 0 {
		result.OperationID = result.OperationIDs[0]
	}

	return result
}

func (s *ProfileSync) mutate(ctx context.Context, ownerID string, payload model.Payload, email string, o MutationOptions) model.MutationResult {
	online := s.monitor.IsOnline(ctx)
	s.scheduler.RecordOnline(online)

	if !online && o.EnableOfflineQueue {
		id := s.queue.Enqueue(ownerID, payload, email)
		return model.MutationResult{Success: true, Queued: true, OperationID: id, OperationIDs: []string{id}}
	}

	op := model.QueuedOperation{
		Type:           payload.OperationType(),
		Payload:        payload,
		OwnerID:        ownerID,
		AuxiliaryEmail: email,
		EnqueuedAt:     s.now(),
		RequestID:      uuid.New(),
	}
	op.ID = model.NewOperationID(op.Type, ownerID, op.EnqueuedAt)

	err := s.runner.Run(ctx, op)
	if err == nil {
		return model.MutationResult{Success: true}
	}

	if IsRetryable(err) && o.EnableOfflineQueue {
		id := s.queue.Enqueue(ownerID, payload, email)
		s.logger.Warn("ProfileSync: remote call failed, queued for retry",
			"type", op.Type,
			"owner_id", ownerID,
			"operation_id", id,
			"error", err)
		return model.MutationResult{Success: false, Queued: true, OperationID: id, OperationIDs: []string{id}, Err: err}
	}

	s.logger.Error("ProfileSync: remote call failed", "type", op.Type, "owner_id", ownerID, "error", err)
	return model.MutationResult{Success: false, Queued: false, Err: err}
}

func validateCreate(ownerID, email string) error {
	if ownerID == "" {
		return model.NewValidationError("owner_id", model.ErrOwnerRequired.Error())
	}
	if email == "" {
		return model.NewValidationError("email", "required to create a profile")
	}
	return nil
}

// GetTrialStatus returns the reconciled trial status of ownerID.
func (s *ProfileSync) GetTrialStatus(ctx context.Context, ownerID string) model.TrialStatus {
	return s.trials.GetTrialStatus(ctx, ownerID)
}

// GetQueueStatus returns a diagnostics snapshot.
func (s *ProfileSync) GetQueueStatus(ctx context.Context) model.QueueStatus {
	online := s.monitor.IsOnline(ctx)
	s.scheduler.RecordOnline(online)
	state := s.scheduler.State()

	return model.QueueStatus{
		QueueLength:        s.queue.Len(),
		IsOnline:           online,
		SyncInProgress:     state.SyncInProgress,
		LastSyncAttempt:    state.LastSyncAttempt,
		LastSuccessfulSync: state.LastSuccessfulSync,
	}
}

// ForceSyncNow drains the queue immediately, still respecting single-flight.
func (s *ProfileSync) ForceSyncNow(ctx context.Context) model.SyncResult {
	return s.scheduler.SyncQueue(ctx)
}
