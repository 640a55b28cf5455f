package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dtroode/profilesync/internal/logger"
	"github.com/dtroode/profilesync/internal/model"
)

// Executor applies queued operations to the remote systems of record.
type Executor struct {
	profiles     model.ProfileStore
	entitlements model.EntitlementService
	logger       *logger.Logger
	now          func() time.Time
}

// NewExecutor creates a new Executor.
func NewExecutor(profiles model.ProfileStore, entitlements model.EntitlementService, logger *logger.Logger) *Executor {
	return &Executor{
		profiles:     profiles,
		entitlements: entitlements,
		logger:       logger,
		now:          time.Now,
	}
}

// Execute runs op and converts any failure into an unsuccessful result.
func (e *Executor) Execute(ctx context.Context, op model.QueuedOperation) model.ExecutionResult {
	if err := e.Run(ctx, op); err != nil {
		e.logger.Warn("Executor: operation failed",
			"operation_id", op.ID,
			"type", op.Type,
			"retry_count", op.RetryCount,
			"error", err)
		return model.ExecutionResult{Success: false, Err: err}
	}

	e.logger.Debug("Executor: operation succeeded", "operation_id", op.ID, "type", op.Type)
	return model.ExecutionResult{Success: true}
}

// Run dispatches op to its remote effect. It is shared by the online path of
// the facade and by queue replay.
func (e *Executor) Run(ctx context.Context, op model.QueuedOperation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = model.NewRemoteError(model.CodeInternal, string(op.Type), fmt.Errorf("panic: %v", r))
		}
	}()

	if op.OwnerID == "" {
		return model.NewValidationError("owner_id", model.ErrOwnerRequired.Error())
	}

	switch payload := op.Payload.(type) {
	case model.ProfileSnapshot:
		return e.createProfile(ctx, op, payload)
	case model.ProfileUpdate:
		return e.updateProfile(ctx, op, payload)
	case model.TrialParams:
		return e.createTrialRecord(ctx, op, payload)
	default:
		return model.NewValidationError("payload", fmt.Sprintf("unsupported payload %T for %s", op.Payload, op.Type))
	}
}

func (e *Executor) createProfile(ctx context.Context, op model.QueuedOperation, snapshot model.ProfileSnapshot) error {
	if op.AuxiliaryEmail == "" {
		return model.NewValidationError("email", "required to create a profile")
	}

	_, err := e.profiles.CreateProfile(ctx, model.CreateProfileParams{
		OwnerID:   op.OwnerID,
		Email:     op.AuxiliaryEmail,
		Snapshot:  snapshot,
		RequestID: op.RequestID,
	})
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

func (e *Executor) updateProfile(ctx context.Context, op model.QueuedOperation, update model.ProfileUpdate) error {
	if len(update.Fields) == 0 {
		return model.NewValidationError("fields", "update has no fields")
	}

	if err := e.profiles.UpdateProfile(ctx, op.OwnerID, update.Fields); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

func (e *Executor) createTrialRecord(ctx context.Context, op model.QueuedOperation, params model.TrialParams) error {
	days := params.DurationDays
	if days <= 0 {
		days = model.DefaultTrialDurationDays
	}

	start := e.now().UTC()
	_, err := e.profiles.CreateTrialRecord(ctx, model.TrialRecord{
		OwnerID:      op.OwnerID,
		Status:       model.TrialRecordActive,
		StartDate:    start,
		EndDate:      start.AddDate(0, 0, days),
		DurationDays: days,
		RequestID:    op.RequestID,
	})
	if err != nil {
		return fmt.Errorf("failed to create trial record: %w", err)
	}

	if params.GrantEntitlement {
		if err := e.entitlements.CreateTrialPurchase(ctx, op.OwnerID); err != nil {
			return fmt.Errorf("failed to grant trial entitlement: %w", err)
		}
	}

	return nil
}
