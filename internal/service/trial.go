package service

import (
	"context"
	"errors"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dtroode/profilesync/internal/logger"
	"github.com/dtroode/profilesync/internal/model"
)

// TrialReconciler merges the entitlement service and profile store views of a
// user's trial into one status. The entitlement service is the billing
// authority for activity; usage counters come from the profile store.
type TrialReconciler struct {
	profiles     model.ProfileStore
	entitlements model.EntitlementService
	logger       *logger.Logger
	now          func() time.Time
}

// NewTrialReconciler creates a new TrialReconciler.
func NewTrialReconciler(profiles model.ProfileStore, entitlements model.EntitlementService, logger *logger.Logger) *TrialReconciler {
	return &TrialReconciler{
		profiles:     profiles,
		entitlements: entitlements,
		logger:       logger,
		now:          time.Now,
	}
}

// GetTrialStatus queries both views concurrently and reconciles them. A failed
// view is ignored; if both fail the result grants no access.
func (r *TrialReconciler) GetTrialStatus(ctx context.Context, ownerID string) model.TrialStatus {
	var (
		entitlement    model.EntitlementStatus
		entitlementErr error
		profile        model.Profile
		profileErr     error
	)

	// Each query records its own error so one failure never cancels the other.
	var g errgroup.Group
	g.Go(func() error {
		entitlement, entitlementErr = r.entitlements.GetStatus(ctx, ownerID)
		return nil
	})
	g.Go(func() error {
		profile, profileErr = r.profiles.GetProfile(ctx, ownerID)
		return nil
	})
	_ = g.Wait()

	if entitlementErr != nil {
		r.logger.Warn("TrialReconciler: entitlement query failed", "owner_id", ownerID, "error", entitlementErr)
	}
	if profileErr != nil && !errors.Is(profileErr, model.ErrNotFound) {
		r.logger.Warn("TrialReconciler: profile query failed", "owner_id", ownerID, "error", profileErr)
	}

	var entitlementView *model.EntitlementStatus
	if entitlementErr == nil {
		entitlementView = &entitlement
	}
	var profileView *model.Profile
	if profileErr == nil {
		profileView = &profile
	}

	return reconcileTrial(entitlementView, profileView, r.now())
}

func reconcileTrial(entitlement *model.EntitlementStatus, profile *model.Profile, now time.Time) model.TrialStatus {
	if entitlement == nil && profile == nil {
		return model.TrialStatus{IsActive: false, DaysRemaining: 0, Source: model.TrialSourceProfileStore}
	}

	status := model.TrialStatus{Source: model.TrialSourceProfileStore}

	if profile != nil {
		status.Usage = profile.Usage
		if trial := profile.Trial; trial != nil {
			end := trial.EndDate
			status.EndDate = &end
			status.IsActive = trial.Status == model.TrialRecordActive
		}
	}

	if entitlement != nil {
		if entitlement.IsTrialActive || entitlement.IsActive {
			status.IsActive = true
			if end := entitlementEndDate(entitlement); end != nil {
				status.EndDate = end
			}
			if profile != nil {
				status.Source = model.TrialSourceBoth
			} else {
				status.Source = model.TrialSourceEntitlementService
			}
		} else if profile == nil {
			status.Source = model.TrialSourceEntitlementService
		}
	}

	// No end date counts as zero days left, and zero days is never active.
	if status.EndDate != nil {
		status.DaysRemaining = daysRemaining(*status.EndDate, now)
	}
	if status.DaysRemaining == 0 {
		status.IsActive = false
	}

	return status
}

// entitlementEndDate prefers the trial end date and otherwise returns the
// latest expiry among active entitlements. Nil means no known expiry.
func entitlementEndDate(e *model.EntitlementStatus) *time.Time {
	if e.IsTrialActive && e.TrialEndDate != nil {
		end := *e.TrialEndDate
		return &end
	}

	var latest *time.Time
	for _, ent := range e.Entitlements {
		if !ent.IsActive || ent.ExpiresAt == nil {
			continue
		}
		if latest == nil || ent.ExpiresAt.After(*latest) {
			end := *ent.ExpiresAt
			latest = &end
		}
	}
	if latest == nil && e.TrialEndDate != nil {
		end := *e.TrialEndDate
		return &end
	}
	return latest
}

func daysRemaining(end, now time.Time) int {
	remaining := end.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Hours() / 24))
}
