package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ProfileStore is the remote system of record for user profiles.
type ProfileStore interface {
	CreateProfile(ctx context.Context, params CreateProfileParams) (Profile, error)
	UpdateProfile(ctx context.Context, ownerID string, fields map[string]any) error
	GetProfile(ctx context.Context, ownerID string) (Profile, error)
	CreateTrialRecord(ctx context.Context, trial TrialRecord) (TrialRecord, error)
}

// EntitlementService is the remote billing/subscription authority.
type EntitlementService interface {
	GetStatus(ctx context.Context, ownerID string) (EntitlementStatus, error)
	CreateTrialPurchase(ctx context.Context, ownerID string) error
}

// CreateProfileParams contains parameters to create a profile.
type CreateProfileParams struct {
	OwnerID   string
	Email     string
	Snapshot  ProfileSnapshot
	RequestID uuid.UUID
}

// Profile is a profile record as stored by the profile store.
type Profile struct {
	OwnerID     string
	Email       string
	DisplayName string
	Data        map[string]any
	Usage       UsageCounters
	Trial       *TrialRecord
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
