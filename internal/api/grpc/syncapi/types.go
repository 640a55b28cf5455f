package syncapi

import (
	"time"

	"github.com/dtroode/profilesync/internal/model"
)

// CreateProfileRequest is the body of CreateProfile and CreateProfileWithTrial.
// Option fields left unset fall back to the server defaults.
type CreateProfileRequest struct {
	Email              string                `json:"email"`
	Profile            model.ProfileSnapshot `json:"profile"`
	EnableOfflineQueue *bool                 `json:"enableOfflineQueue,omitempty"`
	TrialDurationDays  int                   `json:"trialDurationDays,omitempty"`
	GrantEntitlement   *bool                 `json:"grantEntitlement,omitempty"`
}

// UpdateProfileRequest is the body of UpdateProfile.
type UpdateProfileRequest struct {
	Fields             map[string]any `json:"fields"`
	EnableOfflineQueue *bool          `json:"enableOfflineQueue,omitempty"`
}

// MutationResponse mirrors model.MutationResult.
type MutationResponse struct {
	Success      bool     `json:"success"`
	Queued       bool     `json:"queued"`
	OperationID  string   `json:"operationId,omitempty"`
	OperationIDs []string `json:"operationIds,omitempty"`
	Error        string   `json:"error,omitempty"`
	ErrorCode    string   `json:"errorCode,omitempty"`
}

// TrialStatusResponse mirrors model.TrialStatus.
type TrialStatusResponse struct {
	IsActive      bool                `json:"isActive"`
	EndDate       *time.Time          `json:"endDate,omitempty"`
	DaysRemaining int                 `json:"daysRemaining"`
	Source        string              `json:"source"`
	Usage         model.UsageCounters `json:"usage"`
}

// QueueStatusResponse mirrors model.QueueStatus.
type QueueStatusResponse struct {
	QueueLength        int        `json:"queueLength"`
	IsOnline           bool       `json:"isOnline"`
	SyncInProgress     bool       `json:"syncInProgress"`
	LastSyncAttempt    *time.Time `json:"lastSyncAttempt,omitempty"`
	LastSuccessfulSync *time.Time `json:"lastSuccessfulSync,omitempty"`
}

// SyncResponse mirrors model.SyncResult.
type SyncResponse struct {
	SuccessCount int      `json:"successCount"`
	FailedCount  int      `json:"failedCount"`
	DeadLettered int      `json:"deadLettered"`
	Skipped      bool     `json:"skipped"`
	Errors       []string `json:"errors,omitempty"`
}

// Empty is the body of requests without parameters.
type Empty struct{}
