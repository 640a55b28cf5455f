package model

import (
	"time"

	"github.com/google/uuid"
)

// TrialSource records which remote view contributed to a TrialStatus.
type TrialSource string

const (
	TrialSourceEntitlementService TrialSource = "entitlement_service"
	TrialSourceProfileStore       TrialSource = "profile_store"
	TrialSourceBoth               TrialSource = "both"
)

// UsageCounters are tracked only by the profile store.
type UsageCounters struct {
	GamesLogged         int `json:"gamesLogged"`
	AIInsightsGenerated int `json:"aiInsightsGenerated"`
	GoalsCreated        int `json:"goalsCreated"`
}

// TrialStatus is the reconciled trial/subscription state of a user.
type TrialStatus struct {
	IsActive      bool
	EndDate       *time.Time
	DaysRemaining int
	Source        TrialSource
	Usage         UsageCounters
}

// Trial record statuses stored in the profile store.
const (
	TrialRecordActive  = "active"
	TrialRecordExpired = "expired"
)

// TrialRecord is the trial as cached by the profile store.
type TrialRecord struct {
	OwnerID      string
	Status       string
	StartDate    time.Time
	EndDate      time.Time
	DurationDays int
	RequestID    uuid.UUID
}

// EntitlementStatus is the billing authority's view of a user.
type EntitlementStatus struct {
	IsActive      bool          `json:"isActive"`
	IsTrialActive bool          `json:"isTrialActive"`
	TrialEndDate  *time.Time    `json:"trialEndDate,omitempty"`
	Entitlements  []Entitlement `json:"entitlements,omitempty"`
}

// Entitlement is a single purchased or granted entitlement.
type Entitlement struct {
	ID        string     `json:"id"`
	ProductID string     `json:"productId,omitempty"`
	IsActive  bool       `json:"isActive"`
	IsTrial   bool       `json:"isTrial,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}
