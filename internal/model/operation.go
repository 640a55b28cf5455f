package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxRetries is the retry budget of a queued operation.
const DefaultMaxRetries = 5

// DefaultTrialDurationDays is the trial length used when none is configured.
const DefaultTrialDurationDays = 7

// OperationType enumerates the mutations that can be queued.
type OperationType string

const (
	// OperationCreateProfile creates the user's profile record.
	OperationCreateProfile OperationType = "create_profile"
	// OperationUpdateProfile merges a partial field map into the profile.
	OperationUpdateProfile OperationType = "update_profile"
	// OperationCreateTrialRecord creates the user's trial record.
	OperationCreateTrialRecord OperationType = "create_trial_record"
)

// Valid reports whether t is one of the known operation types.
func (t OperationType) Valid() bool {
	switch t {
	case OperationCreateProfile, OperationUpdateProfile, OperationCreateTrialRecord:
		return true
	}
	return false
}

// Payload is the typed body of a queued operation. Exactly one payload struct
// exists per OperationType.
type Payload interface {
	OperationType() OperationType
}

// ProfileSnapshot is a full profile written by create_profile.
type ProfileSnapshot struct {
	DisplayName string            `json:"displayName"`
	BirthYear   int               `json:"birthYear,omitempty"`
	Locale      string            `json:"locale,omitempty"`
	Preferences map[string]string `json:"preferences,omitempty"`
	// Consent is persisted as produced by the consent rules.
	Consent json.RawMessage `json:"consent,omitempty"`
}

// OperationType implements Payload.
func (ProfileSnapshot) OperationType() OperationType { return OperationCreateProfile }

// ProfileUpdate is a partial field map merged by update_profile.
type ProfileUpdate struct {
	Fields map[string]any `json:"fields"`
}

// OperationType implements Payload.
func (ProfileUpdate) OperationType() OperationType { return OperationUpdateProfile }

// TrialParams parameterizes create_trial_record.
type TrialParams struct {
	DurationDays int `json:"durationDays"`
	// GrantEntitlement also requests a trial purchase from the entitlement service.
	GrantEntitlement bool `json:"grantEntitlement,omitempty"`
}

// OperationType implements Payload.
func (TrialParams) OperationType() OperationType { return OperationCreateTrialRecord }

// QueuedOperation is a pending mutation waiting for connectivity.
type QueuedOperation struct {
	ID             string
	Type           OperationType
	Payload        Payload
	OwnerID        string
	AuxiliaryEmail string
	EnqueuedAt     time.Time
	RetryCount     int
	MaxRetries     int
	RequestID      uuid.UUID
}

// NewOperationID derives the operation id from its type, owner and enqueue time.
func NewOperationID(opType OperationType, ownerID string, enqueuedAt time.Time) string {
	return fmt.Sprintf("%s_%s_%d", opType, ownerID, enqueuedAt.UnixMilli())
}

// Exhausted reports whether the retry budget has been used up.
func (op QueuedOperation) Exhausted() bool {
	return op.RetryCount >= op.MaxRetries
}

type queuedOperationJSON struct {
	ID             string          `json:"id"`
	Type           OperationType   `json:"type"`
	Payload        json.RawMessage `json:"payload"`
	OwnerID        string          `json:"ownerId"`
	AuxiliaryEmail string          `json:"auxiliaryEmail,omitempty"`
	EnqueuedAt     time.Time       `json:"enqueuedAt"`
	RetryCount     int             `json:"retryCount"`
	MaxRetries     int             `json:"maxRetries"`
	RequestID      uuid.UUID       `json:"requestId"`
}

// MarshalJSON encodes the operation with its payload tagged by Type.
func (op QueuedOperation) MarshalJSON() ([]byte, error) {
	if op.Payload == nil {
		return nil, fmt.Errorf("operation %s has no payload", op.ID)
	}
	if op.Payload.OperationType() != op.Type {
		return nil, fmt.Errorf("operation %s: payload kind %s does not match type %s", op.ID, op.Payload.OperationType(), op.Type)
	}

	payload, err := json.Marshal(op.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	return json.Marshal(queuedOperationJSON{
		ID:             op.ID,
		Type:           op.Type,
		Payload:        payload,
		OwnerID:        op.OwnerID,
		AuxiliaryEmail: op.AuxiliaryEmail,
		EnqueuedAt:     op.EnqueuedAt,
		RetryCount:     op.RetryCount,
		MaxRetries:     op.MaxRetries,
		RequestID:      op.RequestID,
	})
}

// UnmarshalJSON decodes the payload into the struct matching Type.
func (op *QueuedOperation) UnmarshalJSON(data []byte) error {
	var raw queuedOperationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	payload, err := decodePayload(raw.Type, raw.Payload)
	if err != nil {
		return fmt.Errorf("operation %s: %w", raw.ID, err)
	}

	*op = QueuedOperation{
		ID:             raw.ID,
		Type:           raw.Type,
		Payload:        payload,
		OwnerID:        raw.OwnerID,
		AuxiliaryEmail: raw.AuxiliaryEmail,
		EnqueuedAt:     raw.EnqueuedAt,
		RetryCount:     raw.RetryCount,
		MaxRetries:     raw.MaxRetries,
		RequestID:      raw.RequestID,
	}
	return nil
}

func decodePayload(opType OperationType, data json.RawMessage) (Payload, error) {
	switch opType {
	case OperationCreateProfile:
		var p ProfileSnapshot
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal profile snapshot: %w", err)
		}
		return p, nil
	case OperationUpdateProfile:
		var p ProfileUpdate
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal profile update: %w", err)
		}
		return p, nil
	case OperationCreateTrialRecord:
		var p TrialParams
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trial params: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown operation type %q", opType)
	}
}
