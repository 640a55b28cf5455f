package model

import "time"

// SyncState is the persisted state of the sync scheduler.
type SyncState struct {
	IsOnline           bool       `json:"isOnline"`
	SyncInProgress     bool       `json:"syncInProgress"`
	LastSyncAttempt    *time.Time `json:"lastSyncAttempt,omitempty"`
	LastSuccessfulSync *time.Time `json:"lastSuccessfulSync,omitempty"`
}

// SyncResult summarizes one queue drain pass.
type SyncResult struct {
	SuccessCount int
	FailedCount  int
	DeadLettered int
	// Skipped is set when the pass did not run because another pass was in
	// progress or the device was offline.
	Skipped bool
	Errors  []error
}

// QueueStatus is a read-only diagnostics snapshot.
type QueueStatus struct {
	QueueLength        int
	IsOnline           bool
	SyncInProgress     bool
	LastSyncAttempt    *time.Time
	LastSuccessfulSync *time.Time
}

// MutationResult is the uniform outcome of a facade mutation call.
// Success with Queued reports acceptance, not completion.
type MutationResult struct {
	Success      bool
	Queued       bool
	OperationID  string
	OperationIDs []string
	Err          error
}

// ExecutionResult is the outcome of executing one queued operation.
type ExecutionResult struct {
	Success bool
	Err     error
}

// SyncEventKind enumerates notification hook events.
type SyncEventKind string

const (
	SyncEventQueued       SyncEventKind = "queued"
	SyncEventRetried      SyncEventKind = "retried"
	SyncEventSucceeded    SyncEventKind = "succeeded"
	SyncEventDeadLettered SyncEventKind = "dead_lettered"
)

// SyncEvent is delivered to notification hooks.
type SyncEvent struct {
	Kind        SyncEventKind
	OperationID string
	Type        OperationType
	OwnerID     string
	RetryCount  int
	Err         error
	At          time.Time
}

// SyncHook receives sync events. Hooks run synchronously and must not block.
type SyncHook func(SyncEvent)
