package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dtroode/profilesync/internal/logger"
	"github.com/dtroode/profilesync/internal/model"
)

// DefaultSyncInterval is how often the scheduler drains the queue.
const DefaultSyncInterval = 30 * time.Second

// DefaultStateKey is the storage key of the persisted sync state.
const DefaultStateKey = "profilesync/sync-state"

// OperationExecutor executes one queued operation.
type OperationExecutor interface {
	Execute(ctx context.Context, op model.QueuedOperation) model.ExecutionResult
}

// ConnectivityMonitor reports whether the remotes are reachable.
type ConnectivityMonitor interface {
	IsOnline(ctx context.Context) bool
	OnBecameOnline(callback func()) (unsubscribe func())
}

// Scheduler drains the queue on a fixed interval and whenever connectivity
// returns. At most one drain pass runs at a time.
type Scheduler struct {
	queue    *Queue
	executor OperationExecutor
	monitor  ConnectivityMonitor
	store    model.KeyValueStore
	stateKey string
	interval time.Duration
	logger   *logger.Logger
	hooks    []model.SyncHook
	now      func() time.Time

	inProgress atomic.Bool

	mu    sync.Mutex
	state model.SyncState

	persistMu sync.Mutex
	pending   sync.WaitGroup

	runMu       sync.Mutex
	cancel      context.CancelFunc
	unsubscribe func()
	loops       sync.WaitGroup
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSyncInterval overrides the drain interval.
func WithSyncInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.interval = d }
}

// WithStateKey overrides the storage key of the sync state.
func WithStateKey(key string) SchedulerOption {
	return func(s *Scheduler) { s.stateKey = key }
}

// WithSchedulerHooks registers notification hooks for drain events.
func WithSchedulerHooks(hooks ...model.SyncHook) SchedulerOption {
	return func(s *Scheduler) { s.hooks = append(s.hooks, hooks...) }
}

// WithSchedulerClock overrides the time source.
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a Scheduler and restores the persisted sync state.
func NewScheduler(
	ctx context.Context,
	queue *Queue,
	executor OperationExecutor,
	monitor ConnectivityMonitor,
	store model.KeyValueStore,
	logger *logger.Logger,
	opts ...SchedulerOption,
) *Scheduler {
	s := &Scheduler{
		queue:    queue,
		executor: executor,
		monitor:  monitor,
		store:    store,
		stateKey: DefaultStateKey,
		interval: DefaultSyncInterval,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.state = s.loadState(ctx)
	return s
}

func (s *Scheduler) loadState(ctx context.Context) model.SyncState {
	raw, ok, err := s.store.Get(ctx, s.stateKey)
	if err != nil {
		s.logger.Error("Scheduler: failed to read sync state", "key", s.stateKey, "error", err)
		return model.SyncState{}
	}
	if !ok {
		return model.SyncState{}
	}

	var state model.SyncState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		s.logger.Error("Scheduler: sync state is corrupted, starting fresh", "key", s.stateKey, "error", err)
		return model.SyncState{}
	}

	// A pass cannot survive the process that ran it.
	state.SyncInProgress = false
	return state
}

// Start launches the interval loop and subscribes to connectivity changes.
// Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.unsubscribe = s.monitor.OnBecameOnline(func() {
		// Stop cancels under runMu, so a pass registered here is always waited for.
		s.runMu.Lock()
		defer s.runMu.Unlock()
		if s.cancel == nil || ctx.Err() != nil {
			return
		}
		s.logger.Info("Scheduler: connectivity restored, draining queue")
		s.loops.Add(1)
		go func() {
			defer s.loops.Done()
			s.SyncQueue(ctx)
		}()
	})

	s.loops.Add(1)
	go s.intervalLoop(ctx)

	s.logger.Info("Scheduler: started", "interval", s.interval.String())
}

// Stop stops the interval loop and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	s.runMu.Lock()
	if s.cancel == nil {
		s.runMu.Unlock()
		return
	}
	s.cancel()
	s.unsubscribe()
	s.cancel = nil
	s.unsubscribe = nil
	s.runMu.Unlock()

	s.loops.Wait()
	s.pending.Wait()

	s.logger.Info("Scheduler: stopped")
}

func (s *Scheduler) intervalLoop(ctx context.Context) {
	defer s.loops.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SyncQueue(ctx)
		}
	}
}

// SyncQueue runs one drain pass over the operations queued at pass start.
// It returns immediately when another pass is running or the device is offline.
func (s *Scheduler) SyncQueue(ctx context.Context) model.SyncResult {
	if !s.inProgress.CompareAndSwap(false, true) {
		s.logger.Debug("Scheduler: sync already in progress, skipping")
		return model.SyncResult{Skipped: true}
	}
	defer s.inProgress.Store(false)

	online := s.monitor.IsOnline(ctx)
	s.updateState(func(st *model.SyncState) { st.IsOnline = online })
	if !online {
		s.logger.Debug("Scheduler: offline, skipping sync")
		return model.SyncResult{Skipped: true}
	}

	started := s.now()
	s.updateState(func(st *model.SyncState) {
		st.SyncInProgress = true
		st.LastSyncAttempt = &started
	})

	var result model.SyncResult
	defer func() {
		finished := s.now()
		s.updateState(func(st *model.SyncState) {
			st.SyncInProgress = false
			if result.SuccessCount > 0 {
				st.LastSuccessfulSync = &finished
			}
		})
	}()

	ops := s.queue.PeekAll()
	s.logger.Info("Scheduler: sync pass started", "queue_length", len(ops))

	for _, op := range ops {
		if ctx.Err() != nil {
			s.logger.Warn("Scheduler: sync pass interrupted", "error", ctx.Err())
			break
		}
		s.drainOne(ctx, op, &result)
	}

	s.logger.Info("Scheduler: sync pass finished",
		"succeeded", result.SuccessCount,
		"failed", result.FailedCount,
		"dead_lettered", result.DeadLettered)

	return result
}

func (s *Scheduler) drainOne(ctx context.Context, op model.QueuedOperation, result *model.SyncResult) {
	if op.Exhausted() {
		s.deadLetter(op, fmt.Errorf("operation %s exhausted %d retries", op.ID, op.MaxRetries), result)
		return
	}

	res := s.executor.Execute(ctx, op)
	if res.Success {
		s.queue.Remove(op.ID)
		result.SuccessCount++
		s.emit(model.SyncEvent{Kind: model.SyncEventSucceeded, OperationID: op.ID, Type: op.Type, OwnerID: op.OwnerID, RetryCount: op.RetryCount, At: s.now()})
		return
	}

	err := res.Err
	if err == nil {
		err = fmt.Errorf("operation %s failed", op.ID)
	}

	if IsPermanentRemote(err) {
		s.deadLetter(op, fmt.Errorf("operation %s failed permanently: %w", op.ID, err), result)
		return
	}

	retries, _ := s.queue.IncrementRetry(op.ID)
	result.FailedCount++
	result.Errors = append(result.Errors, fmt.Errorf("operation %s: %w", op.ID, err))
	s.emit(model.SyncEvent{Kind: model.SyncEventRetried, OperationID: op.ID, Type: op.Type, OwnerID: op.OwnerID, RetryCount: retries, Err: err, At: s.now()})
}

func (s *Scheduler) deadLetter(op model.QueuedOperation, err error, result *model.SyncResult) {
	s.queue.Remove(op.ID)
	result.FailedCount++
	result.DeadLettered++
	result.Errors = append(result.Errors, err)

	s.logger.Warn("Scheduler: operation dead-lettered",
		"operation_id", op.ID,
		"type", op.Type,
		"owner_id", op.OwnerID,
		"retry_count", op.RetryCount,
		"error", err)
	s.emit(model.SyncEvent{Kind: model.SyncEventDeadLettered, OperationID: op.ID, Type: op.Type, OwnerID: op.OwnerID, RetryCount: op.RetryCount, Err: err, At: s.now()})
}

// State returns a copy of the current sync state.
func (s *Scheduler) State() model.SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// RecordOnline stores the last observed connectivity.
func (s *Scheduler) RecordOnline(online bool) {
	s.updateState(func(st *model.SyncState) { st.IsOnline = online })
}

func (s *Scheduler) updateState(mutate func(*model.SyncState)) {
	s.mu.Lock()
	mutate(&s.state)
	snapshot := s.state
	s.mu.Unlock()

	s.persistState(snapshot)
}

// persistState writes the state in the background; failures are logged.
func (s *Scheduler) persistState(state model.SyncState) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		data, err := json.Marshal(state)
		if err != nil {
			s.logger.Error("Scheduler: failed to encode sync state", "error", err)
			return
		}

		s.persistMu.Lock()
		defer s.persistMu.Unlock()

		// Only the latest state is worth writing.
		if latest := s.State(); latest != state {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		if err := s.store.Set(ctx, s.stateKey, string(data)); err != nil {
			s.logger.Error("Scheduler: failed to persist sync state", "key", s.stateKey, "error", err)
		}
	}()
}

// Flush waits for background state writes started so far.
func (s *Scheduler) Flush() {
	s.pending.Wait()
}

func (s *Scheduler) emit(event model.SyncEvent) {
	for _, hook := range s.hooks {
		hook(event)
	}
}
