package service

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/profilesync/internal/logger"
	"github.com/dtroode/profilesync/internal/model"
)

// DefaultQueueKey is the storage key of the persisted queue.
const DefaultQueueKey = "profilesync/offline-queue"

// persistTimeout bounds one background persistence write.
const persistTimeout = 10 * time.Second

// Queue is the durable FIFO of operations waiting to be replayed.
//
// Mutations update the in-memory list synchronously and persist a snapshot in
// the background. Persistence errors are logged and never reach the caller.
type Queue struct {
	store      model.KeyValueStore
	key        string
	maxRetries int
	logger     *logger.Logger
	hooks      []model.SyncHook
	now        func() time.Time

	mu      sync.Mutex
	ops     []model.QueuedOperation
	version uint64

	persistMu sync.Mutex
	attempted uint64
	pending   sync.WaitGroup
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithQueueKey overrides the storage key.
func WithQueueKey(key string) QueueOption {
	return func(q *Queue) { q.key = key }
}

// WithMaxRetries sets the retry budget assigned to new operations.
func WithMaxRetries(n int) QueueOption {
	return func(q *Queue) { q.maxRetries = n }
}

// WithQueueHooks registers notification hooks for queued events.
func WithQueueHooks(hooks ...model.SyncHook) QueueOption {
	return func(q *Queue) { q.hooks = append(q.hooks, hooks...) }
}

// WithQueueClock overrides the time source.
func WithQueueClock(now func() time.Time) QueueOption {
	return func(q *Queue) { q.now = now }
}

// NewQueue loads the persisted queue from store. Unreadable or corrupted data
// yields an empty queue.
func NewQueue(ctx context.Context, store model.KeyValueStore, logger *logger.Logger, opts ...QueueOption) *Queue {
	q := &Queue{
		store:      store,
		key:        DefaultQueueKey,
		maxRetries: model.DefaultMaxRetries,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}

	q.ops = q.load(ctx)
	return q
}

func (q *Queue) load(ctx context.Context) []model.QueuedOperation {
	raw, ok, err := q.store.Get(ctx, q.key)
	if err != nil {
		q.logger.Error("Queue: failed to read persisted queue, starting empty", "key", q.key, "error", err)
		return nil
	}
	if !ok || raw == "" {
		return nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		q.logger.Error("Queue: persisted queue is corrupted, starting empty", "key", q.key, "error", err)
		return nil
	}

	ops := make([]model.QueuedOperation, 0, len(entries))
	for i, entry := range entries {
		var op model.QueuedOperation
		if err := json.Unmarshal(entry, &op); err != nil {
			q.logger.Warn("Queue: dropping undecodable operation", "index", i, "error", err)
			continue
		}
		ops = append(ops, op)
	}

	slices.SortStableFunc(ops, func(a, b model.QueuedOperation) int {
		return a.EnqueuedAt.Compare(b.EnqueuedAt)
	})

	q.logger.Info("Queue: restored persisted operations", "count", len(ops))
	return ops
}

// Enqueue appends an operation and returns its id. It never fails.
func (q *Queue) Enqueue(ownerID string, payload model.Payload, auxiliaryEmail string) string {
	q.mu.Lock()

	now := q.now()
	opType := payload.OperationType()
	id := q.uniqueIDLocked(model.NewOperationID(opType, ownerID, now))

	op := model.QueuedOperation{
		ID:             id,
		Type:           opType,
		Payload:        payload,
		OwnerID:        ownerID,
		AuxiliaryEmail: auxiliaryEmail,
		EnqueuedAt:     now,
		MaxRetries:     q.maxRetries,
		RequestID:      uuid.New(),
	}
	q.ops = append(q.ops, op)
	q.persistLocked()

	q.mu.Unlock()

	q.logger.Info("Queue: enqueued operation", "operation_id", id, "type", opType, "owner_id", ownerID)
	q.emit(model.SyncEvent{Kind: model.SyncEventQueued, OperationID: id, Type: opType, OwnerID: ownerID, At: now})

	return id
}

func (q *Queue) uniqueIDLocked(base string) string {
	id := base
	for n := 2; q.indexLocked(id) >= 0; n++ {
		id = fmt.Sprintf("%s_%d", base, n)
	}
	return id
}

// PeekAll returns a copy of all operations in FIFO order.
func (q *Queue) PeekAll() []model.QueuedOperation {
	q.mu.Lock()
	defer q.mu.Unlock()

	return slices.Clone(q.ops)
}

// Get returns the operation with the given id.
func (q *Queue) Get(id string) (model.QueuedOperation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexLocked(id)
	if i < 0 {
		return model.QueuedOperation{}, false
	}
	return q.ops[i], true
}

// Len returns the number of queued operations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.ops)
}

// Remove deletes the operation. Removing an absent id is a no-op.
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexLocked(id)
	if i < 0 {
		return
	}

	q.ops = slices.Delete(q.ops, i, i+1)
	q.persistLocked()
}

// IncrementRetry bumps the retry count of the operation and returns the new
// count. It is a no-op for an absent id.
func (q *Queue) IncrementRetry(id string) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexLocked(id)
	if i < 0 {
		return 0, false
	}

	if q.ops[i].RetryCount < q.ops[i].MaxRetries {
		q.ops[i].RetryCount++
	}
	q.persistLocked()

	return q.ops[i].RetryCount, true
}

// Flush waits for background persistence writes started so far.
func (q *Queue) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue flush: %w", ctx.Err())
	}
}

func (q *Queue) indexLocked(id string) int {
	return slices.IndexFunc(q.ops, func(op model.QueuedOperation) bool { return op.ID == id })
}

// persistLocked snapshots the queue and writes it in the background. Writes
// carry a version and a snapshot older than the newest attempted write is
// dropped, even when that write failed.
func (q *Queue) persistLocked() {
	q.version++
	version := q.version
	snapshot := slices.Clone(q.ops)

	q.pending.Add(1)
	go func() {
		defer q.pending.Done()
		q.writeSnapshot(version, snapshot)
	}()
}

func (q *Queue) writeSnapshot(version uint64, snapshot []model.QueuedOperation) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		q.logger.Error("Queue: failed to encode queue", "error", err)
		return
	}

	q.persistMu.Lock()
	defer q.persistMu.Unlock()

	if version <= q.attempted {
		return
	}
	q.attempted = version

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := q.store.Set(ctx, q.key, string(data)); err != nil {
		q.logger.Error("Queue: failed to persist queue", "key", q.key, "error", err)
	}
}

func (q *Queue) emit(event model.SyncEvent) {
	for _, hook := range q.hooks {
		hook(event)
	}
}
