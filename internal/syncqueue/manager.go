package syncqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mkatragadda/Vitta-sub011/internal/connectivity"
	"github.com/mkatragadda/Vitta-sub011/internal/queuestore"
	"github.com/mkatragadda/Vitta-sub011/internal/retry"
)

var (
	// ErrAlreadySyncing reports that a full drain is running; the caller's
	// request was not queued behind it.
	ErrAlreadySyncing = errors.New("syncqueue: drain already in progress")
	// ErrUnknownKind is returned by Enqueue for kinds without a handler.
	ErrUnknownKind = errors.New("syncqueue: unknown operation kind")
)

// SyncResult summarizes one drain pass.
type SyncResult struct {
	Processed      int
	Succeeded      int
	Failed         int
	AlreadySyncing bool
	Errs           []error
}

// Options tunes the manager.
type Options struct {
	Policy retry.Policy
	// Clock is injectable for tests. Nil uses time.Now.
	Clock func() time.Time
}

// Manager owns the lifecycle of operations from enqueue through delivery or
// permanent failure.
//
// The connectivity State's sync slot is the only mutual exclusion between
// full drains. Solo retries deliberately run outside that guard and may
// overlap a drain; cross-drain delivery order is therefore weak: an
// operation in backoff can be overtaken by one enqueued after it.
type Manager struct {
	store    *queuestore.Store
	policy   retry.Policy
	state    *connectivity.State
	handlers map[Kind]Handler
	log      *zap.Logger
	clock    func() time.Time

	mu        sync.Mutex
	queue     []*Operation
	timers    map[string]*time.Timer
	observers map[int]func(Event)
	obsID     int
	degraded  bool
}

// NewManager wires the queue to its durable store, shared connectivity
// state, and delivery handlers.
func NewManager(store *queuestore.Store, state *connectivity.State, handlers map[Kind]Handler, opts Options, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Policy.MaxAttempts == 0 && opts.Policy.BaseDelay == 0 {
		opts.Policy = retry.Default()
	}
	return &Manager{
		store:     store,
		policy:    opts.Policy,
		state:     state,
		handlers:  handlers,
		log:       log.Named("syncqueue"),
		clock:     opts.Clock,
		timers:    make(map[string]*time.Timer),
		observers: make(map[int]func(Event)),
	}
}

// Start rebuilds the in-memory queue from the durable store and re-arms
// backoff timers for operations that were mid-retry when the process died.
// Without this, an operation whose solo-retry timer was lost to a restart
// would sit queued until the next connectivity transition.
func (m *Manager) Start(ctx context.Context) error {
	recs, err := m.store.GetAll(ctx, queuestore.StoreOfflineQueue)
	if err != nil {
		m.log.Error("load durable queue failed; continuing non-durable", zap.Error(err))
		m.mu.Lock()
		m.degraded = true
		m.mu.Unlock()
		return nil
	}
	ops := make([]*Operation, 0, len(recs))
	for _, rec := range recs {
		var op Operation
		if err := json.Unmarshal(rec.Value, &op); err != nil {
			m.log.Warn("unreadable queued operation skipped", zap.String("id", rec.Key))
			continue
		}
		ops = append(ops, &op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].EnqueuedAt.Before(ops[j].EnqueuedAt) })

	m.mu.Lock()
	m.queue = ops
	m.mu.Unlock()

	for _, op := range ops {
		if !op.Failed && op.Attempts > 0 && m.policy.ShouldRetry(op.Attempts) {
			m.armRetry(op)
		}
	}
	if len(ops) > 0 {
		m.log.Info("restored queue from store", zap.Int("operations", len(ops)))
	}
	return nil
}

// Enqueue creates an operation, persists it, emits a queued event, and
// returns the id without waiting for delivery.
func (m *Manager) Enqueue(ctx context.Context, kind Kind, payload json.RawMessage) (string, error) {
	if _, ok := m.handlers[kind]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	op := &Operation{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    payload,
		EnqueuedAt: m.clock(),
	}
	m.mu.Lock()
	m.queue = append(m.queue, op)
	m.mu.Unlock()

	m.persist(ctx, op)
	m.log.Info("operation queued", zap.String("id", op.ID), zap.String("kind", string(kind)))
	snap := *op
	m.emit(Event{Type: EventQueued, Op: &snap})
	return op.ID, nil
}

// persist writes the operation durably. A storage failure degrades the
// queue to memory-only rather than failing the caller.
func (m *Manager) persist(ctx context.Context, op *Operation) {
	m.mu.Lock()
	snap := *op
	m.mu.Unlock()
	doc, err := json.Marshal(snap)
	if err != nil {
		m.log.Error("encode operation", zap.Error(err))
		return
	}
	rec := queuestore.Record{
		Key:   snap.ID,
		Value: doc,
		Index: map[string]string{
			"kind":       string(snap.Kind),
			"enqueuedAt": queuestore.TimeIndexValue(snap.EnqueuedAt),
		},
	}
	if err := m.store.Put(ctx, queuestore.StoreOfflineQueue, rec); err != nil {
		m.mu.Lock()
		m.degraded = true
		m.mu.Unlock()
		m.log.Error("persist operation failed; queue degraded to memory-only",
			zap.String("id", snap.ID), zap.Error(err))
	}
}

// ProcessQueue runs one drain: every queued, non-failed operation is
// attempted once in FIFO enqueue order. One operation's failure never
// aborts the rest of the batch.
func (m *Manager) ProcessQueue(ctx context.Context) (SyncResult, error) {
	if !m.state.BeginSync() {
		return SyncResult{AlreadySyncing: true}, ErrAlreadySyncing
	}
	defer m.state.EndSync()

	m.mu.Lock()
	snapshot := make([]*Operation, 0, len(m.queue))
	for _, op := range m.queue {
		if !op.Failed {
			snapshot = append(snapshot, op)
		}
	}
	m.mu.Unlock()

	if len(snapshot) == 0 {
		return SyncResult{}, nil
	}

	m.emit(Event{Type: EventSyncStarted})
	m.log.Info("draining queue", zap.Int("pending", len(snapshot)))

	var res SyncResult
	for _, op := range snapshot {
		res.Processed++
		if err := m.attempt(ctx, op); err != nil {
			res.Failed++
			res.Errs = append(res.Errs, fmt.Errorf("op %s: %w", op.ID, err))
			m.handleFailure(ctx, op, err)
			continue
		}
		res.Succeeded++
		m.complete(ctx, op)
	}

	m.emit(Event{Type: EventSyncComplete, Result: &res})
	m.appendSyncLog(ctx, res)
	m.log.Info("drain complete",
		zap.Int("processed", res.Processed), zap.Int("succeeded", res.Succeeded), zap.Int("failed", res.Failed))
	return res, nil
}

// attempt increments the authoritative counter, persists it, then delivers.
func (m *Manager) attempt(ctx context.Context, op *Operation) error {
	m.mu.Lock()
	op.Attempts++
	op.LastAttemptAt = m.clock()
	handler := m.handlers[op.Kind]
	snap := *op
	m.mu.Unlock()

	m.persist(ctx, op)
	if handler == nil {
		return fmt.Errorf("%w: %s", ErrUnknownKind, snap.Kind)
	}
	return handler(ctx, snap)
}

// complete removes a delivered operation from memory and store.
func (m *Manager) complete(ctx context.Context, op *Operation) {
	m.removeFromMemory(op.ID)
	if err := m.store.Delete(ctx, queuestore.StoreOfflineQueue, op.ID); err != nil {
		m.log.Error("remove delivered operation", zap.String("id", op.ID), zap.Error(err))
	}
	m.cancelTimer(op.ID)
	snap := *op
	m.emit(Event{Type: EventSynced, Op: &snap})
}

// handleFailure routes a failed attempt to a solo retry or terminal state.
func (m *Manager) handleFailure(ctx context.Context, op *Operation, cause error) {
	m.mu.Lock()
	attempts := op.Attempts
	m.mu.Unlock()

	if m.policy.ShouldRetry(attempts) {
		m.armRetry(op)
		m.log.Warn("delivery failed, retry scheduled",
			zap.String("id", op.ID), zap.Int("attempts", attempts), zap.Error(cause))
		return
	}
	// Exhausted: retained and flagged, never silently dropped, skipped by
	// future drains.
	m.mu.Lock()
	op.Failed = true
	snap := *op
	m.mu.Unlock()
	m.persist(ctx, op)
	m.cancelTimer(op.ID)
	m.log.Error("delivery permanently failed",
		zap.String("id", op.ID), zap.Int("attempts", attempts), zap.Error(cause))
	m.emit(Event{Type: EventFailed, Op: &snap})
}

// retryDelay returns the backoff before the next attempt. Attempts was
// already incremented for the attempt that just failed, so the first retry
// waits the base delay and the sequence runs base, 2x, 4x up to the cap.
func (m *Manager) retryDelay(op *Operation) time.Duration {
	return m.policy.NextDelay(op.Attempts - 1)
}

// armRetry schedules a solo retry for one operation, independent of the
// global drain cadence. Several operations can be in backoff at once with
// different next-attempt times.
func (m *Manager) armRetry(op *Operation) {
	m.mu.Lock()
	delay := m.retryDelay(op)
	if old, ok := m.timers[op.ID]; ok {
		old.Stop()
	}
	id := op.ID
	m.timers[id] = time.AfterFunc(delay, func() { m.soloRetry(id) })
	m.mu.Unlock()
}

// soloRetry fires when a backoff timer elapses. The operation is retried
// directly, not via a full drain, and only while online; offline it stays
// queued for the next transition-triggered drain.
func (m *Manager) soloRetry(id string) {
	m.mu.Lock()
	delete(m.timers, id)
	var op *Operation
	for _, q := range m.queue {
		if q.ID == id && !q.Failed {
			op = q
			break
		}
	}
	m.mu.Unlock()
	if op == nil {
		return
	}
	if !m.state.Online() {
		m.log.Debug("solo retry skipped while offline", zap.String("id", id))
		return
	}

	ctx := context.Background()
	if err := m.attempt(ctx, op); err != nil {
		m.handleFailure(ctx, op, err)
		return
	}
	m.complete(ctx, op)
}

// ClearQueue empties memory and store unconditionally. Meant for
// destructive resets such as logout, not normal operation.
func (m *Manager) ClearQueue(ctx context.Context) error {
	m.mu.Lock()
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
	m.queue = nil
	m.mu.Unlock()
	return m.store.Clear(ctx, queuestore.StoreOfflineQueue)
}

// Queue returns a snapshot of retained operations, failed ones included.
func (m *Manager) Queue() []Operation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Operation, 0, len(m.queue))
	for _, op := range m.queue {
		out = append(out, *op)
	}
	return out
}

// Len counts retained operations, failed ones included.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Durable reports whether the queue is still backed by storage. A failed
// load or persist degrades it to memory-only for the life of the process.
func (m *Manager) Durable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.degraded
}

// Close stops all pending retry timers.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
}

func (m *Manager) removeFromMemory(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, op := range m.queue {
		if op.ID == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return
		}
	}
}

func (m *Manager) cancelTimer(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[id]; ok {
		t.Stop()
		delete(m.timers, id)
	}
}

type syncLogEntry struct {
	StartedAt time.Time `json:"startedAt"`
	Status    string    `json:"status"`
	Processed int       `json:"processed"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
}

// appendSyncLog records one entry per drain in the sync_log store.
func (m *Manager) appendSyncLog(ctx context.Context, res SyncResult) {
	status := "ok"
	if res.Failed > 0 {
		status = "partial"
	}
	now := m.clock()
	entry := syncLogEntry{
		StartedAt: now,
		Status:    status,
		Processed: res.Processed,
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
	}
	doc, err := json.Marshal(entry)
	if err != nil {
		return
	}
	rec := queuestore.Record{
		Key:   uuid.NewString(),
		Value: doc,
		Index: map[string]string{
			"status":    status,
			"timestamp": queuestore.TimeIndexValue(now),
		},
	}
	if err := m.store.Put(ctx, queuestore.StoreSyncLog, rec); err != nil {
		m.log.Warn("append sync log", zap.Error(err))
	}
}
