package syncqueue

// EventType enumerates the observable moments of the queue lifecycle.
type EventType string

const (
	EventQueued       EventType = "queued"
	EventSyncStarted  EventType = "sync-started"
	EventSynced       EventType = "synced"
	EventFailed       EventType = "failed"
	EventSyncComplete EventType = "sync-complete"
)

// Event carries the operation snapshot (for per-item events) or the batch
// result (for sync-complete).
type Event struct {
	Type   EventType
	Op     *Operation
	Result *SyncResult
}

// Subscribe registers an observer and returns its unsubscribe function.
// Observer panics are caught and logged; a faulty observer cannot stop
// queue processing or other observers.
func (m *Manager) Subscribe(fn func(Event)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.obsID
	m.obsID++
	m.observers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.observers, id)
	}
}

func (m *Manager) emit(ev Event) {
	m.mu.Lock()
	fns := make([]func(Event), 0, len(m.observers))
	for _, fn := range m.observers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.Error("queue observer panicked")
				}
			}()
			fn(ev)
		}()
	}
}
