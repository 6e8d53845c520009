package connectivity

import "sync/atomic"

// State is the process-wide connectivity snapshot shared by the monitor and
// the sync queue. Construct one per runtime and pass it by reference; there
// are no package-level instances.
type State struct {
	online         atomic.Bool
	syncInProgress atomic.Bool
}

// NewState starts optimistically online, before any signal has arrived.
func NewState() *State {
	s := &State{}
	s.online.Store(true)
	return s
}

// Online reports the current connectivity belief.
func (s *State) Online() bool { return s.online.Load() }

// SyncInProgress reports whether a full queue drain is running.
func (s *State) SyncInProgress() bool { return s.syncInProgress.Load() }

// BeginSync attempts to claim the drain slot. It returns false when a drain
// is already running; this is the sole mutual exclusion around full drains.
func (s *State) BeginSync() bool { return s.syncInProgress.CompareAndSwap(false, true) }

// EndSync releases the drain slot.
func (s *State) EndSync() { s.syncInProgress.Store(false) }

// setOnline flips to online and reports whether this was a transition.
func (s *State) setOnline() bool { return s.online.CompareAndSwap(false, true) }

// setOffline flips to offline and reports whether this was a transition.
func (s *State) setOffline() bool { return s.online.CompareAndSwap(true, false) }
