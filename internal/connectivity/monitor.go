package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event names emitted by the monitor.
type Event string

const (
	EventOnline  Event = "online"
	EventOffline Event = "offline"
)

// Listener receives event data. Errors and panics inside a listener are
// caught and logged so one faulty listener cannot block the others.
type Listener func(data any)

// Options configures the monitor.
type Options struct {
	// ProbeURL is hit with a lightweight request on ProbeInterval as a
	// secondary signal, because platform online/offline signals can report
	// online while real connectivity is gone. Empty disables probing.
	ProbeURL      string
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
	// HTTPClient overrides the probe client. Nil uses http.DefaultClient
	// with the probe timeout applied per request.
	HTTPClient *http.Client
	// Drain is invoked exactly once per Offline->Online transition.
	Drain func(ctx context.Context)
}

// Monitor tracks online/offline state from pushed signals and active probes.
type Monitor struct {
	state *State
	opts  Options
	log   *zap.Logger

	mu        sync.Mutex
	listeners map[Event]map[int]Listener
	nextID    int
	stop      chan struct{}
	stopOnce  sync.Once
}

// New builds a monitor around the shared state. Call Start to begin probing
// and Destroy for clean teardown.
func New(state *State, opts Options, log *zap.Logger) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 3 * time.Second
	}
	return &Monitor{
		state:     state,
		opts:      opts,
		log:       log.Named("connectivity"),
		listeners: make(map[Event]map[int]Listener),
		stop:      make(chan struct{}),
	}
}

// On registers a listener and returns its unsubscribe function.
func (m *Monitor) On(ev Event, fn Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listeners[ev] == nil {
		m.listeners[ev] = make(map[int]Listener)
	}
	id := m.nextID
	m.nextID++
	m.listeners[ev][id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners[ev], id)
	}
}

func (m *Monitor) notify(ev Event, data any) {
	m.mu.Lock()
	fns := make([]Listener, 0, len(m.listeners[ev]))
	for _, fn := range m.listeners[ev] {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		m.invoke(ev, fn, data)
	}
}

func (m *Monitor) invoke(ev Event, fn Listener, data any) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("listener panicked", zap.String("event", string(ev)), zap.Any("panic", r))
		}
	}()
	fn(data)
}

// SetOnline feeds a platform "online" signal. Only an actual Offline->Online
// transition notifies listeners and triggers the drain; redundant signals
// within the same online stretch are no-ops.
func (m *Monitor) SetOnline() {
	if !m.state.setOnline() {
		return
	}
	m.log.Info("connectivity restored")
	m.notify(EventOnline, nil)
	if m.opts.Drain != nil {
		go m.opts.Drain(context.Background())
	}
}

// SetOffline feeds a platform "offline" signal.
func (m *Monitor) SetOffline() {
	if !m.state.setOffline() {
		return
	}
	m.log.Warn("connectivity lost")
	m.notify(EventOffline, nil)
}

// Start launches the active probe loop when configured.
func (m *Monitor) Start() {
	if m.opts.ProbeURL == "" || m.opts.ProbeInterval <= 0 {
		m.log.Debug("active probing disabled")
		return
	}
	go m.probeLoop()
}

func (m *Monitor) probeLoop() {
	t := time.NewTicker(m.opts.ProbeInterval)
	defer t.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-t.C:
			if m.probeOnce() {
				m.SetOnline()
			} else {
				m.SetOffline()
			}
		}
	}
}

// probeOnce reports whether the probe endpoint answered at all. Any HTTP
// status counts as reachable; only transport errors and timeouts count as
// offline.
func (m *Monitor) probeOnce() bool {
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.ProbeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.opts.ProbeURL, nil)
	if err != nil {
		return false
	}
	client := m.opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		m.log.Debug("probe failed", zap.Error(err))
		return false
	}
	_ = resp.Body.Close()
	return true
}

// Destroy removes all listeners and stops the probe loop. Required for
// clean teardown in tests and component unmounts.
func (m *Monitor) Destroy() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.mu.Lock()
	m.listeners = make(map[Event]map[int]Listener)
	m.mu.Unlock()
}
