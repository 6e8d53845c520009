package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestInitialStateOnline(t *testing.T) {
	s := NewState()
	if !s.Online() {
		t.Fatalf("initial state must be online")
	}
	if s.SyncInProgress() {
		t.Fatalf("no sync should be in progress at start")
	}
}

func TestBeginSyncExcludes(t *testing.T) {
	s := NewState()
	if !s.BeginSync() {
		t.Fatalf("first BeginSync must win")
	}
	if s.BeginSync() {
		t.Fatalf("second BeginSync must lose while first holds the slot")
	}
	s.EndSync()
	if !s.BeginSync() {
		t.Fatalf("BeginSync after EndSync must win")
	}
}

func TestDrainFiresOncePerTransition(t *testing.T) {
	s := NewState()
	var drains atomic.Int32
	m := New(s, Options{Drain: func(context.Context) { drains.Add(1) }}, nil)
	defer m.Destroy()

	// Already online: redundant signals must not drain.
	m.SetOnline()
	m.SetOnline()
	if got := drains.Load(); got != 0 {
		t.Fatalf("redundant online drained %d times", got)
	}

	m.SetOffline()
	m.SetOnline()
	m.SetOnline()
	m.SetOnline()

	deadline := time.After(time.Second)
	for drains.Load() == 0 {
		select {
		case <-deadline:
			t.Fatalf("drain never fired")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	time.Sleep(20 * time.Millisecond)
	if got := drains.Load(); got != 1 {
		t.Fatalf("drained %d times, want exactly 1", got)
	}
}

func TestListenerPanicIsolated(t *testing.T) {
	s := NewState()
	m := New(s, Options{}, nil)
	defer m.Destroy()

	var ran atomic.Bool
	m.On(EventOffline, func(any) { panic("boom") })
	m.On(EventOffline, func(any) { ran.Store(true) })

	m.SetOffline()
	if !ran.Load() {
		t.Fatalf("second listener did not run after first panicked")
	}
}

func TestUnsubscribe(t *testing.T) {
	s := NewState()
	m := New(s, Options{}, nil)
	defer m.Destroy()

	var calls atomic.Int32
	off := m.On(EventOffline, func(any) { calls.Add(1) })
	m.SetOffline()
	m.SetOnline()
	off()
	m.SetOffline()
	if got := calls.Load(); got != 1 {
		t.Fatalf("listener called %d times, want 1", got)
	}
}

func TestProbeDrivesTransitions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewState()
	var drains atomic.Int32
	m := New(s, Options{
		ProbeURL:      srv.URL,
		ProbeInterval: 10 * time.Millisecond,
		ProbeTimeout:  time.Second,
		Drain:         func(context.Context) { drains.Add(1) },
	}, nil)
	defer m.Destroy()

	// Force offline, then let probes bring us back.
	m.SetOffline()
	m.Start()

	deadline := time.After(2 * time.Second)
	for !s.Online() {
		select {
		case <-deadline:
			t.Fatalf("probe never restored online state")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	time.Sleep(50 * time.Millisecond)
	if got := drains.Load(); got != 1 {
		t.Fatalf("probe recovery drained %d times, want 1", got)
	}
}

func TestDestroyStopsNotifications(t *testing.T) {
	s := NewState()
	m := New(s, Options{}, nil)
	var calls atomic.Int32
	m.On(EventOffline, func(any) { calls.Add(1) })
	m.Destroy()
	m.SetOffline()
	if calls.Load() != 0 {
		t.Fatalf("listener survived Destroy")
	}
}
