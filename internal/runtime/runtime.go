package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/mkatragadda/Vitta-sub011/internal/cacherouter"
	"github.com/mkatragadda/Vitta-sub011/internal/cachestore"
	cfgpkg "github.com/mkatragadda/Vitta-sub011/internal/config"
	"github.com/mkatragadda/Vitta-sub011/internal/connectivity"
	"github.com/mkatragadda/Vitta-sub011/internal/metrics"
	"github.com/mkatragadda/Vitta-sub011/internal/queuestore"
	"github.com/mkatragadda/Vitta-sub011/internal/retry"
	"github.com/mkatragadda/Vitta-sub011/internal/scheduler"
	pebblestore "github.com/mkatragadda/Vitta-sub011/internal/storage/pebble"
	"github.com/mkatragadda/Vitta-sub011/internal/syncqueue"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	// EnableMetrics registers the prometheus collectors and plugs the
	// storage and router hooks in. Off in tests to avoid duplicate
	// registration.
	EnableMetrics bool
}

// Runtime wires storage, caches, the sync queue, connectivity, and the
// background scheduler for a single-node instance.
type Runtime struct {
	config cfgpkg.Config
	log    *zap.Logger

	db      *pebblestore.DB
	caches  *cachestore.Store
	queue   *queuestore.Store
	state   *connectivity.State
	monitor *connectivity.Monitor
	manager *syncqueue.Manager
	router  *cacherouter.Router
	sched   *scheduler.Scheduler

	unsubscribe func()
}

// Open builds the full component graph and starts the background pieces:
// the queue resume scan, the connectivity probe loop, and the cron jobs.
func Open(opts Options, log *zap.Logger) (*Runtime, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg := opts.Config

	fsync, err := pebblestore.ParseFsyncMode(cfg.Fsync)
	if err != nil {
		return nil, err
	}
	storageOpts := pebblestore.Options{DataDir: cfg.DataDir, Fsync: fsync, FsyncInterval: cfg.FsyncInterval}
	if opts.EnableMetrics {
		metrics.Register()
		storageOpts.Metrics = metrics.Storage{}
	}
	db, err := pebblestore.Open(storageOpts)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	rt := &Runtime{config: cfg, log: log, db: db}
	if err := rt.wire(opts); err != nil {
		_ = db.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) wire(opts Options) error {
	cfg := rt.config

	rt.queue = queuestore.New(rt.db, rt.log)
	rt.caches = cachestore.New(rt.db, cfg.Generation, rt.log)
	rt.state = connectivity.NewState()

	handlers := syncqueue.HTTPHandlers(syncqueue.Endpoints{
		SendMessage:    cfg.Sync.MessagesURL,
		CreateResource: cfg.Sync.ResourcesURL,
		UpdateResource: cfg.Sync.ResourcesURL,
		DeleteResource: cfg.Sync.ResourcesURL,
	}, nil)
	policy := retry.Policy{
		MaxAttempts:    cfg.Sync.MaxAttempts,
		BaseDelay:      cfg.Sync.BaseDelay,
		Cap:            cfg.Sync.MaxDelay,
		JitterFraction: retry.DefaultJitterFraction,
	}
	rt.manager = syncqueue.NewManager(rt.queue, rt.state, handlers, syncqueue.Options{Policy: policy}, rt.log)
	if err := rt.manager.Start(context.Background()); err != nil {
		return fmt.Errorf("resume queue: %w", err)
	}

	routerOpts := cacherouter.Options{
		APIPrefixes:           cfg.Cache.APIPrefixes,
		LiveInferencePrefixes: cfg.Cache.LiveInferencePrefixes,
		NetworkTimeout:        cfg.Network.FetchTimeout,
		ImageSizeLimit:        cfg.Cache.ImageSizeLimitBytes,
		PrecacheManifest:      cfg.Cache.PrecacheManifest,
		OfflineDocumentURL:    cfg.Cache.OfflineDocumentURL,
		Bypass:                cfg.Cache.Bypass,
	}
	if opts.EnableMetrics {
		routerOpts.Stats = metrics.RouterStats{}
	}
	router, err := cacherouter.New(http.DefaultTransport, rt.caches, routerOpts, rt.log)
	if err != nil {
		return err
	}
	rt.router = router

	rt.monitor = connectivity.New(rt.state, connectivity.Options{
		ProbeURL:      cfg.Network.ProbeURL,
		ProbeInterval: cfg.Network.ProbeInterval,
		ProbeTimeout:  cfg.Network.ProbeTimeout,
		Drain:         rt.drainOnReconnect,
	}, rt.log)
	rt.monitor.Start()

	if opts.EnableMetrics {
		rt.observeQueue()
	}

	rt.sched = scheduler.New(scheduler.Options{
		DrainSchedule:  cfg.Sync.DrainSchedule,
		SweepSchedule:  cfg.Cache.SweepSchedule,
		SweepRetention: cfg.Cache.SweepRetention,
	}, rt.manager, rt.router, rt.state, rt.log)
	if err := rt.sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	return nil
}

// drainOnReconnect is the monitor's Offline->Online hook.
func (rt *Runtime) drainOnReconnect(ctx context.Context) {
	res, err := rt.manager.ProcessQueue(ctx)
	if errors.Is(err, syncqueue.ErrAlreadySyncing) {
		return
	}
	if err != nil {
		rt.log.Error("reconnect drain failed", zap.Error(err))
		return
	}
	rt.log.Info("reconnect drain complete",
		zap.Int("processed", res.Processed),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed))
}

// observeQueue feeds queue lifecycle events into the prometheus counters.
func (rt *Runtime) observeQueue() {
	metrics.ConnectivityOnline.Set(1)
	rt.monitor.On(connectivity.EventOnline, func(any) { metrics.ConnectivityOnline.Set(1) })
	rt.monitor.On(connectivity.EventOffline, func(any) { metrics.ConnectivityOnline.Set(0) })

	rt.unsubscribe = rt.manager.Subscribe(func(ev syncqueue.Event) {
		switch ev.Type {
		case syncqueue.EventSyncStarted:
			metrics.SyncRuns.Inc()
		case syncqueue.EventSynced:
			metrics.SyncOpsSucceeded.Inc()
		case syncqueue.EventFailed:
			metrics.SyncOpsExhausted.Inc()
		case syncqueue.EventSyncComplete:
			if ev.Result != nil {
				metrics.SyncOpsFailed.Add(float64(ev.Result.Failed))
			}
		}
		metrics.QueueDepth.Set(float64(rt.manager.Len()))
	})
}

// CheckHealth verifies the storage layer still answers.
func (rt *Runtime) CheckHealth(ctx context.Context) error {
	if rt.db == nil {
		return errors.New("db not open")
	}
	it, err := rt.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// Close stops background work and releases storage. Safe to call once.
func (rt *Runtime) Close() error {
	if rt.sched != nil {
		rt.sched.Stop()
	}
	if rt.monitor != nil {
		rt.monitor.Destroy()
	}
	if rt.unsubscribe != nil {
		rt.unsubscribe()
	}
	if rt.manager != nil {
		rt.manager.Close()
	}
	if rt.db == nil {
		return nil
	}
	return rt.db.Close()
}

// Accessors for the control surface and CLI.

func (rt *Runtime) Config() cfgpkg.Config          { return rt.config }
func (rt *Runtime) Caches() *cachestore.Store      { return rt.caches }
func (rt *Runtime) Queue() *queuestore.Store       { return rt.queue }
func (rt *Runtime) Manager() *syncqueue.Manager    { return rt.manager }
func (rt *Runtime) Router() *cacherouter.Router    { return rt.router }
func (rt *Runtime) Monitor() *connectivity.Monitor { return rt.monitor }
func (rt *Runtime) State() *connectivity.State     { return rt.state }
func (rt *Runtime) DB() *pebblestore.DB            { return rt.db }
