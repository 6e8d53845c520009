package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mkatragadda/Vitta-sub011/internal/cacherouter"
	"github.com/mkatragadda/Vitta-sub011/internal/connectivity"
	"github.com/mkatragadda/Vitta-sub011/internal/syncqueue"
)

// Options holds the cron schedules. Empty schedule strings disable the
// corresponding job.
type Options struct {
	// DrainSchedule triggers a periodic queue drain, a safety net for
	// drains missed while the connectivity signal was quiet.
	DrainSchedule string
	// SweepSchedule triggers the dynamic-cache retention sweep.
	SweepSchedule string
	// SweepRetention is how long dynamic entries are kept.
	SweepRetention time.Duration
}

// Scheduler runs the periodic background jobs.
type Scheduler struct {
	opts    Options
	manager *syncqueue.Manager
	router  *cacherouter.Router
	state   *connectivity.State
	cron    *cron.Cron
	log     *zap.Logger
}

func New(opts Options, manager *syncqueue.Manager, router *cacherouter.Router, state *connectivity.State, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		opts:    opts,
		manager: manager,
		router:  router,
		state:   state,
		cron:    cron.New(),
		log:     log.Named("scheduler"),
	}
}

func (s *Scheduler) Start() error {
	if s.opts.DrainSchedule != "" {
		if _, err := s.cron.AddFunc(s.opts.DrainSchedule, s.drain); err != nil {
			return err
		}
		s.log.Info("scheduled queue drain", zap.String("schedule", s.opts.DrainSchedule))
	}
	if s.opts.SweepSchedule != "" {
		if _, err := s.cron.AddFunc(s.opts.SweepSchedule, s.sweep); err != nil {
			return err
		}
		s.log.Info("scheduled cache sweep", zap.String("schedule", s.opts.SweepSchedule))
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) drain() {
	if !s.state.Online() {
		s.log.Debug("scheduled drain skipped, offline")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	res, err := s.manager.ProcessQueue(ctx)
	if errors.Is(err, syncqueue.ErrAlreadySyncing) {
		s.log.Debug("scheduled drain skipped, sync already running")
		return
	}
	if err != nil {
		s.log.Error("scheduled drain failed", zap.Error(err))
		return
	}
	if res.Processed > 0 {
		s.log.Info("scheduled drain complete",
			zap.Int("processed", res.Processed),
			zap.Int("succeeded", res.Succeeded),
			zap.Int("failed", res.Failed))
	}
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	dropped, err := s.router.SweepDynamic(ctx, s.opts.SweepRetention)
	if err != nil {
		s.log.Error("cache sweep failed", zap.Error(err))
		return
	}
	if dropped > 0 {
		s.log.Info("cache sweep complete", zap.Int("dropped", dropped))
	}
}
