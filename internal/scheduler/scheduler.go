package scheduler

import (
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/weather-widget/internal/controller"
	"github.com/i474232898/weather-widget/internal/observability"
	"github.com/i474232898/weather-widget/internal/store"
)

// DefaultSweepInterval is how often idle sessions are evicted.
const DefaultSweepInterval = time.Minute

// Scheduler periodically refreshes the forecast of ready sessions and evicts
// idle ones.
type Scheduler struct {
	scheduler *gocron.Scheduler
	sessions  *store.SessionStore
	refresh   time.Duration
	sweep     time.Duration
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// New creates a new Scheduler. A zero refresh interval disables auto-refresh;
// session sweeping always runs.
func New(sessions *store.SessionStore, refresh, sweep time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Scheduler {
	if sweep <= 0 {
		sweep = DefaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		sessions:  sessions,
		refresh:   refresh,
		sweep:     sweep,
		metrics:   metrics,
		logger:    logger,
	}
}

// Start schedules the jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(s.sweep).WaitForSchedule().Do(s.Sweep); err != nil {
		return err
	}

	if s.refresh > 0 {
		if _, err := s.scheduler.Every(s.refresh).WaitForSchedule().Do(s.RefreshReady); err != nil {
			return err
		}
	} else {
		s.logger.Info("scheduler: auto-refresh disabled")
	}

	s.scheduler.StartAsync()
	return nil
}

// RefreshReady re-fetches the forecast of every session showing weather.
func (s *Scheduler) RefreshReady() {
	refreshed := 0
	s.sessions.Each(func(sess *store.Session) {
		if sess.Controller.State().Status != controller.StatusReady {
			return
		}
		sess.Controller.Refresh()
		s.metrics.Refreshed()
		refreshed++
	})
	s.logger.Debug("scheduler: refresh job completed", zap.Int("refreshed", refreshed))
}

// Sweep evicts idle sessions.
func (s *Scheduler) Sweep() {
	before := s.sessions.Len()
	s.sessions.Sweep()
	if evicted := before - s.sessions.Len(); evicted > 0 {
		s.logger.Info("scheduler: evicted idle sessions", zap.Int("count", evicted))
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
