// Package scheduler runs the background jobs: ingestion, integrity
// scans, order and account sync, and the trading cycle.
package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one schedulable unit of work
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background jobs. Each job is guarded against
// overlap: a tick that fires while the previous run is still going is
// skipped, so slow ingestion or a long trading cycle never stacks.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
	wg   sync.WaitGroup
}

// New creates a new scheduler
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for in-flight jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.wg.Wait()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job with a cron schedule, for example
// "@every 5m" or "0 */15 * * * *"
func (s *Scheduler) AddJob(schedule string, job Job) error {
	var inFlight atomic.Bool
	_, err := s.cron.AddFunc(schedule, func() {
		if !inFlight.CompareAndSwap(false, true) {
			s.log.Warn().Str("job", job.Name()).Msg("Previous run still going, skipping tick")
			return
		}
		s.wg.Add(1)
		defer s.wg.Done()
		defer inFlight.Store(false)

		start := time.Now()
		s.log.Debug().Str("job", job.Name()).Msg("Running job")
		if err := job.Run(); err != nil {
			s.log.Error().
				Err(err).
				Str("job", job.Name()).
				Dur("elapsed", time.Since(start)).
				Msg("Job failed")
			return
		}
		s.log.Debug().
			Str("job", job.Name()).
			Dur("elapsed", time.Since(start)).
			Msg("Job completed")
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")
	return nil
}

// RunNow executes a job immediately, outside its schedule
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return job.Run()
}
