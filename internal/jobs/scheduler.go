// Package jobs schedules recurring background work: equity snapshots,
// database maintenance, cache pruning, and backups.
package jobs

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a named unit of recurring work
type Job interface {
	Name() string
	Run() error
}

// Scheduler runs registered jobs on cron schedules in the account timezone,
// so market-relative schedules (snapshot after close) fire on the right wall
// clock regardless of where the process runs.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// NewScheduler creates a scheduler bound to the account timezone
func NewScheduler(location *time.Location, log zerolog.Logger) *Scheduler {
	if location == nil {
		location = time.UTC
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(location),
			cron.WithChain(cron.Recover(cron.DefaultLogger)),
		),
		log: log.With().Str("component", "scheduler").Logger(),
	}
}

// Register adds a job on a cron spec. Job failures are logged, never fatal to
// the scheduler.
func (s *Scheduler) Register(spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		if err := job.Run(); err != nil {
			s.log.Error().Err(err).Str("job", job.Name()).Msg("Job failed")
			return
		}
		s.log.Debug().
			Str("job", job.Name()).
			Dur("duration_ms", time.Since(start)).
			Msg("Job completed")
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("job", job.Name()).Str("schedule", spec).Msg("Registered job")
	return nil
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop halts scheduling and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}
