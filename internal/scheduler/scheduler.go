// Package scheduler runs background jobs on cron schedules: nightly price
// sync, analytics refresh, cache cleanup, API budget reset, and backups.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a unit of scheduled work.
type Job interface {
	Name() string
	Run() error
}

// Scheduler wraps a cron runner with per-job logging and panic recovery.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
	lastRun map[string]time.Time
}

// New creates a scheduler. Specs use the standard 5-field cron format.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		log:     log.With().Str("component", "scheduler").Logger(),
		entries: make(map[string]cron.EntryID),
		lastRun: make(map[string]time.Time),
	}
}

// Schedule registers a job. A job name may only be scheduled once.
func (s *Scheduler) Schedule(spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[job.Name()]; exists {
		return fmt.Errorf("job %s is already scheduled", job.Name())
	}

	id, err := s.cron.AddFunc(spec, func() { s.runJob(job) })
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", job.Name(), err)
	}

	s.entries[job.Name()] = id
	s.log.Info().Str("job", job.Name()).Str("spec", spec).Msg("Scheduled job")
	return nil
}

// runJob executes one job, recovering panics so a bad job cannot take down
// the scheduler.
func (s *Scheduler) runJob(job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("job", job.Name()).Interface("panic", r).Msg("Job panicked")
		}
	}()

	start := time.Now()
	s.log.Info().Str("job", job.Name()).Msg("Job starting")

	err := job.Run()

	s.mu.Lock()
	s.lastRun[job.Name()] = start
	s.mu.Unlock()

	if err != nil {
		s.log.Error().Err(err).Str("job", job.Name()).Dur("elapsed", time.Since(start)).Msg("Job failed")
		return
	}
	s.log.Info().Str("job", job.Name()).Dur("elapsed", time.Since(start)).Msg("Job complete")
}

// RunNow executes a scheduled job immediately, outside its cron schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	_, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no job named %s", name)
	}

	entry := s.findEntry(name)
	if entry == nil {
		return fmt.Errorf("no job named %s", name)
	}
	entry.Job.Run()
	return nil
}

func (s *Scheduler) findEntry(name string) *cron.Entry {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	entry := s.cron.Entry(id)
	if entry.ID == 0 {
		return nil
	}
	return &entry
}

// LastRun returns when a job last started, or a zero time if it has not
// run yet.
func (s *Scheduler) LastRun(name string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun[name]
}

// JobNames returns the names of all scheduled jobs.
func (s *Scheduler) JobNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

// Start begins executing jobs on their schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.entries)).Msg("Scheduler started")
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}
