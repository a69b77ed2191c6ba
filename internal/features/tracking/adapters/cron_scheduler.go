package adapters

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// CronScheduler runs tracking work on timers. Recurring jobs go through a
// cron runner; one-shot delays use plain timers because cron entries cannot
// fire at sub-second delays.
type CronScheduler struct {
	runner *cron.Cron

	mu      sync.Mutex
	timers  []*time.Timer
	stopped bool
}

// NewCronScheduler creates a started CronScheduler.
func NewCronScheduler() *CronScheduler {
	runner := cron.New()
	runner.Start()
	return &CronScheduler{runner: runner}
}

// After implements Scheduler.
func (s *CronScheduler) After(delay time.Duration, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.timers = append(s.timers, time.AfterFunc(delay, fn))
	return nil
}

// Every implements Scheduler.
func (s *CronScheduler) Every(interval time.Duration, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.runner.Schedule(cron.Every(interval), cron.FuncJob(fn))
	return nil
}

// Stop implements Scheduler. Jobs already running are left to finish.
func (s *CronScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.runner.Stop()
	for _, timer := range s.timers {
		timer.Stop()
	}
	s.timers = nil
}
