// Package sched runs periodic background jobs on cron schedules.
package sched

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Scheduler wraps a cron runner with 5-field expression parsing.
type Scheduler struct {
	c *cron.Cron
}

// New creates a stopped Scheduler.
func New() *Scheduler {
	return &Scheduler{c: cron.New(cron.WithParser(cronParser))}
}

// Add registers a job under a 5-field cron expression.
func (s *Scheduler) Add(expr string, job func()) error {
	if _, err := s.c.AddFunc(expr, job); err != nil {
		return fmt.Errorf("sched: add %q: %w", expr, err)
	}
	return nil
}

// Start begins running scheduled jobs in their own goroutines.
func (s *Scheduler) Start() {
	s.c.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
}

// NextAfter parses a 5-field cron expression and returns the duration
// until its next fire time. Returns 0 on parse error.
func NextAfter(expr string) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	next := sched.Next(time.Now())
	d := time.Until(next)
	if d < 0 {
		return 0
	}
	return d
}
