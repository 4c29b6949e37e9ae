// Package scheduler runs the bot's poll cycles on a cron schedule.
//
// The platform is polled, not pushed: a cron ticker fires the registered
// jobs, and overlap protection lives in the runner itself. Cron's internal
// events (panics recovered inside a job, schedule bookkeeping) are routed
// through the process logger.
package scheduler

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler dispatches named jobs on standard 5-field cron expressions
// (minute, hour, day of month, month, day of week).
type Scheduler struct {
	cron *cron.Cron
}

// New creates a Scheduler. Jobs do not fire until Start is called.
func New() *Scheduler {
	c := cron.New(
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)),
		cron.WithChain(cron.Recover(slogAdapter{})),
	)
	return &Scheduler{cron: c}
}

// Schedule registers a named job. The name only appears in logs.
func (s *Scheduler) Schedule(name, expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, func() {
		slog.Debug("Scheduled job firing", "job", name)
		task()
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q for job %s: %w", expr, name, err)
	}
	slog.Info("Job scheduled", "job", name, "cron", expr)
	return nil
}

// Start begins dispatching registered jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts dispatch and waits for any running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// slogAdapter satisfies cron.Logger over the process-wide slog logger.
type slogAdapter struct{}

func (slogAdapter) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug(msg, keysAndValues...)
}

func (slogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
