package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Pruner deletes records created before a cutoff
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// Scheduler runs the service's periodic maintenance jobs
type Scheduler struct {
	scheduler gocron.Scheduler
	now       func() time.Time
}

// New creates a stopped scheduler
func New() (*Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, now: time.Now}, nil
}

// Every registers fn to run on a fixed interval. Runs of the same job never overlap.
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(fn),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", name, err)
	}
	fiberlog.Infof("Scheduled %s every %s", name, interval)
	return nil
}

// AddAuditRetention prunes audit records older than retention every interval
func (s *Scheduler) AddAuditRetention(pruner Pruner, retention, interval time.Duration) error {
	if retention <= 0 {
		return fmt.Errorf("audit retention must be positive")
	}
	return s.Every("audit_retention", interval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		n, err := PruneOlderThan(ctx, pruner, retention, s.now())
		if err != nil {
			fiberlog.Errorf("Audit retention failed: %v", err)
			return
		}
		if n > 0 {
			fiberlog.Infof("Audit retention removed %d records", n)
		}
	})
}

// PruneOlderThan removes records created more than retention before now
func PruneOlderThan(ctx context.Context, pruner Pruner, retention time.Duration, now time.Time) (int64, error) {
	return pruner.Prune(ctx, now.Add(-retention))
}

// Start begins running jobs
func (s *Scheduler) Start() {
	s.scheduler.Start()
	fiberlog.Info("Scheduler started")
}

// Stop waits for running jobs and shuts down
func (s *Scheduler) Stop() error {
	fiberlog.Info("Scheduler stopped")
	return s.scheduler.Shutdown()
}

// Jobs returns the names of registered jobs
func (s *Scheduler) Jobs() []string {
	jobs := s.scheduler.Jobs()
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name())
	}
	return names
}
