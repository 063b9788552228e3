// In file: internal/telemetry/scheduler.go
package telemetry

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one periodic task.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// Scheduler runs maintenance jobs on cron schedules. A job still running when
// its next tick arrives is skipped.
type Scheduler struct {
	cron *cron.Cron
	jobs []Job
}

func NewScheduler(jobs ...Job) *Scheduler {
	return &Scheduler{
		// Prevent overlapping runs
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		jobs: jobs,
	}
}

// Start registers every job and blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, job := range s.jobs {
		job := job
		_, err := s.cron.AddFunc(job.Schedule, func() {
			if err := s.runJob(ctx, job); err != nil {
				log.Printf("Error running scheduled job %s: %v", job.Name, err)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to add cron job %s: %w", job.Name, err)
		}
		log.Printf("⏰ Scheduled %s with schedule: %s", job.Name, job.Schedule)
	}

	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	log.Println("Scheduler stopped")
	return ctx.Err()
}

// RunOnce runs the named job immediately.
func (s *Scheduler) RunOnce(ctx context.Context, name string) error {
	for _, job := range s.jobs {
		if job.Name == name {
			return s.runJob(ctx, job)
		}
	}
	return fmt.Errorf("unknown job %q", name)
}

func (s *Scheduler) runJob(ctx context.Context, job Job) error {
	start := time.Now()
	if err := job.Run(ctx); err != nil {
		return fmt.Errorf("%s run failed: %w", job.Name, err)
	}
	log.Printf("%s finished in %s", job.Name, time.Since(start).Round(time.Millisecond))
	return nil
}
