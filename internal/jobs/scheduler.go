package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/robfig/cron/v3"
)

// Job is a unit of periodic maintenance work.
type Job interface {
	Run(ctx context.Context) error
}

// JobScheduler runs registered jobs on cron schedules.
type JobScheduler struct {
	scheduler gocron.Scheduler
	jobs      map[string]registeredJob
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	running   bool
}

type registeredJob struct {
	job      Job
	schedule string
	handle   gocron.Job
}

// JobStatus represents the status of a job
type JobStatus struct {
	Name        string    `json:"name"`
	Schedule    string    `json:"schedule"`
	NextRunTime time.Time `json:"next_run_time"`
	Registered  bool      `json:"registered"`
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NewJobScheduler creates a new job scheduler
func NewJobScheduler() (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &JobScheduler{
		scheduler: scheduler,
		jobs:      make(map[string]registeredJob),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Register adds a job under a standard five-field cron expression.
func (s *JobScheduler) Register(name, schedule string, job Job) error {
	if _, err := cronParser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", schedule, name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	handle, err := s.scheduler.NewJob(
		gocron.CronJob(schedule, false),
		gocron.NewTask(func() { s.runJob(name, job) }),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.jobs[name] = registeredJob{job: job, schedule: schedule, handle: handle}
	slog.Info("registered job", "job", name, "schedule", schedule)
	return nil
}

// Start begins running all registered jobs
func (s *JobScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.scheduler.Start()
	slog.Info("job scheduler started", "jobs", len(s.jobs))
}

func (s *JobScheduler) runJob(name string, job Job) {
	startTime := time.Now()
	if err := job.Run(s.ctx); err != nil {
		slog.Error("job failed", "job", name, "error", err)
		return
	}
	slog.Debug("job completed", "job", name, "duration", time.Since(startTime))
}

// Stop cancels running jobs and shuts the scheduler down.
func (s *JobScheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancel()
	s.running = false
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	slog.Info("job scheduler stopped")
	return nil
}

// RunNow runs a registered job synchronously.
func (s *JobScheduler) RunNow(name string) error {
	s.mu.Lock()
	entry, exists := s.jobs[name]
	s.mu.Unlock()

	if !exists {
		return fmt.Errorf("job %s not found", name)
	}
	return entry.job.Run(s.ctx)
}

// GetStatus returns the status of all jobs, sorted by name.
func (s *JobScheduler) GetStatus() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := make([]JobStatus, 0, len(s.jobs))
	for name, entry := range s.jobs {
		st := JobStatus{Name: name, Schedule: entry.schedule, Registered: true}
		if s.running {
			if next, err := entry.handle.NextRun(); err == nil {
				st.NextRunTime = next
			}
		}
		if st.NextRunTime.IsZero() {
			if sched, err := cronParser.Parse(entry.schedule); err == nil {
				st.NextRunTime = sched.Next(time.Now().UTC())
			}
		}
		status = append(status, st)
	}
	sort.Slice(status, func(i, j int) bool { return status[i].Name < status[j].Name })
	return status
}
