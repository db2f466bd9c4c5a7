package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"taskboard/internal/models"
	"taskboard/internal/repository/memory"
	"taskboard/internal/services"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

func newScheduler(t *testing.T) *JobScheduler {
	t.Helper()
	s, err := NewJobScheduler()
	if err != nil {
		t.Fatalf("NewJobScheduler failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestRegisterValidatesSchedule(t *testing.T) {
	s := newScheduler(t)

	tests := []struct {
		name     string
		schedule string
		wantErr  bool
	}{
		{"hourly", "0 * * * *", false},
		{"daily", "0 3 * * *", false},
		{"garbage", "every tuesday", true},
		{"six fields", "0 0 3 * * *", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Register("job-"+tt.name, tt.schedule, &countingJob{})
			if (err != nil) != tt.wantErr {
				t.Errorf("Register(%q) error = %v, wantErr %v", tt.schedule, err, tt.wantErr)
			}
		})
	}
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	s := newScheduler(t)
	if err := s.Register("cleanup", "0 * * * *", &countingJob{}); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := s.Register("cleanup", "0 * * * *", &countingJob{}); err == nil {
		t.Error("Expected duplicate registration to fail")
	}
}

func TestRunNow(t *testing.T) {
	s := newScheduler(t)
	job := &countingJob{}
	if err := s.Register("count", "0 * * * *", job); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := s.RunNow("count"); err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	if job.runs.Load() != 1 {
		t.Errorf("Expected 1 run, got %d", job.runs.Load())
	}

	if err := s.RunNow("missing"); err == nil {
		t.Error("Expected error for unknown job")
	}

	failing := &countingJob{err: errors.New("boom")}
	_ = s.Register("failing", "0 * * * *", failing)
	if err := s.RunNow("failing"); err == nil {
		t.Error("Expected job error to be returned")
	}
}

func TestGetStatus(t *testing.T) {
	s := newScheduler(t)
	_ = s.Register("b-job", "0 3 * * *", &countingJob{})
	_ = s.Register("a-job", "*/5 * * * *", &countingJob{})
	s.Start()

	status := s.GetStatus()
	if len(status) != 2 {
		t.Fatalf("Expected 2 jobs, got %d", len(status))
	}
	if status[0].Name != "a-job" || status[1].Name != "b-job" {
		t.Errorf("Expected jobs sorted by name, got %s, %s", status[0].Name, status[1].Name)
	}
	for _, st := range status {
		if !st.NextRunTime.After(time.Now().Add(-time.Minute)) {
			t.Errorf("%s: expected a future next run, got %v", st.Name, st.NextRunTime)
		}
	}
}

func TestNotificationCleanupJob(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	notifier := services.NewNotificationService(repo, services.NopPublisher{})
	recipient := primitive.NewObjectID()

	read := &models.Notification{Recipient: recipient, Message: "old", Type: models.NotificationTaskAssignment}
	unread := &models.Notification{Recipient: recipient, Message: "new", Type: models.NotificationTaskAssignment}
	for _, n := range []*models.Notification{read, unread} {
		if err := repo.CreateNotification(ctx, n); err != nil {
			t.Fatalf("CreateNotification failed: %v", err)
		}
	}
	if _, err := repo.MarkNotificationRead(ctx, read.ID, recipient); err != nil {
		t.Fatalf("MarkNotificationRead failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	job := NewNotificationCleanupJob(notifier, 5*time.Millisecond)
	if err := job.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	remaining, _ := repo.ListNotifications(ctx, recipient, false, 0)
	if len(remaining) != 1 || remaining[0].ID != unread.ID {
		t.Errorf("Expected only the unread notification to remain, got %+v", remaining)
	}
}

func TestNotificationCleanupDisabled(t *testing.T) {
	purger := &fakePurger{}
	if err := NewNotificationCleanupJob(purger, 0).Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if purger.calls != 0 {
		t.Error("Expected zero retention to skip the purge")
	}
}

type fakePurger struct{ calls int }

func (p *fakePurger) PurgeRead(context.Context, time.Duration) (int64, error) {
	p.calls++
	return 0, nil
}
