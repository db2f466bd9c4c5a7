package jobs

import (
	"context"
	"log/slog"
	"time"
)

// NotificationPurger deletes read notifications older than a retention window.
type NotificationPurger interface {
	PurgeRead(ctx context.Context, retention time.Duration) (int64, error)
}

// NotificationCleanupJob removes read notifications past retention.
type NotificationCleanupJob struct {
	purger    NotificationPurger
	retention time.Duration
}

// NewNotificationCleanupJob creates a new notification cleanup job
func NewNotificationCleanupJob(purger NotificationPurger, retention time.Duration) *NotificationCleanupJob {
	return &NotificationCleanupJob{purger: purger, retention: retention}
}

// Run executes the cleanup
func (j *NotificationCleanupJob) Run(ctx context.Context) error {
	if j.retention <= 0 {
		return nil
	}

	startTime := time.Now()
	deleted, err := j.purger.PurgeRead(ctx, j.retention)
	if err != nil {
		return err
	}

	if deleted > 0 {
		slog.Info("purged read notifications", "deleted", deleted, "retention", j.retention, "duration", time.Since(startTime))
	}
	return nil
}
