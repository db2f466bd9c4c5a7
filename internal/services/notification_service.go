package services

import (
	"context"
	"log/slog"
	"time"

	"taskboard/internal/models"
	"taskboard/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationService persists notifications and pushes them to the recipient's topic.
type NotificationService struct {
	repo repository.Repository
	pub  Publisher
	log  *slog.Logger
}

// NewNotificationService creates a notification service
func NewNotificationService(repo repository.Repository, pub Publisher) *NotificationService {
	return &NotificationService{
		repo: repo,
		pub:  pub,
		log:  slog.With("component", "notifications"),
	}
}

// Notify records a notification and pushes it to the recipient. Failures are
// logged; a notification never fails the mutation that caused it.
func (s *NotificationService) Notify(ctx context.Context, recipient primitive.ObjectID, kind models.NotificationType, message string, related models.EntityRef, projectID primitive.ObjectID) *models.Notification {
	if !related.Valid() {
		s.log.Warn("notification with invalid entity reference", "kind", related.Kind, "type", kind)
		return nil
	}

	n := &models.Notification{
		Recipient: recipient,
		Message:   message,
		Type:      kind,
		Related:   related,
		ProjectID: projectID,
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		s.log.Error("failed to create notification", "recipient", recipient.Hex(), "type", kind, "error", err)
		return nil
	}

	s.pub.Publish(ctx, models.Event{
		Type:         models.EventNotification,
		UserID:       recipient.Hex(),
		ProjectID:    models.HexOf(projectID),
		Notification: n,
	})
	return n
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID primitive.ObjectID, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit < 0 {
		return nil, models.Errorf(models.ErrValidation, "limit must not be negative")
	}
	return s.repo.ListNotifications(ctx, userID, unreadOnly, limit)
}

// MarkRead marks one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID primitive.ObjectID, notificationID string) (*models.Notification, error) {
	id, err := parseID(notificationID, "Notification")
	if err != nil {
		return nil, err
	}
	return s.repo.MarkNotificationRead(ctx, id, userID)
}

// MarkAllRead marks every unread notification of the user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.repo.MarkAllNotificationsRead(ctx, userID)
}

// PurgeRead deletes read notifications not touched within retention.
func (s *NotificationService) PurgeRead(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.DeleteReadNotificationsBefore(ctx, time.Now().Add(-retention))
}
