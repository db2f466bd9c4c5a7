package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskboard/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateNotification inserts a new notification
func (s *Store) CreateNotification(ctx context.Context, notification *models.Notification) error {
	now := time.Now()
	notification.CreatedAt = now
	notification.UpdatedAt = now
	if notification.ID.IsZero() {
		notification.ID = primitive.NewObjectID()
	}

	if _, err := s.notifications.InsertOne(ctx, notification); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, recipient primitive.ObjectID, unreadOnly bool, limit int) ([]models.Notification, error) {
	filter := bson.M{"recipient": recipient}
	if unreadOnly {
		filter["read"] = false
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.notifications.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer cursor.Close(ctx)

	notifications := []models.Notification{}
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}
	return notifications, nil
}

// MarkNotificationRead flags one of the recipient's notifications as read.
func (s *Store) MarkNotificationRead(ctx context.Context, id, recipient primitive.ObjectID) (*models.Notification, error) {
	var notification models.Notification
	err := s.notifications.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "recipient": recipient},
		bson.M{"$set": bson.M{"read": true, "updatedAt": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&notification)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.Errorf(models.ErrNotFound, "Notification not found")
		}
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return &notification, nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, recipient primitive.ObjectID) (int64, error) {
	result, err := s.notifications.UpdateMany(ctx,
		bson.M{"recipient": recipient, "read": false},
		bson.M{"$set": bson.M{"read": true, "updatedAt": time.Now()}})
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return result.ModifiedCount, nil
}

// DeleteReadNotificationsBefore purges read notifications last touched before cutoff.
func (s *Store) DeleteReadNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.notifications.DeleteMany(ctx, bson.M{
		"read":      true,
		"updatedAt": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete read notifications: %w", err)
	}
	return result.DeletedCount, nil
}
