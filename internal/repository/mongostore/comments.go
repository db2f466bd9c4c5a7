package mongostore

import (
	"context"
	"fmt"
	"time"

	"taskboard/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateComment inserts a new comment
func (s *Store) CreateComment(ctx context.Context, comment *models.Comment) error {
	now := time.Now()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	if comment.ID.IsZero() {
		comment.ID = primitive.NewObjectID()
	}

	if _, err := s.comments.InsertOne(ctx, comment); err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// GetComment returns a comment by ID
func (s *Store) GetComment(ctx context.Context, id primitive.ObjectID) (*models.Comment, error) {
	var comment models.Comment
	if err := s.comments.FindOne(ctx, bson.M{"_id": id}).Decode(&comment); err != nil {
		return nil, notFound("Comment", err)
	}
	return &comment, nil
}

func (s *Store) GetComments(ctx context.Context, ids []primitive.ObjectID) ([]models.Comment, error) {
	if len(ids) == 0 {
		return []models.Comment{}, nil
	}
	return s.findComments(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (s *Store) ListCommentsByTask(ctx context.Context, taskID primitive.ObjectID) ([]models.Comment, error) {
	return s.findComments(ctx, bson.M{"task": taskID})
}

func (s *Store) findComments(ctx context.Context, filter bson.M) ([]models.Comment, error) {
	cursor, err := s.comments.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find comments: %w", err)
	}
	defer cursor.Close(ctx)

	comments := []models.Comment{}
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, fmt.Errorf("failed to decode comments: %w", err)
	}
	return comments, nil
}

func (s *Store) UpdateCommentContent(ctx context.Context, id primitive.ObjectID, content string) error {
	result, err := s.comments.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"content": content, "updatedAt": time.Now()},
	})
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	return checkMatched(result, "Comment")
}

func (s *Store) DeleteComment(ctx context.Context, id primitive.ObjectID) error {
	result, err := s.comments.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	if result.DeletedCount == 0 {
		return models.Errorf(models.ErrNotFound, "Comment not found")
	}
	return nil
}

// DeleteCommentsByTask removes every comment of taskID and reports how many were removed.
func (s *Store) DeleteCommentsByTask(ctx context.Context, taskID primitive.ObjectID) (int64, error) {
	result, err := s.comments.DeleteMany(ctx, bson.M{"task": taskID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete task comments: %w", err)
	}
	return result.DeletedCount, nil
}
