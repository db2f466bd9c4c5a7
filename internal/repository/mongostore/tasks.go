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

// CreateTask inserts a new task
func (s *Store) CreateTask(ctx context.Context, task *models.Task) error {
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.ID.IsZero() {
		task.ID = primitive.NewObjectID()
	}

	if _, err := s.tasks.InsertOne(ctx, task); err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetTask returns a task by ID
func (s *Store) GetTask(ctx context.Context, id primitive.ObjectID) (*models.Task, error) {
	var task models.Task
	if err := s.tasks.FindOne(ctx, bson.M{"_id": id}).Decode(&task); err != nil {
		return nil, notFound("Task", err)
	}
	return &task, nil
}

func (s *Store) ListTasksByProject(ctx context.Context, projectID primitive.ObjectID) ([]models.Task, error) {
	cursor, err := s.tasks.Find(ctx, bson.M{"project": projectID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer cursor.Close(ctx)

	tasks := []models.Task{}
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTask writes the mutable fields. Project, creator and the comment list are left alone.
func (s *Store) UpdateTask(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = time.Now()
	set := bson.M{
		"title":       task.Title,
		"description": task.Description,
		"column":      task.Column,
		"assignees":   task.Assignees,
		"priority":    task.Priority,
		"labels":      task.Labels,
		"completed":   task.Completed,
		"updatedAt":   task.UpdatedAt,
	}
	update := bson.M{"$set": set}
	if task.DueDate != nil {
		set["dueDate"] = task.DueDate
	} else {
		update["$unset"] = bson.M{"dueDate": ""}
	}

	result, err := s.tasks.UpdateOne(ctx, bson.M{"_id": task.ID}, update)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return checkMatched(result, "Task")
}

func (s *Store) DeleteTask(ctx context.Context, id primitive.ObjectID) error {
	result, err := s.tasks.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if result.DeletedCount == 0 {
		return models.Errorf(models.ErrNotFound, "Task not found")
	}
	return nil
}

func (s *Store) AddTaskComment(ctx context.Context, taskID, commentID primitive.ObjectID) error {
	result, err := s.tasks.UpdateOne(ctx, bson.M{"_id": taskID}, bson.M{
		"$addToSet": bson.M{"comments": commentID},
		"$set":      bson.M{"updatedAt": time.Now()},
	})
	if err != nil {
		return fmt.Errorf("failed to add comment to task: %w", err)
	}
	return checkMatched(result, "Task")
}

func (s *Store) RemoveTaskComment(ctx context.Context, taskID, commentID primitive.ObjectID) error {
	result, err := s.tasks.UpdateOne(ctx, bson.M{"_id": taskID}, bson.M{
		"$pull": bson.M{"comments": commentID},
		"$set":  bson.M{"updatedAt": time.Now()},
	})
	if err != nil {
		return fmt.Errorf("failed to remove comment from task: %w", err)
	}
	return checkMatched(result, "Task")
}
