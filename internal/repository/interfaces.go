// Package repository contains repository interfaces for persistence layers.
package repository

import (
	"context"
	"time"

	"taskboard/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LifecycleInterface describes storage startup/shutdown hooks.
type LifecycleInterface interface {
	OnStart(ctx context.Context) error
	OnStop(ctx context.Context) error
	Ping(ctx context.Context) error
}

// UserInterface exposes user-related operations.
type UserInterface interface {
	// CreateUser fails with models.ErrDuplicate when the username or email is taken.
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// GetUsers returns the users that exist among ids, in no particular order.
	GetUsers(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	GetUsersByUsername(ctx context.Context, usernames []string) ([]models.User, error)
}

// ProjectInterface exposes project-related operations. Column task lists are
// only changed through LinkTask, UnlinkTask and SetProjectColumns.
type ProjectInterface interface {
	CreateProject(ctx context.Context, project *models.Project) error
	GetProject(ctx context.Context, id primitive.ObjectID) (*models.Project, error)
	// ListProjectsForUser returns projects the user created or is a member of, newest activity first.
	ListProjectsForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Project, error)
	UpdateProjectDetails(ctx context.Context, id primitive.ObjectID, title, description string) error
	SetProjectColumns(ctx context.Context, id primitive.ObjectID, columns []models.Column) error
	AddProjectMember(ctx context.Context, id, userID primitive.ObjectID) error
	// LinkTask adds taskID to the column titled column unless already present.
	LinkTask(ctx context.Context, projectID primitive.ObjectID, column string, taskID primitive.ObjectID) error
	// UnlinkTask removes taskID from every column of the project.
	UnlinkTask(ctx context.Context, projectID, taskID primitive.ObjectID) error
}

// TaskInterface exposes task-related operations.
type TaskInterface interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id primitive.ObjectID) (*models.Task, error)
	// ListTasksByProject returns the project's tasks, oldest first.
	ListTasksByProject(ctx context.Context, projectID primitive.ObjectID) ([]models.Task, error)
	// UpdateTask replaces the mutable fields of task and bumps its updatedAt.
	UpdateTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, id primitive.ObjectID) error
	AddTaskComment(ctx context.Context, taskID, commentID primitive.ObjectID) error
	RemoveTaskComment(ctx context.Context, taskID, commentID primitive.ObjectID) error
}

// CommentInterface exposes comment-related operations.
type CommentInterface interface {
	CreateComment(ctx context.Context, comment *models.Comment) error
	GetComment(ctx context.Context, id primitive.ObjectID) (*models.Comment, error)
	GetComments(ctx context.Context, ids []primitive.ObjectID) ([]models.Comment, error)
	// ListCommentsByTask returns the task's comments, newest first.
	ListCommentsByTask(ctx context.Context, taskID primitive.ObjectID) ([]models.Comment, error)
	UpdateCommentContent(ctx context.Context, id primitive.ObjectID, content string) error
	DeleteComment(ctx context.Context, id primitive.ObjectID) error
	DeleteCommentsByTask(ctx context.Context, taskID primitive.ObjectID) (int64, error)
}

// NotificationInterface exposes notification-related operations.
type NotificationInterface interface {
	CreateNotification(ctx context.Context, notification *models.Notification) error
	// ListNotifications returns the recipient's notifications, newest first. limit <= 0 means no limit.
	ListNotifications(ctx context.Context, recipient primitive.ObjectID, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, recipient primitive.ObjectID) (*models.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, recipient primitive.ObjectID) (int64, error)
	DeleteReadNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
