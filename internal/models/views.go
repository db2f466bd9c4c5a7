package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProjectView is a project with its user references resolved. Column task lists
// are always present; the populated Tasks are only filled for single-project reads.
type ProjectView struct {
	ID          primitive.ObjectID `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	CreatedBy   UserSummary        `json:"createdBy"`
	Members     []UserSummary      `json:"members"`
	Columns     []ColumnView       `json:"columns"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// ColumnView is one column of a ProjectView.
type ColumnView struct {
	Title   string               `json:"title"`
	TaskIDs []primitive.ObjectID `json:"taskIds"`
	Tasks   []TaskView           `json:"tasks,omitempty"`
}

// TaskView is a task with assignees, creator and comments resolved.
type TaskView struct {
	ID          primitive.ObjectID `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Project     primitive.ObjectID `json:"project"`
	Column      string             `json:"column"`
	Assignees   []UserSummary      `json:"assignees"`
	DueDate     *time.Time         `json:"dueDate,omitempty"`
	Priority    Priority           `json:"priority"`
	Labels      []string           `json:"labels"`
	Completed   bool               `json:"completed"`
	Comments    []CommentView      `json:"comments"`
	CreatedBy   UserSummary        `json:"createdBy"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// CommentView is a comment with its author resolved.
type CommentView struct {
	ID        primitive.ObjectID `json:"id"`
	Content   string             `json:"content"`
	Author    UserSummary        `json:"author"`
	Task      primitive.ObjectID `json:"task"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
