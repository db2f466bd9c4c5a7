package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Priority is the urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is a unit of work inside one project. Column names the project column
// the task belongs to and is the source of truth for placement.
type Task struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Title       string               `bson:"title" json:"title"`
	Description string               `bson:"description" json:"description"`
	Project     primitive.ObjectID   `bson:"project" json:"project"`
	Column      string               `bson:"column" json:"column"`
	Assignees   []primitive.ObjectID `bson:"assignees" json:"assignees"`
	DueDate     *time.Time           `bson:"dueDate,omitempty" json:"dueDate,omitempty"`
	Priority    Priority             `bson:"priority" json:"priority"`
	Labels      []string             `bson:"labels" json:"labels"`
	Completed   bool                 `bson:"completed" json:"completed"`
	Comments    []primitive.ObjectID `bson:"comments" json:"comments"`
	CreatedBy   primitive.ObjectID   `bson:"createdBy" json:"createdBy"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// HasAssignee reports whether userID is assigned to t.
func (t *Task) HasAssignee(userID primitive.ObjectID) bool {
	for _, id := range t.Assignees {
		if id == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of t.
func (t *Task) Clone() *Task {
	c := *t
	c.Assignees = append([]primitive.ObjectID{}, t.Assignees...)
	c.Labels = append([]string{}, t.Labels...)
	c.Comments = append([]primitive.ObjectID{}, t.Comments...)
	if t.DueDate != nil {
		due := *t.DueDate
		c.DueDate = &due
	}
	return &c
}

// CreateTaskRequest is the body of POST /api/tasks. Status is the legacy alias of Column.
type CreateTaskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ProjectID   string   `json:"projectId"`
	Column      string   `json:"column"`
	Status      string   `json:"status"`
	Assignees   []string `json:"assignees"`
	DueDate     *string  `json:"dueDate"`
	Priority    string   `json:"priority"`
	Labels      []string `json:"labels"`
}

// UpdateTaskRequest is the body of PUT /api/tasks/:id. Only non-nil fields are applied;
// fields outside this set are ignored.
type UpdateTaskRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Column      *string   `json:"column"`
	Status      *string   `json:"status"`
	Assignees   *[]string `json:"assignees"`
	DueDate     *string   `json:"dueDate"`
	Priority    *string   `json:"priority"`
	Labels      *[]string `json:"labels"`
	Completed   *bool     `json:"completed"`
}

// AssignTaskRequest is the body of PUT /api/tasks/:id/assign
type AssignTaskRequest struct {
	UserID string `json:"userId"`
}
