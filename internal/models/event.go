package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// EventType names a realtime message kind.
type EventType string

// Board events, published by the server after a mutation commits.
const (
	EventProjectUpdated EventType = "project-updated"
	EventTaskCreated    EventType = "task-created"
	EventTaskUpdated    EventType = "task-updated"
	EventTaskDeleted    EventType = "task-deleted"
	EventCommentAdded   EventType = "comment-added"
	EventCommentUpdated EventType = "comment-updated"
	EventCommentDeleted EventType = "comment-deleted"
)

// Personal events, delivered to a single user's topic.
const (
	EventProjectInvitation EventType = "project-invitation"
	EventNotification      EventType = "notification"
)

// Session events, exchanged on one connection only.
const (
	EventConnected     EventType = "connected"
	EventJoinedProject EventType = "joined-project"
	EventLeftProject   EventType = "left-project"
	EventPong          EventType = "pong"
	EventError         EventType = "error"
)

// Event is the server-to-client realtime envelope. UserID, when set, routes the
// event to that user's personal topic; otherwise ProjectID selects the project topic.
type Event struct {
	Type         EventType     `json:"type"`
	ProjectID    string        `json:"projectId,omitempty"`
	UserID       string        `json:"-"`
	TaskID       string        `json:"taskId,omitempty"`
	CommentID    string        `json:"commentId,omitempty"`
	Project      *ProjectView  `json:"project,omitempty"`
	Task         *TaskView     `json:"task,omitempty"`
	Comment      *CommentView  `json:"comment,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	Code         string        `json:"code,omitempty"`
	Message      string        `json:"message,omitempty"`
}

// ProjectTopic is the topic name for a project id.
func ProjectTopic(projectID string) string { return "project:" + projectID }

// UserTopic is the personal topic name for a user id.
func UserTopic(userID string) string { return "user:" + userID }

// Topic returns the destination topic of e, or "" for session-only events.
func (e *Event) Topic() string {
	if e.UserID != "" {
		return UserTopic(e.UserID)
	}
	if e.ProjectID != "" {
		return ProjectTopic(e.ProjectID)
	}
	return ""
}

// IsBoardEvent reports whether t is one of the project-scoped mutation events.
func (t EventType) IsBoardEvent() bool {
	switch t {
	case EventProjectUpdated, EventTaskCreated, EventTaskUpdated, EventTaskDeleted,
		EventCommentAdded, EventCommentUpdated, EventCommentDeleted:
		return true
	}
	return false
}

// ClientMessage is a client-to-server realtime message.
type ClientMessage struct {
	Type      string `json:"type"` // "join-project", "leave-project", "ping"
	ProjectID string `json:"projectId,omitempty"`
}

// HexOf returns id.Hex(), or "" for the zero id.
func HexOf(id primitive.ObjectID) string {
	if id.IsZero() {
		return ""
	}
	return id.Hex()
}
