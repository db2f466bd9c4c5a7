package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationType classifies why a notification was created.
type NotificationType string

const (
	NotificationTaskAssignment    NotificationType = "Task Assignment"
	NotificationMention           NotificationType = "Mention"
	NotificationComment           NotificationType = "Comment"
	NotificationProjectInvitation NotificationType = "Project Invitation"
)

// EntityKind tags the entity an EntityRef points at.
type EntityKind string

const (
	EntityProject EntityKind = "project"
	EntityTask    EntityKind = "task"
	EntityComment EntityKind = "comment"
)

// EntityRef is a typed reference to a project, task or comment.
type EntityRef struct {
	Kind EntityKind         `bson:"kind" json:"kind"`
	ID   primitive.ObjectID `bson:"id" json:"id"`
}

func ProjectRef(id primitive.ObjectID) EntityRef { return EntityRef{Kind: EntityProject, ID: id} }
func TaskRef(id primitive.ObjectID) EntityRef    { return EntityRef{Kind: EntityTask, ID: id} }
func CommentRef(id primitive.ObjectID) EntityRef { return EntityRef{Kind: EntityComment, ID: id} }

// Valid reports whether the kind is known and the id is set.
func (r EntityRef) Valid() bool {
	switch r.Kind {
	case EntityProject, EntityTask, EntityComment:
		return !r.ID.IsZero()
	}
	return false
}

// Notification is a message for one recipient. Only the read flag changes after creation.
type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Recipient primitive.ObjectID `bson:"recipient" json:"recipient"`
	Message   string             `bson:"message" json:"message"`
	Type      NotificationType   `bson:"type" json:"type"`
	Related   EntityRef          `bson:"related" json:"related"`
	ProjectID primitive.ObjectID `bson:"projectId" json:"projectId"`
	Read      bool               `bson:"read" json:"read"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
