package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Comment is an authored note on a task. Author and Task never change.
type Comment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Content   string             `bson:"content" json:"content"`
	Author    primitive.ObjectID `bson:"author" json:"author"`
	Task      primitive.ObjectID `bson:"task" json:"task"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// CommentRequest is the body of POST /api/tasks/:id/comments and PUT /api/comments/:id
type CommentRequest struct {
	Content string `json:"content"`
}
