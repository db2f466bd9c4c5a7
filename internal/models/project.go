package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultColumns are the columns every new project starts with.
var DefaultColumns = []string{"To Do", "In Progress", "Done"}

// Project is a board owned by its creator and shared with members.
// The creator always has access, whether or not they appear in Members.
type Project struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Title       string               `bson:"title" json:"title"`
	Description string               `bson:"description" json:"description"`
	CreatedBy   primitive.ObjectID   `bson:"createdBy" json:"createdBy"`
	Members     []primitive.ObjectID `bson:"members" json:"members"`
	Columns     []Column             `bson:"columns" json:"columns"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// Column is a named workflow stage holding an ordered list of task ids.
// The list is an index over Task.Column and is only written by the coordinator.
type Column struct {
	Title string               `bson:"title" json:"title"`
	Tasks []primitive.ObjectID `bson:"tasks" json:"tasks"`
}

// NewColumns builds empty columns with the given titles.
func NewColumns(titles ...string) []Column {
	columns := make([]Column, 0, len(titles))
	for _, title := range titles {
		columns = append(columns, Column{Title: title, Tasks: []primitive.ObjectID{}})
	}
	return columns
}

// IsParticipant reports whether userID is the creator or a member.
func (p *Project) IsParticipant(userID primitive.ObjectID) bool {
	if p.CreatedBy == userID {
		return true
	}
	for _, member := range p.Members {
		if member == userID {
			return true
		}
	}
	return false
}

// ColumnIndex returns the index of the column titled title, or -1.
func (p *Project) ColumnIndex(title string) int {
	for i := range p.Columns {
		if p.Columns[i].Title == title {
			return i
		}
	}
	return -1
}

// ColumnOf returns the index of the first column listing taskID, or -1.
func (p *Project) ColumnOf(taskID primitive.ObjectID) int {
	for i := range p.Columns {
		for _, id := range p.Columns[i].Tasks {
			if id == taskID {
				return i
			}
		}
	}
	return -1
}

// Participants returns the creator followed by the members.
func (p *Project) Participants() []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(p.Members)+1)
	ids = append(ids, p.CreatedBy)
	for _, member := range p.Members {
		if member != p.CreatedBy {
			ids = append(ids, member)
		}
	}
	return ids
}

// Clone returns a deep copy of p.
func (p *Project) Clone() *Project {
	c := *p
	c.Members = append([]primitive.ObjectID{}, p.Members...)
	c.Columns = make([]Column, len(p.Columns))
	for i, col := range p.Columns {
		c.Columns[i] = Column{Title: col.Title, Tasks: append([]primitive.ObjectID{}, col.Tasks...)}
	}
	return &c
}

// CreateProjectRequest is the body of POST /api/projects. Name is the legacy alias of Title.
type CreateProjectRequest struct {
	Title       string   `json:"title"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Members     []string `json:"members"`
}

// UpdateProjectRequest is the body of PUT /api/projects/:id. Absent fields are left unchanged.
type UpdateProjectRequest struct {
	Title       *string         `json:"title"`
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Columns     *[]ColumnUpdate `json:"columns"`
}

// ColumnUpdate describes one column in a column edit. Tasks, when given, is the desired order.
type ColumnUpdate struct {
	Title string   `json:"title"`
	Name  string   `json:"name"`
	Tasks []string `json:"tasks"`
}

// AddMemberRequest is the body of POST /api/projects/:id/members
type AddMemberRequest struct {
	Email string `json:"email"`
}
