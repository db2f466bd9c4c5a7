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

// CreateProject inserts a new project
func (s *Store) CreateProject(ctx context.Context, project *models.Project) error {
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now
	if project.ID.IsZero() {
		project.ID = primitive.NewObjectID()
	}
	if project.Members == nil {
		project.Members = []primitive.ObjectID{}
	}

	if _, err := s.projects.InsertOne(ctx, project); err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// GetProject returns a project by ID
func (s *Store) GetProject(ctx context.Context, id primitive.ObjectID) (*models.Project, error) {
	var project models.Project
	if err := s.projects.FindOne(ctx, bson.M{"_id": id}).Decode(&project); err != nil {
		return nil, notFound("Project", err)
	}
	return &project, nil
}

// ListProjectsForUser returns projects created by or shared with userID, most recently updated first
func (s *Store) ListProjectsForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Project, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"createdBy": userID},
		bson.M{"members": userID},
	}}
	cursor, err := s.projects.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer cursor.Close(ctx)

	projects := []models.Project{}
	if err := cursor.All(ctx, &projects); err != nil {
		return nil, fmt.Errorf("failed to decode projects: %w", err)
	}
	return projects, nil
}

func (s *Store) UpdateProjectDetails(ctx context.Context, id primitive.ObjectID, title, description string) error {
	return s.updateProject(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"title": title, "description": description, "updatedAt": time.Now()},
	})
}

func (s *Store) SetProjectColumns(ctx context.Context, id primitive.ObjectID, columns []models.Column) error {
	return s.updateProject(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"columns": columns, "updatedAt": time.Now()},
	})
}

func (s *Store) AddProjectMember(ctx context.Context, id, userID primitive.ObjectID) error {
	return s.updateProject(ctx, bson.M{"_id": id}, bson.M{
		"$addToSet": bson.M{"members": userID},
		"$set":      bson.M{"updatedAt": time.Now()},
	})
}

// LinkTask appends taskID to the named column. The positional operator targets
// only the matched column, so concurrent edits of other columns are not clobbered.
func (s *Store) LinkTask(ctx context.Context, projectID primitive.ObjectID, column string, taskID primitive.ObjectID) error {
	result, err := s.projects.UpdateOne(ctx,
		bson.M{"_id": projectID, "columns.title": column},
		bson.M{
			"$addToSet": bson.M{"columns.$.tasks": taskID},
			"$set":      bson.M{"updatedAt": time.Now()},
		})
	if err != nil {
		return fmt.Errorf("failed to link task: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.Errorf(models.ErrInvalidReference, "Column %q does not exist in this project", column)
	}
	return nil
}

// UnlinkTask pulls taskID out of every column.
func (s *Store) UnlinkTask(ctx context.Context, projectID, taskID primitive.ObjectID) error {
	return s.updateProject(ctx, bson.M{"_id": projectID}, bson.M{
		"$pull": bson.M{"columns.$[].tasks": taskID},
		"$set":  bson.M{"updatedAt": time.Now()},
	})
}

func (s *Store) updateProject(ctx context.Context, filter, update bson.M) error {
	result, err := s.projects.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return checkMatched(result, "Project")
}
