package services

import (
	"context"
	"fmt"
	"strings"

	"taskboard/internal/models"
	"taskboard/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// parseID parses a hex id taken from a path. A malformed id cannot name an
// existing entity, so it is reported as not found.
func parseID(hex, what string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(hex))
	if err != nil {
		return primitive.NilObjectID, models.Errorf(models.ErrNotFound, "%s not found", what)
	}
	return id, nil
}

// parseRef parses a hex id taken from a request body. Malformed ids are invalid references.
func parseRef(hex, what string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(hex))
	if err != nil {
		return primitive.NilObjectID, models.Errorf(models.ErrInvalidReference, "%s not found", what)
	}
	return id, nil
}

// lockProject takes the per-project lock.
func lockProject(ctx context.Context, locker Locker, projectID primitive.ObjectID) (func(), error) {
	unlock, err := locker.Lock(ctx, ProjectLockKey(projectID.Hex()))
	if err != nil {
		return nil, fmt.Errorf("project busy: %w", err)
	}
	return unlock, nil
}

// loadTaskContext resolves a task and its parent project, existence first.
func loadTaskContext(ctx context.Context, repo repository.Repository, taskID primitive.ObjectID) (*models.Task, *models.Project, error) {
	task, err := repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	project, err := repo.GetProject(ctx, task.Project)
	if err != nil {
		return nil, nil, err
	}
	return task, project, nil
}

// participantSet validates that every id in hexes is a participant of project.
func participantSet(project *models.Project, hexes []string) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(hexes))
	seen := make(map[primitive.ObjectID]bool, len(hexes))
	for _, hex := range hexes {
		id, err := parseRef(hex, "Assignee")
		if err != nil {
			return nil, err
		}
		if !project.IsParticipant(id) {
			return nil, models.Errorf(models.ErrInvalidReference, "User %s is not a member of this project", hex)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func cleanLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}
