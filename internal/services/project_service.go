package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"taskboard/internal/access"
	"taskboard/internal/models"
	"taskboard/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProjectService handles project reads and mutations.
type ProjectService struct {
	repo     repository.Repository
	coord    *Coordinator
	locker   Locker
	pub      Publisher
	notifier *NotificationService
	populate *Populator
	log      *slog.Logger
}

// NewProjectService creates a project service
func NewProjectService(repo repository.Repository, coord *Coordinator, locker Locker, pub Publisher, notifier *NotificationService) *ProjectService {
	return &ProjectService{
		repo:     repo,
		coord:    coord,
		locker:   locker,
		pub:      pub,
		notifier: notifier,
		populate: NewPopulator(repo),
		log:      slog.With("component", "projects"),
	}
}

// List returns the projects the user created or is a member of.
func (s *ProjectService) List(ctx context.Context, userID primitive.ObjectID) ([]models.ProjectView, error) {
	projects, err := s.repo.ListProjectsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.populate.Projects(ctx, projects)
}

// Create makes a project with the default columns. The requester becomes the creator;
// listed members are validated and invited.
func (s *ProjectService) Create(ctx context.Context, userID primitive.ObjectID, req models.CreateProjectRequest) (*models.ProjectView, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = strings.TrimSpace(req.Name)
	}
	if title == "" {
		return nil, models.Errorf(models.ErrValidation, "Project title is required")
	}

	members, err := s.resolveMembers(ctx, userID, req.Members)
	if err != nil {
		return nil, err
	}

	project := &models.Project{
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		CreatedBy:   userID,
		Members:     members,
		Columns:     models.NewColumns(models.DefaultColumns...),
	}
	if err := s.repo.CreateProject(ctx, project); err != nil {
		return nil, err
	}

	view, err := s.populate.Project(ctx, project)
	if err != nil {
		return nil, err
	}

	for _, member := range members {
		s.invite(ctx, project, member, view)
	}

	s.log.Info("project created", "project_id", project.ID.Hex(), "user_id", userID.Hex(), "members", len(members))
	return view, nil
}

func (s *ProjectService) resolveMembers(ctx context.Context, creator primitive.ObjectID, hexes []string) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(hexes))
	seen := map[primitive.ObjectID]bool{creator: true}
	for _, hex := range hexes {
		id, err := parseRef(hex, "Member")
		if err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	users, err := s.repo.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(users) != len(ids) {
		found := make(map[primitive.ObjectID]bool, len(users))
		for _, u := range users {
			found[u.ID] = true
		}
		for _, id := range ids {
			if !found[id] {
				return nil, models.Errorf(models.ErrInvalidReference, "User %s not found", id.Hex())
			}
		}
	}
	return ids, nil
}

// Get returns the fully populated project.
func (s *ProjectService) Get(ctx context.Context, userID primitive.ObjectID, projectID string) (*models.ProjectView, error) {
	project, err := s.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := access.Require(userID, access.ActionRead, project); err != nil {
		return nil, err
	}
	return s.populate.Project(ctx, project)
}

// Update applies title, description and column edits. Creator only.
func (s *ProjectService) Update(ctx context.Context, userID primitive.ObjectID, projectID string, req models.UpdateProjectRequest) (*models.ProjectView, error) {
	id, err := parseID(projectID, "Project")
	if err != nil {
		return nil, err
	}
	// Resolve existence and permission before queueing on the lock.
	if _, err := s.authorize(ctx, userID, id, access.ActionManage); err != nil {
		return nil, err
	}

	unlock, err := lockProject(ctx, s.locker, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	project, err := s.authorize(ctx, userID, id, access.ActionManage)
	if err != nil {
		return nil, err
	}

	title := project.Title
	if req.Title != nil || req.Name != nil {
		if req.Title != nil {
			title = strings.TrimSpace(*req.Title)
		} else {
			title = strings.TrimSpace(*req.Name)
		}
		if title == "" {
			return nil, models.Errorf(models.ErrValidation, "Project title is required")
		}
	}
	description := project.Description
	if req.Description != nil {
		description = strings.TrimSpace(*req.Description)
	}

	if req.Columns != nil {
		if _, err := s.coord.ApplyColumns(ctx, project, *req.Columns); err != nil {
			return nil, err
		}
	}
	if title != project.Title || description != project.Description {
		if err := s.repo.UpdateProjectDetails(ctx, id, title, description); err != nil {
			return nil, err
		}
	}

	return s.publishUpdated(ctx, id)
}

// AddMember adds the user registered under email to the project and invites them.
// Any participant may invite.
func (s *ProjectService) AddMember(ctx context.Context, userID primitive.ObjectID, projectID string, email string) (*models.ProjectView, error) {
	id, err := parseID(projectID, "Project")
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, userID, id, access.ActionInvite); err != nil {
		return nil, err
	}
	if strings.TrimSpace(email) == "" {
		return nil, models.Errorf(models.ErrValidation, "Email is required")
	}

	invitee, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.Errorf(models.ErrNotFound, "User not found")
		}
		return nil, err
	}

	unlock, err := lockProject(ctx, s.locker, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	project, err := s.authorize(ctx, userID, id, access.ActionInvite)
	if err != nil {
		return nil, err
	}
	if project.IsParticipant(invitee.ID) {
		return nil, models.Errorf(models.ErrValidation, "User is already a member")
	}

	if err := s.repo.AddProjectMember(ctx, id, invitee.ID); err != nil {
		return nil, err
	}

	view, err := s.publishUpdated(ctx, id)
	if err != nil {
		return nil, err
	}
	s.invite(ctx, project, invitee.ID, view)

	s.log.Info("member added", "project_id", id.Hex(), "user_id", invitee.ID.Hex(), "invited_by", userID.Hex())
	return view, nil
}

// Reindex rebuilds the column lists from task fields. Creator only.
func (s *ProjectService) Reindex(ctx context.Context, userID primitive.ObjectID, projectID string) (*models.ProjectView, error) {
	id, err := parseID(projectID, "Project")
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, userID, id, access.ActionManage); err != nil {
		return nil, err
	}

	unlock, err := lockProject(ctx, s.locker, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	project, err := s.authorize(ctx, userID, id, access.ActionManage)
	if err != nil {
		return nil, err
	}
	if _, err := s.coord.Reindex(ctx, project); err != nil {
		return nil, err
	}

	s.log.Info("project reindexed", "project_id", id.Hex())
	return s.publishUpdated(ctx, id)
}

// CanView checks that the user may read the project, without loading its tasks.
// It returns the canonical project id, which names the project's topic.
func (s *ProjectService) CanView(ctx context.Context, userID primitive.ObjectID, projectID string) (primitive.ObjectID, error) {
	project, err := s.load(ctx, projectID)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if err := access.Require(userID, access.ActionRead, project); err != nil {
		return primitive.NilObjectID, err
	}
	return project.ID, nil
}

// publishUpdated reloads the project and announces it. Callers hold the lock.
func (s *ProjectService) publishUpdated(ctx context.Context, id primitive.ObjectID) (*models.ProjectView, error) {
	project, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	view, err := s.populate.Project(ctx, project)
	if err != nil {
		return nil, err
	}
	s.pub.Publish(ctx, models.Event{
		Type:      models.EventProjectUpdated,
		ProjectID: id.Hex(),
		Project:   view,
	})
	return view, nil
}

func (s *ProjectService) invite(ctx context.Context, project *models.Project, userID primitive.ObjectID, view *models.ProjectView) {
	s.notifier.Notify(ctx, userID, models.NotificationProjectInvitation,
		fmt.Sprintf("You've been added to project: %s", project.Title),
		models.ProjectRef(project.ID), project.ID)

	s.pub.Publish(ctx, models.Event{
		Type:      models.EventProjectInvitation,
		UserID:    userID.Hex(),
		ProjectID: project.ID.Hex(),
		Project:   view,
	})
}

func (s *ProjectService) load(ctx context.Context, projectID string) (*models.Project, error) {
	id, err := parseID(projectID, "Project")
	if err != nil {
		return nil, err
	}
	return s.repo.GetProject(ctx, id)
}

func (s *ProjectService) authorize(ctx context.Context, userID, projectID primitive.ObjectID, action access.Action) (*models.Project, error) {
	project, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := access.Require(userID, action, project); err != nil {
		return nil, err
	}
	return project, nil
}
