package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"taskboard/internal/access"
	"taskboard/internal/models"
	"taskboard/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaskService handles task reads and mutations. Every mutation runs under the
// parent project's lock: the task write, the column fix-up and the event
// publication happen in that order before the lock is released.
type TaskService struct {
	repo     repository.Repository
	coord    *Coordinator
	locker   Locker
	pub      Publisher
	notifier *NotificationService
	populate *Populator
	log      *slog.Logger
}

// NewTaskService creates a task service
func NewTaskService(repo repository.Repository, coord *Coordinator, locker Locker, pub Publisher, notifier *NotificationService) *TaskService {
	return &TaskService{
		repo:     repo,
		coord:    coord,
		locker:   locker,
		pub:      pub,
		notifier: notifier,
		populate: NewPopulator(repo),
		log:      slog.With("component", "tasks"),
	}
}

// ListByProject returns all tasks of a project.
func (s *TaskService) ListByProject(ctx context.Context, userID primitive.ObjectID, projectID string) ([]models.TaskView, error) {
	id, err := parseID(projectID, "Project")
	if err != nil {
		return nil, err
	}
	project, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.Require(userID, access.ActionRead, project); err != nil {
		return nil, err
	}

	tasks, err := s.repo.ListTasksByProject(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.populate.Tasks(ctx, tasks)
}

// Get returns one task.
func (s *TaskService) Get(ctx context.Context, userID primitive.ObjectID, taskID string) (*models.TaskView, error) {
	task, _, err := s.authorize(ctx, userID, taskID, access.ActionRead)
	if err != nil {
		return nil, err
	}
	return s.populate.Task(ctx, task)
}

// Create adds a task to a project and links it into its column.
func (s *TaskService) Create(ctx context.Context, userID primitive.ObjectID, req models.CreateTaskRequest) (*models.TaskView, error) {
	if strings.TrimSpace(req.ProjectID) == "" {
		return nil, models.Errorf(models.ErrValidation, "Project is required")
	}
	projectID, err := parseRef(req.ProjectID, "Project")
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizeProject(ctx, userID, projectID); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, models.Errorf(models.ErrValidation, "Task title is required")
	}
	priority, err := parsePriority(req.Priority)
	if err != nil {
		return nil, err
	}
	dueDate, err := parseDueDate(req.DueDate)
	if err != nil {
		return nil, err
	}

	unlock, err := lockProject(ctx, s.locker, projectID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	project, err := s.authorizeProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	column := req.Column
	if strings.TrimSpace(column) == "" {
		column = req.Status
	}
	column, err = ResolveColumn(project, column)
	if err != nil {
		return nil, err
	}
	assignees, err := participantSet(project, req.Assignees)
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Project:     projectID,
		Column:      column,
		Assignees:   assignees,
		DueDate:     dueDate,
		Priority:    priority,
		Labels:      cleanLabels(req.Labels),
		Comments:    []primitive.ObjectID{},
		CreatedBy:   userID,
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	if err := s.coord.Link(ctx, project, task); err != nil {
		if delErr := s.repo.DeleteTask(ctx, task.ID); delErr != nil {
			s.log.Error("failed to roll back unlinked task", "task_id", task.ID.Hex(), "error", delErr)
		}
		return nil, err
	}

	view, err := s.populate.Task(ctx, task)
	if err != nil {
		return nil, err
	}
	s.pub.Publish(ctx, models.Event{
		Type:      models.EventTaskCreated,
		ProjectID: projectID.Hex(),
		TaskID:    task.ID.Hex(),
		Task:      view,
	})
	s.notifyAssigned(ctx, userID, task, assignees)

	s.log.Info("task created", "task_id", task.ID.Hex(), "project_id", projectID.Hex(), "column", column)
	return view, nil
}

// Update applies the recognised fields of req. A column change relinks the task.
func (s *TaskService) Update(ctx context.Context, userID primitive.ObjectID, taskID string, req models.UpdateTaskRequest) (*models.TaskView, error) {
	existing, _, err := s.authorize(ctx, userID, taskID, access.ActionWriteTask)
	if err != nil {
		return nil, err
	}

	unlock, err := lockProject(ctx, s.locker, existing.Project)
	if err != nil {
		return nil, err
	}
	defer unlock()

	task, project, err := s.authorize(ctx, userID, taskID, access.ActionWriteTask)
	if err != nil {
		return nil, err
	}
	before := task.Clone()

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, models.Errorf(models.ErrValidation, "Task title is required")
		}
		task.Title = title
	}
	if req.Description != nil {
		task.Description = strings.TrimSpace(*req.Description)
	}

	column := req.Column
	if column == nil {
		column = req.Status
	}
	if column != nil {
		if strings.TrimSpace(*column) == "" {
			return nil, models.Errorf(models.ErrValidation, "Column must not be empty")
		}
		resolved, err := ResolveColumn(project, *column)
		if err != nil {
			return nil, err
		}
		task.Column = resolved
	}

	if req.Assignees != nil {
		assignees, err := participantSet(project, *req.Assignees)
		if err != nil {
			return nil, err
		}
		task.Assignees = assignees
	}
	if req.DueDate != nil {
		if strings.TrimSpace(*req.DueDate) == "" {
			task.DueDate = nil
		} else {
			due, err := parseDueDate(req.DueDate)
			if err != nil {
				return nil, err
			}
			task.DueDate = due
		}
	}
	if req.Priority != nil {
		priority, err := parsePriority(*req.Priority)
		if err != nil {
			return nil, err
		}
		task.Priority = priority
	}
	if req.Labels != nil {
		task.Labels = cleanLabels(*req.Labels)
	}
	if req.Completed != nil {
		task.Completed = *req.Completed
	}

	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return nil, err
	}
	if err := s.coord.Move(ctx, project, task, before.Column); err != nil {
		return nil, err
	}

	view, err := s.publishUpdated(ctx, task)
	if err != nil {
		return nil, err
	}
	s.notifyAssigned(ctx, userID, task, added(before.Assignees, task.Assignees))
	return view, nil
}

// Assign adds one assignee to a task.
func (s *TaskService) Assign(ctx context.Context, userID primitive.ObjectID, taskID string, assigneeID string) (*models.TaskView, error) {
	existing, _, err := s.authorize(ctx, userID, taskID, access.ActionWriteTask)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(assigneeID) == "" {
		return nil, models.Errorf(models.ErrValidation, "User is required")
	}
	assignee, err := parseRef(assigneeID, "User")
	if err != nil {
		return nil, err
	}

	unlock, err := lockProject(ctx, s.locker, existing.Project)
	if err != nil {
		return nil, err
	}
	defer unlock()

	task, project, err := s.authorize(ctx, userID, taskID, access.ActionWriteTask)
	if err != nil {
		return nil, err
	}
	if !project.IsParticipant(assignee) {
		return nil, models.Errorf(models.ErrInvalidReference, "User is not a member of this project")
	}
	if task.HasAssignee(assignee) {
		return nil, models.Errorf(models.ErrValidation, "User already assigned to this task")
	}

	task.Assignees = append(task.Assignees, assignee)
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return nil, err
	}

	view, err := s.publishUpdated(ctx, task)
	if err != nil {
		return nil, err
	}
	s.notifyAssigned(ctx, userID, task, []primitive.ObjectID{assignee})
	return view, nil
}

// Delete removes a task, unlinks it from its column and deletes its comments.
func (s *TaskService) Delete(ctx context.Context, userID primitive.ObjectID, taskID string) error {
	existing, _, err := s.authorize(ctx, userID, taskID, access.ActionWriteTask)
	if err != nil {
		return err
	}

	unlock, err := lockProject(ctx, s.locker, existing.Project)
	if err != nil {
		return err
	}
	defer unlock()

	task, project, err := s.authorize(ctx, userID, taskID, access.ActionWriteTask)
	if err != nil {
		return err
	}

	deleted, err := s.coord.Remove(ctx, project, task)
	if err != nil {
		return err
	}

	s.pub.Publish(ctx, models.Event{
		Type:      models.EventTaskDeleted,
		ProjectID: project.ID.Hex(),
		TaskID:    task.ID.Hex(),
	})
	s.log.Info("task deleted", "task_id", task.ID.Hex(), "project_id", project.ID.Hex(), "comments_deleted", deleted)
	return nil
}

func (s *TaskService) publishUpdated(ctx context.Context, task *models.Task) (*models.TaskView, error) {
	fresh, err := s.repo.GetTask(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	view, err := s.populate.Task(ctx, fresh)
	if err != nil {
		return nil, err
	}
	s.pub.Publish(ctx, models.Event{
		Type:      models.EventTaskUpdated,
		ProjectID: fresh.Project.Hex(),
		TaskID:    fresh.ID.Hex(),
		Task:      view,
	})
	return view, nil
}

func (s *TaskService) notifyAssigned(ctx context.Context, actor primitive.ObjectID, task *models.Task, assignees []primitive.ObjectID) {
	for _, id := range assignees {
		if id == actor {
			continue
		}
		s.notifier.Notify(ctx, id, models.NotificationTaskAssignment,
			fmt.Sprintf("You have been assigned to task: %s", task.Title),
			models.TaskRef(task.ID), task.Project)
	}
}

// authorize resolves the task, then its project, then checks the action.
func (s *TaskService) authorize(ctx context.Context, userID primitive.ObjectID, taskID string, action access.Action) (*models.Task, *models.Project, error) {
	id, err := parseID(taskID, "Task")
	if err != nil {
		return nil, nil, err
	}
	task, project, err := loadTaskContext(ctx, s.repo, id)
	if err != nil {
		return nil, nil, err
	}
	if err := access.Require(userID, action, project); err != nil {
		return nil, nil, err
	}
	return task, project, nil
}

// authorizeProject resolves a project named in a request body.
func (s *TaskService) authorizeProject(ctx context.Context, userID, projectID primitive.ObjectID) (*models.Project, error) {
	project, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.Errorf(models.ErrInvalidReference, "Project not found")
		}
		return nil, err
	}
	if err := access.Require(userID, access.ActionWriteTask, project); err != nil {
		return nil, err
	}
	return project, nil
}

func parsePriority(raw string) (models.Priority, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.PriorityMedium, nil
	}
	for _, p := range []models.Priority{models.PriorityLow, models.PriorityMedium, models.PriorityHigh} {
		if strings.EqualFold(raw, string(p)) {
			return p, nil
		}
	}
	return "", models.Errorf(models.ErrValidation, "Priority must be one of Low, Medium, High")
}

var dueDateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

func parseDueDate(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	value := strings.TrimSpace(*raw)
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, models.Errorf(models.ErrValidation, "Invalid due date")
}

// added returns the ids in after that are not in before.
func added(before, after []primitive.ObjectID) []primitive.ObjectID {
	had := make(map[primitive.ObjectID]bool, len(before))
	for _, id := range before {
		had[id] = true
	}
	var out []primitive.ObjectID
	for _, id := range after {
		if !had[id] {
			out = append(out, id)
		}
	}
	return out
}
