package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"taskboard/internal/models"
	"taskboard/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Coordinator keeps a project's column task lists in agreement with the column
// field of its tasks, and a task's comment list in agreement with its comments.
// The task's column field is the source of truth; column lists are an index
// over it. No other code writes column lists. Callers hold the project lock.
type Coordinator struct {
	repo repository.Repository
	log  *slog.Logger
}

// NewCoordinator creates a coordinator
func NewCoordinator(repo repository.Repository) *Coordinator {
	return &Coordinator{
		repo: repo,
		log:  slog.With("component", "coordinator"),
	}
}

// ResolveColumn returns the column a task should be placed in. An empty name
// means the project's first column; an unknown name is an invalid reference.
func ResolveColumn(project *models.Project, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		if len(project.Columns) == 0 {
			return "", models.Errorf(models.ErrValidation, "Project has no columns")
		}
		return project.Columns[0].Title, nil
	}
	if project.ColumnIndex(name) == -1 {
		return "", models.Errorf(models.ErrInvalidReference, "Column %q does not exist in this project", name)
	}
	return name, nil
}

// Link places a newly created task in its column.
func (c *Coordinator) Link(ctx context.Context, project *models.Project, task *models.Task) error {
	if project.ColumnIndex(task.Column) == -1 {
		return models.Errorf(models.ErrInvalidReference, "Column %q does not exist in this project", task.Column)
	}
	return c.repo.LinkTask(ctx, project.ID, task.Column, task.ID)
}

// Move relinks a task whose column changed from "from" to task.Column. The id
// is pulled from every column first, so a drifted entry is repaired as well.
func (c *Coordinator) Move(ctx context.Context, project *models.Project, task *models.Task, from string) error {
	if from == task.Column {
		return nil
	}
	if project.ColumnIndex(task.Column) == -1 {
		return models.Errorf(models.ErrInvalidReference, "Column %q does not exist in this project", task.Column)
	}

	if at := project.ColumnOf(task.ID); at == -1 || project.Columns[at].Title != from {
		c.log.Warn("column list out of sync before move",
			"project_id", project.ID.Hex(), "task_id", task.ID.Hex(), "from", from, "to", task.Column)
	}

	if err := c.repo.UnlinkTask(ctx, project.ID, task.ID); err != nil {
		return err
	}
	return c.repo.LinkTask(ctx, project.ID, task.Column, task.ID)
}

// Remove unlinks a task from whichever column holds it, deletes its comments,
// then deletes the task itself. It returns the number of comments deleted.
func (c *Coordinator) Remove(ctx context.Context, project *models.Project, task *models.Task) (int64, error) {
	if at := project.ColumnOf(task.ID); at == -1 {
		c.log.Warn("deleting task not listed in any column",
			"project_id", project.ID.Hex(), "task_id", task.ID.Hex(), "column", task.Column)
	} else if project.Columns[at].Title != task.Column {
		c.log.Warn("deleting task listed under a different column",
			"project_id", project.ID.Hex(), "task_id", task.ID.Hex(),
			"column", task.Column, "listed_in", project.Columns[at].Title)
	}

	if err := c.repo.UnlinkTask(ctx, project.ID, task.ID); err != nil {
		return 0, err
	}
	deleted, err := c.repo.DeleteCommentsByTask(ctx, task.ID)
	if err != nil {
		return 0, err
	}
	if err := c.repo.DeleteTask(ctx, task.ID); err != nil {
		return deleted, err
	}
	return deleted, nil
}

// AttachComment appends a comment to its task's comment list.
func (c *Coordinator) AttachComment(ctx context.Context, comment *models.Comment) error {
	return c.repo.AddTaskComment(ctx, comment.Task, comment.ID)
}

// DetachComment removes a comment from its task's list and deletes it.
func (c *Coordinator) DetachComment(ctx context.Context, comment *models.Comment) error {
	if err := c.repo.RemoveTaskComment(ctx, comment.Task, comment.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}
	return c.repo.DeleteComment(ctx, comment.ID)
}

// Reindex rebuilds every column list of project from the tasks' column fields.
func (c *Coordinator) Reindex(ctx context.Context, project *models.Project) ([]models.Column, error) {
	tasks, err := c.repo.ListTasksByProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	columns, orphans := ReindexColumns(project.Columns, tasks)
	for _, t := range orphans {
		c.log.Warn("task names a column the project does not have",
			"project_id", project.ID.Hex(), "task_id", t.ID.Hex(), "column", t.Column)
	}

	if err := c.repo.SetProjectColumns(ctx, project.ID, columns); err != nil {
		return nil, err
	}
	return columns, nil
}

// ApplyColumns replaces the project's columns with the edited set.
func (c *Coordinator) ApplyColumns(ctx context.Context, project *models.Project, edits []models.ColumnUpdate) ([]models.Column, error) {
	tasks, err := c.repo.ListTasksByProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	columns, err := PlanColumns(project.Columns, edits, tasks)
	if err != nil {
		return nil, err
	}
	if err := c.repo.SetProjectColumns(ctx, project.ID, columns); err != nil {
		return nil, err
	}
	return columns, nil
}

// ReindexColumns derives column lists from task fields. Existing order is kept
// for ids that still belong to a column; tasks missing from their column are
// appended in creation order; ids of deleted or moved tasks are dropped.
// Tasks naming no existing column are returned as orphans.
func ReindexColumns(columns []models.Column, tasks []models.Task) ([]models.Column, []models.Task) {
	byID := make(map[primitive.ObjectID]*models.Task, len(tasks))
	for i := range tasks {
		byID[tasks[i].ID] = &tasks[i]
	}

	placed := make(map[primitive.ObjectID]bool, len(tasks))
	out := make([]models.Column, len(columns))
	for i, col := range columns {
		out[i] = models.Column{Title: col.Title, Tasks: []primitive.ObjectID{}}
		for _, id := range col.Tasks {
			t, ok := byID[id]
			if !ok || t.Column != col.Title || placed[id] {
				continue
			}
			out[i].Tasks = append(out[i].Tasks, id)
			placed[id] = true
		}
	}

	index := make(map[string]int, len(out))
	for i := range out {
		if _, dup := index[out[i].Title]; !dup {
			index[out[i].Title] = i
		}
	}

	var orphans []models.Task
	for i := range tasks {
		t := &tasks[i]
		if placed[t.ID] {
			continue
		}
		at, ok := index[t.Column]
		if !ok {
			orphans = append(orphans, *t)
			continue
		}
		out[at].Tasks = append(out[at].Tasks, t.ID)
		placed[t.ID] = true
	}
	return out, orphans
}

// PlanColumns validates a column edit and computes the resulting columns.
// Titles must be non-empty and unique, and every column that still holds tasks
// must survive the edit. A column's requested task order is honoured for ids
// that belong to it; its remaining tasks follow in their current order, then
// in creation order.
func PlanColumns(current []models.Column, edits []models.ColumnUpdate, tasks []models.Task) ([]models.Column, error) {
	if len(edits) == 0 {
		return nil, models.Errorf(models.ErrValidation, "A project needs at least one column")
	}

	titles := make(map[string]bool, len(edits))
	for i := range edits {
		title := strings.TrimSpace(edits[i].Title)
		if title == "" {
			title = strings.TrimSpace(edits[i].Name)
		}
		if title == "" {
			return nil, models.Errorf(models.ErrValidation, "Column title is required")
		}
		if titles[title] {
			return nil, models.Errorf(models.ErrValidation, "Duplicate column %q", title)
		}
		titles[title] = true
		edits[i].Title = title
	}

	for i := range tasks {
		if !titles[tasks[i].Column] {
			return nil, models.Errorf(models.ErrValidation,
				"Column %q still holds tasks and cannot be removed", tasks[i].Column)
		}
	}

	byHex := make(map[string]*models.Task, len(tasks))
	byID := make(map[primitive.ObjectID]*models.Task, len(tasks))
	for i := range tasks {
		byHex[tasks[i].ID.Hex()] = &tasks[i]
		byID[tasks[i].ID] = &tasks[i]
	}
	existing := make(map[string][]primitive.ObjectID, len(current))
	for _, col := range current {
		existing[col.Title] = append(existing[col.Title], col.Tasks...)
	}

	columns := make([]models.Column, 0, len(edits))
	for _, edit := range edits {
		col := models.Column{Title: edit.Title, Tasks: []primitive.ObjectID{}}
		seen := make(map[primitive.ObjectID]bool)
		add := func(t *models.Task) {
			if t == nil || t.Column != col.Title || seen[t.ID] {
				return
			}
			col.Tasks = append(col.Tasks, t.ID)
			seen[t.ID] = true
		}
		for _, hex := range edit.Tasks {
			add(byHex[hex])
		}
		for _, id := range existing[col.Title] {
			add(byID[id])
		}
		for i := range tasks {
			add(&tasks[i])
		}
		columns = append(columns, col)
	}
	return columns, nil
}

