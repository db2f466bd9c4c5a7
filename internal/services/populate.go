package services

import (
	"context"

	"taskboard/internal/models"
	"taskboard/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Populator resolves the id references of entities into views.
type Populator struct {
	repo repository.Repository
}

// NewPopulator creates a populator
func NewPopulator(repo repository.Repository) *Populator {
	return &Populator{repo: repo}
}

type userIndex map[primitive.ObjectID]models.UserSummary

// summary returns the user's summary, or a bare id when the user no longer exists.
func (idx userIndex) summary(id primitive.ObjectID) models.UserSummary {
	if u, ok := idx[id]; ok {
		return u
	}
	return models.UserSummary{ID: id}
}

func (idx userIndex) summaries(ids []primitive.ObjectID) []models.UserSummary {
	out := make([]models.UserSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, idx.summary(id))
	}
	return out
}

func (p *Populator) users(ctx context.Context, ids []primitive.ObjectID) (userIndex, error) {
	users, err := p.repo.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	idx := make(userIndex, len(users))
	for i := range users {
		idx[users[i].ID] = users[i].Summary()
	}
	return idx, nil
}

// Projects builds list views. Column task ids are included, tasks are not.
func (p *Populator) Projects(ctx context.Context, projects []models.Project) ([]models.ProjectView, error) {
	var ids []primitive.ObjectID
	for i := range projects {
		ids = append(ids, projects[i].Participants()...)
	}
	idx, err := p.users(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]models.ProjectView, 0, len(projects))
	for i := range projects {
		views = append(views, projectView(&projects[i], idx, nil))
	}
	return views, nil
}

// Project builds the full view of one project, with each column's tasks populated in column order.
func (p *Populator) Project(ctx context.Context, project *models.Project) (*models.ProjectView, error) {
	tasks, err := p.repo.ListTasksByProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	taskViews, err := p.Tasks(ctx, tasks)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]models.TaskView, len(taskViews))
	for _, tv := range taskViews {
		byID[tv.ID] = tv
	}

	idx, err := p.users(ctx, project.Participants())
	if err != nil {
		return nil, err
	}
	view := projectView(project, idx, byID)
	return &view, nil
}

func projectView(project *models.Project, idx userIndex, tasks map[primitive.ObjectID]models.TaskView) models.ProjectView {
	members := make([]primitive.ObjectID, 0, len(project.Members))
	for _, m := range project.Members {
		if m != project.CreatedBy {
			members = append(members, m)
		}
	}

	columns := make([]models.ColumnView, 0, len(project.Columns))
	for _, col := range project.Columns {
		cv := models.ColumnView{
			Title:   col.Title,
			TaskIDs: append([]primitive.ObjectID{}, col.Tasks...),
		}
		if tasks != nil {
			cv.Tasks = make([]models.TaskView, 0, len(col.Tasks))
			for _, id := range col.Tasks {
				if tv, ok := tasks[id]; ok {
					cv.Tasks = append(cv.Tasks, tv)
				}
			}
		}
		columns = append(columns, cv)
	}

	return models.ProjectView{
		ID:          project.ID,
		Title:       project.Title,
		Description: project.Description,
		CreatedBy:   idx.summary(project.CreatedBy),
		Members:     idx.summaries(members),
		Columns:     columns,
		CreatedAt:   project.CreatedAt,
		UpdatedAt:   project.UpdatedAt,
	}
}

// Task builds the view of one task.
func (p *Populator) Task(ctx context.Context, task *models.Task) (*models.TaskView, error) {
	views, err := p.Tasks(ctx, []models.Task{*task})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Tasks builds task views, resolving assignees, creators and comment authors in two lookups.
func (p *Populator) Tasks(ctx context.Context, tasks []models.Task) ([]models.TaskView, error) {
	var commentIDs []primitive.ObjectID
	for i := range tasks {
		commentIDs = append(commentIDs, tasks[i].Comments...)
	}
	comments, err := p.repo.GetComments(ctx, commentIDs)
	if err != nil {
		return nil, err
	}
	commentsByID := make(map[primitive.ObjectID]models.Comment, len(comments))

	var userIDs []primitive.ObjectID
	for i := range tasks {
		userIDs = append(userIDs, tasks[i].Assignees...)
		userIDs = append(userIDs, tasks[i].CreatedBy)
	}
	for _, c := range comments {
		commentsByID[c.ID] = c
		userIDs = append(userIDs, c.Author)
	}
	idx, err := p.users(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	views := make([]models.TaskView, 0, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		cviews := make([]models.CommentView, 0, len(t.Comments))
		for _, id := range t.Comments {
			if c, ok := commentsByID[id]; ok {
				cviews = append(cviews, commentView(&c, idx))
			}
		}
		labels := t.Labels
		if labels == nil {
			labels = []string{}
		}
		views = append(views, models.TaskView{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Project:     t.Project,
			Column:      t.Column,
			Assignees:   idx.summaries(t.Assignees),
			DueDate:     t.DueDate,
			Priority:    t.Priority,
			Labels:      labels,
			Completed:   t.Completed,
			Comments:    cviews,
			CreatedBy:   idx.summary(t.CreatedBy),
			CreatedAt:   t.CreatedAt,
			UpdatedAt:   t.UpdatedAt,
		})
	}
	return views, nil
}

// Comments builds comment views in the given order.
func (p *Populator) Comments(ctx context.Context, comments []models.Comment) ([]models.CommentView, error) {
	ids := make([]primitive.ObjectID, 0, len(comments))
	for i := range comments {
		ids = append(ids, comments[i].Author)
	}
	idx, err := p.users(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]models.CommentView, 0, len(comments))
	for i := range comments {
		views = append(views, commentView(&comments[i], idx))
	}
	return views, nil
}

// Comment builds the view of one comment.
func (p *Populator) Comment(ctx context.Context, comment *models.Comment) (*models.CommentView, error) {
	views, err := p.Comments(ctx, []models.Comment{*comment})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func commentView(c *models.Comment, idx userIndex) models.CommentView {
	return models.CommentView{
		ID:        c.ID,
		Content:   c.Content,
		Author:    idx.summary(c.Author),
		Task:      c.Task,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
