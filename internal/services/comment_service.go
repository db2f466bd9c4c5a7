package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"taskboard/internal/access"
	"taskboard/internal/models"
	"taskboard/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var mentionPattern = regexp.MustCompile(`(?:^|[^\w@])@([A-Za-z0-9_.\-]+)`)

// CommentService handles comments on tasks.
type CommentService struct {
	repo     repository.Repository
	coord    *Coordinator
	locker   Locker
	pub      Publisher
	notifier *NotificationService
	populate *Populator
	log      *slog.Logger
}

// NewCommentService creates a comment service
func NewCommentService(repo repository.Repository, coord *Coordinator, locker Locker, pub Publisher, notifier *NotificationService) *CommentService {
	return &CommentService{
		repo:     repo,
		coord:    coord,
		locker:   locker,
		pub:      pub,
		notifier: notifier,
		populate: NewPopulator(repo),
		log:      slog.With("component", "comments"),
	}
}

// Add creates a comment on a task and appends it to the task's comment list.
func (s *CommentService) Add(ctx context.Context, author *models.User, taskID string, content string) (*models.CommentView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, models.Errorf(models.ErrValidation, "Comment content is required")
	}

	task, _, err := s.authorizeTask(ctx, author.ID, taskID, access.ActionComment)
	if err != nil {
		return nil, err
	}

	unlock, err := lockProject(ctx, s.locker, task.Project)
	if err != nil {
		return nil, err
	}
	defer unlock()

	task, project, err := s.authorizeTask(ctx, author.ID, taskID, access.ActionComment)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		Content: content,
		Author:  author.ID,
		Task:    task.ID,
	}
	if err := s.repo.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	if err := s.coord.AttachComment(ctx, comment); err != nil {
		if delErr := s.repo.DeleteComment(ctx, comment.ID); delErr != nil {
			s.log.Error("failed to roll back detached comment", "comment_id", comment.ID.Hex(), "error", delErr)
		}
		return nil, err
	}

	view, err := s.populate.Comment(ctx, comment)
	if err != nil {
		return nil, err
	}
	s.pub.Publish(ctx, models.Event{
		Type:      models.EventCommentAdded,
		ProjectID: project.ID.Hex(),
		TaskID:    task.ID.Hex(),
		CommentID: comment.ID.Hex(),
		Comment:   view,
	})
	s.notifyComment(ctx, author, project, task, comment)
	return view, nil
}

// ListByTask returns a task's comments, newest first.
func (s *CommentService) ListByTask(ctx context.Context, userID primitive.ObjectID, taskID string) ([]models.CommentView, error) {
	task, _, err := s.authorizeTask(ctx, userID, taskID, access.ActionRead)
	if err != nil {
		return nil, err
	}
	comments, err := s.repo.ListCommentsByTask(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	return s.populate.Comments(ctx, comments)
}

// Get returns one comment.
func (s *CommentService) Get(ctx context.Context, userID primitive.ObjectID, commentID string) (*models.CommentView, error) {
	comment, _, _, err := s.authorizeComment(ctx, userID, commentID, access.ActionRead)
	if err != nil {
		return nil, err
	}
	return s.populate.Comment(ctx, comment)
}

// Update replaces a comment's content. Author only.
func (s *CommentService) Update(ctx context.Context, userID primitive.ObjectID, commentID string, content string) (*models.CommentView, error) {
	content = strings.TrimSpace(content)
	comment, task, project, err := s.authorizeComment(ctx, userID, commentID, access.ActionEditComment)
	if err != nil {
		return nil, err
	}
	if content == "" {
		return nil, models.Errorf(models.ErrValidation, "Comment content is required")
	}

	unlock, err := lockProject(ctx, s.locker, project.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	comment, task, project, err = s.authorizeComment(ctx, userID, commentID, access.ActionEditComment)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateCommentContent(ctx, comment.ID, content); err != nil {
		return nil, err
	}
	updated, err := s.repo.GetComment(ctx, comment.ID)
	if err != nil {
		return nil, err
	}

	view, err := s.populate.Comment(ctx, updated)
	if err != nil {
		return nil, err
	}
	s.pub.Publish(ctx, models.Event{
		Type:      models.EventCommentUpdated,
		ProjectID: project.ID.Hex(),
		TaskID:    task.ID.Hex(),
		CommentID: comment.ID.Hex(),
		Comment:   view,
	})
	return view, nil
}

// Delete removes a comment. Allowed for its author and the project creator.
func (s *CommentService) Delete(ctx context.Context, userID primitive.ObjectID, commentID string) error {
	comment, task, project, err := s.authorizeComment(ctx, userID, commentID, access.ActionDeleteComment)
	if err != nil {
		return err
	}

	unlock, err := lockProject(ctx, s.locker, project.ID)
	if err != nil {
		return err
	}
	defer unlock()

	comment, task, project, err = s.authorizeComment(ctx, userID, commentID, access.ActionDeleteComment)
	if err != nil {
		return err
	}

	if err := s.coord.DetachComment(ctx, comment); err != nil {
		return err
	}

	s.pub.Publish(ctx, models.Event{
		Type:      models.EventCommentDeleted,
		ProjectID: project.ID.Hex(),
		TaskID:    task.ID.Hex(),
		CommentID: comment.ID.Hex(),
	})
	return nil
}

// notifyComment sends Mention notifications to mentioned participants, then
// Comment notifications to the task's creator and assignees not already mentioned.
func (s *CommentService) notifyComment(ctx context.Context, author *models.User, project *models.Project, task *models.Task, comment *models.Comment) {
	notified := map[primitive.ObjectID]bool{author.ID: true}

	if names := Mentions(comment.Content); len(names) > 0 {
		users, err := s.repo.GetUsersByUsername(ctx, names)
		if err != nil {
			s.log.Warn("failed to resolve mentions", "comment_id", comment.ID.Hex(), "error", err)
		}
		for _, u := range users {
			if notified[u.ID] || !project.IsParticipant(u.ID) {
				continue
			}
			notified[u.ID] = true
			s.notifier.Notify(ctx, u.ID, models.NotificationMention,
				fmt.Sprintf("%s mentioned you in a comment on task: %s", author.Username, task.Title),
				models.CommentRef(comment.ID), project.ID)
		}
	}

	recipients := append([]primitive.ObjectID{task.CreatedBy}, task.Assignees...)
	for _, id := range recipients {
		if id.IsZero() || notified[id] || !project.IsParticipant(id) {
			continue
		}
		notified[id] = true
		s.notifier.Notify(ctx, id, models.NotificationComment,
			fmt.Sprintf("%s commented on task: %s", author.Username, task.Title),
			models.TaskRef(task.ID), project.ID)
	}
}

// Mentions returns the distinct @usernames in content, in order of appearance.
func Mentions(content string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range mentionPattern.FindAllStringSubmatch(content, -1) {
		name := strings.TrimRight(m[1], ".-")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func (s *CommentService) authorizeTask(ctx context.Context, userID primitive.ObjectID, taskID string, action access.Action) (*models.Task, *models.Project, error) {
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

// authorizeComment resolves comment, task and project in that order, then checks the action.
func (s *CommentService) authorizeComment(ctx context.Context, userID primitive.ObjectID, commentID string, action access.Action) (*models.Comment, *models.Task, *models.Project, error) {
	id, err := parseID(commentID, "Comment")
	if err != nil {
		return nil, nil, nil, err
	}
	comment, err := s.repo.GetComment(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	task, project, err := loadTaskContext(ctx, s.repo, comment.Task)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := access.RequireOnComment(userID, action, project, comment); err != nil {
		return nil, nil, nil, err
	}
	return comment, task, project, nil
}
