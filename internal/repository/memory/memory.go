// Package memory is an in-process repository backend used in development mode and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"taskboard/internal/models"

	cache "github.com/patrickmn/go-cache"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store keeps every collection in a non-expiring cache keyed by hex id.
// Values are stored and returned as copies so callers never share slices with the store.
type Store struct {
	mu sync.RWMutex

	users         *cache.Cache
	projects      *cache.Cache
	tasks         *cache.Cache
	comments      *cache.Cache
	notifications *cache.Cache

	clockMu sync.Mutex
	last    time.Time
	now     func() time.Time
}

// New creates an empty store.
func New() *Store {
	newCollection := func() *cache.Cache { return cache.New(cache.NoExpiration, 0) }
	return &Store{
		users:         newCollection(),
		projects:      newCollection(),
		tasks:         newCollection(),
		comments:      newCollection(),
		notifications: newCollection(),
		now:           time.Now,
	}
}

func (s *Store) OnStart(context.Context) error { return nil }
func (s *Store) OnStop(context.Context) error  { return nil }
func (s *Store) Ping(context.Context) error    { return nil }

// tick returns a timestamp strictly after the previous one, so ordering by
// creation time is stable even within one clock tick.
func (s *Store) tick() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	t := s.now()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func notFound(what string) error {
	return models.Errorf(models.ErrNotFound, "%s not found", what)
}

// ---- users ----

func (s *Store) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Email = strings.ToLower(user.Email)
	for _, item := range s.users.Items() {
		existing := item.Object.(models.User)
		if existing.Email == user.Email || existing.Username == user.Username {
			return models.Errorf(models.ErrDuplicate, "User already exists")
		}
	}

	now := s.tick()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	s.users.Set(user.ID.Hex(), *user, cache.NoExpiration)
	return nil
}

func (s *Store) GetUser(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	v, ok := s.users.Get(id.Hex())
	if !ok {
		return nil, notFound("User")
	}
	user := v.(models.User)
	return &user, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, item := range s.users.Items() {
		user := item.Object.(models.User)
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, notFound("User")
}

func (s *Store) GetUsers(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	users := []models.User{}
	seen := make(map[primitive.ObjectID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if v, ok := s.users.Get(id.Hex()); ok {
			users = append(users, v.(models.User))
		}
	}
	return users, nil
}

func (s *Store) GetUsersByUsername(_ context.Context, usernames []string) ([]models.User, error) {
	wanted := make(map[string]bool, len(usernames))
	for _, name := range usernames {
		wanted[name] = true
	}
	users := []models.User{}
	for _, item := range s.users.Items() {
		user := item.Object.(models.User)
		if wanted[user.Username] {
			users = append(users, user)
		}
	}
	return users, nil
}

// ---- projects ----

func (s *Store) CreateProject(_ context.Context, project *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.tick()
	project.CreatedAt = now
	project.UpdatedAt = now
	if project.ID.IsZero() {
		project.ID = primitive.NewObjectID()
	}
	if project.Members == nil {
		project.Members = []primitive.ObjectID{}
	}
	s.projects.Set(project.ID.Hex(), project.Clone(), cache.NoExpiration)
	return nil
}

func (s *Store) GetProject(_ context.Context, id primitive.ObjectID) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.project(id)
}

func (s *Store) project(id primitive.ObjectID) (*models.Project, error) {
	v, ok := s.projects.Get(id.Hex())
	if !ok {
		return nil, notFound("Project")
	}
	return v.(*models.Project).Clone(), nil
}

func (s *Store) ListProjectsForUser(_ context.Context, userID primitive.ObjectID) ([]models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	projects := []models.Project{}
	for _, item := range s.projects.Items() {
		project := item.Object.(*models.Project)
		if project.IsParticipant(userID) {
			projects = append(projects, *project.Clone())
		}
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].UpdatedAt.After(projects[j].UpdatedAt)
	})
	return projects, nil
}

// mutateProject applies fn to a copy of the project and stores the result.
func (s *Store) mutateProject(id primitive.ObjectID, fn func(p *models.Project) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	project, err := s.project(id)
	if err != nil {
		return err
	}
	if err := fn(project); err != nil {
		return err
	}
	project.UpdatedAt = s.tick()
	s.projects.Set(id.Hex(), project, cache.NoExpiration)
	return nil
}

func (s *Store) UpdateProjectDetails(_ context.Context, id primitive.ObjectID, title, description string) error {
	return s.mutateProject(id, func(p *models.Project) error {
		p.Title = title
		p.Description = description
		return nil
	})
}

func (s *Store) SetProjectColumns(_ context.Context, id primitive.ObjectID, columns []models.Column) error {
	return s.mutateProject(id, func(p *models.Project) error {
		p.Columns = (&models.Project{Columns: columns}).Clone().Columns
		return nil
	})
}

func (s *Store) AddProjectMember(_ context.Context, id, userID primitive.ObjectID) error {
	return s.mutateProject(id, func(p *models.Project) error {
		for _, member := range p.Members {
			if member == userID {
				return nil
			}
		}
		p.Members = append(p.Members, userID)
		return nil
	})
}

func (s *Store) LinkTask(_ context.Context, projectID primitive.ObjectID, column string, taskID primitive.ObjectID) error {
	return s.mutateProject(projectID, func(p *models.Project) error {
		i := p.ColumnIndex(column)
		if i == -1 {
			return models.Errorf(models.ErrInvalidReference, "Column %q does not exist in this project", column)
		}
		for _, id := range p.Columns[i].Tasks {
			if id == taskID {
				return nil
			}
		}
		p.Columns[i].Tasks = append(p.Columns[i].Tasks, taskID)
		return nil
	})
}

func (s *Store) UnlinkTask(_ context.Context, projectID, taskID primitive.ObjectID) error {
	return s.mutateProject(projectID, func(p *models.Project) error {
		for i := range p.Columns {
			p.Columns[i].Tasks = without(p.Columns[i].Tasks, taskID)
		}
		return nil
	})
}

// ---- tasks ----

func (s *Store) CreateTask(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.tick()
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.ID.IsZero() {
		task.ID = primitive.NewObjectID()
	}
	s.tasks.Set(task.ID.Hex(), task.Clone(), cache.NoExpiration)
	return nil
}

func (s *Store) GetTask(_ context.Context, id primitive.ObjectID) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.task(id)
}

func (s *Store) task(id primitive.ObjectID) (*models.Task, error) {
	v, ok := s.tasks.Get(id.Hex())
	if !ok {
		return nil, notFound("Task")
	}
	return v.(*models.Task).Clone(), nil
}

func (s *Store) ListTasksByProject(_ context.Context, projectID primitive.ObjectID) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := []models.Task{}
	for _, item := range s.tasks.Items() {
		task := item.Object.(*models.Task)
		if task.Project == projectID {
			tasks = append(tasks, *task.Clone())
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

func (s *Store) UpdateTask(_ context.Context, task *models.Task) error {
	updated, err := s.mutateTask(task.ID, func(t *models.Task) {
		t.Title = task.Title
		t.Description = task.Description
		t.Column = task.Column
		t.Assignees = append([]primitive.ObjectID{}, task.Assignees...)
		t.Priority = task.Priority
		t.Labels = append([]string{}, task.Labels...)
		t.Completed = task.Completed
		t.DueDate = nil
		if task.DueDate != nil {
			due := *task.DueDate
			t.DueDate = &due
		}
	})
	if err != nil {
		return err
	}
	task.UpdatedAt = updated.UpdatedAt
	return nil
}

func (s *Store) mutateTask(id primitive.ObjectID, fn func(t *models.Task)) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.task(id)
	if err != nil {
		return nil, err
	}
	fn(task)
	task.UpdatedAt = s.tick()
	s.tasks.Set(id.Hex(), task, cache.NoExpiration)
	return task.Clone(), nil
}

func (s *Store) DeleteTask(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks.Get(id.Hex()); !ok {
		return notFound("Task")
	}
	s.tasks.Delete(id.Hex())
	return nil
}

func (s *Store) AddTaskComment(_ context.Context, taskID, commentID primitive.ObjectID) error {
	_, err := s.mutateTask(taskID, func(t *models.Task) {
		for _, id := range t.Comments {
			if id == commentID {
				return
			}
		}
		t.Comments = append(t.Comments, commentID)
	})
	return err
}

func (s *Store) RemoveTaskComment(_ context.Context, taskID, commentID primitive.ObjectID) error {
	_, err := s.mutateTask(taskID, func(t *models.Task) {
		t.Comments = without(t.Comments, commentID)
	})
	return err
}

// ---- comments ----

func (s *Store) CreateComment(_ context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.tick()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	if comment.ID.IsZero() {
		comment.ID = primitive.NewObjectID()
	}
	s.comments.Set(comment.ID.Hex(), *comment, cache.NoExpiration)
	return nil
}

func (s *Store) GetComment(_ context.Context, id primitive.ObjectID) (*models.Comment, error) {
	v, ok := s.comments.Get(id.Hex())
	if !ok {
		return nil, notFound("Comment")
	}
	comment := v.(models.Comment)
	return &comment, nil
}

func (s *Store) GetComments(_ context.Context, ids []primitive.ObjectID) ([]models.Comment, error) {
	comments := []models.Comment{}
	for _, id := range ids {
		if v, ok := s.comments.Get(id.Hex()); ok {
			comments = append(comments, v.(models.Comment))
		}
	}
	sortNewestFirst(comments)
	return comments, nil
}

func (s *Store) ListCommentsByTask(_ context.Context, taskID primitive.ObjectID) ([]models.Comment, error) {
	comments := []models.Comment{}
	for _, item := range s.comments.Items() {
		comment := item.Object.(models.Comment)
		if comment.Task == taskID {
			comments = append(comments, comment)
		}
	}
	sortNewestFirst(comments)
	return comments, nil
}

func sortNewestFirst(comments []models.Comment) {
	sort.Slice(comments, func(i, j int) bool {
		return comments[i].CreatedAt.After(comments[j].CreatedAt)
	})
}

func (s *Store) UpdateCommentContent(_ context.Context, id primitive.ObjectID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.comments.Get(id.Hex())
	if !ok {
		return notFound("Comment")
	}
	comment := v.(models.Comment)
	comment.Content = content
	comment.UpdatedAt = s.tick()
	s.comments.Set(id.Hex(), comment, cache.NoExpiration)
	return nil
}

func (s *Store) DeleteComment(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments.Get(id.Hex()); !ok {
		return notFound("Comment")
	}
	s.comments.Delete(id.Hex())
	return nil
}

func (s *Store) DeleteCommentsByTask(_ context.Context, taskID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for key, item := range s.comments.Items() {
		if item.Object.(models.Comment).Task == taskID {
			s.comments.Delete(key)
			deleted++
		}
	}
	return deleted, nil
}

// ---- notifications ----

func (s *Store) CreateNotification(_ context.Context, notification *models.Notification) error {
	now := s.tick()
	notification.CreatedAt = now
	notification.UpdatedAt = now
	if notification.ID.IsZero() {
		notification.ID = primitive.NewObjectID()
	}
	s.notifications.Set(notification.ID.Hex(), *notification, cache.NoExpiration)
	return nil
}

func (s *Store) ListNotifications(_ context.Context, recipient primitive.ObjectID, unreadOnly bool, limit int) ([]models.Notification, error) {
	notifications := []models.Notification{}
	for _, item := range s.notifications.Items() {
		n := item.Object.(models.Notification)
		if n.Recipient != recipient || (unreadOnly && n.Read) {
			continue
		}
		notifications = append(notifications, n)
	}
	sort.Slice(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})
	if limit > 0 && len(notifications) > limit {
		notifications = notifications[:limit]
	}
	return notifications, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, id, recipient primitive.ObjectID) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.notifications.Get(id.Hex())
	if !ok || v.(models.Notification).Recipient != recipient {
		return nil, notFound("Notification")
	}
	n := v.(models.Notification)
	n.Read = true
	n.UpdatedAt = s.tick()
	s.notifications.Set(id.Hex(), n, cache.NoExpiration)
	return &n, nil
}

func (s *Store) MarkAllNotificationsRead(_ context.Context, recipient primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var modified int64
	now := s.tick()
	for key, item := range s.notifications.Items() {
		n := item.Object.(models.Notification)
		if n.Recipient == recipient && !n.Read {
			n.Read = true
			n.UpdatedAt = now
			s.notifications.Set(key, n, cache.NoExpiration)
			modified++
		}
	}
	return modified, nil
}

func (s *Store) DeleteReadNotificationsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for key, item := range s.notifications.Items() {
		n := item.Object.(models.Notification)
		if n.Read && n.UpdatedAt.Before(cutoff) {
			s.notifications.Delete(key)
			deleted++
		}
	}
	return deleted, nil
}

func without(ids []primitive.ObjectID, target primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
