package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"taskboard/internal/models"
	"taskboard/internal/repository/memory"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// recordingPublisher keeps every published event in order.
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e models.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) ofType(t models.EventType) []models.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	repo          *memory.Store
	locker        *LocalLocker
	pub           *recordingPublisher
	projects      *ProjectService
	tasks         *TaskService
	comments      *CommentService
	notifications *NotificationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := memory.New()
	pub := &recordingPublisher{}
	locker := NewLocalLocker(5 * time.Second)
	coord := NewCoordinator(repo)
	notifier := NewNotificationService(repo, pub)
	return &testEnv{
		repo:          repo,
		locker:        locker,
		pub:           pub,
		projects:      NewProjectService(repo, coord, locker, pub, notifier),
		tasks:         NewTaskService(repo, coord, locker, pub, notifier),
		comments:      NewCommentService(repo, coord, locker, pub, notifier),
		notifications: notifier,
	}
}

func (e *testEnv) user(t *testing.T, name string) *models.User {
	t.Helper()
	u := &models.User{Username: name, Email: name + "@x.com", PasswordHash: "x"}
	if err := e.repo.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s): %v", name, err)
	}
	return u
}

func (e *testEnv) project(t *testing.T, owner *models.User, members ...*models.User) *models.ProjectView {
	t.Helper()
	req := models.CreateProjectRequest{Title: "Sprint 1"}
	for _, m := range members {
		req.Members = append(req.Members, m.ID.Hex())
	}
	view, err := e.projects.Create(context.Background(), owner.ID, req)
	if err != nil {
		t.Fatalf("Create project: %v", err)
	}
	return view
}

func (e *testEnv) stored(t *testing.T, id primitive.ObjectID) *models.Project {
	t.Helper()
	p, err := e.repo.GetProject(context.Background(), id)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	return p
}

func (e *testEnv) notesOfType(t *testing.T, u *models.User, kind models.NotificationType) []models.Notification {
	t.Helper()
	all, err := e.notifications.List(context.Background(), u.ID, false, 0)
	if err != nil {
		t.Fatalf("List notifications: %v", err)
	}
	var out []models.Notification
	for _, n := range all {
		if n.Type == kind {
			out = append(out, n)
		}
	}
	return out
}

func strp(s string) *string { return &s }

// occurrences counts how often id appears across all columns, and in which column it was last seen.
func occurrences(p *models.Project, id primitive.ObjectID) (int, string) {
	count, where := 0, ""
	for _, col := range p.Columns {
		for _, tid := range col.Tasks {
			if tid == id {
				count++
				where = col.Title
			}
		}
	}
	return count, where
}

func TestCreateProjectHasDefaultColumns(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")

	view := env.project(t, alice)
	if len(view.Columns) != 3 {
		t.Fatalf("Expected 3 columns, got %d", len(view.Columns))
	}
	for i, want := range []string{"To Do", "In Progress", "Done"} {
		if view.Columns[i].Title != want {
			t.Errorf("column %d = %q, want %q", i, view.Columns[i].Title, want)
		}
		if len(view.Columns[i].TaskIDs) != 0 {
			t.Errorf("column %q should start empty", want)
		}
	}
	if view.CreatedBy.Username != "alice" {
		t.Errorf("Expected creator populated, got %+v", view.CreatedBy)
	}
}

func TestCreateProjectValidation(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	ctx := context.Background()

	_, err := env.projects.Create(ctx, alice.ID, models.CreateProjectRequest{Title: "   "})
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected ErrValidation for blank title, got %v", err)
	}

	view, err := env.projects.Create(ctx, alice.ID, models.CreateProjectRequest{Name: "Legacy"})
	if err != nil || view.Title != "Legacy" {
		t.Errorf("Expected name alias to be accepted, got %v, %v", view, err)
	}

	_, err = env.projects.Create(ctx, alice.ID, models.CreateProjectRequest{Title: "x", Members: []string{primitive.NewObjectID().Hex()}})
	if !errors.Is(err, models.ErrInvalidReference) {
		t.Errorf("Expected ErrInvalidReference for unknown member, got %v", err)
	}
}

func TestTaskCreateLinksIntoColumnOnce(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	project := env.project(t, alice)
	ctx := context.Background()

	task, err := env.tasks.Create(ctx, alice.ID, models.CreateTaskRequest{
		Title:     "Write spec",
		ProjectID: project.ID.Hex(),
		Column:    "To Do",
	})
	if err != nil {
		t.Fatalf("Create task: %v", err)
	}
	if task.Priority != models.PriorityMedium {
		t.Errorf("Expected default priority Medium, got %s", task.Priority)
	}

	stored := env.stored(t, project.ID)
	if n, where := occurrences(stored, task.ID); n != 1 || where != "To Do" {
		t.Fatalf("Expected task once in To Do, got %d in %q", n, where)
	}

	created := env.pub.ofType(models.EventTaskCreated)
	if len(created) != 1 || created[0].ProjectID != project.ID.Hex() || created[0].Task == nil {
		t.Errorf("Expected one task-created event with payload, got %+v", created)
	}
}

func TestTaskCreateDefaultsToFirstColumnAndUsesStatusAlias(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	project := env.project(t, alice)
	ctx := context.Background()

	first, err := env.tasks.Create(ctx, alice.ID, models.CreateTaskRequest{Title: "a", ProjectID: project.ID.Hex()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if first.Column != "To Do" {
		t.Errorf("Expected default column To Do, got %q", first.Column)
	}

	second, err := env.tasks.Create(ctx, alice.ID, models.CreateTaskRequest{Title: "b", ProjectID: project.ID.Hex(), Status: "Done"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if second.Column != "Done" {
		t.Errorf("Expected status alias to pick Done, got %q", second.Column)
	}
}

func TestTaskCreateRejectsUnknownColumn(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	project := env.project(t, alice)
	ctx := context.Background()

	_, err := env.tasks.Create(ctx, alice.ID, models.CreateTaskRequest{Title: "x", ProjectID: project.ID.Hex(), Column: "Backlog"})
	if !errors.Is(err, models.ErrInvalidReference) {
		t.Fatalf("Expected ErrInvalidReference, got %v", err)
	}

	tasks, _ := env.repo.ListTasksByProject(ctx, project.ID)
	if len(tasks) != 0 {
		t.Errorf("Expected no orphan task to be stored, got %d", len(tasks))
	}
}

func TestTaskCreateUnknownProject(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")

	_, err := env.tasks.Create(context.Background(), alice.ID, models.CreateTaskRequest{Title: "x", ProjectID: primitive.NewObjectID().Hex()})
	if !errors.Is(err, models.ErrInvalidReference) {
		t.Fatalf("Expected ErrInvalidReference, got %v", err)
	}
}

func TestTaskMoveRelinksColumn(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	project := env.project(t, alice)
	ctx := context.Background()

	task, _ := env.tasks.Create(ctx, alice.ID, models.CreateTaskRequest{Title: "Write spec", ProjectID: project.ID.Hex(), Column: "To Do"})

	moved, err := env.tasks.Update(ctx, alice.ID, task.ID.Hex(), models.UpdateTaskRequest{Column: strp("In Progress")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if moved.Column != "In Progress" {
		t.Errorf("Expected task column In Progress, got %q", moved.Column)
	}

	stored := env.stored(t, project.ID)
	if len(stored.Columns[0].Tasks) != 0 {
		t.Errorf("Expected To Do to be empty, got %v", stored.Columns[0].Tasks)
	}
	if n, where := occurrences(stored, task.ID); n != 1 || where != "In Progress" {
		t.Errorf("Expected task once in In Progress, got %d in %q", n, where)
	}

	if _, err := env.tasks.Update(ctx, alice.ID, task.ID.Hex(), models.UpdateTaskRequest{Status: strp("Nowhere")}); !errors.Is(err, models.ErrInvalidReference) {
		t.Errorf("Expected ErrInvalidReference moving to unknown column, got %v", err)
	}
	if n, where := occurrences(env.stored(t, project.ID), task.ID); n != 1 || where != "In Progress" {
		t.Errorf("Rejected move must not change placement, got %d in %q", n, where)
	}
}

func TestTaskMoveRepairsDrift(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	project := env.project(t, alice)
	ctx := context.Background()

	task, _ := env.tasks.Create(ctx, alice.ID, models.CreateTaskRequest{Title: "t", ProjectID: project.ID.Hex(), Column: "To Do"})

	// Simulate drift: listed under Done while the task says To Do.
	_ = env.repo.UnlinkTask(ctx, project.ID, task.ID)
	_ = env.repo.LinkTask(ctx, project.ID, "Done", task.ID)

	if _, err := env.tasks.Update(ctx, alice.ID, task.ID.Hex(), models.UpdateTaskRequest{Column: strp("In Progress")}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if n, where := occurrences(env.stored(t, project.ID), task.ID); n != 1 || where != "In Progress" {
		t.Errorf("Expected task once in In Progress after move, got %d in %q", n, where)
	}
}

func TestTaskDeleteCascades(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	project := env.project(t, alice)
	ctx := context.Background()

	task, _ := env.tasks.Create(ctx, alice.ID, models.CreateTaskRequest{Title: "t", ProjectID: project.ID.Hex(), Column: "To Do"})
	c1, _ := env.comments.Add(ctx, alice, task.ID.Hex(), "one")
	c2, _ := env.comments.Add(ctx, alice, task.ID.Hex(), "two")

	// Drift: the list says Done, the task says To Do. Delete must still clean up.
	_ = env.repo.UnlinkTask(ctx, project.ID, task.ID)
	_ = env.repo.LinkTask(ctx, project.ID, "Done", task.ID)

	if err := env.tasks.Delete(ctx, alice.ID, task.ID.Hex()); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if n, _ := occurrences(env.stored(t, project.ID), task.ID); n != 0 {
		t.Errorf("Expected task removed from all columns, found %d", n)
	}
	for _, id := range []primitive.ObjectID{c1.ID, c2.ID} {
		if _, err := env.comments.Get(ctx, alice.ID, id.Hex()); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("Expected comment %s to be gone, got %v", id.Hex(), err)
		}
	}
	if _, err := env.tasks.Get(ctx, alice.ID, task.ID.Hex()); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected task to be gone, got %v", err)
	}

	deleted := env.pub.ofType(models.EventTaskDeleted)
	if len(deleted) != 1 || deleted[0].TaskID != task.ID.Hex() {
		t.Errorf("Expected a task-deleted event, got %+v", deleted)
	}
}

func TestOutsiderAccessDeniedAndNotFoundFirst(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	project := env.project(t, alice)
	ctx := context.Background()

	task, _ := env.tasks.Create(ctx, alice.ID, models.CreateTaskRequest{Title: "t", ProjectID: project.ID.Hex()})
	comment, _ := env.comments.Add(ctx, alice, task.ID.Hex(), "hi")

	checks := map[string]error{}
	_, checks["get project"] = env.projects.Get(ctx, bob.ID, project.ID.Hex())
	_, checks["list tasks"] = env.tasks.ListByProject(ctx, bob.ID, project.ID.Hex())
	_, checks["get task"] = env.tasks.Get(ctx, bob.ID, task.ID.Hex())
	_, checks["update task"] = env.tasks.Update(ctx, bob.ID, task.ID.Hex(), models.UpdateTaskRequest{Title: strp("x")})
	checks["delete task"] = env.tasks.Delete(ctx, bob.ID, task.ID.Hex())
	_, checks["add comment"] = env.comments.Add(ctx, bob, task.ID.Hex(), "x")
	_, checks["list comments"] = env.comments.ListByTask(ctx, bob.ID, task.ID.Hex())
	_, checks["get comment"] = env.comments.Get(ctx, bob.ID, comment.ID.Hex())
	_, checks["add member"] = env.projects.AddMember(ctx, bob.ID, project.ID.Hex(), "bob@x.com")

	for name, err := range checks {
		if !errors.Is(err, models.ErrAccessDenied) {
			t.Errorf("%s: expected ErrAccessDenied, got %v", name, err)
		}
	}

	missing := primitive.NewObjectID().Hex()
	if _, err := env.projects.Get(ctx, bob.ID, missing); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown project, got %v", err)
	}
	if _, err := env.tasks.Get(ctx, bob.ID, missing); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown task, got %v", err)
	}
	if _, err := env.projects.Get(ctx, bob.ID, "not-an-id"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for malformed id, got %v", err)
	}
}

func TestUpdateProjectCreatorOnly(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	project := env.project(t, alice, bob)
	ctx := context.Background()

	_, err := env.projects.Update(ctx, bob.ID, project.ID.Hex(), models.UpdateProjectRequest{Title: strp("Hijack")})
	if !errors.Is(err, models.ErrAccessDenied) {
		t.Fatalf("Expected member update to be denied, got %v", err)
	}

	view, err := env.projects.Update(ctx, alice.ID, project.ID.Hex(), models.UpdateProjectRequest{Title: strp("Sprint 2"), Description: strp("next")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if view.Title != "Sprint 2" || view.Description != "next" {
		t.Errorf("Unexpected project after update: %+v", view)
	}
	if len(env.pub.ofType(models.EventProjectUpdated)) != 1 {
		t.Errorf("Expected one project-updated event")
	}
}

func TestUpdateProjectColumns(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	project := env.project(t, alice)
	ctx := context.Background()

	a, _ := env.tasks.Create(ctx, alice.ID, models.CreateTaskRequest{Title: "a", ProjectID: project.ID.Hex(), Column: "To Do"})
	b, _ := env.tasks.Create(ctx, alice.ID, models.CreateTaskRequest{Title: "b", ProjectID: project.ID.Hex(), Column: "To Do"})

	cols := []models.ColumnUpdate{
		{Title: "To Do", Tasks: []string{b.ID.Hex(), a.ID.Hex()}},
		{Title: "Review"},
		{Title: "Done"},
	}
	view, err := env.projects.Update(ctx, alice.ID, project.ID.Hex(), models.UpdateProjectRequest{Columns: &cols})
	if err != nil {
		t.Fatalf("Update columns: %v", err)
	}
	if len(view.Columns) != 3 || view.Columns[1].Title != "Review" {
		t.Fatalf("Unexpected columns: %+v", view.Columns)
	}
	if got := view.Columns[0].TaskIDs; len(got) != 2 || got[0] != b.ID || got[1] != a.ID {
		t.Errorf("Expected requested order [b a], got %v", got)
	}

	dropTodo := []models.ColumnUpdate{{Title: "Review"}, {Title: "Done"}}
	if _, err := env.projects.Update(ctx, alice.ID, project.ID.Hex(), models.UpdateProjectRequest{Columns: &dropTodo}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected dropping a non-empty column to fail, got %v", err)
	}

	dup := []models.ColumnUpdate{{Title: "To Do"}, {Title: "To Do"}}
	if _, err := env.projects.Update(ctx, alice.ID, project.ID.Hex(), models.UpdateProjectRequest{Columns: &dup}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected duplicate column titles to fail, got %v", err)
	}
}

func TestAddMember(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	project := env.project(t, alice)
	ctx := context.Background()

	view, err := env.projects.AddMember(ctx, alice.ID, project.ID.Hex(), "BOB@x.com")
	if err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if len(view.Members) != 1 || view.Members[0].ID != bob.ID {
		t.Fatalf("Expected bob as member, got %+v", view.Members)
	}

	if _, err := env.projects.AddMember(ctx, alice.ID, project.ID.Hex(), "bob@x.com"); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected already-member to fail validation, got %v", err)
	}
	if _, err := env.projects.AddMember(ctx, alice.ID, project.ID.Hex(), "alice@x.com"); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected creator invite to fail validation, got %v", err)
	}
	if _, err := env.projects.AddMember(ctx, alice.ID, project.ID.Hex(), "nobody@x.com"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected unknown email to be not found, got %v", err)
	}

	invites := env.pub.ofType(models.EventProjectInvitation)
	if len(invites) != 1 || invites[0].UserID != bob.ID.Hex() {
		t.Errorf("Expected one invitation to bob, got %+v", invites)
	}
	notes, _ := env.notifications.List(ctx, bob.ID, false, 0)
	if len(notes) != 1 || notes[0].Type != models.NotificationProjectInvitation || notes[0].Related.Kind != models.EntityProject {
		t.Errorf("Expected a project invitation notification, got %+v", notes)
	}

	// bob can now read the project
	if _, err := env.projects.Get(ctx, bob.ID, project.ID.Hex()); err != nil {
		t.Errorf("Expected member read access, got %v", err)
	}
}

func TestAssign(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	carol := env.user(t, "carol")
	project := env.project(t, alice, bob)
	ctx := context.Background()

	task, _ := env.tasks.Create(ctx, alice.ID, models.CreateTaskRequest{Title: "t", ProjectID: project.ID.Hex()})

	view, err := env.tasks.Assign(ctx, alice.ID, task.ID.Hex(), bob.ID.Hex())
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if len(view.Assignees) != 1 || view.Assignees[0].Username != "bob" {
		t.Errorf("Expected bob assigned, got %+v", view.Assignees)
	}

	if _, err := env.tasks.Assign(ctx, alice.ID, task.ID.Hex(), bob.ID.Hex()); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected double assignment to fail, got %v", err)
	}
	if _, err := env.tasks.Assign(ctx, alice.ID, task.ID.Hex(), carol.ID.Hex()); !errors.Is(err, models.ErrInvalidReference) {
		t.Errorf("Expected non-member assignment to fail, got %v", err)
	}

	if notes := env.notesOfType(t, bob, models.NotificationTaskAssignment); len(notes) != 1 {
		t.Errorf("Expected one assignment notification for bob, got %+v", notes)
	}
}

func TestCommentPermissions(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	carol := env.user(t, "carol")
	project := env.project(t, alice, bob, carol)
	ctx := context.Background()

	task, _ := env.tasks.Create(ctx, alice.ID, models.CreateTaskRequest{Title: "t", ProjectID: project.ID.Hex()})
	comment, err := env.comments.Add(ctx, bob, task.ID.Hex(), "first")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if _, err := env.comments.Update(ctx, bob.ID, comment.ID.Hex(), "edited"); err != nil {
		t.Errorf("Expected author edit to succeed: %v", err)
	}
	if _, err := env.comments.Update(ctx, carol.ID, comment.ID.Hex(), "hijack"); !errors.Is(err, models.ErrAccessDenied) {
		t.Errorf("Expected non-author edit to be denied, got %v", err)
	}
	if err := env.comments.Delete(ctx, carol.ID, comment.ID.Hex()); !errors.Is(err, models.ErrAccessDenied) {
		t.Errorf("Expected non-author member delete to be denied, got %v", err)
	}
	if err := env.comments.Delete(ctx, alice.ID, comment.ID.Hex()); err != nil {
		t.Errorf("Expected project creator delete to succeed: %v", err)
	}

	stored, _ := env.repo.GetTask(ctx, task.ID)
	if len(stored.Comments) != 0 {
		t.Errorf("Expected comment removed from task list, got %v", stored.Comments)
	}

	for _, typ := range []models.EventType{models.EventCommentAdded, models.EventCommentUpdated, models.EventCommentDeleted} {
		if len(env.pub.ofType(typ)) != 1 {
			t.Errorf("Expected one %s event", typ)
		}
	}
}

func TestCommentNotifications(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	carol := env.user(t, "carol")
	dave := env.user(t, "dave")
	project := env.project(t, alice, bob, carol)
	ctx := context.Background()

	task, _ := env.tasks.Create(ctx, alice.ID, models.CreateTaskRequest{
		Title:     "t",
		ProjectID: project.ID.Hex(),
		Assignees: []string{bob.ID.Hex()},
	})

	if _, err := env.comments.Add(ctx, bob, task.ID.Hex(), "ping @carol and @dave and @bob"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if notes := env.notesOfType(t, carol, models.NotificationMention); len(notes) != 1 {
		t.Errorf("Expected a mention for carol, got %+v", notes)
	}
	if notes := env.notesOfType(t, carol, models.NotificationComment); len(notes) != 0 {
		t.Errorf("Expected no comment notification for carol, got %+v", notes)
	}
	if daveNotes, _ := env.notifications.List(ctx, dave.ID, false, 0); len(daveNotes) != 0 {
		t.Errorf("Expected no notification for non-member dave, got %+v", daveNotes)
	}

	if notes := env.notesOfType(t, alice, models.NotificationComment); len(notes) != 1 {
		t.Errorf("Expected a comment notification for the task creator, got %+v", notes)
	}

	bobNotes, _ := env.notifications.List(ctx, bob.ID, false, 0)
	for _, n := range bobNotes {
		if n.Type == models.NotificationComment || n.Type == models.NotificationMention {
			t.Errorf("Author should not be notified of their own comment: %+v", n)
		}
	}
}

func TestMentions(t *testing.T) {
	got := Mentions("hey @alice, see @bob. mail alice@x.com @alice")
	if len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Errorf("Mentions = %v", got)
	}
}

func TestReindexRepairsColumns(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	project := env.project(t, alice, bob)
	ctx := context.Background()

	a, _ := env.tasks.Create(ctx, alice.ID, models.CreateTaskRequest{Title: "a", ProjectID: project.ID.Hex(), Column: "To Do"})
	b, _ := env.tasks.Create(ctx, alice.ID, models.CreateTaskRequest{Title: "b", ProjectID: project.ID.Hex(), Column: "Done"})

	// Break the index: a listed twice, b missing, plus a dangling id.
	broken := models.NewColumns(models.DefaultColumns...)
	broken[0].Tasks = append(broken[0].Tasks, a.ID, primitive.NewObjectID())
	broken[1].Tasks = append(broken[1].Tasks, a.ID)
	_ = env.repo.SetProjectColumns(ctx, project.ID, broken)

	if _, err := env.projects.Reindex(ctx, bob.ID, project.ID.Hex()); !errors.Is(err, models.ErrAccessDenied) {
		t.Errorf("Expected member reindex to be denied, got %v", err)
	}

	if _, err := env.projects.Reindex(ctx, alice.ID, project.ID.Hex()); err != nil {
		t.Fatalf("Reindex: %v", err)
	}

	stored := env.stored(t, project.ID)
	if n, where := occurrences(stored, a.ID); n != 1 || where != "To Do" {
		t.Errorf("a: got %d in %q", n, where)
	}
	if n, where := occurrences(stored, b.ID); n != 1 || where != "Done" {
		t.Errorf("b: got %d in %q", n, where)
	}
	if len(stored.Columns[0].Tasks) != 1 {
		t.Errorf("Expected dangling id dropped, got %v", stored.Columns[0].Tasks)
	}
}

func TestConcurrentMovesKeepEveryTaskInExactlyOneColumn(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	project := env.project(t, alice)
	ctx := context.Background()

	var ids []primitive.ObjectID
	for i := 0; i < 8; i++ {
		task, err := env.tasks.Create(ctx, alice.ID, models.CreateTaskRequest{Title: "t", ProjectID: project.ID.Hex()})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, task.ID)
	}

	targets := []string{"In Progress", "Done", "To Do"}
	var wg sync.WaitGroup
	for i, id := range ids {
		for round := 0; round < 3; round++ {
			wg.Add(1)
			go func(id primitive.ObjectID, col string) {
				defer wg.Done()
				if _, err := env.tasks.Update(ctx, alice.ID, id.Hex(), models.UpdateTaskRequest{Column: strp(col)}); err != nil {
					t.Errorf("Update: %v", err)
				}
			}(id, targets[(i+round)%len(targets)])
		}
	}
	wg.Wait()

	stored := env.stored(t, project.ID)
	for _, id := range ids {
		task, _ := env.repo.GetTask(ctx, id)
		if n, where := occurrences(stored, id); n != 1 || where != task.Column {
			t.Errorf("task %s: listed %d times, in %q, field says %q", id.Hex(), n, where, task.Column)
		}
	}
}

func TestEventPublishedAfterColumnUpdate(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	project := env.project(t, alice)
	ctx := context.Background()

	// Check the column state from inside the publisher: it must already be final.
	checked := false
	env.tasks.pub = publisherFunc(func(_ context.Context, e models.Event) {
		if e.Type != models.EventTaskUpdated {
			return
		}
		stored := env.stored(t, project.ID)
		if n, where := occurrences(stored, e.Task.ID); n != 1 || where != "Done" {
			t.Errorf("at publish time task is listed %d times in %q", n, where)
		}
		checked = true
	})

	task, _ := env.tasks.Create(ctx, alice.ID, models.CreateTaskRequest{Title: "t", ProjectID: project.ID.Hex()})
	if _, err := env.tasks.Update(ctx, alice.ID, task.ID.Hex(), models.UpdateTaskRequest{Column: strp("Done")}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !checked {
		t.Error("Expected a task-updated event")
	}
}

type publisherFunc func(ctx context.Context, e models.Event)

func (f publisherFunc) Publish(ctx context.Context, e models.Event) { f(ctx, e) }

func TestCanView(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	eve := env.user(t, "eve")
	view := env.project(t, alice, bob)

	tests := []struct {
		name      string
		user      *models.User
		projectID string
		wantErr   error
	}{
		{"creator", alice, view.ID.Hex(), nil},
		{"upper-case id", alice, strings.ToUpper(view.ID.Hex()), nil},
		{"padded id", bob, "  " + view.ID.Hex() + " ", nil},
		{"member", bob, view.ID.Hex(), nil},
		{"outsider", eve, view.ID.Hex(), models.ErrAccessDenied},
		{"unknown project", alice, primitive.NewObjectID().Hex(), models.ErrNotFound},
		{"malformed id", alice, "nope", models.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := env.projects.CanView(ctx, tt.user.ID, tt.projectID)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Expected access, got %v", err)
				}
				if id != view.ID {
					t.Errorf("Expected canonical id %s, got %s", view.ID.Hex(), id.Hex())
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// waitForLockWaiters blocks until n callers hold or wait for key.
func waitForLockWaiters(t *testing.T, l *LocalLocker, key string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		l.mu.Lock()
		slot, ok := l.slots[key]
		refs := 0
		if ok {
			refs = slot.refs
		}
		l.mu.Unlock()
		if refs >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d callers on %s", n, key)
}

func TestCommentMutationsRecheckUnderLock(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		eventTy models.EventType
		mutate  func(env *testEnv, userID primitive.ObjectID, commentID string) error
	}{
		{"update", models.EventCommentUpdated, func(env *testEnv, userID primitive.ObjectID, commentID string) error {
			_, err := env.comments.Update(ctx, userID, commentID, "too late")
			return err
		}},
		{"delete", models.EventCommentDeleted, func(env *testEnv, userID primitive.ObjectID, commentID string) error {
			return env.comments.Delete(ctx, userID, commentID)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			alice := env.user(t, "alice")
			view := env.project(t, alice)
			task, err := env.tasks.Create(ctx, alice.ID, models.CreateTaskRequest{Title: "t", ProjectID: view.ID.Hex()})
			if err != nil {
				t.Fatalf("Create task: %v", err)
			}
			comment, err := env.comments.Add(ctx, alice, task.ID.Hex(), "hello")
			if err != nil {
				t.Fatalf("Create comment: %v", err)
			}

			key := ProjectLockKey(view.ID.Hex())
			unlock, err := env.locker.Lock(ctx, key)
			if err != nil {
				t.Fatalf("Lock: %v", err)
			}

			done := make(chan error, 1)
			go func() { done <- tt.mutate(env, alice.ID, comment.ID.Hex()) }()

			// The comment goes away while the mutation waits for the lock.
			waitForLockWaiters(t, env.locker, key, 2)
			if err := env.repo.DeleteComment(ctx, comment.ID); err != nil {
				t.Fatalf("DeleteComment: %v", err)
			}
			unlock()

			if err := <-done; !errors.Is(err, models.ErrNotFound) {
				t.Errorf("Expected not found after the lock, got %v", err)
			}
			if got := env.pub.ofType(tt.eventTy); len(got) != 0 {
				t.Errorf("Expected no %s event, got %d", tt.eventTy, len(got))
			}
		})
	}
}
