package access

import (
	"errors"
	"testing"

	"taskboard/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "creator manage", role: RoleCreator, action: ActionManage, allow: true},
		{name: "creator read", role: RoleCreator, action: ActionRead, allow: true},
		{name: "member read", role: RoleMember, action: ActionRead, allow: true},
		{name: "member write task", role: RoleMember, action: ActionWriteTask, allow: true},
		{name: "member comment", role: RoleMember, action: ActionComment, allow: true},
		{name: "member invite", role: RoleMember, action: ActionInvite, allow: true},
		{name: "member manage", role: RoleMember, action: ActionManage, allow: false},
		{name: "outsider read", role: RoleNone, action: ActionRead, allow: false},
		{name: "outsider write task", role: RoleNone, action: ActionWriteTask, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestRoleOf(t *testing.T) {
	creator := primitive.NewObjectID()
	member := primitive.NewObjectID()
	outsider := primitive.NewObjectID()
	project := &models.Project{CreatedBy: creator, Members: []primitive.ObjectID{member}}

	if got := RoleOf(creator, project); got != RoleCreator {
		t.Errorf("creator role = %q", got)
	}
	if got := RoleOf(member, project); got != RoleMember {
		t.Errorf("member role = %q", got)
	}
	if got := RoleOf(outsider, project); got != RoleNone {
		t.Errorf("outsider role = %q", got)
	}
	if got := RoleOf(creator, nil); got != RoleNone {
		t.Errorf("nil project role = %q", got)
	}
}

func TestCanOnComment(t *testing.T) {
	creator := primitive.NewObjectID()
	author := primitive.NewObjectID()
	other := primitive.NewObjectID()
	outsider := primitive.NewObjectID()
	project := &models.Project{CreatedBy: creator, Members: []primitive.ObjectID{author, other}}
	comment := &models.Comment{Author: author}

	cases := []struct {
		name   string
		user   primitive.ObjectID
		action Action
		allow  bool
	}{
		{"author edits", author, ActionEditComment, true},
		{"other member edits", other, ActionEditComment, false},
		{"creator edits", creator, ActionEditComment, false},
		{"author deletes", author, ActionDeleteComment, true},
		{"creator deletes", creator, ActionDeleteComment, true},
		{"other member deletes", other, ActionDeleteComment, false},
		{"outsider reads", outsider, ActionRead, false},
		{"member reads", other, ActionRead, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanOnComment(tc.user, tc.action, project, comment); got != tc.allow {
				t.Fatalf("CanOnComment(%s) = %v, want %v", tc.action, got, tc.allow)
			}
		})
	}
}

func TestCreatorKeepsAccessWhenNotListed(t *testing.T) {
	creator := primitive.NewObjectID()
	project := &models.Project{CreatedBy: creator}

	if err := Require(creator, ActionWriteTask, project); err != nil {
		t.Fatalf("creator should always have access: %v", err)
	}
}

func TestRequireReturnsAccessDenied(t *testing.T) {
	project := &models.Project{CreatedBy: primitive.NewObjectID()}

	err := Require(primitive.NewObjectID(), ActionRead, project)
	if !errors.Is(err, models.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}
