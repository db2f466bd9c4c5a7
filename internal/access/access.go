// Package access holds the capability checks that gate every read and mutation
// of a project, its tasks and their comments.
package access

import (
	"taskboard/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is a user's standing in one project.
type Role string

const (
	RoleNone    Role = "none"
	RoleMember  Role = "member"
	RoleCreator Role = "creator"
)

// Action is something a user may attempt against a project or its content.
type Action string

const (
	ActionRead          Action = "read"
	ActionWriteTask     Action = "write_task"
	ActionComment       Action = "comment"
	ActionInvite        Action = "invite"
	ActionManage        Action = "manage"
	ActionEditComment   Action = "edit_comment"
	ActionDeleteComment Action = "delete_comment"
)

// RoleOf resolves userID's role in project. The creator keeps RoleCreator
// whether or not they are listed as a member.
func RoleOf(userID primitive.ObjectID, project *models.Project) Role {
	if project == nil || userID.IsZero() {
		return RoleNone
	}
	if project.CreatedBy == userID {
		return RoleCreator
	}
	for _, member := range project.Members {
		if member == userID {
			return RoleMember
		}
	}
	return RoleNone
}

// Can reports whether role permits action on project-level content.
// Comment edits and deletions also depend on authorship, see CanOnComment.
func Can(role Role, action Action) bool {
	switch role {
	case RoleCreator:
		return true
	case RoleMember:
		return action == ActionRead || action == ActionWriteTask || action == ActionComment || action == ActionInvite
	default:
		return false
	}
}

// CanOnComment reports whether userID may perform action on comment, which belongs
// to a task of project. Authors may edit and delete their own comments; the project
// creator may additionally delete any comment.
func CanOnComment(userID primitive.ObjectID, action Action, project *models.Project, comment *models.Comment) bool {
	role := RoleOf(userID, project)
	if !Can(role, ActionRead) {
		return false
	}

	isAuthor := comment != nil && comment.Author == userID
	switch action {
	case ActionRead:
		return true
	case ActionEditComment:
		return isAuthor
	case ActionDeleteComment:
		return isAuthor || role == RoleCreator
	default:
		return Can(role, action)
	}
}

// Require returns an AccessDenied error unless userID may perform action on project.
func Require(userID primitive.ObjectID, action Action, project *models.Project) error {
	if Can(RoleOf(userID, project), action) {
		return nil
	}
	return denied(action)
}

// RequireOnComment is Require for comment-scoped actions.
func RequireOnComment(userID primitive.ObjectID, action Action, project *models.Project, comment *models.Comment) error {
	if CanOnComment(userID, action, project, comment) {
		return nil
	}
	return denied(action)
}

func denied(action Action) error {
	switch action {
	case ActionManage:
		return models.Errorf(models.ErrAccessDenied, "Only the creator can update the project")
	case ActionEditComment:
		return models.Errorf(models.ErrAccessDenied, "You can only edit your own comments")
	case ActionDeleteComment:
		return models.Errorf(models.ErrAccessDenied, "You can only delete your own comments")
	default:
		return models.Errorf(models.ErrAccessDenied, "Access denied")
	}
}
