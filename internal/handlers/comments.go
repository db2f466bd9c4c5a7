package handlers

import (
	"taskboard/internal/middleware"
	"taskboard/internal/models"
	"taskboard/internal/services"

	"github.com/gofiber/fiber/v2"
)

// CommentHandler handles comment endpoints
type CommentHandler struct {
	commentService *services.CommentService
}

// NewCommentHandler creates a new comment handler
func NewCommentHandler(commentService *services.CommentService) *CommentHandler {
	return &CommentHandler{commentService: commentService}
}

// Create comments on a task
// POST /api/tasks/:id/comments
func (h *CommentHandler) Create(c *fiber.Ctx) error {
	var req models.CommentRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	comment, err := h.commentService.Add(c.UserContext(), middleware.CurrentUser(c), c.Params("id"), req.Content)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// ListByTask returns a task's comments, newest first
// GET /api/comments/task/:taskId
func (h *CommentHandler) ListByTask(c *fiber.Ctx) error {
	comments, err := h.commentService.ListByTask(c.UserContext(), middleware.CurrentUser(c).ID, c.Params("taskId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(comments)
}

// Get returns one comment
// GET /api/comments/:id
func (h *CommentHandler) Get(c *fiber.Ctx) error {
	comment, err := h.commentService.Get(c.UserContext(), middleware.CurrentUser(c).ID, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(comment)
}

// Update edits a comment (author only)
// PUT /api/comments/:id
func (h *CommentHandler) Update(c *fiber.Ctx) error {
	var req models.CommentRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	comment, err := h.commentService.Update(c.UserContext(), middleware.CurrentUser(c).ID, c.Params("id"), req.Content)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(comment)
}

// Delete removes a comment (author or project creator)
// DELETE /api/comments/:id
func (h *CommentHandler) Delete(c *fiber.Ctx) error {
	if err := h.commentService.Delete(c.UserContext(), middleware.CurrentUser(c).ID, c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Comment removed"})
}
