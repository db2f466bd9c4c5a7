package handlers

import (
	"taskboard/internal/middleware"
	"taskboard/internal/models"
	"taskboard/internal/services"

	"github.com/gofiber/fiber/v2"
)

// TaskHandler handles task endpoints
type TaskHandler struct {
	taskService *services.TaskService
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// ListByProject returns every task of a project
// GET /api/tasks/project/:projectId
func (h *TaskHandler) ListByProject(c *fiber.Ctx) error {
	tasks, err := h.taskService.ListByProject(c.UserContext(), middleware.CurrentUser(c).ID, c.Params("projectId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(tasks)
}

// Get returns one task
// GET /api/tasks/:id
func (h *TaskHandler) Get(c *fiber.Ctx) error {
	task, err := h.taskService.Get(c.UserContext(), middleware.CurrentUser(c).ID, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(task)
}

// Create adds a task to a project
// POST /api/tasks
func (h *TaskHandler) Create(c *fiber.Ctx) error {
	var req models.CreateTaskRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	task, err := h.taskService.Create(c.UserContext(), middleware.CurrentUser(c).ID, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(task)
}

// Update applies a partial update, moving the task if its column changes
// PUT /api/tasks/:id
func (h *TaskHandler) Update(c *fiber.Ctx) error {
	var req models.UpdateTaskRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	task, err := h.taskService.Update(c.UserContext(), middleware.CurrentUser(c).ID, c.Params("id"), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(task)
}

// Assign adds an assignee
// PUT /api/tasks/:id/assign
func (h *TaskHandler) Assign(c *fiber.Ctx) error {
	var req models.AssignTaskRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	task, err := h.taskService.Assign(c.UserContext(), middleware.CurrentUser(c).ID, c.Params("id"), req.UserID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(task)
}

// Delete removes a task and its comments
// DELETE /api/tasks/:id
func (h *TaskHandler) Delete(c *fiber.Ctx) error {
	if err := h.taskService.Delete(c.UserContext(), middleware.CurrentUser(c).ID, c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Task removed"})
}
