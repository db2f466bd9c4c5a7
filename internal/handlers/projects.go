package handlers

import (
	"taskboard/internal/middleware"
	"taskboard/internal/models"
	"taskboard/internal/services"

	"github.com/gofiber/fiber/v2"
)

// ProjectHandler handles project endpoints
type ProjectHandler struct {
	projectService *services.ProjectService
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(projectService *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

// List returns the requester's projects
// GET /api/projects
func (h *ProjectHandler) List(c *fiber.Ctx) error {
	projects, err := h.projectService.List(c.UserContext(), middleware.CurrentUser(c).ID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(projects)
}

// Create makes a project with the default columns
// POST /api/projects
func (h *ProjectHandler) Create(c *fiber.Ctx) error {
	var req models.CreateProjectRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	project, err := h.projectService.Create(c.UserContext(), middleware.CurrentUser(c).ID, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(project)
}

// Get returns one populated project
// GET /api/projects/:id
func (h *ProjectHandler) Get(c *fiber.Ctx) error {
	project, err := h.projectService.Get(c.UserContext(), middleware.CurrentUser(c).ID, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(project)
}

// Update edits title, description and columns (creator only)
// PUT /api/projects/:id
func (h *ProjectHandler) Update(c *fiber.Ctx) error {
	var req models.UpdateProjectRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	project, err := h.projectService.Update(c.UserContext(), middleware.CurrentUser(c).ID, c.Params("id"), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(project)
}

// AddMember adds a user by email
// POST /api/projects/:id/members
func (h *ProjectHandler) AddMember(c *fiber.Ctx) error {
	var req models.AddMemberRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	project, err := h.projectService.AddMember(c.UserContext(), middleware.CurrentUser(c).ID, c.Params("id"), req.Email)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(project)
}

// Reindex rebuilds the column lists from the tasks (creator only)
// POST /api/projects/:id/reindex
func (h *ProjectHandler) Reindex(c *fiber.Ctx) error {
	project, err := h.projectService.Reindex(c.UserContext(), middleware.CurrentUser(c).ID, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(project)
}
