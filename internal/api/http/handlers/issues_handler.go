package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fixmate-service/internal/api/dto"
	"github.com/spec-kit/fixmate-service/internal/auth"
	"github.com/spec-kit/fixmate-service/internal/domain"
	"github.com/spec-kit/fixmate-service/internal/workflow"
)

// IssuesHandler exposes resident and technician issue operations.
type IssuesHandler struct {
	workflow *workflow.Service
}

// NewIssuesHandler constructs the handler.
func NewIssuesHandler(wf *workflow.Service) *IssuesHandler {
	return &IssuesHandler{workflow: wf}
}

// Create handles POST /issues (resident).
func (h *IssuesHandler) Create(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)

	var req dto.SubmitIssueRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	issue, err := h.workflow.SubmitIssue(c.UserContext(), principal, workflow.SubmitIssueInput{
		Category:    domain.IssueCategory(req.Category),
		Description: req.Description,
		Priority:    domain.IssuePriority(req.Priority),
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": issue})
}

// ListMine handles GET /issues/mine (resident), newest first.
func (h *IssuesHandler) ListMine(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	issues, err := h.workflow.ResidentIssues(c.UserContext(), principal.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issues})
}

// Queue handles GET /issues/queue (technician), sorted by the task-list
// policy.
func (h *IssuesHandler) Queue(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	issues, err := h.workflow.TechnicianQueue(c.UserContext(), principal.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issues})
}

// Start handles POST /issues/:id/start (technician).
func (h *IssuesHandler) Start(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	if err := h.workflow.StartWork(c.UserContext(), principal, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": domain.IssueStatusInProgress}})
}

// Resolve handles POST /issues/:id/resolve (technician).
func (h *IssuesHandler) Resolve(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)

	var req dto.ResolveRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.workflow.Resolve(c.UserContext(), principal, c.Params("id"), req.Notes); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": domain.IssueStatusResolved}})
}
