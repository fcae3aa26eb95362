package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"github.com/spec-kit/fixmate-service/internal/api/dto"
	"github.com/spec-kit/fixmate-service/internal/auth"
	"github.com/spec-kit/fixmate-service/internal/domain"
	"github.com/spec-kit/fixmate-service/internal/summary"
	"github.com/spec-kit/fixmate-service/internal/worker"
	"github.com/spec-kit/fixmate-service/internal/workflow"
)

// AdminHandler exposes triage and monitoring operations.
type AdminHandler struct {
	workflow *workflow.Service
	summary  *summary.Service
	poller   *worker.IssuePoller
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(wf *workflow.Service, sum *summary.Service, poller *worker.IssuePoller) *AdminHandler {
	return &AdminHandler{workflow: wf, summary: sum, poller: poller}
}

// Search handles GET /admin/issues?status=&q=.
func (h *AdminHandler) Search(c *fiber.Ctx) error {
	status := c.Query("status", workflow.StatusAll)
	issues, err := h.workflow.SearchIssues(c.UserContext(), status, c.Query("q"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issues})
}

// Assign handles POST /admin/issues/:id/assign. An empty technicianId in the
// payload unassigns the issue, reverting it to OPEN.
func (h *AdminHandler) Assign(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)

	var req dto.AssignRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.workflow.Assign(c.UserContext(), principal, c.Params("id"), req.TechnicianID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"assigned": req.TechnicianID != ""}})
}

// Technicians handles GET /admin/technicians.
func (h *AdminHandler) Technicians(c *fiber.Ctx) error {
	techs, err := h.workflow.Technicians(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": techs})
}

// Stats handles GET /admin/dashboard/stats, serving the poller's latest
// snapshot rather than hitting the store on every request.
func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.poller.Stats()})
}

// Summary handles POST /admin/dashboard/summary: a best-effort AI digest of
// the unresolved workload.
func (h *AdminHandler) Summary(c *fiber.Ctx) error {
	issues, err := h.workflow.Issues(c.UserContext())
	if err != nil {
		return err
	}
	unresolved := lo.Filter(issues, func(i domain.Issue, _ int) bool {
		return i.Status != domain.IssueStatusResolved
	})
	text := h.summary.MaintenanceReport(c.UserContext(), unresolved)
	return c.JSON(fiber.Map{"data": fiber.Map{"summary": text}})
}
