package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fixmate-service/internal/api/dto"
	"github.com/spec-kit/fixmate-service/internal/auth"
	"github.com/spec-kit/fixmate-service/internal/workflow"
)

// MessagesHandler exposes the chat between residents/technicians and admins.
type MessagesHandler struct {
	workflow *workflow.Service
}

// NewMessagesHandler constructs the handler.
func NewMessagesHandler(wf *workflow.Service) *MessagesHandler {
	return &MessagesHandler{workflow: wf}
}

// List handles GET /messages. Admins see all traffic; everyone else only
// their own.
func (h *MessagesHandler) List(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	msgs, err := h.workflow.Messages(c.UserContext(), principal)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": msgs})
}

// Send handles POST /messages.
func (h *MessagesHandler) Send(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)

	var req dto.SendMessageRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	msg, err := h.workflow.SendMessage(c.UserContext(), principal, req.ReceiverID, req.Text)
	if err != nil {
		return err
	}
	if msg == nil {
		// The backend dropped the write; a 201 here would claim a message
		// that was never stored.
		return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{
			"error": fiber.Map{"code": "MESSAGE_NOT_STORED", "message": "message could not be stored"},
		})
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": msg})
}
