package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fixmate-service/internal/api/dto"
	"github.com/spec-kit/fixmate-service/internal/domain"
	"github.com/spec-kit/fixmate-service/internal/session"
)

// AuthHandler exposes login, registration, logout, and session lookup.
type AuthHandler struct {
	sessions *session.Manager
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(sessions *session.Manager) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.sessions.Register(c.UserContext(), req.Name, req.Email, req.Password, domain.UserRole(req.Role))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(authPayload(result))
}

// Login handles POST /auth/login. A credential mismatch is a 401 with an
// inline message, not an error payload.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.sessions.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	if result == nil {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{
			"data": fiber.Map{"authenticated": false, "message": "invalid email or password"},
		})
	}
	return c.JSON(authPayload(result))
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.sessions.Logout(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"loggedOut": true}})
}

// Session handles GET /auth/session.
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	user, err := h.sessions.Current(c.UserContext())
	if err != nil {
		return err
	}
	if user == nil {
		return c.JSON(fiber.Map{"data": nil})
	}
	user.Secret = ""
	return c.JSON(fiber.Map{"data": user})
}

func authPayload(result *session.LoginResult) fiber.Map {
	return fiber.Map{
		"data": fiber.Map{
			"user": result.User,
			"auth": dto.AuthResponse{Token: result.Token, ExpiresAt: result.ExpiresAt},
		},
	}
}
