package auth

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fixmate-service/internal/domain"
	"github.com/spec-kit/fixmate-service/internal/store"
)

const principalKey = "auth.principal"

// Middleware resolves the bearer token to a user through the store facade
// and stashes it on the request context.
type Middleware struct {
	tokens *TokenManager
	store  store.Store
}

// NewMiddleware constructs the middleware.
func NewMiddleware(tokens *TokenManager, st store.Store) *Middleware {
	return &Middleware{tokens: tokens, store: st}
}

// Handle validates the Authorization header and loads the principal.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(header, "Bearer ") {
		return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
	}

	claims, err := m.tokens.ParseToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, "invalid token")
	}

	users, err := m.store.GetUsers(c.UserContext())
	if err != nil {
		return err
	}
	for i := range users {
		if users[i].ID == claims.UserID {
			user := users[i]
			user.Secret = ""
			c.Locals(principalKey, &user)
			return c.Next()
		}
	}
	return fiber.NewError(http.StatusUnauthorized, "unknown principal")
}

// PrincipalFromContext returns the authenticated user, if any.
func PrincipalFromContext(c *fiber.Ctx) (*domain.User, bool) {
	user, ok := c.Locals(principalKey).(*domain.User)
	return user, ok
}

// RequireRole ensures the principal has one of the allowed roles.
func RequireRole(allowed ...domain.UserRole) fiber.Handler {
	allowedSet := make(map[domain.UserRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return fiber.NewError(http.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}
