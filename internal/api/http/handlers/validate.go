package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// parseBody decodes and validates a request payload.
func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if err := validate.Struct(out); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return nil
}
