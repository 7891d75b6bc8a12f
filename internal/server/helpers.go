package server

import (
	"errors"
	"log/slog"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// respondError maps err to its HTTP status. Server-side failures are logged
// and never leak their cause to the client.
func respondError(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request error",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("error", err.Error()))
		var appErr *models.AppError
		if !errors.As(err, &appErr) {
			err = models.NewInternalError(err)
		}
	}
	return models.RespondWithError(c, status, err)
}

// parseBody decodes the JSON body into dst and runs its validate tags.
// On failure it writes the error response and returns errResponseWritten.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	if err := validation.Struct(dst); err != nil {
		_ = models.RespondWithError(c, models.StatusFor(err), err)
		return errResponseWritten
	}
	return nil
}

// currentUser returns the username set by AuthRequired.
func currentUser(c *fiber.Ctx) string {
	username, _ := c.Locals("username").(string)
	return username
}

// currentClaims returns the verified token set by AuthRequired.
func currentClaims(c *fiber.Ctx) *middleware.AccessClaims {
	claims, _ := c.Locals("claims").(*middleware.AccessClaims)
	return claims
}

// shareBaseURL prefers the configured public URL over the request's own.
func (s *Server) shareBaseURL(c *fiber.Ctx) string {
	if s.config.PublicBaseURL != "" {
		return s.config.PublicBaseURL
	}
	return c.BaseURL() + "/"
}
