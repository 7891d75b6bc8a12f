package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetNotifications handles GET /api/notifications
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	list, err := s.notificationService.List(c.UserContext(), currentUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}

// MarkNotificationsRead handles POST /api/notifications/mark-read
func (s *Server) MarkNotificationsRead(c *fiber.Ctx) error {
	if err := s.notificationService.MarkAllRead(c.UserContext(), currentUser(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// ClearNotifications handles POST /api/notifications/clear
func (s *Server) ClearNotifications(c *fiber.Ctx) error {
	if err := s.notificationService.ClearAll(c.UserContext(), currentUser(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// GetFeatureFlags handles GET /api/feature-flags with the caller's evaluated flags.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"flags": s.featureFlags.Snapshot(currentUser(c))})
}
