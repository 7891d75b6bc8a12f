package server

import (
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

type autosaveRequest struct {
	DraftID string `json:"draft_id" validate:"max=200"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Tags    string `json:"tags"`
}

// AutosaveDraft handles POST /api/drafts
func (s *Server) AutosaveDraft(c *fiber.Ctx) error {
	var req autosaveRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	draft, err := s.draftService.Autosave(c.UserContext(), currentUser(c), service.AutosaveInput{
		DraftID: req.DraftID,
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"draft_id": draft.ID,
		"saved_at": draft.SavedAt,
		"draft":    draft,
	})
}

// ListDrafts handles GET /api/drafts
func (s *Server) ListDrafts(c *fiber.Ctx) error {
	list, err := s.draftService.List(c.UserContext(), currentUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}

// GetDraft handles GET /api/drafts/:id
func (s *Server) GetDraft(c *fiber.Ctx) error {
	draft, err := s.draftService.Get(c.UserContext(), currentUser(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(draft)
}

// DeleteDraft handles DELETE /api/drafts/:id
func (s *Server) DeleteDraft(c *fiber.Ctx) error {
	if err := s.draftService.Delete(c.UserContext(), currentUser(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Draft deleted"})
}
