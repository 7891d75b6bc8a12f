package server

import (
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createPostRequest struct {
	Title     string `json:"title" validate:"max=200"`
	Content   string `json:"content"`
	Tags      string `json:"tags"`
	SaveLocal bool   `json:"save_local"`
}

type updatePostRequest struct {
	Title   string `json:"title" validate:"max=200"`
	Content string `json:"content"`
	Tags    string `json:"tags"`
}

type commentRequest struct {
	Text string `json:"text" validate:"max=5000"`
}

type syncRequest struct {
	Posts []service.LocalPost `json:"posts" validate:"max=500"`
}

// ListPosts handles GET /api/posts. ?author= narrows the list to one author.
func (s *Server) ListPosts(c *fiber.Ctx) error {
	viewer := s.optionalUser(c)

	var (
		views []service.PostView
		err   error
	)
	if author := c.Query("author"); author != "" {
		views, err = s.postService.ListByAuthor(c.UserContext(), author, viewer)
	} else {
		views, err = s.postService.List(c.UserContext(), viewer)
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(views)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	view, err := s.postService.Get(c.UserContext(), c.Params("id"), s.optionalUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

// GetComments handles GET /api/posts/:id/comments
func (s *Server) GetComments(c *fiber.Ctx) error {
	comments, err := s.postService.Comments(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(comments)
}

// SharePost handles GET /api/posts/:id/share
func (s *Server) SharePost(c *fiber.Ctx) error {
	info, err := s.postService.Share(c.UserContext(), c.Params("id"), s.shareBaseURL(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(info)
}

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req createPostRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.Create(c.UserContext(), service.CreatePostInput{
		Author:    currentUser(c),
		Title:     req.Title,
		Content:   req.Content,
		Tags:      req.Tags,
		SaveLocal: req.SaveLocal,
	})
	if err != nil {
		return respondError(c, err)
	}
	if req.SaveLocal {
		return c.JSON(fiber.Map{"post": post, "saved": "local"})
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// SyncPosts handles POST /api/posts/sync
func (s *Server) SyncPosts(c *fiber.Ctx) error {
	var req syncRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	imported, err := s.postService.SyncLocal(c.UserContext(), currentUser(c), req.Posts)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"imported": imported})
}

// UpdatePost handles PUT /api/posts/:id
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	var req updatePostRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.Update(c.UserContext(), service.UpdatePostInput{
		ID:      c.Params("id"),
		Editor:  currentUser(c),
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	if err := s.postService.Delete(c.UserContext(), c.Params("id"), currentUser(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Post deleted successfully"})
}

// ToggleLike handles POST /api/posts/:id/like
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	result, err := s.postService.ToggleLike(c.UserContext(), c.Params("id"), currentUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// AddComment handles POST /api/posts/:id/comments
func (s *Server) AddComment(c *fiber.Ctx) error {
	var req commentRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	comment, err := s.postService.AddComment(c.UserContext(), c.Params("id"), currentUser(c), req.Text)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}
