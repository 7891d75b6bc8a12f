package server

import (
	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Empty passwords are classified by the identity service, so these carry no
// required tags.
type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type deleteAccountRequest struct {
	Password string `json:"password"`
}

// GetMyProfile handles GET /api/users/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	profile, err := s.identityService.Profile(c.UserContext(), currentUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// UpdateMyProfile handles PUT /api/users/me. The body is a flat object of
// personal info fields; keys it omits keep their stored values.
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var fields map[string]string
	if err := c.BodyParser(&fields); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Profile fields must be strings"))
	}

	info, err := s.identityService.UpdatePersonalInfo(c.UserContext(), currentUser(c), fields)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":       "Profile updated successfully!",
		"personal_info": info,
	})
}

// ChangePassword handles PUT /api/users/me/password
func (s *Server) ChangePassword(c *fiber.Ctx) error {
	var req changePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	if err := s.identityService.ChangePassword(c.UserContext(), currentUser(c), req.CurrentPassword, req.NewPassword); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Password updated successfully!"})
}

// DeleteMyAccount handles DELETE /api/users/me. The session token is
// revoked along with the account.
func (s *Server) DeleteMyAccount(c *fiber.Ctx) error {
	var req deleteAccountRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	if err := s.identityService.DeleteAccount(c.UserContext(), currentUser(c), req.Password); err != nil {
		return respondError(c, err)
	}
	s.revokeToken(c.UserContext(), currentClaims(c))
	return c.JSON(fiber.Map{"message": "Account deleted"})
}

// GetUserProfile handles GET /api/users/:username
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	username := c.Params("username")
	profile, err := s.identityService.PublicProfile(c.UserContext(), username)
	if err != nil {
		return respondError(c, err)
	}

	isFollowing := false
	if viewer := s.optionalUser(c); viewer != "" && viewer != username {
		following, err := s.socialService.Following(c.UserContext(), viewer)
		if err != nil {
			return respondError(c, err)
		}
		for _, name := range following {
			if name == username {
				isFollowing = true
				break
			}
		}
	}

	return c.JSON(fiber.Map{
		"username":        profile.Username,
		"personal_info":   profile.PersonalInfo,
		"followers_count": profile.Counts.Followers,
		"following_count": profile.Counts.Following,
		"is_following":    isFollowing,
	})
}

// GetUserPosts handles GET /api/users/:username/posts
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	views, err := s.postService.ListByAuthor(c.UserContext(), c.Params("username"), s.optionalUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(views)
}

// GetFollowers handles GET /api/users/:username/followers
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	names, err := s.socialService.Followers(c.UserContext(), c.Params("username"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(names)
}

// GetFollowing handles GET /api/users/:username/following
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	names, err := s.socialService.Following(c.UserContext(), c.Params("username"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(names)
}

// ToggleFollow handles POST /api/users/:username/follow
func (s *Server) ToggleFollow(c *fiber.Ctx) error {
	target := c.Params("username")
	result, err := s.socialService.ToggleFollow(c.UserContext(), currentUser(c), target)
	if err != nil {
		return respondError(c, err)
	}

	followers, err := s.socialService.FollowersCount(c.UserContext(), target)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"action":          result.Action,
		"message":         result.Message,
		"followers_count": followers,
	})
}
