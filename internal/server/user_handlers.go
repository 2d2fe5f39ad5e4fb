package server

import (
	"lumen/internal/models"
	"lumen/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetAllUsers handles GET /api/users
// @Summary List users
// @Tags users
// @Produce json
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {array} models.PublicProfile
// @Router /users [get]
func (s *Server) GetAllUsers(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	users, err := s.userService.ListUsers(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return s.respondError(c, err)
	}
	public := make([]*models.PublicProfile, 0, len(users))
	for _, u := range users {
		public = append(public, u.Public())
	}
	return c.JSON(public)
}

// GetMyProfile handles GET /api/users/me
// @Summary Current user's profile
// @Tags users
// @Produce json
// @Success 200 {object} models.ProfileView
// @Security BearerAuth
// @Router /users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	profile, err := s.userService.GetProfile(c.UserContext(), currentUserID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(profile)
}

// GetUserProfile handles GET /api/users/:id
// @Summary A user's profile
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Description The caller's own profile includes email and bookmarks
// @Success 200 {object} models.PublicProfile
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/{id} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	profile, err := s.userService.GetProfile(c.UserContext(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	if id == currentUserID(c) {
		return c.JSON(profile)
	}
	return c.JSON(profile.Public())
}

// UpdateMyProfile handles PUT /api/users/me
// @Summary Update the current user's profile
// @Description Only the supplied fields change
// @Tags users
// @Accept json
// @Produce json
// @Param request body object{name=string,username=string,email=string,bio=string} true "Profile fields"
// @Success 200 {object} models.ProfileView
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req struct {
		Name     *string `json:"name"`
		Username *string `json:"username"`
		Email    *string `json:"email"`
		Bio      *string `json:"bio"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	profile, err := s.userService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:   currentUserID(c),
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
		Bio:      req.Bio,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(profile)
}

// UploadAvatar handles POST /api/users/me/avatar
// @Summary Replace the current user's avatar
// @Tags users
// @Accept multipart/form-data
// @Produce json
// @Param image formData file true "Avatar image"
// @Success 200 {object} models.ProfileView
// @Failure 400 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/me/avatar [post]
func (s *Server) UploadAvatar(c *fiber.Ctx) error {
	files, err := s.saveUploads(c, "image")
	if err != nil {
		return s.respondError(c, err)
	}
	defer s.removeUploads(files)

	if len(files) != 1 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Exactly one image is required"))
	}

	profile, err := s.userService.SetAvatar(c.UserContext(), currentUserID(c), files[0])
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(profile)
}

// FollowUser handles POST /api/users/:id/follow
// @Summary Follow a user
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} service.FollowResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/{id}/follow [post]
func (s *Server) FollowUser(c *fiber.Ctx) error {
	target, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	res, err := s.followService.Follow(c.UserContext(), currentUserID(c), target)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(res)
}

// UnfollowUser handles DELETE /api/users/:id/follow
// @Summary Unfollow a user
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} service.FollowResult
// @Security BearerAuth
// @Router /users/{id}/follow [delete]
func (s *Server) UnfollowUser(c *fiber.Ctx) error {
	target, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	res, err := s.followService.Unfollow(c.UserContext(), currentUserID(c), target)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(res)
}
