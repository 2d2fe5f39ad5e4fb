package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetBookmarks handles GET /api/bookmarks
// @Summary The current user's bookmarked posts, in the order they were saved
// @Tags bookmarks
// @Produce json
// @Success 200 {array} models.PostView
// @Security BearerAuth
// @Router /bookmarks [get]
func (s *Server) GetBookmarks(c *fiber.Ctx) error {
	posts, err := s.bookmarkService.List(c.UserContext(), currentUserID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(posts)
}

// AddBookmark handles POST /api/bookmarks/:postId
// @Summary Bookmark a post
// @Tags bookmarks
// @Produce json
// @Param postId path string true "Post ID"
// @Success 200 {object} object{bookmarks=[]string}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /bookmarks/{postId} [post]
func (s *Server) AddBookmark(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "postId")
	if err != nil {
		return nil
	}
	refs, err := s.bookmarkService.Add(c.UserContext(), currentUserID(c), postID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"bookmarks": refs})
}

// RemoveBookmark handles DELETE /api/bookmarks/:postId
// @Summary Remove a bookmark
// @Tags bookmarks
// @Produce json
// @Param postId path string true "Post ID"
// @Success 200 {object} object{bookmarks=[]string}
// @Security BearerAuth
// @Router /bookmarks/{postId} [delete]
func (s *Server) RemoveBookmark(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "postId")
	if err != nil {
		return nil
	}
	refs, err := s.bookmarkService.Remove(c.UserContext(), currentUserID(c), postID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"bookmarks": refs})
}
