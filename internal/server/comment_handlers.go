package server

import (
	"time"

	"socialapp/internal/middleware"
	"socialapp/internal/models"
	"socialapp/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createCommentRequest struct {
	Body string `json:"body"`
	// Date is optional and defaults to the server time.
	Date *time.Time `json:"date,omitempty"`
}

// GetComments handles GET /api/posts/:id/comments
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := parseObjectID(c, "id")
	if err != nil {
		return nil
	}
	comments, err := s.commentService.ListComments(c.UserContext(), postID)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(comments)
}

// CreateComment handles POST /api/posts/:id/comments
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := parseObjectID(c, "id")
	if err != nil {
		return nil
	}

	var req createCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	in := service.AddCommentInput{
		SubjectID: middleware.Subject(c),
		PostID:    postID,
		Body:      req.Body,
	}
	if req.Date != nil {
		in.Date = *req.Date
	}

	comment, err := s.commentService.AddComment(c.UserContext(), in)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// DeleteComment handles DELETE /api/posts/:id/comments/:commentId. Deleting a
// comment that does not exist succeeds.
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	postID, err := parseObjectID(c, "id")
	if err != nil {
		return nil
	}
	commentID, err := parseObjectID(c, "commentId")
	if err != nil {
		return nil
	}

	err = s.commentService.DeleteComment(c.UserContext(), service.DeleteCommentInput{
		SubjectID: middleware.Subject(c),
		PostID:    postID,
		CommentID: commentID,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Comment deleted successfully"})
}
