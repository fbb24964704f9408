package server

import (
	"context"

	"socialapp/internal/middleware"
	"socialapp/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// LikePost handles PUT /api/posts/:id/like
func (s *Server) LikePost(c *fiber.Ctx) error {
	return s.postLikeAction(c, s.likeService.Like)
}

// UnlikePost handles PUT /api/posts/:id/unlike
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	return s.postLikeAction(c, s.likeService.Unlike)
}

// LikeComment handles PUT /api/posts/:id/comments/:commentId/like
func (s *Server) LikeComment(c *fiber.Ctx) error {
	return s.commentLikeAction(c, s.likeService.LikeComment)
}

// UnlikeComment handles PUT /api/posts/:id/comments/:commentId/unlike
func (s *Server) UnlikeComment(c *fiber.Ctx) error {
	return s.commentLikeAction(c, s.likeService.UnlikeComment)
}

func (s *Server) postLikeAction(c *fiber.Ctx,
	action func(ctx context.Context, postID bson.ObjectID, subjectID string) (int, error),
) error {
	postID, err := parseObjectID(c, "id")
	if err != nil {
		return nil
	}
	likes, err := action(c.UserContext(), postID, middleware.Subject(c))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(likesResponse{Likes: likes})
}

func (s *Server) commentLikeAction(c *fiber.Ctx,
	action func(ctx context.Context, postID, commentID bson.ObjectID, subjectID string) (int, error),
) error {
	postID, err := parseObjectID(c, "id")
	if err != nil {
		return nil
	}
	commentID, err := parseObjectID(c, "commentId")
	if err != nil {
		return nil
	}
	likes, err := action(c.UserContext(), postID, commentID, middleware.Subject(c))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(likesResponse{Likes: likes})
}
