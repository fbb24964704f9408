package server

import (
	"socialapp/internal/middleware"
	"socialapp/internal/models"
	"socialapp/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createUserRequest struct {
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail"`
}

// CheckUserName handles GET /api/user-check/:username
func (s *Server) CheckUserName(c *fiber.Ctx) error {
	available, err := s.userService.UserNameAvailable(c.UserContext(), c.Params("username"))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{"available": available})
}

// CreateUser handles POST /api/create-user. The subject id comes from the
// verified credential, never from the body.
func (s *Server) CreateUser(c *fiber.Ctx) error {
	var req createUserRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.CreateUser(c.UserContext(), service.CreateUserInput{
		SubjectID: middleware.Subject(c),
		UserName:  req.UserName,
		UserEmail: req.UserEmail,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// GetProfile handles GET /api/profile
func (s *Server) GetProfile(c *fiber.Ctx) error {
	profile, err := s.userService.Profile(c.UserContext(), middleware.Subject(c))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(profile)
}

// GetVisitorProfile handles GET /api/profile-visitor/:userName
func (s *Server) GetVisitorProfile(c *fiber.Ctx) error {
	posts, err := s.postService.ListByUserName(c.UserContext(), c.Params("userName"), middleware.Subject(c))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{"posts": posts})
}

// GetUserNotifications handles GET /api/user-notifications
func (s *Server) GetUserNotifications(c *fiber.Ctx) error {
	digests, err := s.notificationService.RecentLikesForUser(c.UserContext(), middleware.Subject(c))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(digests)
}
