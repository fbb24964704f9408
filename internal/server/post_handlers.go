package server

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"

	"socialapp/internal/middleware"
	"socialapp/internal/models"
	"socialapp/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetHome handles GET /api/home?page=&limit=
func (s *Server) GetHome(c *fiber.Ctx) error {
	page, err := s.postService.ListPosts(c.UserContext(),
		int64(c.QueryInt("page", 1)), int64(c.QueryInt("limit", 0)), middleware.Subject(c))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(page)
}

// GetPost handles GET /api/post/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseObjectID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.GetPost(c.UserContext(), id, middleware.Subject(c))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(post)
}

// CreatePost handles POST /api/post as multipart form data with a "body"
// field and an optional "file" image.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	in := service.CreatePostInput{
		SubjectID: middleware.Subject(c),
		Body:      c.FormValue("body"),
	}

	// Text-only posts may arrive as a plain urlencoded form.
	if form, err := c.MultipartForm(); err == nil {
		if files := form.File["file"]; len(files) > 0 {
			data, err := readUpload(files[0])
			if err != nil {
				return models.RespondWithError(c, fiber.StatusBadRequest,
					models.NewValidationError("Failed to read uploaded file"))
			}
			in.Image = data
			in.ImageType = files[0].Header.Get(fiber.HeaderContentType)
		}
	}

	post, err := s.postService.CreatePost(c.UserContext(), in)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// DeletePost handles DELETE /api/post/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseObjectID(c, "id")
	if err != nil {
		return nil
	}
	err = s.postService.DeletePost(c.UserContext(), service.DeletePostInput{
		SubjectID: middleware.Subject(c),
		PostID:    id,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Post deleted successfully"})
}

// GetImage handles GET /api/home/:imageId and /api/profile/:imageId. The
// image is returned base64 encoded.
func (s *Server) GetImage(c *fiber.Ctx) error {
	blob, err := s.postService.GetImage(c.UserContext(), c.Params("imageId"))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"image":       base64.StdEncoding.EncodeToString(blob.Data),
		"contentType": blob.ContentType,
	})
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}
