package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"socialapp/internal/media"
	"socialapp/internal/models"
	"socialapp/internal/observability"
	"socialapp/internal/repository"
	"socialapp/internal/storage"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.opentelemetry.io/otel/attribute"
)

const (
	maxPostBodyLen   = 50000
	defaultPageLimit = 10
	maxPageLimit     = 50
)

// PostService creates, lists and deletes posts and serves their images.
type PostService struct {
	posts          repository.PostRepository
	users          *UserDirectory
	blobs          storage.BlobStore
	maxUploadBytes int64
}

// CreatePostInput is a new post by SubjectID. Body may be empty when an
// image is attached.
type CreatePostInput struct {
	SubjectID string
	Body      string
	// Image is the raw upload; nil for text-only posts.
	Image     []byte
	ImageType string
}

// DeletePostInput identifies a post to remove on behalf of SubjectID.
type DeletePostInput struct {
	SubjectID string
	PostID    bson.ObjectID
}

// NewPostService creates a PostService. Uploads larger than maxUploadBytes
// are rejected.
func NewPostService(
	posts repository.PostRepository,
	users *UserDirectory,
	blobs storage.BlobStore,
	maxUploadBytes int64,
) *PostService {
	return &PostService{
		posts:          posts,
		users:          users,
		blobs:          blobs,
		maxUploadBytes: maxUploadBytes,
	}
}

// CreatePost stores the optional image and then inserts the post. An image
// that cannot be stored fails the request so no post references a missing blob.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (post *models.Post, err error) {
	ctx, end := observability.StartSpan(ctx, "PostService.CreatePost")
	defer end(&err)

	if in.SubjectID == "" {
		return nil, models.NewForbiddenError("Sign in to post")
	}

	hasImage := len(in.Image) > 0
	body := ""
	if !hasImage || strings.TrimSpace(in.Body) != "" {
		if body, err = cleanBody("Body", in.Body, maxPostBodyLen); err != nil {
			return nil, err
		}
	}

	name, err := s.users.requireDisplayName(ctx, in.SubjectID)
	if err != nil {
		return nil, err
	}

	post = &models.Post{
		UserID:   in.SubjectID,
		UserName: name,
		Body:     body,
		Date:     time.Now().UTC(),
	}

	if hasImage {
		img, err := media.Normalize(in.Image, in.ImageType, s.maxUploadBytes)
		if err != nil {
			return nil, err
		}
		key := uuid.NewString() + ".webp"
		if err := s.blobs.Put(ctx, key, img.Data, img.ContentType); err != nil {
			return nil, models.NewInternalError(fmt.Errorf("store image: %w", err))
		}
		post.ImageID = key
	}

	if err := s.posts.Create(ctx, post); err != nil {
		if post.ImageID != "" {
			s.deleteBlob(ctx, post.ImageID)
		}
		return nil, err
	}
	post.CanLike = true
	return post, nil
}

// GetPost returns the post with CanLike computed for viewerID.
func (s *PostService) GetPost(ctx context.Context, id bson.ObjectID, viewerID string) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	markLikeable(viewerID, post)
	return post, nil
}

// ListPosts returns one page of the home feed, newest first.
func (s *PostService) ListPosts(ctx context.Context, page, limit int64, viewerID string) (*models.PostPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	posts, total, err := s.posts.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	markLikeable(viewerID, posts...)
	return &models.PostPage{
		Posts:       posts,
		TotalPosts:  total,
		TotalPages:  (total + limit - 1) / limit,
		CurrentPage: page,
	}, nil
}

// ListByUser returns posts authored by subjectID.
func (s *PostService) ListByUser(ctx context.Context, subjectID, viewerID string) ([]*models.Post, error) {
	posts, err := s.posts.ListByUserID(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	markLikeable(viewerID, posts...)
	return nonNilPosts(posts), nil
}

// ListByUserName returns posts carrying userName as their author name.
func (s *PostService) ListByUserName(ctx context.Context, userName, viewerID string) ([]*models.Post, error) {
	if strings.TrimSpace(userName) == "" {
		return nil, models.NewValidationError("User name is required")
	}
	posts, err := s.posts.ListByUserName(ctx, userName)
	if err != nil {
		return nil, err
	}
	markLikeable(viewerID, posts...)
	return nonNilPosts(posts), nil
}

// DeletePost removes a post owned by the caller, then its image. The image
// delete is best effort: a failure is logged and counted, and may leave an
// orphaned blob.
func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) (err error) {
	ctx, end := observability.StartSpan(ctx, "PostService.DeletePost", attribute.String("post.id", in.PostID.Hex()))
	defer end(&err)

	if in.SubjectID == "" {
		return models.NewForbiddenError("Sign in to delete posts")
	}
	post, err := s.posts.GetByID(ctx, in.PostID)
	if err != nil {
		return err
	}
	if post.UserID != in.SubjectID {
		return models.NewForbiddenError("You can only delete your own posts")
	}

	deleted, err := s.posts.Delete(ctx, in.PostID)
	if err != nil {
		return err
	}
	if deleted.ImageID != "" {
		s.deleteBlob(ctx, deleted.ImageID)
	}
	return nil
}

// GetImage loads a stored post image.
func (s *PostService) GetImage(ctx context.Context, key string) (*storage.Blob, error) {
	blob, err := s.blobs.Get(ctx, key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, models.NewNotFoundError("Image", key)
	case errors.Is(err, storage.ErrInvalidKey):
		return nil, models.NewValidationError("Invalid image id")
	case err != nil:
		return nil, models.NewInternalError(err)
	}
	return blob, nil
}

func (s *PostService) deleteBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		observability.BlobDeleteFailures.Inc()
		observability.Logger.ErrorContext(ctx, "failed to delete post image",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

func markLikeable(viewerID string, posts ...*models.Post) {
	for _, p := range posts {
		p.CanLike = viewerID != "" && !p.HasLiker(viewerID)
	}
}

func nonNilPosts(posts []*models.Post) []*models.Post {
	if posts == nil {
		return []*models.Post{}
	}
	return posts
}
