package service

import (
	"context"
	"time"

	"socialapp/internal/models"
	"socialapp/internal/notifications"
	"socialapp/internal/observability"
	"socialapp/internal/repository"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.opentelemetry.io/otel/attribute"
)

const maxCommentLen = 10000

// CommentService manages the comment sequence embedded in each post.
type CommentService struct {
	posts  repository.PostRepository
	users  *UserDirectory
	events EventPublisher
}

// AddCommentInput is a new comment by SubjectID on PostID.
type AddCommentInput struct {
	SubjectID string
	PostID    bson.ObjectID
	Body      string
	// Date defaults to the current time when zero.
	Date time.Time
}

// DeleteCommentInput identifies a comment to remove on behalf of SubjectID.
type DeleteCommentInput struct {
	SubjectID string
	PostID    bson.ObjectID
	CommentID bson.ObjectID
}

// NewCommentService creates a CommentService. events may be nil.
func NewCommentService(posts repository.PostRepository, users *UserDirectory, events EventPublisher) *CommentService {
	return &CommentService{posts: posts, users: users, events: events}
}

// AddComment appends a comment to the post and returns it.
func (s *CommentService) AddComment(ctx context.Context, in AddCommentInput) (comment *models.Comment, err error) {
	ctx, end := observability.StartSpan(ctx, "CommentService.AddComment", attribute.String("post.id", in.PostID.Hex()))
	defer end(&err)

	if in.SubjectID == "" {
		return nil, models.NewForbiddenError("Sign in to comment")
	}
	body, err := cleanBody("Comment", in.Body, maxCommentLen)
	if err != nil {
		return nil, err
	}
	name, err := s.users.requireDisplayName(ctx, in.SubjectID)
	if err != nil {
		return nil, err
	}

	date := in.Date
	if date.IsZero() {
		date = time.Now()
	}
	comment = &models.Comment{
		ID:       bson.NewObjectID(),
		UserID:   in.SubjectID,
		UserName: name,
		Body:     body,
		Date:     date.UTC(),
		Likers:   []models.Liker{},
	}
	if err := s.posts.AddComment(ctx, in.PostID, comment); err != nil {
		return nil, err
	}

	if post, err := s.posts.GetByID(ctx, in.PostID); err == nil {
		notify(ctx, s.events, post.UserID, in.SubjectID, notifications.Event{
			Type: notifications.EventCommentCreated,
			Payload: map[string]any{
				"postId":     in.PostID.Hex(),
				"commentId":  comment.ID.Hex(),
				"authorName": name,
			},
		})
	}
	return comment, nil
}

// ListComments returns the post's comments in insertion order.
func (s *CommentService) ListComments(ctx context.Context, postID bson.ObjectID) ([]models.Comment, error) {
	comments, err := s.posts.ListComments(ctx, postID)
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	return comments, nil
}

// DeleteComment removes a comment. Deleting a comment that does not exist
// succeeds and leaves the post unchanged. Only the comment author or the post
// author may delete an existing comment.
func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) (err error) {
	ctx, end := observability.StartSpan(ctx, "CommentService.DeleteComment",
		attribute.String("post.id", in.PostID.Hex()), attribute.String("comment.id", in.CommentID.Hex()))
	defer end(&err)

	if in.SubjectID == "" {
		return models.NewForbiddenError("Sign in to delete comments")
	}

	post, err := s.posts.GetByID(ctx, in.PostID)
	if err != nil {
		return err
	}
	comment := post.FindComment(in.CommentID)
	if comment == nil {
		return nil
	}
	if comment.UserID != in.SubjectID && post.UserID != in.SubjectID {
		return models.NewForbiddenError("You can only delete your own comments")
	}

	_, err = s.posts.RemoveComment(ctx, in.PostID, in.CommentID)
	return err
}
