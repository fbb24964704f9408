package service

import (
	"context"

	"socialapp/internal/models"
	"socialapp/internal/notifications"
	"socialapp/internal/observability"
	"socialapp/internal/repository"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.opentelemetry.io/otel/attribute"
)

// LikeService adds and removes likes on posts and comments. Like and Unlike
// are idempotent: repeating either leaves the roster unchanged and returns
// the current count.
type LikeService struct {
	posts  repository.PostRepository
	users  *UserDirectory
	events EventPublisher
}

// NewLikeService creates a LikeService. events may be nil.
func NewLikeService(posts repository.PostRepository, users *UserDirectory, events EventPublisher) *LikeService {
	return &LikeService{posts: posts, users: users, events: events}
}

// Like records subjectID as a liker of the post and returns the like count.
func (s *LikeService) Like(ctx context.Context, postID bson.ObjectID, subjectID string) (likes int, err error) {
	ctx, end := observability.StartSpan(ctx, "LikeService.Like", attribute.String("post.id", postID.Hex()))
	defer end(&err)

	if subjectID == "" {
		return 0, models.NewForbiddenError("Sign in to like posts")
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return 0, err
	}
	if post.HasLiker(subjectID) {
		observability.RecordLike("like", false)
		return post.Likes, nil
	}

	name, err := s.users.requireDisplayName(ctx, subjectID)
	if err != nil {
		return 0, err
	}

	// A concurrent like from the same subject may win between the read and
	// the update; the conditional update then reports a no-op.
	out, err := s.posts.AddLiker(ctx, postID, models.Liker{UserID: subjectID, UserName: name})
	if err != nil {
		return 0, err
	}
	observability.RecordLike("like", out.Applied)

	if out.Applied {
		notify(ctx, s.events, out.AuthorID, subjectID, notifications.Event{
			Type: notifications.EventPostLiked,
			Payload: map[string]any{
				"postId":    postID.Hex(),
				"likerName": name,
				"likes":     out.Likes,
			},
		})
	}
	return out.Likes, nil
}

// Unlike removes subjectID from the post's likers and returns the like count.
// Unliking a post the subject never liked changes nothing.
func (s *LikeService) Unlike(ctx context.Context, postID bson.ObjectID, subjectID string) (likes int, err error) {
	ctx, end := observability.StartSpan(ctx, "LikeService.Unlike", attribute.String("post.id", postID.Hex()))
	defer end(&err)

	if subjectID == "" {
		return 0, models.NewForbiddenError("Sign in to unlike posts")
	}

	out, err := s.posts.RemoveLiker(ctx, postID, subjectID)
	if err != nil {
		return 0, err
	}
	observability.RecordLike("unlike", out.Applied)
	return out.Likes, nil
}

// LikeComment records subjectID as a liker of a comment.
func (s *LikeService) LikeComment(ctx context.Context, postID, commentID bson.ObjectID, subjectID string) (likes int, err error) {
	ctx, end := observability.StartSpan(ctx, "LikeService.LikeComment",
		attribute.String("post.id", postID.Hex()), attribute.String("comment.id", commentID.Hex()))
	defer end(&err)

	if subjectID == "" {
		return 0, models.NewForbiddenError("Sign in to like comments")
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return 0, err
	}
	comment := post.FindComment(commentID)
	if comment == nil {
		return 0, models.NewNotFoundError("Comment", commentID.Hex())
	}
	if comment.HasLiker(subjectID) {
		observability.RecordLike("like_comment", false)
		return comment.Likes, nil
	}

	name, err := s.users.requireDisplayName(ctx, subjectID)
	if err != nil {
		return 0, err
	}

	out, err := s.posts.AddCommentLiker(ctx, postID, commentID, models.Liker{UserID: subjectID, UserName: name})
	if err != nil {
		return 0, err
	}
	observability.RecordLike("like_comment", out.Applied)

	if out.Applied {
		notify(ctx, s.events, out.AuthorID, subjectID, notifications.Event{
			Type: notifications.EventCommentLiked,
			Payload: map[string]any{
				"postId":    postID.Hex(),
				"commentId": commentID.Hex(),
				"likerName": name,
				"likes":     out.Likes,
			},
		})
	}
	return out.Likes, nil
}

// UnlikeComment removes subjectID from a comment's likers.
func (s *LikeService) UnlikeComment(ctx context.Context, postID, commentID bson.ObjectID, subjectID string) (likes int, err error) {
	ctx, end := observability.StartSpan(ctx, "LikeService.UnlikeComment",
		attribute.String("post.id", postID.Hex()), attribute.String("comment.id", commentID.Hex()))
	defer end(&err)

	if subjectID == "" {
		return 0, models.NewForbiddenError("Sign in to unlike comments")
	}

	out, err := s.posts.RemoveCommentLiker(ctx, postID, commentID, subjectID)
	if err != nil {
		return 0, err
	}
	observability.RecordLike("unlike_comment", out.Applied)
	return out.Likes, nil
}
