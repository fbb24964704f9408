package service

import (
	"context"
	"time"

	"socialapp/internal/models"
	"socialapp/internal/observability"
	"socialapp/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// RecentLikerCount is how many liker names each digest carries.
const RecentLikerCount = 2

// NotificationService builds "who recently liked your post" digests.
type NotificationService struct {
	posts repository.PostRepository
}

func NewNotificationService(posts repository.PostRepository) *NotificationService {
	return &NotificationService{posts: posts}
}

// RecentLikesForUser returns one digest per post authored by subjectID, each
// with up to RecentLikerCount liker names (newest first) and the total count.
func (s *NotificationService) RecentLikesForUser(ctx context.Context, subjectID string) (digests []models.LikeDigest, err error) {
	ctx, end := observability.StartSpan(ctx, "NotificationService.RecentLikesForUser",
		attribute.Int("digest.names", RecentLikerCount))
	defer end(&err)

	if subjectID == "" {
		return nil, models.NewForbiddenError("Sign in to view notifications")
	}

	start := time.Now()
	digests, err = s.posts.RecentLikes(ctx, subjectID, RecentLikerCount)
	observability.DigestLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if digests == nil {
		digests = []models.LikeDigest{}
	}
	for i := range digests {
		if digests[i].RecentLikerNames == nil {
			digests[i].RecentLikerNames = []string{}
		}
	}
	return digests, nil
}
