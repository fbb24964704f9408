package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"socialapp/internal/models"
	"socialapp/internal/notifications"
	"socialapp/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type publishedEvent struct {
	recipient string
	event     notifications.Event
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, subjectID string, evt notifications.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{recipient: subjectID, event: evt})
	return nil
}

func (p *recordingPublisher) published() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}

// fixture wires services over in-memory stores.
type fixture struct {
	posts    *testutil.PostStore
	users    *testutil.UserStore
	blobs    *testutil.BlobStore
	events   *recordingPublisher
	dir      *UserDirectory
	likes    *LikeService
	comments *CommentService
	digest   *NotificationService
	postSvc  *PostService
	userSvc  *UserService
}

func newFixture(users ...models.User) *fixture {
	f := &fixture{
		posts:  testutil.NewPostStore(),
		users:  testutil.NewUserStore(users...),
		blobs:  testutil.NewBlobStore(),
		events: &recordingPublisher{},
	}
	f.dir = NewUserDirectory(f.users, nil)
	f.likes = NewLikeService(f.posts, f.dir, f.events)
	f.comments = NewCommentService(f.posts, f.dir, f.events)
	f.digest = NewNotificationService(f.posts)
	f.postSvc = NewPostService(f.posts, f.dir, f.blobs, 10<<20)
	f.userSvc = NewUserService(f.users, f.dir, f.posts)
	return f
}

func user(id, name string) models.User {
	return models.User{UserID: id, UserName: name, UserEmail: name + "@example.com", Date: time.Now().UTC()}
}

// seedPost inserts a post authored by authorID with the given likers.
func (f *fixture) seedPost(t *testing.T, authorID, body string, likers ...models.Liker) bson.ObjectID {
	t.Helper()
	post := &models.Post{
		UserID:   authorID,
		UserName: authorID,
		Body:     body,
		Date:     time.Now().UTC(),
		Likers:   append([]models.Liker{}, likers...),
	}
	require.NoError(t, f.posts.Create(context.Background(), post))
	return post.ID
}

func (f *fixture) assertInvariants(t *testing.T, id bson.ObjectID) *models.Post {
	t.Helper()
	post := f.posts.Snapshot(id)
	require.NotNil(t, post)
	require.NoError(t, post.CheckInvariants())
	return post
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected *models.AppError, got %T", err)
	assert.Equal(t, code, appErr.Code)
}
