package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"socialapp/internal/models"
	"socialapp/internal/notifications"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestLikeService_Like(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("first like increments and records the name", func(t *testing.T) {
		t.Parallel()
		f := newFixture(user("u1", "alice"))
		id := f.seedPost(t, "author", "hello")

		likes, err := f.likes.Like(ctx, id, "u1")
		require.NoError(t, err)
		assert.Equal(t, 1, likes)

		post := f.assertInvariants(t, id)
		assert.Equal(t, []string{"u1"}, post.LikerIDs())
		assert.Equal(t, []string{"alice"}, post.LikerNames())
	})

	t.Run("repeated like is idempotent", func(t *testing.T) {
		t.Parallel()
		f := newFixture(user("u1", "alice"))
		id := f.seedPost(t, "author", "hello")

		for i := 0; i < 3; i++ {
			likes, err := f.likes.Like(ctx, id, "u1")
			require.NoError(t, err)
			assert.Equal(t, 1, likes)
		}
		assert.Len(t, f.events.published(), 1)
		f.assertInvariants(t, id)
	})

	t.Run("anonymous caller is forbidden", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		id := f.seedPost(t, "author", "hello")

		_, err := f.likes.Like(ctx, id, "")
		assertCode(t, err, models.CodeForbidden)
		assert.Equal(t, 0, f.posts.Snapshot(id).Likes)
	})

	t.Run("missing post is not found", func(t *testing.T) {
		t.Parallel()
		f := newFixture(user("u1", "alice"))

		_, err := f.likes.Like(ctx, bson.NewObjectID(), "u1")
		assertCode(t, err, models.CodeNotFound)
	})

	t.Run("subject without directory record is an internal error", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		id := f.seedPost(t, "author", "hello")

		_, err := f.likes.Like(ctx, id, "ghost")
		assertCode(t, err, models.CodeInternal)
		assert.Equal(t, 0, f.posts.Snapshot(id).Likes)
	})

	t.Run("notifies the author but not self-likes", func(t *testing.T) {
		t.Parallel()
		f := newFixture(user("u1", "alice"), user("author", "bob"))
		id := f.seedPost(t, "author", "hello")

		_, err := f.likes.Like(ctx, id, "author")
		require.NoError(t, err)
		assert.Empty(t, f.events.published())

		_, err = f.likes.Like(ctx, id, "u1")
		require.NoError(t, err)
		events := f.events.published()
		require.Len(t, events, 1)
		assert.Equal(t, "author", events[0].recipient)
		assert.Equal(t, notifications.EventPostLiked, events[0].event.Type)
		assert.Equal(t, "alice", events[0].event.Payload["likerName"])
		assert.Equal(t, 2, events[0].event.Payload["likes"])
	})

	t.Run("publish failure does not fail the like", func(t *testing.T) {
		t.Parallel()
		f := newFixture(user("u1", "alice"))
		f.events.err = errors.New("redis down")
		id := f.seedPost(t, "author", "hello")

		likes, err := f.likes.Like(ctx, id, "u1")
		require.NoError(t, err)
		assert.Equal(t, 1, likes)
	})
}

func TestLikeService_ConcurrentLikesFromOneSubject(t *testing.T) {
	t.Parallel()
	f := newFixture(user("u1", "alice"))
	id := f.seedPost(t, "author", "hello")

	const workers = 50
	var wg sync.WaitGroup
	results := make(chan int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			likes, err := f.likes.Like(context.Background(), id, "u1")
			assert.NoError(t, err)
			results <- likes
		}()
	}
	wg.Wait()
	close(results)

	for likes := range results {
		assert.Equal(t, 1, likes)
	}
	post := f.assertInvariants(t, id)
	assert.Equal(t, 1, post.Likes)
}

func TestLikeService_ConcurrentLikesFromDistinctSubjects(t *testing.T) {
	t.Parallel()
	const workers = 30
	users := make([]models.User, 0, workers)
	for i := 0; i < workers; i++ {
		users = append(users, user(fmt.Sprintf("u%d", i), fmt.Sprintf("name%d", i)))
	}
	f := newFixture(users...)
	id := f.seedPost(t, "author", "hello")

	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(subject string) {
			defer wg.Done()
			_, err := f.likes.Like(context.Background(), id, subject)
			assert.NoError(t, err)
		}(u.UserID)
	}
	wg.Wait()

	post := f.assertInvariants(t, id)
	assert.Equal(t, workers, post.Likes)
}

func TestLikeService_Unlike(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("inverse of like", func(t *testing.T) {
		t.Parallel()
		f := newFixture(user("u1", "alice"), user("u2", "bob"))
		id := f.seedPost(t, "author", "hello", models.Liker{UserID: "u2", UserName: "bob"})
		before := f.posts.Snapshot(id)

		_, err := f.likes.Like(ctx, id, "u1")
		require.NoError(t, err)
		likes, err := f.likes.Unlike(ctx, id, "u1")
		require.NoError(t, err)
		assert.Equal(t, before.Likes, likes)

		after := f.assertInvariants(t, id)
		assert.Equal(t, before.LikerIDs(), after.LikerIDs())
		assert.Equal(t, before.LikerNames(), after.LikerNames())
	})

	t.Run("unlike without like is a no-op", func(t *testing.T) {
		t.Parallel()
		f := newFixture(user("u1", "alice"))
		id := f.seedPost(t, "author", "hello", models.Liker{UserID: "u2", UserName: "bob"})

		likes, err := f.likes.Unlike(ctx, id, "u1")
		require.NoError(t, err)
		assert.Equal(t, 1, likes)
		assert.Equal(t, []string{"u2"}, f.assertInvariants(t, id).LikerIDs())
	})

	t.Run("removes only the caller's pair", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		id := f.seedPost(t, "author", "hello",
			models.Liker{UserID: "a", UserName: "A"},
			models.Liker{UserID: "b", UserName: "B"},
			models.Liker{UserID: "c", UserName: "C"},
		)

		likes, err := f.likes.Unlike(ctx, id, "b")
		require.NoError(t, err)
		assert.Equal(t, 2, likes)

		post := f.assertInvariants(t, id)
		assert.Equal(t, []string{"a", "c"}, post.LikerIDs())
		assert.Equal(t, []string{"A", "C"}, post.LikerNames())
	})

	t.Run("anonymous and missing post", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		id := f.seedPost(t, "author", "hello")

		_, err := f.likes.Unlike(ctx, id, "")
		assertCode(t, err, models.CodeForbidden)
		_, err = f.likes.Unlike(ctx, bson.NewObjectID(), "u1")
		assertCode(t, err, models.CodeNotFound)
	})
}

func TestLikeService_RandomSequencesKeepRosterConsistent(t *testing.T) {
	t.Parallel()
	subjects := []models.User{user("a", "A"), user("b", "B"), user("c", "C"), user("d", "D")}
	f := newFixture(subjects...)
	id := f.seedPost(t, "author", "hello")
	rng := rand.New(rand.NewSource(42))
	ctx := context.Background()

	liked := map[string]bool{}
	for i := 0; i < 200; i++ {
		s := subjects[rng.Intn(len(subjects))].UserID
		var err error
		if rng.Intn(2) == 0 {
			_, err = f.likes.Like(ctx, id, s)
			liked[s] = true
		} else {
			_, err = f.likes.Unlike(ctx, id, s)
			delete(liked, s)
		}
		require.NoError(t, err)

		post := f.assertInvariants(t, id)
		require.Equal(t, len(liked), post.Likes)
		for subject := range liked {
			require.True(t, post.HasLiker(subject))
		}
	}
}

func TestLikeService_CommentLikes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(user("u1", "alice"), user("cauthor", "carol"))
	id := f.seedPost(t, "author", "hello")
	comment, err := f.comments.AddComment(ctx, AddCommentInput{SubjectID: "cauthor", PostID: id, Body: "nice"})
	require.NoError(t, err)

	likes, err := f.likes.LikeComment(ctx, id, comment.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, likes)
	likes, err = f.likes.LikeComment(ctx, id, comment.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, likes)

	post := f.assertInvariants(t, id)
	assert.Equal(t, []string{"u1"}, post.FindComment(comment.ID).LikerIDs())

	var commentLiked int
	for _, e := range f.events.published() {
		if e.event.Type == notifications.EventCommentLiked {
			commentLiked++
			assert.Equal(t, "cauthor", e.recipient)
		}
	}
	assert.Equal(t, 1, commentLiked)

	likes, err = f.likes.UnlikeComment(ctx, id, comment.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, likes)
	likes, err = f.likes.UnlikeComment(ctx, id, comment.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, likes)

	_, err = f.likes.LikeComment(ctx, id, bson.NewObjectID(), "u1")
	assertCode(t, err, models.CodeNotFound)
	_, err = f.likes.UnlikeComment(ctx, id, bson.NewObjectID(), "u1")
	assertCode(t, err, models.CodeNotFound)
	_, err = f.likes.LikeComment(ctx, id, comment.ID, "")
	assertCode(t, err, models.CodeForbidden)
}
