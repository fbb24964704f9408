package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"socialapp/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestRecentLikesPipeline_Shape(t *testing.T) {
	pipeline := RecentLikesPipeline("author-1", 2)
	require.Len(t, pipeline, 3)

	assert.Equal(t, "$match", pipeline[0][0].Key)
	assert.Equal(t, bson.M{"userId": "author-1"}, pipeline[0][0].Value)

	assert.Equal(t, "$sort", pipeline[1][0].Key)
	assert.Equal(t, bson.D{{Key: "_id", Value: 1}}, pipeline[1][0].Value)

	assert.Equal(t, "$project", pipeline[2][0].Key)
	project, ok := pipeline[2][0].Value.(bson.D)
	require.True(t, ok)

	fields := map[string]any{}
	for _, e := range project {
		fields[e.Key] = e.Value
	}
	assert.Equal(t, bson.M{"$toString": "$_id"}, fields["_id"])
	assert.Equal(t, 1, fields["body"])
	assert.Equal(t, bson.M{"$size": bson.M{"$ifNull": bson.A{"$likers", bson.A{}}}}, fields["likeNamesCount"])

	// The last two names of the append-ordered roster, reversed so the
	// newest liker comes first. A positive slice bound would take the oldest.
	assert.Equal(t, bson.M{
		"$reverseArray": bson.M{
			"$slice": bson.A{bson.M{"$ifNull": bson.A{"$likers.userName", bson.A{}}}, -2},
		},
	}, fields["recentLikerNames"])
}

func TestRecentLikesPipeline_SliceTracksN(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		project := RecentLikesPipeline("a", n)[2][0].Value.(bson.D)
		for _, e := range project {
			if e.Key != "recentLikerNames" {
				continue
			}
			slice := e.Value.(bson.M)["$reverseArray"].(bson.M)["$slice"].(bson.A)
			assert.Equal(t, -n, slice[1], "n=%d", n)
		}
	}
}

func TestCommentLikerQueries_Shape(t *testing.T) {
	postID, commentID := bson.NewObjectID(), bson.NewObjectID()
	liker := models.Liker{UserID: "u1", UserName: "alice"}

	filter, update := addCommentLikerQuery(postID, commentID, liker)
	assert.Equal(t, bson.M{
		"_id": postID,
		"comments": bson.M{"$elemMatch": bson.M{
			"id":            commentID,
			"likers.userId": bson.M{"$ne": "u1"},
		}},
	}, filter)
	assert.Equal(t, bson.M{
		"$inc":  bson.M{"comments.$.likes": 1},
		"$push": bson.M{"comments.$.likers": liker},
	}, update)

	filter, update = removeCommentLikerQuery(postID, commentID, "u1")
	assert.Equal(t, bson.M{
		"_id": postID,
		"comments": bson.M{"$elemMatch": bson.M{
			"id":            commentID,
			"likers.userId": "u1",
		}},
	}, filter)
	assert.Equal(t, bson.M{
		"$inc":  bson.M{"comments.$.likes": -1},
		"$pull": bson.M{"comments.$.likers": bson.M{"userId": "u1"}},
	}, update)
}

func newTestPost(author string) *models.Post {
	now := time.Now().UTC()
	return &models.Post{
		UserID:    author,
		UserName:  "name-" + author,
		Body:      "body by " + author,
		Date:      now,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestPostRepository_AddLiker(t *testing.T) {
	db := requireMongo(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	post := newTestPost("author-add")
	require.NoError(t, repo.Create(ctx, post))

	out, err := repo.AddLiker(ctx, post.ID, models.Liker{UserID: "u1", UserName: "Ann"})
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, 1, out.Likes)
	assert.Equal(t, "author-add", out.AuthorID)

	// Second like by the same subject is a no-op.
	out, err = repo.AddLiker(ctx, post.ID, models.Liker{UserID: "u1", UserName: "Ann"})
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, 1, out.Likes)

	got, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, got.LikerIDs())
	assert.Equal(t, []string{"Ann"}, got.LikerNames())
	assert.NoError(t, got.CheckInvariants())

	_, err = repo.AddLiker(ctx, bson.NewObjectID(), models.Liker{UserID: "u1", UserName: "Ann"})
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_ConcurrentLikes(t *testing.T) {
	db := requireMongo(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	t.Run("same subject counts once", func(t *testing.T) {
		post := newTestPost("author-race")
		require.NoError(t, repo.Create(ctx, post))

		var wg sync.WaitGroup
		for i := 0; i < 25; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.AddLiker(ctx, post.ID, models.Liker{UserID: "same", UserName: "Same"})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := repo.GetByID(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Likes)
		assert.NoError(t, got.CheckInvariants())
	})

	t.Run("distinct subjects all count", func(t *testing.T) {
		post := newTestPost("author-many")
		require.NoError(t, repo.Create(ctx, post))

		var wg sync.WaitGroup
		for i := 0; i < 25; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := repo.AddLiker(ctx, post.ID, models.Liker{
					UserID:   fmt.Sprintf("u%d", i),
					UserName: fmt.Sprintf("User %d", i),
				})
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		got, err := repo.GetByID(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, 25, got.Likes)
		assert.NoError(t, got.CheckInvariants())
	})
}

func TestPostRepository_RemoveLiker(t *testing.T) {
	db := requireMongo(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	post := newTestPost("author-remove")
	require.NoError(t, repo.Create(ctx, post))

	out, err := repo.RemoveLiker(ctx, post.ID, "nobody")
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, 0, out.Likes)

	_, err = repo.AddLiker(ctx, post.ID, models.Liker{UserID: "u1", UserName: "Ann"})
	require.NoError(t, err)
	_, err = repo.AddLiker(ctx, post.ID, models.Liker{UserID: "u2", UserName: "Bob"})
	require.NoError(t, err)

	out, err = repo.RemoveLiker(ctx, post.ID, "u1")
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, 1, out.Likes)

	got, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.Liker{{UserID: "u2", UserName: "Bob"}}, got.Likers)
}

func TestPostRepository_RecentLikes(t *testing.T) {
	db := requireMongo(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	author := "author-digest-" + bson.NewObjectID().Hex()
	first := newTestPost(author)
	require.NoError(t, repo.Create(ctx, first))
	second := newTestPost(author)
	require.NoError(t, repo.Create(ctx, second))

	for i, name := range []string{"A", "B", "C", "D", "E"} {
		_, err := repo.AddLiker(ctx, first.ID, models.Liker{UserID: fmt.Sprintf("s%d", i), UserName: name})
		require.NoError(t, err)
	}

	digests, err := repo.RecentLikes(ctx, author, 2)
	require.NoError(t, err)
	require.Len(t, digests, 2)

	assert.Equal(t, first.ID.Hex(), digests[0].PostID)
	assert.Equal(t, []string{"E", "D"}, digests[0].RecentLikerNames)
	assert.Equal(t, 5, digests[0].LikeNamesCount)

	assert.Equal(t, second.ID.Hex(), digests[1].PostID)
	assert.Empty(t, digests[1].RecentLikerNames)
	assert.Equal(t, 0, digests[1].LikeNamesCount)

	none, err := repo.RecentLikes(ctx, "author-without-posts", 2)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPostRepository_Comments(t *testing.T) {
	db := requireMongo(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	post := newTestPost("author-comments")
	require.NoError(t, repo.Create(ctx, post))

	comment := &models.Comment{UserID: "c1", UserName: "Cara", Body: "first", Date: time.Now().UTC()}
	require.NoError(t, repo.AddComment(ctx, post.ID, comment))
	assert.False(t, comment.ID.IsZero())

	out, err := repo.AddCommentLiker(ctx, post.ID, comment.ID, models.Liker{UserID: "u1", UserName: "Ann"})
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, 1, out.Likes)
	assert.Equal(t, "c1", out.AuthorID)

	out, err = repo.AddCommentLiker(ctx, post.ID, comment.ID, models.Liker{UserID: "u1", UserName: "Ann"})
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, 1, out.Likes)

	_, err = repo.AddCommentLiker(ctx, post.ID, bson.NewObjectID(), models.Liker{UserID: "u1", UserName: "Ann"})
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	out, err = repo.RemoveCommentLiker(ctx, post.ID, comment.ID, "u1")
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, 0, out.Likes)

	removed, err := repo.RemoveComment(ctx, post.ID, bson.NewObjectID())
	require.NoError(t, err)
	assert.False(t, removed)

	comments, err := repo.ListComments(ctx, post.ID)
	require.NoError(t, err)
	assert.Len(t, comments, 1)

	removed, err = repo.RemoveComment(ctx, post.ID, comment.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = repo.RemoveComment(ctx, bson.NewObjectID(), comment.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_ListAndDelete(t *testing.T) {
	db := requireMongo(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	author := "author-list-" + bson.NewObjectID().Hex()
	for i := 0; i < 3; i++ {
		p := newTestPost(author)
		p.Date = time.Now().UTC().Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, p))
	}

	posts, err := repo.ListByUserID(ctx, author)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.True(t, posts[0].Date.After(posts[2].Date))

	page, total, err := repo.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(page), 2)
	assert.GreaterOrEqual(t, total, int64(3))

	deleted, err := repo.Delete(ctx, posts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, posts[0].ID, deleted.ID)

	_, err = repo.Delete(ctx, posts[0].ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}
