package service

import (
	"context"
	"testing"

	"socialapp/internal/cache"
	"socialapp/internal/models"
	"socialapp/internal/repository"
	"socialapp/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return cache.New(rdb), mr
}

// emptyUsers is a directory with no records.
type emptyUsers struct {
	repository.UserRepository
}

func (emptyUsers) GetByUserID(_ context.Context, userID string) (*models.User, error) {
	return nil, models.NewNotFoundError("User", userID)
}

func TestUserService_CreateUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateUserInput
		code string
	}{
		{"anonymous", CreateUserInput{UserName: "alice", UserEmail: "a@example.com"}, models.CodeForbidden},
		{"missing name", CreateUserInput{SubjectID: "u1", UserEmail: "a@example.com"}, models.CodeValidation},
		{"bad name", CreateUserInput{SubjectID: "u1", UserName: "al ice", UserEmail: "a@example.com"}, models.CodeValidation},
		{"long name", CreateUserInput{SubjectID: "u1", UserName: "abcdefghijklmnopqrstuvwxyz012345", UserEmail: "a@example.com"}, models.CodeValidation},
		{"bad email", CreateUserInput{SubjectID: "u1", UserName: "alice", UserEmail: "nope"}, models.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture()
			_, err := f.userSvc.CreateUser(ctx, tt.in)
			assertCode(t, err, tt.code)
		})
	}

	t.Run("provisions and rejects duplicates", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		u, err := f.userSvc.CreateUser(ctx, CreateUserInput{SubjectID: "u1", UserName: "alice", UserEmail: "Alice@Example.com"})
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", u.UserEmail)

		_, err = f.userSvc.CreateUser(ctx, CreateUserInput{SubjectID: "u2", UserName: "alice", UserEmail: "b@example.com"})
		assertCode(t, err, models.CodeConflict)

		name, err := f.dir.DisplayName(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "alice", name)
	})
}

func TestUserService_UserNameAvailable(t *testing.T) {
	t.Parallel()
	f := newFixture(user("u1", "alice"))
	ctx := context.Background()

	ok, err := f.userSvc.UserNameAvailable(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.userSvc.UserNameAvailable(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.userSvc.UserNameAvailable(ctx, "")
	assertCode(t, err, models.CodeValidation)
}

func TestUserService_Profile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(user("u1", "alice"))
	_, err := f.postSvc.CreatePost(ctx, CreatePostInput{SubjectID: "u1", Body: "mine"})
	require.NoError(t, err)

	profile, err := f.userSvc.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.User.UserName)
	require.Len(t, profile.Posts, 1)

	_, err = f.userSvc.Profile(ctx, "")
	assertCode(t, err, models.CodeForbidden)
	_, err = f.userSvc.Profile(ctx, "ghost")
	assertCode(t, err, models.CodeNotFound)
}

func TestUserDirectory_ServesFromCache(t *testing.T) {
	t.Parallel()
	c, mr := setupMiniredis(t)
	users := testutil.NewUserStore(user("u1", "alice"))
	dir := NewUserDirectory(users, c)
	ctx := context.Background()

	name, err := dir.DisplayName(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", name)
	assert.True(t, mr.Exists(cache.UserKey("u1")))

	// A cached record is served even after the directory loses it.
	dir.users = emptyUsers{}
	name, err = dir.DisplayName(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", name)
}

func TestUserDirectory_CacheIsPerDirectory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cacheA, _ := setupMiniredis(t)
	dirA := NewUserDirectory(testutil.NewUserStore(user("u1", "alice")), cacheA)
	name, err := dirA.DisplayName(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	// Each directory reads only its own repository and cache.
	cacheB, _ := setupMiniredis(t)
	dirB := NewUserDirectory(testutil.NewUserStore(user("u1", "bob")), cacheB)
	name, err = dirB.DisplayName(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "bob", name)

	uncached := NewUserDirectory(testutil.NewUserStore(user("u1", "carol")), nil)
	name, err = uncached.DisplayName(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "carol", name)
}
