package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedUser struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

func newMiniredisCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb), mr
}

func TestAside_PopulatesAndServesFromCache(t *testing.T) {
	t.Parallel()
	c, mr := newMiniredisCache(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *cachedUser) func() error {
		return func() error {
			calls++
			*dest = cachedUser{UserID: "u1", UserName: "Ann"}
			return nil
		}
	}

	var first cachedUser
	require.NoError(t, c.Aside(ctx, UserKey("u1"), &first, UserTTL, fetch(&first)))
	assert.Equal(t, "Ann", first.UserName)
	assert.True(t, mr.Exists("user:u1"))

	var second cachedUser
	require.NoError(t, c.Aside(ctx, UserKey("u1"), &second, UserTTL, fetch(&second)))
	assert.Equal(t, "Ann", second.UserName)
	assert.Equal(t, 1, calls)

	mr.FastForward(UserTTL + time.Second)
	var third cachedUser
	require.NoError(t, c.Aside(ctx, UserKey("u1"), &third, UserTTL, fetch(&third)))
	assert.Equal(t, 2, calls)
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	t.Parallel()
	c, mr := newMiniredisCache(t)

	boom := errors.New("boom")
	var dest cachedUser
	err := c.Aside(context.Background(), UserKey("u2"), &dest, UserTTL, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("user:u2"))
}

func TestAside_Disabled(t *testing.T) {
	t.Parallel()
	for name, c := range map[string]*Cache{"nil cache": nil, "nil client": New(nil)} {
		t.Run(name, func(t *testing.T) {
			calls := 0
			var dest cachedUser
			for i := 0; i < 2; i++ {
				err := c.Aside(context.Background(), UserKey("u3"), &dest, UserTTL, func() error {
					calls++
					dest = cachedUser{UserID: "u3"}
					return nil
				})
				require.NoError(t, err)
			}
			assert.Equal(t, "u3", dest.UserID)
			assert.Equal(t, 2, calls)

			found, err := c.GetJSON(context.Background(), "anything", &dest)
			assert.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestCaches_DoNotShareState(t *testing.T) {
	t.Parallel()
	a, _ := newMiniredisCache(t)
	b, _ := newMiniredisCache(t)
	ctx := context.Background()

	require.NoError(t, a.SetJSON(ctx, UserKey("u1"), cachedUser{UserID: "u1", UserName: "alice"}, UserTTL))

	var got cachedUser
	found, err := b.GetJSON(ctx, UserKey("u1"), &got)
	require.NoError(t, err)
	assert.False(t, found)
}
