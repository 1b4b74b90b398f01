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

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

type item struct {
	Name string `json:"name"`
}

func TestCacheHelperGetSet(t *testing.T) {
	mr, client := setupRedis(t)
	h := NewCacheHelper(client, "test:")
	ctx := context.Background()

	require.NoError(t, h.Set(ctx, "a", item{Name: "go"}, time.Minute))
	assert.True(t, mr.Exists("test:a"))

	var got item
	require.NoError(t, h.Get(ctx, "a", &got))
	assert.Equal(t, "go", got.Name)

	err := h.Get(ctx, "missing", &got)
	assert.ErrorIs(t, err, ErrCacheNotFound)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, h.Get(ctx, "a", &got), ErrCacheNotFound)
}

func TestCacheHelperWithoutClient(t *testing.T) {
	h := NewCacheHelper(nil, "x:")
	ctx := context.Background()

	assert.ErrorIs(t, h.Set(ctx, "a", 1, 0), ErrCacheNotAvailable)
	assert.ErrorIs(t, h.Get(ctx, "a", new(int)), ErrCacheNotAvailable)
	assert.NoError(t, h.Delete(ctx, "a"))
	_, err := h.IsMember(ctx, "a", "b")
	assert.ErrorIs(t, err, ErrCacheNotAvailable)
}

func TestCacheHelperSets(t *testing.T) {
	mr, client := setupRedis(t)
	h := NewCacheHelper(client, "unlocked:")
	ctx := context.Background()

	require.NoError(t, h.AddMember(ctx, "s1", time.Hour, "c1", "c2"))
	ok, err := h.IsMember(ctx, "s1", "c1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.IsMember(ctx, "s1", "c3")
	require.NoError(t, err)
	assert.False(t, ok)

	members, err := mr.Members("unlocked:s1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1", "c2"}, members)
	assert.Greater(t, mr.TTL("unlocked:s1"), time.Duration(0))
}

func TestCacheOrExecute(t *testing.T) {
	_, client := setupRedis(t)
	h := NewCacheHelper(client, "catalog:")
	ctx := context.Background()

	calls := 0
	fetch := func(context.Context) (interface{}, error) {
		calls++
		return []item{{Name: "one"}}, nil
	}

	var got []item
	require.NoError(t, h.CacheOrExecute(ctx, "list:all", &got, time.Minute, fetch))
	require.NoError(t, h.CacheOrExecute(ctx, "list:all", &got, time.Minute, fetch))
	assert.Equal(t, 1, calls)
	assert.Equal(t, "one", got[0].Name)

	boom := errors.New("boom")
	err := h.CacheOrExecute(ctx, "list:other", &got, time.Minute, func(context.Context) (interface{}, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestInvalidateCourseCache(t *testing.T) {
	mr, client := setupRedis(t)
	cm := NewCacheManager(client)
	ctx := context.Background()

	require.NoError(t, cm.Catalog.Set(ctx, "course:c1", item{Name: "c1"}, time.Minute))
	require.NoError(t, cm.Catalog.Set(ctx, "list:all", []item{}, time.Minute))
	require.NoError(t, cm.Catalog.Set(ctx, "faculty:f1", []item{}, time.Minute))
	require.NoError(t, cm.Session.Set(ctx, "s1", item{}, time.Minute))

	InvalidateCourseCache(ctx, cm, "c1")

	assert.False(t, mr.Exists("catalog:course:c1"))
	assert.False(t, mr.Exists("catalog:list:all"))
	assert.False(t, mr.Exists("catalog:faculty:f1"))
	assert.True(t, mr.Exists("session:s1"))
	assert.NoError(t, cm.HealthCheck(ctx))
}
