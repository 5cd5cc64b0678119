package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	Name   string `json:"name"`
	Points int64  `json:"points"`
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestDisabledCacheNeverHits(t *testing.T) {
	ctx := context.Background()
	for _, lb := range []*Leaderboard{nil, NewLeaderboard(nil, 0)} {
		require.NoError(t, lb.Set(ctx, "all:10", []int{1, 2, 3}))

		var got []int
		found, err := lb.Get(ctx, "all:10", &got)
		require.NoError(t, err)
		assert.False(t, found)
		assert.NoError(t, lb.Invalidate(ctx))
	}
}

func TestLeaderboardRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	lb := NewLeaderboard(client, time.Minute)

	var got []row
	found, err := lb.Get(ctx, "all:10", &got)
	require.NoError(t, err)
	assert.False(t, found)

	want := []row{{Name: "amina", Points: 80}, {Name: "brian", Points: 25}}
	require.NoError(t, lb.Set(ctx, "all:10", want))

	found, err = lb.Get(ctx, "all:10", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, got)

	assert.Equal(t, time.Minute, mr.TTL(leaderboardPrefix+"all:10"))
	members, err := mr.SMembers(leaderboardIndex)
	require.NoError(t, err)
	assert.Equal(t, []string{leaderboardPrefix + "all:10"}, members)
}

func TestLeaderboardExpires(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	lb := NewLeaderboard(client, time.Minute)

	require.NoError(t, lb.Set(ctx, "week:10", []row{{Name: "amina", Points: 5}}))
	mr.FastForward(61 * time.Second)

	var got []row
	found, err := lb.Get(ctx, "week:10", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidateClearsEveryIndexedKey(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	lb := NewLeaderboard(client, time.Minute)

	for _, key := range []string{"all:10", "week:10", "month:5"} {
		require.NoError(t, lb.Set(ctx, key, []row{{Name: "amina", Points: 5}}))
	}
	require.NoError(t, mr.Set("kenhavate:other", "keep"))

	require.NoError(t, lb.Invalidate(ctx))

	for _, key := range []string{"all:10", "week:10", "month:5"} {
		assert.False(t, mr.Exists(leaderboardPrefix+key), key)
	}
	assert.False(t, mr.Exists(leaderboardIndex))
	assert.True(t, mr.Exists("kenhavate:other"))

	require.NoError(t, lb.Invalidate(ctx))
}
