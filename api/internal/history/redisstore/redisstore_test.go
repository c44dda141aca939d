package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kisan-mitra/api/internal/diagnose"
	"kisan-mitra/api/internal/history"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestStoreThroughRedis(t *testing.T) {
	mr, client := setupTestRedis(t)
	s := history.New(New(client, 0))
	ctx := context.Background()

	for _, n := range []string{"A", "B", "C", "D", "E", "F"} {
		_, err := s.Record(ctx, "web-1", diagnose.Result{IssueName: n}, "img")
		require.NoError(t, err)
	}
	list, err := s.List(ctx, "web-1")
	require.NoError(t, err)
	require.Len(t, list, history.DefaultLimit)
	assert.Equal(t, "F", list[0].IssueName)
	assert.Equal(t, "B", list[4].IssueName)
	assert.True(t, mr.Exists("diagnosisHistory:web-1"))

	require.NoError(t, s.Clear(ctx, "web-1"))
	assert.False(t, mr.Exists("diagnosisHistory:web-1"))
}

func TestLoadMissingAndCorrupt(t *testing.T) {
	mr, client := setupTestRedis(t)
	repo := New(client, 0)

	got, err := repo.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, mr.Set("bad", "{oops"))
	got, err = repo.Load(context.Background(), "bad")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSaveAppliesTTL(t *testing.T) {
	mr, client := setupTestRedis(t)
	repo := New(client, time.Hour)

	require.NoError(t, repo.Save(context.Background(), "k", []history.Entry{{ID: 1, IssueName: "Rust"}}))
	assert.Equal(t, time.Hour, mr.TTL("k"))

	v, err := mr.Get("k")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1,"issueName":"Rust","date":"","image":""}]`, v)
}

func TestDialFailsOnClosedServer(t *testing.T) {
	mr, _ := setupTestRedis(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Dial(context.Background(), addr, "", 0)
	assert.Error(t, err)
}
