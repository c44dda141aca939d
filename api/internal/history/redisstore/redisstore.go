// Package redisstore keeps diagnosis history lists in Redis, one string key
// per client.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"kisan-mitra/api/internal/history"
	"kisan-mitra/api/internal/logger"
)

type Repo struct {
	client *redis.Client
	ttl    time.Duration
}

// New wraps a client. ttl of zero keeps lists forever.
func New(client *redis.Client, ttl time.Duration) *Repo {
	return &Repo{client: client, ttl: ttl}
}

// Dial creates a client and pings it.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	logger.Infof("redis connected: %s", addr)
	return client, nil
}

func (r *Repo) Load(ctx context.Context, key string) ([]history.Entry, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []history.Entry
	if err := json.Unmarshal(b, &out); err != nil {
		logger.Warnf("history %s: corrupt value, reading as empty: %v", key, err)
		return nil, nil
	}
	return out, nil
}

func (r *Repo) Save(ctx context.Context, key string, entries []history.Entry) error {
	if entries == nil {
		entries = []history.Entry{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, b, r.ttl).Err()
}

func (r *Repo) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
