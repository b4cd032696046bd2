package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps pages in redis with a TTL, keyed page:<subdomain>:<hash>.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(subdomain, page string) string {
	return "page:" + subdomain + ":" + generateHash(subdomain+"/"+page)
}

func (r *RedisStore) Get(ctx context.Context, subdomain, page string) (string, bool) {
	html, err := r.client.Get(ctx, redisKey(subdomain, page)).Result()
	if err != nil {
		return "", false
	}
	return html, true
}

func (r *RedisStore) Set(ctx context.Context, subdomain, page, html string) error {
	return r.client.Set(ctx, redisKey(subdomain, page), html, r.ttl).Err()
}

func (r *RedisStore) Clear(ctx context.Context, subdomain string) error {
	iter := r.client.Scan(ctx, 0, "page:"+subdomain+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}
