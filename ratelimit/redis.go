package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stemtutor/tutorflow/types"
)

// RedisStore persists buckets in Redis, one hash per identity with tokens
// and last-observation fields. An idle identity's hash expires and the
// bucket refills implicitly.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "tutorflow:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix + "rl:",
	}
}

func (s *RedisStore) key(identity string) string {
	return s.keyPrefix + identity
}

// GetBucket implements Store.
func (s *RedisStore) GetBucket(ctx context.Context, identity string) (*Bucket, error) {
	fields, err := s.client.HGetAll(ctx, s.key(identity)).Result()
	if err != nil {
		return nil, types.NewError(types.ErrRateLimiterUnavailable, "failed to read bucket").WithCause(err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	tokens, err := strconv.ParseFloat(fields["tokens"], 64)
	if err != nil {
		return nil, types.NewError(types.ErrRateLimiterUnavailable, "corrupt bucket tokens field").WithCause(err)
	}
	lastNanos, err := strconv.ParseInt(fields["last"], 10, 64)
	if err != nil {
		return nil, types.NewError(types.ErrRateLimiterUnavailable, "corrupt bucket last field").WithCause(err)
	}

	return &Bucket{
		Tokens: tokens,
		Last:   time.Unix(0, lastNanos),
	}, nil
}

// SetBucket implements Store.
func (s *RedisStore) SetBucket(ctx context.Context, identity string, b *Bucket, ttl time.Duration) error {
	key := s.key(identity)

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key,
		"tokens", strconv.FormatFloat(b.Tokens, 'f', -1, 64),
		"last", strconv.FormatInt(b.Last.UnixNano(), 10),
	)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return types.NewError(types.ErrRateLimiterUnavailable, "failed to write bucket").WithCause(err)
	}
	return nil
}

// DeleteBucket implements Store.
func (s *RedisStore) DeleteBucket(ctx context.Context, identity string) error {
	if err := s.client.Del(ctx, s.key(identity)).Err(); err != nil {
		return types.NewError(types.ErrRateLimiterUnavailable, "failed to delete bucket").WithCause(err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
