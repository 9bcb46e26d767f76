package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stemtutor/tutorflow/types"
)

// RedisStore is a Redis-backed checkpoint store. Suitable for distributed
// deployments where any node may resume a session another node suspended.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	PoolSize  int
	KeyPrefix string
	// TTL bounds how long a suspended session stays resumable.
	// Zero means checkpoints never expire.
	TTL time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreWithClient(client, opts.KeyPrefix, opts.TTL), nil
}

// NewRedisStoreWithClient wraps an existing client. Tests use this with
// miniredis.
func NewRedisStoreWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "tutorflow:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix + "checkpoint:",
		ttl:       ttl,
	}
}

func (s *RedisStore) key(sessionID string) string {
	return s.keyPrefix + sessionID
}

// Client exposes the underlying connection so other components can share
// it, e.g. the rate limiter's bucket store.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Save persists the checkpoint, refreshing the TTL.
func (s *RedisStore) Save(ctx context.Context, cp *Checkpoint) error {
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now()
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return types.NewError(types.ErrInternalError, "failed to marshal checkpoint").WithCause(err)
	}

	if err := s.client.Set(ctx, s.key(cp.SessionID), data, s.ttl).Err(); err != nil {
		return types.NewError(types.ErrInternalError, "failed to save checkpoint").WithCause(err)
	}
	return nil
}

// Load retrieves the latest checkpoint for a session.
func (s *RedisStore) Load(ctx context.Context, sessionID string) (*Checkpoint, error) {
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound(sessionID)
	}
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to load checkpoint").WithCause(err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to unmarshal checkpoint").WithCause(err)
	}
	return &cp, nil
}

// Delete removes a session's checkpoint.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return types.NewError(types.ErrInternalError, "failed to delete checkpoint").WithCause(err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
