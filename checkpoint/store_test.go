package checkpoint

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemtutor/tutorflow/types"
)

func newRedisTestStore(t *testing.T) Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStoreWithClient(client, "test:", 0)
}

func newSQLiteTestStore(t *testing.T) Store {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func allStores(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  newRedisTestStore(t),
		"sqlite": newSQLiteTestStore(t),
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	for name, store := range allStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cp := &Checkpoint{
				SessionID: "sess-1",
				State:     json.RawMessage(`{"topic":"Math - Algebra","confidence":0.92}`),
				LastStep:  "classify",
				Status:    StatusRunning,
				Version:   1,
			}
			require.NoError(t, store.Save(ctx, cp))

			got, err := store.Load(ctx, "sess-1")
			require.NoError(t, err)
			assert.Equal(t, cp.SessionID, got.SessionID)
			assert.JSONEq(t, string(cp.State), string(got.State))
			assert.Equal(t, "classify", got.LastStep)
			assert.Equal(t, StatusRunning, got.Status)
			assert.Equal(t, 1, got.Version)
			assert.False(t, got.UpdatedAt.IsZero())
		})
	}
}

func TestStoreSaveOverwrites(t *testing.T) {
	for name, store := range allStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := &Checkpoint{
				SessionID: "sess-1",
				State:     json.RawMessage(`{"v":1}`),
				LastStep:  "classify",
				Status:    StatusHaltedDisambiguate,
				Version:   1,
			}
			require.NoError(t, store.Save(ctx, first))

			second := &Checkpoint{
				SessionID: "sess-1",
				State:     json.RawMessage(`{"v":2}`),
				LastStep:  "assemble",
				Status:    StatusCompleted,
				Version:   2,
			}
			require.NoError(t, store.Save(ctx, second))

			got, err := store.Load(ctx, "sess-1")
			require.NoError(t, err)
			assert.JSONEq(t, `{"v":2}`, string(got.State))
			assert.Equal(t, StatusCompleted, got.Status)
			assert.Equal(t, 2, got.Version)
		})
	}
}

func TestStoreLoadUnknownSession(t *testing.T) {
	for name, store := range allStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Load(context.Background(), "nope")
			require.Error(t, err)
			assert.True(t, types.HasCode(err, types.ErrSessionNotFound))
		})
	}
}

func TestStoreDelete(t *testing.T) {
	for name, store := range allStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Save(ctx, &Checkpoint{
				SessionID: "sess-1",
				State:     json.RawMessage(`{}`),
				Status:    StatusRunning,
			}))

			require.NoError(t, store.Delete(ctx, "sess-1"))

			_, err := store.Load(ctx, "sess-1")
			assert.True(t, types.HasCode(err, types.ErrSessionNotFound))

			// Deleting an absent session is not an error.
			assert.NoError(t, store.Delete(ctx, "sess-1"))
		})
	}
}

func TestRedisStoreTTLExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStoreWithClient(client, "test:", time.Minute)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, &Checkpoint{
		SessionID: "sess-ttl",
		State:     json.RawMessage(`{}`),
		Status:    StatusHaltedClarify,
	}))

	mr.FastForward(2 * time.Minute)

	_, err := store.Load(ctx, "sess-ttl")
	assert.True(t, types.HasCode(err, types.ErrSessionNotFound))
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusRunning.IsTerminal())

	assert.True(t, StatusHaltedClarify.IsHalted())
	assert.True(t, StatusHaltedDisambiguate.IsHalted())
	assert.False(t, StatusCompleted.IsHalted())
}
