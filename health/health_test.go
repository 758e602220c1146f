package health

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhiguard/engine/lineage"
)

func TestStatusConstructors(t *testing.T) {
	healthy := NewHealthy("all good")
	assert.True(t, healthy.Healthy)
	assert.Equal(t, "all good", healthy.Message)
	assert.False(t, healthy.CheckedAt.IsZero())

	unhealthy := NewUnhealthy("down", map[string]any{"error": "timeout"})
	assert.False(t, unhealthy.Healthy)
	assert.Equal(t, "timeout", unhealthy.Details["error"])
}

func TestRedisCheck(t *testing.T) {
	t.Run("nil client", func(t *testing.T) {
		status := RedisCheck(context.Background(), nil)
		assert.False(t, status.Healthy)
	})

	t.Run("reachable", func(t *testing.T) {
		srv := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
		defer client.Close()

		status := RedisCheck(context.Background(), client)
		assert.True(t, status.Healthy)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
		defer client.Close()
		srv.Close()

		status := RedisCheck(context.Background(), client)
		assert.False(t, status.Healthy)
		assert.Contains(t, status.Details, "error")
	})
}

func TestEtcdCheck_NilClient(t *testing.T) {
	status := EtcdCheck(context.Background(), nil)
	assert.False(t, status.Healthy)
	assert.Equal(t, "etcd client is nil", status.Message)
}

func TestStoreCheck(t *testing.T) {
	t.Run("nil store", func(t *testing.T) {
		status := StoreCheck(context.Background(), nil)
		assert.False(t, status.Healthy)
	})

	t.Run("empty memory store answers not found", func(t *testing.T) {
		status := StoreCheck(context.Background(), lineage.NewMemoryStore())
		assert.True(t, status.Healthy)
	})

	t.Run("populated store stays healthy", func(t *testing.T) {
		store := lineage.NewMemoryStore()
		node := lineage.NewNode("svc", lineage.RelationshipCreatedFrom)
		require.NoError(t, store.Put(context.Background(), node))

		status := StoreCheck(context.Background(), store)
		assert.True(t, status.Healthy)
	})

	t.Run("failing backend reported", func(t *testing.T) {
		status := StoreCheck(context.Background(), failingStore{})
		assert.False(t, status.Healthy)
		assert.Contains(t, status.Details, "error")
	})
}

type failingStore struct{}

func (failingStore) Get(ctx context.Context, identityID string) (*lineage.Node, error) {
	return nil, lineage.ErrStorageFailed
}

func (failingStore) Put(ctx context.Context, node *lineage.Node) error {
	return lineage.ErrStorageFailed
}

func (failingStore) ListByParent(ctx context.Context, parentIdentityID string) ([]*lineage.Node, error) {
	return nil, lineage.ErrStorageFailed
}
