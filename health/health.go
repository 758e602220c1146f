// Package health provides readiness checks for the engine's storage
// backends, so an embedding service can surface backend state before
// routing lineage writes at it.
package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/nhiguard/engine/lineage"
)

// Status is the result of a single health check.
type Status struct {
	// Healthy indicates whether the checked backend is usable.
	Healthy bool `json:"healthy"`

	// Message describes the check outcome.
	Message string `json:"message"`

	// Details carries check-specific context.
	Details map[string]any `json:"details,omitempty"`

	// CheckedAt is when the check ran.
	CheckedAt time.Time `json:"checked_at"`
}

// NewHealthy creates a healthy status with the given message.
func NewHealthy(message string) Status {
	return Status{Healthy: true, Message: message, CheckedAt: time.Now()}
}

// NewUnhealthy creates an unhealthy status with the given message and details.
func NewUnhealthy(message string, details map[string]any) Status {
	return Status{Healthy: false, Message: message, Details: details, CheckedAt: time.Now()}
}

// RedisCheck verifies Redis connectivity with a PING.
func RedisCheck(ctx context.Context, client *redis.Client) Status {
	if client == nil {
		return NewUnhealthy("redis client is nil", nil)
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return NewUnhealthy("redis ping failed", map[string]any{"error": err.Error()})
	}
	return NewHealthy("redis reachable")
}

// EtcdCheck verifies etcd connectivity by querying the status of the first
// configured endpoint.
func EtcdCheck(ctx context.Context, client *clientv3.Client) Status {
	if client == nil {
		return NewUnhealthy("etcd client is nil", nil)
	}
	endpoints := client.Endpoints()
	if len(endpoints) == 0 {
		return NewUnhealthy("etcd client has no endpoints", nil)
	}
	if _, err := client.Status(ctx, endpoints[0]); err != nil {
		return NewUnhealthy("etcd status failed", map[string]any{
			"endpoint": endpoints[0],
			"error":    err.Error(),
		})
	}
	return NewHealthy(fmt.Sprintf("etcd reachable at %s", endpoints[0]))
}

// StoreCheck verifies a lineage store end to end by looking up a sentinel
// identity that can never exist. A healthy store answers with
// lineage.ErrNodeNotFound; anything else indicates a backend fault.
func StoreCheck(ctx context.Context, store lineage.Store) Status {
	if store == nil {
		return NewUnhealthy("lineage store is nil", nil)
	}
	_, err := store.Get(ctx, "health-check-sentinel")
	if err == nil || errors.Is(err, lineage.ErrNodeNotFound) {
		return NewHealthy("lineage store responding")
	}
	return NewUnhealthy("lineage store lookup failed", map[string]any{"error": err.Error()})
}
