package lineage

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis connection for a RedisStore.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// TLS configuration for secure connections
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations
	WriteTimeout time.Duration

	// KeyPrefix namespaces all keys written by the store. Defaults to "lineage".
	KeyPrefix string
}

// RedisStore implements Store using go-redis/v9. Each node is stored as a
// JSON string under a per-identity key written with SETNX, which enforces
// the single-node invariant atomically on the server. A per-parent set
// indexes children for ListByParent.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed lineage store with the given options
// and verifies connectivity.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 5 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "lineage"
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, prefix: opts.KeyPrefix}, nil
}

// Client returns the underlying Redis client, e.g. for health checks.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) nodeKey(identityID string) string {
	return fmt.Sprintf("%s:node:%s", s.prefix, identityID)
}

func (s *RedisStore) childrenKey(parentIdentityID string) string {
	return fmt.Sprintf("%s:children:%s", s.prefix, parentIdentityID)
}

// Get returns the node recorded for the identity.
func (s *RedisStore) Get(ctx context.Context, identityID string) (*Node, error) {
	data, err := s.client.Get(ctx, s.nodeKey(identityID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNodeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}

	var node Node
	if err := json.Unmarshal([]byte(data), &node); err != nil {
		return nil, fmt.Errorf("%w: unmarshal node for %s: %v", ErrStorageFailed, identityID, err)
	}
	return &node, nil
}

// Put records a node. The node key is written with SETNX so a second Put
// for the same identity fails with ErrNodeExists even under concurrency.
func (s *RedisStore) Put(ctx context.Context, node *Node) error {
	if err := node.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("%w: marshal node for %s: %v", ErrStorageFailed, node.IdentityID, err)
	}

	set, err := s.client.SetNX(ctx, s.nodeKey(node.IdentityID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}
	if !set {
		return ErrNodeExists
	}

	if node.ParentIdentityID != "" {
		if err := s.client.SAdd(ctx, s.childrenKey(node.ParentIdentityID), node.IdentityID).Err(); err != nil {
			return fmt.Errorf("%w: index child %s: %v", ErrStorageFailed, node.IdentityID, err)
		}
	}
	return nil
}

// ListByParent returns all nodes derived from the given identity.
// Index entries whose node is missing are skipped.
func (s *RedisStore) ListByParent(ctx context.Context, parentIdentityID string) ([]*Node, error) {
	ids, err := s.client.SMembers(ctx, s.childrenKey(parentIdentityID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}

	nodes := make([]*Node, 0, len(ids))
	for _, id := range ids {
		node, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNodeNotFound) {
				continue
			}
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}
