package lineage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdStore implements Store on an etcd cluster. Nodes live under
// <prefix>/nodes/<identityID>; a per-parent key range under
// <prefix>/children/<parentID>/<childID> supports prefix scans for
// ListByParent. Put uses a transaction guarded on the node key's create
// revision, so the single-node invariant holds across concurrent writers
// and across processes.
type EtcdStore struct {
	client *clientv3.Client
	prefix string
}

// NewEtcdStore creates an etcd-backed lineage store on an existing client.
// The prefix namespaces all keys; it defaults to "lineage" when empty.
func NewEtcdStore(client *clientv3.Client, prefix string) (*EtcdStore, error) {
	if client == nil {
		return nil, fmt.Errorf("etcd client is required")
	}
	if prefix == "" {
		prefix = "lineage"
	}
	return &EtcdStore{client: client, prefix: strings.TrimSuffix(prefix, "/")}, nil
}

// Client returns the underlying etcd client, e.g. for health checks.
func (s *EtcdStore) Client() *clientv3.Client {
	return s.client
}

func (s *EtcdStore) nodeKey(identityID string) string {
	return fmt.Sprintf("%s/nodes/%s", s.prefix, identityID)
}

func (s *EtcdStore) childKey(parentIdentityID, identityID string) string {
	return fmt.Sprintf("%s/children/%s/%s", s.prefix, parentIdentityID, identityID)
}

func (s *EtcdStore) childrenPrefix(parentIdentityID string) string {
	return fmt.Sprintf("%s/children/%s/", s.prefix, parentIdentityID)
}

// Get returns the node recorded for the identity.
func (s *EtcdStore) Get(ctx context.Context, identityID string) (*Node, error) {
	resp, err := s.client.Get(ctx, s.nodeKey(identityID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, ErrNodeNotFound
	}

	var node Node
	if err := json.Unmarshal(resp.Kvs[0].Value, &node); err != nil {
		return nil, fmt.Errorf("%w: unmarshal node for %s: %v", ErrStorageFailed, identityID, err)
	}
	return &node, nil
}

// Put records a node. The write is transactional: it succeeds only when no
// node key exists yet for the identity.
func (s *EtcdStore) Put(ctx context.Context, node *Node) error {
	if err := node.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("%w: marshal node for %s: %v", ErrStorageFailed, node.IdentityID, err)
	}

	key := s.nodeKey(node.IdentityID)
	ops := []clientv3.Op{clientv3.OpPut(key, string(data))}
	if node.ParentIdentityID != "" {
		ops = append(ops, clientv3.OpPut(s.childKey(node.ParentIdentityID, node.IdentityID), node.IdentityID))
	}

	resp, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(ops...).
		Commit()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}
	if !resp.Succeeded {
		return ErrNodeExists
	}
	return nil
}

// ListByParent returns all nodes derived from the given identity.
// Dangling index entries are skipped.
func (s *EtcdStore) ListByParent(ctx context.Context, parentIdentityID string) ([]*Node, error) {
	resp, err := s.client.Get(ctx, s.childrenPrefix(parentIdentityID), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}

	nodes := make([]*Node, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		node, err := s.Get(ctx, string(kv.Value))
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
