// Package lineage records identity provenance facts and answers graph
// queries over them.
//
// Each identity has at most one lineage node describing how it was derived
// from its parent (created, cloned, rotated, delegated, inherited, split, or
// merged). Nodes are append-only audit data: once recorded they are never
// edited or deleted. The traversal operations treat stored data as
// potentially corrupted and bound all walks with a visited set and a hard
// depth cap, so cyclic or dangling parent pointers degrade to partial
// results instead of hangs or crashes.
//
// Storage is abstracted behind the Store interface with in-memory, Redis,
// and etcd implementations.
package lineage
