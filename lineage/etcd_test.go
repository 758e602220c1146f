package lineage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEtcdStore_NilClient(t *testing.T) {
	_, err := NewEtcdStore(nil, "lineage")
	assert.Error(t, err)
}

func TestEtcdStore_Keys(t *testing.T) {
	store := &EtcdStore{prefix: "nhi/lineage"}

	assert.Equal(t, "nhi/lineage/nodes/id-1", store.nodeKey("id-1"))
	assert.Equal(t, "nhi/lineage/children/parent-1/id-1", store.childKey("parent-1", "id-1"))
	assert.Equal(t, "nhi/lineage/children/parent-1/", store.childrenPrefix("parent-1"))
}
