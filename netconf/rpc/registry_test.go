package rpc

import (
	"testing"

	"github.com/damianoneill/ncclient/netconf/common"
	assert "github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, Behavior{Kind: common.KindLock, LockOp: LockAcquire}, r.Lookup("lock"))
	assert.Equal(t, Behavior{Kind: common.KindRPC, LockOp: LockRelease}, r.Lookup("unlock"))
	assert.Equal(t, common.KindEdit, r.Lookup("edit_config").Kind)
	assert.Equal(t, common.KindValidate, r.Lookup("validate").Kind)
	assert.Equal(t, common.KindCommit, r.Lookup("commit").Kind)
	assert.Equal(t, common.KindDiscard, r.Lookup("discard-changes").Kind)
	assert.Equal(t, Behavior{Kind: common.KindRPC}, r.Lookup("get-chassis-inventory"))
}

func TestVendorRegistry(t *testing.T) {
	r := NewRegistry(StandardBehaviors, JunosBehaviors)
	assert.Equal(t, common.KindCommit, r.Lookup("commit_configuration").Kind)
	assert.Equal(t, common.KindEdit, r.Lookup("load-configuration").Kind)

	r.Register("my_rpc", Behavior{Kind: common.KindValidate})
	assert.Equal(t, common.KindValidate, r.Lookup("my-rpc").Kind)
}

func TestNilRegistry(t *testing.T) {
	var r *Registry
	assert.Equal(t, common.KindRPC, r.Lookup("lock").Kind)
}
