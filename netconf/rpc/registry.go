package rpc

import (
	"sync"

	"github.com/damianoneill/ncclient/netconf/common"
)

// LockOp describes the effect a successful operation has on the datastore
// locks held by a session.
type LockOp int

const (
	// LockNone operations do not change the held locks.
	LockNone LockOp = iota
	// LockAcquire operations add their target datastore to the held locks.
	LockAcquire
	// LockRelease operations remove their target datastore from the held locks.
	LockRelease
)

// Behavior describes how a session treats an operation.
type Behavior struct {
	// Kind is the kind of error raised when the operation's reply carries errors.
	Kind common.ErrorKind
	// LockOp is the operation's effect on the held locks.
	LockOp LockOp
}

// StandardBehaviors covers the RFC 6241 operations with special handling.
var StandardBehaviors = map[string]Behavior{
	"lock":            {Kind: common.KindLock, LockOp: LockAcquire},
	"unlock":          {Kind: common.KindRPC, LockOp: LockRelease},
	"edit-config":     {Kind: common.KindEdit},
	"validate":        {Kind: common.KindValidate},
	"commit":          {Kind: common.KindCommit},
	"discard-changes": {Kind: common.KindDiscard},
}

// JunosBehaviors maps the Junos specific configuration operations.
var JunosBehaviors = map[string]Behavior{
	"lock-configuration":   {Kind: common.KindLock},
	"load-configuration":   {Kind: common.KindEdit},
	"commit-configuration": {Kind: common.KindCommit},
}

// Registry maps operation names to behaviors. Names without an entry get the
// generic behavior.
type Registry struct {
	mu        sync.RWMutex
	behaviors map[string]Behavior
}

// NewRegistry delivers a registry holding the entries of tables, later tables
// taking precedence.
func NewRegistry(tables ...map[string]Behavior) *Registry {
	r := &Registry{behaviors: map[string]Behavior{}}
	for _, t := range tables {
		for name, b := range t {
			r.Register(name, b)
		}
	}
	return r
}

// DefaultRegistry delivers a registry covering the standard operations.
func DefaultRegistry() *Registry {
	return NewRegistry(StandardBehaviors)
}

// Register sets the behavior of the named operation.
func (r *Registry) Register(name string, b Behavior) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.behaviors[ElementName(name)] = b
}

// Lookup delivers the behavior of the named operation.
func (r *Registry) Lookup(name string) Behavior {
	if r == nil {
		return Behavior{Kind: common.KindRPC}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if b, ok := r.behaviors[ElementName(name)]; ok {
		return b
	}
	return Behavior{Kind: common.KindRPC}
}
