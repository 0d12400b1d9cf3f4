package client

import (
	"time"

	"github.com/imdario/mergo"

	"github.com/damianoneill/ncclient/netconf/common"
	"github.com/damianoneill/ncclient/netconf/rpc"
)

// Defines structs describing netconf configuration.

// Config defines properties that configure netconf session behaviour.
type Config struct {
	// SetupTimeout bounds the wait for the server hello.
	SetupTimeout time.Duration
	// ReplyTimeout bounds the wait for each rpc-reply. When it expires the session is closed.
	ReplyTimeout time.Duration
	// CloseTimeout bounds the wait for the close-session reply.
	CloseTimeout time.Duration
	// DisableChunkedCodec stops the client advertising base:1.1, forcing end-of-message framing.
	DisableChunkedCodec bool
	// Capabilities lists capabilities advertised in addition to the base capabilities.
	Capabilities []string
	// LenientLocks forwards lock and unlock requests that the session knows to be redundant,
	// reporting a warning instead of failing locally.
	LenientLocks bool
	// ErrOnWarning makes rpc-errors with severity warning fail the operation.
	ErrOnWarning bool
	// MaxChunkSize limits the size of chunks written with chunked framing. Zero means unlimited.
	MaxChunkSize uint32
	// Registry maps operation names to their error kind and lock effect.
	Registry *rpc.Registry
}

// DefaultConfig holds the values used for any Config field left unset.
var DefaultConfig = &Config{
	SetupTimeout: 5 * time.Second,
	ReplyTimeout: 60 * time.Second,
	CloseTimeout: 5 * time.Second,
	Registry:     rpc.DefaultRegistry(),
}

// resolveConfig delivers a copy of cfg with defaults applied to unspecified values.
func resolveConfig(cfg *Config) *Config {
	resolved := Config{}
	if cfg != nil {
		resolved = *cfg
	}
	_ = mergo.Merge(&resolved, DefaultConfig)
	return &resolved
}

func (c *Config) clientCapabilities() []string {
	base := common.DefaultCapabilities
	if c.DisableChunkedCodec {
		base = common.NoChunkedCodecCapabilities
	}
	caps := append([]string{}, base...)
	return append(caps, c.Capabilities...)
}
