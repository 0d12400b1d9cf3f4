package ops

import (
	"context"

	"golang.org/x/crypto/ssh"

	"github.com/damianoneill/ncclient/netconf/client"
)

// NewSession connects to the target using the ssh configuration, and establishes
// a netconf session with default configuration.
func NewSession(ctx context.Context, sshcfg *ssh.ClientConfig, target string) (OpSession, error) {
	return NewSessionWithConfig(ctx, sshcfg, target, client.DefaultConfig)
}

// NewSessionWithConfig connects to the target using the ssh configuration, and establishes
// a netconf session with the client configuration.
func NewSessionWithConfig(ctx context.Context, sshcfg *ssh.ClientConfig, target string, cfg *client.Config) (OpSession, error) {
	cs, err := client.NewRPCSessionWithConfig(ctx, sshcfg, target, cfg)
	if err != nil {
		return nil, err
	}
	return Wrap(cs), nil
}

// Open establishes a netconf session with target over its transport.
func Open(ctx context.Context, target *client.Target, cfg *client.Config) (OpSession, error) {
	cs, err := client.Open(ctx, target, cfg)
	if err != nil {
		return nil, err
	}
	return Wrap(cs), nil
}
