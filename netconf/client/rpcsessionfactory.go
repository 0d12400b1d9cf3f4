package client

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/damianoneill/ncclient/netconf/common"
)

// Defines factory methods for instantiating netconf rpc sessions.

// TransportKind identifies the transport used to reach a device.
type TransportKind string

// Supported transports.
const (
	TransportSSH    TransportKind = "ssh"
	TransportTelnet TransportKind = "telnet"
	TransportSerial TransportKind = "serial"
)

// Default ports for the network transports.
const (
	DefaultSSHPort    = 830
	DefaultTelnetPort = 23
)

// Target describes how to reach and authenticate to a device.
type Target struct {
	Kind     TransportKind `yaml:"transport" toml:"transport"`
	Host     string        `yaml:"host" toml:"host"`
	Port     int           `yaml:"port" toml:"port"`
	Username string        `yaml:"username" toml:"username"`
	Password string        `yaml:"password" toml:"password"`
	// KeyFile is a PEM private key used for SSH public key authentication; "~" is expanded.
	KeyFile string `yaml:"key-file" toml:"key-file"`
	// KnownHostsFile enables SSH host key verification against an OpenSSH known_hosts file.
	KnownHostsFile string `yaml:"known-hosts" toml:"known-hosts"`
	// Device is the serial port path.
	Device string `yaml:"device" toml:"device"`
	// Serial line settings, 9600 8N1 when unset.
	Baud     int    `yaml:"baud" toml:"baud"`
	DataBits int    `yaml:"data-bits" toml:"data-bits"`
	Parity   string `yaml:"parity" toml:"parity"`
	StopBits string `yaml:"stop-bits" toml:"stop-bits"`
	// Command starts NETCONF on Telnet and serial consoles after login.
	Command string `yaml:"command" toml:"command"`
	// Timeout bounds connection establishment.
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`

	// HostKeyCallback overrides KnownHostsFile.
	HostKeyCallback ssh.HostKeyCallback `yaml:"-" toml:"-"`
}

// Address delivers host:port for network transports and the device path for serial.
func (t *Target) Address() string {
	if t.Kind == TransportSerial {
		return t.Device
	}
	port := t.Port
	if port == 0 {
		port = DefaultSSHPort
		if t.Kind == TransportTelnet {
			port = DefaultTelnetPort
		}
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

// SSHConfig builds the SSH client configuration for the target, using password
// and/or public key authentication.
func (t *Target) SSHConfig() (*ssh.ClientConfig, error) {
	cfg := &ssh.ClientConfig{User: t.Username, Timeout: t.Timeout}

	if t.KeyFile != "" {
		path, err := homedir.Expand(t.KeyFile)
		if err != nil {
			return nil, errors.Wrap(err, "invalid key file path")
		}
		pem, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read key file")
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse key file %s", path)
		}
		cfg.Auth = append(cfg.Auth, ssh.PublicKeys(signer))
	}
	if t.Password != "" {
		cfg.Auth = append(cfg.Auth, ssh.Password(t.Password))
	}

	switch {
	case t.HostKeyCallback != nil:
		cfg.HostKeyCallback = t.HostKeyCallback
	case t.KnownHostsFile != "":
		path, err := homedir.Expand(t.KnownHostsFile)
		if err != nil {
			return nil, errors.Wrap(err, "invalid known hosts path")
		}
		if cfg.HostKeyCallback, err = knownhosts.New(path); err != nil {
			return nil, errors.Wrap(err, "failed to load known hosts")
		}
	default:
		cfg.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint: gosec
	}
	return cfg, nil
}

func (t *Target) login() *Login {
	if t.Username == "" && t.Password == "" && t.Command == "" {
		return nil
	}
	return &Login{Username: t.Username, Password: t.Password, Command: t.Command}
}

// Dial establishes the transport described by target.
func Dial(ctx context.Context, target *Target) (Transport, error) {
	if t := target.Timeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	switch target.Kind {
	case TransportSSH, "":
		sshcfg, err := target.SSHConfig()
		if err != nil {
			return nil, err
		}
		return NewSSHTransport(ctx, sshcfg, target.Address(), "netconf")
	case TransportTelnet:
		return NewTelnetTransport(ctx, target.Address(), target.login())
	case TransportSerial:
		if target.Device == "" {
			return nil, errors.New("serial target has no device")
		}
		mode, err := target.SerialMode()
		if err != nil {
			return nil, err
		}
		return NewSerialTransport(ctx, target.Device, mode, target.login())
	default:
		return nil, errors.Errorf("unsupported transport %q", target.Kind)
	}
}

// Open dials the target and establishes a netconf session over it. Any failure
// closes the transport.
func Open(ctx context.Context, target *Target, cfg *Config) (s Session, err error) {
	address := target.Address()
	trace := ContextClientTrace(ctx)
	trace.ConnectStart(address)
	defer func(begin time.Time) {
		trace.ConnectDone(address, err, time.Since(begin))
	}(time.Now())

	var t Transport
	if t, err = Dial(ctx, target); err != nil {
		return nil, &common.ChannelError{Op: fmt.Sprintf("dial %s", address), Err: err}
	}
	return NewSession(ctx, t, cfg)
}

// NewRPCSession connects to the target using the ssh configuration, and establishes
// a netconf session with default configuration.
func NewRPCSession(ctx context.Context, sshcfg *ssh.ClientConfig, target string) (s Session, err error) {
	return NewRPCSessionWithConfig(ctx, sshcfg, target, DefaultConfig)
}

// NewRPCSessionWithConfig connects to the target using the ssh configuration, and establishes
// a netconf session with the client configuration.
func NewRPCSessionWithConfig(ctx context.Context, sshcfg *ssh.ClientConfig, target string, cfg *Config) (s Session, err error) {
	var t Transport
	if t, err = NewSSHTransport(ctx, sshcfg, target, "netconf"); err != nil {
		return nil, &common.ChannelError{Op: "dial " + target, Err: err}
	}
	return NewSession(ctx, t, cfg)
}
