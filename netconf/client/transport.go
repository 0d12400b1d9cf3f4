package client

import (
	"context"
	"io"
	"time"

	"golang.org/x/crypto/ssh"
)

// The Secure Transport layer provides a communication path between
// the client and server.  NETCONF can be layered over any
// transport protocol that provides a set of basic requirements.

//go:generate mockery --name=Transport --output=../common/mocks

// Transport interface defines what characteristics make up a NETCONF transport
// layer object.
type Transport interface {
	io.ReadWriteCloser
}

// targeted is implemented by transports that know the address of their peer.
type targeted interface {
	Target() string
}

func transportTarget(t Transport) string {
	if tt, ok := t.(targeted); ok {
		return tt.Target()
	}
	return ""
}

type tImpl struct {
	reader      io.Reader
	writeCloser io.WriteCloser
	sshSession  *ssh.Session
	sshClient   *ssh.Client
	trace       *ClientTrace
	target      string
}

// NewSSHTransport creates a new SSH transport, connecting to the target with the supplied client configuration
// and requesting the specified subsystem.
func NewSSHTransport(ctx context.Context, clientConfig *ssh.ClientConfig, target, subsystem string) (rt Transport, err error) {
	impl := tImpl{target: target, trace: ContextClientTrace(ctx)}

	impl.trace.DialStart(clientConfig, target)
	defer func(begin time.Time) {
		impl.trace.DialDone(clientConfig, target, err, time.Since(begin))
	}(time.Now())

	defer func() {
		if err != nil {
			impl.closeAll()
		}
	}()

	if impl.sshClient, err = dialSSH(ctx, target, clientConfig); err != nil {
		return
	}

	if impl.sshSession, err = impl.sshClient.NewSession(); err != nil {
		return
	}

	if err = impl.sshSession.RequestSubsystem(subsystem); err != nil {
		return
	}

	if impl.reader, err = impl.sshSession.StdoutPipe(); err != nil {
		return
	}

	if impl.writeCloser, err = impl.sshSession.StdinPipe(); err != nil {
		return
	}

	rt = &impl
	return
}

// dialSSH establishes the SSH connection, honouring cancellation of ctx.
func dialSSH(ctx context.Context, target string, clientConfig *ssh.ClientConfig) (*ssh.Client, error) {
	conn, err := dialTCP(ctx, target, clientConfig.Timeout)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, target, clientConfig)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(c, chans, reqs), nil
}

func (t *tImpl) Read(p []byte) (n int, err error) {
	return t.reader.Read(p)
}

func (t *tImpl) Write(p []byte) (n int, err error) {
	return t.writeCloser.Write(p)
}

// Target delivers the address the transport is connected to.
func (t *tImpl) Target() string {
	return t.target
}

// Close closes all session resources in the following order:
//
//  1. stdin pipe
//  2. SSH session
//  3. SSH client
//
// Errors are returned with priority matching the same order.
func (t *tImpl) Close() (err error) {
	defer func() {
		t.trace.ConnectionClosed(t.target, err)
	}()
	return t.closeAll()
}

func (t *tImpl) closeAll() (err error) {
	var (
		writeCloseErr      error
		sshSessionCloseErr error
	)

	if t.writeCloser != nil {
		writeCloseErr = t.writeCloser.Close()
	}

	if t.sshSession != nil {
		sshSessionCloseErr = t.sshSession.Close()
	}

	if t.sshClient != nil {
		err = t.sshClient.Close()
	}

	if err == nil {
		err = writeCloseErr
	}

	if err == nil {
		err = sshSessionCloseErr
	}

	return err
}

// tracedTransport reports every read and write on a session's transport to
// the trace hooks.
type tracedTransport struct {
	Transport
	trace *ClientTrace
}

func traceTransport(t Transport, trace *ClientTrace) Transport {
	if trace == nil || trace == NoOpLoggingHooks {
		return t
	}
	return &tracedTransport{Transport: t, trace: trace}
}

func (tt *tracedTransport) Read(p []byte) (c int, err error) {
	tt.trace.ReadStart(p)
	defer func(begin time.Time) {
		tt.trace.ReadDone(p, c, err, time.Since(begin))
	}(time.Now())
	return tt.Transport.Read(p)
}

func (tt *tracedTransport) Write(p []byte) (c int, err error) {
	tt.trace.WriteStart(p)
	defer func(begin time.Time) {
		tt.trace.WriteDone(p, c, err, time.Since(begin))
	}(time.Now())
	return tt.Transport.Write(p)
}
