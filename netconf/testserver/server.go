// Package testserver provides an in-process NETCONF server for tests, reachable
// over SSH or an in-memory pipe. Requests are served by queued request handlers
// and otherwise by a simulated device.
package testserver

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"runtime"
	"sort"
	"sync"

	assert "github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/damianoneill/ncclient/netconf/common"
)

// TestNCServer represents a Netconf Server that can be used for 'on-board' testing.
// Each connection is served by a SessionHandler, which invokes the queued request
// handlers in turn, falling back to the simulated Device once the queue is empty.
type TestNCServer struct {
	t      assert.TestingT
	ssh    *sshServer
	device *Device

	mu              sync.Mutex
	sessionHandlers map[uint64]*SessionHandler
	reqHandlers     []RequestHandler
	caps            []string
	nextSid         uint64
	hello           helloOptions
	authorizedKeys  []ssh.PublicKey
}

type helloOptions struct {
	none          bool
	raw           string
	omitSessionID bool
}

// NewTestNetconfServer creates a new TestNCServer that will accept Netconf localhost connections on an ephemeral port
// (available via Port()), with credentials defined by TestUserName and TestPassword.
// t will be used for handling failures; if the supplied value is nil, a default test context will be used.
func NewTestNetconfServer(t assert.TestingT) *TestNCServer {
	ncs := NewPipeServer(t)

	config, err := serverConfig(TestUserName, TestPassword, ncs.authorized)
	assert.NoError(ncs.t, err, "Failed to build ssh server config")
	ncs.ssh = newSSHServer(ncs.t, config, ncs.Serve)
	return ncs
}

// NewPipeServer creates a new TestNCServer reachable only through Pipe().
func NewPipeServer(t assert.TestingT) *TestNCServer {
	ncs := &TestNCServer{
		sessionHandlers: make(map[uint64]*SessionHandler),
		device:          NewDevice(),
		caps:            common.DefaultCapabilities,
	}
	if t == nil {
		// Default test context to built-in implementation.
		t = ncs
	}
	ncs.t = t
	return ncs
}

// Pipe delivers the client end of a new in-memory connection to the server.
func (ncs *TestNCServer) Pipe() net.Conn {
	client, server := net.Pipe()
	go func() {
		defer server.Close()
		ncs.Serve(server)
	}()
	return client
}

// Port delivers the tcp port number on which the SSH server is listening.
func (ncs *TestNCServer) Port() int {
	ncs.requireSSH()
	return ncs.ssh.Port()
}

// Address delivers the localhost address on which the SSH server is listening.
func (ncs *TestNCServer) Address() string {
	ncs.requireSSH()
	return ncs.ssh.Address()
}

func (ncs *TestNCServer) requireSSH() {
	if ncs.ssh == nil {
		ncs.t.Errorf("Test server was created without an ssh listener")
		ncs.t.FailNow()
	}
}

// Device delivers the simulated device serving requests with no queued handler.
func (ncs *TestNCServer) Device() *Device {
	return ncs.device
}

// WithRequestHandler queues a request handler; each queued handler serves a single request.
func (ncs *TestNCServer) WithRequestHandler(rh RequestHandler) *TestNCServer {
	ncs.mu.Lock()
	defer ncs.mu.Unlock()
	ncs.reqHandlers = append(ncs.reqHandlers, rh)
	return ncs
}

// WithCapabilities define the capabilities that the server will advertise when a netconf client connects.
func (ncs *TestNCServer) WithCapabilities(caps []string) *TestNCServer {
	ncs.mu.Lock()
	defer ncs.mu.Unlock()
	ncs.caps = caps
	return ncs
}

// WithoutHello stops the server sending a hello message.
func (ncs *TestNCServer) WithoutHello() *TestNCServer {
	ncs.mu.Lock()
	defer ncs.mu.Unlock()
	ncs.hello.none = true
	return ncs
}

// WithHello makes the server send raw in place of its hello message.
func (ncs *TestNCServer) WithHello(raw string) *TestNCServer {
	ncs.mu.Lock()
	defer ncs.mu.Unlock()
	ncs.hello.raw = raw
	return ncs
}

// WithoutSessionID stops the server reporting a session-id in its hello.
func (ncs *TestNCServer) WithoutSessionID() *TestNCServer {
	ncs.mu.Lock()
	defer ncs.mu.Unlock()
	ncs.hello.omitSessionID = true
	return ncs
}

// WithAuthorizedKey allows SSH clients to authenticate as TestUserName with the private key of pub.
func (ncs *TestNCServer) WithAuthorizedKey(pub ssh.PublicKey) *TestNCServer {
	ncs.mu.Lock()
	defer ncs.mu.Unlock()
	ncs.authorizedKeys = append(ncs.authorizedKeys, pub)
	return ncs
}

// SessionHandler delivers the netconf session handler associated with the specified session id.
func (ncs *TestNCServer) SessionHandler(id uint64) *SessionHandler {
	ncs.mu.Lock()
	sh, ok := ncs.sessionHandlers[id]
	ncs.mu.Unlock()
	if !ok {
		ncs.t.Errorf("Failed to get handler for session %d", id)
		ncs.t.FailNow()
	}
	return sh
}

// LastHandler delivers the handler of the most recent session, nil if there is none.
func (ncs *TestNCServer) LastHandler() *SessionHandler {
	ncs.mu.Lock()
	defer ncs.mu.Unlock()
	return ncs.sessionHandlers[ncs.nextSid]
}

// SessionIDs delivers the ids of every session served, in order.
func (ncs *TestNCServer) SessionIDs() []uint64 {
	ncs.mu.Lock()
	defer ncs.mu.Unlock()
	ids := make([]uint64, 0, len(ncs.sessionHandlers))
	for id := range ncs.sessionHandlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Close closes any active session and prevents subsequent connections.
func (ncs *TestNCServer) Close() {
	if ncs.ssh != nil {
		ncs.ssh.close()
	}
	ncs.mu.Lock()
	handlers := make([]*SessionHandler, 0, len(ncs.sessionHandlers))
	for _, h := range ncs.sessionHandlers {
		handlers = append(handlers, h)
	}
	ncs.mu.Unlock()

	for _, h := range handlers {
		if h.ch != nil {
			h.Close()
		}
	}
}

// Errorf provides testing.T compatibility if a test context is not provided when the test server is
// created.
func (ncs *TestNCServer) Errorf(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// FailNow provides testing.T compatibility if a test context is not provided when the test server is
// created.
func (ncs *TestNCServer) FailNow() {
	runtime.Goexit()
}

// Serve runs a netconf session over ch, returning once the session has ended.
func (ncs *TestNCServer) Serve(ch io.ReadWriteCloser) {
	caps := ncs.capabilities()

	ncs.mu.Lock()
	ncs.nextSid++
	h := newSessionHandler(ncs, ncs.nextSid, caps)
	h.ch = ch
	ncs.sessionHandlers[h.sid] = h
	ncs.mu.Unlock()

	h.Handle(ch)
	ncs.device.releaseLocks(h.sid)
}

func (ncs *TestNCServer) authorized(key ssh.PublicKey) bool {
	ncs.mu.Lock()
	defer ncs.mu.Unlock()
	for _, k := range ncs.authorizedKeys {
		if bytes.Equal(k.Marshal(), key.Marshal()) {
			return true
		}
	}
	return false
}

func (ncs *TestNCServer) capabilities() []string {
	ncs.mu.Lock()
	defer ncs.mu.Unlock()
	return append([]string{}, ncs.caps...)
}

func (ncs *TestNCServer) helloOptions() helloOptions {
	ncs.mu.Lock()
	defer ncs.mu.Unlock()
	return ncs.hello
}

// nextReqHandler delivers the next queued request handler, or the device.
func (ncs *TestNCServer) nextReqHandler() RequestHandler {
	ncs.mu.Lock()
	defer ncs.mu.Unlock()
	if len(ncs.reqHandlers) == 0 {
		return ncs.device.Handle
	}
	rh := ncs.reqHandlers[0]
	ncs.reqHandlers = ncs.reqHandlers[1:]
	return rh
}
