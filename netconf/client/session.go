package client

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/damianoneill/ncclient/netconf/common"
	"github.com/damianoneill/ncclient/netconf/common/codec"
	"github.com/damianoneill/ncclient/netconf/common/codec/rfc6242"
	"github.com/damianoneill/ncclient/netconf/rpc"
)

// The Message layer defines a set of base protocol operations
// invoked as RPC methods with XML-encoded parameters.

// State is the lifecycle state of a session.
type State int32

// Session lifecycle states.
const (
	StateClosed State = iota
	StateHelloPending
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateHelloPending:
		return "hello-pending"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

// The message-id of the first request sent on a session.
const firstMessageID = 101

//go:generate mockgen -destination=../mocks/mock_session.go -package=mocks github.com/damianoneill/ncclient/netconf/client Session

// Session represents a Netconf Session.
// A session is safe for concurrent use; requests are sent one at a time, each
// waiting for its reply before the next is sent.
type Session interface {
	// Invoke builds the named operation (see rpc.NewRequest) and executes it.
	Invoke(ctx context.Context, name string, payload interface{}, attrs rpc.Attrs) (*common.Reply, error)

	// Execute sends an RPC request and waits for its reply. A reply carrying rpc-errors
	// is returned together with a *common.OperationError.
	Execute(ctx context.Context, req *rpc.Request) (*common.Reply, error)

	// Lock locks the named datastore, recording the lock as held by the session.
	Lock(ctx context.Context, datastore string) (*common.Reply, error)

	// Unlock releases a lock held on the named datastore.
	Unlock(ctx context.Context, datastore string) (*common.Reply, error)

	// Subscribe issues a create-subscription request with the supplied payload and returns the reply.
	// If successful, notifications will be sent to the supplied channel; notifications that cannot
	// be delivered without blocking are dropped. The channel is closed when the session closes.
	Subscribe(ctx context.Context, payload interface{}, nchan chan *common.Notification) (*common.Reply, error)

	// Close closes the session, sending close-session if the session is healthy, and releases
	// any associated resources. Closing a closed session does nothing.
	Close() error

	// ID delivers the server-allocated id of the session, zero if the server did not supply one.
	ID() uint64

	// HasID reports whether the server supplied a session id.
	HasID() bool

	// Version delivers the negotiated protocol version, "1.0" or "1.1".
	Version() string

	// Framing delivers the negotiated message framing.
	Framing() rfc6242.Mode

	// State delivers the current lifecycle state.
	State() State

	// Locks delivers the names of the datastores locked by the session.
	Locks() []string

	// ServerCapabilities delivers the server-supplied capabilities.
	ServerCapabilities() common.Capabilities

	// NotificationDropCount delivers the number of notifications dropped because the
	// subscription channel was full.
	NotificationDropCount() uint64
}

type callResult struct {
	reply *common.Reply
	err   error
}

type pendingCall struct {
	messageID string
	ch        chan callResult
}

type sesImpl struct {
	cfg    *Config
	t      Transport
	dec    *codec.Decoder
	enc    *codec.Encoder
	trace  *ClientTrace
	target string
	ref    string

	clientCaps common.Capabilities

	hellochan chan error
	done      chan struct{}

	// Set by the reader before the hello is acknowledged, read-only afterwards.
	hello      *common.HelloMessage
	serverCaps common.Capabilities
	version    string
	framing    rfc6242.Mode

	// Held for the duration of a request/reply exchange.
	reqLock sync.Mutex

	lastMessageID uint64

	notificationDropCount uint64

	// mu guards the fields below.
	mu      sync.Mutex
	state   State
	locks   map[string]bool
	pending *pendingCall
	subchan chan *common.Notification
	// cause is the error that first closed the session.
	cause error
}

// NewSession creates a new Netconf session, using the supplied Transport, and
// performs the hello exchange. On failure the transport is closed.
func NewSession(ctx context.Context, t Transport, cfg *Config) (Session, error) {
	cfg = resolveConfig(cfg)
	trace := ContextClientTrace(ctx)
	traced := traceTransport(t, trace)

	si := &sesImpl{
		cfg:        cfg,
		t:          t,
		dec:        codec.NewDecoder(traced),
		enc:        codec.NewEncoder(traced, rfc6242.WithMaximumChunkSize(cfg.MaxChunkSize)),
		trace:      trace,
		target:     transportTarget(t),
		ref:        uuid.NewString(),
		clientCaps: common.NewCapabilities(cfg.clientCapabilities()...),

		hellochan:     make(chan error, 1),
		done:          make(chan struct{}),
		lastMessageID: firstMessageID - 1,
		locks:         map[string]bool{},
	}

	si.mu.Lock()
	si.setStateLocked(StateHelloPending)
	si.mu.Unlock()

	// Launch goroutine to handle incoming messages from the server.
	// It must be reading before the client hello is written, as the server
	// may be blocked writing its own hello.
	go si.handleIncomingMessages()

	// Send hello
	if err := si.enc.Encode(buildHello(si.clientCaps.List())); err != nil {
		return nil, si.abandon(&common.ChannelError{Op: "write hello", Err: err})
	}

	if err := si.waitForServerHello(ctx); err != nil {
		return nil, si.abandon(err)
	}

	if si.framing == rfc6242.Chunked {
		// The client hello has gone, update the encoder to use chunked framing from now.
		codec.EnableChunkedFraming(nil, si.enc)
	}

	si.mu.Lock()
	defer si.mu.Unlock()
	if si.state != StateHelloPending {
		return nil, &common.ChannelError{Op: "hello", Err: common.ErrSessionClosed}
	}
	si.setStateLocked(StateOpen)
	return si, nil
}

// abandon closes a session that failed to open. When the session was already
// closed, the error that closed it is reported in place of err.
func (si *sesImpl) abandon(err error) error {
	si.shutdown(err)
	si.waitForReader()

	si.mu.Lock()
	if si.cause != nil {
		err = si.cause
	}
	si.mu.Unlock()

	si.trace.Error("Failed to establish session", si.target, err)
	return err
}

func (si *sesImpl) waitForServerHello(ctx context.Context) error {
	timer := time.NewTimer(si.cfg.SetupTimeout)
	defer timer.Stop()

	select {
	case err := <-si.hellochan:
		return err
	case <-timer.C:
		return &common.NegotiationError{
			Reason: fmt.Sprintf("no hello received from server within %s", si.cfg.SetupTimeout),
			Err:    context.DeadlineExceeded,
		}
	case <-ctx.Done():
		return &common.NegotiationError{Reason: "hello exchange abandoned", Err: ctx.Err()}
	}
}

func (si *sesImpl) Invoke(ctx context.Context, name string, payload interface{}, attrs rpc.Attrs) (*common.Reply, error) {
	req, err := rpc.NewRequest(name, payload, attrs)
	if err != nil {
		return nil, err
	}
	return si.Execute(ctx, req)
}

func (si *sesImpl) Execute(ctx context.Context, req *rpc.Request) (*common.Reply, error) {
	si.reqLock.Lock()
	defer si.reqLock.Unlock()

	if si.State() != StateOpen {
		return nil, common.ErrSessionClosed
	}

	behavior := si.cfg.Registry.Lookup(req.Name)
	datastore := req.Target()
	if err := si.checkLocks(req.Name, behavior.LockOp, datastore); err != nil {
		return nil, err
	}

	reply, err := si.roundTrip(ctx, req, behavior, si.cfg.ReplyTimeout)
	if err == nil {
		si.updateLocks(behavior.LockOp, datastore)
	}
	return reply, err
}

func (si *sesImpl) Lock(ctx context.Context, datastore string) (*common.Reply, error) {
	req, err := datastoreRequest("lock", datastore)
	if err != nil {
		return nil, err
	}
	return si.Execute(ctx, req)
}

func (si *sesImpl) Unlock(ctx context.Context, datastore string) (*common.Reply, error) {
	req, err := datastoreRequest("unlock", datastore)
	if err != nil {
		return nil, err
	}
	return si.Execute(ctx, req)
}

func datastoreRequest(operation, datastore string) (*rpc.Request, error) {
	if datastore == "" {
		return nil, errors.Errorf("%s requires a datastore", operation)
	}
	return rpc.NewRequest(operation, rpc.Params{rpc.P("target", rpc.Params{rpc.P(datastore, true)})}, nil)
}

func (si *sesImpl) Subscribe(ctx context.Context, payload interface{}, nchan chan *common.Notification) (*common.Reply, error) {
	req, err := rpc.NewRequest("create-subscription", payload, rpc.Attrs{"xmlns": common.NetconfNotifyNS})
	if err != nil {
		return nil, err
	}

	// Store the notification channel for the session, as notifications may
	// arrive before the reply.
	si.mu.Lock()
	si.subchan = nchan
	si.mu.Unlock()

	reply, err := si.Execute(ctx, req)
	if err != nil {
		si.mu.Lock()
		if si.subchan == nchan {
			si.subchan = nil
		}
		si.mu.Unlock()
	}
	return reply, err
}

func (si *sesImpl) Close() error {
	si.mu.Lock()
	if si.state != StateOpen {
		si.mu.Unlock()
		return nil
	}
	si.setStateLocked(StateClosing)
	si.mu.Unlock()

	// A request still waiting for its reply means the session is not healthy
	// enough for close-session; the transport is simply torn down.
	var err error
	if si.reqLock.TryLock() {
		req := rpc.MustRequest("close-session", nil, nil)
		_, err = si.roundTrip(context.Background(), req, si.cfg.Registry.Lookup(req.Name), si.cfg.CloseTimeout)
		si.reqLock.Unlock()
		if err != nil {
			si.trace.Error("close-session", si.target, err)
		}
	}

	si.shutdown(nil)
	si.waitForReader()

	if common.IsKind(err, common.KindRPC) {
		return err
	}
	return nil
}

func (si *sesImpl) ID() uint64 {
	return si.hello.SessionID
}

func (si *sesImpl) HasID() bool {
	return si.hello.HasSessionID
}

func (si *sesImpl) Version() string {
	return si.version
}

func (si *sesImpl) Framing() rfc6242.Mode {
	return si.framing
}

func (si *sesImpl) State() State {
	si.mu.Lock()
	defer si.mu.Unlock()
	return si.state
}

func (si *sesImpl) Locks() []string {
	si.mu.Lock()
	defer si.mu.Unlock()
	locks := make([]string, 0, len(si.locks))
	for ds := range si.locks {
		locks = append(locks, ds)
	}
	sort.Strings(locks)
	return locks
}

func (si *sesImpl) ServerCapabilities() common.Capabilities {
	return si.serverCaps
}

func (si *sesImpl) NotificationDropCount() uint64 {
	return atomic.LoadUint64(&si.notificationDropCount)
}

// roundTrip sends req and waits for its reply, for at most timeout. If the
// reply does not arrive in time, or ctx is done first, the session is closed.
func (si *sesImpl) roundTrip(ctx context.Context, req *rpc.Request, behavior rpc.Behavior, timeout time.Duration) (reply *common.Reply, err error) {
	id := strconv.FormatUint(atomic.AddUint64(&si.lastMessageID, 1), 10)

	si.trace.ExecuteStart(si.ref, req, id)
	defer func(begin time.Time) {
		si.trace.ExecuteDone(si.ref, req, id, reply, err, time.Since(begin))
	}(time.Now())

	msg, err := req.Marshal(id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to serialize %s", req.Name)
	}

	pc := &pendingCall{messageID: id, ch: make(chan callResult, 1)}
	si.mu.Lock()
	if si.state != StateOpen && si.state != StateClosing {
		si.mu.Unlock()
		return nil, common.ErrSessionClosed
	}
	si.pending = pc
	si.mu.Unlock()

	// Once pending is set, every path (reply, reader failure, expiry) answers on pc.ch.
	timer := time.AfterFunc(timeout, func() {
		si.expire(pc, &common.ChannelError{
			Op:  "reply",
			Err: errors.Wrapf(context.DeadlineExceeded, "no reply to %s (message-id %s) within %s", req.Name, id, timeout),
		})
	})
	defer timer.Stop()
	stop := context.AfterFunc(ctx, func() {
		si.expire(pc, &common.ChannelError{
			Op:  "reply",
			Err: errors.Wrapf(ctx.Err(), "abandoned %s (message-id %s)", req.Name, id),
		})
	})
	defer stop()

	if werr := si.enc.EncodeBytes(msg); werr != nil {
		werr = &common.ChannelError{Op: "write " + req.Name, Err: werr}
		si.trace.Error("Failed to write request", si.target, werr)
		si.shutdown(werr)
	}

	res := <-pc.ch
	if res.err != nil {
		return nil, res.err
	}
	reply = res.reply

	if !si.cfg.ErrOnWarning {
		for _, w := range reply.Warnings() {
			si.trace.Warning(req.Name, si.target, w.Error())
		}
	}
	return reply, classify(req.Name, behavior, reply, si.cfg.ErrOnWarning)
}

// expire abandons a session whose byte stream can no longer be trusted, provided
// pc is still awaiting its reply.
func (si *sesImpl) expire(pc *pendingCall, err error) {
	si.mu.Lock()
	if si.pending != pc {
		si.mu.Unlock()
		return
	}
	si.pending = nil
	si.mu.Unlock()

	si.trace.Error("Request abandoned", si.target, err)
	si.shutdown(err)
	pc.ch <- callResult{err: err}
}

func (si *sesImpl) checkLocks(operation string, op rpc.LockOp, datastore string) error {
	if op == rpc.LockNone || datastore == "" {
		return nil
	}

	si.mu.Lock()
	held := si.locks[datastore]
	si.mu.Unlock()

	var reason string
	switch {
	case op == rpc.LockAcquire && held:
		reason = "lock already held by this session"
	case op == rpc.LockRelease && !held:
		reason = "no lock held by this session"
	default:
		return nil
	}

	if si.cfg.LenientLocks {
		si.trace.Warning(operation, si.target, datastore+": "+reason)
		return nil
	}
	return &common.PreconditionError{Operation: operation, Datastore: datastore, Reason: reason}
}

func (si *sesImpl) updateLocks(op rpc.LockOp, datastore string) {
	if datastore == "" {
		return
	}
	si.mu.Lock()
	defer si.mu.Unlock()
	switch op {
	case rpc.LockAcquire:
		si.locks[datastore] = true
	case rpc.LockRelease:
		delete(si.locks, datastore)
	}
}

// shutdown moves the session to closed, failing any outstanding request with
// cause, and closes the transport. It does nothing if the session is closed.
func (si *sesImpl) shutdown(cause error) {
	if cause == nil {
		cause = common.ErrSessionClosed
	}

	si.mu.Lock()
	if si.state == StateClosed {
		si.mu.Unlock()
		return
	}
	from := si.state
	si.setStateLocked(StateClosed)
	si.cause = cause
	pc := si.pending
	si.pending = nil
	si.locks = map[string]bool{}
	si.mu.Unlock()

	if pc != nil {
		pc.ch <- callResult{err: cause}
	}
	if from == StateHelloPending {
		select {
		case si.hellochan <- cause:
		default:
		}
	}

	if err := si.t.Close(); err != nil {
		si.trace.Error("Session close failed", si.target, err)
	}
}

func (si *sesImpl) waitForReader() {
	select {
	case <-si.done:
	case <-time.After(si.cfg.CloseTimeout):
	}
}

func (si *sesImpl) setStateLocked(to State) {
	from := si.state
	si.state = to
	si.trace.StateChange(si.ref, from, to)
}

func (si *sesImpl) handleIncomingMessages() {
	defer close(si.done)

	helloSeen := false
	for {
		msg, err := si.dec.ReadMessage()
		if err == nil {
			err = si.handleMessage(msg, &helloSeen)
		}
		if err != nil {
			si.readerFailed(err)
			return
		}
	}
}

func (si *sesImpl) readerFailed(err error) {
	err = sessionError(err)
	if si.State() == StateOpen {
		si.trace.Error("Session input failed", si.target, err)
	}
	si.shutdown(err)

	// Make sure anybody waiting for notifications gets informed.
	si.mu.Lock()
	if si.subchan != nil {
		close(si.subchan)
		si.subchan = nil
	}
	si.mu.Unlock()
}

// sessionError maps an input failure to the error reported to callers.
func sessionError(err error) error {
	var (
		fe *common.FramingError
		ne *common.NegotiationError
	)
	switch {
	case errors.As(err, &fe):
		return fe
	case errors.As(err, &ne):
		return ne
	default:
		return &common.ChannelError{Op: "read", Err: err}
	}
}

func (si *sesImpl) handleMessage(msg []byte, helloSeen *bool) error {
	doc := etree.NewDocument()
	err := doc.ReadFromBytes(msg)
	if err == nil && doc.Root() == nil {
		err = errors.New("no root element")
	}
	if err != nil {
		if !*helloSeen {
			return &common.NegotiationError{Reason: "malformed hello", Err: err}
		}
		return &common.FramingError{Mode: si.dec.Mode().String(), Reason: "malformed message: " + err.Error()}
	}

	tag := doc.Root().Tag
	if !*helloSeen {
		if tag != "hello" {
			return &common.NegotiationError{Reason: fmt.Sprintf("expected hello, received <%s>", tag)}
		}
		*helloSeen = true
		return si.handleHello(doc)
	}

	switch tag {
	case "rpc-reply":
		return si.handleRPCReply(doc, msg)
	case "notification":
		si.handleNotification(doc)
	default:
		si.trace.Error("Unexpected message", si.target, errors.Errorf("unexpected message <%s>", tag))
	}
	return nil
}

func (si *sesImpl) handleHello(doc *etree.Document) error {
	hello, err := parseHello(doc)
	if err != nil {
		return err
	}
	serverCaps := common.NewCapabilities(hello.Capabilities...)
	version, framing, err := selectVersion(si.clientCaps, serverCaps)
	if err != nil {
		return err
	}

	si.hello, si.serverCaps, si.version, si.framing = hello, serverCaps, version, framing
	if framing == rfc6242.Chunked {
		// Messages following the hello are chunked.
		codec.EnableChunkedFraming(si.dec, nil)
	}
	si.trace.HelloDone(si.ref, hello, version)

	select {
	case si.hellochan <- nil:
	default:
	}
	return nil
}

func (si *sesImpl) handleRPCReply(doc *etree.Document, raw []byte) error {
	reply, err := common.ReplyFromDocument(doc, raw)
	if err != nil {
		return err
	}

	si.mu.Lock()
	pc := si.pending
	if pc == nil {
		si.mu.Unlock()
		si.trace.Error("Unsolicited reply", si.target, errors.Errorf("no request outstanding for message-id %q", reply.MessageID))
		return nil
	}
	if reply.MessageID != "" && reply.MessageID != pc.messageID {
		si.mu.Unlock()
		return &common.FramingError{
			Mode:   si.dec.Mode().String(),
			Reason: fmt.Sprintf("reply message-id %s does not match request message-id %s", reply.MessageID, pc.messageID),
		}
	}
	si.pending = nil
	si.mu.Unlock()

	pc.ch <- callResult{reply: reply}
	return nil
}

func (si *sesImpl) handleNotification(doc *etree.Document) {
	n, err := common.NotificationFromDocument(doc)
	if err != nil {
		si.trace.Error("Malformed notification", si.target, err)
		return
	}

	si.mu.Lock()
	defer si.mu.Unlock()

	// Send notification to subscription channel, if it's defined and not full.
	if si.subchan == nil {
		return
	}
	si.trace.NotificationReceived(n)
	select {
	case si.subchan <- n:
	default:
		atomic.AddUint64(&si.notificationDropCount, 1)
		si.trace.NotificationDropped(n)
	}
}
