package client

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	assert "github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/damianoneill/ncclient/netconf/common"
	"github.com/damianoneill/ncclient/netconf/common/codec/rfc6242"
	"github.com/damianoneill/ncclient/netconf/common/mocks"
	"github.com/damianoneill/ncclient/netconf/rpc"
	"github.com/damianoneill/ncclient/netconf/testserver"
)

func newPipeSession(t *testing.T, ts *testserver.TestNCServer, cfg *Config) Session {
	return newPipeSessionWithContext(context.Background(), t, ts, cfg)
}

func newPipeSessionWithContext(ctx context.Context, t *testing.T, ts *testserver.TestNCServer, cfg *Config) Session {
	s, err := NewSession(ctx, ts.Pipe(), cfg)
	assert.NoError(t, err, "Failed to create session")
	assert.NotNil(t, s, "Session should be non-nil")
	return s
}

func TestNewSessionWithChunkedEncoding(t *testing.T) {
	ts := testserver.NewPipeServer(t)
	defer ts.Close()

	ncs := newPipeSession(t, ts, nil)
	defer ncs.Close()

	assert.Equal(t, uint64(1), ncs.ID(), "Session id not defined correctly")
	assert.True(t, ncs.HasID())
	assert.Equal(t, common.Version11, ncs.Version())
	assert.Equal(t, rfc6242.Chunked, ncs.Framing())
	assert.Equal(t, StateOpen, ncs.State())
	assert.True(t, ncs.ServerCapabilities().Has(common.CapBase10), "Failed to retrieve expected capabilities")

	sh := ts.SessionHandler(ncs.ID())
	assert.True(t, sh.WaitStart(time.Second))
	assert.Equal(t, common.DefaultCapabilities, sh.ClientHello.Capabilities, "Did not send expected client capabilities")

	reply, err := ncs.Invoke(context.Background(), "get", nil, nil)
	assert.NoError(t, err)
	assert.NotNil(t, reply.Data())
}

func TestNewSessionWithEndOfMessageEncoding(t *testing.T) {
	ts := testserver.NewPipeServer(t).WithCapabilities([]string{common.CapBase10})
	defer ts.Close()

	ncs := newPipeSession(t, ts, nil)
	defer ncs.Close()

	assert.Equal(t, common.Version10, ncs.Version())
	assert.Equal(t, rfc6242.EndOfMessage, ncs.Framing())

	reply, err := ncs.Invoke(context.Background(), "get-chassis-inventory", rpc.Params{rpc.P("detail", true)}, nil)
	assert.NoError(t, err)
	assert.Equal(t, `<detail/>`, reply.DataXML(), "Reply should contain response data")
}

func TestNewSessionWithNoChunkedCodec(t *testing.T) {
	ts := testserver.NewPipeServer(t)
	defer ts.Close()

	ncs := newPipeSession(t, ts, &Config{DisableChunkedCodec: true, Capabilities: []string{common.CapCandidate}})
	defer ncs.Close()

	assert.Equal(t, common.Version10, ncs.Version())
	assert.Equal(t, rfc6242.EndOfMessage, ncs.Framing())

	sh := ts.SessionHandler(ncs.ID())
	assert.True(t, sh.WaitStart(time.Second))
	assert.Equal(t, []string{common.CapBase10, common.CapCandidate}, sh.ClientHello.Capabilities)

	_, err := ncs.Invoke(context.Background(), "get", nil, nil)
	assert.NoError(t, err)
}

func TestNewSessionWithoutSessionID(t *testing.T) {
	ts := testserver.NewPipeServer(t).WithoutSessionID()
	defer ts.Close()

	ncs := newPipeSession(t, ts, nil)
	defer ncs.Close()

	assert.False(t, ncs.HasID())
	assert.Equal(t, uint64(0), ncs.ID())
}

func TestHelloFailures(t *testing.T) {
	helloWith := func(body string) string {
		return fmt.Sprintf(`<hello xmlns="%s">%s</hello>`, common.NetconfNS, body)
	}
	base10 := `<capabilities><capability>` + common.CapBase10 + `</capability></capabilities>`

	tests := []struct {
		name   string
		server func(*testserver.TestNCServer)
		reason string
	}{
		{"no compatible version", func(ts *testserver.TestNCServer) {
			ts.WithCapabilities([]string{"urn:ietf:params:netconf:base:2.0"})
		}, "no compatible protocol version"},
		{"malformed", func(ts *testserver.TestNCServer) { ts.WithHello("<<hello>") }, "malformed hello"},
		{"not a hello", func(ts *testserver.TestNCServer) {
			ts.WithHello(fmt.Sprintf(`<rpc-reply xmlns="%s"/>`, common.NetconfNS))
		}, "expected hello, received <rpc-reply>"},
		{"wrong namespace", func(ts *testserver.TestNCServer) {
			ts.WithHello(`<hello xmlns="urn:example">` + base10 + `</hello>`)
		}, "hello is not in the netconf base namespace: urn:example"},
		{"no capabilities", func(ts *testserver.TestNCServer) {
			ts.WithHello(helloWith(`<session-id>4</session-id>`))
		}, "hello carries no capabilities"},
		{"invalid session-id", func(ts *testserver.TestNCServer) {
			ts.WithHello(helloWith(base10 + `<session-id>abc</session-id>`))
		}, `invalid session-id "abc"`},
		{"zero session-id", func(ts *testserver.TestNCServer) {
			ts.WithHello(helloWith(base10 + `<session-id>0</session-id>`))
		}, `invalid session-id "0"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := testserver.NewPipeServer(t)
			defer ts.Close()
			tt.server(ts)

			s, err := NewSession(context.Background(), ts.Pipe(), nil)
			assert.Nil(t, s)
			var ne *common.NegotiationError
			assert.True(t, errors.As(err, &ne), "Expected negotiation error, got %v", err)
			assert.Equal(t, tt.reason, ne.Reason)
		})
	}
}

func TestHelloTimeout(t *testing.T) {
	ts := testserver.NewPipeServer(t).WithoutHello()
	defer ts.Close()

	begin := time.Now()
	s, err := NewSession(context.Background(), ts.Pipe(), &Config{SetupTimeout: 100 * time.Millisecond})
	assert.Nil(t, s)
	var ne *common.NegotiationError
	assert.True(t, errors.As(err, &ne))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(begin), 5*time.Second)
}

func TestHelloAbandonedWithContext(t *testing.T) {
	ts := testserver.NewPipeServer(t).WithoutHello()
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := NewSession(ctx, ts.Pipe(), nil)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestMessageIDsIncrement(t *testing.T) {
	ts := testserver.NewPipeServer(t)
	defer ts.Close()

	ncs := newPipeSession(t, ts, nil)
	defer ncs.Close()

	for i := 0; i < 3; i++ {
		_, err := ncs.Invoke(context.Background(), "get_interface_information", nil, nil)
		assert.NoError(t, err)
	}

	reqs := ts.SessionHandler(ncs.ID()).Requests()
	assert.Len(t, reqs, 3)
	for i, req := range reqs {
		assert.Equal(t, strconv.Itoa(firstMessageID+i), req.MessageID)
		assert.Equal(t, "get-interface-information", req.Name)
	}
}

func TestExecuteWithAttributesAndFragment(t *testing.T) {
	ts := testserver.NewPipeServer(t)
	defer ts.Close()

	ncs := newPipeSession(t, ts, nil)
	defer ncs.Close()

	filter := rpc.MustParseFragment(`<interfaces><interface><name>ge-0/0/0</name></interface></interfaces>`)
	_, err := ncs.Invoke(context.Background(), "get-configuration", filter, rpc.Attrs{"format": "xml", "database": "committed"})
	assert.NoError(t, err)

	req := ts.LastHandler().LastRequest()
	assert.Equal(t, rpc.Attrs{"format": "xml", "database": "committed"}, req.Attrs())
	assert.Equal(t, `<get-configuration database="committed" format="xml">`+
		`<interfaces><interface><name>ge-0/0/0</name></interface></interfaces></get-configuration>`, req.String())
}

func TestExecuteWithFailingRequest(t *testing.T) {
	ts := testserver.NewPipeServer(t).WithRequestHandler(testserver.FailingRequestHandler)
	defer ts.Close()

	ncs := newPipeSession(t, ts, nil)
	defer ncs.Close()

	reply, err := ncs.Invoke(context.Background(), "get", nil, nil)
	assert.Error(t, err, "Expecting exec to fail")
	assert.True(t, errors.Is(err, common.ErrRPC))
	assert.NotNil(t, reply, "Reply should be non-nil")
	assert.Equal(t, StateOpen, ncs.State(), "An rpc-error must not close the session")
}

func TestEditErrorCarriesTag(t *testing.T) {
	ts := testserver.NewPipeServer(t).WithRequestHandler(testserver.ErrorRequestHandler(common.RPCError{
		Type: common.ErrorTypeApplication, Tag: "invalid-value", Severity: common.SeverityError,
		Path: "/system/hostname", Message: "bad hostname",
	}))
	defer ts.Close()

	ncs := newPipeSession(t, ts, nil)
	defer ncs.Close()

	_, err := ncs.Invoke(context.Background(), "edit-config", rpc.Params{
		rpc.P("target", rpc.Params{rpc.P("candidate", true)}),
		rpc.P("config", rpc.MustParseFragment(`<system><hostname>-</hostname></system>`)),
	}, nil)
	assert.True(t, errors.Is(err, common.ErrEdit))
	assert.True(t, common.IsKind(err, common.KindEdit))
	var oe *common.OperationError
	assert.True(t, errors.As(err, &oe))
	assert.Equal(t, "edit-config", oe.Operation)
	assert.True(t, oe.HasTag("invalid-value"))
	assert.Equal(t, "/system/hostname", oe.Errors[0].Path)
}

func TestErrorWithProgressFails(t *testing.T) {
	body := `<data><partial/></data>` + testserver.RenderErrors(
		common.RPCError{Type: common.ErrorTypeApplication, Tag: "partial-operation", Severity: common.SeverityWarning},
		common.RPCError{Type: common.ErrorTypeApplication, Tag: "operation-failed", Severity: common.SeverityError},
	)
	ts := testserver.NewPipeServer(t).WithRequestHandler(testserver.ReplyRequestHandler(body))
	defer ts.Close()

	ncs := newPipeSession(t, ts, nil)
	defer ncs.Close()

	reply, err := ncs.Invoke(context.Background(), "commit", nil, nil)
	assert.True(t, errors.Is(err, common.ErrCommit))
	var oe *common.OperationError
	assert.True(t, errors.As(err, &oe))
	assert.Equal(t, []string{"partial-operation", "operation-failed"}, oe.Tags(), "Every rpc-error should be preserved")
	assert.NotNil(t, reply.Data())
}

func TestWarnings(t *testing.T) {
	body := `<ok/>` + testserver.RenderErrors(
		common.RPCError{Type: common.ErrorTypeApplication, Tag: "operation-failed", Severity: common.SeverityWarning, Message: "deprecated"},
	)

	var warnings []string
	trace := &ClientTrace{Warning: func(context, target string, msg string) {
		warnings = append(warnings, context+": "+msg)
	}}

	ts := testserver.NewPipeServer(t).WithRequestHandler(testserver.ReplyRequestHandler(body))
	defer ts.Close()

	ncs := newPipeSessionWithContext(WithClientTrace(context.Background(), trace), t, ts, nil)
	reply, err := ncs.Invoke(context.Background(), "validate", nil, nil)
	assert.NoError(t, err, "Warnings should not fail the request")
	assert.True(t, reply.Ok)
	assert.Len(t, reply.Warnings(), 1)
	assert.Equal(t, []string{"validate: netconf rpc [warning] operation-failed 'deprecated'"}, warnings)
	assert.NoError(t, ncs.Close())

	ts.WithRequestHandler(testserver.ReplyRequestHandler(body))
	ncs = newPipeSession(t, ts, &Config{ErrOnWarning: true})
	defer ncs.Close()
	_, err = ncs.Invoke(context.Background(), "validate", nil, nil)
	assert.True(t, errors.Is(err, common.ErrValidate), "Warnings should fail the request")
}

func TestReplyTimeout(t *testing.T) {
	ts := testserver.NewPipeServer(t).WithRequestHandler(testserver.IgnoreRequestHandler)
	defer ts.Close()

	ncs := newPipeSession(t, ts, &Config{ReplyTimeout: 100 * time.Millisecond})
	defer ncs.Close()

	reply, err := ncs.Invoke(context.Background(), "get", nil, nil)
	assert.Nil(t, reply)
	var ce *common.ChannelError
	assert.True(t, errors.As(err, &ce))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, StateClosed, ncs.State(), "Session should be closed after a timeout")

	_, err = ncs.Invoke(context.Background(), "get", nil, nil)
	assert.Equal(t, common.ErrSessionClosed, err)
}

func TestExpiryAfterReplyKeepsSessionOpen(t *testing.T) {
	ts := testserver.NewPipeServer(t)
	defer ts.Close()

	ncs := newPipeSession(t, ts, nil)
	defer ncs.Close()

	_, err := ncs.Invoke(context.Background(), "get", nil, nil)
	assert.NoError(t, err)

	// A timer firing once the reply has been delivered finds nothing pending.
	answered := &pendingCall{messageID: "101", ch: make(chan callResult, 1)}
	ncs.(*sesImpl).expire(answered, &common.ChannelError{Op: "reply", Err: context.DeadlineExceeded})
	assert.Equal(t, StateOpen, ncs.State())
	assert.Empty(t, answered.ch)

	_, err = ncs.Invoke(context.Background(), "get", nil, nil)
	assert.NoError(t, err)
}

func TestContextCancelled(t *testing.T) {
	ts := testserver.NewPipeServer(t).WithRequestHandler(testserver.IgnoreRequestHandler)
	defer ts.Close()

	ncs := newPipeSession(t, ts, nil)
	defer ncs.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := ncs.Invoke(ctx, "get", nil, nil)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, StateClosed, ncs.State())
}

func TestTransportClosedByServer(t *testing.T) {
	ts := testserver.NewPipeServer(t).WithRequestHandler(testserver.CloseRequestHandler)
	defer ts.Close()

	ncs := newPipeSession(t, ts, nil)
	defer ncs.Close()

	_, err := ncs.Invoke(context.Background(), "get", nil, nil)
	var ce *common.ChannelError
	assert.True(t, errors.As(err, &ce), "Expected channel error, got %v", err)
	assert.Equal(t, "read", ce.Op)
	assert.Equal(t, StateClosed, ncs.State())

	_, err = ncs.Invoke(context.Background(), "get", nil, nil)
	assert.Equal(t, common.ErrSessionClosed, err)
}

func TestMismatchedMessageIDClosesSession(t *testing.T) {
	ts := testserver.NewPipeServer(t).WithRequestHandler(testserver.WrongMessageIDHandler)
	defer ts.Close()

	ncs := newPipeSession(t, ts, nil)
	defer ncs.Close()

	_, err := ncs.Invoke(context.Background(), "get", nil, nil)
	var fe *common.FramingError
	assert.True(t, errors.As(err, &fe), "Expected framing error, got %v", err)
	assert.Contains(t, fe.Reason, "1010")
	assert.Equal(t, StateClosed, ncs.State())
}

func TestAbsentMessageIDAccepted(t *testing.T) {
	ts := testserver.NewPipeServer(t).WithRequestHandler(testserver.NoMessageIDHandler)
	defer ts.Close()

	ncs := newPipeSession(t, ts, nil)
	defer ncs.Close()

	reply, err := ncs.Invoke(context.Background(), "get", nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, "", reply.MessageID)
	assert.True(t, reply.Ok)
}

func TestMalformedReplyClosesSession(t *testing.T) {
	ts := testserver.NewPipeServer(t).WithRequestHandler(func(h *testserver.SessionHandler, req *testserver.Request) {
		_ = h.SendRaw([]byte("\n#5\n<<rpc\n##\n"))
	})
	defer ts.Close()

	ncs := newPipeSession(t, ts, nil)
	defer ncs.Close()

	_, err := ncs.Invoke(context.Background(), "get", nil, nil)
	var fe *common.FramingError
	assert.True(t, errors.As(err, &fe), "Expected framing error, got %v", err)
	assert.Equal(t, StateClosed, ncs.State())
}

func TestLockBookkeeping(t *testing.T) {
	ts := testserver.NewPipeServer(t)
	defer ts.Close()

	ncs := newPipeSession(t, ts, nil)
	defer ncs.Close()
	sh := ts.SessionHandler(ncs.ID())
	ctx := context.Background()

	_, err := ncs.Lock(ctx, "candidate")
	assert.NoError(t, err)
	assert.Equal(t, []string{"candidate"}, ncs.Locks())

	_, err = ncs.Lock(ctx, "candidate")
	var pe *common.PreconditionError
	assert.True(t, errors.As(err, &pe))
	assert.True(t, errors.Is(err, common.ErrLock))
	assert.Equal(t, 1, sh.ReqCount(), "Redundant lock should not be sent")

	_, err = ncs.Unlock(ctx, "candidate")
	assert.NoError(t, err)
	assert.Empty(t, ncs.Locks())

	_, err = ncs.Unlock(ctx, "candidate")
	assert.True(t, errors.As(err, &pe))
	assert.Equal(t, "no lock held by this session", pe.Reason)
	assert.Equal(t, 2, sh.ReqCount(), "Redundant unlock should not be sent")

	_, err = ncs.Lock(ctx, "")
	assert.Error(t, err)
}

func TestGenericInvokeTracksLocks(t *testing.T) {
	ts := testserver.NewPipeServer(t)
	defer ts.Close()

	ncs := newPipeSession(t, ts, nil)
	defer ncs.Close()

	target := rpc.Params{rpc.P("target", rpc.Params{rpc.P("running", true)})}
	_, err := ncs.Invoke(context.Background(), "lock", target, nil)
	assert.NoError(t, err)
	assert.Equal(t, []string{"running"}, ncs.Locks())

	_, err = ncs.Invoke(context.Background(), "unlock", target, nil)
	assert.NoError(t, err)
	assert.Empty(t, ncs.Locks())
}

func TestFailedLockNotRecorded(t *testing.T) {
	ts := testserver.NewPipeServer(t)
	defer ts.Close()

	holder := newPipeSession(t, ts, nil)
	defer holder.Close()
	_, err := holder.Lock(context.Background(), "running")
	assert.NoError(t, err)

	ncs := newPipeSession(t, ts, nil)
	defer ncs.Close()
	_, err = ncs.Lock(context.Background(), "running")
	assert.True(t, common.IsKind(err, common.KindLock))
	assert.Empty(t, ncs.Locks())
}

func TestLenientLocks(t *testing.T) {
	var warnings []string
	trace := &ClientTrace{Warning: func(context, target string, msg string) {
		warnings = append(warnings, context+": "+msg)
	}}

	ts := testserver.NewPipeServer(t)
	defer ts.Close()

	ncs := newPipeSessionWithContext(WithClientTrace(context.Background(), trace), t, ts, &Config{LenientLocks: true})
	defer ncs.Close()

	_, err := ncs.Unlock(context.Background(), "candidate")
	assert.Equal(t, []string{"unlock: candidate: no lock held by this session"}, warnings)
	assert.True(t, common.IsKind(err, common.KindRPC), "Device refusal should be reported")
	assert.Equal(t, 1, ts.SessionHandler(ncs.ID()).ReqCount(), "Unlock should have been forwarded")
}

func TestCloseIsIdempotent(t *testing.T) {
	ts := testserver.NewPipeServer(t)
	defer ts.Close()

	ncs := newPipeSession(t, ts, nil)
	_, err := ncs.Lock(context.Background(), "running")
	assert.NoError(t, err)

	assert.NoError(t, ncs.Close())
	assert.Equal(t, StateClosed, ncs.State())
	assert.Empty(t, ncs.Locks())
	assert.Equal(t, "close-session", ts.LastHandler().LastRequest().Name)

	assert.NoError(t, ncs.Close())
	assert.Equal(t, 2, ts.LastHandler().ReqCount(), "Second close should send nothing")
}

func TestCloseReportsCloseSessionError(t *testing.T) {
	ts := testserver.NewPipeServer(t).WithRequestHandler(testserver.FailingRequestHandler)
	defer ts.Close()

	ncs := newPipeSession(t, ts, nil)
	err := ncs.Close()
	assert.True(t, errors.Is(err, common.ErrRPC))
	assert.Equal(t, StateClosed, ncs.State())
}

func TestCloseAfterTransportFailure(t *testing.T) {
	ts := testserver.NewPipeServer(t).WithRequestHandler(testserver.CloseRequestHandler)
	defer ts.Close()

	ncs := newPipeSession(t, ts, nil)
	_, _ = ncs.Invoke(context.Background(), "get", nil, nil)
	assert.NoError(t, ncs.Close())
}

func TestStateTransitionsTraced(t *testing.T) {
	var (
		mu          sync.Mutex
		transitions []string
	)
	trace := &ClientTrace{StateChange: func(ref string, from, to State) {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, from.String()+"->"+to.String())
	}}

	ts := testserver.NewPipeServer(t)
	defer ts.Close()

	ncs := newPipeSessionWithContext(WithClientTrace(context.Background(), trace), t, ts, nil)
	assert.NoError(t, ncs.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"closed->hello-pending", "hello-pending->open", "open->closing", "closing->closed"}, transitions)
}

func TestConcurrentExecute(t *testing.T) {
	ts := testserver.NewPipeServer(t)
	defer ts.Close()

	ncs := newPipeSession(t, ts, nil)
	defer ncs.Close()

	var g errgroup.Group
	for i := 0; i < 20; i++ {
		i := i
		g.Go(func() error {
			reply, err := ncs.Invoke(context.Background(), "echo", rpc.Params{rpc.P("n", i)}, nil)
			if err != nil {
				return err
			}
			if got := reply.FindElement("data/n").Text(); got != strconv.Itoa(i) {
				return errors.Errorf("reply %s does not match request %d", got, i)
			}
			return nil
		})
	}
	assert.NoError(t, g.Wait())

	ids := map[string]bool{}
	for _, req := range ts.SessionHandler(ncs.ID()).Requests() {
		ids[req.MessageID] = true
	}
	assert.Len(t, ids, 20, "Every request should carry a distinct message-id")
}

func TestSubscribe(t *testing.T) {
	ts := testserver.NewPipeServer(t)
	defer ts.Close()

	ncs := newPipeSession(t, ts, nil)

	nchan := make(chan *common.Notification, 5)
	reply, err := ncs.Subscribe(context.Background(), rpc.Params{rpc.P("stream", "NETCONF")}, nchan)
	assert.NoError(t, err)
	assert.True(t, reply.Ok)

	req := ts.SessionHandler(ncs.ID()).LastRequest()
	assert.Equal(t, "create-subscription", req.Name)
	assert.Equal(t, rpc.Attrs{"xmlns": common.NetconfNotifyNS}, req.Attrs())

	ts.SessionHandler(ncs.ID()).SendNotification(`<netconf-config-change xmlns="urn:ietf:params:xml:ns:yang:ietf-netconf-notifications"/>`)
	n := <-nchan
	assert.Equal(t, "netconf-config-change", n.Name)
	assert.Equal(t, "urn:ietf:params:xml:ns:yang:ietf-netconf-notifications", n.Space)
	assert.NotEmpty(t, n.EventTime)

	assert.NoError(t, ncs.Close())
	_, ok := <-nchan
	assert.False(t, ok, "Notification channel should be closed with the session")
}

func TestNotificationsDroppedWhenChannelFull(t *testing.T) {
	ts := testserver.NewPipeServer(t)
	defer ts.Close()

	ncs := newPipeSession(t, ts, nil)
	defer ncs.Close()

	nchan := make(chan *common.Notification)
	_, err := ncs.Subscribe(context.Background(), nil, nchan)
	assert.NoError(t, err)

	ts.SessionHandler(ncs.ID()).SendNotification(`<event/>`)

	// The reply follows the notification on the stream.
	_, err = ncs.Invoke(context.Background(), "get", nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), ncs.NotificationDropCount())
}

func TestFailedSubscriptionDoesNotRoute(t *testing.T) {
	ts := testserver.NewPipeServer(t).WithRequestHandler(testserver.FailingRequestHandler)
	defer ts.Close()

	ncs := newPipeSession(t, ts, nil)
	defer ncs.Close()

	nchan := make(chan *common.Notification, 1)
	_, err := ncs.Subscribe(context.Background(), nil, nchan)
	assert.Error(t, err)

	ts.SessionHandler(ncs.ID()).SendNotification(`<event/>`)
	_, err = ncs.Invoke(context.Background(), "get", nil, nil)
	assert.NoError(t, err)
	assert.Len(t, nchan, 0)
	assert.Equal(t, uint64(0), ncs.NotificationDropCount())
}

func TestHelloWriteFailure(t *testing.T) {
	closed := make(chan struct{})
	mockt := mocks.NewTransport(t)
	mockt.On("Read", mock.Anything).Run(func(mock.Arguments) { <-closed }).Return(0, io.EOF)
	mockt.On("Write", mock.Anything).Return(0, errors.New("broken pipe"))
	mockt.On("Close").Run(func(mock.Arguments) { close(closed) }).Return(nil).Once()

	s, err := NewSession(context.Background(), mockt, nil)
	assert.Nil(t, s)
	var ce *common.ChannelError
	assert.True(t, errors.As(err, &ce))
	assert.Equal(t, "write hello", ce.Op)
}

func TestRejectedHelloReportedOverWriteFailure(t *testing.T) {
	hello := fmt.Sprintf(`<hello xmlns="%s"><capabilities><capability>urn:ietf:params:netconf:base:2.0</capability>`+
		`</capabilities></hello>]]>]]>`, common.NetconfNS)

	closed := make(chan struct{})
	mockt := mocks.NewTransport(t)
	mockt.On("Read", mock.Anything).Return(func(p []byte) int { return copy(p, hello) }, nil).Once()
	mockt.On("Read", mock.Anything).Run(func(mock.Arguments) { <-closed }).Return(0, io.EOF)
	// The client hello is only refused once the rejected session has closed the transport.
	mockt.On("Write", mock.Anything).Run(func(mock.Arguments) { <-closed }).Return(0, io.ErrClosedPipe)
	mockt.On("Close").Run(func(mock.Arguments) { close(closed) }).Return(nil).Once()

	s, err := NewSession(context.Background(), mockt, nil)
	assert.Nil(t, s)
	var ne *common.NegotiationError
	assert.True(t, errors.As(err, &ne), "Expected negotiation error, got %v", err)
	assert.Equal(t, "no compatible protocol version", ne.Reason)
}
