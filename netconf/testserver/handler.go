package testserver

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/beevik/etree"
	assert "github.com/stretchr/testify/require"

	"github.com/damianoneill/ncclient/netconf/common"
	"github.com/damianoneill/ncclient/netconf/common/codec"
	"github.com/damianoneill/ncclient/netconf/rpc"
)

// Request represents an RPC request received from a client.
type Request struct {
	*rpc.Request
	MessageID string
	// Raw is the message as received.
	Raw string
}

// RequestHandler is a function type that will be invoked by the session handler to handle an RPC
// request.
type RequestHandler func(h *SessionHandler, req *Request)

// SessionHandler represents the server side of an active netconf session.
type SessionHandler struct {
	server *TestNCServer

	// t is the testing context used for handling unexpected errors.
	t assert.TestingT

	// ch is the underlying transport connection.
	ch io.ReadWriteCloser

	// The codecs used to handle client i/o
	enc *codec.Encoder
	dec *codec.Decoder

	// Serialises access to encoder (avoiding contention between sending notifications and request responses).
	encLock sync.Mutex

	// The capabilities advertised to the client.
	capabilities []string
	// The session id to be reported to the client.
	sid uint64

	// Closed once the server hello has been written.
	helloSent chan struct{}
	// Closed once the client hello has been received.
	started chan struct{}

	// The HelloMessage sent by the connecting client.
	ClientHello *common.HelloMessage

	mu       sync.Mutex
	requests []*Request
}

func newSessionHandler(server *TestNCServer, sid uint64, capabilities []string) *SessionHandler {
	return &SessionHandler{
		server:       server,
		t:            server.t,
		sid:          sid,
		capabilities: capabilities,
		helloSent:    make(chan struct{}),
		started:      make(chan struct{}),
	}
}

// Handle establishes a Netconf server session on a newly-connected channel,
// returning when the channel is closed.
func (h *SessionHandler) Handle(ch io.ReadWriteCloser) {
	if h.ch == nil {
		h.ch = ch
	}
	h.dec = codec.NewDecoder(ch)
	h.enc = codec.NewEncoder(ch)

	done := make(chan struct{})
	go h.handleIncomingMessages(done)

	h.sendHello()

	<-done
}

// ID delivers the session id allocated to the session.
func (h *SessionHandler) ID() uint64 {
	return h.sid
}

// WaitStart blocks until the client hello has been received, or timeout expires.
func (h *SessionHandler) WaitStart(timeout time.Duration) bool {
	select {
	case <-h.started:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Requests delivers the requests received by the session.
func (h *SessionHandler) Requests() []*Request {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*Request{}, h.requests...)
}

// ReqCount delivers the number of requests received by the session.
func (h *SessionHandler) ReqCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.requests)
}

// LastRequest delivers the most recent request, nil if none has been received.
func (h *SessionHandler) LastRequest() *Request {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.requests) == 0 {
		return nil
	}
	return h.requests[len(h.requests)-1]
}

// Reply sends an rpc-reply for req with the supplied body.
func (h *SessionHandler) Reply(req *Request, body string) {
	h.ReplyWithID(req.MessageID, body)
}

// ReplyWithID sends an rpc-reply carrying messageID, which is omitted when empty.
func (h *SessionHandler) ReplyWithID(messageID, body string) {
	var attrs string
	if messageID != "" {
		attrs = fmt.Sprintf(` message-id="%s"`, messageID)
	}
	msg := fmt.Sprintf(`<rpc-reply xmlns="%s"%s>%s</rpc-reply>`, common.NetconfNS, attrs, body)
	// The client may legitimately have gone away.
	_ = h.encode([]byte(msg))
}

// ReplyOK sends an <ok/> reply for req.
func (h *SessionHandler) ReplyOK(req *Request) {
	h.Reply(req, "<ok/>")
}

// ReplyData sends a reply for req holding data in a <data> element.
func (h *SessionHandler) ReplyData(req *Request, data string) {
	h.Reply(req, "<data>"+data+"</data>")
}

// ReplyErrors sends a reply for req carrying the supplied rpc-errors.
func (h *SessionHandler) ReplyErrors(req *Request, errs ...common.RPCError) {
	h.Reply(req, RenderErrors(errs...))
}

// SendNotification sends a notification message with the supplied event to the client.
func (h *SessionHandler) SendNotification(event string) *SessionHandler {
	msg := fmt.Sprintf(`<notification xmlns="%s"><eventTime>%s</eventTime>%s</notification>`,
		common.NetconfNotifyNS, time.Now().UTC().Format(time.RFC3339), event)
	assert.NoError(h.t, h.encode([]byte(msg)), "Failed to send server notification")
	return h
}

// SendRaw writes b to the client without framing.
func (h *SessionHandler) SendRaw(b []byte) error {
	h.encLock.Lock()
	defer h.encLock.Unlock()
	_, err := h.ch.Write(b)
	return err
}

// Close initiates session tear-down by closing the underlying transport channel.
func (h *SessionHandler) Close() {
	_ = h.ch.Close()
}

func (h *SessionHandler) sendHello() {
	defer close(h.helloSent)

	opts := h.server.helloOptions()
	switch {
	case opts.none:
		return
	case opts.raw != "":
		_ = h.encode([]byte(opts.raw))
		return
	}

	doc := etree.NewDocument()
	hello := doc.CreateElement("hello")
	hello.CreateAttr("xmlns", common.NetconfNS)
	caps := hello.CreateElement("capabilities")
	for _, c := range h.capabilities {
		caps.CreateElement("capability").SetText(c)
	}
	if !opts.omitSessionID {
		hello.CreateElement("session-id").SetText(fmt.Sprint(h.sid))
	}
	b, _ := doc.WriteToBytes()
	_ = h.encode(b)
}

func (h *SessionHandler) handleIncomingMessages(done chan struct{}) {
	defer close(done)

	// Loop, looking for a hello then rpc messages.
	for {
		msg, err := h.dec.ReadMessage()
		if err != nil {
			return
		}
		if h.ClientHello == nil {
			if !h.handleHello(msg) {
				return
			}
			continue
		}
		h.handleRPC(msg)
	}
}

func (h *SessionHandler) handleHello(msg []byte) bool {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(msg); err != nil || doc.Root() == nil || doc.Root().Tag != "hello" {
		return false
	}
	hello := &common.HelloMessage{}
	for _, c := range doc.FindElements("/hello/capabilities/capability") {
		hello.Capabilities = append(hello.Capabilities, strings.TrimSpace(c.Text()))
	}
	h.ClientHello = hello

	// The server hello must have been framed before the framing changes.
	<-h.helloSent
	if common.PeerSupportsChunkedFraming(hello.Capabilities) && common.PeerSupportsChunkedFraming(h.capabilities) {
		h.encLock.Lock()
		codec.EnableChunkedFraming(h.dec, h.enc)
		h.encLock.Unlock()
	}
	close(h.started)
	return true
}

func (h *SessionHandler) handleRPC(msg []byte) {
	id, r, err := rpc.ParseRequest(msg)
	if err != nil {
		h.ReplyWithID("", RenderErrors(common.RPCError{
			Type: common.ErrorTypeRPC, Tag: "malformed-message", Severity: common.SeverityError, Message: err.Error(),
		}))
		return
	}
	req := &Request{Request: r, MessageID: id, Raw: string(msg)}

	h.mu.Lock()
	h.requests = append(h.requests, req)
	h.mu.Unlock()

	h.server.nextReqHandler()(h, req)
}

func (h *SessionHandler) encode(b []byte) error {
	h.encLock.Lock()
	defer h.encLock.Unlock()
	return h.enc.EncodeBytes(b)
}

// RenderErrors serializes rpc-error elements.
func RenderErrors(errs ...common.RPCError) string {
	var b strings.Builder
	for _, e := range errs {
		re := etree.NewElement("rpc-error")
		addText(re, "error-type", e.Type)
		addText(re, "error-tag", e.Tag)
		addText(re, "error-severity", e.Severity)
		addText(re, "error-app-tag", e.AppTag)
		addText(re, "error-path", e.Path)
		addText(re, "error-message", e.Message)
		if e.Info != "" {
			info := re.CreateElement("error-info")
			if f, err := rpc.ParseFragment(e.Info); err == nil {
				for _, c := range f.Elements() {
					info.AddChild(c)
				}
			}
		}
		b.WriteString(common.ElementXML(re))
	}
	return b.String()
}

func addText(parent *etree.Element, tag, text string) {
	if text != "" {
		parent.CreateElement(tag).SetText(text)
	}
}

// EchoRequestHandler responds to a request with a reply containing a data element holding
// the body of the request.
var EchoRequestHandler = func(h *SessionHandler, req *Request) {
	h.ReplyData(req, common.InnerXML(req.Operation()))
}

// OkRequestHandler responds to a request with <ok/>.
var OkRequestHandler = func(h *SessionHandler, req *Request) {
	h.ReplyOK(req)
}

// FailingRequestHandler replies to a request with an error.
var FailingRequestHandler = func(h *SessionHandler, req *Request) {
	h.ReplyErrors(req, common.RPCError{
		Type: common.ErrorTypeApplication, Tag: "operation-failed", Severity: common.SeverityError, Message: "oops",
	})
}

// CloseRequestHandler closes the transport channel on request receipt.
var CloseRequestHandler = func(h *SessionHandler, req *Request) {
	h.Close()
}

// IgnoreRequestHandler does nothing on receipt of a request.
var IgnoreRequestHandler = func(h *SessionHandler, req *Request) {}

// WrongMessageIDHandler replies with a message-id that does not match the request.
var WrongMessageIDHandler = func(h *SessionHandler, req *Request) {
	h.ReplyWithID(req.MessageID+"0", "<ok/>")
}

// NoMessageIDHandler replies without a message-id.
var NoMessageIDHandler = func(h *SessionHandler, req *Request) {
	h.ReplyWithID("", "<ok/>")
}

// ErrorRequestHandler delivers a handler replying with the supplied rpc-errors.
func ErrorRequestHandler(errs ...common.RPCError) RequestHandler {
	return func(h *SessionHandler, req *Request) {
		h.ReplyErrors(req, errs...)
	}
}

// ReplyRequestHandler delivers a handler replying with the supplied body.
func ReplyRequestHandler(body string) RequestHandler {
	return func(h *SessionHandler, req *Request) {
		h.Reply(req, body)
	}
}
