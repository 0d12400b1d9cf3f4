package client

import (
	"context"
	"time"

	"github.com/imdario/mergo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"

	"github.com/damianoneill/ncclient/netconf/common"
	"github.com/damianoneill/ncclient/netconf/rpc"
)

// unique type to prevent assignment.
type clientEventContextKey struct{}

// ContextClientTrace returns the ClientTrace associated with the
// provided context. If none, it returns the no-op hooks. Hooks missing from
// the associated trace are filled in with no-op hooks.
func ContextClientTrace(ctx context.Context) *ClientTrace {
	trace, _ := ctx.Value(clientEventContextKey{}).(*ClientTrace)
	if trace == nil {
		return NoOpLoggingHooks
	}
	resolved := *trace
	_ = mergo.Merge(&resolved, NoOpLoggingHooks)
	return &resolved
}

// WithClientTrace returns a new context based on the provided parent
// ctx. Netconf client requests made with the returned context will use
// the provided trace hooks
func WithClientTrace(ctx context.Context, trace *ClientTrace) context.Context {
	return context.WithValue(ctx, clientEventContextKey{}, trace)
}

// ClientTrace defines a structure for handling trace events.
// Hooks are called synchronously and must not call back into the session.
// Session scoped hooks identify the session by ref, a unique id allocated when
// the session is created.
//
//nolint:golint
type ClientTrace struct {
	// ConnectStart is called when starting to create a netconf connection to a remote server.
	ConnectStart func(target string)

	// ConnectDone is called when the transport connection attempt completes, with err indicating
	// whether it was successful.
	ConnectDone func(target string, err error, d time.Duration)

	// DialStart is called when starting to dial a remote server. clientConfig is nil
	// for transports other than SSH.
	DialStart func(clientConfig *ssh.ClientConfig, target string)

	// DialDone is called when dial completes.
	DialDone func(clientConfig *ssh.ClientConfig, target string, err error, d time.Duration)

	// HelloDone is called when the hello message has been received from the server
	// and the protocol version has been selected.
	HelloDone func(ref string, msg *common.HelloMessage, version string)

	// StateChange is called when the session moves between lifecycle states.
	StateChange func(ref string, from, to State)

	// ConnectionClosed is called after a transport connection has been closed, with
	// err indicating any error condition.
	ConnectionClosed func(target string, err error)

	// ReadStart is called before a read from the underlying transport.
	ReadStart func(buf []byte)

	// ReadDone is called after a read from the underlying transport.
	ReadDone func(buf []byte, c int, err error, d time.Duration)

	// WriteStart is called before a write to the underlying transport.
	WriteStart func(buf []byte)

	// WriteDone is called after a write to the underlying transport.
	WriteDone func(buf []byte, c int, err error, d time.Duration)

	// Error is called after an error condition has been detected.
	Error func(context, target string, err error)

	// Warning is called when a condition is tolerated, such as rpc-errors with
	// severity warning or a redundant lock request forwarded under lenient locking.
	Warning func(context, target string, msg string)

	// NotificationReceived is called when a notification has been received.
	NotificationReceived func(n *common.Notification)

	// NotificationDropped is called when a notification is dropped because the reader is not ready.
	NotificationDropped func(n *common.Notification)

	// ExecuteStart is called before the execution of an rpc request.
	ExecuteStart func(ref string, req *rpc.Request, messageID string)

	// ExecuteDone is called after the execution of an rpc request.
	ExecuteDone func(ref string, req *rpc.Request, messageID string, res *common.Reply, err error, d time.Duration)
}

// DefaultLoggingHooks provides a default logging hook to report errors.
var DefaultLoggingHooks = &ClientTrace{
	Error: func(context, target string, err error) {
		log.WithFields(log.Fields{"context": context, "target": target}).WithError(err).Error("NETCONF-Error")
	},
	Warning: func(context, target string, msg string) {
		log.WithFields(log.Fields{"context": context, "target": target}).Warn("NETCONF-Warning " + msg)
	},
}

// MetricLoggingHooks provides a set of hooks that will log network metrics.
var MetricLoggingHooks = &ClientTrace{
	ConnectDone: func(target string, err error, d time.Duration) {
		log.WithFields(log.Fields{"target": target, "took": d.Milliseconds()}).WithError(err).Info("NETCONF-ConnectDone")
	},
	DialDone: func(clientConfig *ssh.ClientConfig, target string, err error, d time.Duration) {
		log.WithFields(log.Fields{"target": target, "took": d.Milliseconds()}).WithError(err).Info("NETCONF-DialDone")
	},
	ReadDone: func(p []byte, c int, err error, d time.Duration) {
		log.WithFields(log.Fields{"len": c, "took": d.Milliseconds()}).WithError(err).Info("NETCONF-ReadDone")
	},
	WriteDone: func(p []byte, c int, err error, d time.Duration) {
		log.WithFields(log.Fields{"len": c, "took": d.Milliseconds()}).WithError(err).Info("NETCONF-WriteDone")
	},

	Error:   DefaultLoggingHooks.Error,
	Warning: DefaultLoggingHooks.Warning,

	ExecuteDone: func(ref string, req *rpc.Request, messageID string, res *common.Reply, err error, d time.Duration) {
		log.WithFields(log.Fields{"session": ref, "rpc": req.Name, "message-id": messageID, "took": d.Milliseconds()}).
			WithError(err).Info("NETCONF-ExecuteDone")
	},
}

// DiagnosticLoggingHooks provides a set of default diagnostic hooks
var DiagnosticLoggingHooks = &ClientTrace{
	ConnectStart: func(target string) {
		log.WithField("target", target).Info("NETCONF-ConnectStart")
	},
	ConnectDone: MetricLoggingHooks.ConnectDone,
	DialStart: func(clientConfig *ssh.ClientConfig, target string) {
		log.WithField("target", target).Info("NETCONF-DialStart")
	},
	DialDone: MetricLoggingHooks.DialDone,
	HelloDone: func(ref string, msg *common.HelloMessage, version string) {
		log.WithFields(log.Fields{"session": ref, "session-id": msg.SessionID, "version": version, "capabilities": len(msg.Capabilities)}).
			Info("NETCONF-HelloDone")
	},
	StateChange: func(ref string, from, to State) {
		log.WithFields(log.Fields{"session": ref, "from": from, "to": to}).Info("NETCONF-StateChange")
	},
	ConnectionClosed: func(target string, err error) {
		log.WithField("target", target).WithError(err).Info("NETCONF-ConnectionClosed")
	},
	ReadStart: func(p []byte) {
		log.WithField("capacity", len(p)).Info("NETCONF-ReadStart")
	},
	ReadDone: MetricLoggingHooks.ReadDone,
	WriteStart: func(p []byte) {
		log.WithField("len", len(p)).Info("NETCONF-WriteStart")
	},
	WriteDone: MetricLoggingHooks.WriteDone,

	Error:   DefaultLoggingHooks.Error,
	Warning: DefaultLoggingHooks.Warning,

	NotificationReceived: func(n *common.Notification) {
		log.WithField("event", n.Name).Info("NETCONF-NotificationReceived")
	},
	NotificationDropped: func(n *common.Notification) {
		log.WithField("event", n.Name).Info("NETCONF-NotificationDropped")
	},
	ExecuteStart: func(ref string, req *rpc.Request, messageID string) {
		log.WithFields(log.Fields{"session": ref, "rpc": req.Name, "message-id": messageID}).Info("NETCONF-ExecuteStart")
	},
	ExecuteDone: func(ref string, req *rpc.Request, messageID string, res *common.Reply, err error, d time.Duration) {
		log.WithFields(log.Fields{"session": ref, "rpc": req.Name, "message-id": messageID, "req": req.String(), "took": d.Milliseconds()}).
			WithError(err).Info("NETCONF-ExecuteDone")
	},
}

// NoOpLoggingHooks provides set of hooks that do nothing.
var NoOpLoggingHooks = &ClientTrace{
	ConnectStart:     func(target string) {},
	ConnectDone:      func(target string, err error, d time.Duration) {},
	DialStart:        func(clientConfig *ssh.ClientConfig, target string) {},
	DialDone:         func(clientConfig *ssh.ClientConfig, target string, err error, d time.Duration) {},
	HelloDone:        func(ref string, msg *common.HelloMessage, version string) {},
	StateChange:      func(ref string, from, to State) {},
	ConnectionClosed: func(target string, err error) {},
	ReadStart:        func(p []byte) {},
	ReadDone:         func(p []byte, c int, err error, d time.Duration) {},

	WriteStart: func(p []byte) {},
	WriteDone:  func(p []byte, c int, err error, d time.Duration) {},

	Error:                func(context, target string, err error) {},
	Warning:              func(context, target string, msg string) {},
	NotificationReceived: func(n *common.Notification) {},
	NotificationDropped:  func(n *common.Notification) {},
	ExecuteStart:         func(ref string, req *rpc.Request, messageID string) {},
	ExecuteDone:          func(ref string, req *rpc.Request, messageID string, res *common.Reply, err error, d time.Duration) {},
}
