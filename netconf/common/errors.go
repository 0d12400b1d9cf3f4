package common

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrSessionClosed is returned by operations attempted on a session that is not open.
var ErrSessionClosed = errors.New("netconf session is not open")

// ErrorKind classifies a device-reported failure by the operation that provoked it.
type ErrorKind int

// Operation error kinds.
const (
	KindRPC ErrorKind = iota
	KindLock
	KindEdit
	KindValidate
	KindCommit
	KindDiscard
)

func (k ErrorKind) String() string {
	switch k {
	case KindLock:
		return "lock"
	case KindEdit:
		return "edit"
	case KindValidate:
		return "validate"
	case KindCommit:
		return "commit"
	case KindDiscard:
		return "discard"
	default:
		return "rpc"
	}
}

// Sentinels matched by errors.Is against an *OperationError of the corresponding kind.
var (
	ErrRPC      = errors.New("netconf rpc failed")
	ErrLock     = errors.New("netconf lock failed")
	ErrEdit     = errors.New("netconf edit failed")
	ErrValidate = errors.New("netconf validate failed")
	ErrCommit   = errors.New("netconf commit failed")
	ErrDiscard  = errors.New("netconf discard failed")
)

var kindSentinels = map[ErrorKind]error{
	KindRPC:      ErrRPC,
	KindLock:     ErrLock,
	KindEdit:     ErrEdit,
	KindValidate: ErrValidate,
	KindCommit:   ErrCommit,
	KindDiscard:  ErrDiscard,
}

// OperationError reports the rpc-errors returned by the server for an operation.
type OperationError struct {
	Kind ErrorKind
	// Operation is the name of the RPC element that failed, e.g. "edit-config".
	Operation string
	// Errors holds every rpc-error of the reply; at least one has severity "error"
	// (or, when warnings are treated as errors, any severity).
	Errors []RPCError
	// Reply is the reply that carried the errors.
	Reply *Reply
}

func (e *OperationError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("netconf %s failed", e.Operation)
	}
	first := e.Errors[0]
	for _, re := range e.Errors {
		if re.Severity == SeverityError {
			first = re
			break
		}
	}
	msg := fmt.Sprintf("netconf %s failed: %s", e.Operation, first.Error())
	if len(e.Errors) > 1 {
		msg += fmt.Sprintf(" (and %d more)", len(e.Errors)-1)
	}
	return msg
}

// Is reports whether target is the sentinel of the error's kind.
func (e *OperationError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// Tags delivers the error-tag of every rpc-error.
func (e *OperationError) Tags() []string {
	tags := make([]string, 0, len(e.Errors))
	for _, re := range e.Errors {
		tags = append(tags, re.Tag)
	}
	return tags
}

// HasTag reports whether any rpc-error carries the given error-tag, e.g. "lock-denied".
func (e *OperationError) HasTag(tag string) bool {
	for _, re := range e.Errors {
		if re.Tag == tag {
			return true
		}
	}
	return false
}

// IsKind reports whether err is (or wraps) an OperationError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var oe *OperationError
	return errors.As(err, &oe) && oe.Kind == kind
}

// ChannelError reports a failure of the underlying transport: connection,
// authentication, i/o or a reply that never arrived.
type ChannelError struct {
	Op  string
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("netconf channel %s: %v", e.Op, e.Err)
}

// Unwrap delivers the underlying error.
func (e *ChannelError) Unwrap() error { return e.Err }

// Cause delivers the underlying error, for github.com/pkg/errors.
func (e *ChannelError) Cause() error { return e.Err }

// FramingError reports a malformed message boundary. Alignment with the byte
// stream cannot be recovered, so it is fatal to the session.
type FramingError struct {
	Mode   string
	Reason string
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("netconf framing (%s): %s", e.Mode, e.Reason)
}

// NegotiationError reports a failed hello exchange.
type NegotiationError struct {
	Reason string
	Err    error
}

func (e *NegotiationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("netconf hello exchange failed: %s: %v", e.Reason, e.Err)
	}
	return "netconf hello exchange failed: " + e.Reason
}

// Unwrap delivers the underlying error.
func (e *NegotiationError) Unwrap() error { return e.Err }

// PreconditionError reports a request rejected locally, before anything was
// sent, because the session state makes it obviously invalid.
type PreconditionError struct {
	Operation string
	Datastore string
	Reason    string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("netconf %s %s: %s", e.Operation, e.Datastore, e.Reason)
}

// Is matches ErrLock, as lock bookkeeping is the only precondition enforced locally.
func (e *PreconditionError) Is(target error) bool {
	return target == ErrLock && (e.Operation == "lock" || e.Operation == "unlock")
}

// Errors flattens the rpc-errors of err for display, one per line.
func Errors(err error) string {
	var oe *OperationError
	if !errors.As(err, &oe) {
		if err == nil {
			return ""
		}
		return err.Error()
	}
	lines := make([]string, 0, len(oe.Errors))
	for i := range oe.Errors {
		lines = append(lines, oe.Errors[i].Error())
	}
	return strings.Join(lines, "\n")
}
