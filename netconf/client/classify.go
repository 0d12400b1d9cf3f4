package client

import (
	"github.com/damianoneill/ncclient/netconf/common"
	"github.com/damianoneill/ncclient/netconf/rpc"
)

// classify maps a reply to an error of the operation's kind when it carries any
// rpc-error with severity error, or any rpc-error at all when errOnWarning is set.
// All rpc-errors of the reply are preserved on the error.
func classify(operation string, b rpc.Behavior, reply *common.Reply, errOnWarning bool) error {
	failed := len(reply.Failures()) > 0 || (errOnWarning && len(reply.Errors) > 0)
	if !failed {
		return nil
	}
	return &common.OperationError{Kind: b.Kind, Operation: operation, Errors: reply.Errors, Reply: reply}
}
