package common

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// Values of the error-severity field.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Values of the error-type field.
const (
	ErrorTypeTransport   = "transport"
	ErrorTypeRPC         = "rpc"
	ErrorTypeProtocol    = "protocol"
	ErrorTypeApplication = "application"
)

// RPCError defines an error reply to a RPC request
type RPCError struct {
	Type     string
	Tag      string
	Severity string
	AppTag   string
	Path     string
	Message  string
	// Info holds the serialized content of the error-info element.
	Info string
}

// Error generates a string representation of the RPC error
func (re *RPCError) Error() string {
	if re.Tag == "" {
		return fmt.Sprintf("netconf rpc [%s] '%s'", re.Severity, re.Message)
	}
	return fmt.Sprintf("netconf rpc [%s] %s '%s'", re.Severity, re.Tag, re.Message)
}

func parseRPCError(e *etree.Element) RPCError {
	re := RPCError{
		Type:     childText(e, "error-type"),
		Tag:      childText(e, "error-tag"),
		Severity: childText(e, "error-severity"),
		AppTag:   childText(e, "error-app-tag"),
		Path:     childText(e, "error-path"),
		Message:  childText(e, "error-message"),
	}
	if info := e.SelectElement("error-info"); info != nil {
		re.Info = InnerXML(info)
	}
	return re
}

func childText(e *etree.Element, tag string) string {
	if c := e.SelectElement(tag); c != nil {
		return strings.TrimSpace(c.Text())
	}
	return ""
}
