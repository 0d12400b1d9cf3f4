package rpc

import (
	"strings"

	"github.com/beevik/etree"
	"github.com/damianoneill/ncclient/netconf/common"
	"github.com/pkg/errors"
)

// Request is a NETCONF RPC operation, independent of the message-id it will
// be sent with. A Request is immutable once built and may be sent any number
// of times.
type Request struct {
	// Name is the XML element name of the operation.
	Name string
	op   *etree.Element
}

// NewRequest builds an operation named by name (translated by ElementName)
// with the supplied payload as its content and attrs on the operation element.
func NewRequest(name string, payload interface{}, attrs Attrs) (*Request, error) {
	tag := ElementName(name)
	if tag == "" {
		return nil, errors.New("rpc operation name is empty")
	}
	op := etree.NewElement(tag)
	attrs.applyTo(op)
	if err := appendPayload(op, payload); err != nil {
		return nil, errors.Wrapf(err, "failed to build %s request", tag)
	}
	return &Request{Name: tag, op: op}, nil
}

// MustRequest is like NewRequest, but panics if the request cannot be built.
func MustRequest(name string, payload interface{}, attrs Attrs) *Request {
	r, err := NewRequest(name, payload, attrs)
	if err != nil {
		panic(err)
	}
	return r
}

// FromElement wraps a caller built operation element; the element is copied.
func FromElement(op *etree.Element) *Request {
	op = op.Copy()
	name := op.Tag
	return &Request{Name: name, op: op}
}

// Operation delivers a copy of the operation element.
func (r *Request) Operation() *etree.Element {
	return r.op.Copy()
}

// Attrs delivers the attributes of the operation element.
func (r *Request) Attrs() Attrs {
	if len(r.op.Attr) == 0 {
		return nil
	}
	attrs := Attrs{}
	for _, a := range r.op.Attr {
		attrs[a.FullKey()] = a.Value
	}
	return attrs
}

// Params delivers the content of the operation as parameters.
func (r *Request) Params() Params {
	return paramsOf(r.op)
}

// Target delivers the datastore named by the operation's <target> element,
// or an empty string when there is none.
func (r *Request) Target() string {
	t := r.op.SelectElement("target")
	if t == nil {
		return ""
	}
	if ds := t.ChildElements(); len(ds) > 0 {
		return ds[0].Tag
	}
	return ""
}

// Document delivers the complete <rpc> document carrying messageID.
func (r *Request) Document(messageID string) *etree.Document {
	doc := etree.NewDocument()
	rpc := doc.CreateElement("rpc")
	rpc.CreateAttr("message-id", messageID)
	rpc.CreateAttr("xmlns", common.NetconfNS)
	rpc.AddChild(r.op.Copy())
	return doc
}

// Marshal serializes the <rpc> document carrying messageID.
func (r *Request) Marshal(messageID string) ([]byte, error) {
	return r.Document(messageID).WriteToBytes()
}

// String serializes the operation element.
func (r *Request) String() string {
	doc := etree.NewDocument()
	doc.SetRoot(r.op.Copy())
	s, _ := doc.WriteToString()
	return s
}

// ParseRequest parses a serialized <rpc> message, returning its message-id and
// operation.
func ParseRequest(raw []byte) (string, *Request, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return "", nil, errors.Wrap(err, "failed to parse rpc")
	}
	root := doc.Root()
	if root == nil || root.Tag != "rpc" {
		return "", nil, errors.New("message is not an rpc")
	}
	ops := root.ChildElements()
	if len(ops) == 0 {
		return "", nil, errors.New("rpc has no operation")
	}
	op := ops[0].Copy()
	// The operation inherits the base namespace from <rpc>; drop an explicit
	// declaration of it so that parsed requests compare equal to built ones.
	if a := op.SelectAttr("xmlns"); a != nil && strings.TrimSpace(a.Value) == common.NetconfNS {
		op.RemoveAttr("xmlns")
	}
	return root.SelectAttrValue("message-id", ""), &Request{Name: op.Tag, op: op}, nil
}
