package common

import (
	"strings"

	"github.com/beevik/etree"
	"github.com/pkg/errors"
)

// Defines the values describing netconf messages, capabilities and replies.

// Define netconf URNs.
const (
	NetconfNS          = "urn:ietf:params:xml:ns:netconf:base:1.0"
	NetconfNotifyNS    = "urn:ietf:params:xml:ns:netconf:notification:1.0"
	NetconfMonitorNS   = "urn:ietf:params:xml:ns:yang:ietf-netconf-monitoring"
	CapBase10          = "urn:ietf:params:netconf:base:1.0"
	CapBase11          = "urn:ietf:params:netconf:base:1.1"
	CapXpath           = "urn:ietf:params:netconf:capability:xpath:1.0"
	CapCandidate       = "urn:ietf:params:netconf:capability:candidate:1.0"
	CapValidate10      = "urn:ietf:params:netconf:capability:validate:1.0"
	CapValidate11      = "urn:ietf:params:netconf:capability:validate:1.1"
	CapConfirmedCommit = "urn:ietf:params:netconf:capability:confirmed-commit:1.1"
	CapNotification    = "urn:ietf:params:netconf:capability:notification:1.0"
)

// Protocol versions selected by the hello exchange.
const (
	Version10 = "1.0"
	Version11 = "1.1"
)

// DefaultCapabilities sets the default capabilities of the client library
var DefaultCapabilities = []string{
	CapBase10,
	CapBase11,
}

// NoChunkedCodecCapabilities omits the chunked codec capability.
var NoChunkedCodecCapabilities = []string{
	CapBase10,
}

// Capabilities is an immutable set of capability URIs advertised by a peer.
type Capabilities struct {
	uris []string
	set  map[string]struct{}
}

// NewCapabilities delivers a capability set holding the supplied URIs, in
// order of first appearance. Surrounding whitespace is ignored.
func NewCapabilities(uris ...string) Capabilities {
	c := Capabilities{set: make(map[string]struct{}, len(uris))}
	for _, uri := range uris {
		uri = strings.TrimSpace(uri)
		if _, ok := c.set[uri]; ok || uri == "" {
			continue
		}
		c.set[uri] = struct{}{}
		c.uris = append(c.uris, uri)
	}
	return c
}

// Has reports whether the set contains uri. Parameters following '?' in an
// advertised capability (e.g. "...?module=x&revision=y") are not significant.
func (c Capabilities) Has(uri string) bool {
	if _, ok := c.set[uri]; ok {
		return true
	}
	for _, u := range c.uris {
		if i := strings.IndexByte(u, '?'); i > 0 && u[:i] == uri {
			return true
		}
	}
	return false
}

// List delivers a copy of the URIs in the set.
func (c Capabilities) List() []string {
	return append([]string(nil), c.uris...)
}

// Len delivers the number of URIs in the set.
func (c Capabilities) Len() int {
	return len(c.uris)
}

// PeerSupportsChunkedFraming returns true if capability list indicates support for chunked framing.
func PeerSupportsChunkedFraming(caps []string) bool {
	return NewCapabilities(caps...).Has(CapBase11)
}

// HelloMessage defines the content of a hello message sent/received during session negotiation.
type HelloMessage struct {
	Capabilities []string
	// SessionID is only meaningful when HasSessionID is true; servers may omit it.
	SessionID    uint64
	HasSessionID bool
}

// Reply is a parsed rpc-reply message.
type Reply struct {
	// MessageID is the message-id echoed by the server, empty if it was omitted.
	MessageID string
	// Ok is true if the reply carried an <ok/> element.
	Ok bool
	// Errors holds every <rpc-error> element in the reply, whatever its severity.
	Errors []RPCError
	// Doc is the complete reply document, rooted at <rpc-reply>.
	Doc *etree.Document
	// Raw is the message as received.
	Raw []byte
}

// ParseReply parses a complete rpc-reply message.
func ParseReply(raw []byte) (*Reply, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, errors.Wrap(err, "malformed rpc-reply")
	}
	return ReplyFromDocument(doc, raw)
}

// ReplyFromDocument builds a Reply from an already parsed message.
func ReplyFromDocument(doc *etree.Document, raw []byte) (*Reply, error) {
	root := doc.Root()
	if root == nil || root.Tag != "rpc-reply" {
		return nil, errors.Errorf("unexpected message, wanted rpc-reply: %.64s", raw)
	}

	r := &Reply{
		MessageID: root.SelectAttrValue("message-id", ""),
		Ok:        root.SelectElement("ok") != nil,
		Doc:       doc,
		Raw:       raw,
	}
	for _, e := range root.SelectElements("rpc-error") {
		r.Errors = append(r.Errors, parseRPCError(e))
	}
	return r, nil
}

// Root delivers the <rpc-reply> element.
func (r *Reply) Root() *etree.Element {
	if r == nil || r.Doc == nil {
		return nil
	}
	return r.Doc.Root()
}

// Data delivers the reply payload: the <data> element if present, otherwise the
// first child that is neither <ok> nor <rpc-error> (as used by vendor RPCs that
// reply with their own element). Nil if the reply carries no payload.
func (r *Reply) Data() *etree.Element {
	root := r.Root()
	if root == nil {
		return nil
	}
	if data := root.SelectElement("data"); data != nil {
		return data
	}
	for _, c := range root.ChildElements() {
		if c.Tag != "ok" && c.Tag != "rpc-error" {
			return c
		}
	}
	return nil
}

// DataXML delivers the serialized content of the <data> element, or the
// serialized payload element for replies without <data>.
func (r *Reply) DataXML() string {
	data := r.Data()
	if data == nil {
		return ""
	}
	if data.Tag == "data" {
		return InnerXML(data)
	}
	return ElementXML(data)
}

// FindElement queries the reply document with an etree path, relative to <rpc-reply>.
func (r *Reply) FindElement(path string) *etree.Element {
	if root := r.Root(); root != nil {
		return root.FindElement(path)
	}
	return nil
}

// FindElements queries the reply document with an etree path, relative to <rpc-reply>.
func (r *Reply) FindElements(path string) []*etree.Element {
	if root := r.Root(); root != nil {
		return root.FindElements(path)
	}
	return nil
}

// Failures delivers the rpc-errors with severity "error".
func (r *Reply) Failures() []RPCError {
	return r.withSeverity(func(s string) bool { return s == SeverityError })
}

// Warnings delivers the rpc-errors with a severity other than "error".
func (r *Reply) Warnings() []RPCError {
	return r.withSeverity(func(s string) bool { return s != SeverityError })
}

func (r *Reply) withSeverity(match func(string) bool) (errs []RPCError) {
	if r == nil {
		return nil
	}
	for _, e := range r.Errors {
		if match(e.Severity) {
			errs = append(errs, e)
		}
	}
	return
}

// Notification defines a specific notification event.
type Notification struct {
	// Name of the event element.
	Name string
	// Space holds the namespace URI of the event element.
	Space     string
	EventTime string
	// Event holds the serialized event element.
	Event string
	// Doc is the complete notification document.
	Doc *etree.Document
}

// ParseNotification parses a complete notification message.
func ParseNotification(raw []byte) (*Notification, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, errors.Wrap(err, "malformed notification")
	}
	return NotificationFromDocument(doc)
}

// NotificationFromDocument builds a Notification from an already parsed message.
func NotificationFromDocument(doc *etree.Document) (*Notification, error) {
	root := doc.Root()
	if root == nil || root.Tag != "notification" {
		return nil, errors.New("unexpected message, wanted notification")
	}
	n := &Notification{Doc: doc}
	if et := root.SelectElement("eventTime"); et != nil {
		n.EventTime = strings.TrimSpace(et.Text())
	}
	for _, c := range root.ChildElements() {
		if c.Tag != "eventTime" {
			n.Name = c.Tag
			n.Space = c.NamespaceURI()
			n.Event = ElementXML(c)
			break
		}
	}
	return n, nil
}

// ElementXML serializes e (and its descendants).
func ElementXML(e *etree.Element) string {
	doc := etree.NewDocument()
	doc.SetRoot(e.Copy())
	s, _ := doc.WriteToString()
	return s
}

// InnerXML serializes the content of e, without e's own start and end tags.
func InnerXML(e *etree.Element) string {
	var b strings.Builder
	for _, t := range e.Child {
		switch t := t.(type) {
		case *etree.Element:
			b.WriteString(ElementXML(t))
		case *etree.CharData:
			doc := etree.NewDocument()
			if t.IsCData() {
				doc.AddChild(etree.NewCData(t.Data))
			} else {
				doc.AddChild(etree.NewText(t.Data))
			}
			s, _ := doc.WriteToString()
			b.WriteString(s)
		}
	}
	return strings.TrimSpace(b.String())
}
