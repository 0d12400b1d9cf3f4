package client

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/damianoneill/ncclient/netconf/common"
	"github.com/damianoneill/ncclient/netconf/common/codec/rfc6242"
)

// buildHello delivers the client hello advertising caps.
func buildHello(caps []string) *etree.Document {
	doc := etree.NewDocument()
	hello := doc.CreateElement("hello")
	hello.CreateAttr("xmlns", common.NetconfNS)
	capabilities := hello.CreateElement("capabilities")
	for _, c := range caps {
		capabilities.CreateElement("capability").SetText(c)
	}
	return doc
}

// parseHello extracts the capabilities and session-id advertised by a server hello.
func parseHello(doc *etree.Document) (*common.HelloMessage, error) {
	root := doc.Root()
	if root == nil || root.Tag != "hello" {
		return nil, &common.NegotiationError{Reason: "expected hello message"}
	}
	if ns := root.NamespaceURI(); ns != common.NetconfNS {
		return nil, &common.NegotiationError{Reason: "hello is not in the netconf base namespace: " + ns}
	}

	hello := &common.HelloMessage{}
	if caps := root.SelectElement("capabilities"); caps != nil {
		for _, c := range caps.SelectElements("capability") {
			if uri := strings.TrimSpace(c.Text()); uri != "" {
				hello.Capabilities = append(hello.Capabilities, uri)
			}
		}
	}
	if len(hello.Capabilities) == 0 {
		return nil, &common.NegotiationError{Reason: "hello carries no capabilities"}
	}

	if sid := root.SelectElement("session-id"); sid != nil {
		id, err := strconv.ParseUint(strings.TrimSpace(sid.Text()), 10, 64)
		if err != nil || id == 0 {
			return nil, &common.NegotiationError{Reason: "invalid session-id " + strconv.Quote(sid.Text())}
		}
		hello.SessionID = id
		hello.HasSessionID = true
	}
	return hello, nil
}

// selectVersion chooses the protocol version and framing supported by both peers.
func selectVersion(client, server common.Capabilities) (string, rfc6242.Mode, error) {
	switch {
	case client.Has(common.CapBase11) && server.Has(common.CapBase11):
		return common.Version11, rfc6242.Chunked, nil
	case client.Has(common.CapBase10) && server.Has(common.CapBase10):
		return common.Version10, rfc6242.EndOfMessage, nil
	default:
		return "", rfc6242.EndOfMessage, &common.NegotiationError{Reason: "no compatible protocol version"}
	}
}
