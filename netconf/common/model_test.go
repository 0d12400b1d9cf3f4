package common

import (
	"testing"

	"github.com/beevik/etree"
	assert "github.com/stretchr/testify/require"
)

func TestRPCErrorString(t *testing.T) {

	err := &RPCError{
		Severity: "Severity",
		Message:  "Message",
	}
	assert.Equal(t, "netconf rpc [Severity] 'Message'", err.Error())

	err.Tag = "lock-denied"
	assert.Equal(t, "netconf rpc [Severity] lock-denied 'Message'", err.Error())
}

func TestPeerSupportsChunkedFraming(t *testing.T) {
	assert.False(t, PeerSupportsChunkedFraming([]string{NetconfNS, NetconfNotifyNS, CapBase10}))
	assert.True(t, PeerSupportsChunkedFraming([]string{NetconfNS, NetconfNotifyNS, CapBase11}))
	assert.True(t, PeerSupportsChunkedFraming([]string{"  " + CapBase11 + "\n"}))
}

func TestCapabilities(t *testing.T) {
	caps := NewCapabilities(CapBase10, CapBase10, "", "http://example.com/vendor?module=x&revision=2020-01-01")

	assert.Equal(t, 2, caps.Len())
	assert.True(t, caps.Has(CapBase10))
	assert.False(t, caps.Has(CapBase11))
	assert.True(t, caps.Has("http://example.com/vendor"), "query parameters are not significant")

	list := caps.List()
	list[0] = "mutated"
	assert.True(t, caps.Has(CapBase10), "List delivers a copy")
}

func TestParseReply(t *testing.T) {
	raw := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<nc:rpc-reply xmlns:nc="urn:ietf:params:xml:ns:netconf:base:1.0" message-id="101">
  <nc:rpc-error>
    <nc:error-type>application</nc:error-type>
    <nc:error-tag>invalid-value</nc:error-tag>
    <nc:error-severity>warning</nc:error-severity>
    <nc:error-message>deprecated</nc:error-message>
  </nc:rpc-error>
  <nc:rpc-error>
    <nc:error-type>protocol</nc:error-type>
    <nc:error-tag>lock-denied</nc:error-tag>
    <nc:error-severity>error</nc:error-severity>
    <nc:error-path>/config</nc:error-path>
    <nc:error-message>locked by 7</nc:error-message>
    <nc:error-info><nc:session-id>7</nc:session-id></nc:error-info>
  </nc:rpc-error>
</nc:rpc-reply>`)

	reply, err := ParseReply(raw)
	assert.NoError(t, err)
	assert.Equal(t, "101", reply.MessageID)
	assert.False(t, reply.Ok)
	assert.Len(t, reply.Errors, 2)
	assert.Len(t, reply.Failures(), 1)
	assert.Len(t, reply.Warnings(), 1)

	failure := reply.Failures()[0]
	assert.Equal(t, "protocol", failure.Type)
	assert.Equal(t, "lock-denied", failure.Tag)
	assert.Equal(t, "/config", failure.Path)
	assert.Equal(t, "locked by 7", failure.Message)
	assert.Equal(t, `<nc:session-id>7</nc:session-id>`, failure.Info)
	assert.Nil(t, reply.Data())
}

func TestParseReplyData(t *testing.T) {
	reply, err := ParseReply([]byte(`<rpc-reply message-id="7"><data><top><leaf>1</leaf></top></data></rpc-reply>`))
	assert.NoError(t, err)
	assert.Equal(t, "data", reply.Data().Tag)
	assert.Equal(t, `<top><leaf>1</leaf></top>`, reply.DataXML())
	assert.Equal(t, "1", reply.FindElement("data/top/leaf").Text())
	assert.Len(t, reply.FindElements("//leaf"), 1)
}

func TestParseReplyVendorPayload(t *testing.T) {
	reply, err := ParseReply([]byte(`<rpc-reply><chassis-inventory><chassis>MX</chassis></chassis-inventory></rpc-reply>`))
	assert.NoError(t, err)
	assert.Equal(t, "", reply.MessageID)
	assert.Equal(t, "chassis-inventory", reply.Data().Tag)
	assert.Equal(t, `<chassis-inventory><chassis>MX</chassis></chassis-inventory>`, reply.DataXML())
}

func TestParseReplyOk(t *testing.T) {
	reply, err := ParseReply([]byte(`<rpc-reply message-id="1"><ok/></rpc-reply>`))
	assert.NoError(t, err)
	assert.True(t, reply.Ok)
	assert.Nil(t, reply.Data())
	assert.Equal(t, "", reply.DataXML())
}

func TestParseReplyFailures(t *testing.T) {
	_, err := ParseReply([]byte(`<<rpc-reply>`))
	assert.Error(t, err)

	_, err = ParseReply([]byte(`<hello/>`))
	assert.Error(t, err)
}

func TestParseNotification(t *testing.T) {
	n, err := ParseNotification([]byte(`<notification xmlns="urn:ietf:params:xml:ns:netconf:notification:1.0">` +
		`<eventTime>2026-10-19T10:00:00Z</eventTime>` +
		`<netconf-session-start xmlns="urn:ietf:params:xml:ns:yang:ietf-netconf-notifications"><username>u</username></netconf-session-start>` +
		`</notification>`))
	assert.NoError(t, err)
	assert.Equal(t, "2026-10-19T10:00:00Z", n.EventTime)
	assert.Equal(t, "netconf-session-start", n.Name)
	assert.Equal(t, "urn:ietf:params:xml:ns:yang:ietf-netconf-notifications", n.Space)
	assert.Contains(t, n.Event, "<username>u</username>")

	_, err = ParseNotification([]byte(`<rpc-reply/>`))
	assert.Error(t, err)
}

func TestInnerXML(t *testing.T) {
	e := etree.NewElement("data")
	e.CreateText("a < b ")
	e.CreateCData("<raw/>")
	e.CreateElement("item").SetText("1")

	assert.Equal(t, "a &lt; b <![CDATA[<raw/>]]><item>1</item>", InnerXML(e))
	assert.Equal(t, "<data>a &lt; b <![CDATA[<raw/>]]><item>1</item></data>", ElementXML(e))
	assert.Equal(t, "", InnerXML(etree.NewElement("ok")))
}
