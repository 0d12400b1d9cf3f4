package ops

import (
	"context"
	"encoding/xml"
	"testing"

	"github.com/pkg/errors"
	assert "github.com/stretchr/testify/require"

	"github.com/damianoneill/ncclient/netconf/client"
	"github.com/damianoneill/ncclient/netconf/common"
	"github.com/damianoneill/ncclient/netconf/rpc"
	"github.com/damianoneill/ncclient/netconf/testserver"
)

const (
	hostnameR1 = `<system><hostname>r1</hostname></system>`
	hostnameR2 = `<system><hostname>r2</hostname></system>`
)

type system struct {
	XMLName  xml.Name `xml:"system"`
	Hostname string   `xml:"hostname"`
}

func newOpSession(t *testing.T, ts *testserver.TestNCServer) OpSession {
	s, err := client.NewSession(context.Background(), ts.Pipe(), nil)
	assert.NoError(t, err, "Failed to create session")
	t.Cleanup(func() { _ = s.Close() })
	return Wrap(s)
}

func lastRequest(ts *testserver.TestNCServer, s OpSession) string {
	return ts.SessionHandler(s.ID()).LastRequest().String()
}

func TestGetRequests(t *testing.T) {
	tests := []struct {
		name   string
		op     string
		source string
		filter interface{}
		want   string
	}{
		{"get without filter", "get", "", nil, `<get/>`},
		{"empty string filter", "get", "", "", `<get/>`},
		{"get-config without filter", "get-config", RunningCfg, nil, `<get-config><source><running/></source></get-config>`},
		{
			"subtree string", "get-config", CandidateCfg, `<system/>`,
			`<get-config><source><candidate/></source><filter type="subtree"><system/></filter></get-config>`,
		},
		{
			"subtree params", "get", "", rpc.Params{rpc.P("system", rpc.Params{rpc.P("hostname", rpc.Empty)})},
			`<get><filter type="subtree"><system><hostname/></system></filter></get>`,
		},
		{
			"subtree fragment", "get", "", rpc.MustParseFragment(`<interfaces/><system/>`),
			`<get><filter type="subtree"><interfaces/><system/></filter></get>`,
		},
		{
			"xpath", "get", "", Xpath{Select: "/sys:system", Namespaces: []Namespace{{ID: "sys", Path: "urn:example:system"}}},
			`<get><filter xmlns:sys="urn:example:system" type="xpath" select="/sys:system"/></get>`,
		},
		{
			"xpath pointer", "get-config", StartupCfg, &Xpath{Select: "/system"},
			`<get-config><source><startup/></source><filter type="xpath" select="/system"/></get-config>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := createGetRequest(tt.op, tt.source, tt.filter)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, req.String())
		})
	}

	_, err := createGetRequest("get", "", 42)
	assert.Error(t, err, "Unsupported filter type should be rejected")
	_, err = createGetRequest("get", "", "<system>")
	assert.Error(t, err, "Malformed filter should be rejected")
}

func TestEditConfigRequests(t *testing.T) {
	req, err := createEditConfigRequest(CandidateCfg, Cfg(hostnameR2),
		DefaultOperation(ReplaceOp), TestOption(TestThenSetOpt), ErrorOption(RollbackOnErrorErrOpt))
	assert.NoError(t, err)
	assert.Equal(t, `<edit-config><target><candidate/></target>`+
		`<default-operation>replace</default-operation>`+
		`<test-option>test-then-set</test-option>`+
		`<error-option>rollback-on-error</error-option>`+
		`<config>`+hostnameR2+`</config></edit-config>`, req.String())

	req, err = createEditConfigRequest(RunningCfg, CfgURL("file:///cfg.xml"))
	assert.NoError(t, err)
	assert.Equal(t, `<edit-config><target><running/></target><url>file:///cfg.xml</url></edit-config>`, req.String())

	req, err = createEditConfigRequest(RunningCfg, Cfg(rpc.Params{rpc.P("system", rpc.Params{rpc.P("hostname", "r3")})}))
	assert.NoError(t, err)
	assert.Equal(t, `<edit-config><target><running/></target><config><system><hostname>r3</hostname></system></config></edit-config>`, req.String())

	_, err = createEditConfigRequest(RunningCfg, Cfg("<system>"))
	assert.Error(t, err)
}

func TestGetConfigDefaultsToRunning(t *testing.T) {
	ts := testserver.NewPipeServer(t)
	defer ts.Close()
	ts.Device().SetConfig(RunningCfg, hostnameR1)

	s := newOpSession(t, ts)
	reply, err := s.GetConfig(context.Background(), "", nil)
	assert.NoError(t, err)
	assert.Equal(t, hostnameR1, reply.DataXML())
	assert.Equal(t, `<get-config><source><running/></source></get-config>`, lastRequest(ts, s))
}

func TestConfigurationLifecycle(t *testing.T) {
	ts := testserver.NewPipeServer(t)
	defer ts.Close()
	ts.Device().SetConfig(RunningCfg, hostnameR1)
	ts.Device().SetConfig(CandidateCfg, hostnameR1)

	ctx := context.Background()
	s := newOpSession(t, ts)

	assert.NoError(t, s.EditConfigCfg(ctx, CandidateCfg, hostnameR2))

	var candidate string
	assert.NoError(t, s.GetConfigSubtree(ctx, nil, CandidateCfg, &candidate))
	assert.Equal(t, hostnameR2, candidate)

	assert.NoError(t, s.Validate(ctx, DsName(CandidateCfg)))
	assert.NoError(t, s.Commit(ctx))
	assert.Equal(t, hostnameR2, ts.Device().Config(RunningCfg))
	assert.Equal(t, 1, ts.Device().Commits())

	sys := &system{}
	assert.NoError(t, s.GetSubtree(ctx, nil, sys))
	assert.Equal(t, "r2", sys.Hostname)

	assert.NoError(t, s.CopyConfig(ctx, DsName(RunningCfg), DsName(StartupCfg)))
	assert.Equal(t, hostnameR2, ts.Device().Config(StartupCfg))
	assert.Equal(t, `<copy-config><target><startup/></target><source><running/></source></copy-config>`, lastRequest(ts, s))

	assert.NoError(t, s.DeleteConfig(ctx, DsName(StartupCfg)))
	assert.Equal(t, "", ts.Device().Config(StartupCfg))

	err := s.DeleteConfig(ctx, DsName(RunningCfg))
	var oe *common.OperationError
	assert.True(t, errors.As(err, &oe))
	assert.True(t, oe.HasTag("invalid-value"))

	assert.NoError(t, s.CopyConfig(ctx, DsConfig(hostnameR1), DsName(CandidateCfg)))
	assert.Equal(t, hostnameR1, ts.Device().Config(CandidateCfg))
	assert.NoError(t, s.Discard(ctx))
	assert.Equal(t, hostnameR2, ts.Device().Config(CandidateCfg))
}

func TestEditConfigInUse(t *testing.T) {
	ts := testserver.NewPipeServer(t)
	defer ts.Close()

	ctx := context.Background()
	owner := newOpSession(t, ts)
	other := newOpSession(t, ts)

	_, err := owner.Lock(ctx, CandidateCfg)
	assert.NoError(t, err)

	err = other.EditConfigCfg(ctx, CandidateCfg, hostnameR2)
	assert.True(t, errors.Is(err, common.ErrEdit), "Expected edit error, got %v", err)
	var oe *common.OperationError
	assert.True(t, errors.As(err, &oe))
	assert.Equal(t, []string{"in-use"}, oe.Tags())
}

func TestCommitOptions(t *testing.T) {
	ts := testserver.NewPipeServer(t)
	defer ts.Close()

	ctx := context.Background()
	s := newOpSession(t, ts)

	assert.NoError(t, s.Commit(ctx, Confirmed(120), Persist("p1")))
	assert.Equal(t, `<commit><confirmed/><confirm-timeout>120</confirm-timeout><persist>p1</persist></commit>`, lastRequest(ts, s))

	assert.NoError(t, s.Commit(ctx, Confirmed(0)))
	assert.Equal(t, `<commit><confirmed/></commit>`, lastRequest(ts, s))

	assert.NoError(t, s.Commit(ctx, PersistID("p1")))
	assert.Equal(t, `<commit><persist-id>p1</persist-id></commit>`, lastRequest(ts, s))

	assert.NoError(t, s.CancelCommit(ctx, "p1"))
	assert.Equal(t, `<cancel-commit><persist-id>p1</persist-id></cancel-commit>`, lastRequest(ts, s))

	assert.NoError(t, s.CancelCommit(ctx, ""))
	assert.Equal(t, `<cancel-commit/>`, lastRequest(ts, s))
}

func TestKillSession(t *testing.T) {
	ts := testserver.NewPipeServer(t)
	defer ts.Close()

	s := newOpSession(t, ts)
	assert.NoError(t, s.KillSession(context.Background(), 7))
	assert.Equal(t, `<kill-session><session-id>7</session-id></kill-session>`, lastRequest(ts, s))
}

func TestGetXpath(t *testing.T) {
	ts := testserver.NewPipeServer(t)
	defer ts.Close()
	ts.Device().SetConfig(RunningCfg, hostnameR1)

	ctx := context.Background()
	s := newOpSession(t, ts)

	var result string
	nslist := []Namespace{{ID: "sys", Path: "urn:example:system"}}
	assert.NoError(t, s.GetXpath(ctx, "/sys:system", nslist, &result))
	assert.Equal(t, hostnameR1, result)
	assert.Equal(t, `<get><filter xmlns:sys="urn:example:system" type="xpath" select="/sys:system"/></get>`, lastRequest(ts, s))

	assert.NoError(t, s.GetConfigXpath(ctx, "", nil, "", &result))
	assert.Equal(t, `<get-config><source><running/></source></get-config>`, lastRequest(ts, s))
}

func TestGetSchema(t *testing.T) {
	ts := testserver.NewPipeServer(t)
	defer ts.Close()
	ts.Device().AddSchema("example-system", "module example-system { }")

	ctx := context.Background()
	s := newOpSession(t, ts)

	text, err := s.GetSchema(ctx, "example-system", "2024-01-01", "yang")
	assert.NoError(t, err)
	assert.Equal(t, "module example-system { }", text)

	req := ts.SessionHandler(s.ID()).LastRequest()
	assert.Equal(t, rpc.Attrs{"xmlns": common.NetconfMonitorNS}, req.Attrs())
	assert.Equal(t, rpc.Params{
		rpc.P("identifier", "example-system"),
		rpc.P("version", "2024-01-01"),
		rpc.P("format", "yang"),
	}, req.Params())

	_, err = s.GetSchema(ctx, "unknown", "", "")
	assert.Error(t, err)
}

func TestGetSchemas(t *testing.T) {
	ts := testserver.NewPipeServer(t).WithRequestHandler(testserver.ReplyRequestHandler(
		`<data><netconf-state xmlns="urn:ietf:params:xml:ns:yang:ietf-netconf-monitoring"><schemas>` +
			`<schema><identifier>example-system</identifier><version>2024-01-01</version><format>yang</format>` +
			`<namespace>urn:example:system</namespace><location>NETCONF</location></schema>` +
			`<schema><identifier>example-interfaces</identifier><version>2023-06-01</version><format>yang</format>` +
			`<namespace>urn:example:interfaces</namespace><location>NETCONF</location></schema>` +
			`</schemas></netconf-state></data>`))
	defer ts.Close()

	s := newOpSession(t, ts)
	schemas, err := s.GetSchemas(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []Schema{
		{Identifier: "example-system", Version: "2024-01-01", Format: "yang", Namespace: "urn:example:system", Location: "NETCONF"},
		{Identifier: "example-interfaces", Version: "2023-06-01", Format: "yang", Namespace: "urn:example:interfaces", Location: "NETCONF"},
	}, schemas)
	assert.Equal(t, `<get><filter type="subtree"><netconf-state xmlns="`+common.NetconfMonitorNS+`"><schemas/></netconf-state></filter></get>`,
		lastRequest(ts, s))
}

func TestGetFailure(t *testing.T) {
	ts := testserver.NewPipeServer(t).WithRequestHandler(testserver.FailingRequestHandler)
	defer ts.Close()

	s := newOpSession(t, ts)
	var result string
	err := s.GetSubtree(context.Background(), nil, &result)
	assert.True(t, common.IsKind(err, common.KindRPC))
	assert.Empty(t, result)
}

func TestWrap(t *testing.T) {
	ts := testserver.NewPipeServer(t)
	defer ts.Close()

	s := newOpSession(t, ts)
	assert.Same(t, s, Wrap(s), "Wrapping an OpSession should deliver it unchanged")
}
