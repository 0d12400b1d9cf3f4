package ops

import "encoding/xml"

const (
	// Configuration Datastores
	RunningCfg   = "running"
	CandidateCfg = "candidate"
	StartupCfg   = "startup"

	// Edit Config Error Options
	StopOnErrorErrOpt     = "stop-on-error"
	ContinueOnErrorErrOpt = "continue-on-error"
	RollbackOnErrorErrOpt = "rollback-on-error"

	// Edit Config Operation Types
	MergeOp   = "merge"
	ReplaceOp = "replace"
	NoneOp    = "none"

	// Edit Config Test Options
	TestThenSetOpt = "test-then-set"
	SetOpt         = "set"
	TestOnlyOpt    = "test-only"
)

// Namespace binds a prefix used in an xpath filter to its namespace.
type Namespace struct {
	ID   string
	Path string
}

// Xpath is a filter selecting nodes with an xpath expression.
type Xpath struct {
	Select     string
	Namespaces []Namespace
}

// Schema describes a schema listed by the server's monitoring data.
type Schema struct {
	Identifier string `xml:"identifier"`
	Version    string `xml:"version"`
	Format     string `xml:"format"`
	Namespace  string `xml:"namespace"`
	Location   string `xml:"location"`
}

// NetconfState holds the subset of ietf-netconf-monitoring state used by the
// operations.
type NetconfState struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:yang:ietf-netconf-monitoring netconf-state"`
	Schemas struct {
		Schema []Schema `xml:"schema"`
	} `xml:"schemas"`
	Capabilities struct {
		Capability []string `xml:"capability"`
	} `xml:"capabilities"`
	Sessions struct {
		Session []struct {
			SessionID  uint64 `xml:"session-id"`
			Transport  string `xml:"transport"`
			Username   string `xml:"username"`
			SourceHost string `xml:"source-host"`
			LoginTime  string `xml:"login-time"`
		} `xml:"session"`
	} `xml:"sessions"`
}
