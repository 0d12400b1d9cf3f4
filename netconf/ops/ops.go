// Package ops provides typed NETCONF operations, and a safe configuration
// sequence, on top of a client session.
package ops

import (
	"context"
	"encoding/xml"
	"strconv"

	"github.com/beevik/etree"
	"github.com/pkg/errors"

	"github.com/damianoneill/ncclient/netconf/client"
	"github.com/damianoneill/ncclient/netconf/common"
	"github.com/damianoneill/ncclient/netconf/rpc"
)

// OpSession represents a Netconf Operations OpSession
type OpSession interface {
	client.Session

	// GetSubtree issues a GET request, with the supplied subtree filter and stores the response in the result, which
	// should be the address of either:
	// - a string, in which case it will hold the response body, or
	// - a struct with xml tags, decoded from the first element of the response body.
	GetSubtree(ctx context.Context, filter interface{}, result interface{}) error

	// GetXpath issues a GET request, with the supplied xpath filter and namespace list and stores the response in
	// the result, as for GetSubtree.
	GetXpath(ctx context.Context, xpath string, nslist []Namespace, result interface{}) error

	// GetConfig issues a GET-CONFIG request on source, running if empty. filter may be rpc.Params, an
	// *rpc.Fragment, an xml string, an Xpath or nil for no filter.
	GetConfig(ctx context.Context, source string, filter interface{}) (*common.Reply, error)

	// GetConfigSubtree issues a GET-CONFIG request, with the supplied subtree filter and source, and stores the
	// response in the result, as for GetSubtree.
	GetConfigSubtree(ctx context.Context, filter interface{}, source string, result interface{}) error

	// GetConfigXpath issues a GET-CONFIG request, with the supplied xpath filter, source and namespace list and
	// stores the response in the result, as for GetSubtree.
	GetConfigXpath(ctx context.Context, xpath string, nslist []Namespace, source string, result interface{}) error

	// GetSchemas returns an array of schemas supported by the device.
	GetSchemas(ctx context.Context) ([]Schema, error)

	// GetSchema returns the text of the schema identified by id and version, in the format defined by fmt.
	GetSchema(ctx context.Context, id, version, fmt string) (string, error)

	// EditConfig issues an edit-config request defined by config to be applied to the target configuration.
	// EditOptions can be added to qualify the operation.
	// config will be defined by a ConfigOption, which can be one of:
	// - Cfg(cfg), where cfg is an xml string, rpc.Params or an *rpc.Fragment used as the content of the
	//   <config> element.
	// - CfgURL(url), in which case the configuration is defined by a <url> element.
	EditConfig(ctx context.Context, target string, config ConfigOption, options ...EditOption) error

	// EditConfigCfg issues an edit-config request defined by config to be applied to the target configuration.
	// Convenience method to avoid complications with function arguments when using EditConfig() with a mock object
	EditConfigCfg(ctx context.Context, target string, config interface{}, options ...EditOption) error

	// CopyConfig issues a copy-config request.
	// source and target are defined by a CfgDsOpt, which can be one of:
	// - DsName(name) where name defines the configuration data store name (Running, Candidate ...)
	// - DsURL(url) where url defines the url of the datastore
	// - DsConfig(cfg), for a source only, where cfg is the configuration to be copied
	CopyConfig(ctx context.Context, source, target CfgDsOpt) error

	// DeleteConfig issues a delete-config request on target.
	DeleteConfig(ctx context.Context, target CfgDsOpt) error

	// Validate issues a validate request on source.
	Validate(ctx context.Context, source CfgDsOpt) error

	// Commit issues a commit request; CommitOptions request a confirmed commit.
	Commit(ctx context.Context, options ...CommitOption) error

	// CancelCommit cancels an ongoing confirmed commit, identified by persistID if it was persisted.
	CancelCommit(ctx context.Context, persistID string) error

	// Discard issues a discard changes request.
	Discard(ctx context.Context) error

	// KillSession issues a kill session request for the specified session id.
	KillSession(ctx context.Context, id uint64) error
}

type sImpl struct {
	client.Session
}

// Wrap delivers the typed operations of s.
func Wrap(s client.Session) OpSession {
	if ops, ok := s.(OpSession); ok {
		return ops
	}
	return &sImpl{Session: s}
}

func (s *sImpl) GetSubtree(ctx context.Context, filter, result interface{}) error {
	return s.handleGetRequest(ctx, "get", "", filter, result)
}

func (s *sImpl) GetXpath(ctx context.Context, xpath string, nslist []Namespace, result interface{}) error {
	return s.handleGetRequest(ctx, "get", "", Xpath{Select: xpath, Namespaces: nslist}, result)
}

func (s *sImpl) GetConfig(ctx context.Context, source string, filter interface{}) (*common.Reply, error) {
	req, err := createGetRequest("get-config", defaultSource(source), filter)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, req)
}

func (s *sImpl) GetConfigSubtree(ctx context.Context, filter interface{}, source string, result interface{}) error {
	return s.handleGetRequest(ctx, "get-config", defaultSource(source), filter, result)
}

func (s *sImpl) GetConfigXpath(ctx context.Context, xpath string, nslist []Namespace, source string, result interface{}) error {
	var filter interface{}
	if xpath != "" {
		filter = Xpath{Select: xpath, Namespaces: nslist}
	}
	return s.handleGetRequest(ctx, "get-config", defaultSource(source), filter, result)
}

func (s *sImpl) EditConfig(ctx context.Context, target string, config ConfigOption, options ...EditOption) error {
	req, err := createEditConfigRequest(target, config, options...)
	if err != nil {
		return err
	}
	_, err = s.Execute(ctx, req)
	return err
}

func (s *sImpl) EditConfigCfg(ctx context.Context, target string, config interface{}, options ...EditOption) error {
	return s.EditConfig(ctx, target, Cfg(config), options...)
}

func (s *sImpl) CopyConfig(ctx context.Context, source, target CfgDsOpt) error {
	op := etree.NewElement("copy-config")
	if err := target(op.CreateElement("target")); err != nil {
		return err
	}
	if err := source(op.CreateElement("source")); err != nil {
		return err
	}
	_, err := s.Execute(ctx, rpc.FromElement(op))
	return err
}

func (s *sImpl) DeleteConfig(ctx context.Context, target CfgDsOpt) error {
	return s.executeDatastoreOp(ctx, "delete-config", "target", target)
}

func (s *sImpl) Validate(ctx context.Context, source CfgDsOpt) error {
	return s.executeDatastoreOp(ctx, "validate", "source", source)
}

func (s *sImpl) Commit(ctx context.Context, options ...CommitOption) error {
	op := etree.NewElement("commit")
	for _, opt := range options {
		opt(op)
	}
	_, err := s.Execute(ctx, rpc.FromElement(op))
	return err
}

func (s *sImpl) CancelCommit(ctx context.Context, persistID string) error {
	var params rpc.Params
	if persistID != "" {
		params = rpc.Params{rpc.P("persist-id", persistID)}
	}
	_, err := s.Invoke(ctx, "cancel-commit", params, nil)
	return err
}

func (s *sImpl) Discard(ctx context.Context) error {
	_, err := s.Invoke(ctx, "discard-changes", nil, nil)
	return err
}

func (s *sImpl) KillSession(ctx context.Context, id uint64) error {
	_, err := s.Invoke(ctx, "kill-session", rpc.Params{rpc.P("session-id", id)}, nil)
	return err
}

func (s *sImpl) GetSchemas(ctx context.Context) ([]Schema, error) {
	ncs := &NetconfState{}
	filter := rpc.MustParseFragment(`<netconf-state xmlns="` + common.NetconfMonitorNS + `"><schemas/></netconf-state>`)
	if err := s.handleGetRequest(ctx, "get", "", filter, ncs); err != nil {
		return nil, err
	}
	return ncs.Schemas.Schema, nil
}

func (s *sImpl) GetSchema(ctx context.Context, id, version, format string) (string, error) {
	params := rpc.Params{rpc.P("identifier", id)}
	if version != "" {
		params = append(params, rpc.P("version", version))
	}
	if format != "" {
		params = append(params, rpc.P("format", format))
	}
	reply, err := s.Invoke(ctx, "get-schema", params, rpc.Attrs{"xmlns": common.NetconfMonitorNS})
	if err != nil {
		return "", err
	}
	data := reply.Data()
	if data == nil {
		return "", errors.Errorf("get-schema reply for %s carries no data", id)
	}
	return data.Text(), nil
}

// ConfigOption defines the configuration to be applied by an edit config operation
type ConfigOption func(op *etree.Element) error

// Cfg defines the content of the <config> element.
func Cfg(cfg interface{}) ConfigOption {
	return func(op *etree.Element) error {
		return appendContent(op.CreateElement("config"), cfg)
	}
}

// CfgURL defines the configuration by the url of a file holding it.
func CfgURL(url string) ConfigOption {
	return func(op *etree.Element) error {
		op.CreateElement("url").SetText(url)
		return nil
	}
}

// CfgDsOpt defines the datastore a source or target element refers to.
type CfgDsOpt func(e *etree.Element) error

// DsName names a configuration datastore.
func DsName(name string) CfgDsOpt {
	return func(e *etree.Element) error {
		e.CreateElement(name)
		return nil
	}
}

// DsURL refers to a configuration file by url.
func DsURL(url string) CfgDsOpt {
	return func(e *etree.Element) error {
		e.CreateElement("url").SetText(url)
		return nil
	}
}

// DsConfig supplies a complete configuration in place of a source datastore.
func DsConfig(cfg interface{}) CfgDsOpt {
	return func(e *etree.Element) error {
		return appendContent(e.CreateElement("config"), cfg)
	}
}

// EditOption configures an edit config operation.
type EditOption func(*editOptions)

type editOptions struct {
	defaultOperation string
	testOption       string
	errorOption      string
}

// DefaultOperation sets the default-operation of an edit.
func DefaultOperation(oper string) EditOption {
	return func(o *editOptions) {
		o.defaultOperation = oper
	}
}

// TestOption sets the test-option of an edit.
func TestOption(opt string) EditOption {
	return func(o *editOptions) {
		o.testOption = opt
	}
}

// ErrorOption sets the error-option of an edit.
func ErrorOption(opt string) EditOption {
	return func(o *editOptions) {
		o.errorOption = opt
	}
}

// CommitOption qualifies a commit operation.
type CommitOption func(op *etree.Element)

// Confirmed requests a confirmed commit, reverted unless confirmed within timeout
// seconds; zero leaves the server default.
func Confirmed(timeout uint32) CommitOption {
	return func(op *etree.Element) {
		op.CreateElement("confirmed")
		if timeout > 0 {
			op.CreateElement("confirm-timeout").SetText(strconv.FormatUint(uint64(timeout), 10))
		}
	}
}

// Persist makes a confirmed commit survive the session, identified by id.
func Persist(id string) CommitOption {
	return func(op *etree.Element) {
		op.CreateElement("persist").SetText(id)
	}
}

// PersistID confirms a persisted confirmed commit from another session.
func PersistID(id string) CommitOption {
	return func(op *etree.Element) {
		op.CreateElement("persist-id").SetText(id)
	}
}

func defaultSource(source string) string {
	if source == "" {
		return RunningCfg
	}
	return source
}

func createGetRequest(name, source string, filter interface{}) (*rpc.Request, error) {
	op := etree.NewElement(name)
	if source != "" {
		op.CreateElement("source").CreateElement(source)
	}
	if err := appendFilter(op, filter); err != nil {
		return nil, errors.Wrapf(err, "invalid %s filter", name)
	}
	return rpc.FromElement(op), nil
}

func appendFilter(op *etree.Element, filter interface{}) error {
	switch f := filter.(type) {
	case nil:
		return nil
	case Xpath:
		e := op.CreateElement("filter")
		for _, ns := range f.Namespaces {
			e.CreateAttr("xmlns:"+ns.ID, ns.Path)
		}
		e.CreateAttr("type", "xpath")
		e.CreateAttr("select", f.Select)
		return nil
	case *Xpath:
		return appendFilter(op, *f)
	case string:
		if f == "" {
			return nil
		}
	}
	e := op.CreateElement("filter")
	e.CreateAttr("type", "subtree")
	return appendContent(e, filter)
}

// appendContent adds content, described as for an rpc payload, to e.
func appendContent(e *etree.Element, content interface{}) error {
	frag, err := rpc.FragmentFromParams(content)
	if err != nil {
		return err
	}
	for _, c := range frag.Elements() {
		e.AddChild(c)
	}
	return nil
}

func createEditConfigRequest(target string, cfgOpt ConfigOption, options ...EditOption) (*rpc.Request, error) {
	opts := &editOptions{}
	for _, opt := range options {
		opt(opts)
	}

	op := etree.NewElement("edit-config")
	op.CreateElement("target").CreateElement(target)
	if opts.defaultOperation != "" {
		op.CreateElement("default-operation").SetText(opts.defaultOperation)
	}
	if opts.testOption != "" {
		op.CreateElement("test-option").SetText(opts.testOption)
	}
	if opts.errorOption != "" {
		op.CreateElement("error-option").SetText(opts.errorOption)
	}
	if err := cfgOpt(op); err != nil {
		return nil, errors.Wrap(err, "invalid edit-config configuration")
	}
	return rpc.FromElement(op), nil
}

func (s *sImpl) executeDatastoreOp(ctx context.Context, name, role string, ds CfgDsOpt) error {
	op := etree.NewElement(name)
	if err := ds(op.CreateElement(role)); err != nil {
		return err
	}
	_, err := s.Execute(ctx, rpc.FromElement(op))
	return err
}

func (s *sImpl) handleGetRequest(ctx context.Context, name, source string, filter, result interface{}) error {
	req, err := createGetRequest(name, source, filter)
	if err != nil {
		return err
	}
	reply, err := s.Execute(ctx, req)
	if err != nil {
		return err
	}
	return decodeData(reply, result)
}

// decodeData stores the payload of reply in result, which is either a *string
// receiving the serialized payload or a value decoded by encoding/xml from the
// first payload element.
func decodeData(reply *common.Reply, result interface{}) error {
	switch target := result.(type) {
	case *string:
		*target = reply.DataXML()
		return nil
	case **etree.Element:
		*target = reply.Data()
		return nil
	}

	data := reply.Data()
	if data == nil {
		return nil
	}
	elems := data.ChildElements()
	if data.Tag != "data" {
		elems = []*etree.Element{data}
	}
	if len(elems) == 0 {
		return nil
	}
	return errors.Wrap(xml.Unmarshal([]byte(common.ElementXML(elems[0])), result), "failed to decode reply data")
}
