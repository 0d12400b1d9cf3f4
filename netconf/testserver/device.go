package testserver

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/beevik/etree"

	"github.com/damianoneill/ncclient/netconf/common"
)

// Device simulates the datastores of a NETCONF device: running, candidate and
// startup configuration, datastore locks, and schemas for get-schema. It serves
// requests for which no explicit request handler has been queued.
type Device struct {
	mu         sync.Mutex
	datastores map[string]string
	lockOwners map[string]uint64
	schemas    map[string]string
	commits    int
}

// NewDevice delivers a device with empty running, candidate and startup datastores.
func NewDevice() *Device {
	return &Device{
		datastores: map[string]string{"running": "", "candidate": "", "startup": ""},
		lockOwners: map[string]uint64{},
		schemas:    map[string]string{},
	}
}

// Config delivers the content of the named datastore.
func (d *Device) Config(datastore string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.datastores[datastore]
}

// SetConfig replaces the content of the named datastore.
func (d *Device) SetConfig(datastore, config string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.datastores[datastore] = config
}

// LockOwner delivers the id of the session holding a lock on the named datastore.
func (d *Device) LockOwner(datastore string) (uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sid, ok := d.lockOwners[datastore]
	return sid, ok
}

// AddSchema makes a schema available to get-schema.
func (d *Device) AddSchema(identifier, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.schemas[identifier] = text
}

// Commits delivers the number of successful commits.
func (d *Device) Commits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commits
}

// releaseLocks drops every lock held by the session.
func (d *Device) releaseLocks(sid uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for ds, owner := range d.lockOwners {
		if owner == sid {
			delete(d.lockOwners, ds)
		}
	}
}

// Handle serves a request.
func (d *Device) Handle(h *SessionHandler, req *Request) {
	op := req.Operation()

	var (
		data string
		errs []common.RPCError
	)
	d.mu.Lock()
	switch req.Name {
	case "get":
		data = "<data>" + d.datastores["running"] + "</data>"
	case "get-config":
		var ds string
		if ds, errs = d.datastore(op, "source"); errs == nil {
			data = "<data>" + d.datastores[ds] + "</data>"
		}
	case "edit-config":
		errs = d.editConfig(h.sid, op)
	case "copy-config":
		errs = d.copyConfig(h.sid, op)
	case "delete-config":
		errs = d.deleteConfig(h.sid, op)
	case "lock":
		errs = d.lock(h.sid, op)
	case "unlock":
		errs = d.unlock(h.sid, op)
	case "validate":
		_, errs = d.datastoreOrConfig(op, "source")
	case "commit":
		errs = d.commit(h.sid)
	case "discard-changes":
		d.datastores["candidate"] = d.datastores["running"]
	case "get-schema":
		data, errs = d.getSchema(op)
	case "kill-session", "create-subscription":
	case "close-session":
		d.mu.Unlock()
		h.ReplyOK(req)
		h.Close()
		return
	default:
		d.mu.Unlock()
		EchoRequestHandler(h, req)
		return
	}
	d.mu.Unlock()

	switch {
	case errs != nil:
		h.ReplyErrors(req, errs...)
	case data != "":
		h.Reply(req, data)
	default:
		h.ReplyOK(req)
	}
}

func (d *Device) datastore(op *etree.Element, container string) (string, []common.RPCError) {
	c := op.SelectElement(container)
	if c == nil || len(c.ChildElements()) == 0 {
		return "", missingElement(container)
	}
	ds := c.ChildElements()[0].Tag
	if _, ok := d.datastores[ds]; !ok {
		return "", invalidValue(fmt.Sprintf("unknown datastore %s", ds))
	}
	return ds, nil
}

// datastoreOrConfig resolves a source that may be a datastore or an inline <config>.
func (d *Device) datastoreOrConfig(op *etree.Element, container string) (string, []common.RPCError) {
	c := op.SelectElement(container)
	if c != nil {
		if cfg := c.SelectElement("config"); cfg != nil {
			return common.InnerXML(cfg), nil
		}
	}
	ds, errs := d.datastore(op, container)
	if errs != nil {
		return "", errs
	}
	return d.datastores[ds], nil
}

func (d *Device) checkWritable(sid uint64, ds string) []common.RPCError {
	if owner, ok := d.lockOwners[ds]; ok && owner != sid {
		return []common.RPCError{{
			Type: common.ErrorTypeProtocol, Tag: "in-use", Severity: common.SeverityError,
			Message: fmt.Sprintf("%s is locked by session %d", ds, owner),
		}}
	}
	return nil
}

func (d *Device) editConfig(sid uint64, op *etree.Element) []common.RPCError {
	ds, errs := d.datastore(op, "target")
	if errs != nil {
		return errs
	}
	if errs = d.checkWritable(sid, ds); errs != nil {
		return errs
	}
	cfg := op.SelectElement("config")
	if cfg == nil {
		return missingElement("config")
	}
	d.datastores[ds] = common.InnerXML(cfg)
	return nil
}

func (d *Device) copyConfig(sid uint64, op *etree.Element) []common.RPCError {
	ds, errs := d.datastore(op, "target")
	if errs != nil {
		return errs
	}
	if errs = d.checkWritable(sid, ds); errs != nil {
		return errs
	}
	src, errs := d.datastoreOrConfig(op, "source")
	if errs != nil {
		return errs
	}
	d.datastores[ds] = src
	return nil
}

func (d *Device) deleteConfig(sid uint64, op *etree.Element) []common.RPCError {
	ds, errs := d.datastore(op, "target")
	if errs != nil {
		return errs
	}
	if ds == "running" {
		return invalidValue("running cannot be deleted")
	}
	if errs = d.checkWritable(sid, ds); errs != nil {
		return errs
	}
	d.datastores[ds] = ""
	return nil
}

func (d *Device) lock(sid uint64, op *etree.Element) []common.RPCError {
	ds, errs := d.datastore(op, "target")
	if errs != nil {
		return errs
	}
	if owner, ok := d.lockOwners[ds]; ok {
		return []common.RPCError{{
			Type: common.ErrorTypeProtocol, Tag: "lock-denied", Severity: common.SeverityError,
			Message: "lock failed, lock is already held",
			Info:    "<session-id>" + strconv.FormatUint(owner, 10) + "</session-id>",
		}}
	}
	d.lockOwners[ds] = sid
	return nil
}

func (d *Device) unlock(sid uint64, op *etree.Element) []common.RPCError {
	ds, errs := d.datastore(op, "target")
	if errs != nil {
		return errs
	}
	if owner, ok := d.lockOwners[ds]; !ok || owner != sid {
		return []common.RPCError{{
			Type: common.ErrorTypeProtocol, Tag: "operation-failed", Severity: common.SeverityError,
			Message: "unlock failed, no lock held by this session",
		}}
	}
	delete(d.lockOwners, ds)
	return nil
}

func (d *Device) commit(sid uint64) []common.RPCError {
	if errs := d.checkWritable(sid, "running"); errs != nil {
		return errs
	}
	d.datastores["running"] = d.datastores["candidate"]
	d.commits++
	return nil
}

func (d *Device) getSchema(op *etree.Element) (string, []common.RPCError) {
	id := op.SelectElement("identifier")
	if id == nil {
		return "", missingElement("identifier")
	}
	text, ok := d.schemas[strings.TrimSpace(id.Text())]
	if !ok {
		return "", invalidValue("unknown schema " + id.Text())
	}
	doc := etree.NewDocument()
	data := doc.CreateElement("data")
	data.CreateAttr("xmlns", common.NetconfMonitorNS)
	data.SetText(text)
	s, _ := doc.WriteToString()
	return s, nil
}

func missingElement(name string) []common.RPCError {
	return []common.RPCError{{
		Type: common.ErrorTypeProtocol, Tag: "missing-element", Severity: common.SeverityError,
		Message: "missing element " + name, Info: "<bad-element>" + name + "</bad-element>",
	}}
}

func invalidValue(msg string) []common.RPCError {
	return []common.RPCError{{
		Type: common.ErrorTypeApplication, Tag: "invalid-value", Severity: common.SeverityError, Message: msg,
	}}
}
