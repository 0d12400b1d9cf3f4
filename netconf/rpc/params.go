package rpc

import (
	"fmt"
	"sort"
	"strings"

	"github.com/beevik/etree"
	"github.com/pkg/errors"
)

// ElementName translates an invocation name to an XML element name, replacing
// word-separator underscores with hyphens.
func ElementName(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), "_", "-")
}

// Param is a single named parameter of an RPC.
type Param struct {
	Name  string
	Value interface{}
}

// Params is an ordered list of parameters. Values may be:
//   - a string, number or fmt.Stringer, producing an element with text content;
//   - true, nil or Empty, producing an empty element; false omits the element;
//   - Params or map[string]interface{}, producing nested elements;
//   - a slice, producing one element per item;
//   - a *Fragment or *etree.Element, copied in as the element's content.
type Params []Param

// P is shorthand for constructing a Param.
func P(name string, value interface{}) Param {
	return Param{Name: name, Value: value}
}

// Attrs holds attributes applied to the operation element.
type Attrs map[string]string

type empty struct{}

// Empty marks a presence-only parameter, rendered as an empty element.
var Empty = empty{}

func (a Attrs) applyTo(e *etree.Element) {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e.CreateAttr(k, a[k])
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// appendPayload adds the elements described by payload as children of parent.
func appendPayload(parent *etree.Element, payload interface{}) error {
	switch p := payload.(type) {
	case nil:
	case Params:
		for _, param := range p {
			if err := appendParam(parent, param.Name, param.Value); err != nil {
				return err
			}
		}
	case []Param:
		return appendPayload(parent, Params(p))
	case map[string]interface{}:
		for _, k := range sortedKeys(p) {
			if err := appendParam(parent, k, p[k]); err != nil {
				return err
			}
		}
	case map[string]string:
		m := make(map[string]interface{}, len(p))
		for k, v := range p {
			m[k] = v
		}
		return appendPayload(parent, m)
	case *Fragment:
		p.appendTo(parent)
	case *etree.Element:
		parent.AddChild(p.Copy())
	case string:
		if strings.TrimSpace(p) == "" {
			return nil
		}
		f, err := ParseFragment(p)
		if err != nil {
			return err
		}
		f.appendTo(parent)
	default:
		return errors.Errorf("unsupported rpc payload type %T", payload)
	}
	return nil
}

func appendParam(parent *etree.Element, name string, value interface{}) error {
	name = ElementName(name)
	if name == "" {
		return errors.New("rpc parameter with empty name")
	}

	switch v := value.(type) {
	case nil, empty:
		parent.CreateElement(name)
	case bool:
		if v {
			parent.CreateElement(name)
		}
	case string:
		parent.CreateElement(name).SetText(v)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		parent.CreateElement(name).SetText(fmt.Sprint(v))
	case Params, []Param, map[string]interface{}, map[string]string, *Fragment, *etree.Element:
		return appendPayload(parent.CreateElement(name), v)
	case []interface{}:
		for _, item := range v {
			if err := appendParam(parent, name, item); err != nil {
				return err
			}
		}
	case []string:
		for _, item := range v {
			parent.CreateElement(name).SetText(item)
		}
	case []Params:
		for _, item := range v {
			if err := appendPayload(parent.CreateElement(name), item); err != nil {
				return err
			}
		}
	case []map[string]interface{}:
		for _, item := range v {
			if err := appendPayload(parent.CreateElement(name), item); err != nil {
				return err
			}
		}
	case fmt.Stringer:
		parent.CreateElement(name).SetText(v.String())
	default:
		return errors.Errorf("unsupported value type %T for rpc parameter %q", value, name)
	}
	return nil
}

// paramsOf rebuilds the parameters described by the children of e. Leaf
// elements with text give strings, empty leaves give true.
func paramsOf(e *etree.Element) Params {
	var params Params
	for _, c := range e.ChildElements() {
		name := c.Tag
		if c.Space != "" {
			name = c.Space + ":" + c.Tag
		}
		switch {
		case len(c.ChildElements()) > 0:
			params = append(params, P(name, paramsOf(c)))
		case strings.TrimSpace(c.Text()) == "":
			params = append(params, P(name, true))
		default:
			params = append(params, P(name, c.Text()))
		}
	}
	return params
}
