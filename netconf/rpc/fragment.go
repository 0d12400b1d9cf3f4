package rpc

import (
	"strings"

	"github.com/beevik/etree"
	"github.com/pkg/errors"
)

// Fragment is an immutable sequence of XML elements, used as the content of an
// RPC operation, a filter or a configuration payload. The elements are copied
// on construction and on every use, so a Fragment can be shared by any number
// of requests.
type Fragment struct {
	elems []*etree.Element
}

// NewFragment delivers a fragment holding copies of the supplied elements.
func NewFragment(elems ...*etree.Element) *Fragment {
	f := &Fragment{}
	for _, e := range elems {
		if e != nil {
			f.elems = append(f.elems, e.Copy())
		}
	}
	return f
}

// ParseFragment parses s, which may hold any number of sibling elements.
func ParseFragment(s string) (*Fragment, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString("<fragment>" + s + "</fragment>"); err != nil {
		return nil, errors.Wrap(err, "invalid xml fragment")
	}
	root := doc.Root()
	for _, t := range root.Child {
		if cd, ok := t.(*etree.CharData); ok && strings.TrimSpace(cd.Data) != "" {
			return nil, errors.Errorf("invalid xml fragment: text %q outside of an element", strings.TrimSpace(cd.Data))
		}
	}
	return NewFragment(root.ChildElements()...), nil
}

// MustParseFragment is like ParseFragment, but panics if s cannot be parsed.
func MustParseFragment(s string) *Fragment {
	f, err := ParseFragment(s)
	if err != nil {
		panic(err)
	}
	return f
}

// FragmentFromParams builds a fragment from a parameter payload
// (Params, map[string]interface{} ...), applying the same rules as a request.
func FragmentFromParams(payload interface{}) (*Fragment, error) {
	holder := etree.NewElement("fragment")
	if err := appendPayload(holder, payload); err != nil {
		return nil, err
	}
	return &Fragment{elems: holder.ChildElements()}, nil
}

// Elements delivers copies of the fragment's elements.
func (f *Fragment) Elements() []*etree.Element {
	elems := make([]*etree.Element, 0, len(f.elems))
	for _, e := range f.elems {
		elems = append(elems, e.Copy())
	}
	return elems
}

// Len delivers the number of top-level elements in the fragment.
func (f *Fragment) Len() int {
	return len(f.elems)
}

// String serializes the fragment.
func (f *Fragment) String() string {
	var b strings.Builder
	for _, e := range f.elems {
		doc := etree.NewDocument()
		doc.SetRoot(e.Copy())
		s, _ := doc.WriteToString()
		b.WriteString(s)
	}
	return b.String()
}

func (f *Fragment) appendTo(parent *etree.Element) {
	if f == nil {
		return
	}
	for _, e := range f.elems {
		parent.AddChild(e.Copy())
	}
}
