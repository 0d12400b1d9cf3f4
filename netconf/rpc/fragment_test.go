package rpc

import (
	"testing"

	"github.com/beevik/etree"
	assert "github.com/stretchr/testify/require"
)

func TestFragmentReuseDoesNotMutate(t *testing.T) {
	filter := MustParseFragment(`<interface-name>ge-0/0/0</interface-name><terse/>`)
	assert.Equal(t, 2, filter.Len())

	first := MustRequest("get-interface-information", filter, nil)
	second := MustRequest("get-interface-information", filter, Attrs{"format": "text"})

	expected := `<interface-name>ge-0/0/0</interface-name><terse/>`
	assert.Equal(t, expected, filter.String())
	assert.Equal(t, "<get-interface-information>"+expected+"</get-interface-information>", first.String())
	assert.Equal(t, `<get-interface-information format="text">`+expected+"</get-interface-information>", second.String())

	// Changing a delivered element leaves the fragment intact.
	filter.Elements()[0].SetText("changed")
	assert.Equal(t, expected, filter.String())
}

func TestNewFragmentCopiesElements(t *testing.T) {
	e := etree.NewElement("configuration")
	f := NewFragment(e, nil)
	e.CreateElement("system")
	assert.Equal(t, "<configuration/>", f.String())
}

func TestFragmentFromParams(t *testing.T) {
	f, err := FragmentFromParams(Params{P("system", Params{P("host_name", "r1")})})
	assert.NoError(t, err)
	assert.Equal(t, "<system><host-name>r1</host-name></system>", f.String())

	nested := MustRequest("edit-config", Params{P("config", f)}, nil)
	assert.Equal(t, "<edit-config><config><system><host-name>r1</host-name></system></config></edit-config>", nested.String())

	_, err = FragmentFromParams(3)
	assert.Error(t, err)
}

func TestParseFragmentFailures(t *testing.T) {
	_, err := ParseFragment(`<a>`)
	assert.Error(t, err)

	for _, s := range []string{`text<a/>`, `<a/>stray text<b/>`, `<a/><b/>trailing`} {
		_, err = ParseFragment(s)
		assert.Error(t, err, "Text outside an element should be rejected: %s", s)
	}

	f, err := ParseFragment("\n  <a/>\n  <b/>\n")
	assert.NoError(t, err, "Whitespace between elements is allowed")
	assert.Equal(t, 2, f.Len())

	assert.Panics(t, func() { MustParseFragment(`<a>`) })
}
