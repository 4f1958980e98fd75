package jsonschema

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
	"$id": "https://example.com/person",
	"$defs": {"id": {"type": "string", "format": "uuid"}},
	"type": "object",
	"properties": {
		"zeta": {"type": ["integer", "null"], "minDigits": 1},
		"alpha": {"$ref": "#/$defs/id"},
		"a/b": {"const": null},
		"list": {"type": "array", "items": false, "prefixItems": [{"type": "boolean"}]}
	},
	"required": ["alpha"],
	"additionalProperties": true
}`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(testSchema))
	require.NoError(t, err)

	var names []string
	for _, p := range s.Properties {
		names = append(names, p.Name)
	}
	if diff := cmp.Diff([]string{"zeta", "alpha", "a/b", "list"}, names); diff != "" {
		t.Errorf("property order mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, "https://example.com/person", s.ID)
	assert.Equal(t, Types{"object"}, s.Type)
	assert.Equal(t, []string{"alpha"}, s.Required)
	require.NotNil(t, s.AdditionalProperties)
	assert.Equal(t, KindAny, s.AdditionalProperties.Kind())

	zeta := s.Properties[0]
	assert.Equal(t, Types{"integer", "null"}, zeta.Type)
	require.NotNil(t, zeta.MinDigits)
	assert.Equal(t, 1, *zeta.MinDigits)
	assert.Nil(t, zeta.MaxDigits)

	assert.Equal(t, json.RawMessage("null"), s.Properties[2].Const)
	assert.Equal(t, KindConst, s.Properties[2].Kind())

	list := s.Properties[3]
	require.NotNil(t, list.Items)
	assert.Equal(t, KindNever, list.Items.Kind())
	assert.Equal(t, KindPrefixItems, list.Kind())
}

func TestParseErrors(t *testing.T) {
	for _, s := range []string{
		`"object"`,
		`{"type": 1}`,
		`{"properties": []}`,
		`{"properties": {"a": 1}}`,
		`{"items": "x"}`,
	} {
		t.Run(s, func(t *testing.T) {
			_, err := Parse([]byte(s))
			assert.Error(t, err)
		})
	}
}

func TestKind(t *testing.T) {
	cases := []struct {
		schema string
		want   Kind
	}{
		{`{}`, KindAny},
		{`{"title": "annotation only", "description": "x"}`, KindAny},
		{`{"properties": {}}`, KindProperties},
		{`{"type": "object", "properties": {"a": {}}}`, KindProperties},
		{`{"allOf": [{}], "anyOf": [{}]}`, KindAllOf},
		{`{"anyOf": [{}]}`, KindAnyOf},
		{`{"oneOf": [{}]}`, KindOneOf},
		{`{"prefixItems": [{}]}`, KindPrefixItems},
		{`{"enum": [1], "type": "integer"}`, KindEnum},
		{`{"const": 1}`, KindConst},
		{`{"$ref": "#"}`, KindRef},
		{`{"type": "string"}`, KindType},
		{`{"type": null}`, KindAny},
		{`{"$schema": "x", "$defs": {"a": {}}, "examples": [1], "default": 1}`, KindAny},
		{`{"not": {}}`, KindUnsupported},
		{`{"title": "x", "if": {}, "then": {}}`, KindUnsupported},
		{`{"minLength": 1}`, KindUnsupported},
		{`{"type": "string", "not": {"maxLength": 1}}`, KindType},
	}
	for _, tt := range cases {
		t.Run(tt.schema, func(t *testing.T) {
			s, err := Parse([]byte(tt.schema))
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Kind(), "got %v", s.Kind())
		})
	}
	assert.Equal(t, "$ref", KindRef.String())

	s, err := Parse([]byte(`{"description": "d", "if": {}, "then": {}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"description", "if", "then"}, s.Keywords)
	assert.Equal(t, "if", s.Unsupported())
	assert.Equal(t, "Kind(99)", Kind(99).String())
}

func TestWithType(t *testing.T) {
	s, err := Parse([]byte(`{"type": ["string", "null"], "maxLength": 3}`))
	require.NoError(t, err)

	c := s.WithType("string")
	assert.Equal(t, Types{"string"}, c.Type)
	assert.Equal(t, 3, *c.MaxLength)
	assert.Equal(t, Types{"string", "null"}, s.Type, "original is unchanged")
}

func TestResolve(t *testing.T) {
	s, err := Parse([]byte(testSchema))
	require.NoError(t, err)

	cases := []struct {
		pointer string
		check   func(t *testing.T, got *Schema)
	}{
		{"", func(t *testing.T, got *Schema) { assert.Same(t, s, got) }},
		{"/$defs/id", func(t *testing.T, got *Schema) { assert.Equal(t, "uuid", got.Format) }},
		{"/properties/alpha", func(t *testing.T, got *Schema) { assert.Equal(t, "#/$defs/id", got.Ref) }},
		{"/properties/a~1b", func(t *testing.T, got *Schema) { assert.Equal(t, "a/b", got.Name) }},
		{"/properties/list/prefixItems/0", func(t *testing.T, got *Schema) { assert.Equal(t, Types{"boolean"}, got.Type) }},
		{"/additionalProperties", func(t *testing.T, got *Schema) { assert.NotNil(t, got.Bool) }},
	}
	for _, tt := range cases {
		t.Run(tt.pointer, func(t *testing.T) {
			got, err := s.Resolve(tt.pointer)
			require.NoError(t, err)
			tt.check(t, got)
		})
	}

	for _, p := range []string{
		"/$defs/missing",
		"/$defs",
		"/properties/nope",
		"/properties/list/prefixItems/1",
		"/properties/list/prefixItems/x",
		"/properties/list/items/type",
		"/unknown",
	} {
		t.Run(p, func(t *testing.T) {
			_, err := s.Resolve(p)
			assert.ErrorIs(t, err, ErrRefNotFound)
		})
	}
}
