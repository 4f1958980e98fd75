package jsonschema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Schema holds a JSON schema node.
//
// Presence matters as much as value: a keyword that is absent leaves its
// field nil, so callers can tell "properties": {} apart from no properties at
// all.
type Schema struct {
	// Name is the property name when the schema is a member of Properties.
	Name string `json:"-"`

	// Bool is set when the schema is a boolean schema (true or false) rather
	// than an object. Only items and additionalProperties accept those.
	Bool *bool `json:"-"`

	ID  string `json:"$id"`
	Ref string `json:"$ref"`

	Defs        map[string]*Schema `json:"$defs"`
	Definitions map[string]*Schema `json:"definitions"`

	// Type is the declared type. A single string decodes to a one element
	// list.
	Type Types `json:"type"`

	// Properties is the schema for each property of an object, in document
	// order.
	Properties []*Schema `json:"-"`

	Required             []string `json:"required"`
	AdditionalProperties *Schema  `json:"additionalProperties"`
	MinProperties        *int     `json:"minProperties"`
	MaxProperties        *int     `json:"maxProperties"`

	AllOf []*Schema `json:"allOf"`
	AnyOf []*Schema `json:"anyOf"`
	OneOf []*Schema `json:"oneOf"`

	// PrefixItems is a list of schemas for each item in a tuple.
	PrefixItems []*Schema `json:"prefixItems"`

	// Items is the schema for each item in a list. A JSON true decodes to a
	// boolean schema, as does false.
	Items    *Schema `json:"items"`
	MinItems *int    `json:"minItems"`
	MaxItems *int    `json:"maxItems"`

	Enum  []json.RawMessage `json:"enum"`
	Const json.RawMessage   `json:"const"`

	Format    string `json:"format"`
	Pattern   string `json:"pattern"`
	MinLength *int   `json:"minLength"`
	MaxLength *int   `json:"maxLength"`

	// Digit bounds for integers.
	MinDigits *int `json:"minDigits"`
	MaxDigits *int `json:"maxDigits"`

	// Digit bounds for numbers.
	MinDigitsInteger  *int `json:"minDigitsInteger"`
	MaxDigitsInteger  *int `json:"maxDigitsInteger"`
	MinDigitsFraction *int `json:"minDigitsFraction"`
	MaxDigitsFraction *int `json:"maxDigitsFraction"`
	MinDigitsExponent *int `json:"minDigitsExponent"`
	MaxDigitsExponent *int `json:"maxDigitsExponent"`

	// Depth bounds how deeply untyped arrays and objects nest.
	Depth *int `json:"depth"`

	// Keywords lists every keyword of the node in document order.
	Keywords []string `json:"-"`
}

// Parse decodes a schema document.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Schema) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("true")):
		*s = Schema{Bool: ptr(true)}
		return nil
	case bytes.Equal(data, []byte("false")):
		*s = Schema{Bool: ptr(false)}
		return nil
	case len(data) == 0 || data[0] != '{':
		return errors.New("schema must be an object or a boolean")
	}

	type S Schema
	w := struct {
		Properties props `json:"properties"`
		*S
	}{
		S: (*S)(s),
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.Properties = w.Properties

	keywords, err := keys(data)
	if err != nil {
		return err
	}
	s.Keywords = keywords
	return nil
}

// keys returns the member names of a JSON object in document order.
func keys(data []byte) ([]string, error) {
	d := json.NewDecoder(bytes.NewReader(data))
	if _, err := d.Token(); err != nil {
		return nil, err
	}

	var names []string
	for d.More() {
		t, err := d.Token()
		if err != nil {
			return nil, err
		}
		name, ok := t.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v in schema", t)
		}
		names = append(names, name)

		var skip json.RawMessage
		if err := d.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return names, nil
}

// Types is the value of the type keyword.
type Types []string

func (t *Types) UnmarshalJSON(data []byte) error {
	switch data[0] {
	case 'n':
		*t = nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Types{s}
	case '[':
		var ss []string
		if err := json.Unmarshal(data, &ss); err != nil {
			return fmt.Errorf("type must be a string or a list of strings: %w", err)
		}
		if ss == nil {
			ss = []string{}
		}
		*t = ss
	default:
		return errors.New("type must be a string or a list of strings")
	}
	return nil
}

// props is an ordered list of properties. The order of the properties
// is the order in which they were defined in the schema.
type props []*Schema

var _ json.Unmarshaler = (*props)(nil)

func (v *props) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] != '{' {
		return errors.New("properties must be an object")
	}

	d := json.NewDecoder(bytes.NewReader(data))
	t, err := d.Token()
	if err != nil {
		return err
	}
	if t != json.Delim('{') {
		return errors.New("properties must be an object")
	}

	// A present but empty object still counts as present.
	*v = props{}
	for d.More() {
		t, err := d.Token()
		if err != nil {
			return err
		}
		name, ok := t.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v in properties", t)
		}
		s := &Schema{}
		if err := d.Decode(s); err != nil {
			return fmt.Errorf("property %q: %w", name, err)
		}
		s.Name = name
		*v = append(*v, s)
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
