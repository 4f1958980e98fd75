package jsonschema

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the structural form of a schema node. The compiler handles each
// kind in a single switch, so the set below is the complete list of supported
// constructs.
type Kind int

const (
	// KindAny accepts any JSON value: an empty schema, a schema holding only
	// annotations, or the boolean schema true.
	KindAny Kind = iota
	// KindNever is the boolean schema false.
	KindNever
	KindProperties
	KindAllOf
	KindAnyOf
	KindOneOf
	KindPrefixItems
	KindEnum
	KindConst
	KindRef
	KindType
	// KindUnsupported is a node driven by a keyword the compiler does not
	// handle, such as not or if. [Schema.Unsupported] names it.
	KindUnsupported
)

var kindNames = [...]string{
	KindAny:         "any",
	KindNever:       "never",
	KindProperties:  "properties",
	KindAllOf:       "allOf",
	KindAnyOf:       "anyOf",
	KindOneOf:       "oneOf",
	KindPrefixItems: "prefixItems",
	KindEnum:        "enum",
	KindConst:       "const",
	KindRef:         "$ref",
	KindType:        "type",
	KindUnsupported: "unsupported",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Kind classifies s. When several structural keywords are present the first
// one in declaration order of the Kind constants wins, so an object with both
// properties and type is handled as properties.
func (s *Schema) Kind() Kind {
	switch {
	case s.Bool != nil && *s.Bool:
		return KindAny
	case s.Bool != nil:
		return KindNever
	case s.Properties != nil:
		return KindProperties
	case s.AllOf != nil:
		return KindAllOf
	case s.AnyOf != nil:
		return KindAnyOf
	case s.OneOf != nil:
		return KindOneOf
	case s.PrefixItems != nil:
		return KindPrefixItems
	case s.Enum != nil:
		return KindEnum
	case s.Const != nil:
		return KindConst
	case s.Ref != "":
		return KindRef
	case s.Type != nil:
		return KindType
	case s.Unsupported() != "":
		return KindUnsupported
	default:
		return KindAny
	}
}

// annotations are keywords that do not constrain a value on their own. A
// node holding nothing else accepts any value.
var annotations = map[string]bool{
	"$schema":     true,
	"$id":         true,
	"$comment":    true,
	"$anchor":     true,
	"$defs":       true,
	"definitions": true,
	"title":       true,
	"description": true,
	"examples":    true,
	"default":     true,
	"deprecated":  true,
	"readOnly":    true,
	"writeOnly":   true,
	"depth":       true,
	// "type": null
	"type": true,
}

// Unsupported returns the first keyword of s, in document order, that is not
// an annotation, or "" if there is none. Kind consults it only after every
// structural keyword, so for a KindUnsupported node it names the keyword that
// cannot be compiled.
func (s *Schema) Unsupported() string {
	for _, k := range s.Keywords {
		if !annotations[k] {
			return k
		}
	}
	return ""
}

// WithType returns a shallow copy of s restricted to a single type.
func (s *Schema) WithType(typ string) *Schema {
	c := *s
	c.Type = Types{typ}
	return &c
}

// ErrRefNotFound is returned by Resolve when a reference names a location
// that does not exist in the document.
var ErrRefNotFound = errors.New("reference not found")

// Resolve follows a JSON pointer fragment (without the leading '#') from s.
// Pointer segments may step through $defs, definitions, properties, items,
// prefixItems, allOf, anyOf, oneOf and additionalProperties.
func (s *Schema) Resolve(pointer string) (*Schema, error) {
	cur := s
	segments := strings.Split(strings.TrimPrefix(pointer, "/"), "/")
	if pointer == "" || pointer == "/" {
		segments = nil
	}

	for i := 0; i < len(segments); i++ {
		seg := unescape(segments[i])
		if cur == nil || cur.Bool != nil {
			return nil, fmt.Errorf("%w: %s", ErrRefNotFound, pointer)
		}

		next := func() (string, bool) {
			if i+1 >= len(segments) {
				return "", false
			}
			i++
			return unescape(segments[i]), true
		}

		switch seg {
		case "$defs", "definitions":
			name, ok := next()
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrRefNotFound, pointer)
			}
			defs := cur.Defs
			if seg == "definitions" {
				defs = cur.Definitions
			}
			cur = defs[name]
		case "properties":
			name, ok := next()
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrRefNotFound, pointer)
			}
			var found *Schema
			for _, p := range cur.Properties {
				if p.Name == name {
					found = p
					break
				}
			}
			cur = found
		case "items":
			cur = cur.Items
		case "additionalProperties":
			cur = cur.AdditionalProperties
		case "prefixItems", "allOf", "anyOf", "oneOf":
			list := map[string][]*Schema{
				"prefixItems": cur.PrefixItems,
				"allOf":       cur.AllOf,
				"anyOf":       cur.AnyOf,
				"oneOf":       cur.OneOf,
			}[seg]
			idx, ok := next()
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrRefNotFound, pointer)
			}
			n, err := strconv.Atoi(idx)
			if err != nil || n < 0 || n >= len(list) {
				return nil, fmt.Errorf("%w: %s", ErrRefNotFound, pointer)
			}
			cur = list[n]
		default:
			return nil, fmt.Errorf("%w: %s", ErrRefNotFound, pointer)
		}
	}

	if cur == nil {
		return nil, fmt.Errorf("%w: %s", ErrRefNotFound, pointer)
	}
	return cur, nil
}

// unescape decodes a JSON pointer reference token.
func unescape(seg string) string {
	if !strings.Contains(seg, "~") {
		return seg
	}
	return strings.NewReplacer("~1", "/", "~0", "~").Replace(seg)
}
