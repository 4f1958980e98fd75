// Package grammar compiles JSON schemas into regular expressions that match
// the JSON text of conforming documents. The expressions use RE2 syntax and
// are meant to be handed to a regex-to-automaton compiler.
package grammar

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/ollama/fsmindex/grammar/jsonschema"
)

// MaxRefDepth bounds how many $ref hops may be nested while compiling one
// value. Recursive schemas hit this limit.
const MaxRefDepth = 32

// defaultDepth is how deeply untyped arrays and objects may nest when a
// schema does not say.
const defaultDepth = 2

// anyTypes are the types an unconstrained value may take, in the order
// their alternatives appear in the pattern.
var anyTypes = jsonschema.Types{"boolean", "null", "number", "integer", "string", "array", "object"}

// untypedTypes are the element types of arrays and objects without an item
// schema. Nested arrays and objects are added while depth allows.
var untypedTypes = []string{"string", "number", "boolean", "null"}

type options struct {
	ws string
}

// Option configures compilation.
type Option func(*options)

// WithWhitespace replaces the pattern allowed between structural tokens.
// The default is [Whitespace].
func WithWhitespace(pattern string) Option {
	return func(o *options) {
		o.ws = pattern
	}
}

// BuildRegexFromSchema parses a JSON schema document and compiles it.
func BuildRegexFromSchema(data []byte, opts ...Option) (string, error) {
	s, err := jsonschema.Parse(data)
	if err != nil {
		return "", &CompileError{Path: "#", Err: fmt.Errorf("%w: %v", ErrInvalidSchema, err)}
	}
	return ToRegex(s, s, opts...)
}

// ToRegex compiles s. References are resolved against root; a nil root means
// s is the document root.
func ToRegex(s, root *jsonschema.Schema, opts ...Option) (string, error) {
	o := options{ws: Whitespace}
	for _, opt := range opts {
		opt(&o)
	}
	if _, err := regexp.Compile(o.ws); err != nil {
		return "", &CompileError{Path: "#", Err: fmt.Errorf("%w: %q: %v", ErrInvalidWhitespace, o.ws, err)}
	}
	if root == nil {
		root = s
	}
	if s == nil {
		return "", errorf("#", ErrInvalidSchema, "nil schema")
	}

	c := compiler{ws: o.ws, root: root}
	return c.compile(s, "#")
}

type compiler struct {
	ws   string
	root *jsonschema.Schema

	// refs counts $ref hops on the current path.
	refs int
}

func (c *compiler) compile(s *jsonschema.Schema, path string) (string, error) {
	switch kind := s.Kind(); kind {
	case jsonschema.KindAny:
		return c.compile(&jsonschema.Schema{Type: anyTypes, Depth: s.Depth}, path)
	case jsonschema.KindNever:
		return "", errorf(path, ErrUnsupportedSchema, "schema false matches nothing")
	case jsonschema.KindProperties:
		return c.properties(s, path)
	case jsonschema.KindAllOf, jsonschema.KindAnyOf, jsonschema.KindOneOf:
		return c.combinator(s, kind, path)
	case jsonschema.KindPrefixItems:
		elems := make([]string, len(s.PrefixItems))
		for i, item := range s.PrefixItems {
			re, err := c.compile(item, fmt.Sprintf("%s/prefixItems/%d", path, i))
			if err != nil {
				return "", err
			}
			elems[i] = re
		}
		sep := c.ws + "," + c.ws
		return `\[` + c.ws + strings.Join(elems, sep) + c.ws + `\]`, nil
	case jsonschema.KindEnum:
		if len(s.Enum) == 0 {
			return "", errorf(path, ErrInvalidSchema, "enum must not be empty")
		}
		choices := make([]string, len(s.Enum))
		for i, v := range s.Enum {
			lit, err := literal(v)
			if err != nil {
				return "", errorf(fmt.Sprintf("%s/enum/%d", path, i), ErrInvalidSchema, "%v", err)
			}
			choices[i] = lit
		}
		return "(" + strings.Join(choices, "|") + ")", nil
	case jsonschema.KindConst:
		lit, err := literal(s.Const)
		if err != nil {
			return "", errorf(path+"/const", ErrInvalidSchema, "%v", err)
		}
		return lit, nil
	case jsonschema.KindRef:
		return c.ref(s, path)
	case jsonschema.KindType:
		return c.types(s, path)
	case jsonschema.KindUnsupported:
		return "", errorf(path, ErrUnsupportedSchema, "keyword %q", s.Unsupported())
	default:
		return "", errorf(path, ErrUnsupportedSchema, "%v", kind)
	}
}

// properties compiles an object with a fixed set of keys. Keys appear in
// document order. Required keys are mandatory; the comma placement depends on
// the position of the last required key.
func (c *compiler) properties(s *jsonschema.Schema, path string) (string, error) {
	ws := c.ws
	subs := make([]string, len(s.Properties))
	for i, p := range s.Properties {
		name, err := encode(p.Name)
		if err != nil {
			return "", errorf(path, ErrInvalidSchema, "property %q: %v", p.Name, err)
		}
		value, err := c.compile(p, path+"/properties/"+escape(p.Name))
		if err != nil {
			return "", err
		}
		subs[i] = ws + regexp.QuoteMeta(name) + ws + ":" + ws + value
	}

	last := -1
	for i, p := range s.Properties {
		if slices.Contains(s.Required, p.Name) {
			last = i
		}
	}

	var b strings.Builder
	b.WriteString(`\{`)
	if last < 0 {
		// Nothing is required: any property may come first, and every
		// property after it is optional.
		patterns := make([]string, len(subs))
		for i := range subs {
			var p strings.Builder
			for _, sub := range subs[:i] {
				p.WriteString("(" + sub + ws + ",)?")
			}
			p.WriteString(subs[i])
			for _, sub := range subs[i+1:] {
				p.WriteString("(" + ws + "," + sub + ")?")
			}
			patterns[i] = p.String()
		}
		if len(patterns) > 0 {
			b.WriteString("(" + strings.Join(patterns, "|") + ")?")
		}
	} else {
		for i, p := range s.Properties {
			sub := subs[i]
			switch {
			case i < last:
				sub = sub + ws + ","
			case i > last:
				sub = ws + "," + sub
			}
			if slices.Contains(s.Required, p.Name) {
				b.WriteString(sub)
			} else {
				b.WriteString("(" + sub + ")?")
			}
		}
	}
	b.WriteString(ws + `\}`)
	return b.String(), nil
}

func (c *compiler) combinator(s *jsonschema.Schema, kind jsonschema.Kind, path string) (string, error) {
	var list []*jsonschema.Schema
	switch kind {
	case jsonschema.KindAllOf:
		list = s.AllOf
	case jsonschema.KindAnyOf:
		list = s.AnyOf
	case jsonschema.KindOneOf:
		list = s.OneOf
	}
	if len(list) == 0 {
		return "", errorf(path, ErrInvalidSchema, "%v must not be empty", kind)
	}

	subs := make([]string, len(list))
	for i, sub := range list {
		re, err := c.compile(sub, fmt.Sprintf("%s/%v/%d", path, kind, i))
		if err != nil {
			return "", err
		}
		subs[i] = re
	}

	switch kind {
	case jsonschema.KindAllOf:
		return "(" + strings.Join(subs, "") + ")", nil
	case jsonschema.KindOneOf:
		for i := range subs {
			subs[i] = "(?:" + subs[i] + ")"
		}
	}
	return "(" + strings.Join(subs, "|") + ")", nil
}

func (c *compiler) ref(s *jsonschema.Schema, path string) (string, error) {
	if c.refs >= MaxRefDepth {
		return "", errorf(path, ErrRefDepth, "%q", s.Ref)
	}

	base, fragment, ok := strings.Cut(s.Ref, "#")
	if !ok {
		return "", errorf(path, ErrExternalRef, "%q", s.Ref)
	}
	if base != "" && base != c.root.ID {
		return "", errorf(path, ErrExternalRef, "%q", s.Ref)
	}

	target, err := c.root.Resolve(fragment)
	if err != nil {
		return "", errorf(path, ErrUnresolvedRef, "%q", s.Ref)
	}

	c.refs++
	defer func() { c.refs-- }()
	return c.compile(target, path+"/$ref")
}

func (c *compiler) types(s *jsonschema.Schema, path string) (string, error) {
	switch len(s.Type) {
	case 0:
		return "", errorf(path+"/type", ErrInvalidSchema, "type list must not be empty")
	case 1:
	default:
		subs := make([]string, len(s.Type))
		for i, typ := range s.Type {
			re, err := c.compile(s.WithType(typ), path)
			if err != nil {
				return "", err
			}
			subs[i] = re
		}
		return "(" + strings.Join(subs, "|") + ")", nil
	}

	switch typ := s.Type[0]; typ {
	case "string":
		return c.str(s, path)
	case "integer":
		if s.MinDigits == nil && s.MaxDigits == nil {
			return Integer, nil
		}
		q, err := quantifier(s.MinDigits, s.MaxDigits, 1, "*")
		if err != nil {
			return "", errorf(path, ErrInvalidSchema, "digits: %v", err)
		}
		return `(-)?(0|[1-9][0-9]` + q + `)`, nil
	case "number":
		return c.number(s, path)
	case "boolean":
		return Boolean, nil
	case "null":
		return Null, nil
	case "array":
		return c.array(s, path)
	case "object":
		return c.object(s, path)
	default:
		return "", errorf(path+"/type", ErrUnsupportedType, "%q", typ)
	}
}

func (c *compiler) str(s *jsonschema.Schema, path string) (string, error) {
	switch {
	case s.MinLength != nil || s.MaxLength != nil:
		lo := 0
		if s.MinLength != nil {
			lo = *s.MinLength
		}
		hi := ""
		if s.MaxLength != nil {
			if *s.MaxLength < lo {
				return "", errorf(path, ErrInvalidSchema, "maxLength %d is less than minLength %d", *s.MaxLength, lo)
			}
			hi = strconv.Itoa(*s.MaxLength)
		}
		return fmt.Sprintf(`"%s{%d,%s}"`, StringInner, lo, hi), nil
	case s.Pattern != "":
		p := strings.TrimPrefix(s.Pattern, "^")
		p = strings.TrimSuffix(p, "$")
		return `("` + p + `")`, nil
	case s.Format != "":
		if re, ok := formats[s.Format]; ok {
			return re, nil
		}
		return "", errorf(path+"/format", ErrUnsupportedFormat, "%q", s.Format)
	default:
		return String, nil
	}
}

func (c *compiler) number(s *jsonschema.Schema, path string) (string, error) {
	if s.MinDigitsInteger == nil && s.MaxDigitsInteger == nil &&
		s.MinDigitsFraction == nil && s.MaxDigitsFraction == nil &&
		s.MinDigitsExponent == nil && s.MaxDigitsExponent == nil {
		return Number, nil
	}

	integer, err := quantifier(s.MinDigitsInteger, s.MaxDigitsInteger, 1, "*")
	if err != nil {
		return "", errorf(path, ErrInvalidSchema, "integer digits: %v", err)
	}
	fraction, err := quantifier(s.MinDigitsFraction, s.MaxDigitsFraction, 0, "+")
	if err != nil {
		return "", errorf(path, ErrInvalidSchema, "fraction digits: %v", err)
	}
	exponent, err := quantifier(s.MinDigitsExponent, s.MaxDigitsExponent, 0, "+")
	if err != nil {
		return "", errorf(path, ErrInvalidSchema, "exponent digits: %v", err)
	}
	return `((-)?(0|[1-9][0-9]` + integer + `))(\.[0-9]` + fraction + `)?([eE][+-][0-9]` + exponent + `)?`, nil
}

func (c *compiler) array(s *jsonschema.Schema, path string) (string, error) {
	ws := c.ws
	rep, ok, err := repetition(s.MinItems, s.MaxItems)
	if err != nil {
		return "", errorf(path, ErrInvalidSchema, "items: %v", err)
	}
	if !ok || (s.Items != nil && s.Items.Bool != nil && !*s.Items.Bool) {
		return `\[` + ws + `\]`, nil
	}

	var elem string
	if s.Items != nil {
		re, err := c.compile(s.Items, path+"/items")
		if err != nil {
			return "", err
		}
		elem = re
	} else {
		re, err := c.untyped(s, path)
		if err != nil {
			return "", err
		}
		elem = re
	}

	return `\[` + ws + "((" + elem + ")(," + ws + "(" + elem + "))" + rep + ")" + allowEmpty(s.MinItems) + ws + `\]`, nil
}

func (c *compiler) object(s *jsonschema.Schema, path string) (string, error) {
	ws := c.ws
	rep, ok, err := repetition(s.MinProperties, s.MaxProperties)
	if err != nil {
		return "", errorf(path, ErrInvalidSchema, "properties: %v", err)
	}
	ap := s.AdditionalProperties
	if !ok || (ap != nil && ap.Bool != nil && !*ap.Bool) {
		return `\{` + ws + `\}`, nil
	}

	var value string
	if ap == nil || ap.Bool != nil {
		re, err := c.untyped(s, path)
		if err != nil {
			return "", err
		}
		value = "(" + re + ")"
	} else {
		re, err := c.compile(ap, path+"/additionalProperties")
		if err != nil {
			return "", err
		}
		value = re
	}

	kv := String + ws + ":" + ws + value
	return `\{` + ws + "(" + kv + "(" + ws + "," + ws + kv + ")" + rep + ")" + allowEmpty(s.MinProperties) + ws + `\}`, nil
}

// untyped is the alternation of values allowed inside an array or object
// that does not constrain them. Containers nest one level less each time.
func (c *compiler) untyped(s *jsonschema.Schema, path string) (string, error) {
	depth := defaultDepth
	if s.Depth != nil {
		depth = *s.Depth
	}

	var subs []string
	for _, typ := range untypedTypes {
		re, err := c.compile(&jsonschema.Schema{Type: jsonschema.Types{typ}}, path)
		if err != nil {
			return "", err
		}
		subs = append(subs, re)
	}
	if depth > 0 {
		for _, typ := range []string{"object", "array"} {
			re, err := c.compile(&jsonschema.Schema{Type: jsonschema.Types{typ}, Depth: ptr(depth - 1)}, path)
			if err != nil {
				return "", err
			}
			subs = append(subs, re)
		}
	}
	return strings.Join(subs, "|"), nil
}

// quantifier renders a {lo,hi} bound shifted down by offset. Unset bounds
// produce the unbounded form.
func quantifier(lo, hi *int, offset int, unbounded string) (string, error) {
	if lo == nil && hi == nil {
		return unbounded, nil
	}
	if lo != nil && hi != nil && *hi < *lo {
		return "", fmt.Errorf("max %d is less than min %d", *hi, *lo)
	}

	l := 0
	if lo != nil {
		l = max(*lo-offset, 0)
	}
	if hi == nil {
		return fmt.Sprintf("{%d,}", l), nil
	}
	return fmt.Sprintf("{%d,%d}", l, max(*hi-offset, 0)), nil
}

// repetition bounds how often the separator and element after the first
// one may repeat. It reports false when only the empty container fits.
func repetition(lo, hi *int) (string, bool, error) {
	if lo != nil && hi != nil && *hi < *lo {
		return "", false, fmt.Errorf("max %d is less than min %d", *hi, *lo)
	}

	l := 0
	if lo != nil {
		l = max(*lo-1, 0)
	}
	if hi == nil {
		return fmt.Sprintf("{%d,}", l), true, nil
	}
	if *hi < 1 {
		return "", false, nil
	}
	return fmt.Sprintf("{%d,%d}", l, *hi-1), true, nil
}

func allowEmpty(lo *int) string {
	if lo == nil || *lo == 0 {
		return "?"
	}
	return ""
}

// literal renders a JSON value as a pattern matching its compact text.
func literal(raw json.RawMessage) (string, error) {
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()
	var v any
	if err := d.Decode(&v); err != nil {
		return "", err
	}

	text, err := encode(v)
	if err != nil {
		return "", err
	}
	return regexp.QuoteMeta(text), nil
}

// encode renders v as compact JSON without escaping HTML characters.
func encode(v any) (string, error) {
	var b bytes.Buffer
	e := json.NewEncoder(&b)
	e.SetEscapeHTML(false)
	if err := e.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}

// escape encodes a property name as a JSON pointer reference token.
func escape(name string) string {
	return strings.NewReplacer("~", "~0", "/", "~1").Replace(name)
}

func ptr[T any](v T) *T {
	return &v
}
