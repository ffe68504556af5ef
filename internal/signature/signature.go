// Package signature parses and validates the compact type-shape syntax
// used to declare tool and agent input/output contracts:
// `(p1 :T1, p2 :T2) -> Tret` where types are primitives
// (:int :float :string :bool :keyword :any :map), optional `T?`,
// lists `[T]`, record-maps `{field T, ...}`, and the tool-result
// pattern `{result T, error :keyword?}`.
package signature

import (
	"fmt"
	"strings"

	"github.com/ptcrunner/ptcrunner/internal/lisp/object"
	"github.com/ptcrunner/ptcrunner/internal/taxonomy"
)

// Kind tags the shape of a parsed Type.
type Kind int

const (
	KPrimitive Kind = iota
	KList
	KRecord
	KResult
)

// Primitive names.
const (
	Int     = "int"
	Float   = "float"
	String  = "string"
	Bool    = "bool"
	Keyword = "keyword"
	Any     = "any"
	Map     = "map"
)

// Type is a parsed type expression.
type Type struct {
	Kind     Kind
	Name     string          // primitive name, when Kind == KPrimitive
	Nullable bool            // trailing `?`
	Elem     *Type           // KList element type
	Fields   []Field         // KRecord fields
	Result   *Type           // KResult's "result" field type
	ErrorKw  bool            // KResult declares an `error :keyword?` field
}

// Field is one declared record-map field.
type Field struct {
	Name     string
	Type     *Type
	Optional bool
}

// Param is one declared input parameter.
type Param struct {
	Name string
	Type *Type
}

// Signature is a fully parsed `(params) -> return` declaration.
type Signature struct {
	Params []Param
	Return *Type
}

// Parse parses a signature string such as `(a :int, b :string?) -> :map`.
func Parse(s string) (*Signature, error) {
	p := &sigParser{input: s}
	p.skipSpace()
	if err := p.expect('('); err != nil {
		return nil, err
	}
	var params []Param
	p.skipSpace()
	for p.peek() != ')' {
		name := p.readIdent()
		p.skipSpace()
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		params = append(params, Param{Name: name, Type: t})
		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
			p.skipSpace()
		}
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	p.skipSpace()
	if err := p.expectStr("->"); err != nil {
		return nil, err
	}
	p.skipSpace()
	ret, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return nil, p.errf("unexpected trailing input")
	}
	return &Signature{Params: params, Return: ret}, nil
}

type sigParser struct {
	input string
	pos   int
}

func (p *sigParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *sigParser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t' || p.input[p.pos] == '\n') {
		p.pos++
	}
}

func (p *sigParser) expect(b byte) error {
	if p.peek() != b {
		return p.errf("expected %q", b)
	}
	p.pos++
	return nil
}

func (p *sigParser) expectStr(s string) error {
	if !strings.HasPrefix(p.input[p.pos:], s) {
		return p.errf("expected %q", s)
	}
	p.pos += len(s)
	return nil
}

func (p *sigParser) errf(format string, args ...interface{}) error {
	return taxonomy.New(taxonomy.ParseError, fmt.Sprintf(format, args...)).WithOp("signature").WithDetail("pos", p.pos)
}

func (p *sigParser) readIdent() string {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == ':' || c == ',' || c == ')' || c == ']' || c == '}' || c == ' ' || c == '\t' || c == '\n' {
			break
		}
		p.pos++
	}
	return p.input[start:p.pos]
}

// parseType parses one type expression starting at :name, [..], or {..}.
func (p *sigParser) parseType() (*Type, error) {
	p.skipSpace()
	switch p.peek() {
	case ':':
		p.pos++
		name := p.readIdent()
		nullable := false
		if strings.HasSuffix(name, "?") {
			nullable = true
			name = strings.TrimSuffix(name, "?")
		}
		return &Type{Kind: KPrimitive, Name: name, Nullable: nullable}, nil
	case '[':
		p.pos++
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if err := p.expect(']'); err != nil {
			return nil, err
		}
		nullable := p.consumeOptionalMark()
		return &Type{Kind: KList, Elem: elem, Nullable: nullable}, nil
	case '{':
		p.pos++
		return p.parseRecordOrResult()
	default:
		return nil, p.errf("expected a type at position %d", p.pos)
	}
}

func (p *sigParser) consumeOptionalMark() bool {
	if p.peek() == '?' {
		p.pos++
		return true
	}
	return false
}

func (p *sigParser) parseRecordOrResult() (*Type, error) {
	var fields []Field
	p.skipSpace()
	for p.peek() != '}' {
		name := p.readIdent()
		optional := false
		if strings.HasSuffix(name, "?") {
			optional = true
			name = strings.TrimSuffix(name, "?")
		}
		p.skipSpace()
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if t.Nullable {
			optional = true
		}
		fields = append(fields, Field{Name: name, Type: t, Optional: optional})
		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
			p.skipSpace()
		}
	}
	if err := p.expect('}'); err != nil {
		return nil, err
	}
	nullable := p.consumeOptionalMark()

	if len(fields) >= 1 && fields[0].Name == "result" {
		rt := &Type{Kind: KResult, Result: fields[0].Type, Nullable: nullable}
		for _, f := range fields[1:] {
			if f.Name == "error" {
				rt.ErrorKw = true
			}
		}
		return rt, nil
	}
	return &Type{Kind: KRecord, Fields: fields, Nullable: nullable}, nil
}

// Render produces the canonical string form of t, the inverse of Parse
// for prompt rendering.
func Render(t *Type) string {
	if t == nil {
		return ""
	}
	suffix := ""
	if t.Nullable {
		suffix = "?"
	}
	switch t.Kind {
	case KPrimitive:
		return ":" + t.Name + suffix
	case KList:
		return "[" + Render(t.Elem) + "]" + suffix
	case KRecord:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			name := f.Name
			if f.Optional {
				name += "?"
			}
			parts[i] = name + " " + Render(f.Type)
		}
		return "{" + strings.Join(parts, ", ") + "}" + suffix
	case KResult:
		if t.ErrorKw {
			return fmt.Sprintf("{result %s, error :keyword?}", Render(t.Result))
		}
		return fmt.Sprintf("{result %s}", Render(t.Result))
	default:
		return "?"
	}
}

// Issue is one validation failure at path.
type Issue struct {
	Path    string
	Message string
}

// Validate recursively checks v against t, per the recursive-descent
// rules: primitive host-representation matching, :any matches
// everything, T? accepts nil, [T] requires a vector with every element
// validated, {field T, ...} requires a map with every non-optional
// field present (extra fields accepted, field order irrelevant), and
// {result T, error :keyword?} recognizes the {:ok, T} | {:error, :atom}
// tool-result convention.
func Validate(v object.Value, t *Type) []Issue {
	return validateAt("", v, t)
}

func validateAt(path string, v object.Value, t *Type) []Issue {
	if t == nil {
		return nil
	}
	if _, isNil := v.(object.Nil); isNil {
		if t.Nullable || (t.Kind == KPrimitive && t.Name == Any) {
			return nil
		}
		return []Issue{{Path: path, Message: "expected " + Render(t) + ", got nil"}}
	}

	switch t.Kind {
	case KPrimitive:
		return validatePrimitive(path, v, t.Name)
	case KList:
		vec, ok := v.(*object.Vector)
		if !ok {
			return []Issue{{Path: path, Message: "expected a list, got " + string(v.Kind())}}
		}
		var issues []Issue
		for i, item := range vec.Items {
			issues = append(issues, validateAt(fmt.Sprintf("%s[%d]", path, i), item, t.Elem)...)
		}
		return issues
	case KRecord:
		m, ok := v.(*object.Map)
		if !ok {
			return []Issue{{Path: path, Message: "expected a map, got " + string(v.Kind())}}
		}
		var issues []Issue
		for _, f := range t.Fields {
			fv, found := m.Get(object.Keyword{Name: f.Name})
			if !found {
				if !f.Optional {
					issues = append(issues, Issue{Path: path + "." + f.Name, Message: "missing required field " + f.Name})
				}
				continue
			}
			issues = append(issues, validateAt(path+"."+f.Name, fv, f.Type)...)
		}
		return issues
	case KResult:
		m, ok := v.(*object.Map)
		if !ok {
			return []Issue{{Path: path, Message: "expected a {:ok,...}/{:error,...} result map"}}
		}
		if errVal, ok := m.Get(object.Keyword{Name: "error"}); ok {
			if _, isKw := errVal.(object.Keyword); !isKw {
				return []Issue{{Path: path + ".error", Message: "expected a keyword error atom"}}
			}
			return nil
		}
		if okVal, ok := m.Get(object.Keyword{Name: "ok"}); ok {
			return validateAt(path+".ok", okVal, t.Result)
		}
		return []Issue{{Path: path, Message: "result map missing :ok or :error"}}
	default:
		return nil
	}
}

func validatePrimitive(path string, v object.Value, name string) []Issue {
	if name == Any {
		return nil
	}
	if name == Map {
		if _, ok := v.(*object.Map); ok {
			return nil
		}
		return []Issue{{Path: path, Message: "expected map, got " + string(v.Kind())}}
	}
	ok := false
	switch name {
	case Int:
		_, ok = v.(object.Int)
	case Float:
		_, ok = v.(object.Float)
	case String:
		_, ok = v.(object.String)
	case Bool:
		_, ok = v.(object.Bool)
	case Keyword:
		_, ok = v.(object.Keyword)
	}
	if !ok {
		return []Issue{{Path: path, Message: fmt.Sprintf("expected %s, got %s", name, v.Kind())}}
	}
	return nil
}
