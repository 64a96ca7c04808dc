// Package payload models captured request and response bodies as an explicit
// JSON tree. Redaction and exposure scanning work by structural walks over
// the tree instead of string surgery on serialized bytes.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Kind discriminates the variants of a Value.
type Kind int

const (
	Null Kind = iota
	String
	Number
	Bool
	Object
	Array
)

// Value is one node of a captured JSON document.
// Exactly the field selected by Kind is meaningful.
type Value struct {
	Kind Kind
	Str  string
	Num  json.Number
	Bool bool
	Obj  map[string]*Value
	Arr  []*Value
}

// Str returns a string node.
func Str(s string) *Value { return &Value{Kind: String, Str: s} }

// FromJSON parses raw JSON into a Value tree. Numbers are kept in their
// source form so re-serialization does not reformat them.
func FromJSON(data []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}
	return fromAny(raw)
}

func fromAny(raw any) (*Value, error) {
	switch v := raw.(type) {
	case nil:
		return &Value{Kind: Null}, nil
	case string:
		return &Value{Kind: String, Str: v}, nil
	case json.Number:
		return &Value{Kind: Number, Num: v}, nil
	case bool:
		return &Value{Kind: Bool, Bool: v}, nil
	case map[string]any:
		obj := make(map[string]*Value, len(v))
		for k, elem := range v {
			child, err := fromAny(elem)
			if err != nil {
				return nil, err
			}
			obj[k] = child
		}
		return &Value{Kind: Object, Obj: obj}, nil
	case []any:
		arr := make([]*Value, len(v))
		for i, elem := range v {
			child, err := fromAny(elem)
			if err != nil {
				return nil, err
			}
			arr[i] = child
		}
		return &Value{Kind: Array, Arr: arr}, nil
	default:
		return nil, fmt.Errorf("unsupported payload node %T", raw)
	}
}

// MarshalJSON serializes the tree back to JSON. Object keys are emitted in
// sorted order so output is deterministic.
func (v *Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case Null:
		return []byte("null"), nil
	case String:
		return json.Marshal(v.Str)
	case Number:
		if v.Num == "" {
			return []byte("0"), nil
		}
		return []byte(v.Num), nil
	case Bool:
		return json.Marshal(v.Bool)
	case Object:
		keys := make([]string, 0, len(v.Obj))
		for k := range v.Obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := json.Marshal(v.Obj[k])
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	case Array:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range v.Arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			eb, err := json.Marshal(elem)
			if err != nil {
				return nil, err
			}
			buf.Write(eb)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported payload kind %d", v.Kind)
	}
}

// UnmarshalJSON parses JSON into the receiver.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := FromJSON(data)
	if err != nil {
		return err
	}
	*v = *parsed
	return nil
}

// JSON returns the serialized tree.
func (v *Value) JSON() ([]byte, error) {
	return json.Marshal(v)
}

// ReplaceStrings walks the tree and passes every string node to fn. When fn
// returns a replacement and true, the node's value is swapped in place.
// It reports whether any node was replaced.
func (v *Value) ReplaceStrings(fn func(s string) (string, bool)) bool {
	if v == nil {
		return false
	}
	replaced := false
	switch v.Kind {
	case String:
		if next, ok := fn(v.Str); ok {
			v.Str = next
			replaced = true
		}
	case Object:
		for _, child := range v.Obj {
			if child.ReplaceStrings(fn) {
				replaced = true
			}
		}
	case Array:
		for _, child := range v.Arr {
			if child.ReplaceStrings(fn) {
				replaced = true
			}
		}
	}
	return replaced
}

// MaskFields walks the tree and replaces the value of every object field
// whose name is in names with a string node holding mask. Nested objects and
// arrays are visited too.
func (v *Value) MaskFields(names map[string]bool, mask string) {
	if v == nil {
		return
	}
	switch v.Kind {
	case Object:
		for k, child := range v.Obj {
			if names[k] {
				v.Obj[k] = Str(mask)
				continue
			}
			child.MaskFields(names, mask)
		}
	case Array:
		for _, child := range v.Arr {
			child.MaskFields(names, mask)
		}
	}
}

// Clone returns a deep copy of the tree.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	out := &Value{Kind: v.Kind, Str: v.Str, Num: v.Num, Bool: v.Bool}
	if v.Obj != nil {
		out.Obj = make(map[string]*Value, len(v.Obj))
		for k, child := range v.Obj {
			out.Obj[k] = child.Clone()
		}
	}
	if v.Arr != nil {
		out.Arr = make([]*Value, len(v.Arr))
		for i, child := range v.Arr {
			out.Arr[i] = child.Clone()
		}
	}
	return out
}
