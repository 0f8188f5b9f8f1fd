package ir

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// ValueType identifies which variant a Value holds.
type ValueType int

const (
	// TypeNone is the zero Value.
	TypeNone ValueType = iota
	TypeString
	TypeInt
	TypeFloat
	TypeBool
	TypeList
	TypeMap
)

// String returns the lowercase name of the value type.
func (t ValueType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeList:
		return "list"
	case TypeMap:
		return "map"
	default:
		return "none"
	}
}

// Value is a property value: one of String, Int, Float, Bool, List or Map.
type Value struct {
	typ  ValueType
	str  string
	num  int64
	flt  float64
	flag bool
	list []Value
	m    *Properties
}

// String returns a string Value.
func String(s string) Value { return Value{typ: TypeString, str: s} }

// Int returns an integer Value.
func Int(n int64) Value { return Value{typ: TypeInt, num: n} }

// Float returns a floating point Value.
func Float(f float64) Value { return Value{typ: TypeFloat, flt: f} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{typ: TypeBool, flag: b} }

// List returns a list Value.
func List(items ...Value) Value { return Value{typ: TypeList, list: items} }

// Strings returns a list Value of strings.
func Strings(items ...string) Value {
	list := make([]Value, len(items))
	for i, s := range items {
		list[i] = String(s)
	}
	return List(list...)
}

// Map returns a nested map Value.
func Map(p Properties) Value {
	c := p.Clone()
	return Value{typ: TypeMap, m: &c}
}

// Type returns the variant held by v.
func (v Value) Type() ValueType { return v.typ }

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) { return v.str, v.typ == TypeString }

// AsInt returns the integer held by v.
func (v Value) AsInt() (int64, bool) { return v.num, v.typ == TypeInt }

// AsFloat returns the float held by v. Integers are widened.
func (v Value) AsFloat() (float64, bool) {
	switch v.typ {
	case TypeFloat:
		return v.flt, true
	case TypeInt:
		return float64(v.num), true
	}
	return 0, false
}

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.flag, v.typ == TypeBool }

// AsList returns the items held by v.
func (v Value) AsList() ([]Value, bool) { return v.list, v.typ == TypeList }

// AsMap returns the nested properties held by v.
func (v Value) AsMap() (Properties, bool) {
	if v.typ != TypeMap || v.m == nil {
		return Properties{}, false
	}
	return *v.m, true
}

// Equal reports whether two values hold the same variant and content.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeString:
		return v.str == o.str
	case TypeInt:
		return v.num == o.num
	case TypeFloat:
		return v.flt == o.flt
	case TypeBool:
		return v.flag == o.flag
	case TypeList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case TypeMap:
		a, _ := v.AsMap()
		b, _ := o.AsMap()
		return a.Equal(b)
	}
	return true
}

// Interface returns v as a plain Go value (string, int64, float64, bool,
// []any or map[string]any).
func (v Value) Interface() any {
	switch v.typ {
	case TypeString:
		return v.str
	case TypeInt:
		return v.num
	case TypeFloat:
		return v.flt
	case TypeBool:
		return v.flag
	case TypeList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case TypeMap:
		m, _ := v.AsMap()
		out := make(map[string]any, m.Len())
		for k, item := range m.All() {
			out[k] = item.Interface()
		}
		return out
	}
	return nil
}

// String renders v for display and for XML attributes.
func (v Value) String() string {
	switch v.typ {
	case TypeString:
		return v.str
	case TypeInt:
		return strconv.FormatInt(v.num, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.flt, 'g', -1, 64)
	case TypeBool:
		return strconv.FormatBool(v.flag)
	case TypeList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return strings.Join(parts, " ")
	case TypeMap:
		m, _ := v.AsMap()
		parts := make([]string, 0, m.Len())
		for k, item := range m.All() {
			parts = append(parts, fmt.Sprintf("%s=%s", k, item))
		}
		return strings.Join(parts, ";")
	}
	return ""
}

// Property is one key/value entry of Properties.
type Property struct {
	Key   string
	Value Value
}

// Properties is an ordered string-keyed map. Keys are unique; insertion order
// is preserved for deterministic output but ignored by Equal.
// The zero value is an empty map ready to use.
type Properties struct {
	entries []Property
}

func (p Properties) index(key string) int {
	for i := range p.entries {
		if p.entries[i].Key == key {
			return i
		}
	}
	return -1
}

// Set stores v under key, replacing any existing value in place.
func (p *Properties) Set(key string, v Value) {
	if i := p.index(key); i >= 0 {
		p.entries[i].Value = v
		return
	}
	p.entries = append(p.entries, Property{Key: key, Value: v})
}

// SetString stores a string value.
func (p *Properties) SetString(key, s string) { p.Set(key, String(s)) }

// SetInt stores an integer value.
func (p *Properties) SetInt(key string, n int64) { p.Set(key, Int(n)) }

// SetBool stores a boolean value.
func (p *Properties) SetBool(key string, b bool) { p.Set(key, Bool(b)) }

// Get returns the value stored under key.
func (p Properties) Get(key string) (Value, bool) {
	if i := p.index(key); i >= 0 {
		return p.entries[i].Value, true
	}
	return Value{}, false
}

// GetString returns the string stored under key.
func (p Properties) GetString(key string) (string, bool) {
	v, ok := p.Get(key)
	if !ok {
		return "", false
	}
	return v.AsString()
}

// GetInt returns the integer stored under key.
func (p Properties) GetInt(key string) (int64, bool) {
	v, ok := p.Get(key)
	if !ok {
		return 0, false
	}
	return v.AsInt()
}

// GetBool returns the boolean stored under key.
func (p Properties) GetBool(key string) (bool, bool) {
	v, ok := p.Get(key)
	if !ok {
		return false, false
	}
	return v.AsBool()
}

// Has reports whether key is present.
func (p Properties) Has(key string) bool {
	return p.index(key) >= 0
}

// Delete removes key and reports whether it was present.
func (p *Properties) Delete(key string) bool {
	i := p.index(key)
	if i < 0 {
		return false
	}
	p.entries = append(p.entries[:i], p.entries[i+1:]...)
	return true
}

// Len returns the number of entries.
func (p Properties) Len() int { return len(p.entries) }

// Keys returns the keys in insertion order.
func (p Properties) Keys() []string {
	keys := make([]string, len(p.entries))
	for i, e := range p.entries {
		keys[i] = e.Key
	}
	return keys
}

// All iterates entries in insertion order.
func (p Properties) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for _, e := range p.entries {
			if !yield(e.Key, e.Value) {
				return
			}
		}
	}
}

// Equal reports whether both maps hold the same keys and values, in any order.
func (p Properties) Equal(o Properties) bool {
	if len(p.entries) != len(o.entries) {
		return false
	}
	for _, e := range p.entries {
		v, ok := o.Get(e.Key)
		if !ok || !e.Value.Equal(v) {
			return false
		}
	}
	return true
}

// Clone returns a copy that does not share entry storage with p.
func (p Properties) Clone() Properties {
	if len(p.entries) == 0 {
		return Properties{}
	}
	entries := make([]Property, len(p.entries))
	copy(entries, p.entries)
	return Properties{entries: entries}
}

// Merge copies every entry of o into p, overwriting existing keys.
func (p *Properties) Merge(o Properties) {
	for _, e := range o.entries {
		p.Set(e.Key, e.Value)
	}
}
