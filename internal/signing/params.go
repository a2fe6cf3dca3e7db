package signing

import (
	"sort"
	"strconv"
)

type valueKind uint8

const (
	kindNull valueKind = iota
	kindString
	kindInt
)

// Value is a scalar query parameter value. The zero Value is null.
type Value struct {
	kind valueKind
	str  string
	num  int64
}

// String wraps s.
func String(s string) Value {
	return Value{kind: kindString, str: s}
}

// Int wraps n.
func Int(n int64) Value {
	return Value{kind: kindInt, num: n}
}

// Null returns the null value used for signed keys missing from a request.
func Null() Value {
	return Value{}
}

// IsNull reports whether v carries no value.
func (v Value) IsNull() bool { return v.kind == kindNull }

// IsString reports whether v was built from a string.
func (v Value) IsString() bool { return v.kind == kindString }

// String returns the canonical form of v: integers in decimal, strings as-is
// and null as the empty string.
func (v Value) String() string {
	switch v.kind {
	case kindString:
		return v.str
	case kindInt:
		return strconv.FormatInt(v.num, 10)
	default:
		return ""
	}
}

// Int64 returns v as an integer. Strings are accepted when they hold a
// base-10 integer, which is how timestamps arrive from a query string.
func (v Value) Int64() (int64, bool) {
	switch v.kind {
	case kindInt:
		return v.num, true
	case kindString:
		n, err := strconv.ParseInt(v.str, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Params is an insertion-ordered set of query parameters. The zero value is
// an empty set ready to use. Params is not safe for concurrent mutation.
type Params struct {
	keys   []string
	values map[string]Value
}

// ParamsFromMap builds Params from plain strings, inserting keys in sorted
// order so the result does not depend on map iteration.
func ParamsFromMap(m map[string]string) Params {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var p Params
	for _, k := range keys {
		p.SetString(k, m[k])
	}
	return p
}

// Set stores v under key. Replacing an existing key keeps its position.
func (p *Params) Set(key string, v Value) {
	if p.values == nil {
		p.values = make(map[string]Value)
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = v
}

// SetString is shorthand for Set(key, String(s)).
func (p *Params) SetString(key, s string) { p.Set(key, String(s)) }

// SetInt is shorthand for Set(key, Int(n)).
func (p *Params) SetInt(key string, n int64) { p.Set(key, Int(n)) }

// Get returns the value stored under key.
func (p Params) Get(key string) (Value, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Has reports whether key is present, even with a null value.
func (p Params) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

// Del removes key.
func (p *Params) Del(key string) {
	if _, ok := p.values[key]; !ok {
		return
	}
	delete(p.values, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (p Params) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Len returns the number of keys.
func (p Params) Len() int { return len(p.keys) }

// Clone returns an independent copy of p.
func (p Params) Clone() Params {
	out := Params{
		keys:   make([]string, len(p.keys)),
		values: make(map[string]Value, len(p.values)),
	}
	copy(out.keys, p.keys)
	for k, v := range p.values {
		out.values[k] = v
	}
	return out
}

// Strings flattens p into a plain map using the canonical value form.
func (p Params) Strings() map[string]string {
	out := make(map[string]string, len(p.keys))
	for _, k := range p.keys {
		out[k] = p.values[k].String()
	}
	return out
}

func (p Params) sortedKeys() []string {
	keys := p.Keys()
	sort.Strings(keys)
	return keys
}
