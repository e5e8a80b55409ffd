// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"math"
	"sort"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindInvalid Kind = iota
	KindString
	KindNumber
	KindBool
	KindMap
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	default:
		return "invalid"
	}
}

// Value is a single entry of a template data context. The zero Value is
// invalid and is dropped when the context is handed to the template engine.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	m    Data
	list []Data
}

func String(s string) Value    { return Value{kind: KindString, str: s} }
func Number(f float64) Value   { return Value{kind: KindNumber, num: f} }
func Int(i int) Value          { return Value{kind: KindNumber, num: float64(i)} }
func Bool(b bool) Value        { return Value{kind: KindBool, b: b} }
func Map(d Data) Value         { return Value{kind: KindMap, m: d} }
func List(items ...Data) Value { return Value{kind: KindList, list: items} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) AsMap() (Data, bool) { return v.m, v.kind == KindMap }

func (v Value) AsList() ([]Data, bool) { return v.list, v.kind == KindList }

// Interface converts the value into the plain Go value handed to html/template.
// Whole numbers become int64 so counts render as "1500" instead of "1.5e+03".
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		if v.num == math.Trunc(v.num) && math.Abs(v.num) < 1<<53 {
			return int64(v.num)
		}
		return v.num
	case KindBool:
		return v.b
	case KindMap:
		return v.m.Map()
	case KindList:
		out := make([]map[string]any, 0, len(v.list))
		for _, item := range v.list {
			out = append(out, item.Map())
		}
		return out
	default:
		return nil
	}
}

// Data is the set of named values substituted into a template at render time.
// A Data is built for a single render call and must not be shared.
type Data map[string]Value

func NewData() Data {
	return make(Data)
}

func (d Data) Set(key string, v Value) Data {
	d[key] = v
	return d
}

func (d Data) SetString(key, s string) Data         { return d.Set(key, String(s)) }
func (d Data) SetNumber(key string, f float64) Data { return d.Set(key, Number(f)) }
func (d Data) SetInt(key string, i int) Data        { return d.Set(key, Int(i)) }
func (d Data) SetBool(key string, b bool) Data      { return d.Set(key, Bool(b)) }
func (d Data) SetMap(key string, m Data) Data       { return d.Set(key, Map(m)) }
func (d Data) SetList(key string, items []Data) Data {
	return d.Set(key, List(items...))
}

// SetIfNotEmpty stores s only when it is non-empty.
func (d Data) SetIfNotEmpty(key, s string) Data {
	if s != "" {
		d[key] = String(s)
	}
	return d
}

// Merge copies every entry of other into d, overwriting existing keys.
func (d Data) Merge(other Data) Data {
	for k, v := range other {
		d[k] = v
	}
	return d
}

func (d Data) Get(key string) (Value, bool) {
	v, ok := d[key]
	return v, ok
}

func (d Data) Len() int { return len(d) }

// Keys returns the keys in sorted order.
func (d Data) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map converts d into a map the template engine can walk. Invalid values are
// left out so templates see them as missing.
func (d Data) Map() map[string]any {
	out := make(map[string]any, len(d))
	for k, v := range d {
		if v.kind == KindInvalid {
			continue
		}
		out[k] = v.Interface()
	}
	return out
}
