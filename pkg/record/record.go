// --------------------------------------------------------------------------------
// Author: Thomas F McGeehan V
//
// This file is part of a software project developed by Thomas F McGeehan V.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
//
// For more information about the MIT License, please visit:
// https://opensource.org/licenses/MIT
//
// Acknowledgment appreciated but not required.
// --------------------------------------------------------------------------------

// Package record holds the scalar record model shared by the catalog client,
// the record streams and the batch copier.
package record

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/arrowarc/chingest/internal/errors"
)

// Kind is the scalar kind carried by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindUint
	KindFloat
	KindText
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a single scalar: integer, floating point, text, boolean or null.
// The zero Value is null.
type Value struct {
	kind Kind
	i    int64
	u    uint64
	f    float64
	s    string
	b    bool
}

func Null() Value { return Value{} }
func Int(v int64) Value { return Value{kind: KindInt, i: v} }
func Uint(v uint64) Value { return Value{kind: KindUint, u: v} }
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }
func Text(v string) Value { return Value{kind: KindText, s: v} }
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }
func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) Int() int64 { return v.i }
func (v Value) Uint() uint64 { return v.u }
func (v Value) Float() float64 { return v.f }
func (v Value) Text() string { return v.s }
func (v Value) Bool() bool { return v.b }

// Equal compares kind and payload. Two NaN floats are equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindInt:
		return v.i == o.i
	case KindUint:
		return v.u == o.u
	case KindFloat:
		if math.IsNaN(v.f) && math.IsNaN(o.f) {
			return true
		}
		return v.f == o.f
	case KindText:
		return v.s == o.s
	case KindBool:
		return v.b == o.b
	}
	return false
}

// String renders the canonical text of the value. Floats use the shortest
// representation that parses back to the same value.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindUint:
		return strconv.FormatUint(v.u, 10)
	case KindFloat:
		return FormatFloat(v.f)
	case KindText:
		return v.s
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return "NULL"
	}
}

// FormatFloat renders f in its shortest round-trip form, with nan, inf and
// -inf for the special values.
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Field is one named value of a record.
type Field struct {
	Name  string
	Value Value
}

// Record is an ordered sequence of named scalars.
type Record struct {
	Fields []Field
}

func New(fields ...Field) Record {
	return Record{Fields: fields}
}

func (r Record) Len() int { return len(r.Fields) }

// Get returns the value of the named field.
func (r Record) Get(name string) (Value, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

func (r Record) Names() []string {
	names := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		names[i] = f.Name
	}
	return names
}

// Canonical renders the record with fields sorted by name, so two records
// holding the same named values produce the same text regardless of order.
func (r Record) Canonical() string {
	fields := make([]Field, len(r.Fields))
	copy(fields, r.Fields)
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })

	var sb strings.Builder
	for _, f := range fields {
		sb.WriteString(f.Name)
		sb.WriteByte(0x1f)
		sb.WriteByte(byte(f.Value.kind))
		sb.WriteString(f.Value.String())
		sb.WriteByte(0x1e)
	}
	return sb.String()
}

// Table describes a table in the connected database.
type Table struct {
	Name string `json:"name"`
}

// Column describes a column with its declared database type.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Projection is the ordered, non-empty subset of a table's columns a
// transfer moves.
type Projection []Column

// NewProjection validates names against the table's columns and returns the
// projection in the order given by names.
func NewProjection(columns []Column, names []string) (Projection, error) {
	if len(names) == 0 {
		return nil, &errors.SchemaMismatchError{Reason: "projection is empty"}
	}
	byName := make(map[string]Column, len(columns))
	known := make([]string, len(columns))
	for i, c := range columns {
		byName[c.Name] = c
		known[i] = c.Name
	}
	seen := make(map[string]struct{}, len(names))
	p := make(Projection, 0, len(names))
	for _, n := range names {
		c, ok := byName[n]
		if !ok {
			return nil, &errors.SchemaMismatchError{
				Reason:   "unknown column " + strconv.Quote(n),
				Expected: known,
				Got:      names,
			}
		}
		if _, dup := seen[n]; dup {
			return nil, &errors.SchemaMismatchError{
				Reason: "duplicate column " + strconv.Quote(n),
				Got:    names,
			}
		}
		seen[n] = struct{}{}
		p = append(p, c)
	}
	return p, nil
}

func (p Projection) Names() []string {
	names := make([]string, len(p))
	for i, c := range p {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column, or -1.
func (p Projection) Index(name string) int {
	for i, c := range p {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// SameNames reports whether names holds exactly the projection's column
// names, in any order and without repeats.
func (p Projection) SameNames(names []string) bool {
	if len(names) != len(p) {
		return false
	}
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if p.Index(n) < 0 {
			return false
		}
		if _, dup := seen[n]; dup {
			return false
		}
		seen[n] = struct{}{}
	}
	return true
}

// Check returns a SchemaMismatchError when r's field names differ from the
// projection.
func (p Projection) Check(r Record) error {
	if p.SameNames(r.Names()) {
		return nil
	}
	return &errors.SchemaMismatchError{
		Reason:   "record fields do not match projection",
		Expected: p.Names(),
		Got:      r.Names(),
	}
}
