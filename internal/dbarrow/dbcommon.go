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

package dbarrow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	reNullable       = regexp.MustCompile(`^Nullable\((.*)\)$`)
	reLowCardinality = regexp.MustCompile(`^LowCardinality\((.*)\)$`)
	reInteger        = regexp.MustCompile(`^(U?)Int(8|16|32|64|128|256)$`)
	reFloat          = regexp.MustCompile(`^Float(32|64)$`)
	reFixedString    = regexp.MustCompile(`^FixedString\(\s*([0-9]+)\s*\)$`)
	reEnum           = regexp.MustCompile(`^Enum(8|16)\((.*)\)$`)
	reEnumValue      = regexp.MustCompile(`'((?:[^'\\]|\\.)*)'\s*=\s*(-?[0-9]+)`)
	reDateTime       = regexp.MustCompile(`^DateTime(?:\(\s*'([^']*)'\s*\))?$`)
	reDateTime64     = regexp.MustCompile(`^DateTime64\(\s*([0-9])\s*(?:,\s*'([^']*)'\s*)?\)$`)
	reDecimal        = regexp.MustCompile(`^Decimal\(\s*([0-9]+)\s*,\s*([0-9]+)\s*\)$`)
	reDecimalN       = regexp.MustCompile(`^Decimal(32|64|128|256)\(\s*([0-9]+)\s*\)$`)
)

// Family groups ClickHouse types that share a file representation.
type Family uint8

const (
	FamilyOther Family = iota
	FamilyInt
	FamilyUint
	FamilyBigInt
	FamilyFloat
	FamilyBool
	FamilyString
	FamilyEnum
	FamilyUUID
	FamilyDate
	FamilyDateTime
	FamilyDateTime64
	FamilyDecimal
	FamilyIPv4
	FamilyIPv6
)

var familyNames = [...]string{
	"other", "int", "uint", "bigint", "float", "bool", "string", "enum",
	"uuid", "date", "datetime", "datetime64", "decimal", "ipv4", "ipv6",
}

func (f Family) String() string {
	if int(f) < len(familyNames) {
		return familyNames[f]
	}
	return "family(" + strconv.Itoa(int(f)) + ")"
}

// ColumnType is a parsed ClickHouse column type.
type ColumnType struct {
	Declared  string
	Base      string
	Family    Family
	Bits      int
	Unsigned  bool
	Nullable  bool
	Length    int
	Precision int
	Scale     int
	Zone      string
	Enum      map[string]int64
}

func (t ColumnType) String() string {
	return t.Declared
}

// Normalize strips surrounding whitespace from a declared type.
func Normalize(t string) string {
	return strings.TrimSpace(t)
}

// ParseType parses a declared ClickHouse type. Nullable and LowCardinality
// wrappers are unwrapped; unknown types parse as FamilyOther.
func ParseType(declared string) ColumnType {
	ct := ColumnType{Declared: declared}
	t := Normalize(declared)
	for {
		if m := reLowCardinality.FindStringSubmatch(t); m != nil {
			t = Normalize(m[1])
			continue
		}
		if m := reNullable.FindStringSubmatch(t); m != nil {
			ct.Nullable = true
			t = Normalize(m[1])
			continue
		}
		break
	}
	ct.Base = t

	parsers := []func(string, *ColumnType) bool{
		parseScalar,
		parseInteger,
		parseFloat,
		parseFixedString,
		parseEnum,
		parseDateTime,
		parseDateTime64,
		parseDecimal,
	}
	for _, parser := range parsers {
		if parser(t, &ct) {
			return ct
		}
	}
	ct.Family = FamilyOther
	return ct
}

func parseScalar(t string, ct *ColumnType) bool {
	switch t {
	case "String":
		ct.Family = FamilyString
	case "Bool", "Boolean":
		ct.Family = FamilyBool
	case "UUID":
		ct.Family = FamilyUUID
	case "Date", "Date32":
		ct.Family = FamilyDate
	case "IPv4":
		ct.Family = FamilyIPv4
	case "IPv6":
		ct.Family = FamilyIPv6
	default:
		return false
	}
	return true
}

func parseInteger(t string, ct *ColumnType) bool {
	m := reInteger.FindStringSubmatch(t)
	if m == nil {
		return false
	}
	bits, _ := strconv.Atoi(m[2])
	ct.Bits = bits
	ct.Unsigned = m[1] == "U"
	switch {
	case bits > 64:
		ct.Family = FamilyBigInt
	case ct.Unsigned:
		ct.Family = FamilyUint
	default:
		ct.Family = FamilyInt
	}
	return true
}

func parseFloat(t string, ct *ColumnType) bool {
	m := reFloat.FindStringSubmatch(t)
	if m == nil {
		return false
	}
	ct.Family = FamilyFloat
	ct.Bits, _ = strconv.Atoi(m[1])
	return true
}

func parseFixedString(t string, ct *ColumnType) bool {
	m := reFixedString.FindStringSubmatch(t)
	if m == nil {
		return false
	}
	ct.Family = FamilyString
	ct.Length, _ = strconv.Atoi(m[1])
	return true
}

func parseEnum(t string, ct *ColumnType) bool {
	m := reEnum.FindStringSubmatch(t)
	if m == nil {
		return false
	}
	ct.Family = FamilyEnum
	ct.Bits, _ = strconv.Atoi(m[1])
	ct.Enum = make(map[string]int64)
	for _, v := range reEnumValue.FindAllStringSubmatch(m[2], -1) {
		n, err := strconv.ParseInt(v[2], 10, 64)
		if err != nil {
			continue
		}
		ct.Enum[strings.ReplaceAll(v[1], `\'`, `'`)] = n
	}
	return true
}

func parseDateTime(t string, ct *ColumnType) bool {
	m := reDateTime.FindStringSubmatch(t)
	if m == nil {
		return false
	}
	ct.Family = FamilyDateTime
	ct.Zone = m[1]
	return true
}

func parseDateTime64(t string, ct *ColumnType) bool {
	m := reDateTime64.FindStringSubmatch(t)
	if m == nil {
		return false
	}
	ct.Family = FamilyDateTime64
	ct.Precision, _ = strconv.Atoi(m[1])
	ct.Zone = m[2]
	return true
}

func parseDecimal(t string, ct *ColumnType) bool {
	if m := reDecimal.FindStringSubmatch(t); m != nil {
		ct.Family = FamilyDecimal
		ct.Precision, _ = strconv.Atoi(m[1])
		ct.Scale, _ = strconv.Atoi(m[2])
		return ct.Precision > 0 && ct.Scale <= ct.Precision
	}
	m := reDecimalN.FindStringSubmatch(t)
	if m == nil {
		return false
	}
	ct.Family = FamilyDecimal
	switch m[1] {
	case "32":
		ct.Precision = 9
	case "64":
		ct.Precision = 18
	case "128":
		ct.Precision = 38
	default:
		ct.Precision = 76
	}
	ct.Scale, _ = strconv.Atoi(m[2])
	return ct.Scale <= ct.Precision
}

func (t ColumnType) describe() string {
	if t.Declared != "" {
		return t.Declared
	}
	return fmt.Sprintf("%s%d", t.Family, t.Bits)
}
