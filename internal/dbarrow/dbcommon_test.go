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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		declared string
		family   Family
		bits     int
		nullable bool
	}{
		{"Int8", FamilyInt, 8, false},
		{"Int64", FamilyInt, 64, false},
		{"UInt32", FamilyUint, 32, false},
		{"UInt256", FamilyBigInt, 256, false},
		{"Int128", FamilyBigInt, 128, false},
		{"Float32", FamilyFloat, 32, false},
		{"Nullable(Float64)", FamilyFloat, 64, true},
		{"Bool", FamilyBool, 0, false},
		{"String", FamilyString, 0, false},
		{"LowCardinality(Nullable(String))", FamilyString, 0, true},
		{"UUID", FamilyUUID, 0, false},
		{"Date32", FamilyDate, 0, false},
		{"DateTime", FamilyDateTime, 0, false},
		{"IPv4", FamilyIPv4, 0, false},
		{"Array(String)", FamilyOther, 0, false},
		{"Map(String, UInt64)", FamilyOther, 0, false},
	}

	for _, tt := range tests {
		ct := ParseType(tt.declared)
		assert.Equal(t, tt.family, ct.Family, tt.declared)
		assert.Equal(t, tt.bits, ct.Bits, tt.declared)
		assert.Equal(t, tt.nullable, ct.Nullable, tt.declared)
	}
}

func TestParseTypeParameters(t *testing.T) {
	t.Parallel()

	ct := ParseType("DateTime64(3, 'Europe/Berlin')")
	assert.Equal(t, FamilyDateTime64, ct.Family)
	assert.Equal(t, 3, ct.Precision)
	assert.Equal(t, "Europe/Berlin", ct.Zone)

	ct = ParseType("DateTime('UTC')")
	assert.Equal(t, FamilyDateTime, ct.Family)
	assert.Equal(t, "UTC", ct.Zone)

	ct = ParseType("Nullable(Decimal(10, 2))")
	assert.Equal(t, FamilyDecimal, ct.Family)
	assert.Equal(t, 10, ct.Precision)
	assert.Equal(t, 2, ct.Scale)
	assert.True(t, ct.Nullable)

	ct = ParseType("Decimal64(4)")
	assert.Equal(t, 18, ct.Precision)
	assert.Equal(t, 4, ct.Scale)

	ct = ParseType("FixedString(16)")
	assert.Equal(t, FamilyString, ct.Family)
	assert.Equal(t, 16, ct.Length)

	ct = ParseType("Enum8('a' = 1, 'it\\'s' = 2)")
	assert.Equal(t, FamilyEnum, ct.Family)
	assert.Equal(t, map[string]int64{"a": 1, "it's": 2}, ct.Enum)
}
