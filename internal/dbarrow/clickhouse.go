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
	"github.com/apache/arrow/go/v17/arrow"

	"github.com/arrowarc/chingest/pkg/record"
)

// ClickHouseToArrow returns the Arrow type used for a ClickHouse column when
// records are written to columnar files. Types without a native scalar
// mapping are carried as their canonical text.
func ClickHouseToArrow(t ColumnType) arrow.DataType {
	switch t.Family {
	case FamilyInt:
		return arrow.PrimitiveTypes.Int64
	case FamilyUint:
		return arrow.PrimitiveTypes.Uint64
	case FamilyFloat:
		return arrow.PrimitiveTypes.Float64
	case FamilyBool:
		return arrow.FixedWidthTypes.Boolean
	default:
		return arrow.BinaryTypes.String
	}
}

// ArrowSchema builds the Arrow schema of a projection, preserving its order.
func ArrowSchema(p record.Projection) *arrow.Schema {
	fields := make([]arrow.Field, len(p))
	for i, c := range p {
		ct := ParseType(c.Type)
		fields[i] = arrow.Field{
			Name:     c.Name,
			Type:     ClickHouseToArrow(ct),
			Nullable: ct.Nullable,
			Metadata: arrow.NewMetadata([]string{"clickhouse.type"}, []string{c.Type}),
		}
	}
	return arrow.NewSchema(fields, nil)
}

// ProjectionTypes parses the declared type of every projected column.
func ProjectionTypes(p record.Projection) []ColumnType {
	out := make([]ColumnType, len(p))
	for i, c := range p {
		out[i] = ParseType(c.Type)
	}
	return out
}
