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

// Package generator produces sample records for a projection, with values
// drawn from faker and valid for each declared column type.
package generator

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-faker/faker/v4"

	"github.com/arrowarc/chingest/integrations/filesystem"
	"github.com/arrowarc/chingest/internal/dbarrow"
	"github.com/arrowarc/chingest/internal/errors"
	"github.com/arrowarc/chingest/pkg/record"
)

var (
	minTime = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	maxTime = time.Date(2035, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
)

// GenerateRecords returns n records for the projection. Nullable columns are
// null for roughly one value in ten.
func GenerateRecords(projection record.Projection, n int) ([]record.Record, error) {
	types := make([]dbarrow.ColumnType, len(projection))
	for i, c := range projection {
		types[i] = dbarrow.ParseType(c.Type)
		if _, err := sampleText(c.Name, types[i], 0); err != nil {
			return nil, errors.Wrapf(err, "column %s", c.Name)
		}
	}

	var mapper dbarrow.Mapper
	records := make([]record.Record, n)
	for row := range records {
		fields := make([]record.Field, len(projection))
		for i, c := range projection {
			fields[i] = record.Field{Name: c.Name}
			if types[i].Nullable && secureRandInt(10) == 0 {
				continue
			}
			text, err := sampleText(c.Name, types[i], row)
			if err != nil {
				return nil, err
			}
			v, err := mapper.FromFileField(text, types[i])
			if err != nil {
				return nil, dbarrow.WithColumn(err, c.Name)
			}
			fields[i].Value = v
		}
		records[row] = record.Record{Fields: fields}
	}
	return records, nil
}

// WriteCSV generates n records and writes them to path through the CSV
// sink. It returns the number of records written.
func WriteCSV(ctx context.Context, path string, projection record.Projection, n int, opts filesystem.CSVOptions) (int, error) {
	records, err := GenerateRecords(projection, n)
	if err != nil {
		return 0, err
	}
	sink, err := filesystem.CreateCSVRecordSink(path, projection, opts)
	if err != nil {
		return 0, err
	}
	for i, rec := range records {
		if err := sink.Write(ctx, rec); err != nil {
			sink.Close()
			return i, err
		}
	}
	if err := sink.Flush(ctx); err != nil {
		sink.Close()
		return 0, err
	}
	if err := sink.Close(); err != nil {
		return 0, err
	}
	return len(records), nil
}

// ParseColumns parses "name:Type,name:Type". Commas inside parentheses
// belong to the type, as in Decimal(10, 2).
func ParseColumns(list string) (record.Projection, error) {
	var (
		columns []record.Column
		depth   int
		start   int
	)
	add := func(part string) error {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil
		}
		name, typ, ok := strings.Cut(part, ":")
		if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(typ) == "" {
			return errors.Newf("column %q must be name:Type", part)
		}
		columns = append(columns, record.Column{Name: strings.TrimSpace(name), Type: strings.TrimSpace(typ)})
		return nil
	}
	for i, r := range list {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				if err := add(list[start:i]); err != nil {
					return nil, err
				}
				start = i + 1
			}
		}
	}
	if err := add(list[start:]); err != nil {
		return nil, err
	}
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return record.NewProjection(columns, names)
}

func sampleText(name string, t dbarrow.ColumnType, row int) (string, error) {
	switch t.Family {
	case dbarrow.FamilyInt, dbarrow.FamilyBigInt:
		if strings.Contains(strings.ToLower(name), "id") {
			return strconv.Itoa(row + 1), nil
		}
		bound := int64(1) << min(bits(t)-1, 20)
		return strconv.FormatInt(secureRandInt(2*bound)-bound, 10), nil
	case dbarrow.FamilyUint:
		if strings.Contains(strings.ToLower(name), "id") {
			return strconv.Itoa(row + 1), nil
		}
		return strconv.FormatInt(secureRandInt(int64(1)<<min(bits(t), 20)), 10), nil
	case dbarrow.FamilyFloat:
		return strconv.FormatFloat(float64(secureRandInt(1_000_000))/100, 'f', 2, 64), nil
	case dbarrow.FamilyBool:
		return strconv.FormatBool(secureRandInt(2) == 1), nil
	case dbarrow.FamilyString:
		s := sampleString(name)
		if t.Length > 0 && len(s) > t.Length {
			s = s[:t.Length]
		}
		return s, nil
	case dbarrow.FamilyEnum:
		keys := make([]string, 0, len(t.Enum))
		for k := range t.Enum {
			keys = append(keys, k)
		}
		if len(keys) == 0 {
			return "", errors.Newf("enum %s has no members", t.Declared)
		}
		sort.Strings(keys)
		return keys[secureRandInt(int64(len(keys)))], nil
	case dbarrow.FamilyUUID:
		return faker.UUIDHyphenated(), nil
	case dbarrow.FamilyDate, dbarrow.FamilyDateTime, dbarrow.FamilyDateTime64:
		ts := time.Unix(minTime+secureRandInt(maxTime-minTime), secureRandInt(1e9)).UTC()
		if t.Family == dbarrow.FamilyDate {
			return ts.Format(dbarrow.DateLayout), nil
		}
		return ts.Format(time.RFC3339Nano), nil
	case dbarrow.FamilyDecimal:
		return sampleDecimal(t), nil
	case dbarrow.FamilyIPv4:
		return faker.IPv4(), nil
	case dbarrow.FamilyIPv6:
		return faker.IPv6(), nil
	default:
		return "", errors.Newf("cannot generate values for %s", t.Declared)
	}
}

func bits(t dbarrow.ColumnType) int {
	if t.Bits == 0 {
		return 64
	}
	return t.Bits
}

func sampleString(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "email"):
		return faker.Email()
	case strings.Contains(lower, "name"):
		return faker.Name()
	case strings.Contains(lower, "url"):
		return faker.URL()
	case strings.Contains(lower, "phone"):
		return faker.Phonenumber()
	default:
		return faker.Sentence()
	}
}

func sampleDecimal(t dbarrow.ColumnType) string {
	intDigits := min(t.Precision-t.Scale, 6)
	var sb strings.Builder
	if intDigits > 0 {
		sb.WriteString(strconv.FormatInt(secureRandInt(pow10(intDigits)), 10))
	} else {
		sb.WriteString("0")
	}
	if t.Scale > 0 {
		frac := strconv.FormatInt(secureRandInt(pow10(min(t.Scale, 18))), 10)
		sb.WriteString(".")
		sb.WriteString(strings.Repeat("0", min(t.Scale, 18)-len(frac)))
		sb.WriteString(frac)
	}
	return sb.String()
}

func pow10(n int) int64 {
	p := int64(1)
	for range n {
		p *= 10
	}
	return p
}

func secureRandInt(max int64) int64 {
	n, err := rand.Int(rand.Reader, big.NewInt(max))
	if err != nil {
		panic(fmt.Sprintf("failed to generate secure random number: %v", err))
	}
	return n.Int64()
}
