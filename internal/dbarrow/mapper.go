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
	"database/sql/driver"
	"math"
	"math/big"
	"net"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arrowarc/chingest/internal/errors"
	"github.com/arrowarc/chingest/internal/json"
	"github.com/arrowarc/chingest/pkg/record"
)

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// Mapper converts values between driver values, records and delimited file
// fields. NullToken is the file text that stands for null in Nullable
// columns; the zero Mapper uses the empty field.
type Mapper struct {
	NullToken string
}

// ToFileField renders v as file text for a column of type t.
func (m Mapper) ToFileField(v record.Value, t ColumnType) string {
	switch v.Kind() {
	case record.KindNull:
		return m.NullToken
	case record.KindFloat:
		if t.Family == FamilyFloat && t.Bits == 32 {
			return formatFloat32(v.Float())
		}
		return record.FormatFloat(v.Float())
	default:
		return v.String()
	}
}

// FromFileField parses file text into a value of column type t. A failure is
// a *errors.TypeConversionError.
func (m Mapper) FromFileField(text string, t ColumnType) (record.Value, error) {
	if t.Nullable && text == m.NullToken {
		return record.Null(), nil
	}
	if !utf8.ValidString(text) {
		return record.Value{}, conversionError(text, t, errors.New("invalid UTF-8"))
	}
	v, err := parseText(text, t)
	if err != nil {
		return record.Value{}, conversionError(text, t, err)
	}
	return v, nil
}

func parseText(text string, t ColumnType) (record.Value, error) {
	switch t.Family {
	case FamilyInt:
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, t.Bits)
		if err != nil {
			return record.Value{}, err
		}
		return record.Int(n), nil
	case FamilyUint:
		n, err := strconv.ParseUint(strings.TrimSpace(text), 10, t.Bits)
		if err != nil {
			return record.Value{}, err
		}
		return record.Uint(n), nil
	case FamilyBigInt:
		n, err := parseBigInt(strings.TrimSpace(text), t)
		if err != nil {
			return record.Value{}, err
		}
		return record.Text(n.String()), nil
	case FamilyFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), t.Bits)
		if err != nil {
			return record.Value{}, err
		}
		return record.Float(f), nil
	case FamilyBool:
		b, err := strconv.ParseBool(strings.TrimSpace(text))
		if err != nil {
			return record.Value{}, err
		}
		return record.Bool(b), nil
	case FamilyString:
		if t.Length > 0 && len(text) > t.Length {
			return record.Value{}, errors.Newf("longer than %d bytes", t.Length)
		}
		return record.Text(text), nil
	case FamilyEnum:
		if _, ok := t.Enum[text]; !ok {
			return record.Value{}, errors.New("not an enum member")
		}
		return record.Text(text), nil
	case FamilyUUID:
		u, err := uuid.Parse(strings.TrimSpace(text))
		if err != nil {
			return record.Value{}, err
		}
		return record.Text(u.String()), nil
	case FamilyDate, FamilyDateTime, FamilyDateTime64:
		ts, err := parseTime(strings.TrimSpace(text), t)
		if err != nil {
			return record.Value{}, err
		}
		return record.Text(formatTime(ts, t)), nil
	case FamilyDecimal:
		d, err := parseDecimalText(strings.TrimSpace(text), t)
		if err != nil {
			return record.Value{}, err
		}
		return record.Text(d.StringFixed(int32(t.Scale))), nil
	case FamilyIPv4, FamilyIPv6:
		ip, err := parseIP(strings.TrimSpace(text), t)
		if err != nil {
			return record.Value{}, err
		}
		return record.Text(ip.String()), nil
	default:
		return record.Value{}, errors.New("unsupported column type")
	}
}

// FromDriver converts a value scanned from the database driver into a
// record value for column type t. Integer and boolean kinds follow the
// column type even when the driver widened the Go type.
func (m Mapper) FromDriver(v any, t ColumnType) (record.Value, error) {
	out, err := m.fromDriver(v, t)
	if err != nil {
		return record.Value{}, err
	}
	return coerce(out, t), nil
}

func coerce(v record.Value, t ColumnType) record.Value {
	switch {
	case t.Family == FamilyUint && v.Kind() == record.KindInt && v.Int() >= 0:
		return record.Uint(uint64(v.Int()))
	case t.Family == FamilyInt && v.Kind() == record.KindUint && v.Uint() <= math.MaxInt64:
		return record.Int(int64(v.Uint()))
	case t.Family == FamilyFloat && v.Kind() == record.KindInt:
		return record.Float(float64(v.Int()))
	case t.Family == FamilyBool && v.Kind() == record.KindUint:
		return record.Bool(v.Uint() != 0)
	case t.Family == FamilyBool && v.Kind() == record.KindInt:
		return record.Bool(v.Int() != 0)
	}
	return v
}

func (m Mapper) fromDriver(v any, t ColumnType) (record.Value, error) {
	switch x := v.(type) {
	case nil:
		return record.Null(), nil
	case int8:
		return record.Int(int64(x)), nil
	case int16:
		return record.Int(int64(x)), nil
	case int32:
		return record.Int(int64(x)), nil
	case int64:
		return record.Int(x), nil
	case int:
		return record.Int(int64(x)), nil
	case uint8:
		return record.Uint(uint64(x)), nil
	case uint16:
		return record.Uint(uint64(x)), nil
	case uint32:
		return record.Uint(uint64(x)), nil
	case uint64:
		return record.Uint(x), nil
	case float32:
		return record.Float(float64(x)), nil
	case float64:
		return record.Float(x), nil
	case bool:
		return record.Bool(x), nil
	case string:
		return record.Text(x), nil
	case []byte:
		return record.Text(string(x)), nil
	case time.Time:
		return record.Text(formatTime(x, t)), nil
	case uuid.UUID:
		return record.Text(x.String()), nil
	case decimal.Decimal:
		return record.Text(x.StringFixed(int32(t.Scale))), nil
	case *big.Int:
		if x == nil {
			return record.Null(), nil
		}
		return record.Text(x.String()), nil
	case big.Int:
		return record.Text(x.String()), nil
	case net.IP:
		return record.Text(x.String()), nil
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil {
			return record.Value{}, err
		}
		return m.fromDriver(dv, t)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return record.Null(), nil
		}
		return m.fromDriver(rv.Elem().Interface(), t)
	}

	// Arrays, maps, tuples and other composite values travel as JSON text.
	b, err := json.Marshal(v)
	if err != nil {
		return record.Value{}, conversionError(reflect.TypeOf(v).String(), t, err)
	}
	return record.Text(string(b)), nil
}

// ToDriver converts v into the Go type the driver expects when appending to
// a column of type t.
func (m Mapper) ToDriver(v record.Value, t ColumnType) (any, error) {
	if v.IsNull() {
		if t.Nullable {
			return nil, nil
		}
		return nil, conversionError(m.NullToken, t, errors.New("null in non-nullable column"))
	}

	// Text values for non-text columns are parsed first, so records read
	// from any source can be inserted.
	if v.Kind() == record.KindText && !textFamily(t.Family) {
		parsed, err := parseText(v.Text(), t)
		if err != nil {
			return nil, conversionError(v.Text(), t, err)
		}
		v = parsed
	}

	out, err := toDriver(v, t)
	if err != nil {
		return nil, conversionError(v.String(), t, err)
	}
	return out, nil
}

func toDriver(v record.Value, t ColumnType) (any, error) {
	switch t.Family {
	case FamilyInt:
		n, err := asInt(v)
		if err != nil {
			return nil, err
		}
		return sizedInt(n, t.Bits)
	case FamilyUint:
		n, err := asUint(v)
		if err != nil {
			return nil, err
		}
		return sizedUint(n, t.Bits)
	case FamilyFloat:
		f, err := asFloat(v)
		if err != nil {
			return nil, err
		}
		if t.Bits == 32 {
			return float32(f), nil
		}
		return f, nil
	case FamilyBool:
		if v.Kind() != record.KindBool {
			return nil, errors.Newf("expected bool, got %s", v.Kind())
		}
		return v.Bool(), nil
	}

	text := v.String()
	if _, err := parseText(text, t); err != nil {
		return nil, err
	}
	switch t.Family {
	case FamilyString, FamilyEnum:
		return text, nil
	case FamilyBigInt:
		return parseBigInt(text, t)
	case FamilyUUID:
		return uuid.Parse(text)
	case FamilyDate, FamilyDateTime, FamilyDateTime64:
		return parseTime(text, t)
	case FamilyDecimal:
		return parseDecimalText(text, t)
	case FamilyIPv4, FamilyIPv6:
		return parseIP(text, t)
	default:
		return nil, errors.New("unsupported column type")
	}
}

func textFamily(f Family) bool {
	switch f {
	case FamilyInt, FamilyUint, FamilyFloat, FamilyBool:
		return false
	}
	return true
}

func asInt(v record.Value) (int64, error) {
	switch v.Kind() {
	case record.KindInt:
		return v.Int(), nil
	case record.KindUint:
		if v.Uint() > math.MaxInt64 {
			return 0, errors.New("value out of range")
		}
		return int64(v.Uint()), nil
	}
	return 0, errors.Newf("expected integer, got %s", v.Kind())
}

func asUint(v record.Value) (uint64, error) {
	switch v.Kind() {
	case record.KindUint:
		return v.Uint(), nil
	case record.KindInt:
		if v.Int() < 0 {
			return 0, errors.New("value out of range")
		}
		return uint64(v.Int()), nil
	}
	return 0, errors.Newf("expected unsigned integer, got %s", v.Kind())
}

func asFloat(v record.Value) (float64, error) {
	switch v.Kind() {
	case record.KindFloat:
		return v.Float(), nil
	case record.KindInt:
		return float64(v.Int()), nil
	case record.KindUint:
		return float64(v.Uint()), nil
	}
	return 0, errors.Newf("expected float, got %s", v.Kind())
}

func sizedInt(n int64, bits int) (any, error) {
	switch bits {
	case 8:
		if n < math.MinInt8 || n > math.MaxInt8 {
			return nil, errors.New("value out of range")
		}
		return int8(n), nil
	case 16:
		if n < math.MinInt16 || n > math.MaxInt16 {
			return nil, errors.New("value out of range")
		}
		return int16(n), nil
	case 32:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, errors.New("value out of range")
		}
		return int32(n), nil
	}
	return n, nil
}

func sizedUint(n uint64, bits int) (any, error) {
	switch bits {
	case 8:
		if n > math.MaxUint8 {
			return nil, errors.New("value out of range")
		}
		return uint8(n), nil
	case 16:
		if n > math.MaxUint16 {
			return nil, errors.New("value out of range")
		}
		return uint16(n), nil
	case 32:
		if n > math.MaxUint32 {
			return nil, errors.New("value out of range")
		}
		return uint32(n), nil
	}
	return n, nil
}

func parseBigInt(text string, t ColumnType) (*big.Int, error) {
	n, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return nil, errors.New("invalid integer")
	}
	if t.Unsigned {
		if n.Sign() < 0 || n.BitLen() > t.Bits {
			return nil, errors.New("value out of range")
		}
		return n, nil
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Bits-1))
	if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
		return nil, errors.New("value out of range")
	}
	return n, nil
}

func parseTime(text string, t ColumnType) (time.Time, error) {
	if t.Family == FamilyDate {
		return time.ParseInLocation(DateLayout, text, time.UTC)
	}
	ts, err := time.ParseInLocation(DateTimeLayout, text, time.UTC)
	if err != nil {
		ts, err = time.Parse(time.RFC3339Nano, text)
		if err != nil {
			return time.Time{}, err
		}
	}
	ts = ts.UTC()
	if t.Family == FamilyDateTime64 {
		return ts.Truncate(time.Duration(math.Pow10(9 - t.Precision))), nil
	}
	return ts.Truncate(time.Second), nil
}

func formatTime(ts time.Time, t ColumnType) string {
	ts = ts.UTC()
	switch t.Family {
	case FamilyDate:
		return ts.Format(DateLayout)
	case FamilyDateTime64:
		if t.Precision > 0 {
			return ts.Format(DateTimeLayout + "." + strings.Repeat("0", t.Precision))
		}
	}
	return ts.Format(DateTimeLayout)
}

func parseDecimalText(text string, t ColumnType) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, err
	}
	scale := int32(t.Scale)
	if !d.Equal(d.Truncate(scale)) {
		return decimal.Decimal{}, errors.Newf("more than %d fractional digits", t.Scale)
	}
	intDigits := len(d.Abs().Truncate(0).String())
	if d.Abs().LessThan(decimal.NewFromInt(1)) {
		intDigits = 0
	}
	if intDigits > t.Precision-t.Scale {
		return decimal.Decimal{}, errors.Newf("exceeds precision %d", t.Precision)
	}
	return d, nil
}

func parseIP(text string, t ColumnType) (net.IP, error) {
	ip := net.ParseIP(text)
	if ip == nil {
		return nil, errors.New("invalid IP address")
	}
	if t.Family == FamilyIPv4 {
		if ip = ip.To4(); ip == nil {
			return nil, errors.New("not an IPv4 address")
		}
	}
	return ip, nil
}

func formatFloat32(f float64) string {
	switch {
	case math.IsNaN(f), math.IsInf(f, 0):
		return record.FormatFloat(f)
	}
	return strconv.FormatFloat(f, 'g', -1, 32)
}

func conversionError(text string, t ColumnType, err error) error {
	return &errors.TypeConversionError{Text: text, Type: t.describe(), Err: err}
}

// WithColumn records the column name on a conversion error.
func WithColumn(err error, column string) error {
	var tc *errors.TypeConversionError
	if errors.As(err, &tc) && tc.Column == "" {
		tc.Column = column
	}
	return err
}
