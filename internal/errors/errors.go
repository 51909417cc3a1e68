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

// Package errors re-exports github.com/cockroachdb/errors and defines the
// error kinds surfaced by catalog calls, record streams, transfers and the
// ingestion session.
package errors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	New          = errors.New
	Newf         = errors.Newf
	Errorf       = errors.Errorf
	Wrap         = errors.Wrap
	Wrapf        = errors.Wrapf
	WithStack    = errors.WithStack
	WithHint     = errors.WithHint
	WithHintf    = errors.WithHintf
	WithDetail   = errors.WithDetail
	WithDetailf  = errors.WithDetailf
	GetAllHints  = errors.GetAllHints
	FlattenHints = errors.FlattenHints
	Is           = errors.Is
	As           = errors.As
)

// ConnectionError reports an authentication or network failure talking to
// the database. No records are moved when it is returned.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// NewConnectionError wraps err and attaches an operator hint.
func NewConnectionError(op string, err error) error {
	return errors.WithHint(&ConnectionError{Op: op, Err: err},
		"check host, port, database and credentials")
}

// NotFoundError reports a table that does not exist at query time.
type NotFoundError struct {
	Table string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("table %q not found", e.Table)
}

// SchemaMismatchError reports a projection or file header that does not agree
// with the table or the active projection.
type SchemaMismatchError struct {
	Reason   string
	Expected []string
	Got      []string
}

func (e *SchemaMismatchError) Error() string {
	msg := "schema mismatch: " + e.Reason
	if len(e.Expected) > 0 || len(e.Got) > 0 {
		msg += fmt.Sprintf(" (expected [%s], got [%s])",
			strings.Join(e.Expected, ", "), strings.Join(e.Got, ", "))
	}
	return msg
}

// TypeConversionError reports a value that cannot be represented in the
// target column type.
type TypeConversionError struct {
	Column string
	Text   string
	Type   string
	Err    error
}

func (e *TypeConversionError) Error() string {
	msg := fmt.Sprintf("cannot convert %q to %s", e.Text, e.Type)
	if e.Column != "" {
		msg = fmt.Sprintf("column %s: %s", e.Column, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TypeConversionError) Unwrap() error { return e.Err }

// InvalidStateError reports a session operation invoked from a state that
// does not allow it.
type InvalidStateError struct {
	Op       string
	State    string
	Required string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s not allowed in state %s: requires %s", e.Op, e.State, e.Required)
}

// TransferError reports a transport failure in the middle of a copy.
// Committed is the number of records durably written before the failure.
type TransferError struct {
	Op        string
	Committed int64
	Err       error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer failed during %s after %d records: %v", e.Op, e.Committed, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// RecordError tags a per-record failure with the 1-based position of the
// record in its source.
type RecordError struct {
	Position int64
	Err      error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Position, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// IsRecordLevel reports whether err only affects a single record, so a copy
// may skip it and continue.
func IsRecordLevel(err error) bool {
	if err == nil {
		return false
	}
	var re *RecordError
	if errors.As(err, &re) {
		return true
	}
	var tc *TypeConversionError
	if errors.As(err, &tc) {
		return true
	}
	var sm *SchemaMismatchError
	return errors.As(err, &sm)
}

// Position returns the record position carried by err, or 0.
func Position(err error) int64 {
	var re *RecordError
	if errors.As(err, &re) {
		return re.Position
	}
	return 0
}
