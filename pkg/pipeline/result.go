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

package pipeline

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid"

	"github.com/arrowarc/chingest/internal/errors"
	"github.com/arrowarc/chingest/internal/json"
)

// Status is the outcome of a transfer.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Result describes one completed transfer. Records counts only records in
// committed batches. Err is the transport error that ended the transfer or,
// when there was none, the first per-record error.
//
// Checksum is the wrapping sum of the xxhash of every committed record's
// canonical text, so it does not depend on record or field order.
type Result struct {
	ID        ulid.ULID
	Records   int64
	Failed    int64
	Status    Status
	Err       error
	Checksum  uint64
	StartTime time.Time
	EndTime   time.Time

	fatal bool
}

func newResult() *Result {
	now := time.Now()
	return &Result{
		ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader),
		StartTime: now,
	}
}

// fail counts a skipped record and reports whether it was the first.
func (r *Result) fail(err error) bool {
	r.Failed++
	if r.Err == nil {
		r.Err = err
		return true
	}
	return false
}

func (r *Result) abort(err error) {
	var te *errors.TransferError
	if errors.As(err, &te) {
		te.Committed = r.Records
	}
	r.fatal = true
	r.Err = err
}

func (r *Result) finish() {
	r.EndTime = time.Now()
	switch {
	case r.fatal:
		r.Status = StatusFailed
	case r.Failed == 0:
		r.Status = StatusSuccess
	case r.Records > 0:
		r.Status = StatusPartial
	default:
		r.Status = StatusFailed
	}
}

// Duration returns the wall time of the transfer.
func (r *Result) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// Throughput returns committed records per second.
func (r *Result) Throughput() float64 {
	if d := r.Duration(); d > 0 {
		return float64(r.Records) / d.Seconds()
	}
	return 0
}

// Report renders the result as indented JSON.
func (r *Result) Report() string {
	report := struct {
		ID         string    `json:"id"`
		Status     Status    `json:"status"`
		Records    int64     `json:"records"`
		Failed     int64     `json:"failed"`
		Error      string    `json:"error,omitempty"`
		Checksum   string    `json:"checksum"`
		StartTime  time.Time `json:"start_time"`
		EndTime    time.Time `json:"end_time"`
		Duration   string    `json:"duration"`
		Throughput float64   `json:"throughput"`
	}{
		ID:         r.ID.String(),
		Status:     r.Status,
		Records:    r.Records,
		Failed:     r.Failed,
		Checksum:   fmt.Sprintf("%016x", r.Checksum),
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		Duration:   r.Duration().String(),
		Throughput: r.Throughput(),
	}
	if r.Err != nil {
		report.Error = r.Err.Error()
	}

	jsonData, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error generating report: %v", err)
	}
	return string(jsonData)
}
