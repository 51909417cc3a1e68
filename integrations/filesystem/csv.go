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

package filesystem

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/arrowarc/chingest/internal/dbarrow"
	"github.com/arrowarc/chingest/internal/errors"
	"github.com/arrowarc/chingest/pkg/record"
)

const byteOrderMark = "\ufeff"

// CSVOptions configures delimited file streams.
type CSVOptions struct {
	Delimiter rune
	Mapper    dbarrow.Mapper
}

func (o CSVOptions) delimiter() rune {
	if o.Delimiter == 0 {
		return ','
	}
	return o.Delimiter
}

// CSVRecordSource reads records from a delimited file whose first line names
// the columns present. Columns are matched by name, so the file may list them
// in any order, but the set must equal the projection.
type CSVRecordSource struct {
	reader     *csv.Reader
	closer     io.Closer
	projection record.Projection
	types      []dbarrow.ColumnType
	order      []int
	mapper     dbarrow.Mapper
	pos        int64
	done       bool
}

// NewCSVRecordSource reads the header from r and checks it against the
// projection before any record is returned.
func NewCSVRecordSource(r io.Reader, projection record.Projection, opts CSVOptions) (*CSVRecordSource, error) {
	reader := csv.NewReader(r)
	reader.Comma = opts.delimiter()
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &errors.SchemaMismatchError{Reason: "file has no header line", Expected: projection.Names()}
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read CSV header")
	}
	header = append([]string(nil), header...)
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], byteOrderMark)
	}
	if !projection.SameNames(header) {
		return nil, &errors.SchemaMismatchError{
			Reason:   "file header does not match projection",
			Expected: projection.Names(),
			Got:      header,
		}
	}

	order := make([]int, len(header))
	types := make([]dbarrow.ColumnType, len(header))
	for i, name := range header {
		order[i] = projection.Index(name)
		types[i] = dbarrow.ParseType(projection[order[i]].Type)
	}

	reader.ReuseRecord = true
	return &CSVRecordSource{
		reader:     reader,
		projection: projection,
		types:      types,
		order:      order,
		mapper:     opts.Mapper,
	}, nil
}

// OpenCSVRecordSource opens a file and reads its header.
func OpenCSVRecordSource(path string, projection record.Projection, opts CSVOptions) (*CSVRecordSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open CSV file")
	}
	src, err := NewCSVRecordSource(f, projection, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	src.closer = f
	return src, nil
}

// Next returns the next record in projection order. Malformed lines and
// unconvertible fields are returned as *errors.RecordError and the source
// stays usable.
func (s *CSVRecordSource) Next(ctx context.Context) (record.Record, error) {
	if s.done {
		return record.Record{}, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return record.Record{}, err
	}

	row, err := s.reader.Read()
	if err == io.EOF {
		s.done = true
		return record.Record{}, io.EOF
	}
	s.pos++
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return record.Record{}, &errors.RecordError{Position: s.pos, Err: err}
		}
		return record.Record{}, errors.Wrap(err, "failed to read CSV record")
	}
	if len(row) != len(s.order) {
		return record.Record{}, &errors.RecordError{
			Position: s.pos,
			Err:      errors.Newf("expected %d fields, got %d", len(s.order), len(row)),
		}
	}

	fields := make([]record.Field, len(s.projection))
	for i, text := range row {
		idx := s.order[i]
		v, err := s.mapper.FromFileField(text, s.types[i])
		if err != nil {
			return record.Record{}, &errors.RecordError{
				Position: s.pos,
				Err:      dbarrow.WithColumn(err, s.projection[idx].Name),
			}
		}
		fields[idx] = record.Field{Name: s.projection[idx].Name, Value: v}
	}
	return record.Record{Fields: fields}, nil
}

func (s *CSVRecordSource) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

// CSVRecordSink writes records as delimited lines in projection order. The
// header is written when the sink is created, so an empty transfer still
// produces a header line. Lines of the current batch are held in memory and
// reach the destination only on Flush; Close drops them.
type CSVRecordSink struct {
	dst        io.Writer
	pending    bytes.Buffer
	writer     *csv.Writer
	closer     io.Closer
	projection record.Projection
	types      []dbarrow.ColumnType
	mapper     dbarrow.Mapper
	row        []string
}

func NewCSVRecordSink(w io.Writer, projection record.Projection, opts CSVOptions) (*CSVRecordSink, error) {
	s := &CSVRecordSink{
		dst:        w,
		projection: projection,
		types:      dbarrow.ProjectionTypes(projection),
		mapper:     opts.Mapper,
		row:        make([]string, len(projection)),
	}
	s.writer = csv.NewWriter(&s.pending)
	s.writer.Comma = opts.delimiter()
	if err := s.writer.Write(projection.Names()); err != nil {
		return nil, errors.Wrap(err, "failed to write CSV header")
	}
	if err := s.Flush(context.Background()); err != nil {
		return nil, errors.Wrap(err, "failed to write CSV header")
	}
	return s, nil
}

// CreateCSVRecordSink creates or truncates the file at path.
func CreateCSVRecordSink(path string, projection record.Projection, opts CSVOptions) (*CSVRecordSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create CSV file")
	}
	sink, err := NewCSVRecordSink(f, projection, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	sink.closer = f
	return sink, nil
}

func (s *CSVRecordSink) Write(ctx context.Context, rec record.Record) error {
	if err := s.projection.Check(rec); err != nil {
		return err
	}
	for i, c := range s.projection {
		v, _ := rec.Get(c.Name)
		s.row[i] = s.mapper.ToFileField(v, s.types[i])
	}
	if err := s.writer.Write(s.row); err != nil {
		return errors.Wrap(err, "failed to write CSV record")
	}
	return nil
}

// Flush copies the lines of the current batch to the destination.
func (s *CSVRecordSink) Flush(ctx context.Context) error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return errors.Wrap(err, "failed to flush CSV records")
	}
	_, err := s.pending.WriteTo(s.dst)
	if err != nil {
		s.pending.Reset()
		return errors.Wrap(err, "failed to flush CSV records")
	}
	return nil
}

// Close discards lines written since the last Flush and closes the file.
func (s *CSVRecordSink) Close() error {
	s.writer.Flush()
	s.pending.Reset()
	var err error
	if s.closer != nil {
		err = s.closer.Close()
		s.closer = nil
	}
	return err
}

// PeekHeader returns the column names on the first line of br without
// consuming any input.
func PeekHeader(br *bufio.Reader, delimiter rune) ([]string, error) {
	buf, err := br.Peek(br.Size())
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, errors.Wrap(err, "failed to read CSV header")
	}
	reader := csv.NewReader(bytes.NewReader(buf))
	reader.Comma = CSVOptions{Delimiter: delimiter}.delimiter()
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err == io.EOF {
		return nil, &errors.SchemaMismatchError{Reason: "file has no header line"}
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse CSV header")
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], byteOrderMark)
	}
	return header, nil
}
