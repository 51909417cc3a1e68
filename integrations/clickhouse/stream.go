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

package clickhouse

import (
	"context"
	"database/sql"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/arrowarc/chingest/internal/dbarrow"
	"github.com/arrowarc/chingest/internal/errors"
	"github.com/arrowarc/chingest/internal/interfaces"
	"github.com/arrowarc/chingest/pkg/record"
)

// RecordSource streams the projected columns of a table over a single
// server-side cursor. Rows are decoded one at a time as the driver receives
// blocks, so the result set is never held in memory.
type RecordSource struct {
	rows       *sql.Rows
	projection record.Projection
	types      []dbarrow.ColumnType
	mapper     dbarrow.Mapper
	values     []any
	dest       []any
	pos        int64
	done       bool
}

func (c *Conn) OpenSource(ctx context.Context, table string, projection record.Projection) (interfaces.Source, error) {
	return c.NewRecordSource(ctx, table, projection)
}

func (c *Conn) NewRecordSource(ctx context.Context, table string, projection record.Projection) (*RecordSource, error) {
	query := selectQuery(c.qualified(table), projection)
	level.Debug(c.logger).Log("msg", "opening cursor", "query", query)

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &errors.TransferError{Op: "open cursor", Err: err}
	}

	values := make([]any, len(projection))
	dest := make([]any, len(projection))
	for i := range values {
		dest[i] = &values[i]
	}
	return &RecordSource{
		rows:       rows,
		projection: projection,
		types:      dbarrow.ProjectionTypes(projection),
		mapper:     c.mapper,
		values:     values,
		dest:       dest,
	}, nil
}

func (s *RecordSource) Next(ctx context.Context) (record.Record, error) {
	if s.done {
		return record.Record{}, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return record.Record{}, err
	}
	if !s.rows.Next() {
		s.done = true
		if err := s.rows.Err(); err != nil {
			return record.Record{}, errors.Wrap(err, "failed to read from cursor")
		}
		return record.Record{}, io.EOF
	}
	s.pos++
	if err := s.rows.Scan(s.dest...); err != nil {
		return record.Record{}, errors.Wrap(err, "failed to scan row")
	}

	fields := make([]record.Field, len(s.projection))
	for i, col := range s.projection {
		v, err := s.mapper.FromDriver(s.values[i], s.types[i])
		if err != nil {
			return record.Record{}, &errors.RecordError{Position: s.pos, Err: dbarrow.WithColumn(err, col.Name)}
		}
		fields[i] = record.Field{Name: col.Name, Value: v}
	}
	return record.Record{Fields: fields}, nil
}

func (s *RecordSource) Close() error {
	s.done = true
	return s.rows.Close()
}

// RecordSink inserts records in batches. Each batch is a transaction holding
// a prepared INSERT; the driver sends the accumulated block on commit.
type RecordSink struct {
	db         *sql.DB
	query      string
	projection record.Projection
	types      []dbarrow.ColumnType
	mapper     dbarrow.Mapper
	logger     log.Logger
	tx         *sql.Tx
	stmt       *sql.Stmt
	pending    int
}

func (c *Conn) OpenSink(ctx context.Context, table string, projection record.Projection) (interfaces.Sink, error) {
	return c.NewRecordSink(ctx, table, projection)
}

func (c *Conn) NewRecordSink(ctx context.Context, table string, projection record.Projection) (*RecordSink, error) {
	return &RecordSink{
		db:         c.db,
		query:      insertQuery(c.qualified(table), projection),
		projection: projection,
		types:      dbarrow.ProjectionTypes(projection),
		mapper:     c.mapper,
		logger:     c.logger,
	}, nil
}

// Write converts every field before touching the batch, so a record that
// cannot be represented is rejected without affecting the others.
func (s *RecordSink) Write(ctx context.Context, rec record.Record) error {
	if err := s.projection.Check(rec); err != nil {
		return err
	}
	args := make([]any, len(s.projection))
	for i, col := range s.projection {
		v, _ := rec.Get(col.Name)
		arg, err := s.mapper.ToDriver(v, s.types[i])
		if err != nil {
			return dbarrow.WithColumn(err, col.Name)
		}
		args[i] = arg
	}

	if s.tx == nil {
		if err := s.begin(ctx); err != nil {
			return err
		}
	}
	if _, err := s.stmt.ExecContext(ctx, args...); err != nil {
		return errors.Wrap(err, "failed to append row to batch")
	}
	s.pending++
	return nil
}

func (s *RecordSink) begin(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin batch")
	}
	stmt, err := tx.PrepareContext(ctx, s.query)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "failed to prepare insert")
	}
	s.tx, s.stmt = tx, stmt
	return nil
}

// Flush sends the pending batch. Nothing is sent when no record was written
// since the last flush.
func (s *RecordSink) Flush(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx, stmt, pending := s.tx, s.stmt, s.pending
	s.tx, s.stmt, s.pending = nil, nil, 0

	stmt.Close()
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to send batch")
	}
	level.Debug(s.logger).Log("msg", "batch sent", "rows", pending)
	return nil
}

// Close discards a batch that was never flushed.
func (s *RecordSink) Close() error {
	if s.tx == nil {
		return nil
	}
	s.stmt.Close()
	err := s.tx.Rollback()
	s.tx, s.stmt, s.pending = nil, nil, 0
	return err
}
