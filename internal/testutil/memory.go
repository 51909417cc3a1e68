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

// Package testutil provides in-memory record streams and connections for
// tests.
package testutil

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/arrowarc/chingest/internal/errors"
	"github.com/arrowarc/chingest/internal/interfaces"
	"github.com/arrowarc/chingest/pkg/common/config"
	"github.com/arrowarc/chingest/pkg/record"
)

// SliceSource yields Records in order. Errs maps a 0-based index to an
// error returned in place of that record.
type SliceSource struct {
	Records []record.Record
	Errs    map[int]error

	mu     sync.Mutex
	next   int
	closed bool
}

func (s *SliceSource) Next(ctx context.Context) (record.Record, error) {
	if err := ctx.Err(); err != nil {
		return record.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.Records) {
		return record.Record{}, io.EOF
	}
	i := s.next
	s.next++
	if err, ok := s.Errs[i]; ok {
		return record.Record{}, err
	}
	return s.Records[i], nil
}

func (s *SliceSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *SliceSource) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// MemorySink keeps written records pending until Flush. Projection, when
// set, is checked on every Write. OnWrite and OnFlush may inject failures.
type MemorySink struct {
	Projection record.Projection
	OnWrite    func(rec record.Record) error
	OnFlush    func(flushes int) error

	mu        sync.Mutex
	pending   []record.Record
	committed []record.Record
	flushes   int
	closed    bool
}

func (s *MemorySink) Write(ctx context.Context, rec record.Record) error {
	if s.Projection != nil {
		if err := s.Projection.Check(rec); err != nil {
			return err
		}
	}
	if s.OnWrite != nil {
		if err := s.OnWrite(rec); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, rec)
	return nil
}

func (s *MemorySink) Flush(ctx context.Context) error {
	s.mu.Lock()
	s.flushes++
	n := s.flushes
	s.mu.Unlock()

	if s.OnFlush != nil {
		if err := s.OnFlush(n); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = append(s.committed, s.pending...)
	s.pending = nil
	return nil
}

func (s *MemorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	s.closed = true
	return nil
}

func (s *MemorySink) Committed() []record.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]record.Record(nil), s.committed...)
}

func (s *MemorySink) Flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

func (s *MemorySink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Table is an in-memory table.
type Table struct {
	Columns []record.Column
	Rows    []record.Record
}

// MemoryConn is an interfaces.Conn over in-memory tables. Sinks append
// committed batches to their table.
type MemoryConn struct {
	mu     sync.Mutex
	tables map[string]*Table
	closed bool

	// Block, when set, is received from before every source record.
	Block chan struct{}
}

func NewMemoryConn() *MemoryConn {
	return &MemoryConn{tables: make(map[string]*Table)}
}

func (c *MemoryConn) AddTable(name string, columns []record.Column, rows ...record.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[name] = &Table{Columns: columns, Rows: rows}
}

func (c *MemoryConn) DropTable(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tables, name)
}

// Rows returns a copy of the rows stored in a table.
func (c *MemoryConn) Rows(name string) []record.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[name]
	if !ok {
		return nil
	}
	return append([]record.Record(nil), t.Rows...)
}

func (c *MemoryConn) ListTables(ctx context.Context) ([]record.Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tables := []record.Table{}
	for name := range c.tables {
		tables = append(tables, record.Table{Name: name})
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	return tables, nil
}

func (c *MemoryConn) ListColumns(ctx context.Context, table string) ([]record.Column, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[table]
	if !ok {
		return nil, &errors.NotFoundError{Table: table}
	}
	return append([]record.Column(nil), t.Columns...), nil
}

func (c *MemoryConn) OpenSource(ctx context.Context, table string, projection record.Projection) (interfaces.Source, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[table]
	if !ok {
		return nil, &errors.NotFoundError{Table: table}
	}
	rows := make([]record.Record, len(t.Rows))
	for i, row := range t.Rows {
		fields := make([]record.Field, len(projection))
		for j, col := range projection {
			v, _ := row.Get(col.Name)
			fields[j] = record.Field{Name: col.Name, Value: v}
		}
		rows[i] = record.Record{Fields: fields}
	}
	return &blockingSource{SliceSource: &SliceSource{Records: rows}, block: c.Block}, nil
}

func (c *MemoryConn) OpenSink(ctx context.Context, table string, projection record.Projection) (interfaces.Sink, error) {
	c.mu.Lock()
	_, ok := c.tables[table]
	c.mu.Unlock()
	if !ok {
		return nil, &errors.NotFoundError{Table: table}
	}
	sink := &MemorySink{Projection: projection}
	sink.OnFlush = func(int) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		sink.mu.Lock()
		defer sink.mu.Unlock()
		if t, ok := c.tables[table]; ok {
			t.Rows = append(t.Rows, sink.pending...)
		}
		return nil
	}
	return sink, nil
}

func (c *MemoryConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *MemoryConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type blockingSource struct {
	*SliceSource
	block chan struct{}
}

func (s *blockingSource) Next(ctx context.Context) (record.Record, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return record.Record{}, ctx.Err()
		}
	}
	return s.SliceSource.Next(ctx)
}

// MemoryConnector hands out Conn, or fails with Err.
type MemoryConnector struct {
	Conn *MemoryConn
	Err  error

	mu    sync.Mutex
	calls []config.ConnectionConfig
}

func (c *MemoryConnector) Connect(ctx context.Context, cfg config.ConnectionConfig) (interfaces.Conn, error) {
	c.mu.Lock()
	c.calls = append(c.calls, cfg)
	c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Conn, nil
}

func (c *MemoryConnector) Calls() []config.ConnectionConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]config.ConnectionConfig(nil), c.calls...)
}
