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

// Package session implements the ingestion session: one authenticated
// connection moving through table and column selection to transfers between
// the database and delimited files.
package session

import (
	"context"
	"io"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"github.com/arrowarc/chingest/integrations/filesystem"
	"github.com/arrowarc/chingest/internal/dbarrow"
	"github.com/arrowarc/chingest/internal/errors"
	"github.com/arrowarc/chingest/internal/interfaces"
	"github.com/arrowarc/chingest/internal/logging"
	"github.com/arrowarc/chingest/pkg/common/config"
	"github.com/arrowarc/chingest/pkg/pipeline"
	"github.com/arrowarc/chingest/pkg/record"
)

// Connector opens database connections.
type Connector interface {
	Connect(ctx context.Context, cfg config.ConnectionConfig) (interfaces.Conn, error)
}

// Options configures transfers run by a session.
type Options struct {
	BatchSize     int
	RowsPerSecond float64
	Delimiter     rune
	Mapper        dbarrow.Mapper
	Logger        log.Logger
}

// Session holds one connection and the table and projection chosen on it.
// At most one transfer runs at a time; a second request while transferring
// fails instead of queuing. Session is safe for concurrent use.
type Session struct {
	id        uuid.UUID
	connector Connector
	opts      Options
	logger    log.Logger

	mu         sync.Mutex
	state      State
	cfg        config.ConnectionConfig
	conn       interfaces.Conn
	tables     []record.Table
	columns    map[string][]record.Column
	table      string
	projection record.Projection
	cancel     context.CancelFunc
	generation uint64
}

func New(connector Connector, opts Options) *Session {
	id := uuid.New()
	return &Session{
		id:        id,
		connector: connector,
		opts:      opts,
		logger:    log.With(logging.Component(opts.Logger, "session"), "session", id.String()),
		columns:   make(map[string][]record.Column),
	}
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Table returns the selected table, if any.
func (s *Session) Table() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table
}

// Projection returns the selected projection, if any.
func (s *Session) Projection() record.Projection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(record.Projection(nil), s.projection...)
}

// requireLocked fails unless the session is at least in state min and not
// transferring.
func (s *Session) requireLocked(op string, min State) error {
	if s.state == Transferring || s.state < min {
		return &errors.InvalidStateError{Op: op, State: s.state.String(), Required: min.String()}
	}
	return nil
}

// Authenticate connects with cfg and lists its tables. On success any
// previous connection and selection is discarded. On failure the session is
// left as it was.
func (s *Session) Authenticate(ctx context.Context, cfg config.ConnectionConfig) ([]record.Table, error) {
	s.mu.Lock()
	if s.state == Transferring {
		s.mu.Unlock()
		return nil, &errors.InvalidStateError{Op: "authenticate", State: s.state.String(), Required: "any state but Transferring"}
	}
	s.mu.Unlock()

	conn, err := s.connector.Connect(ctx, cfg)
	if err != nil {
		var ce *errors.ConnectionError
		if !errors.As(err, &ce) {
			err = errors.NewConnectionError("connect", err)
		}
		level.Warn(s.logger).Log("msg", "authentication failed", "addr", cfg.Addr(), "user", cfg.User, "err", err)
		return nil, err
	}
	tables, err := conn.ListTables(ctx)
	if err != nil {
		conn.Close()
		return nil, err
	}

	s.mu.Lock()
	old := s.conn
	s.discardLocked()
	s.state = Authenticated
	s.cfg = cfg
	s.conn = conn
	s.tables = tables
	s.mu.Unlock()

	if old != nil && old != conn {
		old.Close()
	}
	level.Info(s.logger).Log("msg", "authenticated", "addr", cfg.Addr(), "database", cfg.Database, "tables", len(tables))
	return append([]record.Table(nil), tables...), nil
}

// Tables returns the cached table list, fetching it when empty.
func (s *Session) Tables(ctx context.Context) ([]record.Table, error) {
	s.mu.Lock()
	if err := s.requireLocked("list tables", Authenticated); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.tables != nil {
		tables := append([]record.Table(nil), s.tables...)
		s.mu.Unlock()
		return tables, nil
	}
	conn, gen := s.conn, s.generation
	s.mu.Unlock()

	tables, err := conn.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.generation == gen {
		s.tables = tables
	}
	s.mu.Unlock()
	return append([]record.Table(nil), tables...), nil
}

// SelectTable fetches the columns of table and makes it the current table,
// clearing any projection. A missing table leaves the state unchanged.
func (s *Session) SelectTable(ctx context.Context, table string) ([]record.Column, error) {
	s.mu.Lock()
	if err := s.requireLocked("select table", Authenticated); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	conn, gen := s.conn, s.generation
	s.mu.Unlock()

	columns, err := conn.ListColumns(ctx, table)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return nil, &errors.InvalidStateError{Op: "select table", State: s.state.String(), Required: Authenticated.String()}
	}
	if err != nil {
		var nf *errors.NotFoundError
		if errors.As(err, &nf) {
			delete(s.columns, table)
			// The selected table is gone, so its projection is too.
			if table == s.table && s.state != Transferring {
				s.table = ""
				s.projection = nil
				s.state = Authenticated
			}
		}
		return nil, err
	}
	if err := s.requireLocked("select table", Authenticated); err != nil {
		return nil, err
	}
	s.columns[table] = columns
	s.table = table
	s.projection = nil
	s.state = TableSelected
	level.Debug(s.logger).Log("msg", "table selected", "table", table, "columns", len(columns))
	return append([]record.Column(nil), columns...), nil
}

// Columns returns the cached columns of the selected table.
func (s *Session) Columns() ([]record.Column, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state < TableSelected {
		return nil, &errors.InvalidStateError{Op: "columns", State: s.state.String(), Required: TableSelected.String()}
	}
	return append([]record.Column(nil), s.columns[s.table]...), nil
}

// SelectProjection validates names against the selected table's columns.
// A rejected projection leaves the state unchanged.
func (s *Session) SelectProjection(names []string) (record.Projection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLocked("select projection", TableSelected); err != nil {
		return nil, err
	}
	p, err := record.NewProjection(s.columns[s.table], names)
	if err != nil {
		return nil, err
	}
	s.projection = p
	s.state = ProjectionSelected
	return append(record.Projection(nil), p...), nil
}

// transfer is the state captured when a transfer begins.
type transfer struct {
	ctx        context.Context
	conn       interfaces.Conn
	table      string
	projection record.Projection
	generation uint64
}

func (s *Session) beginTransfer(ctx context.Context, op string) (*transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ProjectionSelected {
		return nil, &errors.InvalidStateError{Op: op, State: s.state.String(), Required: ProjectionSelected.String()}
	}
	ctx, cancel := context.WithCancel(ctx)
	s.state = Transferring
	s.cancel = cancel
	return &transfer{
		ctx:        ctx,
		conn:       s.conn,
		table:      s.table,
		projection: s.projection,
		generation: s.generation,
	}, nil
}

func (s *Session) endTransfer(t *transfer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != t.generation {
		return
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state = ProjectionSelected
}

func (s *Session) run(t *transfer, op string, source interfaces.Source, sink interfaces.Sink, interrupt func()) *pipeline.Result {
	return pipeline.Copy(t.ctx, source, sink, pipeline.Options{
		BatchSize:     s.opts.BatchSize,
		RowsPerSecond: s.opts.RowsPerSecond,
		Logger:        log.With(s.logger, "op", op, "table", t.table),
		Interrupt:     interrupt,
	})
}

func (s *Session) csvOptions() filesystem.CSVOptions {
	return filesystem.CSVOptions{Delimiter: s.opts.Delimiter, Mapper: s.opts.Mapper}
}

// Export writes the projected columns of the selected table to w as a
// delimited file. Errors returned before the copy starts mean no records
// moved; once the copy ran its outcome is in the result.
func (s *Session) Export(ctx context.Context, w io.Writer) (*pipeline.Result, error) {
	return s.export(ctx, func(p record.Projection) (interfaces.Sink, error) {
		return filesystem.NewCSVRecordSink(w, p, s.csvOptions())
	})
}

// ExportToFile is Export to a file created at path. The file is only created
// once the source query is open.
func (s *Session) ExportToFile(ctx context.Context, path string) (*pipeline.Result, error) {
	return s.export(ctx, func(p record.Projection) (interfaces.Sink, error) {
		return filesystem.CreateCSVRecordSink(path, p, s.csvOptions())
	})
}

// ExportParquet writes the projection to a Parquet file at path, one row
// group per batch.
func (s *Session) ExportParquet(ctx context.Context, path string) (*pipeline.Result, error) {
	return s.export(ctx, func(p record.Projection) (interfaces.Sink, error) {
		return filesystem.CreateParquetRecordSink(path, p, s.opts.Mapper)
	})
}

func (s *Session) export(ctx context.Context, openSink func(record.Projection) (interfaces.Sink, error)) (*pipeline.Result, error) {
	t, err := s.beginTransfer(ctx, "export")
	if err != nil {
		return nil, err
	}
	defer s.endTransfer(t)

	// The cursor lives on its own context so a failing sink can stop a read
	// blocked on the network.
	cursorCtx, stop := context.WithCancel(t.ctx)
	defer stop()
	source, err := t.conn.OpenSource(cursorCtx, t.table, t.projection)
	if err != nil {
		return nil, err
	}
	sink, err := openSink(t.projection)
	if err != nil {
		source.Close()
		return nil, err
	}
	return s.run(t, "export", source, sink, stop), nil
}

// Import reads a delimited file from r into the selected table. The file
// header must name exactly the projected columns.
func (s *Session) Import(ctx context.Context, r io.Reader) (*pipeline.Result, error) {
	t, err := s.beginTransfer(ctx, "import")
	if err != nil {
		return nil, err
	}
	defer s.endTransfer(t)

	source, err := filesystem.NewCSVRecordSource(r, t.projection, s.csvOptions())
	if err != nil {
		return nil, err
	}
	return s.importFrom(t, source)
}

// ImportFromFile is Import from the file at path.
func (s *Session) ImportFromFile(ctx context.Context, path string) (*pipeline.Result, error) {
	t, err := s.beginTransfer(ctx, "import")
	if err != nil {
		return nil, err
	}
	defer s.endTransfer(t)

	source, err := filesystem.OpenCSVRecordSource(path, t.projection, s.csvOptions())
	if err != nil {
		return nil, err
	}
	return s.importFrom(t, source)
}

func (s *Session) importFrom(t *transfer, source interfaces.Source) (*pipeline.Result, error) {
	sink, err := t.conn.OpenSink(t.ctx, t.table, t.projection)
	if err != nil {
		source.Close()
		return nil, err
	}
	return s.run(t, "import", source, sink, nil), nil
}

// Cancel stops the running transfer, if any, and reports whether there was
// one.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	s.cancel = nil
	return true
}

// Reset cancels any running transfer, closes the connection and returns the
// session to Unauthenticated with all cached schema and selection state
// discarded.
func (s *Session) Reset() {
	s.mu.Lock()
	conn := s.conn
	s.discardLocked()
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	level.Debug(s.logger).Log("msg", "session reset")
}

// Close is Reset.
func (s *Session) Close() error {
	s.Reset()
	return nil
}

func (s *Session) discardLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
	s.state = Unauthenticated
	s.cfg = config.ConnectionConfig{}
	s.conn = nil
	s.tables = nil
	s.columns = make(map[string][]record.Column)
	s.table = ""
	s.projection = nil
}
