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
	"io"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowarc/chingest/internal/dbarrow"
	"github.com/arrowarc/chingest/internal/errors"
	"github.com/arrowarc/chingest/pkg/common/config"
	"github.com/arrowarc/chingest/pkg/record"
)

func newMockConn(t *testing.T) (*Conn, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewConn(db, "analytics", dbarrow.Mapper{}, nil), mock
}

var events = record.Projection{
	{Name: "id", Type: "UInt32"},
	{Name: "name", Type: "Nullable(String)"},
	{Name: "score", Type: "Float64"},
}

func TestListTables(t *testing.T) {
	conn, mock := newMockConn(t)

	mock.ExpectQuery(regexp.QuoteMeta(listTablesQuery)).
		WithArgs("analytics").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("events").AddRow("users"))

	tables, err := conn.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []record.Table{{Name: "events"}, {Name: "users"}}, tables)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTablesEmptyDatabase(t *testing.T) {
	conn, mock := newMockConn(t)

	mock.ExpectQuery(regexp.QuoteMeta(listTablesQuery)).
		WithArgs("analytics").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	tables, err := conn.ListTables(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tables)
	assert.NotNil(t, tables)
}

func TestListTablesConnectionError(t *testing.T) {
	conn, mock := newMockConn(t)

	mock.ExpectQuery(regexp.QuoteMeta(listTablesQuery)).
		WillReturnError(io.ErrUnexpectedEOF)

	_, err := conn.ListTables(context.Background())
	var ce *errors.ConnectionError
	require.True(t, errors.As(err, &ce))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestListColumnsInDeclaredOrder(t *testing.T) {
	conn, mock := newMockConn(t)

	rows := sqlmock.NewRows([]string{"name", "type"})
	for _, c := range events {
		rows.AddRow(c.Name, c.Type)
	}
	mock.ExpectQuery(regexp.QuoteMeta(listColumnsQuery)).
		WithArgs("analytics", "events").
		WillReturnRows(rows)

	columns, err := conn.ListColumns(context.Background(), "events")
	require.NoError(t, err)
	assert.Equal(t, []record.Column(events), columns)
}

func TestListColumnsNotFound(t *testing.T) {
	conn, mock := newMockConn(t)

	mock.ExpectQuery(regexp.QuoteMeta(listColumnsQuery)).
		WithArgs("analytics", "gone").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type"}))

	_, err := conn.ListColumns(context.Background(), "gone")
	var nf *errors.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "gone", nf.Table)
}

func TestRecordSourceStreamsRows(t *testing.T) {
	conn, mock := newMockConn(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT `id`, `name`, `score` FROM `analytics`.`events`")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "score"}).
			AddRow(uint32(1), "a", 0.5).
			AddRow(int64(2), nil, float64(3)))

	src, err := conn.OpenSource(context.Background(), "events", events)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, record.New(
		record.Field{Name: "id", Value: record.Uint(1)},
		record.Field{Name: "name", Value: record.Text("a")},
		record.Field{Name: "score", Value: record.Float(0.5)},
	), first)

	second, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, record.Uint(2), second.Fields[0].Value)
	assert.True(t, second.Fields[1].Value.IsNull())

	for i := 0; i < 2; i++ {
		_, err = src.Next(ctx)
		assert.Equal(t, io.EOF, err)
	}
	assert.NoError(t, src.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSourceCursorError(t *testing.T) {
	conn, mock := newMockConn(t)

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "score"}).
			AddRow(uint32(1), "a", 0.5).
			RowError(1, io.ErrUnexpectedEOF).
			AddRow(uint32(2), "b", 0.5))

	src, err := conn.OpenSource(context.Background(), "events", events)
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Next(context.Background())
	require.NoError(t, err)
	_, err = src.Next(context.Background())
	require.Error(t, err)
	assert.False(t, errors.IsRecordLevel(err))
}

func TestRecordSinkBatches(t *testing.T) {
	conn, mock := newMockConn(t)
	insert := regexp.QuoteMeta("INSERT INTO `analytics`.`events` (`id`, `name`, `score`)")

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(insert)
	prep.ExpectExec().WithArgs(int64(1), "a", 0.5).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs(int64(2), nil, 1.0).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sink, err := conn.OpenSink(context.Background(), "events", events)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sink.Write(ctx, record.New(
		record.Field{Name: "score", Value: record.Float(0.5)},
		record.Field{Name: "id", Value: record.Uint(1)},
		record.Field{Name: "name", Value: record.Text("a")},
	)))

	err = sink.Write(ctx, record.New(
		record.Field{Name: "id", Value: record.Uint(3)},
		record.Field{Name: "name", Value: record.Text("bad")},
		record.Field{Name: "score", Value: record.Null()},
	))
	assert.True(t, errors.IsRecordLevel(err))

	require.NoError(t, sink.Write(ctx, record.New(
		record.Field{Name: "id", Value: record.Uint(2)},
		record.Field{Name: "name", Value: record.Null()},
		record.Field{Name: "score", Value: record.Float(1)},
	)))
	require.NoError(t, sink.Flush(ctx))
	require.NoError(t, sink.Flush(ctx))
	require.NoError(t, sink.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSinkCloseRollsBack(t *testing.T) {
	conn, mock := newMockConn(t)

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT").ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	sink, err := conn.OpenSink(context.Background(), "events", events)
	require.NoError(t, err)
	require.NoError(t, sink.Write(context.Background(), record.New(
		record.Field{Name: "id", Value: record.Uint(1)},
		record.Field{Name: "name", Value: record.Null()},
		record.Field{Name: "score", Value: record.Float(1)},
	)))
	require.NoError(t, sink.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSinkCommitFailure(t *testing.T) {
	conn, mock := newMockConn(t)

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT").ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(io.ErrClosedPipe)

	sink, err := conn.OpenSink(context.Background(), "events", events)
	require.NoError(t, err)
	require.NoError(t, sink.Write(context.Background(), record.New(
		record.Field{Name: "id", Value: record.Uint(1)},
		record.Field{Name: "name", Value: record.Null()},
		record.Field{Name: "score", Value: record.Float(1)},
	)))
	err = sink.Flush(context.Background())
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	assert.False(t, errors.IsRecordLevel(err))
}

func TestDialRejectsInvalidConfig(t *testing.T) {
	c := &Connector{}
	_, err := c.Dial(context.Background(), config.ConnectionConfig{})
	var ce *errors.ConnectionError
	assert.True(t, errors.As(err, &ce))
}

func TestDialRejectsBadToken(t *testing.T) {
	c := &Connector{Secret: "key"}
	_, err := c.Dial(context.Background(), config.ConnectionConfig{
		Host: "localhost", Port: 9000, Database: "default", User: "default", Token: "garbage",
	})
	var ce *errors.ConnectionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "authenticate", ce.Op)
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, "`plain`", quoteIdent("plain"))
	assert.Equal(t, "`we\\`ird`", quoteIdent("we`ird"))
	assert.Equal(t, "SELECT `id`, `name`, `score` FROM `db`.`t`", selectQuery("`db`.`t`", events))
}
