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

// Package clickhouse connects to ClickHouse through database/sql and exposes
// its catalog and tables as record streams.
package clickhouse

import (
	"context"
	"crypto/tls"
	"database/sql"
	"strings"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/arrowarc/chingest/internal/auth"
	"github.com/arrowarc/chingest/internal/dbarrow"
	"github.com/arrowarc/chingest/internal/errors"
	"github.com/arrowarc/chingest/internal/interfaces"
	"github.com/arrowarc/chingest/internal/logging"
	"github.com/arrowarc/chingest/pkg/common/config"
	"github.com/arrowarc/chingest/pkg/record"
)

// Connector opens connections. Secret, when set, is the HS256 key used to
// read the password out of the connection token.
type Connector struct {
	Secret string
	Mapper dbarrow.Mapper
	Logger log.Logger
}

// Dial opens a connection and verifies it with a ping.
func (c *Connector) Dial(ctx context.Context, cfg config.ConnectionConfig) (*Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewConnectionError("connect", err)
	}
	password, err := auth.ResolvePassword(cfg.Token, c.Secret)
	if err != nil {
		return nil, errors.NewConnectionError("authenticate", err)
	}

	opts := &ch.Options{
		Addr:     []string{cfg.Addr()},
		Protocol: ch.Native,
		Auth: ch.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: password,
		},
	}
	if cfg.Secure {
		opts.TLS = &tls.Config{ServerName: cfg.Host}
	}

	db := ch.OpenDB(opts)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.NewConnectionError("ping", err)
	}

	logger := logging.Component(c.Logger, "clickhouse")
	level.Info(logger).Log("msg", "connected", "addr", cfg.Addr(), "database", cfg.Database, "user", cfg.User)
	return NewConn(db, cfg.Database, c.Mapper, logger), nil
}

// Connect is Dial returning the connection as an interfaces.Conn.
func (c *Connector) Connect(ctx context.Context, cfg config.ConnectionConfig) (interfaces.Conn, error) {
	conn, err := c.Dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Conn is an open connection to one database.
type Conn struct {
	db       *sql.DB
	database string
	mapper   dbarrow.Mapper
	logger   log.Logger
}

// NewConn wraps an already opened database handle.
func NewConn(db *sql.DB, database string, mapper dbarrow.Mapper, logger log.Logger) *Conn {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Conn{db: db, database: database, mapper: mapper, logger: logger}
}

func (c *Conn) Close() error {
	return c.db.Close()
}

// ListTables returns the tables of the connected database ordered by name.
func (c *Conn) ListTables(ctx context.Context) ([]record.Table, error) {
	rows, err := c.db.QueryContext(ctx, listTablesQuery, c.database)
	if err != nil {
		return nil, errors.NewConnectionError("list tables", err)
	}
	defer rows.Close()

	tables := []record.Table{}
	for rows.Next() {
		var t record.Table
		if err := rows.Scan(&t.Name); err != nil {
			return nil, errors.NewConnectionError("list tables", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewConnectionError("list tables", err)
	}
	return tables, nil
}

// ListColumns returns the columns of table in declared order.
func (c *Conn) ListColumns(ctx context.Context, table string) ([]record.Column, error) {
	rows, err := c.db.QueryContext(ctx, listColumnsQuery, c.database, table)
	if err != nil {
		return nil, errors.NewConnectionError("list columns", err)
	}
	defer rows.Close()

	var columns []record.Column
	for rows.Next() {
		var col record.Column
		if err := rows.Scan(&col.Name, &col.Type); err != nil {
			return nil, errors.NewConnectionError("list columns", err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewConnectionError("list columns", err)
	}
	if len(columns) == 0 {
		return nil, &errors.NotFoundError{Table: table}
	}
	return columns, nil
}

const (
	listTablesQuery  = "SELECT name FROM system.tables WHERE database = ? ORDER BY name"
	listColumnsQuery = "SELECT name, type FROM system.columns WHERE database = ? AND table = ? ORDER BY position"
)

// quoteIdent quotes a ClickHouse identifier with backticks.
func quoteIdent(name string) string {
	return "`" + strings.NewReplacer(`\`, `\\`, "`", "\\`").Replace(name) + "`"
}

func (c *Conn) qualified(table string) string {
	return quoteIdent(c.database) + "." + quoteIdent(table)
}

func columnList(p record.Projection) string {
	names := make([]string, len(p))
	for i, col := range p {
		names[i] = quoteIdent(col.Name)
	}
	return strings.Join(names, ", ")
}

func selectQuery(qualified string, p record.Projection) string {
	return "SELECT " + columnList(p) + " FROM " + qualified
}

func insertQuery(qualified string, p record.Projection) string {
	return "INSERT INTO " + qualified + " (" + columnList(p) + ")"
}
