package interfaces

import (
	"context"

	"github.com/arrowarc/chingest/pkg/record"
)

// Source yields records one at a time. Once Next returns io.EOF every
// further call returns io.EOF.
type Source interface {
	Next(ctx context.Context) (record.Record, error)
	Close() error
}

// Sink accepts records and commits them in batches. Records written since
// the last Flush are not durable until Flush returns nil.
type Sink interface {
	Write(ctx context.Context, rec record.Record) error
	Flush(ctx context.Context) error
	Close() error
}

// Catalog lists tables and their ordered columns.
type Catalog interface {
	ListTables(ctx context.Context) ([]record.Table, error)
	ListColumns(ctx context.Context, table string) ([]record.Column, error)
}

// Conn is an open database connection able to stream a table's projected
// columns in either direction.
type Conn interface {
	Catalog
	OpenSource(ctx context.Context, table string, projection record.Projection) (Source, error)
	OpenSink(ctx context.Context, table string, projection record.Projection) (Sink, error)
	Close() error
}
