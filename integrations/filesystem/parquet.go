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
	"context"
	"io"
	"os"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/apache/arrow/go/v17/parquet"
	"github.com/apache/arrow/go/v17/parquet/compress"
	"github.com/apache/arrow/go/v17/parquet/pqarrow"

	"github.com/arrowarc/chingest/internal/dbarrow"
	"github.com/arrowarc/chingest/internal/errors"
	pool "github.com/arrowarc/chingest/internal/memory"
	"github.com/arrowarc/chingest/pkg/record"
)

// NewDefaultParquetWriterProperties returns default writer properties.
func NewDefaultParquetWriterProperties(alloc memory.Allocator) *parquet.WriterProperties {
	return parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithAllocator(alloc),
		parquet.WithVersion(parquet.V2_LATEST),
		parquet.WithDataPageSize(1024*1024),
		parquet.WithCreatedBy("chingest"),
	)
}

// ParquetRecordSink buffers records into an Arrow record and writes one row
// group per Flush.
type ParquetRecordSink struct {
	writer     *pqarrow.FileWriter
	closer     io.Closer
	schema     *arrow.Schema
	builder    *array.RecordBuilder
	alloc      memory.Allocator
	projection record.Projection
	types      []dbarrow.ColumnType
	mapper     dbarrow.Mapper
}

// NewParquetRecordSink writes a Parquet file to w with the Arrow schema of
// the projection.
func NewParquetRecordSink(w io.Writer, projection record.Projection, mapper dbarrow.Mapper) (*ParquetRecordSink, error) {
	alloc := pool.GetAllocator()
	schema := dbarrow.ArrowSchema(projection)

	// w is wrapped so closing the Parquet writer leaves the file to us.
	writer, err := pqarrow.NewFileWriter(schema, struct{ io.Writer }{w},
		NewDefaultParquetWriterProperties(alloc),
		pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		pool.PutAllocator(alloc)
		return nil, errors.Wrap(err, "failed to create Parquet writer")
	}

	return &ParquetRecordSink{
		writer:     writer,
		schema:     schema,
		builder:    array.NewRecordBuilder(alloc, schema),
		alloc:      alloc,
		projection: projection,
		types:      dbarrow.ProjectionTypes(projection),
		mapper:     mapper,
	}, nil
}

func CreateParquetRecordSink(path string, projection record.Projection, mapper dbarrow.Mapper) (*ParquetRecordSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Parquet file")
	}
	sink, err := NewParquetRecordSink(f, projection, mapper)
	if err != nil {
		f.Close()
		return nil, err
	}
	sink.closer = f
	return sink, nil
}

func (p *ParquetRecordSink) Write(ctx context.Context, rec record.Record) error {
	if err := p.projection.Check(rec); err != nil {
		return err
	}
	// Validate every field before appending so a bad record leaves the
	// builders aligned.
	values := make([]record.Value, len(p.projection))
	for i, c := range p.projection {
		v, _ := rec.Get(c.Name)
		if v.IsNull() && !p.types[i].Nullable {
			_, err := p.mapper.ToDriver(v, p.types[i])
			return dbarrow.WithColumn(err, c.Name)
		}
		if err := checkArrowValue(v, p.types[i]); err != nil {
			return dbarrow.WithColumn(err, c.Name)
		}
		values[i] = v
	}
	for i, v := range values {
		appendArrowValue(p.builder.Field(i), v, p.types[i], p.mapper)
	}
	return nil
}

func checkArrowValue(v record.Value, t dbarrow.ColumnType) error {
	if v.IsNull() {
		return nil
	}
	var ok bool
	switch dbarrow.ClickHouseToArrow(t).ID() {
	case arrow.INT64:
		ok = v.Kind() == record.KindInt
	case arrow.UINT64:
		ok = v.Kind() == record.KindUint
	case arrow.FLOAT64:
		ok = v.Kind() == record.KindFloat
	case arrow.BOOL:
		ok = v.Kind() == record.KindBool
	default:
		ok = true
	}
	if !ok {
		return &errors.TypeConversionError{Text: v.String(), Type: t.Declared, Err: errors.Newf("unexpected %s value", v.Kind())}
	}
	return nil
}

func appendArrowValue(b array.Builder, v record.Value, t dbarrow.ColumnType, m dbarrow.Mapper) {
	if v.IsNull() {
		b.AppendNull()
		return
	}
	switch fb := b.(type) {
	case *array.Int64Builder:
		fb.Append(v.Int())
	case *array.Uint64Builder:
		fb.Append(v.Uint())
	case *array.Float64Builder:
		fb.Append(v.Float())
	case *array.BooleanBuilder:
		fb.Append(v.Bool())
	case *array.StringBuilder:
		fb.Append(m.ToFileField(v, t))
	default:
		b.AppendNull()
	}
}

// Flush writes the buffered records as a row group.
func (p *ParquetRecordSink) Flush(ctx context.Context) error {
	rec := p.builder.NewRecord()
	defer rec.Release()
	if rec.NumRows() == 0 {
		return nil
	}
	if err := p.writer.Write(rec); err != nil {
		return errors.Wrap(err, "failed to write Parquet row group")
	}
	return nil
}

// Close drops records written since the last Flush and finishes the file
// with the row groups already flushed.
func (p *ParquetRecordSink) Close() error {
	defer pool.PutAllocator(p.alloc)
	defer p.builder.Release()

	p.builder.NewRecord().Release()
	var err error
	if cerr := p.writer.Close(); cerr != nil {
		err = errors.Wrap(cerr, "failed to close Parquet writer")
	}
	if p.closer != nil {
		if cerr := p.closer.Close(); err == nil {
			err = cerr
		}
		p.closer = nil
	}
	return err
}
