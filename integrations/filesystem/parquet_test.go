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
	"path/filepath"
	"testing"

	"github.com/apache/arrow/go/v17/parquet/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowarc/chingest/internal/dbarrow"
	"github.com/arrowarc/chingest/internal/errors"
	"github.com/arrowarc/chingest/pkg/record"
)

func TestParquetSinkWritesRowGroups(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "people.parquet")
	sink, err := CreateParquetRecordSink(path, people, dbarrow.Mapper{})
	require.NoError(t, err)

	ctx := context.Background()
	for batch := 0; batch < 2; batch++ {
		for i := 0; i < 5; i++ {
			require.NoError(t, sink.Write(ctx, record.New(
				record.Field{Name: "id", Value: record.Uint(uint64(batch*5 + i))},
				record.Field{Name: "name", Value: record.Null()},
				record.Field{Name: "score", Value: record.Float(float64(i))},
			)))
		}
		require.NoError(t, sink.Flush(ctx))
	}

	err = sink.Write(ctx, record.New(
		record.Field{Name: "id", Value: record.Text("x")},
		record.Field{Name: "name", Value: record.Null()},
		record.Field{Name: "score", Value: record.Float(1)},
	))
	var tc *errors.TypeConversionError
	assert.True(t, errors.As(err, &tc))

	require.NoError(t, sink.Close())

	rdr, err := file.OpenParquetFile(path, false)
	require.NoError(t, err)
	defer rdr.Close()
	assert.Equal(t, int64(10), rdr.NumRows())
	assert.Equal(t, 2, rdr.NumRowGroups())
}

func TestParquetSinkCloseDropsUnflushedRecords(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "partial.parquet")
	sink, err := CreateParquetRecordSink(path, people, dbarrow.Mapper{})
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 7; i++ {
		require.NoError(t, sink.Write(ctx, record.New(
			record.Field{Name: "id", Value: record.Uint(uint64(i))},
			record.Field{Name: "name", Value: record.Text("a")},
			record.Field{Name: "score", Value: record.Float(1)},
		)))
		if i == 3 {
			require.NoError(t, sink.Flush(ctx))
		}
	}
	require.NoError(t, sink.Close())

	rdr, err := file.OpenParquetFile(path, false)
	require.NoError(t, err)
	defer rdr.Close()
	assert.Equal(t, int64(4), rdr.NumRows())
	assert.Equal(t, 1, rdr.NumRowGroups())
}
