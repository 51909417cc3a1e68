//go:build integration

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
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowarc/chingest/generator"
	"github.com/arrowarc/chingest/integrations/filesystem"
	"github.com/arrowarc/chingest/pkg/common/config"
	"github.com/arrowarc/chingest/pkg/pipeline"
	"github.com/arrowarc/chingest/pkg/session"
)

const integrationColumns = "id:UInt64,name:String,score:Nullable(Float64),day:Date,price:Decimal(10, 2)"

func integrationConfig(t *testing.T) config.ConnectionConfig {
	t.Helper()
	cfg := config.Default()
	require.NoError(t, cfg.ApplyEnv())
	if os.Getenv(config.EnvHost) == "" {
		t.Skip(config.EnvHost + " not set")
	}
	return cfg.Connection
}

func TestIntegrationRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg := integrationConfig(t)
	conn, err := (&Connector{}).Dial(ctx, cfg)
	require.NoError(t, err)
	defer conn.Close()

	table := fmt.Sprintf("chingest_it_%d", time.Now().UnixNano())
	_, err = conn.db.ExecContext(ctx, "CREATE TABLE "+conn.qualified(table)+
		" (id UInt64, name String, score Nullable(Float64), day Date, price Decimal(10, 2)) ENGINE = MergeTree ORDER BY id")
	require.NoError(t, err)
	defer conn.db.ExecContext(context.Background(), "DROP TABLE IF EXISTS "+conn.qualified(table))

	projection, err := generator.ParseColumns(integrationColumns)
	require.NoError(t, err)
	in := filepath.Join(t.TempDir(), "in.csv")
	_, err = generator.WriteCSV(ctx, in, projection, 2500, filesystem.CSVOptions{})
	require.NoError(t, err)

	s := session.New(&Connector{}, session.Options{BatchSize: 1000})
	defer s.Reset()
	_, err = s.Authenticate(ctx, cfg)
	require.NoError(t, err)
	_, err = s.SelectTable(ctx, table)
	require.NoError(t, err)
	_, err = s.SelectProjection(projection.Names())
	require.NoError(t, err)

	imported, err := s.ImportFromFile(ctx, in)
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusSuccess, imported.Status, imported.Report())
	assert.Equal(t, int64(2500), imported.Records)

	exported, err := s.ExportToFile(ctx, filepath.Join(t.TempDir(), "out.csv"))
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusSuccess, exported.Status, exported.Report())
	assert.Equal(t, int64(2500), exported.Records)
	assert.Equal(t, imported.Checksum, exported.Checksum)
}
