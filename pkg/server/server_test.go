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

package server

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowarc/chingest/internal/json"
	"github.com/arrowarc/chingest/internal/testutil"
	"github.com/arrowarc/chingest/pkg/common/config"
	"github.com/arrowarc/chingest/pkg/record"
)

var userColumns = []record.Column{
	{Name: "id", Type: "UInt32"},
	{Name: "email", Type: "String"},
	{Name: "active", Type: "Bool"},
}

func userRows(n int) []record.Record {
	rows := make([]record.Record, n)
	for i := range rows {
		rows[i] = record.New(
			record.Field{Name: "id", Value: record.Uint(uint64(i + 1))},
			record.Field{Name: "email", Value: record.Text(fmt.Sprintf("user%d@example.com", i))},
			record.Field{Name: "active", Value: record.Bool(i%2 == 0)},
		)
	}
	return rows
}

type testServer struct {
	handler   http.Handler
	conn      *testutil.MemoryConn
	connector *testutil.MemoryConnector
	exportDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	conn := testutil.NewMemoryConn()
	conn.AddTable("users", userColumns, userRows(12)...)
	conn.AddTable("users_archive", userColumns)

	cfg := config.Default()
	cfg.Transfer.ExportDir = t.TempDir()
	cfg.Transfer.BatchSize = 5
	cfg.Server.MaxSessions = 2
	connector := &testutil.MemoryConnector{Conn: conn}

	srv, err := New(cfg, connector, nil)
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return &testServer{handler: srv.Handler(), conn: conn, connector: connector, exportDir: cfg.Transfer.ExportDir}
}

func (ts *testServer) post(t *testing.T, path string, form url.Values) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec, decode(t, rec)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	body := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return body
}

func (ts *testServer) connect(t *testing.T) string {
	t.Helper()
	rec, body := ts.post(t, "/connect", url.Values{
		"host": {"clickhouse"}, "port": {"9000"}, "database": {"analytics"}, "user": {"loader"}, "token": {"secret"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	id, _ := body["session_id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestConnect(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec, body := ts.post(t, "/connect", url.Values{"host": {"clickhouse"}, "port": {"9001"}, "token": {"secret"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, []any{"users", "users_archive"}, body["tables"])

	calls := ts.connector.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "clickhouse", calls[0].Host)
	assert.Equal(t, 9001, calls[0].Port)
	assert.Equal(t, "default", calls[0].Database)
	assert.Equal(t, "secret", calls[0].Token)
}

func TestConnectFailure(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.connector.Err = fmt.Errorf("authentication failed")

	rec, body := ts.post(t, "/connect", url.Values{"host": {"clickhouse"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "authentication failed")
	assert.NotEmpty(t, body["hint"])

	rec, _ = ts.post(t, "/connect", url.Values{"port": {"ninety"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConnectSessionLimit(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	first := ts.connect(t)
	ts.connect(t)
	rec, _ := ts.post(t, "/connect", url.Values{})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = ts.post(t, "/reset", url.Values{"session_id": {first}})
	require.Equal(t, http.StatusOK, rec.Code)
	ts.connect(t)
}

func TestColumns(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	id := ts.connect(t)

	rec, body := ts.post(t, "/columns", url.Values{"session_id": {id}, "table": {"users"}})
	require.Equal(t, http.StatusOK, rec.Code)
	cols, ok := body["columns"].([]any)
	require.True(t, ok)
	require.Len(t, cols, 3)
	assert.Equal(t, map[string]any{"name": "id", "type": "UInt32"}, cols[0])

	rec, _ = ts.post(t, "/columns", url.Values{"session_id": {id}, "table": {"missing"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = ts.post(t, "/columns", url.Values{"session_id": {id}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownSession(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec, _ := ts.post(t, "/columns", url.Values{"session_id": {"6f1c2f7e-9d3b-4f7a-8d55-1f0e2a9b7c11"}, "table": {"users"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = ts.post(t, "/columns", url.Values{"session_id": {"not-a-uuid"}, "table": {"users"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExport(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	id := ts.connect(t)

	rec, body := ts.post(t, "/export", url.Values{"session_id": {id}, "table": {"users"}, "columns": {"email, id"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, float64(12), body["records"])
	assert.Equal(t, float64(0), body["failed"])

	file, _ := body["file"].(string)
	assert.Equal(t, ts.exportDir, filepath.Dir(file))
	assert.True(t, strings.HasPrefix(filepath.Base(file), "users_export_"))
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 13)
	assert.Equal(t, "email,id", lines[0])
	assert.Equal(t, "user0@example.com,1", lines[1])
}

func TestExportUnknownColumn(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	id := ts.connect(t)

	rec, body := ts.post(t, "/export", url.Values{"session_id": {id}, "table": {"users"}, "columns": {"id,phone"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, body["error"], "phone")

	entries, err := os.ReadDir(ts.exportDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func (ts *testServer) upload(t *testing.T, fields map[string]string, content string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", "upload.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec, decode(t, rec)
}

func TestImportUsesUploadHeader(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	id := ts.connect(t)

	content := "active,id,email\ntrue,1,a@example.com\nfalse,2,b@example.com\nmaybe,3,c@example.com\n"
	rec, body := ts.upload(t, map[string]string{"session_id": id, "table": "users_archive"}, content)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "partial", body["status"])
	assert.Equal(t, float64(2), body["records"])
	assert.Equal(t, float64(1), body["failed"])
	assert.Contains(t, body["error"], "record 3")

	rows := ts.conn.Rows("users_archive")
	require.Len(t, rows, 2)
	email, _ := rows[1].Get("email")
	assert.Equal(t, "b@example.com", email.Text())
}

func TestImportHeaderMismatch(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	id := ts.connect(t)

	rec, _ := ts.upload(t, map[string]string{"session_id": id, "table": "users_archive", "columns": "id,email"}, "id,name\n1,x\n")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, ts.conn.Rows("users_archive"))
}

func TestReset(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	id := ts.connect(t)

	rec, body := ts.post(t, "/reset", url.Values{"session_id": {id}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", body["status"])
	assert.True(t, ts.conn.Closed())

	rec, _ = ts.post(t, "/columns", url.Values{"session_id": {id}, "table": {"users"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORS(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/connect", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/connect", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
