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

// Package server exposes ingestion sessions over HTTP: connect, list
// columns, export a table to a file under the export directory and import
// an uploaded file.
package server

import (
	"bufio"
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/oklog/ulid"
	"golang.org/x/sync/errgroup"

	"github.com/arrowarc/chingest/integrations/filesystem"
	"github.com/arrowarc/chingest/internal/dbarrow"
	"github.com/arrowarc/chingest/internal/errors"
	"github.com/arrowarc/chingest/internal/logging"
	"github.com/arrowarc/chingest/pkg/common/config"
	"github.com/arrowarc/chingest/pkg/pipeline"
	"github.com/arrowarc/chingest/pkg/record"
	"github.com/arrowarc/chingest/pkg/session"
)

const maxUploadMemory = 32 << 20

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

type Server struct {
	cfg       *config.Config
	connector session.Connector
	opts      session.Options
	logger    log.Logger
	sessions  *registry
	mux       *http.ServeMux
}

// New builds a server from a validated configuration.
func New(cfg *config.Config, connector session.Connector, logger log.Logger) (*Server, error) {
	delim, err := cfg.Transfer.DelimiterRune()
	if err != nil {
		return nil, err
	}
	logger = logging.Component(logger, "server")
	s := &Server{
		cfg:       cfg,
		connector: connector,
		opts: session.Options{
			BatchSize:     cfg.Transfer.BatchSize,
			RowsPerSecond: cfg.Transfer.MaxRowsPerSecond,
			Delimiter:     delim,
			Mapper:        dbarrow.Mapper{NullToken: cfg.Transfer.NullToken},
			Logger:        logger,
		},
		logger:   logger,
		sessions: newRegistry(cfg.Server.MaxSessions),
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /connect", s.handleConnect)
	s.mux.HandleFunc("POST /columns", s.handleColumns)
	s.mux.HandleFunc("POST /export", s.handleExport)
	s.mux.HandleFunc("POST /import", s.handleImport)
	s.mux.HandleFunc("POST /reset", s.handleReset)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.sessions.len()})
	})
	return s, nil
}

// Handler returns the routes wrapped with CORS and request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.cors(s.mux))
}

// ListenAndServe serves until ctx is done, then shuts down and resets all
// sessions.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		level.Info(s.logger).Log("msg", "listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server stopped")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "failed to shut down server")
		}
		level.Info(s.logger).Log("msg", "server stopped")
		return nil
	})
	return g.Wait()
}

// Close resets every open session.
func (s *Server) Close() {
	s.sessions.closeAll()
}

func (s *Server) cors(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(s.cfg.Server.CORSOrigins))
	for _, o := range s.cfg.Server.CORSOrigins {
		allowed[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowed[origin] || allowed["*"]) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		level.Debug(s.logger).Log("method", r.Method, "path", r.URL.Path, "status", rec.status, "took", time.Since(start))
	})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := level.Info(s.logger)
	if status >= http.StatusInternalServerError {
		logger = level.Error(s.logger)
	}
	logger.Log("msg", "request failed", "path", r.URL.Path, "status", status, "err", err)
	writeError(w, status, err)
}

type connectResponse struct {
	Status    string   `json:"status"`
	SessionID string   `json:"session_id"`
	Tables    []string `json:"tables"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.connectionConfig(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.sessions.reserve(); err != nil {
		s.fail(w, r, err)
		return
	}

	sess := session.New(s.connector, s.opts)
	tables, err := sess.Authenticate(r.Context(), cfg)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.sessions.add(sess); err != nil {
		sess.Reset()
		s.fail(w, r, err)
		return
	}

	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	writeJSON(w, http.StatusOK, connectResponse{Status: "success", SessionID: sess.ID().String(), Tables: names})
}

// connectionConfig reads connection fields from the form, falling back to
// the configured defaults for any left empty.
func (s *Server) connectionConfig(r *http.Request) (config.ConnectionConfig, error) {
	cfg := s.cfg.Connection
	cfg.Token = ""
	if v := r.FormValue("host"); v != "" {
		cfg.Host = v
	}
	if v := r.FormValue("port"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cfg, &badRequestError{field: "port", msg: "must be a number"}
		}
		cfg.Port = port
	}
	if v := r.FormValue("database"); v != "" {
		cfg.Database = v
	}
	if v := r.FormValue("user"); v != "" {
		cfg.User = v
	}
	cfg.Token = r.FormValue("token")
	if cfg.Token == "" {
		cfg.Token = r.FormValue("jwt_token")
	}
	return cfg, nil
}

// selectProjection selects table and names on sess.
func selectProjection(ctx context.Context, sess *session.Session, table string, names []string) error {
	if _, err := sess.SelectTable(ctx, table); err != nil {
		return err
	}
	_, err := sess.SelectProjection(names)
	return err
}

func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFor(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	table, err := requireField(r, "table")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	columns, err := sess.SelectTable(r.Context(), table)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]record.Column{"columns": columns})
}

type transferResponse struct {
	Status    string `json:"status"`
	ID        string `json:"id"`
	Records   int64  `json:"records"`
	Failed    int64  `json:"failed"`
	File      string `json:"file,omitempty"`
	Error     string `json:"error,omitempty"`
	Checksum  string `json:"checksum"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

func writeResult(w http.ResponseWriter, res *pipeline.Result, file string) {
	body := transferResponse{
		Status:    string(res.Status),
		ID:        res.ID.String(),
		Records:   res.Records,
		Failed:    res.Failed,
		File:      file,
		Checksum:  fmt.Sprintf("%016x", res.Checksum),
		ElapsedMS: res.Duration().Milliseconds(),
	}
	if res.Err != nil {
		body.Error = res.Err.Error()
	}
	status := http.StatusOK
	var te *errors.TransferError
	if errors.As(res.Err, &te) {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, body)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFor(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	table, err := requireField(r, "table")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	list, err := requireField(r, "columns")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := selectProjection(r.Context(), sess, table, splitColumns(list)); err != nil {
		s.fail(w, r, err)
		return
	}

	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader)
	name := fmt.Sprintf("%s_export_%s.csv", unsafeFileChars.ReplaceAllString(table, "_"), id)
	path := filepath.Join(s.cfg.Transfer.ExportDir, name)

	res, err := sess.ExportToFile(r.Context(), path)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	level.Info(s.logger).Log("msg", "export finished", "session", sess.ID(), "table", table, "file", path, "status", res.Status, "records", res.Records)
	writeResult(w, res, path)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		s.fail(w, r, &badRequestError{field: "file", msg: err.Error()})
		return
	}
	defer r.MultipartForm.RemoveAll()
	sess, err := s.sessionFor(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	table, err := requireField(r, "table")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, &badRequestError{field: "file", msg: err.Error()})
		return
	}
	defer file.Close()

	br := bufio.NewReader(file)
	names := splitColumns(r.FormValue("columns"))
	if len(names) == 0 {
		if names, err = filesystem.PeekHeader(br, s.opts.Delimiter); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	if err := selectProjection(r.Context(), sess, table, names); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := sess.Import(r.Context(), br)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	level.Info(s.logger).Log("msg", "import finished", "session", sess.ID(), "table", table, "status", res.Status, "records", res.Records, "failed", res.Failed)
	writeResult(w, res, "")
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id, err := requireField(r, "session_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.sessions.remove(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sess.Reset()
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) sessionFor(r *http.Request) (*session.Session, error) {
	id, err := requireField(r, "session_id")
	if err != nil {
		return nil, err
	}
	return s.sessions.get(id)
}
