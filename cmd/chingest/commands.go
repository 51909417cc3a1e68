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

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/go-kit/log"
	"github.com/golang-jwt/jwt/v5"

	"github.com/arrowarc/chingest/generator"
	"github.com/arrowarc/chingest/integrations/clickhouse"
	"github.com/arrowarc/chingest/integrations/filesystem"
	"github.com/arrowarc/chingest/internal/auth"
	"github.com/arrowarc/chingest/internal/cli"
	"github.com/arrowarc/chingest/internal/dbarrow"
	"github.com/arrowarc/chingest/internal/errors"
	"github.com/arrowarc/chingest/pkg/common/config"
	"github.com/arrowarc/chingest/pkg/pipeline"
	"github.com/arrowarc/chingest/pkg/record"
	"github.com/arrowarc/chingest/pkg/server"
	"github.com/arrowarc/chingest/pkg/session"
)

func connector(cfg *config.Config, logger log.Logger) *clickhouse.Connector {
	return &clickhouse.Connector{
		Secret: cfg.Auth.JWTSecret,
		Mapper: dbarrow.Mapper{NullToken: cfg.Transfer.NullToken},
		Logger: logger,
	}
}

func newSession(cfg *config.Config, logger log.Logger) *session.Session {
	delim, _ := cfg.Transfer.DelimiterRune()
	return session.New(connector(cfg, logger), session.Options{
		BatchSize:     cfg.Transfer.BatchSize,
		RowsPerSecond: cfg.Transfer.MaxRowsPerSecond,
		Delimiter:     delim,
		Mapper:        dbarrow.Mapper{NullToken: cfg.Transfer.NullToken},
		Logger:        logger,
	})
}

func runTables(ctx context.Context, cfg *config.Config, logger log.Logger) (int, error) {
	conn, err := connector(cfg, logger).Connect(ctx, cfg.Connection)
	if err != nil {
		return 1, err
	}
	defer conn.Close()

	tables, err := conn.ListTables(ctx)
	if err != nil {
		return 1, err
	}
	for _, t := range tables {
		fmt.Println(t.Name)
	}
	return 0, nil
}

func runColumns(ctx context.Context, cfg *config.Config, logger log.Logger, arguments docopt.Opts) (int, error) {
	table, _ := arguments.String("<table>")
	showArrow, _ := arguments.Bool("--arrow")

	conn, err := connector(cfg, logger).Connect(ctx, cfg.Connection)
	if err != nil {
		return 1, err
	}
	defer conn.Close()

	columns, err := conn.ListColumns(ctx, table)
	if err != nil {
		return 1, err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, c := range columns {
		fmt.Fprintf(w, "%s\t%s\n", c.Name, c.Type)
	}
	w.Flush()

	if showArrow {
		fmt.Println()
		fmt.Println(dbarrow.ArrowSchema(record.Projection(columns)))
	}
	return 0, nil
}

// prepare authenticates and selects the table and columns on a new session.
func prepare(ctx context.Context, cfg *config.Config, logger log.Logger, table string, names []string) (*session.Session, error) {
	s := newSession(cfg, logger)
	if _, err := s.Authenticate(ctx, cfg.Connection); err != nil {
		return nil, err
	}
	if _, err := s.SelectTable(ctx, table); err != nil {
		s.Reset()
		return nil, err
	}
	if _, err := s.SelectProjection(names); err != nil {
		s.Reset()
		return nil, err
	}
	return s, nil
}

func splitList(list string) []string {
	var names []string
	for _, n := range strings.Split(list, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

func report(res *pipeline.Result) int {
	cli.PrintResult(os.Stdout, res)
	fmt.Fprintln(os.Stderr, res.Report())
	if res.Status == pipeline.StatusFailed {
		return 1
	}
	return 0
}

func runExport(ctx context.Context, cfg *config.Config, logger log.Logger, arguments docopt.Opts) (int, error) {
	table, _ := arguments.String("<table>")
	list, _ := arguments.String("--columns")
	out, _ := arguments.String("--out")
	format, _ := arguments.String("--format")

	if format != "csv" && format != "parquet" {
		return 2, errors.Newf("unknown format %q", format)
	}
	s, err := prepare(ctx, cfg, logger, table, splitList(list))
	if err != nil {
		return 1, err
	}
	defer s.Reset()

	var res *pipeline.Result
	if format == "parquet" {
		res, err = s.ExportParquet(ctx, out)
	} else {
		res, err = s.ExportToFile(ctx, out)
	}
	if err != nil {
		return 1, err
	}
	return report(res), nil
}

func runImport(ctx context.Context, cfg *config.Config, logger log.Logger, arguments docopt.Opts) (int, error) {
	table, _ := arguments.String("<table>")
	in, _ := arguments.String("--in")
	list, _ := arguments.String("--columns")

	f, err := os.Open(in)
	if err != nil {
		return 1, errors.Wrap(err, "failed to open input file")
	}
	defer f.Close()
	br := bufio.NewReader(f)

	names := splitList(list)
	if len(names) == 0 {
		delim, _ := cfg.Transfer.DelimiterRune()
		if names, err = filesystem.PeekHeader(br, delim); err != nil {
			return 1, err
		}
	}
	s, err := prepare(ctx, cfg, logger, table, names)
	if err != nil {
		return 1, err
	}
	defer s.Reset()

	res, err := s.Import(ctx, br)
	if err != nil {
		return 1, err
	}
	return report(res), nil
}

func runServe(ctx context.Context, cfg *config.Config, logger log.Logger) (int, error) {
	srv, err := server.New(cfg, connector(cfg, logger), logger)
	if err != nil {
		return 1, err
	}
	if err := srv.ListenAndServe(ctx); err != nil {
		return 1, err
	}
	return 0, nil
}

func runInteractive(ctx context.Context, cfg *config.Config, logger log.Logger) (int, error) {
	s := newSession(cfg, logger)
	defer s.Reset()
	if err := cli.NewShell(s, cfg.Connection).Run(ctx); err != nil {
		return 1, err
	}
	return 0, nil
}

func runGenerate(ctx context.Context, cfg *config.Config, arguments docopt.Opts) (int, error) {
	list, _ := arguments.String("--columns")
	out, _ := arguments.String("--out")
	rows, err := arguments.Int("--rows")
	if err != nil || rows < 0 {
		return 2, errors.Newf("--rows must be a non-negative number")
	}
	projection, err := generator.ParseColumns(list)
	if err != nil {
		return 2, err
	}
	delim, _ := cfg.Transfer.DelimiterRune()
	n, err := generator.WriteCSV(ctx, out, projection, rows, filesystem.CSVOptions{
		Delimiter: delim,
		Mapper:    dbarrow.Mapper{NullToken: cfg.Transfer.NullToken},
	})
	if err != nil {
		return 1, err
	}
	fmt.Printf("Generated %d records in %s\n", n, out)
	return 0, nil
}

func runToken(cfg *config.Config, arguments docopt.Opts) (int, error) {
	if cfg.Auth.JWTSecret == "" {
		return 2, errors.WithHint(errors.New("no JWT secret configured"),
			"set auth.jwt_secret or "+config.EnvJWTSecret)
	}
	password, _ := arguments.String("--password")
	ttlText, _ := arguments.String("--ttl")
	ttl, err := time.ParseDuration(ttlText)
	if err != nil {
		return 2, errors.Wrap(err, "invalid --ttl")
	}
	token, err := auth.IssueToken(password, cfg.Auth.JWTSecret, jwt.MapClaims{
		"exp": time.Now().Add(ttl).Unix(),
		"iat": time.Now().Unix(),
	})
	if err != nil {
		return 1, err
	}
	fmt.Println(token)
	return 0, nil
}
