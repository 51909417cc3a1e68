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
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/docopt/docopt-go"
	"github.com/go-kit/log/level"
	"github.com/joho/godotenv"

	"github.com/arrowarc/chingest/internal/errors"
	"github.com/arrowarc/chingest/internal/logging"
	"github.com/arrowarc/chingest/pkg/common/config"
)

const version = "chingest 0.1.0"

const usage = `ClickHouse ingestion: move table columns to and from delimited files.

Usage:
  chingest tables [options]
  chingest columns <table> [--arrow] [options]
  chingest export <table> --columns=<list> --out=<file> [--format=<fmt>] [options]
  chingest import <table> --in=<file> [--columns=<list>] [options]
  chingest serve [--listen=<addr>] [options]
  chingest interactive [options]
  chingest generate --columns=<list> --rows=<n> --out=<file> [options]
  chingest token --password=<password> [--ttl=<duration>] [options]
  chingest validate-config [options]
  chingest -h | --help
  chingest --version

Options:
  -h --help                 Show this screen.
  --version                 Show version.
  --config=<file>           Path to the YAML configuration file.
  --env-file=<file>         Environment file read before the configuration [default: .env].
  --host=<host>             ClickHouse host.
  --port=<port>             ClickHouse native protocol port.
  --database=<database>     Database name.
  --user=<user>             User name.
  --token=<token>           Password, or a signed token carrying it when a JWT secret is set.
  --batch-size=<n>          Records per committed batch.
  --log-level=<level>       One of debug, info, warn, error.
  --columns=<list>          Comma separated columns; for generate, name:Type pairs.
  --out=<file>              Output file.
  --in=<file>               Input file.
  --format=<fmt>            Export format, csv or parquet [default: csv].
  --arrow                   Also print the Arrow schema of the table.
  --listen=<addr>           HTTP listen address.
  --rows=<n>                Number of rows to generate.
  --password=<password>     Password to sign into a token.
  --ttl=<duration>          Token lifetime [default: 1h].
`

func main() {
	arguments, err := docopt.ParseArgs(usage, nil, version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing arguments: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code, err := run(ctx, arguments)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		if code == 0 {
			code = 1
		}
	}
	stop()
	os.Exit(code)
}

func run(ctx context.Context, arguments docopt.Opts) (int, error) {
	cfg, err := loadConfig(arguments)
	if err != nil {
		return 1, err
	}
	logger := logging.New(os.Stderr, cfg.Logging.Format, cfg.Logging.Level)

	cmd := command(arguments)
	level.Debug(logger).Log("msg", "starting", "command", cmd, "addr", cfg.Connection.Addr(), "database", cfg.Connection.Database)

	switch cmd {
	case "validate-config":
		fmt.Println("Configuration is valid.")
		return 0, nil
	case "token":
		return runToken(cfg, arguments)
	case "generate":
		return runGenerate(ctx, cfg, arguments)
	case "tables":
		return runTables(ctx, cfg, logger)
	case "columns":
		return runColumns(ctx, cfg, logger, arguments)
	case "export":
		return runExport(ctx, cfg, logger, arguments)
	case "import":
		return runImport(ctx, cfg, logger, arguments)
	case "serve":
		return runServe(ctx, cfg, logger)
	case "interactive":
		return runInteractive(ctx, cfg, logger)
	}
	return 2, errors.Newf("unknown command")
}

func command(arguments docopt.Opts) string {
	for _, c := range []string{"tables", "columns", "export", "import", "serve", "interactive", "generate", "token", "validate-config"} {
		if ok, _ := arguments.Bool(c); ok {
			return c
		}
	}
	return ""
}

// loadConfig layers the environment file, the YAML file, the process
// environment and the command line flags, in that order, and validates the
// result.
func loadConfig(arguments docopt.Opts) (*config.Config, error) {
	if envFile, _ := arguments.String("--env-file"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to load %s", envFile)
		}
	}

	cfg := config.Default()
	if configPath, _ := arguments.String("--config"); configPath != "" {
		parsed, err := config.ParseConfig(configPath)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse config")
		}
		cfg = parsed
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if v, _ := arguments.String("--host"); v != "" {
		cfg.Connection.Host = v
	}
	if v, _ := arguments.String("--port"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.Newf("--port %q is not a number", v)
		}
		cfg.Connection.Port = port
	}
	if v, _ := arguments.String("--database"); v != "" {
		cfg.Connection.Database = v
	}
	if v, _ := arguments.String("--user"); v != "" {
		cfg.Connection.User = v
	}
	if v, _ := arguments.String("--token"); v != "" {
		cfg.Connection.Token = v
	}
	if v, _ := arguments.String("--batch-size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.Newf("--batch-size %q is not a number", v)
		}
		cfg.Transfer.BatchSize = n
	}
	if v, _ := arguments.String("--log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v, _ := arguments.String("--listen"); v != "" {
		cfg.Server.Listen = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.WithHint(errors.Wrap(err, "configuration validation failed"),
			"see --help for flags and the CHINGEST_* environment variables")
	}
	return cfg, nil
}
