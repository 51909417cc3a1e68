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

// Package cli runs the interactive ingestion shell: pick a table, pick its
// columns, then export or import files through the session.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/arrowarc/chingest/internal/errors"
	"github.com/arrowarc/chingest/internal/ui"
	"github.com/arrowarc/chingest/pkg/common/config"
	"github.com/arrowarc/chingest/pkg/pipeline"
	"github.com/arrowarc/chingest/pkg/session"
)

// Shell drives a session from list menus. File paths are read from In.
type Shell struct {
	Session    *session.Session
	Connection config.ConnectionConfig
	In         io.Reader
	Out        io.Writer

	reader  *bufio.Reader
	program func(tea.Model) (tea.Model, error)
}

func NewShell(s *session.Session, conn config.ConnectionConfig) *Shell {
	return &Shell{Session: s, Connection: conn, In: os.Stdin, Out: os.Stdout}
}

func (sh *Shell) run(m tea.Model) (tea.Model, error) {
	if sh.program != nil {
		return sh.program(m)
	}
	return tea.NewProgram(m).Run()
}

// Run loops through the menus until the user quits.
func (sh *Shell) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if sh.Session.State() == session.Unauthenticated {
			if _, err := sh.Session.Authenticate(ctx, sh.Connection); err != nil {
				return err
			}
		}
		tables, err := sh.Session.Tables(ctx)
		if err != nil {
			return err
		}
		if len(tables) == 0 {
			fmt.Fprintln(sh.Out, ui.WarningStyle.Render("no tables in database "+sh.Connection.Database))
			return nil
		}

		out, err := sh.run(tableMenu(tables))
		if err != nil {
			return errors.Wrap(err, "error running menu")
		}
		table := out.(model)
		if table.quitting || table.choice == "" {
			return nil
		}

		quit, err := sh.selectColumns(ctx, table.choice)
		if err != nil {
			fmt.Fprintln(sh.Out, ui.ErrorStyle.Render(err.Error()))
			continue
		}
		if quit {
			return nil
		}

		quit, err = sh.actions(ctx)
		if err != nil || quit {
			return err
		}
	}
}

func (sh *Shell) selectColumns(ctx context.Context, table string) (bool, error) {
	columns, err := sh.Session.SelectTable(ctx, table)
	if err != nil {
		return false, err
	}
	out, err := sh.run(newColumnModel(table, columns))
	if err != nil {
		return false, errors.Wrap(err, "error running menu")
	}
	picked := out.(columnModel)
	if picked.quitting || !picked.done {
		return true, nil
	}
	_, err = sh.Session.SelectProjection(picked.selected)
	return false, err
}

// actions runs the action menu until the user leaves the table. It reports
// whether the user asked to quit.
func (sh *Shell) actions(ctx context.Context) (bool, error) {
	for {
		out, err := sh.run(actionMenu(sh.Session.Table(), sh.Session.Projection().Names()))
		if err != nil {
			return false, errors.Wrap(err, "error running menu")
		}
		m := out.(model)
		if m.quitting {
			return true, nil
		}

		switch m.choice {
		case actionQuit:
			fmt.Fprintln(sh.Out, "Goodbye!")
			return true, nil
		case actionAnotherTable:
			return false, nil
		case actionReconnect:
			sh.Session.Reset()
			return false, nil
		case actionExportCSV, actionExportParquet, actionImportCSV:
			path := sh.prompt("Enter the file path: ")
			res, err := sh.execute(ctx, m.choice, path)
			if err != nil {
				fmt.Fprintln(sh.Out, ui.ErrorStyle.Render("Error: "+err.Error()))
			} else {
				PrintResult(sh.Out, res)
			}
			sh.prompt("Press Enter to return to the menu...")
		}
	}
}

func (sh *Shell) execute(ctx context.Context, action, path string) (*pipeline.Result, error) {
	if path == "" {
		return nil, errors.New("file path is required")
	}
	switch action {
	case actionExportCSV:
		return sh.Session.ExportToFile(ctx, path)
	case actionExportParquet:
		return sh.Session.ExportParquet(ctx, path)
	case actionImportCSV:
		return sh.Session.ImportFromFile(ctx, path)
	default:
		return nil, errors.Newf("unknown action: %s", action)
	}
}

func (sh *Shell) prompt(label string) string {
	if sh.reader == nil {
		sh.reader = bufio.NewReader(sh.In)
	}
	fmt.Fprint(sh.Out, label)
	line, _ := sh.reader.ReadString('\n')
	return strings.TrimSpace(line)
}

// PrintResult writes a short styled summary of a transfer.
func PrintResult(w io.Writer, res *pipeline.Result) {
	style := ui.SuccessStyle
	switch res.Status {
	case pipeline.StatusPartial:
		style = ui.WarningStyle
	case pipeline.StatusFailed:
		style = ui.ErrorStyle
	}
	lines := []string{
		style.Render(string(res.Status)),
		fmt.Sprintf("records: %d", res.Records),
		fmt.Sprintf("failed:  %d", res.Failed),
		fmt.Sprintf("took:    %s (%.0f rows/s)", res.Duration().Round(time.Millisecond), res.Throughput()),
	}
	if res.Err != nil {
		lines = append(lines, "error:   "+res.Err.Error())
	}
	prefix := ""
	if res.Status == pipeline.StatusSuccess {
		prefix = ui.CheckMark
	}
	fmt.Fprintln(w, prefix+ui.InfoStyle.Render(strings.Join(lines, "\n")))
}
