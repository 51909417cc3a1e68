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

package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/arrowarc/chingest/internal/ui"
	"github.com/arrowarc/chingest/pkg/record"
)

type item struct {
	title, desc string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title }

type model struct {
	list     list.Model
	choice   string
	quitting bool
}

func newMenu(title string, items []list.Item) model {
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = ui.TitleStyle
	l.Styles.PaginationStyle = ui.PaginationStyle
	l.Styles.HelpStyle = ui.HelpStyle

	return model{list: l}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			i, ok := m.list.SelectedItem().(item)
			if ok {
				m.choice = i.title
				return m, tea.Quit
			}
		}
	case tea.WindowSizeMsg:
		h, v := ui.DocStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	return ui.DocStyle.Render(m.list.View() + "\n(press q to quit)")
}

func tableMenu(tables []record.Table) model {
	items := make([]list.Item, len(tables))
	for i, t := range tables {
		items[i] = item{title: t.Name, desc: "table"}
	}
	return newMenu("Select a table", items)
}

const (
	actionExportCSV     = "Export CSV"
	actionExportParquet = "Export Parquet"
	actionImportCSV     = "Import CSV"
	actionAnotherTable  = "Another table"
	actionReconnect     = "Reconnect"
	actionQuit          = "Quit"
)

func actionMenu(table string, columns []string) model {
	items := []list.Item{
		item{title: actionExportCSV, desc: "Write the selected columns to a CSV file"},
		item{title: actionExportParquet, desc: "Write the selected columns to a Parquet file"},
		item{title: actionImportCSV, desc: "Load a CSV file into the table"},
		item{title: actionAnotherTable, desc: "Pick a different table"},
		item{title: actionReconnect, desc: "Drop the connection and sign in again"},
		item{title: actionQuit, desc: "Exit the application"},
	}
	return newMenu(fmt.Sprintf("%s (%s)", table, strings.Join(columns, ", ")), items)
}

type columnItem struct {
	column record.Column
	order  int
}

func (i columnItem) Title() string {
	if i.order > 0 {
		return fmt.Sprintf("[%d] %s", i.order, i.column.Name)
	}
	return "[ ] " + i.column.Name
}
func (i columnItem) Description() string { return i.column.Type }
func (i columnItem) FilterValue() string { return i.column.Name }

// columnModel selects columns with space. Columns keep the order in which
// they were selected.
type columnModel struct {
	list     list.Model
	columns  []record.Column
	selected []string
	done     bool
	quitting bool
}

func newColumnModel(table string, columns []record.Column) columnModel {
	items := make([]list.Item, len(columns))
	for i, c := range columns {
		items[i] = columnItem{column: c}
	}
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Columns of " + table + " (space to toggle, enter to confirm)"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = ui.TitleStyle
	l.Styles.PaginationStyle = ui.PaginationStyle
	l.Styles.HelpStyle = ui.HelpStyle

	return columnModel{list: l, columns: columns}
}

func (m columnModel) Init() tea.Cmd {
	return nil
}

func (m *columnModel) toggle(index int) {
	if index < 0 || index >= len(m.columns) {
		return
	}
	name := m.columns[index].Name
	kept := m.selected[:0:0]
	for _, n := range m.selected {
		if n != name {
			kept = append(kept, n)
		}
	}
	if len(kept) == len(m.selected) {
		kept = append(kept, name)
	}
	m.selected = kept

	for i, c := range m.columns {
		order := 0
		for j, n := range m.selected {
			if n == c.Name {
				order = j + 1
			}
		}
		m.list.SetItem(i, columnItem{column: c, order: order})
	}
}

func (m columnModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		case " ":
			m.toggle(m.list.Index())
			return m, nil
		case "enter":
			if len(m.selected) > 0 {
				m.done = true
				return m, tea.Quit
			}
			return m, nil
		}
	case tea.WindowSizeMsg:
		h, v := ui.DocStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m columnModel) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	footer := "\nselected: " + strings.Join(m.selected, ", ")
	return ui.DocStyle.Render(m.list.View() + footer)
}
