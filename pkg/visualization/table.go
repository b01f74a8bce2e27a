// Package visualization renders run results as terminal tables.
package visualization

import (
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
)

// Table is a model for tabular data.
type Table struct {
	headers []string
	rows    [][]string
	footer  []string
}

// NewTable creates a new model of data representation.
func NewTable(headers []string, rows [][]string) *Table {
	return &Table{
		headers: headers,
		rows:    rows,
	}
}

// SetFooter attaches a summary row rendered below the data.
func (t *Table) SetFooter(footer []string) {
	t.footer = footer
}

// Fprint renders the table to the given writer.
func (t *Table) Fprint(w io.Writer) {
	output := tablewriter.NewWriter(w)
	output.SetHeader(t.headers)
	output.AppendBulk(t.rows)
	if len(t.footer) > 0 {
		output.SetFooter(t.footer)
	}
	output.Render()
}

// Draw renders the table to standard output.
func (t *Table) Draw() {
	t.Fprint(os.Stdout)
}
