// Package output prints one-shot command results as indented JSON or
// aligned text tables.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

type Table struct {
	Columns []string
	Rows    [][]string
}

func PrintJSON(w io.Writer, value any) error {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}

	_, err = w.Write(append(encoded, '\n'))
	return err
}

func PrintTable(w io.Writer, table Table) {
	if len(table.Columns) == 0 {
		return
	}

	widths := make([]int, len(table.Columns))
	for i, col := range table.Columns {
		widths[i] = len(col)
	}

	for _, row := range table.Rows {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	writeRow := func(values []string) {
		for i, value := range values {
			if i > 0 {
				fmt.Fprint(w, "  ")
			}
			fmt.Fprint(w, padRight(value, widths[i]))
		}
		fmt.Fprint(w, "\n")
	}

	writeRow(table.Columns)
	separators := make([]string, len(table.Columns))
	for i, width := range widths {
		separators[i] = strings.Repeat("-", width)
	}
	writeRow(separators)

	for _, row := range table.Rows {
		normalized := make([]string, len(table.Columns))
		copy(normalized, row)
		writeRow(normalized)
	}
}

func padRight(value string, width int) string {
	if len(value) >= width {
		return value
	}
	return value + strings.Repeat(" ", width-len(value))
}
