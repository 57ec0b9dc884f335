package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Register is a tabular snapshot, one slice per row in header order.
type Register struct {
	Headers []string
	Rows    [][]string
}

// WriteCSV writes the register to w. Cells a spreadsheet would evaluate as a
// formula are prefixed with a single quote, since student names are free text.
func WriteCSV(w io.Writer, reg Register) error {
	if len(reg.Headers) == 0 {
		return fmt.Errorf("csv requires at least one header")
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(reg.Headers); err != nil {
		return fmt.Errorf("write csv headers: %w", err)
	}
	record := make([]string, len(reg.Headers))
	for n, row := range reg.Rows {
		if len(row) != len(reg.Headers) {
			return fmt.Errorf("csv row %d has %d cells, want %d", n, len(row), len(reg.Headers))
		}
		for i, cell := range row {
			record[i] = neutralize(cell)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func neutralize(cell string) string {
	if cell == "" {
		return cell
	}
	if strings.ContainsRune("=+-@\t\r", rune(cell[0])) {
		return "'" + cell
	}
	return cell
}
