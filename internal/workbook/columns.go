package workbook

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ColumnName converts a 1-based column number to its letter form (1 -> "A", 27 -> "AA").
func ColumnName(n int) (string, error) {
	return excelize.ColumnNumberToName(n)
}

// ColumnNumber converts a column letter to its 1-based number ("AE" -> 31).
func ColumnNumber(name string) (int, error) {
	return excelize.ColumnNameToNumber(name)
}

// NormalizeColumn upper-cases and validates a column letter.
func NormalizeColumn(name string) (string, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return "", fmt.Errorf("empty column letter")
	}
	for _, r := range name {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("invalid column letter %q", name)
		}
	}
	if _, err := ColumnNumber(name); err != nil {
		return "", fmt.Errorf("invalid column letter %q: %w", name, err)
	}
	return name, nil
}
