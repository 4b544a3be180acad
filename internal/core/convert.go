package core

// convert.go turns raw workbook cells into typed values.
//
// The workbooks are exported by Brazilian point-of-sale software, so text
// numbers may use a decimal comma ("1.234,56") and text dates are day-first.
// Date cells written natively by the spreadsheet arrive as serial numbers.

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// numericRegex validates a cleaned number before it reaches decimal.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

var (
	errNotNumber  = errors.New("invalid number")
	errNotInteger = errors.New("not an integer")
	errNotDate    = errors.New("invalid date")
)

// maxDateSerial is 9999-12-31 in the 1900 date system.
const maxDateSerial = 2958465

var dayFirstLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02-01-2006",
	"02.01.2006",
	"02/01/06",
	"20060102",
}

// CleanCell trims whitespace and the ="..." wrapper some exporters put
// around values to stop spreadsheets from reformatting them.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// ParseDecimal parses a money or quantity cell.
// Handles currency symbols, thousands separators, a decimal comma and
// accounting negatives "(12,50)".
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = CleanCell(s)
	if s == "" {
		return decimal.Decimal{}, errNotNumber
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.NewReplacer(
		"R$", "",
		"$", "",
		"€", "",
		"£", "",
		" ", "",
		"\u00a0", "",
	).Replace(s)
	s = normalizeSeparators(s)

	if negative {
		s = "-" + strings.TrimPrefix(s, "-")
	}
	if !numericRegex.MatchString(s) {
		return decimal.Decimal{}, errNotNumber
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, errNotNumber
	}
	return d, nil
}

// normalizeSeparators rewrites s so that '.' is the only decimal separator.
// When both ',' and '.' appear, the later one is the decimal separator. A lone
// comma is a decimal comma; a repeated separator is a thousands separator.
func normalizeSeparators(s string) string {
	if strings.ContainsAny(s, "eE") {
		return s
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

// ParseNullDecimal is ParseDecimal with blank and invalid cells mapped to null.
func ParseNullDecimal(s string) decimal.NullDecimal {
	d, err := ParseDecimal(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// ParseInteger parses an identifier cell. Spreadsheets store numbers as
// floats, so "1001.0" and "1001" are both accepted; "1001.5" is not, nor is
// anything outside the int64 range.
func ParseInteger(s string) (int64, error) {
	s = CleanCell(s)
	if s == "" {
		return 0, errNotInteger
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}

	d, err := ParseDecimal(s)
	if err != nil {
		return 0, errNotInteger
	}
	if !d.Equal(d.Truncate(0)) || !d.BigInt().IsInt64() {
		return 0, errNotInteger
	}
	return d.IntPart(), nil
}

// ParseDate reads a date cell: a spreadsheet serial number or a day-first text
// date. date1904 selects the workbook's serial epoch.
func ParseDate(s string, date1904 bool) (time.Time, error) {
	s = CleanCell(s)
	if s == "" {
		return time.Time{}, errNotDate
	}

	// Compact text dates like 20240315 also parse as floats, above the
	// serial range.
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 && serial <= maxDateSerial {
		t, err := excelize.ExcelDateToTime(serial, date1904)
		if err != nil {
			return time.Time{}, errNotDate
		}
		return t, nil
	}

	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errNotDate
}

// parseOptionalDate returns nil for blank or unparseable cells.
func parseOptionalDate(s string, date1904 bool) *time.Time {
	t, err := ParseDate(s, date1904)
	if err != nil {
		return nil
	}
	return &t
}

// ParseIntList splits a comma-separated identifier list. Fragments that are
// not positive integers are dropped; repeats are collapsed keeping the first.
func ParseIntList(s string) []int64 {
	s = CleanCell(s)
	if s == "" {
		return nil
	}

	var (
		out  []int64
		seen = make(map[int64]struct{})
	)
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || n <= 0 {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// NormalizeName folds a person or company name for comparison:
// trimmed, inner whitespace collapsed, NFC composed and case folded.
func NormalizeName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return cases.Fold().String(norm.NFC.String(s))
}
