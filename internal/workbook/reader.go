// Package workbook decodes spreadsheet workbooks into positional rows.
//
// A decoded row maps column letters ("A", "B", ..., "AE") to the raw cell
// text. No row is treated as a header: which leading rows carry titles is a
// decision of the caller's column layout, not of the reader.
//
// Two binary formats are supported:
//
//   - OOXML (.xlsx), read with excelize using raw cell values so dates arrive
//     as serial numbers instead of locale-formatted strings.
//   - BIFF8 (.xls), read with xlsReader.
//
// The format is detected from the file signature; the extension is only used
// when the signature is not recognised.
package workbook

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/shakinm/xlsReader/cfb"
	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned when the bytes are neither xlsx nor xls.
var ErrUnsupportedFormat = errors.New("unsupported workbook format")

// ErrNoSheets is returned when a workbook decodes but contains no worksheet.
var ErrNoSheets = errors.New("workbook has no sheets")

// ErrEmptyFile is returned for zero-length input.
var ErrEmptyFile = errors.New("empty file")

// Format identifies a workbook container format.
type Format int

const (
	FormatUnknown Format = iota
	FormatXLSX
	FormatXLS
)

func (f Format) String() string {
	switch f {
	case FormatXLSX:
		return "xlsx"
	case FormatXLS:
		return "xls"
	default:
		return "unknown"
	}
}

var (
	zipMagic = []byte{'P', 'K', 0x03, 0x04}
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// DecodeError reports a workbook that could not be decoded at all.
type DecodeError struct {
	File   string
	Format Format
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s (%s): %v", e.File, e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Row is one worksheet row addressed by column letter.
type Row struct {
	// Number is the 1-based row number as shown by spreadsheet applications.
	Number int
	// Cells holds only non-empty cells; a missing key means an absent value.
	Cells map[string]string
}

// Cell returns the trimmed raw value at col, or "" when absent.
func (r Row) Cell(col string) string {
	return strings.TrimSpace(r.Cells[col])
}

// Has reports whether col holds a non-blank value.
func (r Row) Has(col string) bool {
	return r.Cell(col) != ""
}

// IsEmpty reports whether every cell in the row is blank.
func (r Row) IsEmpty() bool {
	for _, v := range r.Cells {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Sheet is the decoded first worksheet of a workbook.
type Sheet struct {
	Name string
	// Date1904 is true when serial dates count from 1904-01-01.
	Date1904 bool
	Rows     []Row
}

// DetectFormat guesses the container format from the signature, then the extension.
func DetectFormat(fileName string, data []byte) Format {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return FormatXLSX
	case bytes.HasPrefix(data, oleMagic):
		return FormatXLS
	}

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".xls":
		return FormatXLS
	}
	return FormatUnknown
}

// Decode reads the first worksheet of the workbook in data.
// Any failure is returned as a *DecodeError.
func Decode(fileName string, data []byte) (*Sheet, error) {
	format := DetectFormat(fileName, data)
	if len(data) == 0 {
		return nil, &DecodeError{File: fileName, Format: format, Err: ErrEmptyFile}
	}

	var (
		sheet *Sheet
		err   error
	)
	switch format {
	case FormatXLSX:
		sheet, err = decodeXLSX(data)
	case FormatXLS:
		sheet, err = decodeXLS(data)
	default:
		err = ErrUnsupportedFormat
	}
	if err != nil {
		return nil, &DecodeError{File: fileName, Format: format, Err: err}
	}
	return sheet, nil
}

func decodeXLSX(data []byte) (*Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	sheet := &Sheet{Name: sheets[0], Rows: make([]Row, 0, len(rows))}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		sheet.Date1904 = *props.Date1904
	}

	for i, values := range rows {
		row, err := newRow(i+1, values)
		if err != nil {
			return nil, err
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}

// BIFF record ids read directly from the workbook globals.
const (
	recordDateMode = 0x0022
	recordEOF      = 0x000A
)

func decodeXLS(data []byte) (sheet *Sheet, err error) {
	// xlsReader indexes into the record stream without bounds checks.
	defer func() {
		if r := recover(); r != nil {
			sheet, err = nil, fmt.Errorf("malformed xls: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}
	if wb.GetNumberSheets() == 0 {
		return nil, ErrNoSheets
	}

	ws, err := wb.GetSheet(0)
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}
	if ws == nil {
		return nil, ErrNoSheets
	}

	date1904, err := xlsDate1904(data)
	if err != nil {
		return nil, err
	}

	sheet = &Sheet{Name: ws.GetName(), Date1904: date1904}
	// GetRow yields an empty row for indexes with no cells.
	for i := 0; i < ws.GetNumberRows(); i++ {
		r, err := ws.GetRow(i)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}

		var values []string
		for _, col := range r.GetCols() {
			if col == nil {
				values = append(values, "")
				continue
			}
			values = append(values, col.GetString())
		}

		row, err := newRow(i+1, values)
		if err != nil {
			return nil, err
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}

// xlsDate1904 reports the DATEMODE record of the workbook globals, which
// xlsReader parses past without exposing.
func xlsDate1904(data []byte) (bool, error) {
	doc, err := cfb.OpenReader(bytes.NewReader(data))
	if err != nil {
		return false, fmt.Errorf("open xls container: %w", err)
	}

	var book, root *cfb.Directory
	for _, dir := range doc.GetDirs() {
		switch dir.Name() {
		case "Workbook", "Book":
			if book == nil {
				book = dir
			}
		case "Root Entry":
			root = dir
		}
	}
	if book == nil || root == nil {
		return false, nil
	}

	r, err := doc.OpenObject(book, root)
	if err != nil {
		return false, fmt.Errorf("open workbook stream: %w", err)
	}
	stream := make([]byte, book.GetStreamSize())
	if _, err := io.ReadFull(r, stream); err != nil {
		return false, fmt.Errorf("read workbook stream: %w", err)
	}

	for p := 0; p+4 <= len(stream); {
		id := binary.LittleEndian.Uint16(stream[p:])
		n := int(binary.LittleEndian.Uint16(stream[p+2:]))
		body := stream[p+4:]
		if n > len(body) {
			break
		}
		switch id {
		case recordDateMode:
			return n >= 2 && binary.LittleEndian.Uint16(body) == 1, nil
		case recordEOF:
			return false, nil
		}
		p += 4 + n
	}
	return false, nil
}

func newRow(number int, values []string) (Row, error) {
	row := Row{Number: number, Cells: make(map[string]string, len(values))}
	for j, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		name, err := ColumnName(j + 1)
		if err != nil {
			return Row{}, fmt.Errorf("row %d: %w", number, err)
		}
		row.Cells[name] = v
	}
	return row, nil
}
