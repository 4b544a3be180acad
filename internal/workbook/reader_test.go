package workbook

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildXLSX(t *testing.T, cells map[string]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for ref, v := range cells {
		require.NoError(t, f.SetCellValue("Sheet1", ref, v))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestDecode_XLSXPositionalRows(t *testing.T) {
	data := buildXLSX(t, map[string]any{
		"A1":  "title",
		"B2":  1001,
		"T2":  "SKU-A",
		"AE2": 100.5,
		"B4":  1002,
	})

	sheet, err := Decode("vendas.xlsx", data)
	require.NoError(t, err)
	assert.Equal(t, "Sheet1", sheet.Name)
	require.Len(t, sheet.Rows, 4)

	assert.Equal(t, 1, sheet.Rows[0].Number)
	assert.Equal(t, "title", sheet.Rows[0].Cell("A"))

	row := sheet.Rows[1]
	assert.Equal(t, 2, row.Number)
	assert.Equal(t, "1001", row.Cell("B"))
	assert.Equal(t, "SKU-A", row.Cell("T"))
	assert.Equal(t, "100.5", row.Cell("AE"))
	assert.False(t, row.Has("A"), "absent cells are not present in the map")

	assert.True(t, sheet.Rows[2].IsEmpty())
	assert.Equal(t, "1002", sheet.Rows[3].Cell("B"))
}

func TestDecode_XLSXDatesStayAsSerials(t *testing.T) {
	when := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	data := buildXLSX(t, map[string]any{"C1": when})

	sheet, err := Decode("vendas.xlsx", data)
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 1)

	serial, err := strconv.ParseFloat(sheet.Rows[0].Cell("C"), 64)
	require.NoError(t, err, "raw value should be a serial number, got %q", sheet.Rows[0].Cell("C"))

	got, err := excelize.ExcelDateToTime(serial, sheet.Date1904)
	require.NoError(t, err)
	assert.Equal(t, when.Format("2006-01-02"), got.Format("2006-01-02"))
}

// The legacy fixtures hold one sheet "Data": a title row, a row with a sale
// number, a date serial and a UTF-16 label, an empty row, and a row with a gap
// in column B and a fractional number. legacy1904.xls differs only in its
// DATEMODE record.
func readFixture(t *testing.T, name string) []byte {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func TestDecode_XLSPositionalRows(t *testing.T) {
	data := readFixture(t, "legacy.xls")
	assert.Equal(t, FormatXLS, DetectFormat("vendas.bin", data))

	sheet, err := Decode("vendas.xls", data)
	require.NoError(t, err)
	assert.Equal(t, "Data", sheet.Name)
	assert.False(t, sheet.Date1904)
	require.Len(t, sheet.Rows, 4)

	for i, row := range sheet.Rows {
		assert.Equal(t, i+1, row.Number)
	}

	assert.Equal(t, "sale", sheet.Rows[0].Cell("A"))
	assert.Equal(t, "client", sheet.Rows[0].Cell("C"))

	row := sheet.Rows[1]
	assert.Equal(t, "1001", row.Cell("A"))
	assert.Equal(t, "45366", row.Cell("B"))
	assert.Equal(t, "Grêmio Ltda", row.Cell("C"))

	assert.True(t, sheet.Rows[2].IsEmpty())

	row = sheet.Rows[3]
	assert.Equal(t, "1002", row.Cell("A"))
	assert.False(t, row.Has("B"), "gap cells are not present in the map")
	assert.Equal(t, "Acme", row.Cell("C"))
	assert.Equal(t, "12.5", row.Cell("D"))
}

func TestDecode_XLSDateMode(t *testing.T) {
	tests := []struct {
		file     string
		date1904 bool
		want     time.Time
	}{
		{"legacy.xls", false, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"legacy1904.xls", true, time.Date(2028, 3, 16, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			sheet, err := Decode(tt.file, readFixture(t, tt.file))
			require.NoError(t, err)
			assert.Equal(t, tt.date1904, sheet.Date1904)

			serial, err := strconv.ParseFloat(sheet.Rows[1].Cell("B"), 64)
			require.NoError(t, err)
			got, err := excelize.ExcelDateToTime(serial, sheet.Date1904)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Format("2006-01-02"), got.Format("2006-01-02"))
		})
	}
}

func TestDecode_Failures(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		data    []byte
		wantIs  error
		wantFmt Format
	}{
		{name: "empty input", file: "a.xlsx", data: nil, wantIs: ErrEmptyFile, wantFmt: FormatXLSX},
		{name: "plain text", file: "a.csv", data: []byte("a,b,c\n1,2,3\n"), wantIs: ErrUnsupportedFormat, wantFmt: FormatUnknown},
		{name: "truncated zip", file: "a.bin", data: []byte("PK\x03\x04garbage"), wantFmt: FormatXLSX},
		{name: "ole signature only", file: "a.bin", data: []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, wantFmt: FormatXLS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sheet, err := Decode(tt.file, tt.data)
			require.Error(t, err)
			assert.Nil(t, sheet)

			var decErr *DecodeError
			require.True(t, errors.As(err, &decErr))
			assert.Equal(t, tt.file, decErr.File)
			assert.Equal(t, tt.wantFmt, decErr.Format)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
		})
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		file string
		data []byte
		want Format
	}{
		{"zip signature wins over extension", "a.xls", []byte("PK\x03\x04rest"), FormatXLSX},
		{"ole signature", "a.xlsx", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, FormatXLS},
		{"xlsx extension fallback", "Vendas.XLSX", []byte("??"), FormatXLSX},
		{"xls extension fallback", "os.xls", []byte("??"), FormatXLS},
		{"unknown", "notes.txt", []byte("hello"), FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat(tt.file, tt.data))
		})
	}
}

func TestColumns(t *testing.T) {
	name, err := ColumnName(31)
	require.NoError(t, err)
	assert.Equal(t, "AE", name)

	n, err := ColumnNumber("AK")
	require.NoError(t, err)
	assert.Equal(t, 37, n)

	got, err := NormalizeColumn(" ac ")
	require.NoError(t, err)
	assert.Equal(t, "AC", got)

	for _, bad := range []string{"", "A1", "ZZZZ", "é"} {
		_, err := NormalizeColumn(bad)
		assert.Error(t, err, "column %q", bad)
	}
}
