package core

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/opsimport/internal/workbook"
)

// cells is one row of test input keyed by column letter.
type cells map[string]string

// sheetOf builds a decoded sheet; rows[i] becomes row number i+1.
func sheetOf(rows ...cells) *workbook.Sheet {
	s := &workbook.Sheet{Name: "Sheet1"}
	for i, c := range rows {
		r := workbook.Row{Number: i + 1, Cells: map[string]string{}}
		for col, v := range c {
			r.Cells[col] = v
		}
		s.Rows = append(s.Rows, r)
	}
	return s
}

// xlsxOf writes rows into an in-memory xlsx; rows[i] becomes row number i+1.
func xlsxOf(t *testing.T, rows ...cells) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, c := range rows {
		for col, v := range c {
			ref, err := excelize.JoinCellName(col, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", ref, v))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

const title = "title row"

// scenario is the smallest consistent batch: sale 1001 sells two SKU-A
// through service order 500, and the product master links both.
type scenario struct {
	sales    []cells
	products []cells
	orders   []cells
}

func baseScenario() scenario {
	return scenario{
		sales: []cells{
			{"A": title},
			{"B": "1001", "C": "45366", "D": "500", "E": "Ana", "H": "Acme Ltda", "Q": "PIX",
				"T": "SKU-A", "U": "Filtro", "W": "2", "AE": "100.00"},
		},
		products: []cells{
			{"A": title},
			{"A": "SKU-A", "C": "Filtros", "E": "Bosch", "I": "Distribuidora X",
				"L": "2", "N": "40.00", "R": "1001", "S": "500"},
		},
		orders: []cells{
			{"A": "500", "C": "45366", "D": "Aberta", "F": "Montagem", "I": "Ana"},
			{"AC": "SKU-A", "AD": "2", "AK": "100.00"},
		},
	}
}

func (s scenario) request(t *testing.T) BatchRequest {
	t.Helper()
	return BatchRequest{
		CompanyID:     "acme",
		CompanyName:   "ACME LTDA",
		Period:        "2024-03",
		Sales:         Upload{FileName: "vendas.xlsx", Data: xlsxOf(t, s.sales...)},
		Products:      Upload{FileName: "produtos.xlsx", Data: xlsxOf(t, s.products...)},
		ServiceOrders: Upload{FileName: "os.xlsx", Data: xlsxOf(t, s.orders...)},
	}
}

func kinds(errs []ErrorRecord) []ErrorKind {
	out := make([]ErrorKind, len(errs))
	for i, e := range errs {
		out[i] = e.Kind
	}
	return out
}
