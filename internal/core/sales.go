package core

import (
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/opsimport/internal/workbook"
)

// ParseSales converts sales rows into line items.
//
// Rows before the layout's first data row and blank rows are skipped. A row
// with a missing or invalid sale number or item reference is dropped with
// exactly one ErrorRecord; every other row is kept.
func ParseSales(file string, sheet *workbook.Sheet, layout SalesLayout) ([]SalesLineItem, []ErrorRecord) {
	errs := &rowErrors{file: file}
	var items []SalesLineItem

	for _, row := range sheet.Rows {
		if row.Number < layout.FirstDataRow || row.IsEmpty() {
			continue
		}
		if item, ok := parseSalesRow(row, layout, sheet.Date1904, errs); ok {
			items = append(items, item)
		}
	}
	return items, errs.list
}

func parseSalesRow(row workbook.Row, l SalesLayout, date1904 bool, errs *rowErrors) (SalesLineItem, bool) {
	raw := row.Cell(l.SaleNumber)
	if raw == "" {
		errs.parse(row.Number, l.SaleNumber, "", "required field sale number is empty")
		return SalesLineItem{}, false
	}
	saleNumber, err := ParseInteger(raw)
	if err != nil || saleNumber <= 0 {
		errs.parse(row.Number, l.SaleNumber, raw, "sale number must be a positive integer")
		return SalesLineItem{}, false
	}

	ref := CleanCell(row.Cell(l.ItemReference))
	if ref == "" {
		errs.parse(row.Number, l.ItemReference, "", "required field item reference is empty")
		return SalesLineItem{}, false
	}

	item := SalesLineItem{
		Line:          row.Number,
		SaleNumber:    saleNumber,
		SaleDate:      parseOptionalDate(row.Cell(l.SaleDate), date1904),
		Seller:        CleanCell(row.Cell(l.Seller)),
		Client:        CleanCell(row.Cell(l.Client)),
		PaymentMethod: CleanCell(row.Cell(l.PaymentMethod)),
		ItemReference: ref,
		Description:   CleanCell(row.Cell(l.Description)),
		Quantity:      parseQuantity(row, l.Quantity, errs),
		Amounts:       parseAmounts(row, l.Amounts),
	}

	if raw := row.Cell(l.ServiceOrderNumber); raw != "" {
		n, err := ParseInteger(raw)
		switch {
		case err != nil || n < 0:
			errs.parse(row.Number, l.ServiceOrderNumber, raw, "service order number must be an integer")
		case n > 0:
			item.ServiceOrderNumber = &n
		}
	}
	return item, true
}

// parseQuantity defaults a blank quantity to 1. An unreadable quantity is
// reported and also defaults to 1 so the line keeps its place in the batch.
func parseQuantity(row workbook.Row, col string, errs *rowErrors) decimal.Decimal {
	raw := row.Cell(col)
	if raw == "" {
		return decimal.NewFromInt(1)
	}
	q, err := ParseDecimal(raw)
	if err != nil {
		errs.parse(row.Number, col, raw, "quantity is not a number")
		return decimal.NewFromInt(1)
	}
	return q
}

func parseAmounts(row workbook.Row, c AmountColumns) Amounts {
	return Amounts{
		Original:   ParseNullDecimal(row.Cell(c.Original)),
		Adjustment: ParseNullDecimal(row.Cell(c.Adjustment)),
		Unit:       ParseNullDecimal(row.Cell(c.Unit)),
		Gross:      ParseNullDecimal(row.Cell(c.Gross)),
		Discount:   ParseNullDecimal(row.Cell(c.Discount)),
		Net:        ParseNullDecimal(row.Cell(c.Net)),
	}
}
