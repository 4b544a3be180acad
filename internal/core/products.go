package core

import (
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/opsimport/internal/workbook"
)

// unitCostPlaces is the rounding scale of derived unit costs.
const unitCostPlaces = 6

// ParseProducts converts product master rows into catalog records.
//
// UnitCost is TotalCost / Quantity when both are present and Quantity > 0.
// A zero quantity with a total cost is reported as a division by zero and the
// product is kept with a null unit cost.
func ParseProducts(file string, sheet *workbook.Sheet, layout ProductLayout) ([]ProductMaster, []ErrorRecord) {
	errs := &rowErrors{file: file}
	var products []ProductMaster

	for _, row := range sheet.Rows {
		if row.Number < layout.FirstDataRow || row.IsEmpty() {
			continue
		}
		if p, ok := parseProductRow(row, layout, errs); ok {
			products = append(products, p)
		}
	}
	return products, errs.list
}

func parseProductRow(row workbook.Row, l ProductLayout, errs *rowErrors) (ProductMaster, bool) {
	ref := CleanCell(row.Cell(l.ItemReference))
	if ref == "" {
		errs.parse(row.Number, l.ItemReference, "", "required field item reference is empty")
		return ProductMaster{}, false
	}

	p := ProductMaster{
		Line:                row.Number,
		ItemReference:       ref,
		Group:               CleanCell(row.Cell(l.Group)),
		Brand:               CleanCell(row.Cell(l.Brand)),
		Supplier:            CleanCell(row.Cell(l.Supplier)),
		SaleNumbers:         ParseIntList(row.Cell(l.SaleNumbers)),
		ServiceOrderNumbers: ParseIntList(row.Cell(l.ServiceOrderNumbers)),
	}

	if raw := row.Cell(l.Quantity); raw != "" {
		q, err := ParseInteger(raw)
		if err != nil {
			errs.parse(row.Number, l.Quantity, raw, "quantity must be an integer")
		} else {
			p.Quantity = &q
		}
	}

	if raw := row.Cell(l.TotalCost); raw != "" {
		total, err := ParseDecimal(raw)
		if err != nil {
			errs.parse(row.Number, l.TotalCost, raw, "total cost is not a number")
		} else {
			p.TotalCost = decimal.NewNullDecimal(total)
		}
	}

	if p.TotalCost.Valid && p.Quantity != nil {
		switch q := *p.Quantity; {
		case q == 0:
			errs.parse(row.Number, l.Quantity, row.Cell(l.Quantity),
				"unit cost undefined: division by zero quantity for item %s", ref)
		case q > 0:
			p.UnitCost = divideCost(p.TotalCost.Decimal, decimal.NewFromInt(q))
		}
	}
	return p, true
}

// divideCost returns total/qty, or null when qty is not positive.
func divideCost(total, qty decimal.Decimal) decimal.NullDecimal {
	if !qty.IsPositive() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(total.DivRound(qty, unitCostPlaces))
}
