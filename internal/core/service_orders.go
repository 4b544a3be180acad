package core

import (
	"github.com/JonMunkholm/opsimport/internal/workbook"
)

// rowAction is what the service order scan does with one row.
type rowAction int

const (
	actionIgnore rowAction = iota
	// actionHeader opened a new order; the previous header is discarded.
	actionHeader
	// actionItem is an item row under the current header.
	actionItem
	// actionOrphanItem is an item row seen before any header.
	actionOrphanItem
)

func (a rowAction) String() string {
	switch a {
	case actionHeader:
		return "header"
	case actionItem:
		return "item"
	case actionOrphanItem:
		return "orphan_item"
	default:
		return "ignore"
	}
}

// orderScan is the header-carry state of the service order scan.
// A nil header is the NoHeader state.
type orderScan struct {
	layout   ServiceOrderLayout
	date1904 bool
	ignored  map[string]struct{}
	header   *ServiceOrderHeader
}

func newOrderScan(layout ServiceOrderLayout, date1904 bool) *orderScan {
	ignored := make(map[string]struct{}, len(layout.IgnoredItemValues))
	for _, v := range layout.IgnoredItemValues {
		ignored[NormalizeName(v)] = struct{}{}
	}
	return &orderScan{layout: layout, date1904: date1904, ignored: ignored}
}

// step applies the transition table to one row and reports the action taken.
// It is the only place the scan state changes.
func (s *orderScan) step(row workbook.Row) rowAction {
	if n, err := ParseInteger(row.Cell(s.layout.OrderNumber)); err == nil && n > 0 {
		s.header = s.readHeader(row, n)
		return actionHeader
	}
	if !s.isItemRow(row) {
		return actionIgnore
	}
	if s.header == nil {
		return actionOrphanItem
	}
	return actionItem
}

func (s *orderScan) isItemRow(row workbook.Row) bool {
	ref := CleanCell(row.Cell(s.layout.ItemReference))
	if ref == "" {
		return false
	}
	_, placeholder := s.ignored[NormalizeName(ref)]
	return !placeholder
}

func (s *orderScan) readHeader(row workbook.Row, orderNumber int64) *ServiceOrderHeader {
	l := s.layout
	return &ServiceOrderHeader{
		OrderNumber:      orderNumber,
		OpenedAt:         parseOptionalDate(row.Cell(l.OpenedAt), s.date1904),
		Status:           CleanCell(row.Cell(l.Status)),
		SaleStatus:       CleanCell(row.Cell(l.SaleStatus)),
		Stage:            CleanCell(row.Cell(l.Stage)),
		ExpectedDelivery: parseOptionalDate(row.Cell(l.ExpectedDelivery), s.date1904),
		ActualDelivery:   parseOptionalDate(row.Cell(l.ActualDelivery), s.date1904),
		Seller:           CleanCell(row.Cell(l.Seller)),
		HeaderLine:       row.Number,
	}
}

// line builds an item under the current header. Only valid after actionItem.
func (s *orderScan) line(row workbook.Row, errs *rowErrors) ServiceOrderLineItem {
	l := s.layout
	return ServiceOrderLineItem{
		Line:               row.Number,
		ServiceOrderHeader: *s.header,
		ItemReference:      CleanCell(row.Cell(l.ItemReference)),
		Quantity:           parseQuantity(row, l.Quantity, errs),
		Amounts:            parseAmounts(row, l.Amounts),
	}
}

// ParseServiceOrders scans service order rows in document order. Header rows
// set the current order; item rows emit one line carrying that header. Headers
// without items produce nothing.
func ParseServiceOrders(file string, sheet *workbook.Sheet, layout ServiceOrderLayout) ([]ServiceOrderLineItem, []ErrorRecord) {
	errs := &rowErrors{file: file}
	scan := newOrderScan(layout, sheet.Date1904)
	var items []ServiceOrderLineItem

	for _, row := range sheet.Rows {
		if row.Number < layout.FirstDataRow || row.IsEmpty() {
			continue
		}
		switch scan.step(row) {
		case actionItem:
			items = append(items, scan.line(row, errs))
		case actionOrphanItem:
			errs.parse(row.Number, layout.ItemReference, row.Cell(layout.ItemReference),
				"item row without preceding header")
		}
	}
	return items, errs.list
}
