package database

// params.go converts domain values to pgtype values for COPY.
//
// All to* helpers return pgtype values with Valid=false for absent input so
// the column is written as NULL.

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/opsimport/internal/core"
)

func toNumeric(d decimal.Decimal) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	if err := n.Scan(d.String()); err != nil {
		return pgtype.Numeric{}, fmt.Errorf("numeric %s: %w", d, err)
	}
	return n, nil
}

func toNullNumeric(d decimal.NullDecimal) (pgtype.Numeric, error) {
	if !d.Valid {
		return pgtype.Numeric{}, nil
	}
	return toNumeric(d.Decimal)
}

func toText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func toDate(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	y, m, d := t.Date()
	return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
}

func toInt8(n *int64) pgtype.Int8 {
	if n == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *n, Valid: true}
}

func toUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// numerics converts a fixed list of nullable amounts, stopping at the first error.
func numerics(values ...decimal.NullDecimal) ([]any, error) {
	out := make([]any, len(values))
	for i, v := range values {
		n, err := toNullNumeric(v)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

var salesColumns = []string{
	"batch_id", "company_id", "line", "sale_number", "sale_date", "service_order_number",
	"seller", "client", "payment_method", "item_reference", "description", "quantity",
	"original_value", "adjustment_value", "unit_value", "gross_total", "discount_total", "net_total",
	"product_group", "brand", "supplier", "unit_cost",
}

func salesRow(b core.Batch, s core.SalesLineItem) ([]any, error) {
	quantity, err := toNumeric(s.Quantity)
	if err != nil {
		return nil, fmt.Errorf("sales line %d: %w", s.Line, err)
	}
	amounts, err := numerics(s.Original, s.Adjustment, s.Unit, s.Gross, s.Discount, s.Net, s.UnitCost)
	if err != nil {
		return nil, fmt.Errorf("sales line %d: %w", s.Line, err)
	}

	row := []any{
		toUUID(b.ID), b.CompanyID, int32(s.Line), s.SaleNumber, toDate(s.SaleDate), toInt8(s.ServiceOrderNumber),
		toText(s.Seller), toText(s.Client), toText(s.PaymentMethod), s.ItemReference, toText(s.Description), quantity,
	}
	row = append(row, amounts[:6]...)
	row = append(row, toText(s.Group), toText(s.Brand), toText(s.Supplier), amounts[6])
	return row, nil
}

var serviceOrderColumns = []string{
	"batch_id", "company_id", "line", "header_line", "order_number", "opened_at",
	"status", "sale_status", "stage", "expected_delivery", "actual_delivery", "seller",
	"item_reference", "quantity",
	"original_value", "adjustment_value", "unit_value", "gross_total", "discount_total", "net_total",
	"product_group", "brand", "supplier", "unit_cost",
}

func serviceOrderRow(b core.Batch, o core.ServiceOrderLineItem) ([]any, error) {
	quantity, err := toNumeric(o.Quantity)
	if err != nil {
		return nil, fmt.Errorf("service order line %d: %w", o.Line, err)
	}
	amounts, err := numerics(o.Original, o.Adjustment, o.Unit, o.Gross, o.Discount, o.Net, o.UnitCost)
	if err != nil {
		return nil, fmt.Errorf("service order line %d: %w", o.Line, err)
	}

	row := []any{
		toUUID(b.ID), b.CompanyID, int32(o.Line), int32(o.HeaderLine), o.OrderNumber, toDate(o.OpenedAt),
		toText(o.Status), toText(o.SaleStatus), toText(o.Stage), toDate(o.ExpectedDelivery), toDate(o.ActualDelivery), toText(o.Seller),
		o.ItemReference, quantity,
	}
	row = append(row, amounts[:6]...)
	row = append(row, toText(o.Group), toText(o.Brand), toText(o.Supplier), amounts[6])
	return row, nil
}
