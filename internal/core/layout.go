package core

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/opsimport/internal/workbook"
)

// AmountColumns locates the six monetary figures of a line.
type AmountColumns struct {
	Original   string `yaml:"original"`
	Adjustment string `yaml:"adjustment"`
	Unit       string `yaml:"unit"`
	Gross      string `yaml:"gross"`
	Discount   string `yaml:"discount"`
	Net        string `yaml:"net"`
}

// SalesLayout maps sales workbook columns.
type SalesLayout struct {
	FirstDataRow       int           `yaml:"first_data_row"`
	SaleNumber         string        `yaml:"sale_number"`
	SaleDate           string        `yaml:"sale_date"`
	ServiceOrderNumber string        `yaml:"service_order_number"`
	Seller             string        `yaml:"seller"`
	Client             string        `yaml:"client"`
	PaymentMethod      string        `yaml:"payment_method"`
	ItemReference      string        `yaml:"item_reference"`
	Description        string        `yaml:"description"`
	Quantity           string        `yaml:"quantity"`
	Amounts            AmountColumns `yaml:"amounts"`
}

// ProductLayout maps product master workbook columns.
type ProductLayout struct {
	FirstDataRow        int    `yaml:"first_data_row"`
	ItemReference       string `yaml:"item_reference"`
	Group               string `yaml:"group"`
	Brand               string `yaml:"brand"`
	Supplier            string `yaml:"supplier"`
	Quantity            string `yaml:"quantity"`
	TotalCost           string `yaml:"total_cost"`
	SaleNumbers         string `yaml:"sale_numbers"`
	ServiceOrderNumbers string `yaml:"service_order_numbers"`
}

// ServiceOrderLayout maps service order workbook columns. Header rows and
// item rows use different columns of the same sheet.
type ServiceOrderLayout struct {
	FirstDataRow     int    `yaml:"first_data_row"`
	OrderNumber      string `yaml:"order_number"`
	OpenedAt         string `yaml:"opened_at"`
	Status           string `yaml:"status"`
	SaleStatus       string `yaml:"sale_status"`
	Stage            string `yaml:"stage"`
	ExpectedDelivery string `yaml:"expected_delivery"`
	ActualDelivery   string `yaml:"actual_delivery"`
	Seller           string `yaml:"seller"`

	ItemReference string        `yaml:"item_reference"`
	Quantity      string        `yaml:"quantity"`
	Amounts       AmountColumns `yaml:"amounts"`

	// IgnoredItemValues are item-reference cells that mark placeholder or
	// repeated title rows. Compared after NormalizeName.
	IgnoredItemValues []string `yaml:"ignored_item_values"`
}

// Layout is the column table for all three workbooks.
type Layout struct {
	Sales         SalesLayout        `yaml:"sales"`
	Products      ProductLayout      `yaml:"products"`
	ServiceOrders ServiceOrderLayout `yaml:"service_orders"`
}

// DefaultLayout returns the production column layout.
func DefaultLayout() Layout {
	return Layout{
		Sales: SalesLayout{
			FirstDataRow:       2,
			SaleNumber:         "B",
			SaleDate:           "C",
			ServiceOrderNumber: "D",
			Seller:             "E",
			Client:             "H",
			PaymentMethod:      "Q",
			ItemReference:      "T",
			Description:        "U",
			Quantity:           "W",
			Amounts: AmountColumns{
				Original:   "X",
				Adjustment: "Y",
				Unit:       "Z",
				Gross:      "AA",
				Discount:   "AC",
				Net:        "AE",
			},
		},
		Products: ProductLayout{
			FirstDataRow:        2,
			ItemReference:       "A",
			Group:               "C",
			Brand:               "E",
			Supplier:            "I",
			Quantity:            "L",
			TotalCost:           "N",
			SaleNumbers:         "R",
			ServiceOrderNumbers: "S",
		},
		ServiceOrders: ServiceOrderLayout{
			FirstDataRow:     1,
			OrderNumber:      "A",
			OpenedAt:         "C",
			Status:           "D",
			SaleStatus:       "E",
			Stage:            "F",
			ExpectedDelivery: "G",
			ActualDelivery:   "H",
			Seller:           "I",
			ItemReference:    "AC",
			Quantity:         "AD",
			Amounts: AmountColumns{
				Original:   "AE",
				Adjustment: "AF",
				Unit:       "AG",
				Gross:      "AH",
				Discount:   "AJ",
				Net:        "AK",
			},
			IgnoredItemValues: []string{
				"-", "--", "—", ".", "n/a", "null",
				"produto", "referência", "referencia", "ref", "ref.",
				"código", "codigo", "cód.", "item", "sku",
			},
		},
	}
}

// LoadLayout reads a YAML override file and merges it onto DefaultLayout.
// Keys absent from the file keep their default column.
func LoadLayout(path string) (Layout, error) {
	layout := DefaultLayout()

	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("read layout: %w", err)
	}
	if err := yaml.Unmarshal(data, &layout); err != nil {
		return Layout{}, fmt.Errorf("parse layout %s: %w", path, err)
	}
	if err := layout.Normalize(); err != nil {
		return Layout{}, fmt.Errorf("layout %s: %w", path, err)
	}
	return layout, nil
}

// Normalize upper-cases every column letter and checks the layout is usable.
// All problems are reported together.
func (l *Layout) Normalize() error {
	var errs []error

	col := func(field string, dst *string, required bool) {
		if *dst == "" {
			if required {
				errs = append(errs, fmt.Errorf("%s: column is required", field))
			}
			return
		}
		name, err := workbook.NormalizeColumn(*dst)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
			return
		}
		*dst = name
	}
	amounts := func(prefix string, a *AmountColumns) {
		col(prefix+".original", &a.Original, false)
		col(prefix+".adjustment", &a.Adjustment, false)
		col(prefix+".unit", &a.Unit, false)
		col(prefix+".gross", &a.Gross, false)
		col(prefix+".discount", &a.Discount, false)
		col(prefix+".net", &a.Net, false)
	}
	firstRow := func(field string, n int) {
		if n < 1 {
			errs = append(errs, fmt.Errorf("%s: must be at least 1, got %d", field, n))
		}
	}

	s := &l.Sales
	firstRow("sales.first_data_row", s.FirstDataRow)
	col("sales.sale_number", &s.SaleNumber, true)
	col("sales.sale_date", &s.SaleDate, false)
	col("sales.service_order_number", &s.ServiceOrderNumber, false)
	col("sales.seller", &s.Seller, false)
	col("sales.client", &s.Client, false)
	col("sales.payment_method", &s.PaymentMethod, false)
	col("sales.item_reference", &s.ItemReference, true)
	col("sales.description", &s.Description, false)
	col("sales.quantity", &s.Quantity, false)
	amounts("sales.amounts", &s.Amounts)

	p := &l.Products
	firstRow("products.first_data_row", p.FirstDataRow)
	col("products.item_reference", &p.ItemReference, true)
	col("products.group", &p.Group, false)
	col("products.brand", &p.Brand, false)
	col("products.supplier", &p.Supplier, false)
	col("products.quantity", &p.Quantity, false)
	col("products.total_cost", &p.TotalCost, false)
	col("products.sale_numbers", &p.SaleNumbers, false)
	col("products.service_order_numbers", &p.ServiceOrderNumbers, false)

	o := &l.ServiceOrders
	firstRow("service_orders.first_data_row", o.FirstDataRow)
	col("service_orders.order_number", &o.OrderNumber, true)
	col("service_orders.opened_at", &o.OpenedAt, false)
	col("service_orders.status", &o.Status, false)
	col("service_orders.sale_status", &o.SaleStatus, false)
	col("service_orders.stage", &o.Stage, false)
	col("service_orders.expected_delivery", &o.ExpectedDelivery, false)
	col("service_orders.actual_delivery", &o.ActualDelivery, false)
	col("service_orders.seller", &o.Seller, false)
	col("service_orders.item_reference", &o.ItemReference, true)
	col("service_orders.quantity", &o.Quantity, false)
	amounts("service_orders.amounts", &o.Amounts)

	if o.OrderNumber != "" && o.OrderNumber == o.ItemReference {
		errs = append(errs, errors.New("service_orders: order_number and item_reference must be different columns"))
	}

	return errors.Join(errs...)
}

// YAML renders the layout in the override file format.
func (l Layout) YAML() ([]byte, error) {
	return yaml.Marshal(l)
}
