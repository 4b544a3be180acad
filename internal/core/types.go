package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Amounts holds the six monetary figures shared by sales and service-order lines.
// A figure is null when its cell is blank or not a number.
type Amounts struct {
	Original   decimal.NullDecimal `json:"original_value"`
	Adjustment decimal.NullDecimal `json:"adjustment_value"`
	Unit       decimal.NullDecimal `json:"unit_value"`
	Gross      decimal.NullDecimal `json:"gross_total"`
	Discount   decimal.NullDecimal `json:"discount_total"`
	Net        decimal.NullDecimal `json:"net_total"`
}

// Enrichment is the catalog data copied from a ProductMaster onto a line.
type Enrichment struct {
	Group    string              `json:"group,omitempty"`
	Brand    string              `json:"brand,omitempty"`
	Supplier string              `json:"supplier,omitempty"`
	UnitCost decimal.NullDecimal `json:"unit_cost"`
}

// SalesLineItem is one sold item within one sale.
type SalesLineItem struct {
	Line               int             `json:"line"`
	SaleNumber         int64           `json:"sale_number"`
	SaleDate           *time.Time      `json:"sale_date,omitempty"`
	ServiceOrderNumber *int64          `json:"service_order_number,omitempty"`
	Seller             string          `json:"seller,omitempty"`
	Client             string          `json:"client,omitempty"`
	PaymentMethod      string          `json:"payment_method,omitempty"`
	ItemReference      string          `json:"item_reference"`
	Description        string          `json:"description,omitempty"`
	Quantity           decimal.Decimal `json:"quantity"`
	Amounts
	Enrichment
}

// ProductMaster is one catalog row: aggregate cost plus the sales and service
// orders it is used in. It is only consumed for enrichment.
type ProductMaster struct {
	Line                int                 `json:"line"`
	ItemReference       string              `json:"item_reference"`
	Group               string              `json:"group,omitempty"`
	Brand               string              `json:"brand,omitempty"`
	Supplier            string              `json:"supplier,omitempty"`
	Quantity            *int64              `json:"quantity,omitempty"`
	TotalCost           decimal.NullDecimal `json:"total_cost"`
	UnitCost            decimal.NullDecimal `json:"unit_cost"`
	SaleNumbers         []int64             `json:"sale_numbers,omitempty"`
	ServiceOrderNumbers []int64             `json:"service_order_numbers,omitempty"`
}

// ServiceOrderHeader is the metadata shared by every item of one service order.
type ServiceOrderHeader struct {
	OrderNumber      int64      `json:"order_number"`
	OpenedAt         *time.Time `json:"opened_at,omitempty"`
	Status           string     `json:"status,omitempty"`
	SaleStatus       string     `json:"sale_status,omitempty"`
	Stage            string     `json:"stage,omitempty"`
	ExpectedDelivery *time.Time `json:"expected_delivery,omitempty"`
	ActualDelivery   *time.Time `json:"actual_delivery,omitempty"`
	Seller           string     `json:"seller,omitempty"`
	// HeaderLine is the row the header was read from.
	HeaderLine int `json:"header_line"`
}

// ServiceOrderLineItem is one item line under one service order.
type ServiceOrderLineItem struct {
	Line int `json:"line"`
	ServiceOrderHeader
	ItemReference string          `json:"item_reference"`
	Quantity      decimal.Decimal `json:"quantity"`
	Amounts
	Enrichment
}

// Status is the verdict of a batch.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// ProcessingResult is the single, terminal outcome of a batch.
type ProcessingResult struct {
	Status             Status        `json:"status"`
	TotalSales         int           `json:"total_sales"`
	TotalProducts      int           `json:"total_products"`
	TotalServiceOrders int           `json:"total_service_orders"`
	Errors             []ErrorRecord `json:"errors"`
	Message            string        `json:"message,omitempty"`
	// BatchID is set only when the batch was committed.
	BatchID string `json:"batch_id,omitempty"`
}

// SourceFiles names the three workbooks of a batch, used in error records.
type SourceFiles struct {
	Sales         string
	Products      string
	ServiceOrders string
}

// Upload is one workbook as received.
type Upload struct {
	FileName string `validate:"required"`
	Data     []byte
}

// BatchRequest is one company/period submission of the three workbooks.
type BatchRequest struct {
	CompanyID   string `validate:"required,max=64"`
	CompanyName string `validate:"required,max=200"`
	// Period is the accounting month, formatted YYYY-MM.
	Period        string `validate:"required,datetime=2006-01"`
	Sales         Upload
	Products      Upload
	ServiceOrders Upload
}

// Files returns the file names of the request.
func (r BatchRequest) Files() SourceFiles {
	return SourceFiles{
		Sales:         r.Sales.FileName,
		Products:      r.Products.FileName,
		ServiceOrders: r.ServiceOrders.FileName,
	}
}

// Batch is what gets persisted: both enriched line sets for one company and upload.
type Batch struct {
	ID            uuid.UUID
	CompanyID     string
	CompanyName   string
	Period        string
	Files         SourceFiles
	Sales         []SalesLineItem
	ServiceOrders []ServiceOrderLineItem
}

// CommitCounts reports the rows a commit inserted per entity.
type CommitCounts struct {
	Sales         int
	ServiceOrders int
}

// Committer writes a batch atomically: either every row of both sets is
// committed, or none is and a single error is returned.
type Committer interface {
	CommitBatch(ctx context.Context, batch Batch) (CommitCounts, error)
}

// BatchObserver is notified once per finished batch (metrics).
type BatchObserver interface {
	ObserveBatch(result *ProcessingResult, elapsed time.Duration)
}
