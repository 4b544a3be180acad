package core

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// productIndex inverts the product adjacency lists. Values are indexes into
// the product slice, in product order.
type productIndex struct {
	products []ProductMaster
	bySale   map[int64][]int
	byOrder  map[int64][]int
}

func newProductIndex(products []ProductMaster) *productIndex {
	idx := &productIndex{
		products: products,
		bySale:   make(map[int64][]int),
		byOrder:  make(map[int64][]int),
	}
	for i, p := range products {
		for _, n := range p.SaleNumbers {
			idx.bySale[n] = append(idx.bySale[n], i)
		}
		for _, n := range p.ServiceOrderNumbers {
			idx.byOrder[n] = append(idx.byOrder[n], i)
		}
	}
	return idx
}

// match picks the candidate whose item reference equals ref, falling back to
// the first candidate. ok is false when there are no candidates.
func (idx *productIndex) match(candidates []int, ref string) (ProductMaster, bool) {
	if len(candidates) == 0 {
		return ProductMaster{}, false
	}
	for _, i := range candidates {
		if idx.products[i].ItemReference == ref {
			return idx.products[i], true
		}
	}
	return idx.products[candidates[0]], true
}

// EnrichInput is everything the enricher reads.
type EnrichInput struct {
	Files         SourceFiles
	Layout        Layout
	Sales         []SalesLineItem
	ServiceOrders []ServiceOrderLineItem
	Products      []ProductMaster
	// SalesLoaded and OrdersLoaded are false when that workbook failed to
	// decode; orphan checks against a missing file are skipped.
	SalesLoaded  bool
	OrdersLoaded bool
}

// EnrichResult holds the lines that matched a product and the errors found.
type EnrichResult struct {
	Sales         []SalesLineItem
	ServiceOrders []ServiceOrderLineItem
	Errors        []ErrorRecord
}

// Enrich copies catalog data onto every sales and service order line that a
// product references. Lines with no product are reported and excluded.
// Afterwards every adjacency entry naming a sale or service order that was
// not parsed is reported as an orphan reference.
func Enrich(in EnrichInput) EnrichResult {
	idx := newProductIndex(in.Products)
	var res EnrichResult

	salesErrs := &rowErrors{file: in.Files.Sales}
	for _, item := range in.Sales {
		p, ok := idx.match(idx.bySale[item.SaleNumber], item.ItemReference)
		if !ok {
			salesErrs.add(KindOrphanReference, item.Line, in.Layout.Sales.SaleNumber,
				strconv.FormatInt(item.SaleNumber, 10), "sale has no associated product")
			continue
		}
		item.Enrichment = Enrichment{
			Group:    p.Group,
			Brand:    p.Brand,
			Supplier: p.Supplier,
			UnitCost: p.UnitCost,
		}
		res.Sales = append(res.Sales, item)
	}

	orderErrs := &rowErrors{file: in.Files.ServiceOrders}
	for _, item := range in.ServiceOrders {
		p, ok := idx.match(idx.byOrder[item.OrderNumber], item.ItemReference)
		if !ok {
			orderErrs.add(KindOrphanReference, item.Line, in.Layout.ServiceOrders.ItemReference,
				item.ItemReference, "service order %d has no associated product", item.OrderNumber)
			continue
		}
		item.Enrichment = Enrichment{
			Group:    p.Group,
			Brand:    p.Brand,
			Supplier: p.Supplier,
			UnitCost: orderUnitCost(p, item.Quantity),
		}
		res.ServiceOrders = append(res.ServiceOrders, item)
	}

	productErrs := orphanAdjacency(in)

	res.Errors = append(res.Errors, salesErrs.list...)
	res.Errors = append(res.Errors, orderErrs.list...)
	res.Errors = append(res.Errors, productErrs...)
	return res
}

// orderUnitCost divides the product total by the line's own quantity, or by
// the product quantity when the line quantity is not positive.
func orderUnitCost(p ProductMaster, lineQty decimal.Decimal) decimal.NullDecimal {
	if !p.TotalCost.Valid {
		return decimal.NullDecimal{}
	}
	if lineQty.IsPositive() {
		return divideCost(p.TotalCost.Decimal, lineQty)
	}
	if p.Quantity != nil {
		return divideCost(p.TotalCost.Decimal, decimal.NewFromInt(*p.Quantity))
	}
	return decimal.NullDecimal{}
}

// orphanAdjacency reports one error per product row and number that names a
// sale or service order absent from the parsed files.
func orphanAdjacency(in EnrichInput) []ErrorRecord {
	sales := make(map[int64]struct{}, len(in.Sales))
	for _, s := range in.Sales {
		sales[s.SaleNumber] = struct{}{}
	}
	orders := make(map[int64]struct{}, len(in.ServiceOrders))
	for _, o := range in.ServiceOrders {
		orders[o.OrderNumber] = struct{}{}
	}

	errs := &rowErrors{file: in.Files.Products}
	l := in.Layout.Products
	for _, p := range in.Products {
		if in.SalesLoaded {
			for _, n := range p.SaleNumbers {
				if _, ok := sales[n]; !ok {
					errs.add(KindOrphanReference, p.Line, l.SaleNumbers, strconv.FormatInt(n, 10),
						"product %s references sale %d, which is not in the sales file", p.ItemReference, n)
				}
			}
		}
		if in.OrdersLoaded {
			for _, n := range p.ServiceOrderNumbers {
				if _, ok := orders[n]; !ok {
					errs.add(KindOrphanReference, p.Line, l.ServiceOrderNumbers, strconv.FormatInt(n, 10),
						"product %s references service order %d, which is not in the service order file", p.ItemReference, n)
				}
			}
		}
	}
	return errs.list
}
