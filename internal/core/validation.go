package core

// validation.go holds the cross-line integrity checks that run after
// enrichment. The three checks are independent and all of them always run.

import (
	"strconv"
)

// ValidationInput is the parsed batch as submitted. The checks read the
// parsed lines, not the enriched ones, so a line excluded for lacking a
// product is still validated.
type ValidationInput struct {
	Files         SourceFiles
	Layout        Layout
	CompanyName   string
	Sales         []SalesLineItem
	ServiceOrders []ServiceOrderLineItem
	SalesLoaded   bool
	OrdersLoaded  bool
}

// Validate runs client consistency, duplicate sale number and sale/service
// order existence checks and returns every error found.
func Validate(in ValidationInput) []ErrorRecord {
	var errs []ErrorRecord
	errs = append(errs, checkClients(in)...)
	errs = append(errs, checkDuplicateSales(in)...)
	if in.SalesLoaded && in.OrdersLoaded {
		errs = append(errs, checkSalesOrderLinks(in)...)
	}
	return errs
}

// checkClients reports every sales line whose client is not the company the
// batch was submitted for.
func checkClients(in ValidationInput) []ErrorRecord {
	want := NormalizeName(in.CompanyName)
	errs := &rowErrors{file: in.Files.Sales}
	for _, s := range in.Sales {
		if NormalizeName(s.Client) != want {
			errs.add(KindIntegrityMismatch, s.Line, in.Layout.Sales.Client, s.Client,
				"client does not match company %q", in.CompanyName)
		}
	}
	return errs.list
}

// checkDuplicateSales flags every repeat of a sale number after its first line.
func checkDuplicateSales(in ValidationInput) []ErrorRecord {
	first := make(map[int64]int, len(in.Sales))
	errs := &rowErrors{file: in.Files.Sales}
	for _, s := range in.Sales {
		line, seen := first[s.SaleNumber]
		if !seen {
			first[s.SaleNumber] = s.Line
			continue
		}
		errs.add(KindDuplicateKey, s.Line, in.Layout.Sales.SaleNumber, strconv.FormatInt(s.SaleNumber, 10),
			"duplicate sale number %d, first seen on line %d", s.SaleNumber, line)
	}
	return errs.list
}

// checkSalesOrderLinks checks both directions of the sale/service order link.
// Each missing number is reported once, at its first appearance.
func checkSalesOrderLinks(in ValidationInput) []ErrorRecord {
	orders := make(map[int64]struct{}, len(in.ServiceOrders))
	for _, o := range in.ServiceOrders {
		orders[o.OrderNumber] = struct{}{}
	}
	referenced := make(map[int64]struct{})
	for _, s := range in.Sales {
		if s.ServiceOrderNumber != nil {
			referenced[*s.ServiceOrderNumber] = struct{}{}
		}
	}

	salesErrs := &rowErrors{file: in.Files.Sales}
	reported := make(map[int64]struct{})
	for _, s := range in.Sales {
		if s.ServiceOrderNumber == nil {
			continue
		}
		n := *s.ServiceOrderNumber
		if _, ok := orders[n]; ok {
			continue
		}
		if _, done := reported[n]; done {
			continue
		}
		reported[n] = struct{}{}
		salesErrs.add(KindIntegrityMismatch, s.Line, in.Layout.Sales.ServiceOrderNumber, strconv.FormatInt(n, 10),
			"service order %d referenced by sale %d not found", n, s.SaleNumber)
	}

	orderErrs := &rowErrors{file: in.Files.ServiceOrders}
	reported = make(map[int64]struct{})
	for _, o := range in.ServiceOrders {
		n := o.OrderNumber
		if _, ok := referenced[n]; ok {
			continue
		}
		if _, done := reported[n]; done {
			continue
		}
		reported[n] = struct{}{}
		orderErrs.add(KindIntegrityMismatch, o.HeaderLine, in.Layout.ServiceOrders.OrderNumber, strconv.FormatInt(n, 10),
			"service order %d not referenced by any sale", n)
	}

	return append(salesErrs.list, orderErrs.list...)
}
