// Package core reconciles the three operational workbooks of one company and
// accounting period into enriched sales and service-order line items.
//
// This package holds all domain logic and is independent of any transport.
// The HTTP server, the CLI and the tests drive it through [Service].
//
// # Pipeline
//
// A batch runs these stages in order, each consuming the previous output:
//
//  1. Decode each workbook into positional rows (package workbook).
//  2. [ParseSales] turns sales rows into [SalesLineItem] records.
//  3. [ParseProducts] turns product rows into [ProductMaster] records, each
//     carrying the sale and service-order numbers it is used in.
//  4. [ParseServiceOrders] scans service-order rows with a header-carry state
//     machine: header rows open an order, item rows emit lines under it.
//  5. [Enrich] inverts the product adjacency lists into lookup indexes and
//     copies group, brand, supplier and unit cost onto matching lines.
//  6. [Validate] checks client names, duplicate sale numbers and that sales
//     and service orders reference each other.
//  7. A [Committer] writes both line sets in one transaction.
//
// [Service.Preview] stops before stage 7. [Service.Rollback] deletes a
// committed batch so its period can be imported again.
//
// # Error Handling
//
// Stages never stop at the first bad row. Every stage returns its records
// together with the [ErrorRecord] values it found, and the batch is committed
// only when the combined list is empty. The only thing that aborts early is a
// workbook that cannot be decoded, and that aborts only its own file.
//
// Error kinds:
//
//   - parse_error: missing required field, bad number, division by zero
//   - file_error: workbook could not be decoded or is too large
//   - orphan_reference: a cross-file link points at nothing
//   - duplicate_key: a sale number repeats within the sales file
//   - integrity_mismatch: client name or sale/service-order linkage mismatch
//   - persistence_error: the transaction failed; see [MapError]
//
// # Column Layout
//
// None of the workbooks have reliable header rows, so every column is
// addressed by letter through [Layout]. [DefaultLayout] is the production
// layout; [LoadLayout] overlays a YAML file on top of it.
package core
