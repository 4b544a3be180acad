package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/JonMunkholm/opsimport/internal/logging"
	"github.com/JonMunkholm/opsimport/internal/workbook"
)

// DefaultMaxFileSize is the per-workbook size limit when none is configured.
const DefaultMaxFileSize = 50 << 20

// ErrInvalidRequest wraps batch request validation failures.
var ErrInvalidRequest = errors.New("invalid batch request")

// ErrNoCommitter is returned by Process on a preview-only Service.
var ErrNoCommitter = errors.New("service has no committer")

// Options configures a Service. Zero values select the defaults.
type Options struct {
	// Layout defaults to DefaultLayout when nil.
	Layout        *Layout
	MaxFileSize   int64
	MaxConcurrent int
	MaxWait       time.Duration
	Observer      BatchObserver
}

// Service runs import batches. It is safe for concurrent use; batches share
// no mutable state apart from the limiter.
type Service struct {
	committer   Committer
	layout      Layout
	maxFileSize int64
	limiter     *ImportLimiter
	observer    BatchObserver
	validate    *validator.Validate
}

// NewService creates a Service. committer may be nil for a Service that only
// previews batches.
func NewService(committer Committer, opts Options) *Service {
	layout := DefaultLayout()
	if opts.Layout != nil {
		layout = *opts.Layout
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	return &Service{
		committer:   committer,
		layout:      layout,
		maxFileSize: opts.MaxFileSize,
		limiter:     NewImportLimiter(opts.MaxConcurrent, opts.MaxWait),
		observer:    opts.Observer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Layout returns the column layout in use.
func (s *Service) Layout() Layout {
	return s.layout
}

// Limiter exposes the import limiter for status reporting and shutdown.
func (s *Service) Limiter() *ImportLimiter {
	return s.limiter
}

// Process runs every stage and commits the batch when no error was found.
//
// The returned error is non-nil only when the batch could not start: an
// invalid request, a busy limiter or a missing committer. Every problem in
// the files themselves, including a failed commit, is reported in the result.
func (s *Service) Process(ctx context.Context, req BatchRequest) (*ProcessingResult, error) {
	if s.committer == nil {
		return nil, ErrNoCommitter
	}
	return s.run(ctx, req, true)
}

// Preview runs every stage except the commit.
func (s *Service) Preview(ctx context.Context, req BatchRequest) (*ProcessingResult, error) {
	return s.run(ctx, req, false)
}

func (s *Service) run(ctx context.Context, req BatchRequest, commit bool) (*ProcessingResult, error) {
	if err := s.checkRequest(req); err != nil {
		return nil, err
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	start := time.Now()
	batchID := uuid.New()
	log := logging.ForBatch(ctx, batchID.String(), req.CompanyID, req.Period)

	st := s.stages(req, log)

	result := &ProcessingResult{
		Status:             StatusFailure,
		TotalSales:         len(st.sales),
		TotalProducts:      len(st.products),
		TotalServiceOrders: len(st.orders),
		Errors:             st.errs,
	}

	switch {
	case len(st.errs) > 0:
		result.Message = fmt.Sprintf("batch rejected with %d errors; nothing was saved", len(st.errs))
	case !commit:
		result.Status = StatusSuccess
		result.TotalSales = len(st.enriched.Sales)
		result.TotalServiceOrders = len(st.enriched.ServiceOrders)
		result.TotalProducts = distinctProducts(st.products)
		result.Message = "batch is valid; nothing was saved"
	default:
		s.commit(ctx, log, req, batchID, st, result)
	}

	elapsed := time.Since(start)
	log.Info("batch finished",
		"status", result.Status,
		"errors", len(result.Errors),
		"commit", commit,
		"duration", elapsed,
	)
	if s.observer != nil {
		s.observer.ObserveBatch(result, elapsed)
	}
	return result, nil
}

func (s *Service) commit(ctx context.Context, log *slog.Logger, req BatchRequest, id uuid.UUID, st *stageOutput, result *ProcessingResult) {
	counts, err := s.committer.CommitBatch(ctx, Batch{
		ID:            id,
		CompanyID:     req.CompanyID,
		CompanyName:   req.CompanyName,
		Period:        req.Period,
		Files:         req.Files(),
		Sales:         st.enriched.Sales,
		ServiceOrders: st.enriched.ServiceOrders,
	})
	if err != nil {
		log.Error("commit failed", "error", err)
		result.Errors = append(result.Errors, ErrorRecord{
			Kind:    KindPersistence,
			Message: FormatUserError(err),
		})
		result.Message = "batch could not be saved; nothing was committed"
		return
	}

	result.Status = StatusSuccess
	result.BatchID = id.String()
	result.TotalSales = counts.Sales
	result.TotalServiceOrders = counts.ServiceOrders
	result.TotalProducts = distinctProducts(st.products)
	result.Message = fmt.Sprintf("imported %d sales lines and %d service order lines", counts.Sales, counts.ServiceOrders)
}

// stageOutput is everything the stages produced for one batch.
type stageOutput struct {
	sales    []SalesLineItem
	products []ProductMaster
	orders   []ServiceOrderLineItem
	enriched EnrichResult
	errs     []ErrorRecord
}

// stages decodes the three workbooks and runs parsing, enrichment and
// validation. A workbook that fails to decode contributes one file error and
// is treated as empty by the later stages.
func (s *Service) stages(req BatchRequest, log *slog.Logger) *stageOutput {
	files := req.Files()
	out := &stageOutput{errs: []ErrorRecord{}}

	salesSheet := s.decode(req.Sales, out)
	productSheet := s.decode(req.Products, out)
	orderSheet := s.decode(req.ServiceOrders, out)

	if salesSheet != nil {
		items, errs := ParseSales(files.Sales, salesSheet, s.layout.Sales)
		out.sales = items
		out.errs = append(out.errs, errs...)
		log.Debug("sales parsed", "lines", len(items), "errors", len(errs))
	}
	if productSheet != nil {
		items, errs := ParseProducts(files.Products, productSheet, s.layout.Products)
		out.products = items
		out.errs = append(out.errs, errs...)
		log.Debug("products parsed", "products", len(items), "errors", len(errs))
	}
	if orderSheet != nil {
		items, errs := ParseServiceOrders(files.ServiceOrders, orderSheet, s.layout.ServiceOrders)
		out.orders = items
		out.errs = append(out.errs, errs...)
		log.Debug("service orders parsed", "lines", len(items), "errors", len(errs))
	}

	if productSheet != nil {
		out.enriched = Enrich(EnrichInput{
			Files:         files,
			Layout:        s.layout,
			Sales:         out.sales,
			ServiceOrders: out.orders,
			Products:      out.products,
			SalesLoaded:   salesSheet != nil,
			OrdersLoaded:  orderSheet != nil,
		})
		out.errs = append(out.errs, out.enriched.Errors...)
		log.Debug("lines enriched",
			"sales", len(out.enriched.Sales),
			"service_orders", len(out.enriched.ServiceOrders),
			"errors", len(out.enriched.Errors),
		)
	}

	verrs := Validate(ValidationInput{
		Files:         files,
		Layout:        s.layout,
		CompanyName:   req.CompanyName,
		Sales:         out.sales,
		ServiceOrders: out.orders,
		SalesLoaded:   salesSheet != nil,
		OrdersLoaded:  orderSheet != nil,
	})
	out.errs = append(out.errs, verrs...)
	log.Debug("batch validated", "errors", len(verrs))

	return out
}

func (s *Service) decode(u Upload, out *stageOutput) *workbook.Sheet {
	if int64(len(u.Data)) > s.maxFileSize {
		out.errs = append(out.errs, fileError(u.FileName,
			fmt.Errorf("%w: %d bytes exceeds the limit of %d", ErrFileTooLarge, len(u.Data), s.maxFileSize)))
		return nil
	}
	sheet, err := workbook.Decode(u.FileName, u.Data)
	if err != nil {
		out.errs = append(out.errs, fileError(u.FileName, err))
		return nil
	}
	return sheet
}

func (s *Service) checkRequest(req BatchRequest) error {
	return s.validateStruct(req)
}

// validateStruct runs struct validation and folds every failed field into
// one ErrInvalidRequest.
func (s *Service) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, describeField(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(problems, "; "))
}

func describeField(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "datetime":
		return field + " must be a month formatted YYYY-MM"
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

func distinctProducts(products []ProductMaster) int {
	refs := make(map[string]struct{}, len(products))
	for _, p := range products {
		refs[p.ItemReference] = struct{}{}
	}
	return len(refs)
}
