package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/opsimport/internal/core"
)

// Multipart form fields of an import request.
const (
	fieldCompanyID     = "company_id"
	fieldCompanyName   = "company_name"
	fieldPeriod        = "period"
	fieldSales         = "sales"
	fieldProducts      = "products"
	fieldServiceOrders = "service_orders"
)

// multipartMemory is how much of the form is buffered in memory before
// parts spill to temporary files.
const multipartMemory = 32 << 20

type batchRunner func(context.Context, core.BatchRequest) (*core.ProcessingResult, error)

// handleImport validates and commits one batch.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	s.runBatch(w, r, s.service.Process)
}

// handlePreview validates one batch without committing it.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	s.runBatch(w, r, s.service.Preview)
}

// handleRollback removes the committed batch of a company and period.
func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.Rollback(r.Context(), chi.URLParam(r, "companyID"), chi.URLParam(r, "period"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// runBatch answers 200 with the result when the batch succeeded, 422 when
// the files were rejected, and an ErrorResponse when it could not start.
func (s *Server) runBatch(w http.ResponseWriter, r *http.Request, run batchRunner) {
	req, err := s.readBatchRequest(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	result, err := run(r.Context(), req)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	status := http.StatusOK
	if result.Status == core.StatusFailure {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

// readBatchRequest parses the multipart form. The body may carry three
// workbooks, so it is capped at three times the per-file limit plus form
// overhead. The per-file limit itself is enforced by the service.
func (s *Server) readBatchRequest(w http.ResponseWriter, r *http.Request) (core.BatchRequest, error) {
	maxBody := 3*s.cfg.Upload.MaxFileSize + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return core.BatchRequest{}, fmt.Errorf("%w: request body exceeds %d bytes", core.ErrFileTooLarge, maxBody)
		}
		return core.BatchRequest{}, fmt.Errorf("%w: invalid multipart form: %v", core.ErrInvalidRequest, err)
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	req := core.BatchRequest{
		CompanyID:   strings.TrimSpace(r.FormValue(fieldCompanyID)),
		CompanyName: strings.TrimSpace(r.FormValue(fieldCompanyName)),
		Period:      strings.TrimSpace(r.FormValue(fieldPeriod)),
	}

	var err error
	if req.Sales, err = readUpload(r, fieldSales); err != nil {
		return core.BatchRequest{}, err
	}
	if req.Products, err = readUpload(r, fieldProducts); err != nil {
		return core.BatchRequest{}, err
	}
	if req.ServiceOrders, err = readUpload(r, fieldServiceOrders); err != nil {
		return core.BatchRequest{}, err
	}
	return req, nil
}

// readUpload reads one file part. A missing part yields an empty Upload,
// which request validation reports by field name.
func readUpload(r *http.Request, field string) (core.Upload, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return core.Upload{}, nil
	}
	if err != nil {
		return core.Upload{}, fmt.Errorf("%w: %s: %v", core.ErrInvalidRequest, field, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return core.Upload{}, fmt.Errorf("read %s: %w", field, err)
	}
	return core.Upload{FileName: header.Filename, Data: data}, nil
}
