package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/opsimport/internal/config"
	"github.com/JonMunkholm/opsimport/internal/core"
	"github.com/JonMunkholm/opsimport/internal/metrics"
)

// fakeCommitter records committed batches.
type fakeCommitter struct {
	mu      sync.Mutex
	batches []core.Batch
}

func (f *fakeCommitter) CommitBatch(_ context.Context, b core.Batch) (core.CommitCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, b)
	return core.CommitCounts{Sales: len(b.Sales), ServiceOrders: len(b.ServiceOrders)}, nil
}

func (f *fakeCommitter) RemoveBatch(_ context.Context, companyID, period string) (core.RollbackResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, b := range f.batches {
		if b.CompanyID == companyID && b.Period == period {
			f.batches = append(f.batches[:i], f.batches[i+1:]...)
			return core.RollbackResult{
				BatchID:      b.ID.String(),
				CompanyID:    companyID,
				Period:       period,
				SalesDeleted: int64(len(b.Sales)),
			}, nil
		}
	}
	return core.RollbackResult{}, core.ErrBatchNotFound
}

func (f *fakeCommitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

type cells map[string]string

func xlsxOf(t *testing.T, rows ...cells) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, c := range rows {
		for col, v := range c {
			ref, err := excelize.JoinCellName(col, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", ref, v))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// workbooks returns a consistent sales/products/orders triple. saleOrder is
// the service order referenced by the sale.
func workbooks(t *testing.T, saleOrder string) map[string][]byte {
	return map[string][]byte{
		fieldSales: xlsxOf(t,
			cells{"A": "Vendas"},
			cells{"B": "1001", "C": "45366", "D": saleOrder, "H": "Acme Ltda", "T": "SKU-A", "W": "2", "AE": "100.00"},
		),
		fieldProducts: xlsxOf(t,
			cells{"A": "Produtos"},
			cells{"A": "SKU-A", "C": "Filtros", "E": "Bosch", "L": "2", "N": "40.00", "R": "1001", "S": "500"},
		),
		fieldServiceOrders: xlsxOf(t,
			cells{"A": "500", "C": "45366", "D": "Aberta"},
			cells{"AC": "SKU-A", "AD": "2", "AK": "100.00"},
		),
	}
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, data := range files {
		part, err := mw.CreateFormFile(field, field+".xlsx")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func validFields() map[string]string {
	return map[string]string{
		fieldCompanyID:   "acme",
		fieldCompanyName: "ACME LTDA",
		fieldPeriod:      "2024-03",
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: time.Minute},
		Upload: config.UploadConfig{MaxFileSize: 1 << 20, MaxConcurrent: 1, MaxWait: 10 * time.Millisecond},
		Rate:   config.RateLimitConfig{Enabled: false},
	}
}

type testServer struct {
	*Server
	committer *fakeCommitter
	metrics   *metrics.Metrics
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	committer := &fakeCommitter{}
	m := metrics.New()
	svc := core.NewService(committer, core.Options{
		MaxFileSize:   cfg.Upload.MaxFileSize,
		MaxConcurrent: cfg.Upload.MaxConcurrent,
		MaxWait:       cfg.Upload.MaxWait,
		Observer:      m,
	})
	return &testServer{Server: NewServer(cfg, svc, m), committer: committer, metrics: m}
}

func (s *testServer) post(t *testing.T, path string, fields map[string]string, files map[string][]byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, fields, files)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) core.ProcessingResult {
	t.Helper()
	var res core.ProcessingResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestImport_Success(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.post(t, "/api/import", validFields(), workbooks(t, "500"))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeResult(t, rec)
	assert.Equal(t, core.StatusSuccess, res.Status)
	assert.NotEmpty(t, res.BatchID)
	assert.Equal(t, 1, res.TotalSales)
	assert.Equal(t, 1, res.TotalServiceOrders)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 1, s.committer.count())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestImport_RejectedBatchIs422(t *testing.T) {
	s := newTestServer(t, testConfig())

	// Sale 1001 points at order 999, which the orders file does not have.
	rec := s.post(t, "/api/import", validFields(), workbooks(t, "999"))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	res := decodeResult(t, rec)
	assert.Equal(t, core.StatusFailure, res.Status)
	assert.Empty(t, res.BatchID)
	require.NotEmpty(t, res.Errors)
	assert.Zero(t, s.committer.count())
}

func TestPreview_DoesNotCommit(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.post(t, "/api/import/preview", validFields(), workbooks(t, "500"))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeResult(t, rec)
	assert.Equal(t, core.StatusSuccess, res.Status)
	assert.Empty(t, res.BatchID)
	assert.Zero(t, s.committer.count())
}

func TestImport_InvalidRequest(t *testing.T) {
	s := newTestServer(t, testConfig())
	fields := validFields()
	delete(fields, fieldPeriod)
	files := workbooks(t, "500")
	delete(files, fieldProducts)

	rec := s.post(t, "/api/import", fields, files)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "REQ003", resp.Code)
	assert.Contains(t, resp.Detail, "Period is required")
	assert.Contains(t, resp.Detail, "Products.FileName is required")
}

func TestImport_NotMultipart(t *testing.T) {
	s := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/import", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImport_BodyTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxFileSize = 1024
	s := newTestServer(t, cfg)

	files := workbooks(t, "500")
	files[fieldSales] = bytes.Repeat([]byte("x"), 2<<20)
	rec := s.post(t, "/api/import", validFields(), files)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "FILE001", resp.Code)
}

func TestImport_FileOverLimitIsFileError(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxFileSize = 512
	s := newTestServer(t, cfg)

	// Every generated workbook is larger than 512 bytes but the body stays
	// under the request cap.
	rec := s.post(t, "/api/import", validFields(), workbooks(t, "500"))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	res := decodeResult(t, rec)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, core.KindFile, res.Errors[0].Kind)
}

func TestImport_LimiterBusy(t *testing.T) {
	s := newTestServer(t, testConfig())
	require.True(t, s.service.Limiter().TryAcquire())
	defer s.service.Limiter().Release()

	rec := s.post(t, "/api/import", validFields(), workbooks(t, "500"))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "IMP001", resp.Code)
}

func TestImport_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, UploadsPerMinute: 1}
	s := newTestServer(t, cfg)

	first := s.post(t, "/api/import/preview", validFields(), workbooks(t, "500"))
	require.Equal(t, http.StatusOK, first.Code)

	second := s.post(t, "/api/import/preview", validFields(), workbooks(t, "500"))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	assert.Equal(t, "RATE001", resp.Code)
}

func TestRollback(t *testing.T) {
	s := newTestServer(t, testConfig())
	imported := decodeResult(t, s.post(t, "/api/import", validFields(), workbooks(t, "500")))
	require.Equal(t, core.StatusSuccess, imported.Status)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/import/acme/2024-03", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res core.RollbackResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, imported.BatchID, res.BatchID)
	assert.Equal(t, int64(1), res.SalesDeleted)
	assert.Zero(t, s.committer.count())

	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/import/acme/2024-03", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "IMP002", resp.Code)
}

func TestImportStatus(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/import/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var status core.LimiterStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, core.LimiterStatus{Active: 0, Available: 1, MaxConcurrent: 1}, status)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, testConfig())
	s.post(t, "/api/import/preview", validFields(), workbooks(t, "500"))

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `opsimport_batches_total{status="success"} 1`)
	assert.Contains(t, rec.Body.String(), `route="/api/import/preview"`)
}
