package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/opsimport/internal/logging"
)

// ErrBatchNotFound is returned when no batch exists for a company and period.
var ErrBatchNotFound = errors.New("batch not found")

// RollbackResult reports what a rollback removed.
type RollbackResult struct {
	BatchID              string `json:"batch_id"`
	CompanyID            string `json:"company_id"`
	Period               string `json:"period"`
	SalesDeleted         int64  `json:"sales_deleted"`
	ServiceOrdersDeleted int64  `json:"service_orders_deleted"`
}

// BatchRemover deletes a committed batch and all of its lines atomically.
type BatchRemover interface {
	RemoveBatch(ctx context.Context, companyID, period string) (RollbackResult, error)
}

// rollbackRequest is validated like the company and period of a BatchRequest.
type rollbackRequest struct {
	CompanyID string `validate:"required,max=64"`
	Period    string `validate:"required,datetime=2006-01"`
}

// Rollback removes the committed batch of one company and period so that it
// can be imported again. The committer must also implement BatchRemover.
func (s *Service) Rollback(ctx context.Context, companyID, period string) (RollbackResult, error) {
	remover, ok := s.committer.(BatchRemover)
	if !ok {
		return RollbackResult{}, ErrNoCommitter
	}

	req := rollbackRequest{CompanyID: strings.TrimSpace(companyID), Period: strings.TrimSpace(period)}
	if err := s.validateStruct(req); err != nil {
		return RollbackResult{}, err
	}

	res, err := remover.RemoveBatch(ctx, req.CompanyID, req.Period)
	if err != nil {
		return RollbackResult{}, fmt.Errorf("rollback %s %s: %w", req.CompanyID, req.Period, err)
	}

	logging.ForBatch(ctx, res.BatchID, req.CompanyID, req.Period).Info("batch rolled back",
		"sales_deleted", res.SalesDeleted,
		"service_orders_deleted", res.ServiceOrdersDeleted,
	)
	return res, nil
}
