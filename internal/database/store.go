package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/opsimport/internal/core"
)

const insertBatch = `
INSERT INTO import_batches (
    id, company_id, company_name, period,
    sales_file, products_file, service_orders_file,
    sales_count, service_order_count
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const (
	lockBatch = `
SELECT id FROM import_batches
WHERE company_id = $1 AND period = $2
FOR UPDATE`
	deleteSalesLines        = `DELETE FROM sales_lines WHERE batch_id = $1`
	deleteServiceOrderLines = `DELETE FROM service_order_lines WHERE batch_id = $1`
	deleteBatch             = `DELETE FROM import_batches WHERE id = $1`
)

// Store commits import batches. It implements core.Committer.
type Store struct {
	db TxBeginner
}

// NewStore creates a Store over a pool (or anything that begins transactions).
func NewStore(db TxBeginner) *Store {
	return &Store{db: db}
}

// CommitBatch inserts the batch row and both line sets in one transaction.
// On any error the transaction is rolled back and nothing remains.
func (s *Store) CommitBatch(ctx context.Context, b core.Batch) (core.CommitCounts, error) {
	var counts core.CommitCounts

	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertBatch,
			toUUID(b.ID), b.CompanyID, b.CompanyName, b.Period,
			b.Files.Sales, b.Files.Products, b.Files.ServiceOrders,
			int32(len(b.Sales)), int32(len(b.ServiceOrders)),
		); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}

		n, err := tx.CopyFrom(ctx, pgx.Identifier{"sales_lines"}, salesColumns,
			pgx.CopyFromSlice(len(b.Sales), func(i int) ([]any, error) {
				return salesRow(b, b.Sales[i])
			}))
		if err != nil {
			return fmt.Errorf("copy sales lines: %w", err)
		}
		if int(n) != len(b.Sales) {
			return fmt.Errorf("row count mismatch: sales %d of %d", n, len(b.Sales))
		}
		counts.Sales = int(n)

		n, err = tx.CopyFrom(ctx, pgx.Identifier{"service_order_lines"}, serviceOrderColumns,
			pgx.CopyFromSlice(len(b.ServiceOrders), func(i int) ([]any, error) {
				return serviceOrderRow(b, b.ServiceOrders[i])
			}))
		if err != nil {
			return fmt.Errorf("copy service order lines: %w", err)
		}
		if int(n) != len(b.ServiceOrders) {
			return fmt.Errorf("row count mismatch: service orders %d of %d", n, len(b.ServiceOrders))
		}
		counts.ServiceOrders = int(n)
		return nil
	})
	if err != nil {
		return core.CommitCounts{}, err
	}
	return counts, nil
}

// RemoveBatch deletes the batch of one company and period with all of its
// lines. It returns core.ErrBatchNotFound when there is none.
func (s *Store) RemoveBatch(ctx context.Context, companyID, period string) (core.RollbackResult, error) {
	res := core.RollbackResult{CompanyID: companyID, Period: period}

	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		var id pgtype.UUID
		if err := tx.QueryRow(ctx, lockBatch, companyID, period).Scan(&id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return core.ErrBatchNotFound
			}
			return fmt.Errorf("lock batch: %w", err)
		}
		res.BatchID = uuid.UUID(id.Bytes).String()

		tag, err := tx.Exec(ctx, deleteSalesLines, id)
		if err != nil {
			return fmt.Errorf("delete sales lines: %w", err)
		}
		res.SalesDeleted = tag.RowsAffected()

		tag, err = tx.Exec(ctx, deleteServiceOrderLines, id)
		if err != nil {
			return fmt.Errorf("delete service order lines: %w", err)
		}
		res.ServiceOrdersDeleted = tag.RowsAffected()

		if _, err := tx.Exec(ctx, deleteBatch, id); err != nil {
			return fmt.Errorf("delete batch: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.RollbackResult{}, err
	}
	return res, nil
}

var (
	_ core.Committer    = (*Store)(nil)
	_ core.BatchRemover = (*Store)(nil)
)
