package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/getAlby/evmhub.go/common"
	"github.com/getAlby/evmhub.go/db/models"
	"github.com/uptrace/bun"
	"github.com/ziflex/lecho/v3"
)

// InvoiceStore is the persistence contract of the invoice engine.
type InvoiceStore interface {
	// FindPending returns every invoice that is neither Rejected nor Sent.
	FindPending(ctx context.Context) ([]*Invoice, error)
	FindByState(ctx context.Context, state common.InvoiceState) ([]*Invoice, error)
	FindByAction(ctx context.Context, action common.InvoiceAction) ([]*Invoice, error)
	// FindByAddress fails with ErrNotFound if there is no such invoice.
	FindByAddress(ctx context.Context, address ethcommon.Address) (*Invoice, error)
	Insert(ctx context.Context, invoice *Invoice) (*Invoice, error)
	UpdateState(ctx context.Context, address ethcommon.Address, state common.InvoiceState) (*Invoice, error)
	// RecordSweep overwrites the forwarding bookkeeping, empty strings clear a column.
	RecordSweep(ctx context.Context, address ethcommon.Address, txHash, errorMessage string) error
}

// BunInvoiceStore implements InvoiceStore on the invoices table.
type BunInvoiceStore struct {
	DB     *bun.DB
	Logger *lecho.Logger
}

func NewBunInvoiceStore(db *bun.DB, logger *lecho.Logger) *BunInvoiceStore {
	return &BunInvoiceStore{DB: db, Logger: logger}
}

func (store *BunInvoiceStore) FindPending(ctx context.Context) ([]*Invoice, error) {
	return store.find(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("state NOT IN (?)", bun.In([]uint32{common.InvoiceStateRejected.Code(), common.InvoiceStateSent.Code()}))
	})
}

func (store *BunInvoiceStore) FindByState(ctx context.Context, state common.InvoiceState) ([]*Invoice, error) {
	return store.find(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("state = ?", state.Code())
	})
}

func (store *BunInvoiceStore) FindByAction(ctx context.Context, action common.InvoiceAction) ([]*Invoice, error) {
	return store.find(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("complete_action = ?", action.Code())
	})
}

func (store *BunInvoiceStore) find(ctx context.Context, filter func(q *bun.SelectQuery) *bun.SelectQuery) ([]*Invoice, error) {
	rows := []models.Invoice{}
	err := filter(store.DB.NewSelect().Model(&rows)).Order("created_at ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	invoices := make([]*Invoice, 0, len(rows))
	for i := range rows {
		invoice, err := store.decode(&rows[i])
		if err != nil {
			// one broken row must not hide the others
			store.Logger.Errorf("Skipping invoice %s: %v", rows[i].Address, err)
			continue
		}
		invoices = append(invoices, invoice)
	}
	return invoices, nil
}

func (store *BunInvoiceStore) FindByAddress(ctx context.Context, address ethcommon.Address) (*Invoice, error) {
	row := models.Invoice{}
	err := store.DB.NewSelect().Model(&row).Where("address = ?", address.Hex()).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, address.Hex())
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return store.decode(&row)
}

func (store *BunInvoiceStore) Insert(ctx context.Context, invoice *Invoice) (*Invoice, error) {
	row := invoice.toModel()
	_, err := store.DB.NewInsert().Model(row).Returning("*").Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return store.decode(row)
}

func (store *BunInvoiceStore) UpdateState(ctx context.Context, address ethcommon.Address, state common.InvoiceState) (*Invoice, error) {
	row := models.Invoice{}
	res, err := store.DB.NewUpdate().
		Model(&row).
		Set("state = ?", state.Code()).
		Set("updated_at = ?", time.Now()).
		Where("address = ?", address.Hex()).
		Returning("*").
		Exec(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, address.Hex())
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, address.Hex())
	}
	return store.decode(&row)
}

func (store *BunInvoiceStore) RecordSweep(ctx context.Context, address ethcommon.Address, txHash, errorMessage string) error {
	_, err := store.DB.NewUpdate().
		Model(&models.Invoice{}).
		Set("tx_hash = ?", sql.NullString{String: txHash, Valid: txHash != ""}).
		Set("error_message = ?", sql.NullString{String: errorMessage, Valid: errorMessage != ""}).
		Set("updated_at = ?", time.Now()).
		Where("address = ?", address.Hex()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

func (store *BunInvoiceStore) decode(row *models.Invoice) (*Invoice, error) {
	invoice, warnings, err := invoiceFromModel(row)
	for _, warning := range warnings {
		store.Logger.Warn(warning)
	}
	return invoice, err
}
