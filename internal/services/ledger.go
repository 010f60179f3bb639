package services

import (
	"context"

	"github.com/diewo77/go-stock/internal/models"
	"github.com/diewo77/go-stock/internal/store"
)

// HistoryPageSize is the number of ledger entries per history page.
const HistoryPageSize = 15

// Ledger appends and reads stock movements.
type Ledger struct {
	store *store.Store
}

// NewLedger returns a ledger backed by s.
func NewLedger(s *store.Store) *Ledger { return &Ledger{store: s} }

// Record appends one movement inside the caller's unit of work.
// balance is the account quantity after the change.
func (l *Ledger) Record(tx *store.Tx, productID uint, delta, balance int, actor models.Actor, note string) (models.StockMovement, error) {
	m := models.StockMovement{
		ProductID:    productID,
		Delta:        delta,
		BalanceAfter: balance,
		Actor:        actor,
		Note:         note,
	}
	if err := tx.AppendMovement(&m); err != nil {
		return models.StockMovement{}, err
	}
	return m, nil
}

// History is one page of a product's ledger.
type History struct {
	Product   models.Product                   `json:"product"`
	Movements store.Page[models.StockMovement] `json:"movements"`
}

// History returns the ledger of a product, newest first. Soft-deleted
// products keep a readable history.
func (l *Ledger) History(ctx context.Context, productID uint, page int) (History, error) {
	p, err := l.store.ProductWithDeleted(ctx, productID)
	if err != nil {
		return History{}, notFound(err, ErrProductNotFound, productID)
	}
	movements, err := l.store.Movements(ctx, productID, page, HistoryPageSize)
	if err != nil {
		return History{}, err
	}
	return History{Product: p, Movements: movements}, nil
}
