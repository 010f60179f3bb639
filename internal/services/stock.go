package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/diewo77/go-stock/internal/models"
	"github.com/diewo77/go-stock/internal/store"
	"go.uber.org/zap"
)

// StockPageSize is the number of accounts per listing page.
const StockPageSize = 15

// MaxNoteLength bounds movement and order notes, in characters.
const MaxNoteLength = 500

// Result is the outcome of a stock mutation. Movement is nil only when a
// zero-delta adjustment was skipped.
type Result struct {
	Quantity int                   `json:"quantity"`
	Movement *models.StockMovement `json:"movement"`
}

// StockService mutates stock accounts. Every mutation writes exactly one
// ledger entry in the same transaction.
type StockService struct {
	store      *store.Store
	ledger     *Ledger
	monitor    *LowStockMonitor
	recordZero bool
	log        *zap.Logger
}

// NewStockService wires the stock service. recordZero keeps ledger entries for
// adjustments that leave the quantity unchanged.
func NewStockService(s *store.Store, ledger *Ledger, monitor *LowStockMonitor, recordZero bool, log *zap.Logger) *StockService {
	return &StockService{store: s, ledger: ledger, monitor: monitor, recordZero: recordZero, log: log}
}

// Increase adds amount units, creating the account when missing.
func (s *StockService) Increase(ctx context.Context, productID uint, amount int, actor models.Actor, note string) (Result, error) {
	if amount <= 0 {
		return Result{}, ErrInvalidQuantity
	}
	if !actor.Valid() {
		return Result{}, ErrInvalidActor
	}
	note = noteOr(note, "Admin restock")
	if err := checkNote(note); err != nil {
		return Result{}, err
	}
	return s.mutate(ctx, productID, func(tx *store.Tx, p models.Product) (Result, error) {
		return s.increaseTx(tx, p, amount, actor, note)
	})
}

// Decrease removes amount units. It fails with an InsufficientStockError when
// the account is missing or holds less than amount.
func (s *StockService) Decrease(ctx context.Context, productID uint, amount int, actor models.Actor, note string) (Result, error) {
	if amount <= 0 {
		return Result{}, ErrInvalidQuantity
	}
	if !actor.Valid() {
		return Result{}, ErrInvalidActor
	}
	note = noteOr(note, "Admin stock reduction")
	if err := checkNote(note); err != nil {
		return Result{}, err
	}
	return s.mutate(ctx, productID, func(tx *store.Tx, p models.Product) (Result, error) {
		acct, err := tx.LockAccount(p.ID)
		if err != nil {
			return Result{}, err
		}
		return s.decreaseLocked(tx, p, acct, amount, actor, note)
	})
}

// SetAbsolute sets the quantity for an inventory correction. The note is mandatory.
func (s *StockService) SetAbsolute(ctx context.Context, productID uint, quantity int, actor models.Actor, note string) (Result, error) {
	if quantity < 0 {
		return Result{}, ErrInvalidQuantity
	}
	if strings.TrimSpace(note) == "" {
		return Result{}, ErrMissingNote
	}
	if err := checkNote(note); err != nil {
		return Result{}, err
	}
	if !actor.Valid() {
		return Result{}, ErrInvalidActor
	}
	return s.mutate(ctx, productID, func(tx *store.Tx, p models.Product) (Result, error) {
		return s.setAbsoluteTx(tx, p, quantity, actor, note)
	})
}

// Quantity returns the current quantity and whether an account exists.
func (s *StockService) Quantity(ctx context.Context, productID uint) (int, bool, error) {
	if _, err := s.store.ProductWithDeleted(ctx, productID); err != nil {
		return 0, false, notFound(err, ErrProductNotFound, productID)
	}
	acct, err := s.store.Account(ctx, productID)
	if err != nil || acct == nil {
		return 0, false, err
	}
	return acct.Quantity, true, nil
}

// Accounts lists stock accounts with their products.
func (s *StockService) Accounts(ctx context.Context, page int) (store.Page[models.StockAccount], error) {
	return s.store.Accounts(ctx, page, StockPageSize)
}

// mutate runs fn in a transaction against a live product, then checks the
// resulting quantity for low stock once the transaction committed.
func (s *StockService) mutate(ctx context.Context, productID uint, fn func(*store.Tx, models.Product) (Result, error)) (Result, error) {
	var (
		res     Result
		product models.Product
	)
	err := s.store.Transaction(ctx, func(tx *store.Tx) error {
		p, err := tx.Product(productID)
		if err != nil {
			return notFound(err, ErrProductNotFound, productID)
		}
		product = p
		res, err = fn(tx, p)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	s.monitor.CheckOne(ctx, product, res.Quantity)
	return res, nil
}

func (s *StockService) increaseTx(tx *store.Tx, p models.Product, amount int, actor models.Actor, note string) (Result, error) {
	acct, err := tx.EnsureAccount(p.ID)
	if err != nil {
		return Result{}, err
	}
	return s.apply(tx, acct, amount, actor, note)
}

// decreaseLocked expects acct to be locked by tx; nil means no account.
func (s *StockService) decreaseLocked(tx *store.Tx, p models.Product, acct *models.StockAccount, amount int, actor models.Actor, note string) (Result, error) {
	available := 0
	if acct != nil {
		available = acct.Quantity
	}
	if acct == nil || available < amount {
		return Result{}, &InsufficientStockError{ProductID: p.ID, ProductName: p.Name, Available: available, Requested: amount}
	}
	return s.apply(tx, acct, -amount, actor, note)
}

func (s *StockService) setAbsoluteTx(tx *store.Tx, p models.Product, quantity int, actor models.Actor, note string) (Result, error) {
	acct, err := tx.EnsureAccount(p.ID)
	if err != nil {
		return Result{}, err
	}
	delta := quantity - acct.Quantity
	if delta == 0 && !s.recordZero {
		return Result{Quantity: acct.Quantity}, nil
	}
	return s.apply(tx, acct, delta, actor, note)
}

// apply writes the new quantity and its ledger entry.
func (s *StockService) apply(tx *store.Tx, acct *models.StockAccount, delta int, actor models.Actor, note string) (Result, error) {
	quantity := acct.Quantity + delta
	if quantity < 0 {
		return Result{}, &InsufficientStockError{ProductID: acct.ProductID, Available: acct.Quantity, Requested: -delta}
	}
	if delta != 0 {
		if err := tx.SetQuantity(acct, quantity); err != nil {
			return Result{}, err
		}
	}
	m, err := s.ledger.Record(tx, acct.ProductID, delta, quantity, actor, note)
	if err != nil {
		return Result{}, err
	}
	s.log.Debug("stock movement recorded",
		zap.Uint("product_id", acct.ProductID),
		zap.Bool("increase", m.IsIncrease()),
		zap.Int("delta", delta),
		zap.Int("quantity", quantity),
		zap.Stringer("actor", actor))
	return Result{Quantity: quantity, Movement: &m}, nil
}

func noteOr(note, fallback string) string {
	if n := strings.TrimSpace(note); n != "" {
		return n
	}
	return fallback
}

func checkNote(note string) error {
	if n := utf8.RuneCountInString(note); n > MaxNoteLength {
		return fmt.Errorf("%w: %d characters, at most %d", ErrNoteTooLong, n, MaxNoteLength)
	}
	return nil
}
