package services

import (
	"errors"
	"fmt"

	"github.com/diewo77/go-stock/internal/models"
	"github.com/diewo77/go-stock/internal/store"
)

// Error taxonomy shared by the stock and order services.
// Storage errors come from the store package and are re-exported here.
var (
	ErrNotFound       = store.ErrNotFound
	ErrStorageBusy    = store.ErrStorageBusy
	ErrStorageFailure = store.ErrStorageFailure
	ErrConflict       = store.ErrConflict

	ErrInvalidInput      = errors.New("invalid_input")
	ErrInsufficientStock = errors.New("insufficient_stock")
	ErrIllegalTransition = errors.New("illegal_transition")
	ErrAlreadyFulfilled  = errors.New("already_fulfilled")
	ErrAlertsNotQueued   = errors.New("alerts_not_queued")
)

var (
	ErrProductNotFound  = fmt.Errorf("product %w", ErrNotFound)
	ErrOrderNotFound    = fmt.Errorf("order %w", ErrNotFound)
	ErrCustomerNotFound = fmt.Errorf("customer %w", ErrNotFound)
	ErrCategoryNotFound = fmt.Errorf("category %w", ErrNotFound)

	ErrInvalidQuantity = fmt.Errorf("%w: invalid_quantity", ErrInvalidInput)
	ErrMissingNote     = fmt.Errorf("%w: missing_note", ErrInvalidInput)
	ErrInvalidActor    = fmt.Errorf("%w: invalid_actor", ErrInvalidInput)
	ErrEmptyOrder      = fmt.Errorf("%w: empty_order", ErrInvalidInput)
	ErrInvalidStatus   = fmt.Errorf("%w: invalid_status", ErrInvalidInput)
	ErrInvalidProduct  = fmt.Errorf("%w: invalid_product", ErrInvalidInput)
	ErrInvalidCategory = fmt.Errorf("%w: invalid_category", ErrInvalidInput)
	ErrCategoryInUse   = fmt.Errorf("%w: category_has_products", ErrInvalidInput)
	ErrNoteTooLong     = fmt.Errorf("%w: note_too_long", ErrInvalidInput)

	ErrDuplicateSKU      = fmt.Errorf("sku %w", ErrConflict)
	ErrDuplicateCategory = fmt.Errorf("category %w", ErrConflict)
)

// InsufficientStockError names the product that could not be served.
type InsufficientStockError struct {
	ProductID   uint
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product: %s (available %d, requested %d)", e.ProductName, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// IllegalTransitionError reports a rejected order status change.
type IllegalTransitionError struct {
	From models.OrderStatus
	To   models.OrderStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal order transition from %s to %s", e.From, e.To)
}

func (e *IllegalTransitionError) Unwrap() error { return ErrIllegalTransition }

// conflict rewrites a store unique violation into the given sentinel.
func conflict(err, sentinel error) error {
	if errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return err
}

// notFound rewrites a store not-found error into the given entity sentinel.
func notFound(err, sentinel error, id uint) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: id=%d", sentinel, id)
	}
	return err
}
