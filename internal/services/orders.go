package services

import (
	"context"
	"fmt"

	"github.com/diewo77/go-stock/internal/models"
	"github.com/diewo77/go-stock/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderPageSize is the number of orders per listing page.
const OrderPageSize = 15

// OrderLine is one requested product and quantity.
type OrderLine struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

// CreateOrderInput describes a new order.
type CreateOrderInput struct {
	CustomerID uint        `json:"customer_id"`
	Notes      string      `json:"notes"`
	Lines      []OrderLine `json:"items"`
}

// OrderService creates orders and drives their status workflow.
type OrderService struct {
	store   *store.Store
	stock   *StockService
	monitor *LowStockMonitor
	log     *zap.Logger
}

// NewOrderService wires the order coordinator onto the stock service.
func NewOrderService(s *store.Store, stock *StockService, monitor *LowStockMonitor, log *zap.Logger) *OrderService {
	return &OrderService{store: s, stock: stock, monitor: monitor, log: log}
}

func (in CreateOrderInput) validate() error {
	if in.CustomerID == 0 {
		return fmt.Errorf("%w: customer_id is required", ErrInvalidInput)
	}
	if len(in.Lines) == 0 {
		return ErrEmptyOrder
	}
	if err := checkNote(in.Notes); err != nil {
		return err
	}
	for i, l := range in.Lines {
		if l.ProductID == 0 {
			return fmt.Errorf("%w: items[%d].product_id is required", ErrInvalidInput, i)
		}
		if l.Quantity <= 0 {
			return fmt.Errorf("%w: items[%d]", ErrInvalidQuantity, i)
		}
	}
	return nil
}

// CreateOrder reserves stock for every line and records the order in one
// transaction. Any failing line rolls back the whole order, including the
// decreases already applied for earlier lines.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput, actor models.Actor) (models.Order, error) {
	if err := in.validate(); err != nil {
		return models.Order{}, err
	}
	if !actor.Valid() {
		return models.Order{}, ErrInvalidActor
	}

	type touched struct {
		product  models.Product
		quantity int
	}
	var (
		order models.Order
		seen  = map[uint]int{}
		lows  []touched
	)
	err := s.store.Transaction(ctx, func(tx *store.Tx) error {
		if _, err := tx.Customer(in.CustomerID); err != nil {
			return notFound(err, ErrCustomerNotFound, in.CustomerID)
		}
		order = models.Order{
			CustomerID:  in.CustomerID,
			Status:      models.OrderStatusPending,
			TotalAmount: decimal.Zero,
			Notes:       in.Notes,
		}
		if err := tx.CreateOrder(&order); err != nil {
			return err
		}
		note := fmt.Sprintf("Order #%d", order.ID)
		for i, line := range in.Lines {
			p, err := tx.Product(line.ProductID)
			if err != nil {
				return notFound(err, ErrProductNotFound, line.ProductID)
			}
			acct, err := tx.LockAccount(p.ID)
			if err != nil {
				return err
			}
			res, err := s.stock.decreaseLocked(tx, p, acct, line.Quantity, actor, note)
			if err != nil {
				return err
			}
			item := models.OrderItem{
				OrderID:   order.ID,
				ProductID: p.ID,
				Quantity:  line.Quantity,
				UnitPrice: p.Price,
				Position:  i,
			}
			if err := tx.CreateOrderItem(&item); err != nil {
				return err
			}
			item.Product = &p
			order.Items = append(order.Items, item)

			if idx, ok := seen[p.ID]; ok {
				lows[idx].quantity = res.Quantity
			} else {
				seen[p.ID] = len(lows)
				lows = append(lows, touched{product: p, quantity: res.Quantity})
			}
		}
		return tx.SetOrderTotal(&order, order.ComputeTotal())
	})
	if err != nil {
		return models.Order{}, err
	}

	s.log.Info("order created",
		zap.Uint("order_id", order.ID),
		zap.Uint("customer_id", order.CustomerID),
		zap.Int("lines", len(order.Items)),
		zap.String("total", order.TotalAmount.StringFixed(2)))
	for _, t := range lows {
		s.monitor.CheckOne(ctx, t.product, t.quantity)
	}
	return order, nil
}

// Transition moves an order to target when the workflow allows it and writes
// an audit row for the change.
func (s *OrderService) Transition(ctx context.Context, orderID uint, target models.OrderStatus, actor models.Actor) (models.Order, error) {
	return s.transition(ctx, orderID, target, actor, nil, nil)
}

// UpdateStatus is Transition that also replaces the order notes when notes
// is non-nil. Both changes commit together or not at all.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uint, target models.OrderStatus, notes *string, actor models.Actor) (models.Order, error) {
	if notes != nil {
		if err := checkNote(*notes); err != nil {
			return models.Order{}, err
		}
	}
	return s.transition(ctx, orderID, target, actor, nil, notes)
}

// Process moves a pending order to processing.
func (s *OrderService) Process(ctx context.Context, orderID uint, actor models.Actor) (models.Order, error) {
	return s.transition(ctx, orderID, models.OrderStatusProcessing, actor, nil, nil)
}

// Cancel cancels a pending or processing order. Reserved stock is not
// returned to the accounts.
func (s *OrderService) Cancel(ctx context.Context, orderID uint, actor models.Actor) (models.Order, error) {
	return s.transition(ctx, orderID, models.OrderStatusCancelled, actor, nil, nil)
}

// FulfillOrder completes a processing order. Stock was already reserved at
// creation so no movement is written.
func (s *OrderService) FulfillOrder(ctx context.Context, orderID uint, actor models.Actor) (models.Order, error) {
	return s.transition(ctx, orderID, models.OrderStatusCompleted, actor, func(o models.Order) error {
		if o.Status == models.OrderStatusCompleted {
			return fmt.Errorf("%w: order #%d", ErrAlreadyFulfilled, o.ID)
		}
		return nil
	}, nil)
}

func (s *OrderService) transition(ctx context.Context, orderID uint, target models.OrderStatus, actor models.Actor, guard func(models.Order) error, notes *string) (models.Order, error) {
	if !target.Valid() {
		return models.Order{}, ErrInvalidStatus
	}
	if !actor.Valid() {
		return models.Order{}, ErrInvalidActor
	}
	var from models.OrderStatus
	err := s.store.Transaction(ctx, func(tx *store.Tx) error {
		o, err := tx.LockOrder(orderID)
		if err != nil {
			return notFound(err, ErrOrderNotFound, orderID)
		}
		if guard != nil {
			if err := guard(o); err != nil {
				return err
			}
		}
		if !o.Status.CanTransitionTo(target) {
			return &IllegalTransitionError{From: o.Status, To: target}
		}
		from = o.Status
		if notes != nil && *notes != o.Notes {
			old := o.Notes
			if err := tx.SetOrderNotes(&o, *notes); err != nil {
				return err
			}
			err := tx.AppendAudit(&models.AuditLog{
				Actor:      actor,
				EntityType: "order",
				EntityID:   o.ID,
				Action:     "notes_changed",
				Field:      "notes",
				OldValue:   old,
				NewValue:   o.Notes,
			})
			if err != nil {
				return err
			}
		}
		if err := tx.SetOrderStatus(&o, target); err != nil {
			return err
		}
		return tx.AppendAudit(&models.AuditLog{
			Actor:      actor,
			EntityType: "order",
			EntityID:   o.ID,
			Action:     "status_changed",
			Field:      "status",
			OldValue:   string(from),
			NewValue:   string(target),
		})
	})
	if err != nil {
		return models.Order{}, err
	}
	s.log.Info("order status changed",
		zap.Uint("order_id", orderID),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.Stringer("actor", actor))
	return s.Get(ctx, orderID)
}

// Get loads an order with its items.
func (s *OrderService) Get(ctx context.Context, orderID uint) (models.Order, error) {
	o, err := s.store.Order(ctx, orderID)
	if err != nil {
		return o, notFound(err, ErrOrderNotFound, orderID)
	}
	return o, nil
}

// List returns orders newest first.
func (s *OrderService) List(ctx context.Context, page int) (store.Page[models.Order], error) {
	return s.store.Orders(ctx, page, OrderPageSize)
}
