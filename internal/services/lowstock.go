package services

import (
	"context"
	"fmt"

	"github.com/diewo77/go-stock/internal/models"
	"github.com/diewo77/go-stock/internal/notify"
	"github.com/diewo77/go-stock/internal/store"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// LowStockMonitor compares quantities with the configured threshold and
// publishes one event per low product. Alerts raised by a stock change are
// fire-and-forget; a sweep waits for queue space when the publisher allows it.
type LowStockMonitor struct {
	store     *store.Store
	publisher notify.Publisher
	threshold int
	log       *zap.Logger
}

// NewLowStockMonitor returns a monitor. The threshold is inclusive.
func NewLowStockMonitor(s *store.Store, publisher notify.Publisher, threshold int, log *zap.Logger) *LowStockMonitor {
	return &LowStockMonitor{store: s, publisher: publisher, threshold: threshold, log: log}
}

// Threshold returns the configured low-stock threshold.
func (m *LowStockMonitor) Threshold() int { return m.threshold }

// CheckOne publishes an alert when quantity is at or below the threshold and
// reports whether it did. Publishing errors are logged, never returned.
func (m *LowStockMonitor) CheckOne(ctx context.Context, p models.Product, quantity int) bool {
	if quantity > m.threshold {
		return false
	}
	ev := notify.NewLowStockEvent(p, quantity, m.threshold)
	if err := m.publisher.Publish(ctx, ev); err != nil {
		m.log.Warn("low stock notification not published",
			zap.Uint("product_id", p.ID),
			zap.Int("quantity", quantity),
			zap.Error(err))
	}
	return true
}

// IsLow reports whether a product is low on stock. A product without an
// account counts as low.
func (m *LowStockMonitor) IsLow(ctx context.Context, productID uint) (bool, error) {
	if _, err := m.store.ProductWithDeleted(ctx, productID); err != nil {
		return false, notFound(err, ErrProductNotFound, productID)
	}
	acct, err := m.store.Account(ctx, productID)
	if err != nil {
		return false, err
	}
	return acct == nil || acct.Quantity <= m.threshold, nil
}

// SweepAll publishes one alert per existing account at or below the threshold
// and returns the number of distinct products found. Every alert is enqueued
// before it returns; enqueue failures are combined into an
// ErrAlertsNotQueued error.
func (m *LowStockMonitor) SweepAll(ctx context.Context) (int, error) {
	accounts, err := m.store.LowAccounts(ctx, m.threshold)
	if err != nil {
		return 0, err
	}
	publish := m.publisher.Publish
	if wp, ok := m.publisher.(notify.WaitPublisher); ok {
		publish = wp.PublishWait
	}
	seen := make(map[uint]struct{}, len(accounts))
	var errs error
	for _, acct := range accounts {
		if _, dup := seen[acct.ProductID]; dup {
			continue
		}
		seen[acct.ProductID] = struct{}{}
		p := models.Product{ID: acct.ProductID}
		if acct.Product != nil {
			p = *acct.Product
		}
		if err := publish(ctx, notify.NewLowStockEvent(p, acct.Quantity, m.threshold)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("product %d: %w", p.ID, err))
			if ctx.Err() != nil {
				break
			}
		}
	}
	m.log.Info("low stock sweep finished",
		zap.Int("low_stock_count", len(seen)),
		zap.Int("threshold", m.threshold),
		zap.Int("enqueue_failures", len(multierr.Errors(errs))))
	if errs != nil {
		return len(seen), fmt.Errorf("%w: %w", ErrAlertsNotQueued, errs)
	}
	return len(seen), nil
}
