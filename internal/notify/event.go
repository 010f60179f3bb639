// Package notify delivers low-stock alerts to administrators asynchronously.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/diewo77/go-stock/internal/models"
	"github.com/google/uuid"
)

// LowStockEvent is emitted when a product's quantity is at or below the threshold.
type LowStockEvent struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uint      `json:"product_id"`
	ProductName string    `json:"product_name"`
	SKU         string    `json:"product_sku"`
	Quantity    int       `json:"current_stock"`
	Threshold   int       `json:"threshold"`
	RaisedAt    time.Time `json:"raised_at"`
}

// NewLowStockEvent builds an event for p at the given quantity.
func NewLowStockEvent(p models.Product, quantity, threshold int) LowStockEvent {
	return LowStockEvent{
		ID:          uuid.New(),
		ProductID:   p.ID,
		ProductName: p.Name,
		SKU:         p.SKU,
		Quantity:    quantity,
		Threshold:   threshold,
		RaisedAt:    time.Now().UTC(),
	}
}

// Subject is the mail subject and in-app title.
func (e LowStockEvent) Subject() string {
	return "Low Stock Alert: " + e.ProductName
}

// Message is the one-line summary stored with in-app notifications.
func (e LowStockEvent) Message() string {
	return "Low stock alert for product: " + e.ProductName
}

// Payload is the structured data attached to in-app notifications.
func (e LowStockEvent) Payload() map[string]any {
	return map[string]any{
		"event_id":      e.ID.String(),
		"product_id":    e.ProductID,
		"product_name":  e.ProductName,
		"product_sku":   e.SKU,
		"current_stock": e.Quantity,
		"threshold":     e.Threshold,
		"message":       e.Message(),
	}
}

// Body renders the mail body for one recipient.
func (e LowStockEvent) Body(recipient, appURL string) string {
	return fmt.Sprintf(
		"Hello %s,\n\n"+
			"This is to notify you that the following product has low stock:\n"+
			"Product: %s (SKU: %s)\n"+
			"Current stock: %d (Threshold: %d)\n\n"+
			"View Product: %s/admin/products/%d\n\n"+
			"Please take appropriate action to restock this item.\n",
		recipient, e.ProductName, e.SKU, e.Quantity, e.Threshold, appURL, e.ProductID,
	)
}

// Publisher accepts low-stock events. Implementations must not block on delivery.
type Publisher interface {
	Publish(ctx context.Context, ev LowStockEvent) error
}

// WaitPublisher is a Publisher that can also wait for buffer space.
type WaitPublisher interface {
	Publisher
	PublishWait(ctx context.Context, ev LowStockEvent) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, ev LowStockEvent) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, ev LowStockEvent) error { return f(ctx, ev) }
