package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/diewo77/go-stock/internal/models"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Errors returned by Dispatcher.Publish and Dispatcher.PublishWait.
var (
	ErrQueueFull = errors.New("notification_queue_full")
	ErrClosed    = errors.New("notification_queue_closed")
)

// Recipients resolves who receives an alert.
type Recipients interface {
	Admins(ctx context.Context) ([]models.Admin, error)
}

// Dispatcher buffers events and delivers them from a pool of workers.
// Publish never waits for delivery. Close must be called before the
// context given to Run is cancelled, otherwise late events may be lost.
type Dispatcher struct {
	events     chan LowStockEvent
	channels   []Channel
	recipients Recipients
	workers    int
	log        *zap.Logger

	// mu guards closed and every send on events.
	mu     sync.RWMutex
	closed bool

	published atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
}

// NewDispatcher creates a dispatcher with a bounded buffer.
func NewDispatcher(recipients Recipients, channels []Channel, workers, buffer int, log *zap.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &Dispatcher{
		events:     make(chan LowStockEvent, buffer),
		channels:   channels,
		recipients: recipients,
		workers:    workers,
		log:        log,
	}
}

// Publish enqueues ev for asynchronous delivery and fails with ErrQueueFull
// instead of waiting for room.
func (d *Dispatcher) Publish(_ context.Context, ev LowStockEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.events <- ev:
		d.published.Add(1)
		return nil
	default:
		return ErrQueueFull
	}
}

// PublishWait enqueues ev, waiting for buffer space until ctx is done.
// Sweeps use it so that a batch larger than the buffer is not truncated.
func (d *Dispatcher) PublishWait(ctx context.Context, ev LowStockEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.events <- ev:
		d.published.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops intake. Once it returns no further event can enter the
// buffer; events already buffered are still delivered by Run.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}

// Run delivers events until ctx is cancelled, then drains what is buffered.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case ev := <-d.events:
					d.handle(gctx, ev)
				}
			}
		})
	}
	err := g.Wait()
	d.drain()
	return err
}

func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.events:
			d.handle(context.Background(), ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, ev LowStockEvent) {
	if err := d.Deliver(ctx, ev); err != nil {
		d.failed.Add(1)
		d.log.Warn("low stock notification delivery failed",
			zap.String("event_id", ev.ID.String()),
			zap.Uint("product_id", ev.ProductID),
			zap.Error(err))
		return
	}
	d.delivered.Add(1)
}

// Deliver sends ev to every channel synchronously. A failing channel does not
// prevent the others from running; all errors are combined.
func (d *Dispatcher) Deliver(ctx context.Context, ev LowStockEvent) error {
	admins, err := d.recipients.Admins(ctx)
	if err != nil {
		return fmt.Errorf("load recipients: %w", err)
	}
	if len(admins) == 0 {
		d.log.Debug("no admins to notify", zap.Uint("product_id", ev.ProductID))
		return nil
	}
	var errs error
	for _, ch := range d.channels {
		if err := ch.Send(ctx, admins, ev); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
		}
	}
	return errs
}

// Metrics returns counters for observability.
func (d *Dispatcher) Metrics() (published, delivered, failed uint64, backlog int) {
	return d.published.Load(), d.delivered.Load(), d.failed.Load(), len(d.events)
}
