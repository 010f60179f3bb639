package handlers

import (
	"fmt"
	"net/http"

	"github.com/diewo77/go-stock/internal/httpx"
	"github.com/diewo77/go-stock/internal/models"
	"github.com/diewo77/go-stock/internal/services"
	"github.com/diewo77/go-stock/internal/validation"
	"go.uber.org/zap"
)

// OrderHandler serves order creation and the status workflow.
type OrderHandler struct {
	orders *services.OrderService
	log    *zap.Logger
}

func NewOrderHandler(orders *services.OrderService, log *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, log: log}
}

var orderStatuses = []string{
	string(models.OrderStatusPending),
	string(models.OrderStatusProcessing),
	string(models.OrderStatusCompleted),
	string(models.OrderStatusCancelled),
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.orders.List(r.Context(), httpx.Page(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.CreateOrderInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	v := make(validation.Violations)
	if in.CustomerID == 0 {
		v["customer_id"] = "required"
	}
	if len(in.Lines) == 0 {
		v["items"] = "required"
	}
	for i, l := range in.Lines {
		if l.ProductID == 0 {
			v[fmt.Sprintf("items.%d.product_id", i)] = "required"
		}
		validation.PositiveInt(fmt.Sprintf("items.%d.quantity", i), l.Quantity, v)
	}
	validation.MaxLen("notes", in.Notes, services.MaxNoteLength, v)
	if !v.Empty() {
		writeViolations(w, v)
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), in, actor(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"message": "Order created successfully",
		"order":   order,
	})
}

func (h *OrderHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	order, err := h.orders.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

// UpdateStatus applies an arbitrary workflow transition.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status string  `json:"status"`
		Notes  *string `json:"notes"`
	}
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	v := make(validation.Violations)
	validation.OneOf("status", in.Status, orderStatuses, v)
	if in.Notes != nil {
		validation.MaxLen("notes", *in.Notes, services.MaxNoteLength, v)
	}
	if !v.Empty() {
		writeViolations(w, v)
		return
	}
	h.transition(w, r, "Order status updated successfully", func(id uint) (models.Order, error) {
		return h.orders.UpdateStatus(r.Context(), id, models.OrderStatus(in.Status), in.Notes, actor(r))
	})
}

func (h *OrderHandler) Process(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Order is now processing", func(id uint) (models.Order, error) {
		return h.orders.Process(r.Context(), id, actor(r))
	})
}

func (h *OrderHandler) Fulfill(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Order fulfilled successfully", func(id uint) (models.Order, error) {
		return h.orders.FulfillOrder(r.Context(), id, actor(r))
	})
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Order cancelled successfully", func(id uint) (models.Order, error) {
		return h.orders.Cancel(r.Context(), id, actor(r))
	})
}

func (h *OrderHandler) transition(w http.ResponseWriter, r *http.Request, message string, apply func(uint) (models.Order, error)) {
	id, ok := httpx.PathID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	order, err := apply(id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": message, "order": order})
}
