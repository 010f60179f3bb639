package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/diewo77/go-stock/internal/httpx"
	"github.com/diewo77/go-stock/internal/services"
	"github.com/diewo77/go-stock/internal/validation"
	"go.uber.org/zap"
)

// StockHandler serves the stock accounts, their ledgers and the adjustments.
type StockHandler struct {
	stock   *services.StockService
	ledger  *services.Ledger
	monitor *services.LowStockMonitor
	log     *zap.Logger
}

func NewStockHandler(stock *services.StockService, ledger *services.Ledger, monitor *services.LowStockMonitor, log *zap.Logger) *StockHandler {
	return &StockHandler{stock: stock, ledger: ledger, monitor: monitor, log: log}
}

type stockChangeInput struct {
	Quantity *int   `json:"quantity"`
	Notes    string `json:"notes"`
}

// Index lists stock accounts with their products.
func (h *StockHandler) Index(w http.ResponseWriter, r *http.Request) {
	page, err := h.stock.Accounts(r.Context(), httpx.Page(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"accounts":  page,
		"threshold": h.monitor.Threshold(),
		"last_page": page.LastPage(),
	})
}

// History returns one page of a product's ledger.
func (h *StockHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	hist, err := h.ledger.History(r.Context(), id, httpx.Page(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"product":   hist.Product,
		"movements": hist.Movements,
		"last_page": hist.Movements.LastPage(),
	})
}

// Level reports the current quantity of a product and whether it is low.
func (h *StockHandler) Level(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	qty, tracked, err := h.stock.Quantity(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	low, err := h.monitor.IsLow(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"product_id": id,
		"quantity":   qty,
		"tracked":    tracked,
		"low_stock":  low,
		"threshold":  h.monitor.Threshold(),
	})
}

// Add increases the stock of a product.
func (h *StockHandler) Add(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, false, func(id uint, in stockChangeInput) (services.Result, error) {
		return h.stock.Increase(r.Context(), id, *in.Quantity, actor(r), in.Notes)
	}, "Stock added successfully")
}

// Reduce decreases the stock of a product.
func (h *StockHandler) Reduce(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, false, func(id uint, in stockChangeInput) (services.Result, error) {
		return h.stock.Decrease(r.Context(), id, *in.Quantity, actor(r), in.Notes)
	}, "Stock reduced successfully")
}

// Adjust sets the absolute stock level. Notes are mandatory.
func (h *StockHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, true, func(id uint, in stockChangeInput) (services.Result, error) {
		return h.stock.SetAbsolute(r.Context(), id, *in.Quantity, actor(r), in.Notes)
	}, "Stock adjusted successfully")
}

func (h *StockHandler) change(w http.ResponseWriter, r *http.Request, absolute bool, apply func(uint, stockChangeInput) (services.Result, error), message string) {
	id, ok := httpx.PathID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	var in stockChangeInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	v := make(validation.Violations)
	switch {
	case in.Quantity == nil:
		v["quantity"] = "required"
	case absolute:
		validation.NonNegativeInt("quantity", *in.Quantity, v)
	default:
		validation.PositiveInt("quantity", *in.Quantity, v)
	}
	if absolute {
		validation.Required("notes", in.Notes, v)
	}
	validation.MaxLen("notes", in.Notes, services.MaxNoteLength, v)
	if !v.Empty() {
		writeViolations(w, v)
		return
	}

	res, err := apply(id, in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"message":  message,
		"quantity": res.Quantity,
		"movement": res.Movement,
	})
}

// CheckLowStock runs a full sweep and reports how many products are low.
func (h *StockHandler) CheckLowStock(w http.ResponseWriter, r *http.Request) {
	n, err := h.monitor.SweepAll(r.Context())
	if errors.Is(err, services.ErrAlertsNotQueued) {
		h.log.Warn("low stock sweep incomplete", zap.Error(err))
		httpx.Busy(w, retryAfterSeconds, "alerts_not_queued")
		return
	}
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"message":         fmt.Sprintf("Low stock check completed: %d product(s) at or below %d", n, h.monitor.Threshold()),
		"low_stock_count": n,
	})
}
